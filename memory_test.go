/*
   Copyright The groupcontrol Authors.

   Licensed under the Apache License, Version 2.0 (the "License");
   you may not use this file except in compliance with the License.
   You may obtain a copy of the License at

       http://www.apache.org/licenses/LICENSE-2.0

   Unless required by applicable law or agreed to in writing, software
   distributed under the License is distributed on an "AS IS" BASIS,
   WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
   See the License for the specific language governing permissions and
   limitations under the License.
*/

package cgroup1

import (
	"os"
	"path/filepath"
	"testing"
)

const memoryData = `cache 1
rss 2
rss_huge 3
mapped_file 4
dirty 5
writeback 6
pgpgin 7
pgpgout 8
pgfault 9
pgmajfault 10
inactive_anon 11
`

func TestMemoryApply(t *testing.T) {
	mock := newMock(t)
	memory := NewMemory(mock.root)
	var (
		limit      = int64(512 * 1024 * 1024)
		swappiness = uint64(10)
		disable    = true
	)
	if err := memory.Create("test", &Resources{
		Memory: &MemoryResources{
			Limit:            &limit,
			Swappiness:       &swappiness,
			DisableOOMKiller: &disable,
		},
	}); err != nil {
		t.Fatal(err)
	}
	if v := mock.readValue(t, "memory", "test", "memory.limit_in_bytes"); v != "536870912" {
		t.Fatalf("expected 536870912 but received %q", v)
	}
	if v := mock.readValue(t, "memory", "test", "memory.swappiness"); v != "10" {
		t.Fatalf("expected 10 but received %q", v)
	}
	if v := mock.readValue(t, "memory", "test", "memory.oom_control"); v != "1" {
		t.Fatalf("expected 1 but received %q", v)
	}
}

func TestMemoryApplyUnlimited(t *testing.T) {
	mock := newMock(t)
	memory := NewMemory(mock.root)
	limit := Unlimited
	if err := memory.Create("test", &Resources{
		Memory: &MemoryResources{Limit: &limit},
	}); err != nil {
		t.Fatal(err)
	}
	if v := mock.readValue(t, "memory", "test", "memory.limit_in_bytes"); v != "-1" {
		t.Fatalf("expected -1 but received %q", v)
	}
}

func TestMemoryStat(t *testing.T) {
	mock := newMock(t)
	memory := NewMemory(mock.root)
	if err := memory.Create("test", nil); err != nil {
		t.Fatal(err)
	}
	dir := filepath.Join(mock.root, "memory", "test")
	if err := os.WriteFile(filepath.Join(dir, "memory.stat"), []byte(memoryData), defaultFilePerm); err != nil {
		t.Fatal(err)
	}
	for name, value := range map[string]string{
		"memory.usage_in_bytes":     "100",
		"memory.max_usage_in_bytes": "200",
		"memory.failcnt":            "1",
		"memory.limit_in_bytes":     "536870912",
	} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(value), defaultFilePerm); err != nil {
			t.Fatal(err)
		}
	}
	var stats Stats
	if err := memory.Stat("test", &stats); err != nil {
		t.Fatal(err)
	}
	mem := stats.Memory
	if mem.Cache != 1 || mem.RSS != 2 || mem.PgMajFault != 10 {
		t.Fatalf("unexpected memory.stat values %+v", mem)
	}
	// unmodeled keys are still available through Raw
	if mem.Raw["inactive_anon"] != 11 {
		t.Errorf("expected inactive_anon 11 but received %d", mem.Raw["inactive_anon"])
	}
	if mem.Usage.Usage != 100 || mem.Usage.Max != 200 || mem.Usage.Failcnt != 1 || mem.Usage.Limit != 536870912 {
		t.Fatalf("unexpected usage entry %+v", mem.Usage)
	}
	// memsw and kmem files were not seeded and are skipped
	if mem.Swap.Usage != 0 || mem.Kernel.Usage != 0 {
		t.Fatalf("expected zero entries for absent files, received %+v %+v", mem.Swap, mem.Kernel)
	}
}

func TestMemoryOomControl(t *testing.T) {
	mock := newMock(t)
	memory := NewMemory(mock.root)
	if err := memory.Create("test", nil); err != nil {
		t.Fatal(err)
	}
	data := "oom_kill_disable 1\nunder_oom 0\noom_kill 3\n"
	if err := os.WriteFile(
		filepath.Join(mock.root, "memory", "test", "memory.oom_control"),
		[]byte(data),
		defaultFilePerm,
	); err != nil {
		t.Fatal(err)
	}
	oom, err := memory.OomControl("test")
	if err != nil {
		t.Fatal(err)
	}
	if !oom.OomKillDisable {
		t.Error("expected oom_kill_disable to be set")
	}
	if oom.UnderOom {
		t.Error("expected under_oom to be clear")
	}
	if oom.OomKill != 3 {
		t.Errorf("expected oom_kill 3 but received %d", oom.OomKill)
	}
}

func TestMemoryForceEmpty(t *testing.T) {
	mock := newMock(t)
	memory := NewMemory(mock.root)
	if err := memory.Create("test", nil); err != nil {
		t.Fatal(err)
	}
	if err := memory.ForceEmpty("test"); err != nil {
		t.Fatal(err)
	}
	if v := mock.readValue(t, "memory", "test", "memory.force_empty"); v != "0" {
		t.Fatalf("expected 0 but received %q", v)
	}
}

func TestMemoryOOMEventFDMissingControl(t *testing.T) {
	mock := newMock(t)
	memory := NewMemory(mock.root)
	if err := memory.Create("test", nil); err != nil {
		t.Fatal(err)
	}
	if _, err := memory.OOMEventFD("test"); err != ErrMemoryNotSupported {
		t.Fatalf("expected ErrMemoryNotSupported but received %v", err)
	}
}
