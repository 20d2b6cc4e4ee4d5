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

func TestCpuApplyRoundTrip(t *testing.T) {
	mock := newMock(t)
	cpu := NewCpu(mock.root)
	var (
		shares = uint64(1000)
		quota  = int64(500000)
		period = uint64(1000000)
	)
	if err := cpu.Create("test", &Resources{
		CPU: &CPUResources{
			Shares:   &shares,
			QuotaUs:  &quota,
			PeriodUs: &period,
		},
	}); err != nil {
		t.Fatal(err)
	}
	gotShares, err := cpu.Shares("test")
	if err != nil {
		t.Fatal(err)
	}
	if gotShares != shares {
		t.Errorf("expected shares %d but received %d", shares, gotShares)
	}
	gotQuota, err := cpu.QuotaUs("test")
	if err != nil {
		t.Fatal(err)
	}
	if gotQuota != quota {
		t.Errorf("expected quota %d but received %d", quota, gotQuota)
	}
	gotPeriod, err := cpu.PeriodUs("test")
	if err != nil {
		t.Fatal(err)
	}
	if gotPeriod != period {
		t.Errorf("expected period %d but received %d", period, gotPeriod)
	}
}

func TestCpuApplyUnlimitedQuota(t *testing.T) {
	mock := newMock(t)
	cpu := NewCpu(mock.root)
	quota := Unlimited
	if err := cpu.Create("test", &Resources{
		CPU: &CPUResources{
			QuotaUs: &quota,
		},
	}); err != nil {
		t.Fatal(err)
	}
	// the sentinel still issues a write so a previous limit is cleared
	if v := mock.readValue(t, "cpu", "test", "cpu.cfs_quota_us"); v != "-1" {
		t.Fatalf("expected -1 but received %q", v)
	}
}

func TestCpuApplyUnsetWritesNothing(t *testing.T) {
	mock := newMock(t)
	cpu := NewCpu(mock.root)
	if err := cpu.Create("test", &Resources{CPU: &CPUResources{}}); err != nil {
		t.Fatal(err)
	}
	entries, err := os.ReadDir(filepath.Join(mock.root, "cpu", "test"))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected no writes but found %v", entries)
	}
}

func TestCpuStat(t *testing.T) {
	mock := newMock(t)
	cpu := NewCpu(mock.root)
	if err := cpu.Create("test", nil); err != nil {
		t.Fatal(err)
	}
	data := "nr_periods 100\nnr_throttled 20\nthrottled_time 1000000\n"
	if err := os.WriteFile(
		filepath.Join(mock.root, "cpu", "test", "cpu.stat"),
		[]byte(data),
		defaultFilePerm,
	); err != nil {
		t.Fatal(err)
	}
	var stats Stats
	if err := cpu.Stat("test", &stats); err != nil {
		t.Fatal(err)
	}
	throttle := stats.CPU.Throttling
	if throttle.Periods != 100 || throttle.ThrottledPeriods != 20 || throttle.ThrottledTime != 1000000 {
		t.Fatalf("unexpected throttling stats %+v", throttle)
	}
}

func TestCpuStatBadFormat(t *testing.T) {
	mock := newMock(t)
	cpu := NewCpu(mock.root)
	if err := cpu.Create("test", nil); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(
		filepath.Join(mock.root, "cpu", "test", "cpu.stat"),
		[]byte("nr_periods one hundred\n"),
		defaultFilePerm,
	); err != nil {
		t.Fatal(err)
	}
	var stats Stats
	if err := cpu.Stat("test", &stats); err == nil {
		t.Fatal("expected a parse error")
	}
}
