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
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestCreate(t *testing.T) {
	mock := newMock(t)
	control, err := New(mock.hierarchy, StaticPath("test"), &Resources{})
	if err != nil {
		t.Fatal(err)
	}
	if control == nil {
		t.Fatal("control is nil")
	}
	for _, n := range mockSubsystems {
		if _, err := os.Stat(filepath.Join(mock.root, string(n), "test")); err != nil {
			if os.IsNotExist(err) {
				t.Errorf("group %s was not created", n)
				continue
			}
			t.Errorf("group %s was not created correctly %s", n, err)
		}
	}
}

func TestCreateIdempotent(t *testing.T) {
	mock := newMock(t)
	shares := uint64(512)
	if _, err := New(mock.hierarchy, StaticPath("test"), &Resources{
		CPU: &CPUResources{
			Shares: &shares,
		},
	}); err != nil {
		t.Fatal(err)
	}
	// creating the same group again succeeds and leaves settings alone
	if _, err := New(mock.hierarchy, StaticPath("test"), &Resources{}); err != nil {
		t.Fatal(err)
	}
	if v := mock.readValue(t, "cpu", "test", "cpu.shares"); v != "512" {
		t.Fatalf("expected cpu.shares to still read 512 but received %q", v)
	}
}

func TestCreateNotMountedPartial(t *testing.T) {
	mock := newMock(t)
	mock.unmount(t, Pids)
	mock.unmount(t, Cpuacct)
	control, err := New(mock.hierarchy, StaticPath("test"), &Resources{})
	if err == nil {
		t.Fatal("expected a partial failure for the unmounted subsystems")
	}
	var partial *PartialError
	if !errors.As(err, &partial) {
		t.Fatalf("expected *PartialError but received %T", err)
	}
	// the other subsystems were still created and the control is usable
	if control == nil {
		t.Fatal("control is nil")
	}
	for _, n := range []Name{Pids, Cpuacct} {
		if !errors.Is(partial.Of(n), ErrNotMounted) {
			t.Fatalf("expected %s to fail with ErrNotMounted but received %v", n, partial.Of(n))
		}
		if s := control.Subsystem(n); s != nil {
			t.Fatalf("%s should not be part of the control", n)
		}
		if _, err := os.Stat(filepath.Join(mock.root, string(n))); !os.IsNotExist(err) {
			t.Fatalf("%s hierarchy root should not have been re-created", n)
		}
	}
	if len(partial.Failed) != 2 {
		t.Fatalf("expected only pids and cpuacct to fail but received %v", partial.Failed)
	}
	for _, n := range mockSubsystems {
		if n == Pids || n == Cpuacct {
			continue
		}
		if _, err := os.Stat(filepath.Join(mock.root, string(n), "test")); err != nil {
			t.Errorf("group %s was not created: %s", n, err)
		}
	}
}

func TestAdd(t *testing.T) {
	mock := newMock(t)
	control, err := New(mock.hierarchy, StaticPath("test"), &Resources{})
	if err != nil {
		t.Fatal(err)
	}
	if err := control.Add(Process{Pid: 1234}); err != nil {
		t.Fatal(err)
	}
	for _, n := range mockSubsystems {
		if v := mock.readValue(t, string(n), "test", "cgroup.procs"); v != "1234" {
			t.Errorf("expected %s cgroup.procs to read 1234 but received %q", n, v)
		}
	}
	procs, err := control.Processes(Freezer, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(procs) != 1 || procs[0].Pid != 1234 {
		t.Fatalf("expected [1234] but received %v", procs)
	}
}

func TestAddTask(t *testing.T) {
	mock := newMock(t)
	control, err := New(mock.hierarchy, StaticPath("test"), &Resources{})
	if err != nil {
		t.Fatal(err)
	}
	if err := control.AddTask(Process{Pid: 4321}); err != nil {
		t.Fatal(err)
	}
	tasks, err := control.Tasks(Freezer, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(tasks) != 1 || tasks[0].Pid != 4321 {
		t.Fatalf("expected [4321] but received %v", tasks)
	}
}

func TestAddInvalidPid(t *testing.T) {
	mock := newMock(t)
	control, err := New(mock.hierarchy, StaticPath("test"), &Resources{})
	if err != nil {
		t.Fatal(err)
	}
	if err := control.Add(Process{Pid: 0}); err != ErrInvalidPid {
		t.Fatalf("expected ErrInvalidPid but received %v", err)
	}
	if err := control.AddTask(Process{Pid: -1}); err != ErrInvalidPid {
		t.Fatalf("expected ErrInvalidPid but received %v", err)
	}
}

func TestDelete(t *testing.T) {
	mock := newMock(t)
	control, err := New(mock.hierarchy, StaticPath("test"), &Resources{})
	if err != nil {
		t.Fatal(err)
	}
	if err := control.Delete(); err != nil {
		t.Fatal(err)
	}
	for _, n := range mockSubsystems {
		if _, err := os.Stat(filepath.Join(mock.root, string(n), "test")); !os.IsNotExist(err) {
			t.Errorf("expected group %s to be removed", n)
		}
	}
	if state := control.State(); state != Deleted {
		t.Fatalf("expected Deleted state but received %v", state)
	}
}

func TestDeleteAbsentIsIdempotent(t *testing.T) {
	mock := newMock(t)
	first, err := New(mock.hierarchy, StaticPath("test"), &Resources{})
	if err != nil {
		t.Fatal(err)
	}
	second, err := New(mock.hierarchy, StaticPath("test"), &Resources{})
	if err != nil {
		t.Fatal(err)
	}
	if err := first.Delete(); err != nil {
		t.Fatal(err)
	}
	// the directories are gone; deleting through another handle still
	// succeeds
	if err := second.Delete(); err != nil {
		t.Fatal(err)
	}
}

func TestApplyAggregatesFailures(t *testing.T) {
	mock := newMock(t)
	control, err := New(mock.hierarchy, StaticPath("test"), &Resources{})
	if err != nil {
		t.Fatal(err)
	}
	// remove one subsystem directory out from under the control
	if err := os.RemoveAll(filepath.Join(mock.root, "cpu", "test")); err != nil {
		t.Fatal(err)
	}
	shares := uint64(100)
	limit := int64(1024 * 1024)
	err = control.Apply(&Resources{
		CPU: &CPUResources{
			Shares: &shares,
		},
		Memory: &MemoryResources{
			Limit: &limit,
		},
	})
	var partial *PartialError
	if !errors.As(err, &partial) {
		t.Fatalf("expected *PartialError but received %v", err)
	}
	if partial.Of(Cpu) == nil {
		t.Fatal("expected cpu to be the failed subsystem")
	}
	// the memory write still took effect
	if v := mock.readValue(t, "memory", "test", "memory.limit_in_bytes"); v != "1048576" {
		t.Fatalf("expected memory.limit_in_bytes to read 1048576 but received %q", v)
	}
}

func TestApplyEmptyRecordWritesNothing(t *testing.T) {
	mock := newMock(t)
	control, err := New(mock.hierarchy, StaticPath("test"), &Resources{})
	if err != nil {
		t.Fatal(err)
	}
	// present but empty records are a no-op
	if err := control.Apply(&Resources{
		CPU:    &CPUResources{},
		Memory: &MemoryResources{},
		Pids:   &PidsResources{},
	}); err != nil {
		t.Fatal(err)
	}
	dir := filepath.Join(mock.root, "cpu", "test")
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected no control files to be written but found %v", entries)
	}
}

func TestLoad(t *testing.T) {
	mock := newMock(t)
	if _, err := New(mock.hierarchy, StaticPath("test"), &Resources{}); err != nil {
		t.Fatal(err)
	}
	control, err := Load(mock.hierarchy, StaticPath("test"))
	if err != nil {
		t.Fatal(err)
	}
	if len(control.Subsystems()) != len(mockSubsystems) {
		t.Fatalf("expected %d subsystems but received %d", len(mockSubsystems), len(control.Subsystems()))
	}
}

func TestLoadDeleted(t *testing.T) {
	mock := newMock(t)
	if _, err := Load(mock.hierarchy, StaticPath("missing")); err != ErrCgroupDeleted {
		t.Fatalf("expected ErrCgroupDeleted but received %v", err)
	}
}

func TestNestedNew(t *testing.T) {
	mock := newMock(t)
	control, err := New(mock.hierarchy, StaticPath("test"), &Resources{})
	if err != nil {
		t.Fatal(err)
	}
	child, err := control.New("child", &Resources{})
	if err != nil {
		t.Fatal(err)
	}
	if child == nil {
		t.Fatal("child is nil")
	}
	if _, err := os.Stat(filepath.Join(mock.root, "freezer", "test", "child")); err != nil {
		t.Fatal(err)
	}
}

func TestFreezeThaw(t *testing.T) {
	mock := newMock(t)
	control, err := New(mock.hierarchy, StaticPath("test"), &Resources{})
	if err != nil {
		t.Fatal(err)
	}
	if err := control.Freeze(); err != nil {
		t.Fatal(err)
	}
	if state := control.State(); state != Frozen {
		t.Fatalf("expected Frozen but received %v", state)
	}
	if err := control.Thaw(); err != nil {
		t.Fatal(err)
	}
	if state := control.State(); state != Thawed {
		t.Fatalf("expected Thawed but received %v", state)
	}
}

func TestMoveTo(t *testing.T) {
	mock := newMock(t)
	control, err := New(mock.hierarchy, StaticPath("test"), &Resources{})
	if err != nil {
		t.Fatal(err)
	}
	if err := control.Add(Process{Pid: 999}); err != nil {
		t.Fatal(err)
	}
	destination, err := New(mock.hierarchy, StaticPath("destination"), &Resources{})
	if err != nil {
		t.Fatal(err)
	}
	if err := control.MoveTo(destination); err != nil {
		t.Fatal(err)
	}
	procs, err := destination.Processes(Freezer, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(procs) != 1 || procs[0].Pid != 999 {
		t.Fatalf("expected [999] but received %v", procs)
	}
}

func TestRawControlFiles(t *testing.T) {
	mock := newMock(t)
	control, err := New(mock.hierarchy, StaticPath("test"), &Resources{})
	if err != nil {
		t.Fatal(err)
	}
	if err := control.WriteControl(Cpu, "cpu.unmodeled_knob", []byte("42")); err != nil {
		t.Fatal(err)
	}
	v, err := control.ReadControl(Cpu, "cpu.unmodeled_knob")
	if err != nil {
		t.Fatal(err)
	}
	if trimSpace(v) != "42" {
		t.Fatalf("expected 42 but received %q", v)
	}
	if _, err := control.ReadControl(Cpu, "../escape"); err != ErrInvalidPath {
		t.Fatalf("expected ErrInvalidPath but received %v", err)
	}
}

func TestStatIgnoreNotExist(t *testing.T) {
	mock := newMock(t)
	control, err := New(mock.hierarchy, StaticPath("test"), &Resources{})
	if err != nil {
		t.Fatal(err)
	}
	// the mock has no stat files yet; IgnoreNotExist skips them all
	stats, err := control.Stat(IgnoreNotExist)
	if err != nil {
		t.Fatal(err)
	}
	if stats == nil {
		t.Fatal("stats is nil")
	}
}
