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

func TestFreezerStateParse(t *testing.T) {
	mock := newMock(t)
	freezer := NewFreezer(mock.root)
	if err := freezer.Create("test", nil); err != nil {
		t.Fatal(err)
	}
	dir := filepath.Join(mock.root, "freezer", "test")
	for raw, expected := range map[string]State{
		"FROZEN\n":   Frozen,
		"FREEZING\n": Freezing,
		"THAWED\n":   Thawed,
		"garbage\n":  Unknown,
	} {
		if err := os.WriteFile(filepath.Join(dir, "freezer.state"), []byte(raw), defaultFilePerm); err != nil {
			t.Fatal(err)
		}
		state, err := freezer.state("test")
		if err != nil {
			t.Fatal(err)
		}
		if state != expected {
			t.Errorf("expected %s for %q but received %s", expected, raw, state)
		}
	}
}

func TestFreezerFreezeWritesState(t *testing.T) {
	mock := newMock(t)
	freezer := NewFreezer(mock.root)
	if err := freezer.Create("test", nil); err != nil {
		t.Fatal(err)
	}
	if err := freezer.Freeze("test"); err != nil {
		t.Fatal(err)
	}
	if v := mock.readValue(t, "freezer", "test", "freezer.state"); v != "FROZEN" {
		t.Fatalf("expected FROZEN but received %q", v)
	}
	if err := freezer.Thaw("test"); err != nil {
		t.Fatal(err)
	}
	if v := mock.readValue(t, "freezer", "test", "freezer.state"); v != "THAWED" {
		t.Fatalf("expected THAWED but received %q", v)
	}
}
