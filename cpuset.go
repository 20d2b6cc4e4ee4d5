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
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

func NewCpuset(root string) *cpusetController {
	return &cpusetController{
		root: filepath.Join(root, string(Cpuset)),
	}
}

type cpusetController struct {
	root string
}

func (c *cpusetController) Name() Name {
	return Cpuset
}

func (c *cpusetController) Path(path string) string {
	return filepath.Join(c.root, path)
}

func (c *cpusetController) Create(path string, resources *Resources) error {
	if err := c.ensureParent(c.Path(path), c.root); err != nil {
		return err
	}
	if err := mkdirAll(c.root, c.Path(path)); err != nil {
		return err
	}
	if err := c.copyIfNeeded(c.Path(path), filepath.Dir(c.Path(path))); err != nil {
		return err
	}
	return c.Apply(path, resources)
}

func (c *cpusetController) Apply(path string, resources *Resources) error {
	if resources == nil || resources.CPUSet == nil {
		return nil
	}
	set := resources.CPUSet
	for _, t := range []struct {
		name  string
		value []byte
	}{
		{
			name:  "cpus",
			value: stringValue(set.Cpus),
		},
		{
			name:  "mems",
			value: stringValue(set.Mems),
		},
		{
			name:  "cpu_exclusive",
			value: boolValue(set.CpuExclusive),
		},
		{
			name:  "mem_exclusive",
			value: boolValue(set.MemExclusive),
		},
		{
			name:  "mem_hardwall",
			value: boolValue(set.MemHardwall),
		},
		{
			name:  "memory_migrate",
			value: boolValue(set.MemoryMigrate),
		},
		{
			name:  "memory_spread_page",
			value: boolValue(set.MemorySpreadPage),
		},
		{
			name:  "memory_spread_slab",
			value: boolValue(set.MemorySpreadSlab),
		},
		{
			name:  "sched_load_balance",
			value: boolValue(set.SchedLoadBalance),
		},
		{
			name:  "sched_relax_domain_level",
			value: intValue(set.SchedRelaxDomainLevel),
		},
	} {
		if t.value != nil {
			if err := os.WriteFile(
				filepath.Join(c.Path(path), "cpuset."+t.name),
				t.value,
				defaultFilePerm,
			); err != nil {
				return err
			}
		}
	}
	return nil
}

// Cpus reads the list format contents of cpuset.cpus
func (c *cpusetController) Cpus(path string) (string, error) {
	v, err := os.ReadFile(filepath.Join(c.Path(path), "cpuset.cpus"))
	if err != nil {
		return "", err
	}
	return trimSpace(v), nil
}

// Mems reads the list format contents of cpuset.mems
func (c *cpusetController) Mems(path string) (string, error) {
	v, err := os.ReadFile(filepath.Join(c.Path(path), "cpuset.mems"))
	if err != nil {
		return "", err
	}
	return trimSpace(v), nil
}

// MemoryPressure reads cpuset.memory_pressure
func (c *cpusetController) MemoryPressure(path string) (uint64, error) {
	return readUint(filepath.Join(c.Path(path), "cpuset.memory_pressure"))
}

// MemoryPressureEnabled reads the root-only cpuset.memory_pressure_enabled
// toggle
func (c *cpusetController) MemoryPressureEnabled() (bool, error) {
	v, err := readUint(filepath.Join(c.root, "cpuset.memory_pressure_enabled"))
	if err != nil {
		return false, err
	}
	return v == 1, nil
}

// SetMemoryPressureEnabled flips the root-only
// cpuset.memory_pressure_enabled toggle. This mutates state shared by the
// whole hierarchy and must not race with anything else relying on it.
func (c *cpusetController) SetMemoryPressureEnabled(path string, enable bool) error {
	if p := filepath.Clean(path); p != "/" && p != "." {
		return ErrRootMemoryPressureOnly
	}
	return os.WriteFile(
		filepath.Join(c.root, "cpuset.memory_pressure_enabled"),
		boolValue(&enable),
		defaultFilePerm,
	)
}

func (c *cpusetController) getValues(path string) (cpus []byte, mems []byte, err error) {
	if cpus, err = os.ReadFile(filepath.Join(path, "cpuset.cpus")); err != nil && !os.IsNotExist(err) {
		return
	}
	if mems, err = os.ReadFile(filepath.Join(path, "cpuset.mems")); err != nil && !os.IsNotExist(err) {
		return
	}
	return cpus, mems, nil
}

// ensureParent makes sure that the parent directories of current
// are created and populated with the proper cpus and mems files copied
// from their parent if the values are a file with a new line char
func (c *cpusetController) ensureParent(current, root string) error {
	parent := filepath.Dir(current)
	if _, err := filepath.Rel(root, parent); err != nil {
		return nil
	}
	// Avoid infinite recursion.
	if parent == current {
		return fmt.Errorf("cgroup1: cpuset parent path is outside cgroup root")
	}
	if cleanPath(parent) != cleanPath(root) {
		if err := c.ensureParent(parent, root); err != nil {
			return err
		}
	}
	if err := mkdirAll(root, current); err != nil {
		return err
	}
	return c.copyIfNeeded(current, parent)
}

// copyIfNeeded copies the cpuset.cpus and cpuset.mems from the parent
// directory to the current directory if the file's contents are 0
func (c *cpusetController) copyIfNeeded(current, parent string) error {
	var (
		err                      error
		currentCpus, currentMems []byte
		parentCpus, parentMems   []byte
	)
	if currentCpus, currentMems, err = c.getValues(current); err != nil {
		return err
	}
	if parentCpus, parentMems, err = c.getValues(parent); err != nil {
		return err
	}
	if isEmpty(currentCpus) && !isEmpty(parentCpus) {
		if err := os.WriteFile(
			filepath.Join(current, "cpuset.cpus"),
			parentCpus,
			defaultFilePerm,
		); err != nil {
			return err
		}
	}
	if isEmpty(currentMems) && !isEmpty(parentMems) {
		if err := os.WriteFile(
			filepath.Join(current, "cpuset.mems"),
			parentMems,
			defaultFilePerm,
		); err != nil {
			return err
		}
	}
	return nil
}

func isEmpty(b []byte) bool {
	return len(bytes.Trim(b, "\n")) == 0
}

func stringValue(v *string) []byte {
	if v == nil {
		return nil
	}
	return []byte(*v)
}

func boolValue(v *bool) []byte {
	if v == nil {
		return nil
	}
	if *v {
		return []byte("1")
	}
	return []byte("0")
}

func intValue(v *int64) []byte {
	if v == nil {
		return nil
	}
	return []byte(strconv.FormatInt(*v, 10))
}
