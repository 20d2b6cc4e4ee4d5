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
	"fmt"
	"os"
)

// Hierarchy supplies the subsystem handles of a mounted cgroup v1
// layout, each handle bound to its own mount root
type Hierarchy func() ([]Subsystem, error)

// Default returns all the subsystems mounted under the v1 mountpoint
// discovered from /proc/self/mountinfo, keeping only those whose
// hierarchy root actually exists
func Default() ([]Subsystem, error) {
	// a unified only mount carries no v1 hierarchies to discover
	if cgroupV2Mounted() {
		return nil, ErrMountPointNotExist
	}
	root, err := v1MountPoint()
	if err != nil {
		return nil, err
	}
	subsystems, err := defaults(root)
	if err != nil {
		return nil, err
	}
	var enabled []Subsystem
	for _, s := range pathers(subsystems) {
		// check and remove the default groups that do not exist
		if _, err := os.Lstat(s.Path("/")); err == nil {
			enabled = append(enabled, s)
		}
	}
	return enabled, nil
}

// MountRoot returns a Hierarchy over an explicit mountpoint with every
// default subsystem expected at <root>/<name>. Unlike Default no
// existence filtering is done: a subsystem whose directory is absent
// reports ErrNotMounted when the group is created.
func MountRoot(root string) Hierarchy {
	return func() ([]Subsystem, error) {
		return defaults(root)
	}
}

// Single returns a Hierarchy with a single subsystem taken from the base
// hierarchy
func Single(baseHierarchy Hierarchy, subsystem Name) Hierarchy {
	return func() ([]Subsystem, error) {
		subsystems, err := baseHierarchy()
		if err != nil {
			return nil, err
		}
		for _, s := range subsystems {
			if s.Name() == subsystem {
				return []Subsystem{
					s,
				}, nil
			}
		}
		return nil, fmt.Errorf("cgroup1: unable to find subsystem %s", subsystem)
	}
}

// defaults returns all known subsystems rooted under root
func defaults(root string) ([]Subsystem, error) {
	h, err := NewHugetlb(root)
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	s := []Subsystem{
		NewNamed(root, "systemd"),
		NewFreezer(root),
		NewPids(root),
		NewNetCls(root),
		NewNetPrio(root),
		NewPerfEvent(root),
		NewCpuset(root),
		NewCpu(root),
		NewCpuacct(root),
		NewMemory(root),
		NewBlkio(root),
		NewRdma(root),
	}
	// only add the devices cgroup if we are not in a user namespace
	// because modifications are not allowed
	if !RunningInUserNS() {
		s = append(s, NewDevices(root))
	}
	// add the hugetlb cgroup if error wasn't due to missing hugetlb
	// cgroup support on the host
	if err == nil {
		s = append(s, h)
	}
	return s, nil
}
