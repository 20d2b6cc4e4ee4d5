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

// Name is a typed name for a cgroup subsystem
type Name string

const (
	Devices   Name = "devices"
	Hugetlb   Name = "hugetlb"
	Freezer   Name = "freezer"
	Pids      Name = "pids"
	NetCLS    Name = "net_cls"
	NetPrio   Name = "net_prio"
	PerfEvent Name = "perf_event"
	Cpuset    Name = "cpuset"
	Cpu       Name = "cpu"
	Cpuacct   Name = "cpuacct"
	Memory    Name = "memory"
	Blkio     Name = "blkio"
	Rdma      Name = "rdma"
)

// Subsystems returns a complete list of the default cgroup subsystems
// available on most linux systems
func Subsystems() []Name {
	n := []Name{
		Freezer,
		Pids,
		NetCLS,
		NetPrio,
		PerfEvent,
		Cpuset,
		Cpu,
		Cpuacct,
		Memory,
		Blkio,
		Rdma,
		Hugetlb,
	}
	if !RunningInUserNS() {
		n = append(n, Devices)
	}
	return n
}

type Subsystem interface {
	Name() Name
}

type pather interface {
	Subsystem
	Path(path string) string
}

type creator interface {
	Subsystem
	Create(path string, resources *Resources) error
}

type deleter interface {
	Subsystem
	Delete(path string) error
}

type stater interface {
	Subsystem
	Stat(path string, stats *Stats) error
}

type applier interface {
	Subsystem
	Apply(path string, resources *Resources) error
}

func pathers(subystems []Subsystem) []pather {
	var out []pather
	for _, s := range subystems {
		if p, ok := s.(pather); ok {
			out = append(out, p)
		}
	}
	return out
}

// initializeSubsystem creates the subsystem directory for path and applies
// the initial resources. A subsystem whose hierarchy root does not exist
// reports ErrNotMounted.
func initializeSubsystem(s Subsystem, path Path, resources *Resources) error {
	p, err := path(s.Name())
	if err != nil {
		return err
	}
	if c, ok := s.(creator); ok {
		if err := c.Create(p, resources); err != nil {
			return err
		}
	} else if t, ok := s.(pather); ok {
		// do the default create if the group does not have a custom one
		if err := os.MkdirAll(t.Path(p), defaultDirPerm); err != nil {
			return err
		}
	}
	return nil
}

// mkdirAll creates the cgroup directory under root, reporting ErrNotMounted
// when the subsystem's hierarchy root itself is absent
func mkdirAll(root, path string) error {
	if _, err := os.Lstat(root); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrNotMounted, root)
		}
		return err
	}
	return os.MkdirAll(path, defaultDirPerm)
}
