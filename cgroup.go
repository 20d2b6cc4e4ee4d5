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
	"strconv"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Cgroup handles interactions with the individual subsystems of one
// logical control group spanning several mounted hierarchies
type Cgroup interface {
	// New creates a new cgroup under the calling cgroup
	New(name string, resources *Resources) (Cgroup, error)
	// Add adds a process to the cgroup (cgroup.procs) in every subsystem
	Add(process Process) error
	// AddTask adds a task (thread) to the cgroup (tasks file)
	AddTask(process Process) error
	// Delete removes the cgroup as a whole from every subsystem
	Delete() error
	// MoveTo moves all the processes under the calling cgroup to the provided one
	MoveTo(destination Cgroup) error
	// Stat returns the stats for all subsystems in the cgroup
	Stat(handlers ...ErrorHandler) (*Stats, error)
	// Apply writes the set resource fields of every configured subsystem
	Apply(resources *Resources) error
	// Processes returns the processes in one subsystem of the cgroup
	Processes(subsystem Name, recursive bool) ([]Process, error)
	// Tasks returns the tasks in one subsystem of the cgroup
	Tasks(subsystem Name, recursive bool) ([]Task, error)
	// Freeze freezes or pauses all processes inside the cgroup
	Freeze() error
	// Thaw thaw or resumes all processes inside the cgroup
	Thaw() error
	// OOMEventFD returns the memory subsystem's event fd for OOM events
	OOMEventFD() (uintptr, error)
	// State returns the cgroups current state
	State() State
	// Subsystems returns all the subsystems in the cgroup
	Subsystems() []Subsystem
	// Subsystem returns the subsystem with the given name, or nil
	Subsystem(name Name) Subsystem
	// ReadControl reads a raw control file under one subsystem's directory
	ReadControl(subsystem Name, name string) ([]byte, error)
	// WriteControl writes a raw control file under one subsystem's directory
	WriteControl(subsystem Name, name string, data []byte) error
}

// New returns a new control group over the path resolved against every
// subsystem the hierarchy reports, creating each subsystem directory and
// applying the initial resources.
//
// Subsystem creation is not atomic across hierarchies. When one or more
// subsystems fail (for example a hierarchy that is not mounted) the
// remaining subsystems are still created and the returned error is a
// *PartialError naming each failed subsystem; the returned Cgroup is
// usable over the subsystems that succeeded.
func New(hierarchy Hierarchy, path Path, resources *Resources, opts ...InitOpts) (Cgroup, error) {
	config := newInitConfig()
	for _, o := range opts {
		if err := o(config); err != nil {
			return nil, err
		}
	}
	subsystems, err := hierarchy()
	if err != nil {
		return nil, err
	}
	var (
		active  []Subsystem
		partial = newPartialError("create")
	)
	for _, s := range subsystems {
		if err := initializeSubsystem(s, path, resources); err != nil {
			if config.InitCheck != nil {
				if skerr := config.InitCheck(s, path, err); skerr != nil {
					if skerr == ErrIgnoreSubsystem {
						logrus.WithField("subsystem", s.Name()).
							WithError(err).Debug("skipping subsystem")
						continue
					}
					return nil, skerr
				}
				continue
			}
			partial.Failed[s.Name()] = err
			continue
		}
		active = append(active, s)
	}
	if len(active) == 0 {
		if err := partial.orNil(); err != nil {
			return nil, err
		}
		return nil, ErrNoSubsystems
	}
	return &cgroup{
		path:       path,
		subsystems: active,
	}, partial.orNil()
}

// Load will load an existing cgroup and allow it to be controlled
func Load(hierarchy Hierarchy, path Path, opts ...InitOpts) (Cgroup, error) {
	config := newInitConfig()
	for _, o := range opts {
		if err := o(config); err != nil {
			return nil, err
		}
	}
	var activeSubsystems []Subsystem
	subsystems, err := hierarchy()
	if err != nil {
		return nil, err
	}
	// check that the subsystems still exist, and keep only those that do
	for _, s := range pathers(subsystems) {
		p, err := path(s.Name())
		if err != nil {
			if os.IsNotExist(errors.Cause(err)) {
				return nil, ErrCgroupDeleted
			}
			if err == ErrControllerNotActive {
				if config.InitCheck != nil {
					if skerr := config.InitCheck(s, path, err); skerr != nil {
						if skerr != ErrIgnoreSubsystem {
							return nil, skerr
						}
					}
				}
				continue
			}
			return nil, err
		}
		if _, err := os.Lstat(s.Path(p)); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, err
		}
		activeSubsystems = append(activeSubsystems, s)
	}
	// if we do not have any active systems then the cgroup is deleted
	if len(activeSubsystems) == 0 {
		return nil, ErrCgroupDeleted
	}
	return &cgroup{
		path:       path,
		subsystems: activeSubsystems,
	}, nil
}

type cgroup struct {
	path Path

	subsystems []Subsystem
	mu         sync.Mutex
	err        error
}

// New returns a new sub cgroup
func (c *cgroup) New(name string, resources *Resources) (Cgroup, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return nil, c.err
	}
	path := subPath(c.path, name)
	partial := newPartialError("create")
	for _, s := range c.subsystems {
		if err := initializeSubsystem(s, path, resources); err != nil {
			partial.Failed[s.Name()] = err
		}
	}
	return &cgroup{
		path:       path,
		subsystems: c.subsystems,
	}, partial.orNil()
}

// Subsystems returns all the subsystems that are currently being
// consumed by the group
func (c *cgroup) Subsystems() []Subsystem {
	return c.subsystems
}

// Subsystem returns the subsystem with the given name, or nil when the
// group does not span it
func (c *cgroup) Subsystem(name Name) Subsystem {
	return c.getSubsystem(name)
}

// Add writes the pid of the provided process to cgroup.procs of every
// subsystem. Failures are collected per subsystem into a *PartialError
// while the remaining subsystems are still attempted; attaches that
// already succeeded are not undone.
func (c *cgroup) Add(process Process) error {
	return c.writePid(process, cgroupProcs, "add")
}

// AddTask writes the pid of the provided task (thread) to the tasks file
// of every subsystem, with the same partial-failure policy as Add
func (c *cgroup) AddTask(process Process) error {
	return c.writePid(process, cgroupTasks, "add task")
}

func (c *cgroup) writePid(process Process, file string, op string) error {
	if process.Pid <= 0 {
		return ErrInvalidPid
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	partial := newPartialError(op)
	for _, s := range pathers(c.subsystems) {
		p, err := c.path(s.Name())
		if err != nil {
			partial.Failed[s.Name()] = err
			continue
		}
		if err := os.WriteFile(
			filepath.Join(s.Path(p), file),
			[]byte(strconv.Itoa(process.Pid)),
			defaultFilePerm,
		); err != nil {
			partial.Failed[s.Name()] = err
		}
	}
	return partial.orNil()
}

// Delete will remove the control group from each of the subsystems
// registered. A subsystem whose directory is already absent counts as
// deleted; remaining failures are aggregated per subsystem.
func (c *cgroup) Delete() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	partial := newPartialError("delete")
	for _, s := range c.subsystems {
		sp, err := c.path(s.Name())
		if err != nil {
			partial.Failed[s.Name()] = err
			continue
		}
		if d, ok := s.(deleter); ok {
			if err := d.Delete(sp); err != nil && !os.IsNotExist(err) {
				partial.Failed[s.Name()] = err
			}
			continue
		}
		if p, ok := s.(pather); ok {
			path := p.Path(sp)
			if _, err := os.Lstat(path); err != nil {
				if os.IsNotExist(err) {
					continue
				}
				partial.Failed[s.Name()] = err
				continue
			}
			if err := remove(path); err != nil {
				partial.Failed[s.Name()] = err
			}
		}
	}
	if err := partial.orNil(); err != nil {
		return err
	}
	c.err = ErrCgroupDeleted
	return nil
}

// Stat returns the current metrics for the cgroup
func (c *cgroup) Stat(handlers ...ErrorHandler) (*Stats, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return nil, c.err
	}
	if len(handlers) == 0 {
		handlers = append(handlers, errPassthrough)
	}
	var (
		stats = &Stats{}
		wg    = &sync.WaitGroup{}
		errs  = make(chan error, len(c.subsystems))
	)
	for _, s := range c.subsystems {
		if ss, ok := s.(stater); ok {
			sp, err := c.path(s.Name())
			if err != nil {
				return nil, err
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				if err := ss.Stat(sp, stats); err != nil {
					for _, eh := range handlers {
						if herr := eh(err); herr != nil {
							errs <- herr
						}
					}
				}
			}()
		}
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		return nil, err
	}
	return stats, nil
}

// Apply writes the set resource fields of every subsystem whose record
// is present in resources. Each subsystem's writes stop at its first
// failing file; other subsystems are still attempted and writes that
// already took effect are not rolled back.
func (c *cgroup) Apply(resources *Resources) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	partial := newPartialError("apply")
	for _, s := range c.subsystems {
		if a, ok := s.(applier); ok {
			sp, err := c.path(s.Name())
			if err != nil {
				partial.Failed[s.Name()] = err
				continue
			}
			if err := a.Apply(sp, resources); err != nil {
				partial.Failed[s.Name()] = err
			}
		}
	}
	return partial.orNil()
}

// Processes returns the processes running inside the cgroup along
// with the subsystem used, pid, and path
func (c *cgroup) Processes(subsystem Name, recursive bool) ([]Process, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return nil, c.err
	}
	return c.processes(subsystem, recursive)
}

func (c *cgroup) processes(subsystem Name, recursive bool) ([]Process, error) {
	s := c.getSubsystem(subsystem)
	if s == nil {
		return nil, ErrControllerNotActive
	}
	sp, err := c.path(subsystem)
	if err != nil {
		return nil, err
	}
	path := s.(pather).Path(sp)
	var processes []Process
	err = filepath.Walk(path, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !recursive && info.IsDir() {
			if p == path {
				return nil
			}
			return filepath.SkipDir
		}
		dir, name := filepath.Split(p)
		if name != cgroupProcs {
			return nil
		}
		procs, err := readPids(dir, subsystem)
		if err != nil {
			return err
		}
		processes = append(processes, procs...)
		return nil
	})
	return processes, err
}

// Tasks returns the tasks running inside the cgroup along
// with the subsystem used, pid, and path
func (c *cgroup) Tasks(subsystem Name, recursive bool) ([]Task, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return nil, c.err
	}
	s := c.getSubsystem(subsystem)
	if s == nil {
		return nil, ErrControllerNotActive
	}
	sp, err := c.path(subsystem)
	if err != nil {
		return nil, err
	}
	path := s.(pather).Path(sp)
	var out []Task
	err = filepath.Walk(path, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !recursive && info.IsDir() {
			if p == path {
				return nil
			}
			return filepath.SkipDir
		}
		dir, name := filepath.Split(p)
		if name != cgroupTasks {
			return nil
		}
		tasks, err := readTasksPids(dir, subsystem)
		if err != nil {
			return err
		}
		out = append(out, tasks...)
		return nil
	})
	return out, err
}

// Freeze freezes the entire cgroup and all the processes inside it
func (c *cgroup) Freeze() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	s := c.getSubsystem(Freezer)
	if s == nil {
		return ErrFreezerNotSupported
	}
	sp, err := c.path(Freezer)
	if err != nil {
		return err
	}
	return s.(*freezerController).Freeze(sp)
}

// Thaw thaws out the cgroup and all the processes inside it
func (c *cgroup) Thaw() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	s := c.getSubsystem(Freezer)
	if s == nil {
		return ErrFreezerNotSupported
	}
	sp, err := c.path(Freezer)
	if err != nil {
		return err
	}
	return s.(*freezerController).Thaw(sp)
}

// OOMEventFD returns the memory cgroup's out of memory event fd that
// triggers when processes inside the cgroup receive an oom event. Returns
// ErrMemoryNotSupported if memory cgroups is not supported.
func (c *cgroup) OOMEventFD() (uintptr, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return 0, c.err
	}
	s := c.getSubsystem(Memory)
	if s == nil {
		return 0, ErrMemoryNotSupported
	}
	sp, err := c.path(Memory)
	if err != nil {
		return 0, err
	}
	return s.(*memoryController).OOMEventFD(sp)
}

// State returns the state of the cgroup and its processes
func (c *cgroup) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checkExists()
	if c.err != nil && c.err == ErrCgroupDeleted {
		return Deleted
	}
	s := c.getSubsystem(Freezer)
	if s == nil {
		return Thawed
	}
	sp, err := c.path(Freezer)
	if err != nil {
		return Unknown
	}
	state, err := s.(*freezerController).state(sp)
	if err != nil {
		return Unknown
	}
	return state
}

// MoveTo does a recursive move subsystem by subsystem of all the
// processes inside the group. cgroup v1 has no primitive for removing a
// pid; moving it to another group is the way membership ends.
func (c *cgroup) MoveTo(destination Cgroup) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	for _, s := range c.subsystems {
		processes, err := c.processes(s.Name(), true)
		if err != nil {
			return err
		}
		for _, p := range processes {
			if err := destination.Add(p); err != nil {
				if strings.Contains(err.Error(), "no such process") {
					continue
				}
				return err
			}
		}
	}
	return nil
}

// ReadControl reads a control file this library does not model
func (c *cgroup) ReadControl(subsystem Name, name string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return nil, c.err
	}
	p, err := c.controlPath(subsystem, name)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(p)
}

// WriteControl writes a control file this library does not model
func (c *cgroup) WriteControl(subsystem Name, name string, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	p, err := c.controlPath(subsystem, name)
	if err != nil {
		return err
	}
	return os.WriteFile(p, data, defaultFilePerm)
}

func (c *cgroup) controlPath(subsystem Name, name string) (string, error) {
	if err := checkSegments(name); err != nil {
		return "", err
	}
	s := c.getSubsystem(subsystem)
	if s == nil {
		return "", ErrControllerNotActive
	}
	sp, err := c.path(subsystem)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.(pather).Path(sp), name), nil
}

func (c *cgroup) getSubsystem(n Name) Subsystem {
	for _, s := range c.subsystems {
		if s.Name() == n {
			return s
		}
	}
	return nil
}

func (c *cgroup) checkExists() {
	for _, s := range pathers(c.subsystems) {
		p, err := c.path(s.Name())
		if err != nil {
			return
		}
		if _, err := os.Lstat(s.Path(p)); err != nil {
			if os.IsNotExist(err) {
				c.err = ErrCgroupDeleted
				return
			}
		}
	}
}
