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
	"fmt"
	"os"
	"sort"
	"strings"
)

var (
	ErrInvalidPid             = errors.New("cgroup1: pid must be greater than 0")
	ErrInvalidPath            = errors.New("cgroup1: path must not contain \"..\" segments")
	ErrMountPointNotExist     = errors.New("cgroup1: cgroup mountpoint does not exist")
	ErrNotMounted             = errors.New("cgroup1: subsystem hierarchy is not mounted")
	ErrInvalidFormat          = errors.New("cgroup1: parsing file with invalid format failed")
	ErrCgroupDeleted          = errors.New("cgroup1: cgroup deleted")
	ErrBuilderUsed            = errors.New("cgroup1: builder has already been built")
	ErrFreezerNotSupported    = errors.New("cgroup1: freezer cgroup not supported on this system")
	ErrMemoryNotSupported     = errors.New("cgroup1: memory cgroup not supported on this system")
	ErrIgnoreSubsystem        = errors.New("cgroup1: ignore subsystem")
	ErrNoSubsystems           = errors.New("cgroup1: no subsystems were selected")
	ErrRootMemoryPressureOnly = errors.New("cgroup1: memory_pressure_enabled may only be set on the hierarchy root")
	ErrControllerNotActive    = errors.New("cgroup1: controller is not supported")
)

// ErrorHandler is a function that handles and acts on errors during
// a fan-out operation such as Stat
type ErrorHandler func(err error) error

// IgnoreNotExist ignores any errors that are for not existing files
func IgnoreNotExist(err error) error {
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

func errPassthrough(err error) error {
	return err
}

// PartialError reports a multi-subsystem operation in which one or more
// subsystems failed while the rest may have succeeded. The operation is
// not atomic; subsystems that succeeded are left as they are.
type PartialError struct {
	// Op is the aggregate operation that produced the failures
	Op string
	// Failed maps each failed subsystem to its underlying error
	Failed map[Name]error
}

func (e *PartialError) Error() string {
	names := make([]string, 0, len(e.Failed))
	for n := range e.Failed {
		names = append(names, string(n))
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, n := range names {
		parts = append(parts, fmt.Sprintf("%s: %v", n, e.Failed[Name(n)]))
	}
	return fmt.Sprintf("cgroup1: %s failed for subsystems [%s]", e.Op, strings.Join(parts, "; "))
}

// Of returns the error recorded for the given subsystem, or nil if that
// subsystem did not fail
func (e *PartialError) Of(name Name) error {
	return e.Failed[name]
}

func newPartialError(op string) *PartialError {
	return &PartialError{
		Op:     op,
		Failed: make(map[Name]error),
	}
}

// orNil collapses an empty aggregate into success
func (e *PartialError) orNil() error {
	if len(e.Failed) == 0 {
		return nil
	}
	return e
}
