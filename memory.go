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
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

// MemoryPressureLevel corresponds to the memory.pressure_level
// notification levels
type MemoryPressureLevel string

const (
	LowPressure      MemoryPressureLevel = "low"
	MediumPressure   MemoryPressureLevel = "medium"
	CriticalPressure MemoryPressureLevel = "critical"
)

// EventNotificationMode corresponds to the memory.pressure_level
// notification modes
type EventNotificationMode string

const (
	DefaultMode   EventNotificationMode = "default"
	HierarchyMode EventNotificationMode = "hierarchy"
	LocalMode     EventNotificationMode = "local"
)

func NewMemory(root string) *memoryController {
	return &memoryController{
		root: filepath.Join(root, string(Memory)),
	}
}

type memoryController struct {
	root string
}

func (m *memoryController) Name() Name {
	return Memory
}

func (m *memoryController) Path(path string) string {
	return filepath.Join(m.root, path)
}

func (m *memoryController) Create(path string, resources *Resources) error {
	if err := mkdirAll(m.root, m.Path(path)); err != nil {
		return err
	}
	return m.Apply(path, resources)
}

// Apply writes the set fields of resources.Memory. memory.limit_in_bytes
// is written before memory.memsw.limit_in_bytes because the kernel
// requires memsw >= limit; when both are lowered below current usage no
// order is always valid and the kernel's error is returned as is.
func (m *memoryController) Apply(path string, resources *Resources) error {
	if resources == nil || resources.Memory == nil {
		return nil
	}
	mem := resources.Memory
	for _, t := range []struct {
		name  string
		value []byte
	}{
		{
			name:  "limit_in_bytes",
			value: intValue(mem.Limit),
		},
		{
			name:  "memsw.limit_in_bytes",
			value: intValue(mem.MemswLimit),
		},
		{
			name:  "soft_limit_in_bytes",
			value: intValue(mem.SoftLimit),
		},
		{
			name:  "kmem.limit_in_bytes",
			value: intValue(mem.KmemLimit),
		},
		{
			name:  "kmem.tcp.limit_in_bytes",
			value: intValue(mem.KmemTCPLimit),
		},
		{
			name:  "swappiness",
			value: uintValue(mem.Swappiness),
		},
		{
			name:  "oom_control",
			value: boolValue(mem.DisableOOMKiller),
		},
		{
			name:  "use_hierarchy",
			value: boolValue(mem.UseHierarchy),
		},
		{
			name:  "move_charge_at_immigrate",
			value: boolValue(mem.MoveChargeAtImmigrate),
		},
	} {
		if t.value != nil {
			if err := os.WriteFile(
				filepath.Join(m.Path(path), "memory."+t.name),
				t.value,
				defaultFilePerm,
			); err != nil {
				return err
			}
		}
	}
	return nil
}

func (m *memoryController) Stat(path string, stats *Stats) error {
	f, err := os.Open(filepath.Join(m.Path(path), "memory.stat"))
	if err != nil {
		return err
	}
	defer f.Close()
	memory := &MemoryStat{
		Raw: make(map[string]uint64),
	}
	if err := m.parseStats(f, memory); err != nil {
		return err
	}
	for _, t := range []struct {
		module string
		entry  *MemoryEntry
	}{
		{
			module: "",
			entry:  &memory.Usage,
		},
		{
			module: "memsw",
			entry:  &memory.Swap,
		},
		{
			module: "kmem",
			entry:  &memory.Kernel,
		},
		{
			module: "kmem.tcp",
			entry:  &memory.KernelTCP,
		},
	} {
		for _, tt := range []struct {
			name  string
			value *uint64
		}{
			{
				name:  "usage_in_bytes",
				value: &t.entry.Usage,
			},
			{
				name:  "max_usage_in_bytes",
				value: &t.entry.Max,
			},
			{
				name:  "failcnt",
				value: &t.entry.Failcnt,
			},
			{
				name:  "limit_in_bytes",
				value: &t.entry.Limit,
			},
		} {
			parts := []string{"memory"}
			if t.module != "" {
				parts = append(parts, t.module)
			}
			parts = append(parts, tt.name)
			v, err := readUint(filepath.Join(m.Path(path), strings.Join(parts, ".")))
			if err != nil {
				// a kernel without swap accounting or kmem support does not
				// expose these files
				if os.IsNotExist(err) {
					continue
				}
				return err
			}
			*tt.value = v
		}
	}
	stats.Memory = memory
	return nil
}

func (m *memoryController) parseStats(r *os.File, stat *MemoryStat) error {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		key, v, err := parseKV(sc.Text())
		if err != nil {
			return err
		}
		stat.Raw[key] = v
	}
	if err := sc.Err(); err != nil {
		return err
	}
	stat.Cache = stat.Raw["cache"]
	stat.RSS = stat.Raw["rss"]
	stat.RSSHuge = stat.Raw["rss_huge"]
	stat.MappedFile = stat.Raw["mapped_file"]
	stat.Dirty = stat.Raw["dirty"]
	stat.Writeback = stat.Raw["writeback"]
	stat.PgPgIn = stat.Raw["pgpgin"]
	stat.PgPgOut = stat.Raw["pgpgout"]
	stat.PgFault = stat.Raw["pgfault"]
	stat.PgMajFault = stat.Raw["pgmajfault"]
	return nil
}

// OomControl reads and parses memory.oom_control
func (m *memoryController) OomControl(path string) (*OomControl, error) {
	f, err := os.Open(filepath.Join(m.Path(path), "memory.oom_control"))
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var out OomControl
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		key, v, err := parseKV(sc.Text())
		if err != nil {
			return nil, err
		}
		switch key {
		case "oom_kill_disable":
			out.OomKillDisable = v == 1
		case "under_oom":
			out.UnderOom = v == 1
		case "oom_kill":
			out.OomKill = v
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return &out, nil
}

// ForceEmpty triggers reclaim of all reclaimable pages by writing to
// memory.force_empty
func (m *memoryController) ForceEmpty(path string) error {
	return os.WriteFile(
		filepath.Join(m.Path(path), "memory.force_empty"),
		[]byte("0"),
		defaultFilePerm,
	)
}

// OOMEventFD returns an eventfd that triggers when processes in the
// cgroup receive an oom event
func (m *memoryController) OOMEventFD(path string) (uintptr, error) {
	root := m.Path(path)
	f, err := os.Open(filepath.Join(root, "memory.oom_control"))
	if err != nil {
		return 0, ErrMemoryNotSupported
	}
	defer f.Close()
	return m.registerEvent(root, fmt.Sprintf("%d", f.Fd()))
}

// MemoryPressureEventFD returns an eventfd that triggers on the provided
// pressure level and notification mode
func (m *memoryController) MemoryPressureEventFD(path string, level MemoryPressureLevel, mode EventNotificationMode) (uintptr, error) {
	root := m.Path(path)
	f, err := os.Open(filepath.Join(root, "memory.pressure_level"))
	if err != nil {
		return 0, ErrMemoryNotSupported
	}
	defer f.Close()
	return m.registerEvent(root, fmt.Sprintf("%d,%s,%s", f.Fd(), level, mode))
}

func (m *memoryController) registerEvent(root, args string) (uintptr, error) {
	fd, err := unix.Eventfd(0, unix.EFD_CLOEXEC)
	if err != nil {
		return 0, ErrMemoryNotSupported
	}
	if err := os.WriteFile(
		filepath.Join(root, "cgroup.event_control"),
		[]byte(fmt.Sprintf("%d %s", fd, args)),
		defaultFilePerm,
	); err != nil {
		unix.Close(fd)
		return 0, err
	}
	return uintptr(fd), nil
}

func uintValue(v *uint64) []byte {
	if v == nil {
		return nil
	}
	return []byte(strconv.FormatUint(*v, 10))
}
