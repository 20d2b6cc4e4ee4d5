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
	"path/filepath"
	"strconv"
	"strings"
)

func NewRdma(root string) *rdmaController {
	return &rdmaController{
		root: filepath.Join(root, string(Rdma)),
	}
}

type rdmaController struct {
	root string
}

func (r *rdmaController) Name() Name {
	return Rdma
}

func (r *rdmaController) Path(path string) string {
	return filepath.Join(r.root, path)
}

func (r *rdmaController) Create(path string, resources *Resources) error {
	if err := mkdirAll(r.root, r.Path(path)); err != nil {
		return err
	}
	return r.Apply(path, resources)
}

// Apply writes one "device hca_handle=N hca_object=M" line per limit to
// rdma.max; an unset counter is written as "max" to clear any previous
// limit
func (r *rdmaController) Apply(path string, resources *Resources) error {
	if resources == nil || resources.Rdma == nil {
		return nil
	}
	for _, limit := range resources.Rdma.Limits {
		if limit.Device == "" {
			return fmt.Errorf("cgroup1: rdma limit requires a device name")
		}
		if err := os.WriteFile(
			filepath.Join(r.Path(path), "rdma.max"),
			[]byte(formatRdmaEntry(limit)),
			defaultFilePerm,
		); err != nil {
			return err
		}
	}
	return nil
}

func formatRdmaEntry(l RdmaLimit) string {
	handles := "max"
	if l.HcaHandles != nil {
		handles = strconv.FormatUint(uint64(*l.HcaHandles), 10)
	}
	objects := "max"
	if l.HcaObjects != nil {
		objects = strconv.FormatUint(uint64(*l.HcaObjects), 10)
	}
	return fmt.Sprintf("%s hca_handle=%s hca_object=%s", l.Device, handles, objects)
}

func (r *rdmaController) Stat(path string, stats *Stats) error {
	current, err := r.readEntries(filepath.Join(r.Path(path), "rdma.current"))
	if err != nil {
		return err
	}
	limit, err := r.readEntries(filepath.Join(r.Path(path), "rdma.max"))
	if err != nil {
		return err
	}
	stats.Rdma = &RdmaStat{
		Current: current,
		Limit:   limit,
	}
	return nil
}

func (r *rdmaController) readEntries(path string) ([]RdmaEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var out []RdmaEntry
	for _, line := range strings.Split(string(data), "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		entry, err := parseRdmaEntry(line)
		if err != nil {
			return nil, err
		}
		out = append(out, entry)
	}
	return out, nil
}

// parseRdmaEntry parses one "device hca_handle=N hca_object=M" line; a
// value of "max" parses as the counter's maximum
func parseRdmaEntry(line string) (RdmaEntry, error) {
	var entry RdmaEntry
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return entry, fmt.Errorf("%w: %q is not an rdma entry", ErrInvalidFormat, line)
	}
	entry.Device = fields[0]
	for _, f := range fields[1:] {
		kv := strings.SplitN(f, "=", 2)
		if len(kv) != 2 {
			return entry, fmt.Errorf("%w: %q is not a key=value pair", ErrInvalidFormat, f)
		}
		var v uint32
		if kv[1] == "max" {
			v = ^uint32(0)
		} else {
			parsed, err := strconv.ParseUint(kv[1], 10, 32)
			if err != nil {
				return entry, fmt.Errorf("%w: %q is not a counter value", ErrInvalidFormat, kv[1])
			}
			v = uint32(parsed)
		}
		switch kv[0] {
		case "hca_handle":
			entry.HcaHandles = v
		case "hca_object":
			entry.HcaObjects = v
		}
	}
	return entry, nil
}
