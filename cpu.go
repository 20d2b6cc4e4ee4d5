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
	"os"
	"path/filepath"
	"strconv"
)

func NewCpu(root string) *cpuController {
	return &cpuController{
		root: filepath.Join(root, string(Cpu)),
	}
}

type cpuController struct {
	root string
}

func (c *cpuController) Name() Name {
	return Cpu
}

func (c *cpuController) Path(path string) string {
	return filepath.Join(c.root, path)
}

func (c *cpuController) Create(path string, resources *Resources) error {
	if err := mkdirAll(c.root, c.Path(path)); err != nil {
		return err
	}
	return c.Apply(path, resources)
}

// Apply writes the set fields of resources.CPU. The period files are
// written before their matching quota so a new quota is validated by the
// kernel against the period it was configured with.
func (c *cpuController) Apply(path string, resources *Resources) error {
	if resources == nil || resources.CPU == nil {
		return nil
	}
	cpu := resources.CPU
	for _, t := range []struct {
		name   string
		ivalue *int64
		uvalue *uint64
	}{
		{
			name:   "rt_period_us",
			uvalue: cpu.RealtimePeriodUs,
		},
		{
			name:   "rt_runtime_us",
			ivalue: cpu.RealtimeRuntimeUs,
		},
		{
			name:   "shares",
			uvalue: cpu.Shares,
		},
		{
			name:   "cfs_period_us",
			uvalue: cpu.PeriodUs,
		},
		{
			name:   "cfs_quota_us",
			ivalue: cpu.QuotaUs,
		},
	} {
		var value []byte
		if t.uvalue != nil {
			value = []byte(strconv.FormatUint(*t.uvalue, 10))
		} else if t.ivalue != nil {
			value = []byte(strconv.FormatInt(*t.ivalue, 10))
		}
		if value != nil {
			if err := os.WriteFile(
				filepath.Join(c.Path(path), "cpu."+t.name),
				value,
				defaultFilePerm,
			); err != nil {
				return err
			}
		}
	}
	return nil
}

// Shares reads cpu.shares
func (c *cpuController) Shares(path string) (uint64, error) {
	return readUint(filepath.Join(c.Path(path), "cpu.shares"))
}

// QuotaUs reads cpu.cfs_quota_us; -1 means the bandwidth limit is off
func (c *cpuController) QuotaUs(path string) (int64, error) {
	v, err := os.ReadFile(filepath.Join(c.Path(path), "cpu.cfs_quota_us"))
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(trimSpace(v), 10, 64)
}

// PeriodUs reads cpu.cfs_period_us
func (c *cpuController) PeriodUs(path string) (uint64, error) {
	return readUint(filepath.Join(c.Path(path), "cpu.cfs_period_us"))
}

func (c *cpuController) Stat(path string, stats *Stats) error {
	f, err := os.Open(filepath.Join(c.Path(path), "cpu.stat"))
	if err != nil {
		return err
	}
	defer f.Close()
	stats.cpuMu.Lock()
	cpu := stats.CPU
	if cpu == nil {
		cpu = &CPUStat{}
		stats.CPU = cpu
	}
	stats.cpuMu.Unlock()
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		key, v, err := parseKV(sc.Text())
		if err != nil {
			return err
		}
		switch key {
		case "nr_periods":
			cpu.Throttling.Periods = v
		case "nr_throttled":
			cpu.Throttling.ThrottledPeriods = v
		case "throttled_time":
			cpu.Throttling.ThrottledTime = v
		}
	}
	return sc.Err()
}
