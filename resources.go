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
	"sort"
	"strconv"

	specs "github.com/opencontainers/runtime-spec/specs-go"
)

// Unlimited is the sentinel written to clear a previous numeric limit.
// Assigning it to a limit field issues a write; leaving the field nil
// issues none.
const Unlimited int64 = -1

// Resources aggregates the optional per-subsystem configuration of one
// control group. A nil record leaves that subsystem untouched; a record
// present with all fields unset performs no writes.
type Resources struct {
	CPU     *CPUResources
	CPUSet  *CPUSetResources
	Memory  *MemoryResources
	Pids    *PidsResources
	Devices *DeviceResources
	Hugetlb *HugetlbResources
	Blkio   *BlkioResources
	Rdma    *RdmaResources
	NetCLS  *NetCLSResources
	NetPrio *NetPrioResources
}

// CPUResources mirrors the cpu controller's CFS and realtime scheduler
// files
type CPUResources struct {
	// Shares is the weight of CPU time given to the group (cpu.shares)
	Shares *uint64
	// QuotaUs is the run time within one period, in microseconds
	// (cpu.cfs_quota_us); Unlimited disables the bandwidth limit
	QuotaUs *int64
	// PeriodUs is the CFS period length in microseconds (cpu.cfs_period_us)
	PeriodUs *uint64
	// RealtimeRuntimeUs is cpu.rt_runtime_us
	RealtimeRuntimeUs *int64
	// RealtimePeriodUs is cpu.rt_period_us
	RealtimePeriodUs *uint64
}

// CPUSetResources mirrors the cpuset controller files
type CPUSetResources struct {
	// Cpus is the list format set of permitted cpus, e.g. "0-3,7"
	Cpus *string
	// Mems is the list format set of permitted memory nodes
	Mems *string
	CpuExclusive          *bool
	MemExclusive          *bool
	MemHardwall           *bool
	MemoryMigrate         *bool
	MemorySpreadPage      *bool
	MemorySpreadSlab      *bool
	SchedLoadBalance      *bool
	SchedRelaxDomainLevel *int64
}

// MemoryResources mirrors the memory controller's limit and behavior
// files. Limits are in bytes; Unlimited clears a limit.
//
// When both Limit and MemswLimit are lowered below the group's current
// usage no single write order is always valid; the kernel's error for the
// failing file is surfaced unmodified.
type MemoryResources struct {
	// Limit is memory.limit_in_bytes
	Limit *int64
	// SoftLimit is memory.soft_limit_in_bytes
	SoftLimit *int64
	// MemswLimit is memory.memsw.limit_in_bytes (memory+swap); the kernel
	// requires it to be >= Limit so Limit is written first
	MemswLimit *int64
	// KmemLimit is memory.kmem.limit_in_bytes
	KmemLimit *int64
	// KmemTCPLimit is memory.kmem.tcp.limit_in_bytes
	KmemTCPLimit *int64
	// Swappiness is memory.swappiness, 0-100
	Swappiness *uint64
	// DisableOOMKiller writes memory.oom_control
	DisableOOMKiller *bool
	// UseHierarchy is memory.use_hierarchy
	UseHierarchy *bool
	// MoveChargeAtImmigrate is memory.move_charge_at_immigrate
	MoveChargeAtImmigrate *bool
}

// PidsResources mirrors the pids controller
type PidsResources struct {
	// Limit is pids.max; Unlimited writes the literal "max"
	Limit *int64
}

// DeviceResources holds the ordered device access rules applied to
// devices.allow and devices.deny
type DeviceResources struct {
	Rules []DeviceRule
}

// HugetlbResources holds one limit per supported huge page size
type HugetlbResources struct {
	Limits []HugetlbLimit
}

type HugetlbLimit struct {
	// PageSize in the kernel's file name format, e.g. "2MB"
	PageSize string
	// Limit is hugetlb.<size>.limit_in_bytes
	Limit uint64
}

// BlkioResources mirrors the blkio controller's weight and throttle files
type BlkioResources struct {
	// Weight is blkio.weight, 10-1000
	Weight *uint16
	// LeafWeight is blkio.leaf_weight
	LeafWeight *uint16
	WeightDevice            []BlkioWeightDevice
	ThrottleReadBpsDevice   []BlkioThrottleDevice
	ThrottleWriteBpsDevice  []BlkioThrottleDevice
	ThrottleReadIOPSDevice  []BlkioThrottleDevice
	ThrottleWriteIOPSDevice []BlkioThrottleDevice
}

type BlkioWeightDevice struct {
	Major  int64
	Minor  int64
	Weight uint16
}

type BlkioThrottleDevice struct {
	Major int64
	Minor int64
	Rate  uint64
}

// RdmaResources holds per-device RDMA resource limits written to rdma.max
type RdmaResources struct {
	Limits []RdmaLimit
}

type RdmaLimit struct {
	// Device is the RDMA/IB device name, e.g. "mlx4_0"
	Device string
	// HcaHandles limits hca_handle; nil means "max"
	HcaHandles *uint32
	// HcaObjects limits hca_object; nil means "max"
	HcaObjects *uint32
}

// NetCLSResources mirrors net_cls.classid
type NetCLSResources struct {
	ClassID *uint32
}

// NetPrioResources holds per-interface priorities written one entry per
// line to net_prio.ifpriomap. Slice order is preserved.
type NetPrioResources struct {
	IfPrioMap []IfPrioMap
}

type IfPrioMap struct {
	Interface string
	Priority  uint32
}

func (i IfPrioMap) String() string {
	return i.Interface + " " + strconv.FormatUint(uint64(i.Priority), 10)
}

// FromSpec converts OCI runtime spec resources into this library's
// Resources so runtime consumers can hand their configuration in directly
func FromSpec(resources *specs.LinuxResources) *Resources {
	var out Resources
	if resources == nil {
		return &out
	}
	if c := resources.CPU; c != nil {
		out.CPU = &CPUResources{
			Shares:            c.Shares,
			QuotaUs:           c.Quota,
			PeriodUs:          c.Period,
			RealtimeRuntimeUs: c.RealtimeRuntime,
			RealtimePeriodUs:  c.RealtimePeriod,
		}
		cpuset := CPUSetResources{}
		if c.Cpus != "" {
			v := c.Cpus
			cpuset.Cpus = &v
		}
		if c.Mems != "" {
			v := c.Mems
			cpuset.Mems = &v
		}
		if cpuset.Cpus != nil || cpuset.Mems != nil {
			out.CPUSet = &cpuset
		}
	}
	if m := resources.Memory; m != nil {
		out.Memory = &MemoryResources{
			Limit:            m.Limit,
			SoftLimit:        m.Reservation,
			MemswLimit:       m.Swap,
			KmemLimit:        m.Kernel,
			KmemTCPLimit:     m.KernelTCP,
			Swappiness:       m.Swappiness,
			DisableOOMKiller: m.DisableOOMKiller,
		}
	}
	if p := resources.Pids; p != nil {
		v := p.Limit
		out.Pids = &PidsResources{
			Limit: &v,
		}
	}
	if len(resources.Devices) > 0 {
		d := &DeviceResources{}
		for _, dev := range resources.Devices {
			rule := DeviceRule{
				Allow:  dev.Allow,
				Type:   Wildcard,
				Major:  wildcardDevice,
				Minor:  wildcardDevice,
				Access: DeviceAccess(dev.Access),
			}
			if dev.Type != "" {
				rule.Type = DeviceKind(dev.Type[0])
			}
			if dev.Major != nil {
				rule.Major = *dev.Major
			}
			if dev.Minor != nil {
				rule.Minor = *dev.Minor
			}
			d.Rules = append(d.Rules, rule)
		}
		out.Devices = d
	}
	if len(resources.HugepageLimits) > 0 {
		h := &HugetlbResources{}
		for _, l := range resources.HugepageLimits {
			h.Limits = append(h.Limits, HugetlbLimit{
				PageSize: l.Pagesize,
				Limit:    l.Limit,
			})
		}
		out.Hugetlb = h
	}
	if b := resources.BlockIO; b != nil {
		blkio := &BlkioResources{
			Weight:     b.Weight,
			LeafWeight: b.LeafWeight,
		}
		for _, wd := range b.WeightDevice {
			if wd.Weight != nil {
				blkio.WeightDevice = append(blkio.WeightDevice, BlkioWeightDevice{
					Major:  wd.Major,
					Minor:  wd.Minor,
					Weight: *wd.Weight,
				})
			}
		}
		for _, t := range []struct {
			in  []specs.LinuxThrottleDevice
			out *[]BlkioThrottleDevice
		}{
			{b.ThrottleReadBpsDevice, &blkio.ThrottleReadBpsDevice},
			{b.ThrottleWriteBpsDevice, &blkio.ThrottleWriteBpsDevice},
			{b.ThrottleReadIOPSDevice, &blkio.ThrottleReadIOPSDevice},
			{b.ThrottleWriteIOPSDevice, &blkio.ThrottleWriteIOPSDevice},
		} {
			for _, td := range t.in {
				*t.out = append(*t.out, BlkioThrottleDevice{
					Major: td.Major,
					Minor: td.Minor,
					Rate:  td.Rate,
				})
			}
		}
		out.Blkio = blkio
	}
	if len(resources.Rdma) > 0 {
		r := &RdmaResources{}
		for device, l := range resources.Rdma {
			r.Limits = append(r.Limits, RdmaLimit{
				Device:     device,
				HcaHandles: l.HcaHandles,
				HcaObjects: l.HcaObjects,
			})
		}
		// map iteration order is random; keep writes reproducible
		sort.Slice(r.Limits, func(i, j int) bool {
			return r.Limits[i].Device < r.Limits[j].Device
		})
		out.Rdma = r
	}
	if n := resources.Network; n != nil {
		if n.ClassID != nil {
			out.NetCLS = &NetCLSResources{
				ClassID: n.ClassID,
			}
		}
		if len(n.Priorities) > 0 {
			p := &NetPrioResources{}
			for _, prio := range n.Priorities {
				p.IfPrioMap = append(p.IfPrioMap, IfPrioMap{
					Interface: prio.Name,
					Priority:  prio.Priority,
				})
			}
			out.NetPrio = p
		}
	}
	return &out
}
