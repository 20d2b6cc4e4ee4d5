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
)

// Builder accumulates a multi-subsystem configuration and a target path
// before committing them in one step. A Builder is single use: after
// Build has been called the value is spent and building again fails with
// ErrBuilderUsed.
//
//	control, err := NewBuilder("containers/redis").
//		CPU().Shares(512).Quota(200000).Period(1000000).Done().
//		Memory().Limit(256 * 1024 * 1024).Done().
//		PerfEvent().
//		Build(Default)
//
// Only value-level validation happens while building; cross-field kernel
// constraints surface from the kernel when Build applies the resources.
type Builder struct {
	path      string
	resources Resources
	enabled   map[Name]struct{}
	err       error
	built     bool
}

// NewBuilder returns a Builder targeting the provided hierarchy-relative
// path
func NewBuilder(path string) *Builder {
	b := &Builder{
		path:    path,
		enabled: make(map[Name]struct{}),
	}
	if err := checkSegments(path); err != nil {
		b.err = err
	}
	return b
}

func (b *Builder) enable(name Name) {
	b.enabled[name] = struct{}{}
}

func (b *Builder) fail(err error) {
	if b.err == nil {
		b.err = err
	}
}

// Build constructs a Cgroup over exactly the requested subsystems taken
// from the hierarchy, creates each subsystem directory and applies the
// accumulated resources. A requested subsystem the hierarchy does not
// provide fails with ErrNotMounted; failures are reported through New's
// partial-failure contract.
func (b *Builder) Build(hierarchy Hierarchy) (Cgroup, error) {
	if b.built {
		return nil, ErrBuilderUsed
	}
	b.built = true
	if b.err != nil {
		return nil, b.err
	}
	if len(b.enabled) == 0 {
		return nil, ErrNoSubsystems
	}
	subsystems, err := hierarchy()
	if err != nil {
		return nil, err
	}
	failed := newPartialError("create")
	for name := range b.enabled {
		failed.Failed[name] = ErrNotMounted
	}
	var requested []Subsystem
	for _, s := range subsystems {
		if _, ok := b.enabled[s.Name()]; ok {
			requested = append(requested, s)
			delete(failed.Failed, s.Name())
		}
	}
	if len(requested) == 0 {
		return nil, failed
	}
	control, err := New(func() ([]Subsystem, error) { return requested, nil }, StaticPath(b.path), &b.resources)
	var partial *PartialError
	if errors.As(err, &partial) {
		for n, e := range partial.Failed {
			failed.Failed[n] = e
		}
		return control, failed
	}
	if err != nil {
		return control, err
	}
	return control, failed.orNil()
}

// CPU enters the cpu subsystem's sub-builder
func (b *Builder) CPU() *CPUBuilder {
	b.enable(Cpu)
	if b.resources.CPU == nil {
		b.resources.CPU = &CPUResources{}
	}
	return &CPUBuilder{b}
}

type CPUBuilder struct {
	b *Builder
}

func (c *CPUBuilder) Shares(shares uint64) *CPUBuilder {
	c.b.resources.CPU.Shares = &shares
	return c
}

func (c *CPUBuilder) Quota(quotaUs int64) *CPUBuilder {
	c.b.resources.CPU.QuotaUs = &quotaUs
	return c
}

func (c *CPUBuilder) Period(periodUs uint64) *CPUBuilder {
	c.b.resources.CPU.PeriodUs = &periodUs
	return c
}

func (c *CPUBuilder) RealtimeRuntime(runtimeUs int64) *CPUBuilder {
	c.b.resources.CPU.RealtimeRuntimeUs = &runtimeUs
	return c
}

func (c *CPUBuilder) RealtimePeriod(periodUs uint64) *CPUBuilder {
	c.b.resources.CPU.RealtimePeriodUs = &periodUs
	return c
}

func (c *CPUBuilder) Done() *Builder {
	return c.b
}

// CPUSet enters the cpuset subsystem's sub-builder
func (b *Builder) CPUSet() *CPUSetBuilder {
	b.enable(Cpuset)
	if b.resources.CPUSet == nil {
		b.resources.CPUSet = &CPUSetResources{}
	}
	return &CPUSetBuilder{b}
}

type CPUSetBuilder struct {
	b *Builder
}

func (c *CPUSetBuilder) CPUs(cpus string) *CPUSetBuilder {
	c.b.resources.CPUSet.Cpus = &cpus
	return c
}

func (c *CPUSetBuilder) Mems(mems string) *CPUSetBuilder {
	c.b.resources.CPUSet.Mems = &mems
	return c
}

func (c *CPUSetBuilder) CPUExclusive(exclusive bool) *CPUSetBuilder {
	c.b.resources.CPUSet.CpuExclusive = &exclusive
	return c
}

func (c *CPUSetBuilder) MemExclusive(exclusive bool) *CPUSetBuilder {
	c.b.resources.CPUSet.MemExclusive = &exclusive
	return c
}

func (c *CPUSetBuilder) MemoryMigrate(migrate bool) *CPUSetBuilder {
	c.b.resources.CPUSet.MemoryMigrate = &migrate
	return c
}

func (c *CPUSetBuilder) SchedLoadBalance(balance bool) *CPUSetBuilder {
	c.b.resources.CPUSet.SchedLoadBalance = &balance
	return c
}

func (c *CPUSetBuilder) Done() *Builder {
	return c.b
}

// Memory enters the memory subsystem's sub-builder
func (b *Builder) Memory() *MemoryBuilder {
	b.enable(Memory)
	if b.resources.Memory == nil {
		b.resources.Memory = &MemoryResources{}
	}
	return &MemoryBuilder{b}
}

type MemoryBuilder struct {
	b *Builder
}

func (m *MemoryBuilder) Limit(bytes int64) *MemoryBuilder {
	m.b.resources.Memory.Limit = &bytes
	return m
}

func (m *MemoryBuilder) SoftLimit(bytes int64) *MemoryBuilder {
	m.b.resources.Memory.SoftLimit = &bytes
	return m
}

func (m *MemoryBuilder) MemswLimit(bytes int64) *MemoryBuilder {
	m.b.resources.Memory.MemswLimit = &bytes
	return m
}

func (m *MemoryBuilder) KmemLimit(bytes int64) *MemoryBuilder {
	m.b.resources.Memory.KmemLimit = &bytes
	return m
}

func (m *MemoryBuilder) Swappiness(swappiness uint64) *MemoryBuilder {
	if swappiness > 100 {
		m.b.fail(fmt.Errorf("cgroup1: swappiness %d is outside 0-100", swappiness))
		return m
	}
	m.b.resources.Memory.Swappiness = &swappiness
	return m
}

func (m *MemoryBuilder) DisableOOMKiller(disable bool) *MemoryBuilder {
	m.b.resources.Memory.DisableOOMKiller = &disable
	return m
}

func (m *MemoryBuilder) Done() *Builder {
	return m.b
}

// Pids enters the pids subsystem's sub-builder
func (b *Builder) Pids() *PidsBuilder {
	b.enable(Pids)
	if b.resources.Pids == nil {
		b.resources.Pids = &PidsResources{}
	}
	return &PidsBuilder{b}
}

type PidsBuilder struct {
	b *Builder
}

func (p *PidsBuilder) Limit(limit int64) *PidsBuilder {
	p.b.resources.Pids.Limit = &limit
	return p
}

// Max removes any pid limit, writing the literal "max"
func (p *PidsBuilder) Max() *PidsBuilder {
	limit := Unlimited
	p.b.resources.Pids.Limit = &limit
	return p
}

func (p *PidsBuilder) Done() *Builder {
	return p.b
}

// Devices enters the devices subsystem's sub-builder
func (b *Builder) Devices() *DevicesBuilder {
	b.enable(Devices)
	if b.resources.Devices == nil {
		b.resources.Devices = &DeviceResources{}
	}
	return &DevicesBuilder{b}
}

type DevicesBuilder struct {
	b *Builder
}

func (d *DevicesBuilder) Allow(rule DeviceRule) *DevicesBuilder {
	rule.Allow = true
	return d.add(rule)
}

func (d *DevicesBuilder) Deny(rule DeviceRule) *DevicesBuilder {
	rule.Allow = false
	return d.add(rule)
}

func (d *DevicesBuilder) add(rule DeviceRule) *DevicesBuilder {
	if err := rule.validate(); err != nil {
		d.b.fail(err)
		return d
	}
	d.b.resources.Devices.Rules = append(d.b.resources.Devices.Rules, rule)
	return d
}

func (d *DevicesBuilder) Done() *Builder {
	return d.b
}

// Hugetlb enters the hugetlb subsystem's sub-builder
func (b *Builder) Hugetlb() *HugetlbBuilder {
	b.enable(Hugetlb)
	if b.resources.Hugetlb == nil {
		b.resources.Hugetlb = &HugetlbResources{}
	}
	return &HugetlbBuilder{b}
}

type HugetlbBuilder struct {
	b *Builder
}

func (h *HugetlbBuilder) Limit(pageSize string, bytes uint64) *HugetlbBuilder {
	h.b.resources.Hugetlb.Limits = append(h.b.resources.Hugetlb.Limits, HugetlbLimit{
		PageSize: pageSize,
		Limit:    bytes,
	})
	return h
}

func (h *HugetlbBuilder) Done() *Builder {
	return h.b
}

// Blkio enters the blkio subsystem's sub-builder
func (b *Builder) Blkio() *BlkioBuilder {
	b.enable(Blkio)
	if b.resources.Blkio == nil {
		b.resources.Blkio = &BlkioResources{}
	}
	return &BlkioBuilder{b}
}

type BlkioBuilder struct {
	b *Builder
}

func (bl *BlkioBuilder) Weight(weight uint16) *BlkioBuilder {
	bl.b.resources.Blkio.Weight = &weight
	return bl
}

func (bl *BlkioBuilder) WeightDevice(major, minor int64, weight uint16) *BlkioBuilder {
	bl.b.resources.Blkio.WeightDevice = append(bl.b.resources.Blkio.WeightDevice, BlkioWeightDevice{
		Major:  major,
		Minor:  minor,
		Weight: weight,
	})
	return bl
}

func (bl *BlkioBuilder) ReadBps(major, minor int64, rate uint64) *BlkioBuilder {
	bl.b.resources.Blkio.ThrottleReadBpsDevice = append(bl.b.resources.Blkio.ThrottleReadBpsDevice, BlkioThrottleDevice{
		Major: major,
		Minor: minor,
		Rate:  rate,
	})
	return bl
}

func (bl *BlkioBuilder) WriteBps(major, minor int64, rate uint64) *BlkioBuilder {
	bl.b.resources.Blkio.ThrottleWriteBpsDevice = append(bl.b.resources.Blkio.ThrottleWriteBpsDevice, BlkioThrottleDevice{
		Major: major,
		Minor: minor,
		Rate:  rate,
	})
	return bl
}

func (bl *BlkioBuilder) ReadIOPS(major, minor int64, rate uint64) *BlkioBuilder {
	bl.b.resources.Blkio.ThrottleReadIOPSDevice = append(bl.b.resources.Blkio.ThrottleReadIOPSDevice, BlkioThrottleDevice{
		Major: major,
		Minor: minor,
		Rate:  rate,
	})
	return bl
}

func (bl *BlkioBuilder) WriteIOPS(major, minor int64, rate uint64) *BlkioBuilder {
	bl.b.resources.Blkio.ThrottleWriteIOPSDevice = append(bl.b.resources.Blkio.ThrottleWriteIOPSDevice, BlkioThrottleDevice{
		Major: major,
		Minor: minor,
		Rate:  rate,
	})
	return bl
}

func (bl *BlkioBuilder) Done() *Builder {
	return bl.b
}

// Rdma enters the rdma subsystem's sub-builder
func (b *Builder) Rdma() *RdmaBuilder {
	b.enable(Rdma)
	if b.resources.Rdma == nil {
		b.resources.Rdma = &RdmaResources{}
	}
	return &RdmaBuilder{b}
}

type RdmaBuilder struct {
	b *Builder
}

func (r *RdmaBuilder) Limit(device string, hcaHandles, hcaObjects uint32) *RdmaBuilder {
	r.b.resources.Rdma.Limits = append(r.b.resources.Rdma.Limits, RdmaLimit{
		Device:     device,
		HcaHandles: &hcaHandles,
		HcaObjects: &hcaObjects,
	})
	return r
}

func (r *RdmaBuilder) Done() *Builder {
	return r.b
}

// NetCLS enters the net_cls subsystem's sub-builder
func (b *Builder) NetCLS() *NetCLSBuilder {
	b.enable(NetCLS)
	if b.resources.NetCLS == nil {
		b.resources.NetCLS = &NetCLSResources{}
	}
	return &NetCLSBuilder{b}
}

type NetCLSBuilder struct {
	b *Builder
}

func (n *NetCLSBuilder) ClassID(id uint32) *NetCLSBuilder {
	n.b.resources.NetCLS.ClassID = &id
	return n
}

func (n *NetCLSBuilder) Done() *Builder {
	return n.b
}

// NetPrio enters the net_prio subsystem's sub-builder
func (b *Builder) NetPrio() *NetPrioBuilder {
	b.enable(NetPrio)
	if b.resources.NetPrio == nil {
		b.resources.NetPrio = &NetPrioResources{}
	}
	return &NetPrioBuilder{b}
}

type NetPrioBuilder struct {
	b *Builder
}

func (n *NetPrioBuilder) Priority(ifName string, prio uint32) *NetPrioBuilder {
	n.b.resources.NetPrio.IfPrioMap = append(n.b.resources.NetPrio.IfPrioMap, IfPrioMap{
		Interface: ifName,
		Priority:  prio,
	})
	return n
}

func (n *NetPrioBuilder) Done() *Builder {
	return n.b
}

// Freezer marks the freezer subsystem for inclusion; it has no
// configurable parameters
func (b *Builder) Freezer() *Builder {
	b.enable(Freezer)
	return b
}

// PerfEvent marks the perf_event subsystem for inclusion; it has no
// configurable parameters
func (b *Builder) PerfEvent() *Builder {
	b.enable(PerfEvent)
	return b
}

// CPUAcct marks the cpuacct subsystem for inclusion; it has no
// configurable parameters
func (b *Builder) CPUAcct() *Builder {
	b.enable(Cpuacct)
	return b
}
