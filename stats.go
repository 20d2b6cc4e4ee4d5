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

import "sync"

// Stats holds the parsed statistics of every subsystem in a control group.
// Fields for subsystems that were not read remain nil.
type Stats struct {
	cpuMu sync.Mutex

	Hugetlb map[string]HugetlbStat
	Pids    *PidsStat
	CPU     *CPUStat
	Memory  *MemoryStat
	Blkio   *BlkioStat
	Rdma    *RdmaStat
}

type HugetlbStat struct {
	Usage   uint64
	Max     uint64
	Failcnt uint64
}

type PidsStat struct {
	Current uint64
	Max     uint64
}

type CPUStat struct {
	Usage      CPUUsage
	Throttling Throttle
}

type CPUUsage struct {
	// Units: nanoseconds.
	Total  uint64
	Percpu []uint64
	Kernel uint64
	User   uint64
}

type Throttle struct {
	Periods          uint64
	ThrottledPeriods uint64
	ThrottledTime    uint64
}

type MemoryStat struct {
	Cache      uint64
	RSS        uint64
	RSSHuge    uint64
	MappedFile uint64
	Dirty      uint64
	Writeback  uint64
	PgPgIn     uint64
	PgPgOut    uint64
	PgFault    uint64
	PgMajFault uint64

	Usage     MemoryEntry
	Swap      MemoryEntry
	Kernel    MemoryEntry
	KernelTCP MemoryEntry

	// Raw holds every key of memory.stat, including keys this struct
	// does not model
	Raw map[string]uint64
}

type MemoryEntry struct {
	Limit   uint64
	Usage   uint64
	Max     uint64
	Failcnt uint64
}

type OomControl struct {
	OomKillDisable bool
	UnderOom       bool
	OomKill        uint64
}

type BlkioStat struct {
	IoServiceBytesRecursive []BlkioEntry
	IoServicedRecursive     []BlkioEntry
	IoQueuedRecursive       []BlkioEntry
	IoServiceTimeRecursive  []BlkioEntry
	IoWaitTimeRecursive     []BlkioEntry
	IoMergedRecursive       []BlkioEntry
	IoTimeRecursive         []BlkioEntry
	SectorsRecursive        []BlkioEntry
}

type BlkioEntry struct {
	Op     string
	Device string
	Major  uint64
	Minor  uint64
	Value  uint64
}

type RdmaStat struct {
	Current []RdmaEntry
	Limit   []RdmaEntry
}

type RdmaEntry struct {
	Device     string
	HcaHandles uint32
	HcaObjects uint32
}
