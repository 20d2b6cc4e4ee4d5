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
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// NewBlkio returns a blkio controller mounted under root. Options adjust
// where /proc is mounted for device name resolution.
func NewBlkio(root string, options ...func(controller *blkioController)) *blkioController {
	ctrl := &blkioController{
		root:     filepath.Join(root, string(Blkio)),
		procRoot: "/proc",
	}
	for _, opt := range options {
		opt(ctrl)
	}
	return ctrl
}

// ProcRoot overrides the default location of the "/proc" filesystem
func ProcRoot(path string) func(controller *blkioController) {
	return func(c *blkioController) {
		c.procRoot = path
	}
}

type blkioController struct {
	root     string
	procRoot string
}

func (b *blkioController) Name() Name {
	return Blkio
}

func (b *blkioController) Path(path string) string {
	return filepath.Join(b.root, path)
}

func (b *blkioController) Create(path string, resources *Resources) error {
	if err := mkdirAll(b.root, b.Path(path)); err != nil {
		return err
	}
	return b.Apply(path, resources)
}

func (b *blkioController) Apply(path string, resources *Resources) error {
	if resources == nil || resources.Blkio == nil {
		return nil
	}
	blkio := resources.Blkio
	for _, t := range []struct {
		name  string
		value []byte
	}{
		{
			name:  "weight",
			value: weightValue(blkio.Weight),
		},
		{
			name:  "leaf_weight",
			value: weightValue(blkio.LeafWeight),
		},
	} {
		if t.value != nil {
			if err := os.WriteFile(
				filepath.Join(b.Path(path), "blkio."+t.name),
				t.value,
				defaultFilePerm,
			); err != nil {
				return err
			}
		}
	}
	for _, wd := range blkio.WeightDevice {
		if err := os.WriteFile(
			filepath.Join(b.Path(path), "blkio.weight_device"),
			[]byte(fmt.Sprintf("%d:%d %d", wd.Major, wd.Minor, wd.Weight)),
			defaultFilePerm,
		); err != nil {
			return err
		}
	}
	for _, t := range []struct {
		name    string
		devices []BlkioThrottleDevice
	}{
		{
			name:    "throttle.read_bps_device",
			devices: blkio.ThrottleReadBpsDevice,
		},
		{
			name:    "throttle.write_bps_device",
			devices: blkio.ThrottleWriteBpsDevice,
		},
		{
			name:    "throttle.read_iops_device",
			devices: blkio.ThrottleReadIOPSDevice,
		},
		{
			name:    "throttle.write_iops_device",
			devices: blkio.ThrottleWriteIOPSDevice,
		},
	} {
		for _, td := range t.devices {
			if err := os.WriteFile(
				filepath.Join(b.Path(path), "blkio."+t.name),
				[]byte(fmt.Sprintf("%d:%d %d", td.Major, td.Minor, td.Rate)),
				defaultFilePerm,
			); err != nil {
				return err
			}
		}
	}
	return nil
}

func (b *blkioController) Stat(path string, stats *Stats) error {
	stats.Blkio = &BlkioStat{}
	// Try to read CFQ stats available on all CFQ enabled kernels first,
	// fall back to the throttle files a non-CFQ kernel still provides
	settings := []blkioStatSettings{}
	if _, err := os.Lstat(filepath.Join(b.Path(path), "blkio.io_serviced_recursive")); err == nil {
		settings = []blkioStatSettings{
			{
				name:  "sectors_recursive",
				entry: &stats.Blkio.SectorsRecursive,
			},
			{
				name:  "io_service_bytes_recursive",
				entry: &stats.Blkio.IoServiceBytesRecursive,
			},
			{
				name:  "io_serviced_recursive",
				entry: &stats.Blkio.IoServicedRecursive,
			},
			{
				name:  "io_queued_recursive",
				entry: &stats.Blkio.IoQueuedRecursive,
			},
			{
				name:  "io_service_time_recursive",
				entry: &stats.Blkio.IoServiceTimeRecursive,
			},
			{
				name:  "io_wait_time_recursive",
				entry: &stats.Blkio.IoWaitTimeRecursive,
			},
			{
				name:  "io_merged_recursive",
				entry: &stats.Blkio.IoMergedRecursive,
			},
			{
				name:  "time_recursive",
				entry: &stats.Blkio.IoTimeRecursive,
			},
		}
	} else {
		settings = []blkioStatSettings{
			{
				name:  "throttle.io_serviced",
				entry: &stats.Blkio.IoServicedRecursive,
			},
			{
				name:  "throttle.io_service_bytes",
				entry: &stats.Blkio.IoServiceBytesRecursive,
			},
		}
	}
	devices, err := b.getDevices()
	if err != nil {
		return err
	}
	for _, t := range settings {
		if err := b.readEntry(devices, path, t.name, t.entry); err != nil {
			return err
		}
	}
	return nil
}

func (b *blkioController) readEntry(devices map[deviceKey]string, path, name string, entry *[]BlkioEntry) error {
	f, err := os.Open(filepath.Join(b.Path(path), "blkio."+name))
	if err != nil {
		return err
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		// format: dev type amount
		fields := strings.FieldsFunc(sc.Text(), splitBlkioStatLine)
		if len(fields) < 3 {
			if len(fields) == 2 && fields[0] == "Total" {
				// skip total line
				continue
			}
			return fmt.Errorf("%w: %q has less than 3 fields", ErrInvalidFormat, sc.Text())
		}
		major, err := strconv.ParseUint(fields[0], 10, 64)
		if err != nil {
			return err
		}
		minor, err := strconv.ParseUint(fields[1], 10, 64)
		if err != nil {
			return err
		}
		op := ""
		valueField := 2
		if len(fields) == 4 {
			op = fields[2]
			valueField = 3
		}
		v, err := strconv.ParseUint(fields[valueField], 10, 64)
		if err != nil {
			return err
		}
		*entry = append(*entry, BlkioEntry{
			Device: devices[deviceKey{major, minor}],
			Major:  major,
			Minor:  minor,
			Op:     op,
			Value:  v,
		})
	}
	return sc.Err()
}

func splitBlkioStatLine(r rune) bool {
	return r == ' ' || r == ':'
}

type blkioStatSettings struct {
	name  string
	entry *[]BlkioEntry
}

func weightValue(v *uint16) []byte {
	if v == nil {
		return nil
	}
	return []byte(strconv.FormatUint(uint64(*v), 10))
}

type deviceKey struct {
	major, minor uint64
}

// getDevices makes a best effort attempt to read all the devices into a
// map keyed by major and minor number. Since devices may be mapped
// multiple times, we err on taking the first occurrence.
func (b *blkioController) getDevices() (map[deviceKey]string, error) {
	f, err := os.Open(filepath.Join(b.procRoot, "diskstats"))
	if err != nil {
		if os.IsNotExist(err) {
			return map[deviceKey]string{}, nil
		}
		return nil, err
	}
	defer f.Close()
	return getDevices(f)
}

func getDevices(r io.Reader) (map[deviceKey]string, error) {
	var (
		s       = bufio.NewScanner(r)
		devices = make(map[deviceKey]string)
	)
	for s.Scan() {
		fields := strings.Fields(s.Text())
		if len(fields) < 3 {
			continue
		}
		major, err := strconv.ParseUint(fields[0], 10, 64)
		if err != nil {
			return nil, err
		}
		minor, err := strconv.ParseUint(fields[1], 10, 64)
		if err != nil {
			return nil, err
		}
		key := deviceKey{major, minor}
		if _, ok := devices[key]; ok {
			continue
		}
		devices[key] = filepath.Join("/dev", fields[2])
	}
	return devices, s.Err()
}
