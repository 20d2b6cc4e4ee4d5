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
)

const (
	allowDeviceFile = "devices.allow"
	denyDeviceFile  = "devices.deny"
	wildcardDevice  = int64(-1)
)

// DeviceKind is the single letter device type of a device rule
type DeviceKind byte

const (
	// Wildcard applies a rule to all device types
	Wildcard DeviceKind = 'a'
	BlockDev DeviceKind = 'b'
	CharDev  DeviceKind = 'c'
)

// DeviceAccess is a combination of the r, w, and m permission letters
type DeviceAccess string

func (a DeviceAccess) valid() bool {
	if a == "" {
		return false
	}
	for i := 0; i < len(a); i++ {
		switch a[i] {
		case 'r', 'w', 'm':
		default:
			return false
		}
	}
	return true
}

// DeviceRule is one entry of the devices.allow / devices.deny whitelist
// in the kernel's "type major:minor access" grammar
type DeviceRule struct {
	// Allow selects devices.allow over devices.deny
	Allow bool
	Type  DeviceKind
	// Major is the device major number, wildcardDevice (-1) writes "*"
	Major  int64
	Minor  int64
	Access DeviceAccess
}

// String formats the rule in the kernel's grammar, e.g. "c 1:3 mr".
// Parsing the result with ParseDeviceRule round-trips exactly.
func (d DeviceRule) String() string {
	return fmt.Sprintf("%c %s:%s %s",
		d.Type,
		deviceNumber(d.Major),
		deviceNumber(d.Minor),
		d.Access,
	)
}

func (d DeviceRule) validate() error {
	switch d.Type {
	case Wildcard, BlockDev, CharDev:
	default:
		return fmt.Errorf("cgroup1: invalid device type %q", string(d.Type))
	}
	if !d.Access.valid() {
		return fmt.Errorf("cgroup1: invalid device access %q", d.Access)
	}
	if d.Major < wildcardDevice || d.Minor < wildcardDevice {
		return fmt.Errorf("cgroup1: invalid device number %d:%d", d.Major, d.Minor)
	}
	return nil
}

// ParseDeviceRule parses one "type major:minor access" line as read from
// devices.list
func ParseDeviceRule(s string) (DeviceRule, error) {
	var rule DeviceRule
	fields := strings.Fields(s)
	if len(fields) != 3 {
		return rule, fmt.Errorf("%w: %q is not a device rule", ErrInvalidFormat, s)
	}
	if len(fields[0]) != 1 {
		return rule, fmt.Errorf("%w: %q is not a device type", ErrInvalidFormat, fields[0])
	}
	rule.Type = DeviceKind(fields[0][0])
	numbers := strings.SplitN(fields[1], ":", 2)
	if len(numbers) != 2 {
		return rule, fmt.Errorf("%w: %q is not a major:minor pair", ErrInvalidFormat, fields[1])
	}
	var err error
	if rule.Major, err = parseDeviceNumber(numbers[0]); err != nil {
		return rule, err
	}
	if rule.Minor, err = parseDeviceNumber(numbers[1]); err != nil {
		return rule, err
	}
	rule.Access = DeviceAccess(fields[2])
	if err := rule.validate(); err != nil {
		return rule, err
	}
	return rule, nil
}

func parseDeviceNumber(s string) (int64, error) {
	if s == "*" {
		return wildcardDevice, nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("%w: %q is not a device number", ErrInvalidFormat, s)
	}
	return v, nil
}

func deviceNumber(number int64) string {
	if number == wildcardDevice {
		return "*"
	}
	return strconv.FormatInt(number, 10)
}

func NewDevices(root string) *devicesController {
	return &devicesController{
		root: filepath.Join(root, string(Devices)),
	}
}

type devicesController struct {
	root string
}

func (d *devicesController) Name() Name {
	return Devices
}

func (d *devicesController) Path(path string) string {
	return filepath.Join(d.root, path)
}

func (d *devicesController) Create(path string, resources *Resources) error {
	if err := mkdirAll(d.root, d.Path(path)); err != nil {
		return err
	}
	return d.Apply(path, resources)
}

// Apply writes each rule to devices.allow or devices.deny in slice
// order. Rules are validated up front so nothing is written when the
// set contains an invalid rule.
func (d *devicesController) Apply(path string, resources *Resources) error {
	if resources == nil || resources.Devices == nil {
		return nil
	}
	for _, rule := range resources.Devices.Rules {
		if err := rule.validate(); err != nil {
			return err
		}
	}
	for _, rule := range resources.Devices.Rules {
		file := denyDeviceFile
		if rule.Allow {
			file = allowDeviceFile
		}
		if err := os.WriteFile(
			filepath.Join(d.Path(path), file),
			[]byte(rule.String()),
			defaultFilePerm,
		); err != nil {
			return err
		}
	}
	return nil
}

// List reads and parses devices.list, the set of devices the group is
// currently allowed to access
func (d *devicesController) List(path string) ([]DeviceRule, error) {
	f, err := os.Open(filepath.Join(d.Path(path), "devices.list"))
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var out []DeviceRule
	s := bufio.NewScanner(f)
	for s.Scan() {
		if t := s.Text(); t != "" {
			rule, err := ParseDeviceRule(t)
			if err != nil {
				return nil, err
			}
			rule.Allow = true
			out = append(out, rule)
		}
	}
	if err := s.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
