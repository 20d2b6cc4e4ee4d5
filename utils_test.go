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
	"strings"
	"testing"
)

func TestParseUint(t *testing.T) {
	for _, tc := range []struct {
		input    string
		expected uint64
	}{
		{"0", 0},
		{"42", 42},
		{"18446744073709551615", 18446744073709551615},
		// negative values reported by buggy kernels saturate at zero
		{"-1", 0},
		{"-9223372036854775808", 0},
		{"-18446744073709551615", 0},
	} {
		v, err := parseUint(tc.input, 10, 64)
		if err != nil {
			t.Errorf("unexpected error for %q: %v", tc.input, err)
			continue
		}
		if v != tc.expected {
			t.Errorf("expected %d for %q but received %d", tc.expected, tc.input, v)
		}
	}
	if _, err := parseUint("banana", 10, 64); !errors.Is(err, ErrInvalidFormat) {
		t.Fatalf("expected ErrInvalidFormat but received %v", err)
	}
}

func TestParseKV(t *testing.T) {
	k, v, err := parseKV("io_service_bytes 1234")
	if err != nil {
		t.Fatal(err)
	}
	if k != "io_service_bytes" || v != 1234 {
		t.Fatalf("unexpected pair %q %d", k, v)
	}
	for _, invalid := range []string{"", "one", "one two three"} {
		if _, _, err := parseKV(invalid); !errors.Is(err, ErrInvalidFormat) {
			t.Errorf("expected ErrInvalidFormat for %q but received %v", invalid, err)
		}
	}
}

func TestParseCgroupFromReader(t *testing.T) {
	data := `5:cpuacct,cpu:/user.slice
4:memory:/user.slice
3:pids:/user.slice/user-1000.slice
2:name=systemd:/user.slice/user-1000.slice/session-1.scope
1:devices:/user.slice
`
	cgroups, err := parseCgroupFromReader(strings.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	for subsystem, expected := range map[string]string{
		"cpu":          "/user.slice",
		"cpuacct":      "/user.slice",
		"memory":       "/user.slice",
		"pids":         "/user.slice/user-1000.slice",
		"name=systemd": "/user.slice/user-1000.slice/session-1.scope",
		"devices":      "/user.slice",
	} {
		if p := cgroups[subsystem]; p != expected {
			t.Errorf("expected %q for %s but received %q", expected, subsystem, p)
		}
	}
}

func TestParseCgroupFromReaderInvalid(t *testing.T) {
	if _, err := parseCgroupFromReader(strings.NewReader("4:memory\n")); !errors.Is(err, ErrInvalidFormat) {
		t.Fatalf("expected ErrInvalidFormat but received %v", err)
	}
}

func TestCleanPath(t *testing.T) {
	for _, tc := range []struct {
		input    string
		expected string
	}{
		{"", ""},
		{"/", "/"},
		{"/test", "/test"},
		{"test", "test"},
		{"test/../escape", "escape"},
		{"../../escape", "escape"},
	} {
		if p := cleanPath(tc.input); p != tc.expected {
			t.Errorf("expected %q for %q but received %q", tc.expected, tc.input, p)
		}
	}
}
