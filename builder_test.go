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
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilderScenario(t *testing.T) {
	mock := newMock(t)
	control, err := NewBuilder("test").
		CPU().Shares(1000).Quota(500000).Period(1000000).Done().
		CPUSet().CPUs("0").Done().
		Build(mock.hierarchy)
	require.NoError(t, err)
	require.NotNil(t, control)

	assert.Equal(t, "1000", mock.readValue(t, "cpu", "test", "cpu.shares"))
	assert.Equal(t, "500000", mock.readValue(t, "cpu", "test", "cpu.cfs_quota_us"))
	assert.Equal(t, "1000000", mock.readValue(t, "cpu", "test", "cpu.cfs_period_us"))
	assert.Equal(t, "0", mock.readValue(t, "cpuset", "test", "cpuset.cpus"))

	// only the requested subsystems are part of the group
	assert.Len(t, control.Subsystems(), 2)
	assert.Nil(t, control.Subsystem(Memory))
	if _, err := os.Stat(filepath.Join(mock.root, "memory", "test")); !os.IsNotExist(err) {
		t.Fatal("memory group should not have been created")
	}
}

func TestBuilderSingleUse(t *testing.T) {
	mock := newMock(t)
	b := NewBuilder("test").PerfEvent()
	_, err := b.Build(mock.hierarchy)
	require.NoError(t, err)
	_, err = b.Build(mock.hierarchy)
	assert.Equal(t, ErrBuilderUsed, err)
}

func TestBuilderNoSubsystems(t *testing.T) {
	mock := newMock(t)
	_, err := NewBuilder("test").Build(mock.hierarchy)
	assert.Equal(t, ErrNoSubsystems, err)
}

func TestBuilderInvalidPath(t *testing.T) {
	mock := newMock(t)
	_, err := NewBuilder("../escape").CPU().Shares(1).Done().Build(mock.hierarchy)
	assert.Equal(t, ErrInvalidPath, err)
}

func TestBuilderInvalidValue(t *testing.T) {
	mock := newMock(t)
	_, err := NewBuilder("test").
		Memory().Swappiness(101).Done().
		Build(mock.hierarchy)
	require.Error(t, err)
	// nothing was created
	if _, err := os.Stat(filepath.Join(mock.root, "memory", "test")); !os.IsNotExist(err) {
		t.Fatal("memory group should not have been created")
	}
}

func TestBuilderPidsMax(t *testing.T) {
	mock := newMock(t)
	_, err := NewBuilder("test").
		Pids().Max().Done().
		Build(mock.hierarchy)
	require.NoError(t, err)
	assert.Equal(t, "max", mock.readValue(t, "pids", "test", "pids.max"))
}

func TestBuilderDevices(t *testing.T) {
	mock := newMock(t)
	// the mock does not provide a devices hierarchy so Build reports the
	// missing subsystem through the partial-failure contract
	control, err := NewBuilder("test").
		Devices().
		Deny(DeviceRule{Type: Wildcard, Major: -1, Minor: -1, Access: "rwm"}).
		Allow(DeviceRule{Type: CharDev, Major: 1, Minor: 3, Access: "mr"}).
		Done().
		Build(mock.hierarchy)
	assert.Nil(t, control)
	var partial *PartialError
	require.ErrorAs(t, err, &partial)
	assert.ErrorIs(t, partial.Of(Devices), ErrNotMounted)
}

func TestBuilderMissingSubsystem(t *testing.T) {
	mock := newMock(t)
	control, err := NewBuilder("test").
		CPU().Shares(100).Done().
		Devices().
		Deny(DeviceRule{Type: Wildcard, Major: -1, Minor: -1, Access: "rwm"}).
		Done().
		Build(mock.hierarchy)
	var partial *PartialError
	require.ErrorAs(t, err, &partial)
	assert.ErrorIs(t, partial.Of(Devices), ErrNotMounted)
	assert.Len(t, partial.Failed, 1)
	// the available subsystem was still created and configured
	require.NotNil(t, control)
	assert.Len(t, control.Subsystems(), 1)
	assert.Nil(t, control.Subsystem(Devices))
	assert.Equal(t, "100", mock.readValue(t, "cpu", "test", "cpu.shares"))
}

func TestBuilderNetworkAndRdma(t *testing.T) {
	mock := newMock(t)
	_, err := NewBuilder("test").
		NetCLS().ClassID(0x100001).Done().
		NetPrio().Priority("eth0", 5).Done().
		Rdma().Limit("mlx4_0", 2, 2000).Done().
		Build(mock.hierarchy)
	require.NoError(t, err)
	assert.Equal(t, "1048577", mock.readValue(t, "net_cls", "test", "net_cls.classid"))
	assert.Equal(t, "eth0 5", mock.readValue(t, "net_prio", "test", "net_prio.ifpriomap"))
	assert.Equal(t, "mlx4_0 hca_handle=2 hca_object=2000", mock.readValue(t, "rdma", "test", "rdma.max"))
}
