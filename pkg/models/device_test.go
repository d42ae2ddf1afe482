/*
 * Copyright 2025 Subterra Systems Ltd.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeviceStateAssigned(t *testing.T) {
	t.Parallel()

	device := &DeviceState{Address: "3C:2E:FF:12:34:56"}
	assert.False(t, device.Assigned())

	device.AssignedNode = "entrance"
	assert.True(t, device.Assigned())
}

func TestPruneSamples(t *testing.T) {
	t.Parallel()

	at := time.Date(2026, 8, 1, 8, 0, 0, 0, time.UTC)

	device := &DeviceState{Samples: []Sample{
		{Timestamp: at.Add(-40 * time.Minute), Signal: -60},
		{Timestamp: at.Add(-31 * time.Minute), Signal: -58},
		{Timestamp: at.Add(-10 * time.Minute), Signal: -55},
		{Timestamp: at, Signal: -50},
	}}

	device.PruneSamples(at, 30*time.Minute)

	require.Len(t, device.Samples, 2)
	assert.Equal(t, -55, device.Samples[0].Signal)
	assert.Equal(t, -50, device.Samples[1].Signal)
}

func TestPruneSamplesKeepsEverythingInsideHorizon(t *testing.T) {
	t.Parallel()

	at := time.Date(2026, 8, 1, 8, 0, 0, 0, time.UTC)

	device := &DeviceState{Samples: []Sample{
		{Timestamp: at.Add(-time.Minute), Signal: -60},
		{Timestamp: at, Signal: -50},
	}}

	device.PruneSamples(at, 30*time.Minute)
	assert.Len(t, device.Samples, 2)
}
