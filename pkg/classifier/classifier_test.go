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

package classifier

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/subterra/tunnelsense/pkg/models"
	"github.com/subterra/tunnelsense/pkg/oui"
)

func newTestClassifier(t *testing.T) *Classifier {
	t.Helper()

	index, err := oui.NewIndex()
	require.NoError(t, err)

	config := Config{}
	require.NoError(t, config.Validate())

	return New(index, config)
}

func samplesWithSignals(signals ...int) []models.Sample {
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	samples := make([]models.Sample, 0, len(signals))

	for i, s := range signals {
		samples = append(samples, models.Sample{
			Timestamp: base.Add(time.Duration(i) * 30 * time.Second),
			Signal:    s,
			NodeID:    "node-a",
		})
	}

	return samples
}

func TestClassifyVendorTableIsAuthoritative(t *testing.T) {
	t.Parallel()

	c := newTestClassifier(t)

	// Wildly varying signal would look mobile behaviorally, but the
	// infrastructure table hit wins.
	result := c.Classify("B8:27:EB:DE:F0:12", samplesWithSignals(-30, -80, -25, -90, -40))

	assert.Equal(t, models.ClassificationInfrastructure, result.Class)
	assert.InDelta(t, 0.95, result.Confidence, 1e-9)
	assert.False(t, c.Actionable(result))
}

func TestClassifyMobileVendorTable(t *testing.T) {
	t.Parallel()

	c := newTestClassifier(t)

	result := c.Classify("3C:2E:FF:12:34:56", nil)

	assert.Equal(t, models.ClassificationMobile, result.Class)
	assert.InDelta(t, 0.95, result.Confidence, 1e-9)
	assert.True(t, c.Actionable(result))
}

func TestClassifyLocallyAdministeredBit(t *testing.T) {
	t.Parallel()

	c := newTestClassifier(t)

	result := c.Classify("A2:11:22:33:44:55", nil)

	assert.Equal(t, models.ClassificationMobile, result.Class)
	assert.InDelta(t, 0.80, result.Confidence, 1e-9)
	assert.True(t, c.Actionable(result))
}

func TestClassifyStableSignalNeverMobile(t *testing.T) {
	t.Parallel()

	c := newTestClassifier(t)

	// All samples within [-50,-49]: variance far below the movement
	// threshold, long enough to presume fixed equipment.
	result := c.Classify("AA:BB:CC:DD:EE:11", samplesWithSignals(-50, -49, -50, -49, -50, -49))

	assert.Equal(t, models.ClassificationInfrastructure, result.Class)
	assert.InDelta(t, 0.70, result.Confidence, 1e-9)
}

func TestClassifyHighVarianceIsMobile(t *testing.T) {
	t.Parallel()

	c := newTestClassifier(t)

	result := c.Classify("AA:BB:CC:DD:EE:11", samplesWithSignals(-30, -60, -85, -40, -75))

	assert.Equal(t, models.ClassificationMobile, result.Class)
	assert.GreaterOrEqual(t, result.Confidence, 0.60)
	assert.LessOrEqual(t, result.Confidence, 0.85)
}

func TestClassifyInsufficientSamplesIsUnknown(t *testing.T) {
	t.Parallel()

	c := newTestClassifier(t)

	tests := []struct {
		name    string
		samples []models.Sample
	}{
		{"no samples", nil},
		{"one sample", samplesWithSignals(-50)},
		{"few stable samples", samplesWithSignals(-50, -49, -50)},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			result := c.Classify("AA:BB:CC:DD:EE:11", tc.samples)

			assert.Equal(t, models.ClassificationUnknown, result.Class)
			assert.Zero(t, result.Confidence)
			assert.False(t, c.Actionable(result))
		})
	}
}

func TestConfidenceAlwaysInRange(t *testing.T) {
	t.Parallel()

	c := newTestClassifier(t)

	addresses := []string{
		"3C:2E:FF:12:34:56", // mobile table
		"B8:27:EB:00:00:01", // infrastructure table
		"A2:00:00:00:00:01", // randomized
		"AA:BB:CC:DD:EE:11", // behavioral
		"not-an-address",
	}

	signalSets := [][]int{
		nil,
		{-50},
		{-50, -49, -50, -49, -50},
		{-20, -95, -20, -95, -20, -95},
		{-120, -1},
	}

	for _, address := range addresses {
		for _, signals := range signalSets {
			result := c.Classify(address, samplesWithSignals(signals...))

			assert.GreaterOrEqual(t, result.Confidence, 0.0, "address %s signals %v", address, signals)
			assert.LessOrEqual(t, result.Confidence, 1.0, "address %s signals %v", address, signals)
		}
	}
}

func TestActionableRequiresMinConfidence(t *testing.T) {
	t.Parallel()

	index, err := oui.NewIndex()
	require.NoError(t, err)

	config := Config{MinConfidence: 0.9}
	require.NoError(t, config.Validate())

	c := New(index, config)

	// Randomized-bit confidence (0.80) is below the raised floor, so the
	// mobile label is not actioned this cycle.
	result := c.Classify("A2:11:22:33:44:55", nil)
	assert.Equal(t, models.ClassificationMobile, result.Class)
	assert.False(t, c.Actionable(result))
}

func TestSignalDeviation(t *testing.T) {
	t.Parallel()

	assert.Zero(t, SignalDeviation(nil))
	assert.Zero(t, SignalDeviation(samplesWithSignals(-50)))
	assert.InDelta(t, 0.5, SignalDeviation(samplesWithSignals(-50, -49)), 1e-9)
	assert.InDelta(t, 10.0, SignalDeviation(samplesWithSignals(-40, -60)), 1e-9)
}

func TestStableRun(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		signals []int
		want    int
	}{
		{"empty", nil, 0},
		{"single", []int{-50}, 1},
		{"all stable", []int{-50, -49, -50, -49}, 4},
		{"broken run", []int{-50, -80, -49, -50}, 3},
		{"jump at end", []int{-50, -49, -90}, 1},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, StableRun(samplesWithSignals(tc.signals...), 10))
		})
	}
}
