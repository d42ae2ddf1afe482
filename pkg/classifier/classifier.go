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

// Package classifier decides whether an observed hardware address is a
// personnel-carried mobile device or fixed infrastructure.
//
// Rules run in priority order: vendor table lookup, locally-administered bit,
// then behavioral analysis over the device's recent signal history. A table
// hit is authoritative and short-circuits the remaining rules.
package classifier

import (
	"fmt"
	"math"
	"time"

	"github.com/subterra/tunnelsense/pkg/models"
	"github.com/subterra/tunnelsense/pkg/oui"
)

// Rule confidences and the behavioral confidence band.
const (
	tableConfidence      = 0.95
	randomizedConfidence = 0.80
	movingConfidenceMin  = 0.60
	movingConfidenceMax  = 0.85
	staticConfidence     = 0.70
)

// Config holds the classifier's tunable thresholds.
type Config struct {
	// MovementThreshold is the signal-level standard deviation above which a
	// device is considered to be moving.
	MovementThreshold float64 `json:"movement_threshold"`
	// MinConfidence is the floor below which a mobile classification is not
	// actioned downstream.
	MinConfidence float64 `json:"min_confidence"`
	// BehaviorWindow bounds the sample history used for behavioral analysis.
	BehaviorWindow models.Duration `json:"behavior_window"`
	// StableSampleCount is the run of near-constant samples after which an
	// unknown device is presumed to be fixed equipment.
	StableSampleCount int `json:"stable_sample_count"`
}

func (c *Config) Validate() error {
	if c.MovementThreshold <= 0 {
		c.MovementThreshold = 10
	}

	if c.MinConfidence <= 0 {
		c.MinConfidence = 0.7
	}

	if c.MinConfidence > 1 {
		return fmt.Errorf("%w: min_confidence %v", errInvalidThreshold, c.MinConfidence)
	}

	if c.BehaviorWindow == 0 {
		c.BehaviorWindow = models.Duration(30 * time.Minute)
	}

	if c.StableSampleCount <= 0 {
		c.StableSampleCount = 5
	}

	return nil
}

var errInvalidThreshold = fmt.Errorf("invalid classifier threshold")

// Result is the outcome of classifying one address. StableRun is the length
// of the trailing near-constant sample run, recorded for static-device
// detection regardless of which rule fired.
type Result struct {
	Class      models.Classification
	Confidence float64
	Vendor     string
	StableRun  int
}

// Classifier is a pure function over an address and its sample window; it
// performs no I/O and keeps no state.
type Classifier struct {
	index  *oui.Index
	config Config
}

// New creates a Classifier backed by the given vendor index.
func New(index *oui.Index, config Config) *Classifier {
	return &Classifier{index: index, config: config}
}

// Classify applies the rule chain to one address and its recent samples.
// Confidence is always in [0,1].
func (c *Classifier) Classify(address string, samples []models.Sample) Result {
	stable := StableRun(samples, c.config.MovementThreshold)

	if entry, ok := c.index.Lookup(address); ok {
		return Result{Class: entry.Class, Confidence: tableConfidence, Vendor: entry.Vendor, StableRun: stable}
	}

	if oui.IsLocallyAdministered(address) {
		return Result{
			Class:      models.ClassificationMobile,
			Confidence: randomizedConfidence,
			Vendor:     "Randomized",
			StableRun:  stable,
		}
	}

	result := c.classifyBehavior(samples)
	result.StableRun = stable

	return result
}

// Window returns the behavior window bounding the sample history.
func (c *Classifier) Window() time.Duration {
	return c.config.BehaviorWindow.Duration()
}

// Actionable reports whether a result is a mobile classification confident
// enough to drive position tracking and authorization checks.
func (c *Classifier) Actionable(r Result) bool {
	return r.Class == models.ClassificationMobile && r.Confidence >= c.config.MinConfidence
}

func (c *Classifier) classifyBehavior(samples []models.Sample) Result {
	if len(samples) < 2 {
		return Result{Class: models.ClassificationUnknown, Confidence: 0}
	}

	deviation := SignalDeviation(samples)

	if deviation > c.config.MovementThreshold {
		// Scale confidence with how far the deviation exceeds the threshold.
		excess := (deviation - c.config.MovementThreshold) / c.config.MovementThreshold

		confidence := movingConfidenceMin + excess*(movingConfidenceMax-movingConfidenceMin)
		if confidence > movingConfidenceMax {
			confidence = movingConfidenceMax
		}

		return Result{Class: models.ClassificationMobile, Confidence: confidence}
	}

	if StableRun(samples, c.config.MovementThreshold) >= c.config.StableSampleCount {
		return Result{Class: models.ClassificationInfrastructure, Confidence: staticConfidence}
	}

	return Result{Class: models.ClassificationUnknown, Confidence: 0}
}

// SignalDeviation computes the standard deviation of signal levels across the
// sample window.
func SignalDeviation(samples []models.Sample) float64 {
	if len(samples) < 2 {
		return 0
	}

	var sum float64
	for _, s := range samples {
		sum += float64(s.Signal)
	}

	mean := sum / float64(len(samples))

	var variance float64
	for _, s := range samples {
		d := float64(s.Signal) - mean
		variance += d * d
	}

	variance /= float64(len(samples))

	return math.Sqrt(variance)
}

// StableRun returns the length of the trailing run of samples whose signal
// stays within the movement threshold of its predecessor.
func StableRun(samples []models.Sample, threshold float64) int {
	if len(samples) == 0 {
		return 0
	}

	run := 1

	for i := len(samples) - 1; i > 0; i-- {
		delta := math.Abs(float64(samples[i].Signal - samples[i-1].Signal))
		if delta > threshold {
			break
		}

		run++
	}

	return run
}
