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

// Package tracker folds poll-cycle observations into per-device state and
// emits arrival, movement, heartbeat and departure events.
//
// The tracker owns the DeviceState table exclusively. ProcessCycle is called
// once per completed cycle from the scheduler's single poll goroutine, so the
// table needs no locking.
package tracker

import (
	"context"
	"time"

	"github.com/subterra/tunnelsense/pkg/classifier"
	"github.com/subterra/tunnelsense/pkg/logger"
	"github.com/subterra/tunnelsense/pkg/models"
)

// EventConsumer receives the tracker's presence events. In production this is
// the authorization gate.
type EventConsumer interface {
	HandlePresence(ctx context.Context, event models.PresenceEvent)
}

// Config holds the tracker's tunables.
type Config struct {
	// MinSignal is the weakest usable signal level for node assignment.
	MinSignal int `json:"min_signal"`
	// HysteresisMargin is the signal advantage a candidate node needs before
	// an assignment switches away from a still-reporting node.
	HysteresisMargin int `json:"hysteresis_margin"`
	// InactivityHorizon is how long a device may go unobserved before it is
	// marked departed.
	InactivityHorizon models.Duration `json:"inactivity_horizon"`
	// EvictionHorizon is how long after its last observation a departed
	// device's state is kept around.
	EvictionHorizon models.Duration `json:"eviction_horizon"`
	StatsInterval   int             `json:"stats_interval"`
}

func (c *Config) Validate() error {
	if c.MinSignal == 0 {
		c.MinSignal = -80
	}

	if c.HysteresisMargin <= 0 {
		c.HysteresisMargin = 5
	}

	if c.InactivityHorizon == 0 {
		c.InactivityHorizon = models.Duration(5 * time.Minute)
	}

	if c.EvictionHorizon == 0 {
		c.EvictionHorizon = models.Duration(30 * time.Minute)
	}

	if c.EvictionHorizon < c.InactivityHorizon {
		c.EvictionHorizon = c.InactivityHorizon
	}

	if c.StatsInterval <= 0 {
		c.StatsInterval = 10
	}

	return nil
}

// Tracker resolves each actionable mobile device to exactly one access node
// per cycle.
type Tracker struct {
	config     Config
	classifier *classifier.Classifier
	consumer   EventConsumer
	logger     logger.Logger

	devices map[string]*models.DeviceState
	cycle   int
}

// New creates a Tracker feeding events to the given consumer.
func New(config Config, cls *classifier.Classifier, consumer EventConsumer, log logger.Logger) *Tracker {
	return &Tracker{
		config:     config,
		classifier: cls,
		consumer:   consumer,
		logger:     log,
		devices:    make(map[string]*models.DeviceState),
	}
}

// ProcessCycle implements scheduler.Processor. It updates device state from
// one cycle's observations, reclassifies every observed address, resolves
// node assignments, and sweeps for departures.
func (t *Tracker) ProcessCycle(ctx context.Context, observations []models.Observation, at time.Time) {
	t.cycle++

	byAddress := make(map[string][]models.Observation)
	for _, obs := range observations {
		byAddress[obs.Address] = append(byAddress[obs.Address], obs)
	}

	for address, deviceObs := range byAddress {
		t.processDevice(ctx, address, deviceObs, at)
	}

	t.sweepDepartures(ctx, at)

	if t.cycle%t.config.StatsInterval == 0 {
		t.logStats()
	}
}

// DeviceCount returns the number of tracked addresses.
func (t *Tracker) DeviceCount() int {
	return len(t.devices)
}

func (t *Tracker) processDevice(ctx context.Context, address string, observations []models.Observation, at time.Time) {
	device, ok := t.devices[address]
	if !ok {
		device = &models.DeviceState{Address: address, FirstSeen: at}
		t.devices[address] = device
	}

	for _, obs := range observations {
		device.Samples = append(device.Samples, models.Sample{
			Timestamp: obs.Timestamp,
			Signal:    obs.Signal,
			NodeID:    obs.NodeID,
		})
	}

	device.PruneSamples(at, t.classifier.Window())
	device.LastSeen = at

	result := t.classifier.Classify(address, device.Samples)
	device.Classification = result.Class
	device.Confidence = result.Confidence
	device.StableSamples = result.StableRun

	// Sub-threshold mobile classifications are not actioned this cycle; the
	// samples are kept so later cycles can raise the confidence.
	if !t.classifier.Actionable(result) {
		return
	}

	t.resolveNode(ctx, device, observations, at)
}

// resolveNode picks the strongest usable signal this cycle and applies the
// hysteresis rule before switching an existing assignment.
func (t *Tracker) resolveNode(ctx context.Context, device *models.DeviceState, observations []models.Observation, at time.Time) {
	best, ok := strongest(observations, t.config.MinSignal)
	if !ok {
		return
	}

	previous := device.AssignedNode

	switch {
	case previous == "":
		t.assign(device, best.NodeID, at)
		t.emit(ctx, device, models.PresenceEvent{
			Type:      models.PresenceArrival,
			Address:   device.Address,
			NodeID:    best.NodeID,
			Signal:    best.Signal,
			Timestamp: at,
		})

	case previous == best.NodeID:
		t.heartbeat(ctx, device, best, at)

	default:
		previousSignal, reported := signalFrom(observations, previous)
		if reported && best.Signal-previousSignal < t.config.HysteresisMargin {
			// Candidate not convincingly stronger; stay put.
			t.heartbeat(ctx, device, best, at)
			return
		}

		t.assign(device, best.NodeID, at)
		t.emit(ctx, device, models.PresenceEvent{
			Type:      models.PresenceMovement,
			Address:   device.Address,
			NodeID:    best.NodeID,
			FromNode:  previous,
			Signal:    best.Signal,
			Timestamp: at,
		})
	}
}

func (t *Tracker) assign(device *models.DeviceState, nodeID string, at time.Time) {
	device.AssignedNode = nodeID
	device.AssignedAt = at
}

// heartbeat reports continued presence on the current node. Emitted every
// cycle so the gate's unauthorized-sighting counter is fed even for a device
// that never moves; the gate throttles the dispatched position events.
func (t *Tracker) heartbeat(ctx context.Context, device *models.DeviceState, best models.Observation, at time.Time) {
	t.emit(ctx, device, models.PresenceEvent{
		Type:      models.PresenceHeartbeat,
		Address:   device.Address,
		NodeID:    device.AssignedNode,
		Signal:    best.Signal,
		Timestamp: at,
	})
}

// sweepDepartures marks devices unobserved beyond the inactivity horizon as
// departed (exactly once, by clearing the assignment) and evicts long-dead
// state.
func (t *Tracker) sweepDepartures(ctx context.Context, at time.Time) {
	inactivity := t.config.InactivityHorizon.Duration()
	eviction := t.config.EvictionHorizon.Duration()

	for address, device := range t.devices {
		idle := at.Sub(device.LastSeen)

		if idle > inactivity && device.Assigned() {
			lastNode := device.AssignedNode
			device.AssignedNode = ""
			device.AssignedAt = time.Time{}

			lastSignal := 0
			if n := len(device.Samples); n > 0 {
				lastSignal = device.Samples[n-1].Signal
			}

			t.emit(ctx, device, models.PresenceEvent{
				Type:      models.PresenceDeparture,
				Address:   address,
				NodeID:    lastNode,
				Signal:    lastSignal,
				Timestamp: at,
			})
		}

		if idle > eviction {
			delete(t.devices, address)
		}
	}
}

func (t *Tracker) emit(ctx context.Context, device *models.DeviceState, event models.PresenceEvent) {
	event.Classification = device.Classification
	event.Confidence = device.Confidence

	t.logger.Debug().
		Str("type", string(event.Type)).
		Str("mac", event.Address).
		Str("node_id", event.NodeID).
		Str("from_node", event.FromNode).
		Msg("Presence event")

	t.consumer.HandlePresence(ctx, event)
}

func (t *Tracker) logStats() {
	var mobile, infrastructure, unknown int

	for _, device := range t.devices {
		switch device.Classification {
		case models.ClassificationMobile:
			mobile++
		case models.ClassificationInfrastructure:
			infrastructure++
		case models.ClassificationUnknown:
			unknown++
		}
	}

	t.logger.Info().
		Int("devices", len(t.devices)).
		Int("mobile", mobile).
		Int("infrastructure", infrastructure).
		Int("unknown", unknown).
		Msg("Device classification statistics")
}

func strongest(observations []models.Observation, minSignal int) (models.Observation, bool) {
	var best models.Observation

	found := false

	for _, obs := range observations {
		if obs.Signal < minSignal {
			continue
		}

		if !found || obs.Signal > best.Signal {
			best = obs
			found = true
		}
	}

	return best, found
}

func signalFrom(observations []models.Observation, nodeID string) (int, bool) {
	signal := 0
	found := false

	for _, obs := range observations {
		if obs.NodeID == nodeID {
			signal = obs.Signal
			found = true
		}
	}

	return signal, found
}
