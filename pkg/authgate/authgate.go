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

// Package authgate checks mobile presence events against the registered-person
// directory and raises rate-limited security events for unknown devices.
package authgate

import (
	"context"
	"errors"
	"time"

	"github.com/subterra/tunnelsense/pkg/directory"
	"github.com/subterra/tunnelsense/pkg/logger"
	"github.com/subterra/tunnelsense/pkg/models"
)

// Dispatcher receives the gate's output events.
type Dispatcher interface {
	DispatchPosition(ctx context.Context, event models.PositionEvent)
	DispatchSecurity(ctx context.Context, event models.SecurityEvent)
}

// Config holds the gate's tunables.
type Config struct {
	// EscalationWindow is the rolling window over which unknown-device
	// sightings are counted.
	EscalationWindow models.Duration `json:"escalation_window"`
	// EscalationThreshold is the sighting count at which a security event is
	// marked escalated.
	EscalationThreshold int `json:"escalation_threshold"`
	// Cooldown suppresses repeat security events for the same address.
	Cooldown models.Duration `json:"cooldown"`
	// HeartbeatInterval is the minimum time between forwarded heartbeat
	// position events for a device parked on one node. Arrivals, movements
	// and departures are never throttled.
	HeartbeatInterval models.Duration `json:"heartbeat_interval"`
}

func (c *Config) Validate() error {
	if c.EscalationWindow == 0 {
		c.EscalationWindow = models.Duration(5 * time.Minute)
	}

	if c.EscalationThreshold <= 0 {
		c.EscalationThreshold = 3
	}

	if c.Cooldown == 0 {
		c.Cooldown = models.Duration(5 * time.Minute)
	}

	if c.HeartbeatInterval == 0 {
		c.HeartbeatInterval = models.Duration(2 * time.Minute)
	}

	return nil
}

type sighting struct {
	seen        []time.Time
	lastEmitted time.Time
	lastEvent   models.SecurityEvent
}

// Gate consumes classified presence events from the tracker.
type Gate struct {
	config     Config
	lookup     directory.Lookup
	dispatcher Dispatcher
	logger     logger.Logger

	sightings     map[string]*sighting
	lastHeartbeat map[string]time.Time
}

// New creates a Gate.
func New(config Config, lookup directory.Lookup, dispatcher Dispatcher, log logger.Logger) *Gate {
	return &Gate{
		config:        config,
		lookup:        lookup,
		dispatcher:    dispatcher,
		logger:        log,
		sightings:     make(map[string]*sighting),
		lastHeartbeat: make(map[string]time.Time),
	}
}

// HandlePresence implements tracker.EventConsumer. The tracker reports every
// cycle, including per-cycle heartbeats for parked devices; the gate counts
// all of them for the unauthorized-sighting window and throttles only the
// authorized heartbeat position events it forwards downstream.
func (g *Gate) HandlePresence(ctx context.Context, event models.PresenceEvent) {
	// Departures carry no authorization decision; forward them as-is.
	if event.Type == models.PresenceDeparture {
		delete(g.lastHeartbeat, event.Address)
		g.dispatcher.DispatchPosition(ctx, positionEvent(event, nil))

		return
	}

	identity, err := g.lookup.LookupByAddress(ctx, event.Address)

	switch {
	case err == nil:
		if g.throttleHeartbeat(event) {
			return
		}

		g.logger.Debug().
			Str("mac", event.Address).
			Str("person_id", identity.ID).
			Str("node_id", event.NodeID).
			Msg("Authorized presence")

		g.dispatcher.DispatchPosition(ctx, positionEvent(event, identity))

	case errors.Is(err, directory.ErrNotFound):
		g.recordUnauthorized(ctx, event)

	default:
		// Directory unavailable: neither authorized nor unauthorized.
		// The device will be re-checked on its next event.
		g.logger.Warn().Err(err).
			Str("mac", event.Address).
			Msg("Directory lookup failed, deferring authorization decision")
	}
}

// throttleHeartbeat reports whether an authorized heartbeat should be
// swallowed. Arrivals and movements always pass and reset the per-address
// freshness clock.
func (g *Gate) throttleHeartbeat(event models.PresenceEvent) bool {
	if event.Type == models.PresenceHeartbeat {
		last, ok := g.lastHeartbeat[event.Address]
		if ok && event.Timestamp.Sub(last) < g.config.HeartbeatInterval.Duration() {
			return true
		}
	}

	g.lastHeartbeat[event.Address] = event.Timestamp

	return false
}

// recordUnauthorized updates the rolling sighting count for an unknown mobile
// device and emits at most one security event per cooldown window.
func (g *Gate) recordUnauthorized(ctx context.Context, event models.PresenceEvent) {
	s, ok := g.sightings[event.Address]
	if !ok {
		s = &sighting{}
		g.sightings[event.Address] = s
	}

	now := event.Timestamp
	window := g.config.EscalationWindow.Duration()

	seen := s.seen[:0]

	for _, ts := range s.seen {
		if now.Sub(ts) <= window {
			seen = append(seen, ts)
		}
	}

	s.seen = append(seen, now)

	escalated := len(s.seen) >= g.config.EscalationThreshold

	severity := models.SeverityWarning
	if escalated {
		severity = models.SeverityCritical
	}

	s.lastEvent = models.SecurityEvent{
		Address:   event.Address,
		NodeID:    event.NodeID,
		Signal:    event.Signal,
		Severity:  severity,
		Escalated: escalated,
		Sightings: len(s.seen),
		Timestamp: now,
	}

	if !s.lastEmitted.IsZero() && now.Sub(s.lastEmitted) < g.config.Cooldown.Duration() {
		// Updated in place; re-emission waits for the cooldown.
		return
	}

	s.lastEmitted = now

	g.logger.Warn().
		Str("mac", event.Address).
		Str("node_id", event.NodeID).
		Str("severity", severity).
		Int("sightings", len(s.seen)).
		Msg("Unauthorized device detected")

	g.dispatcher.DispatchSecurity(ctx, s.lastEvent)

	g.pruneSightings(now)
}

// pruneSightings drops addresses with no recent sightings so the table does
// not grow with every transient address ever seen.
func (g *Gate) pruneSightings(now time.Time) {
	horizon := g.config.EscalationWindow.Duration() + g.config.Cooldown.Duration()

	for address, s := range g.sightings {
		if len(s.seen) == 0 || now.Sub(s.seen[len(s.seen)-1]) > horizon {
			delete(g.sightings, address)
		}
	}
}

func positionEvent(event models.PresenceEvent, identity *models.Identity) models.PositionEvent {
	out := models.PositionEvent{
		Type:           event.Type,
		Address:        event.Address,
		NodeID:         event.NodeID,
		FromNode:       event.FromNode,
		Classification: event.Classification,
		Confidence:     event.Confidence,
		Signal:         event.Signal,
		Timestamp:      event.Timestamp,
	}

	if identity != nil {
		out.PersonID = identity.ID
		out.PersonName = identity.Name
	}

	return out
}
