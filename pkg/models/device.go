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

import "time"

// Classification is the label assigned to an observed hardware address.
type Classification string

const (
	ClassificationMobile         Classification = "mobile"
	ClassificationInfrastructure Classification = "infrastructure"
	ClassificationUnknown        Classification = "unknown"
)

// Point is a 2-D logical coordinate inside the tunnel.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// AccessNode is a fixed mesh access point, created from configuration at
// startup and never created or destroyed at runtime.
type AccessNode struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Address        string `json:"address"`
	Location       Point  `json:"location"`
	Zone           string `json:"zone,omitempty"`
	CredentialsRef string `json:"credentials_ref,omitempty"`
}

// NodeHealth tracks per-node polling health. Owned by the scheduler and
// mutated only from the cycle-completion point, never from within workers.
type NodeHealth struct {
	Active              bool
	ConsecutiveFailures int
	LastSuccess         time.Time
}

// Observation is a single client sighting reported by one node during one
// poll cycle. Observations are not persisted beyond the cycle that consumed
// them.
type Observation struct {
	Address   string    `json:"mac_address"`
	NodeID    string    `json:"node_id"`
	Signal    int       `json:"signal_dbm"`
	Timestamp time.Time `json:"timestamp"`
}

// Sample is one entry in a device's sliding signal history window.
type Sample struct {
	Timestamp time.Time
	Signal    int
	NodeID    string
}

// DeviceState holds everything known about one distinct hardware address.
// The tracker owns the DeviceState table exclusively; all mutation happens
// during the single-threaded fold after a cycle's observations are gathered.
type DeviceState struct {
	Address        string
	Samples        []Sample
	Classification Classification
	Confidence     float64
	AssignedNode   string // empty when unassigned
	AssignedAt     time.Time
	StableSamples  int
	FirstSeen      time.Time
	LastSeen       time.Time
}

// Assigned reports whether the device currently has a node assignment.
func (d *DeviceState) Assigned() bool {
	return d.AssignedNode != ""
}

// PruneSamples drops samples older than the horizon relative to now.
func (d *DeviceState) PruneSamples(now time.Time, horizon time.Duration) {
	cutoff := now.Add(-horizon)

	idx := 0
	for idx < len(d.Samples) && d.Samples[idx].Timestamp.Before(cutoff) {
		idx++
	}

	if idx > 0 {
		d.Samples = append(d.Samples[:0], d.Samples[idx:]...)
	}
}
