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

// PresenceEventType enumerates the events the tracker can emit for a device.
type PresenceEventType string

const (
	PresenceArrival   PresenceEventType = "arrival"
	PresenceMovement  PresenceEventType = "movement"
	PresenceHeartbeat PresenceEventType = "heartbeat"
	PresenceDeparture PresenceEventType = "departure"
)

// PresenceEvent is produced by the tracker once per device per cycle at most.
// NodeID is the resolved current node; FromNode is set on movement only.
type PresenceEvent struct {
	Type           PresenceEventType `json:"type"`
	Address        string            `json:"mac_address"`
	NodeID         string            `json:"node_id"`
	FromNode       string            `json:"from_node,omitempty"`
	Classification Classification    `json:"classification"`
	Confidence     float64           `json:"confidence"`
	Signal         int               `json:"signal_dbm"`
	Timestamp      time.Time         `json:"timestamp"`
}

// Identity is a registered person from the personnel directory.
type Identity struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Address string `json:"mac_address"`
}

// PositionEvent is an authorized-presence event: a mobile device matched to a
// registered person at a node.
type PositionEvent struct {
	Type           PresenceEventType `json:"type"`
	Address        string            `json:"mac_address"`
	NodeID         string            `json:"node_id"`
	FromNode       string            `json:"from_node,omitempty"`
	PersonID       string            `json:"person_id,omitempty"`
	PersonName     string            `json:"person_name,omitempty"`
	Classification Classification    `json:"classification"`
	Confidence     float64           `json:"confidence"`
	Signal         int               `json:"signal_dbm"`
	Timestamp      time.Time         `json:"timestamp"`
}

// Security event severities.
const (
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// SecurityEvent is raised for a mobile-classified address with no directory
// match. Escalated is set once the rolling sighting count crosses the
// configured threshold inside the escalation window.
type SecurityEvent struct {
	Address   string    `json:"mac_address"`
	NodeID    string    `json:"node_id"`
	Signal    int       `json:"signal_dbm"`
	Severity  string    `json:"severity"`
	Escalated bool      `json:"escalated"`
	Sightings int       `json:"sightings"`
	Timestamp time.Time `json:"timestamp"`
}

// CloudEvent represents a CloudEvents v1.0 compliant event envelope.
type CloudEvent struct {
	SpecVersion     string      `json:"specversion"`
	ID              string      `json:"id"`
	Source          string      `json:"source"`
	Type            string      `json:"type"`
	DataContentType string      `json:"datacontenttype"`
	Subject         string      `json:"subject,omitempty"`
	Time            *time.Time  `json:"time,omitempty"`
	Data            interface{} `json:"data,omitempty"`
}
