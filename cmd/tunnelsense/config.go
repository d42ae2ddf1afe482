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

package main

import (
	"errors"
	"fmt"

	"github.com/subterra/tunnelsense/pkg/authgate"
	"github.com/subterra/tunnelsense/pkg/classifier"
	"github.com/subterra/tunnelsense/pkg/directory"
	"github.com/subterra/tunnelsense/pkg/dispatcher"
	"github.com/subterra/tunnelsense/pkg/logger"
	"github.com/subterra/tunnelsense/pkg/models"
	"github.com/subterra/tunnelsense/pkg/nodeclient"
	"github.com/subterra/tunnelsense/pkg/oui"
	"github.com/subterra/tunnelsense/pkg/scheduler"
	"github.com/subterra/tunnelsense/pkg/tracker"
)

var (
	errNoNodesConfigured = errors.New("at least one access node is required")
	errDuplicateNodeID   = errors.New("duplicate access node id")
	errNodeFieldMissing  = errors.New("access node id, name and address are required")
)

// Config is the full service configuration, constructed once at startup and
// passed into each component. Thresholds change only via restart or a fresh
// load, never mid-cycle.
type Config struct {
	Nodes        []models.AccessNode   `json:"nodes"`
	NodeClient   nodeclient.Config     `json:"node_client"`
	Monitoring   scheduler.Config      `json:"monitoring"`
	Classifier   classifier.Config     `json:"classifier"`
	ExtraVendors []oui.Entry           `json:"extra_vendors,omitempty"`
	Tracker      tracker.Config        `json:"tracker"`
	Gate         authgate.Config       `json:"authorization"`
	Directory    directory.Config      `json:"directory"`
	Dispatcher   dispatcher.Config     `json:"dispatcher"`
	NATS         dispatcher.NATSConfig `json:"nats"`
	Logging      *logger.Config        `json:"logging,omitempty"`
}

func (c *Config) Validate() error {
	if len(c.Nodes) == 0 {
		return errNoNodesConfigured
	}

	seen := make(map[string]struct{}, len(c.Nodes))

	for _, node := range c.Nodes {
		if node.ID == "" || node.Name == "" || node.Address == "" {
			return fmt.Errorf("%w: %+v", errNodeFieldMissing, node)
		}

		if _, ok := seen[node.ID]; ok {
			return fmt.Errorf("%w: %s", errDuplicateNodeID, node.ID)
		}

		seen[node.ID] = struct{}{}
	}

	for _, v := range []interface{ Validate() error }{
		&c.NodeClient, &c.Monitoring, &c.Classifier, &c.Tracker,
		&c.Gate, &c.Directory, &c.Dispatcher, &c.NATS,
	} {
		if err := v.Validate(); err != nil {
			return err
		}
	}

	return nil
}
