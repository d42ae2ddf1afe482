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

// Package nodeclient queries mesh access nodes for their associated wireless
// clients. The engine depends only on the Client interface; the HTTP
// implementation targets the nodes' JSON management API and is replaceable
// per vendor.
package nodeclient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/subterra/tunnelsense/pkg/logger"
	"github.com/subterra/tunnelsense/pkg/models"
)

var (
	// ErrNodeUnreachable marks transport failures; the scheduler treats it
	// as transient and counts it against the node's health.
	ErrNodeUnreachable = errors.New("node unreachable")

	errUnexpectedStatus = errors.New("unexpected status from node")
)

// Client returns the clients currently associated with one access node.
type Client interface {
	QueryNode(ctx context.Context, node models.AccessNode) ([]models.Observation, error)
}

// Config holds the management-API connection settings shared by all nodes.
type Config struct {
	Username string          `json:"username"`
	Password string          `json:"password"`
	Timeout  models.Duration `json:"timeout"`
}

func (c *Config) Validate() error {
	if c.Timeout == 0 {
		c.Timeout = models.Duration(5 * time.Second)
	}

	return nil
}

// wireClient is one associated-client record as the node reports it.
type wireClient struct {
	MAC       string `json:"mac"`
	RSSI      int    `json:"rssi"`
	Timestamp string `json:"timestamp,omitempty"`
}

type wireResponse struct {
	Clients []wireClient `json:"clients"`
}

// HTTPClient implements Client against the nodes' JSON management API.
type HTTPClient struct {
	rest   *resty.Client
	config Config
	logger logger.Logger
}

// NewHTTPClient creates an HTTP node client. The per-query timeout comes from
// the config; cancellation flows through the request context.
func NewHTTPClient(config Config, log logger.Logger) *HTTPClient {
	rest := resty.New().
		SetTimeout(config.Timeout.Duration()).
		SetBasicAuth(config.Username, config.Password)

	return &HTTPClient{rest: rest, config: config, logger: log}
}

// QueryNode fetches the node's associated client list. Malformed records are
// discarded individually; the remaining records are still returned.
func (c *HTTPClient) QueryNode(ctx context.Context, node models.AccessNode) ([]models.Observation, error) {
	var body wireResponse

	resp, err := c.rest.R().
		SetContext(ctx).
		SetResult(&body).
		Get(fmt.Sprintf("http://%s/api/v1/wireless/clients", node.Address))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrNodeUnreachable, node.ID, err)
	}

	if resp.IsError() {
		return nil, fmt.Errorf("%w: %s: %s", errUnexpectedStatus, node.ID, resp.Status())
	}

	now := time.Now()
	observations := make([]models.Observation, 0, len(body.Clients))

	for _, client := range body.Clients {
		if client.MAC == "" || client.RSSI >= 0 {
			c.logger.Debug().
				Str("node_id", node.ID).
				Str("mac", client.MAC).
				Int("rssi", client.RSSI).
				Msg("Discarding malformed client record")

			continue
		}

		ts := now

		if client.Timestamp != "" {
			if parsed, perr := time.Parse(time.RFC3339, client.Timestamp); perr == nil {
				ts = parsed
			}
		}

		observations = append(observations, models.Observation{
			Address:   client.MAC,
			NodeID:    node.ID,
			Signal:    client.RSSI,
			Timestamp: ts,
		})
	}

	return observations, nil
}
