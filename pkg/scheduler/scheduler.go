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

// Package scheduler drives fixed-interval poll cycles over the configured
// access nodes and tracks per-node health.
//
// Within a cycle node queries run concurrently up to a configured fan-out;
// cycles themselves are strictly sequential. If a cycle overruns the interval
// the next one is delayed, never run concurrently, so the processor observes
// one cycle at a time.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/subterra/tunnelsense/pkg/logger"
	"github.com/subterra/tunnelsense/pkg/models"
	"github.com/subterra/tunnelsense/pkg/nodeclient"
)

var errNoNodes = errors.New("no access nodes configured")

// Processor consumes one completed cycle's worth of observations.
type Processor interface {
	ProcessCycle(ctx context.Context, observations []models.Observation, at time.Time)
}

// Config holds the scheduler's tunables.
type Config struct {
	ScanInterval     models.Duration `json:"scan_interval"`
	NodeTimeout      models.Duration `json:"node_timeout"`
	MaxConcurrent    int             `json:"max_concurrent"`
	FailureThreshold int             `json:"failure_threshold"`
	StatsInterval    int             `json:"stats_interval"`
}

func (c *Config) Validate() error {
	if c.ScanInterval == 0 {
		c.ScanInterval = models.Duration(30 * time.Second)
	}

	if c.NodeTimeout == 0 {
		c.NodeTimeout = models.Duration(5 * time.Second)
	}

	if c.MaxConcurrent <= 0 {
		c.MaxConcurrent = 5
	}

	if c.FailureThreshold <= 0 {
		c.FailureThreshold = 3
	}

	if c.StatsInterval <= 0 {
		c.StatsInterval = 10
	}

	return nil
}

// Scheduler polls all configured nodes once per interval and hands each
// cycle's aggregate observations to the processor.
type Scheduler struct {
	config    Config
	nodes     []models.AccessNode
	health    map[string]*models.NodeHealth
	client    nodeclient.Client
	processor Processor
	clock     Clock
	ticker    Ticker
	logger    logger.Logger

	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup

	cycles int
}

// New creates a Scheduler. A nil clock defaults to the real clock.
func New(config Config, nodes []models.AccessNode, client nodeclient.Client,
	processor Processor, clock Clock, log logger.Logger) (*Scheduler, error) {
	if len(nodes) == 0 {
		return nil, errNoNodes
	}

	if clock == nil {
		clock = realClock{}
	}

	health := make(map[string]*models.NodeHealth, len(nodes))
	for _, node := range nodes {
		health[node.ID] = &models.NodeHealth{Active: true}
	}

	s := &Scheduler{
		config:    config,
		nodes:     nodes,
		health:    health,
		client:    client,
		processor: processor,
		clock:     clock,
		logger:    log,
		done:      make(chan struct{}),
	}

	// The worst-case cycle duration must fit inside the interval.
	batches := (len(nodes) + config.MaxConcurrent - 1) / config.MaxConcurrent

	worstCase := time.Duration(batches) * config.NodeTimeout.Duration()
	if worstCase >= config.ScanInterval.Duration() {
		log.Warn().
			Dur("worst_case", worstCase).
			Dur("scan_interval", config.ScanInterval.Duration()).
			Msg("Node timeouts under the concurrency cap can exceed the scan interval; cycles will be delayed")
	}

	return s, nil
}

// Start runs the poll loop until the context is canceled or Stop is called.
// Cycles execute inline so a slow cycle delays the next tick instead of
// overlapping it.
func (s *Scheduler) Start(ctx context.Context) error {
	interval := s.config.ScanInterval.Duration()
	s.ticker = s.clock.Ticker(interval)

	defer s.ticker.Stop()

	s.logger.Info().
		Dur("interval", interval).
		Int("nodes", len(s.nodes)).
		Msg("Starting poll scheduler")

	s.wg.Add(1)
	defer s.wg.Done()

	s.poll(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.done:
			return nil
		case <-s.ticker.Chan():
			s.poll(ctx)
		}
	}
}

// Stop terminates the poll loop and waits for an in-flight cycle to finish.
func (s *Scheduler) Stop(_ context.Context) error {
	s.closeOnce.Do(func() {
		close(s.done)
	})

	s.wg.Wait()

	return nil
}

// ActiveNodes returns the number of nodes currently considered healthy.
func (s *Scheduler) ActiveNodes() int {
	active := 0

	for _, h := range s.health {
		if h.Active {
			active++
		}
	}

	return active
}

// ProbeNodes queries each node once and logs reachability. Used at startup;
// failures are informational and never abort startup.
func (s *Scheduler) ProbeNodes(ctx context.Context) {
	for _, node := range s.nodes {
		queryCtx, cancel := context.WithTimeout(ctx, s.config.NodeTimeout.Duration())
		_, err := s.client.QueryNode(queryCtx, node)

		cancel()

		if err != nil {
			s.logger.Warn().Err(err).
				Str("node_id", node.ID).
				Str("node_name", node.Name).
				Msg("Access node not reachable")

			continue
		}

		s.logger.Info().
			Str("node_id", node.ID).
			Str("node_name", node.Name).
			Msg("Access node reachable")
	}
}

type nodeResult struct {
	nodeID       string
	observations []models.Observation
	err          error
}

// poll executes one cycle: bounded-concurrency queries, then single-threaded
// aggregation and health updates once every worker has returned.
func (s *Scheduler) poll(ctx context.Context) {
	start := s.clock.Now()
	sem := make(chan struct{}, s.config.MaxConcurrent)
	results := make(chan nodeResult, len(s.nodes))

	var wg sync.WaitGroup

	for _, node := range s.nodes {
		wg.Add(1)

		go func(node models.AccessNode) {
			defer wg.Done()

			sem <- struct{}{}
			defer func() { <-sem }()

			queryCtx, cancel := context.WithTimeout(ctx, s.config.NodeTimeout.Duration())
			defer cancel()

			observations, err := s.client.QueryNode(queryCtx, node)
			results <- nodeResult{nodeID: node.ID, observations: observations, err: err}
		}(node)
	}

	wg.Wait()
	close(results)

	var observations []models.Observation

	failed := 0

	for result := range results {
		if result.err != nil {
			failed++

			s.recordFailure(result.nodeID, result.err)

			continue
		}

		s.recordSuccess(result.nodeID)

		observations = append(observations, result.observations...)
	}

	s.processor.ProcessCycle(ctx, observations, start)

	s.cycles++
	if s.cycles%s.config.StatsInterval == 0 {
		s.logger.Info().
			Int("cycles", s.cycles).
			Int("nodes", len(s.nodes)).
			Int("active_nodes", s.ActiveNodes()).
			Msg("Poll scheduler statistics")
	}

	s.logger.Debug().
		Int("observations", len(observations)).
		Int("nodes_failed", failed).
		Dur("elapsed", s.clock.Now().Sub(start)).
		Msg("Poll cycle complete")
}

func (s *Scheduler) recordSuccess(nodeID string) {
	h := s.health[nodeID]

	if !h.Active {
		s.logger.Info().Str("node_id", nodeID).Msg("Access node recovered")
	}

	h.Active = true
	h.ConsecutiveFailures = 0
	h.LastSuccess = s.clock.Now()
}

func (s *Scheduler) recordFailure(nodeID string, err error) {
	h := s.health[nodeID]
	h.ConsecutiveFailures++

	s.logger.Warn().Err(err).
		Str("node_id", nodeID).
		Int("consecutive_failures", h.ConsecutiveFailures).
		Msg("Node query failed")

	if h.ConsecutiveFailures > s.config.FailureThreshold && h.Active {
		h.Active = false

		s.logger.Error().
			Str("node_id", nodeID).
			Int("consecutive_failures", h.ConsecutiveFailures).
			Msg("Access node marked inactive")
	}
}
