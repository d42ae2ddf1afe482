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

// Package dispatcher delivers presence and security events to the external
// backend with at-least-once intent: bounded buffering, bounded retry, then
// drop-with-log. A backend outage never blocks the poll pipeline.
package dispatcher

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/subterra/tunnelsense/pkg/logger"
	"github.com/subterra/tunnelsense/pkg/models"
)

// CloudEvent types and subjects for the presence stream.
const (
	eventSource = "tunnelsense/engine"

	TypePosition = "com.subterra.tunnelsense.presence.position"
	TypeSecurity = "com.subterra.tunnelsense.presence.security"

	SubjectPosition = "presence.position"
	SubjectSecurity = "presence.security"
)

// Sink is the transport the dispatcher publishes through.
type Sink interface {
	Publish(ctx context.Context, event *models.CloudEvent) error
}

// Config holds the dispatcher's buffering and retry tunables.
type Config struct {
	BufferSize   int             `json:"buffer_size"`
	MaxRetries   int             `json:"max_retries"`
	RetryBackoff models.Duration `json:"retry_backoff"`
	DrainTimeout models.Duration `json:"drain_timeout"`
}

func (c *Config) Validate() error {
	if c.BufferSize <= 0 {
		c.BufferSize = 256
	}

	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}

	if c.RetryBackoff == 0 {
		c.RetryBackoff = models.Duration(2 * time.Second)
	}

	if c.DrainTimeout == 0 {
		c.DrainTimeout = models.Duration(5 * time.Second)
	}

	return nil
}

// Dispatcher wraps gate output in CloudEvents and forwards them to the sink
// from a single worker goroutine.
type Dispatcher struct {
	config Config
	sink   Sink
	logger logger.Logger

	events    chan *models.CloudEvent
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// New creates a Dispatcher.
func New(config Config, sink Sink, log logger.Logger) *Dispatcher {
	return &Dispatcher{
		config: config,
		sink:   sink,
		logger: log,
		events: make(chan *models.CloudEvent, config.BufferSize),
		done:   make(chan struct{}),
	}
}

// DispatchPosition enqueues an authorized-presence or departure event.
func (d *Dispatcher) DispatchPosition(_ context.Context, event models.PositionEvent) {
	d.enqueue(envelope(TypePosition, SubjectPosition, event.Timestamp, event))
}

// DispatchSecurity enqueues an unauthorized-device event.
func (d *Dispatcher) DispatchSecurity(_ context.Context, event models.SecurityEvent) {
	d.enqueue(envelope(TypeSecurity, SubjectSecurity, event.Timestamp, event))
}

// enqueue never blocks: when the buffer is full the oldest unsent event wins
// and the new one is dropped with a log, keeping memory bounded during a
// backend outage.
func (d *Dispatcher) enqueue(event *models.CloudEvent) {
	select {
	case d.events <- event:
	default:
		d.logger.Error().
			Str("event_id", event.ID).
			Str("type", event.Type).
			Msg("Dispatch buffer full, dropping event")
	}
}

// Start implements lifecycle.Service, delivering buffered events until the
// context is canceled or Stop is called.
func (d *Dispatcher) Start(ctx context.Context) error {
	d.wg.Add(1)
	defer d.wg.Done()

	d.logger.Info().Int("buffer_size", d.config.BufferSize).Msg("Starting event dispatcher")

	for {
		select {
		case <-ctx.Done():
			d.drain()
			return ctx.Err()
		case <-d.done:
			d.drain()
			return nil
		case event := <-d.events:
			d.deliver(ctx, event)
		}
	}
}

// Stop terminates the worker after it drains the buffer.
func (d *Dispatcher) Stop(_ context.Context) error {
	d.closeOnce.Do(func() {
		close(d.done)
	})

	d.wg.Wait()

	return nil
}

// drain makes a final bounded delivery attempt for whatever is left in the
// buffer at shutdown.
func (d *Dispatcher) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), d.config.DrainTimeout.Duration())
	defer cancel()

	for {
		select {
		case event := <-d.events:
			d.deliver(ctx, event)
		default:
			return
		}

		if ctx.Err() != nil {
			remaining := len(d.events)
			if remaining > 0 {
				d.logger.Error().Int("dropped", remaining).Msg("Drain timeout, dropping buffered events")
			}

			return
		}
	}
}

// deliver retries with a fixed backoff up to the configured count, then drops
// the event with an error log.
func (d *Dispatcher) deliver(ctx context.Context, event *models.CloudEvent) {
	backoff := d.config.RetryBackoff.Duration()

	var err error

	for attempt := 0; attempt < d.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				d.logger.Error().Str("event_id", event.ID).Msg("Delivery canceled, dropping event")
				return
			case <-time.After(backoff):
			}
		}

		if err = d.sink.Publish(ctx, event); err == nil {
			return
		}

		d.logger.Warn().Err(err).
			Str("event_id", event.ID).
			Int("attempt", attempt+1).
			Msg("Event publish failed")
	}

	d.logger.Error().Err(err).
		Str("event_id", event.ID).
		Str("type", event.Type).
		Msg("Dropping event after retries")
}

func envelope(eventType, subject string, ts time.Time, data interface{}) *models.CloudEvent {
	t := ts

	return &models.CloudEvent{
		SpecVersion:     "1.0",
		ID:              uuid.New().String(),
		Source:          eventSource,
		Type:            eventType,
		DataContentType: "application/json",
		Subject:         subject,
		Time:            &t,
		Data:            data,
	}
}
