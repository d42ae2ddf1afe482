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

package dispatcher

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/subterra/tunnelsense/pkg/logger"
	"github.com/subterra/tunnelsense/pkg/models"
)

var errSinkDown = errors.New("sink down")

// fakeSink fails the first failures publishes, then succeeds.
type fakeSink struct {
	mu        sync.Mutex
	failures  int
	published []*models.CloudEvent
}

func (f *fakeSink) Publish(_ context.Context, event *models.CloudEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failures > 0 {
		f.failures--
		return errSinkDown
	}

	f.published = append(f.published, event)

	return nil
}

func (f *fakeSink) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return len(f.published)
}

func newTestDispatcher(t *testing.T, sink Sink, overrides func(*Config)) *Dispatcher {
	t.Helper()

	config := Config{RetryBackoff: models.Duration(time.Millisecond)}
	if overrides != nil {
		overrides(&config)
	}

	require.NoError(t, config.Validate())

	return New(config, sink, logger.NewTestLogger())
}

func runDispatcher(t *testing.T, d *Dispatcher) {
	t.Helper()

	done := make(chan struct{})

	go func() {
		defer close(done)

		_ = d.Start(context.Background())
	}()

	t.Cleanup(func() {
		require.NoError(t, d.Stop(context.Background()))

		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("dispatcher did not stop")
		}
	})
}

func TestDispatchPositionEnvelope(t *testing.T) {
	t.Parallel()

	sink := &fakeSink{}
	d := newTestDispatcher(t, sink, nil)
	runDispatcher(t, d)

	at := time.Date(2026, 8, 1, 8, 0, 0, 0, time.UTC)
	d.DispatchPosition(context.Background(), models.PositionEvent{
		Type:      models.PresenceArrival,
		Address:   "3C:2E:FF:12:34:56",
		NodeID:    "entrance",
		PersonID:  "w-104",
		Timestamp: at,
	})

	require.Eventually(t, func() bool { return sink.count() == 1 }, time.Second, 5*time.Millisecond)

	event := sink.published[0]
	assert.Equal(t, "1.0", event.SpecVersion)
	assert.Equal(t, TypePosition, event.Type)
	assert.Equal(t, SubjectPosition, event.Subject)
	assert.Equal(t, "tunnelsense/engine", event.Source)
	assert.Equal(t, "application/json", event.DataContentType)
	assert.NotEmpty(t, event.ID)
	require.NotNil(t, event.Time)
	assert.True(t, event.Time.Equal(at))
}

func TestDispatchSecurityEnvelope(t *testing.T) {
	t.Parallel()

	sink := &fakeSink{}
	d := newTestDispatcher(t, sink, nil)
	runDispatcher(t, d)

	d.DispatchSecurity(context.Background(), models.SecurityEvent{
		Address:   "DE:AD:BE:EF:00:01",
		NodeID:    "entrance",
		Severity:  models.SeverityWarning,
		Timestamp: time.Now(),
	})

	require.Eventually(t, func() bool { return sink.count() == 1 }, time.Second, 5*time.Millisecond)

	assert.Equal(t, TypeSecurity, sink.published[0].Type)
	assert.Equal(t, SubjectSecurity, sink.published[0].Subject)
}

func TestDeliveryRetriesThenSucceeds(t *testing.T) {
	t.Parallel()

	sink := &fakeSink{failures: 2}
	d := newTestDispatcher(t, sink, nil)
	runDispatcher(t, d)

	d.DispatchSecurity(context.Background(), models.SecurityEvent{Timestamp: time.Now()})

	require.Eventually(t, func() bool { return sink.count() == 1 }, time.Second, 5*time.Millisecond)
}

func TestEventDroppedAfterMaxRetries(t *testing.T) {
	t.Parallel()

	sink := &fakeSink{failures: 3}
	d := newTestDispatcher(t, sink, nil)
	runDispatcher(t, d)

	d.DispatchSecurity(context.Background(), models.SecurityEvent{Timestamp: time.Now()})
	d.DispatchSecurity(context.Background(), models.SecurityEvent{Timestamp: time.Now()})

	// The first event burns all three attempts and is dropped; the second
	// is delivered cleanly afterwards.
	require.Eventually(t, func() bool { return sink.count() == 1 }, time.Second, 5*time.Millisecond)

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, sink.count())
}

func TestEnqueueDropsWhenBufferFull(t *testing.T) {
	t.Parallel()

	sink := &fakeSink{}
	d := newTestDispatcher(t, sink, func(c *Config) {
		c.BufferSize = 2
	})

	// Worker not started; the buffer fills at two and further enqueues drop
	// instead of blocking.
	for i := 0; i < 5; i++ {
		d.DispatchSecurity(context.Background(), models.SecurityEvent{Timestamp: time.Now()})
	}

	assert.Len(t, d.events, 2)
}

func TestStopDrainsBufferedEvents(t *testing.T) {
	t.Parallel()

	sink := &fakeSink{}
	d := newTestDispatcher(t, sink, nil)

	for i := 0; i < 4; i++ {
		d.DispatchSecurity(context.Background(), models.SecurityEvent{Timestamp: time.Now()})
	}

	done := make(chan struct{})

	go func() {
		defer close(done)

		_ = d.Start(context.Background())
	}()

	require.NoError(t, d.Stop(context.Background()))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("dispatcher did not stop")
	}

	assert.Equal(t, 4, sink.count())
}

func TestEventIDsAreUnique(t *testing.T) {
	t.Parallel()

	sink := &fakeSink{}
	d := newTestDispatcher(t, sink, nil)
	runDispatcher(t, d)

	for i := 0; i < 5; i++ {
		d.DispatchSecurity(context.Background(), models.SecurityEvent{Timestamp: time.Now()})
	}

	require.Eventually(t, func() bool { return sink.count() == 5 }, time.Second, 5*time.Millisecond)

	seen := make(map[string]bool)
	for _, event := range sink.published {
		assert.False(t, seen[event.ID])
		seen[event.ID] = true
	}
}
