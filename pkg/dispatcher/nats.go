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
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/subterra/tunnelsense/pkg/models"
)

var errNATSURLRequired = errors.New("nats url is required")

// NATSConfig configures the JetStream event sink.
type NATSConfig struct {
	URL        string   `json:"url"`
	StreamName string   `json:"stream_name"`
	Subjects   []string `json:"subjects"`
}

func (c *NATSConfig) Validate() error {
	if c.URL == "" {
		return errNATSURLRequired
	}

	if c.StreamName == "" {
		c.StreamName = "presence"
	}

	if len(c.Subjects) == 0 {
		c.Subjects = []string{"presence.>"}
	}

	return nil
}

// NATSSink publishes CloudEvents to a NATS JetStream stream.
type NATSSink struct {
	js     jetstream.JetStream
	stream string
}

// Publish implements Sink. The event ID doubles as the JetStream message ID
// so backend redeliveries after a retry are deduplicated.
func (s *NATSSink) Publish(ctx context.Context, event *models.CloudEvent) error {
	eventBytes, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	_, err = s.js.Publish(ctx, event.Subject, eventBytes, jetstream.WithMsgID(event.ID))
	if err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	return nil
}

// ConnectSink creates a NATS connection with JetStream, ensures the stream
// exists, and returns a Sink over it.
func ConnectSink(ctx context.Context, config NATSConfig, opts ...nats.Option) (*NATSSink, *nats.Conn, error) {
	nc, err := nats.Connect(config.URL, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	// Ensure the stream exists
	_, err = js.Stream(ctx, config.StreamName)
	if err != nil {
		streamConfig := jetstream.StreamConfig{
			Name:     config.StreamName,
			Subjects: config.Subjects,
		}

		_, err = js.CreateOrUpdateStream(ctx, streamConfig)
		if err != nil {
			nc.Close()
			return nil, nil, fmt.Errorf("failed to create or get stream %s: %w", config.StreamName, err)
		}
	}

	return &NATSSink{js: js, stream: config.StreamName}, nc, nil
}
