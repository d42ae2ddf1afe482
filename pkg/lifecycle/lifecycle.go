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

// Package lifecycle runs a set of long-lived services until interrupted.
package lifecycle

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/subterra/tunnelsense/pkg/logger"
)

const defaultStopTimeout = 10 * time.Second

// Service is a long-running component. Start blocks until the context is
// canceled or the service fails; Stop releases resources.
type Service interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// Options configures Run.
type Options struct {
	ServiceName string
	Services    []Service
	StopTimeout time.Duration
	Logger      logger.Logger
}

// Run starts every service and blocks until SIGINT/SIGTERM or until any
// service returns an error, then stops services in reverse start order.
func Run(ctx context.Context, opts *Options) error {
	log := opts.Logger

	stopTimeout := opts.StopTimeout
	if stopTimeout == 0 {
		stopTimeout = defaultStopTimeout
	}

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	errCh := make(chan error, len(opts.Services))

	for _, svc := range opts.Services {
		svc := svc

		go func() {
			if err := svc.Start(ctx); err != nil && ctx.Err() == nil {
				errCh <- err
			}
		}()
	}

	log.Info().Str("service", opts.ServiceName).Msg("Service started")

	var runErr error

	select {
	case <-ctx.Done():
		log.Info().Msg("Shutdown signal received")
	case err := <-errCh:
		log.Error().Err(err).Msg("Service failed")
		runErr = err
	}

	cancel()

	stopCtx, stopCancel := context.WithTimeout(context.Background(), stopTimeout)
	defer stopCancel()

	for i := len(opts.Services) - 1; i >= 0; i-- {
		if err := opts.Services[i].Stop(stopCtx); err != nil {
			log.Error().Err(err).Msg("Error stopping service")

			if runErr == nil {
				runErr = fmt.Errorf("failed to stop service: %w", err)
			}
		}
	}

	log.Info().Str("service", opts.ServiceName).Msg("Service stopped")

	return runErr
}
