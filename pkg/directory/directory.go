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

// Package directory looks up hardware addresses in the registered-person
// directory. The directory itself is external; this client caches its
// contents with a TTL so a short outage does not stall authorization checks.
package directory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/subterra/tunnelsense/pkg/logger"
	"github.com/subterra/tunnelsense/pkg/models"
	"github.com/subterra/tunnelsense/pkg/oui"
)

var (
	// ErrNotFound means the address is not registered to any person.
	ErrNotFound = errors.New("address not registered")
	// ErrUnavailable means the directory could not be consulted; callers
	// must retry later instead of defaulting to authorized or unauthorized.
	ErrUnavailable = errors.New("directory unavailable")

	errDirectoryURLRequired = errors.New("directory url is required")
)

// Lookup resolves a hardware address to a registered person.
type Lookup interface {
	LookupByAddress(ctx context.Context, address string) (*models.Identity, error)
}

// Config holds the directory client settings.
type Config struct {
	URL      string          `json:"url"`
	Timeout  models.Duration `json:"timeout"`
	CacheTTL models.Duration `json:"cache_ttl"`
}

func (c *Config) Validate() error {
	if c.URL == "" {
		return errDirectoryURLRequired
	}

	if c.Timeout == 0 {
		c.Timeout = models.Duration(10 * time.Second)
	}

	if c.CacheTTL == 0 {
		c.CacheTTL = models.Duration(5 * time.Minute)
	}

	return nil
}

type usersResponse struct {
	Users []models.Identity `json:"users"`
}

// HTTPLookup implements Lookup against the directory's JSON API, refreshing
// a full-address cache at most once per TTL.
//
// LookupByAddress is only ever called from the gate inside the tracker's
// single-threaded fold, so the cache needs no locking.
type HTTPLookup struct {
	rest   *resty.Client
	config Config
	logger logger.Logger

	cache   map[string]models.Identity
	expires time.Time
}

// NewHTTPLookup creates a directory client.
func NewHTTPLookup(config Config, log logger.Logger) *HTTPLookup {
	rest := resty.New().SetTimeout(config.Timeout.Duration())

	return &HTTPLookup{rest: rest, config: config, logger: log}
}

// LookupByAddress returns the identity registered for the address,
// ErrNotFound when none is, or ErrUnavailable when the directory cannot be
// reached and the cache has expired.
func (l *HTTPLookup) LookupByAddress(ctx context.Context, address string) (*models.Identity, error) {
	normalized, err := oui.Normalize(address)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, address)
	}

	if err := l.refresh(ctx); err != nil {
		return nil, err
	}

	if identity, ok := l.cache[normalized]; ok {
		return &identity, nil
	}

	return nil, fmt.Errorf("%w: %s", ErrNotFound, address)
}

func (l *HTTPLookup) refresh(ctx context.Context) error {
	now := time.Now()
	if l.cache != nil && now.Before(l.expires) {
		return nil
	}

	var body usersResponse

	resp, err := l.rest.R().
		SetContext(ctx).
		SetResult(&body).
		Get(l.config.URL + "/users")

	if err != nil || resp.IsError() {
		if l.cache != nil {
			// Keep serving the stale cache for one more TTL window rather
			// than flapping every event while the directory is down.
			l.logger.Warn().Err(err).Msg("Directory refresh failed, serving cached entries")
			l.expires = now.Add(l.config.CacheTTL.Duration())

			return nil
		}

		if err != nil {
			return fmt.Errorf("%w: %w", ErrUnavailable, err)
		}

		return fmt.Errorf("%w: %s", ErrUnavailable, resp.Status())
	}

	cache := make(map[string]models.Identity, len(body.Users))

	for _, user := range body.Users {
		normalized, nerr := oui.Normalize(user.Address)
		if nerr != nil {
			l.logger.Warn().Str("mac", user.Address).Str("person_id", user.ID).
				Msg("Skipping directory entry with invalid address")

			continue
		}

		cache[normalized] = user
	}

	l.cache = cache
	l.expires = now.Add(l.config.CacheTTL.Duration())

	l.logger.Info().Int("entries", len(cache)).Msg("Directory cache refreshed")

	return nil
}
