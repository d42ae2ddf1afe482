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

package nodeclient

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/subterra/tunnelsense/pkg/logger"
	"github.com/subterra/tunnelsense/pkg/models"
)

func testNode(srv *httptest.Server) models.AccessNode {
	return models.AccessNode{
		ID:      "entrance",
		Name:    "Tunnel Entrance",
		Address: strings.TrimPrefix(srv.URL, "http://"),
	}
}

func newTestClient(t *testing.T) *HTTPClient {
	t.Helper()

	config := Config{Username: "monitor", Password: "secret"}
	require.NoError(t, config.Validate())

	return NewHTTPClient(config, logger.NewTestLogger())
}

func TestQueryNodeParsesClients(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/wireless/clients", r.URL.Path)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"clients":[
			{"mac":"3C:2E:FF:12:34:56","rssi":-45,"timestamp":"2026-08-01T08:00:00Z"},
			{"mac":"28:39:26:78:9A:BC","rssi":-62}
		]}`))
	}))
	t.Cleanup(srv.Close)

	client := newTestClient(t)

	observations, err := client.QueryNode(context.Background(), testNode(srv))
	require.NoError(t, err)
	require.Len(t, observations, 2)

	assert.Equal(t, "3C:2E:FF:12:34:56", observations[0].Address)
	assert.Equal(t, "entrance", observations[0].NodeID)
	assert.Equal(t, -45, observations[0].Signal)
	assert.Equal(t, time.Date(2026, 8, 1, 8, 0, 0, 0, time.UTC), observations[0].Timestamp.UTC())

	// No timestamp on the wire; the client stamps receipt time.
	assert.WithinDuration(t, time.Now(), observations[1].Timestamp, 5*time.Second)
}

func TestQueryNodeSendsBasicAuth(t *testing.T) {
	t.Parallel()

	expected := "Basic " + base64.StdEncoding.EncodeToString([]byte("monitor:secret"))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, expected, r.Header.Get("Authorization"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"clients":[]}`))
	}))
	t.Cleanup(srv.Close)

	client := newTestClient(t)

	observations, err := client.QueryNode(context.Background(), testNode(srv))
	require.NoError(t, err)
	assert.Empty(t, observations)
}

func TestQueryNodeDiscardsMalformedRecords(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"clients":[
			{"mac":"","rssi":-45},
			{"mac":"3C:2E:FF:12:34:56","rssi":10},
			{"mac":"28:39:26:78:9A:BC","rssi":-62}
		]}`))
	}))
	t.Cleanup(srv.Close)

	client := newTestClient(t)

	observations, err := client.QueryNode(context.Background(), testNode(srv))
	require.NoError(t, err)
	require.Len(t, observations, 1)
	assert.Equal(t, "28:39:26:78:9A:BC", observations[0].Address)
}

func TestQueryNodeErrorStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)

	client := newTestClient(t)

	_, err := client.QueryNode(context.Background(), testNode(srv))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNodeUnreachable)
}

func TestQueryNodeUnreachable(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	node := testNode(srv)
	srv.Close()

	client := newTestClient(t)

	_, err := client.QueryNode(context.Background(), node)
	require.ErrorIs(t, err, ErrNodeUnreachable)
}

func TestQueryNodeHonorsContextCancel(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	client := newTestClient(t)

	_, err := client.QueryNode(ctx, testNode(srv))
	require.ErrorIs(t, err, ErrNodeUnreachable)
}
