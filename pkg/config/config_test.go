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

package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errIntervalRequired = errors.New("interval is required")

type testConfig struct {
	Name     string `json:"name"`
	Interval int    `json:"interval"`
}

func (c *testConfig) Validate() error {
	if c.Interval <= 0 {
		return errIntervalRequired
	}

	return nil
}

type plainConfig struct {
	Name string `json:"name"`
}

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestLoadAndValidate(t *testing.T) {
	t.Parallel()

	path := writeConfigFile(t, `{"name":"tunnel-7","interval":30}`)

	var cfg testConfig

	require.NoError(t, NewConfig().LoadAndValidate(context.Background(), path, &cfg))
	assert.Equal(t, "tunnel-7", cfg.Name)
	assert.Equal(t, 30, cfg.Interval)
}

func TestLoadAndValidateFailsValidation(t *testing.T) {
	t.Parallel()

	path := writeConfigFile(t, `{"name":"tunnel-7"}`)

	var cfg testConfig

	err := NewConfig().LoadAndValidate(context.Background(), path, &cfg)
	require.ErrorIs(t, err, errIntervalRequired)
}

func TestLoadAndValidateSkipsNonValidator(t *testing.T) {
	t.Parallel()

	path := writeConfigFile(t, `{"name":"tunnel-7"}`)

	var cfg plainConfig

	require.NoError(t, NewConfig().LoadAndValidate(context.Background(), path, &cfg))
	assert.Equal(t, "tunnel-7", cfg.Name)
}

func TestLoadAndValidateRejectsNonPointer(t *testing.T) {
	t.Parallel()

	err := NewConfig().LoadAndValidate(context.Background(), "unused.json", testConfig{})
	require.ErrorIs(t, err, errInvalidConfigPtr)
}

func TestLoadAndValidateMissingFile(t *testing.T) {
	t.Parallel()

	var cfg testConfig

	err := NewConfig().LoadAndValidate(context.Background(), filepath.Join(t.TempDir(), "missing.json"), &cfg)
	require.Error(t, err)
}

func TestLoadAndValidateMalformedJSON(t *testing.T) {
	t.Parallel()

	path := writeConfigFile(t, `{"name":`)

	var cfg testConfig

	err := NewConfig().LoadAndValidate(context.Background(), path, &cfg)
	require.Error(t, err)
}
