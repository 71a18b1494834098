// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsOnly(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "12230", cfg.Port)
	assert.Equal(t, "scripted", cfg.LLMBackend)
	assert.Equal(t, 1024, cfg.QueueSize)
	assert.Equal(t, 4, cfg.Workers)
	assert.Equal(t, 5*time.Minute, cfg.GenerationTimeout)
}

func TestLoad_YAMLOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "studio.yaml")
	require.NoError(t, os.WriteFile(path, []byte(
		"port: \"9000\"\nllmBackend: openai\nworkers: 8\nqueueSize: 256\ngenerationTimeout: 90s\n"), 0600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "9000", cfg.Port)
	assert.Equal(t, "openai", cfg.LLMBackend)
	assert.Equal(t, 8, cfg.Workers)
	assert.Equal(t, 256, cfg.QueueSize)
	assert.Equal(t, 90*time.Second, cfg.GenerationTimeout)
}

func TestLoad_EnvOverridesYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "studio.yaml")
	require.NoError(t, os.WriteFile(path, []byte("port: \"9000\"\n"), 0600))

	t.Setenv("STUDIO_PORT", "12999")
	t.Setenv("STUDIO_GENERATION_TIMEOUT", "30s")
	t.Setenv("STUDIO_REQUIRE_AUTH", "true")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "12999", cfg.Port)
	assert.Equal(t, 30*time.Second, cfg.GenerationTimeout)
	assert.True(t, cfg.RequireAuth)
}

func TestLoad_RejectsUnknownBackend(t *testing.T) {
	t.Setenv("LLM_BACKEND_TYPE", "carrier-pigeon")
	_, err := Load("")
	assert.Error(t, err)
}

func TestLoad_RejectsNonPowerOfTwoQueue(t *testing.T) {
	t.Setenv("STUDIO_QUEUE_SIZE", "1000")
	_, err := Load("")
	assert.Error(t, err)
}

func TestLoad_MissingFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
