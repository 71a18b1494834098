// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads studio service configuration.
//
// Configuration comes from three layers, later layers winning:
// built-in defaults, an optional YAML file, then environment variables.
// The environment layer exists because container deployments inject
// settings per instance while the YAML file ships with the image.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config is the complete studio service configuration.
type Config struct {
	// Port is the HTTP listen port.
	Port string `yaml:"port" validate:"required,numeric"`

	// DataDir is the BadgerDB directory. Empty selects in-memory
	// storage, which loses all apps on restart.
	DataDir string `yaml:"dataDir"`

	// LLMBackend selects the model client: "openai" or "scripted".
	LLMBackend string `yaml:"llmBackend" validate:"required,oneof=openai scripted"`

	// QueueSize is the event pipeline queue capacity. Power of two.
	QueueSize int `yaml:"queueSize" validate:"gte=0"`

	// Workers is the event pipeline worker count.
	Workers int `yaml:"workers" validate:"gte=0,lte=256"`

	// GenerationTimeout bounds one model answer end to end.
	// In YAML this is a duration string such as "5m" or "90s".
	GenerationTimeout time.Duration `yaml:"-" validate:"gte=0"`

	// RequireAuth enables bearer-token authentication backed by the
	// user store. Off by default: the open source build admits a fixed
	// local identity.
	RequireAuth bool `yaml:"requireAuth"`

	// OTLPEndpoint is the OpenTelemetry collector address. Empty
	// disables tracing.
	OTLPEndpoint string `yaml:"otlpEndpoint"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Port:              "12230",
		LLMBackend:        "scripted",
		QueueSize:         1024,
		Workers:           4,
		GenerationTimeout: 5 * time.Minute,
	}
}

// fileConfig is the YAML-facing shape of Config.
type fileConfig struct {
	Config            `yaml:",inline"`
	GenerationTimeout string `yaml:"generationTimeout"`
}

var configValidate = validator.New()

// Load builds the effective configuration. path may be empty (no file
// layer). Environment variables override everything:
//
//	STUDIO_PORT, STUDIO_DATA_DIR, LLM_BACKEND_TYPE, STUDIO_QUEUE_SIZE,
//	STUDIO_WORKERS, STUDIO_GENERATION_TIMEOUT, STUDIO_REQUIRE_AUTH,
//	OTEL_EXPORTER_OTLP_ENDPOINT
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file %s: %w", path, err)
		}
		// Durations arrive as strings ("5m"), which yaml cannot decode
		// into time.Duration directly.
		fc := fileConfig{Config: cfg}
		if err := yaml.Unmarshal(data, &fc); err != nil {
			return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
		}
		cfg = fc.Config
		if fc.GenerationTimeout != "" {
			d, err := time.ParseDuration(fc.GenerationTimeout)
			if err != nil {
				return Config{}, fmt.Errorf("parse generationTimeout: %w", err)
			}
			cfg.GenerationTimeout = d
		}
	}

	applyEnv(&cfg)

	if err := configValidate.Struct(&cfg); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	if cfg.QueueSize != 0 && cfg.QueueSize&(cfg.QueueSize-1) != 0 {
		return Config{}, fmt.Errorf("queueSize must be a power of two, got %d", cfg.QueueSize)
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("STUDIO_PORT"); v != "" {
		cfg.Port = v
	}
	if v := os.Getenv("STUDIO_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("LLM_BACKEND_TYPE"); v != "" {
		cfg.LLMBackend = v
	}
	if v := os.Getenv("STUDIO_QUEUE_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.QueueSize = n
		}
	}
	if v := os.Getenv("STUDIO_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Workers = n
		}
	}
	if v := os.Getenv("STUDIO_GENERATION_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.GenerationTimeout = d
		}
	}
	if v := os.Getenv("STUDIO_REQUIRE_AUTH"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.RequireAuth = b
		}
	}
	if v := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); v != "" {
		cfg.OTLPEndpoint = v
	}
}
