// Copyright (c) 2025 Erik Kassubek
//
// File: config.go
// Brief: Typed configuration loaded via viper (spec §6.4)
//
// Author: Erik Kassubek
// Created: 2025-07-01
//
// License: BSD-3-Clause

package config

import (
	"strings"

	"causeway/errs"

	"github.com/spf13/viper"
)

// StorageBackend names a pluggable storage implementation.
type StorageBackend string

// Possible values for StorageBackend.
const (
	BackendMemory   StorageBackend = "memory"
	BackendPostgres StorageBackend = "postgres"
)

// Config is the fully resolved, typed configuration of spec §6.4.
type Config struct {
	Storage struct {
		Backend StorageBackend
		DSN     string
	}
	Engine struct {
		BufferSize      int
		BatchSize       int
		FlushIntervalMs int
	}
	RaceDetection struct {
		Enabled                bool
		CrossTraceEnabled      bool
		ConcurrencyWindowUs    int
	}
	AnomalyDetection struct {
		StdDevThreshold float64
		MinSamples      int
	}
	Server struct {
		Host string
		Port int
	}
}

// Load reads configuration from environment variables (prefixed
// CAUSEWAY_) and an optional config file, applying the defaults of
// spec §6.4 and rejecting invalid storage backend names.
//
// Returns:
//   - *Config: the resolved configuration
//   - error: errs.InvalidInput if storage.backend is not recognized
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("causeway")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("storage.backend", string(BackendMemory))
	v.SetDefault("storage.dsn", "")
	v.SetDefault("engine.buffer_size", 4096)
	v.SetDefault("engine.batch_size", 64)
	v.SetDefault("engine.flush_interval_ms", 50)
	v.SetDefault("race_detection.enabled", true)
	v.SetDefault("race_detection.cross_trace_enabled", true)
	v.SetDefault("race_detection.concurrency_window_us", 0)
	v.SetDefault("anomaly_detection.std_dev_threshold", 1.5)
	v.SetDefault("anomaly_detection.min_samples", 5)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)

	v.SetConfigName("causeway")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			return nil, errs.NewInvalidInput("reading config file: " + err.Error())
		}
	}

	backend := StorageBackend(v.GetString("storage.backend"))
	if backend != BackendMemory && backend != BackendPostgres {
		return nil, errs.NewInvalidInput("unknown storage.backend: " + string(backend))
	}

	cfg := &Config{}
	cfg.Storage.Backend = backend
	cfg.Storage.DSN = v.GetString("storage.dsn")
	cfg.Engine.BufferSize = v.GetInt("engine.buffer_size")
	cfg.Engine.BatchSize = v.GetInt("engine.batch_size")
	cfg.Engine.FlushIntervalMs = v.GetInt("engine.flush_interval_ms")
	cfg.RaceDetection.Enabled = v.GetBool("race_detection.enabled")
	cfg.RaceDetection.CrossTraceEnabled = v.GetBool("race_detection.cross_trace_enabled")
	cfg.RaceDetection.ConcurrencyWindowUs = v.GetInt("race_detection.concurrency_window_us")
	cfg.AnomalyDetection.StdDevThreshold = v.GetFloat64("anomaly_detection.std_dev_threshold")
	cfg.AnomalyDetection.MinSamples = v.GetInt("anomaly_detection.min_samples")
	cfg.Server.Host = v.GetString("server.host")
	cfg.Server.Port = v.GetInt("server.port")

	return cfg, nil
}
