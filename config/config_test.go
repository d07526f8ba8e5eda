// Copyright (c) 2025 Erik Kassubek
//
// File: config_test.go
// Brief: Tests for configuration loading
//
// Author: Erik Kassubek
// Created: 2025-07-01
//
// License: BSD-3-Clause

package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, BackendMemory, cfg.Storage.Backend)
	require.Equal(t, 4096, cfg.Engine.BufferSize)
	require.Equal(t, 5, cfg.AnomalyDetection.MinSamples)
}

func TestLoadRejectsUnknownBackend(t *testing.T) {
	t.Setenv("CAUSEWAY_STORAGE_BACKEND", "sqlite")
	_, err := Load()
	require.Error(t, err)
}
