// Copyright (c) 2025 Erik Kassubek
//
// File: logging.go
// Brief: Structured logging for the analysis engine
//
// Author: Erik Kassubek
// Created: 2025-07-01
//
// License: BSD-3-Clause

// Package logging wraps a single package-level logrus logger: a
// handful of leveled helpers (Info, Error, ...) rather than threading
// a logger instance through every call site.
package logging

import (
	"os"

	"github.com/sirupsen/logrus"
)

var base = newBase()

func newBase() *logrus.Logger {
	l := logrus.New()
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	l.SetLevel(levelFromEnv())
	return l
}

func levelFromEnv() logrus.Level {
	switch os.Getenv("CAUSEWAY_LOG_LEVEL") {
	case "debug":
		return logrus.DebugLevel
	case "warn":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}

// Component returns a logger scoped to a single component, e.g.
// "graph" or "engine", attached as a structured field to every entry.
//
// Parameter:
//   - name string: the component name
//
// Returns:
//   - *logrus.Entry: a logger with the component field set
func Component(name string) *logrus.Entry {
	return base.WithField("component", name)
}

// Trace returns a logger scoped to a component and a trace id, for
// log lines emitted while processing a specific trace.
//
// Parameter:
//   - name string: the component name
//   - traceID string: the trace being processed
//
// Returns:
//   - *logrus.Entry: a logger with component and trace_id fields set
func Trace(name, traceID string) *logrus.Entry {
	return base.WithFields(logrus.Fields{
		"component": name,
		"trace_id":  traceID,
	})
}

// SetLevel overrides the logger's level, mainly for tests that want
// to silence or elevate output without touching the environment.
//
// Parameter:
//   - level logrus.Level: the new minimum level
func SetLevel(level logrus.Level) {
	base.SetLevel(level)
}
