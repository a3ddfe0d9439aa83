// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package logger provides the process-wide structured logger for the bridge.
//
// Most code should accept or call *slog.Logger directly; this package owns the
// singleton that main configures and that slog's package-level helpers use.
package logger

import (
	"log/slog"
	"os"
	"strconv"
	"sync/atomic"
)

// singleton is the package-level logger created by Initialize.
// Accessed atomically to be safe for concurrent use across goroutines.
var singleton atomic.Pointer[slog.Logger]

func init() {
	// Set a default logger so callers that skip Initialize() don't panic.
	singleton.Store(newLogger(false))
}

// Get returns the underlying *slog.Logger for injection into structs.
func Get() *slog.Logger {
	return singleton.Load()
}

// Set replaces the singleton logger. This is intended for tests that need to
// capture log output; production code should use [Initialize] instead.
func Set(l *slog.Logger) {
	singleton.Store(l)
	slog.SetDefault(l)
}

// Initialize builds the process logger and installs it as the slog default.
// JSON output is the default; set UNSTRUCTURED_LOGS=true for human-readable
// text output during local development.
func Initialize(debug bool) {
	l := newLogger(debug)
	singleton.Store(l)
	slog.SetDefault(l)
}

func newLogger(debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if unstructured, _ := strconv.ParseBool(os.Getenv("UNSTRUCTURED_LOGS")); unstructured {
		handler = slog.NewTextHandler(os.Stderr, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}

	return slog.New(handler)
}
