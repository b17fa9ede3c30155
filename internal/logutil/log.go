// Copyright 2025 Ekjot Singh
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// See the License for the specific language governing permissions and
// limitations under the License.

// Package logutil wraps zap the way the teacher's util/logutil does:
// a package-level logger retrievable by context, so call sites read
// logutil.Logger(ctx).Warn(...) instead of threading a logger field
// through every struct. The default global logger is built through
// pingcap/log's InitLogger/ReplaceGlobals, the same construction the
// teacher's binaries use, rather than a bare zap.NewNop.
package logutil

import (
	"context"

	"github.com/pingcap/log"
	"go.uber.org/zap"
)

var globalLogger = defaultLogger()

// defaultLogger builds the warn-level, text-format logger callers get
// before SetGlobalLogger is ever invoked. Falls back to a no-op logger
// if construction itself fails, since a logging failure must never
// block client startup.
func defaultLogger() *zap.Logger {
	logger, props, err := log.InitLogger(&log.Config{Level: "warn", Format: "text"})
	if err != nil {
		return zap.NewNop()
	}
	log.ReplaceGlobals(logger, props)
	return logger
}

// SetGlobalLogger installs the logger used by Logger(ctx) when ctx
// carries no logger of its own. Intended to be called once at client
// construction time.
func SetGlobalLogger(l *zap.Logger) {
	if l != nil {
		globalLogger = l
	}
}

type loggerKey struct{}

// WithLogger returns a context carrying l, retrievable via Logger.
func WithLogger(ctx context.Context, l *zap.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, l)
}

// Logger returns the zap.Logger attached to ctx, or the global logger
// if none was attached.
func Logger(ctx context.Context) *zap.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*zap.Logger); ok && l != nil {
		return l
	}
	return globalLogger
}
