// Copyright 2011 Google Inc. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package logging wraps zap so the rest of the build core never
// imports it directly, keeping a thin, swappable logging facade.
package logging

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Field is a type alias for zap.Field so callers don't need the zap
// import for the common case.
type Field = zap.Field

var (
	String   = zap.String
	Int      = zap.Int
	Int64    = zap.Int64
	Duration = zap.Duration
	Err      = zap.Error
	Bool     = zap.Bool
)

// Logger wraps a zap.Logger with the small surface the build core uses.
type Logger struct {
	z *zap.Logger
}

// Config controls where and how verbosely the logger writes.
type Config struct {
	// Verbose enables debug-level console output.
	Verbose bool
	// Quiet suppresses all but warnings and errors.
	Quiet bool
}

// New builds a console logger for interactive CLI use.
func New(cfg Config) *Logger {
	level := zapcore.InfoLevel
	switch {
	case cfg.Quiet:
		level = zapcore.WarnLevel
	case cfg.Verbose:
		level = zapcore.DebugLevel
	}

	encoderCfg := zap.NewDevelopmentEncoderConfig()
	encoderCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	encoderCfg.TimeKey = ""
	encoder := zapcore.NewConsoleEncoder(encoderCfg)
	core := zapcore.NewCore(encoder, zapcore.AddSync(os.Stderr), level)
	return &Logger{z: zap.New(core)}
}

// NewNop returns a logger that discards everything, for tests.
func NewNop() *Logger {
	return &Logger{z: zap.NewNop()}
}

func (l *Logger) Debug(msg string, fields ...Field) { l.z.Debug(msg, fields...) }
func (l *Logger) Info(msg string, fields ...Field)   { l.z.Info(msg, fields...) }
func (l *Logger) Warn(msg string, fields ...Field)   { l.z.Warn(msg, fields...) }
func (l *Logger) Error(msg string, fields ...Field)  { l.z.Error(msg, fields...) }

// With returns a child logger carrying additional structured fields.
func (l *Logger) With(fields ...Field) *Logger {
	return &Logger{z: l.z.With(fields...)}
}

// Sync flushes any buffered log entries.
func (l *Logger) Sync() error {
	return l.z.Sync()
}
