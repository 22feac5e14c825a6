/*
 * This file is part of Loqa (https://github.com/loqalabs/loqa).
 * Copyright (C) 2025 Loqa Labs
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU Affero General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
 * GNU Affero General Public License for more details.
 *
 * You should have received a copy of the GNU Affero General Public License
 * along with this program. If not, see <https://www.gnu.org/licenses/>.
 */

// Package logging owns the process-wide zap logger and the field
// conventions shared by the voice command components.
package logging

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ServiceName is attached to every entry written by the global logger.
const ServiceName = "loqa-voicecmd"

// Field keys shared across components.
const (
	FieldComponent = "component"
	FieldSessionID = "session_id"
)

var (
	// Logger is the global structured logger. Nil until initialized.
	Logger *zap.Logger
	// Sugar is the sugared view of Logger.
	Sugar *zap.SugaredLogger
)

// LogConfig selects level and output format.
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json or console
}

// Initialize configures logging from LOG_LEVEL and LOG_FORMAT.
func Initialize() error {
	return InitializeWithConfig(LogConfig{
		Level:  getEnvOrDefault("LOG_LEVEL", "info"),
		Format: getEnvOrDefault("LOG_FORMAT", "console"),
	})
}

// InitializeWithConfig replaces the global logger. Unknown levels fall back
// to info and unknown formats to console.
func InitializeWithConfig(config LogConfig) error {
	level, err := zap.ParseAtomicLevel(strings.ToLower(config.Level))
	if err != nil {
		level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	format := strings.ToLower(config.Format)

	logger, err := newZapConfig(format, level).Build(zap.AddStacktrace(zap.ErrorLevel))
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}

	Logger = logger.With(zap.String("service", ServiceName))
	Sugar = Logger.Sugar()
	Sugar.Infow("🚀 Structured logging initialized", "level", level.String(), "format", format)
	return nil
}

func newZapConfig(format string, level zap.AtomicLevel) zap.Config {
	var cfg zap.Config
	if format == "json" {
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "ts"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	} else {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	cfg.Level = level
	return cfg
}

// Sync flushes buffered entries.
func Sync() {
	if Logger != nil {
		_ = Logger.Sync()
	}
}

// Close flushes the logger before shutdown.
func Close() {
	Sync()
}

// Component returns a child logger tagged with the component name, or a
// no-op logger when logging has not been initialized.
func Component(name string) *zap.Logger {
	if Logger == nil {
		return zap.NewNop()
	}
	return Logger.With(zap.String(FieldComponent, name))
}

// Session returns a component logger scoped to one speech session.
func Session(component, sessionID string) *zap.Logger {
	return Component(component).With(zap.String(FieldSessionID, sessionID))
}

func emit(level zapcore.Level, message string, fields []zap.Field) {
	if Logger == nil {
		return
	}
	if ce := Logger.Check(level, message); ce != nil {
		ce.Write(fields...)
	}
}

// LogSessionEvent logs a stored session record. Events exposing GetUUID,
// GetSessionID or GetReason contribute those fields.
func LogSessionEvent(event interface{}, message string, fields ...zap.Field) {
	base := []zap.Field{zap.String(FieldComponent, "speech_session")}
	if e, ok := event.(interface{ GetUUID() string }); ok && e.GetUUID() != "" {
		base = append(base, zap.String("event_uuid", e.GetUUID()))
	}
	if e, ok := event.(interface{ GetSessionID() string }); ok && e.GetSessionID() != "" {
		base = append(base, zap.String(FieldSessionID, e.GetSessionID()))
	}
	if e, ok := event.(interface{ GetReason() string }); ok && e.GetReason() != "" {
		base = append(base, zap.String("reason", e.GetReason()))
	}
	emit(zapcore.InfoLevel, message, append(base, fields...))
}

// LogNATSEvent logs a publish or subscribe on a subject.
func LogNATSEvent(subject, action string, fields ...zap.Field) {
	base := []zap.Field{
		zap.String(FieldComponent, "messaging"),
		zap.String("subject", subject),
		zap.String("action", action),
	}
	emit(zapcore.InfoLevel, "NATS event", append(base, fields...))
}

// LogDatabaseOperation logs a statement against a table.
func LogDatabaseOperation(operation, table string, fields ...zap.Field) {
	base := []zap.Field{
		zap.String(FieldComponent, "database"),
		zap.String("operation", operation),
		zap.String("table", table),
	}
	emit(zapcore.InfoLevel, "Database operation", append(base, fields...))
}

func LogError(err error, message string, fields ...zap.Field) {
	emit(zapcore.ErrorLevel, message, append([]zap.Field{zap.Error(err)}, fields...))
}

func LogWarn(message string, fields ...zap.Field) {
	emit(zapcore.WarnLevel, message, fields)
}

func getEnvOrDefault(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return defaultValue
}
