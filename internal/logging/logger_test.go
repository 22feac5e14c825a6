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

package logging

import (
	"errors"
	"os"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestInitialize(t *testing.T) {
	originalLevel := os.Getenv("LOG_LEVEL")
	originalFormat := os.Getenv("LOG_FORMAT")
	defer func() {
		_ = os.Setenv("LOG_LEVEL", originalLevel)
		_ = os.Setenv("LOG_FORMAT", originalFormat)
	}()

	tests := []struct {
		name      string
		logLevel  string
		logFormat string
	}{
		{"Default values", "", ""},
		{"Debug level JSON format", "debug", "json"},
		{"Warn level console format", "warn", "console"},
		{"Invalid format defaults to console", "info", "invalid"},
		{"Invalid level defaults to info", "invalid", "console"},
		{"Case insensitive", "ERROR", "JSON"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.logLevel != "" {
				_ = os.Setenv("LOG_LEVEL", tt.logLevel)
			} else {
				_ = os.Unsetenv("LOG_LEVEL")
			}
			if tt.logFormat != "" {
				_ = os.Setenv("LOG_FORMAT", tt.logFormat)
			} else {
				_ = os.Unsetenv("LOG_FORMAT")
			}

			if err := Initialize(); err != nil {
				t.Fatalf("Initialize() unexpected error: %v", err)
			}
			if Logger == nil || Sugar == nil {
				t.Error("Logger and Sugar should be set after initialization")
			}
			Close()
		})
	}
}

func TestComponent(t *testing.T) {
	original := Logger
	defer func() { Logger = original }()

	Logger = nil
	if Component("speech") == nil {
		t.Fatal("Component() should return a no-op logger when uninitialized")
	}

	core, recorded := observer.New(zapcore.InfoLevel)
	Logger = zap.New(core)
	Component("speech").Info("hello")

	logs := recorded.All()
	if len(logs) != 1 {
		t.Fatalf("expected 1 log entry, got %d", len(logs))
	}
	if got := logs[0].ContextMap()["component"]; got != "speech" {
		t.Errorf("component = %v, want speech", got)
	}
}

func TestSession(t *testing.T) {
	original := Logger
	defer func() { Logger = original }()

	core, recorded := observer.New(zapcore.InfoLevel)
	Logger = zap.New(core)
	Session("manager", "sess-1").Info("created")

	fields := recorded.All()[0].ContextMap()
	if fields["component"] != "manager" || fields["session_id"] != "sess-1" {
		t.Errorf("unexpected session fields: %v", fields)
	}
}

type mockSessionEvent struct {
	uuid      string
	sessionID string
	reason    string
}

func (m *mockSessionEvent) GetUUID() string { return m.uuid }
func (m *mockSessionEvent) GetSessionID() string { return m.sessionID }
func (m *mockSessionEvent) GetReason() string { return m.reason }

func TestLoggingFunctions(t *testing.T) {
	core, recorded := observer.New(zapcore.InfoLevel)
	Logger = zap.New(core)
	Sugar = Logger.Sugar()

	defer func() {
		Close()
		Logger = nil
		Sugar = nil
	}()

	t.Run("LogSessionEvent", func(t *testing.T) {
		LogSessionEvent(&mockSessionEvent{uuid: "test-uuid-123", sessionID: "sess-9", reason: "success"}, "Session stored", zap.String("extra", "field"))

		logs := recorded.All()
		entry := logs[len(logs)-1]
		if entry.Message != "Session stored" {
			t.Errorf("Expected message 'Session stored', got %q", entry.Message)
		}

		fields := entry.ContextMap()
		if fields["component"] != "speech_session" {
			t.Errorf("Expected component 'speech_session', got %v", fields["component"])
		}
		if fields["event_uuid"] != "test-uuid-123" {
			t.Errorf("Expected event_uuid 'test-uuid-123', got %v", fields["event_uuid"])
		}
		if fields["session_id"] != "sess-9" || fields["reason"] != "success" {
			t.Errorf("Expected session_id and reason fields, got %v", fields)
		}
		if fields["extra"] != "field" {
			t.Errorf("Expected extra 'field', got %v", fields["extra"])
		}
	})

	t.Run("LogSessionEvent without UUID", func(t *testing.T) {
		LogSessionEvent(nil, "No uuid")

		logs := recorded.All()
		if _, ok := logs[len(logs)-1].ContextMap()["event_uuid"]; ok {
			t.Error("event_uuid should be absent")
		}
	})

	t.Run("LogNATSEvent", func(t *testing.T) {
		LogNATSEvent("loqa.speech.sessions.status", "publish", zap.String("session_id", "abc"))

		logs := recorded.All()
		fields := logs[len(logs)-1].ContextMap()
		if fields["component"] != "messaging" || fields["subject"] != "loqa.speech.sessions.status" || fields["action"] != "publish" {
			t.Errorf("unexpected NATS fields: %v", fields)
		}
	})

	t.Run("LogDatabaseOperation", func(t *testing.T) {
		LogDatabaseOperation("INSERT", "session_events", zap.Int("affected_rows", 1))

		logs := recorded.All()
		entry := logs[len(logs)-1]
		if entry.Message != "Database operation" {
			t.Errorf("Expected message 'Database operation', got %q", entry.Message)
		}
		fields := entry.ContextMap()
		if fields["table"] != "session_events" {
			t.Errorf("Expected table 'session_events', got %v", fields["table"])
		}
		if fields["affected_rows"] != int64(1) {
			t.Errorf("Expected affected_rows 1, got %v", fields["affected_rows"])
		}
	})

	t.Run("LogError", func(t *testing.T) {
		LogError(errors.New("test error"), "Something went wrong")

		logs := recorded.All()
		entry := logs[len(logs)-1]
		if entry.Level != zapcore.ErrorLevel {
			t.Errorf("Expected error level, got %v", entry.Level)
		}
		if entry.ContextMap()["error"] != "test error" {
			t.Errorf("Expected error 'test error', got %v", entry.ContextMap()["error"])
		}
	})

	t.Run("LogWarn", func(t *testing.T) {
		LogWarn("Warning message")

		logs := recorded.All()
		if logs[len(logs)-1].Level != zapcore.WarnLevel {
			t.Errorf("Expected warn level, got %v", logs[len(logs)-1].Level)
		}
	})
}

func TestLoggingFunctions_NilLogger(t *testing.T) {
	originalLogger := Logger
	originalSugar := Sugar
	defer func() {
		Logger = originalLogger
		Sugar = originalSugar
	}()

	Logger = nil
	Sugar = nil

	defer func() {
		if r := recover(); r != nil {
			t.Errorf("Function panicked with nil logger: %v", r)
		}
	}()

	LogSessionEvent(nil, "test")
	LogNATSEvent("subject", "action")
	LogDatabaseOperation("op", "table")
	LogError(errors.New("test"), "message")
	LogWarn("warning")
	Sync()
}

func TestGetEnvOrDefault(t *testing.T) {
	_ = os.Setenv("TEST_ENV_VAR", "env_value")
	defer func() { _ = os.Unsetenv("TEST_ENV_VAR") }()
	_ = os.Unsetenv("TEST_ENV_VAR_NOT_SET")

	if got := getEnvOrDefault("TEST_ENV_VAR", "default"); got != "env_value" {
		t.Errorf("getEnvOrDefault() = %q, want %q", got, "env_value")
	}
	if got := getEnvOrDefault("TEST_ENV_VAR_NOT_SET", "default"); got != "default" {
		t.Errorf("getEnvOrDefault() = %q, want %q", got, "default")
	}
}
