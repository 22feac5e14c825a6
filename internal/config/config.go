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

package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the voice command service
type Config struct {
	Server  ServerConfig
	Storage StorageConfig
	Speech  SpeechConfig
	Session SessionConfig
	Logging LoggingConfig
	NATS    NATSConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Host         string
	Port         int
	GRPCPort     int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	CORSOrigins  []string // browser origins allowed to call the API; empty disables CORS
	StartLimit   int      // session starts per client IP per minute; 0 disables
}

// StorageConfig holds session history storage configuration
type StorageConfig struct {
	Path    string
	Enabled bool // persist finished sessions
}

// SpeechConfig selects and configures the speech engine
type SpeechConfig struct {
	Engine           string        // "nats" or "whisper"
	EngineName       string        // remote engine name used in NATS subjects
	RequestTimeout   time.Duration // NATS request/reply timeout
	WhisperModelPath string
	AudioCommand     string // ffmpeg binary used for microphone capture
	AudioFormat      string // ffmpeg input format, e.g. "pulse" or "alsa"
	AudioDevice      string
}

// SessionConfig holds the session lifecycle delays
type SessionConfig struct {
	MinStatusDuration time.Duration
	AnalysisDuration  time.Duration
	ExitDuration      time.Duration
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// NATSConfig holds NATS messaging configuration
type NATSConfig struct {
	URL           string
	MaxReconnect  int
	ReconnectWait time.Duration
}

// Speech engines
const (
	EngineNATS    = "nats"
	EngineWhisper = "whisper"
)

// Load loads configuration from environment variables with defaults
func Load() (*Config, error) {
	config := &Config{
		Server: ServerConfig{
			Host:         getEnvString("LOQA_HOST", "0.0.0.0"),
			Port:         getEnvInt("LOQA_PORT", 8080),
			GRPCPort:     getEnvInt("LOQA_GRPC_PORT", 50051),
			ReadTimeout:  getEnvDuration("LOQA_READ_TIMEOUT", 30*time.Second),
			WriteTimeout: getEnvDuration("LOQA_WRITE_TIMEOUT", 30*time.Second),
			CORSOrigins:  getEnvList("LOQA_CORS_ORIGINS"),
			StartLimit:   getEnvInt("LOQA_SESSION_START_LIMIT", 30),
		},
		Storage: StorageConfig{
			Path:    getEnvString("LOQA_DB_PATH", "./data/loqa-voicecmd.db"),
			Enabled: getEnvBool("LOQA_PERSIST_SESSIONS", true),
		},
		Speech: SpeechConfig{
			Engine:           getEnvString("SPEECH_ENGINE", EngineNATS),
			EngineName:       getEnvString("SPEECH_ENGINE_NAME", "default"),
			RequestTimeout:   getEnvDuration("SPEECH_REQUEST_TIMEOUT", 5*time.Second),
			WhisperModelPath: getEnvString("WHISPER_MODEL_PATH", "./models/ggml-base.en.bin"),
			AudioCommand:     getEnvString("SPEECH_AUDIO_COMMAND", "ffmpeg"),
			AudioFormat:      getEnvString("SPEECH_AUDIO_FORMAT", "pulse"),
			AudioDevice:      getEnvString("SPEECH_AUDIO_DEVICE", "default"),
		},
		Session: SessionConfig{
			MinStatusDuration: getEnvDuration("SESSION_MIN_STATUS_DURATION", 500*time.Millisecond),
			AnalysisDuration:  getEnvDuration("SESSION_ANALYSIS_DURATION", 4*time.Second),
			ExitDuration:      getEnvDuration("SESSION_EXIT_DURATION", time.Second),
		},
		Logging: LoggingConfig{
			Level:  getEnvString("LOG_LEVEL", "info"),
			Format: getEnvString("LOG_FORMAT", "json"),
		},
		NATS: NATSConfig{
			URL:           getEnvString("NATS_URL", "nats://localhost:4222"),
			MaxReconnect:  getEnvInt("NATS_MAX_RECONNECT", 10),
			ReconnectWait: getEnvDuration("NATS_RECONNECT_WAIT", 2*time.Second),
		},
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// validate reports every problem found, not just the first.
func (c *Config) validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	check(validPort(c.Server.Port), "invalid server port: %d", c.Server.Port)
	check(validPort(c.Server.GRPCPort), "invalid gRPC port: %d", c.Server.GRPCPort)
	check(c.Server.StartLimit >= 0, "session start limit must not be negative: %d", c.Server.StartLimit)

	switch c.Speech.Engine {
	case EngineNATS:
		check(c.NATS.URL != "", "NATS URL must be provided for the nats speech engine")
		check(c.Speech.EngineName != "", "speech engine name must be provided")
	case EngineWhisper:
		check(c.Speech.WhisperModelPath != "", "whisper model path must be provided")
		check(c.Speech.AudioCommand != "", "audio capture command must be provided")
	default:
		check(false, "unknown speech engine: %q", c.Speech.Engine)
	}

	check(c.Speech.RequestTimeout > 0, "speech request timeout must be positive: %v", c.Speech.RequestTimeout)
	check(c.Session.MinStatusDuration >= 0 && c.Session.AnalysisDuration >= 0 && c.Session.ExitDuration >= 0,
		"session durations must not be negative")
	check(!c.Storage.Enabled || c.Storage.Path != "", "database path must be provided when persistence is enabled")

	return errors.Join(errs...)
}

func validPort(p int) bool {
	return p > 0 && p <= 65535
}

// lookup returns the parsed value of key, or def when unset or unparsable.
func lookup[T any](key string, def T, parse func(string) (T, error)) T {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	v, err := parse(raw)
	if err != nil {
		return def
	}
	return v
}

func getEnvString(key, defaultValue string) string {
	return lookup(key, defaultValue, func(s string) (string, error) { return s, nil })
}

func getEnvInt(key string, defaultValue int) int {
	return lookup(key, defaultValue, strconv.Atoi)
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	return lookup(key, defaultValue, time.ParseDuration)
}

func getEnvBool(key string, defaultValue bool) bool {
	return lookup(key, defaultValue, strconv.ParseBool)
}

// getEnvList splits a comma separated variable, dropping empty items.
func getEnvList(key string) []string {
	var out []string
	for _, item := range strings.Split(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
