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

package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/loqalabs/loqa-voicecmd/internal/config"
	"github.com/loqalabs/loqa-voicecmd/internal/logging"
	"github.com/loqalabs/loqa-voicecmd/internal/manager"
	"github.com/loqalabs/loqa-voicecmd/internal/messaging"
	"github.com/loqalabs/loqa-voicecmd/internal/server"
	"github.com/loqalabs/loqa-voicecmd/internal/speech"
	"github.com/loqalabs/loqa-voicecmd/internal/storage"
	"github.com/loqalabs/loqa-voicecmd/internal/stt"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if err := logging.InitializeWithConfig(logging.LogConfig{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	}); err != nil {
		log.Fatalf("Failed to initialize logging: %v", err)
	}
	defer logging.Close()

	natsService := messaging.NewNATSService(messaging.NATSConfig{
		URL:           cfg.NATS.URL,
		MaxReconnects: cfg.NATS.MaxReconnect,
		ReconnectWait: cfg.NATS.ReconnectWait,
	})
	if err := natsService.Connect(); err != nil {
		if cfg.Speech.Engine == config.EngineNATS {
			logging.LogError(err, "NATS is required for the nats speech engine")
			os.Exit(1)
		}
		logging.LogWarn("Running without NATS, session activity will not be published", zap.Error(err))
		natsService = nil
	} else {
		defer natsService.Close()
	}

	opts := []manager.Option{
		manager.WithEngine(engineLabel(cfg)),
		manager.WithTimings(speech.Timings{
			MinStatusDuration: cfg.Session.MinStatusDuration,
			AnalysisDuration:  cfg.Session.AnalysisDuration,
			ExitDuration:      cfg.Session.ExitDuration,
		}),
	}
	deps := server.Deps{}

	if natsService != nil {
		opts = append(opts, manager.WithPublisher(natsService))
		deps.NATS = natsService
	}

	if cfg.Storage.Enabled {
		db, err := storage.NewDatabase(storage.DatabaseConfig{Path: cfg.Storage.Path})
		if err != nil {
			logging.LogError(err, "Failed to open session database", zap.String("path", cfg.Storage.Path))
			os.Exit(1)
		}
		defer func() { _ = db.Close() }()
		if err := db.Verify(context.Background()); err != nil {
			logging.LogWarn("Session database failed integrity check", zap.Error(err))
		}

		store := storage.NewSessionEventsStore(db)
		opts = append(opts, manager.WithStore(store))
		deps.Database = db
		deps.Events = store
	}

	factory, closeEngine, err := recognizerFactory(cfg, natsService)
	if err != nil {
		logging.LogError(err, "Failed to set up speech engine", zap.String("engine", cfg.Speech.Engine))
		os.Exit(1)
	}
	defer closeEngine()

	deps.Manager = manager.New(factory, opts...)
	srv := server.New(cfg, deps)

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		logging.Sugar.Infow("Received shutdown signal", "signal", sig.String())
		if err := srv.Stop(); err != nil {
			logging.LogError(err, "Failed to stop server")
		}
	}()

	if err := srv.Start(); err != nil {
		logging.LogError(err, "Failed to start server")
		os.Exit(1)
	}
	<-stopped
}

// recognizerFactory builds one recognizer per session for the configured
// engine. The returned func releases engine resources.
func recognizerFactory(cfg *config.Config, natsService *messaging.NATSService) (manager.RecognizerFactory, func(), error) {
	switch cfg.Speech.Engine {
	case config.EngineNATS:
		factory := func(sessionID string) (speech.Recognizer, error) {
			return messaging.NewNATSRecognizer(natsService, cfg.Speech.EngineName, sessionID, cfg.Speech.RequestTimeout), nil
		}
		return factory, func() {}, nil

	case config.EngineWhisper:
		transcriber, err := stt.NewWhisperTranscriber(cfg.Speech.WhisperModelPath)
		if err != nil {
			return nil, nil, err
		}
		factory := func(string) (speech.Recognizer, error) {
			source := stt.NewFFmpegSource(cfg.Speech.AudioCommand, cfg.Speech.AudioFormat, cfg.Speech.AudioDevice)
			return stt.NewRecognizer(transcriber, source), nil
		}
		return factory, func() { _ = transcriber.Close() }, nil
	}

	return nil, nil, fmt.Errorf("unknown speech engine: %q", cfg.Speech.Engine)
}

func engineLabel(cfg *config.Config) string {
	if cfg.Speech.Engine == config.EngineNATS {
		return config.EngineNATS + ":" + cfg.Speech.EngineName
	}
	return cfg.Speech.Engine
}
