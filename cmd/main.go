package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"ai-speech-diarization-service/internal/api/ws"
	"ai-speech-diarization-service/internal/app"
	"ai-speech-diarization-service/internal/config"
	"ai-speech-diarization-service/internal/events"
	httpapi "ai-speech-diarization-service/internal/http"
	"ai-speech-diarization-service/internal/observability"
	"ai-speech-diarization-service/internal/service/diarization"
	"ai-speech-diarization-service/internal/service/keyword"
	"ai-speech-diarization-service/internal/service/session"
	"ai-speech-diarization-service/internal/service/stt"
	"ai-speech-diarization-service/internal/service/stt/google"
	"ai-speech-diarization-service/internal/service/stt/mock"
)

func main() {
	cfg := config.Load()

	application := app.New(cfg)
	if err := application.Start(); err != nil {
		log.Fatal().Err(err).Msg("application start failed")
	}

	// Keyword notifications go to Kafka; without brokers the publisher runs
	// in log-only mode so the rest of the pipeline behaves identically.
	publisher := events.New(&events.Config{
		Enabled:   cfg.Kafka.Enabled,
		Brokers:   cfg.Kafka.Brokers,
		Topic:     cfg.Kafka.TopicEvents,
		Principal: cfg.Kafka.Principal,
	})
	defer publisher.Close()

	dispatcher := keyword.New(cfg.Keyword.Triggers, cfg.Keyword.DedupMode, publisher, cfg.Keyword.NotifyTimeout)
	registry := session.NewRegistry()

	engine := newEngine(cfg)
	defer engine.Close()

	var inference ws.InferenceFactory
	if cfg.Diarization.Enabled {
		inference = func() diarization.Inference {
			return diarization.NewStub(cfg.Diarization.SampleRateHz, cfg.Diarization.FrameDuration)
		}
	}

	wsServer := ws.NewServer(cfg, engine, dispatcher, registry, inference)
	router := httpapi.NewRouter(application, wsServer.Handle, registry)

	httpServer := &http.Server{
		Addr:        ":" + cfg.Service.HTTPPort,
		Handler:     router,
		ReadTimeout: 0, // WebSocket connections are long-lived
		IdleTimeout: 120 * time.Second,
	}
	go func() {
		log.Info().Str("addr", httpServer.Addr).Msg("Speech Diarization Service started")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("http serve failed")
		}
	}()

	obsServer := observability.NewServer(":" + cfg.Observability.MetricsPort)
	obsServer.Start()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	log.Info().Msg("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("http shutdown failed")
	}
	dispatcher.Drain(5 * time.Second)
	if err := obsServer.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("observability shutdown failed")
	}
	application.Shutdown()
}

// newEngine selects the transcription provider. Unknown providers fall back
// to the mock engine so the service always comes up.
func newEngine(cfg *config.Configuration) stt.Engine {
	switch cfg.STT.Provider {
	case "google":
		engine, err := google.NewEngine(context.Background(), cfg.STT)
		if err != nil {
			log.Fatal().Err(err).Msg("google speech client unavailable")
		}
		return engine
	case "mock":
		return mock.NewEngine()
	default:
		log.Warn().Str("provider", cfg.STT.Provider).Msg("unknown STT provider, using mock")
		return mock.NewEngine()
	}
}
