// Package main provides the mangaforge API server entrypoint.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/mangaforge/mangaforge/internal/config"
	"github.com/mangaforge/mangaforge/internal/editor"
	"github.com/mangaforge/mangaforge/internal/inference"
	"github.com/mangaforge/mangaforge/internal/observability"
	"github.com/mangaforge/mangaforge/internal/operation"
	"github.com/mangaforge/mangaforge/internal/project"
	"github.com/mangaforge/mangaforge/internal/store"
	"github.com/mangaforge/mangaforge/internal/viewport"
)

func main() {
	// Optional .env for local development.
	_ = godotenv.Load()

	cfgPath := flag.String("config", os.Getenv("CONFIG_PATH"), "path to config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(observability.LogConfig{
		Level:       cfg.Observability.LogLevel,
		Format:      cfg.Observability.LogFormat,
		ServiceName: "mangaforge",
	})

	logger.Info().
		Str("host", cfg.Server.Host).
		Int("port", cfg.Server.Port).
		Str("sidecar", cfg.Sidecar.BaseURL).
		Str("ocr", cfg.OCR.Engine).
		Msg("Starting mangaforge API")

	sidecar := inference.NewSidecarClient(inference.SidecarConfig{
		BaseURL: cfg.Sidecar.BaseURL,
		Timeout: cfg.Sidecar.Timeout,
	}, logger)

	adapters := inference.Adapters{
		Detector:  sidecar,
		Inpainter: sidecar,
		Translator: inference.NewTranslatorClient(inference.TranslatorConfig{
			Endpoint:     cfg.Translator.Endpoint,
			APIKey:       cfg.Translator.APIKey,
			Model:        cfg.Translator.Model,
			SystemPrompt: cfg.Translator.SystemPrompt,
			Temperature:  cfg.Translator.Temperature,
			Timeout:      cfg.Translator.Timeout,
			Retry: inference.RetryConfig{
				MaxRetries:     cfg.Translator.MaxRetries,
				InitialBackoff: cfg.Translator.InitialBackoff,
			},
		}, logger),
	}
	if cfg.OCR.Engine == "tesseract" {
		adapters.Recognizer = inference.NewTesseractRecognizer(cfg.OCR.Languages)
	} else {
		adapters.Recognizer = sidecar
	}

	st := store.New(adapters, logger)
	ops := operation.NewController(logger)

	// Cancel reaches the sidecar out of band so an in-flight stage can stop
	// early; pipeline state still only changes at stage boundaries.
	ops.SetCancelNotifier(func(op operation.Operation) {
		go func() {
			if err := sidecar.CancelPipeline(context.Background()); err != nil {
				logger.Warn().Err(err).Msg("Sidecar cancel notification failed")
			}
		}()
	})

	params := store.PipelineParams{
		Detect: inference.DetectOptions{
			ConfidenceThreshold: cfg.Pipeline.ConfidenceThreshold,
			NMSThreshold:        cfg.Pipeline.NMSThreshold,
		},
		Morphology: inference.MorphologyOptions{
			DilateKernelSize: cfg.Pipeline.DilateKernelSize,
			ErodeDistance:    cfg.Pipeline.ErodeDistance,
		},
	}

	deps := RouterDeps{
		Store:      st,
		Projects:   project.NewService(st, ops, logger),
		Pipeline:   store.NewPipeline(st, ops, logger),
		Ops:        ops,
		Session:    editor.NewSession(st, viewport.New(), logger),
		Params:     params,
		Morphology: params.Morphology,
	}

	router := NewRouter(logger, deps)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", addr).Msg("HTTP server listening")
		serverErrors <- srv.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		logger.Error().Err(err).Msg("Server error")
	case sig := <-shutdown:
		logger.Info().Str("signal", sig.String()).Msg("Shutdown signal received")
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulShutdown)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("Graceful shutdown failed")
		if err := srv.Close(); err != nil {
			logger.Error().Err(err).Msg("Forced shutdown failed")
		}
	}

	logger.Info().Msg("Server stopped")
}
