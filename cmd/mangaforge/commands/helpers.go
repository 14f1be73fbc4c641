package commands

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/mangaforge/mangaforge/cmd/mangaforge/ui"
	"github.com/mangaforge/mangaforge/internal/config"
	"github.com/mangaforge/mangaforge/internal/inference"
	"github.com/mangaforge/mangaforge/internal/operation"
	"github.com/mangaforge/mangaforge/internal/project"
	"github.com/mangaforge/mangaforge/internal/store"
)

// app bundles the composed core for a CLI run.
type app struct {
	store    *store.Store
	projects *project.Service
	pipeline *store.Pipeline
	ops      *operation.Controller
	params   store.PipelineParams
	sidecar  *inference.SidecarClient
}

// newApp composes the store, adapters, and services from configuration.
func newApp(cfg *config.Config, logger zerolog.Logger) *app {
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
	ops.SetCancelNotifier(func(op operation.Operation) {
		go func() {
			_ = sidecar.CancelPipeline(context.Background())
		}()
	})

	return &app{
		store:    st,
		projects: project.NewService(st, ops, logger),
		pipeline: store.NewPipeline(st, ops, logger),
		ops:      ops,
		params: store.PipelineParams{
			Detect: inference.DetectOptions{
				ConfidenceThreshold: cfg.Pipeline.ConfidenceThreshold,
				NMSThreshold:        cfg.Pipeline.NMSThreshold,
			},
			Morphology: inference.MorphologyOptions{
				DilateKernelSize: cfg.Pipeline.DilateKernelSize,
				ErodeDistance:    cfg.Pipeline.ErodeDistance,
			},
		},
		sidecar: sidecar,
	}
}

// watchProgress drives a progress bar from operation snapshots.
func watchProgress(ops *operation.Controller) func() {
	var bar *ui.ProgressBar
	ops.SetListener(func(op operation.Operation, active bool) {
		if !active {
			if bar != nil {
				bar.Finish()
				bar = nil
			}
			return
		}
		if bar == nil {
			bar = ui.NewProgressBar(int64(op.Total), string(op.Type))
		}
		if op.Step != "" {
			bar.Describe(op.Step)
		}
		bar.Set(int64(op.Current))
	})
	return func() {
		ops.SetListener(nil)
	}
}
