package store

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/mangaforge/mangaforge/internal/inference"
	"github.com/mangaforge/mangaforge/internal/operation"
)

// Stage is one step of the automatic processing pipeline.
type Stage string

const (
	StageDetect    Stage = "detect"
	StageOCR       Stage = "ocr"
	StageInpaint   Stage = "inpaint"
	StageTranslate Stage = "translate"
)

// Stages lists the pipeline stages in execution order.
var Stages = []Stage{StageDetect, StageOCR, StageInpaint, StageTranslate}

// PipelineParams carries the tuning knobs each stage needs.
type PipelineParams struct {
	Detect     inference.DetectOptions
	Morphology inference.MorphologyOptions
}

// Pipeline runs the full stage chain over one page or the whole document
// set, wrapped in an Operation for progress and cooperative cancellation.
type Pipeline struct {
	store  *Store
	ops    *operation.Controller
	logger zerolog.Logger
}

// NewPipeline creates a pipeline runner.
func NewPipeline(store *Store, ops *operation.Controller, logger zerolog.Logger) *Pipeline {
	return &Pipeline{store: store, ops: ops, logger: logger}
}

// ProcessCurrentPage runs every stage over the current page.
func (p *Pipeline) ProcessCurrentPage(ctx context.Context, params PipelineParams) error {
	index := p.store.CurrentIndex()
	if index < 0 {
		return nil
	}
	return p.run(ctx, operation.TypeProcessCurrentPage, index, index+1, params)
}

// ProcessAllPages runs every stage over every page in order.
func (p *Pipeline) ProcessAllPages(ctx context.Context, params PipelineParams) error {
	count := p.store.Count()
	if count == 0 {
		return nil
	}
	return p.run(ctx, operation.TypeProcessAllPages, 0, count, params)
}

// run executes the stage grid. Cancellation is polled between stages and
// between pages, never mid-stage: a stage already handed to an adapter runs
// to completion and its result is discarded instead of applied. A stage
// error aborts the run; cancellation does not, it is a normal transition.
func (p *Pipeline) run(ctx context.Context, opType operation.Type, start, end int, params PipelineParams) error {
	totalPages := end - start
	totalUnits := totalPages * len(Stages)

	if _, err := p.ops.Start(opType, true, totalUnits); err != nil {
		return err
	}
	defer p.ops.Finish()

	cancelled := p.ops.CancelRequested

	for page := start; page < end; page++ {
		for stageIndex, stage := range Stages {
			if cancelled() {
				p.logger.Info().Int("page", page).Msg("Pipeline cancelled")
				return nil
			}

			done := (page-start)*len(Stages) + stageIndex
			p.ops.Update(operation.Update{
				Step:    operation.StepLabel(fmt.Sprintf("%s (page %d/%d)", stage, page-start+1, totalPages)),
				Current: operation.Progress(done),
			})

			if err := p.runStage(ctx, stage, page, params, cancelled); err != nil {
				p.logger.Error().Err(err).
					Int("page", page).
					Str("stage", string(stage)).
					Msg("Pipeline stage failed")
				return err
			}
		}
	}

	p.ops.Update(operation.Update{
		Step:    operation.StepLabel("done"),
		Current: operation.Progress(totalUnits),
	})
	return nil
}

// runStage pushes one stage onto the page queue and waits for it, so
// pipeline work and user-issued commands on the same surface cannot
// interleave.
func (p *Pipeline) runStage(ctx context.Context, stage Stage, page int, params PipelineParams, cancelled func() bool) error {
	handle := p.store.queue.Push(ctx, func(ctx context.Context) error {
		switch stage {
		case StageDetect:
			return p.store.runDetect(ctx, page, params.Detect, cancelled)
		case StageOCR:
			return p.store.runOCR(ctx, page, cancelled)
		case StageInpaint:
			return p.store.runInpaint(ctx, page, nil, params.Morphology, cancelled)
		case StageTranslate:
			return p.store.runTranslate(ctx, page, cancelled)
		default:
			return nil
		}
	})

	select {
	case err := <-handle:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
