package project

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/mangaforge/mangaforge/internal/operation"
	"github.com/mangaforge/mangaforge/internal/store"
)

// Service wraps loading and saving projects in operations, so the UI can
// show progress and the rest of the app sees the busy state.
type Service struct {
	store  *store.Store
	loader *Loader
	ops    *operation.Controller
	logger zerolog.Logger
}

// NewService creates a project service.
func NewService(st *store.Store, ops *operation.Controller, logger zerolog.Logger) *Service {
	return &Service{
		store:  st,
		loader: NewLoader(logger),
		ops:    ops,
		logger: logger,
	}
}

// OpenPaths loads the given paths into the store, replacing the current
// document set. A single project file among the paths opens as a project;
// otherwise every path is loaded as pages. Runs as a non-cancellable
// load-project operation.
func (s *Service) OpenPaths(ctx context.Context, paths []string) error {
	if _, err := s.ops.Start(operation.TypeLoadProject, false, len(paths)); err != nil {
		return err
	}
	defer s.ops.Finish()

	if len(paths) == 1 && strings.EqualFold(filepath.Ext(paths[0]), Extension) {
		s.ops.Update(operation.Update{Step: operation.StepLabel("opening project")})
		docs, err := Open(paths[0])
		if err != nil {
			return err
		}
		s.store.SetDocuments(docs)
		s.logger.Info().Str("path", paths[0]).Int("pages", len(docs)).Msg("Opened project")
		return nil
	}

	s.ops.Update(operation.Update{Step: operation.StepLabel("loading pages")})
	docs, err := s.loader.LoadPaths(ctx, paths)
	if err != nil {
		return err
	}
	s.store.SetDocuments(docs)
	s.logger.Info().Int("pages", len(docs)).Msg("Loaded documents")
	return nil
}

// OpenDirectory loads every supported file in a directory into the store.
func (s *Service) OpenDirectory(ctx context.Context, dir string) error {
	if _, err := s.ops.Start(operation.TypeLoadProject, false, 1); err != nil {
		return err
	}
	defer s.ops.Finish()

	docs, err := s.loader.LoadDirectory(ctx, dir)
	if err != nil {
		return err
	}
	s.store.SetDocuments(docs)
	s.logger.Info().Str("dir", dir).Int("pages", len(docs)).Msg("Loaded directory")
	return nil
}

// SaveProject writes the current document set to a project file as a
// non-cancellable save-project operation. Runs after the page queue drains
// so no half-applied stage result is captured.
func (s *Service) SaveProject(ctx context.Context, path string) error {
	if _, err := s.ops.Start(operation.TypeSaveProject, false, 1); err != nil {
		return err
	}
	defer s.ops.Finish()

	if err := s.store.Queue().Flush(ctx); err != nil {
		return err
	}

	s.ops.Update(operation.Update{Step: operation.StepLabel("writing project")})
	if err := Save(path, s.store.Documents()); err != nil {
		return err
	}
	s.logger.Info().Str("path", path).Int("pages", s.store.Count()).Msg("Saved project")
	return nil
}

// Export writes every page with translated output into dir and returns the
// written paths.
func (s *Service) Export(ctx context.Context, dir, ext string) ([]string, error) {
	if err := s.store.Queue().Flush(ctx); err != nil {
		return nil, err
	}

	var written []string
	for _, doc := range s.store.Documents() {
		path, err := ExportTo(dir, doc, ext)
		if err != nil {
			s.logger.Warn().Err(err).Str("page", doc.Name).Msg("Skipping page without output")
			continue
		}
		written = append(written, path)
	}
	return written, nil
}
