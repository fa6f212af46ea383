package doctree

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/starford/facdocs/internal/apperr"
)

// SweepOrphans deletes blobs under files/ that no file node references and
// that are older than grace. The grace window protects uploads whose node
// has not been created yet.
func (s *Service) SweepOrphans(ctx context.Context, grace time.Duration) (int, error) {
	blobs, err := s.blobs.List(ctx, "files")
	if err != nil {
		return 0, err
	}
	referenced, err := s.store.StoragePaths(ctx)
	if err != nil {
		return 0, err
	}

	cutoff := s.now().Add(-grace)
	removed := 0
	for _, b := range blobs {
		if _, ok := referenced[b.Path]; ok {
			continue
		}
		if b.UpdatedAt.After(cutoff) {
			continue
		}
		if err := s.blobs.Delete(ctx, b.Path); err != nil && !errors.Is(err, apperr.ErrNotFound) {
			s.logger.Warn("sweep: delete failed", slog.String("storage_path", b.Path), slog.String("error", err.Error()))
			continue
		}
		removed++
		s.logger.Debug("sweep: removed orphan", slog.String("storage_path", b.Path))
	}
	return removed, nil
}

// RunSweeper calls SweepOrphans every interval until ctx is cancelled.
func (s *Service) RunSweeper(ctx context.Context, interval, grace time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("sweeper: started", slog.Duration("interval", interval), slog.Duration("grace", grace))
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("sweeper: stopped")
			return
		case <-ticker.C:
			n, err := s.SweepOrphans(ctx, grace)
			if err != nil {
				s.logger.Warn("sweeper: pass failed", slog.String("error", err.Error()))
				continue
			}
			if n > 0 {
				s.logger.Info("sweeper: removed orphaned blobs", slog.Int("count", n))
			}
		}
	}
}
