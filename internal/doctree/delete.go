package doctree

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/starford/facdocs/internal/apperr"
	"github.com/starford/facdocs/internal/models"
	"github.com/starford/facdocs/internal/nodestore"
)

// DeleteResult reports what a recursive delete removed.
type DeleteResult struct {
	Deleted      int `json:"deleted"`
	BlobFailures int `json:"blobFailures"`
}

// Delete removes the node and, for folders, its whole subtree together with
// the blobs of every file in it.
//
// The subtree is collected level by level with at most DeleteConcurrency
// listings in flight. Blob failures are logged and counted but never block
// metadata removal. Records are removed deepest level first so an
// interrupted delete never leaves a child whose parent is gone. Nodes that
// disappear concurrently count as deleted.
func (s *Service) Delete(ctx context.Context, id string) (DeleteResult, error) {
	top, err := s.store.GetNode(ctx, id)
	if err != nil {
		return DeleteResult{}, err
	}
	if top.IsAbsoluteRoot() {
		return DeleteResult{}, apperr.Validation("the root folder cannot be deleted")
	}

	levels, err := s.collectSubtree(ctx, *top)
	if err != nil {
		return DeleteResult{}, err
	}

	var res DeleteResult
	res.BlobFailures = s.deleteBlobs(ctx, levels)

	for depth := len(levels) - 1; depth >= 0; depth-- {
		var deleted atomic.Int64
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(s.opts.DeleteConcurrency)
		for _, n := range levels[depth] {
			g.Go(func() error {
				err := s.store.DeleteNode(gctx, n.ID)
				if err != nil && !errors.Is(err, apperr.ErrNotFound) {
					return fmt.Errorf("delete %s: %w", n.ID, err)
				}
				deleted.Add(1)
				return nil
			})
		}
		err := g.Wait()
		res.Deleted += int(deleted.Load())
		if err != nil {
			return res, err
		}
	}

	s.logger.Info("item deleted",
		slog.String("id", top.ID),
		slog.Int("nodes", res.Deleted),
		slog.Int("blob_failures", res.BlobFailures))
	s.emit(EventDeleted, top)
	return res, nil
}

// collectSubtree returns the subtree of top grouped by depth, top first.
func (s *Service) collectSubtree(ctx context.Context, top models.Node) ([][]models.Node, error) {
	levels := [][]models.Node{{top}}
	seen := map[string]struct{}{top.ID: {}}

	for frontier := levels[0]; len(frontier) > 0; {
		var folders []models.Node
		for _, n := range frontier {
			if n.IsFolder() {
				folders = append(folders, n)
			}
		}
		if len(folders) == 0 {
			break
		}

		children := make([][]models.Node, len(folders))
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(s.opts.DeleteConcurrency)
		for i, f := range folders {
			g.Go(func() error {
				kids, err := s.store.ListNodes(gctx, nodestore.Filter{ParentID: f.ID})
				if err != nil {
					return fmt.Errorf("list children of %s: %w", f.ID, err)
				}
				children[i] = kids
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}

		var next []models.Node
		for _, kids := range children {
			for _, k := range kids {
				if _, dup := seen[k.ID]; dup {
					continue
				}
				seen[k.ID] = struct{}{}
				next = append(next, k)
			}
		}
		if len(next) > 0 {
			levels = append(levels, next)
		}
		frontier = next
	}
	return levels, nil
}

// deleteBlobs removes the stored bytes of every file node and returns the
// number of failures. A blob that is already gone is not a failure.
func (s *Service) deleteBlobs(ctx context.Context, levels [][]models.Node) int {
	var failures atomic.Int64
	var g errgroup.Group
	g.SetLimit(s.opts.DeleteConcurrency)
	for _, level := range levels {
		for _, n := range level {
			if n.Type != models.TypeFile || n.StoragePath == "" {
				continue
			}
			g.Go(func() error {
				err := s.blobs.Delete(ctx, n.StoragePath)
				if err != nil && !errors.Is(err, apperr.ErrNotFound) {
					failures.Add(1)
					s.logger.Warn("blob delete failed",
						slog.String("id", n.ID),
						slog.String("storage_path", n.StoragePath),
						slog.String("error", err.Error()))
				}
				return nil
			})
		}
	}
	_ = g.Wait()
	return int(failures.Load())
}
