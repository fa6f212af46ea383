// Package doctree implements the document tree operations: listing, create,
// update, move with cycle prevention, recursive delete, signed downloads and
// uploads. It enforces the parent/child invariants over a nodestore.Store
// and mediates file bytes through a storage.Provider.
package doctree

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/starford/facdocs/internal/models"
	"github.com/starford/facdocs/internal/nodestore"
	"github.com/starford/facdocs/internal/storage"
)

// Change kinds passed to an EventFunc.
const (
	EventCreated = "created"
	EventUpdated = "updated"
	EventMoved   = "moved"
	EventDeleted = "deleted"
)

// EventFunc observes successful mutations.
type EventFunc func(kind string, n models.Node)

// Options tunes the service. Zero values fall back to defaults.
type Options struct {
	DeleteConcurrency int
	URLTTL            time.Duration
	MaxUploadBytes    int64
	SeedFacilityRoot  bool
}

const (
	defaultDeleteConcurrency = 8
	defaultURLTTL            = 15 * time.Minute
	defaultMaxUploadBytes    = 10 << 20 // 10 MiB

	maxNameLength = 255
	maxTags       = 64
)

// Service coordinates node store and blob store operations.
type Service struct {
	store    nodestore.Store
	blobs    storage.Provider
	logger   *slog.Logger
	opts     Options
	onChange EventFunc

	now   func() time.Time
	newID func() string
}

// NewService creates a new tree service.
func NewService(store nodestore.Store, blobs storage.Provider, logger *slog.Logger, opts Options) *Service {
	if opts.DeleteConcurrency <= 0 {
		opts.DeleteConcurrency = defaultDeleteConcurrency
	}
	if opts.URLTTL <= 0 {
		opts.URLTTL = defaultURLTTL
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = defaultMaxUploadBytes
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:  store,
		blobs:  blobs,
		logger: logger,
		opts:   opts,
		now:    func() time.Time { return time.Now().UTC() },
		newID:  func() string { return uuid.NewString() },
	}
}

// OnChange registers fn to receive change notifications. Not safe to call
// once requests are being served.
func (s *Service) OnChange(fn EventFunc) {
	s.onChange = fn
}

// MaxUploadBytes returns the upload size ceiling.
func (s *Service) MaxUploadBytes() int64 { return s.opts.MaxUploadBytes }

func (s *Service) emit(kind string, n *models.Node) {
	if s.onChange != nil && n != nil {
		s.onChange(kind, *n)
	}
}

// ListQuery selects children for List. With neither field set the top level
// (parentId "root") is listed.
type ListQuery struct {
	ParentID string
	Tag      string
}

// List returns matching nodes ordered by name.
func (s *Service) List(ctx context.Context, q ListQuery) ([]models.Node, error) {
	f := nodestore.Filter{ParentID: strings.TrimSpace(q.ParentID), Tag: strings.TrimSpace(q.Tag)}
	if f.ParentID == "" && f.Tag == "" {
		f.ParentID = models.RootID
	}
	return s.store.ListNodes(ctx, f)
}

// Get returns the node with the given id.
func (s *Service) Get(ctx context.Context, id string) (*models.Node, error) {
	return s.store.GetNode(ctx, id)
}

func normalizeTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
