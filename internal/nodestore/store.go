// Package nodestore persists document tree nodes and facilities.
//
// Nodes live in one flat collection linked by parentId. Drivers: SQLite for
// single-host deployments and tests, MongoDB for the shared document store.
package nodestore

import (
	"context"

	"github.com/starford/facdocs/internal/models"
)

// Filter selects nodes for List. Empty fields do not constrain; set fields
// must all match.
type Filter struct {
	ParentID string
	Tag      string
}

// Store is the persistence contract the tree service depends on.
//
// Get, Update and Delete return an error matching apperr.ErrNotFound for a
// missing id. CreateFacility returns apperr.ErrConflict for a taken id.
type Store interface {
	CreateNode(ctx context.Context, n *models.Node) error
	GetNode(ctx context.Context, id string) (*models.Node, error)
	UpdateNode(ctx context.Context, n *models.Node) error
	DeleteNode(ctx context.Context, id string) error
	// ListNodes returns matching nodes ordered by name ascending.
	ListNodes(ctx context.Context, f Filter) ([]models.Node, error)
	// StoragePaths returns the blob path of every file node.
	StoragePaths(ctx context.Context) (map[string]struct{}, error)

	CreateFacility(ctx context.Context, f *models.Facility) error
	GetFacility(ctx context.Context, id string) (*models.Facility, error)
	ListFacilities(ctx context.Context) ([]models.Facility, error)

	Close() error
}

// Verify drivers satisfy Store at compile time.
var (
	_ Store = (*SQLite)(nil)
	_ Store = (*Mongo)(nil)
)
