package explorer

import (
	"context"
	"fmt"

	"github.com/starford/facdocs/internal/models"
)

// DefaultMaxDepth bounds breadcrumb walks.
const DefaultMaxDepth = 64

var rootCrumb = Crumb{ID: models.RootID, Name: "Root"}

// NodeGetter fetches a single node.
type NodeGetter interface {
	Get(ctx context.Context, id string) (*models.Node, error)
}

// Breadcrumbs returns the root-to-folder trail for folderID, starting with a
// synthetic root crumb and ending with the folder itself. The walk stops
// with an error on a repeated id or after maxDepth hops.
func Breadcrumbs(ctx context.Context, api NodeGetter, folderID string, maxDepth int) ([]Crumb, error) {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	var path []Crumb
	visited := make(map[string]struct{})
	for cur := folderID; cur != models.RootID && cur != ""; {
		if _, seen := visited[cur]; seen {
			return nil, fmt.Errorf("breadcrumbs: cycle at %q", cur)
		}
		if len(path) >= maxDepth {
			return nil, fmt.Errorf("breadcrumbs: %q is deeper than %d levels", folderID, maxDepth)
		}
		visited[cur] = struct{}{}
		n, err := api.Get(ctx, cur)
		if err != nil {
			return nil, err
		}
		path = append(path, Crumb{ID: n.ID, Name: n.Name})
		cur = n.ParentID
	}

	crumbs := make([]Crumb, 0, len(path)+1)
	crumbs = append(crumbs, rootCrumb)
	for i := len(path) - 1; i >= 0; i-- {
		crumbs = append(crumbs, path[i])
	}
	return crumbs, nil
}
