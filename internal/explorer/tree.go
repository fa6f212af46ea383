package explorer

import (
	"context"
	"sync"

	"github.com/disiqueira/gotree/v3"

	"github.com/starford/facdocs/internal/models"
)

// ChildLister lists the children of a folder.
type ChildLister interface {
	Children(ctx context.Context, parentID string) ([]models.Node, error)
}

// Tree is the auxiliary folder tree. Each folder's child folders are fetched
// once, on first expand, and cached until refreshed.
type Tree struct {
	api ChildLister

	mu       sync.Mutex
	children map[string][]models.Node
	expanded map[string]bool
}

// NewTree creates an empty tree.
func NewTree(api ChildLister) *Tree {
	return &Tree{
		api:      api,
		children: make(map[string][]models.Node),
		expanded: map[string]bool{models.RootID: true},
	}
}

// Init loads the top level and expands every top-level folder once.
func (t *Tree) Init(ctx context.Context) error {
	if err := t.Expand(ctx, models.RootID); err != nil {
		return err
	}
	for _, f := range t.Children(models.RootID) {
		if err := t.Expand(ctx, f.ID); err != nil {
			return err
		}
	}
	return nil
}

// Expand shows a folder's children, fetching them on first use.
func (t *Tree) Expand(ctx context.Context, id string) error {
	t.mu.Lock()
	_, cached := t.children[id]
	t.mu.Unlock()
	if !cached {
		if err := t.load(ctx, id); err != nil {
			return err
		}
	}
	t.mu.Lock()
	t.expanded[id] = true
	t.mu.Unlock()
	return nil
}

// Collapse hides a folder's children but keeps them cached.
func (t *Tree) Collapse(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if id != models.RootID {
		delete(t.expanded, id)
	}
}

// Refresh refetches the children of id if they were loaded before.
func (t *Tree) Refresh(ctx context.Context, id string) error {
	t.mu.Lock()
	_, cached := t.children[id]
	t.mu.Unlock()
	if !cached {
		return nil
	}
	return t.load(ctx, id)
}

// Loaded reports whether the children of id are cached.
func (t *Tree) Loaded(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.children[id]
	return ok
}

// Children returns the cached child folders of id.
func (t *Tree) Children(id string) []models.Node {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.children[id]
}

func (t *Tree) load(ctx context.Context, id string) error {
	items, err := t.api.Children(ctx, id)
	if err != nil {
		return err
	}
	folders := make([]models.Node, 0, len(items))
	for _, n := range items {
		if n.IsFolder() {
			folders = append(folders, n)
		}
	}
	t.mu.Lock()
	t.children[id] = folders
	t.mu.Unlock()
	return nil
}

// Render draws the expanded part of the tree. Folders that are collapsed or
// not loaded yet are marked with "+"; current marks the open folder.
func (t *Tree) Render(current string) string {
	t.mu.Lock()
	defer t.mu.Unlock()

	label := "/"
	if current == models.RootID {
		label = "/ *"
	}
	root := gotree.New(label)
	visited := map[string]bool{models.RootID: true}

	var add func(parent gotree.Tree, id string)
	add = func(parent gotree.Tree, id string) {
		for _, f := range t.children[id] {
			if visited[f.ID] {
				continue
			}
			visited[f.ID] = true
			name := f.Name
			if f.ID == current {
				name += " *"
			}
			if !t.expanded[f.ID] {
				parent.Add("+ " + name)
				continue
			}
			add(parent.Add(name), f.ID)
		}
	}
	add(root, models.RootID)
	return root.Print()
}
