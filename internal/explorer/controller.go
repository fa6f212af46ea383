package explorer

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/starford/facdocs/internal/apperr"
	"github.com/starford/facdocs/internal/doctree"
	"github.com/starford/facdocs/internal/models"
)

// ErrLoginRequired is returned after the server rejects the credential (401)
// or refuses it access (403). The stored credential has been cleared by then.
var ErrLoginRequired = errors.New("login required")

// TreeAPI is the subset of the REST client the explorer uses.
type TreeAPI interface {
	NodeGetter
	ChildLister
	Create(ctx context.Context, in doctree.CreateInput) (*models.Node, error)
	Move(ctx context.Context, id, newParentID string) (*models.Node, error)
	Delete(ctx context.Context, id string) (doctree.DeleteResult, error)
	DownloadURL(ctx context.Context, id string) (*doctree.SignedURL, error)
}

// CredentialStore forgets the stored login.
type CredentialStore interface {
	Clear() error
}

// Controller owns the explorer State and runs its network effects.
type Controller struct {
	api      TreeAPI
	creds    CredentialStore
	tree     *Tree
	logger   *slog.Logger
	maxDepth int

	mu    sync.Mutex
	state State
}

// ControllerOption configures a Controller.
type ControllerOption func(*Controller)

// WithCredentials clears creds whenever the server rejects the credential.
func WithCredentials(creds CredentialStore) ControllerOption {
	return func(c *Controller) { c.creds = creds }
}

// WithMaxDepth bounds breadcrumb walks.
func WithMaxDepth(n int) ControllerOption {
	return func(c *Controller) { c.maxDepth = n }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) ControllerOption {
	return func(c *Controller) { c.logger = l }
}

// NewController creates a controller positioned at the top level.
func NewController(api TreeAPI, opts ...ControllerOption) *Controller {
	c := &Controller{
		api:      api,
		tree:     NewTree(api),
		logger:   slog.Default(),
		maxDepth: DefaultMaxDepth,
		state:    Initial(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns a snapshot of the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Rows returns the filtered, sorted listing.
func (c *Controller) Rows() []models.Node {
	return Rows(c.State())
}

// Tree returns the auxiliary folder tree.
func (c *Controller) Tree() *Tree { return c.tree }

// Init loads the top-level listing and expands the top-level folders.
func (c *Controller) Init(ctx context.Context) error {
	c.mu.Lock()
	if c.state.Navigating {
		c.mu.Unlock()
		return nil
	}
	c.state.Navigating = true
	c.mu.Unlock()

	g, gctx := errgroup.WithContext(ctx)
	var items []models.Node
	g.Go(func() (err error) {
		items, err = c.api.Children(gctx, models.RootID)
		return err
	})
	g.Go(func() error { return c.tree.Init(gctx) })
	err := g.Wait()
	return c.finish(items, []Crumb{rootCrumb}, err)
}

// Navigate opens folderID as a user action.
func (c *Controller) Navigate(ctx context.Context, folderID string) error {
	return c.transition(ctx, func(s State) (State, bool) { return BeginNavigate(s, folderID, true) })
}

// Back returns to the previous folder.
func (c *Controller) Back(ctx context.Context) error {
	return c.transition(ctx, Back)
}

// Forward undoes a Back.
func (c *Controller) Forward(ctx context.Context) error {
	return c.transition(ctx, Forward)
}

// Refresh reloads the current folder without touching history.
func (c *Controller) Refresh(ctx context.Context) error {
	return c.transition(ctx, func(s State) (State, bool) {
		if s.Navigating {
			return s, false
		}
		s.Navigating = true
		return s, true
	})
}

// transition applies step and, when it started a navigation, loads the
// listing, breadcrumbs and tree for the new current folder concurrently.
func (c *Controller) transition(ctx context.Context, step func(State) (State, bool)) error {
	c.mu.Lock()
	next, ok := step(c.state)
	if !ok {
		c.mu.Unlock()
		return nil
	}
	c.state = next
	folderID := next.CurrentFolderID
	c.mu.Unlock()

	var (
		items  []models.Node
		crumbs []Crumb
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		items, err = c.api.Children(gctx, folderID)
		return err
	})
	g.Go(func() (err error) {
		crumbs, err = Breadcrumbs(gctx, c.api, folderID, c.maxDepth)
		return err
	})
	g.Go(func() error {
		if err := c.tree.Refresh(gctx, folderID); err != nil {
			return err
		}
		return c.tree.Expand(gctx, folderID)
	})
	err := g.Wait()
	if err != nil {
		items, crumbs = nil, nil
	}
	return c.finish(items, crumbs, err)
}

// finish ends a navigation, converting err into the inline message.
func (c *Controller) finish(items []models.Node, crumbs []Crumb, err error) error {
	if items == nil && err == nil {
		items = []models.Node{}
	}
	msg, err := c.classify(err)
	c.mu.Lock()
	c.state = Loaded(c.state, items, crumbs, msg)
	c.mu.Unlock()
	return err
}

// classify clears the session on auth failures and returns the message to
// show for err.
func (c *Controller) classify(err error) (string, error) {
	if err == nil {
		return "", nil
	}
	if errors.Is(err, apperr.ErrUnauthorized) || errors.Is(err, apperr.ErrForbidden) {
		if c.creds != nil {
			if clearErr := c.creds.Clear(); clearErr != nil {
				c.logger.Warn("clear credentials failed", slog.String("error", clearErr.Error()))
			}
		}
		return ErrLoginRequired.Error(), ErrLoginRequired
	}
	return apperr.Message(err, err.Error()), err
}

func (c *Controller) report(err error) error {
	msg, err := c.classify(err)
	c.mu.Lock()
	c.state = WithMessage(c.state, msg)
	c.mu.Unlock()
	return err
}

// Notify sets the inline message.
func (c *Controller) Notify(msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = WithMessage(c.state, msg)
}

// ToggleSort sorts the listing by key.
func (c *Controller) ToggleSort(key SortKey) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = ToggleSort(c.state, key)
}

// SetFilter restricts the listing to one type.
func (c *Controller) SetFilter(t models.NodeType) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = SetFilter(c.state, t)
}

// Move drops item id onto folder target, then refreshes the listing and the
// tree.
func (c *Controller) Move(ctx context.Context, id, target string) error {
	moved, err := c.api.Move(ctx, id, target)
	if err != nil {
		return c.report(err)
	}
	if moved.IsFolder() {
		if err := c.tree.Refresh(ctx, target); err != nil {
			return c.report(err)
		}
	}
	return c.Refresh(ctx)
}

// Mkdir creates a folder in the current folder.
func (c *Controller) Mkdir(ctx context.Context, name string) (*models.Node, error) {
	n, err := c.api.Create(ctx, doctree.CreateInput{
		Name:     name,
		Type:     models.TypeFolder,
		ParentID: c.State().CurrentFolderID,
	})
	if err != nil {
		return nil, c.report(err)
	}
	return n, c.Refresh(ctx)
}

// Remove deletes an item and everything below it. Removing the current
// folder or one of its ancestors moves to the closest surviving folder.
func (c *Controller) Remove(ctx context.Context, id string) (doctree.DeleteResult, error) {
	res, err := c.api.Delete(ctx, id)
	if err != nil {
		return res, c.report(err)
	}
	crumbs := c.State().Crumbs
	for i := 1; i < len(crumbs); i++ {
		if crumbs[i].ID == id {
			survivor := crumbs[i-1].ID
			return res, c.transition(ctx, func(s State) (State, bool) {
				return BeginNavigate(s, survivor, false)
			})
		}
	}
	return res, c.Refresh(ctx)
}

// DownloadURL returns a signed link for a file item.
func (c *Controller) DownloadURL(ctx context.Context, id string) (*doctree.SignedURL, error) {
	u, err := c.api.DownloadURL(ctx, id)
	if err != nil {
		return nil, c.report(err)
	}
	return u, nil
}
