// Package explorer implements the document tree explorer: navigation with
// back/forward history, breadcrumbs, a sorted and filtered listing, moves,
// and a lazily expanded folder tree.
//
// State changes are pure functions over State. A Controller owns one State
// and performs the network calls around those transitions.
package explorer

import (
	"slices"
	"strings"

	"github.com/starford/facdocs/internal/models"
)

// SortKey is a listing column.
type SortKey string

// Sort columns.
const (
	SortName     SortKey = "name"
	SortSize     SortKey = "size"
	SortModified SortKey = "modifiedAt"
)

// Valid reports whether k names a sortable column.
func (k SortKey) Valid() bool {
	switch k {
	case SortName, SortSize, SortModified:
		return true
	}
	return false
}

// SortDir is ascending or descending.
type SortDir int

// Sort directions.
const (
	Asc SortDir = iota
	Desc
)

func (d SortDir) String() string {
	if d == Desc {
		return "desc"
	}
	return "asc"
}

// Crumb is one breadcrumb entry.
type Crumb struct {
	ID   string
	Name string
}

// State is everything the explorer shows.
type State struct {
	CurrentFolderID string
	BackStack       []string
	ForwardStack    []string
	// Items is the unfiltered listing of the current folder.
	Items         []models.Node
	Crumbs        []Crumb
	FilterType    models.NodeType // empty means all types
	SortBy        SortKey
	SortDirection SortDir
	Navigating    bool
	Message       string
}

// Initial returns the state before anything has been loaded.
func Initial() State {
	return State{
		CurrentFolderID: models.RootID,
		Crumbs:          []Crumb{rootCrumb},
		SortBy:          SortName,
		SortDirection:   Asc,
	}
}

// BeginNavigate starts navigation to folderID. It reports false, leaving s
// unchanged, while another navigation runs or when folderID is already
// current. A user action records history and clears the forward stack.
func BeginNavigate(s State, folderID string, userAction bool) (State, bool) {
	if s.Navigating || folderID == s.CurrentFolderID {
		return s, false
	}
	if userAction {
		s.BackStack = append(slices.Clone(s.BackStack), s.CurrentFolderID)
		s.ForwardStack = nil
	}
	s.CurrentFolderID = folderID
	s.Navigating = true
	s.Message = ""
	return s, true
}

// Back pops the back stack and starts navigation to the popped folder,
// pushing the current folder onto the forward stack.
func Back(s State) (State, bool) {
	if s.Navigating || len(s.BackStack) == 0 {
		return s, false
	}
	n := len(s.BackStack)
	target := s.BackStack[n-1]
	s.BackStack = slices.Clone(s.BackStack[:n-1])
	s.ForwardStack = append(slices.Clone(s.ForwardStack), s.CurrentFolderID)
	s.CurrentFolderID = target
	s.Navigating = true
	s.Message = ""
	return s, true
}

// Forward is the mirror image of Back.
func Forward(s State) (State, bool) {
	if s.Navigating || len(s.ForwardStack) == 0 {
		return s, false
	}
	n := len(s.ForwardStack)
	target := s.ForwardStack[n-1]
	s.ForwardStack = slices.Clone(s.ForwardStack[:n-1])
	s.BackStack = append(slices.Clone(s.BackStack), s.CurrentFolderID)
	s.CurrentFolderID = target
	s.Navigating = true
	s.Message = ""
	return s, true
}

// Loaded records the result of a listing fetch. Nil crumbs keep the
// previous trail. Navigation is never rolled back: on error only the
// message changes.
func Loaded(s State, items []models.Node, crumbs []Crumb, msg string) State {
	s.Navigating = false
	s.Message = msg
	if items != nil {
		s.Items = items
	}
	if crumbs != nil {
		s.Crumbs = crumbs
	}
	return s
}

// ToggleSort sorts by key. Selecting the current column flips the
// direction; a new column starts ascending.
func ToggleSort(s State, key SortKey) State {
	if s.SortBy == key {
		if s.SortDirection == Asc {
			s.SortDirection = Desc
		} else {
			s.SortDirection = Asc
		}
		return s
	}
	s.SortBy = key
	s.SortDirection = Asc
	return s
}

// SetFilter shows only items of type t. The empty type shows everything.
func SetFilter(s State, t models.NodeType) State {
	s.FilterType = t
	return s
}

// WithMessage sets the inline message.
func WithMessage(s State, msg string) State {
	s.Message = msg
	return s
}

// Rows derives the rendered listing from the cached items.
func Rows(s State) []models.Node {
	rows := make([]models.Node, 0, len(s.Items))
	for _, n := range s.Items {
		if s.FilterType == "" || n.Type == s.FilterType {
			rows = append(rows, n)
		}
	}
	cmp := compareBy(s.SortBy)
	slices.SortStableFunc(rows, func(a, b models.Node) int {
		if s.SortDirection == Desc {
			return cmp(b, a)
		}
		return cmp(a, b)
	})
	return rows
}

func compareBy(key SortKey) func(a, b models.Node) int {
	switch key {
	case SortSize:
		return func(a, b models.Node) int {
			switch {
			case a.Size < b.Size:
				return -1
			case a.Size > b.Size:
				return 1
			}
			return 0
		}
	case SortModified:
		return func(a, b models.Node) int { return a.UpdatedAt.Compare(b.UpdatedAt) }
	}
	return func(a, b models.Node) int {
		if c := strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name)); c != 0 {
			return c
		}
		return strings.Compare(a.Name, b.Name)
	}
}
