package doctree

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"

	"github.com/starford/facdocs/internal/apperr"
	"github.com/starford/facdocs/internal/models"
)

// Patch is a partial update. Nil fields are left unchanged.
type Patch struct {
	Name     *string
	ParentID *string
	Tags     *[]string
	URL      *string
}

// DecodePatch reads a JSON object and keeps only name, parentId, tags and
// url. Other keys are ignored.
func DecodePatch(body []byte) (Patch, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil || raw == nil {
		return Patch{}, apperr.Validation("body must be a JSON object")
	}
	var p Patch
	str := func(key string) (*string, error) {
		v, ok := raw[key]
		if !ok {
			return nil, nil
		}
		var s string
		if err := json.Unmarshal(v, &s); err != nil || bytes.Equal(bytes.TrimSpace(v), []byte("null")) {
			return nil, apperr.Validation("%s must be a string", key)
		}
		return &s, nil
	}
	var err error
	if p.Name, err = str("name"); err != nil {
		return Patch{}, err
	}
	if p.ParentID, err = str("parentId"); err != nil {
		return Patch{}, err
	}
	if p.URL, err = str("url"); err != nil {
		return Patch{}, err
	}
	if v, ok := raw["tags"]; ok {
		var tags []string
		if err := json.Unmarshal(v, &tags); err != nil || tags == nil {
			return Patch{}, apperr.Validation("tags must be an array of strings")
		}
		p.Tags = &tags
	}
	return p, nil
}

// Update applies p to the node. A parentId change runs the move checks.
// updatedAt is always stamped.
func (s *Service) Update(ctx context.Context, id string, p Patch) (*models.Node, error) {
	n, err := s.store.GetNode(ctx, id)
	if err != nil {
		return nil, err
	}
	if n.IsAbsoluteRoot() {
		return nil, apperr.Validation("the root folder cannot be modified")
	}

	if p.Name != nil {
		name := strings.TrimSpace(*p.Name)
		if err := checkField("name", name, nameRules...); err != nil {
			return nil, err
		}
		n.Name = name
	}
	if p.Tags != nil {
		tags := normalizeTags(*p.Tags)
		if err := checkField("tags", tags, tagRules...); err != nil {
			return nil, err
		}
		n.Tags = tags
	}
	if p.URL != nil {
		if n.Type != models.TypeLink {
			return nil, apperr.Validation("url can only be set on links")
		}
		u := strings.TrimSpace(*p.URL)
		if err := checkField("url", u, urlRules...); err != nil {
			return nil, err
		}
		n.URL = u
	}
	kind := EventUpdated
	if p.ParentID != nil {
		target := strings.TrimSpace(*p.ParentID)
		if target != n.ParentID {
			if err := s.checkMove(ctx, n, target); err != nil {
				return nil, err
			}
			n.ParentID = target
			kind = EventMoved
		}
	}

	if err := checkReservedName(n.Name, n.ParentID); err != nil {
		return nil, err
	}

	n.UpdatedAt = s.now()
	if err := s.store.UpdateNode(ctx, n); err != nil {
		return nil, err
	}
	s.emit(kind, n)
	return n, nil
}

// Move reparents the node under newParentID.
func (s *Service) Move(ctx context.Context, id, newParentID string) (*models.Node, error) {
	newParentID = strings.TrimSpace(newParentID)
	if newParentID == "" {
		return nil, apperr.Validation("newParentId is required")
	}
	n, err := s.store.GetNode(ctx, id)
	if err != nil {
		return nil, err
	}
	if n.IsAbsoluteRoot() {
		return nil, apperr.Validation("the root folder cannot be moved")
	}
	if err := s.checkMove(ctx, n, newParentID); err != nil {
		return nil, err
	}
	if err := checkReservedName(n.Name, newParentID); err != nil {
		return nil, err
	}

	n.ParentID = newParentID
	n.UpdatedAt = s.now()
	if err := s.store.UpdateNode(ctx, n); err != nil {
		return nil, err
	}
	s.logger.Debug("item moved", slog.String("id", n.ID), slog.String("parent_id", newParentID))
	s.emit(EventMoved, n)
	return n, nil
}

// checkMove verifies that target is root or an existing folder, and that it
// is neither n itself nor one of n's descendants.
func (s *Service) checkMove(ctx context.Context, n *models.Node, target string) error {
	if target == "" {
		return apperr.Validation("parentId cannot be empty")
	}
	if target == n.ID {
		return apperr.Validation("cannot move %q into itself", n.Name)
	}
	if target == models.RootID {
		return nil
	}
	dest, err := s.store.GetNode(ctx, target)
	if errors.Is(err, apperr.ErrNotFound) {
		return apperr.Validation("target folder %q does not exist", target)
	}
	if err != nil {
		return err
	}
	if !dest.IsFolder() {
		return apperr.Validation("target %q is a %s, not a folder", target, dest.Type)
	}
	if !n.IsFolder() {
		return nil
	}

	// Only folders have descendants. Walk from the destination up to root.
	visited := map[string]struct{}{dest.ID: {}}
	for cur := dest.ParentID; cur != models.RootID; {
		if cur == n.ID {
			return apperr.Validation("cannot move %q into its own descendant %q", n.Name, dest.Name)
		}
		if _, seen := visited[cur]; seen {
			return apperr.Validation("ancestor chain of %q contains a cycle at %q", target, cur)
		}
		visited[cur] = struct{}{}
		anc, err := s.store.GetNode(ctx, cur)
		if errors.Is(err, apperr.ErrNotFound) {
			return apperr.Validation("ancestor %q of %q does not exist", cur, target)
		}
		if err != nil {
			return err
		}
		cur = anc.ParentID
	}
	return nil
}
