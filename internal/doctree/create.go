package doctree

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/facdocs/internal/apperr"
	"github.com/starford/facdocs/internal/models"
)

// CreateInput is the body of a create call. A nil Tags means "not supplied":
// the node then inherits the facility tags of its parent folder.
type CreateInput struct {
	Name        string          `json:"name"`
	Type        models.NodeType `json:"type"`
	ParentID    string          `json:"parentId"`
	Tags        []string        `json:"tags"`
	URL         string          `json:"url"`
	StoragePath string          `json:"storagePath"`
	Size        int64           `json:"size"`
	ContentType string          `json:"contentType"`
	Checksum    string          `json:"checksum"`
}

// Validate checks field presence and shape.
func (in *CreateInput) Validate() error {
	return validation.ValidateStruct(in,
		validation.Field(&in.Name, nameRules...),
		validation.Field(&in.Type, validation.Required,
			validation.In(models.TypeFolder, models.TypeFile, models.TypeLink).Error("must be one of folder, file, link")),
		validation.Field(&in.ParentID, validation.Required),
		validation.Field(&in.Tags, tagRules...),
		validation.Field(&in.URL, validation.When(in.Type == models.TypeLink, urlRules...)),
		validation.Field(&in.Size, validation.Min(int64(0))),
	)
}

// Create validates in, resolves the parent and persists a new node.
func (s *Service) Create(ctx context.Context, in CreateInput) (*models.Node, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.ParentID = strings.TrimSpace(in.ParentID)
	in.URL = strings.TrimSpace(in.URL)
	if in.Tags != nil {
		in.Tags = normalizeTags(in.Tags)
	}
	if err := in.Validate(); err != nil {
		return nil, invalid(err)
	}
	if err := checkReservedName(in.Name, in.ParentID); err != nil {
		return nil, err
	}

	parent, err := s.resolveParent(ctx, in.ParentID)
	if err != nil {
		return nil, err
	}

	tags := in.Tags
	if tags == nil {
		tags = []string{}
		if parent != nil {
			tags = parent.FacilityTags()
		}
	}

	now := s.now()
	n := &models.Node{
		ID:        s.newID(),
		Name:      in.Name,
		Type:      in.Type,
		ParentID:  in.ParentID,
		Tags:      tags,
		CreatedAt: now,
		UpdatedAt: now,
	}
	switch in.Type {
	case models.TypeFile:
		n.StoragePath = strings.TrimSpace(in.StoragePath)
		n.Size = in.Size
		n.ContentType = in.ContentType
		n.Checksum = in.Checksum
	case models.TypeLink:
		n.URL = in.URL
	}

	if err := s.store.CreateNode(ctx, n); err != nil {
		return nil, err
	}
	s.logger.Debug("item created",
		slog.String("id", n.ID), slog.String("type", string(n.Type)), slog.String("parent_id", n.ParentID))
	s.emit(EventCreated, n)
	return n, nil
}

// resolveParent returns the parent folder of a prospective child, or nil for
// the top level. A missing or non-folder parent is a validation error.
func (s *Service) resolveParent(ctx context.Context, parentID string) (*models.Node, error) {
	if parentID == models.RootID {
		return nil, nil
	}
	parent, err := s.store.GetNode(ctx, parentID)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, apperr.Validation("parent folder %q does not exist", parentID)
	}
	if err != nil {
		return nil, err
	}
	if !parent.IsFolder() {
		return nil, apperr.Validation("parent %q is a %s, not a folder", parentID, parent.Type)
	}
	return parent, nil
}
