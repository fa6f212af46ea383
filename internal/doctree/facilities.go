package doctree

import (
	"context"
	"log/slog"
	"regexp"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/facdocs/internal/models"
)

var facilityIDRe = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{0,63}$`)

// FacilityInput is the body of a facility create call.
type FacilityInput struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Company string `json:"company"`
	Address string `json:"address"`
	Status  string `json:"status"`
}

// Validate validates the facility input.
func (in *FacilityInput) Validate() error {
	return validation.ValidateStruct(in,
		validation.Field(&in.ID, validation.Required,
			validation.Match(facilityIDRe).Error("must be lowercase letters, digits and dashes")),
		validation.Field(&in.Name, validation.Required, validation.RuneLength(1, maxNameLength)),
		validation.Field(&in.Status, validation.In(models.StatusOperational, models.StatusPlanned,
			models.StatusUnderConstruction, models.StatusClosed)),
	)
}

// CreateFacility registers a facility. When root seeding is enabled it also
// creates the facility's "/" folder, tagged with the facility.
func (s *Service) CreateFacility(ctx context.Context, in FacilityInput) (*models.Facility, error) {
	in.ID = strings.TrimSpace(in.ID)
	in.Name = strings.TrimSpace(in.Name)
	in.Status = strings.TrimSpace(in.Status)
	if in.Status == "" {
		in.Status = models.StatusOperational
	}
	if err := in.Validate(); err != nil {
		return nil, invalid(err)
	}

	now := s.now()
	f := &models.Facility{
		ID:        in.ID,
		Name:      in.Name,
		Company:   strings.TrimSpace(in.Company),
		Address:   strings.TrimSpace(in.Address),
		Status:    in.Status,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.CreateFacility(ctx, f); err != nil {
		return nil, err
	}

	if s.opts.SeedFacilityRoot {
		root := &models.Node{
			ID:        s.newID(),
			Name:      "/",
			Type:      models.TypeFolder,
			ParentID:  models.RootID,
			Tags:      []string{models.FacilityTag(f.ID)},
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := s.store.CreateNode(ctx, root); err != nil {
			s.logger.Warn("facility root seeding failed",
				slog.String("facility_id", f.ID), slog.String("error", err.Error()))
		} else {
			s.emit(EventCreated, root)
		}
	}
	return f, nil
}

// GetFacility returns the facility with the given id.
func (s *Service) GetFacility(ctx context.Context, id string) (*models.Facility, error) {
	return s.store.GetFacility(ctx, id)
}

// ListFacilities returns all facilities ordered by name.
func (s *Service) ListFacilities(ctx context.Context) ([]models.Facility, error) {
	return s.store.ListFacilities(ctx)
}
