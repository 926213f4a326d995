package filtering

import (
	"context"

	"github.com/spigell/love-machine/internal/models"
)

type deactivatedFilter struct {
	toggle
}

// NewDeactivated creates a filter that removes deleted and banned accounts.
func NewDeactivated() Filter {
	return &deactivatedFilter{}
}

func (f *deactivatedFilter) Name() string { return "deactivated" }

func (f *deactivatedFilter) Apply(_ context.Context, _ Deps, p *models.Profiles) (*models.Profiles, Step, error) {
	return p, exclude(p, func(profile *models.Profile) bool { return profile.CheckActive() != nil }), nil
}

type closedFilter struct {
	toggle
}

// NewClosed creates a filter that removes private profiles. Their photos
// cannot be fetched anyway.
func NewClosed() Filter {
	return &closedFilter{}
}

func (f *closedFilter) Name() string { return "closed" }

func (f *closedFilter) Apply(_ context.Context, _ Deps, p *models.Profiles) (*models.Profiles, Step, error) {
	return p, exclude(p, func(profile *models.Profile) bool { return profile.IsClosed }), nil
}
