package filtering

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/spigell/love-machine/internal/models"
)

type requiredFieldsFilter struct {
	toggle
}

// NewRequiredFields creates a filter that removes profiles without a birth
// date, city or gender. Such profiles are skipped, never retried.
func NewRequiredFields() Filter {
	return &requiredFieldsFilter{}
}

func (f *requiredFieldsFilter) Name() string { return "required_fields" }

func (f *requiredFieldsFilter) Apply(_ context.Context, deps Deps, p *models.Profiles) (*models.Profiles, Step, error) {
	step := exclude(p, func(profile *models.Profile) bool {
		_, err := models.CandidateFromProfile(profile)
		if err != nil && deps.Logger != nil {
			deps.Logger.Debug("skipping malformed candidate", zap.Error(err))
		}
		return errors.Is(err, models.ErrMalformedCandidate)
	})

	return p, step, nil
}
