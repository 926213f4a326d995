package filtering

import (
	"context"

	"go.uber.org/zap"

	"github.com/spigell/love-machine/internal/models"
)

type decidedFilter struct {
	toggle
}

// NewDecided creates a filter that removes candidates the user already put
// into favorites or the blacklist.
func NewDecided() Filter {
	return &decidedFilter{}
}

func (f *decidedFilter) Name() string { return "decided" }

func (f *decidedFilter) Apply(ctx context.Context, deps Deps, p *models.Profiles) (*models.Profiles, Step, error) {
	if deps.Decisions == nil {
		return p, Step{Initial: p.Len(), Left: p.Len()}, nil
	}

	// Without the decisions the batch is still usable; a blacklisted
	// candidate may slip through once.
	ids, err := deps.Decisions.DecidedIDs(ctx, deps.UserID)
	if err != nil {
		if deps.Logger != nil {
			deps.Logger.Warn("cannot get decided candidates, keeping all", zap.Error(err))
		}
		return p, Step{Initial: p.Len(), Left: p.Len()}, nil
	}

	decided := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		decided[id] = struct{}{}
	}

	step := exclude(p, func(profile *models.Profile) bool {
		_, ok := decided[profile.ID]
		return ok
	})

	if deps.Logger != nil && step.Dropped > 0 {
		deps.Logger.Debug("excluding already decided candidates",
			zap.Int("dropped", step.Dropped),
			zap.Int("left", step.Left),
		)
	}

	return p, step, nil
}
