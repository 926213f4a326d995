// Package filtering narrows external search results down to profiles that can
// become candidates for a particular user.
package filtering

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spigell/love-machine/internal/models"
)

// Filter represents a single filtering step applied to search results.
type Filter interface {
	Name() string
	Disable(reason string)
	IsEnabled() bool

	Apply(ctx context.Context, deps Deps, p *models.Profiles) (*models.Profiles, Step, error)
}

// DecisionSource returns the candidates a user already favorited or blacklisted.
type DecisionSource interface {
	DecidedIDs(ctx context.Context, userID int64) ([]int64, error)
}

// Deps aggregates dependencies shared across all filtering steps.
type Deps struct {
	UserID    int64
	Decisions DecisionSource
	Logger    *zap.Logger
}

// Step describes the result of executing a filtering step.
type Step struct {
	Initial int
	Dropped int
	Left    int
}

// Status represents runtime information about a filter.
type Status struct {
	Name    string
	Enabled bool
	Reason  string
}

// toggle carries the enabled state shared by all filters.
type toggle struct {
	disabled bool
	reason   string
}

func (t *toggle) Disable(reason string) {
	t.disabled = true
	t.reason = reason
}

func (t *toggle) IsEnabled() bool { return !t.disabled }

// Default returns the filter chain applied to every search.
func Default() []Filter {
	return []Filter{
		NewRequiredFields(),
		NewDeactivated(),
		NewClosed(),
		NewDecided(),
	}
}

// DisableByName marks a filter with the provided name as disabled while keeping it in the list.
// It reports whether such a filter exists.
func DisableByName(steps []Filter, name, reason string) bool {
	found := false
	for _, step := range steps {
		if step.Name() == name {
			step.Disable(reason)
			found = true
		}
	}
	return found
}

// Run executes the supplied filters sequentially and returns the remaining profiles.
func Run(ctx context.Context, deps Deps, steps []Filter, p *models.Profiles) (*models.Profiles, error) {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	for _, step := range steps {
		if !step.IsEnabled() {
			logger.Debug("filter disabled", zap.String("name", step.Name()))
			continue
		}

		next, info, err := step.Apply(ctx, deps, p)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", step.Name(), err)
		}

		logger.Debug("filter step",
			zap.String("name", step.Name()),
			zap.Int("initial", info.Initial),
			zap.Int("dropped", info.Dropped),
			zap.Int("left", info.Left),
		)

		p = next
	}

	return p, nil
}

// Describe returns status entries for the provided filters.
func Describe(steps []Filter) []Status {
	statuses := make([]Status, 0, len(steps))
	for _, step := range steps {
		status := Status{Name: step.Name(), Enabled: step.IsEnabled()}
		if t, ok := step.(interface{ disableReason() string }); ok {
			status.Reason = t.disableReason()
		}
		statuses = append(statuses, status)
	}
	return statuses
}

func (t *toggle) disableReason() string { return t.reason }

func exclude(p *models.Profiles, drop func(*models.Profile) bool) Step {
	initial := p.Len()
	excluded := p.Exclude(drop)
	return Step{Initial: initial, Dropped: len(excluded), Left: p.Len()}
}
