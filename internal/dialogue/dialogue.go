// Package dialogue is the matchmaking engine. It routes inbound messages to
// per-user sessions, fills each session's candidate queue from the store and
// the external search, and drains the queue into suggestions paced by the
// user.
package dialogue

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/love-machine/internal/filtering"
	"github.com/spigell/love-machine/internal/logger"
	"github.com/spigell/love-machine/internal/match"
	"github.com/spigell/love-machine/internal/metrics"
	"github.com/spigell/love-machine/internal/models"
	"github.com/spigell/love-machine/internal/storage"
)

// Feed delivers inbound messages. Poll blocks until messages arrive or the
// transport's wait expires; an empty result is not an error.
type Feed interface {
	Poll(ctx context.Context) ([]models.Event, error)
}

// Outbox delivers replies to users.
type Outbox interface {
	Send(ctx context.Context, userID int64, text string) error
	SendSuggestion(ctx context.Context, userID int64, s models.Suggestion) error
}

// Profiles looks up user profiles.
type Profiles interface {
	GetProfile(ctx context.Context, userID int64) (*models.Profile, error)
}

// Searcher is the external candidate search.
type Searcher interface {
	Search(ctx context.Context, criteria *models.Criteria, limit int) (*models.Profiles, error)
	// FetchMedia fails with models.ErrAccessDenied for private profiles.
	FetchMedia(ctx context.Context, candidateID int64) ([]models.Media, error)
}

// Config tunes the engine.
type Config struct {
	// CacheThreshold is the number of cached candidates that makes the
	// external search unnecessary.
	CacheThreshold int
	// BatchSize is the number of queued candidates the cursor waits for
	// before the first suggestion.
	BatchSize int
	// MinMedia is the number of photos a fetched candidate must have.
	MinMedia             int
	MaxResults           int
	MaxConcurrentFetches int
	// IdleTimeout bounds the wait for the advance signal and for the first batch.
	IdleTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		CacheThreshold:       10,
		BatchSize:            10,
		MinMedia:             models.MaxMedia,
		MaxResults:           1000,
		MaxConcurrentFetches: 4,
		IdleTimeout:          10 * time.Minute,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.CacheThreshold <= 0 {
		c.CacheThreshold = d.CacheThreshold
	}
	if c.BatchSize <= 0 {
		c.BatchSize = d.BatchSize
	}
	if c.MinMedia <= 0 {
		c.MinMedia = d.MinMedia
	}
	if c.MaxResults <= 0 {
		c.MaxResults = d.MaxResults
	}
	if c.MaxConcurrentFetches <= 0 {
		c.MaxConcurrentFetches = d.MaxConcurrentFetches
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = d.IdleTimeout
	}
	return c
}

// Deps are the collaborators of the engine.
type Deps struct {
	Outbox        Outbox
	Profiles      Profiles
	Searcher      Searcher
	Canonicalizer match.Canonicalizer
	Store         storage.Store
	// Filters defaults to filtering.Default().
	Filters []filtering.Filter
	Metrics *metrics.Metrics
	Logger  *zap.Logger
	// Now defaults to time.Now.
	Now func() time.Time
}

type Service struct {
	cfg      Config
	outbox   Outbox
	profiles Profiles
	searcher Searcher
	canon    match.Canonicalizer
	store    storage.Store
	filters  []filtering.Filter
	metrics  *metrics.Metrics
	logger   *zap.Logger
	now      func() time.Time

	registry *Registry
	// root parents every session and producer.
	root context.Context
	stop context.CancelFunc
	wg   sync.WaitGroup
}

func New(cfg Config, deps Deps) *Service {
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}

	filters := deps.Filters
	if filters == nil {
		filters = filtering.Default()
	}

	now := deps.Now
	if now == nil {
		now = time.Now
	}

	root, stop := context.WithCancel(context.Background())

	return &Service{
		cfg:      cfg.withDefaults(),
		outbox:   deps.Outbox,
		profiles: deps.Profiles,
		searcher: deps.Searcher,
		canon:    deps.Canonicalizer,
		store:    deps.Store,
		filters:  filters,
		metrics:  deps.Metrics,
		logger:   log,
		now:      now,
		registry: NewRegistry(),
		root:     root,
		stop:     stop,
	}
}

// Registry exposes the live sessions.
func (s *Service) Registry() *Registry {
	return s.registry
}

// Shutdown closes every session and waits for their goroutines to exit.
func (s *Service) Shutdown() {
	s.stop()
	s.wg.Wait()
}

func (s *Service) spawn(fn func()) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		fn()
	}()
}

// reply sends a text and logs delivery failures. Replies are fire-and-forget.
func (s *Service) reply(ctx context.Context, userID int64, text string) {
	if err := s.outbox.Send(ctx, userID, text); err != nil {
		s.logger.Warn("failed to send reply",
			zap.Int64(logger.FieldUserID, userID),
			zap.Error(err),
		)
	}
}
