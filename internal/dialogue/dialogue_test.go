package dialogue

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/spigell/love-machine/internal/lexis"
	"github.com/spigell/love-machine/internal/metrics"
	"github.com/spigell/love-machine/internal/models"
	"github.com/spigell/love-machine/internal/storage"
	"github.com/spigell/love-machine/internal/storage/badgerstore"
)

const (
	testUser  int64 = 1
	waitLimit       = 3 * time.Second
	tick            = 10 * time.Millisecond
)

var testNow = time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)

type sent struct {
	userID     int64
	text       string
	suggestion *models.Suggestion
}

type fakeOutbox struct {
	mu   sync.Mutex
	sent []sent
	err  error
	// onSuggest, when set, runs after the n-th suggestion is delivered and
	// before SendSuggestion returns.
	onSuggest func(n int)
}

func (o *fakeOutbox) Send(_ context.Context, userID int64, text string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sent = append(o.sent, sent{userID: userID, text: text})
	return nil
}

func (o *fakeOutbox) SendSuggestion(_ context.Context, userID int64, s models.Suggestion) error {
	o.mu.Lock()
	if o.err != nil {
		o.mu.Unlock()
		return o.err
	}
	o.sent = append(o.sent, sent{userID: userID, suggestion: &s})
	n := 0
	for _, item := range o.sent {
		if item.suggestion != nil {
			n++
		}
	}
	hook := o.onSuggest
	o.mu.Unlock()

	if hook != nil {
		hook(n)
	}
	return nil
}

func (o *fakeOutbox) texts() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	var result []string
	for _, s := range o.sent {
		if s.suggestion == nil {
			result = append(result, s.text)
		}
	}
	return result
}

func (o *fakeOutbox) suggested() []int64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	var result []int64
	for _, s := range o.sent {
		if s.suggestion != nil {
			result = append(result, s.suggestion.CandidateID)
		}
	}
	return result
}

func (o *fakeOutbox) hasText(text string) bool {
	for _, t := range o.texts() {
		if t == text {
			return true
		}
	}
	return false
}

type fakeProfiles struct {
	mu       sync.Mutex
	profiles map[int64]*models.Profile
	lookups  int
}

func newFakeProfiles() *fakeProfiles {
	return &fakeProfiles{profiles: map[int64]*models.Profile{
		testUser: {
			ID:        testUser,
			FirstName: "Ivan",
			Gender:    models.GenderMale,
			BirthDate: "16.10.1996",
			CityID:    1,
			Interests: "книги",
		},
	}}
}

func (p *fakeProfiles) set(profile *models.Profile) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.profiles[profile.ID] = profile
}

func (p *fakeProfiles) GetProfile(_ context.Context, userID int64) (*models.Profile, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lookups++
	profile, ok := p.profiles[userID]
	if !ok {
		return nil, fmt.Errorf("user %d not found", userID)
	}
	copied := *profile
	return &copied, nil
}

type fakeSearcher struct {
	mu       sync.Mutex
	results  []*models.Profile
	private  map[int64]bool
	media    map[int64]int
	searches int
	// release, when set, holds the search until closed.
	release chan struct{}
}

func (s *fakeSearcher) Search(ctx context.Context, _ *models.Criteria, limit int) (*models.Profiles, error) {
	s.mu.Lock()
	s.searches++
	release := s.release
	s.mu.Unlock()

	if release != nil {
		select {
		case <-release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	items := make([]*models.Profile, 0, len(s.results))
	for _, p := range s.results {
		copied := *p
		items = append(items, &copied)
	}
	if len(items) > limit {
		items = items[:limit]
	}
	return &models.Profiles{Items: items}, nil
}

func (s *fakeSearcher) FetchMedia(_ context.Context, candidateID int64) ([]models.Media, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.private[candidateID] {
		return nil, models.ErrAccessDenied
	}

	n := models.MaxMedia
	if count, ok := s.media[candidateID]; ok {
		n = count
	}
	media := make([]models.Media, 0, n)
	for i := 0; i < n; i++ {
		media = append(media, models.Media{
			Ref:        fmt.Sprintf("photo%d_%d", candidateID, i+1),
			Popularity: n - i,
		})
	}
	return media, nil
}

func (s *fakeSearcher) searchCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.searches
}

// woman returns a search result matching the criteria of testUser.
func woman(id int64, interests string) *models.Profile {
	return &models.Profile{
		ID:        id,
		FirstName: fmt.Sprintf("Anna%d", id),
		Gender:    models.GenderFemale,
		BirthDate: "1.1.1998",
		CityID:    1,
		Interests: interests,
	}
}

type harness struct {
	svc      *Service
	outbox   *fakeOutbox
	profiles *fakeProfiles
	searcher *fakeSearcher
	store    *badgerstore.Store
	reg      *prometheus.Registry
}

func newHarness(t *testing.T, cfg Config, results ...*models.Profile) *harness {
	t.Helper()
	return newHarnessWith(t, cfg, nil, results...)
}

// newHarnessWith lets wrap decorate the store seen by the service.
func newHarnessWith(t *testing.T, cfg Config, wrap func(storage.Store) storage.Store, results ...*models.Profile) *harness {
	t.Helper()

	logger := zaptest.NewLogger(t)
	store, err := badgerstore.NewInMemory(logger)
	require.NoError(t, err)

	h := &harness{
		outbox:   &fakeOutbox{},
		profiles: newFakeProfiles(),
		searcher: &fakeSearcher{results: results, private: map[int64]bool{}, media: map[int64]int{}},
		store:    store,
		reg:      prometheus.NewRegistry(),
	}
	for _, r := range results {
		require.NotEqual(t, testUser, r.ID, "search results must not shadow the requesting user")
		h.profiles.set(r)
	}

	var deps storage.Store = store
	if wrap != nil {
		deps = wrap(store)
	}

	h.svc = New(cfg, Deps{
		Outbox:        h.outbox,
		Profiles:      h.profiles,
		Searcher:      h.searcher,
		Canonicalizer: lexis.New(lexis.NewRuleTagger(), logger),
		Store:         deps,
		Metrics:       metrics.New(h.reg),
		Logger:        logger,
		Now:           func() time.Time { return testNow },
	})

	t.Cleanup(func() {
		h.svc.Shutdown()
		store.Close()
	})
	return h
}

func (h *harness) dispatch(t *testing.T, text string) error {
	t.Helper()
	return h.svc.Dispatch(context.Background(), models.Event{UserID: testUser, Text: text})
}

func (h *harness) waitSuggestions(t *testing.T, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return len(h.outbox.suggested()) >= n }, waitLimit, tick,
		"expected %d suggestions", n)
}

func (h *harness) waitState(t *testing.T, state State) {
	t.Helper()
	require.Eventually(t, func() bool {
		sess, ok := h.svc.Registry().Get(testUser)
		return ok && sess.State() == state
	}, waitLimit, tick, "expected session state %s", state)
}

func (h *harness) waitClosed(t *testing.T) {
	t.Helper()
	require.Eventually(t, func() bool { return h.svc.Registry().Len() == 0 }, waitLimit, tick,
		"expected the session to close")
}

func profiles(from, to int64) []*models.Profile {
	var result []*models.Profile
	for id := from; id <= to; id++ {
		result = append(result, woman(id, ""))
	}
	return result
}
