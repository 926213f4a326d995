package badgerstore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/spigell/love-machine/internal/models"
	"github.com/spigell/love-machine/internal/storage"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	st, err := NewInMemory(zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(st.Close)

	return st
}

func birthDate(age int) time.Time {
	y, m, d := time.Now().UTC().AddDate(0, 0, -365*age-30).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func candidate(id int64, age, city int) *models.Candidate {
	return &models.Candidate{
		ID:        id,
		FirstName: fmt.Sprintf("Name%d", id),
		Gender:    models.GenderFemale,
		BirthDate: birthDate(age),
		CityID:    city,
		Interests: "книги",
	}
}

func media(id int64, n int) []models.Media {
	result := make([]models.Media, 0, n)
	for i := 0; i < n; i++ {
		result = append(result, models.Media{Ref: fmt.Sprintf("photo%d_%d", id, i), Popularity: i})
	}
	return result
}

func TestFindCandidates(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	const user = int64(1)
	require.NoError(t, st.UpsertUser(ctx, &models.Profile{ID: user, Gender: models.GenderMale}))

	for _, c := range []*models.Candidate{
		candidate(10, 30, 1),
		candidate(11, 25, 1),
		candidate(12, 50, 1),
		candidate(13, 30, 2),
	} {
		require.NoError(t, st.UpsertCandidate(ctx, user, c))
		require.NoError(t, st.UpsertMedia(ctx, c.ID, media(c.ID, 5)))
	}
	require.NoError(t, st.UpsertCandidate(ctx, 2, candidate(14, 30, 1)))

	male := candidate(15, 30, 1)
	male.Gender = models.GenderMale
	require.NoError(t, st.UpsertCandidate(ctx, user, male))

	criteria := &models.Criteria{CityID: 1, Gender: models.GenderFemale, AgeFrom: 22, AgeTo: 38}
	found, err := st.FindCandidates(ctx, criteria, user)
	require.NoError(t, err)
	require.Len(t, found, 2)
	require.Equal(t, int64(10), found[0].ID)
	require.Equal(t, int64(11), found[1].ID)
	require.Equal(t, []string{"photo10_4", "photo10_3", "photo10_2"}, found[0].MediaRefs())

	criteria.CityID = 0
	found, err = st.FindCandidates(ctx, criteria, user)
	require.NoError(t, err)
	require.Len(t, found, 3)
}

func TestUpsertCandidateKeepsExistingRecord(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.UpsertCandidate(ctx, 1, candidate(10, 30, 1)))

	changed := candidate(10, 30, 1)
	changed.FirstName = "Other"
	require.NoError(t, st.UpsertCandidate(ctx, 1, changed))

	found, err := st.FindCandidates(ctx, &models.Criteria{Gender: models.GenderFemale, AgeFrom: 18, AgeTo: 99}, 1)
	require.NoError(t, err)
	require.Len(t, found, 1)
	require.Equal(t, "Name10", found[0].FirstName)
}

func TestDecisions(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	const user = int64(1)
	for _, id := range []int64{10, 11, 12} {
		require.NoError(t, st.UpsertCandidate(ctx, user, candidate(id, 30, 1)))
	}

	require.NoError(t, st.SetFavorite(ctx, user, 10))
	require.NoError(t, st.SetBlacklisted(ctx, user, 11))
	require.NoError(t, st.SetFavorite(ctx, user, 11))

	favorites, err := st.ListFavorites(ctx, user)
	require.NoError(t, err)
	require.Len(t, favorites, 1)
	require.Equal(t, int64(10), favorites[0].ID)

	decided, err := st.DecidedIDs(ctx, user)
	require.NoError(t, err)
	require.Equal(t, []int64{10, 11}, decided)

	found, err := st.FindCandidates(ctx, &models.Criteria{Gender: models.GenderFemale, AgeFrom: 18, AgeTo: 99}, user)
	require.NoError(t, err)
	require.Len(t, found, 1)
	require.Equal(t, int64(12), found[0].ID)

	require.NoError(t, st.ClearFavorites(ctx, user))

	favorites, err = st.ListFavorites(ctx, user)
	require.NoError(t, err)
	require.Empty(t, favorites)

	decided, err = st.DecidedIDs(ctx, user)
	require.NoError(t, err)
	require.Equal(t, []int64{11}, decided)
}

func TestDecisionOnMissingCandidate(t *testing.T) {
	st := newTestStore(t)

	err := st.SetFavorite(context.Background(), 1, 404)
	require.True(t, errors.Is(err, storage.ErrNotFound), "got %v", err)

	err = st.UpsertMedia(context.Background(), 404, media(404, 1))
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestDeleteCandidateCascades(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.UpsertCandidate(ctx, 1, candidate(10, 30, 1)))
	require.NoError(t, st.UpsertCandidate(ctx, 2, candidate(10, 30, 1)))
	require.NoError(t, st.UpsertMedia(ctx, 10, media(10, 3)))
	require.NoError(t, st.SetFavorite(ctx, 1, 10))

	require.NoError(t, st.DeleteCandidate(ctx, 10))
	// Deleting twice is safe.
	require.NoError(t, st.DeleteCandidate(ctx, 10))

	for _, user := range []int64{1, 2} {
		decided, err := st.DecidedIDs(ctx, user)
		require.NoError(t, err)
		require.Empty(t, decided)

		favorites, err := st.ListFavorites(ctx, user)
		require.NoError(t, err)
		require.Empty(t, favorites)
	}

	err := st.db.View(func(txn *badger.Txn) error {
		require.Empty(t, keys(txn, mediaPrefix(10)))
		require.Empty(t, keys(txn, reversePrefix(10)))
		require.Empty(t, keys(txn, relationPrefix(1)))
		return nil
	})
	require.NoError(t, err)
}

func TestConcurrentUpserts(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			errs <- st.UpsertCandidate(ctx, 1, candidate(100+id%5, 30, 1))
		}(int64(i))
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}

	found, err := st.FindCandidates(ctx, &models.Criteria{Gender: models.GenderFemale, AgeFrom: 18, AgeTo: 99}, 1)
	require.NoError(t, err)
	require.Len(t, found, 5)
}

func TestClosedStore(t *testing.T) {
	st, err := NewInMemory(nil)
	require.NoError(t, err)
	st.Close()
	st.Close()

	require.Error(t, st.Ping(context.Background()))
	require.Error(t, st.UpsertUser(context.Background(), &models.Profile{ID: 1}))
}
