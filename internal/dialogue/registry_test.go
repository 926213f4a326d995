package dialogue

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRegistryAcquireIsExclusive(t *testing.T) {
	r := NewRegistry()

	const callers = 20
	var created sync.Map
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sess, ok := r.Acquire(context.Background(), 7, zap.NewNop())
			if ok {
				created.Store(i, sess)
			}
		}(i)
	}
	wg.Wait()

	owners := 0
	created.Range(func(_, _ any) bool {
		owners++
		return true
	})
	require.Equal(t, 1, owners)
	require.Equal(t, 1, r.Len())

	sess, ok := r.Get(7)
	require.True(t, ok)
	require.Equal(t, StateFormulating, sess.State())
}

func TestRegistryRemove(t *testing.T) {
	r := NewRegistry()
	old, _ := r.Acquire(context.Background(), 7, zap.NewNop())

	require.True(t, r.Remove(old))
	require.False(t, r.Remove(old))
	require.Equal(t, StateClosed, old.State())

	select {
	case <-old.Done():
	default:
		t.Fatal("removed session must be cancelled")
	}

	fresh, created := r.Acquire(context.Background(), 7, zap.NewNop())
	require.True(t, created)
	require.NotEqual(t, old.ID, fresh.ID)

	// A stale handle must not remove the new session.
	require.False(t, r.Remove(old))
	require.Equal(t, 1, r.Len())
}

func TestLastSuggestedSurvivesRemoval(t *testing.T) {
	r := NewRegistry()
	sess, _ := r.Acquire(context.Background(), 7, zap.NewNop())
	r.SetLastSuggested(7, 99)
	r.Remove(sess)

	id, ok := r.LastSuggested(7)
	require.True(t, ok)
	require.Equal(t, int64(99), id)
}

func TestAdvanceOnlyWhileAwaiting(t *testing.T) {
	sess := newSession(context.Background(), 7, zap.NewNop())
	defer sess.close()

	require.False(t, sess.Advance())
	require.Empty(t, sess.advance)

	sess.setState(StateAwaitingNext)
	require.True(t, sess.Advance())
	require.True(t, sess.Advance())
	require.Len(t, sess.advance, 1)
}
