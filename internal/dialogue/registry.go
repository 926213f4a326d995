package dialogue

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Registry holds the live sessions keyed by user id. All operations are
// atomic per key; there is no registry-wide lock.
type Registry struct {
	sessions sync.Map // int64 -> *Session
	// lastSuggested survives session close so that decisions on the last
	// card keep working after the offers are exhausted.
	lastSuggested sync.Map // int64 -> int64
}

func NewRegistry() *Registry {
	return &Registry{}
}

// Acquire returns the session of the user, creating one in the Formulating
// state when there is none. created reports whether the caller owns the new
// session.
func (r *Registry) Acquire(ctx context.Context, userID int64, log *zap.Logger) (*Session, bool) {
	if s, ok := r.Get(userID); ok {
		return s, false
	}

	fresh := newSession(ctx, userID, log)

	actual, loaded := r.sessions.LoadOrStore(userID, fresh)
	if loaded {
		fresh.cancel()
		return actual.(*Session), false
	}
	return fresh, true
}

func (r *Registry) Get(userID int64) (*Session, bool) {
	v, ok := r.sessions.Load(userID)
	if !ok {
		return nil, false
	}
	return v.(*Session), true
}

// Remove deletes the session if it is still the registered one and closes
// it. It reports whether this call removed it.
func (r *Registry) Remove(s *Session) bool {
	removed := r.sessions.CompareAndDelete(s.UserID, s)
	if removed {
		s.close()
	}
	return removed
}

func (r *Registry) Len() int {
	n := 0
	r.sessions.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

func (r *Registry) SetLastSuggested(userID, candidateID int64) {
	r.lastSuggested.Store(userID, candidateID)
}

func (r *Registry) LastSuggested(userID int64) (int64, bool) {
	v, ok := r.lastSuggested.Load(userID)
	if !ok {
		return 0, false
	}
	return v.(int64), true
}
