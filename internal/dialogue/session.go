package dialogue

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spigell/love-machine/internal/logger"
	"github.com/spigell/love-machine/internal/models"
)

// State is the lifecycle state of a session.
type State int32

const (
	StateIdle State = iota
	StateFormulating
	StateSuggesting
	StateAwaitingNext
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateFormulating:
		return "formulating"
	case StateSuggesting:
		return "suggesting"
	case StateAwaitingNext:
		return "awaiting_next"
	case StateClosed:
		return "closed"
	default:
		return "idle"
	}
}

// Session is the state of one matchmaking cycle of a user. Its context is
// cancelled when the session is removed from the registry.
type Session struct {
	ID     string
	UserID int64

	ctx    context.Context
	cancel context.CancelFunc

	state   atomic.Int32
	advance chan struct{}
	queue   *Queue
	logger  *zap.Logger

	// criteria is set once before the pipeline starts.
	criteria *models.Criteria

	closeOnce sync.Once
}

func newSession(parent context.Context, userID int64, log *zap.Logger) *Session {
	ctx, cancel := context.WithCancel(parent)
	id := uuid.NewString()

	s := &Session{
		ID:      id,
		UserID:  userID,
		ctx:     ctx,
		cancel:  cancel,
		advance: make(chan struct{}, 1),
		queue:   NewQueue(),
		logger:  logger.WithSession(log, userID, id),
	}
	s.state.Store(int32(StateFormulating))
	return s
}

func (s *Session) State() State {
	return State(s.state.Load())
}

func (s *Session) setState(state State) {
	s.state.Store(int32(state))
}

// Advance raises the advance signal when the session waits for it. Repeated
// signals collapse into one.
func (s *Session) Advance() bool {
	if s.State() != StateAwaitingNext {
		return false
	}

	select {
	case s.advance <- struct{}{}:
	default:
	}
	return true
}

// Done is closed when the session is removed.
func (s *Session) Done() <-chan struct{} {
	return s.ctx.Done()
}

func (s *Session) close() {
	s.closeOnce.Do(func() {
		s.setState(StateClosed)
		s.queue.Abandon()
		s.cancel()
	})
}
