package dialogue

import (
	"context"
	"sync"

	"github.com/spigell/love-machine/internal/models"
)

// Queue is the candidate queue of one session. It has one writer (the supply
// pipeline) and one reader (the cursor). A candidate id is accepted at most
// once. Waiters are woken by closing the changed channel, so there is no
// polling.
type Queue struct {
	mu        sync.Mutex
	items     []models.Candidate
	seen      map[int64]struct{}
	done      bool
	abandoned bool
	changed   chan struct{}
}

func NewQueue() *Queue {
	return &Queue{
		seen:    make(map[int64]struct{}),
		changed: make(chan struct{}),
	}
}

// notify wakes every waiter. Callers hold q.mu.
func (q *Queue) notify() {
	close(q.changed)
	q.changed = make(chan struct{})
}

func (q *Queue) push(c models.Candidate) bool {
	if q.done || q.abandoned {
		return false
	}
	if _, ok := q.seen[c.ID]; ok {
		return false
	}
	q.seen[c.ID] = struct{}{}
	q.items = append(q.items, c)
	return true
}

// Push appends a candidate. It reports false for duplicates and when the
// queue is finished or abandoned.
func (q *Queue) Push(c models.Candidate) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.push(c) {
		return false
	}
	q.notify()
	return true
}

// PushBatch appends the candidates atomically: a waiter observes either none
// or all of them. It returns the number of accepted candidates.
func (q *Queue) PushBatch(candidates []models.Candidate) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	accepted := 0
	for _, c := range candidates {
		if q.push(c) {
			accepted++
		}
	}
	if accepted > 0 {
		q.notify()
	}
	return accepted
}

// Seen reports whether the candidate was ever queued.
func (q *Queue) Seen(id int64) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	_, ok := q.seen[id]
	return ok
}

// Finish marks the producer as complete.
func (q *Queue) Finish() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.done {
		return
	}
	q.done = true
	q.notify()
}

// Abandon drops the queued candidates and makes further pushes no-ops. It is
// called when the session is closed while the producer is still running.
func (q *Queue) Abandon() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.abandoned = true
	q.items = nil
	q.notify()
}

func (q *Queue) Pop() (models.Candidate, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return models.Candidate{}, false
	}

	c := q.items[0]
	q.items[0] = models.Candidate{}
	q.items = q.items[1:]
	return c, true
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return len(q.items)
}

// Done reports whether the producer has finished.
func (q *Queue) Done() bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.done
}

// Exhausted reports whether the producer has finished and nothing is left.
func (q *Queue) Exhausted() bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.done && len(q.items) == 0
}

// WaitLen blocks until at least n candidates are queued. Completion of the
// producer releases it only when nothing was queued at all.
func (q *Queue) WaitLen(ctx context.Context, n int) error {
	return q.wait(ctx, func() bool { return len(q.items) >= n || (q.done && len(q.items) == 0) })
}

// WaitAvailable blocks until a candidate is queued or the producer finishes.
func (q *Queue) WaitAvailable(ctx context.Context) error {
	return q.wait(ctx, func() bool { return len(q.items) > 0 || q.done })
}

// wait blocks until cond, evaluated under q.mu, holds.
func (q *Queue) wait(ctx context.Context, cond func() bool) error {
	for {
		q.mu.Lock()
		if cond() {
			q.mu.Unlock()
			return nil
		}
		changed := q.changed
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-changed:
		}
	}
}
