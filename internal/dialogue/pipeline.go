package dialogue

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/spigell/love-machine/internal/filtering"
	"github.com/spigell/love-machine/internal/logger"
	"github.com/spigell/love-machine/internal/match"
	"github.com/spigell/love-machine/internal/metrics"
	"github.com/spigell/love-machine/internal/models"
)

// supply fills the session queue. Cached candidates are queued first; when
// the cache is short the external search tops the queue up while the cursor
// already runs.
func (s *Service) supply(sess *Session) {
	ctx := sess.ctx
	log := sess.logger

	cached, err := s.store.FindCandidates(ctx, sess.criteria, sess.UserID)
	if err != nil {
		log.Warn("cache lookup failed", zap.Error(err))
		cached = nil
	}
	cached = match.Rank(ctx, s.canon, sess.criteria.Interests, cached)

	hit := len(cached) >= s.cfg.CacheThreshold
	s.metrics.CacheLookup(hit)
	log.Info("cache looked up", zap.Int("cached", len(cached)), zap.Bool("hit", hit))

	sess.queue.PushBatch(cached)
	if hit {
		sess.queue.Finish()
		s.runCursor(sess, false)
		return
	}

	s.spawn(func() { s.produce(sess) })
	s.runCursor(sess, true)
}

// produce runs the external search, filters and ranks the results and queues
// the candidates that pass enrichment in rank order. It works under the
// service context so that fetches in flight complete after the session ends;
// pushes into an abandoned queue are dropped.
func (s *Service) produce(sess *Session) {
	defer sess.queue.Finish()

	ctx := s.root
	log := sess.logger

	found, err := s.searcher.Search(ctx, sess.criteria, s.cfg.MaxResults)
	if err != nil {
		log.Error("candidate search failed", zap.Error(err))
		return
	}
	log.Info("candidates found", zap.Int("count", found.Len()))

	found, err = filtering.Run(ctx, filtering.Deps{
		UserID:    sess.UserID,
		Decisions: s.store,
		Logger:    log,
	}, s.filters, found)
	if err != nil {
		log.Error("filtering failed", zap.Error(err))
		return
	}

	candidates := make([]models.Candidate, 0, found.Len())
	for _, p := range found.Items {
		c, err := models.CandidateFromProfile(p)
		if err != nil {
			log.Debug("skipping candidate", zap.Error(err))
			s.metrics.CandidateSkipped(metrics.SkipMalformed)
			continue
		}
		candidates = append(candidates, c)
	}
	candidates = match.Rank(ctx, s.canon, sess.criteria.Interests, candidates)

	queued := 0
	for c := range s.enrichAll(ctx, sess, candidates) {
		if sess.queue.Push(c) {
			queued++
		}
	}
	log.Info("search finished", zap.Int("queued", queued))
}

// enrichAll enriches up to MaxConcurrentFetches candidates at once and yields
// the accepted ones in the input order.
func (s *Service) enrichAll(ctx context.Context, sess *Session, candidates []models.Candidate) <-chan models.Candidate {
	slots := make([]chan *models.Candidate, len(candidates))
	for i := range slots {
		slots[i] = make(chan *models.Candidate, 1)
	}

	sem := make(chan struct{}, s.cfg.MaxConcurrentFetches)
	go func() {
		for i := range candidates {
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				skipFrom(slots, i)
				return
			case <-sess.Done():
				// Fetches already started still complete.
				skipFrom(slots, i)
				return
			}

			go func(i int) {
				defer func() { <-sem }()
				slots[i] <- s.enrich(ctx, sess, candidates[i])
			}(i)
		}
	}()

	out := make(chan models.Candidate)
	go func() {
		defer close(out)
		for _, slot := range slots {
			if c := <-slot; c != nil {
				out <- *c
			}
		}
	}()
	return out
}

func skipFrom(slots []chan *models.Candidate, i int) {
	for ; i < len(slots); i++ {
		slots[i] <- nil
	}
}

// enrich fetches and stores the photos of a candidate. It returns nil when the
// candidate is skipped.
func (s *Service) enrich(ctx context.Context, sess *Session, c models.Candidate) *models.Candidate {
	log := sess.logger.With(zap.Int64(logger.FieldCandidateID, c.ID))

	if sess.queue.Seen(c.ID) {
		s.metrics.CandidateSkipped(metrics.SkipDuplicate)
		return nil
	}

	media, err := s.searcher.FetchMedia(ctx, c.ID)
	switch {
	case errors.Is(err, models.ErrAccessDenied):
		log.Debug("photos are private")
		s.metrics.CandidateSkipped(metrics.SkipAccessDenied)
		return nil
	case err != nil:
		log.Warn("failed to fetch photos", zap.Error(err))
		s.metrics.CandidateSkipped(metrics.SkipLookup)
		return nil
	}

	c.Media = models.TopMedia(media, models.MaxMedia)
	if len(c.Media) < s.cfg.MinMedia {
		log.Debug("not enough photos", zap.Int("photos", len(c.Media)))
		s.metrics.CandidateSkipped(metrics.SkipFewMedia)
		return nil
	}

	if err := s.store.UpsertCandidate(ctx, sess.UserID, &c); err != nil {
		log.Warn("failed to store candidate", zap.Error(err))
		s.metrics.CandidateSkipped(metrics.SkipStore)
		return nil
	}
	if err := s.store.UpsertMedia(ctx, c.ID, c.Media); err != nil {
		log.Warn("failed to store photos", zap.Error(err))
		s.metrics.CandidateSkipped(metrics.SkipStore)
		return nil
	}

	return &c
}
