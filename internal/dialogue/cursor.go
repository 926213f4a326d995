package dialogue

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/love-machine/internal/logger"
	"github.com/spigell/love-machine/internal/metrics"
	"github.com/spigell/love-machine/internal/models"
)

// runCursor drains the session queue into suggestions, one per advance
// signal. Unless gated is false it first waits for a full batch.
func (s *Service) runCursor(sess *Session, gated bool) {
	log := sess.logger

	if gated {
		if !s.waitBatch(sess) {
			return
		}
	}

	for {
		sess.setState(StateSuggesting)

		c, ok := s.nextLive(sess)
		if !ok {
			if sess.queue.Exhausted() {
				s.reply(sess.ctx, sess.UserID, msgNoOffers)
				s.closeSession(sess, metrics.ReasonExhausted)
				return
			}
			if !s.waitQueue(sess, "", sess.queue.WaitAvailable) {
				return
			}
			continue
		}

		// The user may press "next" as soon as the suggestion lands.
		sess.setState(StateAwaitingNext)
		if err := s.outbox.SendSuggestion(sess.ctx, sess.UserID, models.SuggestionFor(&c)); err != nil {
			log.Error("failed to send suggestion", zap.Int64(logger.FieldCandidateID, c.ID), zap.Error(err))
			s.closeSession(sess, metrics.ReasonUndelivered)
			return
		}
		s.registry.SetLastSuggested(sess.UserID, c.ID)
		s.metrics.SuggestionSent()
		log.Debug("suggestion sent", zap.Int64(logger.FieldCandidateID, c.ID))

		if sess.queue.Exhausted() {
			s.reply(sess.ctx, sess.UserID, msgOffersOver)
			s.closeSession(sess, metrics.ReasonExhausted)
			return
		}

		if !s.awaitAdvance(sess) {
			return
		}
	}
}

// waitBatch holds the first suggestion until BatchSize candidates are queued.
// The session stays in the Formulating state meanwhile.
func (s *Service) waitBatch(sess *Session) bool {
	return s.waitQueue(sess, msgNoOffers, func(ctx context.Context) error {
		return sess.queue.WaitLen(ctx, s.cfg.BatchSize)
	})
}

// waitQueue runs wait bounded by IdleTimeout and closes the session when it
// fails. The notice is sent when the producer has finished by then.
func (s *Service) waitQueue(sess *Session, notice string, wait func(ctx context.Context) error) bool {
	ctx, cancel := context.WithTimeout(sess.ctx, s.cfg.IdleTimeout)
	defer cancel()

	if err := wait(ctx); err != nil {
		if sess.ctx.Err() != nil {
			s.closeSession(sess, metrics.ReasonShutdown)
			return false
		}

		sess.logger.Info("no candidates in time", zap.Int("queued", sess.queue.Len()))
		if !sess.queue.Done() {
			s.closeSession(sess, metrics.ReasonTimeout)
			return false
		}
		if notice != "" {
			s.reply(sess.ctx, sess.UserID, notice)
		}
		s.closeSession(sess, metrics.ReasonExhausted)
		return false
	}
	return true
}

// awaitAdvance blocks until the user asks for the next suggestion. The
// session is closed silently after IdleTimeout.
func (s *Service) awaitAdvance(sess *Session) bool {
	timer := time.NewTimer(s.cfg.IdleTimeout)
	defer timer.Stop()

	select {
	case <-sess.advance:
		return true
	case <-timer.C:
		s.closeSession(sess, metrics.ReasonTimeout)
		return false
	case <-sess.Done():
		s.closeSession(sess, metrics.ReasonShutdown)
		return false
	}
}

// nextLive pops candidates until one whose account is still active. Deleted
// and banned accounts are purged from the store.
func (s *Service) nextLive(sess *Session) (models.Candidate, bool) {
	for {
		c, ok := sess.queue.Pop()
		if !ok {
			return models.Candidate{}, false
		}

		profile, err := s.profiles.GetProfile(sess.ctx, c.ID)
		if err != nil {
			sess.logger.Warn("candidate lookup failed", zap.Int64(logger.FieldCandidateID, c.ID), zap.Error(err))
			s.metrics.CandidateSkipped(metrics.SkipLookup)
			continue
		}

		if err := profile.CheckActive(); errors.Is(err, models.ErrDeactivatedAccount) {
			sess.logger.Info("purging deactivated candidate",
				zap.Int64(logger.FieldCandidateID, c.ID),
				zap.Error(err),
			)
			if err := s.store.DeleteCandidate(sess.ctx, c.ID); err != nil {
				sess.logger.Warn("failed to purge candidate", zap.Int64(logger.FieldCandidateID, c.ID), zap.Error(err))
			}
			s.metrics.CandidateSkipped(metrics.SkipDeactivated)
			continue
		}

		return c, true
	}
}
