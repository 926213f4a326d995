package dialogue

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/love-machine/internal/logger"
	"github.com/spigell/love-machine/internal/match"
	"github.com/spigell/love-machine/internal/metrics"
	"github.com/spigell/love-machine/internal/models"
	"github.com/spigell/love-machine/internal/storage"
	"github.com/spigell/love-machine/internal/utils"
)

const pollRetryDelay = 3 * time.Second

// Run polls the feed and dispatches every event in its own goroutine until
// ctx is cancelled. It then shuts the sessions down.
func (s *Service) Run(ctx context.Context, feed Feed) error {
	var dispatches sync.WaitGroup
	defer func() {
		dispatches.Wait()
		s.Shutdown()
	}()

	for {
		events, err := feed.Poll(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			s.logger.Warn("polling events failed", zap.Error(err))
			if err := utils.WaitFor(ctx, pollRetryDelay); err != nil {
				return nil
			}
			continue
		}

		for _, ev := range events {
			dispatches.Add(1)
			go func(ev models.Event) {
				defer dispatches.Done()
				if err := s.Dispatch(ctx, ev); err != nil {
					s.logger.Debug("dispatch finished with error",
						zap.Int64(logger.FieldUserID, ev.UserID),
						zap.Error(err),
					)
				}
			}(ev)
		}
	}
}

// Dispatch routes one inbound message.
func (s *Service) Dispatch(ctx context.Context, ev models.Event) error {
	log := s.logger.With(zap.Int64(logger.FieldUserID, ev.UserID))
	log.Debug("event received", zap.String("text", utils.TruncateForLog(ev.Text, 100)))

	switch ParseCommand(ev.Text) {
	case CommandNext:
		// Without a live session "next" starts a new search.
		if sess, ok := s.registry.Get(ev.UserID); ok && sess.State() != StateFormulating {
			sess.Advance()
			return nil
		}
	case CommandFavorite:
		return s.decide(ctx, ev.UserID, true)
	case CommandBlacklist:
		return s.decide(ctx, ev.UserID, false)
	case CommandFavorites:
		return s.listFavorites(ctx, ev.UserID)
	case CommandClear:
		return s.clearFavorites(ctx, ev.UserID)
	}

	return s.formulate(ctx, ev.UserID)
}

// formulate starts a new session unless the user already has one.
func (s *Service) formulate(ctx context.Context, userID int64) error {
	sess, created := s.registry.Acquire(s.root, userID, s.logger)
	if !created {
		if sess.State() == StateFormulating {
			s.reply(ctx, userID, msgPleaseWait)
			return models.ErrDuplicateRequest
		}
		s.reply(ctx, userID, msgUseButtons)
		return nil
	}

	s.metrics.SessionStarted()
	log := sess.logger
	log.Info("formulating search criteria")

	profile, err := s.profiles.GetProfile(ctx, userID)
	if err != nil {
		s.closeSession(sess, metrics.ReasonCriteria)
		s.reply(ctx, userID, msgProfileFailed)
		return err
	}

	criteria, err := match.FormCriteria(ctx, profile, s.canon, s.now())
	if err != nil {
		s.closeSession(sess, metrics.ReasonCriteria)
		var criteriaErr *models.CriteriaError
		if errors.As(err, &criteriaErr) {
			log.Info("cannot form criteria", zap.Error(err))
			s.reply(ctx, userID, criteriaNotice(criteriaErr))
		}
		return err
	}

	if err := s.store.UpsertUser(ctx, profile); err != nil {
		log.Warn("failed to store user", zap.Error(err))
	}

	log.Info("criteria formed",
		zap.Int("city_id", criteria.CityID),
		zap.Int("sex", int(criteria.Gender)),
		zap.Int("age_from", criteria.AgeFrom),
		zap.Int("age_to", criteria.AgeTo),
		zap.Strings("interests", criteria.Interests),
	)

	sess.criteria = criteria
	s.reply(ctx, userID, msgSearching)

	s.spawn(func() { s.supply(sess) })
	return nil
}

// decide records a favorite or blacklist decision on the last suggestion.
func (s *Service) decide(ctx context.Context, userID int64, favorite bool) error {
	candidateID, ok := s.registry.LastSuggested(userID)
	if !ok {
		s.reply(ctx, userID, msgNoSuggestion)
		return nil
	}

	var err error
	text := msgBlacklisted
	if favorite {
		err = s.store.SetFavorite(ctx, userID, candidateID)
		text = msgFavoriteSaved
	} else {
		err = s.store.SetBlacklisted(ctx, userID, candidateID)
	}

	switch {
	case errors.Is(err, storage.ErrNotFound):
		s.reply(ctx, userID, msgGone)
		return nil
	case err != nil:
		s.logger.Error("failed to record decision",
			zap.Int64(logger.FieldUserID, userID),
			zap.Int64(logger.FieldCandidateID, candidateID),
			zap.Bool("favorite", favorite),
			zap.Error(err),
		)
		s.reply(ctx, userID, msgFailure)
		return err
	}

	s.reply(ctx, userID, text)
	return nil
}

func (s *Service) listFavorites(ctx context.Context, userID int64) error {
	favorites, err := s.store.ListFavorites(ctx, userID)
	if err != nil {
		s.logger.Error("failed to list favorites", zap.Int64(logger.FieldUserID, userID), zap.Error(err))
		s.reply(ctx, userID, msgFailure)
		return err
	}

	s.reply(ctx, userID, favoritesText(favorites))
	return nil
}

func (s *Service) clearFavorites(ctx context.Context, userID int64) error {
	if err := s.store.ClearFavorites(ctx, userID); err != nil {
		s.logger.Error("failed to clear favorites", zap.Int64(logger.FieldUserID, userID), zap.Error(err))
		s.reply(ctx, userID, msgFailure)
		return err
	}

	s.reply(ctx, userID, msgCleared)
	return nil
}

// closeSession removes the session and records why. It is a no-op when the
// session was already removed.
func (s *Service) closeSession(sess *Session, reason string) {
	if !s.registry.Remove(sess) {
		return
	}
	s.metrics.SessionClosed(reason)
	sess.logger.Info("session closed", zap.String("reason", reason))
}
