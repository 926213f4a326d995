package badgerstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/spigell/love-machine/internal/models"
	"github.com/spigell/love-machine/internal/storage"
)

type userRecord struct {
	ID        int64         `json:"id"`
	FirstName string        `json:"first_name"`
	LastName  string        `json:"last_name"`
	Gender    models.Gender `json:"sex"`
	CityID    int           `json:"city_id"`
}

type candidateRecord struct {
	ID        int64         `json:"id"`
	FirstName string        `json:"first_name"`
	LastName  string        `json:"last_name"`
	Gender    models.Gender `json:"sex"`
	BirthDate time.Time     `json:"bdate"`
	CityID    int           `json:"city_id"`
	Interests string        `json:"interests"`
}

func (r *candidateRecord) candidate() models.Candidate {
	return models.Candidate{
		ID:        r.ID,
		FirstName: r.FirstName,
		LastName:  r.LastName,
		Gender:    r.Gender,
		BirthDate: r.BirthDate,
		CityID:    r.CityID,
		Interests: r.Interests,
	}
}

type relationRecord struct {
	Blacklisted bool      `json:"blacklisted"`
	Favorited   bool      `json:"favorited"`
	CreatedAt   time.Time `json:"created_at"`
}

func (r *relationRecord) decided() bool {
	return r.Blacklisted || r.Favorited
}

type mediaRecord struct {
	URL        string `json:"url"`
	Popularity int    `json:"popularity"`
}

// relation is a candidate linked to a user.
type relation struct {
	candidateID int64
	record      relationRecord
}

// relations returns the user's relations ordered by creation time.
func relations(txn *badger.Txn, userID int64) ([]relation, error) {
	prefix := relationPrefix(userID)

	var result []relation
	for _, key := range keys(txn, prefix) {
		id, err := idFromKey(key, prefix)
		if err != nil {
			return nil, err
		}

		var rec relationRecord
		if err := getJSON(txn, key, &rec); err != nil {
			return nil, err
		}
		result = append(result, relation{candidateID: id, record: rec})
	}

	sort.SliceStable(result, func(i, j int) bool {
		if !result[i].record.CreatedAt.Equal(result[j].record.CreatedAt) {
			return result[i].record.CreatedAt.Before(result[j].record.CreatedAt)
		}
		return result[i].candidateID < result[j].candidateID
	})

	return result, nil
}

func loadMedia(txn *badger.Txn, candidateID int64) ([]models.Media, error) {
	prefix := mediaPrefix(candidateID)

	var media []models.Media
	for _, key := range keys(txn, prefix) {
		var rec mediaRecord
		if err := getJSON(txn, key, &rec); err != nil {
			return nil, err
		}
		media = append(media, models.Media{
			Ref:        string(key[len(prefix):]),
			URL:        rec.URL,
			Popularity: rec.Popularity,
		})
	}
	return media, nil
}

func (s *Store) UpsertUser(ctx context.Context, user *models.Profile) error {
	const op = "storage/badgerstore/UpsertUser"

	err := s.update(ctx, func(txn *badger.Txn) error {
		return setJSON(txn, userKey(user.ID), userRecord{
			ID:        user.ID,
			FirstName: user.FirstName,
			LastName:  user.LastName,
			Gender:    user.Gender,
			CityID:    user.CityID,
		})
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (s *Store) FindCandidates(ctx context.Context, criteria *models.Criteria, userID int64) ([]models.Candidate, error) {
	const op = "storage/badgerstore/FindCandidates"

	earliest, latest := storage.BirthRange(criteria.AgeFrom, criteria.AgeTo, time.Now())

	var result []models.Candidate
	err := s.view(ctx, func(txn *badger.Txn) error {
		rels, err := relations(txn, userID)
		if err != nil {
			return err
		}

		for _, rel := range rels {
			if rel.record.decided() {
				continue
			}

			var rec candidateRecord
			err := getJSON(txn, candidateKey(rel.candidateID), &rec)
			if errors.Is(err, storage.ErrNotFound) {
				continue
			}
			if err != nil {
				return err
			}

			if rec.Gender != criteria.Gender {
				continue
			}
			if criteria.CityID != 0 && rec.CityID != criteria.CityID {
				continue
			}
			if rec.BirthDate.Before(earliest) || rec.BirthDate.After(latest) {
				continue
			}

			media, err := loadMedia(txn, rec.ID)
			if err != nil {
				return err
			}

			c := rec.candidate()
			c.Media = models.TopMedia(media, models.MaxMedia)
			result = append(result, c)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return result, nil
}

func (s *Store) UpsertCandidate(ctx context.Context, userID int64, candidate *models.Candidate) error {
	const op = "storage/badgerstore/UpsertCandidate"

	err := s.update(ctx, func(txn *badger.Txn) error {
		key := candidateKey(candidate.ID)
		if _, err := txn.Get(key); errors.Is(err, badger.ErrKeyNotFound) {
			if err := setJSON(txn, key, candidateRecord{
				ID:        candidate.ID,
				FirstName: candidate.FirstName,
				LastName:  candidate.LastName,
				Gender:    candidate.Gender,
				BirthDate: candidate.BirthDate,
				CityID:    candidate.CityID,
				Interests: candidate.Interests,
			}); err != nil {
				return err
			}
		} else if err != nil {
			return err
		}

		relKey := relationKey(userID, candidate.ID)
		if _, err := txn.Get(relKey); !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}

		if err := setJSON(txn, relKey, relationRecord{CreatedAt: time.Now().UTC()}); err != nil {
			return err
		}
		return txn.Set(reverseKey(candidate.ID, userID), []byte{})
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (s *Store) UpsertMedia(ctx context.Context, candidateID int64, media []models.Media) error {
	const op = "storage/badgerstore/UpsertMedia"

	if len(media) == 0 {
		return nil
	}

	err := s.update(ctx, func(txn *badger.Txn) error {
		if _, err := txn.Get(candidateKey(candidateID)); errors.Is(err, badger.ErrKeyNotFound) {
			return storage.ErrNotFound
		} else if err != nil {
			return err
		}

		for _, m := range media {
			if err := setJSON(txn, mediaKey(candidateID, m.Ref), mediaRecord{URL: m.URL, Popularity: m.Popularity}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// DeleteCandidate removes the candidate, its photos and every relation that
// points to it.
func (s *Store) DeleteCandidate(ctx context.Context, candidateID int64) error {
	const op = "storage/badgerstore/DeleteCandidate"

	err := s.update(ctx, func(txn *badger.Txn) error {
		for _, key := range keys(txn, mediaPrefix(candidateID)) {
			if err := txn.Delete(key); err != nil {
				return err
			}
		}

		prefix := reversePrefix(candidateID)
		for _, key := range keys(txn, prefix) {
			userID, err := idFromKey(key, prefix)
			if err != nil {
				return err
			}
			if err := txn.Delete(relationKey(userID, candidateID)); err != nil {
				return err
			}
			if err := txn.Delete(key); err != nil {
				return err
			}
		}

		return txn.Delete(candidateKey(candidateID))
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}
