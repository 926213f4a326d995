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

// setRelation applies change to the relation, creating it when the candidate
// exists but is not linked to the user yet.
func (s *Store) setRelation(ctx context.Context, userID, candidateID int64, change func(*relationRecord)) error {
	return s.update(ctx, func(txn *badger.Txn) error {
		if _, err := txn.Get(candidateKey(candidateID)); errors.Is(err, badger.ErrKeyNotFound) {
			return storage.ErrNotFound
		} else if err != nil {
			return err
		}

		key := relationKey(userID, candidateID)
		rec := relationRecord{CreatedAt: time.Now().UTC()}
		if err := getJSON(txn, key, &rec); err != nil && !errors.Is(err, storage.ErrNotFound) {
			return err
		}

		change(&rec)

		if err := setJSON(txn, key, rec); err != nil {
			return err
		}
		return txn.Set(reverseKey(candidateID, userID), []byte{})
	})
}

func (s *Store) SetBlacklisted(ctx context.Context, userID, candidateID int64) error {
	const op = "storage/badgerstore/SetBlacklisted"

	if err := s.setRelation(ctx, userID, candidateID, func(r *relationRecord) {
		r.Blacklisted = true
		r.Favorited = false
	}); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (s *Store) SetFavorite(ctx context.Context, userID, candidateID int64) error {
	const op = "storage/badgerstore/SetFavorite"

	if err := s.setRelation(ctx, userID, candidateID, func(r *relationRecord) {
		if !r.Blacklisted {
			r.Favorited = true
		}
	}); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (s *Store) ListFavorites(ctx context.Context, userID int64) ([]models.Candidate, error) {
	const op = "storage/badgerstore/ListFavorites"

	var favorites []models.Candidate
	err := s.view(ctx, func(txn *badger.Txn) error {
		rels, err := relations(txn, userID)
		if err != nil {
			return err
		}

		for _, rel := range rels {
			if !rel.record.Favorited {
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
			favorites = append(favorites, rec.candidate())
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return favorites, nil
}

func (s *Store) ClearFavorites(ctx context.Context, userID int64) error {
	const op = "storage/badgerstore/ClearFavorites"

	err := s.update(ctx, func(txn *badger.Txn) error {
		rels, err := relations(txn, userID)
		if err != nil {
			return err
		}

		for _, rel := range rels {
			if !rel.record.Favorited {
				continue
			}
			rel.record.Favorited = false
			if err := setJSON(txn, relationKey(userID, rel.candidateID), rel.record); err != nil {
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

func (s *Store) DecidedIDs(ctx context.Context, userID int64) ([]int64, error) {
	const op = "storage/badgerstore/DecidedIDs"

	var ids []int64
	err := s.view(ctx, func(txn *badger.Txn) error {
		rels, err := relations(txn, userID)
		if err != nil {
			return err
		}
		for _, rel := range rels {
			if rel.record.decided() {
				ids = append(ids, rel.candidateID)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}
