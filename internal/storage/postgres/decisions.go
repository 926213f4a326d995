package postgres

import (
	"context"
	"fmt"

	"github.com/spigell/love-machine/internal/models"
)

// SetBlacklisted marks the candidate as blacklisted for the user. A blacklisted
// candidate is never a favorite.
func (s *Store) SetBlacklisted(ctx context.Context, userID, candidateID int64) error {
	const op = "storage/postgres/SetBlacklisted"

	_, err := s.db.Exec(ctx, `
	INSERT INTO user_offers (user_id, offer_id, blacklisted, favorited)
	VALUES ($1, $2, true, false)
	ON CONFLICT (user_id, offer_id) DO UPDATE SET
		blacklisted = true,
		favorited = false`,
		userID, candidateID,
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, mapForeignKey(err))
	}

	return nil
}

// SetFavorite marks the candidate as favorite. Blacklisted relations are left
// untouched.
func (s *Store) SetFavorite(ctx context.Context, userID, candidateID int64) error {
	const op = "storage/postgres/SetFavorite"

	_, err := s.db.Exec(ctx, `
	INSERT INTO user_offers (user_id, offer_id, favorited)
	VALUES ($1, $2, true)
	ON CONFLICT (user_id, offer_id) DO UPDATE SET
		favorited = true
	WHERE NOT user_offers.blacklisted`,
		userID, candidateID,
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, mapForeignKey(err))
	}

	return nil
}

func (s *Store) ListFavorites(ctx context.Context, userID int64) ([]models.Candidate, error) {
	const op = "storage/postgres/ListFavorites"

	rows, err := s.db.Query(ctx, `
	SELECT `+offerColumns+`
	FROM offers o
	JOIN user_offers uo ON uo.offer_id = o.id
	WHERE uo.user_id = $1 AND uo.favorited
	ORDER BY uo.created_at, o.id`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	favorites, err := collectCandidates(rows)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return favorites, nil
}

func (s *Store) ClearFavorites(ctx context.Context, userID int64) error {
	const op = "storage/postgres/ClearFavorites"

	if _, err := s.db.Exec(ctx, `
	UPDATE user_offers SET favorited = false
	WHERE user_id = $1 AND favorited`,
		userID,
	); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (s *Store) DecidedIDs(ctx context.Context, userID int64) ([]int64, error) {
	const op = "storage/postgres/DecidedIDs"

	rows, err := s.db.Query(ctx, `
	SELECT offer_id FROM user_offers
	WHERE user_id = $1 AND (blacklisted OR favorited)
	ORDER BY offer_id`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return ids, nil
}
