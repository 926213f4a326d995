package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/spigell/love-machine/internal/models"
	"github.com/spigell/love-machine/internal/storage"
)

const (
	pgForeignKeyViolation = "23503"

	offerColumns = `o.id, o.first_name, o.last_name, o.sex, o.bdate, o.city_id, o.interests`
)

func scanCandidate(row pgx.Row) (models.Candidate, error) {
	var c models.Candidate
	var sex int16

	if err := row.Scan(
		&c.ID,
		&c.FirstName,
		&c.LastName,
		&sex,
		&c.BirthDate,
		&c.CityID,
		&c.Interests,
	); err != nil {
		return models.Candidate{}, err
	}

	c.Gender = models.Gender(sex)
	return c, nil
}

func collectCandidates(rows pgx.Rows) ([]models.Candidate, error) {
	defer rows.Close()

	var result []models.Candidate
	for rows.Next() {
		c, err := scanCandidate(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, c)
	}

	return result, rows.Err()
}

// UpsertUser records the requesting user.
func (s *Store) UpsertUser(ctx context.Context, user *models.Profile) error {
	const op = "storage/postgres/UpsertUser"

	_, err := s.db.Exec(ctx, `
	INSERT INTO users (id, first_name, last_name, sex, city_id)
	VALUES ($1, $2, $3, $4, $5)
	ON CONFLICT (id) DO UPDATE SET
		first_name = EXCLUDED.first_name,
		last_name  = EXCLUDED.last_name,
		sex        = EXCLUDED.sex,
		city_id    = EXCLUDED.city_id,
		updated_at = now()`,
		user.ID, user.FirstName, user.LastName, int16(user.Gender), user.CityID,
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// FindCandidates returns undecided candidates linked to the user that match
// the criteria, in the order they were linked.
func (s *Store) FindCandidates(ctx context.Context, criteria *models.Criteria, userID int64) ([]models.Candidate, error) {
	const op = "storage/postgres/FindCandidates"

	earliest, latest := storage.BirthRange(criteria.AgeFrom, criteria.AgeTo, time.Now())

	rows, err := s.db.Query(ctx, `
	SELECT `+offerColumns+`
	FROM offers o
	JOIN user_offers uo ON uo.offer_id = o.id
	WHERE uo.user_id = $1
		AND NOT uo.blacklisted
		AND NOT uo.favorited
		AND o.sex = $2
		AND ($3::int = 0 OR o.city_id = $3::int)
		AND o.bdate BETWEEN $4 AND $5
	ORDER BY uo.created_at, o.id`,
		userID, int16(criteria.Gender), criteria.CityID, earliest, latest,
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	candidates, err := collectCandidates(rows)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := s.attachMedia(ctx, candidates); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return candidates, nil
}

func (s *Store) attachMedia(ctx context.Context, candidates []models.Candidate) error {
	if len(candidates) == 0 {
		return nil
	}

	ids := make([]int64, 0, len(candidates))
	for _, c := range candidates {
		ids = append(ids, c.ID)
	}

	rows, err := s.db.Query(ctx, `
	SELECT offer_id, ref, url, popularity
	FROM photos
	WHERE offer_id = ANY($1)`, ids)
	if err != nil {
		return err
	}
	defer rows.Close()

	media := make(map[int64][]models.Media, len(candidates))
	for rows.Next() {
		var id int64
		var m models.Media
		if err := rows.Scan(&id, &m.Ref, &m.URL, &m.Popularity); err != nil {
			return err
		}
		media[id] = append(media[id], m)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for i := range candidates {
		candidates[i].Media = models.TopMedia(media[candidates[i].ID], models.MaxMedia)
	}

	return nil
}

// UpsertCandidate inserts the candidate unless it already exists and links it
// to the user.
func (s *Store) UpsertCandidate(ctx context.Context, userID int64, candidate *models.Candidate) error {
	const op = "storage/postgres/UpsertCandidate"

	err := pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
		INSERT INTO offers (id, first_name, last_name, sex, bdate, city_id, interests)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO NOTHING`,
			candidate.ID,
			candidate.FirstName,
			candidate.LastName,
			int16(candidate.Gender),
			candidate.BirthDate,
			candidate.CityID,
			candidate.Interests,
		); err != nil {
			return err
		}

		// The user row may be missing when the candidate is stored on behalf
		// of a user created by another process.
		if _, err := tx.Exec(ctx, `INSERT INTO users (id) VALUES ($1) ON CONFLICT (id) DO NOTHING`, userID); err != nil {
			return err
		}

		_, err := tx.Exec(ctx, `
		INSERT INTO user_offers (user_id, offer_id)
		VALUES ($1, $2)
		ON CONFLICT (user_id, offer_id) DO NOTHING`,
			userID, candidate.ID,
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// UpsertMedia stores photos of an existing candidate.
func (s *Store) UpsertMedia(ctx context.Context, candidateID int64, media []models.Media) error {
	const op = "storage/postgres/UpsertMedia"

	if len(media) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, m := range media {
		batch.Queue(`
		INSERT INTO photos (offer_id, ref, url, popularity)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (offer_id, ref) DO UPDATE SET
			url = EXCLUDED.url,
			popularity = EXCLUDED.popularity`,
			candidateID, m.Ref, m.URL, m.Popularity,
		)
	}

	if err := s.db.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("%s: %w", op, mapForeignKey(err))
	}

	return nil
}

// DeleteCandidate removes the candidate. Relations and photos are removed by
// the cascading foreign keys.
func (s *Store) DeleteCandidate(ctx context.Context, candidateID int64) error {
	const op = "storage/postgres/DeleteCandidate"

	if _, err := s.db.Exec(ctx, `DELETE FROM offers WHERE id = $1`, candidateID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func mapForeignKey(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation {
		return storage.ErrNotFound
	}
	return err
}
