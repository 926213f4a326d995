// Package storage holds the contract of the candidate store.
//
// The layout is relational: users, candidates (offers), a user↔candidate
// relation carrying independent blacklisted and favorited flags, and candidate
// photos. Deleting a candidate removes its relations and photos.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/spigell/love-machine/internal/models"
)

var (
	// ErrNotFound is returned when the referenced candidate does not exist.
	ErrNotFound = errors.New("not found")
)

// Store is the persistence contract used by the dialogue engine.
type Store interface {
	// UpsertUser records the user on first contact and refreshes the profile later.
	UpsertUser(ctx context.Context, user *models.Profile) error
	// FindCandidates returns cached candidates linked to the user that match the
	// criteria and were neither blacklisted nor favorited by them. Each carries
	// up to models.MaxMedia photos.
	FindCandidates(ctx context.Context, criteria *models.Criteria, userID int64) ([]models.Candidate, error)
	// UpsertCandidate inserts the candidate unless present and links it to the user.
	UpsertCandidate(ctx context.Context, userID int64, candidate *models.Candidate) error
	// UpsertMedia stores the candidate photos, replacing known references.
	UpsertMedia(ctx context.Context, candidateID int64, media []models.Media) error
	// DeleteCandidate removes the candidate with its relations and photos.
	// Deleting a missing candidate is not an error.
	DeleteCandidate(ctx context.Context, candidateID int64) error
	// SetBlacklisted marks the candidate as blacklisted and unfavorites it.
	SetBlacklisted(ctx context.Context, userID, candidateID int64) error
	// SetFavorite marks the candidate as favorite unless it is blacklisted.
	SetFavorite(ctx context.Context, userID, candidateID int64) error
	ListFavorites(ctx context.Context, userID int64) ([]models.Candidate, error)
	// ClearFavorites unsets the favorited flag of every relation of the user.
	ClearFavorites(ctx context.Context, userID int64) error
	// DecidedIDs returns the candidates the user favorited or blacklisted.
	DecidedIDs(ctx context.Context, userID int64) ([]int64, error)

	Ping(ctx context.Context) error
	Close()
}

// BirthRange returns the inclusive birth date bounds of people whose age,
// computed as days/365, lies within [ageFrom, ageTo] on now.
func BirthRange(ageFrom, ageTo int, now time.Time) (earliest, latest time.Time) {
	y, m, d := now.UTC().Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)

	latest = today.AddDate(0, 0, -365*ageFrom)
	earliest = today.AddDate(0, 0, -(365*(ageTo+1) - 1))
	return earliest, latest
}
