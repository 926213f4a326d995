// Package match derives search criteria from a profile and orders candidates
// by interest overlap.
package match

import (
	"context"
	"strings"
	"time"

	"github.com/spigell/love-machine/internal/models"
)

// AgeDelta is the half-width of the target age window.
const AgeDelta = 8

// Canonicalizer turns free text into a sorted keyword set.
type Canonicalizer interface {
	Canonicalize(ctx context.Context, text string) []string
}

// FormCriteria derives the search criteria of a profile. It fails with a
// *models.CriteriaError when the gender is not resolved.
func FormCriteria(ctx context.Context, profile *models.Profile, canon Canonicalizer, now time.Time) (*models.Criteria, error) {
	if profile == nil {
		return nil, &models.CriteriaError{Field: "profile", Reason: "profile is not available"}
	}

	target := profile.Gender.Opposite()
	if target == models.GenderUnknown {
		return nil, &models.CriteriaError{Field: "sex", Reason: "sex is not determined in the profile"}
	}

	criteria := &models.Criteria{
		CityID:    profile.CityID,
		Gender:    target,
		Interests: []string{},
	}

	criteria.AgeFrom, criteria.AgeTo = AgeWindow(profile.BirthDate, now)

	if text := strings.TrimSpace(profile.Interests); text != "" && canon != nil {
		criteria.Interests = canon.Canonicalize(ctx, text)
	}

	return criteria, nil
}

// AgeWindow returns [age-8, age+8] with the lower bound clamped to 18. A
// missing or unparseable birth date yields [18, 99].
func AgeWindow(birthDate string, now time.Time) (int, int) {
	age, ok := Age(birthDate, now)
	if !ok {
		return models.MinAge, models.MaxAge
	}

	return max(age-AgeDelta, models.MinAge), age + AgeDelta
}

// Age returns the full years since birth computed as days / 365.
func Age(birthDate string, now time.Time) (int, bool) {
	bdate, err := models.ParseBirthDate(birthDate)
	if err != nil {
		return 0, false
	}

	days := int(now.UTC().Sub(bdate).Hours() / 24)
	age := days / 365
	if age <= 0 {
		return 0, false
	}

	return age, true
}
