package models

import (
	"fmt"
	"strings"
	"time"
)

// Gender follows the VK sex codes.
type Gender int

const (
	GenderUnknown Gender = 0
	GenderFemale  Gender = 1
	GenderMale    Gender = 2
)

// Opposite returns the default search target for the gender, or GenderUnknown
// when the gender itself is not resolved.
func (g Gender) Opposite() Gender {
	switch g {
	case GenderFemale:
		return GenderMale
	case GenderMale:
		return GenderFemale
	default:
		return GenderUnknown
	}
}

func (g Gender) Valid() bool {
	return g == GenderFemale || g == GenderMale
}

// BirthDateLayout is the full VK bdate format. Dates without a year ("21.9")
// are treated as unparseable.
const BirthDateLayout = "2.1.2006"

// Profile is a VK user as returned by users.get and users.search.
type Profile struct {
	ID          int64
	FirstName   string
	LastName    string
	Gender      Gender
	BirthDate   string
	CityID      int
	CityTitle   string
	Interests   string
	Deactivated string
	IsClosed    bool
}

// Active reports whether the account is neither deleted nor banned.
func (p *Profile) Active() bool {
	return p != nil && p.Deactivated == ""
}

// CheckActive returns an error wrapping ErrDeactivatedAccount when the account
// is deleted or banned.
func (p *Profile) CheckActive() error {
	if p == nil {
		return fmt.Errorf("%w: profile is missing", ErrDeactivatedAccount)
	}
	if p.Deactivated != "" {
		return fmt.Errorf("%w: %s", ErrDeactivatedAccount, p.Deactivated)
	}
	return nil
}

// ParseBirthDate parses the raw VK birth date.
func ParseBirthDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, fmt.Errorf("birth date is empty")
	}

	return time.Parse(BirthDateLayout, raw)
}

// Profiles is a list of search results passed through the filter chain.
type Profiles struct {
	Items []*Profile
}

func (p *Profiles) Len() int {
	return len(p.Items)
}

func (p *Profiles) IDs() []int64 {
	ids := make([]int64, 0, len(p.Items))
	for _, profile := range p.Items {
		ids = append(ids, profile.ID)
	}
	return ids
}

// Exclude removes every profile for which drop returns true and returns the
// removed ids. The order of the remaining profiles is preserved.
func (p *Profiles) Exclude(drop func(*Profile) bool) []int64 {
	var excluded []int64
	kept := p.Items[:0]
	for _, profile := range p.Items {
		if drop(profile) {
			excluded = append(excluded, profile.ID)
			continue
		}
		kept = append(kept, profile)
	}

	// Release references held by the tail of the backing array.
	for i := len(kept); i < len(p.Items); i++ {
		p.Items[i] = nil
	}
	p.Items = kept

	return excluded
}
