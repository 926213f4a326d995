package models

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

const (
	profileURL = "https://vk.com/id%d"
	// MaxMedia is the number of photos attached to a suggestion.
	MaxMedia = 3
)

// Media is a photo reference of a candidate.
type Media struct {
	// Ref is the attachment reference, e.g. photo1_457239017.
	Ref        string
	URL        string
	Popularity int
}

// Candidate is a prospective match. Candidates are immutable once queued.
type Candidate struct {
	ID        int64
	FirstName string
	LastName  string
	Gender    Gender
	BirthDate time.Time
	CityID    int
	Interests string
	Media     []Media
}

func (c *Candidate) Name() string {
	return strings.TrimSpace(c.FirstName + " " + c.LastName)
}

func (c *Candidate) ProfileLink() string {
	return fmt.Sprintf(profileURL, c.ID)
}

func (c *Candidate) MediaRefs() []string {
	refs := make([]string, 0, len(c.Media))
	for _, m := range c.Media {
		refs = append(refs, m.Ref)
	}
	return refs
}

// CandidateFromProfile converts a search result into a candidate. Birth date,
// city and gender are mandatory; a profile lacking any of them is malformed.
func CandidateFromProfile(p *Profile) (Candidate, error) {
	if p == nil {
		return Candidate{}, fmt.Errorf("%w: nil profile", ErrMalformedCandidate)
	}

	if !p.Gender.Valid() {
		return Candidate{}, fmt.Errorf("%w: id %d: gender is not set", ErrMalformedCandidate, p.ID)
	}

	if p.CityID == 0 {
		return Candidate{}, fmt.Errorf("%w: id %d: city is not set", ErrMalformedCandidate, p.ID)
	}

	bdate, err := ParseBirthDate(p.BirthDate)
	if err != nil {
		return Candidate{}, fmt.Errorf("%w: id %d: %v", ErrMalformedCandidate, p.ID, err)
	}

	return Candidate{
		ID:        p.ID,
		FirstName: p.FirstName,
		LastName:  p.LastName,
		Gender:    p.Gender,
		BirthDate: bdate,
		CityID:    p.CityID,
		Interests: p.Interests,
	}, nil
}

// TopMedia deduplicates media by reference and returns at most limit items
// ordered by descending popularity.
func TopMedia(media []Media, limit int) []Media {
	unique := make(map[string]Media, len(media))
	for _, m := range media {
		if m.Ref == "" {
			continue
		}
		if existing, ok := unique[m.Ref]; ok && existing.Popularity >= m.Popularity {
			continue
		}
		unique[m.Ref] = m
	}

	result := make([]Media, 0, len(unique))
	for _, m := range unique {
		result = append(result, m)
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Popularity != result[j].Popularity {
			return result[i].Popularity > result[j].Popularity
		}
		return result[i].Ref < result[j].Ref
	})

	if limit >= 0 && len(result) > limit {
		result = result[:limit]
	}

	return result
}
