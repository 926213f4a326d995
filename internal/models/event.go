package models

// Event is an inbound message from a user.
type Event struct {
	UserID int64
	Text   string
}

// Suggestion is an outbound candidate card.
type Suggestion struct {
	CandidateID int64
	Name        string
	ProfileLink string
	MediaRefs   []string
}

// SuggestionFor builds the outbound card of a candidate.
func SuggestionFor(c *Candidate) Suggestion {
	return Suggestion{
		CandidateID: c.ID,
		Name:        c.Name(),
		ProfileLink: c.ProfileLink(),
		MediaRefs:   c.MediaRefs(),
	}
}
