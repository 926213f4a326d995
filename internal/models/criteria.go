package models

// Age bounds of the search window.
const (
	MinAge = 18
	MaxAge = 99
)

// Criteria is the immutable search snapshot of a session.
type Criteria struct {
	// CityID of zero means the search is not constrained by city.
	CityID    int
	Gender    Gender
	AgeFrom   int
	AgeTo     int
	Interests []string
}
