package match

import (
	"context"
	"sort"

	"github.com/spigell/love-machine/internal/models"
)

// Rank moves candidates sharing interests with the criteria to the front,
// ordered by descending number of matching keywords. Candidates without
// matches keep their relative order after them. Ties among equal counts keep
// input order. No candidate is dropped or duplicated.
//
// This is a partition by overlap count, not a relevance score.
func Rank(ctx context.Context, canon Canonicalizer, interests []string, candidates []models.Candidate) []models.Candidate {
	ranked := make([]models.Candidate, len(candidates))
	copy(ranked, candidates)

	if len(interests) == 0 || canon == nil {
		return ranked
	}

	counts := make(map[int64]int, len(ranked))
	for i, keywords := range canonicalize(ctx, canon, ranked) {
		counts[ranked[i].ID] = Overlap(interests, keywords)
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return counts[ranked[i].ID] > counts[ranked[j].ID]
	})

	return ranked
}

// BatchCanonicalizer canonicalizes many texts in one pass. Rank prefers it
// when the Canonicalizer implements it, so a remote tagger is asked once per
// batch.
type BatchCanonicalizer interface {
	CanonicalizeAll(ctx context.Context, texts []string) [][]string
}

func canonicalize(ctx context.Context, canon Canonicalizer, candidates []models.Candidate) [][]string {
	texts := make([]string, len(candidates))
	for i, c := range candidates {
		texts[i] = c.Interests
	}

	if batch, ok := canon.(BatchCanonicalizer); ok {
		if result := batch.CanonicalizeAll(ctx, texts); len(result) == len(texts) {
			return result
		}
	}

	result := make([][]string, len(texts))
	for i, text := range texts {
		if text != "" {
			result[i] = canon.Canonicalize(ctx, text)
		}
	}
	return result
}

// Overlap counts exact keyword matches between two canonical sets.
func Overlap(target, keywords []string) int {
	count := 0
	for _, t := range target {
		for _, k := range keywords {
			if t == k {
				count++
			}
		}
	}
	return count
}
