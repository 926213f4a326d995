// Package lexis turns free-text interests into canonical keyword sets that can
// be compared between profiles.
package lexis

import (
	"context"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"go.uber.org/zap"
)

// Tag is the part of speech assigned to a word.
type Tag int

const (
	TagOther Tag = iota
	TagNoun
	TagInfinitive
)

func (t Tag) String() string {
	switch t {
	case TagNoun:
		return "noun"
	case TagInfinitive:
		return "infinitive"
	default:
		return "other"
	}
}

// ParseTag maps a textual tag to Tag. Unknown values are TagOther.
func ParseTag(s string) Tag {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "noun":
		return TagNoun
	case "infinitive", "infn":
		return TagInfinitive
	default:
		return TagOther
	}
}

// Tagger assigns parts of speech to lower-cased words.
type Tagger interface {
	Tag(ctx context.Context, words []string) (map[string]Tag, error)
}

const minWordLength = 4

// stopList holds generic activity verbs that say nothing about interests.
var stopList = map[string]struct{}{
	"ходить":     {},
	"смотреть":   {},
	"играть":     {},
	"делать":     {},
	"заниматься": {},
	"слушать":    {},
}

// Analyzer canonicalizes interest text. When the primary tagger fails the
// rule-based tagger is used so that canonicalization never fails.
type Analyzer struct {
	tagger   Tagger
	fallback Tagger
	logger   *zap.Logger
}

// New creates an Analyzer. A nil tagger means rule-based tagging only.
func New(tagger Tagger, logger *zap.Logger) *Analyzer {
	if logger == nil {
		logger = zap.NewNop()
	}

	fallback := NewRuleTagger()
	if tagger == nil {
		tagger = fallback
	}

	return &Analyzer{
		tagger:   tagger,
		fallback: fallback,
		logger:   logger,
	}
}

// Canonicalize returns the sorted nouns and non stop-listed infinitives of text.
func (a *Analyzer) Canonicalize(ctx context.Context, text string) []string {
	words := Tokenize(text)
	if len(words) == 0 {
		return []string{}
	}

	return keywords(words, a.tag(ctx, unique(words)))
}

// CanonicalizeAll canonicalizes every text with a single tagger call over the
// union of their words.
func (a *Analyzer) CanonicalizeAll(ctx context.Context, texts []string) [][]string {
	tokens := make([][]string, len(texts))
	var all []string
	for i, text := range texts {
		tokens[i] = Tokenize(text)
		all = append(all, tokens[i]...)
	}

	var tags map[string]Tag
	if len(all) > 0 {
		tags = a.tag(ctx, unique(all))
	}

	result := make([][]string, len(texts))
	for i, words := range tokens {
		result[i] = keywords(words, tags)
	}
	return result
}

func (a *Analyzer) tag(ctx context.Context, words []string) map[string]Tag {
	tags, err := a.tagger.Tag(ctx, words)
	if err != nil {
		a.logger.Warn("tagging failed, falling back to rules", zap.Error(err))
		// The rule tagger does not fail.
		tags, _ = a.fallback.Tag(ctx, words)
	}
	return tags
}

func keywords(words []string, tags map[string]Tag) []string {
	result := make([]string, 0, len(words))
	for _, word := range words {
		switch tags[word] {
		case TagNoun:
			result = append(result, word)
		case TagInfinitive:
			if _, stop := stopList[word]; !stop {
				result = append(result, word)
			}
		}
	}

	sort.Strings(result)
	return result
}

// Tokenize splits text on whitespace, strips punctuation, lower-cases and drops
// words shorter than four characters.
func Tokenize(text string) []string {
	fields := strings.Fields(text)
	words := make([]string, 0, len(fields))
	for _, field := range fields {
		word := strings.ToLower(strings.Map(func(r rune) rune {
			if unicode.IsPunct(r) || unicode.IsSymbol(r) {
				return -1
			}
			return r
		}, field))

		if utf8.RuneCountInString(word) < minWordLength {
			continue
		}
		words = append(words, word)
	}
	return words
}

func unique(words []string) []string {
	seen := make(map[string]struct{}, len(words))
	result := make([]string, 0, len(words))
	for _, w := range words {
		if _, ok := seen[w]; ok {
			continue
		}
		seen[w] = struct{}{}
		result = append(result, w)
	}
	return result
}
