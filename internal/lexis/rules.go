package lexis

import (
	"context"
	"strings"
	"unicode"
)

var (
	infinitiveEndings = []string{"ться", "тись", "ть", "ти", "чь"}

	// Finite verb forms: present/future persons and past tense.
	verbEndings = []string{
		"ешь", "ете", "ишь", "ите", "ет", "ем", "ут", "ют", "ит", "им", "ат", "ят",
		"ал", "ала", "али", "ил", "ила", "или", "ел", "ела", "ели",
		"лю", "жу", "шу", "чу", "щу", "аю", "яю", "ую", "юсь", "усь",
	}

	adjectiveEndings = []string{
		"ый", "ий", "ой", "ая", "яя", "ое", "ее", "ые", "ие",
		"ого", "его", "ому", "ему", "ыми", "ими", "ую", "юю",
	}

	// Short function words that pass the length filter.
	otherWords = map[string]struct{}{
		"очень": {}, "также": {}, "тоже": {}, "когда": {}, "всего": {}, "много": {},
		"люблю": {}, "нравится": {}, "обожаю": {}, "иногда": {}, "часто": {},
		"with": {}, "and": {}, "love": {}, "like": {}, "from": {}, "that": {}, "this": {},
	}
)

// RuleTagger is a suffix-based tagger for Russian. Latin words are nouns
// unless they are in the function-word list.
type RuleTagger struct{}

func NewRuleTagger() *RuleTagger {
	return &RuleTagger{}
}

func (t *RuleTagger) Tag(_ context.Context, words []string) (map[string]Tag, error) {
	tags := make(map[string]Tag, len(words))
	for _, word := range words {
		tags[word] = tagWord(word)
	}
	return tags, nil
}

func tagWord(word string) Tag {
	if _, ok := otherWords[word]; ok {
		return TagOther
	}

	if !isCyrillic(word) {
		return TagNoun
	}

	if hasSuffix(word, infinitiveEndings) {
		return TagInfinitive
	}

	if hasSuffix(word, adjectiveEndings) || hasSuffix(word, verbEndings) {
		return TagOther
	}

	return TagNoun
}

func hasSuffix(word string, endings []string) bool {
	for _, e := range endings {
		if strings.HasSuffix(word, e) {
			return true
		}
	}
	return false
}

func isCyrillic(word string) bool {
	for _, r := range word {
		if unicode.Is(unicode.Cyrillic, r) {
			return true
		}
	}
	return false
}
