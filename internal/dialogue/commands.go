package dialogue

import (
	"fmt"
	"slices"
	"strings"

	"github.com/spigell/love-machine/internal/models"
)

// Command is a recognized user command. Any other text starts a search.
type Command int

const (
	CommandNone Command = iota
	CommandNext
	CommandFavorite
	CommandBlacklist
	CommandFavorites
	CommandClear
)

// Button labels.
const (
	LabelNext      = "next"
	LabelFavorite  = "favorite"
	LabelBlacklist = "blacklist"
	LabelFavorites = "favorites"
	LabelClear     = "clear"
)

var aliases = map[Command][]string{
	CommandNext:      {LabelNext, "дальше"},
	CommandFavorite:  {LabelFavorite, "в избранное"},
	CommandBlacklist: {LabelBlacklist, "в черный список"},
	CommandFavorites: {LabelFavorites, "избранное"},
	CommandClear:     {LabelClear, "очистить", "очистить избранное"},
}

// ParseCommand recognizes the command in a message. Matching ignores case,
// surrounding spaces and a leading slash.
func ParseCommand(text string) Command {
	text = strings.ToLower(strings.TrimSpace(text))
	text = strings.TrimPrefix(text, "/")
	text = strings.ReplaceAll(text, "ё", "е")

	for cmd, words := range aliases {
		if slices.Contains(words, text) {
			return cmd
		}
	}
	return CommandNone
}

// KeyboardLayout returns the button rows shown under every message.
func KeyboardLayout() [][]string {
	return [][]string{
		{LabelNext},
		{LabelFavorite, LabelBlacklist},
		{LabelFavorites, LabelClear},
	}
}

const (
	msgSearching     = "Looking for people who might suit you. The first offer will arrive soon."
	msgPleaseWait    = "Your request is already being processed, please wait."
	msgUseButtons    = "Please use the buttons below: next, favorite, blacklist, favorites or clear."
	msgNoOffers      = "There are no more offers for you right now. Write me later to start a new search."
	msgOffersOver    = "That was the last offer for now. Write me later to start a new search."
	msgNoSuggestion  = "There is no offer to mark yet. Write me anything to start a search."
	msgFavoriteSaved = "Added to favorites."
	msgBlacklisted   = "Added to the blacklist. This person will not be offered again."
	msgGone          = "This person is no longer available."
	msgFavoritesNone = "Your favorites list is empty."
	msgCleared       = "Favorites list cleared."
	msgFailure       = "Something went wrong, please try again later."
	msgProfileFailed = "I could not read your profile, please try again later."
)

func criteriaNotice(err *models.CriteriaError) string {
	return fmt.Sprintf("I cannot search for you: %s. Please fill it in your profile and write me again.", err.Reason)
}

func favoritesText(favorites []models.Candidate) string {
	if len(favorites) == 0 {
		return msgFavoritesNone
	}

	var b strings.Builder
	b.WriteString("Your favorites:")
	for i := range favorites {
		fmt.Fprintf(&b, "\n%d. %s %s", i+1, favorites[i].Name(), favorites[i].ProfileLink())
	}
	return b.String()
}
