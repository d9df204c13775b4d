// Package classifier assigns a trigger category to raw message text by
// scanning ordered phrase sets against the normalized input.
package classifier

import (
	"strings"

	"github.com/guard-tgbot-go/internal/models"
	"github.com/guard-tgbot-go/internal/textnorm"
)

// botIdentityMarker routes "is this about the bot" questions that none of
// the phrase sets caught.
const botIdentityMarker = "bot"

// PhraseSets holds the three configured trigger phrase lists. Scan order is
// fixed: affirming, then hostile, then vulgar; within a list, declaration
// order. The sets are loaded once at startup and never mutated.
type PhraseSets struct {
	Affirming []string
	Hostile   []string
	Vulgar    []string
}

// Classifier is a pure matcher over its phrase sets.
type Classifier struct {
	ordered []categorySet
}

type categorySet struct {
	category models.Category
	phrases  []string
}

// New builds a classifier. Phrase normalization happens once here rather
// than on every Classify call.
func New(sets PhraseSets) *Classifier {
	normalizeAll := func(phrases []string) []string {
		out := make([]string, 0, len(phrases))
		for _, p := range phrases {
			if n := textnorm.Normalize(p); n != "" {
				out = append(out, n)
			}
		}
		return out
	}

	return &Classifier{
		ordered: []categorySet{
			{category: models.CategoryAffirming, phrases: normalizeAll(sets.Affirming)},
			{category: models.CategoryHostile, phrases: normalizeAll(sets.Hostile)},
			{category: models.CategoryVulgar, phrases: normalizeAll(sets.Vulgar)},
		},
	}
}

// Classify returns the category of the first phrase, in set order then list
// order, whose normalized form is a substring of the normalized input.
// When no phrase matches but the normalized input mentions the bot itself,
// CategoryBotIdentity is returned. Empty input yields CategoryNone.
func (c *Classifier) Classify(rawText string) models.Category {
	normalized := textnorm.Normalize(rawText)
	if normalized == "" {
		return models.CategoryNone
	}

	for _, set := range c.ordered {
		for _, phrase := range set.phrases {
			if strings.Contains(normalized, phrase) {
				return set.category
			}
		}
	}

	if strings.Contains(normalized, botIdentityMarker) {
		return models.CategoryBotIdentity
	}

	return models.CategoryNone
}
