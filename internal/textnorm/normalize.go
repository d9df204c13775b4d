// Package textnorm canonicalizes message text so that trigger matching
// survives the usual evasion tricks: casing, leetspeak, spacing,
// punctuation and stretched letters.
package textnorm

import (
	"strings"
	"unicode"
)

// leet maps the leetspeak substitutions applied before stripping. The map
// is fixed; extending it changes what counts as a match everywhere.
var leet = map[rune]rune{
	'0': 'o',
	'1': 'i',
	'3': 'e',
	'4': 'a',
	'5': 's',
	'7': 't',
	'8': 'b',
	'@': 'a',
	'$': 's',
	'!': 'i',
}

const strippedPunct = ".,;:?'\"`~^*()[]{}<>-_=+/\\|&%#"

// Normalize lowers, de-leets, strips whitespace and punctuation, and
// collapses repeated runes. The pass order matters: leet substitution must
// run before punctuation stripping ("f4ck!" keeps its letters), and repeat
// collapsing runs last so "shhhit" and "fuuuck" still land on their
// canonical forms. Normalize is idempotent.
func Normalize(text string) string {
	if text == "" {
		return ""
	}

	var b strings.Builder
	b.Grow(len(text))

	var last rune = -1
	for _, r := range strings.ToLower(text) {
		if sub, ok := leet[r]; ok {
			r = sub
		}
		if unicode.IsSpace(r) || strings.ContainsRune(strippedPunct, r) {
			continue
		}
		if r == last {
			continue
		}
		b.WriteRune(r)
		last = r
	}

	return b.String()
}

// Contains reports whether the normalized form of trigger is a non-empty
// substring of the normalized form of text. Substring (not equality) is the
// matching rule everywhere in this bot; short triggers matching inside
// longer words is an accepted trade-off.
func Contains(text, trigger string) bool {
	t := Normalize(trigger)
	if t == "" {
		return false
	}
	return strings.Contains(Normalize(text), t)
}
