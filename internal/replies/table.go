// Package replies holds the static keyword reply table, the bot's last
// line of defense when the generative source is down or declines.
package replies

import (
	"strings"

	"github.com/guard-tgbot-go/internal/textnorm"
)

// Entry is one trigger → reply pair. Declaration order in config is the
// match priority order.
type Entry struct {
	Trigger string `mapstructure:"trigger"`
	Reply   string `mapstructure:"reply"`
}

// Table is an ordered first-match-wins lookup. It is pure and has no
// failure mode; every network dependency can be down and Lookup still
// answers.
type Table struct {
	entries []tableEntry
}

type tableEntry struct {
	normalized string
	reply      string
}

// NewTable normalizes the triggers once. Entries whose trigger normalizes
// to nothing are dropped rather than allowed to match everything.
func NewTable(entries []Entry) *Table {
	t := &Table{entries: make([]tableEntry, 0, len(entries))}
	for _, e := range entries {
		n := textnorm.Normalize(e.Trigger)
		if n == "" {
			continue
		}
		t.entries = append(t.entries, tableEntry{normalized: n, reply: e.Reply})
	}
	return t
}

// Lookup returns the reply of the first entry whose normalized trigger is a
// substring of the normalized input.
func (t *Table) Lookup(rawText string) (string, bool) {
	normalized := textnorm.Normalize(rawText)
	if normalized == "" {
		return "", false
	}
	for _, e := range t.entries {
		if strings.Contains(normalized, e.normalized) {
			return e.reply, true
		}
	}
	return "", false
}

// Len reports how many usable entries the table carries.
func (t *Table) Len() int {
	return len(t.entries)
}
