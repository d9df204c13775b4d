package models

import (
	"time"
)

// Category is the trigger classification assigned to an inbound message.
type Category string

const (
	CategoryNone        Category = ""
	CategoryAffirming   Category = "affirming"
	CategoryHostile     Category = "hostile"
	CategoryVulgar      Category = "vulgar"
	CategoryBotIdentity Category = "botidentity"
)

// ReplySource records where a resolved reply's text came from.
type ReplySource string

const (
	SourceNone       ReplySource = "none"
	SourceGenerative ReplySource = "generative"
	SourceStatic     ReplySource = "static"
	SourceBurst      ReplySource = "burst"
)

// ChatMessage is one inbound message event. It lives for the duration of a
// single handler invocation; only derived entries (history lines, burst
// entries) outlive it, and only inside the TTL-bounded store.
type ChatMessage struct {
	ChatID      int64
	UserID      int64
	DisplayName string
	Text        string
	MessageID   int
	IsBot       bool
	Timestamp   time.Time
}

// ReplyDecision is the verdict for one inbound event: either send Text in
// reply to ReplyToMessageID in ChatID, or do nothing.
type ReplyDecision struct {
	Send             bool
	Text             string
	ChatID           int64
	ReplyToMessageID int
	Category         Category
	Source           ReplySource
}

// NoAction is the terminal "send nothing" decision for a category.
func NoAction(category Category) ReplyDecision {
	return ReplyDecision{Category: category, Source: SourceNone}
}

// BurstEntry is one buffered message from a flagged noisy sender.
type BurstEntry struct {
	Text      string    `json:"text"`
	MessageID int       `json:"message_id"`
	Timestamp time.Time `json:"timestamp"`
}
