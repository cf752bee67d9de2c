package model

import (
	"time"

	"github.com/google/uuid"
)

// Verdict is the categorical recommendation attached to a thought.
type Verdict string

const (
	VerdictPursue    Verdict = "pursue"
	VerdictExplore   Verdict = "explore"
	VerdictWatchlist Verdict = "watchlist"
	VerdictIgnore    Verdict = "ignore"
	VerdictArchive   Verdict = "archive"
)

// ValidVerdict reports whether v is one of the recognised verdicts.
func ValidVerdict(v Verdict) bool {
	switch v {
	case VerdictPursue, VerdictExplore, VerdictWatchlist, VerdictIgnore, VerdictArchive:
		return true
	}
	return false
}

// ActionItem is one step in a thought's ordered action plan.
type ActionItem struct {
	Text string `json:"text"`
	Done bool   `json:"done"`
}

// Thought is one immutable snapshot of a logged decision.
// Versions form a singly-linked chain through ParentID; the Revision
// Forker is the only writer that retires a version (IsCurrent=false),
// and a retired version is never modified again.
type Thought struct {
	ID          uuid.UUID      `json:"id"`
	JournalID   uuid.UUID      `json:"journal_id"`
	ParentID    *uuid.UUID     `json:"parent_id,omitempty"`
	Title       string         `json:"title"`
	Content     string         `json:"content"`
	Verdict     Verdict        `json:"verdict"`
	Confidence  int            `json:"confidence"` // 0-100
	Reasoning   *string        `json:"reasoning,omitempty"`
	Timeline    *string        `json:"timeline,omitempty"`
	ActionItems []ActionItem   `json:"action_items"`
	ReasonCodes []string       `json:"reason_codes"`
	Evidence    map[string]any `json:"evidence"`
	Sources     []string       `json:"sources"`

	// Version chain state. Version numbers increase by exactly 1 from
	// parent to child; at most one record per chain has IsCurrent=true.
	Version   int  `json:"version"`
	IsCurrent bool `json:"is_current"`

	// Advisory counter, not invariant-critical.
	FeedbackCount int `json:"feedback_count"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// User owns journals, feedback, and adjustments. Deleting a user cascades
// through everything they own; nothing else is ever deleted.
type User struct {
	ID        uuid.UUID `json:"id"`
	Handle    string    `json:"handle"`
	CreatedAt time.Time `json:"created_at"`
}

// Journal groups a user's thoughts. CRUD beyond creation is out of scope.
type Journal struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}
