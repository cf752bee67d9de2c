package model

import (
	"time"

	"github.com/google/uuid"
)

// FeedbackTags are the five independent judgment flags a user can attach
// to a thought version. They are not mutually exclusive, and all-false is
// legal (a neutral observation).
type FeedbackTags struct {
	TooOptimistic   bool `json:"too_optimistic"`
	TooConservative bool `json:"too_conservative"`
	WrongAssumption bool `json:"wrong_assumption"`
	MissingContext  bool `json:"missing_context"`
	Correct         bool `json:"correct"`
}

// Corrections carries the user's corrected judgment. Only meaningful when
// WrongAssumption is set; the fork copies the parent and overrides these.
type Corrections struct {
	Verdict    *Verdict `json:"verdict,omitempty"`
	Confidence *int     `json:"confidence,omitempty"`
	Timeline   *string  `json:"timeline,omitempty"`
}

// Feedback is one immutable judgment about one thought version.
type Feedback struct {
	ID          uuid.UUID    `json:"id"`
	ThoughtID   uuid.UUID    `json:"thought_id"`
	UserID      uuid.UUID    `json:"user_id"`
	Tags        FeedbackTags `json:"tags"`
	Corrections *Corrections `json:"corrections,omitempty"`
	Comment     *string      `json:"comment,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
}

// AdjustmentType is the categorical label for an adjustment, chosen by
// fixed tag priority independent of the numeric value.
type AdjustmentType string

const (
	AdjustmentWrongAssumption AdjustmentType = "wrong_assumption"
	AdjustmentTooOptimistic   AdjustmentType = "too_optimistic"
	AdjustmentTooConservative AdjustmentType = "too_conservative"
	AdjustmentMissingContext  AdjustmentType = "missing_context"
	AdjustmentGeneralFeedback AdjustmentType = "general_feedback"
)

// Adjustment is the computed effect of one feedback record. Exactly one
// exists per feedback, created in the same transaction.
type Adjustment struct {
	ID              uuid.UUID      `json:"id"`
	UserID          uuid.UUID      `json:"user_id"`
	FeedbackID      uuid.UUID      `json:"feedback_id"`
	Value           float64        `json:"value"`
	Type            AdjustmentType `json:"type"`
	AppliesToFuture bool           `json:"applies_to_future"`
	CreatedAt       time.Time      `json:"created_at"`
}

// TagCounts holds per-tag feedback counts for one user and window.
type TagCounts struct {
	TooOptimistic   int
	TooConservative int
	WrongAssumption int
	MissingContext  int
	Correct         int
}

// IssueCount is one entry of the ranked issue list.
type IssueCount struct {
	Tag   string `json:"tag"`
	Count int    `json:"count"`
}

// FeedbackStats summarises a user's feedback behaviour. AccuracyTrend is
// a raw chronological series (oldest first), not a moving average.
// AverageAdjustment covers all time, not just the window.
type FeedbackStats struct {
	TotalFeedback     int            `json:"total_feedback"`
	TagDistribution   map[string]int `json:"tag_distribution"`
	AccuracyTrend     []bool         `json:"accuracy_trend"`
	IssueFrequency    []IssueCount   `json:"issue_frequency"`
	AverageAdjustment string         `json:"average_adjustment"`
	WindowDays        int            `json:"window_days"`
}
