package model

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrValidation marks malformed input rejected before any write. Wrap it
// with fmt.Errorf("%w: ...") so callers can errors.Is across the stack.
var ErrValidation = errors.New("validation")

// Field length limits. These keep caller-controlled text out of
// pathological territory for Postgres TEXT columns and log output.
const (
	MaxTitleLen     = 500
	MaxContentLen   = 64 * 1024 // 64 KB
	MaxReasoningLen = 64 * 1024 // 64 KB
	MaxCommentLen   = 8 * 1024  // 8 KB
	MaxActionItems  = 100
)

// CreateThoughtRequest is the payload for persisting version 1 of a
// thought, typically from a verdict produced by the external generator.
type CreateThoughtRequest struct {
	Title       string         `json:"title"`
	Content     string         `json:"content"`
	Verdict     Verdict        `json:"verdict"`
	Confidence  int            `json:"confidence"`
	Reasoning   *string        `json:"reasoning,omitempty"`
	Timeline    *string        `json:"timeline,omitempty"`
	ActionItems []ActionItem   `json:"action_items,omitempty"`
	ReasonCodes []string       `json:"reason_codes,omitempty"`
	Evidence    map[string]any `json:"evidence,omitempty"`
	Sources     []string       `json:"sources,omitempty"`

	// ApplyBias requests that the journal owner's accumulated adjustment
	// bias be folded into Confidence before the record is stored.
	ApplyBias bool `json:"apply_bias,omitempty"`
}

// ValidateCreateThought rejects malformed create payloads before any write.
func ValidateCreateThought(req CreateThoughtRequest) error {
	if req.Title == "" {
		return fmt.Errorf("%w: title is required", ErrValidation)
	}
	if len(req.Title) > MaxTitleLen {
		return fmt.Errorf("%w: title exceeds maximum length of %d characters", ErrValidation, MaxTitleLen)
	}
	if len(req.Content) > MaxContentLen {
		return fmt.Errorf("%w: content exceeds maximum length of %d bytes", ErrValidation, MaxContentLen)
	}
	if !ValidVerdict(req.Verdict) {
		return fmt.Errorf("%w: unknown verdict %q", ErrValidation, req.Verdict)
	}
	if req.Confidence < 0 || req.Confidence > 100 {
		return fmt.Errorf("%w: confidence must be within [0,100], got %d", ErrValidation, req.Confidence)
	}
	if req.Reasoning != nil && len(*req.Reasoning) > MaxReasoningLen {
		return fmt.Errorf("%w: reasoning exceeds maximum length of %d bytes", ErrValidation, MaxReasoningLen)
	}
	if len(req.ActionItems) > MaxActionItems {
		return fmt.Errorf("%w: at most %d action items allowed", ErrValidation, MaxActionItems)
	}
	return nil
}

// SubmitFeedbackRequest is the payload for judging a thought version.
type SubmitFeedbackRequest struct {
	UserID      uuid.UUID    `json:"user_id"`
	Tags        FeedbackTags `json:"tags"`
	Corrections *Corrections `json:"corrections,omitempty"`
	Comment     *string      `json:"comment,omitempty"`
}

// ValidateSubmitFeedback rejects malformed feedback before any write.
// Corrections are checked even when they will not trigger a fork, so bad
// input never reaches the ledger.
func ValidateSubmitFeedback(req SubmitFeedbackRequest) error {
	if req.UserID == uuid.Nil {
		return fmt.Errorf("%w: user_id is required", ErrValidation)
	}
	if req.Comment != nil && len(*req.Comment) > MaxCommentLen {
		return fmt.Errorf("%w: comment exceeds maximum length of %d bytes", ErrValidation, MaxCommentLen)
	}
	if c := req.Corrections; c != nil {
		if c.Verdict == nil && c.Confidence == nil && c.Timeline == nil {
			return fmt.Errorf("%w: corrections must set at least one of verdict, confidence, timeline", ErrValidation)
		}
		if c.Verdict != nil && !ValidVerdict(*c.Verdict) {
			return fmt.Errorf("%w: unknown corrected verdict %q", ErrValidation, *c.Verdict)
		}
		if c.Confidence != nil && (*c.Confidence < 0 || *c.Confidence > 100) {
			return fmt.Errorf("%w: corrected confidence must be within [0,100], got %d", ErrValidation, *c.Confidence)
		}
	}
	return nil
}

// APIResponse is the standard response envelope for all HTTP responses.
type APIResponse struct {
	Data any          `json:"data,omitempty"`
	Meta ResponseMeta `json:"meta"`
}

// APIError is the standard error response envelope.
type APIError struct {
	Error ErrorDetail  `json:"error"`
	Meta  ResponseMeta `json:"meta"`
}

// ErrorDetail carries a machine-readable code and a human-readable message.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ResponseMeta is attached to every response for request correlation.
type ResponseMeta struct {
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
}

// Error codes returned in ErrorDetail.Code.
const (
	ErrCodeInvalidInput  = "INVALID_INPUT"
	ErrCodeNotFound      = "NOT_FOUND"
	ErrCodeConflict      = "CONFLICT"
	ErrCodeInternalError = "INTERNAL_ERROR"
)
