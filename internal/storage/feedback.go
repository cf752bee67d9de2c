package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hansei-ai/hansei/internal/model"
)

// SubmitFeedbackParams carries everything the feedback transaction needs.
// Adjustment.Value and Adjustment.Type are computed by the caller before
// the transaction starts; storage only persists them.
type SubmitFeedbackParams struct {
	ThoughtID  uuid.UUID
	UserID     uuid.UUID
	Tags       model.FeedbackTags
	Correction *model.Corrections
	Comment    *string
	Adjustment model.Adjustment
}

// SubmitFeedbackTx runs the feedback submission as one transaction: lock
// and load the thought, insert the feedback row, bump feedback_count,
// insert the adjustment, and fork a corrected version when the feedback
// flags a wrong assumption and carries corrections. The returned thought
// is the fork child, or nil when no fork happened. Any failure, including
// ErrConflict from the fork, rolls back every step.
func (db *DB) SubmitFeedbackTx(ctx context.Context, p SubmitFeedbackParams) (model.Feedback, *model.Thought, error) {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return model.Feedback{}, nil, fmt.Errorf("storage: begin feedback: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	thought, err := getThoughtForUpdate(ctx, tx, p.ThoughtID)
	if err != nil {
		return model.Feedback{}, nil, err
	}

	now := time.Now().UTC()
	fb := model.Feedback{
		ID:          uuid.New(),
		ThoughtID:   p.ThoughtID,
		UserID:      p.UserID,
		Tags:        p.Tags,
		Corrections: p.Correction,
		Comment:     p.Comment,
		CreatedAt:   now,
	}

	var correctedVerdict *model.Verdict
	var correctedConfidence *int
	var correctedTimeline *string
	if p.Correction != nil {
		correctedVerdict = p.Correction.Verdict
		correctedConfidence = p.Correction.Confidence
		correctedTimeline = p.Correction.Timeline
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO feedback (id, thought_id, user_id,
		 too_optimistic, too_conservative, wrong_assumption, missing_context, correct,
		 corrected_verdict, corrected_confidence, corrected_timeline, comment, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		fb.ID, fb.ThoughtID, fb.UserID,
		fb.Tags.TooOptimistic, fb.Tags.TooConservative, fb.Tags.WrongAssumption,
		fb.Tags.MissingContext, fb.Tags.Correct,
		correctedVerdict, correctedConfidence, correctedTimeline, fb.Comment, fb.CreatedAt,
	); err != nil {
		return model.Feedback{}, nil, fmt.Errorf("storage: insert feedback: %w", err)
	}

	// Atomic SQL increment; never read-modify-write from Go.
	if _, err := tx.Exec(ctx,
		`UPDATE thoughts SET feedback_count = feedback_count + 1, updated_at = $1 WHERE id = $2`,
		now, p.ThoughtID,
	); err != nil {
		return model.Feedback{}, nil, fmt.Errorf("storage: increment feedback count: %w", err)
	}

	adj := p.Adjustment
	if adj.ID == uuid.Nil {
		adj.ID = uuid.New()
	}
	adj.UserID = p.UserID
	adj.FeedbackID = fb.ID
	adj.CreatedAt = now
	if _, err := tx.Exec(ctx,
		`INSERT INTO adjustments (id, user_id, feedback_id, value, adjustment_type, applies_to_future, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		adj.ID, adj.UserID, adj.FeedbackID, adj.Value, adj.Type, adj.AppliesToFuture, adj.CreatedAt,
	); err != nil {
		return model.Feedback{}, nil, fmt.Errorf("storage: insert adjustment: %w", err)
	}

	var child *model.Thought
	if p.Tags.WrongAssumption && p.Correction != nil {
		reasoning := correctionReasoning(thought, p.Comment)
		forked, err := forkLocked(ctx, tx, thought, ForkOverrides{
			Verdict:    correctedVerdict,
			Confidence: correctedConfidence,
			Timeline:   correctedTimeline,
			Reasoning:  &reasoning,
		})
		if err != nil {
			return model.Feedback{}, nil, err
		}
		child = &forked
	}

	if err := tx.Commit(ctx); err != nil {
		return model.Feedback{}, nil, fmt.Errorf("storage: commit feedback: %w", err)
	}
	return fb, child, nil
}

// ListFeedbackByThought returns all feedback for one thought version,
// oldest first.
func (db *DB) ListFeedbackByThought(ctx context.Context, thoughtID uuid.UUID) ([]model.Feedback, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id, thought_id, user_id,
		 too_optimistic, too_conservative, wrong_assumption, missing_context, correct,
		 corrected_verdict, corrected_confidence, corrected_timeline, comment, created_at
		 FROM feedback WHERE thought_id = $1 ORDER BY created_at ASC`,
		thoughtID,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: list feedback: %w", err)
	}
	defer rows.Close()

	var out []model.Feedback
	for rows.Next() {
		var fb model.Feedback
		var cv *model.Verdict
		var cc *int
		var ct *string
		if err := rows.Scan(
			&fb.ID, &fb.ThoughtID, &fb.UserID,
			&fb.Tags.TooOptimistic, &fb.Tags.TooConservative, &fb.Tags.WrongAssumption,
			&fb.Tags.MissingContext, &fb.Tags.Correct,
			&cv, &cc, &ct, &fb.Comment, &fb.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("storage: scan feedback: %w", err)
		}
		if cv != nil || cc != nil || ct != nil {
			fb.Corrections = &model.Corrections{Verdict: cv, Confidence: cc, Timeline: ct}
		}
		out = append(out, fb)
	}
	return out, rows.Err()
}

// correctionReasoning builds the reasoning line recorded on a fork child.
// The comment wins when present; otherwise the parent's reasoning carries
// over behind the marker so the child never loses its rationale.
func correctionReasoning(parent model.Thought, comment *string) string {
	const marker = "Corrected via feedback: "
	if comment != nil && *comment != "" {
		return marker + *comment
	}
	if parent.Reasoning != nil {
		return marker + *parent.Reasoning
	}
	return marker + "no comment provided"
}
