// Package feedback provides the business logic for the feedback ledger:
// validating submissions, computing the implied adjustment, and running
// the atomic submission transaction, including the corrective fork.
package feedback

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/hansei-ai/hansei/internal/adjust"
	"github.com/hansei-ai/hansei/internal/model"
	"github.com/hansei-ai/hansei/internal/storage"
	"github.com/hansei-ai/hansei/internal/telemetry"
)

// Service encapsulates feedback submission.
type Service struct {
	db     *storage.DB
	logger *slog.Logger

	submitDuration metric.Float64Histogram
	forksTotal     metric.Int64Counter
}

// New creates a feedback Service.
func New(db *storage.DB, logger *slog.Logger) *Service {
	meter := telemetry.Meter("hansei/feedback")
	submitDur, _ := meter.Float64Histogram("hansei.feedback.submit.duration",
		metric.WithDescription("Feedback submission transaction time (ms)"),
		metric.WithUnit("ms"),
	)
	forks, _ := meter.Int64Counter("hansei.feedback.forks",
		metric.WithDescription("Corrective forks triggered by feedback"),
	)
	return &Service{
		db:             db,
		logger:         logger,
		submitDuration: submitDur,
		forksTotal:     forks,
	}
}

// Result is the outcome of one feedback submission. Forked is non-nil
// only when the feedback triggered a corrective fork.
type Result struct {
	Feedback   model.Feedback
	Adjustment model.Adjustment
	Forked     *model.Thought
}

// Submit validates the request, computes its adjustment, and runs the
// submission transaction. All writes (feedback row, counter bump,
// adjustment, optional fork) commit together or not at all; a concurrent
// fork of the same version surfaces as storage.ErrConflict with nothing
// written.
func (s *Service) Submit(ctx context.Context, thoughtID uuid.UUID, req model.SubmitFeedbackRequest) (Result, error) {
	if err := model.ValidateSubmitFeedback(req); err != nil {
		return Result{}, err
	}

	value, adjType := adjust.Compute(req.Tags)
	// The ID is generated here so the returned adjustment identifies the
	// persisted row; storage keeps a caller-supplied ID as is.
	adj := model.Adjustment{
		ID:              uuid.New(),
		Value:           value,
		Type:            adjType,
		AppliesToFuture: value != 0,
	}

	span := trace.SpanFromContext(ctx)
	span.SetAttributes(
		attribute.String("hansei.thought_id", thoughtID.String()),
		attribute.String("hansei.adjustment_type", string(adjType)),
	)

	start := time.Now()
	fb, forked, err := s.db.SubmitFeedbackTx(ctx, storage.SubmitFeedbackParams{
		ThoughtID:  thoughtID,
		UserID:     req.UserID,
		Tags:       req.Tags,
		Correction: req.Corrections,
		Comment:    req.Comment,
		Adjustment: adj,
	})
	s.submitDuration.Record(ctx, float64(time.Since(start).Milliseconds()))
	if err != nil {
		return Result{}, err
	}

	adj.UserID = req.UserID
	adj.FeedbackID = fb.ID
	adj.CreatedAt = fb.CreatedAt

	if forked != nil {
		s.forksTotal.Add(ctx, 1)
		s.logger.Info("feedback triggered corrective fork",
			"thought_id", thoughtID, "fork_id", forked.ID, "version", forked.Version)
	}

	return Result{Feedback: fb, Adjustment: adj, Forked: forked}, nil
}

// ListByThought returns the feedback trail for one thought version,
// oldest first.
func (s *Service) ListByThought(ctx context.Context, thoughtID uuid.UUID) ([]model.Feedback, error) {
	return s.db.ListFeedbackByThought(ctx, thoughtID)
}
