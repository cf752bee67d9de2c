// Package thoughts provides the business logic for the versioned decision
// store: creating version 1 records, forking revisions, and walking the
// evolution chain.
package thoughts

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/hansei-ai/hansei/internal/model"
	"github.com/hansei-ai/hansei/internal/storage"
	"github.com/hansei-ai/hansei/internal/telemetry"
)

// BiasSource yields a user's accumulated adjustment bias, a bounded
// fraction folded into incoming confidence scores on request.
type BiasSource interface {
	AdjustmentBias(ctx context.Context, userID uuid.UUID) (float64, error)
}

// Service encapsulates versioned thought operations.
type Service struct {
	db     *storage.DB
	bias   BiasSource
	logger *slog.Logger

	createdTotal metric.Int64Counter
	forksTotal   metric.Int64Counter
}

// New creates a thought Service. bias may be nil, in which case bias
// application is skipped even when requested.
func New(db *storage.DB, bias BiasSource, logger *slog.Logger) *Service {
	meter := telemetry.Meter("hansei/thoughts")
	created, _ := meter.Int64Counter("hansei.thoughts.created",
		metric.WithDescription("Thought versions persisted"),
	)
	forks, _ := meter.Int64Counter("hansei.thoughts.forks",
		metric.WithDescription("Revision forks created"),
	)
	return &Service{
		db:           db,
		bias:         bias,
		logger:       logger,
		createdTotal: created,
		forksTotal:   forks,
	}
}

// Create validates and persists version 1 of a thought in journalID. When
// req.ApplyBias is set, the journal owner's accumulated adjustment bias is
// folded into the confidence before the record is stored.
func (s *Service) Create(ctx context.Context, journalID uuid.UUID, req model.CreateThoughtRequest) (model.Thought, error) {
	if err := model.ValidateCreateThought(req); err != nil {
		return model.Thought{}, err
	}

	journal, err := s.db.GetJournal(ctx, journalID)
	if err != nil {
		return model.Thought{}, err
	}

	confidence := req.Confidence
	if req.ApplyBias && s.bias != nil {
		bias, err := s.bias.AdjustmentBias(ctx, journal.UserID)
		if err != nil {
			return model.Thought{}, fmt.Errorf("thoughts: resolve bias: %w", err)
		}
		confidence = applyBias(req.Confidence, bias)
		if confidence != req.Confidence {
			s.logger.Debug("bias applied to incoming confidence",
				"user_id", journal.UserID, "raw", req.Confidence, "adjusted", confidence)
		}
	}

	span := trace.SpanFromContext(ctx)
	span.SetAttributes(
		attribute.String("hansei.journal_id", journalID.String()),
		attribute.String("hansei.verdict", string(req.Verdict)),
	)

	t, err := s.db.CreateThought(ctx, model.Thought{
		JournalID:   journalID,
		Title:       req.Title,
		Content:     req.Content,
		Verdict:     req.Verdict,
		Confidence:  confidence,
		Reasoning:   req.Reasoning,
		Timeline:    req.Timeline,
		ActionItems: req.ActionItems,
		ReasonCodes: req.ReasonCodes,
		Evidence:    req.Evidence,
		Sources:     req.Sources,
	})
	if err != nil {
		return model.Thought{}, err
	}

	s.createdTotal.Add(ctx, 1)
	return t, nil
}

// Get retrieves a single thought version.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (model.Thought, error) {
	return s.db.GetThought(ctx, id)
}

// Fork supersedes the given version with a revised copy. The parent must
// still be current; a retired parent yields storage.ErrConflict.
func (s *Service) Fork(ctx context.Context, parentID uuid.UUID, overrides storage.ForkOverrides) (model.Thought, error) {
	if overrides.Verdict != nil && !model.ValidVerdict(*overrides.Verdict) {
		return model.Thought{}, fmt.Errorf("%w: unknown verdict %q", model.ErrValidation, *overrides.Verdict)
	}
	if overrides.Confidence != nil && (*overrides.Confidence < 0 || *overrides.Confidence > 100) {
		return model.Thought{}, fmt.Errorf("%w: confidence must be within [0,100], got %d", model.ErrValidation, *overrides.Confidence)
	}
	// Text overrides obey the same limits as creation.
	if overrides.Title != nil {
		if *overrides.Title == "" {
			return model.Thought{}, fmt.Errorf("%w: title must not be empty", model.ErrValidation)
		}
		if len(*overrides.Title) > model.MaxTitleLen {
			return model.Thought{}, fmt.Errorf("%w: title exceeds maximum length of %d characters", model.ErrValidation, model.MaxTitleLen)
		}
	}
	if overrides.Content != nil && len(*overrides.Content) > model.MaxContentLen {
		return model.Thought{}, fmt.Errorf("%w: content exceeds maximum length of %d bytes", model.ErrValidation, model.MaxContentLen)
	}
	if overrides.Reasoning != nil && len(*overrides.Reasoning) > model.MaxReasoningLen {
		return model.Thought{}, fmt.Errorf("%w: reasoning exceeds maximum length of %d bytes", model.ErrValidation, model.MaxReasoningLen)
	}

	child, err := s.db.ForkThought(ctx, parentID, overrides)
	if err != nil {
		return model.Thought{}, err
	}

	s.forksTotal.Add(ctx, 1)
	return child, nil
}

// Evolution returns the full version chain for a thought, oldest first.
func (s *Service) Evolution(ctx context.Context, id uuid.UUID) ([]model.Thought, error) {
	return s.db.GetEvolution(ctx, id)
}

// ListByJournal returns the journal's current versions, newest first.
func (s *Service) ListByJournal(ctx context.Context, journalID uuid.UUID, limit, offset int) ([]model.Thought, int, error) {
	return s.db.ListThoughtsByJournal(ctx, journalID, limit, offset)
}

// applyBias shifts a 0-100 confidence by a fractional bias and clamps the
// result back into range. A bias of -0.12 lowers confidence by 12 points.
func applyBias(confidence int, bias float64) int {
	shifted := confidence + int(math.Round(bias*100))
	if shifted < 0 {
		return 0
	}
	if shifted > 100 {
		return 100
	}
	return shifted
}
