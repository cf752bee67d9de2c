// Package insights aggregates a user's feedback history into stats and
// the accumulated adjustment bias fed back into future verdicts.
package insights

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/hansei-ai/hansei/internal/adjust"
	"github.com/hansei-ai/hansei/internal/model"
	"github.com/hansei-ai/hansei/internal/storage"
)

// defaultWindowDays is used when no window is configured at all.
const defaultWindowDays = 30

// Service encapsulates analytics over the feedback and adjustment tables.
type Service struct {
	db         *storage.DB
	windowDays int
	logger     *slog.Logger
}

// New creates an insights Service. windowDays is the fallback analytics
// window for callers that do not supply one; non-positive means 30 days.
func New(db *storage.DB, windowDays int, logger *slog.Logger) *Service {
	if windowDays <= 0 {
		windowDays = defaultWindowDays
	}
	return &Service{db: db, windowDays: windowDays, logger: logger}
}

// FeedbackStats aggregates the user's feedback within the last windowDays
// days. Tag counts, the accuracy trend, and the issue ranking honor the
// window; the average adjustment always covers all time. An existing user
// with no feedback gets zero values, not an error; an unknown user yields
// storage.ErrNotFound.
func (s *Service) FeedbackStats(ctx context.Context, userID uuid.UUID, windowDays int) (model.FeedbackStats, error) {
	if windowDays <= 0 {
		windowDays = s.windowDays
	}
	if _, err := s.db.GetUser(ctx, userID); err != nil {
		return model.FeedbackStats{}, err
	}
	since := time.Now().UTC().AddDate(0, 0, -windowDays)

	var (
		counts model.TagCounts
		total  int
		trend  []bool
		avg    float64
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		counts, total, err = s.db.FeedbackTagCounts(gctx, userID, since)
		return err
	})
	g.Go(func() error {
		var err error
		trend, err = s.db.AccuracyTrend(gctx, userID, since)
		return err
	})
	g.Go(func() error {
		var err error
		avg, _, err = s.db.AverageAdjustment(gctx, userID)
		return err
	})
	if err := g.Wait(); err != nil {
		return model.FeedbackStats{}, err
	}

	stats := model.FeedbackStats{
		TotalFeedback:     total,
		TagDistribution:   map[string]int{},
		AccuracyTrend:     trend,
		IssueFrequency:    rankIssues(counts),
		AverageAdjustment: fmt.Sprintf("%.3f%%", avg*100),
		WindowDays:        windowDays,
	}
	if total > 0 {
		stats.TagDistribution = map[string]int{
			"too_optimistic":   counts.TooOptimistic,
			"too_conservative": counts.TooConservative,
			"wrong_assumption": counts.WrongAssumption,
			"missing_context":  counts.MissingContext,
			"correct":          counts.Correct,
		}
	}
	return stats, nil
}

// AdjustmentBias returns the mean of the user's applies_to_future
// adjustment values, clamped to the single-adjustment bounds. 0 when the
// user has no eligible adjustments; storage.ErrNotFound when the user
// does not exist.
func (s *Service) AdjustmentBias(ctx context.Context, userID uuid.UUID) (float64, error) {
	if _, err := s.db.GetUser(ctx, userID); err != nil {
		return 0, err
	}
	mean, err := s.db.EligibleAdjustmentMean(ctx, userID)
	if err != nil {
		return 0, err
	}
	return adjust.Clamp(mean), nil
}

// rankIssues orders the non-correct tag counts descending. Ties keep the
// fixed tag order: too_optimistic, too_conservative, wrong_assumption,
// missing_context. Zero counts are omitted.
func rankIssues(c model.TagCounts) []model.IssueCount {
	all := []model.IssueCount{
		{Tag: "too_optimistic", Count: c.TooOptimistic},
		{Tag: "too_conservative", Count: c.TooConservative},
		{Tag: "wrong_assumption", Count: c.WrongAssumption},
		{Tag: "missing_context", Count: c.MissingContext},
	}

	issues := make([]model.IssueCount, 0, len(all))
	for _, ic := range all {
		if ic.Count > 0 {
			issues = append(issues, ic)
		}
	}
	sort.SliceStable(issues, func(i, j int) bool {
		return issues[i].Count > issues[j].Count
	})
	return issues
}
