package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hansei-ai/hansei/internal/model"
)

// FeedbackTagCounts returns the user's per-tag feedback counts and the
// total number of feedback rows within [since, now].
func (db *DB) FeedbackTagCounts(ctx context.Context, userID uuid.UUID, since time.Time) (model.TagCounts, int, error) {
	var c model.TagCounts
	var total int
	err := db.pool.QueryRow(ctx,
		`SELECT COUNT(*),
		 COUNT(*) FILTER (WHERE too_optimistic),
		 COUNT(*) FILTER (WHERE too_conservative),
		 COUNT(*) FILTER (WHERE wrong_assumption),
		 COUNT(*) FILTER (WHERE missing_context),
		 COUNT(*) FILTER (WHERE correct)
		 FROM feedback WHERE user_id = $1 AND created_at >= $2`,
		userID, since,
	).Scan(&total, &c.TooOptimistic, &c.TooConservative, &c.WrongAssumption, &c.MissingContext, &c.Correct)
	if err != nil {
		return model.TagCounts{}, 0, fmt.Errorf("storage: tag counts: %w", err)
	}
	return c, total, nil
}

// AccuracyTrend returns the chronological sequence of the user's `correct`
// flags within [since, now], oldest first. Ordering is by creation time,
// not insertion order.
func (db *DB) AccuracyTrend(ctx context.Context, userID uuid.UUID, since time.Time) ([]bool, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT correct FROM feedback
		 WHERE user_id = $1 AND created_at >= $2
		 ORDER BY created_at ASC, id ASC`,
		userID, since,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: accuracy trend: %w", err)
	}
	defer rows.Close()

	var trend []bool
	for rows.Next() {
		var correct bool
		if err := rows.Scan(&correct); err != nil {
			return nil, fmt.Errorf("storage: scan trend: %w", err)
		}
		trend = append(trend, correct)
	}
	return trend, rows.Err()
}
