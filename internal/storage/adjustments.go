package storage

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// AverageAdjustment returns the mean of every adjustment value the user
// has ever accumulated, together with the row count. No time window; the
// all-time mean feeds the stats report.
func (db *DB) AverageAdjustment(ctx context.Context, userID uuid.UUID) (float64, int, error) {
	var avg float64
	var count int
	err := db.pool.QueryRow(ctx,
		`SELECT COALESCE(AVG(value), 0), COUNT(*) FROM adjustments WHERE user_id = $1`,
		userID,
	).Scan(&avg, &count)
	if err != nil {
		return 0, 0, fmt.Errorf("storage: average adjustment: %w", err)
	}
	return avg, count, nil
}

// EligibleAdjustmentMean returns the mean of the user's adjustment values
// flagged applies_to_future, or 0 when none exist. Callers clamp.
func (db *DB) EligibleAdjustmentMean(ctx context.Context, userID uuid.UUID) (float64, error) {
	var avg float64
	err := db.pool.QueryRow(ctx,
		`SELECT COALESCE(AVG(value), 0) FROM adjustments
		 WHERE user_id = $1 AND applies_to_future`,
		userID,
	).Scan(&avg)
	if err != nil {
		return 0, fmt.Errorf("storage: eligible adjustment mean: %w", err)
	}
	return avg, nil
}
