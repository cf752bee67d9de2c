package insights_test

import (
	"context"
	"fmt"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hansei-ai/hansei/internal/model"
	"github.com/hansei-ai/hansei/internal/service/insights"
	"github.com/hansei-ai/hansei/internal/storage"
	"github.com/hansei-ai/hansei/internal/testutil"
)

var testDB *storage.DB

func TestMain(m *testing.M) {
	ctx := context.Background()

	tc := testutil.MustStartPostgres()

	var err error
	testDB, err = tc.NewTestDB(ctx, testutil.TestLogger())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create test DB: %v\n", err)
		tc.Terminate()
		os.Exit(1)
	}

	code := m.Run()

	testDB.Close()
	tc.Terminate()
	os.Exit(code)
}

func createTestUser(t *testing.T) model.User {
	t.Helper()
	u, err := testDB.CreateUser(context.Background(), model.User{
		Handle: fmt.Sprintf("user-%s", uuid.New().String()[:8]),
	})
	require.NoError(t, err)
	return u
}

func TestFeedbackStatsUnknownUser(t *testing.T) {
	svc := insights.New(testDB, 30, testutil.TestLogger())
	_, err := svc.FeedbackStats(context.Background(), uuid.New(), 30)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestAdjustmentBiasUnknownUser(t *testing.T) {
	svc := insights.New(testDB, 30, testutil.TestLogger())
	_, err := svc.AdjustmentBias(context.Background(), uuid.New())
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestStatsForUserWithoutFeedback(t *testing.T) {
	ctx := context.Background()
	u := createTestUser(t)

	svc := insights.New(testDB, 30, testutil.TestLogger())

	stats, err := svc.FeedbackStats(ctx, u.ID, 30)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.TotalFeedback)
	assert.Empty(t, stats.TagDistribution)
	assert.Empty(t, stats.AccuracyTrend)
	assert.Equal(t, "0.000%", stats.AverageAdjustment)

	bias, err := svc.AdjustmentBias(ctx, u.ID)
	require.NoError(t, err)
	assert.Zero(t, bias)
}
