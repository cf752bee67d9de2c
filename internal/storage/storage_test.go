package storage_test

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hansei-ai/hansei/internal/model"
	"github.com/hansei-ai/hansei/internal/storage"
	"github.com/hansei-ai/hansei/internal/testutil"
)

// testDB holds a shared test database connection for all tests in this package.
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

func createTestJournal(t *testing.T, userID uuid.UUID) model.Journal {
	t.Helper()
	j, err := testDB.CreateJournal(context.Background(), model.Journal{
		UserID: userID,
		Name:   "test journal",
	})
	require.NoError(t, err)
	return j
}

func createTestThought(t *testing.T, journalID uuid.UUID) model.Thought {
	t.Helper()
	reasoning := "strong fundamentals"
	th, err := testDB.CreateThought(context.Background(), model.Thought{
		JournalID:   journalID,
		Title:       "evaluate vendor migration",
		Content:     "migrate the billing pipeline to the new vendor",
		Verdict:     model.VerdictPursue,
		Confidence:  70,
		Reasoning:   &reasoning,
		ActionItems: []model.ActionItem{{Text: "draft migration plan"}},
		ReasonCodes: []string{"cost", "latency"},
		Evidence:    map[string]any{"quotes": 3.0},
		Sources:     []string{"vendor-rfp"},
	})
	require.NoError(t, err)
	return th
}

func TestCreateAndGetThought(t *testing.T) {
	ctx := context.Background()
	u := createTestUser(t)
	j := createTestJournal(t, u.ID)

	th := createTestThought(t, j.ID)
	assert.Equal(t, 1, th.Version)
	assert.True(t, th.IsCurrent)
	assert.Nil(t, th.ParentID)
	assert.Equal(t, 0, th.FeedbackCount)

	got, err := testDB.GetThought(ctx, th.ID)
	require.NoError(t, err)
	assert.Equal(t, th.ID, got.ID)
	assert.Equal(t, model.VerdictPursue, got.Verdict)
	assert.Equal(t, 70, got.Confidence)
	assert.Equal(t, []model.ActionItem{{Text: "draft migration plan"}}, got.ActionItems)
	assert.Equal(t, []string{"cost", "latency"}, got.ReasonCodes)
}

func TestGetThoughtNotFound(t *testing.T) {
	_, err := testDB.GetThought(context.Background(), uuid.New())
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestForkThought(t *testing.T) {
	ctx := context.Background()
	u := createTestUser(t)
	j := createTestJournal(t, u.ID)
	parent := createTestThought(t, j.ID)

	verdict := model.VerdictWatchlist
	confidence := 40
	child, err := testDB.ForkThought(ctx, parent.ID, storage.ForkOverrides{
		Verdict:    &verdict,
		Confidence: &confidence,
	})
	require.NoError(t, err)

	assert.Equal(t, parent.Version+1, child.Version)
	assert.True(t, child.IsCurrent)
	require.NotNil(t, child.ParentID)
	assert.Equal(t, parent.ID, *child.ParentID)
	assert.Equal(t, model.VerdictWatchlist, child.Verdict)
	assert.Equal(t, 40, child.Confidence)
	// Non-overridden fields copy through from the parent.
	assert.Equal(t, parent.Title, child.Title)
	assert.Equal(t, parent.ReasonCodes, child.ReasonCodes)
	assert.Equal(t, 0, child.FeedbackCount)

	retired, err := testDB.GetThought(ctx, parent.ID)
	require.NoError(t, err)
	assert.False(t, retired.IsCurrent)

	// Forking the retired parent again conflicts.
	_, err = testDB.ForkThought(ctx, parent.ID, storage.ForkOverrides{})
	assert.ErrorIs(t, err, storage.ErrConflict)
}

func TestForkThoughtNotFound(t *testing.T) {
	_, err := testDB.ForkThought(context.Background(), uuid.New(), storage.ForkOverrides{})
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestConcurrentForks(t *testing.T) {
	ctx := context.Background()
	u := createTestUser(t)
	j := createTestJournal(t, u.ID)
	parent := createTestThought(t, j.ID)

	const workers = 8
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = testDB.ForkThought(ctx, parent.ID, storage.ForkOverrides{})
		}(i)
	}
	wg.Wait()

	var succeeded, conflicted int
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case assert.ErrorIs(t, err, storage.ErrConflict):
			conflicted++
		}
	}
	assert.Equal(t, 1, succeeded, "exactly one fork must win")
	assert.Equal(t, workers-1, conflicted)

	// The chain still has exactly one current version.
	var current int
	err := testDB.Pool().QueryRow(ctx,
		`SELECT COUNT(*) FROM thoughts WHERE (id = $1 OR parent_id = $1) AND is_current`,
		parent.ID,
	).Scan(&current)
	require.NoError(t, err)
	assert.Equal(t, 1, current)
}

func TestGetEvolution(t *testing.T) {
	ctx := context.Background()
	u := createTestUser(t)
	j := createTestJournal(t, u.ID)
	v1 := createTestThought(t, j.ID)

	v2, err := testDB.ForkThought(ctx, v1.ID, storage.ForkOverrides{})
	require.NoError(t, err)
	v3, err := testDB.ForkThought(ctx, v2.ID, storage.ForkOverrides{})
	require.NoError(t, err)

	// Walking from any version in the chain ends at that version.
	chain, err := testDB.GetEvolution(ctx, v3.ID)
	require.NoError(t, err)
	require.Len(t, chain, 3)
	assert.Equal(t, v1.ID, chain[0].ID)
	assert.Equal(t, v2.ID, chain[1].ID)
	assert.Equal(t, v3.ID, chain[2].ID)
	assert.Equal(t, []int{1, 2, 3}, []int{chain[0].Version, chain[1].Version, chain[2].Version})

	mid, err := testDB.GetEvolution(ctx, v2.ID)
	require.NoError(t, err)
	require.Len(t, mid, 2)
	assert.Equal(t, v2.ID, mid[1].ID)
}

func TestGetEvolutionDepthBound(t *testing.T) {
	ctx := context.Background()
	u := createTestUser(t)
	j := createTestJournal(t, u.ID)
	tip := createTestThought(t, j.ID)

	// Build a chain deeper than the walker's bound.
	for i := 0; i < 55; i++ {
		next, err := testDB.ForkThought(ctx, tip.ID, storage.ForkOverrides{})
		require.NoError(t, err)
		tip = next
	}

	chain, err := testDB.GetEvolution(ctx, tip.ID)
	require.NoError(t, err)
	assert.Len(t, chain, 50, "walk truncates at the depth bound")
	assert.Equal(t, tip.ID, chain[len(chain)-1].ID, "terminal version is always included")
}

func TestListThoughtsByJournal(t *testing.T) {
	ctx := context.Background()
	u := createTestUser(t)
	j := createTestJournal(t, u.ID)

	first := createTestThought(t, j.ID)
	time.Sleep(10 * time.Millisecond)
	second := createTestThought(t, j.ID)

	// Fork the first so its v1 is retired.
	forked, err := testDB.ForkThought(ctx, first.ID, storage.ForkOverrides{})
	require.NoError(t, err)

	listed, total, err := testDB.ListThoughtsByJournal(ctx, j.ID, 50, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, listed, 2)

	ids := []uuid.UUID{listed[0].ID, listed[1].ID}
	assert.Contains(t, ids, second.ID)
	assert.Contains(t, ids, forked.ID)
	assert.NotContains(t, ids, first.ID, "retired versions are excluded")
	for _, th := range listed {
		assert.True(t, th.IsCurrent)
	}
}

func TestSubmitFeedbackTx(t *testing.T) {
	ctx := context.Background()
	u := createTestUser(t)
	j := createTestJournal(t, u.ID)
	th := createTestThought(t, j.ID)

	comment := "timeline was off by a quarter"
	fb, forked, err := testDB.SubmitFeedbackTx(ctx, storage.SubmitFeedbackParams{
		ThoughtID: th.ID,
		UserID:    u.ID,
		Tags:      model.FeedbackTags{TooOptimistic: true},
		Comment:   &comment,
		Adjustment: model.Adjustment{
			Value:           -0.15,
			Type:            model.AdjustmentTooOptimistic,
			AppliesToFuture: true,
		},
	})
	require.NoError(t, err)
	assert.Nil(t, forked, "no corrections means no fork")
	assert.Equal(t, th.ID, fb.ThoughtID)
	assert.True(t, fb.Tags.TooOptimistic)

	got, err := testDB.GetThought(ctx, th.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.FeedbackCount)
	assert.True(t, got.IsCurrent, "feedback without corrections never forks")

	avg, count, err := testDB.AverageAdjustment(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.InDelta(t, -0.15, avg, 1e-9)
}

func TestSubmitFeedbackTxWithFork(t *testing.T) {
	ctx := context.Background()
	u := createTestUser(t)
	j := createTestJournal(t, u.ID)
	th := createTestThought(t, j.ID)

	verdict := model.VerdictIgnore
	confidence := 25
	comment := "assumed the vendor supported our region"
	fb, forked, err := testDB.SubmitFeedbackTx(ctx, storage.SubmitFeedbackParams{
		ThoughtID: th.ID,
		UserID:    u.ID,
		Tags:      model.FeedbackTags{WrongAssumption: true},
		Correction: &model.Corrections{
			Verdict:    &verdict,
			Confidence: &confidence,
		},
		Comment: &comment,
		Adjustment: model.Adjustment{
			Value:           -0.25,
			Type:            model.AdjustmentWrongAssumption,
			AppliesToFuture: true,
		},
	})
	require.NoError(t, err)
	require.NotNil(t, forked)

	assert.Equal(t, th.Version+1, forked.Version)
	assert.Equal(t, model.VerdictIgnore, forked.Verdict)
	assert.Equal(t, 25, forked.Confidence)
	require.NotNil(t, forked.Reasoning)
	assert.Equal(t, "Corrected via feedback: "+comment, *forked.Reasoning)

	// The feedback stays attached to the judged version, not the fork.
	listed, err := testDB.ListFeedbackByThought(ctx, th.ID)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, fb.ID, listed[0].ID)

	parent, err := testDB.GetThought(ctx, th.ID)
	require.NoError(t, err)
	assert.False(t, parent.IsCurrent)
	assert.Equal(t, 1, parent.FeedbackCount)
}

func TestSubmitFeedbackTxConflictRollsBack(t *testing.T) {
	ctx := context.Background()
	u := createTestUser(t)
	j := createTestJournal(t, u.ID)
	th := createTestThought(t, j.ID)

	// Retire the thought first so the fork step conflicts.
	_, err := testDB.ForkThought(ctx, th.ID, storage.ForkOverrides{})
	require.NoError(t, err)

	verdict := model.VerdictArchive
	_, _, err = testDB.SubmitFeedbackTx(ctx, storage.SubmitFeedbackParams{
		ThoughtID:  th.ID,
		UserID:     u.ID,
		Tags:       model.FeedbackTags{WrongAssumption: true},
		Correction: &model.Corrections{Verdict: &verdict},
		Adjustment: model.Adjustment{Value: -0.25, Type: model.AdjustmentWrongAssumption, AppliesToFuture: true},
	})
	assert.ErrorIs(t, err, storage.ErrConflict)

	// The whole transaction rolled back: no feedback row, no counter bump.
	listed, err := testDB.ListFeedbackByThought(ctx, th.ID)
	require.NoError(t, err)
	assert.Empty(t, listed)

	got, err := testDB.GetThought(ctx, th.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.FeedbackCount)
}

func TestConcurrentCorrectiveFeedback(t *testing.T) {
	ctx := context.Background()
	u := createTestUser(t)
	j := createTestJournal(t, u.ID)
	th := createTestThought(t, j.ID)

	verdict := model.VerdictExplore
	submit := func() error {
		_, _, err := testDB.SubmitFeedbackTx(ctx, storage.SubmitFeedbackParams{
			ThoughtID:  th.ID,
			UserID:     u.ID,
			Tags:       model.FeedbackTags{WrongAssumption: true},
			Correction: &model.Corrections{Verdict: &verdict},
			Adjustment: model.Adjustment{Value: -0.25, Type: model.AdjustmentWrongAssumption, AppliesToFuture: true},
		})
		return err
	}

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = submit()
		}(i)
	}
	wg.Wait()

	var succeeded, conflicted int
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case assert.ErrorIs(t, err, storage.ErrConflict):
			conflicted++
		}
	}
	assert.Equal(t, 1, succeeded, "exactly one corrective submission forks")
	assert.Equal(t, 1, conflicted)

	// Only the winner's feedback exists.
	listed, err := testDB.ListFeedbackByThought(ctx, th.ID)
	require.NoError(t, err)
	assert.Len(t, listed, 1)
}

func TestFeedbackStatsQueries(t *testing.T) {
	ctx := context.Background()
	u := createTestUser(t)
	j := createTestJournal(t, u.ID)
	th := createTestThought(t, j.ID)

	submit := func(tags model.FeedbackTags, value float64, adjType model.AdjustmentType) {
		t.Helper()
		_, _, err := testDB.SubmitFeedbackTx(ctx, storage.SubmitFeedbackParams{
			ThoughtID:  th.ID,
			UserID:     u.ID,
			Tags:       tags,
			Adjustment: model.Adjustment{Value: value, Type: adjType, AppliesToFuture: value != 0},
		})
		require.NoError(t, err)
	}

	submit(model.FeedbackTags{Correct: true}, 0.05, model.AdjustmentGeneralFeedback)
	submit(model.FeedbackTags{TooOptimistic: true}, -0.15, model.AdjustmentTooOptimistic)
	submit(model.FeedbackTags{TooOptimistic: true, MissingContext: true}, -0.20, model.AdjustmentTooOptimistic)

	since := time.Now().UTC().AddDate(0, 0, -30)

	counts, total, err := testDB.FeedbackTagCounts(ctx, u.ID, since)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Equal(t, 2, counts.TooOptimistic)
	assert.Equal(t, 1, counts.MissingContext)
	assert.Equal(t, 1, counts.Correct)
	assert.Equal(t, 0, counts.WrongAssumption)

	trend, err := testDB.AccuracyTrend(ctx, u.ID, since)
	require.NoError(t, err)
	assert.Equal(t, []bool{true, false, false}, trend)

	avg, count, err := testDB.AverageAdjustment(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
	assert.InDelta(t, -0.10, avg, 1e-9)

	mean, err := testDB.EligibleAdjustmentMean(ctx, u.ID)
	require.NoError(t, err)
	assert.InDelta(t, -0.10, mean, 1e-9)
}

func TestAccuracyTrendOrdering(t *testing.T) {
	ctx := context.Background()
	u := createTestUser(t)
	j := createTestJournal(t, u.ID)
	th := createTestThought(t, j.ID)

	// Insert rows directly with creation times that reverse insertion
	// order: the trend must follow created_at, not insert order.
	base := time.Now().UTC().Add(-time.Hour)
	rows := []struct {
		correct   bool
		createdAt time.Time
	}{
		{false, base.Add(30 * time.Minute)},
		{true, base},
		{false, base.Add(15 * time.Minute)},
	}
	for _, row := range rows {
		_, err := testDB.Pool().Exec(ctx,
			`INSERT INTO feedback (id, thought_id, user_id, correct, created_at)
			 VALUES ($1, $2, $3, $4, $5)`,
			uuid.New(), th.ID, u.ID, row.correct, row.createdAt,
		)
		require.NoError(t, err)
	}

	trend, err := testDB.AccuracyTrend(ctx, u.ID, base.Add(-time.Minute))
	require.NoError(t, err)
	assert.Equal(t, []bool{true, false, false}, trend)
}

func TestStatsEmptyUser(t *testing.T) {
	ctx := context.Background()
	u := createTestUser(t)
	since := time.Now().UTC().AddDate(0, 0, -30)

	counts, total, err := testDB.FeedbackTagCounts(ctx, u.ID, since)
	require.NoError(t, err)
	assert.Equal(t, 0, total)
	assert.Equal(t, model.TagCounts{}, counts)

	trend, err := testDB.AccuracyTrend(ctx, u.ID, since)
	require.NoError(t, err)
	assert.Empty(t, trend)

	avg, count, err := testDB.AverageAdjustment(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
	assert.InDelta(t, 0.0, avg, 1e-9)

	mean, err := testDB.EligibleAdjustmentMean(ctx, u.ID)
	require.NoError(t, err)
	assert.InDelta(t, 0.0, mean, 1e-9)
}
