package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/hansei-ai/hansei/internal/model"
)

const thoughtColumns = `id, journal_id, parent_id, title, content, verdict, confidence,
	 reasoning, timeline, action_items, reason_codes, evidence, sources,
	 version, is_current, feedback_count, created_at, updated_at`

// maxEvolutionDepth bounds the parent walk in GetEvolution. The version
// chain is append-only and acyclic, so the bound only matters for
// pathological data; when hit, the walk truncates silently.
const maxEvolutionDepth = 50

// ForkOverrides carries the fields a fork replaces on the child. Nil
// fields copy through from the parent unchanged.
type ForkOverrides struct {
	Title      *string
	Content    *string
	Verdict    *model.Verdict
	Confidence *int
	Timeline   *string
	Reasoning  *string
}

// CreateThought inserts version 1 of a thought and returns it.
func (db *DB) CreateThought(ctx context.Context, t model.Thought) (model.Thought, error) {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	now := time.Now().UTC()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	t.UpdatedAt = t.CreatedAt
	t.Version = 1
	t.IsCurrent = true
	t.ParentID = nil
	t.FeedbackCount = 0
	if t.ActionItems == nil {
		t.ActionItems = []model.ActionItem{}
	}
	if t.Evidence == nil {
		t.Evidence = map[string]any{}
	}

	_, err := db.pool.Exec(ctx,
		`INSERT INTO thoughts (`+thoughtColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`,
		t.ID, t.JournalID, t.ParentID, t.Title, t.Content, t.Verdict, t.Confidence,
		t.Reasoning, t.Timeline, t.ActionItems, t.ReasonCodes, t.Evidence, t.Sources,
		t.Version, t.IsCurrent, t.FeedbackCount, t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return model.Thought{}, fmt.Errorf("storage: create thought: %w", err)
	}
	return t, nil
}

// GetThought retrieves a thought version by ID.
func (db *DB) GetThought(ctx context.Context, id uuid.UUID) (model.Thought, error) {
	row := db.pool.QueryRow(ctx,
		`SELECT `+thoughtColumns+` FROM thoughts WHERE id = $1`, id,
	)
	t, err := scanThought(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Thought{}, fmt.Errorf("storage: thought %s: %w", id, ErrNotFound)
		}
		return model.Thought{}, fmt.Errorf("storage: get thought: %w", err)
	}
	return t, nil
}

// ListThoughtsByJournal returns the current versions in a journal, newest
// first, with the total count of current versions for pagination.
func (db *DB) ListThoughtsByJournal(ctx context.Context, journalID uuid.UUID, limit, offset int) ([]model.Thought, int, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 1000 {
		limit = 1000
	}
	if offset < 0 {
		offset = 0
	}

	var total int
	if err := db.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM thoughts WHERE journal_id = $1 AND is_current`, journalID,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("storage: count thoughts: %w", err)
	}

	rows, err := db.pool.Query(ctx,
		`SELECT `+thoughtColumns+`
		 FROM thoughts WHERE journal_id = $1 AND is_current
		 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		journalID, limit, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("storage: list thoughts: %w", err)
	}
	defer rows.Close()

	thoughts, err := scanThoughts(rows)
	if err != nil {
		return nil, 0, err
	}
	return thoughts, total, nil
}

// ForkThought retires the parent version and inserts its successor in one
// transaction. Returns ErrNotFound if the parent does not exist and
// ErrConflict if it has already been retired by another fork.
func (db *DB) ForkThought(ctx context.Context, parentID uuid.UUID, overrides ForkOverrides) (model.Thought, error) {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return model.Thought{}, fmt.Errorf("storage: begin fork: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	parent, err := getThoughtForUpdate(ctx, tx, parentID)
	if err != nil {
		return model.Thought{}, err
	}

	child, err := forkLocked(ctx, tx, parent, overrides)
	if err != nil {
		return model.Thought{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return model.Thought{}, fmt.Errorf("storage: commit fork: %w", err)
	}
	return child, nil
}

// GetEvolution returns the version chain ending at id, oldest first. The
// walk follows parent_id backward and stops at the root or at
// maxEvolutionDepth records.
func (db *DB) GetEvolution(ctx context.Context, id uuid.UUID) ([]model.Thought, error) {
	t, err := db.GetThought(ctx, id)
	if err != nil {
		return nil, err
	}

	chain := []model.Thought{t}
	for t.ParentID != nil && len(chain) < maxEvolutionDepth {
		t, err = db.GetThought(ctx, *t.ParentID)
		if err != nil {
			// A dangling parent reference means the chain is corrupt;
			// surface it rather than returning a partial history.
			return nil, err
		}
		chain = append([]model.Thought{t}, chain...)
	}
	return chain, nil
}

// getThoughtForUpdate loads a thought inside tx with its row locked until
// commit. The lock serializes concurrent forks and feedback submissions
// on the same version: the loser blocks here, then observes the retired
// row and fails with ErrConflict at the forkLocked check.
func getThoughtForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (model.Thought, error) {
	row := tx.QueryRow(ctx,
		`SELECT `+thoughtColumns+` FROM thoughts WHERE id = $1 FOR UPDATE`, id,
	)
	t, err := scanThought(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Thought{}, fmt.Errorf("storage: thought %s: %w", id, ErrNotFound)
		}
		return model.Thought{}, fmt.Errorf("storage: lock thought: %w", err)
	}
	return t, nil
}

// forkLocked retires parent and inserts the child version inside tx. The
// caller must already hold the parent's row lock.
func forkLocked(ctx context.Context, tx pgx.Tx, parent model.Thought, overrides ForkOverrides) (model.Thought, error) {
	if !parent.IsCurrent {
		return model.Thought{}, fmt.Errorf("storage: thought %s already superseded: %w", parent.ID, ErrConflict)
	}

	now := time.Now().UTC()
	if _, err := tx.Exec(ctx,
		`UPDATE thoughts SET is_current = FALSE, updated_at = $1 WHERE id = $2`,
		now, parent.ID,
	); err != nil {
		return model.Thought{}, fmt.Errorf("storage: retire thought: %w", err)
	}

	child := parent
	child.ID = uuid.New()
	child.ParentID = &parent.ID
	child.Version = parent.Version + 1
	child.IsCurrent = true
	child.FeedbackCount = 0
	child.CreatedAt = now
	child.UpdatedAt = now

	if overrides.Title != nil {
		child.Title = *overrides.Title
	}
	if overrides.Content != nil {
		child.Content = *overrides.Content
	}
	if overrides.Verdict != nil {
		child.Verdict = *overrides.Verdict
	}
	if overrides.Confidence != nil {
		child.Confidence = *overrides.Confidence
	}
	if overrides.Timeline != nil {
		child.Timeline = overrides.Timeline
	}
	if overrides.Reasoning != nil {
		child.Reasoning = overrides.Reasoning
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO thoughts (`+thoughtColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`,
		child.ID, child.JournalID, child.ParentID, child.Title, child.Content, child.Verdict, child.Confidence,
		child.Reasoning, child.Timeline, child.ActionItems, child.ReasonCodes, child.Evidence, child.Sources,
		child.Version, child.IsCurrent, child.FeedbackCount, child.CreatedAt, child.UpdatedAt,
	); err != nil {
		return model.Thought{}, fmt.Errorf("storage: insert fork: %w", err)
	}

	return child, nil
}

func scanThought(row pgx.Row) (model.Thought, error) {
	var t model.Thought
	err := row.Scan(
		&t.ID, &t.JournalID, &t.ParentID, &t.Title, &t.Content, &t.Verdict, &t.Confidence,
		&t.Reasoning, &t.Timeline, &t.ActionItems, &t.ReasonCodes, &t.Evidence, &t.Sources,
		&t.Version, &t.IsCurrent, &t.FeedbackCount, &t.CreatedAt, &t.UpdatedAt,
	)
	return t, err
}

func scanThoughts(rows pgx.Rows) ([]model.Thought, error) {
	var thoughts []model.Thought
	for rows.Next() {
		t, err := scanThought(rows)
		if err != nil {
			return nil, fmt.Errorf("storage: scan thought: %w", err)
		}
		thoughts = append(thoughts, t)
	}
	return thoughts, rows.Err()
}
