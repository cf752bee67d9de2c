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

// CreateJournal inserts a journal and returns it.
func (db *DB) CreateJournal(ctx context.Context, j model.Journal) (model.Journal, error) {
	if j.ID == uuid.Nil {
		j.ID = uuid.New()
	}
	if j.CreatedAt.IsZero() {
		j.CreatedAt = time.Now().UTC()
	}

	_, err := db.pool.Exec(ctx,
		`INSERT INTO journals (id, user_id, name, created_at) VALUES ($1, $2, $3, $4)`,
		j.ID, j.UserID, j.Name, j.CreatedAt,
	)
	if err != nil {
		return model.Journal{}, fmt.Errorf("storage: create journal: %w", err)
	}
	return j, nil
}

// GetJournal retrieves a journal by ID.
func (db *DB) GetJournal(ctx context.Context, id uuid.UUID) (model.Journal, error) {
	var j model.Journal
	err := db.pool.QueryRow(ctx,
		`SELECT id, user_id, name, created_at FROM journals WHERE id = $1`, id,
	).Scan(&j.ID, &j.UserID, &j.Name, &j.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Journal{}, fmt.Errorf("storage: journal %s: %w", id, ErrNotFound)
		}
		return model.Journal{}, fmt.Errorf("storage: get journal: %w", err)
	}
	return j, nil
}
