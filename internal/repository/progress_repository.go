package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/flowstudio/studio-api/internal/models"
)

// ProgressRepository manages persistence for class completion records.
type ProgressRepository struct {
	db *sqlx.DB
}

// NewProgressRepository constructs a new progress repository.
func NewProgressRepository(db *sqlx.DB) *ProgressRepository {
	return &ProgressRepository{db: db}
}

// Find returns the completion record for (class, user) when one exists.
func (r *ProgressRepository) Find(ctx context.Context, classID, userEmail string) (*models.ProgressRecord, error) {
	const query = `SELECT id, class_id, user_email, completed_at FROM class_progress WHERE class_id = $1 AND user_email = $2`
	var record models.ProgressRecord
	if err := r.db.GetContext(ctx, &record, query, classID, userEmail); err != nil {
		return nil, err
	}
	return &record, nil
}

// ListByUser returns a user's completions newest first, joined with the class
// title and duration used by the analytics layer. The join is LEFT so records
// survive in the result even when the class row is gone.
func (r *ProgressRepository) ListByUser(ctx context.Context, userEmail string) ([]models.ProgressEntry, error) {
	const query = `SELECT p.id, p.class_id, p.user_email, p.completed_at, c.title AS class_title, c.duration_min FROM class_progress p LEFT JOIN classes c ON c.id = p.class_id WHERE p.user_email = $1 ORDER BY p.completed_at DESC`
	var entries []models.ProgressEntry
	if err := r.db.SelectContext(ctx, &entries, query, userEmail); err != nil {
		return nil, fmt.Errorf("list progress by user: %w", err)
	}
	return entries, nil
}

// Create persists a completion record. The unique (class_id, user_email)
// constraint keeps the at-most-one invariant even under concurrent toggles;
// a conflicting insert affects zero rows and is reported as created=false.
func (r *ProgressRepository) Create(ctx context.Context, record *models.ProgressRecord) (bool, error) {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.CompletedAt.IsZero() {
		record.CompletedAt = time.Now().UTC()
	}

	res, err := r.db.ExecContext(ctx, `INSERT INTO class_progress (id, class_id, user_email, completed_at) VALUES ($1, $2, $3, $4) ON CONFLICT (class_id, user_email) DO NOTHING`,
		record.ID, record.ClassID, record.UserEmail, record.CompletedAt)
	if err != nil {
		return false, fmt.Errorf("create progress record: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("progress rows affected: %w", err)
	}
	return rows > 0, nil
}

// Delete removes a completion record by ID.
func (r *ProgressRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM class_progress WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete progress record: %w", err)
	}
	return nil
}
