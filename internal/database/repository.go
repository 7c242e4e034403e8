package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/semiprime/survival-matrix/internal/types"
)

// Repository handles submission persistence
type Repository struct {
	db *DB
}

// NewRepository creates a new repository
func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// CreateSubmission inserts a new submission in pending state and returns it
func (r *Repository) CreateSubmission(ctx context.Context, req types.SubmissionRequest) (*types.Submission, error) {
	now := time.Now().UTC()
	sub := &types.Submission{
		ID:          uuid.NewString(),
		Competition: req.Competition,
		Message:     req.Message,
		Status:      types.SubmissionPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO submissions (id, competition, message, status, error, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sub.ID, sub.Competition, sub.Message, sub.Status, sub.Error, sub.CreatedAt, sub.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create submission: %w", err)
	}

	return sub, nil
}

// GetSubmission fetches a submission by ID
func (r *Repository) GetSubmission(ctx context.Context, id string) (*types.Submission, error) {
	var sub types.Submission
	err := r.db.QueryRowContext(ctx,
		`SELECT id, competition, message, status, error, created_at, updated_at
		 FROM submissions WHERE id = ?`, id).Scan(
		&sub.ID, &sub.Competition, &sub.Message, &sub.Status, &sub.Error,
		&sub.CreatedAt, &sub.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get submission: %w", err)
	}

	return &sub, nil
}

// ListSubmissions returns the most recent submissions, newest first
func (r *Repository) ListSubmissions(ctx context.Context, limit int) ([]types.Submission, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, competition, message, status, error, created_at, updated_at
		 FROM submissions ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list submissions: %w", err)
	}
	defer rows.Close()

	var subs []types.Submission
	for rows.Next() {
		var sub types.Submission
		if err := rows.Scan(&sub.ID, &sub.Competition, &sub.Message, &sub.Status,
			&sub.Error, &sub.CreatedAt, &sub.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan submission: %w", err)
		}
		subs = append(subs, sub)
	}

	return subs, rows.Err()
}

// UpdateSubmissionStatus transitions a submission to a terminal state
func (r *Repository) UpdateSubmissionStatus(ctx context.Context, id string, status types.SubmissionStatus, errMsg string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE submissions SET status = ?, error = ?, updated_at = ? WHERE id = ?`,
		status, errMsg, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update submission: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("submission %s not found", id)
	}

	return nil
}
