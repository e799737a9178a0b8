package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/todmy/visa-advisor/pkg/models"
)

// ErrQuestionNotFound is returned when no question priority row
// matches the lookup.
var ErrQuestionNotFound = errors.New("question priority not found")

// QuestionPriority is one persisted row of the ranked-question order
// for a visa track. Lower priority means asked earlier.
type QuestionPriority struct {
	ID       uuid.UUID `json:"id"`
	VisaType string    `json:"visa_type"`
	Question string    `json:"question"`
	Priority int       `json:"priority"`
}

// QuestionPriorityRepository defines the interface for question
// priority persistence.
type QuestionPriorityRepository interface {
	List(ctx context.Context, visaType string) ([]*QuestionPriority, error)
	UpdatePriority(ctx context.Context, id uuid.UUID, priority int) error
	Replace(ctx context.Context, visaType string, ranked []models.QuestionRank) (int, error)
	Reset(ctx context.Context) error
}

// PostgresQuestionPriorityRepository implements
// QuestionPriorityRepository using PostgreSQL.
type PostgresQuestionPriorityRepository struct {
	db *sql.DB
}

// NewPostgresQuestionPriorityRepository creates a new repository.
func NewPostgresQuestionPriorityRepository(db *sql.DB) *PostgresQuestionPriorityRepository {
	return &PostgresQuestionPriorityRepository{db: db}
}

// List returns the track's questions ordered by ascending priority.
func (r *PostgresQuestionPriorityRepository) List(ctx context.Context, visaType string) ([]*QuestionPriority, error) {
	query := `
		SELECT id, visa_type, question, priority
		FROM question_priorities
		WHERE visa_type = $1
		ORDER BY priority ASC
	`

	rows, err := r.db.QueryContext(ctx, query, visaType)
	if err != nil {
		return nil, fmt.Errorf("failed to list question priorities: %w", err)
	}
	defer rows.Close()

	var priorities []*QuestionPriority
	for rows.Next() {
		p := &QuestionPriority{}
		if err := rows.Scan(&p.ID, &p.VisaType, &p.Question, &p.Priority); err != nil {
			return nil, err
		}
		priorities = append(priorities, p)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return priorities, nil
}

// UpdatePriority sets one row's priority.
func (r *PostgresQuestionPriorityRepository) UpdatePriority(ctx context.Context, id uuid.UUID, priority int) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE question_priorities SET priority = $2 WHERE id = $1`, id, priority)
	if err != nil {
		return fmt.Errorf("failed to update question priority: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return ErrQuestionNotFound
	}
	return nil
}

// Replace rewrites the track's rows from ranker output in one
// transaction; each question's priority is its ordinal position.
func (r *PostgresQuestionPriorityRepository) Replace(ctx context.Context, visaType string, ranked []models.QuestionRank) (int, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM question_priorities WHERE visa_type = $1`, visaType); err != nil {
		return 0, fmt.Errorf("failed to clear question priorities: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO question_priorities (id, visa_type, question, priority)
		VALUES ($1, $2, $3, $4)
	`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	for index, entry := range ranked {
		if _, err := stmt.ExecContext(ctx, uuid.New(), visaType, entry.Question, index); err != nil {
			return 0, fmt.Errorf("failed to insert question priority: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return len(ranked), nil
}

// Reset removes every row of the table.
func (r *PostgresQuestionPriorityRepository) Reset(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM question_priorities`); err != nil {
		return fmt.Errorf("failed to reset question priorities: %w", err)
	}
	return nil
}
