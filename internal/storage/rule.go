package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/todmy/visa-advisor/pkg/models"
)

// ErrRuleNotFound is returned when no rule matches the lookup.
var ErrRuleNotFound = errors.New("rule not found")

// RuleRecord is a persisted rule definition. Condition and action
// lists are stored as JSON text columns.
type RuleRecord struct {
	ID         uuid.UUID
	Name       string
	VisaType   string
	Category   models.RuleCategory
	Logic      models.CombinationLogic
	Conditions []string
	Actions    []string
	Priority   int
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Definition converts the record into the plain shape the engine,
// validator, and ranker consume.
func (r *RuleRecord) Definition() models.RuleDefinition {
	return models.RuleDefinition{
		Name:       r.Name,
		VisaType:   r.VisaType,
		Category:   r.Category,
		Logic:      r.Logic,
		Conditions: append([]string(nil), r.Conditions...),
		Actions:    append([]string(nil), r.Actions...),
		Priority:   r.Priority,
	}
}

// RecordFromDefinition builds a record ready to insert.
func RecordFromDefinition(def models.RuleDefinition) *RuleRecord {
	return &RuleRecord{
		Name:       def.Name,
		VisaType:   def.VisaType,
		Category:   def.Category,
		Logic:      def.Logic,
		Conditions: append([]string(nil), def.Conditions...),
		Actions:    append([]string(nil), def.Actions...),
		Priority:   def.Priority,
	}
}

// Definitions converts a record slice, preserving order.
func Definitions(records []*RuleRecord) []models.RuleDefinition {
	defs := make([]models.RuleDefinition, len(records))
	for i, r := range records {
		defs[i] = r.Definition()
	}
	return defs
}

// RuleRepository defines the interface for rule persistence.
type RuleRepository interface {
	Create(ctx context.Context, record *RuleRecord) error
	GetByID(ctx context.Context, id uuid.UUID) (*RuleRecord, error)
	GetByName(ctx context.Context, name string) (*RuleRecord, error)
	List(ctx context.Context, visaType string) ([]*RuleRecord, error)
	Update(ctx context.Context, record *RuleRecord) error
	Delete(ctx context.Context, id uuid.UUID) error
	Reorder(ctx context.Context, ids []uuid.UUID) error
	UpdatePriorities(ctx context.Context, priorities map[string]int) error
}

// PostgresRuleRepository implements RuleRepository using PostgreSQL.
type PostgresRuleRepository struct {
	db *sql.DB
}

// NewPostgresRuleRepository creates a new PostgresRuleRepository.
func NewPostgresRuleRepository(db *sql.DB) *PostgresRuleRepository {
	return &PostgresRuleRepository{db: db}
}

const ruleColumns = "id, name, visa_type, rule_type, condition_logic, conditions, actions, priority, created_at, updated_at"

// Create inserts a new rule record.
func (r *PostgresRuleRepository) Create(ctx context.Context, record *RuleRecord) error {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	now := time.Now()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = now

	conditions, actions, err := marshalLists(record)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO rules (id, name, visa_type, rule_type, condition_logic, conditions, actions, priority, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err = r.db.ExecContext(ctx, query,
		record.ID,
		record.Name,
		record.VisaType,
		record.Category,
		record.Logic,
		conditions,
		actions,
		record.Priority,
		record.CreatedAt,
		record.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create rule: %w", err)
	}
	return nil
}

// GetByID retrieves a rule by its ID.
func (r *PostgresRuleRepository) GetByID(ctx context.Context, id uuid.UUID) (*RuleRecord, error) {
	query := `SELECT ` + ruleColumns + ` FROM rules WHERE id = $1`
	return r.scanOne(r.db.QueryRowContext(ctx, query, id))
}

// GetByName retrieves a rule by its unique name.
func (r *PostgresRuleRepository) GetByName(ctx context.Context, name string) (*RuleRecord, error) {
	query := `SELECT ` + ruleColumns + ` FROM rules WHERE name = $1`
	return r.scanOne(r.db.QueryRowContext(ctx, query, name))
}

// List retrieves rules ordered by priority. A non-empty visaType
// filters to that track plus rules tagged ALL.
func (r *PostgresRuleRepository) List(ctx context.Context, visaType string) ([]*RuleRecord, error) {
	query := `SELECT ` + ruleColumns + ` FROM rules ORDER BY priority ASC`
	args := []interface{}{}
	if visaType != "" {
		query = `SELECT ` + ruleColumns + ` FROM rules WHERE visa_type = $1 OR visa_type = 'ALL' ORDER BY priority ASC`
		args = append(args, visaType)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list rules: %w", err)
	}
	defer rows.Close()

	var records []*RuleRecord
	for rows.Next() {
		record, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

// Update rewrites every mutable column of the record.
func (r *PostgresRuleRepository) Update(ctx context.Context, record *RuleRecord) error {
	record.UpdatedAt = time.Now()

	conditions, actions, err := marshalLists(record)
	if err != nil {
		return err
	}

	query := `
		UPDATE rules
		SET name = $2, visa_type = $3, rule_type = $4, condition_logic = $5,
		    conditions = $6, actions = $7, priority = $8, updated_at = $9
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query,
		record.ID,
		record.Name,
		record.VisaType,
		record.Category,
		record.Logic,
		conditions,
		actions,
		record.Priority,
		record.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update rule: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return ErrRuleNotFound
	}
	return nil
}

// Delete removes a rule record.
func (r *PostgresRuleRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM rules WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete rule: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return ErrRuleNotFound
	}
	return nil
}

// Reorder assigns ascending priorities following the supplied ID order
// in a single transaction.
func (r *PostgresRuleRepository) Reorder(ctx context.Context, ids []uuid.UUID) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `UPDATE rules SET priority = $2, updated_at = $3 WHERE id = $1`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now()
	for index, id := range ids {
		if _, err := stmt.ExecContext(ctx, id, index*10, now); err != nil {
			return fmt.Errorf("failed to reorder rule %s: %w", id, err)
		}
	}
	return tx.Commit()
}

// UpdatePriorities applies a name-to-priority batch atomically; the
// order auto-fix lands through this.
func (r *PostgresRuleRepository) UpdatePriorities(ctx context.Context, priorities map[string]int) error {
	if len(priorities) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `UPDATE rules SET priority = $2, updated_at = $3 WHERE name = $1`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now()
	for name, priority := range priorities {
		if _, err := stmt.ExecContext(ctx, name, priority, now); err != nil {
			return fmt.Errorf("failed to update priority of rule %s: %w", name, err)
		}
	}
	return tx.Commit()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (r *PostgresRuleRepository) scanOne(row rowScanner) (*RuleRecord, error) {
	record, err := scanRule(row)
	if err == sql.ErrNoRows {
		return nil, ErrRuleNotFound
	}
	if err != nil {
		return nil, err
	}
	return record, nil
}

func scanRule(row rowScanner) (*RuleRecord, error) {
	record := &RuleRecord{}
	var conditions, actions string
	err := row.Scan(
		&record.ID,
		&record.Name,
		&record.VisaType,
		&record.Category,
		&record.Logic,
		&conditions,
		&actions,
		&record.Priority,
		&record.CreatedAt,
		&record.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(conditions), &record.Conditions); err != nil {
		return nil, fmt.Errorf("rule %s: malformed conditions column: %w", record.Name, err)
	}
	if err := json.Unmarshal([]byte(actions), &record.Actions); err != nil {
		return nil, fmt.Errorf("rule %s: malformed actions column: %w", record.Name, err)
	}
	return record, nil
}

func marshalLists(record *RuleRecord) (string, string, error) {
	conditions, err := json.Marshal(record.Conditions)
	if err != nil {
		return "", "", fmt.Errorf("rule %s: cannot encode conditions: %w", record.Name, err)
	}
	actions, err := json.Marshal(record.Actions)
	if err != nil {
		return "", "", fmt.Errorf("rule %s: cannot encode actions: %w", record.Name, err)
	}
	return string(conditions), string(actions), nil
}
