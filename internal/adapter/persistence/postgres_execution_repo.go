package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/campusiq/campusiq/internal/domain"
	"github.com/campusiq/campusiq/internal/ports"
)

// PostgresExecutionRepository implements ExecutionRepository using
// PostgreSQL. Executions are insert-once; the only permitted update is
// the compare-and-swap to rolled_back.
type PostgresExecutionRepository struct {
	db *sql.DB
}

// NewPostgresExecutionRepository creates a new PostgreSQL execution repository
func NewPostgresExecutionRepository(db *sql.DB) ports.ExecutionRepository {
	return &PostgresExecutionRepository{db: db}
}

// Create persists a new execution record
func (r *PostgresExecutionRepository) Create(ctx context.Context, execution *domain.Execution) error {
	query := `
		INSERT INTO executions (execution_id, plan_id, executed_by, intent_type, entity,
			before_state, after_state, status, affected_count, rollback_note, error, executed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	beforeJSON, err := json.Marshal(execution.BeforeState)
	if err != nil {
		return fmt.Errorf("failed to marshal before state: %w", err)
	}
	afterJSON, err := json.Marshal(execution.AfterState)
	if err != nil {
		return fmt.Errorf("failed to marshal after state: %w", err)
	}
	rollbackJSON, err := json.Marshal(execution.Rollback)
	if err != nil {
		return fmt.Errorf("failed to marshal rollback note: %w", err)
	}

	var errText sql.NullString
	if execution.Error != "" {
		errText = sql.NullString{String: execution.Error, Valid: true}
	}

	_, err = r.db.ExecContext(ctx, query,
		execution.ExecutionID,
		execution.PlanID,
		execution.ExecutedBy,
		string(execution.IntentType),
		execution.Entity,
		beforeJSON,
		afterJSON,
		string(execution.Status),
		execution.AffectedCount,
		rollbackJSON,
		errText,
		execution.ExecutedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create execution: %w", err)
	}
	return nil
}

// FindByID retrieves an execution by its ID
func (r *PostgresExecutionRepository) FindByID(ctx context.Context, executionID string) (*domain.Execution, error) {
	query := `
		SELECT execution_id, plan_id, executed_by, intent_type, entity, before_state, after_state,
			status, affected_count, rollback_note, error, executed_at, rolled_back_at
		FROM executions
		WHERE execution_id = $1
	`
	execution, err := scanExecution(r.db.QueryRowContext(ctx, query, executionID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrExecutionNotFound
		}
		return nil, fmt.Errorf("failed to find execution: %w", err)
	}
	return execution, nil
}

// FindByPlanID retrieves all executions for a plan, newest first
func (r *PostgresExecutionRepository) FindByPlanID(ctx context.Context, planID string) ([]*domain.Execution, error) {
	query := `
		SELECT execution_id, plan_id, executed_by, intent_type, entity, before_state, after_state,
			status, affected_count, rollback_note, error, executed_at, rolled_back_at
		FROM executions
		WHERE plan_id = $1
		ORDER BY executed_at DESC
	`
	rows, err := r.db.QueryContext(ctx, query, planID)
	if err != nil {
		return nil, fmt.Errorf("failed to list executions: %w", err)
	}
	defer rows.Close()

	var executions []*domain.Execution
	for rows.Next() {
		execution, err := scanExecution(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan execution: %w", err)
		}
		executions = append(executions, execution)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating executions: %w", err)
	}
	return executions, nil
}

// MarkRolledBack transitions an execution from executed to rolled_back.
// A racing rollback that already applied the transition is a no-op
// success; only a missing row or a non-executed status is an error.
func (r *PostgresExecutionRepository) MarkRolledBack(ctx context.Context, executionID string) error {
	query := `
		UPDATE executions
		SET status = 'rolled_back', rolled_back_at = NOW()
		WHERE execution_id = $1 AND status = 'executed'
	`
	result, err := r.db.ExecContext(ctx, query, executionID)
	if err != nil {
		return fmt.Errorf("failed to mark execution rolled back: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		var status string
		err := r.db.QueryRowContext(ctx,
			`SELECT status FROM executions WHERE execution_id = $1`, executionID,
		).Scan(&status)
		if err == sql.ErrNoRows {
			return domain.ErrExecutionNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to check execution status: %w", err)
		}
		if domain.ExecutionStatus(status) == domain.ExecutionStatusRolledBack {
			return nil
		}
		return domain.ErrRollbackUnsupported
	}
	return nil
}

func scanExecution(row rowScanner) (*domain.Execution, error) {
	var execution domain.Execution
	var beforeJSON, afterJSON, rollbackJSON []byte
	var errText sql.NullString
	var rolledBackAt sql.NullTime

	err := row.Scan(
		&execution.ExecutionID,
		&execution.PlanID,
		&execution.ExecutedBy,
		&execution.IntentType,
		&execution.Entity,
		&beforeJSON,
		&afterJSON,
		&execution.Status,
		&execution.AffectedCount,
		&rollbackJSON,
		&errText,
		&execution.ExecutedAt,
		&rolledBackAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(beforeJSON, &execution.BeforeState); err != nil {
		return nil, fmt.Errorf("failed to unmarshal before state: %w", err)
	}
	if err := json.Unmarshal(afterJSON, &execution.AfterState); err != nil {
		return nil, fmt.Errorf("failed to unmarshal after state: %w", err)
	}
	if err := json.Unmarshal(rollbackJSON, &execution.Rollback); err != nil {
		return nil, fmt.Errorf("failed to unmarshal rollback note: %w", err)
	}
	if errText.Valid {
		execution.Error = errText.String
	}
	if rolledBackAt.Valid {
		t := rolledBackAt.Time
		execution.RolledBackAt = &t
	}
	return &execution, nil
}
