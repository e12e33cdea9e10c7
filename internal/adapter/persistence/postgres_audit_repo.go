package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/campusiq/campusiq/internal/domain"
	"github.com/campusiq/campusiq/internal/ports"
)

// PostgresAuditRepository implements AuditRepository using PostgreSQL.
// The audit table is append-only: no UPDATE or DELETE statement exists in
// this repository, and a schema trigger rejects both.
type PostgresAuditRepository struct {
	db *sql.DB
}

// NewPostgresAuditRepository creates a new PostgreSQL audit repository
func NewPostgresAuditRepository(db *sql.DB) ports.AuditRepository {
	return &PostgresAuditRepository{db: db}
}

// Append writes one audit entry
func (r *PostgresAuditRepository) Append(ctx context.Context, entry *domain.AuditEntry) error {
	query := `
		INSERT INTO audit_entries (event_id, event_type, plan_id, execution_id, actor,
			module, operation_type, risk_level, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	actorJSON, err := json.Marshal(entry.Actor)
	if err != nil {
		return fmt.Errorf("failed to marshal actor: %w", err)
	}
	var payloadJSON []byte
	if entry.Payload != nil {
		payloadJSON, err = json.Marshal(entry.Payload)
		if err != nil {
			return fmt.Errorf("failed to marshal payload: %w", err)
		}
	}

	_, err = r.db.ExecContext(ctx, query,
		entry.EventID,
		string(entry.EventType),
		nullableString(entry.PlanID),
		nullableString(entry.ExecutionID),
		actorJSON,
		entry.Module,
		string(entry.OperationType),
		string(entry.RiskLevel),
		payloadJSON,
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to append audit entry: %w", err)
	}
	return nil
}

// List retrieves audit entries matching the filter, newest first
func (r *PostgresAuditRepository) List(ctx context.Context, filter domain.AuditFilter) ([]*domain.AuditEntry, error) {
	query := `
		SELECT event_id, event_type, plan_id, execution_id, actor, module,
			operation_type, risk_level, payload, created_at
		FROM audit_entries
		WHERE 1=1
	`

	var conditions []string
	var args []interface{}
	argIndex := 1

	if filter.Module != "" {
		conditions = append(conditions, fmt.Sprintf("module = $%d", argIndex))
		args = append(args, filter.Module)
		argIndex++
	}
	if filter.OperationType != "" {
		conditions = append(conditions, fmt.Sprintf("operation_type = $%d", argIndex))
		args = append(args, string(filter.OperationType))
		argIndex++
	}
	if filter.RiskLevel != "" {
		conditions = append(conditions, fmt.Sprintf("risk_level = $%d", argIndex))
		args = append(args, string(filter.RiskLevel))
		argIndex++
	}
	if filter.EventType != "" {
		conditions = append(conditions, fmt.Sprintf("event_type = $%d", argIndex))
		args = append(args, string(filter.EventType))
		argIndex++
	}
	if filter.ActorUserID != "" {
		conditions = append(conditions, fmt.Sprintf("actor->>'user_id' = $%d", argIndex))
		args = append(args, filter.ActorUserID)
		argIndex++
	}
	if filter.From != nil {
		conditions = append(conditions, fmt.Sprintf("created_at >= $%d", argIndex))
		args = append(args, *filter.From)
		argIndex++
	}
	if filter.To != nil {
		conditions = append(conditions, fmt.Sprintf("created_at <= $%d", argIndex))
		args = append(args, *filter.To)
		argIndex++
	}

	if len(conditions) > 0 {
		query += " AND " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at DESC"

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(" LIMIT $%d", argIndex)
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit entries: %w", err)
	}
	defer rows.Close()

	var entries []*domain.AuditEntry
	for rows.Next() {
		var entry domain.AuditEntry
		var planID, executionID sql.NullString
		var actorJSON, payloadJSON []byte

		err := rows.Scan(
			&entry.EventID,
			&entry.EventType,
			&planID,
			&executionID,
			&actorJSON,
			&entry.Module,
			&entry.OperationType,
			&entry.RiskLevel,
			&payloadJSON,
			&entry.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}

		if err := json.Unmarshal(actorJSON, &entry.Actor); err != nil {
			return nil, fmt.Errorf("failed to unmarshal actor: %w", err)
		}
		if len(payloadJSON) > 0 {
			if err := json.Unmarshal(payloadJSON, &entry.Payload); err != nil {
				return nil, fmt.Errorf("failed to unmarshal payload: %w", err)
			}
		}
		if planID.Valid {
			entry.PlanID = planID.String
		}
		if executionID.Valid {
			entry.ExecutionID = executionID.String
		}
		entries = append(entries, &entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit entries: %w", err)
	}
	return entries, nil
}

func nullableString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
