package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/lib/pq"

	"github.com/campusiq/campusiq/internal/domain"
	"github.com/campusiq/campusiq/internal/ports"
)

// PostgresDomainStore implements the DomainStore collaborator over the
// institutional record tables. Every mutation runs in one transaction and
// returns the post-mutation rows so the execution engine can diff.
type PostgresDomainStore struct {
	db *sql.DB
}

// NewPostgresDomainStore creates a new PostgreSQL domain store
func NewPostgresDomainStore(db *sql.DB) ports.DomainStore {
	return &PostgresDomainStore{db: db}
}

// entityTables maps canonical entity names onto their tables. Only
// registered entities are reachable; everything else is rejected before
// any SQL is built.
var entityTables = map[string]string{
	"student":       "students",
	"faculty":       "faculty",
	"course":        "courses",
	"department":    "departments",
	"attendance":    "attendance",
	"prediction":    "predictions",
	"student_fee":   "student_fees",
	"invoice":       "invoices",
	"payment":       "payments",
	"employee":      "employees",
	"salary_record": "salary_records",
}

var identifierPattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

func tableFor(entity string) (string, error) {
	table, ok := entityTables[entity]
	if !ok {
		return "", domain.ErrUnknownEntity
	}
	return table, nil
}

// columnFor validates a filter/value key as a safe column reference.
// Keys become SQL identifiers, so anything outside the registry's field
// whitelist (plus the primary key) is rejected.
func columnFor(info domain.EntityInfo, key string) (string, error) {
	if !identifierPattern.MatchString(key) {
		return "", fmt.Errorf("invalid column name: %q", key)
	}
	if key == "id" || info.WritableField(key) {
		return key, nil
	}
	return "", fmt.Errorf("field %q is not writable on %s", key, info.Name)
}

// Query returns up to limit records matching the filters
func (s *PostgresDomainStore) Query(ctx context.Context, entity string, filters map[string]interface{}, limit int) ([]domain.Record, error) {
	table, err := tableFor(entity)
	if err != nil {
		return nil, err
	}
	info, err := domain.LookupEntity(entity)
	if err != nil {
		return nil, err
	}

	where, args, err := buildWhere(info, filters)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf("SELECT row_to_json(t) FROM (SELECT * FROM %s%s ORDER BY id) t", table, where)
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", entity, err)
	}
	defer rows.Close()

	var records []domain.Record
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("failed to scan %s row: %w", entity, err)
		}
		var record domain.Record
		if err := json.Unmarshal(raw, &record); err != nil {
			return nil, fmt.Errorf("failed to unmarshal %s row: %w", entity, err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating %s rows: %w", entity, err)
	}
	return records, nil
}

// Count returns the full number of records matching the filters
func (s *PostgresDomainStore) Count(ctx context.Context, entity string, filters map[string]interface{}) (int, error) {
	table, err := tableFor(entity)
	if err != nil {
		return 0, err
	}
	info, err := domain.LookupEntity(entity)
	if err != nil {
		return 0, err
	}

	where, args, err := buildWhere(info, filters)
	if err != nil {
		return 0, err
	}

	var count int
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s%s", table, where)
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", entity, err)
	}
	return count, nil
}

// Mutate applies one atomic change inside a transaction and returns the
// affected records in their post-mutation state (empty for DELETE).
func (s *PostgresDomainStore) Mutate(ctx context.Context, req ports.MutationRequest) ([]domain.Record, error) {
	table, err := tableFor(req.Entity)
	if err != nil {
		return nil, err
	}
	info, err := domain.LookupEntity(req.Entity)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var records []domain.Record
	switch req.Operation {
	case domain.IntentCreate:
		records, err = s.insert(ctx, tx, table, info, req.Values)
	case domain.IntentUpdate:
		records, err = s.update(ctx, tx, table, info, req)
	case domain.IntentDelete:
		err = s.delete(ctx, tx, table, info, req)
	default:
		err = fmt.Errorf("unsupported mutation operation: %s", req.Operation)
	}
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit mutation: %w", err)
	}
	return records, nil
}

func (s *PostgresDomainStore) insert(ctx context.Context, tx *sql.Tx, table string, info domain.EntityInfo, values domain.Record) ([]domain.Record, error) {
	if len(values) == 0 {
		return nil, fmt.Errorf("no values to insert")
	}

	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	columns := make([]string, 0, len(keys))
	placeholders := make([]string, 0, len(keys))
	args := make([]interface{}, 0, len(keys))
	for i, key := range keys {
		column, err := columnFor(info, key)
		if err != nil {
			return nil, err
		}
		columns = append(columns, column)
		placeholders = append(placeholders, fmt.Sprintf("$%d", i+1))
		args = append(args, values[key])
	}

	query := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s) RETURNING row_to_json(%s)",
		table, strings.Join(columns, ", "), strings.Join(placeholders, ", "), table,
	)

	var raw []byte
	if err := tx.QueryRowContext(ctx, query, args...).Scan(&raw); err != nil {
		return nil, fmt.Errorf("failed to insert into %s: %w", table, err)
	}
	var record domain.Record
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal inserted row: %w", err)
	}
	return []domain.Record{record}, nil
}

func (s *PostgresDomainStore) update(ctx context.Context, tx *sql.Tx, table string, info domain.EntityInfo, req ports.MutationRequest) ([]domain.Record, error) {
	if len(req.Values) == 0 {
		return nil, fmt.Errorf("no values to update")
	}

	keys := make([]string, 0, len(req.Values))
	for key := range req.Values {
		if key == "id" {
			continue // never rewrite primary keys
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)

	sets := make([]string, 0, len(keys))
	args := make([]interface{}, 0, len(keys)+1)
	for i, key := range keys {
		column, err := columnFor(info, key)
		if err != nil {
			return nil, err
		}
		sets = append(sets, fmt.Sprintf("%s = $%d", column, i+1))
		args = append(args, req.Values[key])
	}

	where, whereArgs, err := mutationScope(info, req, len(args))
	if err != nil {
		return nil, err
	}
	args = append(args, whereArgs...)

	query := fmt.Sprintf(
		"UPDATE %s SET %s%s RETURNING row_to_json(%s)",
		table, strings.Join(sets, ", "), where, table,
	)

	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to update %s: %w", table, err)
	}
	defer rows.Close()

	var records []domain.Record
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("failed to scan updated row: %w", err)
		}
		var record domain.Record
		if err := json.Unmarshal(raw, &record); err != nil {
			return nil, fmt.Errorf("failed to unmarshal updated row: %w", err)
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

func (s *PostgresDomainStore) delete(ctx context.Context, tx *sql.Tx, table string, info domain.EntityInfo, req ports.MutationRequest) error {
	where, args, err := mutationScope(info, req, 0)
	if err != nil {
		return err
	}
	if where == "" {
		return fmt.Errorf("refusing to delete without a scope")
	}
	query := fmt.Sprintf("DELETE FROM %s%s", table, where)
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to delete from %s: %w", table, err)
	}
	return nil
}

// mutationScope builds the WHERE clause for UPDATE/DELETE. Explicit keys
// take precedence over filters: approval narrowing and rollback both pin
// the exact rows.
func mutationScope(info domain.EntityInfo, req ports.MutationRequest, argOffset int) (string, []interface{}, error) {
	if len(req.Keys) > 0 {
		return fmt.Sprintf(" WHERE id = ANY($%d)", argOffset+1), []interface{}{pq.Array(req.Keys)}, nil
	}
	where, args, err := buildWhereOffset(info, req.Filters, argOffset)
	if err != nil {
		return "", nil, err
	}
	return where, args, nil
}

func buildWhere(info domain.EntityInfo, filters map[string]interface{}) (string, []interface{}, error) {
	return buildWhereOffset(info, filters, 0)
}

func buildWhereOffset(info domain.EntityInfo, filters map[string]interface{}, argOffset int) (string, []interface{}, error) {
	if len(filters) == 0 {
		return "", nil, nil
	}

	keys := make([]string, 0, len(filters))
	for key := range filters {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var conditions []string
	var args []interface{}
	for _, key := range keys {
		// department is a name filter resolved through the departments
		// table; everything else is a plain equality on a whitelisted
		// column.
		// time_range is an analysis hint, not a column.
		if key == "time_range" {
			continue
		}
		if key == "department" {
			conditions = append(conditions, fmt.Sprintf(
				"department_id IN (SELECT id FROM departments WHERE LOWER(name) LIKE $%d)", argOffset+len(args)+1))
			args = append(args, "%"+strings.ToLower(fmt.Sprintf("%v", filters[key]))+"%")
			continue
		}
		column, err := columnFor(info, key)
		if err != nil {
			return "", nil, err
		}
		conditions = append(conditions, fmt.Sprintf("%s = $%d", column, argOffset+len(args)+1))
		args = append(args, filters[key])
	}
	if len(conditions) == 0 {
		return "", nil, nil
	}
	return " WHERE " + strings.Join(conditions, " AND "), args, nil
}
