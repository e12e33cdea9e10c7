package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/lib/pq"

	"github.com/campusiq/campusiq/internal/domain"
	"github.com/campusiq/campusiq/internal/ports"
)

// PostgresPlanRepository implements PlanRepository using PostgreSQL.
// Status transitions are compare-and-swap on the status column so that
// two racing decisions can never both win.
type PostgresPlanRepository struct {
	db *sql.DB
}

// NewPostgresPlanRepository creates a new PostgreSQL plan repository
func NewPostgresPlanRepository(db *sql.DB) ports.PlanRepository {
	return &PostgresPlanRepository{db: db}
}

// Create persists a new plan
func (r *PostgresPlanRepository) Create(ctx context.Context, plan *domain.Plan) error {
	query := `
		INSERT INTO plans (plan_id, actor, module, command, intent, risk_level, estimated_impact_count,
			preview, status, requires_confirmation, requires_senior_approval, requires_2fa,
			permission_reason, decision, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`

	actorJSON, err := json.Marshal(plan.Actor)
	if err != nil {
		return fmt.Errorf("failed to marshal actor: %w", err)
	}
	intentJSON, err := json.Marshal(plan.Intent)
	if err != nil {
		return fmt.Errorf("failed to marshal intent: %w", err)
	}
	previewJSON, err := json.Marshal(plan.Preview)
	if err != nil {
		return fmt.Errorf("failed to marshal preview: %w", err)
	}
	var decisionJSON []byte
	if plan.Decision != nil {
		decisionJSON, err = json.Marshal(plan.Decision)
		if err != nil {
			return fmt.Errorf("failed to marshal decision: %w", err)
		}
	}

	_, err = r.db.ExecContext(ctx, query,
		plan.PlanID,
		actorJSON,
		plan.Module,
		plan.Command,
		intentJSON,
		string(plan.RiskLevel),
		plan.EstimatedImpactCount,
		previewJSON,
		string(plan.Status),
		plan.RequiresConfirmation,
		plan.RequiresSeniorApproval,
		plan.Requires2FA,
		plan.PermissionReason,
		decisionJSON,
		plan.CreatedAt,
		plan.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create plan: %w", err)
	}
	return nil
}

// FindByID retrieves a plan by its ID
func (r *PostgresPlanRepository) FindByID(ctx context.Context, planID string) (*domain.Plan, error) {
	query := `
		SELECT plan_id, actor, module, command, intent, risk_level, estimated_impact_count,
			preview, status, requires_confirmation, requires_senior_approval, requires_2fa,
			permission_reason, decision, created_at, updated_at
		FROM plans
		WHERE plan_id = $1
	`
	row := r.db.QueryRowContext(ctx, query, planID)
	plan, err := scanPlan(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrPlanNotFound
		}
		return nil, fmt.Errorf("failed to find plan: %w", err)
	}
	return plan, nil
}

// TransitionStatus atomically moves a plan between statuses. When the
// plan exists but is not in one of the expected statuses, the caller
// lost the race and receives ErrPlanNotAwaitingDecision.
func (r *PostgresPlanRepository) TransitionStatus(ctx context.Context, planID string, from []domain.PlanStatus, to domain.PlanStatus, decision *domain.Decision) error {
	fromStrings := make([]string, 0, len(from))
	for _, s := range from {
		fromStrings = append(fromStrings, string(s))
	}

	var decisionJSON []byte
	if decision != nil {
		var err error
		decisionJSON, err = json.Marshal(decision)
		if err != nil {
			return fmt.Errorf("failed to marshal decision: %w", err)
		}
	}

	query := `
		UPDATE plans
		SET status = $2, decision = COALESCE($3, decision), updated_at = NOW()
		WHERE plan_id = $1 AND status = ANY($4)
	`
	result, err := r.db.ExecContext(ctx, query, planID, string(to), decisionJSON, pq.Array(fromStrings))
	if err != nil {
		return fmt.Errorf("failed to transition plan status: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		var exists bool
		if err := r.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM plans WHERE plan_id = $1)`, planID).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check plan existence: %w", err)
		}
		if !exists {
			return domain.ErrPlanNotFound
		}
		return domain.ErrPlanNotAwaitingDecision
	}
	return nil
}

// ListByStatus retrieves plans in the given status, newest first
func (r *PostgresPlanRepository) ListByStatus(ctx context.Context, status domain.PlanStatus, limit int) ([]*domain.Plan, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `
		SELECT plan_id, actor, module, command, intent, risk_level, estimated_impact_count,
			preview, status, requires_confirmation, requires_senior_approval, requires_2fa,
			permission_reason, decision, created_at, updated_at
		FROM plans
		WHERE status = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := r.db.QueryContext(ctx, query, string(status), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list plans: %w", err)
	}
	defer rows.Close()

	var plans []*domain.Plan
	for rows.Next() {
		plan, err := scanPlan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan plan: %w", err)
		}
		plans = append(plans, plan)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating plans: %w", err)
	}
	return plans, nil
}

// Stats aggregates plan counts by risk tier, module, and outcome
func (r *PostgresPlanRepository) Stats(ctx context.Context) (*domain.GovernanceStats, error) {
	stats := &domain.GovernanceStats{
		ByRiskLevel: make(map[string]int),
		ByModule:    make(map[string]int),
	}

	riskQuery := `SELECT risk_level, COUNT(*) FROM plans WHERE risk_level <> '' GROUP BY risk_level`
	rows, err := r.db.QueryContext(ctx, riskQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to count plans by risk: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var risk string
		var count int
		if err := rows.Scan(&risk, &count); err != nil {
			return nil, fmt.Errorf("failed to scan risk count: %w", err)
		}
		stats.ByRiskLevel[risk] = count
		stats.TotalPlans += count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating risk counts: %w", err)
	}

	moduleQuery := `SELECT module, COUNT(*) FROM plans GROUP BY module`
	moduleRows, err := r.db.QueryContext(ctx, moduleQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to count plans by module: %w", err)
	}
	defer moduleRows.Close()
	for moduleRows.Next() {
		var module string
		var count int
		if err := moduleRows.Scan(&module, &count); err != nil {
			return nil, fmt.Errorf("failed to scan module count: %w", err)
		}
		stats.ByModule[module] = count
	}
	if err := moduleRows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating module counts: %w", err)
	}

	outcomeQuery := `
		SELECT
			COUNT(*) FILTER (WHERE status IN ('executed', 'auto_executed')),
			COUNT(*) FILTER (WHERE status = 'failed'),
			COUNT(*) FILTER (WHERE status = 'rolled_back'),
			COUNT(*) FILTER (WHERE status IN ('awaiting_confirmation', 'awaiting_senior_approval'))
		FROM plans
	`
	if err := r.db.QueryRowContext(ctx, outcomeQuery).Scan(&stats.Executed, &stats.Failed, &stats.RolledBack, &stats.PendingCount); err != nil {
		return nil, fmt.Errorf("failed to count plan outcomes: %w", err)
	}

	return stats, nil
}

// rowScanner abstracts *sql.Row and *sql.Rows for shared scanning.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPlan(row rowScanner) (*domain.Plan, error) {
	var plan domain.Plan
	var actorJSON, intentJSON, previewJSON []byte
	var decisionJSON []byte
	var permissionReason sql.NullString

	err := row.Scan(
		&plan.PlanID,
		&actorJSON,
		&plan.Module,
		&plan.Command,
		&intentJSON,
		&plan.RiskLevel,
		&plan.EstimatedImpactCount,
		&previewJSON,
		&plan.Status,
		&plan.RequiresConfirmation,
		&plan.RequiresSeniorApproval,
		&plan.Requires2FA,
		&permissionReason,
		&decisionJSON,
		&plan.CreatedAt,
		&plan.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(actorJSON, &plan.Actor); err != nil {
		return nil, fmt.Errorf("failed to unmarshal actor: %w", err)
	}
	if err := json.Unmarshal(intentJSON, &plan.Intent); err != nil {
		return nil, fmt.Errorf("failed to unmarshal intent: %w", err)
	}
	if err := json.Unmarshal(previewJSON, &plan.Preview); err != nil {
		return nil, fmt.Errorf("failed to unmarshal preview: %w", err)
	}
	if len(decisionJSON) > 0 {
		var decision domain.Decision
		if err := json.Unmarshal(decisionJSON, &decision); err != nil {
			return nil, fmt.Errorf("failed to unmarshal decision: %w", err)
		}
		plan.Decision = &decision
	}
	if permissionReason.Valid {
		plan.PermissionReason = permissionReason.String
	}
	return &plan, nil
}
