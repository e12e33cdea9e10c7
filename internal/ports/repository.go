package ports

import (
	"context"

	"github.com/campusiq/campusiq/internal/domain"
)

// PlanRepository defines the interface for plan persistence. The plan
// store is the single source of truth for what was decided; only the
// governance orchestrator writes to it.
type PlanRepository interface {
	// Create persists a new plan
	Create(ctx context.Context, plan *domain.Plan) error

	// FindByID retrieves a plan by its ID
	FindByID(ctx context.Context, planID string) (*domain.Plan, error)

	// TransitionStatus atomically moves a plan from one of the expected
	// statuses to the target status, optionally recording a decision.
	// At-most-one-winner: when two callers race on the same plan, exactly
	// one succeeds and the other receives ErrPlanNotAwaitingDecision.
	TransitionStatus(ctx context.Context, planID string, from []domain.PlanStatus, to domain.PlanStatus, decision *domain.Decision) error

	// ListByStatus retrieves plans in the given status, newest first
	ListByStatus(ctx context.Context, status domain.PlanStatus, limit int) ([]*domain.Plan, error)

	// Stats aggregates plan counts by risk tier, module, and outcome
	Stats(ctx context.Context) (*domain.GovernanceStats, error)
}

// ExecutionRepository defines the interface for execution persistence.
// Executions are created exclusively by the execution engine and are
// immutable except for the single rollback transition.
type ExecutionRepository interface {
	// Create persists a new execution record
	Create(ctx context.Context, execution *domain.Execution) error

	// FindByID retrieves an execution by its ID
	FindByID(ctx context.Context, executionID string) (*domain.Execution, error)

	// FindByPlanID retrieves all executions for a plan, newest first
	FindByPlanID(ctx context.Context, planID string) ([]*domain.Execution, error)

	// MarkRolledBack transitions an execution from executed to
	// rolled_back. Idempotency on an already-rolled-back execution is
	// decided by the caller from the current status.
	MarkRolledBack(ctx context.Context, executionID string) error
}

// AuditRepository defines the interface for the append-only governance
// ledger. Entries are write-once; the reader only filters.
type AuditRepository interface {
	// Append writes one audit entry. Must never be skipped even when the
	// triggering operation failed.
	Append(ctx context.Context, entry *domain.AuditEntry) error

	// List retrieves audit entries matching the filter, newest first,
	// capped at the reader's result limit.
	List(ctx context.Context, filter domain.AuditFilter) ([]*domain.AuditEntry, error)
}
