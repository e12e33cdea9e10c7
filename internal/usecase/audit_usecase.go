package usecase

import (
	"context"
	"fmt"

	"github.com/campusiq/campusiq/internal/domain"
	"github.com/campusiq/campusiq/internal/ports"
)

// maxAuditResults caps any single audit query.
const maxAuditResults = 500

// AuditUseCase is the filtered read surface over the governance ledger
// plus the aggregate stats view. It only reads; appends happen in the
// orchestrator.
type AuditUseCase struct {
	auditRepo ports.AuditRepository
	planRepo  ports.PlanRepository
	cfg       GovernanceConfig
}

// NewAuditUseCase creates the audit query use case.
func NewAuditUseCase(auditRepo ports.AuditRepository, planRepo ports.PlanRepository, cfg GovernanceConfig) *AuditUseCase {
	return &AuditUseCase{auditRepo: auditRepo, planRepo: planRepo, cfg: cfg}
}

// Query returns audit entries matching the filter. Non-senior actors only
// see their own trail; the result count is always capped.
func (uc *AuditUseCase) Query(ctx context.Context, actor domain.Actor, filter domain.AuditFilter) ([]*domain.AuditEntry, error) {
	if !uc.cfg.IsSenior(actor.Role) {
		filter.ActorUserID = actor.UserID
	}
	if filter.Limit <= 0 || filter.Limit > maxAuditResults {
		filter.Limit = maxAuditResults
	}
	entries, err := uc.auditRepo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit trail: %w", err)
	}
	return entries, nil
}

// Stats returns the aggregate governance summary: plan counts by risk
// tier and module, and executed/failed/rolled-back totals.
func (uc *AuditUseCase) Stats(ctx context.Context, actor domain.Actor) (*domain.GovernanceStats, error) {
	stats, err := uc.planRepo.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate governance stats: %w", err)
	}
	return stats, nil
}
