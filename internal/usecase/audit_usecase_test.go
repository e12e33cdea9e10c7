package usecase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/campusiq/campusiq/internal/domain"
)

func newAuditUseCase() (*AuditUseCase, *MockAuditRepository, *MockPlanRepository) {
	auditRepo := new(MockAuditRepository)
	planRepo := new(MockPlanRepository)
	cfg := defaultConfig()
	cfg.SeniorRoles = []domain.Role{domain.RoleAdmin, domain.RoleRegistrar}
	return NewAuditUseCase(auditRepo, planRepo, cfg), auditRepo, planRepo
}

func TestAuditQuery_NonSeniorScopedToOwnTrail(t *testing.T) {
	uc, auditRepo, _ := newAuditUseCase()
	faculty := domain.Actor{UserID: "f1", Role: domain.RoleFaculty}

	auditRepo.On("List", mock.Anything, mock.MatchedBy(func(f domain.AuditFilter) bool {
		return f.ActorUserID == "f1"
	})).Return([]*domain.AuditEntry{}, nil)

	// Asking for someone else's trail gets silently re-scoped.
	_, err := uc.Query(context.Background(), faculty, domain.AuditFilter{ActorUserID: "a1"})

	assert.NoError(t, err)
	auditRepo.AssertExpectations(t)
}

func TestAuditQuery_SeniorFilterPassesThrough(t *testing.T) {
	uc, auditRepo, _ := newAuditUseCase()
	admin := domain.Actor{UserID: "a1", Role: domain.RoleAdmin}

	auditRepo.On("List", mock.Anything, mock.MatchedBy(func(f domain.AuditFilter) bool {
		return f.ActorUserID == "f1" && f.Limit == 20
	})).Return([]*domain.AuditEntry{{EventID: "audit_1"}}, nil)

	entries, err := uc.Query(context.Background(), admin, domain.AuditFilter{ActorUserID: "f1", Limit: 20})

	assert.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestAuditQuery_LimitCapped(t *testing.T) {
	uc, auditRepo, _ := newAuditUseCase()
	admin := domain.Actor{UserID: "a1", Role: domain.RoleAdmin}

	auditRepo.On("List", mock.Anything, mock.MatchedBy(func(f domain.AuditFilter) bool {
		return f.Limit == maxAuditResults
	})).Return([]*domain.AuditEntry{}, nil).Twice()

	_, err := uc.Query(context.Background(), admin, domain.AuditFilter{Limit: 10000})
	assert.NoError(t, err)

	_, err = uc.Query(context.Background(), admin, domain.AuditFilter{})
	assert.NoError(t, err)

	auditRepo.AssertExpectations(t)
}

func TestAuditStats_DelegatesToPlanRepo(t *testing.T) {
	uc, _, planRepo := newAuditUseCase()
	admin := domain.Actor{UserID: "a1", Role: domain.RoleAdmin}

	planRepo.On("Stats", mock.Anything).Return(&domain.GovernanceStats{TotalPlans: 12}, nil)

	stats, err := uc.Stats(context.Background(), admin)

	assert.NoError(t, err)
	assert.Equal(t, 12, stats.TotalPlans)
}
