package usecase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/campusiq/campusiq/internal/domain"
	"github.com/campusiq/campusiq/internal/engine"
	"github.com/campusiq/campusiq/internal/ports"
	"github.com/campusiq/campusiq/internal/service/logger"
)

// MockPlanRepository is a mock implementation of ports.PlanRepository
type MockPlanRepository struct {
	mock.Mock
}

func (m *MockPlanRepository) Create(ctx context.Context, plan *domain.Plan) error {
	args := m.Called(ctx, plan)
	return args.Error(0)
}

func (m *MockPlanRepository) FindByID(ctx context.Context, planID string) (*domain.Plan, error) {
	args := m.Called(ctx, planID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Plan), args.Error(1)
}

func (m *MockPlanRepository) TransitionStatus(ctx context.Context, planID string, from []domain.PlanStatus, to domain.PlanStatus, decision *domain.Decision) error {
	args := m.Called(ctx, planID, from, to, decision)
	return args.Error(0)
}

func (m *MockPlanRepository) ListByStatus(ctx context.Context, status domain.PlanStatus, limit int) ([]*domain.Plan, error) {
	args := m.Called(ctx, status, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Plan), args.Error(1)
}

func (m *MockPlanRepository) Stats(ctx context.Context) (*domain.GovernanceStats, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.GovernanceStats), args.Error(1)
}

// MockAuditRepository is a mock implementation of ports.AuditRepository
type MockAuditRepository struct {
	mock.Mock
	entries []*domain.AuditEntry
}

func (m *MockAuditRepository) Append(ctx context.Context, entry *domain.AuditEntry) error {
	args := m.Called(ctx, entry)
	if args.Error(0) == nil {
		m.entries = append(m.entries, entry)
	}
	return args.Error(0)
}

func (m *MockAuditRepository) List(ctx context.Context, filter domain.AuditFilter) ([]*domain.AuditEntry, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.AuditEntry), args.Error(1)
}

func (m *MockAuditRepository) eventTypes() []domain.AuditEventType {
	types := make([]domain.AuditEventType, 0, len(m.entries))
	for _, e := range m.entries {
		types = append(types, e.EventType)
	}
	return types
}

// MockExecutionRepository is a mock implementation of ports.ExecutionRepository
type MockExecutionRepository struct {
	mock.Mock
}

func (m *MockExecutionRepository) Create(ctx context.Context, execution *domain.Execution) error {
	args := m.Called(ctx, execution)
	return args.Error(0)
}

func (m *MockExecutionRepository) FindByID(ctx context.Context, executionID string) (*domain.Execution, error) {
	args := m.Called(ctx, executionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Execution), args.Error(1)
}

func (m *MockExecutionRepository) FindByPlanID(ctx context.Context, planID string) ([]*domain.Execution, error) {
	args := m.Called(ctx, planID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Execution), args.Error(1)
}

func (m *MockExecutionRepository) MarkRolledBack(ctx context.Context, executionID string) error {
	args := m.Called(ctx, executionID)
	return args.Error(0)
}

// MockDomainStore is a mock implementation of ports.DomainStore
type MockDomainStore struct {
	mock.Mock
}

func (m *MockDomainStore) Query(ctx context.Context, entity string, filters map[string]interface{}, limit int) ([]domain.Record, error) {
	args := m.Called(ctx, entity, filters, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Record), args.Error(1)
}

func (m *MockDomainStore) Count(ctx context.Context, entity string, filters map[string]interface{}) (int, error) {
	args := m.Called(ctx, entity, filters)
	return args.Int(0), args.Error(1)
}

func (m *MockDomainStore) Mutate(ctx context.Context, req ports.MutationRequest) ([]domain.Record, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Record), args.Error(1)
}

// MockIntentClassifier is a mock implementation of ports.IntentClassifier
type MockIntentClassifier struct {
	mock.Mock
}

func (m *MockIntentClassifier) Classify(ctx context.Context, rawText, module, priorClarification string) (*ports.ClassificationResult, error) {
	args := m.Called(ctx, rawText, module, priorClarification)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ports.ClassificationResult), args.Error(1)
}

// MockActorDirectory is a mock implementation of ports.ActorDirectory
type MockActorDirectory struct {
	mock.Mock
}

func (m *MockActorDirectory) Lookup(ctx context.Context, userID string) (domain.Actor, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(domain.Actor), args.Error(1)
}

// MockSecondFactorVerifier is a mock implementation of ports.SecondFactorVerifier
type MockSecondFactorVerifier struct {
	mock.Mock
}

func (m *MockSecondFactorVerifier) Issue(ctx context.Context, userID string) (string, error) {
	args := m.Called(ctx, userID)
	return args.String(0), args.Error(1)
}

func (m *MockSecondFactorVerifier) Verify(ctx context.Context, userID, code string) (bool, error) {
	args := m.Called(ctx, userID, code)
	return args.Bool(0), args.Error(1)
}

// MockNotifier is a mock implementation of ports.Notifier
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Notify(ctx context.Context, actor domain.Actor, event string, payload map[string]interface{}) error {
	args := m.Called(ctx, actor, event, payload)
	return args.Error(0)
}

type testHarness struct {
	planRepo     *MockPlanRepository
	auditRepo    *MockAuditRepository
	execRepo     *MockExecutionRepository
	store        *MockDomainStore
	classifier   *MockIntentClassifier
	directory    *MockActorDirectory
	secondFactor *MockSecondFactorVerifier
	notifier     *MockNotifier
	uc           *GovernanceUseCase
}

func newHarness(cfg GovernanceConfig) *testHarness {
	h := &testHarness{
		planRepo:     new(MockPlanRepository),
		auditRepo:    new(MockAuditRepository),
		execRepo:     new(MockExecutionRepository),
		store:        new(MockDomainStore),
		classifier:   new(MockIntentClassifier),
		directory:    new(MockActorDirectory),
		secondFactor: new(MockSecondFactorVerifier),
		notifier:     new(MockNotifier),
	}
	estimator := NewImpactEstimator(h.store, cfg.PreviewLimit, 0)
	executor := engine.NewExecutor(h.store, h.execRepo)
	h.uc = NewGovernanceUseCase(
		h.planRepo, h.auditRepo, h.execRepo,
		h.classifier, h.directory, h.secondFactor, h.notifier,
		estimator, executor, cfg, logger.Noop(),
	)
	return h
}

func defaultConfig() GovernanceConfig {
	return GovernanceConfig{
		PreviewLimit:        50,
		BulkThreshold:       25,
		ConfidenceThreshold: 0.5,
		GatesEnabled:        true,
	}
}

func classification(intentType, entity string, confidence float64) *ports.ClassificationResult {
	return &ports.ClassificationResult{
		IntentType: intentType,
		Entity:     entity,
		Filters:    map[string]interface{}{"semester": 6},
		Confidence: confidence,
	}
}

func TestSubmit_FacultyDeleteStudentsIsDenied(t *testing.T) {
	h := newHarness(defaultConfig())
	faculty := domain.Actor{UserID: "f1", Role: domain.RoleFaculty, DepartmentScope: "CS", RoleVersion: 1}

	h.classifier.On("Classify", mock.Anything, "delete all students in semester 6", "academic", "").
		Return(classification("DELETE", "student", 0.95), nil)
	h.planRepo.On("Create", mock.Anything, mock.MatchedBy(func(p *domain.Plan) bool {
		return p.Status == domain.PlanStatusPermissionDenied && p.RiskLevel == domain.RiskLevel("")
	})).Return(nil)
	h.auditRepo.On("Append", mock.Anything, mock.Anything).Return(nil)

	result, err := h.uc.Submit(context.Background(), faculty, SubmitRequest{
		Command: "delete all students in semester 6",
		Module:  "academic",
	})

	assert.NoError(t, err)
	assert.NotNil(t, result.Plan)
	assert.Equal(t, domain.PlanStatusPermissionDenied, result.Plan.Status)
	assert.False(t, result.Permission.Allowed)
	assert.True(t, result.Permission.EscalationRequired)
	assert.Nil(t, result.Execution)

	// Denial short-circuits before risk, preview, and execution.
	h.store.AssertNotCalled(t, "Count", mock.Anything, mock.Anything, mock.Anything)
	h.execRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	assert.Equal(t, []domain.AuditEventType{domain.AuditEventPermissionDenied}, h.auditRepo.eventTypes())
}

func TestSubmit_AmbiguousCommandCreatesNoPlan(t *testing.T) {
	h := newHarness(defaultConfig())
	faculty := domain.Actor{UserID: "f1", Role: domain.RoleFaculty, DepartmentScope: "CS"}

	h.classifier.On("Classify", mock.Anything, "update the records", "academic", "").
		Return(&ports.ClassificationResult{
			IntentType:    "UPDATE",
			Entity:        "student",
			Confidence:    0.3,
			MissingFields: []string{"filters"},
			Question:      "Which records should this apply to?",
		}, nil)
	h.auditRepo.On("Append", mock.Anything, mock.MatchedBy(func(e *domain.AuditEntry) bool {
		return e.EventType == domain.AuditEventClarificationNeeded
	})).Return(nil)

	result, err := h.uc.Submit(context.Background(), faculty, SubmitRequest{Command: "update the records"})

	assert.NoError(t, err)
	assert.Nil(t, result.Plan)
	assert.NotNil(t, result.Clarification)
	assert.Contains(t, result.Clarification.MissingFields, "filters")

	// The clarification loop must leave no downstream state behind.
	h.planRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	h.execRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestSubmit_LowRiskReadAutoExecutes(t *testing.T) {
	h := newHarness(defaultConfig())
	faculty := domain.Actor{UserID: "f1", Role: domain.RoleFaculty, DepartmentScope: "CS"}

	h.classifier.On("Classify", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(classification("READ", "student", 0.9), nil)
	h.store.On("Count", mock.Anything, "student", mock.Anything).Return(42, nil)
	h.store.On("Query", mock.Anything, "student", mock.Anything, 50).
		Return([]domain.Record{{"id": 1, "roll_number": "CS2021001"}}, nil)
	h.planRepo.On("Create", mock.Anything, mock.Anything).Return(nil)
	h.planRepo.On("TransitionStatus", mock.Anything, mock.Anything, mock.Anything, domain.PlanStatusAutoExecuted, (*domain.Decision)(nil)).Return(nil)
	h.execRepo.On("Create", mock.Anything, mock.Anything).Return(nil)
	h.auditRepo.On("Append", mock.Anything, mock.Anything).Return(nil)
	h.notifier.On("Notify", mock.Anything, mock.Anything, "plan_executed", mock.Anything).Return(nil)

	result, err := h.uc.Submit(context.Background(), faculty, SubmitRequest{Command: "show students in semester 6"})

	assert.NoError(t, err)
	assert.Equal(t, domain.RiskLow, result.Plan.RiskLevel)
	assert.False(t, result.Plan.RequiresConfirmation)
	assert.False(t, result.Plan.RequiresSeniorApproval)
	assert.NotNil(t, result.Execution)
	assert.Equal(t, 42, result.Execution.AffectedCount)
	assert.Equal(t, domain.PlanStatusAutoExecuted, result.Plan.Status)

	// Write-ahead ordering: execution_started precedes executed.
	assert.Equal(t, []domain.AuditEventType{
		domain.AuditEventCreated,
		domain.AuditEventExecutionStarted,
		domain.AuditEventExecuted,
	}, h.auditRepo.eventTypes())
}

func TestSubmit_AliasEntityIsCanonicalizedOnPlan(t *testing.T) {
	h := newHarness(defaultConfig())
	admin := domain.Actor{UserID: "a1", Role: domain.RoleAdmin}

	// A pluggable classifier may emit an alias; the plan and every store
	// call must carry the canonical entity name.
	h.classifier.On("Classify", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(classification("READ", "students", 0.9), nil)
	h.store.On("Count", mock.Anything, "student", mock.Anything).Return(3, nil)
	h.store.On("Query", mock.Anything, "student", mock.Anything, mock.Anything).
		Return([]domain.Record{{"id": 1}}, nil)
	h.planRepo.On("Create", mock.Anything, mock.MatchedBy(func(p *domain.Plan) bool {
		return p.Intent.Entity == "student"
	})).Return(nil)
	h.planRepo.On("TransitionStatus", mock.Anything, mock.Anything, mock.Anything, domain.PlanStatusAutoExecuted, (*domain.Decision)(nil)).Return(nil)
	h.execRepo.On("Create", mock.Anything, mock.Anything).Return(nil)
	h.auditRepo.On("Append", mock.Anything, mock.Anything).Return(nil)
	h.notifier.On("Notify", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

	result, err := h.uc.Submit(context.Background(), admin, SubmitRequest{Command: "show students"})

	assert.NoError(t, err)
	assert.Equal(t, "student", result.Plan.Intent.Entity)
	assert.Equal(t, "student", result.Execution.Entity)
	h.store.AssertNotCalled(t, "Count", mock.Anything, "students", mock.Anything)
}

func TestSubmit_HighRiskParksForSeniorApproval(t *testing.T) {
	h := newHarness(defaultConfig())
	admin := domain.Actor{UserID: "a1", Role: domain.RoleAdmin}

	h.classifier.On("Classify", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(classification("DELETE", "student", 0.9), nil)
	h.store.On("Count", mock.Anything, "student", mock.Anything).Return(30, nil)
	h.store.On("Query", mock.Anything, "student", mock.Anything, 50).
		Return([]domain.Record{{"id": 1}}, nil)
	h.planRepo.On("Create", mock.Anything, mock.Anything).Return(nil)
	h.planRepo.On("TransitionStatus", mock.Anything, mock.Anything,
		[]domain.PlanStatus{domain.PlanStatusCreated}, domain.PlanStatusAwaitingApproval, (*domain.Decision)(nil)).Return(nil)
	h.auditRepo.On("Append", mock.Anything, mock.Anything).Return(nil)
	h.notifier.On("Notify", mock.Anything, mock.Anything, "plan_awaiting_approval", mock.Anything).Return(nil)

	result, err := h.uc.Submit(context.Background(), admin, SubmitRequest{Command: "delete students in semester 6"})

	assert.NoError(t, err)
	assert.Equal(t, domain.RiskHigh, result.Plan.RiskLevel)
	assert.True(t, result.Plan.RequiresSeniorApproval)
	assert.True(t, result.Plan.Requires2FA)
	assert.Equal(t, domain.PlanStatusAwaitingApproval, result.Plan.Status)
	assert.Nil(t, result.Execution)
	h.execRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	h.notifier.AssertExpectations(t)
}

func TestSubmit_GatesDisabledExecutesEverything(t *testing.T) {
	cfg := defaultConfig()
	cfg.GatesEnabled = false
	h := newHarness(cfg)
	admin := domain.Actor{UserID: "a1", Role: domain.RoleAdmin}

	h.classifier.On("Classify", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(classification("DELETE", "attendance", 0.9), nil)
	h.store.On("Count", mock.Anything, "attendance", mock.Anything).Return(40, nil)
	h.store.On("Query", mock.Anything, "attendance", mock.Anything, mock.Anything).
		Return([]domain.Record{{"id": 1}, {"id": 2}}, nil)
	h.store.On("Mutate", mock.Anything, mock.Anything).Return(nil, nil)
	h.planRepo.On("Create", mock.Anything, mock.Anything).Return(nil)
	h.planRepo.On("TransitionStatus", mock.Anything, mock.Anything, mock.Anything, domain.PlanStatusAutoExecuted, (*domain.Decision)(nil)).Return(nil)
	h.execRepo.On("Create", mock.Anything, mock.Anything).Return(nil)
	h.auditRepo.On("Append", mock.Anything, mock.Anything).Return(nil)
	h.notifier.On("Notify", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

	result, err := h.uc.Submit(context.Background(), admin, SubmitRequest{Command: "purge attendance"})

	assert.NoError(t, err)
	// Risk is still classified honestly; only the gating is disabled.
	assert.Equal(t, domain.RiskHigh, result.Plan.RiskLevel)
	assert.False(t, result.Plan.RequiresSeniorApproval)
	assert.NotNil(t, result.Execution)
}

func awaitingPlan(requires2FA bool) *domain.Plan {
	actor := domain.Actor{UserID: "r1", Role: domain.RoleRegistrar, RoleVersion: 1}
	plan := domain.NewPlan(actor, "academic", "delete students in semester 6", domain.Intent{
		Type:    domain.IntentDelete,
		Entity:  "student",
		Filters: map[string]interface{}{"semester": 6},
	})
	plan.Status = domain.PlanStatusAwaitingApproval
	plan.RiskLevel = domain.RiskHigh
	plan.RequiresSeniorApproval = true
	plan.Requires2FA = requires2FA
	plan.Preview.Rollback = domain.RollbackNote{SupportsRollback: false, Reason: "cascading deletes"}
	return plan
}

func TestDecide_StaleActorRejected(t *testing.T) {
	h := newHarness(defaultConfig())
	plan := awaitingPlan(false)
	admin := domain.Actor{UserID: "a1", Role: domain.RoleAdmin}

	h.planRepo.On("FindByID", mock.Anything, plan.PlanID).Return(plan, nil)
	demoted := plan.Actor
	demoted.RoleVersion = 2
	h.directory.On("Lookup", mock.Anything, plan.Actor.UserID).Return(demoted, nil)

	_, err := h.uc.Decide(context.Background(), admin, DecideRequest{
		PlanID:  plan.PlanID,
		Verdict: domain.VerdictApprove,
	})

	assert.ErrorIs(t, err, domain.ErrStaleActor)
	h.planRepo.AssertNotCalled(t, "TransitionStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestDecide_NonSeniorCannotApproveHighRisk(t *testing.T) {
	h := newHarness(defaultConfig())
	plan := awaitingPlan(false)
	faculty := domain.Actor{UserID: "f1", Role: domain.RoleFaculty}

	h.planRepo.On("FindByID", mock.Anything, plan.PlanID).Return(plan, nil)
	h.directory.On("Lookup", mock.Anything, plan.Actor.UserID).Return(plan.Actor, nil)

	_, err := h.uc.Decide(context.Background(), faculty, DecideRequest{
		PlanID:  plan.PlanID,
		Verdict: domain.VerdictApprove,
	})

	assert.ErrorIs(t, err, domain.ErrSeniorApprovalRequired)
}

func TestDecide_SecondFactorRequired(t *testing.T) {
	h := newHarness(defaultConfig())
	plan := awaitingPlan(true)
	admin := domain.Actor{UserID: "a1", Role: domain.RoleAdmin}

	h.planRepo.On("FindByID", mock.Anything, plan.PlanID).Return(plan, nil)
	h.directory.On("Lookup", mock.Anything, plan.Actor.UserID).Return(plan.Actor, nil)
	h.secondFactor.On("Verify", mock.Anything, "a1", "000000").Return(false, nil)

	_, err := h.uc.Decide(context.Background(), admin, DecideRequest{
		PlanID:        plan.PlanID,
		Verdict:       domain.VerdictApprove,
		TwoFactorCode: "000000",
	})

	assert.ErrorIs(t, err, domain.ErrTwoFactorRequired)
	h.planRepo.AssertNotCalled(t, "TransitionStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestDecide_RacingDecisionLoses(t *testing.T) {
	h := newHarness(defaultConfig())
	plan := awaitingPlan(false)
	admin := domain.Actor{UserID: "a1", Role: domain.RoleAdmin}

	h.planRepo.On("FindByID", mock.Anything, plan.PlanID).Return(plan, nil)
	h.directory.On("Lookup", mock.Anything, plan.Actor.UserID).Return(plan.Actor, nil)
	h.planRepo.On("TransitionStatus", mock.Anything, plan.PlanID, mock.Anything, domain.PlanStatusRejected, mock.Anything).
		Return(domain.ErrPlanNotAwaitingDecision)

	_, err := h.uc.Decide(context.Background(), admin, DecideRequest{
		PlanID:  plan.PlanID,
		Verdict: domain.VerdictReject,
	})

	assert.ErrorIs(t, err, domain.ErrPlanNotAwaitingDecision)
	h.auditRepo.AssertNotCalled(t, "Append", mock.Anything, mock.Anything)
}

func TestDecide_ApproveExecutesPlan(t *testing.T) {
	h := newHarness(defaultConfig())
	plan := awaitingPlan(true)
	admin := domain.Actor{UserID: "a1", Role: domain.RoleAdmin}

	h.planRepo.On("FindByID", mock.Anything, plan.PlanID).Return(plan, nil)
	h.directory.On("Lookup", mock.Anything, plan.Actor.UserID).Return(plan.Actor, nil)
	h.secondFactor.On("Verify", mock.Anything, "a1", "123456").Return(true, nil)
	h.planRepo.On("TransitionStatus", mock.Anything, plan.PlanID, mock.Anything, domain.PlanStatusApproved, mock.Anything).Return(nil)
	h.planRepo.On("TransitionStatus", mock.Anything, plan.PlanID, mock.Anything, domain.PlanStatusExecuted, (*domain.Decision)(nil)).Return(nil)
	h.store.On("Query", mock.Anything, "student", plan.Intent.Filters, 0).
		Return([]domain.Record{{"id": 1, "roll_number": "CS2021001"}}, nil)
	h.store.On("Mutate", mock.Anything, mock.Anything).Return(nil, nil)
	h.execRepo.On("Create", mock.Anything, mock.Anything).Return(nil)
	h.auditRepo.On("Append", mock.Anything, mock.Anything).Return(nil)
	h.notifier.On("Notify", mock.Anything, mock.Anything, "plan_executed", mock.Anything).Return(nil)

	result, err := h.uc.Decide(context.Background(), admin, DecideRequest{
		PlanID:        plan.PlanID,
		Verdict:       domain.VerdictApprove,
		TwoFactorCode: "123456",
	})

	assert.NoError(t, err)
	assert.Equal(t, domain.PlanStatusExecuted, result.Plan.Status)
	assert.NotNil(t, result.Execution)
	assert.Equal(t, "a1", result.Execution.ExecutedBy)
	assert.Equal(t, []domain.AuditEventType{
		domain.AuditEventApproved,
		domain.AuditEventExecutionStarted,
		domain.AuditEventExecuted,
	}, h.auditRepo.eventTypes())
}

func TestDecide_EscalateOnlyFromSeniorQueue(t *testing.T) {
	h := newHarness(defaultConfig())
	plan := awaitingPlan(false)
	plan.Status = domain.PlanStatusAwaitingConfirm
	plan.RequiresSeniorApproval = false
	admin := domain.Actor{UserID: "a1", Role: domain.RoleAdmin}

	h.planRepo.On("FindByID", mock.Anything, plan.PlanID).Return(plan, nil)
	h.directory.On("Lookup", mock.Anything, plan.Actor.UserID).Return(plan.Actor, nil)

	_, err := h.uc.Decide(context.Background(), admin, DecideRequest{
		PlanID:  plan.PlanID,
		Verdict: domain.VerdictEscalate,
	})

	assert.Error(t, err)
}

func TestDecide_TerminalPlanRejected(t *testing.T) {
	h := newHarness(defaultConfig())
	plan := awaitingPlan(false)
	plan.Status = domain.PlanStatusRejected
	admin := domain.Actor{UserID: "a1", Role: domain.RoleAdmin}

	h.planRepo.On("FindByID", mock.Anything, plan.PlanID).Return(plan, nil)

	_, err := h.uc.Decide(context.Background(), admin, DecideRequest{
		PlanID:  plan.PlanID,
		Verdict: domain.VerdictApprove,
	})

	assert.ErrorIs(t, err, domain.ErrPlanNotAwaitingDecision)
}

func TestRollback_IdempotentNoOp(t *testing.T) {
	h := newHarness(defaultConfig())
	admin := domain.Actor{UserID: "a1", Role: domain.RoleAdmin}

	execution := &domain.Execution{
		ExecutionID: "exec_1",
		PlanID:      "plan_1",
		ExecutedBy:  "r1",
		Status:      domain.ExecutionStatusRolledBack,
	}
	h.execRepo.On("FindByID", mock.Anything, "exec_1").Return(execution, nil)

	result, err := h.uc.Rollback(context.Background(), admin, "exec_1")

	assert.NoError(t, err)
	assert.Equal(t, domain.ExecutionStatusRolledBack, result.Status)
	h.store.AssertNotCalled(t, "Mutate", mock.Anything, mock.Anything)
	h.auditRepo.AssertNotCalled(t, "Append", mock.Anything, mock.Anything)
}

func TestRollback_RequiresOwnershipOrSeniority(t *testing.T) {
	h := newHarness(defaultConfig())
	stranger := domain.Actor{UserID: "f2", Role: domain.RoleFaculty}

	execution := &domain.Execution{
		ExecutionID: "exec_1",
		PlanID:      "plan_1",
		ExecutedBy:  "f1",
		Status:      domain.ExecutionStatusExecuted,
		IntentType:  domain.IntentUpdate,
		Rollback:    domain.RollbackNote{SupportsRollback: true},
	}
	h.execRepo.On("FindByID", mock.Anything, "exec_1").Return(execution, nil)

	_, err := h.uc.Rollback(context.Background(), stranger, "exec_1")

	assert.ErrorIs(t, err, domain.ErrPermissionDenied)
}

func TestRequestSecondFactor_DeliversOutOfBand(t *testing.T) {
	h := newHarness(defaultConfig())
	admin := domain.Actor{UserID: "a1", Role: domain.RoleAdmin}

	h.secondFactor.On("Issue", mock.Anything, "a1").Return("482910", nil)
	h.notifier.On("Notify", mock.Anything, admin, "second_factor_issued", mock.MatchedBy(func(p map[string]interface{}) bool {
		return p["code"] == "482910"
	})).Return(nil)

	err := h.uc.RequestSecondFactor(context.Background(), admin)

	assert.NoError(t, err)
	h.notifier.AssertExpectations(t)
}

func TestPendingApprovals_NonSeniorSeesNothing(t *testing.T) {
	h := newHarness(defaultConfig())
	faculty := domain.Actor{UserID: "f1", Role: domain.RoleFaculty}

	plans, err := h.uc.PendingApprovals(context.Background(), faculty)

	assert.NoError(t, err)
	assert.Empty(t, plans)
	h.planRepo.AssertNotCalled(t, "ListByStatus", mock.Anything, mock.Anything, mock.Anything)
}
