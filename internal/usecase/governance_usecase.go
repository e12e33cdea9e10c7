package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/campusiq/campusiq/internal/domain"
	"github.com/campusiq/campusiq/internal/engine"
	"github.com/campusiq/campusiq/internal/policy"
	"github.com/campusiq/campusiq/internal/ports"
	"github.com/campusiq/campusiq/internal/service/logger"
)

// GovernanceConfig holds the policy knobs for the governance pipeline.
type GovernanceConfig struct {
	PreviewLimit        int
	BulkThreshold       int
	ConfidenceThreshold float64
	ClassifierTimeout   time.Duration
	PreviewTimeout      time.Duration
	SeniorRoles         []domain.Role
	GatesEnabled        bool
}

// IsSenior reports whether a role may approve HIGH-risk plans, see the
// pending queue, and roll back other actors' executions.
func (c GovernanceConfig) IsSenior(role domain.Role) bool {
	for _, r := range c.SeniorRoles {
		if r == role {
			return true
		}
	}
	return false
}

// GovernanceUseCase is the orchestrator for the command governance
// pipeline: classify, gate, preview, persist, decide, execute, roll back.
// It is the only component that writes to the plan store and the audit
// log. No in-memory state is held across stage boundaries; the plan is
// re-read from the store at submit, decide, execute, and rollback.
type GovernanceUseCase struct {
	planRepo     ports.PlanRepository
	auditRepo    ports.AuditRepository
	execRepo     ports.ExecutionRepository
	classifier   ports.IntentClassifier
	directory    ports.ActorDirectory
	secondFactor ports.SecondFactorVerifier
	notifier     ports.Notifier
	estimator    *ImpactEstimator
	executor     *engine.Executor
	cfg          GovernanceConfig
	log          logger.Logger
}

// NewGovernanceUseCase wires the orchestrator.
func NewGovernanceUseCase(
	planRepo ports.PlanRepository,
	auditRepo ports.AuditRepository,
	execRepo ports.ExecutionRepository,
	classifier ports.IntentClassifier,
	directory ports.ActorDirectory,
	secondFactor ports.SecondFactorVerifier,
	notifier ports.Notifier,
	estimator *ImpactEstimator,
	executor *engine.Executor,
	cfg GovernanceConfig,
	log logger.Logger,
) *GovernanceUseCase {
	if cfg.ConfidenceThreshold <= 0 {
		cfg.ConfidenceThreshold = 0.5
	}
	if len(cfg.SeniorRoles) == 0 {
		cfg.SeniorRoles = []domain.Role{domain.RoleAdmin, domain.RoleRegistrar}
	}
	return &GovernanceUseCase{
		planRepo:     planRepo,
		auditRepo:    auditRepo,
		execRepo:     execRepo,
		classifier:   classifier,
		directory:    directory,
		secondFactor: secondFactor,
		notifier:     notifier,
		estimator:    estimator,
		executor:     executor,
		cfg:          cfg,
		log:          log,
	}
}

// SubmitRequest carries one natural-language command into the pipeline.
type SubmitRequest struct {
	Command       string `json:"command" validate:"required"`
	Module        string `json:"module"`
	Clarification string `json:"clarification,omitempty"`
}

// Clarification describes what the classifier could not pin down.
type Clarification struct {
	MissingFields []string `json:"missing_fields"`
	Question      string   `json:"question,omitempty"`
	Confidence    float64  `json:"confidence"`
}

// SubmitResult is the outcome of a submission: either a persisted plan
// (possibly already auto-executed), a permission denial, or a
// clarification request with no downstream state created.
type SubmitResult struct {
	Plan          *domain.Plan               `json:"plan,omitempty"`
	Execution     *domain.Execution          `json:"execution,omitempty"`
	Permission    *policy.PermissionDecision `json:"permission,omitempty"`
	Clarification *Clarification             `json:"clarification,omitempty"`
}

// Submit runs one command through classification, permission, risk,
// preview, and routing. See the plan state machine: LOW risk executes
// immediately, MEDIUM parks awaiting confirmation, HIGH parks awaiting
// senior approval.
func (uc *GovernanceUseCase) Submit(ctx context.Context, actor domain.Actor, req SubmitRequest) (*SubmitResult, error) {
	if strings.TrimSpace(req.Command) == "" {
		return nil, fmt.Errorf("command is required")
	}
	if req.Module == "" {
		req.Module = "academic"
	}

	intent, clarification, err := uc.classifyIntent(ctx, req)
	if err != nil {
		return nil, err
	}
	if clarification != nil {
		// No downstream state: the caller resubmits with clarification
		// appended. The attempt itself is still audited.
		entry := domain.NewAuditEntry(domain.AuditEventClarificationNeeded, actor, req.Module, intent.Type, "")
		entry.Payload = map[string]interface{}{
			"command":        req.Command,
			"missing_fields": clarification.MissingFields,
			"confidence":     clarification.Confidence,
		}
		if err := uc.auditRepo.Append(ctx, entry); err != nil {
			return nil, fmt.Errorf("failed to audit clarification: %w", err)
		}
		return &SubmitResult{Clarification: clarification}, nil
	}

	entity, err := domain.LookupEntity(intent.Entity)
	if err != nil {
		return nil, err
	}
	// The canonical name goes on the plan; everything downstream (the
	// decision-time permission check, the executor, the domain store) keys
	// off it, and classifiers are free to emit aliases.
	intent.Entity = entity.Name

	// Permission gate. A denial never reaches risk classification.
	decision := policy.EvaluatePermission(actor, intent.Type, entity.Name, scopeFromFilters(intent.Filters))
	if !decision.Allowed {
		plan := domain.NewPlan(actor, req.Module, req.Command, intent)
		plan.Status = domain.PlanStatusPermissionDenied
		plan.PermissionReason = string(decision.Reason)
		if err := uc.planRepo.Create(ctx, plan); err != nil {
			return nil, fmt.Errorf("failed to persist denied plan: %w", err)
		}
		entry := domain.NewAuditEntry(domain.AuditEventPermissionDenied, actor, req.Module, intent.Type, "")
		entry.PlanID = plan.PlanID
		entry.Payload = map[string]interface{}{
			"reason":  decision.Reason,
			"entity":  entity.Name,
			"command": req.Command,
		}
		if err := uc.auditRepo.Append(ctx, entry); err != nil {
			return nil, fmt.Errorf("failed to audit permission denial: %w", err)
		}
		return &SubmitResult{Plan: plan, Permission: &decision}, nil
	}

	impact, preview, err := uc.estimator.Estimate(ctx, intent, entity)
	if err != nil {
		return nil, err
	}

	risk := policy.ClassifyRisk(intent.Type, entity, impact, intent.AffectedFields, uc.cfg.BulkThreshold)
	gates := policy.DeriveGates(risk, entity, intent.Type, impact, uc.cfg.GatesEnabled)

	plan := domain.NewPlan(actor, req.Module, req.Command, intent)
	plan.RiskLevel = risk
	plan.EstimatedImpactCount = impact
	plan.Preview = preview
	plan.RequiresConfirmation = gates.RequiresConfirmation
	plan.RequiresSeniorApproval = gates.RequiresSeniorApproval
	plan.Requires2FA = gates.Requires2FA
	plan.PermissionReason = string(decision.Reason)

	if err := uc.planRepo.Create(ctx, plan); err != nil {
		return nil, fmt.Errorf("failed to persist plan: %w", err)
	}
	if err := uc.audit(ctx, domain.AuditEventCreated, plan, nil, map[string]interface{}{
		"command":      req.Command,
		"impact_count": impact,
		"confidence":   intent.Confidence,
	}); err != nil {
		return nil, err
	}

	result := &SubmitResult{Plan: plan, Permission: &decision}

	// Route by risk tier. One execution engine entry point; only the
	// routing branches here.
	switch {
	case gates.RequiresSeniorApproval:
		if err := uc.planRepo.TransitionStatus(ctx, plan.PlanID,
			[]domain.PlanStatus{domain.PlanStatusCreated}, domain.PlanStatusAwaitingApproval, nil); err != nil {
			return nil, fmt.Errorf("failed to park plan for approval: %w", err)
		}
		plan.Status = domain.PlanStatusAwaitingApproval
		uc.notify(ctx, actor, "plan_awaiting_approval", map[string]interface{}{"plan_id": plan.PlanID, "risk_level": risk})

	case gates.RequiresConfirmation:
		if err := uc.planRepo.TransitionStatus(ctx, plan.PlanID,
			[]domain.PlanStatus{domain.PlanStatusCreated}, domain.PlanStatusAwaitingConfirm, nil); err != nil {
			return nil, fmt.Errorf("failed to park plan for confirmation: %w", err)
		}
		plan.Status = domain.PlanStatusAwaitingConfirm

	default:
		execution, execErr := uc.runExecution(ctx, plan, actor.UserID, domain.PlanStatusAutoExecuted)
		result.Execution = execution
		if execErr != nil {
			return result, execErr
		}
	}

	return result, nil
}

// classifyIntent calls the upstream classifier under its timeout and
// normalizes the loose payload into the closed domain.Intent form.
func (uc *GovernanceUseCase) classifyIntent(ctx context.Context, req SubmitRequest) (domain.Intent, *Clarification, error) {
	if uc.cfg.ClassifierTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, uc.cfg.ClassifierTimeout)
		defer cancel()
	}

	raw, err := uc.classifier.Classify(ctx, req.Command, req.Module, req.Clarification)
	if err != nil {
		return domain.Intent{}, nil, fmt.Errorf("failed to classify command: %w", err)
	}

	intentType := domain.IntentType(strings.ToUpper(strings.TrimSpace(raw.IntentType)))
	if !intentType.IsValid() {
		intentType = domain.IntentRead
	}

	intent := domain.Intent{
		Type:           intentType,
		Entity:         raw.Entity,
		Filters:        raw.Filters,
		Values:         domain.Record(raw.Values),
		AffectedFields: raw.AffectedFields,
		Confidence:     raw.Confidence,
		MissingFields:  raw.MissingFields,
	}
	if len(intent.AffectedFields) == 0 {
		for field := range intent.Values {
			intent.AffectedFields = append(intent.AffectedFields, field)
		}
	}

	if intent.NeedsClarification(uc.cfg.ConfidenceThreshold) {
		missing := intent.MissingFields
		if len(missing) == 0 {
			missing = []string{"entity_scope"}
		}
		question := raw.Question
		if question == "" {
			question = "Please clarify the missing operation details."
		}
		return intent, &Clarification{
			MissingFields: missing,
			Question:      question,
			Confidence:    intent.Confidence,
		}, nil
	}

	return intent, nil, nil
}

// DecideRequest records a reviewer's verdict on a gated plan.
type DecideRequest struct {
	PlanID        string                 `json:"plan_id" validate:"required"`
	Verdict       domain.DecisionVerdict `json:"verdict" validate:"required"`
	Comment       string                 `json:"comment,omitempty"`
	TwoFactorCode string                 `json:"two_factor_code,omitempty"`
	ApprovedIDs   []string               `json:"approved_ids,omitempty"`
}

// DecideResult is the plan after the decision, plus the execution when
// the verdict was APPROVE.
type DecideResult struct {
	Plan      *domain.Plan      `json:"plan"`
	Execution *domain.Execution `json:"execution,omitempty"`
}

// Decide applies a human decision to a plan awaiting one. Exactly one of
// two racing decisions wins; the loser gets ErrPlanNotAwaitingDecision.
func (uc *GovernanceUseCase) Decide(ctx context.Context, reviewer domain.Actor, req DecideRequest) (*DecideResult, error) {
	plan, err := uc.planRepo.FindByID(ctx, req.PlanID)
	if err != nil {
		return nil, err
	}
	if !plan.Status.AwaitingDecision() {
		return nil, domain.ErrPlanNotAwaitingDecision
	}

	// Freshness check: if the submitting actor's grant changed since the
	// plan was created, the decision is rejected and the plan stays put.
	live, err := uc.directory.Lookup(ctx, plan.Actor.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve actor freshness: %w", err)
	}
	if !live.SameGrant(plan.Actor) {
		return nil, domain.ErrStaleActor
	}

	// Permission is re-evaluated fresh against the creation-time
	// snapshot; it is never cached across the approval wait.
	decision := policy.EvaluatePermission(plan.Actor, plan.Intent.Type, plan.Intent.Entity, scopeFromFilters(plan.Intent.Filters))
	if !decision.Allowed {
		return nil, domain.ErrPermissionDenied
	}

	if plan.RequiresSeniorApproval && !uc.cfg.IsSenior(reviewer.Role) {
		return nil, domain.ErrSeniorApprovalRequired
	}
	if plan.Requires2FA {
		// The one-shot code is spent here, before the status CAS: the plan
		// never transitions on a failed factor, and the loser of a racing
		// decision must issue a fresh code.
		ok, err := uc.secondFactor.Verify(ctx, reviewer.UserID, req.TwoFactorCode)
		if err != nil {
			return nil, fmt.Errorf("failed to verify second factor: %w", err)
		}
		if !ok {
			return nil, domain.ErrTwoFactorRequired
		}
	}
	if req.Verdict == domain.VerdictEscalate && plan.Status != domain.PlanStatusAwaitingApproval {
		return nil, fmt.Errorf("only plans awaiting senior approval can be escalated")
	}

	record := &domain.Decision{
		Verdict:     req.Verdict,
		Comment:     req.Comment,
		DecidedBy:   reviewer.UserID,
		DecidedAt:   time.Now().UTC(),
		ApprovedIDs: req.ApprovedIDs,
	}
	awaiting := []domain.PlanStatus{domain.PlanStatusAwaitingConfirm, domain.PlanStatusAwaitingApproval}

	switch req.Verdict {
	case domain.VerdictApprove:
		if err := uc.planRepo.TransitionStatus(ctx, plan.PlanID, awaiting, domain.PlanStatusApproved, record); err != nil {
			return nil, err
		}
		plan.Status = domain.PlanStatusApproved
		plan.Decision = record
		if err := uc.audit(ctx, domain.AuditEventApproved, plan, nil, map[string]interface{}{
			"decided_by":   reviewer.UserID,
			"comment":      req.Comment,
			"approved_ids": req.ApprovedIDs,
		}); err != nil {
			return nil, err
		}
		execution, execErr := uc.runExecution(ctx, plan, reviewer.UserID, domain.PlanStatusExecuted)
		return &DecideResult{Plan: plan, Execution: execution}, execErr

	case domain.VerdictReject:
		if err := uc.planRepo.TransitionStatus(ctx, plan.PlanID, awaiting, domain.PlanStatusRejected, record); err != nil {
			return nil, err
		}
		plan.Status = domain.PlanStatusRejected
		plan.Decision = record
		if err := uc.audit(ctx, domain.AuditEventRejected, plan, nil, map[string]interface{}{
			"decided_by": reviewer.UserID,
			"comment":    req.Comment,
		}); err != nil {
			return nil, err
		}
		return &DecideResult{Plan: plan}, nil

	case domain.VerdictEscalate:
		if err := uc.planRepo.TransitionStatus(ctx, plan.PlanID, awaiting, domain.PlanStatusEscalated, record); err != nil {
			return nil, err
		}
		plan.Status = domain.PlanStatusEscalated
		plan.Decision = record
		if err := uc.audit(ctx, domain.AuditEventEscalated, plan, nil, map[string]interface{}{
			"decided_by": reviewer.UserID,
			"comment":    req.Comment,
		}); err != nil {
			return nil, err
		}
		// Terminal at this layer; the higher-privilege review queue is
		// an external collaborator behind the notifier.
		uc.notify(ctx, reviewer, "plan_escalated", map[string]interface{}{"plan_id": plan.PlanID})
		return &DecideResult{Plan: plan}, nil
	}

	return nil, fmt.Errorf("unknown verdict: %s", req.Verdict)
}

// Execute runs an approved plan that has not executed yet. Submit
// auto-executes LOW-risk plans and Decide executes approvals inline, so
// this surface exists for recovery when a process died between the
// approval transition and execution.
func (uc *GovernanceUseCase) Execute(ctx context.Context, actor domain.Actor, planID string) (*domain.Execution, error) {
	plan, err := uc.planRepo.FindByID(ctx, planID)
	if err != nil {
		return nil, err
	}
	if plan.Status != domain.PlanStatusApproved {
		return nil, domain.ErrPlanNotExecutable
	}
	return uc.runExecution(ctx, plan, actor.UserID, domain.PlanStatusExecuted)
}

// runExecution is the single entry to the execution engine for both the
// auto and the gated path. Write-ahead audit ordering: the intent to
// execute is logged before the mutation, the outcome after.
func (uc *GovernanceUseCase) runExecution(ctx context.Context, plan *domain.Plan, executedBy string, terminal domain.PlanStatus) (*domain.Execution, error) {
	if err := uc.audit(ctx, domain.AuditEventExecutionStarted, plan, nil, map[string]interface{}{
		"executed_by": executedBy,
	}); err != nil {
		return nil, err
	}

	from := []domain.PlanStatus{domain.PlanStatusCreated, domain.PlanStatusApproved}
	execution, execErr := uc.executor.Execute(ctx, plan, executedBy)
	if execErr != nil {
		if execution != nil {
			if err := uc.planRepo.TransitionStatus(ctx, plan.PlanID, from, domain.PlanStatusFailed, nil); err != nil {
				uc.log.Error(ctx, "failed to mark plan failed", err, map[string]interface{}{"plan_id": plan.PlanID})
			} else {
				plan.Status = domain.PlanStatusFailed
			}
			if err := uc.audit(ctx, domain.AuditEventFailed, plan, execution, map[string]interface{}{
				"error": execution.Error,
			}); err != nil {
				return execution, err
			}
		}
		return execution, execErr
	}

	if err := uc.planRepo.TransitionStatus(ctx, plan.PlanID, from, terminal, nil); err != nil {
		return execution, err
	}
	plan.Status = terminal
	if err := uc.audit(ctx, domain.AuditEventExecuted, plan, execution, map[string]interface{}{
		"affected_count": execution.AffectedCount,
	}); err != nil {
		return execution, err
	}
	uc.notify(ctx, plan.Actor, "plan_executed", map[string]interface{}{
		"plan_id":      plan.PlanID,
		"execution_id": execution.ExecutionID,
	})
	return execution, nil
}

// Rollback inverts an executed mutation from its captured snapshots.
// Idempotent: rolling back an already-rolled-back execution is a no-op
// success.
func (uc *GovernanceUseCase) Rollback(ctx context.Context, actor domain.Actor, executionID string) (*domain.Execution, error) {
	execution, err := uc.execRepo.FindByID(ctx, executionID)
	if err != nil {
		return nil, err
	}
	if execution.Status == domain.ExecutionStatusRolledBack {
		return execution, nil
	}
	if !uc.cfg.IsSenior(actor.Role) && execution.ExecutedBy != actor.UserID {
		return nil, domain.ErrPermissionDenied
	}

	plan, err := uc.planRepo.FindByID(ctx, execution.PlanID)
	if err != nil {
		return nil, err
	}

	if err := uc.executor.Rollback(ctx, execution); err != nil {
		return nil, err
	}

	executedStates := []domain.PlanStatus{domain.PlanStatusExecuted, domain.PlanStatusAutoExecuted}
	if err := uc.planRepo.TransitionStatus(ctx, plan.PlanID, executedStates, domain.PlanStatusRolledBack, nil); err != nil {
		uc.log.Error(ctx, "failed to mark plan rolled back", err, map[string]interface{}{"plan_id": plan.PlanID})
	} else {
		plan.Status = domain.PlanStatusRolledBack
	}

	if err := uc.audit(ctx, domain.AuditEventRollback, plan, execution, map[string]interface{}{
		"rolled_back_by": actor.UserID,
	}); err != nil {
		return execution, err
	}
	return execution, nil
}

// RequestSecondFactor issues a one-shot code for the reviewer and delivers
// it through the out-of-band notification channel. The code is never
// returned over the API.
func (uc *GovernanceUseCase) RequestSecondFactor(ctx context.Context, actor domain.Actor) error {
	code, err := uc.secondFactor.Issue(ctx, actor.UserID)
	if err != nil {
		return fmt.Errorf("failed to issue second factor: %w", err)
	}
	uc.notify(ctx, actor, "second_factor_issued", map[string]interface{}{"code": code})
	return nil
}

// GetPlan retrieves a plan by id.
func (uc *GovernanceUseCase) GetPlan(ctx context.Context, planID string) (*domain.Plan, error) {
	return uc.planRepo.FindByID(ctx, planID)
}

// PendingApprovals lists plans awaiting senior approval. Non-senior
// actors receive an empty list rather than an error.
func (uc *GovernanceUseCase) PendingApprovals(ctx context.Context, actor domain.Actor) ([]*domain.Plan, error) {
	if !uc.cfg.IsSenior(actor.Role) {
		return []*domain.Plan{}, nil
	}
	return uc.planRepo.ListByStatus(ctx, domain.PlanStatusAwaitingApproval, 100)
}

// audit appends one lifecycle entry. Audit completeness is a correctness
// property: failures surface as errors and are never swallowed.
func (uc *GovernanceUseCase) audit(ctx context.Context, eventType domain.AuditEventType, plan *domain.Plan, execution *domain.Execution, payload map[string]interface{}) error {
	entry := domain.NewAuditEntry(eventType, plan.Actor, plan.Module, plan.Intent.Type, plan.RiskLevel)
	entry.PlanID = plan.PlanID
	if execution != nil {
		entry.ExecutionID = execution.ExecutionID
	}
	entry.Payload = payload
	if err := uc.auditRepo.Append(ctx, entry); err != nil {
		return fmt.Errorf("failed to append audit entry %s: %w", eventType, err)
	}
	return nil
}

// notify is best-effort and never on the critical path.
func (uc *GovernanceUseCase) notify(ctx context.Context, actor domain.Actor, event string, payload map[string]interface{}) {
	if uc.notifier == nil {
		return
	}
	if err := uc.notifier.Notify(ctx, actor, event, payload); err != nil {
		uc.log.Warn(ctx, "notification failed", map[string]interface{}{"event": event, "error": err.Error()})
	}
}

// scopeFromFilters extracts the department scope a command targets.
func scopeFromFilters(filters map[string]interface{}) string {
	if filters == nil {
		return ""
	}
	if dept, ok := filters["department"].(string); ok {
		return dept
	}
	return ""
}
