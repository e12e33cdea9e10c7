package domain

import (
	"time"

	"github.com/google/uuid"
)

// RiskLevel represents the risk tier of a plan
type RiskLevel string

const (
	RiskLow    RiskLevel = "LOW"
	RiskMedium RiskLevel = "MEDIUM"
	RiskHigh   RiskLevel = "HIGH"
)

// rank orders risk tiers for monotonic-max combination.
func (r RiskLevel) rank() int {
	switch r {
	case RiskMedium:
		return 1
	case RiskHigh:
		return 2
	}
	return 0
}

// Max returns the higher of two risk tiers.
func (r RiskLevel) Max(other RiskLevel) RiskLevel {
	if other.rank() > r.rank() {
		return other
	}
	return r
}

// PlanStatus represents the lifecycle state of a plan
type PlanStatus string

const (
	PlanStatusCreated          PlanStatus = "created"
	PlanStatusPermissionDenied PlanStatus = "permission_denied"
	PlanStatusAwaitingConfirm  PlanStatus = "awaiting_confirmation"
	PlanStatusAwaitingApproval PlanStatus = "awaiting_senior_approval"
	PlanStatusApproved         PlanStatus = "approved"
	PlanStatusAutoExecuted     PlanStatus = "auto_executed"
	PlanStatusExecuted         PlanStatus = "executed"
	PlanStatusRejected         PlanStatus = "rejected"
	PlanStatusEscalated        PlanStatus = "escalated"
	PlanStatusFailed           PlanStatus = "failed"
	PlanStatusRolledBack       PlanStatus = "rolled_back"
)

// IsTerminal reports whether no further transitions are possible.
func (s PlanStatus) IsTerminal() bool {
	switch s {
	case PlanStatusPermissionDenied, PlanStatusAutoExecuted, PlanStatusRejected,
		PlanStatusEscalated, PlanStatusFailed, PlanStatusRolledBack:
		return true
	}
	return false
}

// AwaitingDecision reports whether the plan is parked for a human decision.
func (s PlanStatus) AwaitingDecision() bool {
	return s == PlanStatusAwaitingConfirm || s == PlanStatusAwaitingApproval
}

// DecisionVerdict is the reviewer's call on a gated plan
type DecisionVerdict string

const (
	VerdictApprove  DecisionVerdict = "APPROVE"
	VerdictReject   DecisionVerdict = "REJECT"
	VerdictEscalate DecisionVerdict = "ESCALATE"
)

// Decision records a human decision on a plan.
type Decision struct {
	Verdict     DecisionVerdict `json:"verdict"`
	Comment     string          `json:"comment,omitempty"`
	DecidedBy   string          `json:"decided_by"`
	DecidedAt   time.Time       `json:"decided_at"`
	ApprovedIDs []string        `json:"approved_ids,omitempty"`
}

// RollbackNote states whether an operation can be reversed and why not.
type RollbackNote struct {
	SupportsRollback bool   `json:"supports_rollback"`
	Reason           string `json:"reason,omitempty"`
}

// Preview is the bounded, read-only impact estimate shown before execution.
// Rows holds at most the configured preview cap; TotalCount is the full
// estimated impact which may exceed it. Proposed mirrors Rows with the
// requested values applied, so a reviewer sees the exact diff.
type Preview struct {
	TotalCount int          `json:"total_count"`
	Rows       []Record     `json:"rows"`
	Proposed   []Record     `json:"proposed,omitempty"`
	Rollback   RollbackNote `json:"rollback"`
}

// Plan is a classified, risk-scored representation of one submitted
// command. Risk level and the gating flags are fixed at classification
// time; only the orchestrator transitions Status.
type Plan struct {
	PlanID                 string     `json:"plan_id"`
	Actor                  Actor      `json:"actor"`
	Module                 string     `json:"module"`
	Command                string     `json:"command"`
	Intent                 Intent     `json:"intent"`
	RiskLevel              RiskLevel  `json:"risk_level"`
	EstimatedImpactCount   int        `json:"estimated_impact_count"`
	Preview                Preview    `json:"preview"`
	Status                 PlanStatus `json:"status"`
	RequiresConfirmation   bool       `json:"requires_confirmation"`
	RequiresSeniorApproval bool       `json:"requires_senior_approval"`
	Requires2FA            bool       `json:"requires_2fa"`
	PermissionReason       string     `json:"permission_reason,omitempty"`
	Decision               *Decision  `json:"decision,omitempty"`
	CreatedAt              time.Time  `json:"created_at"`
	UpdatedAt              time.Time  `json:"updated_at"`
}

// NewPlan creates a plan in the created state with a fresh opaque id.
func NewPlan(actor Actor, module, command string, intent Intent) *Plan {
	now := time.Now().UTC()
	return &Plan{
		PlanID:    "plan_" + uuid.NewString(),
		Actor:     actor,
		Module:    module,
		Command:   command,
		Intent:    intent,
		Status:    PlanStatusCreated,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Executable reports whether the plan may be handed to the execution
// engine in its current state.
func (p *Plan) Executable() bool {
	return p.Status == PlanStatusApproved || p.Status == PlanStatusCreated
}
