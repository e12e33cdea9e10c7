package domain

import (
	"time"

	"github.com/google/uuid"
)

// ExecutionStatus represents the outcome of an execution attempt
type ExecutionStatus string

const (
	ExecutionStatusExecuted   ExecutionStatus = "executed"
	ExecutionStatusFailed     ExecutionStatus = "failed"
	ExecutionStatusRolledBack ExecutionStatus = "rolled_back"
)

// Execution records one attempt to apply a plan's operation, including the
// reversible before/after snapshots. BeforeState and AfterState are
// index-aligned: for CREATE the before entry at an index is empty, for
// DELETE the after entry is empty. Immutable once written except for the
// single transition to rolled_back.
type Execution struct {
	ExecutionID   string          `json:"execution_id"`
	PlanID        string          `json:"plan_id"`
	ExecutedBy    string          `json:"executed_by"`
	IntentType    IntentType      `json:"intent_type"`
	Entity        string          `json:"entity"`
	BeforeState   []Record        `json:"before_state"`
	AfterState    []Record        `json:"after_state"`
	Status        ExecutionStatus `json:"status"`
	AffectedCount int             `json:"affected_count"`
	Rollback      RollbackNote    `json:"rollback"`
	Error         string          `json:"error,omitempty"`
	ExecutedAt    time.Time       `json:"executed_at"`
	RolledBackAt  *time.Time      `json:"rolled_back_at,omitempty"`
}

// NewExecution creates an execution shell for a plan.
func NewExecution(plan *Plan, executedBy string) *Execution {
	return &Execution{
		ExecutionID: "exec_" + uuid.NewString(),
		PlanID:      plan.PlanID,
		ExecutedBy:  executedBy,
		IntentType:  plan.Intent.Type,
		Entity:      plan.Intent.Entity,
		Rollback:    plan.Preview.Rollback,
		ExecutedAt:  time.Now().UTC(),
	}
}
