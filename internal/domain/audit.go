package domain

import (
	"time"

	"github.com/google/uuid"
)

// AuditEventType represents one lifecycle transition recorded in the ledger
type AuditEventType string

const (
	AuditEventCreated             AuditEventType = "created"
	AuditEventClarificationNeeded AuditEventType = "clarification_needed"
	AuditEventPermissionDenied    AuditEventType = "permission_denied"
	AuditEventApproved            AuditEventType = "approved"
	AuditEventRejected            AuditEventType = "rejected"
	AuditEventEscalated           AuditEventType = "escalated"
	AuditEventExecutionStarted    AuditEventType = "execution_started"
	AuditEventExecuted            AuditEventType = "executed"
	AuditEventFailed              AuditEventType = "failed"
	AuditEventRollback            AuditEventType = "rollback"
)

// AuditEntry is one append-only row in the governance ledger. Entries are
// never updated or deleted.
type AuditEntry struct {
	EventID       string                 `json:"event_id"`
	EventType     AuditEventType         `json:"event_type"`
	PlanID        string                 `json:"plan_id,omitempty"`
	ExecutionID   string                 `json:"execution_id,omitempty"`
	Actor         Actor                  `json:"actor"`
	Module        string                 `json:"module"`
	OperationType IntentType             `json:"operation_type"`
	RiskLevel     RiskLevel              `json:"risk_level"`
	Payload       map[string]interface{} `json:"payload,omitempty"`
	CreatedAt     time.Time              `json:"created_at"`
}

// NewAuditEntry creates an audit entry stamped with the current time.
func NewAuditEntry(eventType AuditEventType, actor Actor, module string, operation IntentType, risk RiskLevel) *AuditEntry {
	return &AuditEntry{
		EventID:       "audit_" + uuid.NewString(),
		EventType:     eventType,
		Actor:         actor,
		Module:        module,
		OperationType: operation,
		RiskLevel:     risk,
		CreatedAt:     time.Now().UTC(),
	}
}

// AuditFilter selects audit entries for the query surface. Zero values
// mean "any". Limit is capped by the reader.
type AuditFilter struct {
	Module        string         `json:"module,omitempty"`
	OperationType IntentType     `json:"operation_type,omitempty"`
	RiskLevel     RiskLevel      `json:"risk_level,omitempty"`
	ActorUserID   string         `json:"actor_user_id,omitempty"`
	EventType     AuditEventType `json:"event_type,omitempty"`
	From          *time.Time     `json:"from,omitempty"`
	To            *time.Time     `json:"to,omitempty"`
	Limit         int            `json:"limit,omitempty"`
}

// GovernanceStats is the aggregate summary for the dashboard surface.
type GovernanceStats struct {
	TotalPlans   int            `json:"total_plans"`
	ByRiskLevel  map[string]int `json:"by_risk_level"`
	ByModule     map[string]int `json:"by_module"`
	Executed     int            `json:"executed"`
	Failed       int            `json:"failed"`
	RolledBack   int            `json:"rolled_back"`
	PendingCount int            `json:"pending_count"`
}
