package domain

// GovernanceError is a coded, domain-level error. The code is stable and is
// what callers (and the audit trail) key off; the message is for humans.
type GovernanceError struct {
	Code    string
	Message string
}

func (e *GovernanceError) Error() string {
	return e.Message
}

func NewGovernanceError(code, message string) *GovernanceError {
	return &GovernanceError{Code: code, Message: message}
}

// Error taxonomy for the governance pipeline.
var (
	ErrClassificationAmbiguous = NewGovernanceError("CLASSIFICATION_AMBIGUOUS", "intent is ambiguous; clarification required")
	ErrPermissionDenied        = NewGovernanceError("PERMISSION_DENIED", "actor is not permitted to perform this operation")
	ErrStaleActor              = NewGovernanceError("STALE_ACTOR", "actor role changed since plan creation; resubmit the command")
	ErrPlanNotAwaitingDecision = NewGovernanceError("PLAN_NOT_AWAITING_DECISION", "plan is not awaiting a decision")
	ErrExecutionFailed         = NewGovernanceError("EXECUTION_FAILED", "domain mutation failed")
	ErrRollbackUnsupported     = NewGovernanceError("ROLLBACK_UNSUPPORTED", "execution does not support rollback")
	ErrTwoFactorRequired       = NewGovernanceError("TWO_FACTOR_REQUIRED", "a verified second factor is required for this decision")
	ErrSeniorApprovalRequired  = NewGovernanceError("SENIOR_APPROVAL_REQUIRED", "a senior reviewer must decide this plan")
	ErrPlanNotFound            = NewGovernanceError("PLAN_NOT_FOUND", "plan not found")
	ErrExecutionNotFound       = NewGovernanceError("EXECUTION_NOT_FOUND", "execution not found")
	ErrPlanNotExecutable       = NewGovernanceError("PLAN_NOT_EXECUTABLE", "plan is not in an executable state")
	ErrUnknownEntity           = NewGovernanceError("UNKNOWN_ENTITY", "entity is not registered")
	ErrRateLimited             = NewGovernanceError("RATE_LIMITED", "too many command submissions; slow down")
)
