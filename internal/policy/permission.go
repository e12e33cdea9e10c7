package policy

import (
	"github.com/campusiq/campusiq/internal/domain"
)

// PermissionReason is the machine-readable outcome of a permission check
type PermissionReason string

const (
	ReasonOK                        PermissionReason = "OK"
	ReasonRoleRestricted            PermissionReason = "ROLE_RESTRICTED"
	ReasonDepartmentScopeRestricted PermissionReason = "DEPARTMENT_SCOPE_RESTRICTED"
	ReasonStudentWriteRestricted    PermissionReason = "STUDENT_WRITE_RESTRICTED"
)

// PermissionDecision is the result of evaluating one (actor, intent,
// entity, scope) tuple.
type PermissionDecision struct {
	Allowed            bool             `json:"allowed"`
	Reason             PermissionReason `json:"reason"`
	EscalationRequired bool             `json:"escalation_required"`
}

// roleMatrix declares which entities each role may touch per intent type.
// ESCALATE is always allowed and handled before the matrix lookup.
var roleMatrix = map[domain.Role]map[domain.IntentType][]string{
	domain.RoleStudent: {
		domain.IntentRead:    {"student", "course", "department", "attendance", "prediction"},
		domain.IntentAnalyze: {"attendance", "prediction"},
		domain.IntentUpdate:  {"student"},
	},
	domain.RoleFaculty: {
		domain.IntentRead:    {"student", "course", "department", "attendance", "prediction"},
		domain.IntentAnalyze: {"student", "course", "attendance", "prediction"},
		domain.IntentCreate:  {"attendance"},
		domain.IntentUpdate:  {"attendance", "course"},
	},
	domain.RoleRegistrar: {
		domain.IntentRead:    {"*"},
		domain.IntentAnalyze: {"*"},
		domain.IntentCreate:  {"student", "course", "department", "attendance", "student_fee", "invoice", "payment"},
		domain.IntentUpdate:  {"student", "course", "department", "attendance", "student_fee", "invoice", "payment"},
		domain.IntentDelete:  {"attendance", "invoice"},
	},
	domain.RoleAdmin: {
		domain.IntentRead:    {"*"},
		domain.IntentAnalyze: {"*"},
		domain.IntentCreate:  {"*"},
		domain.IntentUpdate:  {"*"},
		domain.IntentDelete:  {"*"},
	},
}

func matrixAllows(role domain.Role, intent domain.IntentType, entity string) bool {
	intents, ok := roleMatrix[role]
	if !ok {
		return false
	}
	for _, e := range intents[intent] {
		if e == "*" || e == entity {
			return true
		}
	}
	return false
}

// EvaluatePermission is a pure function over the actor snapshot, the
// normalized intent, the target entity, and the target department scope.
// It is evaluated fresh at creation time and again at decision time; the
// result is never cached across an approval wait.
func EvaluatePermission(actor domain.Actor, intent domain.IntentType, entity string, targetScope string) PermissionDecision {
	if intent == domain.IntentEscalate {
		return PermissionDecision{Allowed: true, Reason: ReasonOK}
	}

	// Students and faculty never mutate student records beyond what the
	// matrix grants, and deletion of student records is staff-only.
	if entity == "student" && intent == domain.IntentDelete && actor.Role != domain.RoleAdmin && actor.Role != domain.RoleRegistrar {
		return PermissionDecision{Allowed: false, Reason: ReasonStudentWriteRestricted, EscalationRequired: true}
	}
	if actor.Role == domain.RoleStudent && intent.IsMutating() && entity != "student" {
		return PermissionDecision{Allowed: false, Reason: ReasonStudentWriteRestricted, EscalationRequired: true}
	}

	if !matrixAllows(actor.Role, intent, entity) {
		return PermissionDecision{Allowed: false, Reason: ReasonRoleRestricted, EscalationRequired: true}
	}

	// Scope predicate: students and faculty act within their own
	// department only. Admins and registrars are institution-wide.
	if actor.Role == domain.RoleStudent || actor.Role == domain.RoleFaculty {
		if targetScope != "" && actor.DepartmentScope != "" && targetScope != actor.DepartmentScope {
			return PermissionDecision{Allowed: false, Reason: ReasonDepartmentScopeRestricted, EscalationRequired: true}
		}
	}

	return PermissionDecision{Allowed: true, Reason: ReasonOK}
}
