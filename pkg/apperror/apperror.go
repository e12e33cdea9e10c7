package apperror

import (
	"errors"
	"net/http"

	"github.com/campusiq/campusiq/internal/domain"
)

// statusByCode maps stable governance error codes onto HTTP statuses.
var statusByCode = map[string]int{
	"CLASSIFICATION_AMBIGUOUS":   http.StatusUnprocessableEntity,
	"PERMISSION_DENIED":          http.StatusForbidden,
	"STALE_ACTOR":                http.StatusConflict,
	"PLAN_NOT_AWAITING_DECISION": http.StatusConflict,
	"EXECUTION_FAILED":           http.StatusUnprocessableEntity,
	"ROLLBACK_UNSUPPORTED":       http.StatusConflict,
	"TWO_FACTOR_REQUIRED":        http.StatusUnauthorized,
	"SENIOR_APPROVAL_REQUIRED":   http.StatusForbidden,
	"PLAN_NOT_FOUND":             http.StatusNotFound,
	"EXECUTION_NOT_FOUND":        http.StatusNotFound,
	"PLAN_NOT_EXECUTABLE":        http.StatusConflict,
	"UNKNOWN_ENTITY":             http.StatusUnprocessableEntity,
	"RATE_LIMITED":               http.StatusTooManyRequests,
}

// Classify resolves an error to the governance code and HTTP status to
// report. Unknown errors map to an internal error with no stable code.
func Classify(err error) (code string, status int) {
	var gerr *domain.GovernanceError
	if errors.As(err, &gerr) {
		if s, ok := statusByCode[gerr.Code]; ok {
			return gerr.Code, s
		}
		return gerr.Code, http.StatusInternalServerError
	}
	return "", http.StatusInternalServerError
}
