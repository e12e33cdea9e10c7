package policy

import (
	"github.com/campusiq/campusiq/internal/domain"
)

// DefaultBulkThreshold is the impact count above which a mutation is
// considered bulk and forced to HIGH risk.
const DefaultBulkThreshold = 25

// payrollFields always force HIGH risk when a mutation touches them.
var payrollFields = map[string]bool{
	"salary":       true,
	"base_salary":  true,
	"gross_salary": true,
	"net_salary":   true,
	"tax_rate":     true,
}

// ClassifyRisk combines three signals into a risk tier: intent base
// severity, entity sensitivity, and bucketed impact count. The combination
// is a monotonic max, never an average, so any single high-severity signal
// forces the tier up. The function is deterministic over its inputs and is
// re-derivable from a plan's stored classification inputs for audit replay.
//
// A zero-impact mutation (nothing matched) is coerced to LOW: the plan
// still completes the pipeline and is audited, but there is nothing to
// confirm. CREATE always has impact >= 1 (the record it creates).
func ClassifyRisk(intent domain.IntentType, entity domain.EntityInfo, impactCount int, affectedFields []string, bulkThreshold int) domain.RiskLevel {
	if bulkThreshold <= 0 {
		bulkThreshold = DefaultBulkThreshold
	}

	if !intent.IsMutating() {
		return domain.RiskLow
	}
	if impactCount == 0 {
		return domain.RiskLow
	}

	risk := domain.RiskMedium // CREATE/UPDATE/DELETE base

	if intent == domain.IntentDelete && impactCount > 1 {
		risk = risk.Max(domain.RiskHigh)
	}
	if entity.Sensitive {
		risk = risk.Max(domain.RiskMedium)
	}
	for _, field := range affectedFields {
		if payrollFields[field] {
			risk = risk.Max(domain.RiskHigh)
		}
	}
	if impactCount > bulkThreshold {
		risk = risk.Max(domain.RiskHigh)
	}

	return risk
}

// Gates are the human-gating flags derived from a plan's risk tier,
// fixed at classification time.
type Gates struct {
	RequiresConfirmation   bool
	RequiresSeniorApproval bool
	Requires2FA            bool
}

// DeriveGates maps a risk tier onto gating flags. HIGH always requires
// senior approval plus a second factor; MEDIUM requires confirmation; LOW
// is auto-executable unless the entity is sensitive and the operation
// mutates a nonzero number of records. When gates are disabled (the
// audit-only degenerate configuration) every plan behaves as LOW.
func DeriveGates(risk domain.RiskLevel, entity domain.EntityInfo, intent domain.IntentType, impactCount int, gatesEnabled bool) Gates {
	if !gatesEnabled {
		return Gates{}
	}
	switch risk {
	case domain.RiskHigh:
		return Gates{RequiresSeniorApproval: true, Requires2FA: true}
	case domain.RiskMedium:
		return Gates{RequiresConfirmation: true}
	default:
		if entity.Sensitive && intent.IsMutating() && impactCount > 0 {
			return Gates{RequiresConfirmation: true}
		}
		return Gates{}
	}
}
