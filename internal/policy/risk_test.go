package policy

import (
	"math/rand"
	"testing"

	"github.com/campusiq/campusiq/internal/domain"
)

func mustEntity(t *testing.T, name string) domain.EntityInfo {
	t.Helper()
	info, err := domain.LookupEntity(name)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return info
}

func TestClassifyRisk(t *testing.T) {
	tests := []struct {
		name           string
		intent         domain.IntentType
		entity         string
		impactCount    int
		affectedFields []string
		want           domain.RiskLevel
	}{
		{"read is always low", domain.IntentRead, "student", 500, nil, domain.RiskLow},
		{"analyze is always low", domain.IntentAnalyze, "salary_record", 100, nil, domain.RiskLow},
		{"zero impact mutation is low", domain.IntentDelete, "student", 0, nil, domain.RiskLow},
		{"single update is medium", domain.IntentUpdate, "course", 1, []string{"credits"}, domain.RiskMedium},
		{"single delete is medium", domain.IntentDelete, "attendance", 1, nil, domain.RiskMedium},
		{"bulk delete is high", domain.IntentDelete, "attendance", 2, nil, domain.RiskHigh},
		{"payroll field forces high", domain.IntentUpdate, "salary_record", 1, []string{"gross_salary"}, domain.RiskHigh},
		{"impact above threshold is high", domain.IntentUpdate, "student", 26, []string{"semester"}, domain.RiskHigh},
		{"impact at threshold stays medium", domain.IntentUpdate, "course", 25, []string{"credits"}, domain.RiskMedium},
		{"create is medium", domain.IntentCreate, "student", 1, nil, domain.RiskMedium},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClassifyRisk(tt.intent, mustEntity(t, tt.entity), tt.impactCount, tt.affectedFields, DefaultBulkThreshold)
			if got != tt.want {
				t.Errorf("Expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestDeriveGates(t *testing.T) {
	student := mustEntity(t, "student")
	course := mustEntity(t, "course")

	high := DeriveGates(domain.RiskHigh, student, domain.IntentDelete, 5, true)
	if !high.RequiresSeniorApproval || !high.Requires2FA {
		t.Errorf("Expected HIGH to require senior approval and 2FA, got %+v", high)
	}
	if high.RequiresConfirmation {
		t.Errorf("Expected HIGH not to use the confirmation gate, got %+v", high)
	}

	medium := DeriveGates(domain.RiskMedium, course, domain.IntentUpdate, 3, true)
	if !medium.RequiresConfirmation || medium.RequiresSeniorApproval || medium.Requires2FA {
		t.Errorf("Expected MEDIUM to require only confirmation, got %+v", medium)
	}

	lowRead := DeriveGates(domain.RiskLow, student, domain.IntentRead, 100, true)
	if lowRead != (Gates{}) {
		t.Errorf("Expected LOW read to pass ungated, got %+v", lowRead)
	}

	disabled := DeriveGates(domain.RiskHigh, student, domain.IntentDelete, 500, false)
	if disabled != (Gates{}) {
		t.Errorf("Expected disabled gates to clear every flag, got %+v", disabled)
	}
}

// The gate invariant must hold for any combination of classifier inputs:
// HIGH risk always raises both the senior approval and 2FA flags, and LOW
// risk never raises senior approval.
func TestGateInvariants(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	intents := []domain.IntentType{
		domain.IntentRead, domain.IntentAnalyze, domain.IntentCreate,
		domain.IntentUpdate, domain.IntentDelete,
	}
	fieldPool := [][]string{nil, {"cgpa"}, {"gross_salary"}, {"semester", "section"}}
	entities := domain.EntityNames()

	for i := 0; i < 500; i++ {
		intent := intents[rng.Intn(len(intents))]
		entity := mustEntity(t, entities[rng.Intn(len(entities))])
		impact := rng.Intn(60)
		fields := fieldPool[rng.Intn(len(fieldPool))]

		risk := ClassifyRisk(intent, entity, impact, fields, DefaultBulkThreshold)
		gates := DeriveGates(risk, entity, intent, impact, true)

		switch risk {
		case domain.RiskHigh:
			if !gates.RequiresSeniorApproval || !gates.Requires2FA {
				t.Fatalf("HIGH risk without full gating: intent=%s entity=%s impact=%d gates=%+v",
					intent, entity.Name, impact, gates)
			}
		case domain.RiskLow:
			if gates.RequiresSeniorApproval || gates.Requires2FA {
				t.Fatalf("LOW risk with senior gating: intent=%s entity=%s impact=%d gates=%+v",
					intent, entity.Name, impact, gates)
			}
		}
	}
}
