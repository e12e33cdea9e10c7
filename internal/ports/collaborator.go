package ports

import (
	"context"

	"github.com/campusiq/campusiq/internal/domain"
)

// ClassificationResult is the raw output of the upstream intent
// classifier. The orchestrator normalizes it into domain.Intent before
// anything downstream sees it.
type ClassificationResult struct {
	IntentType     string                 `json:"intent_type"`
	Entity         string                 `json:"entity"`
	Filters        map[string]interface{} `json:"filters"`
	Values         map[string]interface{} `json:"values"`
	AffectedFields []string               `json:"affected_fields"`
	Confidence     float64                `json:"confidence"`
	MissingFields  []string               `json:"missing_fields"`
	Question       string                 `json:"question,omitempty"`
}

// IntentClassifier extracts a structured intent from a raw natural
// language command. Implementations are pluggable; classification
// confidence is consumed, never computed, by the governance core.
type IntentClassifier interface {
	Classify(ctx context.Context, rawText, module, priorClarification string) (*ClassificationResult, error)
}

// MutationRequest describes one all-or-nothing change against the domain
// data store. Keys, when set, restrict the mutation to specific primary
// keys (approval scope narrowing and rollback both use this).
type MutationRequest struct {
	Entity    string
	Operation domain.IntentType
	Filters   map[string]interface{}
	Values    domain.Record
	Keys      []interface{}
}

// DomainStore is the narrow interface to the institutional record
// collaborator. Mutations are applied inside the collaborator's own
// transaction boundary and return the post-mutation state for diffing.
type DomainStore interface {
	// Query returns up to limit records matching the filters
	Query(ctx context.Context, entity string, filters map[string]interface{}, limit int) ([]domain.Record, error)

	// Count returns the full number of records matching the filters
	Count(ctx context.Context, entity string, filters map[string]interface{}) (int, error)

	// Mutate applies one atomic change and returns the affected records
	// in their post-mutation state (empty for DELETE).
	Mutate(ctx context.Context, req MutationRequest) ([]domain.Record, error)
}

// Notifier delivers best-effort notifications; it is never on the
// critical path and its errors are logged, not surfaced.
type Notifier interface {
	Notify(ctx context.Context, actor domain.Actor, event string, payload map[string]interface{}) error
}

// ActorDirectory resolves the current identity snapshot for a user. The
// orchestrator compares it against the snapshot frozen on a plan to detect
// privilege drift between submission and decision.
type ActorDirectory interface {
	Lookup(ctx context.Context, userID string) (domain.Actor, error)
}

// SecondFactorVerifier checks the one-shot second factor presented with a
// HIGH-risk decision.
type SecondFactorVerifier interface {
	// Issue generates and stores a code for the user, returning it for
	// out-of-band delivery.
	Issue(ctx context.Context, userID string) (string, error)

	// Verify consumes the code; a code verifies at most once.
	Verify(ctx context.Context, userID, code string) (bool, error)
}
