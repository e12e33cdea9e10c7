package domain

// IntentType represents the operation class of a command
type IntentType string

const (
	IntentRead     IntentType = "READ"
	IntentAnalyze  IntentType = "ANALYZE"
	IntentCreate   IntentType = "CREATE"
	IntentUpdate   IntentType = "UPDATE"
	IntentDelete   IntentType = "DELETE"
	IntentEscalate IntentType = "ESCALATE"
)

// IsMutating reports whether the intent changes domain state.
func (t IntentType) IsMutating() bool {
	switch t {
	case IntentCreate, IntentUpdate, IntentDelete:
		return true
	}
	return false
}

// IsValid reports whether the intent type is one of the closed set.
func (t IntentType) IsValid() bool {
	switch t {
	case IntentRead, IntentAnalyze, IntentCreate, IntentUpdate, IntentDelete, IntentEscalate:
		return true
	}
	return false
}

// Intent is the normalized, closed form of a classified command. Loose
// classifier payloads are converted into this at the orchestrator boundary
// so permission and risk evaluation never see open maps for the parts they
// pattern-match on.
type Intent struct {
	Type           IntentType             `json:"type"`
	Entity         string                 `json:"entity"`
	Filters        map[string]interface{} `json:"filters,omitempty"`
	Values         Record                 `json:"values,omitempty"`
	AffectedFields []string               `json:"affected_fields,omitempty"`
	Confidence     float64                `json:"confidence"`
	MissingFields  []string               `json:"missing_fields,omitempty"`
}

// NeedsClarification reports whether the classification is too ambiguous to
// act on: either the classifier flagged missing required fields or its
// confidence fell below the configured threshold.
func (i Intent) NeedsClarification(confidenceThreshold float64) bool {
	return len(i.MissingFields) > 0 || i.Confidence < confidenceThreshold
}
