package intent

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"github.com/campusiq/campusiq/internal/domain"
	"github.com/campusiq/campusiq/internal/ports"
)

// KeywordClassifier is the built-in intent classifier. It extracts the
// operation, target entity and filters from a command with keyword and
// pattern matching. Confidence reflects how much of the command the rules
// accounted for; low confidence triggers the clarification loop upstream.
type KeywordClassifier struct{}

// NewKeywordClassifier creates the default rule-based classifier
func NewKeywordClassifier() ports.IntentClassifier {
	return &KeywordClassifier{}
}

// intentVerbs maps trigger words to operation types, checked in order so
// that destructive verbs win over incidental reads in the same sentence.
var intentVerbs = []struct {
	intent domain.IntentType
	words  []string
}{
	{domain.IntentDelete, []string{"delete", "remove", "drop", "purge", "erase"}},
	{domain.IntentCreate, []string{"create", "add", "register", "enroll", "insert", "new"}},
	{domain.IntentUpdate, []string{"update", "change", "set", "modify", "correct", "fix", "mark", "increase", "decrease"}},
	{domain.IntentEscalate, []string{"escalate", "flag for review", "raise to"}},
	{domain.IntentAnalyze, []string{"analyze", "analyse", "analysis", "trend", "trends", "compare", "summarize", "summarise", "average", "statistics", "report on"}},
	{domain.IntentRead, []string{"show", "list", "get", "find", "display", "view", "who", "what", "how many", "count"}},
}

// entityKeywords maps surface forms in commands onto canonical entity
// names. Longer phrases are listed first so "salary record" is not
// swallowed by "record".
var entityKeywords = []struct {
	entity string
	words  []string
}{
	{"salary_record", []string{"salary record", "salary", "salaries", "payroll"}},
	{"student_fee", []string{"student fee", "fee", "fees", "dues"}},
	{"attendance", []string{"attendance", "absent", "present"}},
	{"prediction", []string{"prediction", "predicted grade", "risk score"}},
	{"department", []string{"department", "departments", "dept"}},
	{"invoice", []string{"invoice", "invoices"}},
	{"payment", []string{"payment", "payments"}},
	{"employee", []string{"employee", "employees", "staff"}},
	{"faculty", []string{"faculty", "professor", "professors", "teacher", "teachers", "lecturer"}},
	{"course", []string{"course", "courses", "subject", "subjects"}},
	{"student", []string{"student", "students"}},
}

var (
	departmentPattern = regexp.MustCompile(`(?i)\b(?:in|of|from)\s+(?:the\s+)?([a-z][a-z\s]{1,30}?)\s+(?:department|dept)\b`)
	semesterPattern   = regexp.MustCompile(`(?i)\bsemester\s+(\d{1,2})\b|\b(\d{1,2})(?:st|nd|rd|th)\s+semester\b`)
	cgpaPattern       = regexp.MustCompile(`(?i)\bcgpa\s*(?:to|=|is)?\s*(\d+(?:\.\d+)?)\b`)
	rollPattern       = regexp.MustCompile(`(?i)\broll\s*(?:number|no\.?)?\s*([a-z0-9\-]+)\b`)
	yearPattern       = regexp.MustCompile(`(?i)\b(?:year|batch)\s+(\d{4})\b`)
	timeRangePattern  = regexp.MustCompile(`(?i)\b(last|past|this|previous)\s+(week|month|semester|year|\d+\s+(?:days|weeks|months))\b`)
)

// Classify extracts a structured intent from the raw command. The prior
// clarification answer, when present, is folded into the command text so
// the same rules can pick up the newly supplied detail.
func (c *KeywordClassifier) Classify(ctx context.Context, rawText, module, priorClarification string) (*ports.ClassificationResult, error) {
	text := strings.ToLower(strings.TrimSpace(rawText))
	if priorClarification != "" {
		text = text + " " + strings.ToLower(strings.TrimSpace(priorClarification))
	}

	result := &ports.ClassificationResult{
		IntentType: string(domain.IntentRead),
		Filters:    map[string]interface{}{},
		Values:     map[string]interface{}{},
		Confidence: 0.3,
	}
	if text == "" {
		result.Confidence = 0
		result.MissingFields = []string{"command"}
		result.Question = "What would you like to do?"
		return result, nil
	}

	intentMatched := false
	for _, group := range intentVerbs {
		for _, word := range group.words {
			if containsWord(text, word) {
				result.IntentType = string(group.intent)
				intentMatched = true
				break
			}
		}
		if intentMatched {
			break
		}
	}

	for _, group := range entityKeywords {
		for _, word := range group.words {
			if containsWord(text, word) {
				result.Entity = group.entity
				break
			}
		}
		if result.Entity != "" {
			break
		}
	}

	c.extractFilters(text, result)
	c.extractValues(text, result)
	c.score(text, result, intentMatched)
	return result, nil
}

func (c *KeywordClassifier) extractFilters(text string, result *ports.ClassificationResult) {
	if m := departmentPattern.FindStringSubmatch(text); m != nil {
		result.Filters["department"] = strings.TrimSpace(m[1])
	}
	if m := semesterPattern.FindStringSubmatch(text); m != nil {
		raw := m[1]
		if raw == "" {
			raw = m[2]
		}
		if semester, err := strconv.Atoi(raw); err == nil {
			result.Filters["semester"] = semester
		}
	}
	if m := rollPattern.FindStringSubmatch(text); m != nil {
		result.Filters["roll_number"] = strings.ToUpper(m[1])
	}
	if m := yearPattern.FindStringSubmatch(text); m != nil {
		if year, err := strconv.Atoi(m[1]); err == nil {
			result.Filters["admission_year"] = year
		}
	}
	if m := timeRangePattern.FindStringSubmatch(text); m != nil {
		result.Filters["time_range"] = strings.TrimSpace(m[0])
	}
}

func (c *KeywordClassifier) extractValues(text string, result *ports.ClassificationResult) {
	operation := domain.IntentType(result.IntentType)
	if operation != domain.IntentUpdate && operation != domain.IntentCreate {
		return
	}
	if m := cgpaPattern.FindStringSubmatch(text); m != nil {
		if cgpa, err := strconv.ParseFloat(m[1], 64); err == nil {
			result.Values["cgpa"] = cgpa
			result.AffectedFields = append(result.AffectedFields, "cgpa")
		}
	}
	if containsWord(text, "gross salary") || containsWord(text, "net salary") {
		result.AffectedFields = append(result.AffectedFields, "gross_salary")
	}
	if containsWord(text, "paid") {
		result.Values["is_paid"] = true
		result.AffectedFields = append(result.AffectedFields, "is_paid")
	}
}

// score sets the confidence and collects the missing fields that make the
// command unactionable as extracted.
func (c *KeywordClassifier) score(text string, result *ports.ClassificationResult, intentMatched bool) {
	confidence := 0.3
	if intentMatched {
		confidence += 0.3
	}
	if result.Entity != "" {
		confidence += 0.3
	}
	if len(result.Filters) > 0 || len(result.Values) > 0 {
		confidence += 0.1
	}

	operation := domain.IntentType(result.IntentType)
	switch {
	case result.Entity == "":
		result.MissingFields = append(result.MissingFields, "entity")
		result.Question = "Which records is this about? For example students, courses or fees."
	case (operation == domain.IntentUpdate || operation == domain.IntentDelete) && len(result.Filters) == 0:
		result.MissingFields = append(result.MissingFields, "filters")
		result.Question = "Which records should this apply to? Please narrow it down, for example by department or roll number."
		confidence -= 0.2
	case operation == domain.IntentUpdate && len(result.Values) == 0:
		result.MissingFields = append(result.MissingFields, "values")
		result.Question = "What should the new value be?"
		confidence -= 0.2
	case operation == domain.IntentCreate && len(result.Values) == 0:
		result.MissingFields = append(result.MissingFields, "values")
		result.Question = "What details should the new record have?"
		confidence -= 0.2
	case operation == domain.IntentAnalyze && result.Entity == "attendance" && result.Filters["time_range"] == nil:
		result.MissingFields = append(result.MissingFields, "time_range")
		result.Question = "Over what period should attendance be analyzed?"
		confidence -= 0.1
	}

	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}
	result.Confidence = confidence
}

// containsWord matches a word or phrase on word boundaries so "set" does
// not match "asset".
func containsWord(text, word string) bool {
	idx := 0
	for {
		pos := strings.Index(text[idx:], word)
		if pos < 0 {
			return false
		}
		start := idx + pos
		end := start + len(word)
		beforeOK := start == 0 || !isWordChar(text[start-1])
		afterOK := end == len(text) || !isWordChar(text[end])
		if beforeOK && afterOK {
			return true
		}
		idx = start + 1
	}
}

func isWordChar(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= '0' && b <= '9' || b == '_'
}
