package domain

import "strings"

// EntityInfo describes one governed entity: which functional module it
// belongs to, which fields a command may write, whether the data is
// sensitive enough to raise the risk floor, and whether deleting rows has
// cascading effects that make rollback infeasible.
type EntityInfo struct {
	Name          string
	Module        string
	Fields        []string
	Sensitive     bool
	HasDependents bool
}

// WritableField reports whether a field may be set by a command.
func (e EntityInfo) WritableField(name string) bool {
	for _, f := range e.Fields {
		if f == name {
			return true
		}
	}
	return false
}

var entityRegistry = map[string]EntityInfo{
	"student": {
		Name:          "student",
		Module:        "academic",
		Fields:        []string{"roll_number", "semester", "section", "cgpa", "admission_year", "department_id"},
		Sensitive:     true,
		HasDependents: true,
	},
	"faculty": {
		Name:          "faculty",
		Module:        "hr",
		Fields:        []string{"employee_id", "designation", "department_id"},
		HasDependents: true,
	},
	"course": {
		Name:          "course",
		Module:        "academic",
		Fields:        []string{"code", "name", "semester", "credits", "department_id"},
		HasDependents: true,
	},
	"department": {
		Name:          "department",
		Module:        "academic",
		Fields:        []string{"name", "code"},
		HasDependents: true,
	},
	"attendance": {
		Name:   "attendance",
		Module: "academic",
		Fields: []string{"date", "is_present", "method", "student_id", "course_id"},
	},
	"prediction": {
		Name:   "prediction",
		Module: "predictions",
		Fields: []string{"predicted_grade", "risk_score", "confidence", "student_id", "course_id"},
	},
	"student_fee": {
		Name:      "student_fee",
		Module:    "finance",
		Fields:    []string{"student_id", "fee_type", "amount", "due_date", "semester", "academic_year", "is_paid"},
		Sensitive: true,
	},
	"invoice": {
		Name:      "invoice",
		Module:    "finance",
		Fields:    []string{"student_id", "invoice_number", "amount_due", "status", "description"},
		Sensitive: true,
	},
	"payment": {
		Name:      "payment",
		Module:    "finance",
		Fields:    []string{"student_id", "amount", "payment_method", "reference_number", "status", "notes"},
		Sensitive: true,
	},
	"employee": {
		Name:          "employee",
		Module:        "hr",
		Fields:        []string{"employee_type", "date_of_joining", "phone", "city", "state"},
		HasDependents: true,
	},
	"salary_record": {
		Name:      "salary_record",
		Module:    "hr",
		Fields:    []string{"employee_id", "month", "year", "gross_salary", "deductions", "net_salary", "status"},
		Sensitive: true,
	},
}

var entityAliases = map[string]string{
	"students":    "student",
	"teachers":    "faculty",
	"courses":     "course",
	"departments": "department",
	"attendances": "attendance",
	"predictions": "prediction",
	"fee":         "student_fee",
	"fees":        "student_fee",
	"salary":      "salary_record",
	"salaries":    "salary_record",
	"employees":   "employee",
	"invoices":    "invoice",
	"payments":    "payment",
}

// LookupEntity resolves a raw entity name (possibly plural or an alias) to
// its registry entry.
func LookupEntity(raw string) (EntityInfo, error) {
	name := strings.ToLower(strings.TrimSpace(raw))
	if canonical, ok := entityAliases[name]; ok {
		name = canonical
	}
	info, ok := entityRegistry[name]
	if !ok {
		return EntityInfo{}, ErrUnknownEntity
	}
	return info, nil
}

// EntityNames returns the canonical names of all registered entities.
func EntityNames() []string {
	names := make([]string, 0, len(entityRegistry))
	for name := range entityRegistry {
		names = append(names, name)
	}
	return names
}
