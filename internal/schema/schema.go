// Package schema is the field schema registry for versioned project documents.
// It is pure data: per document kind it maps field names to semantic types and
// records required fields and closed enum vocabularies. Both the AI suggestion
// prompt and the change validator are built from the same tables so the two
// sides of the pipeline can never drift apart.
package schema

import "sort"

// Kind identifies a document kind. It is a dispatch key, not a stored entity.
type Kind string

const (
	KindBusinessCase   Kind = "business-case"
	KindProjectCharter Kind = "project-charter"
)

// Known reports whether kind is a registered document kind.
func Known(kind Kind) bool {
	_, ok := fieldTypes[kind]
	return ok
}

// Kinds returns the registered document kinds in a stable order.
func Kinds() []Kind {
	return []Kind{KindBusinessCase, KindProjectCharter}
}

// FieldType is the semantic type a document field must coerce to.
type FieldType int

const (
	TypeString FieldType = iota
	TypeInteger
	TypeDecimal
	TypeDate
	TypeObjectList
	TypeStringList
	TypeObject
)

func (t FieldType) String() string {
	switch t {
	case TypeString:
		return "string"
	case TypeInteger:
		return "integer"
	case TypeDecimal:
		return "decimal"
	case TypeDate:
		return "date"
	case TypeObjectList:
		return "list-of-object"
	case TypeStringList:
		return "list-of-string"
	case TypeObject:
		return "object"
	default:
		return "unknown"
	}
}

// System fields can never be written through the change pipeline.
var systemFields = map[string]struct{}{
	"id":         {},
	"created_at": {},
	"updated_at": {},
	"created_by": {},
	"version":    {},
	"project_id": {},
}

// IsSystemField reports whether field is owned by the system.
func IsSystemField(field string) bool {
	_, ok := systemFields[field]
	return ok
}

var urgencyValues = []string{"low", "medium", "high", "critical"}

var riskToleranceValues = []string{"low", "medium", "high"}

var statusValues = map[Kind][]string{
	KindBusinessCase: {
		"draft", "review_requested", "under_review", "revisions_required",
		"approved", "rejected", "archived",
	},
	KindProjectCharter: {
		"draft", "review_requested", "under_review", "revisions_required",
		"approved", "active", "superseded", "cancelled", "archived",
	},
}

var approvalLevelValues = map[Kind][]string{
	KindBusinessCase:   {"department", "divisional", "executive", "board"},
	KindProjectCharter: {"pm", "sponsor", "steering_committee", "executive"},
}

var requiredFields = map[Kind]map[string]struct{}{
	KindBusinessCase: {},
	// sponsor is NOT NULL at the database level.
	KindProjectCharter: {"sponsor": {}},
}

var fieldTypes = map[Kind]map[string]FieldType{
	KindBusinessCase: {
		"title":                    TypeString,
		"business_area":            TypeString,
		"strategic_alignment":      TypeString,
		"business_driver":          TypeString,
		"urgency":                  TypeString,
		"sponsor":                  TypeString,
		"project_description":      TypeString,
		"recommended_option":       TypeString,
		"recommendation_rationale": TypeString,
		"status":                   TypeString,
		"approval_level":           TypeString,
		"approved_by":              TypeString,
		"version":                  TypeString,

		"proposed_start_date": TypeDate,
		"proposed_end_date":   TypeDate,
		"submitted_date":      TypeDate,
		"approved_date":       TypeDate,

		"estimated_duration_months": TypeInteger,
		"payback_period_months":     TypeInteger,

		"roi_percentage": TypeDecimal,
		"npv_value":      TypeDecimal,

		"approvals":             TypeObjectList,
		"background":            TypeObjectList,
		"objectives":            TypeObjectList,
		"deliverables":          TypeObjectList,
		"interdependencies":     TypeObjectList,
		"key_assumptions":       TypeObjectList,
		"constraints":           TypeObjectList,
		"risks":                 TypeObjectList,
		"opportunities":         TypeObjectList,
		"financial_assumptions": TypeObjectList,
		"options_considered":    TypeObjectList,
		"success_criteria":      TypeObjectList,

		"scope_in":  TypeStringList,
		"scope_out": TypeStringList,

		"costs":    TypeObject,
		"benefits": TypeObject,
	},
	KindProjectCharter: {
		"title":                  TypeString,
		"sponsor":                TypeString,
		"project_manager":        TypeString,
		"governance_structure":   TypeString,
		"business_case_summary":  TypeString,
		"strategic_alignment":    TypeString,
		"project_objectives":     TypeString,
		"acceptance_criteria":    TypeString,
		"change_control_process": TypeString,
		"status":                 TypeString,
		"approval_level":         TypeString,
		"approved_by":            TypeString,
		"approval_comments":      TypeString,
		"risk_tolerance":         TypeString,
		"version":                TypeString,

		"charter_date":   TypeDate,
		"sign_off_date":  TypeDate,
		"effective_date": TypeDate,
		"review_date":    TypeDate,
		"expiry_date":    TypeDate,
		"submitted_date": TypeDate,
		"approved_date":  TypeDate,

		"schedule_tolerance": TypeInteger,

		"budget_authority": TypeDecimal,
		"budget_tolerance": TypeDecimal,

		"steering_committee":      TypeObjectList,
		"project_team":            TypeObjectList,
		"key_stakeholders":        TypeObjectList,
		"external_dependencies":   TypeObjectList,
		"business_benefits":       TypeObjectList,
		"success_criteria":        TypeObjectList,
		"scope_deliverables":      TypeObjectList,
		"assumptions":             TypeObjectList,
		"constraints":             TypeObjectList,
		"key_dates_milestones":    TypeObjectList,
		"critical_deadlines":      TypeObjectList,
		"threats_opportunities":   TypeObjectList,
		"escalation_criteria":     TypeObjectList,
		"decision_authority":      TypeObjectList,
		"reporting_requirements":  TypeObjectList,
		"compliance_requirements": TypeObjectList,
		"change_log":              TypeObjectList,

		"scope_exclusions":  TypeStringList,
		"quality_standards": TypeStringList,

		"resource_requirements": TypeObject,
	},
}

// TypeOf returns the semantic type of a field for a kind. The second return is
// false when the field is not registered; absence is a valid outcome that
// callers handle, not an error.
func TypeOf(kind Kind, field string) (FieldType, bool) {
	types, ok := fieldTypes[kind]
	if !ok {
		return 0, false
	}
	t, ok := types[field]
	return t, ok
}

// RequiredFields returns the set of non-nullable fields for a kind.
func RequiredFields(kind Kind) map[string]struct{} {
	return requiredFields[kind]
}

// EnumValues returns the closed vocabulary for a constrained field, sorted, or
// nil for unconstrained fields.
func EnumValues(kind Kind, field string) []string {
	var values []string
	switch field {
	case "urgency":
		if kind == KindBusinessCase {
			values = urgencyValues
		}
	case "risk_tolerance":
		if kind == KindProjectCharter {
			values = riskToleranceValues
		}
	case "status":
		values = statusValues[kind]
	case "approval_level":
		values = approvalLevelValues[kind]
	}
	if values == nil {
		return nil
	}
	sorted := make([]string, len(values))
	copy(sorted, values)
	sort.Strings(sorted)
	return sorted
}

// FieldsOfType returns the sorted field names of a kind that carry the given
// semantic type. Used when restating the schema contract in the AI prompt.
func FieldsOfType(kind Kind, t FieldType) []string {
	var fields []string
	for name, ft := range fieldTypes[kind] {
		if ft == t {
			fields = append(fields, name)
		}
	}
	sort.Strings(fields)
	return fields
}

// FieldNames returns every registered field name for a kind, sorted.
func FieldNames(kind Kind) []string {
	fields := make([]string, 0, len(fieldTypes[kind]))
	for name := range fieldTypes[kind] {
		fields = append(fields, name)
	}
	sort.Strings(fields)
	return fields
}
