package aiedit

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"steward/api/internal/schema"
)

// buildSystemPrompt composes the single structured prompt sent to the model:
// the governing template, the current document state, the user's instruction,
// a strict output-format contract, and the same type and constraint tables
// the validator enforces, so both sides of the pipeline share one contract.
func buildSystemPrompt(kind schema.Kind, templateTitle, templateBody string, currentDocument map[string]any, instruction string) string {
	docJSON, err := json.MarshalIndent(currentDocument, "", "  ")
	if err != nil {
		docJSON = []byte("{}")
	}

	required := requiredFieldsLine(kind)

	var b strings.Builder
	fmt.Fprintf(&b, `You are an AI assistant helping to update project documents based on a governing template and user instructions.

DOCUMENT TYPE: %s
TEMPLATE TITLE: %s

TEMPLATE:
%s

CURRENT DOCUMENT DATA:
%s

USER INSTRUCTIONS:
%s

TASK:
Analyze the current document and user instructions against the template. Generate suggested updates for relevant fields based on:
1. The template's guidelines and requirements
2. The user's specific instructions
3. Best practices for %s documents

RESPONSE FORMAT:
Return a JSON object with the following structure:
{
    "suggestions": {
        "field_name": {
            "current_value": <existing value>,
            "suggested_value": <new suggested value>,
            "reason": "explanation of why this change is suggested"
        }
    },
    "overall_reasoning": "High-level explanation of the suggested changes"
}

CRITICAL TYPE REQUIREMENTS:
You MUST maintain correct data types for each field:

STRING FIELDS (use plain strings):
- %s

DATE FIELDS (use ISO date format YYYY-MM-DD, e.g. "2024-03-15"):
- %s

INTEGER FIELDS (use numbers without quotes, e.g. 6):
- %s

DECIMAL FIELDS (use numbers with decimals, e.g. 12.5):
- %s

ARRAY OF OBJECTS (use JSON arrays containing objects):
- %s

ARRAY OF STRINGS (use JSON arrays containing strings):
- %s

OBJECT FIELDS (use JSON objects):
- %s

DATABASE CONSTRAINTS - CRITICAL:
You MUST respect these constraints or the update will fail:

REQUIRED FIELDS (cannot be null):
%s

VALID VALUES FOR ENUM FIELDS (must use exact values):
%s

IMPORTANT GUIDELINES:
- Only suggest changes for fields that actually need updating based on the instructions
- Keep existing values that are appropriate and do not conflict with the template
- NEVER suggest null or empty values for required fields
- ALWAYS use exact enum values from the valid values list above
- Provide clear reasoning for each suggested change
- For array fields, suggest the COMPLETE updated array, not just new items
- Do not suggest changes to system fields (id, created_at, updated_at, version, project_id)
- If a field should remain unchanged, do not include it in suggestions
`,
		kind, templateTitle, templateBody, docJSON, instruction, kind,
		fieldList(kind, schema.TypeString),
		fieldList(kind, schema.TypeDate),
		fieldList(kind, schema.TypeInteger),
		fieldList(kind, schema.TypeDecimal),
		fieldList(kind, schema.TypeObjectList),
		fieldList(kind, schema.TypeStringList),
		fieldList(kind, schema.TypeObject),
		required,
		enumConstraintLines(kind),
	)
	return b.String()
}

func fieldList(kind schema.Kind, t schema.FieldType) string {
	fields := schema.FieldsOfType(kind, t)
	if len(fields) == 0 {
		return "(none)"
	}
	return strings.Join(fields, ", ")
}

func requiredFieldsLine(kind schema.Kind) string {
	required := schema.RequiredFields(kind)
	if len(required) == 0 {
		return "None (all fields are optional)"
	}
	names := make([]string, 0, len(required))
	for name := range required {
		names = append(names, name)
	}
	sort.Strings(names)
	return strings.Join(names, ", ") + " (REQUIRED - cannot be null or empty)"
}

func enumConstraintLines(kind schema.Kind) string {
	var lines []string
	for _, field := range schema.FieldNames(kind) {
		if values := schema.EnumValues(kind, field); values != nil {
			lines = append(lines, fmt.Sprintf("- %s: %s", field, strings.Join(values, ", ")))
		}
	}
	return strings.Join(lines, "\n")
}
