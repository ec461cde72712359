package aiedit

import (
	"fmt"
	"log"
	"sort"
	"strings"

	"steward/api/internal/schema"
)

// ValidationError aggregates every constraint violation found while
// validating a change set, so a caller can correct all of them in one pass.
type ValidationError struct {
	Violations []string
}

func (e *ValidationError) Error() string {
	return "constraint validation failed:\n- " + strings.Join(e.Violations, "\n- ")
}

// ValidateChanges coerces each proposed field value to its semantic type and
// enforces required-field and enum constraints for the document kind. System
// owned fields are dropped. Optional fields that fail to coerce are dropped
// silently; required-field and enum violations are collected and returned
// together as a *ValidationError.
func ValidateChanges(kind schema.Kind, changes map[string]any) (map[string]any, error) {
	if !schema.Known(kind) {
		return nil, fmt.Errorf("unknown document kind: %s", kind)
	}

	required := schema.RequiredFields(kind)

	fields := make([]string, 0, len(changes))
	for name := range changes {
		fields = append(fields, name)
	}
	sort.Strings(fields)

	validated := make(map[string]any)
	var violations []string

	for _, name := range fields {
		value := changes[name]

		if schema.IsSystemField(name) {
			log.Printf("aiedit: skipping system field %s", name)
			continue
		}

		fieldType, known := schema.TypeOf(kind, name)
		if !known {
			// The registry is allowed to lag the real schema.
			log.Printf("aiedit: unknown field %s, including as-is", name)
			validated[name] = value
			continue
		}

		coerced := Coerce(name, value, fieldType)

		if coerced == nil {
			if _, isRequired := required[name]; isRequired {
				violations = append(violations,
					fmt.Sprintf("field %q is required and cannot be null or empty", name))
			} else {
				log.Printf("aiedit: dropping field %s after coercion failure", name)
			}
			continue
		}

		if enum := schema.EnumValues(kind, name); enum != nil {
			s, ok := coerced.(string)
			if ok && !contains(enum, s) {
				violations = append(violations,
					fmt.Sprintf("field %q has invalid value %q, must be one of: %s",
						name, s, strings.Join(enum, ", ")))
				continue
			}
		}

		validated[name] = coerced
	}

	if len(violations) > 0 {
		return nil, &ValidationError{Violations: violations}
	}
	return validated, nil
}

func contains(values []string, s string) bool {
	for _, v := range values {
		if v == s {
			return true
		}
	}
	return false
}
