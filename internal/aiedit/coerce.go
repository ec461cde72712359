package aiedit

import (
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"steward/api/internal/schema"
)

// placeholders are strings the model emits when it has nothing useful to say.
// They are treated as absent regardless of target type.
var placeholders = map[string]bool{
	"no reason provided": true,
	"n/a":                true,
	"none":               true,
	"null":               true,
	"":                   true,
}

func isPlaceholder(s string) bool {
	return placeholders[strings.ToLower(s)]
}

var dateFormats = []string{
	"2006-01-02",
	"2006/01/02",
	"02-01-2006",
	"01-02-2006",
}

// Coerce converts a loosely typed value into the shape the field's semantic
// type requires. A nil return means the field should be dropped: null input,
// placeholder strings, empty collections, and values that fail to parse all
// coerce to nil rather than erroring. Scalars coerce permissively (comma
// lists and numeric strings are salvaged), collections conservatively
// (malformed structure is never wrapped into a typed container).
func Coerce(field string, value any, fieldType schema.FieldType) any {
	if value == nil {
		return nil
	}

	switch fieldType {
	case schema.TypeString:
		return coerceString(field, value)
	case schema.TypeInteger:
		return coerceInteger(field, value)
	case schema.TypeDecimal:
		return coerceDecimal(field, value)
	case schema.TypeDate:
		return coerceDate(field, value)
	case schema.TypeObjectList, schema.TypeStringList:
		return coerceList(field, value)
	case schema.TypeObject:
		return coerceObject(field, value)
	default:
		return value
	}
}

func coerceString(field string, value any) any {
	if s, ok := value.(string); ok {
		if isPlaceholder(s) {
			log.Printf("aiedit: skipping placeholder string for %s: %q", field, s)
			return nil
		}
		return s
	}
	s := stringify(value)
	if s == "" {
		return nil
	}
	return s
}

func coerceInteger(field string, value any) any {
	switch v := value.(type) {
	case string:
		var b strings.Builder
		for _, c := range v {
			if c >= '0' && c <= '9' || c == '-' {
				b.WriteRune(c)
			}
		}
		cleaned := b.String()
		if cleaned == "" || cleaned == "-" {
			return nil
		}
		n, err := strconv.ParseInt(cleaned, 10, 64)
		if err != nil {
			log.Printf("aiedit: could not convert %s=%v to integer, skipping", field, value)
			return nil
		}
		return n
	case float64:
		return int64(v)
	case float32:
		return int64(v)
	case int:
		return int64(v)
	case int64:
		return v
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return nil
		}
		return int64(f)
	default:
		log.Printf("aiedit: could not convert %s=%v to integer, skipping", field, value)
		return nil
	}
}

func coerceDecimal(field string, value any) any {
	switch v := value.(type) {
	case string:
		var b strings.Builder
		for _, c := range v {
			if c >= '0' && c <= '9' || c == '-' || c == '.' {
				b.WriteRune(c)
			}
		}
		cleaned := b.String()
		switch cleaned {
		case "", "-", ".", "-.":
			return nil
		}
		f, err := strconv.ParseFloat(cleaned, 64)
		if err != nil {
			log.Printf("aiedit: could not convert %s=%v to decimal, skipping", field, value)
			return nil
		}
		return f
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return nil
		}
		return f
	default:
		log.Printf("aiedit: could not convert %s=%v to decimal, skipping", field, value)
		return nil
	}
}

// coerceDate canonicalizes to "YYYY-MM-DD" so a second pass is a no-op.
func coerceDate(field string, value any) any {
	switch v := value.(type) {
	case time.Time:
		return v.Format("2006-01-02")
	case string:
		for _, layout := range dateFormats {
			if t, err := time.Parse(layout, v); err == nil {
				return t.Format("2006-01-02")
			}
		}
		iso := strings.Replace(v, "Z", "+00:00", 1)
		for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05"} {
			if t, err := time.Parse(layout, iso); err == nil {
				return t.Format("2006-01-02")
			}
		}
		log.Printf("aiedit: could not convert %s=%q to date, skipping", field, v)
		return nil
	default:
		return nil
	}
}

func coerceList(field string, value any) any {
	switch v := value.(type) {
	case []any:
		if len(v) == 0 {
			return nil
		}
		return v
	case string:
		if isPlaceholder(v) || v == "[]" {
			log.Printf("aiedit: skipping placeholder list for %s: %q", field, v)
			return nil
		}

		var parsed any
		if err := json.Unmarshal([]byte(v), &parsed); err == nil {
			if arr, ok := parsed.([]any); ok {
				if len(arr) == 0 {
					return nil
				}
				return arr
			}
			return []any{parsed}
		}

		if strings.Contains(v, ",") {
			var items []any
			for _, part := range strings.Split(v, ",") {
				if p := strings.TrimSpace(part); p != "" {
					items = append(items, p)
				}
			}
			if len(items) == 0 {
				return nil
			}
			return items
		}

		if trimmed := strings.TrimSpace(v); trimmed != "" {
			return []any{trimmed}
		}
		return nil
	default:
		if isFalsy(value) {
			return nil
		}
		return []any{value}
	}
}

func coerceObject(field string, value any) any {
	switch v := value.(type) {
	case map[string]any:
		if len(v) == 0 {
			return nil
		}
		return v
	case string:
		if isPlaceholder(v) || v == "{}" {
			log.Printf("aiedit: skipping placeholder object for %s: %q", field, v)
			return nil
		}

		var parsed any
		if err := json.Unmarshal([]byte(v), &parsed); err == nil {
			if obj, ok := parsed.(map[string]any); ok {
				if len(obj) == 0 {
					return nil
				}
				return obj
			}
		}
		log.Printf("aiedit: could not parse %s=%q as object, skipping", field, v)
		return nil
	default:
		return nil
	}
}

func stringify(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case bool:
		if v {
			return "true"
		}
		return "false"
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	default:
		return fmt.Sprintf("%v", v)
	}
}

func isFalsy(value any) bool {
	switch v := value.(type) {
	case nil:
		return true
	case bool:
		return !v
	case string:
		return v == ""
	case float64:
		return v == 0
	case int:
		return v == 0
	case int64:
		return v == 0
	default:
		return false
	}
}
