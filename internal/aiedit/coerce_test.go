package aiedit

import (
	"reflect"
	"testing"

	"steward/api/internal/schema"
)

func TestCoerceString(t *testing.T) {
	if got := Coerce("title", "New Title", schema.TypeString); got != "New Title" {
		t.Fatalf("expected pass-through, got %v", got)
	}
	if got := Coerce("title", 42, schema.TypeString); got != "42" {
		t.Fatalf("expected stringified number, got %v", got)
	}
	for _, placeholder := range []string{"No Reason Provided", "N/A", "none", "NULL", ""} {
		if got := Coerce("title", placeholder, schema.TypeString); got != nil {
			t.Fatalf("placeholder %q should be absent, got %v", placeholder, got)
		}
	}
}

func TestCoerceInteger(t *testing.T) {
	cases := []struct {
		in   any
		want any
	}{
		{"12 months", int64(12)},
		{"-3", int64(-3)},
		{float64(7), int64(7)},
		{"abc", nil},
		{"-", nil},
		{"", nil},
	}
	for _, tc := range cases {
		if got := Coerce("estimated_duration_months", tc.in, schema.TypeInteger); got != tc.want {
			t.Errorf("coerce(%v) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestCoerceDecimal(t *testing.T) {
	cases := []struct {
		in   any
		want any
	}{
		{"12.5%", 12.5},
		{"$100,000.00", 100000.0},
		{float64(3.25), 3.25},
		{".", nil},
		{"-.", nil},
	}
	for _, tc := range cases {
		if got := Coerce("roi_percentage", tc.in, schema.TypeDecimal); got != tc.want {
			t.Errorf("coerce(%v) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestCoerceDate(t *testing.T) {
	cases := []struct {
		in   string
		want any
	}{
		{"2024-03-15", "2024-03-15"},
		{"2024/03/15", "2024-03-15"},
		{"15-03-2024", "2024-03-15"},
		{"2024-03-15T10:30:00Z", "2024-03-15"},
		{"not a date", nil},
	}
	for _, tc := range cases {
		if got := Coerce("charter_date", tc.in, schema.TypeDate); got != tc.want {
			t.Errorf("coerce(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestCoerceList(t *testing.T) {
	got := Coerce("objectives", "Reduce costs, Improve quality", schema.TypeObjectList)
	want := []any{"Reduce costs", "Improve quality"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("comma split: got %v, want %v", got, want)
	}

	got = Coerce("scope_in", `["a", "b"]`, schema.TypeStringList)
	if !reflect.DeepEqual(got, []any{"a", "b"}) {
		t.Fatalf("json array: got %v", got)
	}

	got = Coerce("scope_in", `"solo"`, schema.TypeStringList)
	if !reflect.DeepEqual(got, []any{"solo"}) {
		t.Fatalf("non-array json wraps: got %v", got)
	}

	if got := Coerce("objectives", []any{}, schema.TypeObjectList); got != nil {
		t.Fatalf("empty list should be absent, got %v", got)
	}
	if got := Coerce("objectives", "[]", schema.TypeObjectList); got != nil {
		t.Fatalf("placeholder [] should be absent, got %v", got)
	}

	got = Coerce("scope_in", "single item", schema.TypeStringList)
	if !reflect.DeepEqual(got, []any{"single item"}) {
		t.Fatalf("singleton wrap: got %v", got)
	}
}

func TestCoerceObject(t *testing.T) {
	obj := map[string]any{"development": 50000.0}
	if got := Coerce("costs", obj, schema.TypeObject); !reflect.DeepEqual(got, obj) {
		t.Fatalf("map pass-through: got %v", got)
	}

	got := Coerce("costs", `{"maintenance": 10000}`, schema.TypeObject)
	if !reflect.DeepEqual(got, map[string]any{"maintenance": 10000.0}) {
		t.Fatalf("json object parse: got %v", got)
	}

	// Malformed structure is never wrapped for object fields.
	if got := Coerce("costs", "just some text", schema.TypeObject); got != nil {
		t.Fatalf("loose string should be absent, got %v", got)
	}
	if got := Coerce("costs", `["a"]`, schema.TypeObject); got != nil {
		t.Fatalf("json array for object field should be absent, got %v", got)
	}
	if got := Coerce("costs", map[string]any{}, schema.TypeObject); got != nil {
		t.Fatalf("empty map should be absent, got %v", got)
	}
	if got := Coerce("costs", "{}", schema.TypeObject); got != nil {
		t.Fatalf("placeholder {} should be absent, got %v", got)
	}
}

func TestCoerceIdempotent(t *testing.T) {
	inputs := []struct {
		field string
		value any
		typ   schema.FieldType
	}{
		{"title", "Acme Corp", schema.TypeString},
		{"estimated_duration_months", "6 months", schema.TypeInteger},
		{"roi_percentage", "12.5", schema.TypeDecimal},
		{"charter_date", "2024/03/15", schema.TypeDate},
		{"objectives", "a, b, c", schema.TypeObjectList},
		{"costs", `{"x": 1}`, schema.TypeObject},
	}
	for _, tc := range inputs {
		first := Coerce(tc.field, tc.value, tc.typ)
		if first == nil {
			t.Fatalf("first pass for %s was absent", tc.field)
		}
		second := Coerce(tc.field, first, tc.typ)
		if !reflect.DeepEqual(first, second) {
			t.Errorf("%s: second pass changed value: %v -> %v", tc.field, first, second)
		}
	}
}

func TestCoercePlaceholdersAllTypes(t *testing.T) {
	types := []schema.FieldType{
		schema.TypeString, schema.TypeObjectList, schema.TypeStringList, schema.TypeObject,
	}
	for _, typ := range types {
		for _, placeholder := range []string{"n/a", "None", "NULL", ""} {
			if got := Coerce("f", placeholder, typ); got != nil {
				t.Errorf("type %s: placeholder %q should be absent, got %v", typ, placeholder, got)
			}
		}
	}
	if got := Coerce("f", nil, schema.TypeInteger); got != nil {
		t.Errorf("nil should always be absent")
	}
}

func TestCoerceUnknownTypePassesThrough(t *testing.T) {
	v := map[string]any{"anything": true}
	if got := Coerce("mystery", v, schema.FieldType(99)); !reflect.DeepEqual(got, v) {
		t.Fatalf("unknown type should pass through, got %v", got)
	}
}
