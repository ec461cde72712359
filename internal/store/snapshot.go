package store

import (
	"time"

	"steward/api/internal/schema"
)

// Snapshot converts a document record into the flat field→value mapping that
// crosses the service boundary. This is the explicit per-kind serialization:
// fixed columns are named one by one, never discovered by reflection.
func (r DocumentRecord) Snapshot(kind schema.Kind) map[string]any {
	snap := map[string]any{
		"id":                 r.ID,
		"project_id":         r.ProjectID,
		"version":            r.Version,
		"title":              r.Title,
		"sponsor":            r.Sponsor,
		"status":             r.Status,
		"approval_level":     r.ApprovalLevel,
		"is_current_version": r.IsCurrentVersion,
		"created_by":         r.CreatedBy,
		"updated_by":         r.UpdatedBy,
		"created_at":         r.CreatedAt.UTC().Format(time.RFC3339),
		"updated_at":         r.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if r.SupersedesVersion != nil {
		snap["supersedes_version"] = *r.SupersedesVersion
	} else {
		snap["supersedes_version"] = nil
	}
	for field, value := range r.Fields {
		snap[field] = value
	}
	if kind == schema.KindProjectCharter {
		snap["change_log"] = r.ChangeLog
	}
	return snap
}

// columnFields are validated-change keys applied to fixed columns rather than
// the JSONB field map.
var columnFields = map[string]struct{}{
	"title":          {},
	"sponsor":        {},
	"status":         {},
	"approval_level": {},
}

// Apply overlays a validated change set onto the record. Changes must already
// have passed the change validator; Apply performs no checking of its own.
func (r *DocumentRecord) Apply(changes map[string]any) {
	for field, value := range changes {
		switch field {
		case "title":
			r.Title = asString(value)
		case "sponsor":
			r.Sponsor = asString(value)
		case "status":
			r.Status = asString(value)
		case "approval_level":
			r.ApprovalLevel = asString(value)
		case "change_log":
			r.ChangeLog = asObjectList(value)
		default:
			if r.Fields == nil {
				r.Fields = make(map[string]any)
			}
			r.Fields[field] = value
		}
	}
}

func asString(value any) string {
	s, _ := value.(string)
	return s
}

func asObjectList(value any) []map[string]any {
	switch v := value.(type) {
	case []map[string]any:
		return v
	case []any:
		entries := make([]map[string]any, 0, len(v))
		for _, item := range v {
			if entry, ok := item.(map[string]any); ok {
				entries = append(entries, entry)
			}
		}
		return entries
	default:
		return nil
	}
}
