package store

import "time"

type Project struct {
	ID          string
	ProjectName string
	ProjectCode string

	Description    string
	BusinessArea   string
	Sponsor        string
	ProjectManager string

	PlannedStartDate *time.Time
	PlannedEndDate   *time.Time
	ActualStartDate  *time.Time
	ActualEndDate    *time.Time

	Status   string
	Phase    string
	Priority string

	ApprovedBudget *float64
	ActualCost     *float64
	Currency       string

	OverallHealth string
	RiskLevel     string

	IsActive     bool
	DisplayOrder int
	Tags         []string

	CreatedBy string
	UpdatedBy string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// DocumentRecord is one stored version of a business case or project charter.
// Fixed workflow columns live on the struct; the remaining domain fields (the
// ones the field schema registry types) live in Fields and are persisted as
// JSONB. ChangeLog is only populated for charters.
type DocumentRecord struct {
	ID        string
	ProjectID string
	Version   string
	Title     string
	Sponsor   string

	Status        string
	ApprovalLevel string

	SupersedesVersion *string
	IsCurrentVersion  bool

	Fields    map[string]any
	ChangeLog []map[string]any

	CreatedBy string
	UpdatedBy string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Template is the governing guidance document for one document kind. The
// body is markdown; version is a plain integer bumped on every edit.
type Template struct {
	ID           string
	DocumentType string
	Title        string
	Body         string
	Version      int
	DisplayOrder int
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// TemplateRevision is a snapshot of a template taken just before an update.
type TemplateRevision struct {
	ID           string
	TemplateID   string
	DocumentType string
	Title        string
	Body         string
	Version      int
	EditedBy     string
	CreatedAt    time.Time
}

type ChatThread struct {
	ID        string
	Title     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type ChatMessage struct {
	ID        string
	ThreadID  string
	Role      string
	Content   string
	CreatedAt time.Time
}
