package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"steward/api/internal/util"
)

const projectColumns = `id, project_name, COALESCE(project_code, ''), COALESCE(description, ''),
	COALESCE(business_area, ''), COALESCE(sponsor, ''), COALESCE(project_manager, ''),
	planned_start_date, planned_end_date, actual_start_date, actual_end_date,
	status, COALESCE(phase, ''), priority,
	approved_budget, actual_cost, currency,
	overall_health, risk_level,
	is_active, display_order, tags,
	COALESCE(created_by, ''), COALESCE(updated_by, ''), created_at, updated_at`

func scanProject(row rowScanner) (Project, error) {
	var (
		p       Project
		tagsRaw []byte
	)
	err := row.Scan(
		&p.ID, &p.ProjectName, &p.ProjectCode, &p.Description,
		&p.BusinessArea, &p.Sponsor, &p.ProjectManager,
		&p.PlannedStartDate, &p.PlannedEndDate, &p.ActualStartDate, &p.ActualEndDate,
		&p.Status, &p.Phase, &p.Priority,
		&p.ApprovedBudget, &p.ActualCost, &p.Currency,
		&p.OverallHealth, &p.RiskLevel,
		&p.IsActive, &p.DisplayOrder, &tagsRaw,
		&p.CreatedBy, &p.UpdatedBy, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return Project{}, err
	}
	if len(tagsRaw) > 0 {
		if err := json.Unmarshal(tagsRaw, &p.Tags); err != nil {
			return Project{}, fmt.Errorf("decode project tags: %w", err)
		}
	}
	return p, nil
}

// ListProjects returns projects ordered by display order then name. Inactive
// projects are excluded unless includeInactive is set.
func (s *PostgresStore) ListProjects(ctx context.Context, includeInactive bool) ([]Project, error) {
	query := fmt.Sprintf(`SELECT %s FROM projects`, projectColumns)
	if !includeInactive {
		query += ` WHERE is_active=TRUE`
	}
	query += ` ORDER BY display_order, project_name`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	items := make([]Project, 0)
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		items = append(items, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate projects: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) GetProject(ctx context.Context, projectID string) (Project, error) {
	query := fmt.Sprintf(`SELECT %s FROM projects WHERE id=$1`, projectColumns)
	p, err := scanProject(s.db.QueryRowContext(ctx, query, projectID))
	if errors.Is(err, sql.ErrNoRows) {
		return Project{}, err
	}
	if err != nil {
		return Project{}, fmt.Errorf("get project: %w", err)
	}
	return p, nil
}

// GetProjectByName looks a project up by its unique name. Returns nil when no
// project carries the name.
func (s *PostgresStore) GetProjectByName(ctx context.Context, name string) (*Project, error) {
	query := fmt.Sprintf(`SELECT %s FROM projects WHERE project_name=$1`, projectColumns)
	p, err := scanProject(s.db.QueryRowContext(ctx, query, name))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get project by name: %w", err)
	}
	return &p, nil
}

// ProjectCodesLike returns existing project codes matching a LIKE pattern,
// used when generating the next sequential code.
func (s *PostgresStore) ProjectCodesLike(ctx context.Context, pattern string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT project_code FROM projects WHERE project_code LIKE $1`, pattern)
	if err != nil {
		return nil, fmt.Errorf("list project codes: %w", err)
	}
	defer rows.Close()

	codes := make([]string, 0)
	for rows.Next() {
		var code sql.NullString
		if err := rows.Scan(&code); err != nil {
			return nil, fmt.Errorf("scan project code: %w", err)
		}
		if code.Valid {
			codes = append(codes, code.String)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate project codes: %w", err)
	}
	return codes, nil
}

func (s *PostgresStore) InsertProject(ctx context.Context, p Project) (Project, error) {
	if p.ID == "" {
		p.ID = util.NewID()
	}
	if p.Status == "" {
		p.Status = "pre_initiation"
	}
	if p.Priority == "" {
		p.Priority = "medium"
	}
	if p.Currency == "" {
		p.Currency = "USD"
	}
	if p.OverallHealth == "" {
		p.OverallHealth = "green"
	}
	if p.RiskLevel == "" {
		p.RiskLevel = "low"
	}
	p.IsActive = true

	tags := p.Tags
	if tags == nil {
		tags = []string{}
	}
	tagsRaw, err := json.Marshal(tags)
	if err != nil {
		return Project{}, fmt.Errorf("encode project tags: %w", err)
	}

	err = s.db.QueryRowContext(ctx, `
		INSERT INTO projects (id, project_name, project_code, description, business_area,
			sponsor, project_manager, planned_start_date, planned_end_date,
			status, phase, priority, approved_budget, currency,
			overall_health, risk_level, is_active, display_order, tags, created_by, updated_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)
		RETURNING created_at, updated_at
	`,
		p.ID, p.ProjectName, nullIfBlank(p.ProjectCode), p.Description, p.BusinessArea,
		p.Sponsor, p.ProjectManager, p.PlannedStartDate, p.PlannedEndDate,
		p.Status, nullIfBlank(p.Phase), p.Priority, p.ApprovedBudget, p.Currency,
		p.OverallHealth, p.RiskLevel, p.IsActive, p.DisplayOrder, tagsRaw, p.CreatedBy, p.UpdatedBy,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return Project{}, fmt.Errorf("insert project: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) UpdateProject(ctx context.Context, p Project) (Project, error) {
	tags := p.Tags
	if tags == nil {
		tags = []string{}
	}
	tagsRaw, err := json.Marshal(tags)
	if err != nil {
		return Project{}, fmt.Errorf("encode project tags: %w", err)
	}
	err = s.db.QueryRowContext(ctx, `
		UPDATE projects
		SET project_name=$2, description=$3, business_area=$4, sponsor=$5, project_manager=$6,
			planned_start_date=$7, planned_end_date=$8, actual_start_date=$9, actual_end_date=$10,
			status=$11, phase=$12, priority=$13, approved_budget=$14, actual_cost=$15,
			overall_health=$16, risk_level=$17, display_order=$18, tags=$19,
			updated_by=$20, updated_at=NOW()
		WHERE id=$1
		RETURNING updated_at
	`,
		p.ID, p.ProjectName, p.Description, p.BusinessArea, p.Sponsor, p.ProjectManager,
		p.PlannedStartDate, p.PlannedEndDate, p.ActualStartDate, p.ActualEndDate,
		p.Status, nullIfBlank(p.Phase), p.Priority, p.ApprovedBudget, p.ActualCost,
		p.OverallHealth, p.RiskLevel, p.DisplayOrder, tagsRaw, p.UpdatedBy,
	).Scan(&p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Project{}, err
	}
	if err != nil {
		return Project{}, fmt.Errorf("update project: %w", err)
	}
	return p, nil
}

// DeactivateProject soft-deletes a project. Returns false when no row matched.
func (s *PostgresStore) DeactivateProject(ctx context.Context, projectID string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `UPDATE projects SET is_active=FALSE, updated_at=NOW() WHERE id=$1`, projectID)
	if err != nil {
		return false, fmt.Errorf("deactivate project: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("deactivate project rows: %w", err)
	}
	return affected > 0, nil
}

// CountProjects reports how many projects exist, used by bootstrap seeding.
func (s *PostgresStore) CountProjects(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM projects`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count projects: %w", err)
	}
	return count, nil
}
