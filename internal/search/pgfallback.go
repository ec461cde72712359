package search

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// PgFallback implements Searcher with ILIKE matching over the project and
// document tables. Used when Meilisearch is unconfigured or unhealthy.
type PgFallback struct {
	db *sql.DB
}

// NewPgFallback creates the Postgres fallback searcher.
func NewPgFallback(db *sql.DB) *PgFallback {
	return &PgFallback{db: db}
}

// Healthy always returns true. If Postgres is down, the whole app is down.
func (p *PgFallback) Healthy() bool {
	return true
}

// Search runs a UNION ALL over projects and the current document versions,
// matching name, code, description, title, and sponsor case-insensitively.
func (p *PgFallback) Search(q Query) ([]Result, int, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, 0, nil
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	pattern := "%" + q.Text + "%"
	var subQueries []string

	if q.FilterType == "" || q.FilterType == ResultProject {
		subQueries = append(subQueries, `
			SELECT 'project'::text AS type, p.id, p.project_name AS title,
				COALESCE(p.description, '') AS snippet,
				p.id AS project_id, ''::text AS kind, p.status
			FROM projects p
			WHERE p.is_active
			  AND (p.project_name ILIKE $1
			       OR COALESCE(p.project_code, '') ILIKE $1
			       OR COALESCE(p.description, '') ILIKE $1
			       OR COALESCE(p.business_area, '') ILIKE $1
			       OR COALESCE(p.sponsor, '') ILIKE $1)`)
	}

	if q.FilterType == "" || q.FilterType == ResultDocument {
		subQueries = append(subQueries, `
			SELECT 'document'::text AS type, b.id, COALESCE(b.title, '') AS title,
				COALESCE(b.sponsor, '') AS snippet,
				b.project_id, 'business-case'::text AS kind, b.status
			FROM business_cases b
			WHERE b.is_current_version
			  AND (COALESCE(b.title, '') ILIKE $1 OR COALESCE(b.sponsor, '') ILIKE $1)`)
		subQueries = append(subQueries, `
			SELECT 'document'::text AS type, c.id, COALESCE(c.title, '') AS title,
				COALESCE(c.sponsor, '') AS snippet,
				c.project_id, 'project-charter'::text AS kind, c.status
			FROM project_charters c
			WHERE c.is_current_version
			  AND (COALESCE(c.title, '') ILIKE $1 OR COALESCE(c.sponsor, '') ILIKE $1)`)
	}

	if len(subQueries) == 0 {
		return nil, 0, nil
	}

	union := strings.Join(subQueries, " UNION ALL ")
	countSQL := fmt.Sprintf("SELECT count(*) FROM (%s) sub", union)
	dataSQL := fmt.Sprintf(`SELECT type, id, title, snippet, project_id, kind, status
		FROM (%s) sub
		ORDER BY title ASC
		LIMIT %d OFFSET %d`, union, limit, offset)

	ctx := context.Background()

	var total int
	if err := p.db.QueryRowContext(ctx, countSQL, pattern).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("search fallback count: %w", err)
	}

	rows, err := p.db.QueryContext(ctx, dataSQL, pattern)
	if err != nil {
		return nil, 0, fmt.Errorf("search fallback query: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		var typ string
		if err := rows.Scan(&typ, &r.ID, &r.Title, &r.Snippet, &r.ProjectID, &r.Kind, &r.Status); err != nil {
			return nil, 0, fmt.Errorf("search fallback scan: %w", err)
		}
		r.Type = ResultType(typ)
		results = append(results, r)
	}

	return results, total, rows.Err()
}

// LoadAllRecords returns every searchable record for full reindexing.
func (p *PgFallback) LoadAllRecords(ctx context.Context) ([]ProjectRecord, []DocumentRecord, error) {
	projectRows, err := p.db.QueryContext(ctx, `
		SELECT id, project_name, COALESCE(project_code, ''), COALESCE(description, ''),
			COALESCE(business_area, ''), COALESCE(sponsor, ''), status
		FROM projects
		WHERE is_active
	`)
	if err != nil {
		return nil, nil, fmt.Errorf("load projects: %w", err)
	}
	defer projectRows.Close()

	projects := make([]ProjectRecord, 0)
	for projectRows.Next() {
		var r ProjectRecord
		if err := projectRows.Scan(&r.ID, &r.ProjectName, &r.ProjectCode, &r.Description, &r.BusinessArea, &r.Sponsor, &r.Status); err != nil {
			return nil, nil, fmt.Errorf("scan project: %w", err)
		}
		projects = append(projects, r)
	}
	if err := projectRows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate projects: %w", err)
	}

	docRows, err := p.db.QueryContext(ctx, `
		SELECT id, project_id, 'business-case', COALESCE(title, ''), COALESCE(sponsor, ''), status
		FROM business_cases WHERE is_current_version
		UNION ALL
		SELECT id, project_id, 'project-charter', COALESCE(title, ''), COALESCE(sponsor, ''), status
		FROM project_charters WHERE is_current_version
	`)
	if err != nil {
		return nil, nil, fmt.Errorf("load documents: %w", err)
	}
	defer docRows.Close()

	documents := make([]DocumentRecord, 0)
	for docRows.Next() {
		var r DocumentRecord
		if err := docRows.Scan(&r.ID, &r.ProjectID, &r.Kind, &r.Title, &r.Sponsor, &r.Status); err != nil {
			return nil, nil, fmt.Errorf("scan document: %w", err)
		}
		documents = append(documents, r)
	}
	if err := docRows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate documents: %w", err)
	}

	return projects, documents, nil
}
