package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"steward/api/internal/util"
)

const templateColumns = `id, document_type, title, body, version, display_order, is_active, created_at, updated_at`

func scanTemplate(row rowScanner) (Template, error) {
	var t Template
	err := row.Scan(&t.ID, &t.DocumentType, &t.Title, &t.Body, &t.Version,
		&t.DisplayOrder, &t.IsActive, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return Template{}, err
	}
	return t, nil
}

// ListTemplates returns active templates ordered by display order, then most
// recently updated.
func (s *PostgresStore) ListTemplates(ctx context.Context) ([]Template, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM templates
		WHERE is_active=TRUE
		ORDER BY display_order ASC, updated_at DESC
	`, templateColumns)
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	defer rows.Close()

	items := make([]Template, 0)
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, fmt.Errorf("scan template: %w", err)
		}
		items = append(items, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate templates: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) GetTemplate(ctx context.Context, templateID string) (Template, error) {
	query := fmt.Sprintf(`SELECT %s FROM templates WHERE id=$1`, templateColumns)
	t, err := scanTemplate(s.db.QueryRowContext(ctx, query, templateID))
	if errors.Is(err, sql.ErrNoRows) {
		return Template{}, err
	}
	if err != nil {
		return Template{}, fmt.Errorf("get template: %w", err)
	}
	return t, nil
}

// TemplateByDocumentType returns the template governing a document type, or
// nil when none exists.
func (s *PostgresStore) TemplateByDocumentType(ctx context.Context, documentType string) (*Template, error) {
	query := fmt.Sprintf(`SELECT %s FROM templates WHERE document_type=$1`, templateColumns)
	t, err := scanTemplate(s.db.QueryRowContext(ctx, query, documentType))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get template by document type: %w", err)
	}
	return &t, nil
}

// MaxTemplateDisplayOrder returns the highest display order in use, zero when
// the table is empty.
func (s *PostgresStore) MaxTemplateDisplayOrder(ctx context.Context) (int, error) {
	var order int
	err := s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(display_order), 0) FROM templates`).Scan(&order)
	if err != nil {
		return 0, fmt.Errorf("max template display order: %w", err)
	}
	return order, nil
}

func (s *PostgresStore) InsertTemplate(ctx context.Context, t Template) (Template, error) {
	if t.ID == "" {
		t.ID = util.NewID()
	}
	if t.Version == 0 {
		t.Version = 1
	}
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO templates (id, document_type, title, body, version, display_order, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at
	`, t.ID, t.DocumentType, t.Title, t.Body, t.Version, t.DisplayOrder, t.IsActive).Scan(&t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return Template{}, fmt.Errorf("insert template: %w", err)
	}
	return t, nil
}

// UpdateTemplate writes a revision snapshot of the current state and then
// mutates the row, bumping its integer version. Both happen in one
// transaction so history can never miss an edit.
func (s *PostgresStore) UpdateTemplate(ctx context.Context, t Template, editedBy string) (Template, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Template{}, fmt.Errorf("begin template update tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	query := fmt.Sprintf(`SELECT %s FROM templates WHERE id=$1 FOR UPDATE`, templateColumns)
	current, err := scanTemplate(tx.QueryRowContext(ctx, query, t.ID))
	if errors.Is(err, sql.ErrNoRows) {
		return Template{}, err
	}
	if err != nil {
		return Template{}, fmt.Errorf("load template for update: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO template_revisions (id, template_id, document_type, title, body, version, edited_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, util.NewID(), current.ID, current.DocumentType, current.Title, current.Body, current.Version, editedBy); err != nil {
		return Template{}, fmt.Errorf("insert template revision: %w", err)
	}

	t.Version = current.Version + 1
	err = tx.QueryRowContext(ctx, `
		UPDATE templates
		SET document_type=$2, title=$3, body=$4, display_order=$5, is_active=$6, version=$7, updated_at=NOW()
		WHERE id=$1
		RETURNING created_at, updated_at
	`, t.ID, t.DocumentType, t.Title, t.Body, t.DisplayOrder, t.IsActive, t.Version).Scan(&t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return Template{}, fmt.Errorf("update template: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return Template{}, fmt.Errorf("commit template update tx: %w", err)
	}
	return t, nil
}

func (s *PostgresStore) ListTemplateRevisions(ctx context.Context, templateID string) ([]TemplateRevision, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, template_id, document_type, title, body, version, COALESCE(edited_by, ''), created_at
		FROM template_revisions
		WHERE template_id=$1
		ORDER BY created_at DESC
	`, templateID)
	if err != nil {
		return nil, fmt.Errorf("list template revisions: %w", err)
	}
	defer rows.Close()

	items := make([]TemplateRevision, 0)
	for rows.Next() {
		var rev TemplateRevision
		if err := rows.Scan(&rev.ID, &rev.TemplateID, &rev.DocumentType, &rev.Title,
			&rev.Body, &rev.Version, &rev.EditedBy, &rev.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan template revision: %w", err)
		}
		items = append(items, rev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate template revisions: %w", err)
	}
	return items, nil
}

// DeleteTemplate removes a template and its revisions. Returns false when no
// row matched.
func (s *PostgresStore) DeleteTemplate(ctx context.Context, templateID string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM templates WHERE id=$1`, templateID)
	if err != nil {
		return false, fmt.Errorf("delete template: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete template rows: %w", err)
	}
	return affected > 0, nil
}
