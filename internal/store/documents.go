package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"steward/api/internal/schema"
	"steward/api/internal/util"
)

func tableFor(kind schema.Kind) (string, error) {
	switch kind {
	case schema.KindBusinessCase:
		return "business_cases", nil
	case schema.KindProjectCharter:
		return "project_charters", nil
	default:
		return "", fmt.Errorf("unknown document kind: %s", kind)
	}
}

const documentColumns = `id, project_id, version, COALESCE(title, ''), COALESCE(sponsor, ''),
	status, COALESCE(approval_level, ''),
	supersedes_version, is_current_version, fields, change_log,
	COALESCE(created_by, ''), COALESCE(updated_by, ''), created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (DocumentRecord, error) {
	var (
		rec          DocumentRecord
		fieldsRaw    []byte
		changeLogRaw []byte
	)
	err := row.Scan(
		&rec.ID, &rec.ProjectID, &rec.Version, &rec.Title, &rec.Sponsor,
		&rec.Status, &rec.ApprovalLevel, &rec.SupersedesVersion, &rec.IsCurrentVersion,
		&fieldsRaw, &changeLogRaw,
		&rec.CreatedBy, &rec.UpdatedBy, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		return DocumentRecord{}, err
	}
	rec.Fields = map[string]any{}
	if len(fieldsRaw) > 0 {
		if err := json.Unmarshal(fieldsRaw, &rec.Fields); err != nil {
			return DocumentRecord{}, fmt.Errorf("decode document fields: %w", err)
		}
	}
	if len(changeLogRaw) > 0 {
		if err := json.Unmarshal(changeLogRaw, &rec.ChangeLog); err != nil {
			return DocumentRecord{}, fmt.Errorf("decode change log: %w", err)
		}
	}
	return rec, nil
}

func encodeDocument(rec DocumentRecord) (fields, changeLog []byte, err error) {
	fieldMap := rec.Fields
	if fieldMap == nil {
		fieldMap = map[string]any{}
	}
	fields, err = json.Marshal(fieldMap)
	if err != nil {
		return nil, nil, fmt.Errorf("encode document fields: %w", err)
	}
	log := rec.ChangeLog
	if log == nil {
		log = []map[string]any{}
	}
	changeLog, err = json.Marshal(log)
	if err != nil {
		return nil, nil, fmt.Errorf("encode change log: %w", err)
	}
	return fields, changeLog, nil
}

// CurrentDocument returns the single row for (project, kind) where
// is_current_version is true.
func (s *PostgresStore) CurrentDocument(ctx context.Context, kind schema.Kind, projectID string) (DocumentRecord, error) {
	table, err := tableFor(kind)
	if err != nil {
		return DocumentRecord{}, err
	}
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE project_id=$1 AND is_current_version=TRUE`, documentColumns, table)
	rec, err := scanDocument(s.db.QueryRowContext(ctx, query, projectID))
	if errors.Is(err, sql.ErrNoRows) {
		return DocumentRecord{}, err
	}
	if err != nil {
		return DocumentRecord{}, fmt.Errorf("get current %s: %w", kind, err)
	}
	return rec, nil
}

// GetDocument returns a document row by identity, current or superseded.
func (s *PostgresStore) GetDocument(ctx context.Context, kind schema.Kind, documentID string) (DocumentRecord, error) {
	table, err := tableFor(kind)
	if err != nil {
		return DocumentRecord{}, err
	}
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id=$1`, documentColumns, table)
	rec, err := scanDocument(s.db.QueryRowContext(ctx, query, documentID))
	if errors.Is(err, sql.ErrNoRows) {
		return DocumentRecord{}, err
	}
	if err != nil {
		return DocumentRecord{}, fmt.Errorf("get %s: %w", kind, err)
	}
	return rec, nil
}

// ListDocuments returns every version for a project, newest first.
func (s *PostgresStore) ListDocuments(ctx context.Context, kind schema.Kind, projectID string) ([]DocumentRecord, error) {
	table, err := tableFor(kind)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE project_id=$1 ORDER BY created_at DESC`, documentColumns, table)
	rows, err := s.db.QueryContext(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", kind, err)
	}
	defer rows.Close()

	items := make([]DocumentRecord, 0)
	for rows.Next() {
		rec, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", kind, err)
		}
		items = append(items, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", kind, err)
	}
	return items, nil
}

// InsertDocument creates a new document row. Defaults are filled in: a fresh
// id, version "1.0", status "draft" and is_current_version true.
func (s *PostgresStore) InsertDocument(ctx context.Context, kind schema.Kind, rec DocumentRecord) (DocumentRecord, error) {
	table, err := tableFor(kind)
	if err != nil {
		return DocumentRecord{}, err
	}
	if rec.ID == "" {
		rec.ID = util.NewID()
	}
	if rec.Version == "" {
		rec.Version = "1.0"
	}
	if rec.Status == "" {
		rec.Status = "draft"
	}
	rec.IsCurrentVersion = true

	fields, changeLog, err := encodeDocument(rec)
	if err != nil {
		return DocumentRecord{}, err
	}
	query := fmt.Sprintf(`
		INSERT INTO %s (id, project_id, version, title, sponsor, status, approval_level,
			supersedes_version, is_current_version, fields, change_log, created_by, updated_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING created_at, updated_at
	`, table)
	err = s.db.QueryRowContext(ctx, query,
		rec.ID, rec.ProjectID, rec.Version, rec.Title, rec.Sponsor, rec.Status,
		nullIfBlank(rec.ApprovalLevel), rec.SupersedesVersion, rec.IsCurrentVersion,
		fields, changeLog, rec.CreatedBy, rec.UpdatedBy,
	).Scan(&rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return DocumentRecord{}, fmt.Errorf("insert %s: %w", kind, err)
	}
	return rec, nil
}

// UpdateDocument applies a validated change set to an existing row in place.
// No version bump happens here.
func (s *PostgresStore) UpdateDocument(ctx context.Context, kind schema.Kind, documentID string, changes map[string]any, updatedBy string) (DocumentRecord, error) {
	table, err := tableFor(kind)
	if err != nil {
		return DocumentRecord{}, err
	}
	rec, err := s.GetDocument(ctx, kind, documentID)
	if err != nil {
		return DocumentRecord{}, err
	}
	rec.Apply(changes)
	rec.UpdatedBy = updatedBy

	fields, changeLog, err := encodeDocument(rec)
	if err != nil {
		return DocumentRecord{}, err
	}
	query := fmt.Sprintf(`
		UPDATE %s
		SET title=$2, sponsor=$3, status=$4, approval_level=$5, fields=$6, change_log=$7,
			updated_by=$8, updated_at=NOW()
		WHERE id=$1
		RETURNING updated_at
	`, table)
	err = s.db.QueryRowContext(ctx, query,
		rec.ID, rec.Title, rec.Sponsor, rec.Status, nullIfBlank(rec.ApprovalLevel),
		fields, changeLog, rec.UpdatedBy,
	).Scan(&rec.UpdatedAt)
	if err != nil {
		return DocumentRecord{}, fmt.Errorf("update %s: %w", kind, err)
	}
	return rec, nil
}

// CreateNewVersion supersedes the given row with a clone carrying the
// validated change set. The whole operation runs in one transaction with the
// old row locked, so two concurrent calls cannot both leave a current
// version behind. The old row is never deleted.
func (s *PostgresStore) CreateNewVersion(ctx context.Context, kind schema.Kind, documentID string, changes map[string]any, updatedBy string) (DocumentRecord, error) {
	table, err := tableFor(kind)
	if err != nil {
		return DocumentRecord{}, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return DocumentRecord{}, fmt.Errorf("begin new version tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id=$1 FOR UPDATE`, documentColumns, table)
	original, err := scanDocument(tx.QueryRowContext(ctx, query, documentID))
	if errors.Is(err, sql.ErrNoRows) {
		return DocumentRecord{}, err
	}
	if err != nil {
		return DocumentRecord{}, fmt.Errorf("load %s for versioning: %w", kind, err)
	}

	demote := fmt.Sprintf(`UPDATE %s SET is_current_version=FALSE, updated_at=NOW() WHERE id=$1`, table)
	if _, err := tx.ExecContext(ctx, demote, original.ID); err != nil {
		return DocumentRecord{}, fmt.Errorf("demote current %s: %w", kind, err)
	}

	// Clone everything except identity and audit timestamps, then overlay the
	// accepted changes.
	next := original
	next.ID = util.NewID()
	next.Fields = make(map[string]any, len(original.Fields))
	for field, value := range original.Fields {
		next.Fields[field] = value
	}
	next.ChangeLog = append([]map[string]any(nil), original.ChangeLog...)
	next.Apply(changes)

	supersedes := original.ID
	next.SupersedesVersion = &supersedes
	next.IsCurrentVersion = true
	next.Version = NextVersion(original.Version)
	next.UpdatedBy = updatedBy

	if kind == schema.KindProjectCharter {
		// The change-log timestamp comes from the database inside this same
		// transaction, keeping it consistent with the row writes.
		var now time.Time
		if err := tx.QueryRowContext(ctx, `SELECT NOW()`).Scan(&now); err != nil {
			return DocumentRecord{}, fmt.Errorf("read transaction time: %w", err)
		}
		next.ChangeLog = append(next.ChangeLog, map[string]any{
			"version": next.Version,
			"date":    now.UTC().Format(time.RFC3339),
			"changes": "Updated project charter",
			"reason":  "Version update",
		})
	}

	fields, changeLog, err := encodeDocument(next)
	if err != nil {
		return DocumentRecord{}, err
	}
	insert := fmt.Sprintf(`
		INSERT INTO %s (id, project_id, version, title, sponsor, status, approval_level,
			supersedes_version, is_current_version, fields, change_log, created_by, updated_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING created_at, updated_at
	`, table)
	err = tx.QueryRowContext(ctx, insert,
		next.ID, next.ProjectID, next.Version, next.Title, next.Sponsor, next.Status,
		nullIfBlank(next.ApprovalLevel), next.SupersedesVersion, next.IsCurrentVersion,
		fields, changeLog, next.CreatedBy, next.UpdatedBy,
	).Scan(&next.CreatedAt, &next.UpdatedAt)
	if err != nil {
		return DocumentRecord{}, fmt.Errorf("insert new %s version: %w", kind, err)
	}

	if err := tx.Commit(); err != nil {
		return DocumentRecord{}, fmt.Errorf("commit new version tx: %w", err)
	}
	return next, nil
}

// NextVersion bumps a dotted major.minor version string. Anything that does
// not parse as exactly two integers falls back to "2.0".
func NextVersion(version string) string {
	parts := strings.Split(version, ".")
	if len(parts) != 2 {
		return "2.0"
	}
	major, err := strconv.Atoi(parts[0])
	if err != nil {
		return "2.0"
	}
	minor, err := strconv.Atoi(parts[1])
	if err != nil {
		return "2.0"
	}
	return fmt.Sprintf("%d.%d", major, minor+1)
}

func nullIfBlank(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}
