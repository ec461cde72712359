// Package sop manages the document templates that govern AI-assisted edits:
// CRUD with a revision history, a Redis read-through cache, and seeding from
// embedded defaults.
package sop

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"

	"steward/api/internal/schema"
	"steward/api/internal/store"
)

var (
	ErrNotFound       = errors.New("template not found")
	ErrTemplateExists = errors.New("document type already exists")
	ErrNoChanges      = errors.New("no changes detected; update skipped")
)

type templateStore interface {
	ListTemplates(ctx context.Context) ([]store.Template, error)
	GetTemplate(ctx context.Context, templateID string) (store.Template, error)
	TemplateByDocumentType(ctx context.Context, documentType string) (*store.Template, error)
	MaxTemplateDisplayOrder(ctx context.Context) (int, error)
	InsertTemplate(ctx context.Context, t store.Template) (store.Template, error)
	UpdateTemplate(ctx context.Context, t store.Template, editedBy string) (store.Template, error)
	ListTemplateRevisions(ctx context.Context, templateID string) ([]store.TemplateRevision, error)
	DeleteTemplate(ctx context.Context, templateID string) (bool, error)
}

// Service owns template lifecycle. The cache is optional; a nil cache means
// every lookup goes to Postgres.
type Service struct {
	store templateStore
	cache *Cache
}

func NewService(store templateStore, cache *Cache) *Service {
	return &Service{store: store, cache: cache}
}

func (s *Service) List(ctx context.Context) ([]store.Template, error) {
	return s.store.ListTemplates(ctx)
}

func (s *Service) Get(ctx context.Context, templateID string) (store.Template, error) {
	t, err := s.store.GetTemplate(ctx, templateID)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Template{}, ErrNotFound
	}
	return t, err
}

// ByDocumentType resolves a template through the cache when one is wired.
func (s *Service) ByDocumentType(ctx context.Context, documentType string) (*store.Template, error) {
	if s.cache != nil {
		if t, ok := s.cache.Get(ctx, documentType); ok {
			return t, nil
		}
	}
	t, err := s.store.TemplateByDocumentType(ctx, documentType)
	if err != nil {
		return nil, err
	}
	if t != nil && s.cache != nil {
		s.cache.Set(ctx, documentType, t)
	}
	return t, nil
}

// TemplateFor resolves the governing template for a document kind. Kinds use
// hyphens while stored document types use underscores.
func (s *Service) TemplateFor(ctx context.Context, kind schema.Kind) (string, string, bool, error) {
	documentType := strings.ReplaceAll(string(kind), "-", "_")
	t, err := s.ByDocumentType(ctx, documentType)
	if err != nil {
		return "", "", false, err
	}
	if t == nil {
		return "", "", false, nil
	}
	return t.Title, t.Body, true, nil
}

func (s *Service) Create(ctx context.Context, t store.Template) (store.Template, error) {
	existing, err := s.store.TemplateByDocumentType(ctx, t.DocumentType)
	if err != nil {
		return store.Template{}, err
	}
	if existing != nil {
		return store.Template{}, fmt.Errorf("%w: %s", ErrTemplateExists, t.DocumentType)
	}

	if t.DisplayOrder == 0 {
		maxOrder, err := s.store.MaxTemplateDisplayOrder(ctx)
		if err != nil {
			return store.Template{}, err
		}
		t.DisplayOrder = maxOrder + 1
	}
	if t.Version == 0 {
		t.Version = 1
	}
	t.IsActive = true
	return s.store.InsertTemplate(ctx, t)
}

// Update applies partial changes. A request that changes nothing is an error
// so callers do not burn revision rows on no-ops.
func (s *Service) Update(ctx context.Context, templateID string, changes TemplateChanges, editedBy string) (store.Template, error) {
	current, err := s.store.GetTemplate(ctx, templateID)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Template{}, ErrNotFound
	}
	if err != nil {
		return store.Template{}, err
	}

	updated := false
	next := current

	if changes.DocumentType != nil && *changes.DocumentType != current.DocumentType {
		existing, err := s.store.TemplateByDocumentType(ctx, *changes.DocumentType)
		if err != nil {
			return store.Template{}, err
		}
		if existing != nil && existing.ID != current.ID {
			return store.Template{}, fmt.Errorf("%w: %s", ErrTemplateExists, *changes.DocumentType)
		}
		next.DocumentType = *changes.DocumentType
		updated = true
	}
	if changes.Title != nil && *changes.Title != current.Title {
		next.Title = *changes.Title
		updated = true
	}
	if changes.Body != nil && *changes.Body != current.Body {
		next.Body = *changes.Body
		updated = true
	}
	if changes.DisplayOrder != nil && *changes.DisplayOrder != current.DisplayOrder {
		next.DisplayOrder = *changes.DisplayOrder
		updated = true
	}
	if changes.IsActive != nil && *changes.IsActive != current.IsActive {
		next.IsActive = *changes.IsActive
		updated = true
	}

	if !updated {
		return store.Template{}, ErrNoChanges
	}

	saved, err := s.store.UpdateTemplate(ctx, next, editedBy)
	if err != nil {
		return store.Template{}, err
	}
	s.invalidate(ctx, current.DocumentType, saved.DocumentType)
	return saved, nil
}

func (s *Service) History(ctx context.Context, templateID string) ([]store.TemplateRevision, error) {
	if _, err := s.Get(ctx, templateID); err != nil {
		return nil, err
	}
	return s.store.ListTemplateRevisions(ctx, templateID)
}

func (s *Service) Delete(ctx context.Context, templateID string) error {
	t, err := s.store.GetTemplate(ctx, templateID)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	deleted, err := s.store.DeleteTemplate(ctx, templateID)
	if err != nil {
		return err
	}
	if !deleted {
		return ErrNotFound
	}
	s.invalidate(ctx, t.DocumentType)
	return nil
}

// TemplateChanges is a partial update; nil means leave the field alone.
type TemplateChanges struct {
	DocumentType *string
	Title        *string
	Body         *string
	DisplayOrder *int
	IsActive     *bool
}

func (s *Service) invalidate(ctx context.Context, documentTypes ...string) {
	if s.cache == nil {
		return
	}
	for _, dt := range documentTypes {
		if err := s.cache.Invalidate(ctx, dt); err != nil {
			log.Printf("sop: cache invalidation failed for %s: %v", dt, err)
		}
	}
}
