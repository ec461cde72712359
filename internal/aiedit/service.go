package aiedit

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"steward/api/internal/llm"
	"steward/api/internal/schema"
	"steward/api/internal/store"
)

// ErrDocumentNotFound means the project has no current document of the
// requested kind.
var ErrDocumentNotFound = errors.New("document not found")

// documentStore is the slice of the persistence layer the edit pipeline
// needs.
type documentStore interface {
	CurrentDocument(ctx context.Context, kind schema.Kind, projectID string) (store.DocumentRecord, error)
	UpdateDocument(ctx context.Context, kind schema.Kind, documentID string, changes map[string]any, updatedBy string) (store.DocumentRecord, error)
	CreateNewVersion(ctx context.Context, kind schema.Kind, documentID string, changes map[string]any, updatedBy string) (store.DocumentRecord, error)
}

// Service orchestrates the suggestion, validation, and apply pipeline.
type Service struct {
	store     documentStore
	templates TemplateProvider
	llm       llm.Client
}

func NewService(store documentStore, templates TemplateProvider, client llm.Client) *Service {
	return &Service{store: store, templates: templates, llm: client}
}

// GenerateSuggestions produces an edit proposal for the project's current
// document of the given kind. Read-only apart from the outbound model call.
func (s *Service) GenerateSuggestions(ctx context.Context, kind schema.Kind, projectID, instruction string) (SuggestionSet, error) {
	rec, err := s.store.CurrentDocument(ctx, kind, projectID)
	if errors.Is(err, sql.ErrNoRows) {
		return SuggestionSet{}, fmt.Errorf("%w: %s for project %s", ErrDocumentNotFound, kind, projectID)
	}
	if err != nil {
		return SuggestionSet{}, err
	}
	return GenerateSuggestions(ctx, s.templates, s.llm, kind, rec.Snapshot(kind), instruction)
}

// ValidateChanges exposes the validator for callers that want a dry run.
func (s *Service) ValidateChanges(kind schema.Kind, changes map[string]any) (map[string]any, error) {
	return ValidateChanges(kind, changes)
}

// ApplyChanges validates an accepted change set and persists it onto the
// project's current document, either in place or as a superseding version.
// Validation failures abort before any write, so partial application is
// never observable.
func (s *Service) ApplyChanges(ctx context.Context, kind schema.Kind, projectID string, accepted map[string]any, actorID string, newVersion bool) (map[string]any, error) {
	validated, err := ValidateChanges(kind, accepted)
	if err != nil {
		return nil, err
	}

	rec, err := s.store.CurrentDocument(ctx, kind, projectID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s for project %s", ErrDocumentNotFound, kind, projectID)
	}
	if err != nil {
		return nil, err
	}

	var updated store.DocumentRecord
	if newVersion {
		updated, err = s.store.CreateNewVersion(ctx, kind, rec.ID, validated, actorID)
	} else {
		updated, err = s.store.UpdateDocument(ctx, kind, rec.ID, validated, actorID)
	}
	if err != nil {
		return nil, err
	}
	return updated.Snapshot(kind), nil
}
