package app

import (
	"context"
	"fmt"
	"log"
	"strings"

	"steward/api/internal/aiedit"
	"steward/api/internal/chat"
	"steward/api/internal/project"
	"steward/api/internal/schema"
	"steward/api/internal/search"
	"steward/api/internal/sop"
	"steward/api/internal/store"
)

// Store is the slice of the persistence layer the application service uses
// directly. *store.PostgresStore satisfies it.
type Store interface {
	Ping(ctx context.Context) error
	CountProjects(ctx context.Context) (int, error)
	CurrentDocument(ctx context.Context, kind schema.Kind, projectID string) (store.DocumentRecord, error)
	GetDocument(ctx context.Context, kind schema.Kind, documentID string) (store.DocumentRecord, error)
	ListDocuments(ctx context.Context, kind schema.Kind, projectID string) ([]store.DocumentRecord, error)
	InsertDocument(ctx context.Context, kind schema.Kind, rec store.DocumentRecord) (store.DocumentRecord, error)
	UpdateDocument(ctx context.Context, kind schema.Kind, documentID string, changes map[string]any, updatedBy string) (store.DocumentRecord, error)
	CreateNewVersion(ctx context.Context, kind schema.Kind, documentID string, changes map[string]any, updatedBy string) (store.DocumentRecord, error)
}

// Service wires the domain services together and owns the cross-cutting side
// effects (search indexing, bootstrap seeding).
type Service struct {
	store     Store
	projects  *project.Service
	templates *sop.Service
	chat      *chat.Service
	edits     *aiedit.Service
	search    *search.Service
}

func NewService(st Store, projects *project.Service, templates *sop.Service, chatSvc *chat.Service, edits *aiedit.Service, searchSvc *search.Service) *Service {
	return &Service{
		store:     st,
		projects:  projects,
		templates: templates,
		chat:      chatSvc,
		edits:     edits,
		search:    searchSvc,
	}
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// Bootstrap seeds default templates, a demo project when the registry is
// empty, and refills the search indexes.
func (s *Service) Bootstrap(ctx context.Context) error {
	if err := s.templates.Seed(ctx); err != nil {
		return fmt.Errorf("seed templates: %w", err)
	}

	count, err := s.store.CountProjects(ctx)
	if err != nil {
		return fmt.Errorf("count projects: %w", err)
	}
	if count == 0 {
		if _, err := s.projects.Create(ctx, store.Project{
			ProjectName:  "Demo Project",
			Description:  "A sample project created on first start.",
			BusinessArea: "Operations",
			Sponsor:      "Demo Sponsor",
			CreatedBy:    "system",
		}); err != nil {
			log.Printf("app: demo project seeding failed: %v", err)
		}
	}

	if s.search != nil {
		s.search.ReindexAllFromPG(ctx)
	}
	return nil
}

// Projects

func (s *Service) ListProjects(ctx context.Context, includeInactive bool) ([]store.Project, error) {
	return s.projects.List(ctx, includeInactive)
}

func (s *Service) GetProject(ctx context.Context, projectID string) (store.Project, error) {
	return s.projects.Get(ctx, projectID)
}

func (s *Service) CreateProject(ctx context.Context, p store.Project) (store.Project, error) {
	created, err := s.projects.Create(ctx, p)
	if err != nil {
		return store.Project{}, err
	}
	s.indexProject(created)
	return created, nil
}

func (s *Service) UpdateProject(ctx context.Context, projectID string, p store.Project) (store.Project, error) {
	updated, err := s.projects.Update(ctx, projectID, p)
	if err != nil {
		return store.Project{}, err
	}
	s.indexProject(updated)
	return updated, nil
}

func (s *Service) DeleteProject(ctx context.Context, projectID string) error {
	if err := s.projects.Delete(ctx, projectID); err != nil {
		return err
	}
	if s.search != nil {
		s.search.DeleteProject(projectID)
	}
	return nil
}

// Documents

func (s *Service) CurrentDocument(ctx context.Context, kind schema.Kind, projectID string) (store.DocumentRecord, error) {
	return s.store.CurrentDocument(ctx, kind, projectID)
}

func (s *Service) GetDocument(ctx context.Context, kind schema.Kind, documentID string) (store.DocumentRecord, error) {
	return s.store.GetDocument(ctx, kind, documentID)
}

func (s *Service) ListDocumentVersions(ctx context.Context, kind schema.Kind, projectID string) ([]store.DocumentRecord, error) {
	return s.store.ListDocuments(ctx, kind, projectID)
}

func (s *Service) CreateDocument(ctx context.Context, kind schema.Kind, rec store.DocumentRecord) (store.DocumentRecord, error) {
	created, err := s.store.InsertDocument(ctx, kind, rec)
	if err != nil {
		return store.DocumentRecord{}, err
	}
	s.indexDocument(kind, created)
	return created, nil
}

func (s *Service) UpdateDocument(ctx context.Context, kind schema.Kind, documentID string, changes map[string]any, updatedBy string) (store.DocumentRecord, error) {
	validated, err := s.edits.ValidateChanges(kind, changes)
	if err != nil {
		return store.DocumentRecord{}, err
	}
	updated, err := s.store.UpdateDocument(ctx, kind, documentID, validated, updatedBy)
	if err != nil {
		return store.DocumentRecord{}, err
	}
	s.indexDocument(kind, updated)
	return updated, nil
}

func (s *Service) NewDocumentVersion(ctx context.Context, kind schema.Kind, documentID string, changes map[string]any, updatedBy string) (store.DocumentRecord, error) {
	validated, err := s.edits.ValidateChanges(kind, changes)
	if err != nil {
		return store.DocumentRecord{}, err
	}
	created, err := s.store.CreateNewVersion(ctx, kind, documentID, validated, updatedBy)
	if err != nil {
		return store.DocumentRecord{}, err
	}
	s.indexDocument(kind, created)
	return created, nil
}

// AI-assisted edits

func (s *Service) SuggestEdits(ctx context.Context, kind schema.Kind, projectID, instruction string) (aiedit.SuggestionSet, error) {
	return s.edits.GenerateSuggestions(ctx, kind, projectID, instruction)
}

func (s *Service) ApplyEdits(ctx context.Context, kind schema.Kind, projectID string, accepted map[string]any, actorID string, newVersion bool) (map[string]any, error) {
	snapshot, err := s.edits.ApplyChanges(ctx, kind, projectID, accepted, actorID, newVersion)
	if err != nil {
		return nil, err
	}
	if rec, err := s.store.CurrentDocument(ctx, kind, projectID); err == nil {
		s.indexDocument(kind, rec)
	}
	return snapshot, nil
}

// Templates

func (s *Service) ListTemplates(ctx context.Context) ([]store.Template, error) {
	return s.templates.List(ctx)
}

func (s *Service) GetTemplate(ctx context.Context, templateID string) (store.Template, error) {
	return s.templates.Get(ctx, templateID)
}

func (s *Service) CreateTemplate(ctx context.Context, t store.Template) (store.Template, error) {
	return s.templates.Create(ctx, t)
}

func (s *Service) UpdateTemplate(ctx context.Context, templateID string, changes sop.TemplateChanges, editedBy string) (store.Template, error) {
	return s.templates.Update(ctx, templateID, changes, editedBy)
}

func (s *Service) TemplateHistory(ctx context.Context, templateID string) ([]store.TemplateRevision, error) {
	return s.templates.History(ctx, templateID)
}

func (s *Service) DeleteTemplate(ctx context.Context, templateID string) error {
	return s.templates.Delete(ctx, templateID)
}

// Chat

func (s *Service) ListChatThreads(ctx context.Context) ([]store.ChatThread, error) {
	return s.chat.ListThreads(ctx)
}

func (s *Service) CreateChatThread(ctx context.Context, title string) (store.ChatThread, error) {
	return s.chat.CreateThread(ctx, title)
}

func (s *Service) GetChatThread(ctx context.Context, threadID string) (store.ChatThread, []store.ChatMessage, error) {
	return s.chat.GetThread(ctx, threadID)
}

func (s *Service) AppendChatMessage(ctx context.Context, threadID, role, content string) ([]store.ChatMessage, error) {
	return s.chat.AppendMessage(ctx, threadID, role, content)
}

// Search

func (s *Service) Search(q search.Query) search.Response {
	if s.search == nil {
		return search.Response{Results: []search.Result{}, Query: q.Text}
	}
	return s.search.Search(q)
}

func (s *Service) indexProject(p store.Project) {
	if s.search == nil {
		return
	}
	s.search.IndexProject(search.ProjectRecord{
		ID:           p.ID,
		ProjectName:  p.ProjectName,
		ProjectCode:  p.ProjectCode,
		Description:  p.Description,
		BusinessArea: p.BusinessArea,
		Sponsor:      p.Sponsor,
		Status:       p.Status,
	})
}

func (s *Service) indexDocument(kind schema.Kind, rec store.DocumentRecord) {
	if s.search == nil || !rec.IsCurrentVersion {
		return
	}
	s.search.IndexDocument(search.DocumentRecord{
		ID:        rec.ID,
		ProjectID: rec.ProjectID,
		Kind:      string(kind),
		Title:     rec.Title,
		Sponsor:   rec.Sponsor,
		Status:    rec.Status,
	})
}

// ParseKind maps a URL segment or document_type value to a document kind.
// Both "business-case" and "business_case" are accepted.
func ParseKind(segment string) (schema.Kind, error) {
	kind := schema.Kind(strings.ReplaceAll(strings.ToLower(segment), "_", "-"))
	if !schema.Known(kind) {
		return "", domainError(400, "UNKNOWN_DOCUMENT_TYPE", fmt.Sprintf("Unknown document type: %s", segment), nil)
	}
	return kind, nil
}
