// Package project manages the project registry: listing, creation with
// generated project codes, updates, soft deletion, and the initial document
// seeding that gives every new project a draft business case and charter.
package project

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"steward/api/internal/schema"
	"steward/api/internal/store"
)

var (
	ErrNotFound   = errors.New("project not found")
	ErrNameExists = errors.New("project name already exists")
)

type projectStore interface {
	ListProjects(ctx context.Context, includeInactive bool) ([]store.Project, error)
	GetProject(ctx context.Context, projectID string) (store.Project, error)
	GetProjectByName(ctx context.Context, name string) (*store.Project, error)
	ProjectCodesLike(ctx context.Context, pattern string) ([]string, error)
	InsertProject(ctx context.Context, p store.Project) (store.Project, error)
	UpdateProject(ctx context.Context, p store.Project) (store.Project, error)
	DeactivateProject(ctx context.Context, projectID string) (bool, error)
	InsertDocument(ctx context.Context, kind schema.Kind, rec store.DocumentRecord) (store.DocumentRecord, error)
}

type templateLister interface {
	ListTemplates(ctx context.Context) ([]store.Template, error)
}

type Service struct {
	store     projectStore
	templates templateLister
	now       func() time.Time
}

func NewService(store projectStore, templates templateLister) *Service {
	return &Service{store: store, templates: templates, now: time.Now}
}

func (s *Service) List(ctx context.Context, includeInactive bool) ([]store.Project, error) {
	return s.store.ListProjects(ctx, includeInactive)
}

func (s *Service) Get(ctx context.Context, projectID string) (store.Project, error) {
	p, err := s.store.GetProject(ctx, projectID)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Project{}, ErrNotFound
	}
	return p, err
}

// Create registers a project, generating a project code when none is given,
// and seeds a draft document for each active template kind. Seeding is best
// effort: a failed document never fails the project creation.
func (s *Service) Create(ctx context.Context, p store.Project) (store.Project, error) {
	existing, err := s.store.GetProjectByName(ctx, p.ProjectName)
	if err != nil {
		return store.Project{}, err
	}
	if existing != nil {
		return store.Project{}, fmt.Errorf("%w: %s", ErrNameExists, p.ProjectName)
	}

	if p.ProjectCode == "" {
		code, err := s.generateProjectCode(ctx, p.ProjectName)
		if err != nil {
			return store.Project{}, err
		}
		p.ProjectCode = code
	}

	created, err := s.store.InsertProject(ctx, p)
	if err != nil {
		return store.Project{}, err
	}

	s.seedDocuments(ctx, created)
	return created, nil
}

func (s *Service) Update(ctx context.Context, projectID string, p store.Project) (store.Project, error) {
	current, err := s.Get(ctx, projectID)
	if err != nil {
		return store.Project{}, err
	}

	if p.ProjectName != "" && p.ProjectName != current.ProjectName {
		existing, err := s.store.GetProjectByName(ctx, p.ProjectName)
		if err != nil {
			return store.Project{}, err
		}
		if existing != nil {
			return store.Project{}, fmt.Errorf("%w: %s", ErrNameExists, p.ProjectName)
		}
	}

	p.ID = current.ID
	if p.ProjectName == "" {
		p.ProjectName = current.ProjectName
	}
	if p.ProjectCode == "" {
		p.ProjectCode = current.ProjectCode
	}
	return s.store.UpdateProject(ctx, p)
}

// Delete soft-deletes by flipping is_active.
func (s *Service) Delete(ctx context.Context, projectID string) error {
	deleted, err := s.store.DeactivateProject(ctx, projectID)
	if err != nil {
		return err
	}
	if !deleted {
		return ErrNotFound
	}
	return nil
}

// generateProjectCode builds INITIALS-YEAR-NNN, where NNN continues from the
// highest existing sequence for the same initials and year.
func (s *Service) generateProjectCode(ctx context.Context, projectName string) (string, error) {
	words := strings.Fields(strings.ToUpper(projectName))

	var initials string
	switch {
	case len(words) >= 2:
		n := len(words)
		if n > 3 {
			n = 3
		}
		for _, w := range words[:n] {
			initials += string(w[0])
		}
	case len(words) == 1:
		initials = words[0]
		if len(initials) > 3 {
			initials = initials[:3]
		}
	default:
		initials = "PRJ"
	}

	base := fmt.Sprintf("%s-%d", initials, s.now().Year())
	existing, err := s.store.ProjectCodesLike(ctx, base+"-%")
	if err != nil {
		return "", err
	}

	maxSeq := 0
	for _, code := range existing {
		parts := strings.Split(code, "-")
		if len(parts) != 3 {
			continue
		}
		if n, err := strconv.Atoi(parts[2]); err == nil && n > maxSeq {
			maxSeq = n
		}
	}
	return fmt.Sprintf("%s-%03d", base, maxSeq+1), nil
}

// seedDocuments creates a draft document per active template kind.
func (s *Service) seedDocuments(ctx context.Context, p store.Project) {
	templates, err := s.templates.ListTemplates(ctx)
	if err != nil {
		log.Printf("project: could not list templates for document seeding: %v", err)
		return
	}

	for _, tmpl := range templates {
		kind := schema.Kind(strings.ReplaceAll(tmpl.DocumentType, "_", "-"))
		if !schema.Known(kind) {
			continue
		}

		rec := store.DocumentRecord{
			ProjectID: p.ID,
			Status:    "draft",
			CreatedBy: p.CreatedBy,
		}
		switch kind {
		case schema.KindBusinessCase:
			rec.Title = p.ProjectName + " Business Case"
			rec.Sponsor = p.Sponsor
			rec.Fields = map[string]any{"business_area": p.BusinessArea}
		case schema.KindProjectCharter:
			rec.Title = p.ProjectName + " Project Charter"
			rec.Sponsor = p.Sponsor
			if rec.Sponsor == "" {
				rec.Sponsor = "TBD"
			}
		}

		if _, err := s.store.InsertDocument(ctx, kind, rec); err != nil {
			log.Printf("project: failed to create %s for project %s: %v", kind, p.ProjectName, err)
		}
	}
}
