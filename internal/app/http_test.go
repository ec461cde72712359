package app

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"steward/api/internal/aiedit"
	"steward/api/internal/chat"
	"steward/api/internal/llm"
	"steward/api/internal/project"
	"steward/api/internal/schema"
	"steward/api/internal/sop"
	"steward/api/internal/store"
	"steward/api/internal/util"
)

// fakeBackend is an in-memory stand-in for *store.PostgresStore. It
// implements the store slices every domain service consumes.
type fakeBackend struct {
	mu        sync.Mutex
	projects  map[string]store.Project
	docs      map[schema.Kind]map[string]store.DocumentRecord
	templates map[string]store.Template
	revisions map[string][]store.TemplateRevision
	threads   map[string]store.ChatThread
	messages  map[string][]store.ChatMessage
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		projects: map[string]store.Project{},
		docs: map[schema.Kind]map[string]store.DocumentRecord{
			schema.KindBusinessCase:   {},
			schema.KindProjectCharter: {},
		},
		templates: map[string]store.Template{},
		revisions: map[string][]store.TemplateRevision{},
		threads:   map[string]store.ChatThread{},
		messages:  map[string][]store.ChatMessage{},
	}
}

func (f *fakeBackend) Ping(ctx context.Context) error { return nil }

func (f *fakeBackend) CountProjects(ctx context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.projects), nil
}

func (f *fakeBackend) ListProjects(ctx context.Context, includeInactive bool) ([]store.Project, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []store.Project
	for _, p := range f.projects {
		if p.IsActive || includeInactive {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProjectName < out[j].ProjectName })
	return out, nil
}

func (f *fakeBackend) GetProject(ctx context.Context, projectID string) (store.Project, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.projects[projectID]
	if !ok {
		return store.Project{}, sql.ErrNoRows
	}
	return p, nil
}

func (f *fakeBackend) GetProjectByName(ctx context.Context, name string) (*store.Project, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.projects {
		if p.ProjectName == name {
			copied := p
			return &copied, nil
		}
	}
	return nil, nil
}

func (f *fakeBackend) ProjectCodesLike(ctx context.Context, pattern string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	prefix := strings.TrimSuffix(pattern, "%")
	var codes []string
	for _, p := range f.projects {
		if strings.HasPrefix(p.ProjectCode, prefix) {
			codes = append(codes, p.ProjectCode)
		}
	}
	return codes, nil
}

func (f *fakeBackend) InsertProject(ctx context.Context, p store.Project) (store.Project, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p.ID == "" {
		p.ID = util.NewID()
	}
	p.IsActive = true
	p.CreatedAt = time.Now()
	p.UpdatedAt = p.CreatedAt
	f.projects[p.ID] = p
	return p, nil
}

func (f *fakeBackend) UpdateProject(ctx context.Context, p store.Project) (store.Project, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.projects[p.ID]; !ok {
		return store.Project{}, sql.ErrNoRows
	}
	p.UpdatedAt = time.Now()
	f.projects[p.ID] = p
	return p, nil
}

func (f *fakeBackend) DeactivateProject(ctx context.Context, projectID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.projects[projectID]
	if !ok {
		return false, nil
	}
	p.IsActive = false
	f.projects[projectID] = p
	return true, nil
}

func (f *fakeBackend) CurrentDocument(ctx context.Context, kind schema.Kind, projectID string) (store.DocumentRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, rec := range f.docs[kind] {
		if rec.ProjectID == projectID && rec.IsCurrentVersion {
			return rec, nil
		}
	}
	return store.DocumentRecord{}, sql.ErrNoRows
}

func (f *fakeBackend) GetDocument(ctx context.Context, kind schema.Kind, documentID string) (store.DocumentRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.docs[kind][documentID]
	if !ok {
		return store.DocumentRecord{}, sql.ErrNoRows
	}
	return rec, nil
}

func (f *fakeBackend) ListDocuments(ctx context.Context, kind schema.Kind, projectID string) ([]store.DocumentRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []store.DocumentRecord
	for _, rec := range f.docs[kind] {
		if rec.ProjectID == projectID {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

func (f *fakeBackend) InsertDocument(ctx context.Context, kind schema.Kind, rec store.DocumentRecord) (store.DocumentRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
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
	rec.CreatedAt = time.Now()
	rec.UpdatedAt = rec.CreatedAt
	f.docs[kind][rec.ID] = rec
	return rec, nil
}

func (f *fakeBackend) UpdateDocument(ctx context.Context, kind schema.Kind, documentID string, changes map[string]any, updatedBy string) (store.DocumentRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.docs[kind][documentID]
	if !ok {
		return store.DocumentRecord{}, sql.ErrNoRows
	}
	rec.Apply(changes)
	rec.UpdatedBy = updatedBy
	rec.UpdatedAt = time.Now()
	f.docs[kind][documentID] = rec
	return rec, nil
}

func (f *fakeBackend) CreateNewVersion(ctx context.Context, kind schema.Kind, documentID string, changes map[string]any, updatedBy string) (store.DocumentRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	old, ok := f.docs[kind][documentID]
	if !ok {
		return store.DocumentRecord{}, sql.ErrNoRows
	}
	old.IsCurrentVersion = false
	f.docs[kind][documentID] = old

	next := old
	next.ID = util.NewID()
	next.Version = store.NextVersion(old.Version)
	supersedes := old.Version
	next.SupersedesVersion = &supersedes
	next.IsCurrentVersion = true
	next.Fields = map[string]any{}
	for k, v := range old.Fields {
		next.Fields[k] = v
	}
	next.Apply(changes)
	next.UpdatedBy = updatedBy
	next.CreatedAt = time.Now()
	next.UpdatedAt = next.CreatedAt
	f.docs[kind][next.ID] = next
	return next, nil
}

func (f *fakeBackend) ListTemplates(ctx context.Context) ([]store.Template, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []store.Template
	for _, t := range f.templates {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DisplayOrder < out[j].DisplayOrder })
	return out, nil
}

func (f *fakeBackend) GetTemplate(ctx context.Context, templateID string) (store.Template, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.templates[templateID]
	if !ok {
		return store.Template{}, sql.ErrNoRows
	}
	return t, nil
}

func (f *fakeBackend) TemplateByDocumentType(ctx context.Context, documentType string) (*store.Template, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range f.templates {
		if t.DocumentType == documentType {
			copied := t
			return &copied, nil
		}
	}
	return nil, nil
}

func (f *fakeBackend) MaxTemplateDisplayOrder(ctx context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	max := 0
	for _, t := range f.templates {
		if t.DisplayOrder > max {
			max = t.DisplayOrder
		}
	}
	return max, nil
}

func (f *fakeBackend) InsertTemplate(ctx context.Context, t store.Template) (store.Template, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if t.ID == "" {
		t.ID = util.NewID()
	}
	t.IsActive = true
	t.CreatedAt = time.Now()
	t.UpdatedAt = t.CreatedAt
	f.templates[t.ID] = t
	return t, nil
}

func (f *fakeBackend) UpdateTemplate(ctx context.Context, t store.Template, editedBy string) (store.Template, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	old, ok := f.templates[t.ID]
	if !ok {
		return store.Template{}, sql.ErrNoRows
	}
	f.revisions[t.ID] = append(f.revisions[t.ID], store.TemplateRevision{
		ID:           util.NewID(),
		TemplateID:   old.ID,
		DocumentType: old.DocumentType,
		Title:        old.Title,
		Body:         old.Body,
		Version:      old.Version,
		EditedBy:     editedBy,
		CreatedAt:    time.Now(),
	})
	t.Version = old.Version + 1
	t.UpdatedAt = time.Now()
	f.templates[t.ID] = t
	return t, nil
}

func (f *fakeBackend) ListTemplateRevisions(ctx context.Context, templateID string) ([]store.TemplateRevision, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]store.TemplateRevision(nil), f.revisions[templateID]...), nil
}

func (f *fakeBackend) DeleteTemplate(ctx context.Context, templateID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.templates[templateID]; !ok {
		return false, nil
	}
	delete(f.templates, templateID)
	return true, nil
}

func (f *fakeBackend) ListChatThreads(ctx context.Context) ([]store.ChatThread, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []store.ChatThread
	for _, t := range f.threads {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (f *fakeBackend) GetChatThread(ctx context.Context, threadID string) (store.ChatThread, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.threads[threadID]
	if !ok {
		return store.ChatThread{}, sql.ErrNoRows
	}
	return t, nil
}

func (f *fakeBackend) InsertChatThread(ctx context.Context, t store.ChatThread) (store.ChatThread, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if t.ID == "" {
		t.ID = util.NewID()
	}
	if t.Title == "" {
		t.Title = "New Thread"
	}
	t.CreatedAt = time.Now()
	t.UpdatedAt = t.CreatedAt
	f.threads[t.ID] = t
	return t, nil
}

func (f *fakeBackend) UpdateChatThreadTitle(ctx context.Context, threadID, title string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.threads[threadID]
	if !ok {
		return sql.ErrNoRows
	}
	t.Title = title
	t.UpdatedAt = time.Now()
	f.threads[threadID] = t
	return nil
}

func (f *fakeBackend) TouchChatThread(ctx context.Context, threadID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.threads[threadID]
	if !ok {
		return sql.ErrNoRows
	}
	t.UpdatedAt = time.Now()
	f.threads[threadID] = t
	return nil
}

func (f *fakeBackend) ListChatMessages(ctx context.Context, threadID string) ([]store.ChatMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]store.ChatMessage(nil), f.messages[threadID]...), nil
}

func (f *fakeBackend) InsertChatMessage(ctx context.Context, m store.ChatMessage) (store.ChatMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if m.ID == "" {
		m.ID = util.NewID()
	}
	m.CreatedAt = time.Now()
	f.messages[m.ThreadID] = append(f.messages[m.ThreadID], m)
	return m, nil
}

// scriptedLLM replies with queued responses, then a canned fallback.
type scriptedLLM struct {
	mu      sync.Mutex
	replies []string
}

func (l *scriptedLLM) GenerateReply(ctx context.Context, messages []llm.Message) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.replies) == 0 {
		return "Understood.", nil
	}
	reply := l.replies[0]
	l.replies = l.replies[1:]
	return reply, nil
}

func newTestServer(t *testing.T, llmReplies ...string) (*httptest.Server, *Service, *fakeBackend) {
	t.Helper()
	backend := newFakeBackend()
	model := &scriptedLLM{replies: llmReplies}

	templates := sop.NewService(backend, nil)
	projects := project.NewService(backend, backend)
	chats := chat.NewService(backend, model)
	edits := aiedit.NewService(backend, templates, model)

	service := NewService(backend, projects, templates, chats, edits, nil)
	server := httptest.NewServer(NewHTTPServer(service, "*").Handler())
	t.Cleanup(server.Close)
	return server, service, backend
}

func doJSON(t *testing.T, method, url string, body any) (int, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()
	var payload map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp.StatusCode, payload
}

func TestHealthAndReady(t *testing.T) {
	server, _, _ := newTestServer(t)

	status, payload := doJSON(t, http.MethodGet, server.URL+"/api/health", nil)
	if status != http.StatusOK || payload["ok"] != true {
		t.Fatalf("health: status=%d payload=%v", status, payload)
	}

	status, payload = doJSON(t, http.MethodGet, server.URL+"/api/ready", nil)
	if status != http.StatusOK || payload["status"] != "ready" {
		t.Fatalf("ready: status=%d payload=%v", status, payload)
	}
}

func TestProjectLifecycle(t *testing.T) {
	server, _, _ := newTestServer(t)

	status, created := doJSON(t, http.MethodPost, server.URL+"/api/projects", map[string]any{
		"project_name":  "Data Platform Upgrade",
		"business_area": "IT",
		"sponsor":       "Dana",
		"created_by":    "tester",
	})
	if status != http.StatusCreated {
		t.Fatalf("create: status=%d payload=%v", status, created)
	}
	code, _ := created["project_code"].(string)
	year := fmt.Sprintf("%d", time.Now().Year())
	if !strings.HasPrefix(code, "DPU-"+year+"-") {
		t.Fatalf("project_code = %q, want DPU-%s-NNN", code, year)
	}
	id := created["id"].(string)

	status, fetched := doJSON(t, http.MethodGet, server.URL+"/api/projects/"+id, nil)
	if status != http.StatusOK || fetched["project_name"] != "Data Platform Upgrade" {
		t.Fatalf("get: status=%d payload=%v", status, fetched)
	}

	status, dup := doJSON(t, http.MethodPost, server.URL+"/api/projects", map[string]any{
		"project_name": "Data Platform Upgrade",
	})
	if status != http.StatusConflict {
		t.Fatalf("duplicate name: status=%d payload=%v", status, dup)
	}

	status, updated := doJSON(t, http.MethodPut, server.URL+"/api/projects/"+id, map[string]any{
		"project_name": "Data Platform Upgrade",
		"description":  "Phase two",
		"updated_by":   "tester",
	})
	if status != http.StatusOK || updated["description"] != "Phase two" {
		t.Fatalf("update: status=%d payload=%v", status, updated)
	}

	status, _ = doJSON(t, http.MethodDelete, server.URL+"/api/projects/"+id, nil)
	if status != http.StatusOK {
		t.Fatalf("delete: status=%d", status)
	}

	status, list := doJSON(t, http.MethodGet, server.URL+"/api/projects", nil)
	if status != http.StatusOK {
		t.Fatalf("list: status=%d", status)
	}
	if items := list["items"].([]any); len(items) != 0 {
		t.Fatalf("soft-deleted project still listed: %v", items)
	}

	status, list = doJSON(t, http.MethodGet, server.URL+"/api/projects?include_inactive=true", nil)
	if items := list["items"].([]any); status != http.StatusOK || len(items) != 1 {
		t.Fatalf("include_inactive: status=%d items=%v", status, list["items"])
	}
}

func TestDocumentLifecycle(t *testing.T) {
	server, _, _ := newTestServer(t)

	_, created := doJSON(t, http.MethodPost, server.URL+"/api/projects", map[string]any{
		"project_name": "Billing Revamp",
		"sponsor":      "Kim",
	})
	projectID := created["id"].(string)
	base := server.URL + "/api/projects/" + projectID + "/documents/business-case"

	status, payload := doJSON(t, http.MethodGet, base, nil)
	if status != http.StatusNotFound {
		t.Fatalf("no document yet: status=%d payload=%v", status, payload)
	}

	status, doc := doJSON(t, http.MethodPost, base, map[string]any{
		"title":      "Billing Revamp Business Case",
		"sponsor":    "Kim",
		"created_by": "tester",
	})
	if status != http.StatusCreated || doc["version"] != "1.0" {
		t.Fatalf("create document: status=%d payload=%v", status, doc)
	}

	status, doc = doJSON(t, http.MethodPut, base, map[string]any{
		"changes":    map[string]any{"urgency": "high", "estimated_cost": "12000.50"},
		"updated_by": "tester",
	})
	if status != http.StatusOK {
		t.Fatalf("update document: status=%d payload=%v", status, doc)
	}
	if doc["urgency"] != "high" {
		t.Fatalf("urgency = %v, want high", doc["urgency"])
	}

	status, invalid := doJSON(t, http.MethodPut, base, map[string]any{
		"changes": map[string]any{"urgency": "tomorrow"},
	})
	if status != http.StatusUnprocessableEntity || invalid["code"] != "CONSTRAINT_VALIDATION_FAILED" {
		t.Fatalf("invalid enum: status=%d payload=%v", status, invalid)
	}

	status, next := doJSON(t, http.MethodPost, base+"/versions", map[string]any{
		"changes":    map[string]any{"status": "review_requested"},
		"updated_by": "tester",
	})
	if status != http.StatusCreated || next["version"] != "1.1" {
		t.Fatalf("new version: status=%d payload=%v", status, next)
	}
	if next["supersedes_version"] != "1.0" {
		t.Fatalf("supersedes_version = %v, want 1.0", next["supersedes_version"])
	}

	status, versions := doJSON(t, http.MethodGet, base+"/versions", nil)
	if items := versions["items"].([]any); status != http.StatusOK || len(items) != 2 {
		t.Fatalf("versions: status=%d items=%v", status, versions["items"])
	}

	oldID := versions["items"].([]any)[0].(map[string]any)["id"].(string)
	status, old := doJSON(t, http.MethodGet, base+"/versions/"+oldID, nil)
	if status != http.StatusOK || old["is_current_version"] != false {
		t.Fatalf("version by id: status=%d payload=%v", status, old)
	}

	status, unknown := doJSON(t, http.MethodGet, server.URL+"/api/projects/"+projectID+"/documents/memo", nil)
	if status != http.StatusBadRequest || unknown["code"] != "UNKNOWN_DOCUMENT_TYPE" {
		t.Fatalf("unknown kind: status=%d payload=%v", status, unknown)
	}
}

func TestAIEditEndpoints(t *testing.T) {
	suggestion := `{
		"suggestions": {
			"urgency": {"current_value": "low", "suggested_value": "high", "reason": "Deadline moved up"},
			"estimated_cost": {"suggested_value": "25000"}
		},
		"overall_reasoning": "Tightened schedule"
	}`
	server, service, _ := newTestServer(t, suggestion)

	if err := service.Bootstrap(context.Background()); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}

	_, list := doJSON(t, http.MethodGet, server.URL+"/api/projects", nil)
	items := list["items"].([]any)
	if len(items) != 1 {
		t.Fatalf("expected seeded demo project, got %v", items)
	}
	projectID := items[0].(map[string]any)["id"].(string)

	status, payload := doJSON(t, http.MethodPost, server.URL+"/api/ai-edits/suggest", map[string]any{
		"project_id":    projectID,
		"document_type": "business_case",
		"instructions":  "Raise the urgency",
	})
	if status != http.StatusOK {
		t.Fatalf("suggest: status=%d payload=%v", status, payload)
	}
	suggestions := payload["suggestions"].(map[string]any)
	urgency := suggestions["urgency"].(map[string]any)
	if urgency["suggested_value"] != "high" || urgency["reason"] != "Deadline moved up" {
		t.Fatalf("urgency suggestion = %v", urgency)
	}
	cost := suggestions["estimated_cost"].(map[string]any)
	if cost["reason"] != "No reason provided" {
		t.Fatalf("default reason = %v", cost["reason"])
	}
	if payload["overall_reasoning"] != "Tightened schedule" {
		t.Fatalf("overall_reasoning = %v", payload["overall_reasoning"])
	}

	status, applied := doJSON(t, http.MethodPost, server.URL+"/api/ai-edits/apply", map[string]any{
		"project_id":       projectID,
		"document_type":    "business_case",
		"accepted_changes": map[string]any{"urgency": "high"},
	})
	if status != http.StatusOK {
		t.Fatalf("apply: status=%d payload=%v", status, applied)
	}
	if applied["urgency"] != "high" {
		t.Fatalf("applied urgency = %v", applied["urgency"])
	}
	if applied["updated_by"] != "ai_user" {
		t.Fatalf("updated_by = %v, want ai_user", applied["updated_by"])
	}

	status, rejected := doJSON(t, http.MethodPost, server.URL+"/api/ai-edits/apply", map[string]any{
		"project_id":       projectID,
		"document_type":    "business_case",
		"accepted_changes": map[string]any{"urgency": "whenever"},
	})
	if status != http.StatusUnprocessableEntity || rejected["code"] != "CONSTRAINT_VALIDATION_FAILED" {
		t.Fatalf("invalid apply: status=%d payload=%v", status, rejected)
	}
}

func TestAIEditSuggestBadModelReply(t *testing.T) {
	server, service, _ := newTestServer(t, "I would raise the urgency to high.")

	if err := service.Bootstrap(context.Background()); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	_, list := doJSON(t, http.MethodGet, server.URL+"/api/projects", nil)
	projectID := list["items"].([]any)[0].(map[string]any)["id"].(string)

	status, payload := doJSON(t, http.MethodPost, server.URL+"/api/ai-edits/suggest", map[string]any{
		"project_id":    projectID,
		"document_type": "business-case",
		"instructions":  "Raise the urgency",
	})
	if status != http.StatusBadGateway || payload["code"] != "INVALID_AI_RESPONSE" {
		t.Fatalf("non-JSON reply: status=%d payload=%v", status, payload)
	}
}

func TestTemplateEndpoints(t *testing.T) {
	server, service, _ := newTestServer(t)

	if err := service.Bootstrap(context.Background()); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}

	status, list := doJSON(t, http.MethodGet, server.URL+"/api/templates", nil)
	items := list["items"].([]any)
	if status != http.StatusOK || len(items) != 2 {
		t.Fatalf("seeded templates: status=%d items=%v", status, items)
	}
	first := items[0].(map[string]any)
	if first["document_type"] != "business_case" {
		t.Fatalf("first template = %v, want business_case", first["document_type"])
	}
	templateID := first["id"].(string)

	status, updated := doJSON(t, http.MethodPut, server.URL+"/api/templates/"+templateID, map[string]any{
		"title":     "Business Case Guidance v2",
		"edited_by": "tester",
	})
	if status != http.StatusOK || updated["version"] != float64(2) {
		t.Fatalf("update: status=%d payload=%v", status, updated)
	}

	status, noop := doJSON(t, http.MethodPut, server.URL+"/api/templates/"+templateID, map[string]any{
		"title":     "Business Case Guidance v2",
		"edited_by": "tester",
	})
	if status != http.StatusBadRequest || noop["code"] != "NO_CHANGES" {
		t.Fatalf("no-op update: status=%d payload=%v", status, noop)
	}

	status, history := doJSON(t, http.MethodGet, server.URL+"/api/templates/"+templateID+"/history", nil)
	if revs := history["items"].([]any); status != http.StatusOK || len(revs) != 1 {
		t.Fatalf("history: status=%d items=%v", status, history["items"])
	}

	status, dup := doJSON(t, http.MethodPost, server.URL+"/api/templates", map[string]any{
		"document_type": "business_case",
		"title":         "Another",
	})
	if status != http.StatusConflict {
		t.Fatalf("duplicate document_type: status=%d payload=%v", status, dup)
	}
}

func TestChatEndpoints(t *testing.T) {
	server, _, _ := newTestServer(t, "Hello, how can I help?")

	status, thread := doJSON(t, http.MethodPost, server.URL+"/api/chat/threads", map[string]any{
		"title": "Budget questions",
	})
	if status != http.StatusCreated || thread["title"] != "Budget questions" {
		t.Fatalf("create thread: status=%d payload=%v", status, thread)
	}
	threadID := thread["id"].(string)

	status, posted := doJSON(t, http.MethodPost, server.URL+"/api/chat/threads/"+threadID+"/messages", map[string]any{
		"content": "What is our budget process?",
	})
	if status != http.StatusCreated {
		t.Fatalf("post message: status=%d payload=%v", status, posted)
	}
	msgs := posted["items"].([]any)
	if len(msgs) != 2 {
		t.Fatalf("expected user message plus assistant reply, got %v", msgs)
	}
	reply := msgs[1].(map[string]any)
	if reply["role"] != "assistant" || reply["content"] != "Hello, how can I help?" {
		t.Fatalf("assistant reply = %v", reply)
	}

	status, fetched := doJSON(t, http.MethodGet, server.URL+"/api/chat/threads/"+threadID, nil)
	if status != http.StatusOK {
		t.Fatalf("get thread: status=%d", status)
	}
	if got := fetched["messages"].([]any); len(got) != 2 {
		t.Fatalf("thread messages = %v", got)
	}

	status, missing := doJSON(t, http.MethodGet, server.URL+"/api/chat/threads/does-not-exist", nil)
	if status != http.StatusNotFound || missing["code"] != "NOT_FOUND" {
		t.Fatalf("missing thread: status=%d payload=%v", status, missing)
	}
}

func TestSearchWithoutBackend(t *testing.T) {
	server, _, _ := newTestServer(t)

	status, payload := doJSON(t, http.MethodGet, server.URL+"/api/search?q=billing", nil)
	if status != http.StatusOK {
		t.Fatalf("search: status=%d payload=%v", status, payload)
	}
	if results := payload["results"].([]any); len(results) != 0 {
		t.Fatalf("results = %v, want empty", results)
	}
	if payload["query"] != "billing" {
		t.Fatalf("query echo = %v", payload["query"])
	}
}
