package app

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"steward/api/internal/aiedit"
	"steward/api/internal/chat"
	"steward/api/internal/project"
	"steward/api/internal/search"
	"steward/api/internal/sop"
	"steward/api/internal/store"
)

type HTTPServer struct {
	service    *Service
	corsOrigin string
}

func NewHTTPServer(service *Service, corsOrigin string) *HTTPServer {
	return &HTTPServer{service: service, corsOrigin: corsOrigin}
}

func (s *HTTPServer) Handler() http.Handler {
	return s.withMiddleware(http.HandlerFunc(s.handle))
}

func (s *HTTPServer) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		writeJSON(w, http.StatusNoContent, map[string]any{})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/health" {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/ready" {
		s.handleReady(w, r)
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/search" {
		s.handleSearch(w, r)
		return
	}

	parts := splitPath(r.URL.Path)
	if len(parts) < 2 || parts[0] != "api" {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}

	switch parts[1] {
	case "projects":
		s.handleProjects(w, r, parts[2:])
	case "ai-edits":
		s.handleAIEdits(w, r, parts[2:])
	case "templates":
		s.handleTemplates(w, r, parts[2:])
	case "chat":
		s.handleChat(w, r, parts[2:])
	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func (s *HTTPServer) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	statusCode := http.StatusOK
	checks := map[string]any{
		"database": map[string]any{"status": "ok"},
	}

	if err := s.service.Ping(ctx); err != nil {
		status = "not_ready"
		statusCode = http.StatusServiceUnavailable
		checks["database"] = map[string]any{
			"status": "error",
			"error":  err.Error(),
		}
	}

	writeJSON(w, statusCode, map[string]any{
		"ok":     status == "ready",
		"status": status,
		"checks": checks,
	})
}

// handleProjects routes /api/projects and everything nested under a project.
func (s *HTTPServer) handleProjects(w http.ResponseWriter, r *http.Request, rest []string) {
	switch {
	case len(rest) == 0 && r.Method == http.MethodGet:
		includeInactive := r.URL.Query().Get("include_inactive") == "true"
		projects, err := s.service.ListProjects(r.Context(), includeInactive)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		items := make([]map[string]any, 0, len(projects))
		for _, p := range projects {
			items = append(items, projectJSON(p))
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items})

	case len(rest) == 0 && r.Method == http.MethodPost:
		body, err := decodeProjectBody(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		if body.ProjectName == "" {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", "project_name is required", nil)
			return
		}
		created, err := s.service.CreateProject(r.Context(), body)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, projectJSON(created))

	case len(rest) == 1 && r.Method == http.MethodGet:
		p, err := s.service.GetProject(r.Context(), rest[0])
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, projectJSON(p))

	case len(rest) == 1 && r.Method == http.MethodPut:
		body, err := decodeProjectBody(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		updated, err := s.service.UpdateProject(r.Context(), rest[0], body)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, projectJSON(updated))

	case len(rest) == 1 && r.Method == http.MethodDelete:
		if err := s.service.DeleteProject(r.Context(), rest[0]); err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})

	case len(rest) >= 2 && rest[1] == "documents":
		s.handleProjectDocuments(w, r, rest[0], rest[2:])

	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

// handleProjectDocuments routes /api/projects/{id}/documents/{kind}[/...].
func (s *HTTPServer) handleProjectDocuments(w http.ResponseWriter, r *http.Request, projectID string, rest []string) {
	if len(rest) == 0 {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}

	kind, err := ParseKind(rest[0])
	if err != nil {
		writeMappedError(w, err)
		return
	}

	switch {
	case len(rest) == 1 && r.Method == http.MethodGet:
		rec, err := s.service.CurrentDocument(r.Context(), kind, projectID)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, rec.Snapshot(kind))

	case len(rest) == 1 && r.Method == http.MethodPost:
		var body struct {
			Title     string         `json:"title"`
			Sponsor   string         `json:"sponsor"`
			Fields    map[string]any `json:"fields"`
			CreatedBy string         `json:"created_by"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		rec, err := s.service.CreateDocument(r.Context(), kind, store.DocumentRecord{
			ProjectID: projectID,
			Title:     body.Title,
			Sponsor:   body.Sponsor,
			Fields:    body.Fields,
			CreatedBy: body.CreatedBy,
		})
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, rec.Snapshot(kind))

	case len(rest) == 1 && r.Method == http.MethodPut:
		var body struct {
			Changes   map[string]any `json:"changes"`
			UpdatedBy string         `json:"updated_by"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		current, err := s.service.CurrentDocument(r.Context(), kind, projectID)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		rec, err := s.service.UpdateDocument(r.Context(), kind, current.ID, body.Changes, body.UpdatedBy)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, rec.Snapshot(kind))

	case len(rest) == 2 && rest[1] == "versions" && r.Method == http.MethodGet:
		records, err := s.service.ListDocumentVersions(r.Context(), kind, projectID)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		items := make([]map[string]any, 0, len(records))
		for _, rec := range records {
			items = append(items, rec.Snapshot(kind))
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items})

	case len(rest) == 3 && rest[1] == "versions" && r.Method == http.MethodGet:
		rec, err := s.service.GetDocument(r.Context(), kind, rest[2])
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, rec.Snapshot(kind))

	case len(rest) == 2 && rest[1] == "versions" && r.Method == http.MethodPost:
		var body struct {
			Changes   map[string]any `json:"changes"`
			UpdatedBy string         `json:"updated_by"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		current, err := s.service.CurrentDocument(r.Context(), kind, projectID)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		rec, err := s.service.NewDocumentVersion(r.Context(), kind, current.ID, body.Changes, body.UpdatedBy)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, rec.Snapshot(kind))

	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

// handleAIEdits routes /api/ai-edits/suggest and /api/ai-edits/apply.
func (s *HTTPServer) handleAIEdits(w http.ResponseWriter, r *http.Request, rest []string) {
	if len(rest) != 1 || r.Method != http.MethodPost {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}

	switch rest[0] {
	case "suggest":
		var body struct {
			ProjectID    string `json:"project_id"`
			DocumentType string `json:"document_type"`
			Instructions string `json:"instructions"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		if body.ProjectID == "" || body.Instructions == "" {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", "project_id and instructions are required", nil)
			return
		}
		kind, err := ParseKind(body.DocumentType)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		set, err := s.service.SuggestEdits(r.Context(), kind, body.ProjectID, body.Instructions)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, set)

	case "apply":
		var body struct {
			ProjectID        string         `json:"project_id"`
			DocumentType     string         `json:"document_type"`
			AcceptedChanges  map[string]any `json:"accepted_changes"`
			CreateNewVersion bool           `json:"create_new_version"`
			UserID           string         `json:"user_id"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		if body.ProjectID == "" || len(body.AcceptedChanges) == 0 {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", "project_id and accepted_changes are required", nil)
			return
		}
		kind, err := ParseKind(body.DocumentType)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		actor := body.UserID
		if actor == "" {
			actor = "ai_user"
		}
		snapshot, err := s.service.ApplyEdits(r.Context(), kind, body.ProjectID, body.AcceptedChanges, actor, body.CreateNewVersion)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, snapshot)

	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

// handleTemplates routes /api/templates[/{id}[/history]].
func (s *HTTPServer) handleTemplates(w http.ResponseWriter, r *http.Request, rest []string) {
	switch {
	case len(rest) == 0 && r.Method == http.MethodGet:
		templates, err := s.service.ListTemplates(r.Context())
		if err != nil {
			writeMappedError(w, err)
			return
		}
		items := make([]map[string]any, 0, len(templates))
		for _, t := range templates {
			items = append(items, templateJSON(t))
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items})

	case len(rest) == 0 && r.Method == http.MethodPost:
		var body struct {
			DocumentType string `json:"document_type"`
			Title        string `json:"title"`
			Body         string `json:"body"`
			DisplayOrder int    `json:"display_order"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		if body.DocumentType == "" || body.Title == "" {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", "document_type and title are required", nil)
			return
		}
		created, err := s.service.CreateTemplate(r.Context(), store.Template{
			DocumentType: body.DocumentType,
			Title:        body.Title,
			Body:         body.Body,
			DisplayOrder: body.DisplayOrder,
		})
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, templateJSON(created))

	case len(rest) == 1 && r.Method == http.MethodGet:
		t, err := s.service.GetTemplate(r.Context(), rest[0])
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, templateJSON(t))

	case len(rest) == 1 && r.Method == http.MethodPut:
		var body struct {
			DocumentType *string `json:"document_type"`
			Title        *string `json:"title"`
			Body         *string `json:"body"`
			DisplayOrder *int    `json:"display_order"`
			IsActive     *bool   `json:"is_active"`
			EditedBy     string  `json:"edited_by"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		updated, err := s.service.UpdateTemplate(r.Context(), rest[0], sop.TemplateChanges{
			DocumentType: body.DocumentType,
			Title:        body.Title,
			Body:         body.Body,
			DisplayOrder: body.DisplayOrder,
			IsActive:     body.IsActive,
		}, body.EditedBy)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, templateJSON(updated))

	case len(rest) == 1 && r.Method == http.MethodDelete:
		if err := s.service.DeleteTemplate(r.Context(), rest[0]); err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})

	case len(rest) == 2 && rest[1] == "history" && r.Method == http.MethodGet:
		revisions, err := s.service.TemplateHistory(r.Context(), rest[0])
		if err != nil {
			writeMappedError(w, err)
			return
		}
		items := make([]map[string]any, 0, len(revisions))
		for _, rev := range revisions {
			items = append(items, map[string]any{
				"id":            rev.ID,
				"template_id":   rev.TemplateID,
				"document_type": rev.DocumentType,
				"title":         rev.Title,
				"body":          rev.Body,
				"version":       rev.Version,
				"edited_by":     rev.EditedBy,
				"created_at":    rev.CreatedAt.UTC().Format(time.RFC3339),
			})
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items})

	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

// handleChat routes /api/chat/threads[/{id}[/messages]].
func (s *HTTPServer) handleChat(w http.ResponseWriter, r *http.Request, rest []string) {
	if len(rest) == 0 || rest[0] != "threads" {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}
	rest = rest[1:]

	switch {
	case len(rest) == 0 && r.Method == http.MethodGet:
		threads, err := s.service.ListChatThreads(r.Context())
		if err != nil {
			writeMappedError(w, err)
			return
		}
		items := make([]map[string]any, 0, len(threads))
		for _, t := range threads {
			items = append(items, threadJSON(t))
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items})

	case len(rest) == 0 && r.Method == http.MethodPost:
		var body struct {
			Title string `json:"title"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		thread, err := s.service.CreateChatThread(r.Context(), body.Title)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, threadJSON(thread))

	case len(rest) == 1 && r.Method == http.MethodGet:
		thread, messages, err := s.service.GetChatThread(r.Context(), rest[0])
		if err != nil {
			writeMappedError(w, err)
			return
		}
		payload := threadJSON(thread)
		payload["messages"] = messagesJSON(messages)
		writeJSON(w, http.StatusOK, payload)

	case len(rest) == 2 && rest[1] == "messages" && r.Method == http.MethodPost:
		var body struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		if body.Role == "" {
			body.Role = "user"
		}
		if body.Content == "" {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", "content is required", nil)
			return
		}
		messages, err := s.service.AppendChatMessage(r.Context(), rest[0], body.Role, body.Content)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"items": messagesJSON(messages)})

	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func (s *HTTPServer) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := search.Query{
		Text:       r.URL.Query().Get("q"),
		FilterType: search.ResultType(r.URL.Query().Get("type")),
	}
	if limit, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil {
		q.Limit = limit
	}
	if offset, err := strconv.Atoi(r.URL.Query().Get("offset")); err == nil {
		q.Offset = offset
	}
	writeJSON(w, http.StatusOK, s.service.Search(q))
}

func (s *HTTPServer) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = randomRequestID()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)

		started := time.Now()
		writer := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		setCORSHeaders(writer.Header(), s.corsOrigin)
		writer.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(writer, r)

		log.Printf(`{"request_id":"%s","method":"%s","path":"%s","status":%d,"duration_ms":%d}`,
			requestID,
			r.Method,
			r.URL.Path,
			writer.status,
			time.Since(started).Milliseconds(),
		)
	})
}

type requestIDKey struct{}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func randomRequestID() string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

func setCORSHeaders(header http.Header, corsOrigin string) {
	header.Set("Access-Control-Allow-Origin", corsOrigin)
	header.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
	header.Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
	header.Set("Cache-Control", "no-store")
	header.Set("Content-Type", "application/json")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	response := map[string]any{
		"code":  code,
		"error": message,
	}
	if details != nil {
		response["details"] = details
	}
	writeJSON(w, status, response)
}

func writeMappedError(w http.ResponseWriter, err error) {
	status, code, message, details := mapError(err)
	writeError(w, status, code, message, details)
}

func decodeBody(r *http.Request, target any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, http.ErrBodyReadAfterClose) {
			return nil
		}
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

func projectJSON(p store.Project) map[string]any {
	return map[string]any{
		"id":                 p.ID,
		"project_name":       p.ProjectName,
		"project_code":       p.ProjectCode,
		"description":        p.Description,
		"business_area":      p.BusinessArea,
		"sponsor":            p.Sponsor,
		"project_manager":    p.ProjectManager,
		"planned_start_date": dateJSON(p.PlannedStartDate),
		"planned_end_date":   dateJSON(p.PlannedEndDate),
		"actual_start_date":  dateJSON(p.ActualStartDate),
		"actual_end_date":    dateJSON(p.ActualEndDate),
		"status":             p.Status,
		"phase":              p.Phase,
		"priority":           p.Priority,
		"approved_budget":    p.ApprovedBudget,
		"actual_cost":        p.ActualCost,
		"currency":           p.Currency,
		"overall_health":     p.OverallHealth,
		"risk_level":         p.RiskLevel,
		"is_active":          p.IsActive,
		"display_order":      p.DisplayOrder,
		"tags":               p.Tags,
		"created_by":         p.CreatedBy,
		"updated_by":         p.UpdatedBy,
		"created_at":         p.CreatedAt.UTC().Format(time.RFC3339),
		"updated_at":         p.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func templateJSON(t store.Template) map[string]any {
	return map[string]any{
		"id":            t.ID,
		"document_type": t.DocumentType,
		"title":         t.Title,
		"body":          t.Body,
		"version":       t.Version,
		"display_order": t.DisplayOrder,
		"is_active":     t.IsActive,
		"created_at":    t.CreatedAt.UTC().Format(time.RFC3339),
		"updated_at":    t.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func threadJSON(t store.ChatThread) map[string]any {
	return map[string]any{
		"id":         t.ID,
		"title":      t.Title,
		"created_at": t.CreatedAt.UTC().Format(time.RFC3339),
		"updated_at": t.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func messagesJSON(messages []store.ChatMessage) []map[string]any {
	items := make([]map[string]any, 0, len(messages))
	for _, m := range messages {
		items = append(items, map[string]any{
			"id":         m.ID,
			"thread_id":  m.ThreadID,
			"role":       m.Role,
			"content":    m.Content,
			"created_at": m.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	return items
}

func dateJSON(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format("2006-01-02")
}

func decodeProjectBody(r *http.Request) (store.Project, error) {
	var body struct {
		ProjectName      string   `json:"project_name"`
		Description      string   `json:"description"`
		BusinessArea     string   `json:"business_area"`
		Sponsor          string   `json:"sponsor"`
		ProjectManager   string   `json:"project_manager"`
		PlannedStartDate *string  `json:"planned_start_date"`
		PlannedEndDate   *string  `json:"planned_end_date"`
		ActualStartDate  *string  `json:"actual_start_date"`
		ActualEndDate    *string  `json:"actual_end_date"`
		Status           string   `json:"status"`
		Phase            string   `json:"phase"`
		Priority         string   `json:"priority"`
		ApprovedBudget   *float64 `json:"approved_budget"`
		ActualCost       *float64 `json:"actual_cost"`
		Currency         string   `json:"currency"`
		OverallHealth    string   `json:"overall_health"`
		RiskLevel        string   `json:"risk_level"`
		DisplayOrder     int      `json:"display_order"`
		Tags             []string `json:"tags"`
		CreatedBy        string   `json:"created_by"`
		UpdatedBy        string   `json:"updated_by"`
	}
	if err := decodeBody(r, &body); err != nil {
		return store.Project{}, err
	}

	p := store.Project{
		ProjectName:    body.ProjectName,
		Description:    body.Description,
		BusinessArea:   body.BusinessArea,
		Sponsor:        body.Sponsor,
		ProjectManager: body.ProjectManager,
		Status:         body.Status,
		Phase:          body.Phase,
		Priority:       body.Priority,
		ApprovedBudget: body.ApprovedBudget,
		ActualCost:     body.ActualCost,
		Currency:       body.Currency,
		OverallHealth:  body.OverallHealth,
		RiskLevel:      body.RiskLevel,
		DisplayOrder:   body.DisplayOrder,
		Tags:           body.Tags,
		CreatedBy:      body.CreatedBy,
		UpdatedBy:      body.UpdatedBy,
	}

	dates := []struct {
		raw    *string
		target **time.Time
		name   string
	}{
		{body.PlannedStartDate, &p.PlannedStartDate, "planned_start_date"},
		{body.PlannedEndDate, &p.PlannedEndDate, "planned_end_date"},
		{body.ActualStartDate, &p.ActualStartDate, "actual_start_date"},
		{body.ActualEndDate, &p.ActualEndDate, "actual_end_date"},
	}
	for _, d := range dates {
		if d.raw == nil || *d.raw == "" {
			continue
		}
		parsed, err := time.Parse("2006-01-02", *d.raw)
		if err != nil {
			return store.Project{}, fmt.Errorf("%s must be YYYY-MM-DD", d.name)
		}
		*d.target = &parsed
	}
	return p, nil
}

func mapError(err error) (status int, code, message string, details any) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Status, domainErr.Code, domainErr.Message, domainErr.Details
	}

	var validationErr *aiedit.ValidationError
	if errors.As(err, &validationErr) {
		return http.StatusUnprocessableEntity, "CONSTRAINT_VALIDATION_FAILED",
			"Constraint validation failed", validationErr.Violations
	}

	switch {
	case errors.Is(err, sql.ErrNoRows),
		errors.Is(err, project.ErrNotFound),
		errors.Is(err, sop.ErrNotFound),
		errors.Is(err, chat.ErrThreadNotFound),
		errors.Is(err, aiedit.ErrDocumentNotFound):
		return http.StatusNotFound, "NOT_FOUND", "Not found", nil
	case errors.Is(err, aiedit.ErrTemplateNotFound):
		return http.StatusNotFound, "TEMPLATE_NOT_FOUND", err.Error(), nil
	case errors.Is(err, aiedit.ErrInvalidAIResponse),
		errors.Is(err, aiedit.ErrMalformedAIStructure):
		return http.StatusBadGateway, "INVALID_AI_RESPONSE", err.Error(), nil
	case errors.Is(err, project.ErrNameExists),
		errors.Is(err, sop.ErrTemplateExists):
		return http.StatusConflict, "ALREADY_EXISTS", err.Error(), nil
	case errors.Is(err, sop.ErrNoChanges):
		return http.StatusBadRequest, "NO_CHANGES", err.Error(), nil
	}
	return http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil
}
