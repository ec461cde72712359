package sop

import (
	"context"
	"embed"
	"fmt"
	"log"
	"strings"

	"gopkg.in/yaml.v3"

	"steward/api/internal/store"
)

//go:embed templates/*.md
var seedFS embed.FS

type seedFrontmatter struct {
	DocumentType string `yaml:"document_type"`
	Title        string `yaml:"title"`
	DisplayOrder int    `yaml:"display_order"`
}

// Seed loads the embedded default templates into an empty templates table.
// A table with any rows is left alone so operator edits survive restarts.
func (s *Service) Seed(ctx context.Context) error {
	existing, err := s.store.ListTemplates(ctx)
	if err != nil {
		return fmt.Errorf("check existing templates: %w", err)
	}
	if len(existing) > 0 {
		return nil
	}

	entries, err := seedFS.ReadDir("templates")
	if err != nil {
		return fmt.Errorf("read embedded templates: %w", err)
	}

	for _, entry := range entries {
		raw, err := seedFS.ReadFile("templates/" + entry.Name())
		if err != nil {
			return fmt.Errorf("read embedded template %s: %w", entry.Name(), err)
		}

		meta, body, err := splitFrontmatter(string(raw))
		if err != nil {
			return fmt.Errorf("parse template %s: %w", entry.Name(), err)
		}

		_, err = s.Create(ctx, store.Template{
			DocumentType: meta.DocumentType,
			Title:        meta.Title,
			Body:         body,
			DisplayOrder: meta.DisplayOrder,
			IsActive:     true,
		})
		if err != nil {
			return fmt.Errorf("seed template %s: %w", meta.DocumentType, err)
		}
		log.Printf("sop: seeded template %s", meta.DocumentType)
	}
	return nil
}

// splitFrontmatter separates a leading YAML block delimited by "---" lines
// from the markdown body.
func splitFrontmatter(raw string) (seedFrontmatter, string, error) {
	var meta seedFrontmatter

	raw = strings.TrimPrefix(raw, "\ufeff")
	if !strings.HasPrefix(raw, "---\n") {
		return meta, "", fmt.Errorf("missing frontmatter delimiter")
	}
	rest := raw[len("---\n"):]
	end := strings.Index(rest, "\n---\n")
	if end < 0 {
		return meta, "", fmt.Errorf("unterminated frontmatter")
	}

	if err := yaml.Unmarshal([]byte(rest[:end]), &meta); err != nil {
		return meta, "", fmt.Errorf("decode frontmatter: %w", err)
	}
	if meta.DocumentType == "" || meta.Title == "" {
		return meta, "", fmt.Errorf("frontmatter missing document_type or title")
	}

	body := strings.TrimLeft(rest[end+len("\n---\n"):], "\n")
	return meta, body, nil
}
