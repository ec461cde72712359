package aiedit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"steward/api/internal/llm"
	"steward/api/internal/schema"
)

var (
	// ErrTemplateNotFound means the document kind has no governing template
	// and therefore cannot be AI-edited.
	ErrTemplateNotFound = errors.New("no template found for document type")

	// ErrInvalidAIResponse means the model returned text that is not JSON.
	ErrInvalidAIResponse = errors.New("ai service returned invalid JSON response")

	// ErrMalformedAIStructure means the model returned JSON whose shape does
	// not match the requested contract.
	ErrMalformedAIStructure = errors.New("ai response has malformed structure")
)

// Suggestion is a single proposed field edit awaiting human review.
type Suggestion struct {
	CurrentValue   any    `json:"current_value"`
	SuggestedValue any    `json:"suggested_value"`
	Reason         string `json:"reason"`
}

// SuggestionSet is the full proposal returned to the caller. It is ephemeral
// and never persisted.
type SuggestionSet struct {
	Suggestions      map[string]Suggestion `json:"suggestions"`
	OverallReasoning string                `json:"overall_reasoning"`
}

// TemplateProvider resolves the governing template for a document kind.
// A nil title+body pair with no error means no template exists.
type TemplateProvider interface {
	TemplateFor(ctx context.Context, kind schema.Kind) (title, body string, found bool, err error)
}

// GenerateSuggestions builds the prompt, invokes the model, and parses the
// reply into a normalized suggestion set. It performs no persistence.
func GenerateSuggestions(ctx context.Context, templates TemplateProvider, client llm.Client, kind schema.Kind, currentDocument map[string]any, instruction string) (SuggestionSet, error) {
	if !schema.Known(kind) {
		return SuggestionSet{}, fmt.Errorf("unknown document kind: %s", kind)
	}

	title, body, found, err := templates.TemplateFor(ctx, kind)
	if err != nil {
		return SuggestionSet{}, fmt.Errorf("resolve template: %w", err)
	}
	if !found {
		return SuggestionSet{}, fmt.Errorf("%w: %s", ErrTemplateNotFound, kind)
	}

	prompt := buildSystemPrompt(kind, title, body, currentDocument, instruction)
	reply, err := client.GenerateReply(ctx, []llm.Message{
		{Role: "system", Content: prompt},
		{Role: "user", Content: "Please analyze the document and provide suggestions based on my instructions: " + instruction},
	})
	if err != nil {
		return SuggestionSet{}, fmt.Errorf("generate reply: %w", err)
	}

	return parseSuggestionReply(reply)
}

func parseSuggestionReply(reply string) (SuggestionSet, error) {
	var parsed any
	if err := json.Unmarshal([]byte(reply), &parsed); err != nil {
		log.Printf("aiedit: failed to parse model reply as JSON: %.200s", reply)
		return SuggestionSet{}, ErrInvalidAIResponse
	}

	obj, ok := parsed.(map[string]any)
	if !ok {
		return SuggestionSet{}, fmt.Errorf("%w: expected object at top level", ErrMalformedAIStructure)
	}

	rawSuggestions, ok := obj["suggestions"]
	if !ok {
		return SuggestionSet{}, fmt.Errorf("%w: missing suggestions field", ErrMalformedAIStructure)
	}

	suggestionMap, ok := rawSuggestions.(map[string]any)
	if !ok {
		return SuggestionSet{}, fmt.Errorf("%w: suggestions field is not an object", ErrMalformedAIStructure)
	}

	set := SuggestionSet{Suggestions: make(map[string]Suggestion, len(suggestionMap))}

	for field, raw := range suggestionMap {
		entry, ok := raw.(map[string]any)
		if !ok {
			log.Printf("aiedit: skipping malformed suggestion for %s: not an object", field)
			continue
		}
		suggested, ok := entry["suggested_value"]
		if !ok {
			log.Printf("aiedit: skipping suggestion for %s: missing suggested_value", field)
			continue
		}
		reason := "No reason provided"
		if r, ok := entry["reason"].(string); ok && r != "" {
			reason = r
		}
		set.Suggestions[field] = Suggestion{
			CurrentValue:   entry["current_value"],
			SuggestedValue: suggested,
			Reason:         reason,
		}
	}

	if r, ok := obj["overall_reasoning"].(string); ok {
		set.OverallReasoning = r
	}
	return set, nil
}
