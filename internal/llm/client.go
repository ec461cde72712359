// Package llm is the outbound language-model client. The rest of the system
// depends only on the Client interface; the HTTP implementation is constructed
// at startup and injected, never reached through a package-level singleton.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"steward/api/internal/config"
)

// Message is one entry of a chat conversation.
type Message struct {
	Role    string `json:"role"` // system, user or assistant
	Content string `json:"content"`
}

// Client produces a single text reply for an ordered list of messages. The
// call blocks until the provider answers; callers needing timeouts pass a
// deadline through ctx.
type Client interface {
	GenerateReply(ctx context.Context, messages []Message) (string, error)
}

// ChatClient calls an OpenAI-compatible chat-completions endpoint, either
// api.openai.com or an Azure OpenAI deployment.
type ChatClient struct {
	provider   string
	url        string
	apiKey     string
	model      string
	azure      bool
	httpClient *http.Client
}

// New builds a ChatClient from configuration.
func New(cfg config.Config) (*ChatClient, error) {
	client := &ChatClient{
		provider: cfg.LLMProvider,
		httpClient: &http.Client{
			Timeout: cfg.LLMTimeout,
		},
	}
	switch cfg.LLMProvider {
	case "openai":
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("llm: OPENAI_API_KEY is not set")
		}
		client.url = strings.TrimRight(cfg.OpenAIBaseURL, "/") + "/chat/completions"
		client.apiKey = cfg.OpenAIAPIKey
		client.model = cfg.OpenAIModel
	case "azure":
		if cfg.AzureAPIKey == "" || cfg.AzureEndpoint == "" {
			return nil, fmt.Errorf("llm: AZURE_OPENAI_API_KEY and AZURE_OPENAI_ENDPOINT must be set")
		}
		client.url = fmt.Sprintf("%s/openai/deployments/%s/chat/completions?api-version=%s",
			strings.TrimRight(cfg.AzureEndpoint, "/"), cfg.AzureDeploymentName, cfg.AzureAPIVersion)
		client.apiKey = cfg.AzureAPIKey
		client.azure = true
	default:
		return nil, fmt.Errorf("llm: unknown provider %q", cfg.LLMProvider)
	}
	return client, nil
}

type chatRequest struct {
	Model    string    `json:"model,omitempty"`
	Messages []Message `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// GenerateReply sends the conversation and returns the first choice's text.
func (c *ChatClient) GenerateReply(ctx context.Context, messages []Message) (string, error) {
	payload, err := json.Marshal(chatRequest{Model: c.model, Messages: messages})
	if err != nil {
		return "", fmt.Errorf("llm: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("llm: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.azure {
		req.Header.Set("api-key", c.apiKey)
	} else {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	started := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("llm: %s request failed: %w", c.provider, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", fmt.Errorf("llm: read response: %w", err)
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("llm: decode response (status %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK {
		message := strings.TrimSpace(string(body))
		if parsed.Error != nil {
			message = parsed.Error.Message
		}
		return "", fmt.Errorf("llm: %s returned status %d: %s", c.provider, resp.StatusCode, message)
	}
	if len(parsed.Choices) == 0 || strings.TrimSpace(parsed.Choices[0].Message.Content) == "" {
		return "", fmt.Errorf("llm: %s returned no usable text (took %s)", c.provider, time.Since(started).Round(time.Millisecond))
	}
	return parsed.Choices[0].Message.Content, nil
}
