// Package chat implements assistant conversation threads: recency-ordered
// thread listing, message append with an automatic assistant reply, and a
// best-effort background title regeneration for new threads.
package chat

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"strings"
	"time"

	"steward/api/internal/llm"
	"steward/api/internal/store"
)

// ErrThreadNotFound means the thread id does not exist.
var ErrThreadNotFound = errors.New("chat thread not found")

const defaultTitle = "New Thread"

type chatStore interface {
	ListChatThreads(ctx context.Context) ([]store.ChatThread, error)
	GetChatThread(ctx context.Context, threadID string) (store.ChatThread, error)
	InsertChatThread(ctx context.Context, t store.ChatThread) (store.ChatThread, error)
	UpdateChatThreadTitle(ctx context.Context, threadID, title string) error
	TouchChatThread(ctx context.Context, threadID string) error
	ListChatMessages(ctx context.Context, threadID string) ([]store.ChatMessage, error)
	InsertChatMessage(ctx context.Context, m store.ChatMessage) (store.ChatMessage, error)
}

type Service struct {
	store chatStore
	llm   llm.Client
}

func NewService(store chatStore, client llm.Client) *Service {
	return &Service{store: store, llm: client}
}

func (s *Service) ListThreads(ctx context.Context) ([]store.ChatThread, error) {
	return s.store.ListChatThreads(ctx)
}

func (s *Service) CreateThread(ctx context.Context, title string) (store.ChatThread, error) {
	return s.store.InsertChatThread(ctx, store.ChatThread{Title: title})
}

// GetThread returns a thread with its messages in chronological order.
func (s *Service) GetThread(ctx context.Context, threadID string) (store.ChatThread, []store.ChatMessage, error) {
	thread, err := s.store.GetChatThread(ctx, threadID)
	if errors.Is(err, sql.ErrNoRows) {
		return store.ChatThread{}, nil, ErrThreadNotFound
	}
	if err != nil {
		return store.ChatThread{}, nil, err
	}
	messages, err := s.store.ListChatMessages(ctx, threadID)
	if err != nil {
		return store.ChatThread{}, nil, err
	}
	return thread, messages, nil
}

// AppendMessage stores a message and, for user messages, generates an
// assistant reply from the full conversation. Returns every message written.
func (s *Service) AppendMessage(ctx context.Context, threadID, role, content string) ([]store.ChatMessage, error) {
	thread, err := s.store.GetChatThread(ctx, threadID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrThreadNotFound
	}
	if err != nil {
		return nil, err
	}

	history, err := s.store.ListChatMessages(ctx, threadID)
	if err != nil {
		return nil, err
	}

	message, err := s.store.InsertChatMessage(ctx, store.ChatMessage{
		ThreadID: threadID,
		Role:     role,
		Content:  content,
	})
	if err != nil {
		return nil, err
	}
	written := []store.ChatMessage{message}

	if role == "user" {
		conversation := make([]llm.Message, 0, len(history)+1)
		for _, m := range history {
			conversation = append(conversation, llm.Message{Role: m.Role, Content: m.Content})
		}
		conversation = append(conversation, llm.Message{Role: role, Content: content})

		replyContent, err := s.llm.GenerateReply(ctx, conversation)
		if err != nil {
			return nil, err
		}
		reply, err := s.store.InsertChatMessage(ctx, store.ChatMessage{
			ThreadID: threadID,
			Role:     "assistant",
			Content:  replyContent,
		})
		if err != nil {
			return nil, err
		}
		written = append(written, reply)

		// First exchange on a fresh thread: name it in the background. Best
		// effort, never blocks or fails the response.
		if thread.Title == defaultTitle {
			go s.regenerateTitle(threadID)
		}
	}

	if err := s.store.TouchChatThread(ctx, threadID); err != nil {
		return nil, err
	}
	return written, nil
}

// regenerateTitle asks the model for a short thread title based on the
// conversation so far. Runs detached from the originating request.
func (s *Service) regenerateTitle(threadID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	messages, err := s.store.ListChatMessages(ctx, threadID)
	if err != nil || len(messages) == 0 {
		return
	}

	conversation := []llm.Message{{
		Role:    "system",
		Content: "Generate a short title (at most 6 words) summarizing this conversation. Reply with the title only, no quotes.",
	}}
	for _, m := range messages {
		conversation = append(conversation, llm.Message{Role: m.Role, Content: m.Content})
	}

	title, err := s.llm.GenerateReply(ctx, conversation)
	if err != nil {
		log.Printf("chat: title generation failed for thread %s: %v", threadID, err)
		return
	}

	title = strings.Trim(strings.TrimSpace(title), `"`)
	if title == "" {
		return
	}
	if len(title) > 120 {
		title = title[:120]
	}
	if err := s.store.UpdateChatThreadTitle(ctx, threadID, title); err != nil {
		log.Printf("chat: title update failed for thread %s: %v", threadID, err)
	}
}
