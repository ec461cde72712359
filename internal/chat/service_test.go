package chat

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"steward/api/internal/llm"
	"steward/api/internal/store"
)

type fakeChatStore struct {
	mu       sync.Mutex
	threads  map[string]store.ChatThread
	messages map[string][]store.ChatMessage
	titles   map[string]string

	generateReplyErr error
}

func newFakeChatStore() *fakeChatStore {
	return &fakeChatStore{
		threads:  make(map[string]store.ChatThread),
		messages: make(map[string][]store.ChatMessage),
		titles:   make(map[string]string),
	}
}

func (f *fakeChatStore) ListChatThreads(context.Context) ([]store.ChatThread, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]store.ChatThread, 0, len(f.threads))
	for _, t := range f.threads {
		out = append(out, t)
	}
	return out, nil
}

func (f *fakeChatStore) GetChatThread(_ context.Context, threadID string) (store.ChatThread, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.threads[threadID]
	if !ok {
		return store.ChatThread{}, sql.ErrNoRows
	}
	return t, nil
}

func (f *fakeChatStore) InsertChatThread(_ context.Context, t store.ChatThread) (store.ChatThread, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if t.ID == "" {
		t.ID = "thread-1"
	}
	if t.Title == "" {
		t.Title = "New Thread"
	}
	f.threads[t.ID] = t
	return t, nil
}

func (f *fakeChatStore) UpdateChatThreadTitle(_ context.Context, threadID, title string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	t := f.threads[threadID]
	t.Title = title
	f.threads[threadID] = t
	f.titles[threadID] = title
	return nil
}

func (f *fakeChatStore) TouchChatThread(_ context.Context, threadID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	t := f.threads[threadID]
	t.UpdatedAt = time.Now()
	f.threads[threadID] = t
	return nil
}

func (f *fakeChatStore) ListChatMessages(_ context.Context, threadID string) ([]store.ChatMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]store.ChatMessage(nil), f.messages[threadID]...), nil
}

func (f *fakeChatStore) InsertChatMessage(_ context.Context, m store.ChatMessage) (store.ChatMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m.ID = "msg"
	m.CreatedAt = time.Now()
	f.messages[m.ThreadID] = append(f.messages[m.ThreadID], m)
	return m, nil
}

type scriptedLLM struct {
	mu      sync.Mutex
	replies []string
	calls   [][]llm.Message
	err     error
}

func (s *scriptedLLM) GenerateReply(_ context.Context, messages []llm.Message) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, messages)
	if s.err != nil {
		return "", s.err
	}
	if len(s.replies) == 0 {
		return "ok", nil
	}
	reply := s.replies[0]
	s.replies = s.replies[1:]
	return reply, nil
}

func TestAppendMessageAutoReplies(t *testing.T) {
	fake := newFakeChatStore()
	client := &scriptedLLM{replies: []string{"Here is my answer.", "Budget Questions"}}
	svc := NewService(fake, client)

	thread, err := svc.CreateThread(context.Background(), "Named Thread")
	if err != nil {
		t.Fatalf("CreateThread failed: %v", err)
	}

	written, err := svc.AppendMessage(context.Background(), thread.ID, "user", "What is our budget?")
	if err != nil {
		t.Fatalf("AppendMessage failed: %v", err)
	}
	if len(written) != 2 {
		t.Fatalf("expected user message plus reply, got %d", len(written))
	}
	if written[1].Role != "assistant" || written[1].Content != "Here is my answer." {
		t.Errorf("reply = %+v", written[1])
	}
}

func TestAppendMessageAssistantRoleNoReply(t *testing.T) {
	fake := newFakeChatStore()
	client := &scriptedLLM{}
	svc := NewService(fake, client)

	thread, _ := svc.CreateThread(context.Background(), "T")
	written, err := svc.AppendMessage(context.Background(), thread.ID, "assistant", "note")
	if err != nil {
		t.Fatalf("AppendMessage failed: %v", err)
	}
	if len(written) != 1 {
		t.Fatalf("assistant message should not trigger a reply, got %d messages", len(written))
	}
	if len(client.calls) != 0 {
		t.Error("model should not be called for assistant messages")
	}
}

func TestAppendMessageIncludesHistory(t *testing.T) {
	fake := newFakeChatStore()
	client := &scriptedLLM{replies: []string{"first", "second"}}
	svc := NewService(fake, client)

	thread, _ := svc.CreateThread(context.Background(), "T")
	if _, err := svc.AppendMessage(context.Background(), thread.ID, "user", "one"); err != nil {
		t.Fatalf("first append: %v", err)
	}
	if _, err := svc.AppendMessage(context.Background(), thread.ID, "user", "two"); err != nil {
		t.Fatalf("second append: %v", err)
	}

	client.mu.Lock()
	second := client.calls[1]
	client.mu.Unlock()
	// user one, assistant first, user two
	if len(second) != 3 {
		t.Fatalf("second call should carry full history, got %d messages", len(second))
	}
	if second[0].Content != "one" || second[1].Content != "first" || second[2].Content != "two" {
		t.Errorf("conversation = %+v", second)
	}
}

func TestAppendMessageThreadMissing(t *testing.T) {
	svc := NewService(newFakeChatStore(), &scriptedLLM{})
	if _, err := svc.AppendMessage(context.Background(), "nope", "user", "hi"); !errors.Is(err, ErrThreadNotFound) {
		t.Fatalf("expected ErrThreadNotFound, got %v", err)
	}
}

func TestTitleRegeneratedForFreshThread(t *testing.T) {
	fake := newFakeChatStore()
	client := &scriptedLLM{replies: []string{"an answer", `"Budget Planning"`}}
	svc := NewService(fake, client)

	thread, _ := svc.CreateThread(context.Background(), "")
	if thread.Title != "New Thread" {
		t.Fatalf("default title = %q", thread.Title)
	}

	if _, err := svc.AppendMessage(context.Background(), thread.ID, "user", "help me plan the budget"); err != nil {
		t.Fatalf("AppendMessage failed: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		fake.mu.Lock()
		title := fake.titles[thread.ID]
		fake.mu.Unlock()
		if title == "Budget Planning" {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("title was not regenerated")
}

func TestTitleFailureDoesNotAffectResponse(t *testing.T) {
	fake := newFakeChatStore()
	client := &scriptedLLM{replies: []string{"an answer"}, err: nil}
	svc := NewService(fake, client)

	thread, _ := svc.CreateThread(context.Background(), "")
	written, err := svc.AppendMessage(context.Background(), thread.ID, "user", "hello")
	if err != nil {
		t.Fatalf("AppendMessage failed: %v", err)
	}
	if len(written) != 2 {
		t.Fatalf("got %d messages", len(written))
	}
}
