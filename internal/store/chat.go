package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"steward/api/internal/util"
)

func (s *PostgresStore) ListChatThreads(ctx context.Context) ([]ChatThread, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, created_at, updated_at
		FROM chat_threads
		ORDER BY updated_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list chat threads: %w", err)
	}
	defer rows.Close()

	items := make([]ChatThread, 0)
	for rows.Next() {
		var t ChatThread
		if err := rows.Scan(&t.ID, &t.Title, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan chat thread: %w", err)
		}
		items = append(items, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chat threads: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) GetChatThread(ctx context.Context, threadID string) (ChatThread, error) {
	var t ChatThread
	err := s.db.QueryRowContext(ctx, `
		SELECT id, title, created_at, updated_at FROM chat_threads WHERE id=$1
	`, threadID).Scan(&t.ID, &t.Title, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return ChatThread{}, err
	}
	if err != nil {
		return ChatThread{}, fmt.Errorf("get chat thread: %w", err)
	}
	return t, nil
}

func (s *PostgresStore) InsertChatThread(ctx context.Context, t ChatThread) (ChatThread, error) {
	if t.ID == "" {
		t.ID = util.NewID()
	}
	if t.Title == "" {
		t.Title = "New Thread"
	}
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO chat_threads (id, title) VALUES ($1, $2)
		RETURNING created_at, updated_at
	`, t.ID, t.Title).Scan(&t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return ChatThread{}, fmt.Errorf("insert chat thread: %w", err)
	}
	return t, nil
}

// UpdateChatThreadTitle renames a thread and touches updated_at.
func (s *PostgresStore) UpdateChatThreadTitle(ctx context.Context, threadID, title string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE chat_threads SET title=$2, updated_at=NOW() WHERE id=$1
	`, threadID, title)
	if err != nil {
		return fmt.Errorf("update chat thread title: %w", err)
	}
	return nil
}

// TouchChatThread bumps a thread's updated_at so recency ordering holds.
func (s *PostgresStore) TouchChatThread(ctx context.Context, threadID string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE chat_threads SET updated_at=NOW() WHERE id=$1`, threadID)
	if err != nil {
		return fmt.Errorf("touch chat thread: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListChatMessages(ctx context.Context, threadID string) ([]ChatMessage, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, thread_id, role, content, created_at
		FROM chat_messages
		WHERE thread_id=$1
		ORDER BY created_at ASC
	`, threadID)
	if err != nil {
		return nil, fmt.Errorf("list chat messages: %w", err)
	}
	defer rows.Close()

	items := make([]ChatMessage, 0)
	for rows.Next() {
		var m ChatMessage
		if err := rows.Scan(&m.ID, &m.ThreadID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan chat message: %w", err)
		}
		items = append(items, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chat messages: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) InsertChatMessage(ctx context.Context, m ChatMessage) (ChatMessage, error) {
	if m.ID == "" {
		m.ID = util.NewID()
	}
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO chat_messages (id, thread_id, role, content)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at
	`, m.ID, m.ThreadID, m.Role, m.Content).Scan(&m.CreatedAt)
	if err != nil {
		return ChatMessage{}, fmt.Errorf("insert chat message: %w", err)
	}
	return m, nil
}
