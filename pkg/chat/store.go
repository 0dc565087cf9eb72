package chat

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const (
	roleUser  = "user"
	roleModel = "model"
)

const (
	insertConversationSQL = `INSERT INTO conversations (id) VALUES ($1)
		RETURNING id, title, created_at, updated_at`
	listConversationsSQL = `SELECT id, title, created_at, updated_at
		FROM conversations ORDER BY updated_at DESC`
	historySQL = `SELECT id, conversation_id, role, content, created_at
		FROM messages WHERE conversation_id = $1 ORDER BY created_at, id`
	insertMessageSQL = `INSERT INTO messages (id, conversation_id, role, content) VALUES ($1, $2, $3, $4)`
	touchSQL         = `UPDATE conversations SET updated_at = NOW() WHERE id = $1`
	setTitleSQL      = `UPDATE conversations SET title = $2 WHERE id = $1`
)

type Conversation struct {
	ID        uuid.UUID `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Message struct {
	ID             uuid.UUID `json:"id"`
	ConversationID uuid.UUID `json:"conversation_id"`
	Role           string    `json:"role"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
}

func (s *Service) CreateConversation(ctx context.Context) (*Conversation, error) {
	var conv Conversation
	err := s.DB.Pool.QueryRow(ctx, insertConversationSQL, uuid.New()).
		Scan(&conv.ID, &conv.Title, &conv.CreatedAt, &conv.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create conversation: %w", err)
	}
	return &conv, nil
}

func (s *Service) ListConversations(ctx context.Context) ([]Conversation, error) {
	rows, err := s.DB.Pool.Query(ctx, listConversationsSQL)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Conversation, error) {
		var c Conversation
		err := row.Scan(&c.ID, &c.Title, &c.CreatedAt, &c.UpdatedAt)
		return c, err
	})
}

// GetHistory returns the conversation's messages, oldest first.
func (s *Service) GetHistory(ctx context.Context, conversationID uuid.UUID) ([]Message, error) {
	rows, err := s.DB.Pool.Query(ctx, historySQL, conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to get history: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Message, error) {
		var m Message
		err := row.Scan(&m.ID, &m.ConversationID, &m.Role, &m.Content, &m.CreatedAt)
		return m, err
	})
}

func (s *Service) saveMessage(ctx context.Context, conversationID uuid.UUID, role, content string) (uuid.UUID, error) {
	id := uuid.New()
	if _, err := s.DB.Pool.Exec(ctx, insertMessageSQL, id, conversationID, role, content); err != nil {
		return uuid.Nil, fmt.Errorf("failed to save %s message: %w", role, err)
	}
	return id, nil
}

// touch bumps updated_at so the conversation sorts first in listings.
func (s *Service) touch(ctx context.Context, conversationID uuid.UUID) error {
	_, err := s.DB.Pool.Exec(ctx, touchSQL, conversationID)
	return err
}

func (s *Service) setTitle(ctx context.Context, conversationID uuid.UUID, title string) error {
	_, err := s.DB.Pool.Exec(ctx, setTitleSQL, conversationID, title)
	return err
}
