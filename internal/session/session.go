package session

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"customer-insights/internal/insights/chart"
	"customer-insights/internal/insights/dataset"
	"customer-insights/internal/insights/response"

	"github.com/google/uuid"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

var (
	ErrHistoryStoreFailed = errors.New("HISTORY_STORE_FAILED")
	ErrEmptySessionID     = errors.New("session id is required")
)

// Message is one turn of a conversation. Data and Chart are only set on
// assistant messages that carried a table.
type Message struct {
	ID        string           `json:"id"`
	Role      Role             `json:"role"`
	Content   string           `json:"content"`
	Data      *dataset.Dataset `json:"data,omitempty"`
	Chart     *chart.Spec      `json:"chart,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
}

// Store keeps conversation history per session id. Append never rewrites
// earlier messages.
type Store interface {
	Append(ctx context.Context, sessionID string, msgs ...Message) error
	History(ctx context.Context, sessionID string) ([]Message, error)
	Clear(ctx context.Context, sessionID string) error
}

func NewUserMessage(question string) Message {
	return Message{
		ID:        uuid.NewString(),
		Role:      RoleUser,
		Content:   question,
		Timestamp: time.Now().UTC(),
	}
}

func NewAssistantMessage(resp response.Response) Message {
	return Message{
		ID:        uuid.NewString(),
		Role:      RoleAssistant,
		Content:   resp.Message,
		Data:      resp.Data,
		Chart:     resp.Chart,
		Timestamp: time.Now().UTC(),
	}
}

type exportDocument struct {
	SessionID  string    `json:"sessionId"`
	ExportedAt time.Time `json:"exportedAt"`
	Messages   []Message `json:"messages"`
}

// Export renders the whole history as indented JSON.
func Export(ctx context.Context, store Store, sessionID string) ([]byte, error) {
	msgs, err := store.History(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if msgs == nil {
		msgs = []Message{}
	}
	return json.MarshalIndent(exportDocument{
		SessionID:  sessionID,
		ExportedAt: time.Now().UTC(),
		Messages:   msgs,
	}, "", "  ")
}
