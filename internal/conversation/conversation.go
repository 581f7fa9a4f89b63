// Package conversation keeps the message history of chat threads.
package conversation

import (
	"context"
	"time"
)

type Role string

const (
	RoleHuman     Role = "human"
	RoleAssistant Role = "assistant"
)

type Message struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

func NewMessage(role Role, content string) Message {
	return Message{Role: role, Content: content, CreatedAt: time.Now().UTC()}
}

// Store is safe for concurrent use. History of an unknown thread is empty, not an error.
type Store interface {
	History(ctx context.Context, threadID string) ([]Message, error)
	Append(ctx context.Context, threadID string, msgs ...Message) error
	Reset(ctx context.Context, threadID string) error
	Close() error
}

// Tail returns at most limit trailing messages. A limit of zero or less keeps everything.
func Tail(msgs []Message, limit int) []Message {
	if limit <= 0 || len(msgs) <= limit {
		return msgs
	}
	return msgs[len(msgs)-limit:]
}
