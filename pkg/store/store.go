// Package store provides conversation persistence interfaces and implementations.
package store

import (
	"context"
	"errors"
	"time"
)

// Mode is the interaction mode a conversation was created in.
type Mode string

const (
	ModeChat  Mode = "chat"
	ModeTool  Mode = "tool"
	ModeAgent Mode = "agent"
)

// ParseMode validates s as a Mode.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeChat, ModeTool, ModeAgent:
		return Mode(s), nil
	}
	return "", errors.New("mode must be one of chat, tool, agent")
}

// Role is the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ErrNotFound is returned when a record does not exist or belongs to another user.
var ErrNotFound = errors.New("record not found")

// User is the locally cached identity of the signed-in user.
type User struct {
	ID        string
	Name      string
	Email     string
	Image     string
	UpdatedAt time.Time
}

// Conversation groups messages for one user and mode.
type Conversation struct {
	ID        string
	UserID    string
	Title     string
	Mode      Mode
	CreatedAt time.Time
	UpdatedAt time.Time

	// Messages is populated by lookups that load history.
	Messages []Message
	// LastMessage is populated by list queries.
	LastMessage *Message
}

// Message is an immutable chat entry.
type Message struct {
	ID             string
	ConversationID string
	Role           Role
	Content        string
	CreatedAt      time.Time
}

// Repository defines the interface for persisting users, conversations and messages.
type Repository interface {
	// UpsertUser creates or refreshes a cached user.
	UpsertUser(ctx context.Context, user *User) error

	// GetUser returns nil when the user is unknown.
	GetUser(ctx context.Context, id string) (*User, error)

	CreateConversation(ctx context.Context, conv *Conversation) error

	// GetConversation returns ErrNotFound unless the conversation belongs to userID.
	GetConversation(ctx context.Context, id, userID string) (*Conversation, error)

	// ListConversations returns the most recently updated conversations first,
	// each with its last message.
	ListConversations(ctx context.Context, userID string, limit int) ([]*Conversation, error)

	UpdateConversationTitle(ctx context.Context, id, title string) error

	// TouchConversation bumps updated_at.
	TouchConversation(ctx context.Context, id string, at time.Time) error

	// DeleteConversation removes the conversation and its messages.
	DeleteConversation(ctx context.Context, id, userID string) error

	AddMessage(ctx context.Context, msg *Message) error

	// ListMessages returns messages oldest first.
	ListMessages(ctx context.Context, conversationID string) ([]Message, error)

	CountMessages(ctx context.Context, conversationID string) (int, error)

	// Ping verifies database connectivity.
	Ping(ctx context.Context) error

	Close() error
}
