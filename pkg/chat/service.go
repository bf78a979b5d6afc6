// Package chat persists conversations and drives the interactive chat loop.
package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/minhyannv/ai-cli/pkg/llm"
	loggerpkg "github.com/minhyannv/ai-cli/pkg/logger"
	"github.com/minhyannv/ai-cli/pkg/store"
)

// TitleMaxRunes is how much of the first user message becomes the title.
const TitleMaxRunes = 50

// Service wraps a store.Repository with conversation rules.
type Service struct {
	repo   store.Repository
	logger loggerpkg.Logger
	now    func() time.Time
	newID  func() string
}

// NewService creates a Service. A nil logger discards output.
func NewService(repo store.Repository, logger loggerpkg.Logger) *Service {
	if logger == nil {
		logger = loggerpkg.NopLogger{}
	}
	return &Service{
		repo:   repo,
		logger: logger,
		now:    time.Now,
		newID:  uuid.NewString,
	}
}

// DefaultTitle is the title a conversation gets before its first message.
func DefaultTitle(mode store.Mode) string {
	return fmt.Sprintf("New %s conversation", mode)
}

// CreateConversation starts an empty conversation. An empty title uses DefaultTitle.
func (s *Service) CreateConversation(ctx context.Context, userID string, mode store.Mode, title string) (*store.Conversation, error) {
	if strings.TrimSpace(title) == "" {
		title = DefaultTitle(mode)
	}
	now := s.now()
	conv := &store.Conversation{
		ID:        s.newID(),
		UserID:    userID,
		Title:     title,
		Mode:      mode,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.CreateConversation(ctx, conv); err != nil {
		return nil, fmt.Errorf("create conversation: %w", err)
	}
	return conv, nil
}

// GetOrCreateConversation returns the user's conversation with its ordered
// messages, or a new one when conversationID is empty or unknown to the user.
func (s *Service) GetOrCreateConversation(ctx context.Context, userID, conversationID string, mode store.Mode) (*store.Conversation, error) {
	if conversationID != "" {
		conv, err := s.repo.GetConversation(ctx, conversationID, userID)
		switch {
		case err == nil:
			msgs, err := s.repo.ListMessages(ctx, conv.ID)
			if err != nil {
				return nil, fmt.Errorf("load messages: %w", err)
			}
			conv.Messages = msgs
			return conv, nil
		case errors.Is(err, store.ErrNotFound):
			s.logger.Warn("conversation not found, starting a new one", map[string]any{"conversation_id": conversationID})
		default:
			return nil, fmt.Errorf("load conversation: %w", err)
		}
	}
	return s.CreateConversation(ctx, userID, mode, "")
}

// AddMessage appends a message. Non-string content is stored as JSON.
func (s *Service) AddMessage(ctx context.Context, conversationID string, role store.Role, content any) (*store.Message, error) {
	text, err := contentString(content)
	if err != nil {
		return nil, fmt.Errorf("encode message content: %w", err)
	}
	now := s.now()
	msg := &store.Message{
		ID:             s.newID(),
		ConversationID: conversationID,
		Role:           role,
		Content:        text,
		CreatedAt:      now,
	}
	if err := s.repo.AddMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("save message: %w", err)
	}
	if err := s.repo.TouchConversation(ctx, conversationID, now); err != nil {
		return nil, fmt.Errorf("touch conversation: %w", err)
	}
	return msg, nil
}

func contentString(content any) (string, error) {
	switch v := content.(type) {
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	}
	raw, err := json.Marshal(content)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// Conversation loads a conversation owned by userID with its messages.
// It returns store.ErrNotFound for unknown or foreign IDs.
func (s *Service) Conversation(ctx context.Context, userID, conversationID string) (*store.Conversation, error) {
	conv, err := s.repo.GetConversation(ctx, conversationID, userID)
	if err != nil {
		return nil, fmt.Errorf("load conversation: %w", err)
	}
	msgs, err := s.repo.ListMessages(ctx, conv.ID)
	if err != nil {
		return nil, fmt.Errorf("load messages: %w", err)
	}
	conv.Messages = msgs
	return conv, nil
}

// Messages returns the conversation's messages oldest first.
func (s *Service) Messages(ctx context.Context, conversationID string) ([]store.Message, error) {
	msgs, err := s.repo.ListMessages(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return msgs, nil
}

// UserConversations lists the user's conversations, most recently updated first.
func (s *Service) UserConversations(ctx context.Context, userID string, limit int) ([]*store.Conversation, error) {
	convs, err := s.repo.ListConversations(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	return convs, nil
}

// DeleteConversation removes a conversation owned by userID.
func (s *Service) DeleteConversation(ctx context.Context, conversationID, userID string) error {
	if err := s.repo.DeleteConversation(ctx, conversationID, userID); err != nil {
		return fmt.Errorf("delete conversation: %w", err)
	}
	return nil
}

// UpdateTitle renames a conversation.
func (s *Service) UpdateTitle(ctx context.Context, conversationID, title string) error {
	if err := s.repo.UpdateConversationTitle(ctx, conversationID, title); err != nil {
		return fmt.Errorf("update title: %w", err)
	}
	return nil
}

// MaybeUpdateTitle titles the conversation from input when messageCount is
// exactly 1, and reports whether it did.
func (s *Service) MaybeUpdateTitle(ctx context.Context, conversationID string, messageCount int, input string) (bool, error) {
	if messageCount != 1 {
		return false, nil
	}
	if err := s.UpdateTitle(ctx, conversationID, TitleFromInput(input)); err != nil {
		return false, err
	}
	return true, nil
}

// TitleFromInput keeps the first TitleMaxRunes runes, adding "..." when input is longer.
func TitleFromInput(input string) string {
	if utf8.RuneCountInString(input) <= TitleMaxRunes {
		return input
	}
	return string([]rune(input)[:TitleMaxRunes]) + "..."
}

// FormatForModel converts stored messages into gateway messages.
func FormatForModel(messages []store.Message) []llm.Message {
	out := make([]llm.Message, 0, len(messages))
	for _, m := range messages {
		role := llm.RoleUser
		if m.Role == store.RoleAssistant {
			role = llm.RoleAssistant
		}
		out = append(out, llm.Message{Role: role, Content: m.Content})
	}
	return out
}
