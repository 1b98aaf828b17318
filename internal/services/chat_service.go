// Package services – ChatService
//
// This file implements ChatService, which owns conversation lifecycle. Chat
// IDs come from the messaging channel (one conversation per customer), so
// creation is ensure-style rather than generate-style.
//
// Deleting a chat removes the conversation and its messages but archives
// commerce state instead of destroying it: open carts are locked, and sales
// plus ledger entries are kept untouched as financial records.
package services

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/vendobot/go-sales-backend/internal/domain"
	"github.com/vendobot/go-sales-backend/internal/repo"
)

// ChatService manages conversations for one bot.
type ChatService struct {
	DB *gorm.DB
}

// NewChatService constructs a ChatService.
func NewChatService(db *gorm.DB) *ChatService {
	return &ChatService{DB: db}
}

// Ensure returns the chat with the given channel-assigned ID, creating it
// on first contact.
func (s *ChatService) Ensure(ctx context.Context, botID, chatID string) (*domain.Chat, error) {
	chatID = strings.TrimSpace(chatID)
	if chatID == "" {
		return nil, ErrChatNotFound
	}
	return repo.EnsureChat(ctx, s.DB, botID, chatID)
}

// Get fetches a chat, or ErrChatNotFound.
func (s *ChatService) Get(ctx context.Context, botID, chatID string) (*domain.Chat, error) {
	c, err := repo.GetChat(ctx, s.DB, botID, chatID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrChatNotFound
		}
		return nil, err
	}
	return c, nil
}

// ListPage returns paginated chats for a bot, most recent first, plus the
// total count.
func (s *ChatService) ListPage(ctx context.Context, botID string, page, pageSize int) ([]domain.Chat, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	total, err := repo.CountChats(ctx, s.DB, botID)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.Chat{}, 0, nil
	}
	items, err := repo.ListChatsPage(ctx, s.DB, botID, (page-1)*pageSize, pageSize)
	return items, total, err
}

// Delete removes a chat and its messages and locks any open cart the chat
// still had. Sales and ledger entries survive; they are financial records,
// not conversation state.
func (s *ChatService) Delete(ctx context.Context, botID, chatID string) error {
	tr := otel.Tracer("services/ChatService")
	ctx, span := tr.Start(ctx, "Delete",
		trace.WithAttributes(
			attribute.String("bot.id", botID),
			attribute.String("chat.id", chatID),
		),
	)
	defer span.End()

	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := repo.DeleteChat(ctx, tx, botID, chatID); err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return ErrChatNotFound
			}
			return err
		}
		_, err := repo.LockCartsForChat(ctx, tx, botID, chatID)
		return err
	})
}
