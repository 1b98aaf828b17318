// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Chat and
// Message models.
//
// Chats are keyed by the messaging channel's conversation identifier, so
// EnsureChat accepts the ID rather than generating one. Deleting a chat
// cascades to its messages; open carts are archived separately (see
// LockCartsForChat in cart_repo.go).
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/vendobot/go-sales-backend/internal/domain"
)

// EnsureChat returns the chat with the given ID, creating it when absent.
func EnsureChat(ctx context.Context, db *gorm.DB, botID, chatID string) (*domain.Chat, error) {
	var c domain.Chat
	err := db.WithContext(ctx).
		Where("id = ? AND bot_id = ?", chatID, botID).
		First(&c).Error
	if err == nil {
		return &c, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, err
	}
	c = domain.Chat{
		ID:        chatID,
		BotID:     botID,
		CreatedAt: time.Now().UTC(),
	}
	if cerr := db.WithContext(ctx).Create(&c).Error; cerr != nil {
		return nil, cerr
	}
	return &c, nil
}

// GetChat fetches a chat by ID scoped to botID, or ErrNotFound.
func GetChat(ctx context.Context, db *gorm.DB, botID, chatID string) (*domain.Chat, error) {
	var c domain.Chat
	err := db.WithContext(ctx).
		Where("id = ? AND bot_id = ?", chatID, botID).
		First(&c).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ListChatsPage returns a page of a bot's chats, most recent first.
func ListChatsPage(ctx context.Context, db *gorm.DB, botID string, offset, limit int) ([]domain.Chat, error) {
	var out []domain.Chat
	err := db.WithContext(ctx).
		Where("bot_id = ?", botID).
		Order("created_at desc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// CountChats returns the total number of chats for a bot.
func CountChats(ctx context.Context, db *gorm.DB, botID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.Chat{}).
		Where("bot_id = ?", botID).
		Count(&total).Error
	return total, err
}

// DeleteChat soft-deletes a chat and its messages. Returns ErrNotFound when
// the chat does not exist.
func DeleteChat(ctx context.Context, db *gorm.DB, botID, chatID string) error {
	res := db.WithContext(ctx).
		Where("id = ? AND bot_id = ?", chatID, botID).
		Delete(&domain.Chat{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return db.WithContext(ctx).
		Where("chat_id = ?", chatID).
		Delete(&domain.Message{}).Error
}

// CreateMessage inserts a new message row.
func CreateMessage(db *gorm.DB, chatID, role, content string) (*domain.Message, error) {
	m := &domain.Message{
		ID:        uuid.NewString(),
		ChatID:    chatID,
		Role:      role,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
	return m, db.Create(m).Error
}

// ListMessages returns messages ordered deterministically (CreatedAt ASC, ID ASC).
func ListMessages(db *gorm.DB, chatID string, limit int) ([]domain.Message, error) {
	var out []domain.Message
	q := db.Where("chat_id = ?", chatID).Order("created_at ASC, id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&out).Error
	return out, err
}

// CountMessages uses a raw COUNT so a missing table surfaces as an error.
func CountMessages(db *gorm.DB, chatID string) (int64, error) {
	var total int64
	err := db.Raw("SELECT COUNT(*) FROM messages WHERE chat_id = ?", chatID).Scan(&total).Error
	return total, err
}

// ListMessagesPage returns a paginated slice ordered (CreatedAt ASC, ID ASC).
func ListMessagesPage(db *gorm.DB, chatID string, offset, limit int) ([]domain.Message, error) {
	var out []domain.Message
	err := db.
		Where("chat_id = ?", chatID).
		Order("created_at ASC, id ASC").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}
