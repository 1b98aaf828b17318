// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Sale and
// SaleItem models plus the append-only inventory ledger.
//
// Sale state transitions are expressed as conditional updates: the WHERE
// clause names the expected current status, and 0 affected rows means the
// transition was illegal or raced. No other mutation of sales is offered.
package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/vendobot/go-sales-backend/internal/domain"
)

// ErrDuplicateKey indicates a unique-constraint violation, e.g. two sales
// racing to claim the same (chat_id, idempotency_key) pair.
var ErrDuplicateKey = errors.New("duplicate key")

// isUniqueViolation detects unique-constraint failures across the error
// shapes the sqlite driver produces.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	// glebarez/sqlite often returns plain-text errors for UNIQUE violations.
	low := strings.ToLower(err.Error())
	return strings.Contains(low, "unique constraint failed") ||
		strings.Contains(low, "constraint failed: unique")
}

// CreateSale inserts a sale row together with its item snapshots. It is
// meant to run inside a transaction; the caller composes it with stock
// decrements and ledger appends so that all writes commit or none do.
func CreateSale(ctx context.Context, db *gorm.DB, sale *domain.Sale, items []domain.SaleItem) (*domain.Sale, error) {
	if sale.ID == "" {
		sale.ID = uuid.NewString()
	}
	sale.CreatedAt = time.Now().UTC()
	if err := db.WithContext(ctx).Create(sale).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateKey
		}
		return nil, err
	}
	for i := range items {
		items[i].ID = uuid.NewString()
		items[i].SaleID = sale.ID
		items[i].CreatedAt = sale.CreatedAt
		if err := db.WithContext(ctx).Create(&items[i]).Error; err != nil {
			return nil, err
		}
	}
	sale.Items = items
	return sale, nil
}

// GetSale fetches a sale by ID scoped to botID, items preloaded.
func GetSale(ctx context.Context, db *gorm.DB, botID, id string) (*domain.Sale, error) {
	var s domain.Sale
	err := db.WithContext(ctx).
		Preload("Items").
		Where("id = ? AND bot_id = ?", id, botID).
		First(&s).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// FindSaleByIdempotencyKey returns the sale previously created for
// (chatID, key), or ErrNotFound. Used for checkout replay detection.
func FindSaleByIdempotencyKey(ctx context.Context, db *gorm.DB, chatID, key string) (*domain.Sale, error) {
	var s domain.Sale
	err := db.WithContext(ctx).
		Preload("Items").
		Where("chat_id = ? AND idempotency_key = ?", chatID, key).
		First(&s).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// TransitionSaleStatus moves a sale from one status to another, atomically,
// scoped to botID. It returns the number of affected rows: 1 on success, 0
// when the sale is missing, belongs to another bot, or is not in the
// expected source status.
func TransitionSaleStatus(ctx context.Context, db *gorm.DB, botID, saleID, from, to string) (int64, error) {
	res := db.WithContext(ctx).
		Model(&domain.Sale{}).
		Where("id = ? AND bot_id = ? AND status = ?", saleID, botID, from).
		Update("status", to)
	return res.RowsAffected, res.Error
}

// ListSalesPage returns a page of a bot's sales, most recent first.
func ListSalesPage(ctx context.Context, db *gorm.DB, botID string, offset, limit int) ([]domain.Sale, error) {
	var out []domain.Sale
	err := db.WithContext(ctx).
		Preload("Items").
		Where("bot_id = ?", botID).
		Order("created_at desc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// CountSales returns the total number of sales for a bot.
func CountSales(ctx context.Context, db *gorm.DB, botID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.Sale{}).
		Where("bot_id = ?", botID).
		Count(&total).Error
	return total, err
}

// AppendLedgerEntry records one stock delta in the append-only ledger.
// There is deliberately no update or delete counterpart.
func AppendLedgerEntry(ctx context.Context, db *gorm.DB, botID, productID, saleID string, delta int, reason string) (*domain.LedgerEntry, error) {
	e := &domain.LedgerEntry{
		ID:        uuid.NewString(),
		BotID:     botID,
		ProductID: productID,
		SaleID:    saleID,
		Delta:     delta,
		Reason:    reason,
		CreatedAt: time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(e).Error; err != nil {
		return nil, err
	}
	return e, nil
}

// ListLedgerForSale returns the ledger entries referencing a sale, oldest
// first. Audit/read-only.
func ListLedgerForSale(ctx context.Context, db *gorm.DB, saleID string) ([]domain.LedgerEntry, error) {
	var out []domain.LedgerEntry
	err := db.WithContext(ctx).
		Where("sale_id = ?", saleID).
		Order("created_at asc, id asc").
		Find(&out).Error
	return out, err
}
