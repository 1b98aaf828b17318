// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Cart and
// CartItem models.
//
// At most one cart with status=open should exist per (bot_id, chat_id);
// this invariant is enforced by FindOpenCart + CreateCart composed in the
// service layer, not by a DB constraint. Callers must serialize cart
// creation per chat.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/vendobot/go-sales-backend/internal/domain"
)

// FindOpenCart returns the open cart for (botID, chatID) with its items
// preloaded, or ErrNotFound.
func FindOpenCart(ctx context.Context, db *gorm.DB, botID, chatID string) (*domain.Cart, error) {
	var c domain.Cart
	err := db.WithContext(ctx).
		Preload("Items").
		Where("bot_id = ? AND chat_id = ? AND status = ?", botID, chatID, domain.CartStatusOpen).
		First(&c).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// CreateCart inserts a new open cart with a zero subtotal.
func CreateCart(ctx context.Context, db *gorm.DB, botID, chatID string) (*domain.Cart, error) {
	c := &domain.Cart{
		ID:        uuid.NewString(),
		BotID:     botID,
		ChatID:    chatID,
		Status:    domain.CartStatusOpen,
		CreatedAt: time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(c).Error; err != nil {
		return nil, err
	}
	c.Items = []domain.CartItem{}
	return c, nil
}

// GetCart fetches a cart by ID with items preloaded.
func GetCart(ctx context.Context, db *gorm.DB, id string) (*domain.Cart, error) {
	var c domain.Cart
	err := db.WithContext(ctx).Preload("Items").Where("id = ?", id).First(&c).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// FindCartItem returns the line for (cartID, productID), or ErrNotFound.
func FindCartItem(ctx context.Context, db *gorm.DB, cartID, productID string) (*domain.CartItem, error) {
	var it domain.CartItem
	err := db.WithContext(ctx).
		Where("cart_id = ? AND product_id = ?", cartID, productID).
		First(&it).Error
	if err != nil {
		return nil, err
	}
	return &it, nil
}

// CreateCartItem inserts a new line with fresh name/price snapshots.
func CreateCartItem(ctx context.Context, db *gorm.DB, cartID string, p *domain.Product, qty int) (*domain.CartItem, error) {
	it := &domain.CartItem{
		ID:            uuid.NewString(),
		CartID:        cartID,
		ProductID:     p.ID,
		SKU:           p.SKU,
		NameSnapshot:  p.Name,
		PriceSnapshot: p.PriceCents,
		Qty:           qty,
		CreatedAt:     time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(it).Error; err != nil {
		return nil, err
	}
	return it, nil
}

// UpdateCartItem replaces a line's quantity and refreshes its snapshots
// from the current catalog row.
func UpdateCartItem(ctx context.Context, db *gorm.DB, itemID string, p *domain.Product, qty int) error {
	res := db.WithContext(ctx).
		Model(&domain.CartItem{}).
		Where("id = ?", itemID).
		Updates(map[string]any{
			"qty":            qty,
			"name_snapshot":  p.Name,
			"price_snapshot": p.PriceCents,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// UpdateCartFields applies a partial update to a cart (subtotal, payment,
// shipping, contact columns). It returns ErrNotFound when the cart is gone.
func UpdateCartFields(ctx context.Context, db *gorm.DB, cartID string, fields map[string]any) error {
	res := db.WithContext(ctx).
		Model(&domain.Cart{}).
		Where("id = ?", cartID).
		Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// LockCart transitions a cart from open to locked. The WHERE clause makes
// the transition conditional: 0 affected rows means the cart was already
// locked (or missing), which callers treat as a conflict.
func LockCart(ctx context.Context, db *gorm.DB, cartID string) (int64, error) {
	res := db.WithContext(ctx).
		Model(&domain.Cart{}).
		Where("id = ? AND status = ?", cartID, domain.CartStatusOpen).
		Update("status", domain.CartStatusLocked)
	return res.RowsAffected, res.Error
}

// LockCartsForChat locks every open cart of a chat. Used when a chat is
// deleted: carts are archived (locked), never deleted, because sales may
// still reference them.
func LockCartsForChat(ctx context.Context, db *gorm.DB, botID, chatID string) (int64, error) {
	res := db.WithContext(ctx).
		Model(&domain.Cart{}).
		Where("bot_id = ? AND chat_id = ? AND status = ?", botID, chatID, domain.CartStatusOpen).
		Update("status", domain.CartStatusLocked)
	return res.RowsAffected, res.Error
}
