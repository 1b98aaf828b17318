// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Product
// model, including the conditional stock mutations that back checkout.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations.
// They follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition.
//
// Error semantics:
//   - When a product is not found, functions return gorm.ErrRecordNotFound
//     (also exported here as ErrNotFound for convenience).
//   - On DB errors (constraint violations, connectivity issues, etc.),
//     the raw gorm error is propagated.
//
// Stock semantics:
//   - DecrementStock is a single conditional UPDATE guarded by
//     "stock >= qty". Callers must verify RowsAffected == 1; an affected
//     count of 0 means a concurrent purchase won the race.
//   - IncrementStock is unconditional apart from product existence.
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

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// ErrInvalidOrder is returned by ListProductsPage for an unknown orderBy.
var ErrInvalidOrder = errors.New("invalid order_by")

// Product list orderings accepted by ListProductsPage.
const (
	OrderNameAsc     = "name_asc"
	OrderNameDesc    = "name_desc"
	OrderCreatedDesc = "created_desc"
	OrderUpdatedDesc = "updated_desc"
)

// CreateProduct inserts a new catalog row for botID. The SKU is stored as
// provided; callers normalize (uppercase/trim) before calling. A SKU the
// bot already uses yields ErrDuplicateKey.
func CreateProduct(ctx context.Context, db *gorm.DB, botID, sku, name, description string, priceCents int64, stock int) (*domain.Product, error) {
	p := &domain.Product{
		ID:          uuid.NewString(),
		BotID:       botID,
		SKU:         sku,
		Name:        name,
		Description: description,
		PriceCents:  priceCents,
		Stock:       stock,
		CreatedAt:   time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(p).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateKey
		}
		return nil, err
	}
	return p, nil
}

// FindProduct fetches a product by (botID, SKU), or ErrNotFound.
func FindProduct(ctx context.Context, db *gorm.DB, botID, sku string) (*domain.Product, error) {
	var p domain.Product
	err := db.WithContext(ctx).
		Where("bot_id = ? AND sku = ?", botID, sku).
		First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// FindProductByID fetches a product by its primary key scoped to botID.
func FindProductByID(ctx context.Context, db *gorm.DB, botID, id string) (*domain.Product, error) {
	var p domain.Product
	err := db.WithContext(ctx).
		Where("id = ? AND bot_id = ?", id, botID).
		First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// DecrementStock atomically subtracts qty from a product's stock, but only
// when the current stock covers it. It returns the number of affected rows:
// exactly 1 on success, 0 when the product is missing or stock is short.
// Never read-then-write around this; the WHERE guard is the whole point.
func DecrementStock(ctx context.Context, db *gorm.DB, productID, botID string, qty int) (int64, error) {
	res := db.WithContext(ctx).
		Model(&domain.Product{}).
		Where("id = ? AND bot_id = ? AND stock >= ?", productID, botID, qty).
		UpdateColumn("stock", gorm.Expr("stock - ?", qty))
	return res.RowsAffected, res.Error
}

// IncrementStock adds qty back to a product's stock (cancellation restock).
// Returns the number of affected rows (0 when the product is missing).
func IncrementStock(ctx context.Context, db *gorm.DB, productID, botID string, qty int) (int64, error) {
	res := db.WithContext(ctx).
		Model(&domain.Product{}).
		Where("id = ? AND bot_id = ?", productID, botID).
		UpdateColumn("stock", gorm.Expr("stock + ?", qty))
	return res.RowsAffected, res.Error
}

// SearchProducts performs a best-effort LIKE match over SKU, name, and
// description. It may return an empty slice; callers fall back to in-memory
// keyword ranking (see internal/search) in that case.
func SearchProducts(ctx context.Context, db *gorm.DB, botID, query string, limit int, inStockOnly bool) ([]domain.Product, error) {
	if limit <= 0 {
		limit = 8
	}
	like := "%" + strings.TrimSpace(query) + "%"
	q := db.WithContext(ctx).
		Where("bot_id = ?", botID).
		Where("sku LIKE ? OR name LIKE ? OR description LIKE ?", like, like, like)
	if inStockOnly {
		q = q.Where("stock > 0")
	}
	var out []domain.Product
	err := q.Order("name asc").Limit(limit).Find(&out).Error
	return out, err
}

// ListAllProducts returns every product for a bot ordered by name. Intended
// for the in-memory search index and small catalogs only.
func ListAllProducts(ctx context.Context, db *gorm.DB, botID string) ([]domain.Product, error) {
	var out []domain.Product
	err := db.WithContext(ctx).
		Where("bot_id = ?", botID).
		Order("name asc").
		Find(&out).Error
	return out, err
}

// ListProductsPage returns one keyset-paginated page of products plus a
// hasMore probe. afterID, when non-empty, names the last row of the previous
// page; ordering is by the requested column with ID as tiebreaker so the
// cursor is stable under concurrent writes.
//
// hasMore is true only when at least one row exists beyond the returned
// page (the query fetches limit+1 rows and trims).
func ListProductsPage(ctx context.Context, db *gorm.DB, botID, afterID, orderBy string, limit int, inStockOnly bool) (items []domain.Product, hasMore bool, err error) {
	if limit <= 0 {
		limit = 20
	}

	col, dir := "name", "ASC"
	switch orderBy {
	case OrderNameAsc, "":
	case OrderNameDesc:
		dir = "DESC"
	case OrderCreatedDesc:
		col, dir = "created_at", "DESC"
	case OrderUpdatedDesc:
		col, dir = "updated_at", "DESC"
	default:
		return nil, false, ErrInvalidOrder
	}

	q := db.WithContext(ctx).Where("bot_id = ?", botID)
	if inStockOnly {
		q = q.Where("stock > 0")
	}

	if afterID != "" {
		anchor, aerr := FindProductByID(ctx, db, botID, afterID)
		if aerr != nil {
			return nil, false, aerr
		}
		var anchorVal any
		switch col {
		case "name":
			anchorVal = anchor.Name
		case "created_at":
			anchorVal = anchor.CreatedAt
		case "updated_at":
			anchorVal = anchor.UpdatedAt
		}
		cmp := ">"
		if dir == "DESC" {
			cmp = "<"
		}
		q = q.Where("("+col+" "+cmp+" ?) OR ("+col+" = ? AND id > ?)", anchorVal, anchorVal, anchor.ID)
	}

	err = q.Order(col + " " + dir + ", id ASC").Limit(limit + 1).Find(&items).Error
	if err != nil {
		return nil, false, err
	}
	if len(items) > limit {
		items = items[:limit]
		hasMore = true
	}
	return items, hasMore, nil
}
