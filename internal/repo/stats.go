// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides small aggregate/statistics queries used
// by the admin surface. Each function is context-aware and safe to call from
// services or handlers.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/vendobot/go-sales-backend/internal/domain"
)

// SalesStats returns aggregate metadata for a bot's sales: the total number
// of rows and the maximum UpdatedAt timestamp among those rows. When the bot
// has no sales, the returned count is 0 and maxUpdatedAt is nil.
func SalesStats(ctx context.Context, db *gorm.DB, botID string) (count int64, maxUpdatedAt *time.Time, err error) {
	q := db.WithContext(ctx).Model(&domain.Sale{}).Where("bot_id = ?", botID)

	if err = q.Count(&count).Error; err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}

	// Get latest updated_at (avoid MAX() -> TEXT in SQLite)
	var row struct {
		UpdatedAt time.Time
	}
	if err = q.Select("updated_at").Order("updated_at DESC").Limit(1).Scan(&row).Error; err != nil {
		return 0, nil, err
	}
	return count, &row.UpdatedAt, nil
}

// LedgerStats returns the number of ledger entries and the net stock delta
// recorded for a product. Audit/reporting only.
func LedgerStats(ctx context.Context, db *gorm.DB, productID string) (entries int64, netDelta int64, err error) {
	q := db.WithContext(ctx).Model(&domain.LedgerEntry{}).Where("product_id = ?", productID)

	if err = q.Count(&entries).Error; err != nil {
		return 0, 0, err
	}
	if entries == 0 {
		return 0, 0, nil
	}

	var row struct {
		Total int64
	}
	if err = q.Select("COALESCE(SUM(delta),0) AS total").Scan(&row).Error; err != nil {
		return 0, 0, err
	}
	return entries, row.Total, nil
}
