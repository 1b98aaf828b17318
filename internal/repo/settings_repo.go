// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for bot-level
// settings: configured payment and shipping methods.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/vendobot/go-sales-backend/internal/domain"
)

// ListPaymentMethods returns the payment methods configured for a bot,
// ordered by name.
func ListPaymentMethods(ctx context.Context, db *gorm.DB, botID string) ([]domain.PaymentMethod, error) {
	var out []domain.PaymentMethod
	err := db.WithContext(ctx).
		Where("bot_id = ?", botID).
		Order("name asc").
		Find(&out).Error
	return out, err
}

// UpsertPaymentMethod creates or updates a payment method by (botID, name).
func UpsertPaymentMethod(ctx context.Context, db *gorm.DB, botID, name, instructions string) (*domain.PaymentMethod, error) {
	var existing domain.PaymentMethod
	err := db.WithContext(ctx).
		Where("bot_id = ? AND name = ?", botID, name).
		First(&existing).Error
	switch {
	case err == nil:
		existing.Instructions = instructions
		if uerr := db.WithContext(ctx).Save(&existing).Error; uerr != nil {
			return nil, uerr
		}
		return &existing, nil
	case err == gorm.ErrRecordNotFound:
		pm := &domain.PaymentMethod{
			ID:           uuid.NewString(),
			BotID:        botID,
			Name:         name,
			Instructions: instructions,
			CreatedAt:    time.Now().UTC(),
		}
		if cerr := db.WithContext(ctx).Create(pm).Error; cerr != nil {
			return nil, cerr
		}
		return pm, nil
	default:
		return nil, err
	}
}

// DeletePaymentMethod removes a payment method by (botID, name).
// Returns ErrNotFound when nothing matched.
func DeletePaymentMethod(ctx context.Context, db *gorm.DB, botID, name string) error {
	res := db.WithContext(ctx).
		Where("bot_id = ? AND name = ?", botID, name).
		Delete(&domain.PaymentMethod{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// ListShippingMethods returns the shipping methods configured for a bot,
// ordered by name.
func ListShippingMethods(ctx context.Context, db *gorm.DB, botID string) ([]domain.ShippingMethod, error) {
	var out []domain.ShippingMethod
	err := db.WithContext(ctx).
		Where("bot_id = ?", botID).
		Order("name asc").
		Find(&out).Error
	return out, err
}

// UpsertShippingMethod creates or updates a shipping method by (botID, name).
func UpsertShippingMethod(ctx context.Context, db *gorm.DB, botID, name, pickupAddress string) (*domain.ShippingMethod, error) {
	var existing domain.ShippingMethod
	err := db.WithContext(ctx).
		Where("bot_id = ? AND name = ?", botID, name).
		First(&existing).Error
	switch {
	case err == nil:
		existing.PickupAddress = pickupAddress
		if uerr := db.WithContext(ctx).Save(&existing).Error; uerr != nil {
			return nil, uerr
		}
		return &existing, nil
	case err == gorm.ErrRecordNotFound:
		sm := &domain.ShippingMethod{
			ID:            uuid.NewString(),
			BotID:         botID,
			Name:          name,
			PickupAddress: pickupAddress,
			CreatedAt:     time.Now().UTC(),
		}
		if cerr := db.WithContext(ctx).Create(sm).Error; cerr != nil {
			return nil, cerr
		}
		return sm, nil
	default:
		return nil, err
	}
}

// DeleteShippingMethod removes a shipping method by (botID, name).
func DeleteShippingMethod(ctx context.Context, db *gorm.DB, botID, name string) error {
	res := db.WithContext(ctx).
		Where("bot_id = ? AND name = ?", botID, name).
		Delete(&domain.ShippingMethod{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
