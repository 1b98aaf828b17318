// Package services – SettingsService
//
// Thin wrappers over bot-level configuration: the payment and shipping
// methods a bot accepts. The cart service consults these when validating
// customer choices; the admin surface manages them.
package services

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/vendobot/go-sales-backend/internal/domain"
	"github.com/vendobot/go-sales-backend/internal/repo"
)

// ErrMethodNameEmpty is returned when an admin upserts a method with a
// blank name.
var ErrMethodNameEmpty = errors.New("method name is empty")

// SettingsService manages a bot's configured payment and shipping methods.
type SettingsService struct {
	DB *gorm.DB
}

// NewSettingsService constructs a SettingsService.
func NewSettingsService(db *gorm.DB) *SettingsService {
	return &SettingsService{DB: db}
}

// PaymentMethods lists the bot's payment methods, ordered by name.
func (s *SettingsService) PaymentMethods(ctx context.Context, botID string) ([]domain.PaymentMethod, error) {
	return repo.ListPaymentMethods(ctx, s.DB, botID)
}

// ShippingMethods lists the bot's shipping methods, ordered by name.
func (s *SettingsService) ShippingMethods(ctx context.Context, botID string) ([]domain.ShippingMethod, error) {
	return repo.ListShippingMethods(ctx, s.DB, botID)
}

// UpsertPaymentMethod creates or updates a payment method. Names are
// lowercased so customer input ("Transferencia") matches configuration.
func (s *SettingsService) UpsertPaymentMethod(ctx context.Context, botID, name, instructions string) (*domain.PaymentMethod, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return nil, ErrMethodNameEmpty
	}
	return repo.UpsertPaymentMethod(ctx, s.DB, botID, name, strings.TrimSpace(instructions))
}

// DeletePaymentMethod removes a payment method by name.
func (s *SettingsService) DeletePaymentMethod(ctx context.Context, botID, name string) error {
	name = strings.ToLower(strings.TrimSpace(name))
	return repo.DeletePaymentMethod(ctx, s.DB, botID, name)
}

// UpsertShippingMethod creates or updates a shipping method. The well-known
// names "domicilio", "punto_medio" and "recoleccion" gain address semantics
// in the cart service; any other name is accepted as-is.
func (s *SettingsService) UpsertShippingMethod(ctx context.Context, botID, name, pickupAddress string) (*domain.ShippingMethod, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return nil, ErrMethodNameEmpty
	}
	return repo.UpsertShippingMethod(ctx, s.DB, botID, name, strings.TrimSpace(pickupAddress))
}

// DeleteShippingMethod removes a shipping method by name.
func (s *SettingsService) DeleteShippingMethod(ctx context.Context, botID, name string) error {
	name = strings.ToLower(strings.TrimSpace(name))
	return repo.DeleteShippingMethod(ctx, s.DB, botID, name)
}
