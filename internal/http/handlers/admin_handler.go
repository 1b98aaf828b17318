// Admin HTTP handlers.
//
// This file exposes the seller-facing management surface:
//   - POST   /admin/products                        (load stock)
//   - GET    /admin/products/{id}/ledger            (stock ledger summary)
//   - GET    /admin/sales                           (list, paginated)
//   - POST   /admin/sales/{id}/cancel               (cancel + restock)
//   - POST   /admin/sales/{id}/paid                 (confirm payment)
//   - GET    /admin/stats                           (sales summary)
//   - GET    /admin/settings/payment-methods        (list)
//   - PUT    /admin/settings/payment-methods        (upsert)
//   - DELETE /admin/settings/payment-methods/{name} (remove)
//   - GET    /admin/settings/shipping-methods       (list)
//   - PUT    /admin/settings/shipping-methods       (upsert)
//   - DELETE /admin/settings/shipping-methods/{name}(remove)
//
// The whole group is gated by RequireAdmin, a shared-token check. An empty
// configured token disables the surface instead of leaving it open.
package handlers

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/vendobot/go-sales-backend/internal/domain"
	"github.com/vendobot/go-sales-backend/internal/repo"
	"github.com/vendobot/go-sales-backend/internal/services"
)

//
// Auth
//

// headerAdminToken carries the shared admin token on management requests.
const headerAdminToken = "X-Admin-Token"

// RequireAdmin returns a middleware that gates the admin route group on the
// configured shared token. Comparison is constant-time. When no token is
// configured the surface is disabled and every request gets a 503, so a
// missing env var cannot silently expose management endpoints.
func (h *Handlers) RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if h.adminToken == "" {
			fail(c, http.StatusServiceUnavailable, ErrCodeUnavailable, "admin surface disabled")
			return
		}

		tok := strings.TrimSpace(c.GetHeader(headerAdminToken))
		if tok == "" {
			if auth := c.GetHeader("Authorization"); strings.HasPrefix(auth, "Bearer ") {
				tok = strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
			}
		}

		if subtle.ConstantTimeCompare([]byte(tok), []byte(h.adminToken)) != 1 {
			fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "invalid admin token")
			return
		}
		c.Next()
	}
}

//
// DTOs
//

// CreateProductRequest is the JSON payload for loading a product into the
// catalog.
type CreateProductRequest struct {
	SKU         string `json:"sku"         binding:"required,min=1,max=64"`
	Name        string `json:"name"        binding:"required,min=1,max=255"`
	Description string `json:"description"`
	PriceCents  int64  `json:"price_cents" binding:"min=0"`
	Stock       int    `json:"stock"       binding:"min=0"`
}

// ListSalesResponse wraps a page of sales and pagination information.
type ListSalesResponse struct {
	Sales      []domain.Sale `json:"sales"`
	Pagination Pagination    `json:"pagination"`
}

// StatsResponse summarizes the bot's sales activity.
type StatsResponse struct {
	TotalSales    int64      `json:"total_sales"`
	LastUpdatedAt *time.Time `json:"last_updated_at,omitempty"`
}

// UpsertPaymentMethodRequest configures one way to pay.
type UpsertPaymentMethodRequest struct {
	Name         string `json:"name"         binding:"required,min=1,max=64"`
	Instructions string `json:"instructions"`
}

// UpsertShippingMethodRequest configures one delivery option.
type UpsertShippingMethodRequest struct {
	Name          string `json:"name"           binding:"required,min=1,max=64"`
	PickupAddress string `json:"pickup_address"`
}

//
// Catalog management
//

// CreateProduct loads a new product into the bot's catalog.
func (h *Handlers) CreateProduct(c *gin.Context) {
	var req CreateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	p, err := h.catalogSvc.CreateProduct(c.Request.Context(), botID(c),
		req.SKU, req.Name, req.Description, req.PriceCents, req.Stock)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrDuplicateSKU):
			fail(c, http.StatusConflict, ErrCodeConflict, "sku already exists")
		case errors.Is(err, services.ErrInvalidProduct):
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid product payload")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeCreateFailed, err.Error())
		}
		return
	}

	ok(c, http.StatusCreated, p)
}

// ProductLedgerResponse summarizes the stock ledger of one product.
type ProductLedgerResponse struct {
	ProductID string `json:"product_id"`
	Entries   int64  `json:"entries"`
	NetDelta  int64  `json:"net_delta"`
}

// ProductLedger returns the ledger entry count and net stock delta recorded
// for one of the bot's products. Ledger rows are keyed by product only, so
// the handler resolves the product through the bot-scoped catalog first.
func (h *Handlers) ProductLedger(c *gin.Context) {
	ctx := c.Request.Context()
	productID := strings.TrimSpace(c.Param("id"))
	if productID == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "product id required")
		return
	}

	db := h.salesDB()
	if db == nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "ledger unavailable")
		return
	}

	if _, err := repo.FindProductByID(ctx, db, botID(c), productID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "product not found")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}

	entries, net, err := repo.LedgerStats(ctx, db, productID)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}

	ok(c, http.StatusOK, ProductLedgerResponse{ProductID: productID, Entries: entries, NetDelta: net})
}

//
// Sales management
//

// salesDB reaches into the concrete sales service for a DB handle, used by
// the read-only listing and stats endpoints that have no service method.
func (h *Handlers) salesDB() *gorm.DB {
	if svc, okSvc := h.salesSvc.(*services.CartService); okSvc {
		return svc.DB
	}
	return nil
}

// ListSales returns a page of the bot's sales, most recent first.
func (h *Handlers) ListSales(c *gin.Context) {
	ctx := c.Request.Context()
	bot := botID(c)
	page, pageSize := clampPagination(c)

	db := h.salesDB()
	if db == nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "sales listing unavailable")
		return
	}

	total, err := repo.CountSales(ctx, db, bot)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}
	items, err := repo.ListSalesPage(ctx, db, bot, (page-1)*pageSize, pageSize)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}

	ok(c, http.StatusOK, ListSalesResponse{
		Sales:      items,
		Pagination: pageMeta(page, pageSize, total),
	})
}

// CancelSale cancels a pending sale and restocks its items.
func (h *Handlers) CancelSale(c *gin.Context) {
	h.transitionSale(c, h.salesSvc.CancelSale)
}

// MarkSalePaid marks a pending sale as paid.
func (h *Handlers) MarkSalePaid(c *gin.Context) {
	h.transitionSale(c, h.salesSvc.MarkPaid)
}

// transitionSale shares the plumbing between the two status transitions.
func (h *Handlers) transitionSale(c *gin.Context, op func(ctx context.Context, botID, saleID string) (*domain.Sale, error)) {
	saleID := strings.TrimSpace(c.Param("id"))
	if saleID == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "sale id required")
		return
	}

	sale, err := op(c.Request.Context(), botID(c), saleID)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrSaleNotFound):
			fail(c, http.StatusNotFound, ErrCodeNotFound, "sale not found")
		case errors.Is(err, services.ErrIllegalTransition):
			fail(c, http.StatusConflict, ErrCodeConflict, "sale is not pending")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		}
		return
	}

	ok(c, http.StatusOK, sale)
}

// Stats returns a summary of the bot's sales activity.
func (h *Handlers) Stats(c *gin.Context) {
	db := h.salesDB()
	if db == nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "stats unavailable")
		return
	}

	count, maxTS, err := repo.SalesStats(c.Request.Context(), db, botID(c))
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}

	ok(c, http.StatusOK, StatsResponse{TotalSales: count, LastUpdatedAt: maxTS})
}

//
// Settings management
//

// ListPaymentMethods returns the bot's configured payment methods.
func (h *Handlers) ListPaymentMethods(c *gin.Context) {
	methods, err := h.settingsSvc.PaymentMethods(c.Request.Context(), botID(c))
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}
	ok(c, http.StatusOK, gin.H{"payment_methods": methods})
}

// UpsertPaymentMethod creates or updates one payment method by name.
func (h *Handlers) UpsertPaymentMethod(c *gin.Context) {
	var req UpsertPaymentMethodRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	m, err := h.settingsSvc.UpsertPaymentMethod(c.Request.Context(), botID(c), req.Name, req.Instructions)
	if err != nil {
		if errors.Is(err, services.ErrMethodNameEmpty) {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "method name required")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, m)
}

// DeletePaymentMethod removes one payment method by name.
func (h *Handlers) DeletePaymentMethod(c *gin.Context) {
	name := strings.TrimSpace(c.Param("name"))
	if err := h.settingsSvc.DeletePaymentMethod(c.Request.Context(), botID(c), name); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "payment method not found")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	noContent(c)
}

// ListShippingMethods returns the bot's configured shipping methods.
func (h *Handlers) ListShippingMethods(c *gin.Context) {
	methods, err := h.settingsSvc.ShippingMethods(c.Request.Context(), botID(c))
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}
	ok(c, http.StatusOK, gin.H{"shipping_methods": methods})
}

// UpsertShippingMethod creates or updates one shipping method by name.
func (h *Handlers) UpsertShippingMethod(c *gin.Context) {
	var req UpsertShippingMethodRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	m, err := h.settingsSvc.UpsertShippingMethod(c.Request.Context(), botID(c), req.Name, req.PickupAddress)
	if err != nil {
		if errors.Is(err, services.ErrMethodNameEmpty) {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "method name required")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, m)
}

// DeleteShippingMethod removes one shipping method by name.
func (h *Handlers) DeleteShippingMethod(c *gin.Context) {
	name := strings.TrimSpace(c.Param("name"))
	if err := h.settingsSvc.DeleteShippingMethod(c.Request.Context(), botID(c), name); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "shipping method not found")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	noContent(c)
}
