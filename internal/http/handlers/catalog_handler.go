// Catalog HTTP handlers.
//
// This file exposes the public, read-only catalog listing:
//   - GET /products   (keyset-paginated, cursor via after_id)
//
// The listing uses cursor pagination instead of page numbers because the
// catalog is also browsed by storefront widgets that poll for changes;
// keyset cursors stay stable while sellers insert products.
package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/vendobot/go-sales-backend/internal/domain"
	"github.com/vendobot/go-sales-backend/internal/repo"
	"github.com/vendobot/go-sales-backend/internal/services"
	"github.com/vendobot/go-sales-backend/internal/sysutil"
	"github.com/vendobot/go-sales-backend/internal/utils"
)

// ListProductsResponse wraps one keyset page of the catalog.
type ListProductsResponse struct {
	Products    []domain.Product `json:"products"`
	NextAfterID string           `json:"next_after_id,omitempty"`
	HasMore     bool             `json:"has_more"`
}

// ListProducts returns one page of the bot's catalog.
//
// Query parameters:
//   - after_id:  cursor from the previous page's next_after_id (optional)
//   - limit:     page size, 1..100, default 20
//   - order_by:  name_asc (default), name_desc, created_desc, updated_desc
//   - in_stock:  truthy value restricts results to stock > 0
func (h *Handlers) ListProducts(c *gin.Context) {
	const maxLimit = 100

	limit := utils.AtoiDefault(c.Query("limit"), 20)
	if limit < 1 {
		limit = 1
	}
	if limit > maxLimit {
		limit = maxLimit
	}

	afterID := strings.TrimSpace(c.Query("after_id"))
	orderBy := strings.TrimSpace(c.Query("order_by"))
	inStock := sysutil.IsTruthy(c.Query("in_stock"))

	page, err := h.catalogSvc.ListPage(c.Request.Context(), botID(c), afterID, orderBy, limit, inStock)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrProductNotFound):
			// Stale cursor: the anchor row is gone.
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "unknown after_id cursor")
		case errors.Is(err, repo.ErrInvalidOrder):
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "unknown order_by value")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		}
		return
	}

	ok(c, http.StatusOK, ListProductsResponse{
		Products:    page.Items,
		NextAfterID: page.NextAfterID,
		HasMore:     page.HasMore,
	})
}
