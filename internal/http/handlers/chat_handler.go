// Chat HTTP handlers.
//
// This file exposes REST endpoints for conversation resources:
//   - GET    /chats        (list, paginated)
//   - GET    /chats/{id}   (fetch one conversation)
//   - DELETE /chats/{id}   (archive a conversation)
//
// Handlers are transport-thin: they validate input, call application services,
// and translate results into HTTP responses. Conversation state itself is
// created lazily by the message endpoint; there is no explicit "create chat"
// call because chat IDs arrive from the messaging channel, not from clients
// of this API.
package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/vendobot/go-sales-backend/internal/domain"
	"github.com/vendobot/go-sales-backend/internal/http/middleware"
	"github.com/vendobot/go-sales-backend/internal/services"
	"github.com/vendobot/go-sales-backend/internal/sysutil"
	"github.com/vendobot/go-sales-backend/internal/utils"
)

//
// Service contracts (context-aware)
//

// ChatService defines conversation lifecycle operations consumed by HTTP
// handlers.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type ChatService interface {
	// Get fetches a single chat belonging to botID.
	Get(ctx context.Context, botID, chatID string) (*domain.Chat, error)
	// ListPage returns a page of the bot's chats and the total count.
	ListPage(ctx context.Context, botID string, page, pageSize int) ([]domain.Chat, int64, error)
	// Delete archives a chat, its messages, and any open cart.
	Delete(ctx context.Context, botID, chatID string) error
}

// MessageService defines message retrieval and reply generation operations.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type MessageService interface {
	// Answer appends a customer message and an assistant reply atomically.
	Answer(ctx context.Context, botID, chatID, prompt string) (*domain.Message, error)
	// ListPage returns a page of messages within a chat and the total count.
	ListPage(ctx context.Context, botID, chatID string, page, pageSize int) ([]domain.Message, int64, error)
}

// CatalogService defines the catalog operations exposed over HTTP: the
// public product listing and the admin-only product creation.
type CatalogService interface {
	// ListPage returns one keyset-paginated slice of the bot's catalog.
	ListPage(ctx context.Context, botID, afterID, orderBy string, limit int, inStockOnly bool) (*services.ProductPage, error)
	// CreateProduct adds a product to the bot's catalog.
	CreateProduct(ctx context.Context, botID, sku, name, description string, priceCents int64, stock int) (*domain.Product, error)
}

// SalesService defines the sale status transitions driven by the admin
// surface after checkout.
type SalesService interface {
	// CancelSale moves a pending sale to cancelled and restocks its items.
	CancelSale(ctx context.Context, botID, saleID string) (*domain.Sale, error)
	// MarkPaid moves a pending sale to paid.
	MarkPaid(ctx context.Context, botID, saleID string) (*domain.Sale, error)
}

// SettingsService defines management of the bot's configured payment and
// shipping methods.
type SettingsService interface {
	PaymentMethods(ctx context.Context, botID string) ([]domain.PaymentMethod, error)
	ShippingMethods(ctx context.Context, botID string) ([]domain.ShippingMethod, error)
	UpsertPaymentMethod(ctx context.Context, botID, name, instructions string) (*domain.PaymentMethod, error)
	DeletePaymentMethod(ctx context.Context, botID, name string) error
	UpsertShippingMethod(ctx context.Context, botID, name, pickupAddress string) (*domain.ShippingMethod, error)
	DeleteShippingMethod(ctx context.Context, botID, name string) error
}

//
// Handler wiring
//

// Handlers groups HTTP endpoints for chats, messages, the catalog, sales,
// and bot settings. It depends on abstract service interfaces to keep
// transport concerns separate from business logic.
type Handlers struct {
	chatSvc     ChatService
	msgSvc      MessageService
	catalogSvc  CatalogService
	salesSvc    SalesService
	settingsSvc SettingsService

	// adminToken gates the /admin surface; empty disables it entirely.
	adminToken string
}

// New constructs and returns a Handlers instance bound to the given services.
func New(chatSvc ChatService, msgSvc MessageService, catalogSvc CatalogService, salesSvc SalesService, settingsSvc SettingsService, adminToken string) *Handlers {
	return &Handlers{
		chatSvc:     chatSvc,
		msgSvc:      msgSvc,
		catalogSvc:  catalogSvc,
		salesSvc:    salesSvc,
		settingsSvc: settingsSvc,
		adminToken:  adminToken,
	}
}

// botID extracts the bot scope from Gin context (set by upstream BotScope
// middleware). If absent, it falls back to the "X-Bot-ID" header (tests use
// it), and finally to "default". It never touches c.Request if it's nil.
func botID(c *gin.Context) string {
	header := ""
	if c != nil && c.Request != nil {
		header = c.GetHeader("X-Bot-ID")
	}
	return sysutil.FirstNonEmpty(middleware.BotFrom(c), strings.TrimSpace(header), "default")
}

//
// DTOs
//

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

// ListChatsResponse wraps a page of chats and pagination information.
type ListChatsResponse struct {
	Chats      []domain.Chat `json:"chats"`
	Pagination Pagination    `json:"pagination"`
}

//
// Helpers
//

// clampPagination parses and bounds page and page_size query params to sane
// defaults and limits, returning (page, pageSize).
func clampPagination(c *gin.Context) (page, pageSize int) {
	const (
		defaultPage     = 1
		defaultPageSize = 20
		maxPageSize     = 100
	)
	page = utils.AtoiDefault(c.Query("page"), defaultPage)
	if page < 1 {
		page = 1
	}
	pageSize = utils.AtoiDefault(c.Query("page_size"), defaultPageSize)
	if pageSize < 1 {
		pageSize = 1
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return
}

// pageMeta computes pagination metadata from the page inputs and total count.
func pageMeta(page, pageSize int, total int64) Pagination {
	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	return Pagination{
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: totalPages,
		HasNext:    page < totalPages,
	}
}

//
// Handlers
//

// GetChat returns a single conversation.
func (h *Handlers) GetChat(c *gin.Context) {
	chatID := strings.TrimSpace(c.Param("id"))
	if chatID == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "chat id required")
		return
	}

	chat, err := h.chatSvc.Get(c.Request.Context(), botID(c), chatID)
	if err != nil {
		if errors.Is(err, services.ErrChatNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "chat not found")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}

	ok(c, http.StatusOK, chat)
}

// ListChats returns a page of the bot's conversations, most recent first.
func (h *Handlers) ListChats(c *gin.Context) {
	page, pageSize := clampPagination(c)

	items, total, err := h.chatSvc.ListPage(c.Request.Context(), botID(c), page, pageSize)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}

	ok(c, http.StatusOK, ListChatsResponse{
		Chats:      items,
		Pagination: pageMeta(page, pageSize, total),
	})
}

// DeleteChat archives a conversation. Its messages go with it; any open
// cart is locked; completed sales are retained for bookkeeping.
func (h *Handlers) DeleteChat(c *gin.Context) {
	chatID := strings.TrimSpace(c.Param("id"))
	if chatID == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "chat id required")
		return
	}

	if err := h.chatSvc.Delete(c.Request.Context(), botID(c), chatID); err != nil {
		if errors.Is(err, services.ErrChatNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "chat not found")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}

	noContent(c)
}
