package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/vendobot/go-sales-backend/internal/domain"
	"github.com/vendobot/go-sales-backend/internal/repo"
	"github.com/vendobot/go-sales-backend/internal/services"
)

// ---------- test DB ----------

func newHandlerDB(t *testing.T) *gorm.DB {
	t.Helper()

	// Unique DSN per call to avoid cross-test contamination
	dsn := fmt.Sprintf("file:handlers_%s?mode=memory&cache=shared", uuid.NewString())

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	db.Exec("PRAGMA foreign_keys=ON;")
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// ---------- tiny stubs for the service interfaces ----------

type stubChatSvc struct {
	get      func(context.Context, string, string) (*domain.Chat, error)
	listPage func(context.Context, string, int, int) ([]domain.Chat, int64, error)
	del      func(context.Context, string, string) error
}

func (s stubChatSvc) Get(ctx context.Context, b, id string) (*domain.Chat, error) {
	if s.get != nil {
		return s.get(ctx, b, id)
	}
	return &domain.Chat{ID: id, BotID: b}, nil
}

func (s stubChatSvc) ListPage(ctx context.Context, b string, p, ps int) ([]domain.Chat, int64, error) {
	if s.listPage != nil {
		return s.listPage(ctx, b, p, ps)
	}
	return nil, 0, nil
}

func (s stubChatSvc) Delete(ctx context.Context, b, id string) error {
	if s.del != nil {
		return s.del(ctx, b, id)
	}
	return nil
}

type stubMsgSvc struct {
	answer   func(context.Context, string, string, string) (*domain.Message, error)
	listPage func(context.Context, string, string, int, int) ([]domain.Message, int64, error)
}

func (s stubMsgSvc) Answer(ctx context.Context, b, id, p string) (*domain.Message, error) {
	if s.answer != nil {
		return s.answer(ctx, b, id, p)
	}
	return &domain.Message{ID: "m1", ChatID: id, Role: "assistant", Content: "ok"}, nil
}

func (s stubMsgSvc) ListPage(ctx context.Context, b, id string, p, ps int) ([]domain.Message, int64, error) {
	if s.listPage != nil {
		return s.listPage(ctx, b, id, p, ps)
	}
	return nil, 0, nil
}

type stubCatalogSvc struct {
	listPage func(context.Context, string, string, string, int, bool) (*services.ProductPage, error)
	create   func(context.Context, string, string, string, string, int64, int) (*domain.Product, error)
}

func (s stubCatalogSvc) ListPage(ctx context.Context, b, after, order string, limit int, inStock bool) (*services.ProductPage, error) {
	if s.listPage != nil {
		return s.listPage(ctx, b, after, order, limit, inStock)
	}
	return &services.ProductPage{Items: []domain.Product{}}, nil
}

func (s stubCatalogSvc) CreateProduct(ctx context.Context, b, sku, name, desc string, price int64, stock int) (*domain.Product, error) {
	if s.create != nil {
		return s.create(ctx, b, sku, name, desc, price, stock)
	}
	return &domain.Product{ID: "p1", BotID: b, SKU: sku, Name: name, PriceCents: price, Stock: stock}, nil
}

type stubSalesSvc struct {
	cancel func(context.Context, string, string) (*domain.Sale, error)
	paid   func(context.Context, string, string) (*domain.Sale, error)
}

func (s stubSalesSvc) CancelSale(ctx context.Context, b, id string) (*domain.Sale, error) {
	if s.cancel != nil {
		return s.cancel(ctx, b, id)
	}
	return &domain.Sale{ID: id, BotID: b, Status: domain.SaleStatusCancelled}, nil
}

func (s stubSalesSvc) MarkPaid(ctx context.Context, b, id string) (*domain.Sale, error) {
	if s.paid != nil {
		return s.paid(ctx, b, id)
	}
	return &domain.Sale{ID: id, BotID: b, Status: domain.SaleStatusPaid}, nil
}

type stubSettingsSvc struct {
	payList    func(context.Context, string) ([]domain.PaymentMethod, error)
	shipList   func(context.Context, string) ([]domain.ShippingMethod, error)
	payUpsert  func(context.Context, string, string, string) (*domain.PaymentMethod, error)
	payDelete  func(context.Context, string, string) error
	shipUpsert func(context.Context, string, string, string) (*domain.ShippingMethod, error)
	shipDelete func(context.Context, string, string) error
}

func (s stubSettingsSvc) PaymentMethods(ctx context.Context, b string) ([]domain.PaymentMethod, error) {
	if s.payList != nil {
		return s.payList(ctx, b)
	}
	return nil, nil
}

func (s stubSettingsSvc) ShippingMethods(ctx context.Context, b string) ([]domain.ShippingMethod, error) {
	if s.shipList != nil {
		return s.shipList(ctx, b)
	}
	return nil, nil
}

func (s stubSettingsSvc) UpsertPaymentMethod(ctx context.Context, b, n, i string) (*domain.PaymentMethod, error) {
	if s.payUpsert != nil {
		return s.payUpsert(ctx, b, n, i)
	}
	return &domain.PaymentMethod{BotID: b, Name: n, Instructions: i}, nil
}

func (s stubSettingsSvc) DeletePaymentMethod(ctx context.Context, b, n string) error {
	if s.payDelete != nil {
		return s.payDelete(ctx, b, n)
	}
	return nil
}

func (s stubSettingsSvc) UpsertShippingMethod(ctx context.Context, b, n, a string) (*domain.ShippingMethod, error) {
	if s.shipUpsert != nil {
		return s.shipUpsert(ctx, b, n, a)
	}
	return &domain.ShippingMethod{BotID: b, Name: n, PickupAddress: a}, nil
}

func (s stubSettingsSvc) DeleteShippingMethod(ctx context.Context, b, n string) error {
	if s.shipDelete != nil {
		return s.shipDelete(ctx, b, n)
	}
	return nil
}

// newStubHandlers wires a Handlers value entirely from stubs; individual
// tests override the fields they care about.
func newStubHandlers(chat ChatService, msg MessageService, cat CatalogService, sales SalesService, set SettingsService, token string) *Handlers {
	if chat == nil {
		chat = stubChatSvc{}
	}
	if msg == nil {
		msg = stubMsgSvc{}
	}
	if cat == nil {
		cat = stubCatalogSvc{}
	}
	if sales == nil {
		sales = stubSalesSvc{}
	}
	if set == nil {
		set = stubSettingsSvc{}
	}
	return New(chat, msg, cat, sales, set, token)
}

// ---------- helpers-only tests ----------

func Test_botID_and_clampPagination(t *testing.T) {
	gin.SetMode(gin.TestMode)

	// botID fallback without middleware or header
	rc := gin.CreateTestContextOnly(httptest.NewRecorder(), gin.New())
	if got := botID(rc); got != "default" {
		t.Fatalf("fallback botID = %q", got)
	}
	rc.Set("botID", "tienda-1")
	if got := botID(rc); got != "tienda-1" {
		t.Fatalf("ctx botID = %q", got)
	}

	// header fallback
	cH, _ := gin.CreateTestContext(httptest.NewRecorder())
	reqH := httptest.NewRequest("GET", "/", nil)
	reqH.Header.Set("X-Bot-ID", "tienda-2")
	cH.Request = reqH
	if got := botID(cH); got != "tienda-2" {
		t.Fatalf("header fallback botID = %q", got)
	}

	// clampPagination bounds
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	req := httptest.NewRequest("GET", "/?page=-5&page_size=9999", nil)
	c.Request = req
	p, ps := clampPagination(c)
	if p != 1 || ps != 100 {
		t.Fatalf("clamp bounds got p=%d ps=%d", p, ps)
	}
	c, _ = gin.CreateTestContext(httptest.NewRecorder())
	req = httptest.NewRequest("GET", "/?page=&page_size=0", nil)
	c.Request = req
	p, ps = clampPagination(c)
	if p != 1 || ps != 1 {
		t.Fatalf("clamp defaults got p=%d ps=%d", p, ps)
	}
}

func Test_pageMeta(t *testing.T) {
	m := pageMeta(1, 10, 25)
	if m.TotalPages != 3 || !m.HasNext {
		t.Fatalf("meta mismatch: %#v", m)
	}
	m = pageMeta(3, 10, 25)
	if m.HasNext {
		t.Fatalf("last page should not have next: %#v", m)
	}
	m = pageMeta(1, 10, 0)
	if m.TotalPages != 0 || m.HasNext {
		t.Fatalf("empty meta mismatch: %#v", m)
	}
}

// ---------- ListChats ----------

func TestListChats_SuccessPage_And_Error(t *testing.T) {
	gin.SetMode(gin.TestMode)

	// Real service over a seeded DB
	db := newHandlerDB(t)
	ctx := context.Background()
	if _, err := repo.EnsureChat(ctx, db, "tienda-1", uuid.NewString()); err != nil {
		t.Fatalf("seed chat 1: %v", err)
	}
	if _, err := repo.EnsureChat(ctx, db, "tienda-1", uuid.NewString()); err != nil {
		t.Fatalf("seed chat 2: %v", err)
	}

	h := newStubHandlers(services.NewChatService(db), nil, nil, nil, nil, "")
	r := gin.New()
	r.GET("/chats", h.ListChats)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/chats?page=1&page_size=1", nil)
	req.Header.Set("X-Bot-ID", "tienda-1")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("list -> %d body=%s", w.Code, w.Body.String())
	}
	var out ListChatsResponse
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("json: %v", err)
	}
	if out.Pagination.Total != 2 || out.Pagination.TotalPages != 2 || !out.Pagination.HasNext {
		t.Fatalf("pagination mismatch: %#v", out.Pagination)
	}
	if len(out.Chats) != 1 {
		t.Fatalf("expected 1 chat on page 1, got %d", len(out.Chats))
	}

	// Service error -> 500 with list_failed
	hErr := newStubHandlers(stubChatSvc{
		listPage: func(context.Context, string, int, int) ([]domain.Chat, int64, error) {
			return nil, 0, gorm.ErrInvalidField
		},
	}, nil, nil, nil, nil, "")
	rErr := gin.New()
	rErr.GET("/chats", hErr.ListChats)

	w2 := httptest.NewRecorder()
	req2 := httptest.NewRequest(http.MethodGet, "/chats", nil)
	rErr.ServeHTTP(w2, req2)
	if w2.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w2.Code)
	}
	var body ErrorResponse
	if err := json.Unmarshal(w2.Body.Bytes(), &body); err != nil {
		t.Fatalf("json: %v", err)
	}
	if body.Code != ErrCodeListFailed {
		t.Fatalf("expected list_failed, got %q", body.Code)
	}
}

// ---------- GetChat ----------

func TestGetChat_Success_And_NotFound(t *testing.T) {
	gin.SetMode(gin.TestMode)

	db := newHandlerDB(t)
	ctx := context.Background()
	chatID := uuid.NewString()
	if _, err := repo.EnsureChat(ctx, db, "tienda-1", chatID); err != nil {
		t.Fatalf("seed chat: %v", err)
	}

	h := newStubHandlers(services.NewChatService(db), nil, nil, nil, nil, "")
	r := gin.New()
	r.GET("/chats/:id", h.GetChat)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/chats/"+chatID, nil)
	req.Header.Set("X-Bot-ID", "tienda-1")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("get -> %d body=%s", w.Code, w.Body.String())
	}
	var got domain.Chat
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("json: %v", err)
	}
	if got.ID != chatID || got.BotID != "tienda-1" {
		t.Fatalf("unexpected chat: %#v", got)
	}

	// unknown id -> 404; wrong bot -> 404
	w2 := httptest.NewRecorder()
	req2 := httptest.NewRequest(http.MethodGet, "/chats/"+uuid.NewString(), nil)
	req2.Header.Set("X-Bot-ID", "tienda-1")
	r.ServeHTTP(w2, req2)
	if w2.Code != http.StatusNotFound {
		t.Fatalf("unknown chat -> %d", w2.Code)
	}
	w3 := httptest.NewRecorder()
	req3 := httptest.NewRequest(http.MethodGet, "/chats/"+chatID, nil)
	req3.Header.Set("X-Bot-ID", "tienda-2")
	r.ServeHTTP(w3, req3)
	if w3.Code != http.StatusNotFound {
		t.Fatalf("cross-bot get -> %d", w3.Code)
	}
}

// ---------- DeleteChat ----------

func TestDeleteChat_Success_NotFound(t *testing.T) {
	gin.SetMode(gin.TestMode)

	db := newHandlerDB(t)
	ctx := context.Background()
	chatID := uuid.NewString()
	if _, err := repo.EnsureChat(ctx, db, "tienda-1", chatID); err != nil {
		t.Fatalf("seed chat: %v", err)
	}

	h := newStubHandlers(services.NewChatService(db), nil, nil, nil, nil, "")
	r := gin.New()
	r.DELETE("/chats/:id", h.DeleteChat)

	// success -> 204
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodDelete, "/chats/"+chatID, nil)
	req.Header.Set("X-Bot-ID", "tienda-1")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNoContent {
		t.Fatalf("delete -> %d body=%s", w.Code, w.Body.String())
	}

	// second delete -> 404
	w2 := httptest.NewRecorder()
	req2 := httptest.NewRequest(http.MethodDelete, "/chats/"+chatID, nil)
	req2.Header.Set("X-Bot-ID", "tienda-1")
	r.ServeHTTP(w2, req2)
	if w2.Code != http.StatusNotFound {
		t.Fatalf("repeat delete -> %d", w2.Code)
	}

	// wrong bot scope never sees the chat
	other := uuid.NewString()
	if _, err := repo.EnsureChat(ctx, db, "tienda-1", other); err != nil {
		t.Fatalf("seed chat: %v", err)
	}
	w3 := httptest.NewRecorder()
	req3 := httptest.NewRequest(http.MethodDelete, "/chats/"+other, nil)
	req3.Header.Set("X-Bot-ID", "tienda-2")
	r.ServeHTTP(w3, req3)
	if w3.Code != http.StatusNotFound {
		t.Fatalf("cross-bot delete -> %d", w3.Code)
	}
}
