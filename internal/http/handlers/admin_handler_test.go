package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/vendobot/go-sales-backend/internal/domain"
	"github.com/vendobot/go-sales-backend/internal/repo"
	"github.com/vendobot/go-sales-backend/internal/services"
)

// adminRouter wires the admin group exactly like the real router does.
func adminRouter(h *Handlers) *gin.Engine {
	r := gin.New()
	admin := r.Group("/admin", h.RequireAdmin())
	{
		admin.POST("/products", h.CreateProduct)
		admin.GET("/products/:id/ledger", h.ProductLedger)
		admin.GET("/sales", h.ListSales)
		admin.POST("/sales/:id/cancel", h.CancelSale)
		admin.POST("/sales/:id/paid", h.MarkSalePaid)
		admin.GET("/stats", h.Stats)
		admin.GET("/settings/payment-methods", h.ListPaymentMethods)
		admin.PUT("/settings/payment-methods", h.UpsertPaymentMethod)
		admin.DELETE("/settings/payment-methods/:name", h.DeletePaymentMethod)
		admin.GET("/settings/shipping-methods", h.ListShippingMethods)
		admin.PUT("/settings/shipping-methods", h.UpsertShippingMethod)
		admin.DELETE("/settings/shipping-methods/:name", h.DeleteShippingMethod)
	}
	return r
}

func adminReq(r *gin.Engine, method, path, body, token string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		req.Header.Set("X-Admin-Token", token)
	}
	req.Header.Set("X-Bot-ID", "tienda-1")
	r.ServeHTTP(w, req)
	return w
}

// ---------- RequireAdmin ----------

func TestRequireAdmin_DisabledWrongAndBearer(t *testing.T) {
	gin.SetMode(gin.TestMode)

	// No token configured -> surface disabled
	hOff := newStubHandlers(nil, nil, nil, nil, nil, "")
	rOff := adminRouter(hOff)
	if w := adminReq(rOff, http.MethodGet, "/admin/stats", "", "whatever"); w.Code != http.StatusServiceUnavailable {
		t.Fatalf("disabled -> %d", w.Code)
	}

	h := newStubHandlers(nil, nil, nil, nil, nil, "s3cret")
	r := adminRouter(h)

	// Missing token -> 401
	if w := adminReq(r, http.MethodGet, "/admin/settings/payment-methods", "", ""); w.Code != http.StatusUnauthorized {
		t.Fatalf("missing token -> %d", w.Code)
	}

	// Wrong token -> 401 with stable code
	w := adminReq(r, http.MethodGet, "/admin/settings/payment-methods", "", "nope")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("wrong token -> %d", w.Code)
	}
	var body ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("json: %v", err)
	}
	if body.Code != ErrCodeUnauthorized {
		t.Fatalf("expected unauthorized code, got %q", body.Code)
	}

	// Header token -> 200
	if w := adminReq(r, http.MethodGet, "/admin/settings/payment-methods", "", "s3cret"); w.Code != http.StatusOK {
		t.Fatalf("header token -> %d", w.Code)
	}

	// Bearer token -> 200
	w2 := httptest.NewRecorder()
	req2 := httptest.NewRequest(http.MethodGet, "/admin/settings/payment-methods", nil)
	req2.Header.Set("Authorization", "Bearer s3cret")
	r.ServeHTTP(w2, req2)
	if w2.Code != http.StatusOK {
		t.Fatalf("bearer token -> %d", w2.Code)
	}
}

// ---------- CreateProduct ----------

func TestAdminCreateProduct_Success_Conflict_Invalid(t *testing.T) {
	gin.SetMode(gin.TestMode)

	db := newHandlerDB(t)
	h := newStubHandlers(nil, nil, services.NewCatalogService(db), nil, nil, "s3cret")
	r := adminRouter(h)

	payload := `{"sku":"playera-m","name":"Playera negra M","price_cents":25000,"stock":10}`

	// Success -> 201, SKU normalized to uppercase
	w := adminReq(r, http.MethodPost, "/admin/products", payload, "s3cret")
	if w.Code != http.StatusCreated {
		t.Fatalf("create -> %d body=%s", w.Code, w.Body.String())
	}
	var p domain.Product
	if err := json.Unmarshal(w.Body.Bytes(), &p); err != nil {
		t.Fatalf("json: %v", err)
	}
	if p.SKU != "PLAYERA-M" || p.Stock != 10 {
		t.Fatalf("unexpected product: %#v", p)
	}

	// Same SKU again -> 409 conflict
	w2 := adminReq(r, http.MethodPost, "/admin/products", payload, "s3cret")
	if w2.Code != http.StatusConflict {
		t.Fatalf("duplicate -> %d body=%s", w2.Code, w2.Body.String())
	}

	// Bad JSON -> 400
	if w := adminReq(r, http.MethodPost, "/admin/products", "{bad", "s3cret"); w.Code != http.StatusBadRequest {
		t.Fatalf("bad json -> %d", w.Code)
	}

	// Binding rejects negative stock -> 400
	if w := adminReq(r, http.MethodPost, "/admin/products", `{"sku":"X","name":"X","price_cents":1,"stock":-1}`, "s3cret"); w.Code != http.StatusBadRequest {
		t.Fatalf("negative stock -> %d", w.Code)
	}
}

// ---------- Sales ----------

func TestAdminSales_List_Transitions_Stats(t *testing.T) {
	gin.SetMode(gin.TestMode)

	db := newHandlerDB(t)
	ctx := context.Background()

	// Seed one pending sale directly through the repo.
	sale, err := repo.CreateSale(ctx, db, &domain.Sale{
		BotID:      "tienda-1",
		ChatID:     "wa-1",
		Status:     domain.SaleStatusPendingPayment,
		TotalCents: 25000,
	}, nil)
	if err != nil {
		t.Fatalf("seed sale: %v", err)
	}

	h := newStubHandlers(nil, nil, nil, services.NewCartService(db), nil, "s3cret")
	r := adminRouter(h)

	// List -> one sale
	w := adminReq(r, http.MethodGet, "/admin/sales", "", "s3cret")
	if w.Code != http.StatusOK {
		t.Fatalf("list -> %d body=%s", w.Code, w.Body.String())
	}
	var list ListSalesResponse
	if err := json.Unmarshal(w.Body.Bytes(), &list); err != nil {
		t.Fatalf("json: %v", err)
	}
	if len(list.Sales) != 1 || list.Pagination.Total != 1 {
		t.Fatalf("unexpected sales page: %#v", list)
	}

	// Stats -> count 1
	ws := adminReq(r, http.MethodGet, "/admin/stats", "", "s3cret")
	if ws.Code != http.StatusOK {
		t.Fatalf("stats -> %d", ws.Code)
	}
	var stats StatsResponse
	if err := json.Unmarshal(ws.Body.Bytes(), &stats); err != nil {
		t.Fatalf("json: %v", err)
	}
	if stats.TotalSales != 1 {
		t.Fatalf("stats total = %d", stats.TotalSales)
	}

	// Mark paid -> 200, status flips
	wp := adminReq(r, http.MethodPost, "/admin/sales/"+sale.ID+"/paid", "", "s3cret")
	if wp.Code != http.StatusOK {
		t.Fatalf("paid -> %d body=%s", wp.Code, wp.Body.String())
	}
	var paid domain.Sale
	if err := json.Unmarshal(wp.Body.Bytes(), &paid); err != nil {
		t.Fatalf("json: %v", err)
	}
	if paid.Status != domain.SaleStatusPaid {
		t.Fatalf("status = %q", paid.Status)
	}

	// Cancel after paid -> 409 (not pending anymore)
	wc := adminReq(r, http.MethodPost, "/admin/sales/"+sale.ID+"/cancel", "", "s3cret")
	if wc.Code != http.StatusConflict {
		t.Fatalf("cancel paid -> %d body=%s", wc.Code, wc.Body.String())
	}

	// Unknown sale -> 404
	wn := adminReq(r, http.MethodPost, "/admin/sales/no-such-sale/paid", "", "s3cret")
	if wn.Code != http.StatusNotFound {
		t.Fatalf("unknown sale -> %d", wn.Code)
	}
}

// ---------- Product ledger ----------

func TestAdminProductLedger(t *testing.T) {
	gin.SetMode(gin.TestMode)

	db := newHandlerDB(t)
	ctx := context.Background()

	p, err := repo.CreateProduct(ctx, db, "tienda-1", "ABC-1", "Playera", "", 1000, 5)
	if err != nil {
		t.Fatalf("seed product: %v", err)
	}
	if _, err := repo.AppendLedgerEntry(ctx, db, "tienda-1", p.ID, "s1", -3, domain.LedgerReasonSale); err != nil {
		t.Fatalf("append sale entry: %v", err)
	}
	if _, err := repo.AppendLedgerEntry(ctx, db, "tienda-1", p.ID, "s1", 1, domain.LedgerReasonCancel); err != nil {
		t.Fatalf("append cancel entry: %v", err)
	}
	other, err := repo.CreateProduct(ctx, db, "tienda-2", "XYZ-9", "Gorra", "", 500, 2)
	if err != nil {
		t.Fatalf("seed other bot product: %v", err)
	}

	h := newStubHandlers(nil, nil, nil, services.NewCartService(db), nil, "s3cret")
	r := adminRouter(h)

	w := adminReq(r, http.MethodGet, "/admin/products/"+p.ID+"/ledger", "", "s3cret")
	if w.Code != http.StatusOK {
		t.Fatalf("ledger -> %d body=%s", w.Code, w.Body.String())
	}
	var resp ProductLedgerResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("json: %v", err)
	}
	if resp.ProductID != p.ID || resp.Entries != 2 || resp.NetDelta != -2 {
		t.Fatalf("unexpected ledger summary: %#v", resp)
	}

	// Unknown product -> 404
	if w := adminReq(r, http.MethodGet, "/admin/products/no-such-id/ledger", "", "s3cret"); w.Code != http.StatusNotFound {
		t.Fatalf("unknown product -> %d", w.Code)
	}

	// Another bot's product is invisible -> 404
	if w := adminReq(r, http.MethodGet, "/admin/products/"+other.ID+"/ledger", "", "s3cret"); w.Code != http.StatusNotFound {
		t.Fatalf("cross-bot product -> %d", w.Code)
	}
}

// ---------- Settings ----------

func TestAdminSettings_PaymentAndShippingLifecycle(t *testing.T) {
	gin.SetMode(gin.TestMode)

	db := newHandlerDB(t)
	h := newStubHandlers(nil, nil, nil, nil, services.NewSettingsService(db), "s3cret")
	r := adminRouter(h)

	// Upsert a payment method; names are lowercased by the service.
	w := adminReq(r, http.MethodPut, "/admin/settings/payment-methods",
		`{"name":"Transferencia","instructions":"CLABE 0123..."}`, "s3cret")
	if w.Code != http.StatusOK {
		t.Fatalf("upsert payment -> %d body=%s", w.Code, w.Body.String())
	}
	var pm domain.PaymentMethod
	if err := json.Unmarshal(w.Body.Bytes(), &pm); err != nil {
		t.Fatalf("json: %v", err)
	}
	if pm.Name != "transferencia" {
		t.Fatalf("name not normalized: %q", pm.Name)
	}

	// Listed back
	wl := adminReq(r, http.MethodGet, "/admin/settings/payment-methods", "", "s3cret")
	if wl.Code != http.StatusOK {
		t.Fatalf("list payment -> %d", wl.Code)
	}
	var listed struct {
		PaymentMethods []domain.PaymentMethod `json:"payment_methods"`
	}
	if err := json.Unmarshal(wl.Body.Bytes(), &listed); err != nil {
		t.Fatalf("json: %v", err)
	}
	if len(listed.PaymentMethods) != 1 {
		t.Fatalf("expected 1 method, got %d", len(listed.PaymentMethods))
	}

	// Blank name -> 400 (binding)
	if w := adminReq(r, http.MethodPut, "/admin/settings/payment-methods", `{"name":""}`, "s3cret"); w.Code != http.StatusBadRequest {
		t.Fatalf("blank name -> %d", w.Code)
	}

	// Whitespace name passes binding but the service rejects it -> 400
	if w := adminReq(r, http.MethodPut, "/admin/settings/payment-methods", `{"name":"   "}`, "s3cret"); w.Code != http.StatusBadRequest {
		t.Fatalf("whitespace name -> %d", w.Code)
	}

	// Delete -> 204; second delete -> 404
	if w := adminReq(r, http.MethodDelete, "/admin/settings/payment-methods/transferencia", "", "s3cret"); w.Code != http.StatusNoContent {
		t.Fatalf("delete payment -> %d", w.Code)
	}
	if w := adminReq(r, http.MethodDelete, "/admin/settings/payment-methods/transferencia", "", "s3cret"); w.Code != http.StatusNotFound {
		t.Fatalf("repeat delete -> %d", w.Code)
	}

	// Shipping method lifecycle
	ws := adminReq(r, http.MethodPut, "/admin/settings/shipping-methods",
		`{"name":"Recoleccion","pickup_address":"Av. Insurgentes Sur 600"}`, "s3cret")
	if ws.Code != http.StatusOK {
		t.Fatalf("upsert shipping -> %d body=%s", ws.Code, ws.Body.String())
	}
	var sm domain.ShippingMethod
	if err := json.Unmarshal(ws.Body.Bytes(), &sm); err != nil {
		t.Fatalf("json: %v", err)
	}
	if sm.Name != "recoleccion" || sm.PickupAddress == "" {
		t.Fatalf("unexpected shipping method: %#v", sm)
	}
	if w := adminReq(r, http.MethodDelete, "/admin/settings/shipping-methods/recoleccion", "", "s3cret"); w.Code != http.StatusNoContent {
		t.Fatalf("delete shipping -> %d", w.Code)
	}
}
