package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/vendobot/go-sales-backend/internal/repo"
	"github.com/vendobot/go-sales-backend/internal/services"
)

func TestListProducts_CursorWalk(t *testing.T) {
	gin.SetMode(gin.TestMode)

	db := newHandlerDB(t)
	ctx := context.Background()
	for _, sku := range []string{"GORRA-1", "PLAYERA-M", "TAZA-AZUL"} {
		if _, err := repo.CreateProduct(ctx, db, "tienda-1", sku, "Producto "+sku, "", 10000, 5); err != nil {
			t.Fatalf("seed %s: %v", sku, err)
		}
	}

	h := newStubHandlers(nil, nil, services.NewCatalogService(db), nil, nil, "")
	r := gin.New()
	r.GET("/products", h.ListProducts)

	get := func(query string) ListProductsResponse {
		t.Helper()
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/products"+query, nil)
		req.Header.Set("X-Bot-ID", "tienda-1")
		r.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Fatalf("list -> %d body=%s", w.Code, w.Body.String())
		}
		var out ListProductsResponse
		if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
			t.Fatalf("json: %v", err)
		}
		return out
	}

	// First page of two, name ascending by default
	page1 := get("?limit=2")
	if len(page1.Products) != 2 || !page1.HasMore || page1.NextAfterID == "" {
		t.Fatalf("unexpected first page: %#v", page1)
	}
	if page1.Products[0].SKU != "GORRA-1" || page1.Products[1].SKU != "PLAYERA-M" {
		t.Fatalf("unexpected order: %s, %s", page1.Products[0].SKU, page1.Products[1].SKU)
	}

	// Second page via cursor
	page2 := get("?limit=2&after_id=" + page1.NextAfterID)
	if len(page2.Products) != 1 || page2.HasMore || page2.NextAfterID != "" {
		t.Fatalf("unexpected second page: %#v", page2)
	}
	if page2.Products[0].SKU != "TAZA-AZUL" {
		t.Fatalf("unexpected tail: %s", page2.Products[0].SKU)
	}
}

func TestListProducts_InStockFilter(t *testing.T) {
	gin.SetMode(gin.TestMode)

	db := newHandlerDB(t)
	ctx := context.Background()
	if _, err := repo.CreateProduct(ctx, db, "tienda-1", "AGOTADO", "Agotado", "", 5000, 0); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, err := repo.CreateProduct(ctx, db, "tienda-1", "DISPONIBLE", "Disponible", "", 5000, 3); err != nil {
		t.Fatalf("seed: %v", err)
	}

	h := newStubHandlers(nil, nil, services.NewCatalogService(db), nil, nil, "")
	r := gin.New()
	r.GET("/products", h.ListProducts)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/products?in_stock=1", nil)
	req.Header.Set("X-Bot-ID", "tienda-1")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("list -> %d body=%s", w.Code, w.Body.String())
	}
	var out ListProductsResponse
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("json: %v", err)
	}
	if len(out.Products) != 1 || out.Products[0].SKU != "DISPONIBLE" {
		t.Fatalf("stock filter leaked: %#v", out.Products)
	}
}

func TestListProducts_BadInputs(t *testing.T) {
	gin.SetMode(gin.TestMode)

	db := newHandlerDB(t)
	h := newStubHandlers(nil, nil, services.NewCatalogService(db), nil, nil, "")
	r := gin.New()
	r.GET("/products", h.ListProducts)

	// unknown order_by -> 400
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/products?order_by=price_asc", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("bad order_by -> %d", w.Code)
	}

	// stale cursor -> 400
	w2 := httptest.NewRecorder()
	req2 := httptest.NewRequest(http.MethodGet, "/products?after_id=no-such-row", nil)
	r.ServeHTTP(w2, req2)
	if w2.Code != http.StatusBadRequest {
		t.Fatalf("stale cursor -> %d", w2.Code)
	}
	var body ErrorResponse
	if err := json.Unmarshal(w2.Body.Bytes(), &body); err != nil {
		t.Fatalf("json: %v", err)
	}
	if body.Code != ErrCodeBadRequest {
		t.Fatalf("expected bad_request, got %q", body.Code)
	}
}
