package tools

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/vendobot/go-sales-backend/internal/domain"
	"github.com/vendobot/go-sales-backend/internal/repo"
	"github.com/vendobot/go-sales-backend/internal/services"
)

func newToolsEnv(t *testing.T) (*Registry, *gorm.DB) {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), fmt.Sprintf("tools_test_%d.db", time.Now().UnixNano()))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	if err := db.AutoMigrate(
		&domain.Product{}, &domain.Cart{}, &domain.CartItem{},
		&domain.Sale{}, &domain.SaleItem{}, &domain.LedgerEntry{},
		&domain.PaymentMethod{}, &domain.ShippingMethod{},
	); err != nil {
		t.Fatalf("automigrate: %v", err)
	}

	r := NewRegistry()
	RegisterCatalogTools(r, services.NewCatalogService(db), services.NewSettingsService(db))
	RegisterCartTools(r, services.NewCartService(db))
	return r, db
}

func dispatch(t *testing.T, r *Registry, name string, args map[string]any) map[string]any {
	t.Helper()
	res, err := r.Dispatch(context.Background(), name, args, Scope{BotID: "b1", ChatID: "chat1"})
	if err != nil {
		t.Fatalf("Dispatch(%s): %v", name, err)
	}
	return res
}

func TestToolFlow_CartToSale(t *testing.T) {
	r, db := newToolsEnv(t)
	ctx := context.Background()

	if _, err := repo.CreateProduct(ctx, db, "b1", "ABC-1", "Producto ABC-1", "", 1000, 5); err != nil {
		t.Fatalf("seed product: %v", err)
	}
	if _, err := repo.UpsertPaymentMethod(ctx, db, "b1", "transferencia", "Cuenta 123"); err != nil {
		t.Fatalf("seed payment: %v", err)
	}
	if _, err := repo.UpsertShippingMethod(ctx, db, "b1", "domicilio", ""); err != nil {
		t.Fatalf("seed shipping: %v", err)
	}

	res := dispatch(t, r, "cart_add_item", map[string]any{"sku": "ABC-1", "qty": float64(2)})
	if res["ok"] != true {
		t.Fatalf("cart_add_item = %+v", res)
	}
	cart := res["cart"].(map[string]any)
	if cart["subtotal_cents"] != int64(2000) {
		t.Fatalf("subtotal = %v; want 2000", cart["subtotal_cents"])
	}

	// Submitting too early reports the full missing-fields list.
	res = dispatch(t, r, "checkout_submit", map[string]any{})
	if res["ok"] != false || res["error"] != "checkout_incomplete" {
		t.Fatalf("early submit = %+v", res)
	}
	missing := res["next_required"].([]string)
	if len(missing) != 3 || missing[0] != "payment" || missing[1] != "shipping" || missing[2] != "contact" {
		t.Fatalf("next_required = %v", missing)
	}

	res = dispatch(t, r, "cart_set_payment_method", map[string]any{"method": "transferencia"})
	if res["ok"] != true {
		t.Fatalf("set payment = %+v", res)
	}
	res = dispatch(t, r, "cart_set_shipping_method", map[string]any{"method": "domicilio", "address": "Calle 5 #10"})
	if res["ok"] != true || res["address_ok"] != true {
		t.Fatalf("set shipping = %+v", res)
	}
	res = dispatch(t, r, "cart_set_contact", map[string]any{"name": "Ana", "phone": "555-1234"})
	if res["ok"] != true {
		t.Fatalf("set contact = %+v", res)
	}

	res = dispatch(t, r, "checkout_submit", map[string]any{"idempotency_key": "k-1"})
	if res["ok"] != true || res["idempotent"] != false {
		t.Fatalf("submit = %+v", res)
	}
	sale := res["sale"].(map[string]any)
	if sale["status"] != domain.SaleStatusPendingPayment || sale["total_cents"] != int64(2000) {
		t.Fatalf("sale = %+v", sale)
	}

	// Replay with the same key.
	res = dispatch(t, r, "checkout_submit", map[string]any{"idempotency_key": "k-1"})
	if res["ok"] != true || res["idempotent"] != true {
		t.Fatalf("replay = %+v", res)
	}

	// Stock went down exactly once.
	res = dispatch(t, r, "check_stock", map[string]any{"sku": "ABC-1", "qty": float64(4)})
	if res["ok"] != true || res["available"] != 3 || res["enough"] != false {
		t.Fatalf("check_stock = %+v", res)
	}
}

func TestToolFlow_BusinessFailuresAreValues(t *testing.T) {
	r, db := newToolsEnv(t)
	ctx := context.Background()
	if _, err := repo.CreateProduct(ctx, db, "b1", "ABC-1", "Producto", "", 1000, 2); err != nil {
		t.Fatalf("seed: %v", err)
	}

	res := dispatch(t, r, "get_product_by_sku", map[string]any{"sku": "GHOST-9"})
	if res["ok"] != false || res["error"] != "product_not_found" {
		t.Fatalf("unknown sku = %+v", res)
	}

	res = dispatch(t, r, "cart_add_item", map[string]any{"sku": "ABC-1", "qty": float64(5)})
	if res["ok"] != false || res["error"] != "insufficient_stock" || res["available"] != 2 {
		t.Fatalf("over-stock add = %+v", res)
	}

	res = dispatch(t, r, "cart_set_payment_method", map[string]any{"method": "bitcoin"})
	if res["ok"] != false || res["error"] != "method_not_allowed" {
		t.Fatalf("bad method = %+v", res)
	}
	if allowed := res["allowed"].([]string); len(allowed) != 0 {
		t.Fatalf("allowed = %v; none configured", allowed)
	}

	res = dispatch(t, r, "checkout_submit", map[string]any{"confirm": false})
	if res["ok"] != false || res["error"] != "not_confirmed" {
		t.Fatalf("unconfirmed submit = %+v", res)
	}
}

func TestToolFlow_CatalogPagination(t *testing.T) {
	r, db := newToolsEnv(t)
	ctx := context.Background()
	for _, sku := range []string{"A-1", "B-1", "C-1"} {
		if _, err := repo.CreateProduct(ctx, db, "b1", sku, "Producto "+sku, "", 500, 1); err != nil {
			t.Fatalf("seed %s: %v", sku, err)
		}
	}

	res := dispatch(t, r, "list_all_products", map[string]any{"limit": float64(2)})
	if res["ok"] != true || res["count"] != 2 {
		t.Fatalf("page1 = %+v", res)
	}
	cursor, has := res["next_after_id"].(string)
	if !has || cursor == "" {
		t.Fatalf("page1 missing cursor: %+v", res)
	}

	res = dispatch(t, r, "list_all_products", map[string]any{"limit": float64(2), "after_id": cursor})
	if res["ok"] != true || res["count"] != 1 {
		t.Fatalf("page2 = %+v", res)
	}
	if _, has := res["next_after_id"]; has {
		t.Fatalf("last page must omit next_after_id: %+v", res)
	}

	// search_inventory only surfaces stocked products.
	if _, err := repo.CreateProduct(ctx, db, "b1", "Z-0", "Producto Z-0 agotado", "", 500, 0); err != nil {
		t.Fatalf("seed depleted: %v", err)
	}
	res = dispatch(t, r, "search_inventory", map[string]any{"query": "agotado"})
	if res["ok"] != true || res["count"] != 0 {
		t.Fatalf("search_inventory = %+v", res)
	}
}
