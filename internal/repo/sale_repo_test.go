package repo

import (
	"context"
	"testing"

	"github.com/vendobot/go-sales-backend/internal/domain"
)

func saleTables() []any {
	return []any{&domain.Sale{}, &domain.SaleItem{}, &domain.LedgerEntry{}}
}

func strptr(s string) *string { return &s }

func TestCreateSale_WithItems(t *testing.T) {
	db := newTestDB(t, saleTables()...)
	ctx := context.Background()

	sale := &domain.Sale{
		BotID:      "b1",
		ChatID:     "chat1",
		Status:     domain.SaleStatusPendingPayment,
		TotalCents: 2000,
	}
	items := []domain.SaleItem{
		{ProductID: "p1", SKU: "ABC-1", NameSnapshot: "Producto", PriceSnapshot: 1000, Qty: 2},
	}
	created, err := CreateSale(ctx, db, sale, items)
	if err != nil {
		t.Fatalf("CreateSale: %v", err)
	}
	if created.ID == "" || len(created.Items) != 1 || created.Items[0].SaleID != created.ID {
		t.Fatalf("unexpected sale: %+v", created)
	}

	got, err := GetSale(ctx, db, "b1", created.ID)
	if err != nil || len(got.Items) != 1 || got.TotalCents != 2000 {
		t.Fatalf("GetSale: %+v err=%v", got, err)
	}
}

func TestCreateSale_DuplicateIdempotencyKey(t *testing.T) {
	db := newTestDB(t, saleTables()...)
	ctx := context.Background()

	first := &domain.Sale{BotID: "b1", ChatID: "chat1", Status: domain.SaleStatusPendingPayment, IdempotencyKey: strptr("k1")}
	if _, err := CreateSale(ctx, db, first, nil); err != nil {
		t.Fatalf("first create: %v", err)
	}

	dup := &domain.Sale{BotID: "b1", ChatID: "chat1", Status: domain.SaleStatusPendingPayment, IdempotencyKey: strptr("k1")}
	if _, err := CreateSale(ctx, db, dup, nil); err != ErrDuplicateKey {
		t.Fatalf("expected ErrDuplicateKey, got %v", err)
	}

	// Same key in a different chat is fine.
	other := &domain.Sale{BotID: "b1", ChatID: "chat2", Status: domain.SaleStatusPendingPayment, IdempotencyKey: strptr("k1")}
	if _, err := CreateSale(ctx, db, other, nil); err != nil {
		t.Fatalf("other chat same key: %v", err)
	}

	// Multiple nil keys in one chat are fine.
	for i := 0; i < 2; i++ {
		s := &domain.Sale{BotID: "b1", ChatID: "chat1", Status: domain.SaleStatusPendingPayment}
		if _, err := CreateSale(ctx, db, s, nil); err != nil {
			t.Fatalf("nil-key sale %d: %v", i, err)
		}
	}
}

func TestFindSaleByIdempotencyKey(t *testing.T) {
	db := newTestDB(t, saleTables()...)
	ctx := context.Background()

	s := &domain.Sale{BotID: "b1", ChatID: "chat1", Status: domain.SaleStatusPendingPayment, IdempotencyKey: strptr("k9")}
	created, _ := CreateSale(ctx, db, s, []domain.SaleItem{{ProductID: "p1", SKU: "X-1", NameSnapshot: "x", PriceSnapshot: 1, Qty: 1}})

	got, err := FindSaleByIdempotencyKey(ctx, db, "chat1", "k9")
	if err != nil || got.ID != created.ID || len(got.Items) != 1 {
		t.Fatalf("replay lookup: %+v err=%v", got, err)
	}
	if _, err := FindSaleByIdempotencyKey(ctx, db, "chat1", "other"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestTransitionSaleStatus_LegalAndIllegal(t *testing.T) {
	db := newTestDB(t, saleTables()...)
	ctx := context.Background()

	s := &domain.Sale{BotID: "b1", ChatID: "chat1", Status: domain.SaleStatusPendingPayment}
	created, _ := CreateSale(ctx, db, s, nil)

	// Another bot must never match the row.
	n, err := TransitionSaleStatus(ctx, db, "b2", created.ID, domain.SaleStatusPendingPayment, domain.SaleStatusPaid)
	if err != nil || n != 0 {
		t.Fatalf("cross-bot transition matched: n=%d err=%v", n, err)
	}
	got, _ := GetSale(ctx, db, "b1", created.ID)
	if got.Status != domain.SaleStatusPendingPayment {
		t.Fatalf("status after cross-bot attempt = %s; want pending_payment", got.Status)
	}

	n, err = TransitionSaleStatus(ctx, db, "b1", created.ID, domain.SaleStatusPendingPayment, domain.SaleStatusPaid)
	if err != nil || n != 1 {
		t.Fatalf("pending->paid: n=%d err=%v", n, err)
	}
	// paid is terminal: cancelling it must not match.
	n, err = TransitionSaleStatus(ctx, db, "b1", created.ID, domain.SaleStatusPendingPayment, domain.SaleStatusCancelled)
	if err != nil || n != 0 {
		t.Fatalf("paid->cancelled matched: n=%d err=%v", n, err)
	}
	got, _ = GetSale(ctx, db, "b1", created.ID)
	if got.Status != domain.SaleStatusPaid {
		t.Fatalf("status = %s; want paid", got.Status)
	}
}

func TestAppendLedgerEntry_AndStats(t *testing.T) {
	db := newTestDB(t, saleTables()...)
	ctx := context.Background()

	if _, err := AppendLedgerEntry(ctx, db, "b1", "p1", "s1", -3, domain.LedgerReasonSale); err != nil {
		t.Fatalf("append sale entry: %v", err)
	}
	if _, err := AppendLedgerEntry(ctx, db, "b1", "p1", "s1", 3, domain.LedgerReasonCancel); err != nil {
		t.Fatalf("append cancel entry: %v", err)
	}

	entries, err := ListLedgerForSale(ctx, db, "s1")
	if err != nil || len(entries) != 2 {
		t.Fatalf("ledger list: %d err=%v", len(entries), err)
	}
	if entries[0].Delta != -3 || entries[0].Reason != domain.LedgerReasonSale {
		t.Fatalf("first entry: %+v", entries[0])
	}

	count, net, err := LedgerStats(ctx, db, "p1")
	if err != nil || count != 2 || net != 0 {
		t.Fatalf("LedgerStats: count=%d net=%d err=%v", count, net, err)
	}
}

func TestSalesStats(t *testing.T) {
	db := newTestDB(t, saleTables()...)
	ctx := context.Background()

	count, maxAt, err := SalesStats(ctx, db, "b1")
	if err != nil || count != 0 || maxAt != nil {
		t.Fatalf("empty stats: count=%d maxAt=%v err=%v", count, maxAt, err)
	}

	_, _ = CreateSale(ctx, db, &domain.Sale{BotID: "b1", ChatID: "c1", Status: domain.SaleStatusPendingPayment}, nil)
	count, maxAt, err = SalesStats(ctx, db, "b1")
	if err != nil || count != 1 || maxAt == nil {
		t.Fatalf("stats after create: count=%d maxAt=%v err=%v", count, maxAt, err)
	}
}
