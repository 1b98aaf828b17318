// Package services – CartService
//
// This file implements CartService, the component that owns the open-cart
// lifecycle and the transactional checkout-submission protocol. It is the
// only place that creates sales from carts, decrements stock, and writes
// inventory ledger entries; both the tool-calling path and any admin
// surface go through it.
//
// Concurrency notes: the checkout transaction re-reads every product and
// relies on the conditional stock decrement (WHERE stock >= qty) as the
// final arbiter. A competing purchase that slips between the re-read and
// the write surfaces as 0 affected rows and aborts the whole transaction:
// no partial sale, no partial decrement.
//
// Observability: SubmitCheckout is OpenTelemetry-instrumented; spans carry
// bot/chat identifiers and the idempotency outcome.
package services

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/vendobot/go-sales-backend/internal/domain"
	"github.com/vendobot/go-sales-backend/internal/observability"
	"github.com/vendobot/go-sales-backend/internal/repo"
)

// Required checkout fields reported by CheckoutIncompleteError, in order.
const (
	FieldPayment  = "payment"
	FieldShipping = "shipping"
	FieldContact  = "contact"
)

// Shipping method names with address-normalization semantics.
const (
	ShippingHomeDelivery = "domicilio"
	ShippingMeetup       = "punto_medio"
	ShippingPickup       = "recoleccion"
)

// CheckoutResult is the outcome of a checkout submission. Idempotent marks
// a replay: the sale was created by an earlier submission with the same
// key and no side effects ran this time.
type CheckoutResult struct {
	Sale       *domain.Sale
	Idempotent bool
}

// CartService owns cart mutation and checkout for one database. All
// operations are scoped to (botID, chatID).
type CartService struct {
	DB *gorm.DB

	// MaxQtyPerItem caps the quantity of a single add-item call and of a
	// resulting cart line. Zero means the default of 50.
	MaxQtyPerItem int
}

// NewCartService constructs a CartService with the default quantity cap.
func NewCartService(db *gorm.DB) *CartService {
	return &CartService{DB: db, MaxQtyPerItem: 50}
}

func (s *CartService) qtyCap() int {
	if s.MaxQtyPerItem > 0 {
		return s.MaxQtyPerItem
	}
	return 50
}

// NormalizeSKU uppercases and trims a customer-typed SKU.
func NormalizeSKU(sku string) string {
	return strings.ToUpper(strings.TrimSpace(sku))
}

// GetOrCreateOpenCart returns the chat's open cart, creating an empty one
// when none exists. Creation is not transactionally guarded against a
// concurrent duplicate; inbound messages for one chat are handled
// sequentially upstream.
func (s *CartService) GetOrCreateOpenCart(ctx context.Context, botID, chatID string) (*domain.Cart, error) {
	cart, err := repo.FindOpenCart(ctx, s.DB, botID, chatID)
	if err == nil {
		return cart, nil
	}
	if !errors.Is(err, repo.ErrNotFound) {
		return nil, err
	}
	return repo.CreateCart(ctx, s.DB, botID, chatID)
}

// AddItem validates and upserts one cart line, then recomputes the cached
// subtotal. The line snapshots the product's current name and price; for an
// existing line the requested quantity is combined with what the cart
// already holds and validated against current stock.
func (s *CartService) AddItem(ctx context.Context, botID, chatID, sku string, qty int) (*domain.Cart, error) {
	sku = NormalizeSKU(sku)
	if sku == "" {
		return nil, ErrProductNotFound
	}
	if qty <= 0 || qty > s.qtyCap() {
		return nil, ErrInvalidQty
	}

	product, err := repo.FindProduct(ctx, s.DB, botID, sku)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, err
	}

	cart, err := s.GetOrCreateOpenCart(ctx, botID, chatID)
	if err != nil {
		return nil, err
	}
	if cart.Status != domain.CartStatusOpen {
		return nil, ErrCartLocked
	}

	existing, err := repo.FindCartItem(ctx, s.DB, cart.ID, product.ID)
	switch {
	case err == nil:
		combined := existing.Qty + qty
		if combined > s.qtyCap() {
			return nil, ErrInvalidQty
		}
		if combined > product.Stock {
			return nil, &StockError{SKU: sku, Requested: combined, Available: product.Stock}
		}
		if uerr := repo.UpdateCartItem(ctx, s.DB, existing.ID, product, combined); uerr != nil {
			return nil, uerr
		}
	case errors.Is(err, repo.ErrNotFound):
		if qty > product.Stock {
			return nil, &StockError{SKU: sku, Requested: qty, Available: product.Stock}
		}
		if _, cerr := repo.CreateCartItem(ctx, s.DB, cart.ID, product, qty); cerr != nil {
			return nil, cerr
		}
	default:
		return nil, err
	}

	return s.refreshSubtotal(ctx, cart.ID)
}

// refreshSubtotal recomputes subtotal = Σ priceSnapshot×qty, persists it,
// and returns the cart with items.
func (s *CartService) refreshSubtotal(ctx context.Context, cartID string) (*domain.Cart, error) {
	cart, err := repo.GetCart(ctx, s.DB, cartID)
	if err != nil {
		return nil, err
	}
	var subtotal int64
	for _, it := range cart.Items {
		subtotal += it.PriceSnapshot * int64(it.Qty)
	}
	if subtotal != cart.SubtotalCents {
		if err := repo.UpdateCartFields(ctx, s.DB, cartID, map[string]any{"subtotal_cents": subtotal}); err != nil {
			return nil, err
		}
		cart.SubtotalCents = subtotal
	}
	return cart, nil
}

// SetPaymentMethod assigns one of the bot's configured payment methods to
// the open cart. An unknown method fails with the allowed set attached.
func (s *CartService) SetPaymentMethod(ctx context.Context, botID, chatID, method string) (*domain.Cart, error) {
	method = strings.ToLower(strings.TrimSpace(method))

	methods, err := repo.ListPaymentMethods(ctx, s.DB, botID)
	if err != nil {
		return nil, err
	}
	allowed := make([]string, 0, len(methods))
	found := false
	for _, m := range methods {
		allowed = append(allowed, m.Name)
		if m.Name == method {
			found = true
		}
	}
	if !found {
		return nil, &MethodNotAllowedError{Kind: "payment", Method: method, Allowed: allowed}
	}

	cart, err := s.openCart(ctx, botID, chatID)
	if err != nil {
		return nil, err
	}
	if err := repo.UpdateCartFields(ctx, s.DB, cart.ID, map[string]any{"payment_method": method}); err != nil {
		return nil, err
	}
	return repo.GetCart(ctx, s.DB, cart.ID)
}

// SetShippingMethod assigns one of the bot's configured shipping methods
// and normalizes the stored address:
//
//   - "domicilio":   the trimmed address, or NULL when blank
//   - "punto_medio": "Punto medio: {area}", or NULL when no area given
//   - "recoleccion": always NULL (the pickup point lives in settings)
//
// addressOK is false only when domicilio was chosen without a usable
// address; the method itself is still recorded.
func (s *CartService) SetShippingMethod(ctx context.Context, botID, chatID, method, address, meetupArea string) (cart *domain.Cart, addressOK bool, err error) {
	method = strings.ToLower(strings.TrimSpace(method))

	methods, err := repo.ListShippingMethods(ctx, s.DB, botID)
	if err != nil {
		return nil, false, err
	}
	allowed := make([]string, 0, len(methods))
	found := false
	for _, m := range methods {
		allowed = append(allowed, m.Name)
		if m.Name == method {
			found = true
		}
	}
	if !found {
		return nil, false, &MethodNotAllowedError{Kind: "shipping", Method: method, Allowed: allowed}
	}

	var stored *string
	addressOK = true
	switch method {
	case ShippingHomeDelivery:
		if a := strings.TrimSpace(address); a != "" {
			stored = &a
		} else {
			addressOK = false
		}
	case ShippingMeetup:
		if a := strings.TrimSpace(meetupArea); a != "" {
			v := "Punto medio: " + a
			stored = &v
		}
	case ShippingPickup:
		// address implied by pickup config, never per-order
	default:
		if a := strings.TrimSpace(address); a != "" {
			stored = &a
		}
	}

	cart, err = s.openCart(ctx, botID, chatID)
	if err != nil {
		return nil, false, err
	}
	if err = repo.UpdateCartFields(ctx, s.DB, cart.ID, map[string]any{
		"shipping_method":  method,
		"shipping_address": stored,
	}); err != nil {
		return nil, false, err
	}
	cart, err = repo.GetCart(ctx, s.DB, cart.ID)
	return cart, addressOK, err
}

// SetContact merges the provided non-empty fields into the cart. A present
// value is never overwritten with a blank.
func (s *CartService) SetContact(ctx context.Context, botID, chatID, name, phone, notes string) (*domain.Cart, error) {
	cart, err := s.openCart(ctx, botID, chatID)
	if err != nil {
		return nil, err
	}

	fields := map[string]any{}
	if v := strings.TrimSpace(name); v != "" {
		fields["contact_name"] = v
	}
	if v := strings.TrimSpace(phone); v != "" {
		fields["contact_phone"] = v
	}
	if v := strings.TrimSpace(notes); v != "" {
		fields["contact_notes"] = v
	}
	if len(fields) > 0 {
		if err := repo.UpdateCartFields(ctx, s.DB, cart.ID, fields); err != nil {
			return nil, err
		}
	}
	return repo.GetCart(ctx, s.DB, cart.ID)
}

// openCart returns the chat's open cart or ErrCartNotFound.
func (s *CartService) openCart(ctx context.Context, botID, chatID string) (*domain.Cart, error) {
	cart, err := repo.FindOpenCart(ctx, s.DB, botID, chatID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrCartNotFound
		}
		return nil, err
	}
	return cart, nil
}

// SubmitCheckout turns the open cart into a sale.
//
// Order of checks: confirm flag, cart existence, cart non-emptiness,
// required fields, idempotency replay, then one atomic transaction that
// re-validates stock per item, creates the sale and its item snapshots,
// conditionally decrements stock (exactly one row per item or the whole
// transaction aborts), appends ledger entries, and locks the cart.
func (s *CartService) SubmitCheckout(ctx context.Context, botID, chatID string, confirm bool, idempotencyKey string) (*CheckoutResult, error) {
	tr := otel.Tracer("services/CartService")
	ctx, span := tr.Start(ctx, "SubmitCheckout",
		trace.WithAttributes(
			attribute.String("bot.id", botID),
			attribute.String("chat.id", chatID),
		),
	)
	defer span.End()

	if !confirm {
		observability.CheckoutsTotal.WithLabelValues("rejected").Inc()
		return nil, ErrNotConfirmed
	}

	cart, err := s.openCart(ctx, botID, chatID)
	if err != nil {
		observability.CheckoutsTotal.WithLabelValues("rejected").Inc()
		return nil, err
	}
	if len(cart.Items) == 0 {
		observability.CheckoutsTotal.WithLabelValues("rejected").Inc()
		return nil, ErrCartEmpty
	}

	var missing []string
	if cart.PaymentMethod == "" {
		missing = append(missing, FieldPayment)
	}
	if cart.ShippingMethod == "" {
		missing = append(missing, FieldShipping)
	}
	if cart.ContactName == "" && cart.ContactPhone == "" {
		missing = append(missing, FieldContact)
	}
	if len(missing) > 0 {
		observability.CheckoutsTotal.WithLabelValues("incomplete").Inc()
		return nil, &CheckoutIncompleteError{Missing: missing}
	}

	idempotencyKey = strings.TrimSpace(idempotencyKey)
	if idempotencyKey != "" {
		if prior, err := repo.FindSaleByIdempotencyKey(ctx, s.DB, chatID, idempotencyKey); err == nil {
			span.SetAttributes(attribute.Bool("checkout.idempotent", true))
			observability.CheckoutsTotal.WithLabelValues("idempotent_replay").Inc()
			return &CheckoutResult{Sale: prior, Idempotent: true}, nil
		} else if !errors.Is(err, repo.ErrNotFound) {
			return nil, err
		}
	}

	var sale *domain.Sale
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var total int64
		items := make([]domain.SaleItem, 0, len(cart.Items))

		for _, it := range cart.Items {
			p, perr := repo.FindProductByID(ctx, tx, botID, it.ProductID)
			if perr != nil {
				if errors.Is(perr, repo.ErrNotFound) {
					return &StockError{SKU: it.SKU, Requested: it.Qty, Available: 0}
				}
				return perr
			}
			if p.Stock < it.Qty {
				return &StockError{SKU: it.SKU, Requested: it.Qty, Available: p.Stock}
			}
			total += it.PriceSnapshot * int64(it.Qty)
			items = append(items, domain.SaleItem{
				ProductID:     it.ProductID,
				SKU:           it.SKU,
				NameSnapshot:  it.NameSnapshot,
				PriceSnapshot: it.PriceSnapshot,
				Qty:           it.Qty,
			})
		}

		var keyPtr *string
		if idempotencyKey != "" {
			keyPtr = &idempotencyKey
		}
		cartID := cart.ID
		created, cerr := repo.CreateSale(ctx, tx, &domain.Sale{
			BotID:           botID,
			ChatID:          chatID,
			CartID:          &cartID,
			Status:          domain.SaleStatusPendingPayment,
			TotalCents:      total,
			PaymentMethod:   cart.PaymentMethod,
			ShippingMethod:  cart.ShippingMethod,
			ShippingAddress: cart.ShippingAddress,
			ContactName:     cart.ContactName,
			ContactPhone:    cart.ContactPhone,
			ContactNotes:    cart.ContactNotes,
			IdempotencyKey:  keyPtr,
		}, items)
		if cerr != nil {
			return cerr
		}

		for _, it := range created.Items {
			n, derr := repo.DecrementStock(ctx, tx, it.ProductID, botID, it.Qty)
			if derr != nil {
				return derr
			}
			if n != 1 {
				// a competing decrement won between re-read and write
				avail := 0
				if p, rerr := repo.FindProductByID(ctx, tx, botID, it.ProductID); rerr == nil {
					avail = p.Stock
				}
				return &StockError{SKU: it.SKU, Requested: it.Qty, Available: avail}
			}
			if _, lerr := repo.AppendLedgerEntry(ctx, tx, botID, it.ProductID, created.ID, -it.Qty, domain.LedgerReasonSale); lerr != nil {
				return lerr
			}
		}

		n, lerr := repo.LockCart(ctx, tx, cart.ID)
		if lerr != nil {
			return lerr
		}
		if n != 1 {
			return ErrCartLocked
		}

		sale = created
		return nil
	})
	if err != nil {
		// A concurrent submission with the same key beat us to the unique
		// index; hand back its sale as a replay.
		if errors.Is(err, repo.ErrDuplicateKey) && idempotencyKey != "" {
			if prior, ferr := repo.FindSaleByIdempotencyKey(ctx, s.DB, chatID, idempotencyKey); ferr == nil {
				span.SetAttributes(attribute.Bool("checkout.idempotent", true))
				observability.CheckoutsTotal.WithLabelValues("idempotent_replay").Inc()
				return &CheckoutResult{Sale: prior, Idempotent: true}, nil
			}
		}
		var se *StockError
		if errors.As(err, &se) {
			observability.CheckoutsTotal.WithLabelValues("stock_conflict").Inc()
		}
		return nil, err
	}

	observability.CheckoutsTotal.WithLabelValues("created").Inc()
	return &CheckoutResult{Sale: sale}, nil
}

// CancelSale transitions a sale from pending_payment to cancelled and
// restores stock for each item. Restores are best effort per item: a
// failed restore is skipped, not fatal, so the cancellation itself always
// lands once the status transition succeeds.
func (s *CartService) CancelSale(ctx context.Context, botID, saleID string) (*domain.Sale, error) {
	n, err := repo.TransitionSaleStatus(ctx, s.DB, botID, saleID, domain.SaleStatusPendingPayment, domain.SaleStatusCancelled)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		if _, gerr := repo.GetSale(ctx, s.DB, botID, saleID); gerr != nil {
			return nil, ErrSaleNotFound
		}
		return nil, ErrIllegalTransition
	}

	sale, err := repo.GetSale(ctx, s.DB, botID, saleID)
	if err != nil {
		return nil, err
	}
	for _, it := range sale.Items {
		affected, ierr := repo.IncrementStock(ctx, s.DB, it.ProductID, botID, it.Qty)
		if ierr != nil || affected != 1 {
			continue // product gone; skip the restore, keep the cancellation
		}
		_, _ = repo.AppendLedgerEntry(ctx, s.DB, botID, it.ProductID, sale.ID, it.Qty, domain.LedgerReasonCancel)
	}
	return sale, nil
}

// MarkPaid transitions a sale from pending_payment to paid. No stock side
// effects.
func (s *CartService) MarkPaid(ctx context.Context, botID, saleID string) (*domain.Sale, error) {
	n, err := repo.TransitionSaleStatus(ctx, s.DB, botID, saleID, domain.SaleStatusPendingPayment, domain.SaleStatusPaid)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		if _, gerr := repo.GetSale(ctx, s.DB, botID, saleID); gerr != nil {
			return nil, ErrSaleNotFound
		}
		return nil, ErrIllegalTransition
	}
	return repo.GetSale(ctx, s.DB, botID, saleID)
}
