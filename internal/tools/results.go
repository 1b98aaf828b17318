// Result shaping shared by the tool handlers: success/failure envelopes
// and JSON-friendly views of the domain entities. Prices are duplicated as
// minor units and a formatted string so the model never does arithmetic.
package tools

import (
	"errors"

	"github.com/vendobot/go-sales-backend/internal/domain"
	"github.com/vendobot/go-sales-backend/internal/services"
)

func ok(fields map[string]any) map[string]any {
	out := map[string]any{"ok": true}
	for k, v := range fields {
		out[k] = v
	}
	return out
}

func fail(code string, fields map[string]any) map[string]any {
	out := map[string]any{"ok": false, "error": code}
	for k, v := range fields {
		out[k] = v
	}
	return out
}

// failureResult translates service-level business errors into ok:false
// maps the model can react to. Anything unrecognized is an infrastructure
// error and propagates as a Go error.
func failureResult(err error) (map[string]any, error) {
	var se *services.StockError
	if errors.As(err, &se) {
		return fail("insufficient_stock", map[string]any{
			"sku":       se.SKU,
			"requested": se.Requested,
			"available": se.Available,
		}), nil
	}
	var ie *services.CheckoutIncompleteError
	if errors.As(err, &ie) {
		return fail("checkout_incomplete", map[string]any{
			"next_required": ie.Missing,
		}), nil
	}
	var me *services.MethodNotAllowedError
	if errors.As(err, &me) {
		return fail("method_not_allowed", map[string]any{
			"kind":    me.Kind,
			"method":  me.Method,
			"allowed": me.Allowed,
		}), nil
	}

	switch {
	case errors.Is(err, services.ErrProductNotFound):
		return fail("product_not_found", nil), nil
	case errors.Is(err, services.ErrCartNotFound):
		return fail("cart_not_found", nil), nil
	case errors.Is(err, services.ErrCartEmpty):
		return fail("cart_empty", nil), nil
	case errors.Is(err, services.ErrCartLocked):
		return fail("cart_locked", nil), nil
	case errors.Is(err, services.ErrInvalidQty):
		return fail("invalid_qty", nil), nil
	case errors.Is(err, services.ErrNotConfirmed):
		return fail("not_confirmed", nil), nil
	case errors.Is(err, services.ErrSaleNotFound):
		return fail("sale_not_found", nil), nil
	case errors.Is(err, services.ErrIllegalTransition):
		return fail("illegal_transition", nil), nil
	}
	return nil, err
}

func productMap(p *domain.Product) map[string]any {
	return map[string]any{
		"sku":         p.SKU,
		"name":        p.Name,
		"description": p.Description,
		"price_cents": p.PriceCents,
		"price":       services.FormatCents(p.PriceCents),
		"stock":       p.Stock,
	}
}

func productList(ps []domain.Product) []map[string]any {
	out := make([]map[string]any, 0, len(ps))
	for i := range ps {
		out = append(out, productMap(&ps[i]))
	}
	return out
}

func cartMap(c *domain.Cart) map[string]any {
	items := make([]map[string]any, 0, len(c.Items))
	for _, it := range c.Items {
		items = append(items, map[string]any{
			"sku":         it.SKU,
			"name":        it.NameSnapshot,
			"qty":         it.Qty,
			"price_cents": it.PriceSnapshot,
			"price":       services.FormatCents(it.PriceSnapshot),
		})
	}
	out := map[string]any{
		"status":          c.Status,
		"items":           items,
		"subtotal_cents":  c.SubtotalCents,
		"subtotal":        services.FormatCents(c.SubtotalCents),
		"payment_method":  c.PaymentMethod,
		"shipping_method": c.ShippingMethod,
		"contact_name":    c.ContactName,
		"contact_phone":   c.ContactPhone,
		"contact_notes":   c.ContactNotes,
	}
	if c.ShippingAddress != nil {
		out["shipping_address"] = *c.ShippingAddress
	}
	return out
}

func saleMap(s *domain.Sale) map[string]any {
	items := make([]map[string]any, 0, len(s.Items))
	for _, it := range s.Items {
		items = append(items, map[string]any{
			"sku":         it.SKU,
			"name":        it.NameSnapshot,
			"qty":         it.Qty,
			"price_cents": it.PriceSnapshot,
			"price":       services.FormatCents(it.PriceSnapshot),
		})
	}
	out := map[string]any{
		"id":              s.ID,
		"status":          s.Status,
		"total_cents":     s.TotalCents,
		"total":           services.FormatCents(s.TotalCents),
		"payment_method":  s.PaymentMethod,
		"shipping_method": s.ShippingMethod,
		"items":           items,
	}
	if s.ShippingAddress != nil {
		out["shipping_address"] = *s.ShippingAddress
	}
	return out
}
