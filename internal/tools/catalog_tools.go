// Catalog and settings read tools. These are the model's only source of
// truth about products, prices, stock, and configured payment/shipping
// methods; the system prompt forbids answering catalog questions without
// calling one of them.
package tools

import (
	"context"

	"github.com/vendobot/go-sales-backend/internal/repo"
	"github.com/vendobot/go-sales-backend/internal/services"
)

// RegisterCatalogTools wires the read-only catalog and settings tools.
func RegisterCatalogTools(r *Registry, catalog *services.CatalogService, settings *services.SettingsService) {
	r.MustRegister(Tool{
		Name:        "product_search",
		Description: "Busca productos por texto libre (nombre, descripción o SKU parcial). Úsala cuando el cliente describe lo que quiere sin dar un SKU exacto.",
		Schema: map[string]Field{
			"query":         {Type: "string", Description: "Texto de búsqueda", Required: true},
			"limit":         {Type: "integer", Description: "Máximo de resultados", Default: 8},
			"in_stock_only": {Type: "boolean", Description: "Solo productos con existencias", Default: false},
		},
		Handler: func(ctx context.Context, args map[string]any, scope Scope) (map[string]any, error) {
			hits, err := catalog.Search(ctx, scope.BotID, argString(args, "query"), argInt(args, "limit"), argBool(args, "in_stock_only"))
			if err != nil {
				return failureResult(err)
			}
			return ok(map[string]any{"products": productList(hits), "count": len(hits)}), nil
		},
	})

	r.MustRegister(Tool{
		Name:        "search_inventory",
		Description: "Busca productos disponibles (con existencias) por texto libre. Equivale a product_search con in_stock_only=true.",
		Schema: map[string]Field{
			"query": {Type: "string", Description: "Texto de búsqueda", Required: true},
			"limit": {Type: "integer", Description: "Máximo de resultados", Default: 8},
		},
		Handler: func(ctx context.Context, args map[string]any, scope Scope) (map[string]any, error) {
			hits, err := catalog.Search(ctx, scope.BotID, argString(args, "query"), argInt(args, "limit"), true)
			if err != nil {
				return failureResult(err)
			}
			return ok(map[string]any{"products": productList(hits), "count": len(hits)}), nil
		},
	})

	r.MustRegister(Tool{
		Name:        "get_product_by_sku",
		Description: "Obtiene un producto exacto por su SKU, con precio y existencias actuales.",
		Schema: map[string]Field{
			"sku": {Type: "string", Description: "SKU del producto", Required: true},
		},
		Handler: func(ctx context.Context, args map[string]any, scope Scope) (map[string]any, error) {
			p, err := catalog.GetBySKU(ctx, scope.BotID, argString(args, "sku"))
			if err != nil {
				return failureResult(err)
			}
			return ok(map[string]any{"product": productMap(p)}), nil
		},
	})

	r.MustRegister(Tool{
		Name:        "check_stock",
		Description: "Verifica si hay suficientes existencias de un SKU para la cantidad pedida.",
		Schema: map[string]Field{
			"sku": {Type: "string", Description: "SKU del producto", Required: true},
			"qty": {Type: "integer", Description: "Cantidad deseada", Default: 1},
		},
		Handler: func(ctx context.Context, args map[string]any, scope Scope) (map[string]any, error) {
			chk, err := catalog.CheckStock(ctx, scope.BotID, argString(args, "sku"), argInt(args, "qty"))
			if err != nil {
				return failureResult(err)
			}
			return ok(map[string]any{
				"sku":       chk.Product.SKU,
				"requested": chk.Requested,
				"available": chk.Product.Stock,
				"enough":    chk.Enough,
			}), nil
		},
	})

	r.MustRegister(Tool{
		Name:        "list_all_products",
		Description: "Lista el catálogo página por página. Usa after_id de la respuesta anterior para continuar; next_after_id solo aparece cuando quedan más productos.",
		Schema: map[string]Field{
			"in_stock_only": {Type: "boolean", Description: "Solo productos con existencias", Default: false},
			"limit":         {Type: "integer", Description: "Tamaño de página", Default: 20},
			"after_id":      {Type: "string", Description: "Cursor devuelto por la página anterior"},
			"order_by": {
				Type:        "string",
				Description: "Orden de los resultados",
				Default:     repo.OrderNameAsc,
				Enum:        []string{repo.OrderNameAsc, repo.OrderNameDesc, repo.OrderCreatedDesc, repo.OrderUpdatedDesc},
			},
		},
		Handler: func(ctx context.Context, args map[string]any, scope Scope) (map[string]any, error) {
			page, err := catalog.ListPage(ctx, scope.BotID, argString(args, "after_id"), argString(args, "order_by"), argInt(args, "limit"), argBool(args, "in_stock_only"))
			if err != nil {
				return failureResult(err)
			}
			res := map[string]any{"products": productList(page.Items), "count": len(page.Items)}
			if page.HasMore {
				res["next_after_id"] = page.NextAfterID
			}
			return ok(res), nil
		},
	})

	r.MustRegister(Tool{
		Name:        "get_payment_methods",
		Description: "Lista los métodos de pago aceptados y sus instrucciones.",
		Schema:      map[string]Field{},
		Handler: func(ctx context.Context, _ map[string]any, scope Scope) (map[string]any, error) {
			methods, err := settings.PaymentMethods(ctx, scope.BotID)
			if err != nil {
				return failureResult(err)
			}
			out := make([]map[string]any, 0, len(methods))
			for _, m := range methods {
				out = append(out, map[string]any{"name": m.Name, "instructions": m.Instructions})
			}
			return ok(map[string]any{"methods": out}), nil
		},
	})

	r.MustRegister(Tool{
		Name:        "get_shipping_methods",
		Description: "Lista los métodos de envío o entrega disponibles.",
		Schema:      map[string]Field{},
		Handler: func(ctx context.Context, _ map[string]any, scope Scope) (map[string]any, error) {
			methods, err := settings.ShippingMethods(ctx, scope.BotID)
			if err != nil {
				return failureResult(err)
			}
			out := make([]map[string]any, 0, len(methods))
			for _, m := range methods {
				entry := map[string]any{"name": m.Name}
				if m.PickupAddress != "" {
					entry["pickup_address"] = m.PickupAddress
				}
				out = append(out, entry)
			}
			return ok(map[string]any{"methods": out}), nil
		},
	})
}
