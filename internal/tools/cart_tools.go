// Cart mutation and checkout tools. Every handler is scoped to the chat in
// Scope, so the model can only ever touch the conversation's own cart.
package tools

import (
	"context"

	"github.com/vendobot/go-sales-backend/internal/services"
)

// RegisterCartTools wires the cart and checkout tools.
func RegisterCartTools(r *Registry, carts *services.CartService) {
	r.MustRegister(Tool{
		Name:        "cart_get",
		Description: "Devuelve el carrito actual del cliente con sus artículos y subtotal. Crea uno vacío si no existe.",
		Schema:      map[string]Field{},
		Handler: func(ctx context.Context, _ map[string]any, scope Scope) (map[string]any, error) {
			cart, err := carts.GetOrCreateOpenCart(ctx, scope.BotID, scope.ChatID)
			if err != nil {
				return failureResult(err)
			}
			return ok(map[string]any{"cart": cartMap(cart)}), nil
		},
	})

	r.MustRegister(Tool{
		Name:        "cart_add_item",
		Description: "Agrega unidades de un producto al carrito por SKU. Si el producto ya está, suma las cantidades.",
		Schema: map[string]Field{
			"sku": {Type: "string", Description: "SKU del producto", Required: true},
			"qty": {Type: "integer", Description: "Unidades a agregar", Default: 1},
		},
		Handler: func(ctx context.Context, args map[string]any, scope Scope) (map[string]any, error) {
			cart, err := carts.AddItem(ctx, scope.BotID, scope.ChatID, argString(args, "sku"), argInt(args, "qty"))
			if err != nil {
				return failureResult(err)
			}
			return ok(map[string]any{"cart": cartMap(cart)}), nil
		},
	})

	r.MustRegister(Tool{
		Name:        "cart_set_payment_method",
		Description: "Asigna el método de pago del carrito. Debe ser uno de los métodos configurados (ver get_payment_methods).",
		Schema: map[string]Field{
			"method": {Type: "string", Description: "Nombre del método de pago", Required: true},
		},
		Handler: func(ctx context.Context, args map[string]any, scope Scope) (map[string]any, error) {
			cart, err := carts.SetPaymentMethod(ctx, scope.BotID, scope.ChatID, argString(args, "method"))
			if err != nil {
				return failureResult(err)
			}
			return ok(map[string]any{"cart": cartMap(cart)}), nil
		},
	})

	r.MustRegister(Tool{
		Name:        "cart_set_shipping_method",
		Description: "Asigna el método de envío. Para 'domicilio' incluye address; para 'punto_medio' incluye meetup_area. Si address_ok es false, pide la dirección al cliente.",
		Schema: map[string]Field{
			"method":      {Type: "string", Description: "Nombre del método de envío", Required: true},
			"address":     {Type: "string", Description: "Dirección de entrega (para domicilio)"},
			"meetup_area": {Type: "string", Description: "Zona del punto de encuentro (para punto_medio)"},
		},
		Handler: func(ctx context.Context, args map[string]any, scope Scope) (map[string]any, error) {
			cart, addressOK, err := carts.SetShippingMethod(ctx, scope.BotID, scope.ChatID,
				argString(args, "method"), argString(args, "address"), argString(args, "meetup_area"))
			if err != nil {
				return failureResult(err)
			}
			return ok(map[string]any{"cart": cartMap(cart), "address_ok": addressOK}), nil
		},
	})

	r.MustRegister(Tool{
		Name:        "cart_set_contact",
		Description: "Guarda los datos de contacto del cliente. Solo sobrescribe los campos que envíes con valor.",
		Schema: map[string]Field{
			"name":  {Type: "string", Description: "Nombre del cliente"},
			"phone": {Type: "string", Description: "Teléfono de contacto"},
			"notes": {Type: "string", Description: "Notas adicionales de entrega"},
		},
		Handler: func(ctx context.Context, args map[string]any, scope Scope) (map[string]any, error) {
			cart, err := carts.SetContact(ctx, scope.BotID, scope.ChatID,
				argString(args, "name"), argString(args, "phone"), argString(args, "notes"))
			if err != nil {
				return failureResult(err)
			}
			return ok(map[string]any{"cart": cartMap(cart)}), nil
		},
	})

	r.MustRegister(Tool{
		Name:        "checkout_submit",
		Description: "Cierra la compra del carrito: valida pago, envío y contacto, descuenta existencias y crea la venta. Llamar solo cuando el cliente confirmó. Si falta algo, next_required lo indica.",
		Schema: map[string]Field{
			"confirm":         {Type: "boolean", Description: "Confirmación explícita del cliente", Default: true},
			"idempotency_key": {Type: "string", Description: "Clave para reintentar sin duplicar la venta"},
		},
		Handler: func(ctx context.Context, args map[string]any, scope Scope) (map[string]any, error) {
			res, err := carts.SubmitCheckout(ctx, scope.BotID, scope.ChatID,
				argBool(args, "confirm"), argString(args, "idempotency_key"))
			if err != nil {
				return failureResult(err)
			}
			return ok(map[string]any{
				"sale":       saleMap(res.Sale),
				"idempotent": res.Idempotent,
			}), nil
		},
	})
}
