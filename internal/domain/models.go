// Package domain defines the persistence models for the sales chatbot:
// products, carts, sales, the inventory ledger, and the conversation
// entities. These types are mapped with GORM and form the core data layer
// of the application.
package domain

import (
	"time"

	"gorm.io/gorm"
)

// Cart lifecycle states. A cart is open while the customer is still
// shopping and locked once a checkout submission succeeds.
const (
	CartStatusOpen   = "open"
	CartStatusLocked = "locked"
)

// Sale lifecycle states. pending_payment is the only non-terminal state.
const (
	SaleStatusPendingPayment = "pending_payment"
	SaleStatusPaid           = "paid"
	SaleStatusCancelled      = "cancelled"
)

// Ledger entry reasons.
const (
	LedgerReasonSale   = "sale"
	LedgerReasonCancel = "cancel"
)

// Product is a catalog entry owned by a bot. The (bot_id, sku) pair is
// unique per bot and is the handle customers use to order.
//
// Invariants:
//   - Stock never goes below zero; it is mutated only through the
//     conditional decrement/increment repo operations tied to sales.
//   - PriceCents is an integer amount in minor currency units.
type Product struct {
	ID          string         `json:"id"          gorm:"type:char(36);primaryKey"`
	BotID       string         `json:"bot_id"      gorm:"type:varchar(64);not null;uniqueIndex:ux_bot_sku,priority:1"`
	SKU         string         `json:"sku"         gorm:"type:varchar(64);not null;uniqueIndex:ux_bot_sku,priority:2"`
	Name        string         `json:"name"        gorm:"type:varchar(255);not null"`
	Description string         `json:"description" gorm:"type:text"`
	PriceCents  int64          `json:"price_cents" gorm:"not null;check:price_cents >= 0"`
	Stock       int            `json:"stock"       gorm:"not null;check:stock >= 0"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `json:"-"           gorm:"index"`
}

// TableName returns the database table name for Product.
func (Product) TableName() string { return "products" }

// Cart is the open-order aggregate for one conversation. At most one cart
// with status=open exists per (bot_id, chat_id); this is enforced by
// lookup-or-create in the service layer, not by a DB constraint, so cart
// creation must be serialized per chat by the caller.
//
// A locked cart is immutable: every mutation path checks the status first.
type Cart struct {
	ID              string         `json:"id"               gorm:"type:char(36);primaryKey"`
	BotID           string         `json:"bot_id"           gorm:"type:varchar(64);not null;index:idx_cart_bot_chat,priority:1"`
	ChatID          string         `json:"chat_id"          gorm:"type:char(36);not null;index:idx_cart_bot_chat,priority:2"`
	Status          string         `json:"status"           gorm:"type:varchar(16);not null;default:'open';check:status IN ('open','locked')"`
	SubtotalCents   int64          `json:"subtotal_cents"   gorm:"not null;default:0"`
	PaymentMethod   string         `json:"payment_method"   gorm:"type:varchar(64)"`
	ShippingMethod  string         `json:"shipping_method"  gorm:"type:varchar(64)"`
	ShippingAddress *string        `json:"shipping_address" gorm:"type:varchar(512)"`
	ContactName     string         `json:"contact_name"     gorm:"type:varchar(128)"`
	ContactPhone    string         `json:"contact_phone"    gorm:"type:varchar(32)"`
	ContactNotes    string         `json:"contact_notes"    gorm:"type:varchar(512)"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	DeletedAt       gorm.DeletedAt `json:"-"                gorm:"index"`

	// Items are cascade-deleted with their cart.
	Items []CartItem `json:"items" gorm:"foreignKey:CartID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Cart.
func (Cart) TableName() string { return "carts" }

// CartItem is one line of an open cart. Name and price are snapshots taken
// when the item is added (or its quantity upserted); later catalog edits do
// not leak into a cart that already holds the product.
type CartItem struct {
	ID            string    `json:"id"             gorm:"type:char(36);primaryKey"`
	CartID        string    `json:"cart_id"        gorm:"type:char(36);not null;index"`
	ProductID     string    `json:"product_id"     gorm:"type:char(36);not null"`
	SKU           string    `json:"sku"            gorm:"type:varchar(64);not null"`
	NameSnapshot  string    `json:"name_snapshot"  gorm:"type:varchar(255);not null"`
	PriceSnapshot int64     `json:"price_snapshot" gorm:"not null"`
	Qty           int       `json:"qty"            gorm:"not null;check:qty > 0"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`

	Cart Cart `json:"-" gorm:"foreignKey:CartID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for CartItem.
func (CartItem) TableName() string { return "cart_items" }

// Sale is the record created by a successful checkout (or by the express
// single-item flow). It snapshots payment, shipping, and contact data from
// the cart at submission time.
//
// IdempotencyKey, when present, is unique per chat: a second submission
// with the same key returns the original sale instead of creating another.
type Sale struct {
	ID              string         `json:"id"                gorm:"type:char(36);primaryKey"`
	BotID           string         `json:"bot_id"            gorm:"type:varchar(64);not null;index"`
	ChatID          string         `json:"chat_id"           gorm:"type:char(36);not null;index;uniqueIndex:ux_sale_chat_idem,priority:1"`
	CartID          *string        `json:"cart_id,omitempty" gorm:"type:char(36)"`
	Status          string         `json:"status"            gorm:"type:varchar(24);not null;default:'pending_payment';check:status IN ('pending_payment','paid','cancelled')"`
	TotalCents      int64          `json:"total_cents"       gorm:"not null"`
	PaymentMethod   string         `json:"payment_method"    gorm:"type:varchar(64)"`
	ShippingMethod  string         `json:"shipping_method"   gorm:"type:varchar(64)"`
	ShippingAddress *string        `json:"shipping_address"  gorm:"type:varchar(512)"`
	ContactName     string         `json:"contact_name"      gorm:"type:varchar(128)"`
	ContactPhone    string         `json:"contact_phone"     gorm:"type:varchar(32)"`
	ContactNotes    string         `json:"contact_notes"     gorm:"type:varchar(512)"`
	IdempotencyKey  *string        `json:"idempotency_key,omitempty" gorm:"type:varchar(200);uniqueIndex:ux_sale_chat_idem,priority:2"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	DeletedAt       gorm.DeletedAt `json:"-"                 gorm:"index"`

	// Items are immutable snapshots of what was sold.
	Items []SaleItem `json:"items" gorm:"foreignKey:SaleID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Sale.
func (Sale) TableName() string { return "sales" }

// SaleItem is one immutable line of a sale.
type SaleItem struct {
	ID            string    `json:"id"             gorm:"type:char(36);primaryKey"`
	SaleID        string    `json:"sale_id"        gorm:"type:char(36);not null;index"`
	ProductID     string    `json:"product_id"     gorm:"type:char(36);not null"`
	SKU           string    `json:"sku"            gorm:"type:varchar(64);not null"`
	NameSnapshot  string    `json:"name_snapshot"  gorm:"type:varchar(255);not null"`
	PriceSnapshot int64     `json:"price_snapshot" gorm:"not null"`
	Qty           int       `json:"qty"            gorm:"not null;check:qty > 0"`
	CreatedAt     time.Time `json:"created_at"`

	Sale Sale `json:"-" gorm:"foreignKey:SaleID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for SaleItem.
func (SaleItem) TableName() string { return "sale_items" }

// LedgerEntry is an append-only audit record of a stock quantity change.
// Delta is negative for a sale and positive for a cancellation restock.
// Entries reference but do not own sales and products; they are never
// updated or deleted.
type LedgerEntry struct {
	ID        string    `json:"id"         gorm:"type:char(36);primaryKey"`
	BotID     string    `json:"bot_id"     gorm:"type:varchar(64);not null;index"`
	ProductID string    `json:"product_id" gorm:"type:char(36);not null;index"`
	SaleID    string    `json:"sale_id"    gorm:"type:char(36);not null;index"`
	Delta     int       `json:"delta"      gorm:"not null"`
	Reason    string    `json:"reason"     gorm:"type:varchar(16);not null;check:reason IN ('sale','cancel')"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName returns the database table name for LedgerEntry.
func (LedgerEntry) TableName() string { return "inventory_ledger" }

// Chat represents a conversation between one customer and one bot.
type Chat struct {
	ID        string         `json:"id"         gorm:"type:char(36);primaryKey"`
	BotID     string         `json:"bot_id"     gorm:"type:varchar(64);not null;index:idx_bot_chats"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-"          gorm:"index"`
}

// TableName returns the database table name for Chat.
func (Chat) TableName() string { return "chats" }

// Message is a single utterance within a chat, authored by the "user" or
// the "assistant". Tool round trips inside the agent loop are not persisted
// here; only the surfaced turns are.
type Message struct {
	ID        string         `json:"id"        gorm:"type:char(36);primaryKey"`
	ChatID    string         `json:"chat_id"   gorm:"type:char(36);not null;index:idx_chat_msgs,priority:1"`
	Role      string         `json:"role"      gorm:"type:varchar(16);not null;check:role IN ('user','assistant')"`
	Content   string         `json:"content"   gorm:"type:text;not null"`
	CreatedAt time.Time      `json:"created_at" gorm:"index:idx_chat_msgs,priority:2"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-"         gorm:"index"`

	// Chat is the parent conversation. Messages are cascade-deleted
	// if their chat is removed.
	Chat Chat `json:"-" gorm:"foreignKey:ChatID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Message.
func (Message) TableName() string { return "messages" }

// PaymentMethod is a bot-configured way to pay (e.g. "transferencia",
// "efectivo"). Checkout only accepts methods present here.
type PaymentMethod struct {
	ID           string    `json:"id"           gorm:"type:char(36);primaryKey"`
	BotID        string    `json:"bot_id"       gorm:"type:varchar(64);not null;uniqueIndex:ux_bot_pay,priority:1"`
	Name         string    `json:"name"         gorm:"type:varchar(64);not null;uniqueIndex:ux_bot_pay,priority:2"`
	Instructions string    `json:"instructions" gorm:"type:varchar(512)"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// TableName returns the database table name for PaymentMethod.
func (PaymentMethod) TableName() string { return "payment_methods" }

// ShippingMethod is a bot-configured delivery option. The well-known names
// "domicilio", "punto_medio" and "recoleccion" carry address-normalization
// semantics in the cart service; other names are stored as-is.
type ShippingMethod struct {
	ID            string    `json:"id"             gorm:"type:char(36);primaryKey"`
	BotID         string    `json:"bot_id"         gorm:"type:varchar(64);not null;uniqueIndex:ux_bot_ship,priority:1"`
	Name          string    `json:"name"           gorm:"type:varchar(64);not null;uniqueIndex:ux_bot_ship,priority:2"`
	PickupAddress string    `json:"pickup_address" gorm:"type:varchar(512)"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// TableName returns the database table name for ShippingMethod.
func (ShippingMethod) TableName() string { return "shipping_methods" }
