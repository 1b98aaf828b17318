// Package services – ExpressService
//
// The express path is a rule-based, single-item purchase negotiation that
// runs before the agent loop: when a message parses cleanly as "I want N
// of SKU X" the bot closes the sale with plain state transitions and no
// model call. It tracks one pending negotiation per chat in process memory:
//
//	none → awaiting_quantity → awaiting_confirmation → none
//
// The tracker is deliberately not persisted; a process restart drops
// in-flight negotiations and the customer simply re-states the order. It
// bypasses carts entirely and creates a single-item sale directly, sharing
// the Sale and ledger entities (and the conditional stock decrement) with
// the full checkout engine.
package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"gorm.io/gorm"

	"github.com/vendobot/go-sales-backend/internal/domain"
	"github.com/vendobot/go-sales-backend/internal/nlp"
	"github.com/vendobot/go-sales-backend/internal/repo"
)

// Pending negotiation states.
const (
	pendingAwaitingQuantity = iota
	pendingAwaitingConfirmation
)

type pendingIntent struct {
	state     int
	botID     string
	productID string
	sku       string
	qty       int
}

var (
	affirmativeRE = regexp.MustCompile(`(?i)^\s*(s[ií]+|claro|dale|ok(ay)?|confirmo|de acuerdo|por supuesto|va)\b`)
	negativeRE    = regexp.MustCompile(`(?i)^\s*(no+|nel|cancela(r|lo)?|mejor no|ya no)\b`)
)

// ExpressService drives the rule-based express purchase flow. Safe for
// concurrent use; the per-chat map is mutex-guarded, but two simultaneous
// messages for the same chat keep last-writer-wins semantics; the stock
// decrement remains the real arbiter.
type ExpressService struct {
	DB      *gorm.DB
	Catalog *CatalogService

	mu      sync.Mutex
	pending map[string]*pendingIntent
}

// NewExpressService constructs an ExpressService.
func NewExpressService(db *gorm.DB, catalog *CatalogService) *ExpressService {
	return &ExpressService{
		DB:      db,
		Catalog: catalog,
		pending: make(map[string]*pendingIntent),
	}
}

// HandleMessage routes one inbound message through the express rules.
// handled=false means the rules had nothing to say and the caller should
// fall through to the agent loop; any retained pending state survives that
// fallthrough.
func (s *ExpressService) HandleMessage(ctx context.Context, botID, chatID, text string) (reply string, handled bool, err error) {
	if p := s.get(chatID); p != nil {
		return s.resume(ctx, chatID, p, text)
	}

	if nlp.DetectIntent(text) != nlp.IntentBuy {
		return "", false, nil
	}
	return s.startNegotiation(ctx, botID, chatID, text)
}

// startNegotiation resolves the product a buy-intent message refers to. An
// explicit SKU wins; otherwise the keyword search must land on exactly one
// product; zero or many matches go to the agent, which can ask follow-ups.
func (s *ExpressService) startNegotiation(ctx context.Context, botID, chatID, text string) (string, bool, error) {
	var product *domain.Product

	if order, ok := nlp.ParseOrder(text); ok {
		p, err := s.Catalog.GetBySKU(ctx, botID, order.SKU)
		if err == nil {
			product = p
		} else if !errors.Is(err, ErrProductNotFound) {
			return "", false, err
		}
	}
	if product == nil {
		kw := nlp.ExtractKeywords(text)
		if len(kw) == 0 {
			return "", false, nil
		}
		hits, err := s.Catalog.Search(ctx, botID, strings.Join(kw, " "), 2, true)
		if err != nil {
			return "", false, err
		}
		if len(hits) != 1 {
			return "", false, nil
		}
		product = &hits[0]
	}

	if product.Stock <= 0 {
		s.clear(chatID)
		return fmt.Sprintf("Lo siento, %s (%s) está agotado por el momento.", product.Name, product.SKU), true, nil
	}

	// Digits inside the SKU itself ("ABC-1") must not read as a quantity.
	qtyText := text
	if idx := indexFold(text, product.SKU); idx >= 0 {
		qtyText = text[:idx] + text[idx+len(product.SKU):]
	}
	qty, explicit := nlp.ParseQuantity(qtyText)
	p := &pendingIntent{botID: botID, productID: product.ID, sku: product.SKU}
	if explicit {
		p.state = pendingAwaitingConfirmation
		p.qty = qty
		s.set(chatID, p)
		return s.confirmPrompt(product, qty), true, nil
	}
	p.state = pendingAwaitingQuantity
	s.set(chatID, p)
	return fmt.Sprintf("¡Claro! ¿Cuántas unidades de %s (%s) quieres? Precio: %s cada una.",
		product.Name, product.SKU, FormatCents(product.PriceCents)), true, nil
}

// resume advances an in-flight negotiation with the new message.
func (s *ExpressService) resume(ctx context.Context, chatID string, p *pendingIntent, text string) (string, bool, error) {
	// A fresh buy intent naming a different, existing product replaces the
	// stale negotiation. "quiero 2" also parses as a buy intent, so the
	// existence check keeps plain quantity replies in the current flow.
	if nlp.DetectIntent(text) == nlp.IntentBuy {
		if order, ok := nlp.ParseOrder(text); ok && order.SKU != p.sku {
			if _, err := s.Catalog.GetBySKU(ctx, p.botID, order.SKU); err == nil {
				s.clear(chatID)
				return s.startNegotiation(ctx, p.botID, chatID, text)
			}
		}
	}

	// Stock questions are answered in place; state survives unless the
	// product itself is gone.
	if it := nlp.DetectIntent(text); it == nlp.IntentAskStock || it == nlp.IntentAskAvailability {
		product, err := repo.FindProductByID(ctx, s.DB, p.botID, p.productID)
		if err != nil {
			s.clear(chatID)
			return fmt.Sprintf("Ese producto (%s) ya no está disponible.", p.sku), true, nil
		}
		return fmt.Sprintf("De %s (%s) quedan %d unidades.", product.Name, product.SKU, product.Stock), true, nil
	}

	if negativeRE.MatchString(text) {
		s.clear(chatID)
		return "Entendido, cancelo el pedido. ¿Te ayudo con algo más?", true, nil
	}

	switch p.state {
	case pendingAwaitingQuantity:
		qty, ok := nlp.ParseQuantity(text)
		if !ok {
			return fmt.Sprintf("¿Cuántas unidades de %s quieres? Responde con un número.", p.sku), true, nil
		}
		product, err := repo.FindProductByID(ctx, s.DB, p.botID, p.productID)
		if err != nil {
			s.clear(chatID)
			return fmt.Sprintf("Ese producto (%s) ya no está disponible.", p.sku), true, nil
		}
		p.qty = qty
		p.state = pendingAwaitingConfirmation
		s.set(chatID, p)
		return s.confirmPrompt(product, qty), true, nil

	case pendingAwaitingConfirmation:
		if affirmativeRE.MatchString(text) {
			return s.executePurchase(ctx, chatID, p)
		}
		// A new quantity overwrites in place; the state does not change.
		if qty, ok := nlp.ParseQuantity(text); ok {
			product, err := repo.FindProductByID(ctx, s.DB, p.botID, p.productID)
			if err != nil {
				s.clear(chatID)
				return fmt.Sprintf("Ese producto (%s) ya no está disponible.", p.sku), true, nil
			}
			p.qty = qty
			s.set(chatID, p)
			return s.confirmPrompt(product, qty), true, nil
		}
		return fmt.Sprintf("¿Confirmas la compra de %d × %s? Responde sí o no.", p.qty, p.sku), true, nil
	}

	return "", false, nil
}

// executePurchase closes the negotiation: conditional decrement, one-item
// sale, ledger entry, all in one transaction. On a stock race the pending
// intent is always cleared and the customer is asked to start over; see
// the decrement guard in the repo layer.
func (s *ExpressService) executePurchase(ctx context.Context, chatID string, p *pendingIntent) (string, bool, error) {
	product, err := repo.FindProductByID(ctx, s.DB, p.botID, p.productID)
	if err != nil {
		s.clear(chatID)
		return fmt.Sprintf("Ese producto (%s) ya no está disponible.", p.sku), true, nil
	}

	var sale *domain.Sale
	txErr := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		n, derr := repo.DecrementStock(ctx, tx, p.productID, p.botID, p.qty)
		if derr != nil {
			return derr
		}
		if n != 1 {
			return &StockError{SKU: p.sku, Requested: p.qty, Available: product.Stock}
		}
		created, cerr := repo.CreateSale(ctx, tx, &domain.Sale{
			BotID:      p.botID,
			ChatID:     chatID,
			Status:     domain.SaleStatusPendingPayment,
			TotalCents: product.PriceCents * int64(p.qty),
		}, []domain.SaleItem{{
			ProductID:     p.productID,
			SKU:           p.sku,
			NameSnapshot:  product.Name,
			PriceSnapshot: product.PriceCents,
			Qty:           p.qty,
		}})
		if cerr != nil {
			return cerr
		}
		if _, lerr := repo.AppendLedgerEntry(ctx, tx, p.botID, p.productID, created.ID, -p.qty, domain.LedgerReasonSale); lerr != nil {
			return lerr
		}
		sale = created
		return nil
	})

	s.clear(chatID) // win or lose, the negotiation is over
	if txErr != nil {
		var se *StockError
		if errors.As(txErr, &se) {
			return fmt.Sprintf("Lo siento, el stock de %s cambió (quedan %d). ¿Quieres empezar de nuevo?",
				se.SKU, se.Available), true, nil
		}
		return "", true, txErr
	}

	return fmt.Sprintf("¡Listo! Aparté %d × %s por un total de %s. Tu pedido quedó pendiente de pago.",
		p.qty, product.Name, FormatCents(sale.TotalCents)), true, nil
}

func (s *ExpressService) confirmPrompt(product *domain.Product, qty int) string {
	total := product.PriceCents * int64(qty)
	return fmt.Sprintf("¿Confirmas la compra de %d × %s (%s) por un total de %s? Responde sí o no.",
		qty, product.Name, product.SKU, FormatCents(total))
}

func (s *ExpressService) get(chatID string) *pendingIntent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending[chatID]
}

func (s *ExpressService) set(chatID string, p *pendingIntent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending[chatID] = p
}

func (s *ExpressService) clear(chatID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pending, chatID)
}

// indexFold reports the byte offset of the first case-insensitive match of
// substr in s, or -1. It compares slices of the original string, so the
// returned offset is always safe to slice s with, unlike an index taken
// from a ToUpper copy where case mapping can change byte lengths.
func indexFold(s, substr string) int {
	if substr == "" {
		return 0
	}
	for i := 0; i+len(substr) <= len(s); i++ {
		if strings.EqualFold(s[i:i+len(substr)], substr) {
			return i
		}
	}
	return -1
}

// FormatCents renders a minor-unit amount as "$12.34".
func FormatCents(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s$%d.%02d", sign, cents/100, cents%100)
}
