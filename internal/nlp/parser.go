// Package nlp provides the rule-based text analysis used by the message
// router: order extraction, coarse intent detection, keyword extraction,
// and quantity parsing. Everything here is a pure function over the input
// text: no state, no I/O, no logging.
//
// The rules target informal Latin-American Spanish as typed in chat apps:
// missing accents, lowercase, quantities as digits or small spelled-out
// numbers.
package nlp

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Intent is the coarse classification of an inbound message.
type Intent string

const (
	IntentBuy             Intent = "buy"
	IntentAskInventory    Intent = "ask_inventory"
	IntentAskAvailability Intent = "ask_availability"
	IntentAskStock        Intent = "ask_stock"
	IntentAskPrice        Intent = "ask_price"
	IntentNone            Intent = "none"
)

// Order is a plausible SKU+quantity extracted from free text.
type Order struct {
	SKU string
	Qty int
}

var (
	// "quiero 3 de ABC-1", "compra 2 ABC-1", "dame ABC-1" (qty optional, defaults 1)
	orderVerbRE = regexp.MustCompile(`(?i)\b(?:quiero|quisiera|compro|comprar|compra|dame|deme|véndeme|vendeme|pido|pedir|ordenar|ordena|llevar|llevo)\b\s+(?:(\d{1,3})\s+)?(?:de\s+|del\s+|unidades?\s+de\s+)?([A-Za-z0-9][A-Za-z0-9._-]*)`)

	// "ABC-1 x2", "ABC-1x2", "ABC-1 X 2"
	orderTimesRE = regexp.MustCompile(`(?i)\b([A-Za-z0-9][A-Za-z0-9._-]*?)\s*[xX]\s*(\d{1,3})\b`)

	// bare token that could be a SKU
	bareTokenRE = regexp.MustCompile(`\b([A-Za-z0-9][A-Za-z0-9._-]*)\b`)

	bareIntRE = regexp.MustCompile(`\b(\d{1,3})\b`)

	skuCharsRE = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)
)

// Intent detection cascade, checked in order. First match wins.
var (
	buyIntentRE = regexp.MustCompile(`(?i)\b(?:quiero comprar|quiero|quisiera|comprar|compro|dame|deme|vendeme|véndeme|me llevo|pedir|ordenar)\b`)

	inventoryIntentRE = regexp.MustCompile(`(?i)(?:que productos|qué productos|que tienes|qué tienes|que venden|qué venden|catalogo|catálogo|inventario|lista de productos|mostrar productos|ver productos)`)

	availabilityTriggerRE = regexp.MustCompile(`(?i)\b(?:tienes|tienen|hay|disponible|disponibles|queda|quedan|manejan|venden)\b`)

	stockSubRE = regexp.MustCompile(`(?i)\b(?:stock|existencias?|unidades|cuantos|cuántos|cuantas|cuántas)\b`)

	priceSubRE = regexp.MustCompile(`(?i)\b(?:precio|precios|cuesta|cuestan|vale|valen|costo|coste)\b`)

	priceTriggerRE = regexp.MustCompile(`(?i)\b(?:precio|cuanto cuesta|cuánto cuesta|cuanto vale|cuánto vale|a como|a cómo)\b`)
)

// Spanish stopwords dropped from keyword extraction. Small on purpose; the
// goal is trimming filler from catalog queries, not full-text search.
var stopwords = map[string]struct{}{
	"el": {}, "la": {}, "los": {}, "las": {}, "un": {}, "una": {}, "unos": {}, "unas": {},
	"de": {}, "del": {}, "al": {}, "a": {}, "en": {}, "con": {}, "por": {}, "para": {},
	"que": {}, "qué": {}, "y": {}, "o": {}, "u": {}, "es": {}, "son": {}, "hay": {},
	"me": {}, "te": {}, "se": {}, "mi": {}, "tu": {}, "su": {}, "lo": {}, "le": {},
	"tienes": {}, "tiene": {}, "tienen": {}, "quiero": {}, "quisiera": {}, "busco": {},
	"cuanto": {}, "cuanta": {}, "cuantos": {}, "cuantas": {}, "como": {}, "donde": {},
	"hola": {}, "buenas": {}, "buenos": {}, "dias": {}, "tardes": {}, "noches": {},
	"por_favor": {}, "favor": {}, "gracias": {}, "algo": {}, "alguna": {}, "algun": {},
}

// Spelled-out quantities accepted by ParseQuantity.
var spelledNumbers = map[string]int{
	"un": 1, "uno": 1, "una": 1,
	"dos": 2, "tres": 3, "cuatro": 4, "cinco": 5,
	"seis": 6, "siete": 7, "ocho": 8, "nueve": 9, "diez": 10,
}

// IsSKULike reports whether a token plausibly names a SKU: alphanumeric
// plus {. _ -}, and containing at least one digit or separator. Purely
// alphabetic tokens are rejected so ordinary words never pass as SKUs.
func IsSKULike(token string) bool {
	if token == "" || !skuCharsRE.MatchString(token) {
		return false
	}
	for _, r := range token {
		if unicode.IsDigit(r) || r == '.' || r == '_' || r == '-' {
			return true
		}
	}
	return false
}

// ParseOrder extracts a plausible (SKU, qty) order from free text. Three
// patterns are tried in order; the first whose token passes IsSKULike wins.
// There is no ranking across patterns.
func ParseOrder(text string) (Order, bool) {
	// 1) purchase verb + optional quantity + token
	if m := orderVerbRE.FindStringSubmatch(text); m != nil {
		qty := 1
		if m[1] != "" {
			if n, err := strconv.Atoi(m[1]); err == nil && n > 0 {
				qty = n
			}
		}
		if IsSKULike(m[2]) {
			return Order{SKU: strings.ToUpper(m[2]), Qty: qty}, true
		}
	}

	// 2) token x quantity
	if m := orderTimesRE.FindStringSubmatch(text); m != nil {
		if IsSKULike(m[1]) {
			qty, err := strconv.Atoi(m[2])
			if err == nil && qty > 0 {
				return Order{SKU: strings.ToUpper(m[1]), Qty: qty}, true
			}
		}
	}

	// 3) bare SKU-like token
	for _, m := range bareTokenRE.FindAllStringSubmatch(text, -1) {
		tok := m[1]
		// skip plain numbers; a quantity alone is not an order
		if _, err := strconv.Atoi(tok); err == nil {
			continue
		}
		if IsSKULike(tok) {
			return Order{SKU: strings.ToUpper(tok), Qty: 1}, true
		}
	}

	return Order{}, false
}

// DetectIntent classifies a message with an ordered regex cascade: purchase
// verbs first, then catalog-browse phrases, then availability phrasing with
// stock/price sub-patterns, then a bare price trigger. First match wins;
// intents never combine.
func DetectIntent(text string) Intent {
	folded := StripDiacritics(strings.ToLower(text))
	switch {
	case buyIntentRE.MatchString(folded):
		return IntentBuy
	case inventoryIntentRE.MatchString(folded):
		return IntentAskInventory
	case availabilityTriggerRE.MatchString(folded):
		if stockSubRE.MatchString(folded) {
			return IntentAskStock
		}
		if priceSubRE.MatchString(folded) {
			return IntentAskPrice
		}
		return IntentAskAvailability
	case priceTriggerRE.MatchString(folded):
		return IntentAskPrice
	default:
		return IntentNone
	}
}

// ExtractKeywords lowercases, folds diacritics, strips punctuation except
// {. _ -}, splits on whitespace, and returns at most six tokens after
// dropping stopwords and tokens shorter than two characters.
func ExtractKeywords(text string) []string {
	clean := StripDiacritics(strings.ToLower(text))

	var b strings.Builder
	b.Grow(len(clean))
	for _, r := range clean {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case r == '.' || r == '_' || r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte(' ')
		}
	}

	out := make([]string, 0, 6)
	for _, tok := range strings.Fields(b.String()) {
		if len([]rune(tok)) < 2 {
			continue
		}
		if _, stop := stopwords[tok]; stop {
			continue
		}
		out = append(out, tok)
		if len(out) == 6 {
			break
		}
	}
	return out
}

// ParseQuantity extracts a quantity from text: the first bare integer in
// [1,999] wins; otherwise a spelled-out Spanish number from one to ten is
// accepted via exact word match.
func ParseQuantity(text string) (int, bool) {
	if m := bareIntRE.FindStringSubmatch(text); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil && n >= 1 && n <= 999 {
			return n, true
		}
	}
	folded := StripDiacritics(strings.ToLower(text))
	for _, w := range strings.Fields(folded) {
		w = strings.Trim(w, ".,;:!?")
		if n, ok := spelledNumbers[w]; ok {
			return n, true
		}
	}
	return 0, false
}

var diacriticsStripper = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// StripDiacritics removes combining marks: "camión" → "camion". On a
// transform failure the input is returned unchanged.
func StripDiacritics(s string) string {
	out, _, err := transform.String(diacriticsStripper, s)
	if err != nil {
		return s
	}
	return out
}
