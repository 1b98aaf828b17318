// Package services – CatalogService
//
// Catalog queries: SKU lookup, stock checks, paginated listings, and the
// two-stage product search (database LIKE first, in-memory keyword ranking
// as fallback for misspelled or partial queries). The only write path here
// is CreateProduct, used by the admin surface when a seller loads stock.
package services

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/vendobot/go-sales-backend/internal/domain"
	"github.com/vendobot/go-sales-backend/internal/nlp"
	"github.com/vendobot/go-sales-backend/internal/repo"
	"github.com/vendobot/go-sales-backend/internal/search"
)

// CatalogService answers questions about the catalog without mutating it.
type CatalogService struct {
	DB *gorm.DB

	// FallbackLimit caps how many products the in-memory fallback ranker
	// loads and returns. Zero means the default of 200.
	FallbackLimit int
}

// NewCatalogService constructs a CatalogService with defaults.
func NewCatalogService(db *gorm.DB) *CatalogService {
	return &CatalogService{DB: db, FallbackLimit: 200}
}

// StockCheck is the answer to "do you have N of X?".
type StockCheck struct {
	Product   *domain.Product
	Requested int
	Enough    bool
}

// ProductPage is one keyset-paginated slice of the catalog. NextAfterID is
// the cursor for the following page, empty when this is the last one.
type ProductPage struct {
	Items       []domain.Product
	NextAfterID string
	HasMore     bool
}

// GetBySKU fetches one product by its (normalized) SKU.
func (s *CatalogService) GetBySKU(ctx context.Context, botID, sku string) (*domain.Product, error) {
	sku = NormalizeSKU(sku)
	if sku == "" {
		return nil, ErrProductNotFound
	}
	p, err := repo.FindProduct(ctx, s.DB, botID, sku)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, err
	}
	return p, nil
}

// CreateProduct adds a product to the bot's catalog. The SKU is normalized
// before insertion; a SKU the bot already uses yields ErrDuplicateSKU.
func (s *CatalogService) CreateProduct(ctx context.Context, botID, sku, name, description string, priceCents int64, stock int) (*domain.Product, error) {
	sku = NormalizeSKU(sku)
	name = strings.TrimSpace(name)
	if sku == "" || name == "" || priceCents < 0 || stock < 0 {
		return nil, ErrInvalidProduct
	}
	p, err := repo.CreateProduct(ctx, s.DB, botID, sku, name, strings.TrimSpace(description), priceCents, stock)
	if err != nil {
		if errors.Is(err, repo.ErrDuplicateKey) {
			return nil, ErrDuplicateSKU
		}
		return nil, err
	}
	return p, nil
}

// CheckStock reports whether the catalog can cover qty units of a SKU.
// qty defaults to 1 when non-positive.
func (s *CatalogService) CheckStock(ctx context.Context, botID, sku string, qty int) (*StockCheck, error) {
	if qty <= 0 {
		qty = 1
	}
	p, err := s.GetBySKU(ctx, botID, sku)
	if err != nil {
		return nil, err
	}
	return &StockCheck{Product: p, Requested: qty, Enough: p.Stock >= qty}, nil
}

// Search runs the two-stage lookup. Stage one is a LIKE query over SKU,
// name, and description; when it returns nothing the whole catalog is
// ranked in memory by keyword overlap, which tolerates accents, word order,
// and partial SKUs. Results never exceed limit (default 8).
func (s *CatalogService) Search(ctx context.Context, botID, query string, limit int, inStockOnly bool) ([]domain.Product, error) {
	if limit <= 0 {
		limit = 8
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return []domain.Product{}, nil
	}

	hits, err := repo.SearchProducts(ctx, s.DB, botID, query, limit, inStockOnly)
	if err != nil {
		return nil, err
	}
	if len(hits) > 0 {
		return hits, nil
	}
	return s.fallbackSearch(ctx, botID, query, limit, inStockOnly)
}

// fallbackSearch ranks the full catalog in memory. Small catalogs are the
// target deployment; FallbackLimit bounds the damage elsewhere.
func (s *CatalogService) fallbackSearch(ctx context.Context, botID, query string, limit int, inStockOnly bool) ([]domain.Product, error) {
	all, err := repo.ListAllProducts(ctx, s.DB, botID)
	if err != nil {
		return nil, err
	}
	maxDocs := s.FallbackLimit
	if maxDocs <= 0 {
		maxDocs = 200
	}
	if len(all) > maxDocs {
		all = all[:maxDocs]
	}

	byID := make(map[string]domain.Product, len(all))
	docs := make([]search.Doc, 0, len(all))
	for _, p := range all {
		if inStockOnly && p.Stock <= 0 {
			continue
		}
		byID[p.ID] = p
		docs = append(docs, search.Doc{
			ID:   p.ID,
			Text: p.SKU + " " + p.Name + " " + p.Description,
		})
	}

	kw := strings.Join(nlp.ExtractKeywords(query), " ")
	if kw == "" {
		kw = query
	}
	ranked := search.New(docs).TopK(kw, limit)

	out := make([]domain.Product, 0, len(ranked))
	for _, r := range ranked {
		out = append(out, byID[r.ID])
	}
	return out, nil
}

// ListPage returns one page of the catalog with a cursor for the next.
// An unknown orderBy value is an input error surfaced to the caller.
func (s *CatalogService) ListPage(ctx context.Context, botID, afterID, orderBy string, limit int, inStockOnly bool) (*ProductPage, error) {
	items, hasMore, err := repo.ListProductsPage(ctx, s.DB, botID, afterID, orderBy, limit, inStockOnly)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrProductNotFound // stale cursor: the anchor row is gone
		}
		return nil, err
	}
	page := &ProductPage{Items: items, HasMore: hasMore}
	if hasMore && len(items) > 0 {
		page.NextAfterID = items[len(items)-1].ID
	}
	return page, nil
}
