// Package search provides a simple, deterministic, concurrency-safe
// in-memory keyword index used as the fallback when the database LIKE
// search returns nothing. It is intentionally small:
//
//   - No logging in the library (callers decide how/what to log)
//   - Unicode-aware tokenization with diacritics folding and optional
//     stop-word removal
//   - Immutable, read-only index after construction (safe for concurrent use)
//   - Deterministic scoring and sorting (stable order for ties)
//
// Scoring uses Jaccard similarity between the query token set and each
// document's token set: score = |Q ∩ D| / |Q ∪ D|, with a small boost for
// exact substring hits so SKU fragments rank above loose word overlap.
package search

import (
	"regexp"
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Doc is one indexable unit: an opaque ID and the text to match against.
type Doc struct {
	ID   string
	Text string
}

// Result is a ranked document ID with its similarity score.
type Result struct {
	ID    string
	Score float64
}

// Index is the minimal interface implemented by all search indices.
type Index interface {
	TopK(query string, k int) []Result
}

// Option configures index construction.
type Option func(*config)

type config struct {
	stopwords map[string]struct{}
	minScore  float64
}

func defaultConfig() config {
	return config{minScore: 0.01}
}

// WithStopwords drops the given words from both documents and queries.
func WithStopwords(words []string) Option {
	return func(c *config) {
		m := make(map[string]struct{}, len(words))
		for _, w := range words {
			w = strings.ToLower(strings.TrimSpace(w))
			if w != "" {
				m[w] = struct{}{}
			}
		}
		if len(m) > 0 {
			c.stopwords = m
		}
	}
}

// WithMinScore discards results scoring below the floor.
func WithMinScore(f float64) Option {
	return func(c *config) {
		if f >= 0 {
			c.minScore = f
		}
	}
}

type doc struct {
	id     string
	folded string
	tokens map[string]struct{}
}

type index struct {
	cfg  config
	docs []doc
}

// New builds an immutable index over the given documents.
func New(docs []Doc, opts ...Option) Index {
	cfg := defaultConfig()
	for _, o := range opts {
		o(&cfg)
	}
	out := &index{cfg: cfg, docs: make([]doc, 0, len(docs))}
	for _, d := range docs {
		folded := fold(d.Text)
		out.docs = append(out.docs, doc{
			id:     d.ID,
			folded: folded,
			tokens: tokenize(folded, cfg.stopwords),
		})
	}
	return out
}

// TopK returns up to k documents ranked by similarity to the query,
// highest first. Ties break on document order, so results are stable.
func (ix *index) TopK(query string, k int) []Result {
	if k <= 0 {
		return nil
	}
	qFolded := fold(query)
	qTokens := tokenize(qFolded, ix.cfg.stopwords)
	if len(qTokens) == 0 {
		return nil
	}

	results := make([]Result, 0, len(ix.docs))
	for _, d := range ix.docs {
		s := jaccard(qTokens, d.tokens)
		// substring boost: a query token appearing verbatim in the doc
		// (e.g. a SKU fragment) outranks loose overlap
		for t := range qTokens {
			if len(t) >= 3 && strings.Contains(d.folded, t) {
				s += 0.1
			}
		}
		if s > 1 {
			s = 1
		}
		if s >= ix.cfg.minScore && s > 0 {
			results = append(results, Result{ID: d.id, Score: s})
		}
	}

	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > k {
		results = results[:k]
	}
	return results
}

var tokenRE = regexp.MustCompile(`[\p{L}\p{N}][\p{L}\p{N}._-]*`)

func tokenize(folded string, stop map[string]struct{}) map[string]struct{} {
	out := make(map[string]struct{})
	for _, t := range tokenRE.FindAllString(folded, -1) {
		if _, drop := stop[t]; drop {
			continue
		}
		out[t] = struct{}{}
	}
	return out
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	inter := 0
	for t := range a {
		if _, ok := b[t]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

var foldT = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

func fold(s string) string {
	out, _, err := transform.String(foldT, strings.ToLower(s))
	if err != nil {
		return strings.ToLower(s)
	}
	return out
}
