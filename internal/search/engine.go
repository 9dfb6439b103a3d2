// Package search runs paged free-text queries over stored items and attaches
// the newest link referencing each result.
package search

import (
	"context"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/dharsanguruparan/vaultlink/internal/apperr"
	"github.com/dharsanguruparan/vaultlink/internal/model"
)

// DefaultPageSize is used when a caller passes a non-positive page size.
const DefaultPageSize = 10

var searchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "vaultlink_searches_total",
	Help: "Search queries by outcome.",
}, []string{"outcome"})

// Store is the read side the engine needs. SearchItems returns one page in
// newest-first order plus the total number of matches. LinksReferencing
// returns every link that shares an item with itemIDs, newest first.
type Store interface {
	SearchItems(ctx context.Context, query string, offset, limit int) ([]*model.Item, int, error)
	LinksReferencing(ctx context.Context, itemIDs []string) ([]*model.Link, error)
}

// Result is one item on a page. LinkID is empty when no link references it.
type Result struct {
	Item   *model.Item `json:"item"`
	LinkID string      `json:"linkId,omitempty"`
}

// Page is one page of a search.
type Page struct {
	Query      string   `json:"query"`
	Page       int      `json:"page"`
	Total      int      `json:"total"`
	TotalPages int      `json:"totalPages"`
	Results    []Result `json:"results"`
}

// Engine executes searches against a Store.
type Engine struct {
	store Store
}

// NewEngine builds an Engine.
func NewEngine(store Store) *Engine {
	return &Engine{store: store}
}

// Search returns the requested page of items matching query. The page number
// is clamped into [1, TotalPages]; an empty query returns an empty page
// without touching the store.
func (e *Engine) Search(ctx context.Context, query string, page, pageSize int) (*Page, error) {
	query = strings.TrimSpace(query)
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if page < 1 {
		page = 1
	}
	if query == "" {
		searchesTotal.WithLabelValues("empty").Inc()
		return &Page{Page: 1, Results: []Result{}}, nil
	}

	// First probe the requested page; the total tells us whether to clamp.
	items, total, err := e.store.SearchItems(ctx, query, (page-1)*pageSize, pageSize)
	if err != nil {
		searchesTotal.WithLabelValues("error").Inc()
		return nil, apperr.Upstream(err, "search items")
	}
	totalPages := (total + pageSize - 1) / pageSize
	if total > 0 && page > totalPages {
		page = totalPages
		items, total, err = e.store.SearchItems(ctx, query, (page-1)*pageSize, pageSize)
		if err != nil {
			searchesTotal.WithLabelValues("error").Inc()
			return nil, apperr.Upstream(err, "search items")
		}
		totalPages = (total + pageSize - 1) / pageSize
	}
	if total == 0 {
		searchesTotal.WithLabelValues("miss").Inc()
		return &Page{Query: query, Page: 1, Results: []Result{}}, nil
	}

	linkByItem, err := e.newestLinks(ctx, items)
	if err != nil {
		searchesTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	results := make([]Result, 0, len(items))
	for _, it := range items {
		results = append(results, Result{Item: it, LinkID: linkByItem[it.ID]})
	}
	searchesTotal.WithLabelValues("hit").Inc()
	return &Page{
		Query:      query,
		Page:       page,
		Total:      total,
		TotalPages: totalPages,
		Results:    results,
	}, nil
}

// newestLinks maps item id to the newest link referencing it, using one
// store call for the whole page.
func (e *Engine) newestLinks(ctx context.Context, items []*model.Item) (map[string]string, error) {
	out := make(map[string]string, len(items))
	if len(items) == 0 {
		return out, nil
	}
	ids := make([]string, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.ID)
	}
	links, err := e.store.LinksReferencing(ctx, ids)
	if err != nil {
		return nil, apperr.Upstream(err, "find links for results")
	}
	for _, l := range links {
		for _, id := range l.ItemIDs {
			if _, seen := out[id]; !seen {
				out[id] = l.ID
			}
		}
	}
	return out, nil
}
