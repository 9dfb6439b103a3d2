package catalog

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/rs/zerolog"

	"github.com/dharsanguruparan/vaultlink/internal/apperr"
	"github.com/dharsanguruparan/vaultlink/internal/model"
	"github.com/dharsanguruparan/vaultlink/internal/token"
)

// MaxLinkAttempts bounds how many ids Create draws before giving up.
const MaxLinkAttempts = 5

// LinkOptions tunes a Links instance. Zero values pick defaults.
type LinkOptions struct {
	CacheSize int
	CacheTTL  time.Duration
	// NewToken overrides the id source; tests use it to force collisions.
	NewToken func() (string, error)
	Logger   zerolog.Logger
}

// Links issues share links and resolves them back to their items.
type Links struct {
	links    LinkStore
	items    ItemStore
	newToken func() (string, error)
	cache    *expirable.LRU[string, *model.LinkWithItems]
	log      zerolog.Logger
	now      func() time.Time
}

// NewLinks builds a Links over the given stores.
func NewLinks(links LinkStore, items ItemStore, opt LinkOptions) *Links {
	if opt.CacheSize <= 0 {
		opt.CacheSize = 1024
	}
	if opt.CacheTTL <= 0 {
		opt.CacheTTL = 10 * time.Minute
	}
	if opt.NewToken == nil {
		opt.NewToken = token.New
	}
	return &Links{
		links:    links,
		items:    items,
		newToken: opt.NewToken,
		cache:    expirable.NewLRU[string, *model.LinkWithItems](opt.CacheSize, nil, opt.CacheTTL),
		log:      opt.Logger.With().Str("component", "catalog.links").Logger(),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Create stores a link over itemIDs. Duplicate and empty ids are dropped
// keeping first-seen order; an empty result is a validation error. On id
// collision a fresh id is drawn, up to MaxLinkAttempts times.
func (l *Links) Create(ctx context.Context, itemIDs []string) (*model.Link, error) {
	ids := dedupe(itemIDs)
	if len(ids) == 0 {
		return nil, apperr.Validationf("link requires at least one item")
	}
	for attempt := 1; attempt <= MaxLinkAttempts; attempt++ {
		id, err := l.newToken()
		if err != nil {
			return nil, fmt.Errorf("generate link id: %w", err)
		}
		link := &model.Link{ID: id, ItemIDs: ids, CreatedAt: l.now()}
		err = l.links.CreateLink(ctx, link)
		if err == nil {
			return link, nil
		}
		if !apperr.IsCode(err, apperr.CodeCollision) {
			return nil, apperr.Upstream(err, "create link")
		}
		l.log.Warn().Str("link_id", id).Int("attempt", attempt).Msg("link id collision")
	}
	return nil, apperr.Exhaustedf("no free link id after %d attempts", MaxLinkAttempts)
}

// Resolve returns the link with its items in link order. Items that no longer
// exist are skipped. Results are cached; links and items never change once
// written.
func (l *Links) Resolve(ctx context.Context, id string) (*model.LinkWithItems, error) {
	if !token.Valid(id) {
		return nil, apperr.NotFoundf("link %q not found", id)
	}
	if cached, ok := l.cache.Get(id); ok {
		return cached, nil
	}
	link, err := l.links.FindLink(ctx, id)
	if err != nil {
		return nil, apperr.Upstream(err, "find link "+id)
	}
	found, err := l.items.FindByIDs(ctx, link.ItemIDs)
	if err != nil {
		return nil, apperr.Upstream(err, "find link items "+id)
	}
	byID := make(map[string]*model.Item, len(found))
	for _, it := range found {
		byID[it.ID] = it
	}
	out := &model.LinkWithItems{Link: *link, Items: make([]*model.Item, 0, len(link.ItemIDs))}
	for _, itemID := range link.ItemIDs {
		if it, ok := byID[itemID]; ok {
			out.Items = append(out.Items, it)
		}
	}
	l.cache.Add(id, out)
	return out, nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
