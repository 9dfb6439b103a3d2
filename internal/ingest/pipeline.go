package ingest

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/dharsanguruparan/vaultlink/internal/metadata"
	"github.com/dharsanguruparan/vaultlink/internal/model"
)

// ItemStorer stores one item idempotently by its natural key.
type ItemStorer interface {
	Store(ctx context.Context, item *model.Item) (*model.Item, error)
}

// LinkCreator issues a link over a set of item ids.
type LinkCreator interface {
	Create(ctx context.Context, itemIDs []string) (*model.Link, error)
}

// Archiver keeps a copy of each processed batch under its link id.
type Archiver interface {
	PutBatch(ctx context.Context, linkID string, events []model.Event) error
}

// PipelineOptions configures a Pipeline. Archive and DeepLink are optional.
type PipelineOptions struct {
	Archive  Archiver
	DeepLink func(linkID string) string
	Logger   zerolog.Logger
}

// Pipeline stores the items of one batch and links them together.
type Pipeline struct {
	items    ItemStorer
	links    LinkCreator
	archive  Archiver
	deepLink func(string) string
	log      zerolog.Logger
}

// NewPipeline builds a Pipeline.
func NewPipeline(items ItemStorer, links LinkCreator, opt PipelineOptions) *Pipeline {
	if opt.DeepLink == nil {
		opt.DeepLink = func(id string) string { return id }
	}
	return &Pipeline{
		items:    items,
		links:    links,
		archive:  opt.Archive,
		deepLink: opt.DeepLink,
		log:      opt.Logger.With().Str("component", "ingest.pipeline").Logger(),
	}
}

// Process stores every file-bearing event of the batch and creates one link
// over the resulting items. Events without a file are skipped. A failure to
// store one event does not stop the others: the link still covers the items
// that were stored and the per-event failures are returned joined. When no
// item was stored no link is created and the link is nil.
func (p *Pipeline) Process(ctx context.Context, events []model.Event) (*model.Link, error) {
	var (
		ids  = make([]string, 0, len(events))
		seen = make(map[string]struct{}, len(events))
		errs []error
	)
	for _, ev := range events {
		attrs, ok := FileAttributes(ev)
		if !ok {
			p.log.Debug().Int64("message_id", ev.MessageID).Msg("no file payload, skipped")
			continue
		}
		md, keywords := metadata.Extract(attrs.Name, ev.Caption)
		stored, err := p.items.Store(ctx, &model.Item{
			FileID:       attrs.FileID,
			FileUniqueID: attrs.FileUniqueID,
			Name:         attrs.Name,
			Size:         attrs.Size,
			MimeType:     attrs.MimeType,
			Kind:         attrs.Kind,
			MessageID:    ev.MessageID,
			ChannelID:    ev.ChannelID,
			Caption:      ev.Caption,
			Metadata:     md,
			Keywords:     keywords,
		})
		if err != nil {
			itemsFailed.Inc()
			p.log.Error().Err(err).
				Int64("message_id", ev.MessageID).
				Str("file_unique_id", attrs.FileUniqueID).
				Msg("store item failed")
			errs = append(errs, fmt.Errorf("message %d: %w", ev.MessageID, err))
			continue
		}
		if _, dup := seen[stored.ID]; dup {
			continue
		}
		seen[stored.ID] = struct{}{}
		ids = append(ids, stored.ID)
	}

	if len(ids) == 0 {
		return nil, errors.Join(errs...)
	}

	link, err := p.links.Create(ctx, ids)
	if err != nil {
		errs = append(errs, fmt.Errorf("create link: %w", err))
		return nil, errors.Join(errs...)
	}
	linksCreated.Inc()

	if p.archive != nil {
		if err := p.archive.PutBatch(ctx, link.ID, events); err != nil {
			p.log.Warn().Err(err).Str("link_id", link.ID).Msg("archive batch failed")
		}
	}
	p.log.Info().
		Str("link_id", link.ID).
		Int("items", len(link.ItemIDs)).
		Str("deep_link", p.deepLink(link.ID)).
		Msg("link created")
	return link, errors.Join(errs...)
}

// Dispatch runs the batch synchronously. It lets the batcher flush straight
// into the pipeline without a worker pool.
// A batch that produced a link is not a failed flush; its per-event errors
// are only logged.
func (p *Pipeline) Dispatch(ctx context.Context, groupKey string, events []model.Event) error {
	link, err := p.Process(ctx, events)
	if err != nil && link != nil {
		p.log.Warn().Err(err).Str("group_key", groupKey).Str("link_id", link.ID).Msg("batch partially stored")
		return nil
	}
	return err
}
