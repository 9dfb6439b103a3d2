package bot

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/dharsanguruparan/vaultlink/internal/apperr"
	"github.com/dharsanguruparan/vaultlink/internal/model"
	"github.com/dharsanguruparan/vaultlink/internal/search"
	"github.com/dharsanguruparan/vaultlink/internal/session"
)

// Replies shown to users.
const (
	MsgSearchUsage    = "Usage: /search <file name>"
	MsgSearchFailed   = "Search failed. Please try again."
	MsgSearchExpired  = "Search expired. Use /search again."
	MsgNotOwner       = "This search result belongs to another user."
	MsgPageFailed     = "Unable to change page."
	MsgStartUsage     = "Use /search <name> to find files, or open a deep link: /start <linkId>"
	MsgInvalidLink    = "Invalid or expired link."
	MsgFetchFailed    = "Failed to fetch files. Please try again."
	msgQueryTooLong   = "Search text is too long. Max %d characters."
	msgNothingFound   = "No files found for %q."
	defaultMaxQuery   = 100
	defaultPageLength = search.DefaultPageSize
)

// Submitter accepts channel events for batching.
type Submitter interface {
	Submit(ctx context.Context, ev model.Event)
}

// Searcher runs paged searches.
type Searcher interface {
	Search(ctx context.Context, query string, page, pageSize int) (*search.Page, error)
}

// Sessions creates and looks up search sessions.
type Sessions interface {
	Create(owner int64, query string) (session.Session, error)
	Lookup(tok string) (session.Session, bool)
}

// LinkResolver loads a link with its items.
type LinkResolver interface {
	Resolve(ctx context.Context, id string) (*model.LinkWithItems, error)
}

// Options configures a Handler.
type Options struct {
	// ChannelID restricts ingestion to one channel. Zero accepts any.
	ChannelID      int64
	PageSize       int
	MaxQueryLength int
	// LinkURL turns a link id into a shareable URL, or "" when links cannot
	// be opened.
	LinkURL func(linkID string) string
	Logger  zerolog.Logger
}

// Handler routes updates to the ingestion, search and delivery flows.
type Handler struct {
	batcher  Submitter
	search   Searcher
	sessions Sessions
	links    LinkResolver
	msg      Messenger
	opt      Options
	log      zerolog.Logger
}

// NewHandler wires a Handler.
func NewHandler(batcher Submitter, searcher Searcher, sessions Sessions, links LinkResolver, msg Messenger, opt Options) *Handler {
	if opt.PageSize <= 0 {
		opt.PageSize = defaultPageLength
	}
	if opt.MaxQueryLength <= 0 {
		opt.MaxQueryLength = defaultMaxQuery
	}
	return &Handler{
		batcher:  batcher,
		search:   searcher,
		sessions: sessions,
		links:    links,
		msg:      msg,
		opt:      opt,
		log:      opt.Logger.With().Str("component", "bot").Logger(),
	}
}

// Handle dispatches one update. User-facing failures are turned into replies;
// the returned error only reports that a reply itself could not be sent.
func (h *Handler) Handle(ctx context.Context, u Update) error {
	switch u := u.(type) {
	case ChannelPost:
		h.handleChannelPost(ctx, u)
		return nil
	case Command:
		switch u.Name {
		case "search":
			return h.handleSearch(ctx, u)
		case "start":
			return h.handleStart(ctx, u)
		}
		return nil
	case Callback:
		return h.handleCallback(ctx, u)
	default:
		return fmt.Errorf("unsupported update %T", u)
	}
}

func (h *Handler) handleChannelPost(ctx context.Context, p ChannelPost) {
	if h.opt.ChannelID != 0 && p.Event.ChannelID != h.opt.ChannelID {
		h.log.Debug().Int64("channel_id", p.Event.ChannelID).Msg("post from foreign channel ignored")
		return
	}
	h.batcher.Submit(ctx, p.Event)
}

func (h *Handler) handleSearch(ctx context.Context, c Command) error {
	query := strings.TrimSpace(c.Args)
	if query == "" {
		return h.msg.SendReply(ctx, c.ChatID, MsgSearchUsage, nil)
	}
	if utf8.RuneCountInString(query) > h.opt.MaxQueryLength {
		return h.msg.SendReply(ctx, c.ChatID, fmt.Sprintf(msgQueryTooLong, h.opt.MaxQueryLength), nil)
	}

	sess, err := h.sessions.Create(c.UserID, query)
	if err != nil {
		h.log.Error().Err(err).Int64("user_id", c.UserID).Msg("create search session")
		return h.msg.SendReply(ctx, c.ChatID, MsgSearchFailed, nil)
	}
	page, err := h.search.Search(ctx, query, 1, h.opt.PageSize)
	if err != nil {
		h.log.Error().Err(err).Str("query", query).Msg("search failed")
		return h.msg.SendReply(ctx, c.ChatID, MsgSearchFailed, nil)
	}
	if page.Total == 0 {
		return h.msg.SendReply(ctx, c.ChatID, fmt.Sprintf(msgNothingFound, query), nil)
	}
	text, kb := RenderPage(sess.Token, page, h.opt.PageSize, h.opt.LinkURL)
	return h.msg.SendReply(ctx, c.ChatID, text, kb)
}

func (h *Handler) handleCallback(ctx context.Context, cb Callback) error {
	if cb.Data == NoopAction {
		return h.msg.AnswerInteraction(ctx, cb.ID, "", false)
	}
	tok, pageNum, ok := ParseAction(cb.Data)
	if !ok {
		return h.msg.AnswerInteraction(ctx, cb.ID, "", false)
	}

	sess, found := h.sessions.Lookup(tok)
	if !found {
		return h.msg.AnswerInteraction(ctx, cb.ID, MsgSearchExpired, true)
	}
	if sess.Owner != cb.UserID {
		return h.msg.AnswerInteraction(ctx, cb.ID, MsgNotOwner, true)
	}

	page, err := h.search.Search(ctx, sess.Query, pageNum, h.opt.PageSize)
	if err != nil {
		h.log.Error().Err(err).Str("session", tok).Msg("page change failed")
		return h.msg.AnswerInteraction(ctx, cb.ID, MsgPageFailed, false)
	}
	if err := h.msg.AnswerInteraction(ctx, cb.ID, "", false); err != nil {
		return err
	}
	if page.Total == 0 {
		return h.msg.EditMessage(ctx, cb.ChatID, cb.MessageID, fmt.Sprintf(msgNothingFound, sess.Query), nil)
	}
	text, kb := RenderPage(tok, page, h.opt.PageSize, h.opt.LinkURL)
	return h.msg.EditMessage(ctx, cb.ChatID, cb.MessageID, text, kb)
}

func (h *Handler) handleStart(ctx context.Context, c Command) error {
	fields := strings.Fields(c.Args)
	if len(fields) == 0 {
		return h.msg.SendReply(ctx, c.ChatID, MsgStartUsage, nil)
	}
	linkID := fields[0]

	link, err := h.links.Resolve(ctx, linkID)
	if err != nil {
		if apperr.IsCode(err, apperr.CodeNotFound) {
			return h.msg.SendReply(ctx, c.ChatID, MsgInvalidLink, nil)
		}
		h.log.Error().Err(err).Str("link_id", linkID).Msg("resolve link")
		return h.msg.SendReply(ctx, c.ChatID, MsgFetchFailed, nil)
	}
	if len(link.Items) == 0 {
		return h.msg.SendReply(ctx, c.ChatID, MsgInvalidLink, nil)
	}

	for _, it := range link.Items {
		caption := it.Caption
		if caption == "" && it.Metadata.Title != nil {
			caption = *it.Metadata.Title
		}
		if err := h.msg.SendMedia(ctx, c.ChatID, it.Kind, it.FileID, caption); err != nil {
			h.log.Error().Err(err).Str("link_id", linkID).Str("item_id", it.ID).Msg("send item")
			return h.msg.SendReply(ctx, c.ChatID, MsgFetchFailed, nil)
		}
	}
	return nil
}
