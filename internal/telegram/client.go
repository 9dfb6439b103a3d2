// Package telegram adapts the Telegram Bot API to the bot package: inbound
// updates become bot.Update values and Client implements bot.Messenger.
package telegram

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/time/rate"

	"github.com/dharsanguruparan/vaultlink/internal/bot"
	"github.com/dharsanguruparan/vaultlink/internal/model"
)

// API is the subset of *tgbotapi.BotAPI the client calls.
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Client sends outbound messages through a shared rate limiter.
type Client struct {
	api     API
	limiter *rate.Limiter
}

var _ bot.Messenger = (*Client)(nil)

// NewClient wraps api. perSecond <= 0 disables throttling.
func NewClient(api API, perSecond float64) *Client {
	limit := rate.Inf
	burst := 1
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
		burst = max(int(perSecond), 1)
	}
	return &Client{api: api, limiter: rate.NewLimiter(limit, burst)}
}

// SendReply sends a text message with an optional inline keyboard.
func (c *Client) SendReply(ctx context.Context, chatID int64, text string, kb bot.Keyboard) error {
	msg := tgbotapi.NewMessage(chatID, text)
	if len(kb) > 0 {
		msg.ReplyMarkup = markup(kb)
	}
	return c.send(ctx, msg)
}

// SendMedia re-sends a stored file by its file id using the send method that
// matches kind.
func (c *Client) SendMedia(ctx context.Context, chatID int64, kind model.Kind, fileID, caption string) error {
	file := tgbotapi.FileID(fileID)
	var out tgbotapi.Chattable
	switch kind {
	case model.KindDocument:
		cfg := tgbotapi.NewDocument(chatID, file)
		cfg.Caption = caption
		out = cfg
	case model.KindVideo:
		cfg := tgbotapi.NewVideo(chatID, file)
		cfg.Caption = caption
		out = cfg
	case model.KindAudio:
		cfg := tgbotapi.NewAudio(chatID, file)
		cfg.Caption = caption
		out = cfg
	case model.KindPhoto:
		cfg := tgbotapi.NewPhoto(chatID, file)
		cfg.Caption = caption
		out = cfg
	default:
		return fmt.Errorf("send media: unsupported kind %q", kind)
	}
	return c.send(ctx, out)
}

// AnswerInteraction acknowledges a callback query, optionally as an alert.
func (c *Client) AnswerInteraction(ctx context.Context, interactionID, text string, alert bool) error {
	cfg := tgbotapi.NewCallback(interactionID, text)
	if alert {
		cfg = tgbotapi.NewCallbackWithAlert(interactionID, text)
	}
	return c.request(ctx, cfg)
}

// EditMessage replaces the text and keyboard of a message the bot sent.
func (c *Client) EditMessage(ctx context.Context, chatID int64, messageID int, text string, kb bot.Keyboard) error {
	if len(kb) == 0 {
		return c.send(ctx, tgbotapi.NewEditMessageText(chatID, messageID, text))
	}
	return c.send(ctx, tgbotapi.NewEditMessageTextAndMarkup(chatID, messageID, text, markup(kb)))
}

func (c *Client) send(ctx context.Context, msg tgbotapi.Chattable) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	if _, err := c.api.Send(msg); err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	return nil
}

// request is used for methods whose result is not a Message.
func (c *Client) request(ctx context.Context, msg tgbotapi.Chattable) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	if _, err := c.api.Request(msg); err != nil {
		return fmt.Errorf("telegram request: %w", err)
	}
	return nil
}

func markup(kb bot.Keyboard) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(kb))
	for _, row := range kb {
		buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, b := range row {
			if b.URL != "" {
				buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonURL(b.Label, b.URL))
				continue
			}
			buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(b.Label, b.Action))
		}
		rows = append(rows, buttons)
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}
