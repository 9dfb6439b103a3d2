// Package bot implements the conversational surface: channel ingestion,
// /search with paged results, and /start deep-link delivery. It talks to the
// chat platform only through Messenger and the Update variants, so it can be
// exercised without a live transport.
package bot

import (
	"context"

	"github.com/dharsanguruparan/vaultlink/internal/model"
)

// Messenger is the outbound side of the chat transport.
type Messenger interface {
	SendReply(ctx context.Context, chatID int64, text string, kb Keyboard) error
	SendMedia(ctx context.Context, chatID int64, kind model.Kind, fileID, caption string) error
	AnswerInteraction(ctx context.Context, interactionID, text string, alert bool) error
	EditMessage(ctx context.Context, chatID int64, messageID int, text string, kb Keyboard) error
}

// Update is one inbound platform update.
type Update interface {
	isUpdate()
}

// ChannelPost is a post in a broadcast channel.
type ChannelPost struct {
	Event model.Event
}

// Command is a slash command sent in a private chat. Name has no leading
// slash and no @botname suffix.
type Command struct {
	ChatID int64
	UserID int64
	Name   string
	Args   string
}

// Callback is a press on an inline button.
type Callback struct {
	ID        string
	UserID    int64
	ChatID    int64
	MessageID int
	Data      string
}

func (ChannelPost) isUpdate() {}
func (Command) isUpdate()     {}
func (Callback) isUpdate()    {}
