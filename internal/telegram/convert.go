package telegram

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/dharsanguruparan/vaultlink/internal/bot"
	"github.com/dharsanguruparan/vaultlink/internal/model"
)

// Convert maps a raw update onto the bot's update variants. ok is false for
// updates the bot does not act on.
func Convert(u tgbotapi.Update) (bot.Update, bool) {
	switch {
	case u.ChannelPost != nil:
		return ChannelPost(u.ChannelPost), true
	case u.CallbackQuery != nil:
		return callback(u.CallbackQuery)
	case u.Message != nil:
		return command(u.Message)
	}
	return nil, false
}

// ChannelPost converts a channel message into an ingestion event.
func ChannelPost(m *tgbotapi.Message) bot.ChannelPost {
	ev := model.Event{
		MessageID: int64(m.MessageID),
		GroupKey:  m.MediaGroupID,
		Caption:   m.Caption,
		Payload:   payload(m),
	}
	if m.Chat != nil {
		ev.ChannelID = m.Chat.ID
	}
	return bot.ChannelPost{Event: ev}
}

func payload(m *tgbotapi.Message) model.Payload {
	switch {
	case m.Document != nil:
		d := m.Document
		return &model.Document{
			FileRef:  model.FileRef{FileID: d.FileID, FileUniqueID: d.FileUniqueID, FileSize: int64(d.FileSize)},
			FileName: d.FileName,
			MimeType: d.MimeType,
		}
	case m.Video != nil:
		v := m.Video
		return &model.Video{
			FileRef:  model.FileRef{FileID: v.FileID, FileUniqueID: v.FileUniqueID, FileSize: int64(v.FileSize)},
			FileName: v.FileName,
			MimeType: v.MimeType,
		}
	case m.Audio != nil:
		a := m.Audio
		return &model.Audio{
			FileRef:  model.FileRef{FileID: a.FileID, FileUniqueID: a.FileUniqueID, FileSize: int64(a.FileSize)},
			FileName: a.FileName,
			MimeType: a.MimeType,
		}
	case len(m.Photo) > 0:
		photo := make(model.Photo, 0, len(m.Photo))
		for _, p := range m.Photo {
			photo = append(photo, model.PhotoSize{
				FileRef: model.FileRef{FileID: p.FileID, FileUniqueID: p.FileUniqueID, FileSize: int64(p.FileSize)},
				Width:   p.Width,
				Height:  p.Height,
			})
		}
		return photo
	}
	return nil
}

func command(m *tgbotapi.Message) (bot.Update, bool) {
	if !m.IsCommand() || m.Chat == nil {
		return nil, false
	}
	c := bot.Command{
		ChatID: m.Chat.ID,
		Name:   m.Command(),
		Args:   m.CommandArguments(),
	}
	if m.From != nil {
		c.UserID = m.From.ID
	}
	return c, true
}

func callback(q *tgbotapi.CallbackQuery) (bot.Update, bool) {
	if q.From == nil {
		return nil, false
	}
	cb := bot.Callback{ID: q.ID, UserID: q.From.ID, Data: q.Data}
	if q.Message != nil {
		cb.MessageID = q.Message.MessageID
		if q.Message.Chat != nil {
			cb.ChatID = q.Message.Chat.ID
		}
	}
	return cb, true
}
