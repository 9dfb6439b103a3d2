package model

import "encoding/json"

// Event is one inbound channel post as delivered by the transport.
type Event struct {
	ChannelID int64
	MessageID int64
	GroupKey  string
	Caption   string
	// Payload is nil when the post carries no file.
	Payload Payload
}

// Payload is the closed set of file variants an event can carry.
type Payload interface {
	Kind() Kind
	isPayload()
}

// FileRef identifies a file on the transport side.
type FileRef struct {
	FileID       string `json:"fileId"`
	FileUniqueID string `json:"fileUniqueId"`
	FileSize     int64  `json:"fileSize,omitempty"`
}

type Document struct {
	FileRef
	FileName string `json:"fileName,omitempty"`
	MimeType string `json:"mimeType,omitempty"`
}

type Video struct {
	FileRef
	FileName string `json:"fileName,omitempty"`
	MimeType string `json:"mimeType,omitempty"`
}

type Audio struct {
	FileRef
	FileName string `json:"fileName,omitempty"`
	MimeType string `json:"mimeType,omitempty"`
}

// PhotoSize is one resolution of a posted photo.
type PhotoSize struct {
	FileRef
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Photo lists every size variant the transport offered.
type Photo []PhotoSize

func (*Document) Kind() Kind { return KindDocument }
func (*Video) Kind() Kind    { return KindVideo }
func (*Audio) Kind() Kind    { return KindAudio }
func (Photo) Kind() Kind     { return KindPhoto }

func (*Document) isPayload() {}
func (*Video) isPayload()    {}
func (*Audio) isPayload()    {}
func (Photo) isPayload()     {}

// wirePayload is the serialized form of a Payload: at most one field is set.
type wirePayload struct {
	Document *Document `json:"document,omitempty"`
	Video    *Video    `json:"video,omitempty"`
	Audio    *Audio    `json:"audio,omitempty"`
	Photo    Photo     `json:"photo,omitempty"`
}

type wireEvent struct {
	ChannelID int64        `json:"channelId"`
	MessageID int64        `json:"messageId"`
	GroupKey  string       `json:"groupKey,omitempty"`
	Caption   string       `json:"caption,omitempty"`
	Payload   *wirePayload `json:"payload,omitempty"`
}

// MarshalJSON encodes the payload variant under its kind name.
func (e Event) MarshalJSON() ([]byte, error) {
	w := wireEvent{
		ChannelID: e.ChannelID,
		MessageID: e.MessageID,
		GroupKey:  e.GroupKey,
		Caption:   e.Caption,
	}
	switch p := e.Payload.(type) {
	case *Document:
		w.Payload = &wirePayload{Document: p}
	case *Video:
		w.Payload = &wirePayload{Video: p}
	case *Audio:
		w.Payload = &wirePayload{Audio: p}
	case Photo:
		w.Payload = &wirePayload{Photo: p}
	}
	return json.Marshal(w)
}

// UnmarshalJSON restores the payload variant written by MarshalJSON.
func (e *Event) UnmarshalJSON(data []byte) error {
	var w wireEvent
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*e = Event{
		ChannelID: w.ChannelID,
		MessageID: w.MessageID,
		GroupKey:  w.GroupKey,
		Caption:   w.Caption,
	}
	if w.Payload == nil {
		return nil
	}
	switch {
	case w.Payload.Document != nil:
		e.Payload = w.Payload.Document
	case w.Payload.Video != nil:
		e.Payload = w.Payload.Video
	case w.Payload.Audio != nil:
		e.Payload = w.Payload.Audio
	case len(w.Payload.Photo) > 0:
		e.Payload = w.Payload.Photo
	}
	return nil
}
