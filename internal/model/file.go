// Package model contains the struct definitions shared across packages.
package model

import (
	"time"
)

// Kind is the payload variant an item was ingested from.
type Kind string

const (
	KindDocument Kind = "document"
	KindVideo    Kind = "video"
	KindAudio    Kind = "audio"
	KindPhoto    Kind = "photo"
)

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindDocument, KindVideo, KindAudio, KindPhoto:
		return true
	}
	return false
}

// Category is the coarse classification derived from a name and caption.
type Category string

const (
	CategoryMovie  Category = "movie"
	CategorySeries Category = "series"
	CategoryAnime  Category = "anime"
	CategoryOther  Category = "other"
)

// Metadata holds attributes parsed out of a file name and caption. Every
// field except Type is optional.
type Metadata struct {
	Title      *string  `json:"title"`
	Year       *int     `json:"year"`
	Season     *int     `json:"season"`
	Episode    *int     `json:"episode"`
	Quality    *string  `json:"quality"`
	Language   *string  `json:"language"`
	Resolution *string  `json:"resolution"`
	Type       Category `json:"type"`
}

// Item is one deduplicated upload. FileUniqueID is the natural key; a record
// is never modified once stored.
type Item struct {
	ID           string    `json:"id"`
	FileID       string    `json:"fileId"`
	FileUniqueID string    `json:"fileUniqueId"`
	Name         string    `json:"name"`
	Size         int64     `json:"size"`
	MimeType     string    `json:"mimeType,omitempty"`
	Kind         Kind      `json:"kind"`
	MessageID    int64     `json:"messageId"`
	ChannelID    int64     `json:"channelId"`
	Caption      string    `json:"caption"`
	Metadata     Metadata  `json:"metadata"`
	Keywords     []string  `json:"keywords"`
	CreatedAt    time.Time `json:"createdAt"`
}

// DisplayTitle returns the best human label for the item.
func (i *Item) DisplayTitle() string {
	if i.Metadata.Title != nil && *i.Metadata.Title != "" {
		return *i.Metadata.Title
	}
	if i.Name != "" {
		return i.Name
	}
	return "Unnamed file"
}

// Link is a shareable handle for the items produced by one event batch.
type Link struct {
	ID        string    `json:"id"`
	ItemIDs   []string  `json:"itemIds"`
	CreatedAt time.Time `json:"createdAt"`
}

// LinkWithItems is a link with its items resolved, in link order.
type LinkWithItems struct {
	Link
	Items []*Item `json:"items"`
}
