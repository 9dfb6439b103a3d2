package ingest

import (
	"github.com/dharsanguruparan/vaultlink/internal/model"
)

const defaultPhotoMime = "image/jpeg"

// Attributes are the file fields derived from an event payload.
type Attributes struct {
	Kind         model.Kind
	FileID       string
	FileUniqueID string
	Size         int64
	MimeType     string
	Name         string
}

// FileAttributes reads the file fields off ev's payload. ok is false when
// the event carries no usable file.
func FileAttributes(ev model.Event) (attrs Attributes, ok bool) {
	switch p := ev.Payload.(type) {
	case *model.Document:
		if p == nil {
			return Attributes{}, false
		}
		attrs = Attributes{FileID: p.FileID, FileUniqueID: p.FileUniqueID, Size: p.FileSize, MimeType: p.MimeType, Name: p.FileName}
	case *model.Video:
		if p == nil {
			return Attributes{}, false
		}
		attrs = Attributes{FileID: p.FileID, FileUniqueID: p.FileUniqueID, Size: p.FileSize, MimeType: p.MimeType, Name: p.FileName}
	case *model.Audio:
		if p == nil {
			return Attributes{}, false
		}
		attrs = Attributes{FileID: p.FileID, FileUniqueID: p.FileUniqueID, Size: p.FileSize, MimeType: p.MimeType, Name: p.FileName}
	case model.Photo:
		best, found := largestPhoto(p)
		if !found {
			return Attributes{}, false
		}
		attrs = Attributes{FileID: best.FileID, FileUniqueID: best.FileUniqueID, Size: best.FileSize, MimeType: defaultPhotoMime}
	default:
		return Attributes{}, false
	}

	if attrs.FileID == "" || attrs.FileUniqueID == "" {
		return Attributes{}, false
	}
	attrs.Kind = ev.Payload.Kind()
	if attrs.Name == "" {
		attrs.Name = string(attrs.Kind) + "_" + attrs.FileUniqueID
	}
	return attrs, true
}

// largestPhoto picks the size variant with the highest file size plus pixel
// count. The first variant wins ties.
func largestPhoto(sizes model.Photo) (model.PhotoSize, bool) {
	if len(sizes) == 0 {
		return model.PhotoSize{}, false
	}
	best := sizes[0]
	for _, s := range sizes[1:] {
		if photoScore(s) > photoScore(best) {
			best = s
		}
	}
	return best, true
}

func photoScore(s model.PhotoSize) int64 {
	return s.FileSize + int64(s.Width)*int64(s.Height)
}
