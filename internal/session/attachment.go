package session

import (
	"strings"
	"time"
)

// MediaKind is the coarse classification of an uploaded attachment.
type MediaKind string

const (
	MediaImage    MediaKind = "image"
	MediaVideo    MediaKind = "video"
	MediaDocument MediaKind = "document"
	MediaAudio    MediaKind = "audio"
	MediaUnknown  MediaKind = "unknown"
)

// Attachment is a binary artifact uploaded within a session. The payload
// is never mutated after creation.
type Attachment struct {
	ID          string
	Filename    string
	ContentType string
	Kind        MediaKind
	Data        []byte
	CreatedAt   time.Time
}

// KindFromContentType derives the media kind from a declared content type.
func KindFromContentType(contentType string) MediaKind {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	switch {
	case strings.HasPrefix(ct, "image/"):
		return MediaImage
	case strings.HasPrefix(ct, "video/"):
		return MediaVideo
	case strings.HasPrefix(ct, "audio/"):
		return MediaAudio
	case ct == "application/pdf", strings.HasPrefix(ct, "text/"):
		return MediaDocument
	default:
		return MediaUnknown
	}
}
