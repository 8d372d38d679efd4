// Package chat defines the messaging collaborator contracts used by the bot
// core. Transports (Telegram, console) implement Notifier and MediaFetcher.
package chat

import (
	"context"
	"strings"
	"time"
)

type MediaKind int

const (
	MediaOther MediaKind = iota
	MediaPhoto
	MediaSticker
	MediaVideo
	MediaAnimation
	MediaDocument
)

func (k MediaKind) String() string {
	switch k {
	case MediaPhoto:
		return "photo"
	case MediaSticker:
		return "sticker"
	case MediaVideo:
		return "video"
	case MediaAnimation:
		return "animation"
	case MediaDocument:
		return "document"
	default:
		return "other"
	}
}

// Media is a reference to an attachment that can be downloaded with a MediaFetcher.
type Media struct {
	Kind     MediaKind
	MimeType string
	FileID   string
	FileName string
	Size     int64
}

// ImageLike reports whether the media can serve as a still image. Stickers
// count as images.
func (m *Media) ImageLike() bool {
	if m == nil {
		return false
	}
	switch m.Kind {
	case MediaPhoto, MediaSticker:
		return true
	case MediaDocument:
		return strings.HasPrefix(normalizedMime(m.MimeType), "image/")
	default:
		return false
	}
}

// VideoLike reports whether the media is a video. It is never true for
// media that is ImageLike.
func (m *Media) VideoLike() bool {
	if m == nil {
		return false
	}
	switch m.Kind {
	case MediaVideo, MediaAnimation:
		return true
	case MediaDocument:
		return strings.HasPrefix(normalizedMime(m.MimeType), "video/")
	default:
		return false
	}
}

func normalizedMime(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Event is one inbound message from a user.
type Event struct {
	UserID    string
	ChatID    string
	MessageID string
	Text      string
	Media     *Media
	SentAt    time.Time
}

func (e Event) HasMedia() bool { return e.Media != nil }

func (e Event) Ref() MessageRef {
	return MessageRef{ChatID: e.ChatID, MessageID: e.MessageID}
}

// MessageRef identifies a message in a chat.
type MessageRef struct {
	ChatID    string
	MessageID string
}

func (r MessageRef) IsZero() bool {
	return strings.TrimSpace(r.ChatID) == "" || strings.TrimSpace(r.MessageID) == ""
}

// Notifier sends, edits and deletes outbound messages.
type Notifier interface {
	Send(ctx context.Context, chatID string, text string) (MessageRef, error)
	EditStatus(ctx context.Context, ref MessageRef, text string) error
	DeleteStatus(ctx context.Context, ref MessageRef) error
	React(ctx context.Context, ref MessageRef, emoji string) error
	SendFile(ctx context.Context, chatID string, path string, caption string, kind MediaKind) error
}

// MediaFetcher downloads the bytes behind a Media reference to dstPath.
type MediaFetcher interface {
	Fetch(ctx context.Context, media Media, dstPath string) (int64, error)
}
