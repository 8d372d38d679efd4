package telegram

import (
	"strconv"
	"strings"
	"time"

	"github.com/Nyxora-Sanctum/whatsapp-deepfake-bot/internal/chat"
)

// EventFromMessage converts a Telegram message into a chat event. It reports
// false for messages without a sender or chat, and for bot senders.
func EventFromMessage(msg *Message) (chat.Event, bool) {
	if msg == nil || msg.Chat == nil || msg.From == nil || msg.From.IsBot {
		return chat.Event{}, false
	}
	text := strings.TrimSpace(msg.Text)
	if text == "" {
		text = strings.TrimSpace(msg.Caption)
	}
	ev := chat.Event{
		UserID:    strconv.FormatInt(msg.From.ID, 10),
		ChatID:    strconv.FormatInt(msg.Chat.ID, 10),
		MessageID: strconv.FormatInt(msg.MessageID, 10),
		Text:      text,
		Media:     mediaFromMessage(msg),
	}
	if msg.Date > 0 {
		ev.SentAt = time.Unix(msg.Date, 0).UTC()
	}
	return ev, true
}

func mediaFromMessage(msg *Message) *chat.Media {
	switch {
	case len(msg.Photo) > 0:
		best := largestPhoto(msg.Photo)
		return &chat.Media{Kind: chat.MediaPhoto, MimeType: "image/jpeg", FileID: best.FileID, Size: best.FileSize}
	case msg.Sticker != nil:
		// Animated (tgs) and video (webm) stickers are not usable as faces.
		kind := chat.MediaSticker
		mime := "image/webp"
		if msg.Sticker.IsAnimated || msg.Sticker.IsVideo {
			kind, mime = chat.MediaOther, ""
		}
		return &chat.Media{Kind: kind, MimeType: mime, FileID: msg.Sticker.FileID, Size: msg.Sticker.FileSize}
	case msg.Video != nil:
		return videoMedia(chat.MediaVideo, msg.Video)
	case msg.Animation != nil:
		return videoMedia(chat.MediaAnimation, msg.Animation)
	case msg.Document != nil:
		d := msg.Document
		return &chat.Media{Kind: chat.MediaDocument, MimeType: d.MimeType, FileID: d.FileID, FileName: d.FileName, Size: d.FileSize}
	default:
		return nil
	}
}

func videoMedia(kind chat.MediaKind, v *Video) *chat.Media {
	mime := v.MimeType
	if strings.TrimSpace(mime) == "" {
		mime = "video/mp4"
	}
	return &chat.Media{Kind: kind, MimeType: mime, FileID: v.FileID, FileName: v.FileName, Size: v.FileSize}
}

func largestPhoto(sizes []PhotoSize) PhotoSize {
	best := sizes[0]
	for _, p := range sizes[1:] {
		if p.Width*p.Height > best.Width*best.Height || (p.Width*p.Height == best.Width*best.Height && p.FileSize > best.FileSize) {
			best = p
		}
	}
	return best
}
