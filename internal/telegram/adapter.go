package telegram

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/Nyxora-Sanctum/whatsapp-deepfake-bot/internal/chat"
)

// Adapter exposes a Client as chat.Notifier and chat.MediaFetcher.
type Adapter struct {
	client           *Client
	maxDownloadBytes int64
	logger           *slog.Logger
}

var (
	_ chat.Notifier     = (*Adapter)(nil)
	_ chat.MediaFetcher = (*Adapter)(nil)
)

func NewAdapter(client *Client, maxDownloadBytes int64, logger *slog.Logger) *Adapter {
	if maxDownloadBytes <= 0 {
		maxDownloadBytes = DefaultMaxDownloadBytes
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Adapter{client: client, maxDownloadBytes: maxDownloadBytes, logger: logger}
}

func (a *Adapter) Send(ctx context.Context, chatID string, text string) (chat.MessageRef, error) {
	id, err := parseID(chatID, "chat_id")
	if err != nil {
		return chat.MessageRef{}, err
	}
	msgID, err := a.client.SendMessage(ctx, id, text, 0)
	if err != nil {
		return chat.MessageRef{}, err
	}
	return chat.MessageRef{ChatID: chatID, MessageID: strconv.FormatInt(msgID, 10)}, nil
}

func (a *Adapter) EditStatus(ctx context.Context, ref chat.MessageRef, text string) error {
	chatID, msgID, err := parseRef(ref)
	if err != nil {
		return err
	}
	return a.client.EditMessageText(ctx, chatID, msgID, text)
}

func (a *Adapter) DeleteStatus(ctx context.Context, ref chat.MessageRef) error {
	chatID, msgID, err := parseRef(ref)
	if err != nil {
		return err
	}
	return a.client.DeleteMessage(ctx, chatID, msgID)
}

func (a *Adapter) React(ctx context.Context, ref chat.MessageRef, emoji string) error {
	chatID, msgID, err := parseRef(ref)
	if err != nil {
		return err
	}
	emoji = strings.TrimSpace(emoji)
	if emoji == "" {
		return fmt.Errorf("missing reaction emoji")
	}
	return a.client.SetMessageReaction(ctx, chatID, msgID, []ReactionType{{Type: "emoji", Emoji: emoji}}, nil)
}

// SendFile uploads a result as photo or video. Telegram rejects some files
// as photos (size, dimensions), so photos fall back to a document upload.
func (a *Adapter) SendFile(ctx context.Context, chatID string, path string, caption string, kind chat.MediaKind) error {
	id, err := parseID(chatID, "chat_id")
	if err != nil {
		return err
	}
	switch kind {
	case chat.MediaPhoto, chat.MediaSticker:
		if err := a.client.SendPhoto(ctx, id, path, caption); err != nil {
			a.logger.Warn("telegram_send_photo_fallback", "chat_id", id, "error", err.Error())
			return a.client.SendDocument(ctx, id, path, caption)
		}
		return nil
	case chat.MediaVideo, chat.MediaAnimation:
		return a.client.SendVideo(ctx, id, path, caption)
	default:
		return a.client.SendDocument(ctx, id, path, caption)
	}
}

func (a *Adapter) Fetch(ctx context.Context, media chat.Media, dstPath string) (int64, error) {
	if media.Size > a.maxDownloadBytes {
		return 0, fmt.Errorf("telegram file too large (%d > %d bytes)", media.Size, a.maxDownloadBytes)
	}
	f, err := a.client.GetFile(ctx, media.FileID)
	if err != nil {
		return 0, err
	}
	if f.FileSize > a.maxDownloadBytes {
		return 0, fmt.Errorf("telegram file too large (%d > %d bytes)", f.FileSize, a.maxDownloadBytes)
	}
	n, _, err := a.client.DownloadFileTo(ctx, f.FilePath, dstPath, a.maxDownloadBytes)
	return n, err
}

func parseRef(ref chat.MessageRef) (int64, int64, error) {
	chatID, err := parseID(ref.ChatID, "chat_id")
	if err != nil {
		return 0, 0, err
	}
	msgID, err := parseID(ref.MessageID, "message_id")
	if err != nil {
		return 0, 0, err
	}
	return chatID, msgID, nil
}

func parseID(raw string, field string) (int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, fmt.Errorf("missing %s", field)
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", field, raw, err)
	}
	return id, nil
}
