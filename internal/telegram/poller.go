package telegram

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/Nyxora-Sanctum/whatsapp-deepfake-bot/internal/chat"
)

const pollErrorBackoff = 2 * time.Second

type Poller struct {
	Client      *Client
	PollTimeout time.Duration
	// AllowedChatIDs restricts which chats are served. Empty allows all.
	AllowedChatIDs map[int64]bool
	Logger         *slog.Logger
}

// Run long-polls for updates and hands every usable message to handle until
// ctx is cancelled.
func (p *Poller) Run(ctx context.Context, handle func(context.Context, chat.Event)) error {
	logger := p.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	var offset int64
	for {
		if ctx.Err() != nil {
			return nil
		}
		updates, next, err := p.Client.GetUpdates(ctx, offset, p.PollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if IsPollTimeoutError(err) {
				continue
			}
			var reqErr *RequestError
			if errors.As(err, &reqErr) && reqErr.StatusCode == 401 {
				return err
			}
			logger.Warn("telegram_poll_error", "error", err.Error())
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(pollErrorBackoff):
			}
			continue
		}
		offset = next
		for _, upd := range updates {
			msg := upd.Message
			if msg == nil {
				continue
			}
			if msg.Chat != nil && len(p.AllowedChatIDs) > 0 && !p.AllowedChatIDs[msg.Chat.ID] {
				logger.Debug("telegram_chat_not_allowed", "chat_id", msg.Chat.ID)
				continue
			}
			ev, ok := EventFromMessage(msg)
			if !ok {
				continue
			}
			handle(ctx, ev)
		}
	}
}
