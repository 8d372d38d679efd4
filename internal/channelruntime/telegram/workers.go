package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Nyxora-Sanctum/whatsapp-deepfake-bot/internal/chat"
	runtimeworker "github.com/Nyxora-Sanctum/whatsapp-deepfake-bot/internal/channelruntime/worker"
)

const (
	userQueueSize         = 16
	userWorkerIdleTimeout = 10 * time.Minute
)

type telegramUserWorker struct {
	Jobs chan chat.Event
	// pending counts events handed to Jobs and not yet handled. Guarded by
	// userWorkers.mu.
	pending int
}

// userWorkers runs one sequential queue per user. A queue that stays empty
// for idleTimeout is retired and restarted on the user's next event.
type userWorkers struct {
	ctx         context.Context
	sem         chan struct{}
	idleTimeout time.Duration
	handle      func(context.Context, chat.Event) error
	logger      *slog.Logger

	mu      sync.Mutex
	workers map[string]*telegramUserWorker
}

func newUserWorkers(ctx context.Context, concurrency int, logger *slog.Logger, handle func(context.Context, chat.Event) error) *userWorkers {
	return &userWorkers{
		ctx:         ctx,
		sem:         make(chan struct{}, concurrency),
		idleTimeout: userWorkerIdleTimeout,
		handle:      handle,
		logger:      logger,
		workers:     make(map[string]*telegramUserWorker),
	}
}

func (u *userWorkers) Enqueue(ctx context.Context, ev chat.Event) error {
	u.mu.Lock()
	w := u.getOrStartWorkerLocked(ev.UserID)
	w.pending++
	u.mu.Unlock()

	if err := runtimeworker.Enqueue(ctx, u.ctx, w.Jobs, ev); err != nil {
		u.finished(w)
		return err
	}
	return nil
}

func (u *userWorkers) Len() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.workers)
}

func (u *userWorkers) getOrStartWorkerLocked(userID string) *telegramUserWorker {
	if w, ok := u.workers[userID]; ok && w != nil {
		return w
	}
	w := &telegramUserWorker{Jobs: make(chan chat.Event, userQueueSize)}
	u.workers[userID] = w

	runtimeworker.Start(runtimeworker.StartOptions[chat.Event]{
		Ctx:  u.ctx,
		Sem:  u.sem,
		Jobs: w.Jobs,
		Handle: func(workerCtx context.Context, ev chat.Event) {
			defer u.finished(w)
			if err := u.handle(workerCtx, ev); err != nil {
				u.logger.Warn("telegram_handle_error",
					"chat_id", ev.ChatID,
					"user_id", ev.UserID,
					"error", err.Error(),
				)
			}
		},
		OnPanic: func(v any) {
			u.logger.Error("telegram_handler_panic", "user_id", userID, "panic", fmt.Sprint(v))
		},
		IdleTimeout: u.idleTimeout,
		OnIdle:      func() bool { return u.retire(userID, w) },
	})
	return w
}

func (u *userWorkers) finished(w *telegramUserWorker) {
	u.mu.Lock()
	w.pending--
	u.mu.Unlock()
}

// retire drops w from the map unless an event is queued or being enqueued.
func (u *userWorkers) retire(userID string, w *telegramUserWorker) bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	if w.pending > 0 {
		return false
	}
	if u.workers[userID] == w {
		delete(u.workers, userID)
	}
	u.logger.Debug("telegram_worker_retired", "user_id", userID)
	return true
}
