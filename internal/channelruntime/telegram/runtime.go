package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/Nyxora-Sanctum/whatsapp-deepfake-bot/internal/chat"
	"github.com/Nyxora-Sanctum/whatsapp-deepfake-bot/internal/flow"
	"github.com/Nyxora-Sanctum/whatsapp-deepfake-bot/internal/jobrunner"
	"github.com/Nyxora-Sanctum/whatsapp-deepfake-bot/internal/mediacache"
	"github.com/Nyxora-Sanctum/whatsapp-deepfake-bot/internal/registry"
	"github.com/Nyxora-Sanctum/whatsapp-deepfake-bot/internal/session"
	telegramapi "github.com/Nyxora-Sanctum/whatsapp-deepfake-bot/internal/telegram"
)

const (
	getMeRetryDelay = 2 * time.Second
	minHTTPTimeout  = 2 * time.Minute
)

// Run serves the bot until ctx is cancelled. In-flight jobs are interrupted
// and awaited before Run returns.
func Run(ctx context.Context, opts RunOptions, d Dependencies) error {
	return runTelegramLoop(ctx, d, resolveRuntimeLoopOptionsFromRunOptions(opts))
}

func runTelegramLoop(ctx context.Context, d Dependencies, opts runtimeLoopOptions) error {
	if opts.BotToken == "" {
		return fmt.Errorf("missing telegram.bot_token (set via --telegram-bot-token or DEEPFAKEBOT_TELEGRAM_BOT_TOKEN)")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	logger, err := loggerFromDeps(d)
	if err != nil {
		return err
	}
	texts, err := messagesFromDeps(d)
	if err != nil {
		return fmt.Errorf("messages: %w", err)
	}
	resolver, err := resolverFromDeps(d, logger)
	if err != nil {
		return fmt.Errorf("intent resolver: %w", err)
	}
	steps, err := optionStepsFromOptions(opts)
	if err != nil {
		return err
	}

	cacheDir, err := mediacache.EnsureSecureDir(opts.FileCacheDir)
	if err != nil {
		return fmt.Errorf("file cache dir: %w", err)
	}
	cleanupFileCache(logger, cacheDir, opts, nil)

	var reg registry.Registry
	if opts.RegistryDir != "" {
		fileReg, err := registry.NewFileRegistry(opts.RegistryDir)
		if err != nil {
			return fmt.Errorf("user registry: %w", err)
		}
		reg = fileReg
	} else {
		reg = registry.NewMemoryRegistry()
	}

	api := telegramapi.NewClient(telegramapi.ClientOptions{
		HTTPClient: &http.Client{Timeout: httpTimeoutFor(opts.PollTimeout)},
		BaseURL:    opts.BaseURL,
		Token:      opts.BotToken,
		RateLimit:  opts.RateLimit,
	})
	adapter := telegramapi.NewAdapter(api, opts.MaxDownloadBytes, logger)

	var me *telegramapi.User
	for {
		me, err = api.GetMe(ctx)
		if err == nil {
			break
		}
		if errors.Is(err, context.Canceled) || ctx.Err() != nil {
			logger.Info("telegram_stop", "reason", "context_canceled")
			return nil
		}
		var reqErr *telegramapi.RequestError
		if errors.As(err, &reqErr) && reqErr.StatusCode == 401 {
			return fmt.Errorf("telegram getMe: %w", err)
		}
		logger.Warn("telegram_get_me_error", "error", err.Error())
		select {
		case <-ctx.Done():
			logger.Info("telegram_stop", "reason", "context_canceled")
			return nil
		case <-time.After(getMeRetryDelay):
		}
	}

	runner, err := jobrunner.New(jobrunner.Options{
		Tool:           opts.Tool,
		Notifier:       adapter,
		Messages:       texts,
		Logger:         logger,
		Timeout:        opts.JobTimeout,
		KillGrace:      opts.JobKillGrace,
		MaxConcurrency: opts.JobMaxConcurrency,
	})
	if err != nil {
		return fmt.Errorf("job runner: %w", err)
	}
	store := session.NewMemoryStore()
	machine, err := flow.New(flow.Config{
		Store:          store,
		Resolver:       resolver,
		Notifier:       adapter,
		Fetcher:        adapter,
		Runner:         runner,
		Registry:       reg,
		Messages:       texts,
		Logger:         logger,
		CacheDir:       cacheDir,
		OptionSteps:    steps,
		AcceptReaction: opts.AcceptReaction,
	})
	if err != nil {
		return fmt.Errorf("interaction flow: %w", err)
	}

	workersCtx, cancelWorkers := context.WithCancel(ctx)
	defer func() {
		cancelWorkers()
		machine.Wait()
	}()

	go runFileCacheJanitor(workersCtx, logger, cacheDir, opts, store.HoldsFile)

	workers := newUserWorkers(workersCtx, opts.HandlerConcurrency, logger, machine.Handle)

	allowed := make(map[int64]bool, len(opts.AllowedChatIDs))
	for _, id := range opts.AllowedChatIDs {
		allowed[id] = true
	}
	poller := &telegramapi.Poller{
		Client:         api,
		PollTimeout:    opts.PollTimeout,
		AllowedChatIDs: allowed,
		Logger:         logger,
	}

	logger.Info("telegram_start",
		"bot_username", me.Username,
		"bot_id", me.ID,
		"allowed_chats", len(allowed),
		"job_max_concurrency", opts.JobMaxConcurrency,
		"job_timeout", opts.JobTimeout.String(),
		"file_cache_dir", cacheDir,
	)
	err = poller.Run(workersCtx, func(pollCtx context.Context, ev chat.Event) {
		logger.Debug("telegram_event_enqueued",
			"chat_id", ev.ChatID,
			"user_id", ev.UserID,
			"has_media", ev.HasMedia(),
			"text_len", len(ev.Text),
		)
		if err := workers.Enqueue(pollCtx, ev); err != nil {
			logger.Warn("telegram_enqueue_error", "user_id", ev.UserID, "error", err.Error())
		}
	})
	logger.Info("telegram_stop", "reason", stopReason(ctx, err))
	return err
}

func optionStepsFromOptions(opts runtimeLoopOptions) (map[session.JobType][]session.OptionKey, error) {
	steps := flow.DefaultOptionSteps()
	configured := map[session.JobType][]string{
		session.JobImage: opts.ImageOptions,
		session.JobVideo: opts.VideoOptions,
	}
	for jobType, names := range configured {
		if names == nil {
			continue
		}
		keys, err := flow.ParseOptionSteps(jobType, names)
		if err != nil {
			return nil, fmt.Errorf("%s options: %w", jobType, err)
		}
		steps[jobType] = keys
	}
	return steps, nil
}

// cleanupFileCache never touches files that pinned reports as in use by a
// session or a running job.
func cleanupFileCache(logger *slog.Logger, cacheDir string, opts runtimeLoopOptions, pinned func(string) bool) {
	removed, err := mediacache.Cleanup(cacheDir, opts.FileCacheMaxAge, opts.FileCacheMaxFiles, opts.FileCacheMaxTotalBytes, pinned)
	if err != nil {
		logger.Warn("file_cache_cleanup_error", "error", err.Error())
		return
	}
	if removed > 0 {
		logger.Info("file_cache_cleanup", "removed", removed)
	}
}

func runFileCacheJanitor(ctx context.Context, logger *slog.Logger, cacheDir string, opts runtimeLoopOptions, pinned func(string) bool) {
	ticker := time.NewTicker(opts.FileCacheCleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cleanupFileCache(logger, cacheDir, opts, pinned)
		}
	}
}

// httpTimeoutFor leaves room for a full long poll and for media uploads.
func httpTimeoutFor(pollTimeout time.Duration) time.Duration {
	timeout := pollTimeout + 15*time.Second
	if timeout < minHTTPTimeout {
		timeout = minHTTPTimeout
	}
	return timeout
}

func stopReason(ctx context.Context, err error) string {
	switch {
	case err != nil:
		return "error"
	case ctx.Err() != nil:
		return "context_canceled"
	default:
		return "poller_stopped"
	}
}
