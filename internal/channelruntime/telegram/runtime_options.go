package telegram

import (
	"strings"
	"time"

	"github.com/Nyxora-Sanctum/whatsapp-deepfake-bot/internal/jobrunner"
)

type RunOptions struct {
	BotToken         string
	BaseURL          string
	AllowedChatIDs   []int64
	PollTimeout      time.Duration
	RateLimit        float64
	MaxDownloadBytes int64
	// HandlerConcurrency bounds how many users are handled at once. Jobs run
	// outside the handlers and are bounded by JobMaxConcurrency.
	HandlerConcurrency int

	FileCacheDir             string
	FileCacheMaxAge          time.Duration
	FileCacheMaxFiles        int
	FileCacheMaxTotalBytes   int64
	FileCacheCleanupInterval time.Duration
	RegistryDir              string

	Tool              jobrunner.ToolConfig
	JobTimeout        time.Duration
	JobKillGrace      time.Duration
	JobMaxConcurrency int

	// ImageOptions and VideoOptions name the option steps per job type. Nil
	// keeps the built-in sequence; an empty list asks nothing.
	ImageOptions   []string
	VideoOptions   []string
	AcceptReaction string
}

type runtimeLoopOptions struct {
	BotToken                 string
	BaseURL                  string
	AllowedChatIDs           []int64
	PollTimeout              time.Duration
	RateLimit                float64
	MaxDownloadBytes         int64
	HandlerConcurrency       int
	FileCacheDir             string
	FileCacheMaxAge          time.Duration
	FileCacheMaxFiles        int
	FileCacheMaxTotalBytes   int64
	FileCacheCleanupInterval time.Duration
	RegistryDir              string
	Tool                     jobrunner.ToolConfig
	JobTimeout               time.Duration
	JobKillGrace             time.Duration
	JobMaxConcurrency        int
	ImageOptions             []string
	VideoOptions             []string
	AcceptReaction           string
}

func resolveRuntimeLoopOptionsFromRunOptions(opts RunOptions) runtimeLoopOptions {
	out := runtimeLoopOptions{
		BotToken:                 opts.BotToken,
		BaseURL:                  opts.BaseURL,
		AllowedChatIDs:           opts.AllowedChatIDs,
		PollTimeout:              opts.PollTimeout,
		RateLimit:                opts.RateLimit,
		MaxDownloadBytes:         opts.MaxDownloadBytes,
		HandlerConcurrency:       opts.HandlerConcurrency,
		FileCacheDir:             opts.FileCacheDir,
		FileCacheMaxAge:          opts.FileCacheMaxAge,
		FileCacheMaxFiles:        opts.FileCacheMaxFiles,
		FileCacheMaxTotalBytes:   opts.FileCacheMaxTotalBytes,
		FileCacheCleanupInterval: opts.FileCacheCleanupInterval,
		RegistryDir:              opts.RegistryDir,
		Tool:                     opts.Tool,
		JobTimeout:               opts.JobTimeout,
		JobKillGrace:             opts.JobKillGrace,
		JobMaxConcurrency:        opts.JobMaxConcurrency,
		ImageOptions:             normalizeOptionNames(opts.ImageOptions),
		VideoOptions:             normalizeOptionNames(opts.VideoOptions),
		AcceptReaction:           opts.AcceptReaction,
	}
	return normalizeRuntimeLoopOptions(out)
}

func normalizeRuntimeLoopOptions(opts runtimeLoopOptions) runtimeLoopOptions {
	opts.BotToken = strings.TrimSpace(opts.BotToken)
	opts.BaseURL = strings.TrimSpace(opts.BaseURL)
	opts.AllowedChatIDs = normalizeAllowedChatIDs(opts.AllowedChatIDs)
	opts.FileCacheDir = strings.TrimSpace(opts.FileCacheDir)
	opts.RegistryDir = strings.TrimSpace(opts.RegistryDir)
	opts.Tool.Command = strings.TrimSpace(opts.Tool.Command)
	opts.Tool.WorkDir = strings.TrimSpace(opts.Tool.WorkDir)
	opts.Tool.ExecutionProvider = strings.TrimSpace(opts.Tool.ExecutionProvider)
	opts.AcceptReaction = strings.TrimSpace(opts.AcceptReaction)

	if opts.PollTimeout <= 0 {
		opts.PollTimeout = 30 * time.Second
	}
	if opts.MaxDownloadBytes <= 0 {
		opts.MaxDownloadBytes = 20 * 1024 * 1024
	}
	if opts.HandlerConcurrency <= 0 {
		opts.HandlerConcurrency = 8
	}
	if opts.FileCacheDir == "" {
		opts.FileCacheDir = "~/.cache/deepfakebot"
	}
	if opts.FileCacheMaxAge <= 0 {
		opts.FileCacheMaxAge = 24 * time.Hour
	}
	if opts.FileCacheMaxFiles <= 0 {
		opts.FileCacheMaxFiles = 1000
	}
	if opts.FileCacheMaxTotalBytes <= 0 {
		opts.FileCacheMaxTotalBytes = int64(2 * 1024 * 1024 * 1024)
	}
	if opts.FileCacheCleanupInterval <= 0 {
		opts.FileCacheCleanupInterval = time.Hour
	}
	if opts.JobTimeout < 0 {
		opts.JobTimeout = 0
	}
	if opts.JobKillGrace <= 0 {
		opts.JobKillGrace = jobrunner.DefaultKillGrace
	}
	if opts.JobMaxConcurrency <= 0 {
		opts.JobMaxConcurrency = jobrunner.DefaultMaxConcurrency
	}
	return opts
}

func normalizeAllowedChatIDs(ids []int64) []int64 {
	if len(ids) == 0 {
		return nil
	}
	seen := make(map[int64]bool, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if id == 0 || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// normalizeOptionNames trims names but keeps nil distinct from empty.
func normalizeOptionNames(names []string) []string {
	if names == nil {
		return nil
	}
	out := make([]string, 0, len(names))
	for _, raw := range names {
		name := strings.ToLower(strings.TrimSpace(raw))
		if name == "" {
			continue
		}
		out = append(out, name)
	}
	return out
}
