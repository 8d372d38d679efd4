package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	telegramruntime "github.com/Nyxora-Sanctum/whatsapp-deepfake-bot/internal/channelruntime/telegram"
	"github.com/Nyxora-Sanctum/whatsapp-deepfake-bot/internal/configutil"
	"github.com/Nyxora-Sanctum/whatsapp-deepfake-bot/internal/logutil"
	"github.com/Nyxora-Sanctum/whatsapp-deepfake-bot/internal/pathutil"
	"github.com/Nyxora-Sanctum/whatsapp-deepfake-bot/internal/statepaths"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newTelegramCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "telegram",
		Short: "Run the face swap bot on Telegram",
		RunE: func(cmd *cobra.Command, args []string) error {
			token := strings.TrimSpace(configutil.FlagOrViperString(cmd, "telegram-bot-token", "telegram.bot_token"))
			if token == "" {
				return fmt.Errorf("missing telegram.bot_token (set via --telegram-bot-token or DEEPFAKEBOT_TELEGRAM_BOT_TOKEN)")
			}
			allowed, err := configutil.ParseInt64List(configutil.FlagOrViperStringArray(cmd, "telegram-allowed-chat-id", "telegram.allowed_chat_ids"))
			if err != nil {
				return fmt.Errorf("invalid telegram.allowed_chat_ids: %w", err)
			}

			fileCacheDir := configutil.FlagOrViperString(cmd, "file-cache-dir", "file_cache_dir")
			opts := telegramruntime.RunOptions{
				BotToken:                 token,
				BaseURL:                  viper.GetString("telegram.base_url"),
				AllowedChatIDs:           allowed,
				PollTimeout:              configutil.FlagOrViperDuration(cmd, "telegram-poll-timeout", "telegram.poll_timeout"),
				RateLimit:                viper.GetFloat64("telegram.rate_limit"),
				MaxDownloadBytes:         viper.GetInt64("telegram.max_download_bytes"),
				HandlerConcurrency:       viper.GetInt("telegram.handler_concurrency"),
				FileCacheDir:             pathutil.NormalizeFileCacheDirPath(fileCacheDir),
				FileCacheMaxAge:          viper.GetDuration("file_cache.max_age"),
				FileCacheMaxFiles:        viper.GetInt("file_cache.max_files"),
				FileCacheMaxTotalBytes:   viper.GetInt64("file_cache.max_total_bytes"),
				FileCacheCleanupInterval: viper.GetDuration("file_cache.cleanup_interval"),
				RegistryDir:              statepaths.RegistryDir(),
				Tool:                     toolConfigFromFlags(cmd),
				JobTimeout:               configutil.FlagOrViperDuration(cmd, "job-timeout", "job.timeout"),
				JobKillGrace:             configutil.FlagOrViperDuration(cmd, "job-kill-grace", "job.kill_grace"),
				JobMaxConcurrency:        configutil.FlagOrViperInt(cmd, "job-max-concurrency", "job.max_concurrency"),
				ImageOptions:             viper.GetStringSlice("flow.image_options"),
				VideoOptions:             viper.GetStringSlice("flow.video_options"),
				AcceptReaction:           viper.GetString("flow.accept_reaction"),
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return telegramruntime.Run(ctx, opts, telegramruntime.Dependencies{
				Logger:   logutil.LoggerFromViper,
				Messages: messagesFromViper,
				Resolver: resolverFromViper,
			})
		},
	}

	cmd.Flags().String("telegram-bot-token", "", "Telegram bot token.")
	cmd.Flags().StringArray("telegram-allowed-chat-id", nil, "Allowed chat id(s). If empty, allows all.")
	cmd.Flags().Duration("telegram-poll-timeout", 30*time.Second, "Long polling timeout for getUpdates.")
	cmd.Flags().String("file-cache-dir", "~/.cache/deepfakebot", "Scratch directory for downloaded media and job outputs.")
	addToolFlags(cmd)

	return cmd
}
