package main

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/Nyxora-Sanctum/whatsapp-deepfake-bot/internal/configutil"
	"github.com/Nyxora-Sanctum/whatsapp-deepfake-bot/internal/intent"
	"github.com/Nyxora-Sanctum/whatsapp-deepfake-bot/internal/jobrunner"
	"github.com/Nyxora-Sanctum/whatsapp-deepfake-bot/internal/llmutil"
	"github.com/Nyxora-Sanctum/whatsapp-deepfake-bot/internal/messages"
	"github.com/Nyxora-Sanctum/whatsapp-deepfake-bot/internal/pathutil"
	"github.com/Nyxora-Sanctum/whatsapp-deepfake-bot/internal/statepaths"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func messagesFromViper() (*messages.Catalog, error) {
	path := statepaths.MessagesFile()
	if path == "" {
		return messages.Default(), nil
	}
	return messages.Load(path)
}

func resolverFromViper(logger *slog.Logger) (intent.Resolver, error) {
	mode := strings.ToLower(strings.TrimSpace(viper.GetString("intent.mode")))
	switch mode {
	case "", "keyword":
		return intent.KeywordResolver{}, nil
	case "llm":
		cfg := llmutil.ConfigFromViper()
		client, err := llmutil.ClientFromConfig(cfg)
		if err != nil {
			return nil, err
		}
		return &intent.LLMResolver{
			Client:   client,
			Model:    cfg.Model,
			Timeout:  viper.GetDuration("intent.llm_timeout"),
			Fallback: intent.KeywordResolver{},
			Logger:   logger,
		}, nil
	default:
		return nil, fmt.Errorf("invalid intent.mode %q (expected keyword|llm)", mode)
	}
}

func addToolFlags(cmd *cobra.Command) {
	cmd.Flags().String("tool-command", "python3", "Face swap CLI executable.")
	cmd.Flags().StringArray("tool-arg", nil, "Argument placed before the job arguments (repeatable).")
	cmd.Flags().String("tool-workdir", "", "Working directory for the face swap CLI.")
	cmd.Flags().String("execution-provider", "CPUExecutionProvider", "Execution provider passed to the face swap CLI.")
	cmd.Flags().Duration("job-timeout", 0, "Max run time per job (0 disables).")
	cmd.Flags().Duration("job-kill-grace", 0, "Wait after interrupting a timed out job before killing it.")
	cmd.Flags().Int("job-max-concurrency", 0, "Max face swap processes running at once.")
}

func toolConfigFromFlags(cmd *cobra.Command) jobrunner.ToolConfig {
	return jobrunner.ToolConfig{
		Command:           strings.TrimSpace(configutil.FlagOrViperString(cmd, "tool-command", "tool.command")),
		Args:              configutil.FlagOrViperStringArray(cmd, "tool-arg", "tool.args"),
		WorkDir:           pathutil.ExpandHomePath(configutil.FlagOrViperString(cmd, "tool-workdir", "tool.workdir")),
		Env:               viper.GetStringSlice("tool.env"),
		ExecutionProvider: strings.TrimSpace(configutil.FlagOrViperString(cmd, "execution-provider", "tool.execution_provider")),
	}
}
