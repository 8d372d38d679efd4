package main

import (
	"time"

	"github.com/spf13/viper"
)

func initViperDefaults() {
	// Global
	viper.SetDefault("file_state_dir", "~/.deepfakebot")
	viper.SetDefault("file_cache_dir", "~/.cache/deepfakebot")
	viper.SetDefault("file_cache.max_age", 24*time.Hour)
	viper.SetDefault("file_cache.max_files", 1000)
	viper.SetDefault("file_cache.max_total_bytes", int64(2*1024*1024*1024))
	viper.SetDefault("file_cache.cleanup_interval", time.Hour)
	viper.SetDefault("registry.dir_name", "registry")
	viper.SetDefault("messages.file", "")

	// Telegram
	viper.SetDefault("telegram.bot_token", "")
	viper.SetDefault("telegram.base_url", "https://api.telegram.org")
	viper.SetDefault("telegram.allowed_chat_ids", []string{})
	viper.SetDefault("telegram.poll_timeout", 30*time.Second)
	viper.SetDefault("telegram.rate_limit", 20.0)
	viper.SetDefault("telegram.max_download_bytes", int64(20*1024*1024))
	viper.SetDefault("telegram.handler_concurrency", 8)

	// Face swap tool
	viper.SetDefault("tool.command", "python3")
	viper.SetDefault("tool.args", []string{"run.py"})
	viper.SetDefault("tool.workdir", "")
	viper.SetDefault("tool.env", []string{})
	viper.SetDefault("tool.execution_provider", "CPUExecutionProvider")

	// Jobs
	viper.SetDefault("job.timeout", 20*time.Minute)
	viper.SetDefault("job.kill_grace", 5*time.Second)
	viper.SetDefault("job.max_concurrency", 2)

	// Conversation
	viper.SetDefault("flow.image_options", []string{"enhance", "multi_face", "upscale"})
	viper.SetDefault("flow.video_options", []string{"enhance", "multi_face", "quality"})
	viper.SetDefault("flow.accept_reaction", "👌")

	// Intent
	viper.SetDefault("intent.mode", "keyword")
	viper.SetDefault("intent.llm_timeout", 8*time.Second)
	viper.SetDefault("llm.provider", "openai")
	viper.SetDefault("llm.endpoint", "")
	viper.SetDefault("llm.model", "gpt-4o-mini")
	viper.SetDefault("llm.api_key", "")
	viper.SetDefault("llm.request_timeout", 30*time.Second)

	// Logging
	viper.SetDefault("logging.format", "text")
	viper.SetDefault("logging.add_source", false)
	viper.SetDefault("trace", false)
}
