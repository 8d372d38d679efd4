package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Nyxora-Sanctum/whatsapp-deepfake-bot/internal/intent"
	"github.com/Nyxora-Sanctum/whatsapp-deepfake-bot/internal/logutil"
	"github.com/Nyxora-Sanctum/whatsapp-deepfake-bot/internal/messages"
	"github.com/spf13/viper"
)

func TestResolverFromViper(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	initViperDefaults()

	r, err := resolverFromViper(logutil.Discard())
	if err != nil {
		t.Fatalf("resolverFromViper() error = %v", err)
	}
	if _, ok := r.(intent.KeywordResolver); !ok {
		t.Fatalf("default resolver = %T, want keyword", r)
	}

	viper.Set("intent.mode", "llm")
	r, err = resolverFromViper(logutil.Discard())
	if err != nil {
		t.Fatalf("resolverFromViper(llm) error = %v", err)
	}
	lr, ok := r.(*intent.LLMResolver)
	if !ok || lr.Model != "gpt-4o-mini" || lr.Fallback == nil {
		t.Fatalf("llm resolver = %#v", r)
	}

	viper.Set("intent.mode", "magic")
	if _, err := resolverFromViper(logutil.Discard()); err == nil {
		t.Fatalf("unknown mode should fail")
	}
}

func TestMessagesFromViper(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	c, err := messagesFromViper()
	if err != nil || c == nil {
		t.Fatalf("messagesFromViper() = %v, %v", c, err)
	}

	path := filepath.Join(t.TempDir(), "texts.yaml")
	if err := os.WriteFile(path, []byte("busy: 'Sabar ya'\n"), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	viper.Set("messages.file", path)
	c, err = messagesFromViper()
	if err != nil {
		t.Fatalf("messagesFromViper(file) error = %v", err)
	}
	if got := c.Text(messages.Busy); got != "Sabar ya" {
		t.Fatalf("Busy = %q", got)
	}
}

func TestVersionCommand(t *testing.T) {
	out, _, err := runRoot(t, "version")
	if err != nil {
		t.Fatalf("version error = %v", err)
	}
	if !strings.HasPrefix(out, "deepfakebot ") {
		t.Fatalf("version output = %q", out)
	}
}

func TestTelegramCommandRequiresToken(t *testing.T) {
	t.Setenv("DEEPFAKEBOT_TELEGRAM_BOT_TOKEN", "")
	_, _, err := runRoot(t, "telegram", "--env-file", "")
	if err == nil || !strings.Contains(err.Error(), "telegram.bot_token") {
		t.Fatalf("telegram error = %v, want missing token", err)
	}
}
