package telegram

import (
	"fmt"
	"log/slog"

	"github.com/Nyxora-Sanctum/whatsapp-deepfake-bot/internal/intent"
	"github.com/Nyxora-Sanctum/whatsapp-deepfake-bot/internal/messages"
)

type Dependencies struct {
	Logger   func() (*slog.Logger, error)
	Messages func() (*messages.Catalog, error)
	Resolver func(logger *slog.Logger) (intent.Resolver, error)
}

func loggerFromDeps(d Dependencies) (*slog.Logger, error) {
	if d.Logger == nil {
		return nil, fmt.Errorf("Logger dependency missing")
	}
	return d.Logger()
}

func messagesFromDeps(d Dependencies) (*messages.Catalog, error) {
	if d.Messages == nil {
		return messages.Default(), nil
	}
	return d.Messages()
}

func resolverFromDeps(d Dependencies, logger *slog.Logger) (intent.Resolver, error) {
	if d.Resolver == nil {
		return intent.KeywordResolver{}, nil
	}
	return d.Resolver(logger)
}
