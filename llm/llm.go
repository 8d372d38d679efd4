package llm

import (
	"context"
	"time"
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type Usage struct {
	InputTokens  int
	OutputTokens int
	TotalTokens  int
}

type Result struct {
	Text     string
	Usage    Usage
	Duration time.Duration
}

type Request struct {
	Model       string
	Messages    []Message
	ForceJSON   bool
	Temperature float64
	MaxTokens   int
}

// Client is a chat completion backend. Implementations must honor ctx.
type Client interface {
	Chat(ctx context.Context, req Request) (Result, error)
}

// ClientFunc adapts a function to Client.
type ClientFunc func(ctx context.Context, req Request) (Result, error)

func (f ClientFunc) Chat(ctx context.Context, req Request) (Result, error) {
	return f(ctx, req)
}
