package intent

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/Nyxora-Sanctum/whatsapp-deepfake-bot/internal/jsonutil"
	"github.com/Nyxora-Sanctum/whatsapp-deepfake-bot/internal/session"
	"github.com/Nyxora-Sanctum/whatsapp-deepfake-bot/llm"
)

const defaultLLMTimeout = 8 * time.Second

// LLMResolver asks a chat model for the tag. Any failure (transport, timeout,
// malformed or unknown reply) is answered by Fallback.
type LLMResolver struct {
	Client   llm.Client
	Model    string
	Timeout  time.Duration
	Fallback Resolver
	Logger   *slog.Logger
}

type llmIntentOutput struct {
	Intent string `json:"intent"`
}

func (r *LLMResolver) Classify(ctx context.Context, text string, current *session.Session) Tag {
	fallback := r.Fallback
	if fallback == nil {
		fallback = KeywordResolver{}
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return Unknown
	}
	if r.Client == nil {
		return fallback.Classify(ctx, text, current)
	}
	// Cancellation must not depend on a remote model.
	if IsCancel(text) {
		return Cancel
	}

	timeout := r.Timeout
	if timeout <= 0 {
		timeout = defaultLLMTimeout
	}
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	res, err := r.Client.Chat(reqCtx, llm.Request{
		Model:     r.Model,
		ForceJSON: true,
		MaxTokens: 64,
		Messages: []llm.Message{
			{Role: "system", Content: llmSystemPrompt},
			{Role: "user", Content: buildLLMPayload(text, current)},
		},
	})
	if err != nil {
		r.logWarn("intent_llm_error", "error", err.Error())
		return fallback.Classify(ctx, text, current)
	}
	var out llmIntentOutput
	if err := jsonutil.DecodeWithFallback(res.Text, &out); err != nil {
		r.logWarn("intent_llm_invalid_json", "error", err.Error())
		return fallback.Classify(ctx, text, current)
	}
	tag, ok := ParseTag(out.Intent)
	if !ok || tag == Unknown || tag == ProvideMedia {
		return fallback.Classify(ctx, text, current)
	}
	return tag
}

func (r *LLMResolver) logWarn(msg string, args ...any) {
	if r.Logger != nil {
		r.Logger.Warn(msg, args...)
	}
}

const llmSystemPrompt = "You route messages for a face-swap chat bot. " +
	"Return ONLY JSON: {\"intent\": TAG}. TAG is one of START_IMAGE, START_VIDEO, SWITCH_IMAGE, SWITCH_VIDEO, CANCEL, CHITCHAT, HELP, UNKNOWN. " +
	"START_* when the user wants to begin a face swap on an image or a video. " +
	"SWITCH_* only when a session is active and the user wants the other media type. " +
	"CANCEL when the user wants to stop. HELP when the user asks how the bot works. " +
	"CHITCHAT for greetings and small talk. UNKNOWN otherwise."

func buildLLMPayload(text string, current *session.Session) string {
	payload := map[string]any{
		"text":          text,
		"session_state": session.StateIdle.String(),
	}
	if current != nil {
		payload["session_state"] = current.State.String()
		payload["job_type"] = current.JobType.String()
	}
	b, _ := json.Marshal(payload)
	return string(b)
}
