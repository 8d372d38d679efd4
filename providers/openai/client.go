package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Nyxora-Sanctum/whatsapp-deepfake-bot/llm"
)

const defaultBaseURL = "https://api.openai.com"

// Client talks to any OpenAI-compatible /v1/chat/completions endpoint.
type Client struct {
	BaseURL string
	APIKey  string
	HTTP    *http.Client
}

func New(baseURL, apiKey string, timeout time.Duration) *Client {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if timeout <= 0 {
		timeout = 90 * time.Second
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		APIKey:  strings.TrimSpace(apiKey),
		HTTP:    &http.Client{Timeout: timeout},
	}
}

type chatCompletionRequest struct {
	Model          string        `json:"model"`
	Messages       []llm.Message `json:"messages"`
	Temperature    float64       `json:"temperature"`
	MaxTokens      int           `json:"max_tokens,omitempty"`
	ResponseFormat any           `json:"response_format,omitempty"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

type attempt struct {
	res    llm.Result
	out    *chatCompletionResponse
	status int
	raw    []byte
}

func (c *Client) Chat(ctx context.Context, req llm.Request) (llm.Result, error) {
	start := time.Now()
	a, err := c.do(ctx, req, req.ForceJSON, start)
	if err != nil {
		return llm.Result{}, err
	}
	if a.status >= 200 && a.status < 300 {
		return a.res, nil
	}
	// Some compatible servers reject response_format; retry once without it.
	if req.ForceJSON && a.out != nil && a.out.Error != nil && strings.Contains(strings.ToLower(a.out.Error.Message), "response_format") {
		a, err = c.do(ctx, req, false, start)
		if err != nil {
			return llm.Result{}, err
		}
		if a.status >= 200 && a.status < 300 {
			return a.res, nil
		}
	}
	if a.out != nil && a.out.Error != nil && a.out.Error.Message != "" {
		return llm.Result{}, fmt.Errorf("openai http %d: %s", a.status, a.out.Error.Message)
	}
	return llm.Result{}, fmt.Errorf("openai http %d: %s", a.status, strings.TrimSpace(string(a.raw)))
}

func (c *Client) do(ctx context.Context, req llm.Request, forceJSON bool, start time.Time) (attempt, error) {
	body := chatCompletionRequest{
		Model:       req.Model,
		Messages:    req.Messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}
	if forceJSON {
		body.ResponseFormat = map[string]string{"type": "json_object"}
	}
	b, err := json.Marshal(body)
	if err != nil {
		return attempt{}, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/v1/chat/completions", bytes.NewReader(b))
	if err != nil {
		return attempt{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.APIKey)
	}

	httpClient := c.HTTP
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	resp, err := httpClient.Do(httpReq)
	if err != nil {
		return attempt{}, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return attempt{}, err
	}

	var out chatCompletionResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return attempt{status: resp.StatusCode, raw: raw}, fmt.Errorf("openai decode (http %d): %w", resp.StatusCode, err)
	}
	a := attempt{out: &out, status: resp.StatusCode, raw: raw}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return a, nil
	}
	if len(out.Choices) == 0 {
		return a, fmt.Errorf("openai: empty choices")
	}
	a.res = llm.Result{
		Text: out.Choices[0].Message.Content,
		Usage: llm.Usage{
			InputTokens:  out.Usage.PromptTokens,
			OutputTokens: out.Usage.CompletionTokens,
			TotalTokens:  out.Usage.TotalTokens,
		},
		Duration: time.Since(start),
	}
	return a, nil
}
