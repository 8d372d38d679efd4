// Package telegram is a small Telegram Bot API client plus the adapter that
// plugs it into the chat contracts.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/Nyxora-Sanctum/whatsapp-deepfake-bot/internal/outputfmt"
	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL          = "https://api.telegram.org"
	DefaultRateLimit        = 20
	DefaultRateBurst        = 5
	DefaultMaxDownloadBytes = 20 * 1024 * 1024
)

type ClientOptions struct {
	HTTPClient *http.Client
	BaseURL    string
	Token      string
	// RateLimit caps outbound Bot API calls per second. Long polling is not
	// counted. Zero uses DefaultRateLimit; negative disables limiting.
	RateLimit float64
	RateBurst int
}

type Client struct {
	http    *http.Client
	baseURL string
	token   string
	limiter *rate.Limiter
}

func NewClient(opts ClientOptions) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	baseURL := strings.TrimSpace(opts.BaseURL)
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	limit := rate.Limit(opts.RateLimit)
	switch {
	case opts.RateLimit == 0:
		limit = DefaultRateLimit
	case opts.RateLimit < 0:
		limit = rate.Inf
	}
	burst := opts.RateBurst
	if burst <= 0 {
		burst = DefaultRateBurst
	}
	return &Client{
		http:    httpClient,
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   strings.TrimSpace(opts.Token),
		limiter: rate.NewLimiter(limit, burst),
	}
}

// RequestError is a Bot API failure (HTTP status or ok=false).
type RequestError struct {
	Method      string
	StatusCode  int
	ErrorCode   int
	Description string
	Body        string
}

func (e *RequestError) Error() string {
	if e == nil {
		return "telegram request failed"
	}
	prefix := "telegram"
	if e.Method != "" {
		prefix = "telegram " + e.Method
	}
	desc := strings.TrimSpace(e.Description)
	if desc != "" {
		if e.StatusCode > 0 {
			return fmt.Sprintf("%s: http %d: %s", prefix, e.StatusCode, desc)
		}
		return prefix + ": " + desc
	}
	body := strings.TrimSpace(e.Body)
	if e.StatusCode > 0 {
		if body != "" {
			return fmt.Sprintf("%s: http %d: %s", prefix, e.StatusCode, body)
		}
		return fmt.Sprintf("%s: http %d", prefix, e.StatusCode)
	}
	if body != "" {
		return prefix + ": " + body
	}
	return prefix + ": request failed"
}

// IsNotModified reports the benign error Telegram returns when an edit would
// not change the message.
func IsNotModified(err error) bool {
	var reqErr *RequestError
	if !errors.As(err, &reqErr) {
		return false
	}
	return strings.Contains(strings.ToLower(reqErr.Description), "message is not modified")
}

func IsPollTimeoutError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	return strings.Contains(msg, "context deadline exceeded") ||
		strings.Contains(msg, "client.timeout exceeded")
}

// do sends req and keeps the bot token out of transport errors.
func (c *Client) do(req *http.Request) (*http.Response, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, outputfmt.RedactURLError(err)
	}
	return resp, nil
}

func (c *Client) methodURL(method string) string {
	return fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.token, method)
}

func (c *Client) wait(ctx context.Context) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("telegram rate limit: %w", err)
	}
	return nil
}

// decode reads a Bot API envelope into out, turning failures into RequestError.
func decode[T any](method string, resp *http.Response, out *T) error {
	raw, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	var env apiResponse[T]
	decodeErr := json.Unmarshal(raw, &env)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 || !env.OK {
		return &RequestError{
			Method:      method,
			StatusCode:  resp.StatusCode,
			ErrorCode:   env.ErrorCode,
			Description: env.Description,
			Body:        strings.TrimSpace(string(raw)),
		}
	}
	if decodeErr != nil {
		return fmt.Errorf("telegram %s: decode: %w", method, decodeErr)
	}
	if out != nil {
		*out = env.Result
	}
	return nil
}

func callJSON[T any](ctx context.Context, c *Client, method string, body any, out *T) error {
	if err := c.wait(ctx); err != nil {
		return err
	}
	b, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.methodURL(method), bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.do(req)
	if err != nil {
		return err
	}
	return decode(method, resp, out)
}

func (c *Client) GetMe(ctx context.Context) (*User, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.methodURL("getMe"), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}
	var me User
	if err := decode("getMe", resp, &me); err != nil {
		return nil, err
	}
	return &me, nil
}

// GetUpdates long-polls for updates after offset and returns the next offset.
func (c *Client) GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]Update, int64, error) {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	secs := int(timeout.Seconds())
	if secs < 1 {
		secs = 1
	}
	u := fmt.Sprintf("%s?timeout=%d", c.methodURL("getUpdates"), secs)
	if offset > 0 {
		u += fmt.Sprintf("&offset=%d", offset)
	}

	reqCtx, cancel := context.WithTimeout(ctx, timeout+5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, u, nil)
	if err != nil {
		return nil, offset, err
	}
	resp, err := c.do(req)
	if err != nil {
		return nil, offset, err
	}
	var updates []Update
	if err := decode("getUpdates", resp, &updates); err != nil {
		return nil, offset, err
	}

	next := offset
	for _, upd := range updates {
		if upd.UpdateID >= next {
			next = upd.UpdateID + 1
		}
	}
	return updates, next, nil
}

func (c *Client) GetFile(ctx context.Context, fileID string) (*File, error) {
	fileID = strings.TrimSpace(fileID)
	if fileID == "" {
		return nil, fmt.Errorf("missing file_id")
	}
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	u := fmt.Sprintf("%s?file_id=%s", c.methodURL("getFile"), url.QueryEscape(fileID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}
	var f File
	if err := decode("getFile", resp, &f); err != nil {
		return nil, err
	}
	if strings.TrimSpace(f.FilePath) == "" {
		return nil, fmt.Errorf("telegram getFile: missing file_path")
	}
	return &f, nil
}

// DownloadFileTo streams a file to dstPath. The bool result reports that the
// file exceeded maxBytes.
func (c *Client) DownloadFileTo(ctx context.Context, filePath, dstPath string, maxBytes int64) (int64, bool, error) {
	filePath = strings.TrimSpace(filePath)
	dstPath = strings.TrimSpace(dstPath)
	if filePath == "" {
		return 0, false, fmt.Errorf("missing file_path")
	}
	if dstPath == "" {
		return 0, false, fmt.Errorf("missing dst_path")
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxDownloadBytes
	}

	u := fmt.Sprintf("%s/file/bot%s/%s", c.baseURL, c.token, strings.TrimLeft(filePath, "/"))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return 0, false, err
	}
	resp, err := c.do(req)
	if err != nil {
		return 0, false, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return 0, false, &RequestError{Method: "download", StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}

	f, err := os.OpenFile(dstPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return 0, false, err
	}
	defer f.Close()

	n, err := io.Copy(f, io.LimitReader(resp.Body, maxBytes+1))
	if err != nil {
		return n, false, err
	}
	if n > maxBytes {
		return n, true, fmt.Errorf("telegram file too large (>%d bytes)", maxBytes)
	}
	if err := f.Close(); err != nil {
		return n, false, err
	}
	return n, false, nil
}

type sendMessageRequest struct {
	ChatID                int64  `json:"chat_id"`
	Text                  string `json:"text"`
	DisableWebPagePreview bool   `json:"disable_web_page_preview,omitempty"`
	ReplyToMessageID      int64  `json:"reply_to_message_id,omitempty"`
}

// SendMessage sends plain text and returns the new message id.
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string, replyTo int64) (int64, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		text = "(empty)"
	}
	var msg Message
	err := callJSON(ctx, c, "sendMessage", sendMessageRequest{
		ChatID:                chatID,
		Text:                  text,
		DisableWebPagePreview: true,
		ReplyToMessageID:      replyTo,
	}, &msg)
	if err != nil {
		return 0, err
	}
	return msg.MessageID, nil
}

type editMessageTextRequest struct {
	ChatID    int64  `json:"chat_id"`
	MessageID int64  `json:"message_id"`
	Text      string `json:"text"`
}

// EditMessageText replaces a message's text. Edits that change nothing are
// not errors.
func (c *Client) EditMessageText(ctx context.Context, chatID int64, messageID int64, text string) error {
	if messageID == 0 {
		return fmt.Errorf("missing message_id")
	}
	var ignored json.RawMessage
	err := callJSON(ctx, c, "editMessageText", editMessageTextRequest{ChatID: chatID, MessageID: messageID, Text: text}, &ignored)
	if IsNotModified(err) {
		return nil
	}
	return err
}

type deleteMessageRequest struct {
	ChatID    int64 `json:"chat_id"`
	MessageID int64 `json:"message_id"`
}

func (c *Client) DeleteMessage(ctx context.Context, chatID int64, messageID int64) error {
	if messageID == 0 {
		return fmt.Errorf("missing message_id")
	}
	var ok bool
	return callJSON(ctx, c, "deleteMessage", deleteMessageRequest{ChatID: chatID, MessageID: messageID}, &ok)
}

type setMessageReactionRequest struct {
	ChatID    int64          `json:"chat_id"`
	MessageID int64          `json:"message_id"`
	Reaction  []ReactionType `json:"reaction,omitempty"`
	IsBig     *bool          `json:"is_big,omitempty"`
}

func (c *Client) SetMessageReaction(ctx context.Context, chatID int64, messageID int64, reactions []ReactionType, isBig *bool) error {
	if messageID == 0 {
		return fmt.Errorf("missing message_id")
	}
	var ok bool
	return callJSON(ctx, c, "setMessageReaction", setMessageReactionRequest{
		ChatID:    chatID,
		MessageID: messageID,
		Reaction:  reactions,
		IsBig:     isBig,
	}, &ok)
}

func (c *Client) SendPhoto(ctx context.Context, chatID int64, filePath string, caption string) error {
	return c.sendFile(ctx, "sendPhoto", "photo", chatID, filePath, caption)
}

func (c *Client) SendVideo(ctx context.Context, chatID int64, filePath string, caption string) error {
	return c.sendFile(ctx, "sendVideo", "video", chatID, filePath, caption)
}

func (c *Client) SendDocument(ctx context.Context, chatID int64, filePath string, caption string) error {
	return c.sendFile(ctx, "sendDocument", "document", chatID, filePath, caption)
}

// sendFile streams filePath as a multipart upload without buffering it.
func (c *Client) sendFile(ctx context.Context, method string, field string, chatID int64, filePath string, caption string) error {
	filePath = strings.TrimSpace(filePath)
	if filePath == "" {
		return fmt.Errorf("missing file path")
	}
	f, err := os.Open(filePath)
	if err != nil {
		return err
	}
	defer f.Close()
	st, err := f.Stat()
	if err != nil {
		return err
	}
	if st.IsDir() {
		return fmt.Errorf("path is a directory: %s", filePath)
	}
	filename := filepath.Base(filePath)
	caption = strings.TrimSpace(caption)

	if err := c.wait(ctx); err != nil {
		return err
	}

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		defer pw.Close()
		defer mw.Close()

		_ = mw.WriteField("chat_id", strconv.FormatInt(chatID, 10))
		if caption != "" {
			_ = mw.WriteField("caption", caption)
		}
		part, err := mw.CreateFormFile(field, filename)
		if err != nil {
			_ = pw.CloseWithError(err)
			return
		}
		if _, err := io.Copy(part, f); err != nil {
			_ = pw.CloseWithError(err)
			return
		}
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.methodURL(method), pr)
	if err != nil {
		_ = pr.Close()
		return err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	resp, err := c.do(req)
	if err != nil {
		return err
	}
	var ignored json.RawMessage
	return decode(method, resp, &ignored)
}
