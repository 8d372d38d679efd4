package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/Nyxora-Sanctum/whatsapp-deepfake-bot/internal/chat"
)

const consoleChatID = "console"

var _ chat.Notifier = (*consoleNotifier)(nil)

// consoleNotifier prints status messages and saves delivered files to a
// fixed path.
type consoleNotifier struct {
	mu     sync.Mutex
	w      io.Writer
	output string
	nextID int
}

func newConsoleNotifier(w io.Writer, output string) *consoleNotifier {
	return &consoleNotifier{w: w, output: output}
}

func (n *consoleNotifier) Send(_ context.Context, chatID string, text string) (chat.MessageRef, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.nextID++
	n.printLocked(text)
	return chat.MessageRef{ChatID: chatID, MessageID: strconv.Itoa(n.nextID)}, nil
}

func (n *consoleNotifier) EditStatus(_ context.Context, _ chat.MessageRef, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.printLocked(text)
	return nil
}

func (n *consoleNotifier) DeleteStatus(context.Context, chat.MessageRef) error { return nil }

func (n *consoleNotifier) React(context.Context, chat.MessageRef, string) error { return nil }

func (n *consoleNotifier) SendFile(_ context.Context, _ string, path string, caption string, _ chat.MediaKind) error {
	if dir := filepath.Dir(n.output); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	if err := moveFile(path, n.output); err != nil {
		return fmt.Errorf("save output: %w", err)
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.printLocked(caption)
	return nil
}

func (n *consoleNotifier) printLocked(text string) {
	text = strings.TrimSpace(text)
	if text == "" || n.w == nil {
		return
	}
	_, _ = fmt.Fprintln(n.w, text)
}

// moveFile renames src to dst and falls back to copying across devices.
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
