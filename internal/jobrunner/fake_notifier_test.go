package jobrunner

import (
	"context"
	"errors"
	"strconv"
	"sync"

	"github.com/Nyxora-Sanctum/whatsapp-deepfake-bot/internal/chat"
)

type sentFile struct {
	ChatID  string
	Path    string
	Caption string
	Kind    chat.MediaKind
	Exists  bool
}

type fakeNotifier struct {
	mu      sync.Mutex
	nextID  int
	sent    []string
	edits   []string
	deleted []chat.MessageRef
	files   []sentFile

	sendFileErr error
	statFile    func(string) bool
}

func (f *fakeNotifier) Send(_ context.Context, chatID string, text string) (chat.MessageRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	f.sent = append(f.sent, text)
	return chat.MessageRef{ChatID: chatID, MessageID: strconv.Itoa(f.nextID)}, nil
}

func (f *fakeNotifier) EditStatus(_ context.Context, ref chat.MessageRef, text string) error {
	if ref.IsZero() {
		return errors.New("zero ref")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.edits = append(f.edits, text)
	return nil
}

func (f *fakeNotifier) DeleteStatus(_ context.Context, ref chat.MessageRef) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, ref)
	return nil
}

func (f *fakeNotifier) React(context.Context, chat.MessageRef, string) error { return nil }

func (f *fakeNotifier) SendFile(_ context.Context, chatID string, path string, caption string, kind chat.MediaKind) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	exists := false
	if f.statFile != nil {
		exists = f.statFile(path)
	}
	f.files = append(f.files, sentFile{ChatID: chatID, Path: path, Caption: caption, Kind: kind, Exists: exists})
	return f.sendFileErr
}

func (f *fakeNotifier) snapshot() (sent []string, edits []string, deleted []chat.MessageRef, files []sentFile) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent...), append([]string(nil), f.edits...),
		append([]chat.MessageRef(nil), f.deleted...), append([]sentFile(nil), f.files...)
}
