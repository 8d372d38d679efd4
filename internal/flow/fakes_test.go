package flow

import (
	"context"
	"errors"
	"os"
	"strconv"
	"sync"

	"github.com/Nyxora-Sanctum/whatsapp-deepfake-bot/internal/chat"
	"github.com/Nyxora-Sanctum/whatsapp-deepfake-bot/internal/jobrunner"
	"github.com/Nyxora-Sanctum/whatsapp-deepfake-bot/internal/mediacache"
)

type recordingNotifier struct {
	mu        sync.Mutex
	nextID    int
	texts     []string
	reactions []string
	files     []string
}

func (n *recordingNotifier) Send(_ context.Context, chatID string, text string) (chat.MessageRef, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.nextID++
	n.texts = append(n.texts, text)
	return chat.MessageRef{ChatID: chatID, MessageID: strconv.Itoa(n.nextID)}, nil
}

func (n *recordingNotifier) EditStatus(_ context.Context, _ chat.MessageRef, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.texts = append(n.texts, "edit:"+text)
	return nil
}

func (n *recordingNotifier) DeleteStatus(context.Context, chat.MessageRef) error { return nil }

func (n *recordingNotifier) React(_ context.Context, _ chat.MessageRef, emoji string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.reactions = append(n.reactions, emoji)
	return nil
}

func (n *recordingNotifier) SendFile(_ context.Context, _ string, path string, _ string, _ chat.MediaKind) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.files = append(n.files, path)
	return nil
}

func (n *recordingNotifier) all() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.texts...)
}

func (n *recordingNotifier) last() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.texts) == 0 {
		return ""
	}
	return n.texts[len(n.texts)-1]
}

type fileFetcher struct {
	mu      sync.Mutex
	fetched []string
	err     error
}

func (f *fileFetcher) Fetch(_ context.Context, media chat.Media, dst string) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	data := []byte("media:" + media.FileID)
	if err := os.WriteFile(dst, data, 0o600); err != nil {
		return 0, err
	}
	f.mu.Lock()
	f.fetched = append(f.fetched, dst)
	f.mu.Unlock()
	return int64(len(data)), nil
}

// fakeRunner delivers a placeholder result and removes job files the way the
// real runner does.
type fakeRunner struct {
	mu       sync.Mutex
	jobs     []jobrunner.Job
	notifier chat.Notifier
	gate     chan struct{}
	started  chan struct{}
}

func (r *fakeRunner) Run(ctx context.Context, job jobrunner.Job) jobrunner.Result {
	r.mu.Lock()
	r.jobs = append(r.jobs, job)
	r.mu.Unlock()
	if r.started != nil {
		r.started <- struct{}{}
	}
	if r.gate != nil {
		<-r.gate
	}
	_ = mediacache.Remove(job.SourcePath, job.TargetPath)
	if err := os.WriteFile(job.OutputPath, []byte("out"), 0o600); err != nil {
		return jobrunner.Result{Failure: jobrunner.FailureGeneric, Err: err}
	}
	if r.notifier != nil {
		_ = r.notifier.SendFile(ctx, job.ChatID, job.OutputPath, "", chat.MediaPhoto)
	}
	_ = mediacache.Remove(job.OutputPath)
	return jobrunner.Result{Outcome: jobrunner.OutcomeSucceeded}
}

func (r *fakeRunner) calls() []jobrunner.Job {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]jobrunner.Job(nil), r.jobs...)
}

var errFetch = errors.New("telegram: file too big")
