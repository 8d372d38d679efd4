// Package jobrunner executes one face-swap job as a supervised child process
// and keeps the user's status message in sync with its progress.
package jobrunner

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/Nyxora-Sanctum/whatsapp-deepfake-bot/internal/chat"
	"github.com/Nyxora-Sanctum/whatsapp-deepfake-bot/internal/mediacache"
	"github.com/Nyxora-Sanctum/whatsapp-deepfake-bot/internal/messages"
	"github.com/Nyxora-Sanctum/whatsapp-deepfake-bot/internal/session"
	"github.com/google/uuid"
)

const (
	DefaultTimeout        = 20 * time.Minute
	DefaultKillGrace      = 5 * time.Second
	DefaultMaxConcurrency = 2

	noFaceMarker   = "no face detected"
	maxLineBytes   = 1024 * 1024
	notifyDeadline = 30 * time.Second
)

// Job is one dispatched swap request.
type Job struct {
	ID         string
	UserID     string
	ChatID     string
	SourcePath string
	TargetPath string
	OutputPath string
	Type       session.JobType
	Options    session.Options
	Status     chat.MessageRef
}

// JobFromSession builds a Job from a dispatched session.
func JobFromSession(s session.Session, outputPath string, status chat.MessageRef) Job {
	return Job{
		ID:         uuid.NewString(),
		UserID:     s.UserID,
		ChatID:     s.ChatID,
		SourcePath: s.SourcePath,
		TargetPath: s.TargetPath,
		OutputPath: outputPath,
		Type:       s.JobType,
		Options:    s.Options,
		Status:     status,
	}
}

type Outcome int

const (
	OutcomeFailed Outcome = iota
	OutcomeSucceeded
)

func (o Outcome) String() string {
	if o == OutcomeSucceeded {
		return "succeeded"
	}
	return "failed"
}

type Failure int

const (
	FailureNone Failure = iota
	FailureNoFace
	FailureGeneric
	FailureTimeout
	FailureDelivery
)

func (f Failure) String() string {
	switch f {
	case FailureNone:
		return "none"
	case FailureNoFace:
		return "no_face"
	case FailureTimeout:
		return "timeout"
	case FailureDelivery:
		return "delivery"
	default:
		return "generic"
	}
}

func (f Failure) messageKey() messages.Key {
	switch f {
	case FailureNoFace:
		return messages.FailureNoFace
	case FailureTimeout:
		return messages.FailureTimeout
	case FailureDelivery:
		return messages.FailureDelivery
	default:
		return messages.FailureGeneric
	}
}

// Result summarizes a finished job.
type Result struct {
	JobID    string
	Outcome  Outcome
	Failure  Failure
	ExitCode int
	Stderr   string
	// Progress lists the percentages that produced a status edit.
	Progress []int
	Duration time.Duration
	Err      error
}

type Options struct {
	Tool           ToolConfig
	Notifier       chat.Notifier
	Messages       *messages.Catalog
	Logger         *slog.Logger
	Timeout        time.Duration
	KillGrace      time.Duration
	MaxConcurrency int
}

// Runner runs jobs with a bounded number of concurrent child processes.
type Runner struct {
	tool      ToolConfig
	notifier  chat.Notifier
	texts     *messages.Catalog
	logger    *slog.Logger
	timeout   time.Duration
	killGrace time.Duration
	sem       chan struct{}
}

func New(opts Options) (*Runner, error) {
	if strings.TrimSpace(opts.Tool.Command) == "" {
		return nil, fmt.Errorf("missing tool command")
	}
	if opts.Notifier == nil {
		return nil, fmt.Errorf("missing notifier")
	}
	if opts.Messages == nil {
		opts.Messages = messages.Default()
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.Timeout < 0 {
		opts.Timeout = 0
	}
	if opts.KillGrace <= 0 {
		opts.KillGrace = DefaultKillGrace
	}
	if opts.MaxConcurrency <= 0 {
		opts.MaxConcurrency = DefaultMaxConcurrency
	}
	return &Runner{
		tool:      opts.Tool,
		notifier:  opts.Notifier,
		texts:     opts.Messages,
		logger:    opts.Logger,
		timeout:   opts.Timeout,
		killGrace: opts.KillGrace,
		sem:       make(chan struct{}, opts.MaxConcurrency),
	}, nil
}

// Run executes job to completion and reports the outcome to the user. Source
// and target files are always removed; the output is removed once delivered.
func (r *Runner) Run(ctx context.Context, job Job) (res Result) {
	if ctx == nil {
		ctx = context.Background()
	}
	if strings.TrimSpace(job.ID) == "" {
		job.ID = uuid.NewString()
	}
	res.JobID = job.ID
	started := time.Now()
	logger := r.logger.With("job_id", job.ID, "user_id", job.UserID, "job_type", job.Type.String())

	inputsRemoved := false
	removeInputs := func() {
		if inputsRemoved {
			return
		}
		inputsRemoved = true
		if err := mediacache.Remove(job.SourcePath, job.TargetPath); err != nil {
			logger.Warn("job_input_cleanup_error", "error", err.Error())
		}
	}
	defer func() {
		if rec := recover(); rec != nil {
			logger.Error("job_panic", "panic", fmt.Sprint(rec))
			removeInputs()
			res.Outcome = OutcomeFailed
			res.Failure = FailureGeneric
			res.Err = fmt.Errorf("job panic: %v", rec)
			r.reportFailure(ctx, &job, FailureGeneric, logger)
		}
		res.Duration = time.Since(started)
	}()

	if strings.TrimSpace(job.OutputPath) == "" || strings.TrimSpace(job.SourcePath) == "" || strings.TrimSpace(job.TargetPath) == "" {
		removeInputs()
		res.Failure = FailureGeneric
		res.Err = fmt.Errorf("job %s is missing file paths", job.ID)
		r.reportFailure(ctx, &job, FailureGeneric, logger)
		return res
	}

	release, queued, err := r.acquire(ctx, &job, logger)
	if err != nil {
		removeInputs()
		res.Failure = FailureGeneric
		res.Err = err
		logger.Warn("job_aborted_while_queued", "error", err.Error())
		return res
	}
	defer release()

	runCtx := ctx
	cancel := func() {}
	if r.timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, r.timeout)
	}
	defer cancel()

	if queued || job.Status.IsZero() {
		r.status(ctx, &job, r.texts.Text(messages.StatusStarted, r.jobLabel(job.Type)), logger)
	}

	args := BuildArgs(r.tool, job)
	logger.Info("job_started", "command", r.tool.Command, "args_count", len(args))
	ran := r.execute(runCtx, &job, args, logger)
	removeInputs()

	res.ExitCode = ran.exitCode
	res.Stderr = ran.stderr
	res.Progress = ran.progress

	timedOut := errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil
	succeeded := ran.startErr == nil && ran.waitErr == nil && outputReady(job.OutputPath)
	switch {
	case succeeded:
	case ran.startErr != nil:
		res.Failure = FailureGeneric
		res.Err = ran.startErr
	case timedOut:
		res.Failure = FailureTimeout
		res.Err = fmt.Errorf("job timed out after %s", r.timeout)
	case ran.noFace || strings.Contains(strings.ToLower(ran.stderr), noFaceMarker):
		res.Failure = FailureNoFace
		res.Err = fmt.Errorf("tool reported no face (exit %d)", ran.exitCode)
	case ran.waitErr != nil:
		res.Failure = FailureGeneric
		res.Err = fmt.Errorf("tool failed: %w", ran.waitErr)
	default:
		res.Failure = FailureGeneric
		res.Err = fmt.Errorf("tool exited cleanly but produced no output")
	}

	if res.Failure != FailureNone {
		logger.Warn("job_failed",
			"failure", res.Failure.String(),
			"exit_code", res.ExitCode,
			"error", res.Err.Error(),
			"stderr", truncateForLog(res.Stderr, 512),
		)
		r.reportFailure(ctx, &job, res.Failure, logger)
		return res
	}

	if err := r.deliver(ctx, &job, logger); err != nil {
		res.Failure = FailureDelivery
		res.Err = err
		logger.Warn("job_delivery_error", "error", err.Error())
		r.reportFailure(ctx, &job, FailureDelivery, logger)
		return res
	}
	res.Outcome = OutcomeSucceeded
	logger.Info("job_finished", "duration", time.Since(started).String(), "progress_edits", len(res.Progress))
	return res
}

// acquire takes a process slot, telling the user when they have to wait.
func (r *Runner) acquire(ctx context.Context, job *Job, logger *slog.Logger) (func(), bool, error) {
	release := func() { <-r.sem }
	select {
	case r.sem <- struct{}{}:
		return release, false, nil
	default:
	}
	r.status(ctx, job, r.texts.Text(messages.StatusQueued), logger)
	select {
	case r.sem <- struct{}{}:
		return release, true, nil
	case <-ctx.Done():
		return nil, true, ctx.Err()
	}
}

type execution struct {
	exitCode int
	stderr   string
	progress []int
	noFace   bool
	startErr error
	waitErr  error
}

func (r *Runner) execute(ctx context.Context, job *Job, args []string, logger *slog.Logger) execution {
	var out execution
	cmd := exec.CommandContext(ctx, r.tool.Command, args...)
	if dir := strings.TrimSpace(r.tool.WorkDir); dir != "" {
		cmd.Dir = dir
	}
	if len(r.tool.Env) > 0 {
		cmd.Env = append(os.Environ(), r.tool.Env...)
	}
	cmd.Cancel = func() error {
		return cmd.Process.Signal(os.Interrupt)
	}
	cmd.WaitDelay = r.killGrace

	stderr := &limitedBuffer{Limit: maxStderrBytes}
	cmd.Stderr = stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		out.exitCode = -1
		out.startErr = fmt.Errorf("stdout pipe: %w", err)
		return out
	}
	if err := cmd.Start(); err != nil {
		out.exitCode = -1
		out.startErr = fmt.Errorf("start %s: %w", r.tool.Command, err)
		return out
	}

	lines := make(chan string, 64)
	go func() {
		defer close(lines)
		splitter := &lineSplitter{limit: maxLineBytes}
		scanner := bufio.NewScanner(stdout)
		scanner.Buffer(make([]byte, 0, 64*1024), 2*maxLineBytes)
		scanner.Split(splitter.split)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		if err := scanner.Err(); err != nil && !errors.Is(err, os.ErrClosed) {
			logger.Debug("job_stdout_scan_error", "error", err.Error())
		}
		// Wait must not run while the child can still block on a full pipe.
		_, _ = io.Copy(io.Discard, stdout)
	}()

	var throttle Throttle
	for line := range lines {
		if strings.Contains(strings.ToLower(line), noFaceMarker) {
			out.noFace = true
		}
		n, ok := ParseProgress(line)
		if !ok {
			continue
		}
		if !throttle.Accept(n) {
			continue
		}
		out.progress = append(out.progress, n)
		logger.Debug("job_progress", "percent", n)
		r.status(ctx, job, r.texts.Text(messages.StatusProgress, r.jobLabel(job.Type), n), logger)
	}

	out.waitErr = cmd.Wait()
	out.stderr = stderr.String()
	if cmd.ProcessState != nil {
		out.exitCode = cmd.ProcessState.ExitCode()
	}
	return out
}

func (r *Runner) deliver(ctx context.Context, job *Job, logger *slog.Logger) error {
	nctx, cancel := notifyContext(ctx)
	defer cancel()

	r.status(nctx, job, r.texts.Text(messages.StatusDone), logger)
	kind := chat.MediaPhoto
	if job.Type == session.JobVideo {
		kind = chat.MediaVideo
	}
	if err := r.notifier.SendFile(nctx, job.ChatID, job.OutputPath, r.texts.Text(messages.Caption), kind); err != nil {
		return fmt.Errorf("send result: %w", err)
	}
	if !job.Status.IsZero() {
		if err := r.notifier.DeleteStatus(nctx, job.Status); err != nil {
			logger.Debug("job_status_delete_error", "error", err.Error())
		}
	}
	if err := mediacache.Remove(job.OutputPath); err != nil {
		logger.Warn("job_output_cleanup_error", "error", err.Error())
	}
	return nil
}

func (r *Runner) reportFailure(ctx context.Context, job *Job, failure Failure, logger *slog.Logger) {
	nctx, cancel := notifyContext(ctx)
	defer cancel()
	r.status(nctx, job, r.texts.Text(failure.messageKey()), logger)
}

// status edits the job's status message, or sends one when there is none yet.
func (r *Runner) status(ctx context.Context, job *Job, text string, logger *slog.Logger) {
	if job.Status.IsZero() {
		ref, err := r.notifier.Send(ctx, job.ChatID, text)
		if err != nil {
			logger.Warn("job_status_send_error", "error", err.Error())
			return
		}
		job.Status = ref
		return
	}
	if err := r.notifier.EditStatus(ctx, job.Status, text); err != nil {
		logger.Debug("job_status_edit_error", "error", err.Error())
	}
}

func (r *Runner) jobLabel(t session.JobType) string {
	if t == session.JobVideo {
		return r.texts.Text(messages.JobVideo)
	}
	return r.texts.Text(messages.JobImage)
}

// notifyContext detaches from the job's cancellation so the final report is
// still delivered after a timeout.
func notifyContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), notifyDeadline)
}

func outputReady(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && fi.Mode().IsRegular() && fi.Size() > 0
}

func truncateForLog(s string, max int) string {
	s = strings.TrimSpace(s)
	if max <= 0 || len(s) <= max {
		return s
	}
	return s[len(s)-max:]
}
