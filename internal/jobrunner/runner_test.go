package jobrunner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Nyxora-Sanctum/whatsapp-deepfake-bot/internal/chat"
	"github.com/Nyxora-Sanctum/whatsapp-deepfake-bot/internal/messages"
	"github.com/Nyxora-Sanctum/whatsapp-deepfake-bot/internal/session"
	"github.com/stretchr/testify/require"
)

const helperEnv = "DEEPFAKEBOT_WANT_HELPER_TOOL"

// TestHelperTool is not a real test. It plays the face-swap CLI when the
// runner re-executes the test binary.
func TestHelperTool(t *testing.T) {
	if os.Getenv(helperEnv) != "1" {
		return
	}
	args := os.Args
	for i, a := range args {
		if a == "--" {
			args = args[i+1:]
			break
		}
	}
	output := ""
	for i := 0; i < len(args)-1; i++ {
		if args[i] == "--output" {
			output = args[i+1]
		}
	}

	switch os.Getenv("FAKE_TOOL_MODE") {
	case "success":
		for _, p := range []int{0, 1, 3, 4, 5, 9, 12, 13, 40, 97, 99, 100} {
			fmt.Printf("PROGRESS:%d\n", p)
		}
		fmt.Println("writing output")
		_ = os.WriteFile(output, []byte("swapped"), 0o600)
		os.Exit(0)
	case "noface":
		fmt.Println("PROGRESS:0")
		fmt.Fprintln(os.Stderr, "Error: No face detected in the source image.")
		os.Exit(1)
	case "warn-noface":
		fmt.Fprintln(os.Stderr, "warning: No face detected in frame 12")
		_ = os.WriteFile(output, []byte("swapped"), 0o600)
		os.Exit(0)
	case "long-line":
		_, _ = os.Stdout.Write([]byte(strings.Repeat("x", 3_000_000)))
		fmt.Print("\rPROGRESS:20\rPROGRESS:50\n")
		_ = os.WriteFile(output, []byte("swapped"), 0o600)
		os.Exit(0)
	case "crash":
		fmt.Fprintln(os.Stderr, "Traceback: boom")
		os.Exit(2)
	case "empty":
		os.Exit(0)
	case "hang":
		fmt.Println("PROGRESS:10")
		time.Sleep(time.Minute)
		os.Exit(0)
	default:
		fmt.Fprintln(os.Stderr, "unknown mode")
		os.Exit(3)
	}
}

type jobFixture struct {
	dir      string
	job      Job
	notifier *fakeNotifier
	runner   *Runner
}

func newFixture(t *testing.T, mode string, mutate func(*Options)) *jobFixture {
	t.Helper()
	dir := t.TempDir()
	src := filepath.Join(dir, "src.jpg")
	tgt := filepath.Join(dir, "tgt.jpg")
	require.NoError(t, os.WriteFile(src, []byte("s"), 0o600))
	require.NoError(t, os.WriteFile(tgt, []byte("t"), 0o600))

	notifier := &fakeNotifier{statFile: func(p string) bool {
		_, err := os.Stat(p)
		return err == nil
	}}
	opts := Options{
		Tool: ToolConfig{
			Command: os.Args[0],
			Args:    []string{"-test.run=TestHelperTool", "--"},
			Env:     []string{helperEnv + "=1", "FAKE_TOOL_MODE=" + mode},
		},
		Notifier:  notifier,
		Messages:  messages.Default(),
		Timeout:   30 * time.Second,
		KillGrace: time.Second,
	}
	if mutate != nil {
		mutate(&opts)
	}
	runner, err := New(opts)
	require.NoError(t, err)

	return &jobFixture{
		dir: dir,
		job: Job{
			UserID:     "u1",
			ChatID:     "c1",
			SourcePath: src,
			TargetPath: tgt,
			OutputPath: filepath.Join(dir, "out.jpg"),
			Type:       session.JobImage,
			Status:     chat.MessageRef{ChatID: "c1", MessageID: "100"},
		},
		notifier: notifier,
		runner:   runner,
	}
}

func requireGone(t *testing.T, paths ...string) {
	t.Helper()
	for _, p := range paths {
		_, err := os.Stat(p)
		require.True(t, errors.Is(err, os.ErrNotExist), "expected %s to be removed, stat err = %v", p, err)
	}
}

func TestRunSuccessDeliversAndCleansUp(t *testing.T) {
	fx := newFixture(t, "success", nil)

	res := fx.runner.Run(context.Background(), fx.job)

	require.Equal(t, OutcomeSucceeded, res.Outcome, "err=%v stderr=%s", res.Err, res.Stderr)
	require.Equal(t, FailureNone, res.Failure)
	require.Equal(t, 0, res.ExitCode)
	require.Equal(t, []int{4, 9, 13, 40, 97}, res.Progress)

	for i := 1; i < len(res.Progress); i++ {
		require.GreaterOrEqual(t, res.Progress[i]-res.Progress[i-1], MinProgressStep)
	}

	_, edits, deleted, files := fx.notifier.snapshot()
	catalog := messages.Default()
	require.Equal(t, catalog.Text(messages.StatusProgress, "gambar", 4), edits[0])
	require.Len(t, edits, len(res.Progress)+1)
	require.Equal(t, catalog.Text(messages.StatusDone), edits[len(edits)-1])
	require.Len(t, files, 1)
	require.Equal(t, fx.job.OutputPath, files[0].Path)
	require.True(t, files[0].Exists, "output must exist when it is sent")
	require.Equal(t, chat.MediaPhoto, files[0].Kind)
	require.Equal(t, catalog.Text(messages.Caption), files[0].Caption)
	require.Equal(t, []chat.MessageRef{fx.job.Status}, deleted)

	requireGone(t, fx.job.SourcePath, fx.job.TargetPath, fx.job.OutputPath)
}

func TestRunNoFaceFailure(t *testing.T) {
	fx := newFixture(t, "noface", nil)

	res := fx.runner.Run(context.Background(), fx.job)

	require.Equal(t, OutcomeFailed, res.Outcome)
	require.Equal(t, FailureNoFace, res.Failure)
	require.Equal(t, 1, res.ExitCode)
	require.Contains(t, res.Stderr, "No face detected")

	_, edits, _, files := fx.notifier.snapshot()
	require.Empty(t, files)
	require.Equal(t, messages.Default().Text(messages.FailureNoFace), edits[len(edits)-1])
	requireGone(t, fx.job.SourcePath, fx.job.TargetPath)
}

func TestRunSuccessIgnoresNoFaceWarning(t *testing.T) {
	fx := newFixture(t, "warn-noface", nil)

	res := fx.runner.Run(context.Background(), fx.job)

	require.Equal(t, OutcomeSucceeded, res.Outcome, "err=%v", res.Err)
	require.Equal(t, FailureNone, res.Failure)
	require.Contains(t, res.Stderr, "No face detected")
	_, _, _, files := fx.notifier.snapshot()
	require.Len(t, files, 1)
}

func TestRunSurvivesOverlongOutputLine(t *testing.T) {
	fx := newFixture(t, "long-line", func(o *Options) {
		o.Timeout = 20 * time.Second
	})

	start := time.Now()
	res := fx.runner.Run(context.Background(), fx.job)

	require.Less(t, time.Since(start), 15*time.Second)
	require.Equal(t, OutcomeSucceeded, res.Outcome, "err=%v", res.Err)
	require.Equal(t, 0, res.ExitCode)
	require.Equal(t, []int{20, 50}, res.Progress)
}

func TestRunGenericFailures(t *testing.T) {
	for _, mode := range []string{"crash", "empty"} {
		t.Run(mode, func(t *testing.T) {
			fx := newFixture(t, mode, nil)
			res := fx.runner.Run(context.Background(), fx.job)
			require.Equal(t, FailureGeneric, res.Failure)
			require.Error(t, res.Err)
			_, edits, _, files := fx.notifier.snapshot()
			require.Empty(t, files)
			require.Equal(t, messages.Default().Text(messages.FailureGeneric), edits[len(edits)-1])
			requireGone(t, fx.job.SourcePath, fx.job.TargetPath)
		})
	}
}

func TestRunTimeoutInterruptsTool(t *testing.T) {
	fx := newFixture(t, "hang", func(o *Options) {
		o.Timeout = 300 * time.Millisecond
		o.KillGrace = 200 * time.Millisecond
	})

	start := time.Now()
	res := fx.runner.Run(context.Background(), fx.job)

	require.Less(t, time.Since(start), 20*time.Second)
	require.Equal(t, FailureTimeout, res.Failure)
	_, edits, _, _ := fx.notifier.snapshot()
	require.Equal(t, messages.Default().Text(messages.FailureTimeout), edits[len(edits)-1])
	requireGone(t, fx.job.SourcePath, fx.job.TargetPath)
}

func TestRunDeliveryFailureKeepsOutput(t *testing.T) {
	fx := newFixture(t, "success", nil)
	fx.notifier.sendFileErr = errors.New("upload rejected")

	res := fx.runner.Run(context.Background(), fx.job)

	require.Equal(t, FailureDelivery, res.Failure)
	_, edits, deleted, _ := fx.notifier.snapshot()
	require.Empty(t, deleted)
	require.Equal(t, messages.Default().Text(messages.FailureDelivery), edits[len(edits)-1])
	_, err := os.Stat(fx.job.OutputPath)
	require.NoError(t, err, "undelivered output is left for the cache collector")
	requireGone(t, fx.job.SourcePath, fx.job.TargetPath)
}

func TestRunMissingToolReportsGeneric(t *testing.T) {
	fx := newFixture(t, "success", func(o *Options) {
		o.Tool = ToolConfig{Command: filepath.Join(t.TempDir(), "does-not-exist")}
	})

	res := fx.runner.Run(context.Background(), fx.job)

	require.Equal(t, FailureGeneric, res.Failure)
	require.Equal(t, -1, res.ExitCode)
	requireGone(t, fx.job.SourcePath, fx.job.TargetPath)
}

func TestRunSendsStatusWhenMissing(t *testing.T) {
	fx := newFixture(t, "noface", nil)
	fx.job.Status = chat.MessageRef{}

	_ = fx.runner.Run(context.Background(), fx.job)

	sent, edits, _, _ := fx.notifier.snapshot()
	require.Len(t, sent, 1)
	require.True(t, strings.HasPrefix(sent[0], "Memproses"))
	require.NotEmpty(t, edits)
}

func TestRunQueuesBeyondConcurrency(t *testing.T) {
	fx := newFixture(t, "success", func(o *Options) { o.MaxConcurrency = 1 })
	fx.runner.sem <- struct{}{}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan Result, 1)
	go func() { done <- fx.runner.Run(ctx, fx.job) }()

	require.Eventually(t, func() bool {
		_, edits, _, _ := fx.notifier.snapshot()
		return len(edits) == 1 && edits[0] == messages.Default().Text(messages.StatusQueued)
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	res := <-done
	require.ErrorIs(t, res.Err, context.Canceled)
	requireGone(t, fx.job.SourcePath, fx.job.TargetPath)
}

func TestNewValidates(t *testing.T) {
	_, err := New(Options{Notifier: &fakeNotifier{}})
	require.Error(t, err)
	_, err = New(Options{Tool: ToolConfig{Command: "x"}})
	require.Error(t, err)
}
