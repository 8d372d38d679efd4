package jobrunner

import (
	"testing"

	"github.com/Nyxora-Sanctum/whatsapp-deepfake-bot/internal/session"
	"github.com/stretchr/testify/require"
)

func boolPtr(v bool) *bool { return &v }

func TestBuildArgsImage(t *testing.T) {
	cfg := ToolConfig{Args: []string{"run.py", " "}, ExecutionProvider: "CPUExecutionProvider"}
	job := Job{
		SourcePath: "/c/s.jpg",
		TargetPath: "/c/t.jpg",
		OutputPath: "/c/o.jpg",
		Type:       session.JobImage,
		Options: session.Options{
			Enhance:   boolPtr(true),
			MultiFace: boolPtr(true),
			Upscale:   session.Upscale4x,
		},
	}
	want := []string{
		"run.py",
		"--source", "/c/s.jpg", "--target", "/c/t.jpg", "--output", "/c/o.jpg",
		"--execution-provider", "CPUExecutionProvider",
		"--frame-processors", "face_swapper", "face_enhancer",
		"--many-faces",
		"--upscale-factor", "4",
	}
	require.Equal(t, want, BuildArgs(cfg, job))
	require.Equal(t, BuildArgs(cfg, job), BuildArgs(cfg, job))

	job.Options = session.Options{Enhance: boolPtr(false), MultiFace: boolPtr(false), Upscale: session.UpscaleNone}
	require.Equal(t, []string{
		"run.py",
		"--source", "/c/s.jpg", "--target", "/c/t.jpg", "--output", "/c/o.jpg",
		"--execution-provider", "CPUExecutionProvider",
		"--frame-processors", "face_swapper",
		"--skip-upscale",
	}, BuildArgs(cfg, job))
}

func TestBuildArgsVideoQuality(t *testing.T) {
	job := Job{SourcePath: "s", TargetPath: "t.mp4", OutputPath: "o.mp4", Type: session.JobVideo}
	for q, crf := range map[session.Quality]string{
		session.QualityLow:    "35",
		session.QualityMedium: "25",
		session.QualityHigh:   "18",
		session.QualityMax:    "10",
	} {
		job.Options = session.Options{Quality: q, Upscale: session.Upscale2x}
		args := BuildArgs(ToolConfig{}, job)
		require.Equal(t, []string{"--video-quality", crf}, args[len(args)-2:], "quality %s", q)
		require.NotContains(t, args, "--upscale-factor")
	}
}

func TestParseProgress(t *testing.T) {
	cases := map[string]struct {
		n  int
		ok bool
	}{
		"PROGRESS:42":   {42, true},
		"  PROGRESS: 7": {7, true},
		"PROGRESS:150":  {100, true},
		"PROGRESS:-3":   {0, true},
		"PROGRESS:abc":  {0, false},
		"progress:5":    {0, false},
		"frame 10/20":   {0, false},
	}
	for line, want := range cases {
		n, ok := ParseProgress(line)
		require.Equal(t, want.ok, ok, line)
		require.Equal(t, want.n, n, line)
	}
}

func TestThrottle(t *testing.T) {
	var th Throttle
	var accepted []int
	for _, p := range []int{0, 2, 4, 5, 7, 8, 8, 3, 50, 99, 100, 100} {
		if th.Accept(p) {
			accepted = append(accepted, p)
		}
	}
	require.Equal(t, []int{4, 8, 50, 99}, accepted)
	require.Equal(t, 99, th.Last())
}

func TestLimitedBuffer(t *testing.T) {
	b := &limitedBuffer{Limit: 5}
	n, err := b.Write([]byte("abc"))
	require.NoError(t, err)
	require.Equal(t, 3, n)
	n, _ = b.Write([]byte("defgh"))
	require.Equal(t, 5, n)
	require.True(t, b.Truncated)
	require.Equal(t, "abcde", b.String())
}
