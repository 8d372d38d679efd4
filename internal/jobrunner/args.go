package jobrunner

import (
	"strconv"
	"strings"

	"github.com/Nyxora-Sanctum/whatsapp-deepfake-bot/internal/session"
)

// ToolConfig describes how to launch the face-swap CLI.
type ToolConfig struct {
	Command           string
	Args              []string
	WorkDir           string
	Env               []string
	ExecutionProvider string
}

var videoQualityCRF = map[session.Quality]int{
	session.QualityLow:    35,
	session.QualityMedium: 25,
	session.QualityHigh:   18,
	session.QualityMax:    10,
}

// VideoQualityValue maps a quality choice to the tool's --video-quality value.
func VideoQualityValue(q session.Quality) (int, bool) {
	v, ok := videoQualityCRF[q]
	return v, ok
}

// BuildArgs renders the tool argument list for job. Same input, same output.
func BuildArgs(cfg ToolConfig, job Job) []string {
	args := make([]string, 0, len(cfg.Args)+16)
	for _, a := range cfg.Args {
		if strings.TrimSpace(a) != "" {
			args = append(args, a)
		}
	}
	args = append(args,
		"--source", job.SourcePath,
		"--target", job.TargetPath,
		"--output", job.OutputPath,
	)
	if p := strings.TrimSpace(cfg.ExecutionProvider); p != "" {
		args = append(args, "--execution-provider", p)
	}

	args = append(args, "--frame-processors", "face_swapper")
	if job.Options.EnhanceOn() {
		args = append(args, "face_enhancer")
	}
	if job.Options.MultiFaceOn() {
		args = append(args, "--many-faces")
	}

	switch job.Type {
	case session.JobVideo:
		if v, ok := VideoQualityValue(job.Options.Quality); ok {
			args = append(args, "--video-quality", strconv.Itoa(v))
		}
	case session.JobImage:
		switch job.Options.Upscale {
		case session.UpscaleNone:
			args = append(args, "--skip-upscale")
		case session.Upscale2x:
			args = append(args, "--upscale-factor", "2")
		case session.Upscale4x:
			args = append(args, "--upscale-factor", "4")
		}
	}
	return args
}
