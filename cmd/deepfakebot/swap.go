package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/Nyxora-Sanctum/whatsapp-deepfake-bot/internal/configutil"
	"github.com/Nyxora-Sanctum/whatsapp-deepfake-bot/internal/jobrunner"
	"github.com/Nyxora-Sanctum/whatsapp-deepfake-bot/internal/logutil"
	"github.com/Nyxora-Sanctum/whatsapp-deepfake-bot/internal/mediacache"
	"github.com/Nyxora-Sanctum/whatsapp-deepfake-bot/internal/session"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

const consoleUserID = "local"

func newSwapCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "swap",
		Short: "Run one face swap job locally",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := logutil.LoggerFromViper()
			if err != nil {
				return err
			}
			texts, err := messagesFromViper()
			if err != nil {
				return fmt.Errorf("messages: %w", err)
			}

			source, _ := cmd.Flags().GetString("source")
			target, _ := cmd.Flags().GetString("target")
			output, _ := cmd.Flags().GetString("output")
			video, _ := cmd.Flags().GetBool("video")
			jobType := session.JobImage
			if video {
				jobType = session.JobVideo
			}
			opts, err := swapOptionsFromFlags(cmd, jobType)
			if err != nil {
				return err
			}
			if strings.TrimSpace(output) == "" {
				output = defaultSwapOutput(target)
			}

			cacheDir, err := mediacache.EnsureSecureDir(configutil.FlagOrViperString(cmd, "file-cache-dir", "file_cache_dir"))
			if err != nil {
				return fmt.Errorf("file cache dir: %w", err)
			}
			// The runner removes its inputs, so it works on copies.
			srcCopy := mediacache.ScopedPath(cacheDir, consoleUserID, mediacache.RoleSource, filepath.Ext(source))
			if err := copyFile(source, srcCopy); err != nil {
				return fmt.Errorf("source: %w", err)
			}
			tgtCopy := mediacache.ScopedPath(cacheDir, consoleUserID, mediacache.RoleTarget, filepath.Ext(target))
			if err := copyFile(target, tgtCopy); err != nil {
				_ = mediacache.Remove(srcCopy)
				return fmt.Errorf("target: %w", err)
			}

			notifier := newConsoleNotifier(cmd.ErrOrStderr(), output)
			runner, err := jobrunner.New(jobrunner.Options{
				Tool:           toolConfigFromFlags(cmd),
				Notifier:       notifier,
				Messages:       texts,
				Logger:         logger,
				Timeout:        configutil.FlagOrViperDuration(cmd, "job-timeout", "job.timeout"),
				KillGrace:      configutil.FlagOrViperDuration(cmd, "job-kill-grace", "job.kill_grace"),
				MaxConcurrency: 1,
			})
			if err != nil {
				_ = mediacache.Remove(srcCopy, tgtCopy)
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			res := runner.Run(ctx, jobrunner.Job{
				ID:         uuid.NewString(),
				UserID:     consoleUserID,
				ChatID:     consoleChatID,
				SourcePath: srcCopy,
				TargetPath: tgtCopy,
				OutputPath: mediacache.ScopedPath(cacheDir, consoleUserID, mediacache.RoleOutput, filepath.Ext(target)),
				Type:       jobType,
				Options:    opts,
			})
			if res.Outcome != jobrunner.OutcomeSucceeded {
				if res.Err == nil {
					return fmt.Errorf("swap failed: %s", res.Failure)
				}
				return fmt.Errorf("swap failed (%s): %w", res.Failure, res.Err)
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), output)
			return nil
		},
	}

	cmd.Flags().String("source", "", "Image with the face to use.")
	cmd.Flags().String("target", "", "Image or video whose faces are replaced.")
	cmd.Flags().String("output", "", "Result path (defaults to <target>_swapped.<ext>).")
	cmd.Flags().Bool("video", false, "Treat the target as a video.")
	cmd.Flags().Bool("enhance", false, "Run the face enhancer.")
	cmd.Flags().Bool("many-faces", false, "Swap every face in the target.")
	cmd.Flags().String("quality", "medium", "Video quality: low|medium|high|max.")
	cmd.Flags().String("upscale", "none", "Image upscale: none|2x|4x.")
	cmd.Flags().String("file-cache-dir", "~/.cache/deepfakebot", "Scratch directory for job files.")
	addToolFlags(cmd)
	_ = cmd.MarkFlagRequired("source")
	_ = cmd.MarkFlagRequired("target")

	return cmd
}

func swapOptionsFromFlags(cmd *cobra.Command, jobType session.JobType) (session.Options, error) {
	enhance, _ := cmd.Flags().GetBool("enhance")
	manyFaces, _ := cmd.Flags().GetBool("many-faces")
	opts := session.Options{Enhance: &enhance, MultiFace: &manyFaces}

	if jobType == session.JobVideo {
		raw, _ := cmd.Flags().GetString("quality")
		q, err := parseQuality(raw)
		if err != nil {
			return opts, err
		}
		opts.Quality = q
		return opts, nil
	}
	raw, _ := cmd.Flags().GetString("upscale")
	u, err := parseUpscale(raw)
	if err != nil {
		return opts, err
	}
	opts.Upscale = u
	return opts, nil
}

func parseQuality(s string) (session.Quality, error) {
	for _, q := range []session.Quality{session.QualityLow, session.QualityMedium, session.QualityHigh, session.QualityMax} {
		if strings.EqualFold(strings.TrimSpace(s), q.String()) {
			return q, nil
		}
	}
	return session.QualityUnset, fmt.Errorf("invalid --quality %q (expected low|medium|high|max)", s)
}

func parseUpscale(s string) (session.Upscale, error) {
	for _, u := range []session.Upscale{session.UpscaleNone, session.Upscale2x, session.Upscale4x} {
		if strings.EqualFold(strings.TrimSpace(s), u.String()) {
			return u, nil
		}
	}
	return session.UpscaleUnset, fmt.Errorf("invalid --upscale %q (expected none|2x|4x)", s)
}

func defaultSwapOutput(target string) string {
	ext := filepath.Ext(target)
	return strings.TrimSuffix(target, ext) + "_swapped" + ext
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		_ = os.Remove(dst)
		return err
	}
	return out.Close()
}
