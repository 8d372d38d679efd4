package configutil

import (
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newTestCommand() *cobra.Command {
	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().String("tool-command", "facefusion", "")
	cmd.Flags().Int("max-concurrency", 2, "")
	cmd.Flags().Duration("timeout", time.Minute, "")
	cmd.Flags().Bool("enhance", false, "")
	cmd.Flags().StringArray("image-options", nil, "")
	return cmd
}

func TestFlagOrViperPrecedence(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	cmd := newTestCommand()
	if got := FlagOrViperString(cmd, "tool-command", "tool.command"); got != "facefusion" {
		t.Fatalf("flag default = %q", got)
	}

	viper.Set("tool.command", "roop")
	viper.Set("job.max_concurrency", 4)
	viper.Set("job.timeout", "90s")
	viper.Set("flow.enhance", true)
	viper.Set("flow.image_options", []string{"enhance"})
	if got := FlagOrViperString(cmd, "tool-command", "tool.command"); got != "roop" {
		t.Fatalf("viper value = %q, want roop", got)
	}
	if got := FlagOrViperInt(cmd, "max-concurrency", "job.max_concurrency"); got != 4 {
		t.Fatalf("int = %d, want 4", got)
	}
	if got := FlagOrViperDuration(cmd, "timeout", "job.timeout"); got != 90*time.Second {
		t.Fatalf("duration = %v, want 90s", got)
	}
	if !FlagOrViperBool(cmd, "enhance", "flow.enhance") {
		t.Fatalf("bool should come from viper")
	}
	if got := FlagOrViperStringArray(cmd, "image-options", "flow.image_options"); len(got) != 1 || got[0] != "enhance" {
		t.Fatalf("slice = %#v", got)
	}

	if err := cmd.Flags().Set("tool-command", "local"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if got := FlagOrViperString(cmd, "tool-command", "tool.command"); got != "local" {
		t.Fatalf("changed flag = %q, want local", got)
	}
}

func TestParseInt64List(t *testing.T) {
	got, err := ParseInt64List([]string{"1, 2", " ", "-100"})
	if err != nil {
		t.Fatalf("ParseInt64List() error = %v", err)
	}
	want := []int64{1, 2, -100}
	if len(got) != len(want) {
		t.Fatalf("ParseInt64List() = %#v, want %#v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("ParseInt64List()[%d] = %d, want %d", i, got[i], want[i])
		}
	}
	if _, err := ParseInt64List([]string{"12x"}); err == nil {
		t.Fatalf("invalid id should fail")
	}
}
