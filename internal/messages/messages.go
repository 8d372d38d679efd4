// Package messages holds the user-facing text catalog.
package messages

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

type Key string

const (
	Welcome             Key = "welcome"
	Help                Key = "help"
	Chitchat            Key = "chitchat"
	Unknown             Key = "unknown"
	MediaWithoutSession Key = "media_without_session"
	PromptSource        Key = "prompt_source"
	RepromptSource      Key = "reprompt_source"
	PromptTargetImage   Key = "prompt_target_image"
	PromptTargetVideo   Key = "prompt_target_video"
	RepromptTargetImage Key = "reprompt_target_image"
	RepromptTargetVideo Key = "reprompt_target_video"
	PromptEnhance       Key = "prompt_enhance"
	PromptMultiFace     Key = "prompt_multi_face"
	PromptQuality       Key = "prompt_quality"
	PromptUpscale       Key = "prompt_upscale"
	RepromptOption      Key = "reprompt_option"
	Switched            Key = "switched"
	Cancelled           Key = "cancelled"
	NothingToCancel     Key = "nothing_to_cancel"
	Busy                Key = "busy"
	DownloadFailed      Key = "download_failed"
	StatusQueued        Key = "status_queued"
	StatusStarted       Key = "status_started"
	StatusProgress      Key = "status_progress"
	StatusDone          Key = "status_done"
	Caption             Key = "caption"
	FailureNoFace       Key = "failure_no_face"
	FailureGeneric      Key = "failure_generic"
	FailureTimeout      Key = "failure_timeout"
	FailureDelivery     Key = "failure_delivery"
	JobImage            Key = "job_image"
	JobVideo            Key = "job_video"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Catalog maps keys to fmt templates.
type Catalog struct {
	texts map[Key]string
}

// Default returns the embedded catalog.
func Default() *Catalog {
	c, err := parse(defaultsYAML)
	if err != nil {
		panic(fmt.Sprintf("messages: embedded defaults are invalid: %v", err))
	}
	return c
}

// Load returns the embedded catalog overlaid with the entries in path. An
// empty path yields the defaults.
func Load(path string) (*Catalog, error) {
	c := Default()
	path = strings.TrimSpace(path)
	if path == "" {
		return c, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read messages file: %w", err)
	}
	override, err := parse(raw)
	if err != nil {
		return nil, fmt.Errorf("messages file %s: %w", path, err)
	}
	for k, v := range override.texts {
		c.texts[k] = v
	}
	return c, nil
}

func parse(raw []byte) (*Catalog, error) {
	var m map[string]string
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	out := &Catalog{texts: make(map[Key]string, len(m))}
	for k, v := range m {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		out.texts[Key(k)] = v
	}
	return out, nil
}

// Text formats the template for key. Unknown keys render as the key itself.
func (c *Catalog) Text(key Key, args ...any) string {
	tmpl, ok := "", false
	if c != nil {
		tmpl, ok = c.texts[key]
	}
	if !ok {
		return string(key)
	}
	if len(args) == 0 {
		return strings.ReplaceAll(tmpl, "%%", "%")
	}
	return fmt.Sprintf(tmpl, args...)
}
