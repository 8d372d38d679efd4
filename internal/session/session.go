package session

import (
	"fmt"
	"strings"
	"time"
)

type State int

const (
	StateIdle State = iota
	StateAwaitingSource
	StateAwaitingTarget
	StateAwaitingOption
	StateDispatched
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingSource:
		return "awaiting_source"
	case StateAwaitingTarget:
		return "awaiting_target"
	case StateAwaitingOption:
		return "awaiting_option"
	case StateDispatched:
		return "dispatched"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Collecting reports whether the session is waiting for user input.
func (s State) Collecting() bool {
	return s == StateAwaitingSource || s == StateAwaitingTarget || s == StateAwaitingOption
}

type JobType int

const (
	JobImage JobType = iota
	JobVideo
)

func (t JobType) String() string {
	if t == JobVideo {
		return "video"
	}
	return "image"
}

func ParseJobType(s string) (JobType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "image", "img", "photo", "gambar", "foto":
		return JobImage, nil
	case "video", "vid":
		return JobVideo, nil
	default:
		return JobImage, fmt.Errorf("unknown job type: %q", s)
	}
}

// OptionKey names one option-collection step.
type OptionKey string

const (
	OptionEnhance   OptionKey = "enhance"
	OptionMultiFace OptionKey = "multi_face"
	OptionQuality   OptionKey = "quality"
	OptionUpscale   OptionKey = "upscale"
)

func ParseOptionKey(s string) (OptionKey, error) {
	switch k := OptionKey(strings.ToLower(strings.TrimSpace(s))); k {
	case OptionEnhance, OptionMultiFace, OptionQuality, OptionUpscale:
		return k, nil
	default:
		return "", fmt.Errorf("unknown option: %q", s)
	}
}

type Quality int

const (
	QualityUnset Quality = iota
	QualityLow
	QualityMedium
	QualityHigh
	QualityMax
)

func (q Quality) String() string {
	switch q {
	case QualityLow:
		return "low"
	case QualityMedium:
		return "medium"
	case QualityHigh:
		return "high"
	case QualityMax:
		return "max"
	default:
		return ""
	}
}

type Upscale int

const (
	UpscaleUnset Upscale = iota
	UpscaleNone
	Upscale2x
	Upscale4x
)

func (u Upscale) String() string {
	switch u {
	case UpscaleNone:
		return "none"
	case Upscale2x:
		return "2x"
	case Upscale4x:
		return "4x"
	default:
		return ""
	}
}

// Options holds the values chosen during option collection. A nil pointer or
// zero enum means "not chosen yet".
type Options struct {
	Enhance   *bool
	MultiFace *bool
	Quality   Quality
	Upscale   Upscale
}

func (o Options) Has(key OptionKey) bool {
	switch key {
	case OptionEnhance:
		return o.Enhance != nil
	case OptionMultiFace:
		return o.MultiFace != nil
	case OptionQuality:
		return o.Quality != QualityUnset
	case OptionUpscale:
		return o.Upscale != UpscaleUnset
	default:
		return false
	}
}

func (o Options) EnhanceOn() bool   { return o.Enhance != nil && *o.Enhance }
func (o Options) MultiFaceOn() bool { return o.MultiFace != nil && *o.MultiFace }

func (o Options) clone() Options {
	out := o
	if o.Enhance != nil {
		v := *o.Enhance
		out.Enhance = &v
	}
	if o.MultiFace != nil {
		v := *o.MultiFace
		out.MultiFace = &v
	}
	return out
}

// Session is the per-user interaction record.
type Session struct {
	UserID     string
	ChatID     string
	State      State
	JobType    JobType
	Steps      []OptionKey
	OptionStep int
	SourcePath string
	TargetPath string
	// OutputPath is assigned on dispatch.
	OutputPath string
	Options    Options
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// CurrentOption returns the option being collected in StateAwaitingOption.
func (s Session) CurrentOption() (OptionKey, bool) {
	if s.State != StateAwaitingOption || s.OptionStep < 0 || s.OptionStep >= len(s.Steps) {
		return "", false
	}
	return s.Steps[s.OptionStep], true
}

// Missing lists what still blocks dispatch.
func (s Session) Missing() []string {
	var out []string
	if strings.TrimSpace(s.SourcePath) == "" {
		out = append(out, "source")
	}
	if strings.TrimSpace(s.TargetPath) == "" {
		out = append(out, "target")
	}
	for _, key := range s.Steps {
		if !s.Options.Has(key) {
			out = append(out, string(key))
		}
	}
	return out
}

// Ready reports whether both inputs and every required option are present.
func (s Session) Ready() bool {
	return len(s.Missing()) == 0
}

func (s Session) clone() Session {
	out := s
	out.Steps = append([]OptionKey(nil), s.Steps...)
	out.Options = s.Options.clone()
	return out
}
