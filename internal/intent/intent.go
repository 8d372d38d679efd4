// Package intent classifies free text into the small set of tags that drive
// the conversation flow.
package intent

import (
	"context"
	"strings"
	"unicode"

	"github.com/Nyxora-Sanctum/whatsapp-deepfake-bot/internal/session"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

type Tag string

const (
	StartImage   Tag = "START_IMAGE"
	StartVideo   Tag = "START_VIDEO"
	SwitchImage  Tag = "SWITCH_IMAGE"
	SwitchVideo  Tag = "SWITCH_VIDEO"
	ProvideMedia Tag = "PROVIDE_MEDIA"
	Cancel       Tag = "CANCEL"
	Chitchat     Tag = "CHITCHAT"
	Help         Tag = "HELP"
	Unknown      Tag = "UNKNOWN"
)

var allTags = []Tag{StartImage, StartVideo, SwitchImage, SwitchVideo, ProvideMedia, Cancel, Chitchat, Help, Unknown}

// ParseTag maps a free-form tag name onto a Tag.
func ParseTag(s string) (Tag, bool) {
	s = strings.ToUpper(strings.TrimSpace(s))
	s = strings.NewReplacer("-", "_", " ", "_").Replace(s)
	for _, t := range allTags {
		if string(t) == s {
			return t, true
		}
	}
	return Unknown, false
}

// JobType returns the job type a start or switch tag asks for.
func (t Tag) JobType() (session.JobType, bool) {
	switch t {
	case StartImage, SwitchImage:
		return session.JobImage, true
	case StartVideo, SwitchVideo:
		return session.JobVideo, true
	default:
		return session.JobImage, false
	}
}

func (t Tag) IsStart() bool  { return t == StartImage || t == StartVideo }
func (t Tag) IsSwitch() bool { return t == SwitchImage || t == SwitchVideo }

// Resolver classifies text given the user's current session (nil when idle).
// Implementations never fail; on trouble they degrade to Chitchat or Unknown.
type Resolver interface {
	Classify(ctx context.Context, text string, current *session.Session) Tag
}

// Normalize folds case, applies NFKC and collapses punctuation and whitespace
// so vocabulary lookups are stable across keyboards.
func Normalize(text string) string {
	text = norm.NFKC.String(text)
	text = cases.Fold().String(text)
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	return strings.Join(fields, " ")
}

var cancelVocabulary = []string{
	"batal", "batalkan", "batalin", "cancel", "stop", "berhenti", "udahan", "sudahi",
	"gak jadi", "ga jadi", "nggak jadi", "ngga jadi", "tidak jadi", "enggak jadi", "exit", "keluar",
}

// IsCancel reports whether text is a cancellation request. Short messages that
// start with a cancellation phrase count ("batal aja", "stop dulu").
func IsCancel(text string) bool {
	n := Normalize(text)
	if n == "" {
		return false
	}
	tokens := strings.Fields(n)
	for _, phrase := range cancelVocabulary {
		if n == phrase {
			return true
		}
		if len(tokens) <= 3 && strings.HasPrefix(n, phrase+" ") {
			return true
		}
	}
	return false
}
