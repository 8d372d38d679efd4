package flow

import (
	"fmt"
	"strings"

	"github.com/Nyxora-Sanctum/whatsapp-deepfake-bot/internal/intent"
	"github.com/Nyxora-Sanctum/whatsapp-deepfake-bot/internal/messages"
	"github.com/Nyxora-Sanctum/whatsapp-deepfake-bot/internal/session"
)

var (
	yesWords = []string{"ya", "iya", "iyaa", "y", "yes", "yup", "yep", "pakai", "pake", "boleh", "mau", "on", "ok", "oke", "sip"}
	noWords  = []string{"tidak", "tdk", "gak", "ga", "nggak", "ngga", "enggak", "engga", "no", "n", "nope", "tanpa", "jangan", "off", "skip"}

	allFacesWords = []string{"semua", "semuanya", "all", "banyak", "many", "multi"}
	oneFaceWords  = []string{"satu", "one", "single", "sendiri", "1"}

	qualityWords = map[session.Quality][]string{
		session.QualityLow:    {"rendah", "low", "kecil", "1"},
		session.QualityMedium: {"sedang", "medium", "normal", "standar", "2"},
		session.QualityHigh:   {"tinggi", "high", "bagus", "3"},
		session.QualityMax:    {"maksimal", "maksimum", "max", "ultra", "terbaik", "4"},
	}

	upscaleWords = map[session.Upscale][]string{
		session.UpscaleNone: append([]string{"none", "0", "1x"}, noWords...),
		session.Upscale2x:   {"2x", "2", "x2", "dua"},
		session.Upscale4x:   {"4x", "4", "x4", "empat"},
	}
)

// DefaultOptionSteps is the option sequence used when none is configured.
func DefaultOptionSteps() map[session.JobType][]session.OptionKey {
	return map[session.JobType][]session.OptionKey{
		session.JobImage: {session.OptionEnhance, session.OptionMultiFace, session.OptionUpscale},
		session.JobVideo: {session.OptionEnhance, session.OptionMultiFace, session.OptionQuality},
	}
}

// ParseOptionSteps turns configured step names into option keys. Quality is
// a video-only step and upscale an image-only one.
func ParseOptionSteps(jobType session.JobType, names []string) ([]session.OptionKey, error) {
	out := make([]session.OptionKey, 0, len(names))
	seen := make(map[session.OptionKey]bool, len(names))
	for _, name := range names {
		if strings.TrimSpace(name) == "" {
			continue
		}
		key, err := session.ParseOptionKey(name)
		if err != nil {
			return nil, err
		}
		if key == session.OptionQuality && jobType != session.JobVideo {
			return nil, fmt.Errorf("option %q only applies to video jobs", key)
		}
		if key == session.OptionUpscale && jobType != session.JobImage {
			return nil, fmt.Errorf("option %q only applies to image jobs", key)
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, key)
	}
	return out, nil
}

// applyOption parses a reply for the option step key and records it in opts.
func applyOption(key session.OptionKey, text string, opts *session.Options) bool {
	tokens := strings.Fields(intent.Normalize(text))
	if len(tokens) == 0 || opts == nil {
		return false
	}
	switch key {
	case session.OptionEnhance:
		if v, ok := matchBool(tokens, yesWords, noWords); ok {
			opts.Enhance = &v
			return true
		}
	case session.OptionMultiFace:
		if v, ok := matchBool(tokens, allFacesWords, oneFaceWords); ok {
			opts.MultiFace = &v
			return true
		}
	case session.OptionQuality:
		for _, q := range []session.Quality{session.QualityLow, session.QualityMedium, session.QualityHigh, session.QualityMax} {
			if containsWord(tokens[:1], qualityWords[q]) {
				opts.Quality = q
				return true
			}
		}
	case session.OptionUpscale:
		for _, u := range []session.Upscale{session.UpscaleNone, session.Upscale2x, session.Upscale4x} {
			if containsWord(tokens[:1], upscaleWords[u]) {
				opts.Upscale = u
				return true
			}
		}
	}
	return false
}

// matchBool decides on the first token so "tidak mau" reads as no.
func matchBool(tokens []string, yes []string, no []string) (bool, bool) {
	first := tokens[:1]
	switch {
	case containsWord(first, no):
		return false, true
	case containsWord(first, yes):
		return true, true
	default:
		return false, false
	}
}

func containsWord(tokens []string, words []string) bool {
	for _, tok := range tokens {
		for _, w := range words {
			if tok == w {
				return true
			}
		}
	}
	return false
}

func optionPrompt(key session.OptionKey) messages.Key {
	switch key {
	case session.OptionEnhance:
		return messages.PromptEnhance
	case session.OptionMultiFace:
		return messages.PromptMultiFace
	case session.OptionQuality:
		return messages.PromptQuality
	default:
		return messages.PromptUpscale
	}
}
