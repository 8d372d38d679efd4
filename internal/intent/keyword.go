package intent

import (
	"context"
	"strings"

	"github.com/Nyxora-Sanctum/whatsapp-deepfake-bot/internal/session"
)

var (
	helpWords     = []string{"bantuan", "help", "menu", "tolong", "panduan", "cara", "caranya", "start", "mulai"}
	greetingWords = []string{"halo", "hallo", "hai", "hi", "hello", "hey", "pagi", "siang", "sore", "malam", "makasih", "terima", "thanks", "thank", "mantap", "ok", "oke", "sip"}
	startVerbs    = []string{"buat", "bikin", "buatkan", "bikinin", "mau", "ingin", "pengen", "pingin", "swap", "tukar", "faceswap", "create", "make", "generate", "proses"}
	switchMarkers = []string{"ganti ke", "ganti jadi", "pindah ke", "ubah ke", "ubah jadi", "switch to", "change to", "jadi"}
	imageWords    = []string{"gambar", "foto", "image", "photo", "picture", "pic", "img"}
	videoWords    = []string{"video", "vidio", "vid", "clip", "klip"}
)

// KeywordResolver is a deterministic vocabulary classifier. It is the default
// resolver and the fallback of LLMResolver.
type KeywordResolver struct{}

func (KeywordResolver) Classify(_ context.Context, text string, current *session.Session) Tag {
	return classifyKeywords(text, current)
}

func classifyKeywords(text string, current *session.Session) Tag {
	n := Normalize(text)
	if n == "" {
		return Unknown
	}
	if IsCancel(text) {
		return Cancel
	}
	tokens := strings.Fields(n)
	hasImage := containsAnyToken(tokens, imageWords)
	hasVideo := containsAnyToken(tokens, videoWords)

	if hasImage != hasVideo {
		inSession := current != nil && current.State.Collecting()
		if inSession && containsAnyPhrase(n, switchMarkers) {
			if hasVideo {
				return SwitchVideo
			}
			return SwitchImage
		}
		if len(tokens) == 1 || containsAnyToken(tokens, startVerbs) || containsAnyPhrase(n, []string{"face swap", "ganti wajah", "tukar wajah"}) {
			if inSession && current.JobType == jobTypeFor(hasVideo) {
				return StartImageOrVideo(hasVideo)
			}
			if inSession {
				if hasVideo {
					return SwitchVideo
				}
				return SwitchImage
			}
			return StartImageOrVideo(hasVideo)
		}
	}
	if containsAnyToken(tokens, helpWords) {
		return Help
	}
	if containsAnyToken(tokens, greetingWords) {
		return Chitchat
	}
	return Unknown
}

// StartImageOrVideo returns StartVideo when video is true, else StartImage.
func StartImageOrVideo(video bool) Tag {
	if video {
		return StartVideo
	}
	return StartImage
}

func jobTypeFor(video bool) session.JobType {
	if video {
		return session.JobVideo
	}
	return session.JobImage
}

func containsAnyToken(tokens []string, words []string) bool {
	for _, tok := range tokens {
		for _, w := range words {
			if tok == w {
				return true
			}
		}
	}
	return false
}

func containsAnyPhrase(normalized string, phrases []string) bool {
	padded := " " + normalized + " "
	for _, p := range phrases {
		if strings.Contains(padded, " "+p+" ") {
			return true
		}
	}
	return false
}
