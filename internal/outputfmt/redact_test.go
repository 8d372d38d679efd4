package outputfmt

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"testing"
)

func TestSanitizeErrorTextRedactsBotToken(t *testing.T) {
	in := `Post "https://api.telegram.org/bot123456:AAE-x_yz/getUpdates?timeout=30": context deadline exceeded`

	out := SanitizeErrorText(in)
	if strings.Contains(out, "AAE-x_yz") || strings.Contains(out, "123456:") {
		t.Fatalf("token should be redacted, got %q", out)
	}
	if !strings.Contains(out, "https://api.telegram.org/bot[redacted]/getUpdates?timeout=30") {
		t.Fatalf("host, method and query should be kept, got %q", out)
	}
}

func TestSanitizeErrorTextFileURLAndQuery(t *testing.T) {
	in := `download failed: https://api.telegram.org/file/bot1:abc/photos/a.jpg then https://llm.example.com/v1?api_key=sk-1&x=1`
	out := SanitizeErrorText(in)
	if strings.Contains(out, "1:abc") || strings.Contains(out, "sk-1") {
		t.Fatalf("secrets should be redacted, got %q", out)
	}
	if !strings.Contains(out, "/file/bot[redacted]/photos/a.jpg") {
		t.Fatalf("file path should be kept, got %q", out)
	}
	if !strings.Contains(out, "x=1") {
		t.Fatalf("plain query should be kept, got %q", out)
	}
}

func TestRedactURLErrorKeepsChain(t *testing.T) {
	err := error(&url.Error{Op: "Post", URL: "https://api.telegram.org/bot9:tok/sendMessage", Err: context.Canceled})
	err = RedactURLError(err)
	if strings.Contains(err.Error(), "9:tok") {
		t.Fatalf("url error should be redacted, got %q", err.Error())
	}
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("redaction should keep the wrapped error")
	}
	if got := RedactURLError(nil); got != nil {
		t.Fatalf("RedactURLError(nil) = %v", got)
	}
	if SanitizeErrorText("  ") != "" {
		t.Fatalf("blank text should stay empty")
	}
}
