// Package outputfmt strips credentials from text before it reaches logs or
// users.
package outputfmt

import (
	"errors"
	"net/url"
	"regexp"
	"strings"
)

const redacted = "[redacted]"

var (
	absoluteURLInTextRE = regexp.MustCompile(`https?://[^\s"'<>]+`)
	botTokenSegmentRE   = regexp.MustCompile(`/bot[0-9]+:[A-Za-z0-9_-]+`)
)

// SanitizeErrorText redacts Bot API tokens and sensitive query values in
// every absolute URL found in raw.
func SanitizeErrorText(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	return absoluteURLInTextRE.ReplaceAllStringFunc(raw, RedactURL)
}

// RedactURL replaces a "/bot<token>" path segment and sensitive query
// values. Scheme and host are kept.
func RedactURL(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return botTokenSegmentRE.ReplaceAllString(raw, "/bot"+redacted)
	}
	path := botTokenSegmentRE.ReplaceAllString(u.EscapedPath(), "/bot"+redacted)
	out := u.Scheme + "://" + u.Host + path
	if q := redactSensitiveQuery(u.Query()); q != "" {
		out += "?" + q
	}
	return out
}

// RedactURLError rewrites the URL of a wrapped *url.Error in place and
// returns err, so errors.Is checks keep working.
func RedactURLError(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr != nil {
		urlErr.URL = RedactURL(urlErr.URL)
	}
	return err
}

func redactSensitiveQuery(q url.Values) string {
	if len(q) == 0 {
		return ""
	}
	for k := range q {
		if isSensitiveQueryKey(k) {
			q.Set(k, redacted)
		}
	}
	return q.Encode()
}

func isSensitiveQueryKey(key string) bool {
	k := strings.ToLower(strings.TrimSpace(key))
	if k == "" {
		return false
	}
	n := strings.ReplaceAll(strings.ReplaceAll(k, "-", ""), "_", "")
	switch n {
	case "key", "apikey", "token", "accesstoken", "secret", "password", "signature":
		return true
	}
	return strings.HasSuffix(n, "token") || strings.HasSuffix(n, "secret")
}
