package jobrunner

import (
	"strconv"
	"strings"
)

const (
	progressPrefix = "PROGRESS:"

	// MinProgressStep is the smallest percentage gap between status edits.
	MinProgressStep = 4
)

// ParseProgress extracts the percentage from a "PROGRESS:<n>" line, clamped
// to 0..100.
func ParseProgress(line string) (int, bool) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, progressPrefix) {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(line, progressPrefix)))
	if err != nil {
		return 0, false
	}
	if n < 0 {
		n = 0
	}
	if n > 100 {
		n = 100
	}
	return n, true
}

// Throttle decides which progress values are worth a status edit. Accepted
// values are strictly increasing, at least MinProgressStep apart and below
// 100; completion is reported separately.
type Throttle struct {
	last int
}

func (t *Throttle) Last() int { return t.last }

func (t *Throttle) Accept(next int) bool {
	if next >= t.last+MinProgressStep && next < 100 {
		t.last = next
		return true
	}
	return false
}
