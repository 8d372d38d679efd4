package jobrunner

import "bytes"

// lineSplitter is a bufio.SplitFunc that breaks tool output on '\n' or '\r'.
// Lines longer than limit are dropped instead of stopping the scan, so the
// child's stdout is always read to EOF.
type lineSplitter struct {
	limit      int
	discarding bool
}

func (s *lineSplitter) split(data []byte, atEOF bool) (int, []byte, error) {
	if len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		if s.discarding {
			s.discarding = false
			return i + 1, nil, nil
		}
		return i + 1, data[:i], nil
	}
	if len(data) >= s.limit {
		s.discarding = true
		return len(data), nil, nil
	}
	if !atEOF {
		return 0, nil, nil
	}
	if s.discarding {
		return len(data), nil, nil
	}
	return len(data), data, nil
}
