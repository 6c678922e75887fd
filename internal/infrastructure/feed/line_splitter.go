package feed

import (
	"bytes"
	"strings"
)

// MaxLineLength bounds the bytes held for one incomplete line
const MaxLineLength = 64 * 1024

// LineSplitter reassembles newline-delimited lines from arbitrary chunks.
// A line split across two reads is held back until its terminator
// arrives instead of being parsed as two fragments.
type LineSplitter struct {
	pending    []byte
	discarding bool // inside an overlong line, skipping to its terminator
}

// Push consumes a chunk and returns the lines it completes, without
// terminators. Blank lines and lines over MaxLineLength are skipped.
func (s *LineSplitter) Push(chunk []byte) []string {
	var lines []string
	data := chunk
	for {
		i := bytes.IndexByte(data, '\n')
		if i < 0 {
			break
		}
		if s.discarding || len(s.pending)+i > MaxLineLength {
			s.discarding = false
			s.pending = s.pending[:0]
			data = data[i+1:]
			continue
		}

		var line string
		if len(s.pending) > 0 {
			s.pending = append(s.pending, data[:i]...)
			line = string(s.pending)
			s.pending = s.pending[:0]
		} else {
			line = string(data[:i])
		}
		if line = strings.TrimRight(line, "\r"); strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
		data = data[i+1:]
	}
	if s.discarding {
		return lines
	}
	s.pending = append(s.pending, data...)
	if len(s.pending) > MaxLineLength {
		// not a feed line; drop it up to its terminator
		s.pending = s.pending[:0]
		s.discarding = true
	}
	return lines
}

// Flush returns the unterminated remainder, if any, and resets the splitter
func (s *LineSplitter) Flush() (string, bool) {
	line := strings.TrimRight(string(s.pending), "\r")
	s.pending = s.pending[:0]
	if s.discarding {
		s.discarding = false
		return "", false
	}
	if strings.TrimSpace(line) == "" {
		return "", false
	}
	return line, true
}

// Pending returns the number of buffered bytes of an incomplete line
func (s *LineSplitter) Pending() int {
	return len(s.pending)
}
