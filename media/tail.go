package media

import (
	"strings"
	"sync"
)

// outputTail keeps the last lines written to it, for error reports from
// child processes.
type outputTail struct {
	mu       sync.Mutex
	lines    []string
	maxLines int
	index    int
	full     bool
	partial  strings.Builder
}

func newOutputTail(maxLines int) *outputTail {
	return &outputTail{
		lines:    make([]string, maxLines),
		maxLines: maxLines,
	}
}

// Write implements io.Writer.
func (t *outputTail) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, b := range p {
		if b == '\n' {
			t.add(t.partial.String())
			t.partial.Reset()
			continue
		}
		t.partial.WriteByte(b)
	}
	return len(p), nil
}

func (t *outputTail) add(line string) {
	line = strings.TrimRight(line, "\r")
	if line == "" {
		return
	}
	t.lines[t.index] = line
	t.index = (t.index + 1) % t.maxLines
	if t.index == 0 {
		t.full = true
	}
}

// Lines returns the retained lines, oldest first, including any
// unterminated last line.
func (t *outputTail) Lines() []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	var result []string
	if t.full {
		for i := 0; i < t.maxLines; i++ {
			result = append(result, t.lines[(t.index+i)%t.maxLines])
		}
	} else {
		result = append(result, t.lines[:t.index]...)
	}
	if last := strings.TrimSpace(t.partial.String()); last != "" {
		result = append(result, last)
	}
	return result
}

func (t *outputTail) String() string {
	return strings.Join(t.Lines(), "; ")
}
