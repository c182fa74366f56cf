package bench

import (
	"fmt"
	"sync"
)

// Recorder is the ordered, in-memory progress buffer whose lines
// become the execution log artifact. It is an explicit data channel:
// nothing is intercepted from console or structured logging.
type Recorder struct {
	mu    sync.Mutex
	lines []string
}

// NewRecorder returns an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Line appends one progress line.
func (r *Recorder) Line(s string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines = append(r.lines, s)
}

// Linef appends one formatted progress line.
func (r *Recorder) Linef(format string, args ...any) {
	r.Line(fmt.Sprintf(format, args...))
}

// Lines returns a copy of the recorded lines in order.
func (r *Recorder) Lines() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.lines))
	copy(out, r.lines)
	return out
}

// Len returns the number of recorded lines.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.lines)
}
