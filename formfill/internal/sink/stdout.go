package sink

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
)

// Stdout prints one JSON line per pass. Lines from concurrent passes never
// interleave.
type Stdout struct {
	mu sync.Mutex
	w  io.Writer
}

// NewStdout writes to w, or os.Stdout when w is nil.
func NewStdout(w io.Writer) *Stdout {
	if w == nil {
		w = os.Stdout
	}
	return &Stdout{w: w}
}

func (s *Stdout) Send(_ context.Context, ev Event) error {
	line, err := encode(ev)
	if err != nil {
		return fmt.Errorf("stdout: encode %s: %w", ev.PassID, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.w.Write(line)
	return err
}

func (s *Stdout) Close() error { return nil }
