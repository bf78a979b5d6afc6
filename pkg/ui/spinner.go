package ui

import (
	"fmt"
	"io"
	"sync"
	"time"
)

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// Spinner animates a single status line until stopped.
type Spinner struct {
	out      io.Writer
	interval time.Duration

	mu      sync.Mutex
	text    string
	stop    chan struct{}
	done    chan struct{}
	running bool
}

// NewSpinner writes frames to out.
func NewSpinner(out io.Writer) *Spinner {
	return &Spinner{out: out, interval: 80 * time.Millisecond}
}

// Start begins animating text. Calling Start on a running spinner only updates the text.
func (s *Spinner) Start(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.text = text
	if s.running {
		return
	}
	s.running = true
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	go s.run(s.stop, s.done)
}

func (s *Spinner) run(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for frame := 0; ; frame++ {
		s.mu.Lock()
		text := s.text
		s.mu.Unlock()
		_, _ = fmt.Fprintf(s.out, "\r\033[K%s %s", titleStyle.Render(spinnerFrames[frame%len(spinnerFrames)]), text)
		select {
		case <-stop:
			_, _ = fmt.Fprint(s.out, "\r\033[K")
			return
		case <-ticker.C:
		}
	}
}

// Stop clears the line and prints final when non-empty. Safe to call twice.
func (s *Spinner) Stop(final string) {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		if final != "" {
			_, _ = fmt.Fprintln(s.out, final)
		}
		return
	}
	s.running = false
	stop, done := s.stop, s.done
	s.mu.Unlock()

	close(stop)
	<-done
	if final != "" {
		_, _ = fmt.Fprintln(s.out, final)
	}
}
