package ui

import (
	"fmt"
	"io"
	"sync"
	"time"
)

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// Spinner animates a one-line progress indicator on w. It is meant for
// stderr so that command output on stdout stays clean.
type Spinner struct {
	w    io.Writer
	mu   sync.Mutex
	msg  string
	stop chan struct{}
	done chan struct{}
	once sync.Once

	started bool
}

// NewSpinner creates a spinner writing to w.
func NewSpinner(w io.Writer, msg string) *Spinner {
	return &Spinner{
		w:    w,
		msg:  msg,
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
}

// SetMessage replaces the text shown next to the spinner.
func (s *Spinner) SetMessage(msg string) {
	s.mu.Lock()
	s.msg = msg
	s.mu.Unlock()
}

func (s *Spinner) message() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.msg
}

// Start begins the animation in a goroutine.
func (s *Spinner) Start() {
	s.mu.Lock()
	s.started = true
	s.mu.Unlock()

	go func() {
		defer close(s.done)
		ticker := time.NewTicker(80 * time.Millisecond)
		defer ticker.Stop()
		for i := 0; ; i++ {
			fmt.Fprintf(s.w, "\r\033[K%s  %s", StyleChain.Render(spinnerFrames[i%len(spinnerFrames)]), s.message())
			select {
			case <-s.stop:
				fmt.Fprint(s.w, "\r\033[K")
				return
			case <-ticker.C:
			}
		}
	}()
}

// Stop halts the spinner and clears its line. It is safe to call twice.
func (s *Spinner) Stop() {
	s.once.Do(func() {
		close(s.stop)
		s.mu.Lock()
		started := s.started
		s.mu.Unlock()
		if started {
			<-s.done
		}
	})
}
