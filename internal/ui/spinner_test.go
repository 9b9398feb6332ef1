package ui

import (
	"bytes"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// syncBuffer is a bytes.Buffer safe for the spinner goroutine.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestSpinnerWritesMessage(t *testing.T) {
	var out syncBuffer
	s := NewSpinner(&out, "scanning")
	s.Start()
	time.Sleep(20 * time.Millisecond)
	s.SetMessage("block 104")
	time.Sleep(200 * time.Millisecond)
	s.Stop()

	got := out.String()
	assert.Contains(t, got, "scanning")
	assert.Contains(t, got, "block 104")
}

func TestSpinnerStopTwice(t *testing.T) {
	var out syncBuffer
	s := NewSpinner(&out, "x")
	s.Start()
	s.Stop()
	s.Stop()
}

func TestSpinnerStopWithoutStart(t *testing.T) {
	s := NewSpinner(&syncBuffer{}, "x")
	s.Stop()
}
