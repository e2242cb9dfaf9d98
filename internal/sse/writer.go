package sse

import (
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"
)

// ErrClosed is returned by writes after Close.
var ErrClosed = errors.New("sse: writer closed")

// Writer sends frames to an http.ResponseWriter. Writes are serialized so the
// heartbeat goroutine and the event producer never interleave partial frames.
type Writer struct {
	w  http.ResponseWriter
	rc *http.ResponseController

	mu     sync.Mutex
	closed bool

	stopOnce sync.Once
	stop     chan struct{}
	wg       sync.WaitGroup
}

// NewWriter commits the event-stream headers with a 200 status and flushes them.
// It fails if the ResponseWriter cannot flush.
func NewWriter(w http.ResponseWriter) (*Writer, error) {
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no") // nginx

	rc := http.NewResponseController(w)
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		return nil, fmt.Errorf("sse: streaming unsupported: %w", err)
	}
	return &Writer{w: w, rc: rc, stop: make(chan struct{})}, nil
}

// Send encodes and writes one event, flushing it to the client.
func (s *Writer) Send(e Event) error {
	frame, err := Encode(e)
	if err != nil {
		return err
	}
	return s.write(frame)
}

// Comment writes an SSE comment frame, ignored by decoders.
func (s *Writer) Comment(text string) error {
	return s.write([]byte(": " + text + "\n\n"))
}

func (s *Writer) write(frame []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if _, err := s.w.Write(frame); err != nil {
		return err
	}
	return s.rc.Flush()
}

// Heartbeat writes `: ping` comments every interval until Close or a failed write.
func (s *Writer) Heartbeat(interval time.Duration) {
	if interval <= 0 {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-s.stop:
				return
			case <-ticker.C:
				if err := s.Comment("ping"); err != nil {
					return
				}
			}
		}
	}()
}

// Close stops the heartbeat and rejects further writes. It is safe to call
// more than once.
func (s *Writer) Close() error {
	s.stopOnce.Do(func() { close(s.stop) })
	s.wg.Wait()
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

// Closed reports whether Close has been called.
func (s *Writer) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
