package llm

import (
	"context"
	"io"
	"sync"
)

// eventStream adapts a producer goroutine writing to a channel into a Stream.
type eventStream struct {
	cancel context.CancelFunc
	events chan Event
	done   chan struct{}

	mu  sync.Mutex
	err error
}

// newEventStream runs fn on its own goroutine. Events sent by fn are returned from Recv in
// order; when fn returns, Recv yields its error (or io.EOF on success).
func newEventStream(ctx context.Context, fn func(ctx context.Context, events chan<- Event) error) Stream {
	ctx, cancel := context.WithCancel(ctx)
	s := &eventStream{
		cancel: cancel,
		events: make(chan Event, 16),
		done:   make(chan struct{}),
	}
	go func() {
		defer close(s.done)
		defer close(s.events)
		err := fn(ctx, s.events)
		s.mu.Lock()
		s.err = err
		s.mu.Unlock()
	}()
	return s
}

func (s *eventStream) Recv() (Event, error) {
	event, ok := <-s.events
	if ok {
		return event, nil
	}
	<-s.done
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return Event{}, s.err
	}
	return Event{}, io.EOF
}

// Close cancels the producer and drains pending events so it can exit.
func (s *eventStream) Close() error {
	s.cancel()
	for range s.events {
	}
	<-s.done
	return nil
}
