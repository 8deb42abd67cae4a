package redis

import (
	"context"
	"errors"
	"sync"

	"indcore/internal/model"
)

// BatchWriter is what ResultSink writes through; *Writer implements it.
type BatchWriter interface {
	WriteIndicatorBatch(ctx context.Context, results []model.IndicatorResult) error
}

// ResultSink writes indicator results through a circuit breaker. While the
// breaker is open, committed results are buffered (oldest dropped first
// beyond maxBuffered) and live previews are discarded, since a stale
// preview has no value. The buffer is replayed ahead of the next batch
// that gets through.
type ResultSink struct {
	w  BatchWriter
	cb *CircuitBreaker

	mu       sync.Mutex
	buffer   []model.IndicatorResult
	maxBuf   int
	dropped  int
	previews int

	// OnBuffer, if set, observes how many results were buffered.
	OnBuffer func(n int)
	// OnFlush, if set, observes how many buffered results were replayed.
	OnFlush func(n int)
}

// NewResultSink creates a ResultSink. maxBuffered <= 0 means 10000.
func NewResultSink(w BatchWriter, cb *CircuitBreaker, maxBuffered int) *ResultSink {
	if maxBuffered <= 0 {
		maxBuffered = 10000
	}
	return &ResultSink{w: w, cb: cb, maxBuf: maxBuffered}
}

// Write sends results, replaying anything buffered first. It returns nil
// when the results were buffered instead of written.
func (s *ResultSink) Write(ctx context.Context, results []model.IndicatorResult) error {
	if len(results) == 0 {
		return nil
	}

	s.mu.Lock()
	pending := s.buffer
	s.buffer = nil
	s.mu.Unlock()

	batch := results
	if len(pending) > 0 {
		batch = append(pending, results...)
	}

	err := s.cb.Execute(func() error {
		return s.w.WriteIndicatorBatch(ctx, batch)
	})
	if err == nil {
		if len(pending) > 0 && s.OnFlush != nil {
			s.OnFlush(len(pending))
		}
		return nil
	}

	s.keep(pending, results)
	if errors.Is(err, ErrCircuitOpen) {
		return nil
	}
	return err
}

// keep puts pending back ahead of anything buffered meanwhile and buffers
// the committed results of fresh.
func (s *ResultSink) keep(pending, fresh []model.IndicatorResult) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(pending) > 0 {
		s.buffer = append(pending[:len(pending):len(pending)], s.buffer...)
	}
	n := 0
	for _, r := range fresh {
		if r.Live {
			s.previews++
			continue
		}
		s.buffer = append(s.buffer, r)
		n++
	}
	if over := len(s.buffer) - s.maxBuf; over > 0 {
		s.buffer = append(s.buffer[:0:0], s.buffer[over:]...)
		s.dropped += over
	}
	if n > 0 && s.OnBuffer != nil {
		s.OnBuffer(n)
	}
}

// Pending returns the number of buffered results waiting to be written.
func (s *ResultSink) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.buffer)
}

// Dropped returns how many committed results overflowed the buffer and how
// many previews were discarded.
func (s *ResultSink) Dropped() (committed, previews int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped, s.previews
}
