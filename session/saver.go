package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// Saver writes state documents to a Store with retries. Documents are
// numbered as they are handed in; a document older than the last one
// written is dropped instead of overwriting newer state.
type Saver struct {
	store Store

	// MaxTries bounds the attempts for one document.
	MaxTries uint
	// InitialInterval is the first retry delay.
	InitialInterval time.Duration
	// OnError is called once per document that could not be written.
	OnError func(error)

	mu         sync.Mutex
	seq        uint64
	pending    []byte
	pendingSeq uint64

	writeMu sync.Mutex
	written uint64

	wake chan struct{}
}

// NewSaver returns a Saver for store.
func NewSaver(store Store) *Saver {
	return &Saver{
		store:           store,
		MaxTries:        5,
		InitialInterval: 200 * time.Millisecond,
		wake:            make(chan struct{}, 1),
	}
}

func (s *Saver) next() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	return s.seq
}

// Submit queues data for the background loop and returns immediately.
// Only the latest queued document is kept.
func (s *Saver) Submit(data []byte) {
	s.mu.Lock()
	s.seq++
	s.pending = data
	s.pendingSeq = s.seq
	s.mu.Unlock()
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Save writes data now, retrying transient failures.
func (s *Saver) Save(ctx context.Context, data []byte) error {
	return s.write(ctx, s.next(), data)
}

// Run drains submitted documents until ctx is done, then flushes the last
// pending one with a short deadline.
func (s *Saver) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			s.flush(flushCtx)
			cancel()
			return
		case <-s.wake:
			s.flush(ctx)
		}
	}
}

func (s *Saver) flush(ctx context.Context) error {
	s.mu.Lock()
	data, seq := s.pending, s.pendingSeq
	s.pending = nil
	s.mu.Unlock()
	if data == nil {
		return nil
	}
	err := s.write(ctx, seq, data)
	if err != nil {
		slog.Warn("state save failed", slog.String("component", "store"), slog.Any("err", err))
	}
	return err
}

func (s *Saver) write(ctx context.Context, seq uint64, data []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if seq <= s.written {
		slog.Debug("skipping stale state", slog.String("component", "store"), slog.Uint64("seq", seq), slog.Uint64("written", s.written))
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = s.InitialInterval
	op := func() (struct{}, error) {
		err := s.store.Save(ctx, data)
		if err != nil && ClassifyStoreError(err) == ErrorClassFatal {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	}
	notify := func(err error, next time.Duration) {
		slog.Info("retrying state save", slog.String("component", "store"), slog.Any("err", err), slog.Duration("in", next))
	}
	_, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(bo),
		backoff.WithMaxTries(s.MaxTries),
		backoff.WithNotify(notify),
	)
	if err != nil {
		if s.OnError != nil {
			s.OnError(err)
		}
		return err
	}
	s.written = seq
	return nil
}
