// Package autosave debounces edits and persists only real changes.
package autosave

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// SaveFunc persists next given the last persisted value and returns what the
// store actually holds afterwards.
type SaveFunc[T any] func(ctx context.Context, prev, next T) (T, error)

// Scheduler holds the last persisted snapshot of a value. Each Change cancels
// any pending save and schedules a new one after the delay. A save whose value
// equals the snapshot is skipped, and the snapshot moves only after the store
// confirms the write.
type Scheduler[T any] struct {
	delay   time.Duration
	save    SaveFunc[T]
	equal   func(a, b T) bool
	onSaved func(T)
	onError func(error)
	logger  *slog.Logger

	saveMu sync.Mutex // one save at a time

	mu       sync.Mutex
	snapshot T
	pending  *T
	timer    *time.Timer
	gen      uint64
	closed   bool
}

// Options are optional Scheduler hooks.
type Options[T any] struct {
	// OnSaved receives the persisted value after every confirmed save.
	OnSaved func(T)
	// OnError receives failed saves from the background timer.
	OnError func(error)
	Logger  *slog.Logger
}

// New creates a scheduler that starts from snapshot, the value as loaded.
func New[T any](snapshot T, delay time.Duration, save SaveFunc[T], equal func(a, b T) bool, opts Options[T]) *Scheduler[T] {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.OnSaved == nil {
		opts.OnSaved = func(T) {}
	}
	if opts.OnError == nil {
		opts.OnError = func(error) {}
	}
	return &Scheduler[T]{
		delay:    delay,
		save:     save,
		equal:    equal,
		onSaved:  opts.OnSaved,
		onError:  opts.OnError,
		logger:   opts.Logger,
		snapshot: snapshot,
	}
}

// Change records v as the latest value and restarts the delay.
func (s *Scheduler[T]) Change(v T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if s.timer != nil {
		s.timer.Stop()
	}
	s.pending = &v
	s.gen++
	gen := s.gen
	s.timer = time.AfterFunc(s.delay, func() { s.fire(gen) })
}

// Snapshot returns the last persisted value.
func (s *Scheduler[T]) Snapshot() T {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot
}

// Pending reports whether a change is waiting to be saved.
func (s *Scheduler[T]) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending != nil
}

// Flush saves any pending change immediately.
func (s *Scheduler[T]) Flush(ctx context.Context) error {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	v, ok := s.take(0)
	if !ok {
		return nil
	}
	return s.persist(ctx, v)
}

// Close flushes and stops accepting changes.
func (s *Scheduler[T]) Close(ctx context.Context) error {
	err := s.Flush(ctx)
	s.mu.Lock()
	s.closed = true
	if s.timer != nil {
		s.timer.Stop()
	}
	s.mu.Unlock()
	return err
}

func (s *Scheduler[T]) fire(gen uint64) {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	v, ok := s.take(gen)
	if !ok {
		return
	}
	if err := s.persist(context.Background(), v); err != nil {
		s.onError(err)
	}
}

// take removes the pending value. A non-zero gen must match the latest change.
func (s *Scheduler[T]) take(gen uint64) (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var zero T
	if s.pending == nil || (gen != 0 && gen != s.gen) {
		return zero, false
	}
	if gen == 0 && s.timer != nil {
		s.timer.Stop()
	}
	v := *s.pending
	s.pending = nil
	return v, true
}

func (s *Scheduler[T]) persist(ctx context.Context, v T) error {
	s.mu.Lock()
	prev := s.snapshot
	s.mu.Unlock()

	if s.equal(v, prev) {
		s.logger.Debug("autosave skipped, no changes")
		return nil
	}

	saved, err := s.save(ctx, prev, v)
	if err != nil {
		s.logger.Warn("autosave failed", "error", err)
		s.mu.Lock()
		if s.pending == nil {
			s.pending = &v
		}
		s.mu.Unlock()
		return err
	}

	s.mu.Lock()
	s.snapshot = saved
	s.mu.Unlock()
	s.onSaved(saved)
	return nil
}
