// Package scheduler owns the recurring due-message pass: a ticker-driven
// runner that invokes the poller on a fixed interval, with an immediate
// first pass on start. It keeps per-run bookkeeping (pass count, last pass
// time, overruns) so the status endpoint can report whether polling is
// actually happening, not just whether the loop is alive.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultInterval matches the original one-minute polling cadence.
const DefaultInterval = 60 * time.Second

type Scheduler struct {
	interval time.Duration
	passFn   func(context.Context)

	running  atomic.Bool
	passes   atomic.Int64
	overruns atomic.Int64
	lastPass atomic.Int64 // unix nanos of the last completed pass, 0 if none

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// Stats is a point-in-time snapshot of the runner's bookkeeping.
type Stats struct {
	Passes     int64      `json:"passes"`
	Overruns   int64      `json:"overruns"`
	LastPassAt *time.Time `json:"lastPassAt,omitempty"`
}

// New builds a scheduler around passFn, typically Poller.RunPass. Cross-worker
// mutual exclusion is the poller's concern; the scheduler only drives timing.
func New(interval time.Duration, passFn func(context.Context)) (*Scheduler, error) {
	if interval <= 0 {
		return nil, errors.New("interval must be > 0")
	}
	if passFn == nil {
		return nil, errors.New("passFn must not be nil")
	}
	return &Scheduler{
		interval: interval,
		passFn:   passFn,
		done:     make(chan struct{}),
	}, nil
}

func (s *Scheduler) Start() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running.Load() {
		return false
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	s.running.Store(true)

	go func() {
		defer close(s.done)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		slog.Info("scheduler started", "interval", s.interval.String())

		s.safePass(ctx)

		for {
			select {
			case <-ctx.Done():
				slog.Info("scheduler stopping")
				return
			case <-ticker.C:
				s.safePass(ctx)
			}
		}
	}()

	return true
}

func (s *Scheduler) Stop() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running.Load() {
		return false
	}

	s.cancel()
	<-s.done
	s.running.Store(false)

	slog.Info("scheduler stopped")
	return true
}

func (s *Scheduler) IsRunning() bool {
	return s.running.Load()
}

// Snapshot reports how many passes have completed, how many overran the
// interval, and when the last one finished. Panicking passes count too.
func (s *Scheduler) Snapshot() Stats {
	st := Stats{
		Passes:   s.passes.Load(),
		Overruns: s.overruns.Load(),
	}
	if ns := s.lastPass.Load(); ns != 0 {
		t := time.Unix(0, ns).UTC()
		st.LastPassAt = &t
	}
	return st
}

// safePass keeps a panicking pass from killing the ticker loop; the next
// interval still fires. Every pass, panicking or not, is counted and
// timestamped so Snapshot reflects a stalled poller honestly.
func (s *Scheduler) safePass(ctx context.Context) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			slog.Error("scheduler pass panic recovered", "panic", r)
		}
		elapsed := time.Since(start)
		s.passes.Add(1)
		s.lastPass.Store(start.Add(elapsed).UnixNano())
		if elapsed > s.interval {
			s.overruns.Add(1)
			slog.Warn("scheduler pass overran its interval",
				"duration_ms", elapsed.Milliseconds(),
				"interval_ms", s.interval.Milliseconds())
			return
		}
		slog.Info("scheduler pass completed", "duration_ms", elapsed.Milliseconds())
	}()

	s.passFn(ctx)
}
