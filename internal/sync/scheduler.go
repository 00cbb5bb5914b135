package sync

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// passRunner is the slice of [Engine] the scheduler needs.
type passRunner interface {
	Sync(ctx context.Context, win Window) (*Result, error)
}

// Scheduler triggers a full reconciliation pass at the interval configured
// in the sync settings. Starting an already-running scheduler replaces the
// previous timer; Stop only prevents future triggers and never interrupts a
// pass in flight.
type Scheduler struct {
	engine   passRunner
	settings SettingsStore
	log      *slog.Logger

	// WindowFn produces the reconciliation window for each pass. Defaults
	// to [DefaultWindow]. Set before Start.
	WindowFn func(now time.Time) Window

	mu     sync.Mutex
	cancel context.CancelFunc

	// interval overrides the configured interval when positive.
	interval time.Duration
}

// NewScheduler creates a Scheduler driving the given engine.
func NewScheduler(engine passRunner, settingsStore SettingsStore, logger *slog.Logger) *Scheduler {
	return &Scheduler{engine: engine, settings: settingsStore, log: logger}
}

// Start begins periodic passes using the configured interval. ctx bounds
// the lifetime of the passes themselves; the timer additionally stops when
// Stop is called.
func (s *Scheduler) Start(ctx context.Context) error {
	interval := s.interval
	if interval <= 0 {
		cfg, err := s.settings.Load(ctx)
		if err != nil {
			return fmt.Errorf("loading sync settings: %w", err)
		}
		interval = cfg.Interval()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
	timerCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	s.log.Info("auto-sync scheduler started", "interval", interval)
	go s.loop(ctx, timerCtx, interval)
	return nil
}

// Stop cancels the timer. A pass already started keeps running to
// completion. Safe to call when not started.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
		s.log.Info("auto-sync scheduler stopped")
	}
}

// loop ticks until either the pass context or the timer context ends. The
// pass runs on ctx, not timerCtx, so that Stop cannot abort it mid-flight.
func (s *Scheduler) loop(ctx, timerCtx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timerCtx.Done():
			return
		case <-ticker.C:
			windowFn := s.WindowFn
			if windowFn == nil {
				windowFn = DefaultWindow
			}
			if _, err := s.engine.Sync(ctx, windowFn(time.Now())); err != nil {
				s.log.Error("scheduled sync pass failed", "error", err)
			}
		}
	}
}
