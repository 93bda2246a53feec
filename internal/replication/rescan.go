package replication

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultRescanInterval is the period of the buffer sweep.
const DefaultRescanInterval = time.Second

// Rescanner re-evaluates buffered writes and returns how many it applied.
type Rescanner interface {
	Rescan() int
}

// RescanLoop calls Rescan on a fixed interval.
type RescanLoop struct {
	target   Rescanner
	interval time.Duration
	logger   *zap.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	sweeps  int
	applied int
}

// NewRescanLoop creates a stopped loop. A non-positive interval selects
// DefaultRescanInterval.
func NewRescanLoop(target Rescanner, interval time.Duration, logger *zap.Logger) *RescanLoop {
	if interval <= 0 {
		interval = DefaultRescanInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RescanLoop{target: target, interval: interval, logger: logger}
}

// Start runs the loop in the background. Calling Start on a running loop is a
// no-op.
func (l *RescanLoop) Start() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	l.cancel = cancel
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		ticker := time.NewTicker(l.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				l.sweep()
			}
		}
	}()
	l.logger.Info("rescan loop started", zap.Duration("interval", l.interval))
}

// Stop halts the loop and waits for a running sweep to finish.
func (l *RescanLoop) Stop() {
	l.mu.Lock()
	cancel := l.cancel
	l.cancel = nil
	l.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	l.wg.Wait()
	l.logger.Info("rescan loop stopped")
}

// Counts returns the number of sweeps run and of writes they applied.
func (l *RescanLoop) Counts() (sweeps, applied int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.sweeps, l.applied
}

func (l *RescanLoop) sweep() {
	n := l.target.Rescan()

	l.mu.Lock()
	l.sweeps++
	l.applied += n
	l.mu.Unlock()

	if n > 0 {
		l.logger.Debug("rescan applied buffered writes", zap.Int("applied", n))
	}
}
