// Package connmon tracks whether the backend should be considered reachable.
//
// The monitor is a two-state machine, Online and Offline. A probe succeeding
// moves it Online; a probe failing, or an explicit offline notification from
// the host environment, moves it Offline. A periodic re-probe catches silent
// failures that no environment event reports.
package connmon

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bakersdozen/bakersdozen.go/pkg/logger"
)

// DefaultInterval matches the 30 second re-probe cadence the data layer was
// tuned for.
const DefaultInterval = 30 * time.Second

// Probe checks backend reachability. It should be a lightweight query and
// return nil when the backend answered.
type Probe func(ctx context.Context) error

// Monitor exposes a single non-blocking Online getter to the data layer.
type Monitor struct {
	probe    Probe
	interval time.Duration
	logger   logger.Logger

	online atomic.Bool

	startOnce sync.Once
	stopOnce  sync.Once
	stop      chan struct{}
}

func New(probe Probe, interval time.Duration, log logger.Logger) *Monitor {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Monitor{
		probe:    probe,
		interval: interval,
		logger:   log,
		stop:     make(chan struct{}),
	}
}

// Start runs an initial probe and then re-probes periodically until Stop is
// called or ctx is canceled.
func (m *Monitor) Start(ctx context.Context) {
	m.startOnce.Do(func() {
		m.Check(ctx)
		go m.run(ctx)
	})
}

func (m *Monitor) run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Check(ctx)
		}
	}
}

// Stop halts periodic probing. The last observed state remains readable.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() {
		close(m.stop)
	})
}

// Online reports the current state. It never blocks.
func (m *Monitor) Online() bool {
	return m.online.Load()
}

// Check probes the backend once and updates the state.
func (m *Monitor) Check(ctx context.Context) bool {
	if err := m.probe(ctx); err != nil {
		if m.online.Swap(false) {
			m.logger.Warn("backend unreachable, switching to offline mode", "error", err)
		}
		return false
	}
	if !m.online.Swap(true) {
		m.logger.Info("backend reachable, back online")
	}
	return true
}

// NotifyOnline is the hook for a host-environment "online" event.
// It re-probes rather than trusting the event.
func (m *Monitor) NotifyOnline(ctx context.Context) {
	m.Check(ctx)
}

// NotifyOffline is the hook for a host-environment "offline" event.
func (m *Monitor) NotifyOffline() {
	m.online.Store(false)
}
