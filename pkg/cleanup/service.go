// Package cleanup provides the retention sweep that purges a terminal
// scan's event history once its retention grace period has elapsed,
// adapted from the teacher's pkg/cleanup.Service.
package cleanup

import (
	"context"
	"log/slog"
	"time"

	"github.com/redlance/redlance/pkg/events"
)

// Service periodically purges scan event streams from the Event Bus once
// they have been terminal for longer than the bus's configured
// RetentionGrace (spec §4.7). It never touches the storage collaborator:
// a scan's persisted record, steps, and findings are retained for
// history per spec §4.2; only the Event Bus's in-memory replay buffer is
// reclaimed, since that is what would otherwise grow without bound.
type Service struct {
	bus      *events.Bus
	interval time.Duration

	cancel context.CancelFunc
	done   chan struct{}
}

// NewService constructs a Service bound to bus, sweeping every interval.
func NewService(bus *events.Bus, interval time.Duration) *Service {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Service{bus: bus, interval: interval}
}

// Start launches the background sweep loop. Safe to call once; subsequent
// calls are no-ops.
func (s *Service) Start(ctx context.Context) {
	if s.cancel != nil {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	go s.run(ctx)

	slog.Info("cleanup service started", "interval", s.interval, "retention_grace", s.bus.RetentionGrace())
}

// Stop signals the sweep loop to exit and waits for it to finish.
func (s *Service) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	slog.Info("cleanup service stopped")
}

func (s *Service) run(ctx context.Context) {
	defer close(s.done)

	s.sweep()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

// sweep purges every scan whose stream went terminal more than
// RetentionGrace ago.
func (s *Service) sweep() {
	grace := s.bus.RetentionGrace()
	purged := 0
	for _, scanID := range s.bus.ScanIDs() {
		terminalAt, ok := s.bus.TerminalAt(scanID)
		if !ok {
			continue // still in flight, nothing to reclaim yet
		}
		if time.Since(terminalAt) < grace {
			continue
		}
		s.bus.Purge(scanID)
		purged++
	}
	if purged > 0 {
		slog.Info("cleanup: purged retained event history for terminal scans", "count", purged)
	}
}
