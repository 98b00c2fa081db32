package scan

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redlance/redlance/pkg/events"
	"github.com/redlance/redlance/pkg/models"
)

// storageLister is the narrow slice of storage.Storage the startup sweep
// needs; kept local so this file does not require the full Storage
// interface just to list and finalize.
type storageLister interface {
	ListRunningScans(ctx context.Context) ([]models.Scan, error)
	FinalizeScan(ctx context.Context, scanID string, status models.ScanStatus, errMsg *string) error
}

// StartOrphanRecovery launches the periodic sweep that detects scans left
// ScanStatusRunning with no live owning goroutine in this process — a
// scan this process itself previously held but crashed mid-run, or one
// another pod abandoned — and transitions them to failed with reason
// "orphaned". Grounded on tarsy's pkg/queue/orphan.go runOrphanDetection:
// every pod runs this independently; the operation is idempotent because
// FinalizeScan on an already-terminal scan just overwrites terminal state
// with the same terminal state.
func (c *Controller) StartOrphanRecovery(ctx context.Context) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ticker := time.NewTicker(c.orphan.CheckInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-c.stopCh:
				return
			case <-ticker.C:
				c.sweepOrphans(ctx)
			}
		}
	}()
}

func (c *Controller) sweepOrphans(ctx context.Context) {
	running, err := c.store.ListRunningScans(ctx)
	if err != nil {
		slog.Error("scan controller: orphan sweep failed to list running scans", "error", err)
		return
	}

	recovered := 0
	for _, s := range running {
		if c.isOwnedLocally(s.ID) {
			continue
		}
		age := time.Since(s.CreatedAt)
		if s.StartedAt != nil {
			age = time.Since(*s.StartedAt)
		}
		if age < c.orphan.Threshold {
			continue
		}
		if err := c.recoverOrphan(ctx, s); err != nil {
			slog.Error("scan controller: failed to recover orphaned scan", "scan_id", s.ID, "error", err)
			continue
		}
		recovered++
	}
	if recovered > 0 {
		slog.Warn("scan controller: recovered orphaned scans", "count", recovered)
	}
}

func (c *Controller) isOwnedLocally(scanID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.cancels[scanID]
	return ok
}

func (c *Controller) recoverOrphan(ctx context.Context, s models.Scan) error {
	msg := fmt.Sprintf("orphaned: no live agent loop for this scan since %s", s.CreatedAt.Format(time.RFC3339))
	if err := c.store.FinalizeScan(ctx, s.ID, models.ScanStatusFailed, &msg); err != nil {
		return err
	}
	c.bus.Publish(s.ID, models.Event{Kind: models.EventScanFailed, Payload: map[string]any{"kind": "orphaned", "message": msg}})
	slog.Warn("scan controller: orphaned scan marked failed", "scan_id", s.ID)
	return nil
}

// CleanupStartupOrphans performs a one-time pass at process start, before
// CreateScan begins accepting new work: any scan left running from a
// previous instance of this process (which necessarily has no entry in
// this fresh Controller's cancels map) is marked failed immediately,
// rather than waiting out OrphanThreshold. Mirrors tarsy's package-level
// CleanupStartupOrphans, called once from cmd/redlance before the HTTP
// server starts accepting scan creation requests.
func CleanupStartupOrphans(ctx context.Context, store storageLister, bus *events.Bus) error {
	running, err := store.ListRunningScans(ctx)
	if err != nil {
		return fmt.Errorf("listing running scans at startup: %w", err)
	}
	if len(running) == 0 {
		return nil
	}
	slog.Warn("scan controller: found running scans from a previous process instance", "count", len(running))
	for _, s := range running {
		msg := "orphaned: process restarted while this scan was running"
		if err := store.FinalizeScan(ctx, s.ID, models.ScanStatusFailed, &msg); err != nil {
			slog.Error("scan controller: failed to mark startup orphan", "scan_id", s.ID, "error", err)
			continue
		}
		bus.Publish(s.ID, models.Event{Kind: models.EventScanFailed, Payload: map[string]any{"kind": "orphaned", "message": msg}})
	}
	return nil
}
