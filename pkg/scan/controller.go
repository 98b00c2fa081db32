// Package scan implements the Scan Controller (spec §4.8): the entry point
// external transport calls into. It validates and records a scan request,
// runs the Agent Loop bound to it, and exposes idempotent cancellation —
// shaped after tarsy's pkg/queue.WorkerPool, minus the multi-worker queue
// (redlance runs each scan as its own goroutine rather than dequeuing work
// items onto a fixed worker pool, since the tool execution engine already
// owns the shared concurrency cap that matters).
package scan

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/redlance/redlance/pkg/agentloop"
	"github.com/redlance/redlance/pkg/events"
	"github.com/redlance/redlance/pkg/finding"
	"github.com/redlance/redlance/pkg/models"
	"github.com/redlance/redlance/pkg/storage"
)

// ErrInvalidTarget is wrapped into the synchronous validation failure
// CreateScan returns when the request's target cannot be parsed.
var ErrInvalidTarget = fmt.Errorf("invalid target")

// Request is the external creation request (spec §6 scan creation request).
type Request struct {
	Target    string
	Objective string
	Profile   models.ScanProfile
	EnableAI  bool
	Tools     []string
}

// Controller is the process-wide owner of every in-flight scan's
// cancellation and the orphan-recovery sweep. One Controller is
// constructed per process; its Loop runs each scan's goroutine.
type Controller struct {
	store  storage.Storage
	loop   *agentloop.Loop
	bus    *events.Bus
	podID  string
	orphan OrphanConfig

	mu      sync.RWMutex
	cancels map[string]context.CancelFunc

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// OrphanConfig mirrors config.ScanConfig, kept as its own type so this
// package does not need to import pkg/config.
type OrphanConfig struct {
	CheckInterval time.Duration
	Threshold     time.Duration
}

// NewController wires a Controller from its collaborators. podID
// identifies this process for startup orphan cleanup; it need not be
// stable across restarts.
func NewController(store storage.Storage, loop *agentloop.Loop, bus *events.Bus, podID string, orphan OrphanConfig) *Controller {
	return &Controller{
		store:   store,
		loop:    loop,
		bus:     bus,
		podID:   podID,
		orphan:  orphan,
		cancels: make(map[string]context.CancelFunc),
		stopCh:  make(chan struct{}),
	}
}

// CreateScan validates the request, stores the scan in pending, and
// starts the Agent Loop in its own goroutine. It returns the scan_id
// synchronously; the loop itself runs asynchronously and is driven to a
// terminal status in the background.
func (c *Controller) CreateScan(ctx context.Context, req Request) (string, error) {
	if err := validateTarget(req.Target); err != nil {
		return "", err
	}
	if req.Profile == "" {
		req.Profile = models.ProfileNormal
	}

	scanID := uuid.NewString()
	scan := models.Scan{
		ID:        scanID,
		Target:    req.Target,
		Objective: req.Objective,
		Profile:   req.Profile,
		Status:    models.ScanStatusPending,
		CreatedAt: time.Now(),
	}
	if err := c.store.PutScan(ctx, scan); err != nil {
		return "", fmt.Errorf("storing scan: %w", err)
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.Run(context.Background(), scanID, req)
	}()

	return scanID, nil
}

// Run moves a scan to running and drives the Agent Loop to completion,
// persisting its terminal status. In normal operation it only runs as the
// goroutine CreateScan spawns.
func (c *Controller) Run(ctx context.Context, scanID string, req Request) {
	runCtx, cancel := context.WithCancel(ctx)
	c.registerCancel(scanID, cancel)
	defer c.unregisterCancel(scanID)

	if err := c.store.UpdateScanStatus(ctx, scanID, models.ScanStatusRunning, nil); err != nil {
		slog.Error("scan controller: failed to mark scan running", "scan_id", scanID, "error", err)
		return
	}

	recorder := &storageRecorder{store: c.store}
	loopCopy := *c.loop
	loopCopy.Recorder = recorder
	// Normalizer.seen is a per-scan dedup set; a fresh Normalizer per run
	// keeps one scan's findings from suppressing another's, since Loop
	// itself is shared and only shallow-copied here.
	loopCopy.Normalizer = finding.NewNormalizer()

	result := loopCopy.Run(runCtx, agentloop.Input{
		ScanID:    scanID,
		Target:    req.Target,
		Objective: req.Objective,
		Profile:   req.Profile,
	})

	var errMsg *string
	if result.ErrorMessage != "" {
		errMsg = &result.ErrorMessage
	}
	if err := c.store.FinalizeScan(ctx, scanID, result.Status, errMsg); err != nil {
		slog.Error("scan controller: failed to finalize scan", "scan_id", scanID, "error", err)
	}
}

// Cancel signals cancellation through the running scan's context if this
// process owns it. It is idempotent: cancelling an already-terminal or
// unknown scan is a no-op, matching spec §4.8.
func (c *Controller) Cancel(scanID string) {
	c.mu.RLock()
	cancel, ok := c.cancels[scanID]
	c.mu.RUnlock()
	if ok {
		cancel()
	}
}

func (c *Controller) registerCancel(scanID string, cancel context.CancelFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cancels[scanID] = cancel
}

func (c *Controller) unregisterCancel(scanID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.cancels, scanID)
}

// Status returns the current persisted state of a scan.
func (c *Controller) Status(ctx context.Context, scanID string) (models.Scan, error) {
	return c.store.GetScan(ctx, scanID)
}

// Stop signals the orphan-detection sweep to exit and waits for it and for
// every scan goroutine CreateScan started to finish.
func (c *Controller) Stop() {
	c.stopOnce.Do(func() { close(c.stopCh) })
	c.wg.Wait()
}

func validateTarget(target string) error {
	target = strings.TrimSpace(target)
	if target == "" {
		return fmt.Errorf("%w: target must not be empty", ErrInvalidTarget)
	}
	if _, _, err := net.ParseCIDR(target); err == nil {
		return nil
	}
	if ip := net.ParseIP(target); ip != nil {
		return nil
	}
	if u, err := url.Parse(target); err == nil && u.Host != "" {
		return nil
	}
	if strings.Contains(target, ".") && !strings.ContainsAny(target, " \t\n") {
		return nil
	}
	return fmt.Errorf("%w: %q is not an IP, CIDR, URL, or hostname", ErrInvalidTarget, target)
}

// storageRecorder adapts the full Storage collaborator down to the narrow
// agentloop.Recorder interface the loop depends on.
type storageRecorder struct {
	store storage.Storage
}

func (r *storageRecorder) AppendStep(ctx context.Context, step models.AgentStep) error {
	return r.store.AppendStep(ctx, step)
}

func (r *storageRecorder) UpsertFinding(ctx context.Context, finding models.Finding) error {
	return r.store.UpsertFinding(ctx, finding)
}
