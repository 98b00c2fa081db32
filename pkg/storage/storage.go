// Package storage implements the storage collaborator the Scan Controller
// delegates scan/step/finding persistence to (spec §4.8): the core never
// assumes a specific store, only the PutScan/AppendStep/UpsertFinding/
// FinalizeScan contract plus the read paths the HTTP surface and orphan
// recovery need.
package storage

import (
	"context"
	"errors"

	"github.com/redlance/redlance/pkg/models"
)

// ErrNotFound is returned by the read paths when no record matches.
var ErrNotFound = errors.New("storage: not found")

// Storage is the persistence collaborator bound to a Scan Controller.
type Storage interface {
	// PutScan inserts a new scan record in pending status.
	PutScan(ctx context.Context, scan models.Scan) error
	// UpdateScanStatus transitions a scan's status and timestamps.
	UpdateScanStatus(ctx context.Context, scanID string, status models.ScanStatus, errMsg *string) error
	// AppendStep persists one AgentStep, dense and ordered within its scan.
	AppendStep(ctx context.Context, step models.AgentStep) error
	// UpsertFinding stores a normalized Finding, keyed by its fingerprint.
	UpsertFinding(ctx context.Context, finding models.Finding) error
	// FinalizeScan marks a scan terminal with its completion timestamp.
	FinalizeScan(ctx context.Context, scanID string, status models.ScanStatus, errMsg *string) error

	// GetScan returns one scan by ID.
	GetScan(ctx context.Context, scanID string) (models.Scan, error)
	// ListSteps returns every AgentStep recorded for scanID, in order.
	ListSteps(ctx context.Context, scanID string) ([]models.AgentStep, error)
	// ListFindings returns every Finding recorded for scanID.
	ListFindings(ctx context.Context, scanID string) ([]models.Finding, error)
	// ListRunningScans returns every scan currently in ScanStatusRunning,
	// used by orphan recovery on process restart.
	ListRunningScans(ctx context.Context) ([]models.Scan, error)
}
