package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redlance/redlance/pkg/models"
)

func TestPutScanAndGetScanRoundTrip(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	scan := models.Scan{ID: "scan-1", Target: "10.0.0.1", Objective: "enumerate services", Status: models.ScanStatusPending, CreatedAt: time.Now()}

	require.NoError(t, s.PutScan(ctx, scan))

	got, err := s.GetScan(ctx, "scan-1")
	require.NoError(t, err)
	assert.Equal(t, scan.Target, got.Target)
	assert.Equal(t, models.ScanStatusPending, got.Status)
}

func TestGetScanUnknownIDReturnsErrNotFound(t *testing.T) {
	s := NewMemoryStore()
	_, err := s.GetScan(context.Background(), "missing")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestUpdateScanStatusSetsStartedAtOnlyOnFirstRunningTransition(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, s.PutScan(ctx, models.Scan{ID: "scan-1", Status: models.ScanStatusPending, CreatedAt: time.Now()}))

	require.NoError(t, s.UpdateScanStatus(ctx, "scan-1", models.ScanStatusRunning, nil))
	first, err := s.GetScan(ctx, "scan-1")
	require.NoError(t, err)
	require.NotNil(t, first.StartedAt)
	firstStart := *first.StartedAt

	time.Sleep(time.Millisecond)
	require.NoError(t, s.UpdateScanStatus(ctx, "scan-1", models.ScanStatusRunning, nil))
	second, err := s.GetScan(ctx, "scan-1")
	require.NoError(t, err)
	assert.Equal(t, firstStart, *second.StartedAt)
}

func TestAppendStepPreservesOrderAndIsolatesPerScan(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.AppendStep(ctx, models.AgentStep{ScanID: "scan-1", Index: 1}))
	require.NoError(t, s.AppendStep(ctx, models.AgentStep{ScanID: "scan-1", Index: 2}))
	require.NoError(t, s.AppendStep(ctx, models.AgentStep{ScanID: "scan-2", Index: 1}))

	steps, err := s.ListSteps(ctx, "scan-1")
	require.NoError(t, err)
	require.Len(t, steps, 2)
	assert.Equal(t, 1, steps[0].Index)
	assert.Equal(t, 2, steps[1].Index)

	other, err := s.ListSteps(ctx, "scan-2")
	require.NoError(t, err)
	assert.Len(t, other, 1)
}

func TestListStepsReturnsIndependentCopy(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, s.AppendStep(ctx, models.AgentStep{ScanID: "scan-1", Index: 1, Reasoning: "original"}))

	steps, err := s.ListSteps(ctx, "scan-1")
	require.NoError(t, err)
	steps[0].Reasoning = "mutated"

	fresh, err := s.ListSteps(ctx, "scan-1")
	require.NoError(t, err)
	assert.Equal(t, "original", fresh[0].Reasoning)
}

func TestUpsertFindingDedupsByFingerprintWithinAScan(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	f1 := models.Finding{ID: "f1", ScanID: "scan-1", Fingerprint: "fp-a", Description: "first sighting"}
	f2 := models.Finding{ID: "f2", ScanID: "scan-1", Fingerprint: "fp-a", Description: "corroborated"}
	require.NoError(t, s.UpsertFinding(ctx, f1))
	require.NoError(t, s.UpsertFinding(ctx, f2))

	findings, err := s.ListFindings(ctx, "scan-1")
	require.NoError(t, err)
	require.Len(t, findings, 1)
	assert.Equal(t, "corroborated", findings[0].Description)
}

func TestUpsertFindingKeepsFingerprintsIsolatedPerScan(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.UpsertFinding(ctx, models.Finding{ID: "f1", ScanID: "scan-1", Fingerprint: "fp-a"}))
	require.NoError(t, s.UpsertFinding(ctx, models.Finding{ID: "f2", ScanID: "scan-2", Fingerprint: "fp-a"}))

	a, err := s.ListFindings(ctx, "scan-1")
	require.NoError(t, err)
	b, err := s.ListFindings(ctx, "scan-2")
	require.NoError(t, err)
	assert.Len(t, a, 1)
	assert.Len(t, b, 1)
}

func TestFinalizeScanSetsStatusErrorAndCompletedAt(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, s.PutScan(ctx, models.Scan{ID: "scan-1", Status: models.ScanStatusRunning, CreatedAt: time.Now()}))

	msg := "tool execution engine exhausted all retries"
	require.NoError(t, s.FinalizeScan(ctx, "scan-1", models.ScanStatusFailed, &msg))

	got, err := s.GetScan(ctx, "scan-1")
	require.NoError(t, err)
	assert.Equal(t, models.ScanStatusFailed, got.Status)
	require.NotNil(t, got.ErrorMessage)
	assert.Equal(t, msg, *got.ErrorMessage)
	assert.NotNil(t, got.CompletedAt)
}

func TestFinalizeScanUnknownIDReturnsErrNotFound(t *testing.T) {
	s := NewMemoryStore()
	err := s.FinalizeScan(context.Background(), "missing", models.ScanStatusFailed, nil)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestListRunningScansReturnsOnlyRunningSortedByID(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, s.PutScan(ctx, models.Scan{ID: "scan-b", Status: models.ScanStatusRunning, CreatedAt: time.Now()}))
	require.NoError(t, s.PutScan(ctx, models.Scan{ID: "scan-a", Status: models.ScanStatusRunning, CreatedAt: time.Now()}))
	require.NoError(t, s.PutScan(ctx, models.Scan{ID: "scan-c", Status: models.ScanStatusCompleted, CreatedAt: time.Now()}))

	running, err := s.ListRunningScans(ctx)
	require.NoError(t, err)
	require.Len(t, running, 2)
	assert.Equal(t, "scan-a", running[0].ID)
	assert.Equal(t, "scan-b", running[1].ID)
}
