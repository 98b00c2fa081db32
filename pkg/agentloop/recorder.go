package agentloop

import (
	"context"

	"github.com/redlance/redlance/pkg/models"
)

// Recorder is the narrow persistence slice the loop needs while it runs.
// The Scan Controller supplies an implementation backed by pkg/storage;
// the loop itself never assumes a specific store (spec §4.8).
type Recorder interface {
	AppendStep(ctx context.Context, step models.AgentStep) error
	UpsertFinding(ctx context.Context, finding models.Finding) error
}

// NopRecorder discards everything. Useful for tests and for callers that
// only care about the in-memory Result.
type NopRecorder struct{}

func (NopRecorder) AppendStep(context.Context, models.AgentStep) error   { return nil }
func (NopRecorder) UpsertFinding(context.Context, models.Finding) error { return nil }
