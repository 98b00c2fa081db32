package agentloop

import (
	"github.com/redlance/redlance/pkg/events"
	"github.com/redlance/redlance/pkg/masking"
	"github.com/redlance/redlance/pkg/models"
)

// busSink adapts the execution engine's line-at-a-time OutputSink onto the
// event bus, masking secrets out of every line before it leaves the
// process in a tool_output event.
type busSink struct {
	bus     *events.Bus
	masker  *masking.Service
	scanID  string
	toolName string
}

func (s *busSink) Publish(line string, sequence int) {
	s.bus.Publish(s.scanID, models.Event{
		Kind: models.EventToolOutput,
		Payload: map[string]any{
			"tool":     s.toolName,
			"sequence": sequence,
			"line":     s.masker.MaskToolOutput(line),
		},
	})
}
