package models

import "time"

// EventKind enumerates the values Event.Kind may take — see spec §6.
type EventKind string

const (
	EventScanStarted        EventKind = "scan_started"
	EventModelSelected       EventKind = "model_selected"
	EventAgentReasoning      EventKind = "agent_reasoning"
	EventToolCall            EventKind = "tool_call"
	EventToolOutput          EventKind = "tool_output"
	EventToolCompleted       EventKind = "tool_completed"
	EventFinding             EventKind = "finding"
	EventEscalation          EventKind = "escalation"
	EventError               EventKind = "error"
	EventScanCompleted       EventKind = "scan_completed"
	EventScanFailed          EventKind = "scan_failed"
	EventScanCancelled       EventKind = "scan_cancelled"
	EventMaxIterationsReached EventKind = "max_iterations_reached"
	EventStreamOverflow      EventKind = "stream_overflow"
)

// IsTerminal reports whether this kind ends a scan's event stream.
func (k EventKind) IsTerminal() bool {
	switch k {
	case EventScanCompleted, EventScanFailed, EventScanCancelled:
		return true
	default:
		return false
	}
}

// Event is one element of a scan's ordered event stream.
type Event struct {
	ScanID    string
	Sequence  int64 // dense, monotonic, 1-based per scan
	Timestamp time.Time
	Kind      EventKind
	Payload   map[string]any
	Model     *ModelTier
}

// RoutingContext is the Hybrid Router's per-decision input (spec §4.5).
type RoutingContext struct {
	SubdomainCount     int
	FindingCount       int
	HighestSeverity    Severity
	TargetComplexity   TargetComplexity
	QueryIntentTags    map[QueryIntent]bool
	ForcedMode         *ModelTier
}

// TargetComplexity is a coarse estimate of how hard the target is to assess.
type TargetComplexity string

const (
	ComplexityLow    TargetComplexity = "low"
	ComplexityMedium TargetComplexity = "medium"
	ComplexityHigh   TargetComplexity = "high"
)

// QueryIntent tags the kind of reasoning the current prompt is asking for.
type QueryIntent string

const (
	IntentPlan       QueryIntent = "plan"
	IntentPrioritize QueryIntent = "prioritize"
	IntentSummarize  QueryIntent = "summarize"
	IntentTactical   QueryIntent = "tactical"
)
