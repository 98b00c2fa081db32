// Package models holds the shared data records that flow between redlance's
// core subsystems: scans, agent steps, findings, and events.
package models

import "time"

// ScanProfile selects how aggressively the agent is allowed to probe a target.
type ScanProfile string

const (
	ProfileQuick      ScanProfile = "quick"
	ProfileNormal     ScanProfile = "normal"
	ProfileAggressive ScanProfile = "aggressive"
)

// ScanStatus is the lifecycle state of a Scan. Terminal states are
// monotonic: once entered, a scan never leaves them.
type ScanStatus string

const (
	ScanStatusPending   ScanStatus = "pending"
	ScanStatusRunning   ScanStatus = "running"
	ScanStatusCompleted ScanStatus = "completed"
	ScanStatusFailed    ScanStatus = "failed"
	ScanStatusCancelled ScanStatus = "cancelled"
)

// IsTerminal reports whether s is one of the three terminal states.
func (s ScanStatus) IsTerminal() bool {
	switch s {
	case ScanStatusCompleted, ScanStatusFailed, ScanStatusCancelled:
		return true
	default:
		return false
	}
}

// Scan is the top-level unit of work: one target, one objective, one
// agent-loop run. The Scan Controller creates it and, through the storage
// collaborator, is the only writer of its status, timestamps and error
// message; the Agent Loop never writes it.
type Scan struct {
	ID           string
	Target       string
	Objective    string
	Profile      ScanProfile
	Status       ScanStatus
	CreatedAt    time.Time
	StartedAt    *time.Time
	CompletedAt  *time.Time
	CurrentTool  *string
	ErrorMessage *string
}

// ModelTier names which LLM backend answered a given step.
type ModelTier string

const (
	TierFast ModelTier = "fast"
	TierDeep ModelTier = "deep"
)

// ToolCallRecord is the validated invocation attached to an AgentStep.
type ToolCallRecord struct {
	ToolName           string
	Arguments          map[string]string
	ValidatedArguments map[string]string
}

// ToolResultRecord is the outcome of executing a ToolCallRecord.
type ToolResultRecord struct {
	RawOutput      string
	ParsedFindings []Finding
	ExitCode       int
	DurationMS     int64
	Truncated      bool
}

// AgentStep is one iteration of the agent loop against a Scan.
type AgentStep struct {
	ScanID         string
	Index          int // 1-based, dense within a scan
	ModelUsed      ModelTier
	Reasoning      string
	ToolCall       *ToolCallRecord
	ToolResult     *ToolResultRecord
	StartedAt      time.Time
	CompletedAt    time.Time
	TokensIn       int
	TokensOut      int
	EstimatedCost  float64
}

// IsTerminalStep reports whether this step is the loop's final
// "assessment complete" step (no tool call, no tool result).
func (s *AgentStep) IsTerminalStep() bool {
	return s.ToolCall == nil && s.ToolResult == nil
}
