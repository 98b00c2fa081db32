package toolbox

import (
	"time"

	"github.com/redlance/redlance/pkg/models"
)

// ChainKind names a category of discovery that a tool can either produce
// ("chain_outputs") or consume ("chain_inputs") — e.g. "live_host",
// "subdomain", "tls_endpoint". These are intentionally loose strings
// rather than an enum: new tools may introduce new kinds without a schema
// change.
type ChainKind string

const (
	ChainSubdomain   ChainKind = "subdomain"
	ChainLiveHost    ChainKind = "live_host"
	ChainOpenPort    ChainKind = "open_port"
	ChainTLSEndpoint ChainKind = "tls_endpoint"
	ChainWebTech     ChainKind = "web_technology"
	ChainFinding     ChainKind = "finding"
)

// Parser turns raw tool stdout (already captured by the execution engine)
// into a list of tool-specific raw findings. Normalization of severity,
// title, and affected_target happens downstream in pkg/finding.
type Parser interface {
	Parse(rawOutput string, exitCode int) ([]models.RawFinding, error)
}

// ParserFunc adapts a plain function to the Parser interface.
type ParserFunc func(rawOutput string, exitCode int) ([]models.RawFinding, error)

func (f ParserFunc) Parse(rawOutput string, exitCode int) ([]models.RawFinding, error) {
	return f(rawOutput, exitCode)
}

// Descriptor is the static, immutable-at-runtime registry entry for one
// tool: its argument schema, chaining metadata, execution limits, severity
// mapping, and output parser.
type Descriptor struct {
	Name           string
	Description    string
	Binary         string // argv[0] the execution engine spawns
	ArgumentSchema ArgumentSchema
	ChainOutputs   []ChainKind
	ChainInputs    []ChainKind
	DefaultTimeout time.Duration
	MaxOutputBytes int64
	AllowPrivate   bool
	// SuccessExitCodes lists exit codes that do not constitute a tool
	// failure. Empty means only 0 is success.
	SuccessExitCodes []int
	// SeverityMap translates tool-native severity/classification strings
	// (lowercased) to the normalized scale. Unmapped inputs default to
	// models.SeverityInfo.
	SeverityMap map[string]models.Severity
	BuildArgs   func(validated map[string]any) []string
	Parser      Parser
}

// IsSuccessExit reports whether code is a declared-successful exit code
// for this tool.
func (d Descriptor) IsSuccessExit(code int) bool {
	if code == 0 {
		return true
	}
	for _, c := range d.SuccessExitCodes {
		if c == code {
			return true
		}
	}
	return false
}

// MapSeverity resolves a tool-native severity label to the normalized
// scale, defaulting to info for anything not explicitly mapped.
func (d Descriptor) MapSeverity(raw string) models.Severity {
	if sev, ok := d.SeverityMap[raw]; ok {
		return sev
	}
	return models.SeverityInfo
}
