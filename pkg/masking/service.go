// Package masking redacts credential-shaped substrings out of tool output
// before it is persisted or streamed. Penetration-testing tools routinely
// echo back live secrets (API keys, bearer tokens, private key material)
// they discovered on the target; this package is adapted from the
// teacher's Kubernetes-secret-focused masking service and retargeted at
// the shapes security tools actually emit.
package masking

import (
	"log/slog"
	"regexp"
)

// CompiledPattern pairs a compiled regex with the replacement text applied
// to every match.
type CompiledPattern struct {
	Name        string
	Regex       *regexp.Regexp
	Replacement string
}

// Service applies the built-in pattern set to tool output. Stateless aside
// from its compiled patterns; safe for concurrent use.
type Service struct {
	enabled  bool
	patterns []*CompiledPattern
}

// NewService compiles the built-in patterns. Invalid patterns are logged
// and skipped rather than failing startup.
func NewService(enabled bool) *Service {
	s := &Service{enabled: enabled}
	for name, p := range builtinPatterns {
		compiled, err := regexp.Compile(p.pattern)
		if err != nil {
			slog.Error("failed to compile masking pattern, skipping", "pattern", name, "error", err)
			continue
		}
		s.patterns = append(s.patterns, &CompiledPattern{Name: name, Regex: compiled, Replacement: p.replacement})
	}
	return s
}

// MaskToolOutput redacts credential-shaped substrings from raw tool output
// using the patterns NewService compiled, and returns no error. A pattern
// that failed to compile was already dropped in NewService, so text of
// that pattern's shape passes through unmasked.
func (s *Service) MaskToolOutput(content string) string {
	if !s.enabled || content == "" {
		return content
	}
	masked := content
	for _, p := range s.patterns {
		masked = p.Regex.ReplaceAllString(masked, p.Replacement)
	}
	return masked
}
