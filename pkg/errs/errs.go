// Package errs defines the error taxonomy shared by every redlance
// subsystem (spec §7). Components return plain Go errors internally and
// wrap them in a Classified at the boundary where the Agent Loop or Scan
// Controller needs to decide whether to recover locally or surface a
// terminal failure.
package errs

import "fmt"

// Kind is a stable, machine-readable error category. Kinds are never
// translated or localized — only Message is human-readable.
type Kind string

const (
	KindInvalidTarget        Kind = "InvalidTarget"
	KindValidationError      Kind = "ValidationError"
	KindProviderNetwork      Kind = "ProviderError.Network"
	KindProviderQuota        Kind = "ProviderError.Quota"
	KindProviderInvalidCreds Kind = "ProviderError.InvalidCredential"
	KindProviderMalformed    Kind = "ProviderError.Malformed"
	KindProviderUnavailable  Kind = "ProviderError.ModelUnavailable"
	KindToolNotInstalled     Kind = "ToolError.NotInstalled"
	KindToolTimedOut         Kind = "ToolError.TimedOut"
	KindToolNonZeroExit      Kind = "ToolError.NonZeroExit"
	KindToolOutputLimit      Kind = "ToolError.OutputLimitExceeded"
	KindToolParseFailed      Kind = "ToolError.ParseFailed"
	KindToolCancelled        Kind = "ToolError.Cancelled"
	KindBudgetExceeded       Kind = "BudgetExceeded"
	KindStorageError         Kind = "StorageError"
	KindStreamOverflow       Kind = "StreamOverflow"
)

// Classified carries a Kind and a Recoverable flag alongside the
// underlying cause, per the propagation policy in spec §7.
type Classified struct {
	Kind        Kind
	Recoverable bool
	Cause       error
}

func (c *Classified) Error() string {
	if c.Cause == nil {
		return string(c.Kind)
	}
	return fmt.Sprintf("%s: %v", c.Kind, c.Cause)
}

func (c *Classified) Unwrap() error { return c.Cause }

// New wraps cause with kind, marking it recoverable or not.
func New(kind Kind, recoverable bool, cause error) *Classified {
	return &Classified{Kind: kind, Recoverable: recoverable, Cause: cause}
}

// Recoverable kinds are handled locally by the Agent Loop: it emits an
// `error` event and continues (spec §7 propagation policy).
func Recoverable(kind Kind, cause error) *Classified {
	return New(kind, true, cause)
}

// Surfaced kinds terminate the scan as `failed`.
func Surfaced(kind Kind, cause error) *Classified {
	return New(kind, false, cause)
}
