// Package execengine runs registered security tools as external
// subprocesses: argument sanitization, bounded concurrency, timeout with
// graceful-then-forceful termination, output capture with a size cap, and
// delegation to the tool's Parser. Adapted from the teacher's MCP stdio
// transport (pkg/mcp/transport.go's createStdioTransport spawns the MCP
// server via os/exec.Command) and its recovery/timeout constant style
// (pkg/mcp/recovery.go), retargeted from long-lived MCP server processes
// to one-shot tool invocations.
package execengine

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/redlance/redlance/pkg/models"
	"github.com/redlance/redlance/pkg/toolbox"
)

// DefaultKillGrace is the delay between sending SIGTERM and escalating to
// SIGKILL when a tool must be terminated early (timeout, cancellation, or
// output cap). NewEngine uses it when its killGrace argument is not
// positive.
const DefaultKillGrace = 5 * time.Second

// OutputSink receives tool stdout/stderr lines as they are produced, in
// order, each tagged with a dense per-execution sequence number. The
// agent loop wires this to the event bus to emit ordered tool_output
// events; execengine has no event-bus dependency of its own.
type OutputSink interface {
	Publish(line string, sequence int)
}

// NopSink discards output; used when a caller has no streaming need.
type NopSink struct{}

func (NopSink) Publish(string, int) {}

// Result is what Execute returns on a completed (possibly non-zero-exit)
// run. RawFindings are produced by the tool's Parser, not yet normalized.
type Result struct {
	RawOutput   string
	RawFindings []models.RawFinding
	ExitCode    int
	DurationMS  int64
	Truncated   bool
}

// Engine runs tools as subprocesses under a bounded concurrency pool.
type Engine struct {
	pool      *pool
	killGrace time.Duration
	lookPath  func(string) (string, error)
}

// NewEngine builds an Engine whose subprocess concurrency and spawn rate
// are capped by maxConcurrent, spawnPerSecond and spawnBurst.
func NewEngine(maxConcurrent int, spawnPerSecond float64, spawnBurst int, killGrace time.Duration) *Engine {
	if killGrace <= 0 {
		killGrace = DefaultKillGrace
	}
	return &Engine{
		pool:      newPool(maxConcurrent, spawnPerSecond, spawnBurst),
		killGrace: killGrace,
		lookPath:  exec.LookPath,
	}
}

// Execute runs descriptor against validatedArgs, which must already have
// passed toolbox.Registry.Validate. args["target"] or args["target_url"]
// (whichever the descriptor defines) is checked against the sanitization
// rules before anything is spawned.
func (e *Engine) Execute(ctx context.Context, descriptor toolbox.Descriptor, validatedArgs map[string]any, sink OutputSink) (*Result, error) {
	if sink == nil {
		sink = NopSink{}
	}

	if err := e.sanitizeArgs(descriptor, validatedArgs); err != nil {
		return nil, &ExecutionError{Tool: descriptor.Name, Err: err}
	}

	if _, err := e.lookPath(descriptor.Binary); err != nil {
		return nil, &ExecutionError{Tool: descriptor.Name, Err: fmt.Errorf("%w: %v", ErrNotInstalled, err)}
	}

	release, err := e.pool.acquire(ctx)
	if err != nil {
		return nil, &ExecutionError{Tool: descriptor.Name, Err: fmt.Errorf("%w: %v", ErrCancelled, err)}
	}
	defer release()

	timeout := descriptor.DefaultTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	argv := descriptor.BuildArgs(validatedArgs)
	cmd := exec.CommandContext(runCtx, descriptor.Binary, argv...)
	// When runCtx ends, send SIGTERM first; Wait escalates to SIGKILL if
	// the process is still alive killGrace later.
	cmd.Cancel = func() error { return cmd.Process.Signal(syscall.SIGTERM) }
	cmd.WaitDelay = e.killGrace

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, &ExecutionError{Tool: descriptor.Name, Err: err}
	}
	cmd.Stderr = cmd.Stdout // interleave, callers distinguish via tool-native markers if needed

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return nil, &ExecutionError{Tool: descriptor.Name, Err: fmt.Errorf("%w: %v", ErrNotInstalled, err)}
	}

	captured, truncated := e.captureOutput(stdout, descriptor.MaxOutputBytes, sink, cancel)

	waitErr := e.waitWithGrace(runCtx, cmd)
	duration := time.Since(start)
	exitCode := exitCodeOf(waitErr)

	if truncated {
		slog.Warn("tool output exceeded cap, process terminated", "tool", descriptor.Name, "max_bytes", descriptor.MaxOutputBytes)
		return &Result{RawOutput: captured, ExitCode: exitCode, DurationMS: duration.Milliseconds(), Truncated: true},
			&ExecutionError{Tool: descriptor.Name, Err: ErrOutputLimitExceeded}
	}
	if errors.Is(ctx.Err(), context.Canceled) {
		return nil, &ExecutionError{Tool: descriptor.Name, Err: ErrCancelled}
	}
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return nil, &ExecutionError{Tool: descriptor.Name, Err: ErrTimedOut}
	}

	if waitErr != nil && !descriptor.IsSuccessExit(exitCode) {
		return &Result{RawOutput: captured, ExitCode: exitCode, DurationMS: duration.Milliseconds(), Truncated: truncated},
			&ExecutionError{Tool: descriptor.Name, Err: fmt.Errorf("%w: exit %d", ErrNonZeroExit, exitCode)}
	}

	findings, parseErr := descriptor.Parser.Parse(captured, exitCode)
	if parseErr != nil {
		return &Result{RawOutput: captured, ExitCode: exitCode, DurationMS: duration.Milliseconds(), Truncated: truncated},
			&ExecutionError{Tool: descriptor.Name, Err: fmt.Errorf("%w: %v", ErrParseFailed, parseErr)}
	}

	return &Result{
		RawOutput:   captured,
		RawFindings: findings,
		ExitCode:    exitCode,
		DurationMS:  duration.Milliseconds(),
		Truncated:   truncated,
	}, nil
}

func (e *Engine) sanitizeArgs(descriptor toolbox.Descriptor, args map[string]any) error {
	for _, key := range []string{"target", "target_url", "domain"} {
		v, ok := args[key]
		if !ok {
			continue
		}
		s, _ := v.(string)
		if s == "" {
			continue
		}
		if err := validateTarget(s, descriptor.AllowPrivate); err != nil {
			return err
		}
	}
	return nil
}

// captureOutput reads stdout line by line, publishing each to sink and
// accumulating up to maxBytes. The moment the cap is exceeded, cancel is
// called so the command's SIGTERM-then-SIGKILL cancellation (its Cancel
// hook and WaitDelay) terminates the subprocess, matching timeout and
// caller-cancellation handling; the pipe
// is then drained (discarding further lines) until the process exits.
func (e *Engine) captureOutput(r io.Reader, maxBytes int64, sink OutputSink, cancel context.CancelFunc) (string, bool) {
	if maxBytes <= 0 {
		maxBytes = 4 << 20
	}
	var buf strings.Builder
	var total int64
	truncated := false
	seq := 0

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		seq++
		sink.Publish(line, seq)

		if truncated {
			continue
		}
		lineLen := int64(len(line)) + 1
		if total+lineLen > maxBytes {
			truncated = true
			cancel()
			continue
		}
		buf.WriteString(line)
		buf.WriteByte('\n')
		total += lineLen
	}
	return buf.String(), truncated
}

// waitWithGrace waits for cmd, and if runCtx is done before the process
// exits on its own, sends SIGTERM then escalates to SIGKILL after
// killGrace.
func (e *Engine) waitWithGrace(runCtx context.Context, cmd *exec.Cmd) error {
	done := make(chan error, 1)
	var once sync.Once
	go func() { once.Do(func() { done <- cmd.Wait() }) }()

	select {
	case err := <-done:
		return err
	case <-runCtx.Done():
		if cmd.Process != nil {
			_ = cmd.Process.Signal(syscall.SIGTERM)
		}
		select {
		case err := <-done:
			return err
		case <-time.After(e.killGrace):
			if cmd.Process != nil {
				_ = cmd.Process.Kill()
			}
			return <-done
		}
	}
}

func exitCodeOf(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}
