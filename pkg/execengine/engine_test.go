package execengine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redlance/redlance/pkg/models"
	"github.com/redlance/redlance/pkg/toolbox"
)

func echoDescriptor(lines ...string) toolbox.Descriptor {
	return toolbox.Descriptor{
		Name:           "echo_probe",
		Binary:         "printf",
		DefaultTimeout: 5 * time.Second,
		MaxOutputBytes: 4096,
		BuildArgs: func(v map[string]any) []string {
			text := ""
			for _, l := range lines {
				text += l + "\\n"
			}
			return []string{text}
		},
		Parser: toolbox.ParserFunc(func(raw string, exitCode int) ([]models.RawFinding, error) {
			return []models.RawFinding{{Title: "echoed", AffectedTarget: raw}}, nil
		}),
	}
}

type collectingSink struct {
	lines []string
}

func (c *collectingSink) Publish(line string, seq int) { c.lines = append(c.lines, line) }

func TestExecuteCapturesOutputAndParses(t *testing.T) {
	e := NewEngine(2, 100, 10, time.Second)
	sink := &collectingSink{}

	result, err := e.Execute(context.Background(), echoDescriptor("hello", "world"), map[string]any{}, sink)
	require.NoError(t, err)
	assert.Equal(t, 0, result.ExitCode)
	assert.False(t, result.Truncated)
	assert.Len(t, result.RawFindings, 1)
	assert.ElementsMatch(t, []string{"hello", "world"}, sink.lines)
}

func TestExecuteReportsNotInstalledForMissingBinary(t *testing.T) {
	e := NewEngine(2, 100, 10, time.Second)
	d := echoDescriptor("x")
	d.Binary = "definitely-not-a-real-binary-xyz"

	_, err := e.Execute(context.Background(), d, map[string]any{}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotInstalled)
}

func TestExecuteRejectsDisallowedTarget(t *testing.T) {
	e := NewEngine(2, 100, 10, time.Second)
	d := echoDescriptor("x")
	d.AllowPrivate = false

	_, err := e.Execute(context.Background(), d, map[string]any{"target": "127.0.0.1"}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidTarget)
}

func TestExecuteTimesOutLongRunningProcess(t *testing.T) {
	e := NewEngine(2, 100, 10, 200*time.Millisecond)
	d := toolbox.Descriptor{
		Name:           "sleeper",
		Binary:         "sleep",
		DefaultTimeout: 100 * time.Millisecond,
		MaxOutputBytes: 4096,
		BuildArgs:      func(v map[string]any) []string { return []string{"5"} },
		Parser:         toolbox.ParserFunc(func(string, int) ([]models.RawFinding, error) { return nil, nil }),
	}

	_, err := e.Execute(context.Background(), d, map[string]any{}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTimedOut)
}

func TestExecuteRespectsCallerCancellation(t *testing.T) {
	e := NewEngine(2, 100, 10, 200*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	d := echoDescriptor("x")
	_, err := e.Execute(ctx, d, map[string]any{}, nil)
	require.Error(t, err)
	var execErr *ExecutionError
	require.True(t, errors.As(err, &execErr))
}

func TestExecuteTerminatesProcessOnOutputCap(t *testing.T) {
	e := NewEngine(2, 100, 10, 100*time.Millisecond)
	d := toolbox.Descriptor{
		Name:           "firehose",
		Binary:         "yes",
		DefaultTimeout: 5 * time.Second,
		MaxOutputBytes: 16,
		BuildArgs:      func(v map[string]any) []string { return nil },
		Parser:         toolbox.ParserFunc(func(string, int) ([]models.RawFinding, error) { return nil, nil }),
	}

	start := time.Now()
	_, err := e.Execute(context.Background(), d, map[string]any{}, nil)
	elapsed := time.Since(start)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrOutputLimitExceeded)
	assert.Less(t, elapsed, 5*time.Second, "output-cap breach must kill the process, not wait out DefaultTimeout")
}

func TestExecuteNonZeroExitIsError(t *testing.T) {
	e := NewEngine(2, 100, 10, time.Second)
	d := toolbox.Descriptor{
		Name:           "failing",
		Binary:         "false",
		DefaultTimeout: time.Second,
		MaxOutputBytes: 4096,
		BuildArgs:      func(v map[string]any) []string { return nil },
		Parser:         toolbox.ParserFunc(func(string, int) ([]models.RawFinding, error) { return nil, nil }),
	}

	_, err := e.Execute(context.Background(), d, map[string]any{}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNonZeroExit)
}

func TestExecuteDeclaredSuccessExitCodeIsNotError(t *testing.T) {
	e := NewEngine(2, 100, 10, time.Second)
	d := toolbox.Descriptor{
		Name:             "quirky",
		Binary:           "false",
		DefaultTimeout:   time.Second,
		MaxOutputBytes:   4096,
		SuccessExitCodes: []int{1},
		BuildArgs:        func(v map[string]any) []string { return nil },
		Parser:           toolbox.ParserFunc(func(string, int) ([]models.RawFinding, error) { return nil, nil }),
	}

	_, err := e.Execute(context.Background(), d, map[string]any{}, nil)
	assert.NoError(t, err)
}
