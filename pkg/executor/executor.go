// Package executor runs a single phase invocation with bounded retries.
//
// One invocation is a small state machine: Pending → Running → {Completed,
// Failed}. The executor calls the node's capability up to a configured
// number of attempts, sleeping a fixed delay between attempts, and returns
// a result record on success or an *ExecutionError once the attempts are
// exhausted. There is no exponential backoff; the retry delay is fixed.
package executor

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/phaseline/pkg/hypergraph"
)

// Defaults applied when Options leaves the corresponding field zero.
const (
	DefaultRetries      = 3
	DefaultRestartDelay = time.Second
)

// State tracks an invocation through its lifecycle.
type State string

// Invocation states.
const (
	StatePending   State = "pending"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
)

// Options configures a single phase invocation.
type Options struct {
	// Retries is the maximum number of attempts. Zero means DefaultRetries.
	Retries int

	// RestartDelay is the fixed pause between attempts.
	// Zero means DefaultRestartDelay.
	RestartDelay time.Duration

	// Timeout bounds each individual attempt. Zero disables the bound.
	Timeout time.Duration

	// Logger receives per-attempt debug output. Nil discards.
	Logger *log.Logger
}

// Result is the record returned by a successful invocation.
type Result struct {
	Phase       string        `json:"phase"`
	Output      any           `json:"output"`
	Duration    time.Duration `json:"duration"`
	Attempts    int           `json:"attempts"`
	CompletedAt time.Time     `json:"completed_at"`
}

// ExecutionError reports a phase that exhausted its configured attempts.
// It carries the last underlying error and the attempt count.
type ExecutionError struct {
	Phase    string
	Attempts int
	Err      error
}

// Error implements the error interface.
func (e *ExecutionError) Error() string {
	return fmt.Sprintf("phase %s failed after %d attempts: %v", e.Phase, e.Attempts, e.Err)
}

// Unwrap returns the last underlying error for errors.Is/As.
func (e *ExecutionError) Unwrap() error { return e.Err }

// FromNode builds invocation options from a node's configuration,
// carrying the given logger.
func FromNode(n *hypergraph.Node, logger *log.Logger) Options {
	return Options{
		Retries:      n.Config.Retries,
		RestartDelay: n.Config.RestartDelay,
		Timeout:      n.Config.Timeout,
		Logger:       logger,
	}
}

// Run invokes the capability for the named phase with the given input and
// parameters. It attempts up to opts.Retries calls, waiting
// opts.RestartDelay between attempts and bounding each attempt with
// opts.Timeout when set. The first attempt that returns without error
// completes the invocation.
//
// On exhaustion Run returns an *ExecutionError wrapping the last attempt's
// error. A cancelled context ends the invocation immediately with the
// context's error.
func Run(ctx context.Context, phase string, cap hypergraph.Capability, input any, params hypergraph.Metadata, opts Options) (*Result, error) {
	if cap == nil {
		cap = hypergraph.PassThrough
	}
	retries := opts.Retries
	if retries <= 0 {
		retries = DefaultRetries
	}
	delay := opts.RestartDelay
	if delay <= 0 {
		delay = DefaultRestartDelay
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.NewWithOptions(io.Discard, log.Options{})
	}

	start := time.Now()
	var lastErr error

	for attempt := 1; attempt <= retries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		output, err := runAttempt(ctx, cap, input, params, opts.Timeout)
		if err == nil {
			res := &Result{
				Phase:       phase,
				Output:      output,
				Duration:    time.Since(start),
				Attempts:    attempt,
				CompletedAt: time.Now(),
			}
			logger.Debug("phase completed",
				"phase", phase,
				"attempts", attempt,
				"duration", res.Duration)
			return res, nil
		}

		lastErr = err
		logger.Warn("phase attempt failed",
			"phase", phase,
			"attempt", attempt,
			"retries", retries,
			"error", err)

		if attempt < retries {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return nil, &ExecutionError{Phase: phase, Attempts: retries, Err: lastErr}
}

// runAttempt performs one capability call, bounded by timeout when set.
func runAttempt(ctx context.Context, cap hypergraph.Capability, input any, params hypergraph.Metadata, timeout time.Duration) (any, error) {
	if timeout <= 0 {
		return cap(ctx, input, params)
	}

	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type attemptResult struct {
		output any
		err    error
	}
	done := make(chan attemptResult, 1)
	go func() {
		out, err := cap(attemptCtx, input, params)
		done <- attemptResult{out, err}
	}()

	select {
	case <-attemptCtx.Done():
		// The capability may still be running; its buffered result is
		// dropped. Capabilities should honor ctx to stop early.
		return nil, fmt.Errorf("attempt timed out after %s: %w", timeout, attemptCtx.Err())
	case r := <-done:
		return r.output, r.err
	}
}
