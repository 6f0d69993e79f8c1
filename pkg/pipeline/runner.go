package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/matzehuels/phaseline/pkg/cache"
	"github.com/matzehuels/phaseline/pkg/executor"
	"github.com/matzehuels/phaseline/pkg/hypergraph"
	"github.com/matzehuels/phaseline/pkg/hypergraph/schedule"
	"github.com/matzehuels/phaseline/pkg/observability"
)

// Runner encapsulates pipeline execution with manifest caching.
// Both CLI and server use this to share identical run behavior.
//
// The Runner is stateless except for the cache and logger - it doesn't
// store run results. Multiple goroutines can safely use the same Runner
// against different graphs; a single graph must not be run concurrently.
type Runner struct {
	Cache  cache.Cache
	Logger *log.Logger
}

// NewRunner creates a runner with the given cache.
// If c is nil, a NullCache is used (caching disabled).
func NewRunner(c cache.Cache, logger *log.Logger) *Runner {
	if c == nil {
		c = cache.NewNullCache()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{
		Cache:  c,
		Logger: logger,
	}
}

// Execute runs the graph sequentially with the given input.
// It is shorthand for Pipeline with only Input set.
func (r *Runner) Execute(ctx context.Context, g *hypergraph.Hypergraph, input any) (*Result, error) {
	return r.Pipeline(ctx, g, Options{Input: input})
}

// Pipeline runs every phase of the graph in dependency order.
//
// Sequential runs (the default) walk the topological order one phase at a
// time. With opts.Parallel, phases of the same scheduling level run
// concurrently and the next level starts only after the whole level has
// finished.
//
// A phase failure aborts the run unless the node is configured with
// ContinueOnError, in which case the failure is recorded, the phase's
// dependents still run (with the failed output absent from their input),
// and the run finishes with StatusPartialFailure. An aborted run leaves
// already-completed phase state (run counters, edge counters) on the
// graph and returns an error.
func (r *Runner) Pipeline(ctx context.Context, g *hypergraph.Hypergraph, opts Options) (*Result, error) {
	start := time.Now()

	order, err := schedule.TopoSort(g)
	if err != nil {
		return nil, fmt.Errorf("schedule: %w", err)
	}

	var levels [][]string
	if opts.Parallel {
		levels = schedule.Levels(g, order)
	} else {
		levels = make([][]string, len(order))
		for i, id := range order {
			levels[i] = []string{id}
		}
	}

	result := &Result{
		RunID:    uuid.NewString(),
		Status:   StatusSuccess,
		DataFlow: make(map[string]any, len(order)+1),
	}
	if opts.Input != nil {
		result.DataFlow[InputKey] = opts.Input
	}

	g.BeginRun(order)
	observability.Run().OnRunStart(ctx, result.RunID, len(order), opts.Parallel)

	r.progress(opts, "run started",
		"run_id", result.RunID,
		"phases", len(order),
		"levels", len(levels),
		"parallel", opts.Parallel)

	for _, level := range levels {
		if err := ctx.Err(); err != nil {
			return r.abort(ctx, g, result, start, err)
		}

		outcomes := r.runLevel(ctx, g, level, opts, result)

		// Outcomes are applied by this goroutine only, in level order, so
		// graph mutation stays single-writer.
		var fatal error
		for _, oc := range outcomes {
			if oc.err == nil {
				r.applySuccess(g, oc, result)
				continue
			}
			node, _ := g.Node(oc.phase)
			node.RecordError()
			if node.Config.ContinueOnError {
				result.Status = StatusPartialFailure
				result.Failed = append(result.Failed, Failure{
					Phase:    oc.phase,
					Attempts: oc.attempts,
					Error:    oc.err.Error(),
				})
				r.Logger.Warn("phase failed, continuing", "phase", oc.phase, "error", oc.err)
				continue
			}
			if fatal == nil {
				fatal = fmt.Errorf("phase %s: %w", oc.phase, oc.err)
			}
		}
		if fatal != nil {
			return r.abort(ctx, g, result, start, fatal)
		}
	}

	result.FinalOutput = r.finalOutput(result)
	result.Duration = time.Since(start)
	g.EndRun("")

	observability.Run().OnRunComplete(ctx, result.RunID, result.Status, result.Duration, result.Err())
	r.progress(opts, "run finished",
		"run_id", result.RunID,
		"status", result.Status,
		"completed", len(result.Completed),
		"failed", len(result.Failed),
		"duration", result.Duration)

	return result, nil
}

// outcome carries a single phase execution result back to the coordinator.
type outcome struct {
	phase    string
	output   any
	attempts int
	duration time.Duration
	done     time.Time
	err      error
}

// runLevel executes one scheduling level. With more than one phase and
// opts.Parallel set, phases run in their own goroutines and runLevel
// returns after all of them have finished (the level barrier). In
// sequential mode execution stops early once an untolerated failure is
// observed.
func (r *Runner) runLevel(ctx context.Context, g *hypergraph.Hypergraph, level []string, opts Options, result *Result) []outcome {
	inputs := make([]any, len(level))
	for i, id := range level {
		inputs[i] = r.gatherInput(g, id, result.DataFlow)
		node, _ := g.Node(id)
		node.Status = hypergraph.StatusRunning
	}

	outcomes := make([]outcome, len(level))

	if opts.Parallel && len(level) > 1 {
		var wg sync.WaitGroup
		for i, id := range level {
			wg.Add(1)
			go func(i int, id string) {
				defer wg.Done()
				outcomes[i] = r.runPhase(ctx, g, id, inputs[i], opts, result.RunID)
			}(i, id)
		}
		wg.Wait()
		return outcomes
	}

	for i, id := range level {
		g.SetCurrentPhase(id)
		outcomes[i] = r.runPhase(ctx, g, id, inputs[i], opts, result.RunID)
		if oc := outcomes[i]; oc.err != nil {
			node, _ := g.Node(id)
			if !node.Config.ContinueOnError {
				return outcomes[:i+1]
			}
		}
	}
	return outcomes
}

// runPhase executes a single node with its configured retry policy.
// It never touches graph state; mutations happen in the coordinator.
func (r *Runner) runPhase(ctx context.Context, g *hypergraph.Hypergraph, id string, input any, opts Options, runID string) outcome {
	node, ok := g.Node(id)
	if !ok {
		return outcome{phase: id, err: fmt.Errorf("unknown phase %q", id)}
	}

	observability.Run().OnPhaseStart(ctx, runID, id)
	r.progress(opts, "phase started", "phase", id)

	res, err := executor.Run(ctx, id, node.Capability(), input, node.Config.Params, executor.FromNode(node, r.Logger))

	oc := outcome{phase: id, err: err}
	if res != nil {
		oc.output = res.Output
		oc.attempts = res.Attempts
		oc.duration = res.Duration
		oc.done = res.CompletedAt
	}
	var execErr *executor.ExecutionError
	if err != nil && errors.As(err, &execErr) {
		oc.attempts = execErr.Attempts
	}

	observability.Run().OnPhaseComplete(ctx, runID, id, oc.attempts, oc.duration, err)
	if err == nil {
		r.progress(opts, "phase finished", "phase", id, "attempts", oc.attempts, "duration", oc.duration)
	}
	return oc
}

// applySuccess records a completed phase: output lands in the data flow,
// the node's run counter advances, and every outgoing edge counts one
// message of the output's encoded size.
func (r *Runner) applySuccess(g *hypergraph.Hypergraph, oc outcome, result *Result) {
	result.DataFlow[oc.phase] = oc.output
	result.Completed = append(result.Completed, oc.phase)

	node, _ := g.Node(oc.phase)
	node.RecordRun(oc.done)

	size := encodedSize(oc.output)
	for _, e := range g.Outgoing(oc.phase) {
		e.RecordMessage(int64(size))
	}
}

// gatherInput assembles a phase's input from the data flow:
//   - no incoming edges: the run's initial input
//   - one incoming edge: the upstream output, unwrapped
//   - several incoming edges: a map keyed by stream name
//
// Upstream phases that produced no output (tolerated failures) are
// simply absent.
func (r *Runner) gatherInput(g *hypergraph.Hypergraph, id string, dataFlow map[string]any) any {
	incoming := g.Incoming(id)
	switch len(incoming) {
	case 0:
		return dataFlow[InputKey]
	case 1:
		return dataFlow[incoming[0].Source]
	default:
		in := make(map[string]any, len(incoming))
		for _, e := range incoming {
			if v, ok := dataFlow[e.Source]; ok {
				in[e.Stream] = v
			}
		}
		return in
	}
}

// abort finalizes a failed run and returns the run error.
func (r *Runner) abort(ctx context.Context, g *hypergraph.Hypergraph, result *Result, start time.Time, err error) (*Result, error) {
	g.EndRun(err.Error())
	observability.Run().OnRunComplete(ctx, result.RunID, "aborted", time.Since(start), err)
	r.Logger.Error("run aborted", "run_id", result.RunID, "error", err)
	return nil, err
}

// finalOutput returns the output of the last completed phase.
func (r *Runner) finalOutput(result *Result) any {
	if len(result.Completed) == 0 {
		return nil
	}
	return result.DataFlow[result.Completed[len(result.Completed)-1]]
}

// progress logs at info level when monitoring is on, debug otherwise.
func (r *Runner) progress(opts Options, msg string, kv ...any) {
	if opts.Monitor {
		r.Logger.Info(msg, kv...)
		return
	}
	r.Logger.Debug(msg, kv...)
}

// encodedSize reports the JSON-encoded size of a phase output, used for
// edge byte counters. Unencodable outputs count as zero bytes.
func encodedSize(v any) int {
	if v == nil {
		return 0
	}
	data, err := json.Marshal(v)
	if err != nil {
		return 0
	}
	return len(data)
}
