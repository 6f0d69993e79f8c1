// Package pipeline provides the orchestration layer for Phaseline.
//
// This package implements full runs over a hypergraph: phases are scheduled
// in dependency order, executed with per-phase retry semantics, and their
// outputs routed along edges into downstream phases. By centralizing this
// logic, the CLI and the control-plane server share identical run behavior.
//
// # Architecture
//
// A run consists of three stages:
//
//  1. Schedule: Topologically sort the graph and group phases into levels
//  2. Execute: Run each phase (sequentially or level-parallel) with retries
//  3. Route: Store phase outputs in the data flow and feed downstream phases
//
// # Usage
//
// Create a Runner and execute a run:
//
//	runner := pipeline.NewRunner(cache, logger)
//	result, err := runner.Pipeline(ctx, g, pipeline.Options{
//	    Parallel: true,
//	    Input:    payload,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	out := result.FinalOutput
//
// Graphs can also be built from batch manifests:
//
//	g, err := pipeline.BuildGraph("ingest", specs, executors)
package pipeline

import (
	"fmt"
	"time"
)

// InputKey is the reserved data-flow key holding the initial run input.
// Phase outputs are stored under their node IDs, so node IDs must not
// collide with this key.
const InputKey = "__input__"

// Run status values reported in Result.Status.
const (
	// StatusSuccess means every scheduled phase completed.
	StatusSuccess = "success"

	// StatusPartialFailure means at least one phase failed but was
	// tolerated because its node is configured with ContinueOnError.
	StatusPartialFailure = "partial_failure"
)

// Options contains the configuration for a single pipeline run.
type Options struct {
	// Parallel executes independent phases of the same scheduling level
	// concurrently. Sequential runs walk the topological order one phase
	// at a time.
	Parallel bool `json:"parallel,omitempty"`

	// Monitor raises per-phase progress logging from debug to info.
	Monitor bool `json:"monitor,omitempty"`

	// Input seeds the data flow under InputKey and is handed to phases
	// that have no incoming edges. May be nil.
	Input any `json:"input,omitempty"`
}

// Failure records a phase whose execution failed but was tolerated.
type Failure struct {
	Phase    string `json:"phase"`
	Attempts int    `json:"attempts"`
	Error    string `json:"error"`
}

// Result contains the outputs of a pipeline run.
type Result struct {
	// RunID uniquely identifies this run.
	RunID string `json:"run_id"`

	// Status is StatusSuccess or StatusPartialFailure. Runs that abort
	// on an untolerated failure return an error instead of a Result.
	Status string `json:"status"`

	// Completed lists phases that produced output, in level/topological
	// order. Within a parallel level the actual finish order is
	// unconstrained and not reflected here.
	Completed []string `json:"completed"`

	// Failed lists tolerated failures in the order they were observed.
	Failed []Failure `json:"failed,omitempty"`

	// DataFlow maps each completed phase ID to its output, plus the
	// initial input under InputKey when one was provided.
	DataFlow map[string]any `json:"data_flow"`

	// FinalOutput is the output of the last phase to complete, or nil
	// when the graph is empty.
	FinalOutput any `json:"final_output"`

	// Duration covers scheduling and execution of the whole run.
	Duration time.Duration `json:"duration"`
}

// Err returns an error summarizing tolerated failures, or nil when the
// run fully succeeded.
func (r *Result) Err() error {
	if len(r.Failed) == 0 {
		return nil
	}
	return fmt.Errorf("%d of %d phases failed", len(r.Failed), len(r.Failed)+len(r.Completed))
}
