package hypergraph

import (
	"context"
	"time"
)

// Metadata stores arbitrary key-value parameters attached to a node's
// configuration. Metadata maps are never nil after AddNode.
type Metadata map[string]any

// Status describes a node's lifecycle position. Nodes start Idle and are
// moved by the orchestrator as a run progresses.
type Status string

// Node statuses.
const (
	StatusIdle      Status = "idle"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusError     Status = "error"
)

// Capability is the executor attached to a node: it receives the phase
// input and the node's parameters and returns the phase output. Callers
// attach adapters for devices, streams or external systems through this
// single entry point; the core never talks to those systems directly.
//
// A nil Capability on a node means identity pass-through of the input.
type Capability func(ctx context.Context, input any, params Metadata) (any, error)

// PassThrough returns its input unchanged. It is the default capability
// for nodes configured without an executor.
func PassThrough(_ context.Context, input any, _ Metadata) (any, error) {
	return input, nil
}

// NodeConfig carries per-phase execution configuration.
//
// The zero value is usable: a pass-through executor, default retry
// policy, no timeout, and hard failure (ContinueOnError false).
type NodeConfig struct {
	// Executor is the phase's capability. Nil means pass-through.
	Executor Capability

	// ContinueOnError tolerates this phase failing: the run records the
	// failure and keeps going instead of aborting.
	ContinueOnError bool

	// Retries is the maximum number of attempts per invocation.
	// Zero means the executor default (3).
	Retries int

	// RestartDelay is the fixed pause between attempts.
	// Zero means the executor default (1s). No exponential backoff.
	RestartDelay time.Duration

	// Timeout bounds a single attempt. Zero disables the bound.
	Timeout time.Duration

	// Params holds free-form phase parameters passed to the capability.
	Params Metadata
}

// Node is a vertex in the hypergraph: one named unit of pipeline work.
// Only the orchestrator mutates the status and counter fields, and only
// between level barriers of a run.
type Node struct {
	ID         string     // unique identifier
	Phase      string     // phase category (acquisition, analysis, ...)
	Config     NodeConfig // execution configuration
	Status     Status     // current lifecycle status
	CreatedAt  time.Time  // time of AddNode
	LastRun    time.Time  // completion time of the most recent run
	RunCount   int        // successful executions
	ErrorCount int        // failed executions
}

// Capability returns the node's executor, falling back to PassThrough
// when none is configured.
func (n *Node) Capability() Capability {
	if n.Config.Executor != nil {
		return n.Config.Executor
	}
	return PassThrough
}

// RecordRun marks a successful execution at the given time.
func (n *Node) RecordRun(at time.Time) {
	n.Status = StatusCompleted
	n.LastRun = at
	n.RunCount++
}

// RecordError marks a failed execution.
func (n *Node) RecordError() {
	n.Status = StatusError
	n.ErrorCount++
}

// clone returns a deep copy of the node. The capability function value is
// shared; function values are immutable so the copies stay independent.
func (n *Node) clone() *Node {
	c := *n
	if n.Config.Params != nil {
		c.Config.Params = make(Metadata, len(n.Config.Params))
		for k, v := range n.Config.Params {
			c.Config.Params[k] = copyValue(v)
		}
	}
	return &c
}

// copyValue deep-copies the container shapes params can hold after a JSON
// round trip: maps and slices are duplicated recursively, everything else
// is a value type and copies by assignment.
func copyValue(v any) any {
	switch v := v.(type) {
	case Metadata:
		c := make(Metadata, len(v))
		for k, e := range v {
			c[k] = copyValue(e)
		}
		return c
	case map[string]any:
		c := make(map[string]any, len(v))
		for k, e := range v {
			c[k] = copyValue(e)
		}
		return c
	case []any:
		c := make([]any, len(v))
		for i, e := range v {
			c[i] = copyValue(e)
		}
		return c
	default:
		return v
	}
}
