package io

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/matzehuels/phaseline/pkg/hypergraph"
)

// ReadJSON decodes a JSON graph document from r into a hypergraph.
//
// Each node must have an "id" field; "phase", the retry policy, params,
// and run counters are optional. Each edge must have "source" and
// "target" fields that reference node IDs. Executor functions are not
// part of the document, so every imported node carries the pass-through
// capability until the caller reattaches real executors.
//
// ReadJSON returns an error if:
//   - The JSON is malformed or invalid
//   - A node has a duplicate or reserved ID
//   - An edge references an unknown node ID
//
// Errors are wrapped with context describing which node or edge caused
// the problem. Use errors.Is to check for specific hypergraph errors.
//
// The returned graph is independent of r and can be modified safely
// after ReadJSON returns. ReadJSON does not close r.
func ReadJSON(r io.Reader) (*hypergraph.Hypergraph, error) {
	var data document
	if err := json.NewDecoder(r).Decode(&data); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}

	g := hypergraph.Restore(data.ID, data.Name, data.Version, data.CreatedAt)

	for _, nd := range data.Nodes {
		cfg := hypergraph.NodeConfig{
			ContinueOnError: nd.ContinueOnError,
			Retries:         nd.Retries,
			RestartDelay:    time.Duration(nd.RestartDelayMS) * time.Millisecond,
			Timeout:         time.Duration(nd.TimeoutMS) * time.Millisecond,
			Params:          nd.Params,
		}
		if err := g.AddNode(nd.ID, nd.Phase, cfg); err != nil {
			return nil, fmt.Errorf("node %s: %w", nd.ID, err)
		}
		n, _ := g.Node(nd.ID)
		if nd.Status != "" {
			n.Status = hypergraph.Status(nd.Status)
		}
		if !nd.CreatedAt.IsZero() {
			n.CreatedAt = nd.CreatedAt
		}
		if nd.LastRun != nil {
			n.LastRun = *nd.LastRun
		}
		n.RunCount = nd.RunCount
		n.ErrorCount = nd.ErrorCount
	}

	for _, ed := range data.Edges {
		e, err := g.AddEdge(ed.Source, ed.Target, hypergraph.EdgeConfig{
			Stream:       ed.Stream,
			BufferSize:   ed.BufferSize,
			Backpressure: hypergraph.Backpressure(ed.Backpressure),
			Multiplex:    ed.Multiplex,
		})
		if err != nil {
			return nil, fmt.Errorf("edge %s->%s: %w", ed.Source, ed.Target, err)
		}
		e.Active = ed.Active
		e.MessagesPassed = ed.MessagesPassed
		e.BytesTransferred = ed.BytesTransferred
		if !ed.CreatedAt.IsZero() {
			e.CreatedAt = ed.CreatedAt
		}
	}

	if data.State != nil {
		g.RestoreState(data.State.Running, data.State.CurrentPhase, data.State.ExecutionOrder, data.State.LastError)
	}

	return g, nil
}

// ImportJSON reads a JSON file at path and returns the decoded hypergraph.
//
// ImportJSON opens the file, decodes it using [ReadJSON], and closes the
// file. Errors wrap the underlying cause with the file path for context.
func ImportJSON(path string) (*hypergraph.Hypergraph, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return ReadJSON(f)
}
