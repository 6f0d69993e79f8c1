package io

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/matzehuels/phaseline/pkg/hypergraph"
)

// document is the serialized form of a hypergraph.
type document struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Version   string    `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	Nodes     []node    `json:"nodes"`
	Edges     []edge    `json:"edges"`
	State     *state    `json:"state,omitempty"`
}

type node struct {
	ID              string              `json:"id"`
	Phase           string              `json:"phase"`
	Status          string              `json:"status"`
	ContinueOnError bool                `json:"continue_on_error,omitempty"`
	Retries         int                 `json:"retries,omitempty"`
	RestartDelayMS  int64               `json:"restart_delay_ms,omitempty"`
	TimeoutMS       int64               `json:"timeout_ms,omitempty"`
	Params          hypergraph.Metadata `json:"params,omitempty"`
	CreatedAt       time.Time           `json:"created_at"`
	LastRun         *time.Time          `json:"last_run,omitempty"`
	RunCount        int                 `json:"run_count,omitempty"`
	ErrorCount      int                 `json:"error_count,omitempty"`
}

type edge struct {
	Source           string    `json:"source"`
	Target           string    `json:"target"`
	Stream           string    `json:"stream"`
	BufferSize       int       `json:"buffer_size,omitempty"`
	Backpressure     string    `json:"backpressure,omitempty"`
	Multiplex        bool      `json:"multiplex,omitempty"`
	Active           bool      `json:"active"`
	MessagesPassed   int64     `json:"messages_passed,omitempty"`
	BytesTransferred int64     `json:"bytes_transferred,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

type state struct {
	Running        bool     `json:"running"`
	CurrentPhase   string   `json:"current_phase,omitempty"`
	ExecutionOrder []string `json:"execution_order,omitempty"`
	LastError      string   `json:"last_error,omitempty"`
}

// WriteJSON encodes a hypergraph as JSON and writes it to w.
// The output includes all nodes, edges, and run bookkeeping; executor
// functions are omitted. The result can be re-imported with [ReadJSON].
func WriteJSON(g *hypergraph.Hypergraph, w io.Writer) error {
	out := document{
		ID:        g.ID(),
		Name:      g.Name(),
		Version:   g.StructureVersion(),
		CreatedAt: g.CreatedAt(),
		Nodes:     make([]node, 0, g.NodeCount()),
		Edges:     make([]edge, 0, g.EdgeCount()),
	}

	for _, n := range g.Nodes() {
		nd := node{
			ID:              n.ID,
			Phase:           n.Phase,
			Status:          string(n.Status),
			ContinueOnError: n.Config.ContinueOnError,
			Retries:         n.Config.Retries,
			RestartDelayMS:  n.Config.RestartDelay.Milliseconds(),
			TimeoutMS:       n.Config.Timeout.Milliseconds(),
			Params:          n.Config.Params,
			CreatedAt:       n.CreatedAt,
			RunCount:        n.RunCount,
			ErrorCount:      n.ErrorCount,
		}
		if !n.LastRun.IsZero() {
			lastRun := n.LastRun
			nd.LastRun = &lastRun
		}
		out.Nodes = append(out.Nodes, nd)
	}

	for _, e := range g.Edges() {
		out.Edges = append(out.Edges, edge{
			Source:           e.Source,
			Target:           e.Target,
			Stream:           e.Stream,
			BufferSize:       e.Config.BufferSize,
			Backpressure:     string(e.Config.Backpressure),
			Multiplex:        e.Config.Multiplex,
			Active:           e.Active,
			MessagesPassed:   e.MessagesPassed,
			BytesTransferred: e.BytesTransferred,
			CreatedAt:        e.CreatedAt,
		})
	}

	if order := g.ExecutionOrder(); g.Running() || len(order) > 0 || g.LastError() != "" {
		out.State = &state{
			Running:        g.Running(),
			CurrentPhase:   g.CurrentPhase(),
			ExecutionOrder: order,
			LastError:      g.LastError(),
		}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	return nil
}

// ExportJSON writes a hypergraph to a JSON file at path.
// This is a convenience wrapper around [WriteJSON] for file-based output.
func ExportJSON(g *hypergraph.Hypergraph, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()
	return WriteJSON(g, f)
}
