package hypergraph

import (
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Version is the structural version recorded in graph metadata and the
// serialized form.
const Version = "1.0"

var (
	// ErrInvalidNodeID is returned by [Hypergraph.AddNode] when the node ID
	// is empty or starts with "__". Double-underscore IDs are reserved for
	// run bookkeeping such as the initial-input data-flow key.
	ErrInvalidNodeID = errors.New("invalid node ID")

	// ErrDuplicateNode is returned by [Hypergraph.AddNode] when a node with
	// the same ID already exists. Node IDs must be unique.
	ErrDuplicateNode = errors.New("duplicate node ID")

	// ErrUnknownSourceNode is returned by [Hypergraph.AddEdge] when the
	// source node does not exist in the graph.
	ErrUnknownSourceNode = errors.New("unknown source node")

	// ErrUnknownTargetNode is returned by [Hypergraph.AddEdge] when the
	// target node does not exist in the graph.
	ErrUnknownTargetNode = errors.New("unknown target node")
)

// Hypergraph owns phase nodes and stream edges plus the execution state of
// the most recent run. The zero value is not usable; call New.
type Hypergraph struct {
	id        string
	name      string
	version   string
	createdAt time.Time

	nodes map[string]*Node
	edges map[string]*Edge

	running      bool
	currentPhase string
	lastOrder    []string
	lastError    string
}

// New creates an empty hypergraph with a fresh unique ID.
func New(name string) *Hypergraph {
	return &Hypergraph{
		id:        uuid.NewString(),
		name:      name,
		version:   Version,
		createdAt: time.Now(),
		nodes:     make(map[string]*Node),
		edges:     make(map[string]*Edge),
	}
}

// Restore rebuilds an empty graph shell from previously serialized
// metadata, preserving identity and creation time. It exists for the io
// package's import path; use New everywhere else.
func Restore(id, name, version string, createdAt time.Time) *Hypergraph {
	if id == "" {
		id = uuid.NewString()
	}
	if version == "" {
		version = Version
	}
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	return &Hypergraph{
		id:        id,
		name:      name,
		version:   version,
		createdAt: createdAt,
		nodes:     make(map[string]*Node),
		edges:     make(map[string]*Edge),
	}
}

// ID returns the graph's unique identifier.
func (g *Hypergraph) ID() string { return g.id }

// Name returns the graph's display name.
func (g *Hypergraph) Name() string { return g.name }

// StructureVersion returns the structural version the graph was built with.
func (g *Hypergraph) StructureVersion() string { return g.version }

// CreatedAt returns the graph's creation time.
func (g *Hypergraph) CreatedAt() time.Time { return g.createdAt }

// AddNode inserts an Idle node with the given phase category and
// configuration. Returns ErrInvalidNodeID for an empty ID and
// ErrDuplicateNode when the ID is already present.
func (g *Hypergraph) AddNode(id, phase string, cfg NodeConfig) error {
	if id == "" || strings.HasPrefix(id, "__") {
		return ErrInvalidNodeID
	}
	if _, exists := g.nodes[id]; exists {
		return ErrDuplicateNode
	}
	if cfg.Params == nil {
		cfg.Params = Metadata{}
	}
	g.nodes[id] = &Node{
		ID:        id,
		Phase:     phase,
		Config:    cfg,
		Status:    StatusIdle,
		CreatedAt: time.Now(),
	}
	return nil
}

// AddEdge links source→target with the given stream configuration.
// The stream name defaults to DefaultStream and the remaining config
// fields to their documented defaults. The edge ID is derived from
// (source, target, stream), so adding the same triple twice overwrites
// the earlier edge.
//
// Returns ErrUnknownSourceNode or ErrUnknownTargetNode when an endpoint
// is not in the graph.
func (g *Hypergraph) AddEdge(source, target string, cfg EdgeConfig) (*Edge, error) {
	if _, ok := g.nodes[source]; !ok {
		return nil, ErrUnknownSourceNode
	}
	if _, ok := g.nodes[target]; !ok {
		return nil, ErrUnknownTargetNode
	}
	cfg = cfg.normalize()
	e := &Edge{
		ID:        EdgeID(source, target, cfg.Stream),
		Source:    source,
		Target:    target,
		Stream:    cfg.Stream,
		Config:    cfg,
		Active:    true,
		CreatedAt: time.Now(),
	}
	g.edges[e.ID] = e
	return e, nil
}

// RemoveNode deletes the node and cascades removal of every edge whose
// source or target equals id. Removing an absent node is a no-op.
func (g *Hypergraph) RemoveNode(id string) {
	if _, ok := g.nodes[id]; !ok {
		return
	}
	delete(g.nodes, id)
	for eid, e := range g.edges {
		if e.Source == id || e.Target == id {
			delete(g.edges, eid)
		}
	}
}

// Node returns the node with the given ID and true, or nil and false.
// The pointer refers to the stored node; mutations affect the graph.
func (g *Hypergraph) Node(id string) (*Node, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// Edge returns the edge with the given ID and true, or nil and false.
func (g *Hypergraph) Edge(id string) (*Edge, bool) {
	e, ok := g.edges[id]
	return e, ok
}

// Nodes returns all nodes sorted by ID.
func (g *Hypergraph) Nodes() []*Node {
	nodes := make([]*Node, 0, len(g.nodes))
	for _, n := range g.nodes {
		nodes = append(nodes, n)
	}
	slices.SortFunc(nodes, func(a, b *Node) int {
		return strings.Compare(a.ID, b.ID)
	})
	return nodes
}

// Edges returns all edges sorted by ID.
func (g *Hypergraph) Edges() []*Edge {
	edges := make([]*Edge, 0, len(g.edges))
	for _, e := range g.edges {
		edges = append(edges, e)
	}
	slices.SortFunc(edges, func(a, b *Edge) int {
		return strings.Compare(a.ID, b.ID)
	})
	return edges
}

// NodeCount returns the number of nodes in the graph.
func (g *Hypergraph) NodeCount() int { return len(g.nodes) }

// EdgeCount returns the number of edges in the graph.
func (g *Hypergraph) EdgeCount() int { return len(g.edges) }

// Incoming returns the edges targeting id, sorted by edge ID.
func (g *Hypergraph) Incoming(id string) []*Edge {
	var in []*Edge
	for _, e := range g.Edges() {
		if e.Target == id {
			in = append(in, e)
		}
	}
	return in
}

// Outgoing returns the edges originating at id, sorted by edge ID.
func (g *Hypergraph) Outgoing(id string) []*Edge {
	var out []*Edge
	for _, e := range g.Edges() {
		if e.Source == id {
			out = append(out, e)
		}
	}
	return out
}

// Neighbors returns the IDs of nodes directly connected to id in either
// direction, deduplicated and sorted.
func (g *Hypergraph) Neighbors(id string) []string {
	seen := make(map[string]bool)
	for _, e := range g.edges {
		if e.Source == id {
			seen[e.Target] = true
		}
		if e.Target == id {
			seen[e.Source] = true
		}
	}
	ids := make([]string, 0, len(seen))
	for n := range seen {
		ids = append(ids, n)
	}
	slices.Sort(ids)
	return ids
}

// Predecessors returns the IDs of direct upstream nodes of id,
// deduplicated and sorted.
func (g *Hypergraph) Predecessors(id string) []string {
	seen := make(map[string]bool)
	for _, e := range g.edges {
		if e.Target == id {
			seen[e.Source] = true
		}
	}
	ids := make([]string, 0, len(seen))
	for n := range seen {
		ids = append(ids, n)
	}
	slices.Sort(ids)
	return ids
}

// Successors returns the IDs of direct downstream nodes of id,
// deduplicated and sorted.
func (g *Hypergraph) Successors(id string) []string {
	seen := make(map[string]bool)
	for _, e := range g.edges {
		if e.Source == id {
			seen[e.Target] = true
		}
	}
	ids := make([]string, 0, len(seen))
	for n := range seen {
		ids = append(ids, n)
	}
	slices.Sort(ids)
	return ids
}

// Stats aggregates graph-level counts.
type Stats struct {
	Nodes       int  `json:"nodes"`
	Edges       int  `json:"edges"`
	Phases      int  `json:"phases"` // distinct phase categories
	Running     bool `json:"running"`
	TotalRuns   int  `json:"total_runs"`
	TotalErrors int  `json:"total_errors"`
}

// Stats returns aggregate counts over the graph: node and edge totals,
// distinct phase categories, the running flag, and the summed run and
// error counters across all nodes.
func (g *Hypergraph) Stats() Stats {
	phases := make(map[string]bool)
	s := Stats{Nodes: len(g.nodes), Edges: len(g.edges), Running: g.running}
	for _, n := range g.nodes {
		phases[n.Phase] = true
		s.TotalRuns += n.RunCount
		s.TotalErrors += n.ErrorCount
	}
	s.Phases = len(phases)
	return s
}

// Clone returns a deep, independent copy of the graph. The clone shares
// no mutable substructure with the original; it keeps the same ID and
// metadata so exported documents stay comparable.
func (g *Hypergraph) Clone() *Hypergraph {
	c := &Hypergraph{
		id:           g.id,
		name:         g.name,
		version:      g.version,
		createdAt:    g.createdAt,
		nodes:        make(map[string]*Node, len(g.nodes)),
		edges:        make(map[string]*Edge, len(g.edges)),
		running:      g.running,
		currentPhase: g.currentPhase,
		lastOrder:    slices.Clone(g.lastOrder),
		lastError:    g.lastError,
	}
	for id, n := range g.nodes {
		c.nodes[id] = n.clone()
	}
	for id, e := range g.edges {
		c.edges[id] = e.clone()
	}
	return c
}

// BeginRun records the start of an execution: the running flag is set and
// the computed order retained for status queries.
func (g *Hypergraph) BeginRun(order []string) {
	g.running = true
	g.lastOrder = slices.Clone(order)
	g.lastError = ""
	g.currentPhase = ""
}

// SetCurrentPhase records the phase currently executing.
func (g *Hypergraph) SetCurrentPhase(id string) { g.currentPhase = id }

// EndRun clears the running flag. A non-empty message records the error
// that ended the run.
func (g *Hypergraph) EndRun(errMsg string) {
	g.running = false
	g.currentPhase = ""
	g.lastError = errMsg
}

// RestoreState reinstates run bookkeeping from a serialized document.
func (g *Hypergraph) RestoreState(running bool, currentPhase string, order []string, lastError string) {
	g.running = running
	g.currentPhase = currentPhase
	g.lastOrder = slices.Clone(order)
	g.lastError = lastError
}

// Running reports whether a run is in progress.
func (g *Hypergraph) Running() bool { return g.running }

// CurrentPhase returns the phase currently executing, or "" outside runs.
func (g *Hypergraph) CurrentPhase() string { return g.currentPhase }

// ExecutionOrder returns a copy of the most recently computed topological
// order, or nil before the first run.
func (g *Hypergraph) ExecutionOrder() []string { return slices.Clone(g.lastOrder) }

// LastError returns the message of the error that ended the most recent
// run, or "" if it succeeded.
func (g *Hypergraph) LastError() string { return g.lastError }
