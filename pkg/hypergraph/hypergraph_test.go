package hypergraph

import (
	"errors"
	"reflect"
	"testing"
	"time"
)

func TestAddNode(t *testing.T) {
	g := New("test")

	if err := g.AddNode("acquire", "acquisition", NodeConfig{}); err != nil {
		t.Fatalf("AddNode() error: %v", err)
	}
	if g.NodeCount() != 1 {
		t.Errorf("NodeCount() = %d, want 1", g.NodeCount())
	}

	n, ok := g.Node("acquire")
	if !ok {
		t.Fatal("Node() should find acquire")
	}
	if n.Status != StatusIdle {
		t.Errorf("new node status = %s, want %s", n.Status, StatusIdle)
	}
	if n.Config.Params == nil {
		t.Error("params should be initialized")
	}
	if n.CreatedAt.IsZero() {
		t.Error("CreatedAt should be set")
	}
}

func TestAddNodeErrors(t *testing.T) {
	g := New("test")
	if err := g.AddNode("a", "", NodeConfig{}); err != nil {
		t.Fatalf("AddNode() error: %v", err)
	}

	tests := []struct {
		name string
		id   string
		want error
	}{
		{"empty ID", "", ErrInvalidNodeID},
		{"reserved prefix", "__input__", ErrInvalidNodeID},
		{"duplicate", "a", ErrDuplicateNode},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := g.AddNode(tt.id, "", NodeConfig{})
			if !errors.Is(err, tt.want) {
				t.Errorf("AddNode(%q) = %v, want %v", tt.id, err, tt.want)
			}
		})
	}
}

func TestAddEdge(t *testing.T) {
	g := New("test")
	mustAddNode(t, g, "a", "b")

	e, err := g.AddEdge("a", "b", EdgeConfig{})
	if err != nil {
		t.Fatalf("AddEdge() error: %v", err)
	}
	if e.Stream != DefaultStream {
		t.Errorf("stream = %s, want %s", e.Stream, DefaultStream)
	}
	if e.Config.BufferSize != DefaultBufferSize {
		t.Errorf("buffer size = %d, want %d", e.Config.BufferSize, DefaultBufferSize)
	}
	if e.Config.Backpressure != BackpressureBlock {
		t.Errorf("backpressure = %s, want %s", e.Config.Backpressure, BackpressureBlock)
	}
	if !e.Active {
		t.Error("new edge should be active")
	}
	if e.ID != EdgeID("a", "b", DefaultStream) {
		t.Errorf("edge ID = %s", e.ID)
	}
}

func TestAddEdgeUnknownEndpoints(t *testing.T) {
	g := New("test")
	mustAddNode(t, g, "a")

	if _, err := g.AddEdge("ghost", "a", EdgeConfig{}); !errors.Is(err, ErrUnknownSourceNode) {
		t.Errorf("unknown source: %v", err)
	}
	if _, err := g.AddEdge("a", "ghost", EdgeConfig{}); !errors.Is(err, ErrUnknownTargetNode) {
		t.Errorf("unknown target: %v", err)
	}
}

func TestAddEdgeSameTripleOverwrites(t *testing.T) {
	g := New("test")
	mustAddNode(t, g, "a", "b")

	first, _ := g.AddEdge("a", "b", EdgeConfig{Stream: "raw", BufferSize: 10})
	first.RecordMessage(100)

	second, err := g.AddEdge("a", "b", EdgeConfig{Stream: "raw", BufferSize: 20})
	if err != nil {
		t.Fatalf("AddEdge() error: %v", err)
	}

	if g.EdgeCount() != 1 {
		t.Errorf("EdgeCount() = %d, want 1", g.EdgeCount())
	}
	stored, _ := g.Edge(EdgeID("a", "b", "raw"))
	if stored.Config.BufferSize != 20 {
		t.Errorf("overwrite should keep the newer config, got buffer %d", stored.Config.BufferSize)
	}
	if stored.MessagesPassed != 0 {
		t.Error("overwrite should reset counters")
	}
	_ = second
}

func TestParallelStreamsBetweenSameNodes(t *testing.T) {
	g := New("test")
	mustAddNode(t, g, "a", "b")

	if _, err := g.AddEdge("a", "b", EdgeConfig{Stream: "raw"}); err != nil {
		t.Fatal(err)
	}
	if _, err := g.AddEdge("a", "b", EdgeConfig{Stream: "metrics"}); err != nil {
		t.Fatal(err)
	}

	if g.EdgeCount() != 2 {
		t.Errorf("EdgeCount() = %d, want 2 parallel streams", g.EdgeCount())
	}
}

func TestRemoveNodeCascades(t *testing.T) {
	g := New("test")
	mustAddNode(t, g, "a", "b", "c")
	g.AddEdge("a", "b", EdgeConfig{})
	g.AddEdge("b", "c", EdgeConfig{})
	g.AddEdge("a", "c", EdgeConfig{})

	g.RemoveNode("b")

	if g.NodeCount() != 2 {
		t.Errorf("NodeCount() = %d, want 2", g.NodeCount())
	}
	if g.EdgeCount() != 1 {
		t.Errorf("EdgeCount() = %d, want only a->c to survive", g.EdgeCount())
	}
	if _, ok := g.Edge(EdgeID("a", "c", DefaultStream)); !ok {
		t.Error("a->c should survive")
	}

	// Removing an absent node is a no-op
	g.RemoveNode("ghost")
	if g.NodeCount() != 2 {
		t.Error("RemoveNode of absent node should not change the graph")
	}
}

func TestNeighborsDeduplicated(t *testing.T) {
	g := New("test")
	mustAddNode(t, g, "a", "b", "c")
	g.AddEdge("a", "b", EdgeConfig{Stream: "raw"})
	g.AddEdge("a", "b", EdgeConfig{Stream: "metrics"})
	g.AddEdge("c", "a", EdgeConfig{})

	got := g.Neighbors("a")
	want := []string{"b", "c"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Neighbors(a) = %v, want %v", got, want)
	}

	if got := g.Predecessors("b"); !reflect.DeepEqual(got, []string{"a"}) {
		t.Errorf("Predecessors(b) = %v", got)
	}
	if got := g.Successors("a"); !reflect.DeepEqual(got, []string{"b"}) {
		t.Errorf("Successors(a) = %v", got)
	}
}

func TestStats(t *testing.T) {
	g := New("test")
	g.AddNode("a", "acquisition", NodeConfig{})
	g.AddNode("b", "processing", NodeConfig{})
	g.AddNode("c", "processing", NodeConfig{})
	g.AddEdge("a", "b", EdgeConfig{})

	na, _ := g.Node("a")
	na.RecordRun(time.Now())
	na.RecordRun(time.Now())
	nb, _ := g.Node("b")
	nb.RecordError()

	s := g.Stats()
	if s.Nodes != 3 || s.Edges != 1 {
		t.Errorf("Stats counts = %d/%d", s.Nodes, s.Edges)
	}
	if s.Phases != 2 {
		t.Errorf("Stats.Phases = %d, want 2 distinct categories", s.Phases)
	}
	if s.TotalRuns != 2 || s.TotalErrors != 1 {
		t.Errorf("Stats totals = %d runs / %d errors", s.TotalRuns, s.TotalErrors)
	}
}

func TestClone(t *testing.T) {
	g := New("test")
	g.AddNode("a", "acquisition", NodeConfig{Params: Metadata{"rate": 100}})
	g.AddNode("b", "processing", NodeConfig{})
	g.AddEdge("a", "b", EdgeConfig{Stream: "raw"})
	g.BeginRun([]string{"a", "b"})

	c := g.Clone()

	if c.ID() != g.ID() {
		t.Error("clone should keep the graph ID")
	}
	if !c.Running() {
		t.Error("clone should keep run state")
	}

	// Mutating the clone must not touch the original
	cn, _ := c.Node("a")
	cn.Config.Params["rate"] = 200
	cn.RecordError()
	ce, _ := c.Edge(EdgeID("a", "b", "raw"))
	ce.RecordMessage(64)

	on, _ := g.Node("a")
	if on.Config.Params["rate"] != 100 {
		t.Error("clone params should be independent")
	}
	if on.ErrorCount != 0 {
		t.Error("clone node counters should be independent")
	}
	oe, _ := g.Edge(EdgeID("a", "b", "raw"))
	if oe.MessagesPassed != 0 {
		t.Error("clone edge counters should be independent")
	}
}

func TestCloneNestedParams(t *testing.T) {
	g := New("test")
	g.AddNode("a", "processing", NodeConfig{Params: Metadata{
		"filter":   map[string]any{"band": "alpha"},
		"channels": []any{"c1", "c2"},
	}})

	c := g.Clone()

	// Mutating nested containers on the original must not leak into the clone.
	on, _ := g.Node("a")
	on.Config.Params["filter"].(map[string]any)["band"] = "beta"
	on.Config.Params["channels"].([]any)[0] = "c9"

	cn, _ := c.Node("a")
	if band := cn.Config.Params["filter"].(map[string]any)["band"]; band != "alpha" {
		t.Errorf("clone nested map = %v, want alpha", band)
	}
	if ch := cn.Config.Params["channels"].([]any)[0]; ch != "c1" {
		t.Errorf("clone nested slice = %v, want c1", ch)
	}
}

func TestRunStateLifecycle(t *testing.T) {
	g := New("test")
	mustAddNode(t, g, "a")

	g.BeginRun([]string{"a"})
	if !g.Running() {
		t.Error("BeginRun should set running")
	}
	g.SetCurrentPhase("a")
	if g.CurrentPhase() != "a" {
		t.Errorf("CurrentPhase() = %s", g.CurrentPhase())
	}

	g.EndRun("boom")
	if g.Running() {
		t.Error("EndRun should clear running")
	}
	if g.CurrentPhase() != "" {
		t.Error("EndRun should clear current phase")
	}
	if g.LastError() != "boom" {
		t.Errorf("LastError() = %s", g.LastError())
	}
	if !reflect.DeepEqual(g.ExecutionOrder(), []string{"a"}) {
		t.Errorf("ExecutionOrder() = %v", g.ExecutionOrder())
	}
}

func TestRestore(t *testing.T) {
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	g := Restore("fixed-id", "restored", "1.0", created)

	if g.ID() != "fixed-id" || g.Name() != "restored" {
		t.Errorf("Restore identity = %s/%s", g.ID(), g.Name())
	}
	if !g.CreatedAt().Equal(created) {
		t.Errorf("CreatedAt() = %v", g.CreatedAt())
	}

	// Missing fields fall back to fresh values
	g2 := Restore("", "x", "", time.Time{})
	if g2.ID() == "" || g2.StructureVersion() != Version || g2.CreatedAt().IsZero() {
		t.Error("Restore should fill missing identity fields")
	}
}

func mustAddNode(t *testing.T, g *Hypergraph, ids ...string) {
	t.Helper()
	for _, id := range ids {
		if err := g.AddNode(id, "", NodeConfig{}); err != nil {
			t.Fatalf("AddNode(%s) error: %v", id, err)
		}
	}
}
