package hypergraph_test

import (
	"fmt"

	"github.com/matzehuels/phaseline/pkg/hypergraph"
	"github.com/matzehuels/phaseline/pkg/hypergraph/schedule"
)

func ExampleHypergraph_basic() {
	// A small pipeline: acquire → process → store
	g := hypergraph.New("ingest")
	_ = g.AddNode("acquire", "acquisition", hypergraph.NodeConfig{})
	_ = g.AddNode("process", "processing", hypergraph.NodeConfig{})
	_ = g.AddNode("store", "storage", hypergraph.NodeConfig{})
	_, _ = g.AddEdge("acquire", "process", hypergraph.EdgeConfig{Stream: "raw"})
	_, _ = g.AddEdge("process", "store", hypergraph.EdgeConfig{})

	fmt.Println("Nodes:", g.NodeCount())
	fmt.Println("Edges:", g.EdgeCount())
	// Output:
	// Nodes: 3
	// Edges: 2
}

func ExampleHypergraph_traversal() {
	// Fan-out: acquire feeds two independent consumers
	g := hypergraph.New("fanout")
	_ = g.AddNode("acquire", "acquisition", hypergraph.NodeConfig{})
	_ = g.AddNode("validate", "processing", hypergraph.NodeConfig{})
	_ = g.AddNode("enrich", "processing", hypergraph.NodeConfig{})
	_, _ = g.AddEdge("acquire", "validate", hypergraph.EdgeConfig{})
	_, _ = g.AddEdge("acquire", "enrich", hypergraph.EdgeConfig{})

	fmt.Println("Successors of acquire:", g.Successors("acquire"))
	fmt.Println("Predecessors of enrich:", g.Predecessors("enrich"))
	// Output:
	// Successors of acquire: [enrich validate]
	// Predecessors of enrich: [acquire]
}

func ExampleHypergraph_schedule() {
	// Diamond: acquire fans out, store joins both branches back.
	g := hypergraph.New("diamond")
	_ = g.AddNode("acquire", "acquisition", hypergraph.NodeConfig{})
	_ = g.AddNode("validate", "processing", hypergraph.NodeConfig{})
	_ = g.AddNode("enrich", "processing", hypergraph.NodeConfig{})
	_ = g.AddNode("store", "storage", hypergraph.NodeConfig{})
	_, _ = g.AddEdge("acquire", "validate", hypergraph.EdgeConfig{})
	_, _ = g.AddEdge("acquire", "enrich", hypergraph.EdgeConfig{})
	_, _ = g.AddEdge("validate", "store", hypergraph.EdgeConfig{})
	_, _ = g.AddEdge("enrich", "store", hypergraph.EdgeConfig{})

	order, _ := schedule.TopoSort(g)
	levels := schedule.Levels(g, order)

	fmt.Println("Order:", order)
	for i, level := range levels {
		fmt.Printf("Level %d: %v\n", i, level)
	}
	// Output:
	// Order: [acquire enrich validate store]
	// Level 0: [acquire]
	// Level 1: [enrich validate]
	// Level 2: [store]
}
