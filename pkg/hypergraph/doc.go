// Package hypergraph implements the core pipeline graph for phaseline.
//
// A Hypergraph owns a set of phase nodes and the named-stream edges that
// connect them. Nodes represent units of pipeline work (acquisition,
// preprocessing, analysis, ...) and carry an executor capability plus
// per-phase retry and failure-tolerance configuration. Edges are directed
// source→target links labelled with a stream name; despite the package
// name they remain binary links, not multi-endpoint hyperedges.
//
// The package is purely structural: building, querying and mutating the
// graph. Scheduling lives in the schedule subpackage and execution in
// pkg/pipeline. Edge configuration such as buffer sizes and backpressure
// policies is declarative metadata for an external stream router and is
// never enforced here.
//
// # Usage
//
//	g := hypergraph.New("eeg")
//	_ = g.AddNode("acquire", "acquisition", hypergraph.NodeConfig{})
//	_ = g.AddNode("filter", "preprocessing", hypergraph.NodeConfig{})
//	_, _ = g.AddEdge("acquire", "filter", hypergraph.EdgeConfig{Stream: "raw"})
//
// A Hypergraph is not safe for concurrent use without external
// synchronization. During a pipeline run the orchestrator is the only
// writer; see pkg/pipeline for the ownership rules.
package hypergraph
