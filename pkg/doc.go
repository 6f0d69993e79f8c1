// Package pkg provides the core libraries for Phaseline pipeline
// orchestration.
//
// # Overview
//
// Phaseline models a data pipeline as a hypergraph: phases are nodes and
// the named streams between them are directed edges. The pkg directory is
// organized into five main areas:
//
//  1. [hypergraph] - Graph structure: nodes, stream edges, run state
//  2. [pipeline] - Orchestration: scheduling, execution, batch manifests
//  3. [executor] - Single-phase invocation with retries and timeouts
//  4. [registry] - Long-running phase jobs and health supervision
//  5. [io], [cache], [httputil] - Persistence, caching, and the
//     control-plane client
//
// # Architecture
//
// The typical data flow through Phaseline:
//
//	Manifest (TOML) or graph document (JSON)
//	         ↓
//	    [pipeline] package (compile + schedule)
//	         ↓
//	    [executor] package (per-phase invocation)
//	         ↓
//	    Run result + updated graph counters
//
// Long-lived deployments host the same graph under [registry] jobs, with
// the internal control-plane server exposing status and lifecycle
// operations over HTTP.
//
// # Quick Start
//
// Build a graph and run it:
//
//	g := hypergraph.New("ingest")
//	g.AddNode("acquire", "acquisition", hypergraph.NodeConfig{Executor: fetch})
//	g.AddNode("process", "processing", hypergraph.NodeConfig{Executor: clean})
//	g.AddEdge("acquire", "process", hypergraph.EdgeConfig{Stream: "raw"})
//
//	runner := pipeline.NewRunner(nil, logger)
//	result, err := runner.Execute(ctx, g, input)
package pkg
