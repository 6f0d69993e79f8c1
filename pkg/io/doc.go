// Package io provides JSON import and export for pipeline hypergraphs.
//
// # Overview
//
// This package serializes a hypergraph - its phase nodes, stream edges,
// per-node configuration, and run bookkeeping - to a stable JSON document.
// The format is designed for:
//
//   - Handing graph definitions between the CLI and the control-plane server
//   - Caching compiled batch manifests for faster re-runs
//   - Integration with external tools that produce or consume graph data
//   - Round-trip preservation: export, re-import, and export identically
//
// # JSON Format
//
// The document carries graph metadata plus two arrays:
//
//	{
//	  "id": "6e1f...",
//	  "name": "ingest",
//	  "version": "1.0",
//	  "nodes": [
//	    {"id": "acquire", "phase": "acquisition", "status": "idle"},
//	    {"id": "process", "phase": "processing", "status": "idle"}
//	  ],
//	  "edges": [
//	    {"source": "acquire", "target": "process", "stream": "raw"}
//	  ]
//	}
//
// Node entries include the retry policy (retries, restart_delay_ms,
// timeout_ms), the continue_on_error flag, freeform params, and run
// counters. Edge entries include the declared stream configuration
// (buffer_size, backpressure, multiplex) and traffic counters.
//
// # Capabilities
//
// Executor functions are code and cannot be serialized. Exported documents
// omit them; imported nodes fall back to the pass-through capability until
// the caller reattaches real executors via [hypergraph.Node] config.
//
// # Import
//
// Use [ImportJSON] to read a graph from a file path, or [ReadJSON] to read
// from any io.Reader:
//
//	g, err := io.ImportJSON("pipeline.json")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// Both functions validate the document structure. Errors are wrapped with
// context about which node or edge caused the problem. Note that imported
// graphs may contain cycles; scheduling rejects them at run time.
//
// # Export
//
// Use [ExportJSON] to write a graph to a file, or [WriteJSON] to write to
// any io.Writer:
//
//	err := io.ExportJSON(g, "pipeline.json")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// The export preserves graph identity (ID, creation time), all node and
// edge state, and the bookkeeping of the most recent run. This enables
// full round-trip fidelity apart from executor functions.
//
// # Concurrency
//
// All functions in this package are safe to call concurrently with other
// readers of the same graph, but not with concurrent modifications or a
// run in progress. Imported graphs are independent instances.
package io
