package hypergraph

import (
	"fmt"
	"time"
)

// DefaultStream is the stream name used when an edge is added without one.
const DefaultStream = "data"

// DefaultBufferSize is the declared buffer size for edges that do not set
// their own. Enforcement belongs to the external stream router.
const DefaultBufferSize = 1024

// Backpressure names a strategy the external stream router should apply
// when a consumer falls behind. The core records it but never enforces it.
type Backpressure string

// Backpressure policies.
const (
	BackpressureDropOldest Backpressure = "drop_oldest"
	BackpressureBlock      Backpressure = "block"
	BackpressureThrottle   Backpressure = "throttle"
)

// EdgeConfig carries the declarative stream configuration for an edge.
type EdgeConfig struct {
	Stream       string       // stream name; empty means DefaultStream
	BufferSize   int          // declared buffer size; zero means DefaultBufferSize
	Backpressure Backpressure // consumer-behind strategy; empty means block
	Multiplex    bool         // whether the stream may fan out to several consumers
}

// Edge is a directed source→target link labelled with a stream name.
// Its ID is derived from (source, target, stream), so re-adding the same
// triple overwrites the prior edge.
type Edge struct {
	ID               string
	Source           string
	Target           string
	Stream           string
	Config           EdgeConfig
	Active           bool
	MessagesPassed   int64
	BytesTransferred int64
	CreatedAt        time.Time
}

// EdgeID returns the deterministic identifier for the (source, target,
// stream) triple.
func EdgeID(source, target, stream string) string {
	return fmt.Sprintf("%s:%s:%s", source, target, stream)
}

// RecordMessage bumps the edge's traffic counters by one message of the
// given encoded size.
func (e *Edge) RecordMessage(bytes int64) {
	e.MessagesPassed++
	e.BytesTransferred += bytes
}

func (e *Edge) clone() *Edge {
	c := *e
	return &c
}

// normalize applies documented defaults to an edge configuration.
func (c EdgeConfig) normalize() EdgeConfig {
	if c.Stream == "" {
		c.Stream = DefaultStream
	}
	if c.BufferSize == 0 {
		c.BufferSize = DefaultBufferSize
	}
	if c.Backpressure == "" {
		c.Backpressure = BackpressureBlock
	}
	return c
}
