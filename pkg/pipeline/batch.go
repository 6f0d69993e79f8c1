package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/matzehuels/phaseline/pkg/cache"
	"github.com/matzehuels/phaseline/pkg/hypergraph"
	graphio "github.com/matzehuels/phaseline/pkg/io"
	"github.com/matzehuels/phaseline/pkg/observability"
)

// DefaultCacheTTL is how long compiled manifests stay cached.
const DefaultCacheTTL = 24 * time.Hour

// Manifest is a declarative pipeline definition, typically loaded from a
// TOML file:
//
//	[pipeline]
//	name = "ingest"
//	parallel = true
//
//	[[phases]]
//	name = "acquire"
//	phase = "acquisition"
//	stream = "raw"
//
//	[[phases]]
//	name = "process"
//	phase = "processing"
//	dependencies = ["acquire"]
type Manifest struct {
	Pipeline PipelineConfig `toml:"pipeline"`
	Phases   []PhaseSpec    `toml:"phases"`
}

// PipelineConfig holds manifest-level settings.
type PipelineConfig struct {
	Name     string `toml:"name"`
	Parallel bool   `toml:"parallel"`
	Monitor  bool   `toml:"monitor"`
}

// PhaseSpec describes one phase of a batch manifest. Dependencies name
// earlier phases; one edge is created per dependency, labelled with the
// dependency's declared output stream.
type PhaseSpec struct {
	Name         string   `toml:"name"`
	Phase        string   `toml:"phase"`
	Dependencies []string `toml:"dependencies"`

	// Stream names the output stream this phase produces. Defaults to
	// the standard stream name.
	Stream string `toml:"stream"`

	// Execution policy, mirroring hypergraph.NodeConfig.
	ContinueOnError bool           `toml:"continue_on_error"`
	Retries         int            `toml:"retries"`
	RestartDelayMS  int64          `toml:"restart_delay_ms"`
	TimeoutMS       int64          `toml:"timeout_ms"`
	Params          map[string]any `toml:"params"`

	// Declared stream transport settings for outgoing edges.
	BufferSize   int    `toml:"buffer_size"`
	Backpressure string `toml:"backpressure"`
	Multiplex    bool   `toml:"multiplex"`
}

// LoadManifest reads and parses a TOML manifest file.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return ParseManifest(data)
}

// ParseManifest parses TOML manifest bytes and validates the result.
func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Validate checks manifest consistency: phases are named, names are
// unique, and every dependency refers to a declared phase.
func (m *Manifest) Validate() error {
	if len(m.Phases) == 0 {
		return fmt.Errorf("manifest declares no phases")
	}
	names := make(map[string]bool, len(m.Phases))
	for _, p := range m.Phases {
		if p.Name == "" {
			return fmt.Errorf("phase with empty name")
		}
		if names[p.Name] {
			return fmt.Errorf("duplicate phase name %q", p.Name)
		}
		names[p.Name] = true
	}
	for _, p := range m.Phases {
		for _, dep := range p.Dependencies {
			if !names[dep] {
				return fmt.Errorf("phase %q depends on unknown phase %q", p.Name, dep)
			}
		}
	}
	return nil
}

// Options converts manifest-level settings into run options.
func (m *Manifest) Options() Options {
	return Options{
		Parallel: m.Pipeline.Parallel,
		Monitor:  m.Pipeline.Monitor,
	}
}

// BuildGraph constructs a hypergraph from a validated manifest. The
// executors map attaches a capability per phase name; phases without an
// entry fall back to the pass-through capability.
func BuildGraph(m *Manifest, executors map[string]hypergraph.Capability) (*hypergraph.Hypergraph, error) {
	name := m.Pipeline.Name
	if name == "" {
		name = "pipeline"
	}
	g := hypergraph.New(name)

	specs := make(map[string]PhaseSpec, len(m.Phases))
	for _, p := range m.Phases {
		specs[p.Name] = p
		cfg := hypergraph.NodeConfig{
			Executor:        executors[p.Name],
			ContinueOnError: p.ContinueOnError,
			Retries:         p.Retries,
			RestartDelay:    time.Duration(p.RestartDelayMS) * time.Millisecond,
			Timeout:         time.Duration(p.TimeoutMS) * time.Millisecond,
			Params:          p.Params,
		}
		if err := g.AddNode(p.Name, p.Phase, cfg); err != nil {
			return nil, fmt.Errorf("phase %s: %w", p.Name, err)
		}
	}

	// Edges carry the producing phase's declared stream settings.
	for _, p := range m.Phases {
		for _, dep := range p.Dependencies {
			src := specs[dep]
			_, err := g.AddEdge(dep, p.Name, hypergraph.EdgeConfig{
				Stream:       src.Stream,
				BufferSize:   src.BufferSize,
				Backpressure: hypergraph.Backpressure(src.Backpressure),
				Multiplex:    src.Multiplex,
			})
			if err != nil {
				return nil, fmt.Errorf("edge %s->%s: %w", dep, p.Name, err)
			}
		}
	}

	return g, nil
}

// Compile parses manifest bytes and builds the graph, consulting the
// cache for a previously compiled document. Returns the graph and
// whether it came from cache.
//
// Cached documents carry no executor functions, so caching only applies
// when the executors map is empty (pass-through pipelines, inspection,
// serving). With executors attached the manifest is always rebuilt.
func (r *Runner) Compile(ctx context.Context, data []byte, executors map[string]hypergraph.Capability) (*hypergraph.Hypergraph, bool, error) {
	if len(executors) > 0 {
		m, err := ParseManifest(data)
		if err != nil {
			return nil, false, err
		}
		g, err := BuildGraph(m, executors)
		return g, false, err
	}

	key := cache.Key("manifest", cache.Hash(data))
	if doc, ok, err := r.Cache.Get(ctx, key); err == nil && ok {
		g, err := graphio.ReadJSON(bytes.NewReader(doc))
		if err == nil {
			observability.Cache().OnCacheHit(ctx, "manifest")
			return g, true, nil
		}
		// Corrupt entry, fall through to a rebuild.
		_ = r.Cache.Delete(ctx, key)
	}
	observability.Cache().OnCacheMiss(ctx, "manifest")

	m, err := ParseManifest(data)
	if err != nil {
		return nil, false, err
	}
	g, err := BuildGraph(m, nil)
	if err != nil {
		return nil, false, err
	}

	var buf bytes.Buffer
	if err := graphio.WriteJSON(g, &buf); err == nil {
		if err := r.Cache.Set(ctx, key, buf.Bytes(), DefaultCacheTTL); err == nil {
			observability.Cache().OnCacheSet(ctx, "manifest", buf.Len())
		}
	}

	return g, false, nil
}

// Batch builds a manifest's graph and runs it in one step. Use
// [Manifest.Options] for opts to honor manifest-level settings.
func (r *Runner) Batch(ctx context.Context, m *Manifest, executors map[string]hypergraph.Capability, opts Options) (*Result, error) {
	g, err := BuildGraph(m, executors)
	if err != nil {
		return nil, err
	}
	return r.Pipeline(ctx, g, opts)
}
