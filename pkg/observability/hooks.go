// Package observability provides hooks for metrics, tracing, and logging.
//
// This package enables optional instrumentation without adding hard dependencies
// on specific observability backends. Consumers can register hooks at startup
// to receive events about pipeline runs, cache operations, and phase monitoring.
//
// # Architecture
//
// The package uses a simple hooks pattern:
//   - Define hook interfaces for different event categories
//   - Provide no-op default implementations
//   - Allow registration of custom implementations at startup
//
// This approach:
//   - Avoids import cycles (hooks are registered by main, not by libraries)
//   - Keeps the core library dependency-free from observability frameworks
//   - Allows different backends (OpenTelemetry, Prometheus, DataDog, etc.)
//
// # Usage
//
// Register hooks at application startup:
//
//	func main() {
//	    observability.SetRunHooks(&myRunHooks{})
//	    observability.SetCacheHooks(&myCacheHooks{})
//	    // ... run application
//	}
//
// Libraries call hooks to emit events:
//
//	observability.Run().OnPhaseStart(ctx, runID, phase)
//	// ... execute phase ...
//	observability.Run().OnPhaseComplete(ctx, runID, phase, attempts, duration, err)
package observability

import (
	"context"
	"sync"
	"time"
)

// =============================================================================
// Run Hooks
// =============================================================================

// RunHooks receives events from pipeline runs.
type RunHooks interface {
	// Run lifecycle events
	OnRunStart(ctx context.Context, runID string, phases int, parallel bool)
	OnRunComplete(ctx context.Context, runID, status string, duration time.Duration, err error)

	// Phase events
	OnPhaseStart(ctx context.Context, runID, phase string)
	OnPhaseComplete(ctx context.Context, runID, phase string, attempts int, duration time.Duration, err error)
}

// =============================================================================
// Cache Hooks
// =============================================================================

// CacheHooks receives events from cache operations.
type CacheHooks interface {
	// OnCacheHit records a cache hit.
	OnCacheHit(ctx context.Context, keyType string)

	// OnCacheMiss records a cache miss.
	OnCacheMiss(ctx context.Context, keyType string)

	// OnCacheSet records a cache write.
	OnCacheSet(ctx context.Context, keyType string, size int)
}

// =============================================================================
// Monitor Hooks
// =============================================================================

// MonitorHooks receives events from job health monitoring.
type MonitorHooks interface {
	// OnProbe records a single health probe outcome.
	OnProbe(ctx context.Context, job string, healthy bool)

	// OnUnhealthy records a job crossing its failure threshold.
	OnUnhealthy(ctx context.Context, job string, failures int)

	// OnRestart records an automatic restart of an unhealthy job.
	OnRestart(ctx context.Context, job string, restarts int)
}

// =============================================================================
// No-op Implementations
// =============================================================================

// NoopRunHooks is a no-op implementation of RunHooks.
type NoopRunHooks struct{}

func (NoopRunHooks) OnRunStart(context.Context, string, int, bool)                        {}
func (NoopRunHooks) OnRunComplete(context.Context, string, string, time.Duration, error) {}
func (NoopRunHooks) OnPhaseStart(context.Context, string, string)                        {}
func (NoopRunHooks) OnPhaseComplete(context.Context, string, string, int, time.Duration, error) {
}

// NoopCacheHooks is a no-op implementation of CacheHooks.
type NoopCacheHooks struct{}

func (NoopCacheHooks) OnCacheHit(context.Context, string)      {}
func (NoopCacheHooks) OnCacheMiss(context.Context, string)     {}
func (NoopCacheHooks) OnCacheSet(context.Context, string, int) {}

// NoopMonitorHooks is a no-op implementation of MonitorHooks.
type NoopMonitorHooks struct{}

func (NoopMonitorHooks) OnProbe(context.Context, string, bool)    {}
func (NoopMonitorHooks) OnUnhealthy(context.Context, string, int) {}
func (NoopMonitorHooks) OnRestart(context.Context, string, int)   {}

// =============================================================================
// Global Hook Registry
// =============================================================================

var (
	runHooks     RunHooks     = NoopRunHooks{}
	cacheHooks   CacheHooks   = NoopCacheHooks{}
	monitorHooks MonitorHooks = NoopMonitorHooks{}
	hooksMu      sync.RWMutex
)

// SetRunHooks registers custom run hooks.
// This should be called once at application startup before any pipeline runs.
func SetRunHooks(h RunHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		runHooks = h
	}
}

// SetCacheHooks registers custom cache hooks.
// This should be called once at application startup before any cache operations.
func SetCacheHooks(h CacheHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		cacheHooks = h
	}
}

// SetMonitorHooks registers custom monitor hooks.
// This should be called once at application startup before any monitors start.
func SetMonitorHooks(h MonitorHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		monitorHooks = h
	}
}

// Run returns the registered run hooks.
func Run() RunHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return runHooks
}

// Cache returns the registered cache hooks.
func Cache() CacheHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return cacheHooks
}

// Monitor returns the registered monitor hooks.
func Monitor() MonitorHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return monitorHooks
}

// Reset restores all hooks to their no-op defaults.
// This is primarily useful for testing.
func Reset() {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	runHooks = NoopRunHooks{}
	cacheHooks = NoopCacheHooks{}
	monitorHooks = NoopMonitorHooks{}
}
