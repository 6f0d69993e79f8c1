package registry

import (
	"context"
	"fmt"
	"time"

	"github.com/matzehuels/phaseline/pkg/observability"
)

const (
	// DefaultProbeInterval is how often a monitor probes its job.
	DefaultProbeInterval = 5 * time.Second

	// DefaultFailureThreshold is the number of consecutive failed probes
	// after which a job is declared unhealthy.
	DefaultFailureThreshold = 3

	// maxHealthSamples bounds the per-job health history.
	maxHealthSamples = 100
)

// HealthSample is one recorded probe outcome.
type HealthSample struct {
	Time    time.Time `json:"time"`
	Healthy bool      `json:"healthy"`
	Error   string    `json:"error,omitempty"`
}

// ProbeFunc checks a job's health. A nil return means healthy. The
// status argument is the registry's current snapshot of the job.
type ProbeFunc func(ctx context.Context, s Status) error

// MonitorConfig configures job supervision.
type MonitorConfig struct {
	// Interval between probes. Defaults to DefaultProbeInterval.
	Interval time.Duration

	// Threshold is the number of consecutive failed probes that marks
	// the job unhealthy. Defaults to DefaultFailureThreshold.
	Threshold int

	// Restart automatically restarts the job once it is marked
	// unhealthy. The failure counter resets after each restart.
	Restart bool

	// Probe overrides the default check, which reports healthy while
	// the job's state is StateRunning.
	Probe ProbeFunc
}

// Monitor supervises the named job until ctx is cancelled, probing it on
// a fixed interval. Each probe outcome lands in the job's bounded health
// history. After Threshold consecutive failures the job is declared
// unhealthy; with cfg.Restart set it is restarted and the counter reset,
// otherwise the counter resets and counting starts over.
//
// Monitor blocks; run it in its own goroutine. It returns nil when ctx
// is cancelled, or ErrUnknownJob if the job was never started.
func (r *Registry) Monitor(ctx context.Context, name string, cfg MonitorConfig) error {
	r.mu.Lock()
	_, ok := r.jobs[name]
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}

	if cfg.Interval <= 0 {
		cfg.Interval = DefaultProbeInterval
	}
	if cfg.Threshold <= 0 {
		cfg.Threshold = DefaultFailureThreshold
	}
	probe := cfg.Probe
	if probe == nil {
		probe = defaultProbe
	}

	r.logger.Debug("monitor started", "job", name, "interval", cfg.Interval, "threshold", cfg.Threshold)

	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Debug("monitor stopped", "job", name)
			return nil
		case <-ticker.C:
		}

		status, ok := r.Status(name)
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnknownJob, name)
		}

		err := probe(ctx, status)
		healthy := err == nil
		observability.Monitor().OnProbe(ctx, name, healthy)

		failures := r.recordProbe(name, healthy, err)
		if healthy {
			continue
		}

		r.logger.Warn("health probe failed", "job", name, "failures", failures, "error", err)
		if failures < cfg.Threshold {
			continue
		}

		observability.Monitor().OnUnhealthy(ctx, name, failures)
		r.resetFailures(name)

		if !cfg.Restart {
			r.logger.Error("job unhealthy", "job", name, "failures", failures)
			continue
		}

		if err := r.Restart(ctx, name); err != nil {
			r.logger.Error("restart failed", "job", name, "error", err)
			continue
		}
		if status, ok := r.Status(name); ok {
			observability.Monitor().OnRestart(ctx, name, status.Restarts)
		}
	}
}

// defaultProbe reports healthy while the job is running.
func defaultProbe(_ context.Context, s Status) error {
	if s.State != StateRunning {
		return fmt.Errorf("job is %s", s.State)
	}
	return nil
}

// recordProbe appends a health sample and returns the consecutive
// failure count after this probe.
func (r *Registry) recordProbe(name string, healthy bool, probeErr error) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[name]
	if !ok {
		return 0
	}

	sample := HealthSample{Time: time.Now(), Healthy: healthy}
	if probeErr != nil {
		sample.Error = probeErr.Error()
	}
	j.health = append(j.health, sample)
	if len(j.health) > maxHealthSamples {
		j.health = j.health[len(j.health)-maxHealthSamples:]
	}

	if healthy {
		j.failures = 0
	} else {
		j.failures++
	}
	return j.failures
}

// resetFailures clears the consecutive failure counter.
func (r *Registry) resetFailures(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if j, ok := r.jobs[name]; ok {
		j.failures = 0
	}
}
