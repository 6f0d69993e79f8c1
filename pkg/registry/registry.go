// Package registry tracks long-running phase jobs: starting, stopping,
// restarting, and supervising them with periodic health probes.
//
// A job is any function that runs until its context is cancelled or it
// returns on its own. The registry owns each job's lifecycle and exposes
// point-in-time status snapshots for the CLI and the control-plane server.
package registry

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
)

var (
	// ErrDuplicateJob is returned by [Registry.Start] when a job with the
	// same name is still running.
	ErrDuplicateJob = errors.New("job already running")

	// ErrUnknownJob is returned when the named job was never started.
	ErrUnknownJob = errors.New("unknown job")

	// ErrWaitTimeout is returned by [Registry.Wait] when the job does not
	// finish within the given timeout.
	ErrWaitTimeout = errors.New("timed out waiting for job")
)

// State describes a job's lifecycle position.
type State string

// Job states.
const (
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
	StateStopped   State = "stopped"
)

// RunFunc is the body of a job. It should return promptly once ctx is
// cancelled; a nil return marks the job completed, an error marks it
// failed, and ctx cancellation marks it stopped.
type RunFunc func(ctx context.Context) error

// Status is a point-in-time snapshot of one job.
type Status struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	State     State     `json:"state"`
	StartedAt time.Time `json:"started_at"`
	Uptime    string    `json:"uptime,omitempty"`
	Restarts  int       `json:"restarts"`
	Error     string    `json:"error,omitempty"`

	// Health summarizes supervision when a monitor is attached.
	Failures int            `json:"consecutive_failures,omitempty"`
	Health   []HealthSample `json:"health,omitempty"`
}

// job is the registry's internal record of one supervised function.
type job struct {
	id        string
	name      string
	fn        RunFunc
	cancel    context.CancelFunc
	done      chan struct{}
	state     State
	startedAt time.Time
	err       error
	restarts  int

	// Supervision bookkeeping, written by the job's monitor.
	failures int
	health   []HealthSample
}

// Registry owns a set of named jobs. All methods are safe for concurrent
// use.
type Registry struct {
	mu     sync.Mutex
	jobs   map[string]*job
	logger *log.Logger
}

// New creates an empty registry.
func New(logger *log.Logger) *Registry {
	if logger == nil {
		logger = log.Default()
	}
	return &Registry{
		jobs:   make(map[string]*job),
		logger: logger,
	}
}

// Start launches fn under the given name. The job runs in its own
// goroutine with a context derived from ctx; cancelling ctx stops every
// job started from it.
//
// Returns ErrDuplicateJob while a job with the same name is running.
// Finished jobs may be started again under the same name, which resets
// their status.
func (r *Registry) Start(ctx context.Context, name string, fn RunFunc) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.startLocked(ctx, name, fn, 0)
}

// startLocked launches a job while holding r.mu.
func (r *Registry) startLocked(ctx context.Context, name string, fn RunFunc, restarts int) error {
	if existing, ok := r.jobs[name]; ok && existing.state == StateRunning {
		return fmt.Errorf("%w: %s", ErrDuplicateJob, name)
	}

	jctx, cancel := context.WithCancel(ctx)
	j := &job{
		id:        uuid.NewString(),
		name:      name,
		fn:        fn,
		cancel:    cancel,
		done:      make(chan struct{}),
		state:     StateRunning,
		startedAt: time.Now(),
		restarts:  restarts,
	}
	r.jobs[name] = j

	r.logger.Info("job started", "job", name, "id", j.id)

	go func() {
		err := fn(jctx)

		r.mu.Lock()
		switch {
		case jctx.Err() != nil:
			j.state = StateStopped
		case err != nil:
			j.state = StateFailed
			j.err = err
		default:
			j.state = StateCompleted
		}
		state := j.state
		r.mu.Unlock()

		if err != nil && jctx.Err() == nil {
			r.logger.Error("job failed", "job", name, "error", err)
		} else {
			r.logger.Debug("job finished", "job", name, "state", state)
		}
		close(j.done)
	}()

	return nil
}

// Stop cancels the named job and blocks until its function returns.
// Stopping a job that already finished is a no-op.
func (r *Registry) Stop(name string) error {
	r.mu.Lock()
	j, ok := r.jobs[name]
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}

	j.cancel()
	<-j.done
	return nil
}

// Restart stops the named job and starts its function again, bumping the
// restart counter. The new job run derives from ctx.
func (r *Registry) Restart(ctx context.Context, name string) error {
	r.mu.Lock()
	j, ok := r.jobs[name]
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}

	j.cancel()
	<-j.done

	r.mu.Lock()
	defer r.mu.Unlock()
	restarts := j.restarts + 1
	if err := r.startLocked(ctx, name, j.fn, restarts); err != nil {
		return err
	}
	// Health history survives restarts.
	r.jobs[name].health = j.health
	r.logger.Info("job restarted", "job", name, "restarts", restarts)
	return nil
}

// Wait blocks until the named job finishes, ctx is cancelled, or the
// timeout expires. A timeout of 0 waits indefinitely.
func (r *Registry) Wait(ctx context.Context, name string, timeout time.Duration) error {
	r.mu.Lock()
	j, ok := r.jobs[name]
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}

	var expired <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		expired = t.C
	}

	select {
	case <-j.done:
		return nil
	case <-expired:
		return fmt.Errorf("%w: %s after %s", ErrWaitTimeout, name, timeout)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Status returns a snapshot of the named job.
func (r *Registry) Status(name string) (Status, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[name]
	if !ok {
		return Status{}, false
	}
	return r.snapshotLocked(j), true
}

// List returns snapshots of every known job, sorted by name.
func (r *Registry) List() []Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Status, 0, len(r.jobs))
	for _, j := range r.jobs {
		out = append(out, r.snapshotLocked(j))
	}
	slices.SortFunc(out, func(a, b Status) int {
		return strings.Compare(a.Name, b.Name)
	})
	return out
}

// StopAll stops every running job. Used on server shutdown.
func (r *Registry) StopAll() {
	r.mu.Lock()
	var running []*job
	for _, j := range r.jobs {
		if j.state == StateRunning {
			running = append(running, j)
		}
	}
	r.mu.Unlock()

	for _, j := range running {
		j.cancel()
		<-j.done
	}
}

// snapshotLocked builds a Status while holding r.mu.
func (r *Registry) snapshotLocked(j *job) Status {
	s := Status{
		ID:        j.id,
		Name:      j.name,
		State:     j.state,
		StartedAt: j.startedAt,
		Restarts:  j.restarts,
		Failures:  j.failures,
		Health:    slices.Clone(j.health),
	}
	if j.state == StateRunning {
		s.Uptime = time.Since(j.startedAt).Round(time.Millisecond).String()
	}
	if j.err != nil {
		s.Error = j.err.Error()
	}
	return s
}
