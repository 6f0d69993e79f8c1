package registry

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestMonitorUnknownJob(t *testing.T) {
	r := quietRegistry()
	err := r.Monitor(context.Background(), "ghost", MonitorConfig{})
	if !errors.Is(err, ErrUnknownJob) {
		t.Errorf("Monitor() error = %v, want ErrUnknownJob", err)
	}
}

func TestMonitorStopsWithContext(t *testing.T) {
	r := quietRegistry()
	ctx, cancel := context.WithCancel(context.Background())
	r.Start(ctx, "job", blockUntilCancelled)

	done := make(chan error, 1)
	go func() {
		done <- r.Monitor(ctx, "job", MonitorConfig{Interval: time.Millisecond})
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Monitor() error = %v, want nil on cancellation", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Monitor() did not return after cancellation")
	}
}

func TestMonitorRecordsHealth(t *testing.T) {
	r := quietRegistry()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r.Start(ctx, "job", blockUntilCancelled)
	defer r.StopAll()

	mctx, mcancel := context.WithCancel(ctx)
	go r.Monitor(mctx, "job", MonitorConfig{Interval: time.Millisecond})

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if s, _ := r.Status("job"); len(s.Health) >= 3 {
			break
		}
		time.Sleep(time.Millisecond)
	}
	mcancel()

	s, _ := r.Status("job")
	if len(s.Health) < 3 {
		t.Fatalf("health samples = %d, want at least 3", len(s.Health))
	}
	for _, h := range s.Health {
		if !h.Healthy {
			t.Errorf("running job probe recorded unhealthy: %+v", h)
		}
		if h.Time.IsZero() {
			t.Error("sample time should be set")
		}
	}
	if s.Failures != 0 {
		t.Errorf("consecutive failures = %d, want 0", s.Failures)
	}
}

func TestMonitorRestartsAfterThreshold(t *testing.T) {
	r := quietRegistry()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r.Start(ctx, "job", blockUntilCancelled)
	defer r.StopAll()

	// Probe fails until the job has been restarted once.
	var restarted atomic.Bool
	probe := func(_ context.Context, s Status) error {
		if s.Restarts > 0 {
			restarted.Store(true)
			return nil
		}
		return errors.New("not responding")
	}

	mctx, mcancel := context.WithCancel(ctx)
	go r.Monitor(mctx, "job", MonitorConfig{
		Interval:  time.Millisecond,
		Threshold: 3,
		Restart:   true,
		Probe:     probe,
	})

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && !restarted.Load() {
		time.Sleep(time.Millisecond)
	}
	mcancel()

	if !restarted.Load() {
		t.Fatal("monitor never restarted the job")
	}

	s, _ := r.Status("job")
	if s.Restarts < 1 {
		t.Errorf("Restarts = %d, want at least 1", s.Restarts)
	}
	if s.State != StateRunning {
		t.Errorf("state = %s, want running after restart", s.State)
	}
	// Health history survives the restart: it must include the failed
	// probes from before.
	sawFailure := false
	for _, h := range s.Health {
		if !h.Healthy {
			sawFailure = true
			break
		}
	}
	if !sawFailure {
		t.Error("health history should keep pre-restart failures")
	}
}

func TestMonitorThresholdWithoutRestart(t *testing.T) {
	r := quietRegistry()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var starts atomic.Int32
	r.Start(ctx, "job", func(ctx context.Context) error {
		starts.Add(1)
		<-ctx.Done()
		return nil
	})
	defer r.StopAll()

	var probes atomic.Int32
	probe := func(context.Context, Status) error {
		probes.Add(1)
		return errors.New("always failing")
	}

	mctx, mcancel := context.WithCancel(ctx)
	go r.Monitor(mctx, "job", MonitorConfig{
		Interval:  time.Millisecond,
		Threshold: 2,
		Probe:     probe,
	})

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && probes.Load() < 5 {
		time.Sleep(time.Millisecond)
	}
	mcancel()

	if starts.Load() != 1 {
		t.Errorf("job started %d times, want 1 without Restart", starts.Load())
	}
	// The counter resets once the threshold is hit, so it never runs
	// past the threshold.
	s, _ := r.Status("job")
	if s.Failures > 2 {
		t.Errorf("consecutive failures = %d, should reset at the threshold", s.Failures)
	}
}

func TestDefaultProbe(t *testing.T) {
	if err := defaultProbe(context.Background(), Status{State: StateRunning}); err != nil {
		t.Errorf("defaultProbe(running) = %v", err)
	}
	if err := defaultProbe(context.Background(), Status{State: StateFailed}); err == nil {
		t.Error("defaultProbe(failed) should report unhealthy")
	}
}
