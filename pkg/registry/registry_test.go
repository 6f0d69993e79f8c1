package registry

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/charmbracelet/log"
)

func quietRegistry() *Registry {
	return New(log.NewWithOptions(io.Discard, log.Options{}))
}

// blockUntilCancelled is a job body that runs until its context ends.
func blockUntilCancelled(ctx context.Context) error {
	<-ctx.Done()
	return nil
}

// waitState polls until the named job reaches the wanted state.
func waitState(t *testing.T, r *Registry, name string, want State) Status {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if s, ok := r.Status(name); ok && s.State == want {
			return s
		}
		time.Sleep(time.Millisecond)
	}
	s, _ := r.Status(name)
	t.Fatalf("job %s never reached %s, state = %s", name, want, s.State)
	return Status{}
}

func TestStartAndStatus(t *testing.T) {
	r := quietRegistry()
	ctx := context.Background()

	if err := r.Start(ctx, "acquire", blockUntilCancelled); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	defer r.StopAll()

	s, ok := r.Status("acquire")
	if !ok {
		t.Fatal("Status() should find the job")
	}
	if s.State != StateRunning {
		t.Errorf("state = %s, want %s", s.State, StateRunning)
	}
	if s.ID == "" || s.Name != "acquire" || s.StartedAt.IsZero() {
		t.Errorf("snapshot = %+v", s)
	}
	if s.Uptime == "" {
		t.Error("running job should report uptime")
	}

	if _, ok := r.Status("ghost"); ok {
		t.Error("Status() should not find an unknown job")
	}
}

func TestStartDuplicate(t *testing.T) {
	r := quietRegistry()
	ctx := context.Background()

	if err := r.Start(ctx, "job", blockUntilCancelled); err != nil {
		t.Fatal(err)
	}
	defer r.StopAll()

	err := r.Start(ctx, "job", blockUntilCancelled)
	if !errors.Is(err, ErrDuplicateJob) {
		t.Errorf("Start() error = %v, want ErrDuplicateJob", err)
	}
}

func TestJobOutcomeStates(t *testing.T) {
	r := quietRegistry()
	ctx := context.Background()

	r.Start(ctx, "completes", func(context.Context) error { return nil })
	waitState(t, r, "completes", StateCompleted)

	r.Start(ctx, "fails", func(context.Context) error { return errors.New("disk full") })
	s := waitState(t, r, "fails", StateFailed)
	if s.Error != "disk full" {
		t.Errorf("failed job error = %q", s.Error)
	}

	r.Start(ctx, "stopped", blockUntilCancelled)
	if err := r.Stop("stopped"); err != nil {
		t.Fatalf("Stop() error: %v", err)
	}
	waitState(t, r, "stopped", StateStopped)
}

func TestStartAgainAfterFinish(t *testing.T) {
	r := quietRegistry()
	ctx := context.Background()

	r.Start(ctx, "job", func(context.Context) error { return nil })
	waitState(t, r, "job", StateCompleted)

	if err := r.Start(ctx, "job", blockUntilCancelled); err != nil {
		t.Fatalf("restarting a finished name should work: %v", err)
	}
	defer r.StopAll()
	waitState(t, r, "job", StateRunning)
}

func TestStopUnknown(t *testing.T) {
	r := quietRegistry()
	if err := r.Stop("ghost"); !errors.Is(err, ErrUnknownJob) {
		t.Errorf("Stop() error = %v, want ErrUnknownJob", err)
	}
	if err := r.Restart(context.Background(), "ghost"); !errors.Is(err, ErrUnknownJob) {
		t.Errorf("Restart() error = %v, want ErrUnknownJob", err)
	}
}

func TestRestart(t *testing.T) {
	r := quietRegistry()
	ctx := context.Background()

	var starts atomic.Int32
	body := func(ctx context.Context) error {
		starts.Add(1)
		<-ctx.Done()
		return nil
	}
	r.Start(ctx, "job", body)
	defer r.StopAll()

	if err := r.Restart(ctx, "job"); err != nil {
		t.Fatalf("Restart() error: %v", err)
	}
	s := waitState(t, r, "job", StateRunning)
	if s.Restarts != 1 {
		t.Errorf("Restarts = %d, want 1", s.Restarts)
	}
	if got := starts.Load(); got != 2 {
		t.Errorf("job body ran %d times, want 2", got)
	}

	if err := r.Restart(ctx, "job"); err != nil {
		t.Fatal(err)
	}
	s, _ = r.Status("job")
	if s.Restarts != 2 {
		t.Errorf("Restarts = %d, want 2", s.Restarts)
	}
}

func TestWait(t *testing.T) {
	r := quietRegistry()
	ctx := context.Background()

	r.Start(ctx, "quick", func(context.Context) error {
		time.Sleep(5 * time.Millisecond)
		return nil
	})
	if err := r.Wait(ctx, "quick", time.Second); err != nil {
		t.Errorf("Wait() error: %v", err)
	}

	r.Start(ctx, "forever", blockUntilCancelled)
	defer r.StopAll()
	err := r.Wait(ctx, "forever", 10*time.Millisecond)
	if !errors.Is(err, ErrWaitTimeout) {
		t.Errorf("Wait() error = %v, want ErrWaitTimeout", err)
	}

	if err := r.Wait(ctx, "ghost", time.Second); !errors.Is(err, ErrUnknownJob) {
		t.Errorf("Wait() error = %v, want ErrUnknownJob", err)
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if err := r.Wait(cancelled, "forever", 0); !errors.Is(err, context.Canceled) {
		t.Errorf("Wait() error = %v, want context.Canceled", err)
	}
}

func TestListSorted(t *testing.T) {
	r := quietRegistry()
	ctx := context.Background()
	for _, name := range []string{"zeta", "alpha", "mid"} {
		r.Start(ctx, name, blockUntilCancelled)
	}
	defer r.StopAll()

	jobs := r.List()
	if len(jobs) != 3 {
		t.Fatalf("List() = %d jobs", len(jobs))
	}
	want := []string{"alpha", "mid", "zeta"}
	for i, s := range jobs {
		if s.Name != want[i] {
			t.Errorf("List()[%d] = %s, want %s", i, s.Name, want[i])
		}
	}
}

func TestStopAll(t *testing.T) {
	r := quietRegistry()
	ctx := context.Background()
	r.Start(ctx, "a", blockUntilCancelled)
	r.Start(ctx, "b", blockUntilCancelled)

	r.StopAll()

	for _, name := range []string{"a", "b"} {
		s, _ := r.Status(name)
		if s.State != StateStopped {
			t.Errorf("job %s state = %s after StopAll", name, s.State)
		}
	}
}
