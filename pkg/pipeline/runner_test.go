package pipeline

import (
	"context"
	"errors"
	"io"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/phaseline/pkg/executor"
	"github.com/matzehuels/phaseline/pkg/hypergraph"
	"github.com/matzehuels/phaseline/pkg/hypergraph/schedule"
)

func quietRunner() *Runner {
	return NewRunner(nil, log.NewWithOptions(io.Discard, log.Options{}))
}

// upper is a capability that uppercases string input.
func upper(_ context.Context, input any, _ hypergraph.Metadata) (any, error) {
	s, _ := input.(string)
	return strings.ToUpper(s), nil
}

func failing(msg string) hypergraph.Capability {
	return func(context.Context, any, hypergraph.Metadata) (any, error) {
		return nil, errors.New(msg)
	}
}

// fastFail keeps retry loops short in tests.
var fastFail = hypergraph.NodeConfig{Retries: 1, RestartDelay: time.Millisecond}

func TestExecuteChain(t *testing.T) {
	g := hypergraph.New("chain")
	g.AddNode("acquire", "acquisition", hypergraph.NodeConfig{})
	g.AddNode("process", "processing", hypergraph.NodeConfig{Executor: upper})
	g.AddNode("store", "storage", hypergraph.NodeConfig{})
	g.AddEdge("acquire", "process", hypergraph.EdgeConfig{Stream: "raw"})
	g.AddEdge("process", "store", hypergraph.EdgeConfig{})

	res, err := quietRunner().Execute(context.Background(), g, "hello")
	if err != nil {
		t.Fatalf("Execute() error: %v", err)
	}

	if res.Status != StatusSuccess {
		t.Errorf("status = %s, want %s", res.Status, StatusSuccess)
	}
	if res.RunID == "" {
		t.Error("RunID should be set")
	}
	if want := []string{"acquire", "process", "store"}; !reflect.DeepEqual(res.Completed, want) {
		t.Errorf("Completed = %v, want %v", res.Completed, want)
	}
	if res.FinalOutput != "HELLO" {
		t.Errorf("FinalOutput = %v, want HELLO", res.FinalOutput)
	}
	if res.DataFlow["acquire"] != "hello" {
		t.Errorf("DataFlow[acquire] = %v", res.DataFlow["acquire"])
	}
	if res.Err() != nil {
		t.Errorf("Err() = %v, want nil on success", res.Err())
	}

	// Graph state after the run: completed nodes, counters, not running.
	if g.Running() {
		t.Error("graph should not be running after the pipeline finishes")
	}
	n, _ := g.Node("process")
	if n.Status != hypergraph.StatusCompleted || n.RunCount != 1 {
		t.Errorf("node state = %s/%d runs", n.Status, n.RunCount)
	}
	e, _ := g.Edge(hypergraph.EdgeID("acquire", "process", "raw"))
	if e.MessagesPassed != 1 {
		t.Errorf("MessagesPassed = %d, want 1", e.MessagesPassed)
	}
	if e.BytesTransferred == 0 {
		t.Error("BytesTransferred should count the encoded output")
	}
}

func TestPipelineNoInput(t *testing.T) {
	g := hypergraph.New("noinput")
	sawNil := false
	g.AddNode("a", "", hypergraph.NodeConfig{
		Executor: func(_ context.Context, input any, _ hypergraph.Metadata) (any, error) {
			sawNil = input == nil
			return "out", nil
		},
	})

	res, err := quietRunner().Pipeline(context.Background(), g, Options{})
	if err != nil {
		t.Fatalf("Pipeline() error: %v", err)
	}
	if !sawNil {
		t.Error("source phase should see nil input when none is given")
	}
	if _, ok := res.DataFlow[InputKey]; ok {
		t.Error("DataFlow should not carry an input entry when none is given")
	}
}

func TestPipelineFanInInput(t *testing.T) {
	g := hypergraph.New("fanin")
	g.AddNode("left", "", hypergraph.NodeConfig{
		Executor: func(context.Context, any, hypergraph.Metadata) (any, error) { return 1, nil },
	})
	g.AddNode("right", "", hypergraph.NodeConfig{
		Executor: func(context.Context, any, hypergraph.Metadata) (any, error) { return 2, nil },
	})

	var joined any
	g.AddNode("join", "", hypergraph.NodeConfig{
		Executor: func(_ context.Context, input any, _ hypergraph.Metadata) (any, error) {
			joined = input
			return input, nil
		},
	})
	g.AddEdge("left", "join", hypergraph.EdgeConfig{Stream: "numbers"})
	g.AddEdge("right", "join", hypergraph.EdgeConfig{Stream: "more-numbers"})

	if _, err := quietRunner().Execute(context.Background(), g, nil); err != nil {
		t.Fatalf("Execute() error: %v", err)
	}

	want := map[string]any{"numbers": 1, "more-numbers": 2}
	if !reflect.DeepEqual(joined, want) {
		t.Errorf("fan-in input = %v, want map keyed by stream %v", joined, want)
	}
}

func TestPipelineContinueOnError(t *testing.T) {
	g := hypergraph.New("tolerant")
	cfg := fastFail
	cfg.Executor = failing("flaky source down")
	cfg.ContinueOnError = true
	g.AddNode("flaky", "", cfg)

	var downstreamInput any = "sentinel"
	g.AddNode("sink", "", hypergraph.NodeConfig{
		Executor: func(_ context.Context, input any, _ hypergraph.Metadata) (any, error) {
			downstreamInput = input
			return "done", nil
		},
	})
	g.AddEdge("flaky", "sink", hypergraph.EdgeConfig{})

	res, err := quietRunner().Execute(context.Background(), g, nil)
	if err != nil {
		t.Fatalf("Execute() error: %v", err)
	}

	if res.Status != StatusPartialFailure {
		t.Errorf("status = %s, want %s", res.Status, StatusPartialFailure)
	}
	if len(res.Failed) != 1 || res.Failed[0].Phase != "flaky" {
		t.Fatalf("Failed = %+v, want one entry for flaky", res.Failed)
	}
	if res.Failed[0].Attempts != 1 {
		t.Errorf("Failed attempts = %d, want 1", res.Failed[0].Attempts)
	}
	if !strings.Contains(res.Failed[0].Error, "flaky source down") {
		t.Errorf("Failed error = %q", res.Failed[0].Error)
	}
	if downstreamInput != nil {
		t.Errorf("dependent of a failed phase should see absent input, got %v", downstreamInput)
	}
	if !reflect.DeepEqual(res.Completed, []string{"sink"}) {
		t.Errorf("Completed = %v", res.Completed)
	}
	if res.Err() == nil {
		t.Error("Err() should report the partial failure")
	}

	n, _ := g.Node("flaky")
	if n.Status != hypergraph.StatusError || n.ErrorCount != 1 {
		t.Errorf("failed node state = %s/%d errors", n.Status, n.ErrorCount)
	}
}

func TestPipelineAbortsOnFailure(t *testing.T) {
	g := hypergraph.New("fatal")
	g.AddNode("first", "", hypergraph.NodeConfig{})
	cfg := fastFail
	cfg.Executor = failing("boom")
	g.AddNode("second", "", cfg)
	g.AddNode("third", "", hypergraph.NodeConfig{})
	g.AddEdge("first", "second", hypergraph.EdgeConfig{})
	g.AddEdge("second", "third", hypergraph.EdgeConfig{})

	res, err := quietRunner().Execute(context.Background(), g, "in")
	if err == nil {
		t.Fatal("Execute() should fail when an untolerated phase fails")
	}
	if res != nil {
		t.Error("aborted run should return a nil result")
	}

	var execErr *executor.ExecutionError
	if !errors.As(err, &execErr) {
		t.Fatalf("error = %v, want to wrap *ExecutionError", err)
	}

	if g.Running() {
		t.Error("graph should not stay running after an abort")
	}
	if g.LastError() == "" {
		t.Error("abort should record the run error on the graph")
	}

	// Completed work before the abort stays recorded.
	first, _ := g.Node("first")
	if first.RunCount != 1 {
		t.Errorf("first.RunCount = %d, want 1", first.RunCount)
	}
	third, _ := g.Node("third")
	if third.RunCount != 0 {
		t.Errorf("third should never run, got %d runs", third.RunCount)
	}
}

func TestPipelineParallelLevels(t *testing.T) {
	g := hypergraph.New("parallel")

	var mu sync.Mutex
	running := 0
	maxRunning := 0
	slow := func(context.Context, any, hypergraph.Metadata) (any, error) {
		mu.Lock()
		running++
		if running > maxRunning {
			maxRunning = running
		}
		mu.Unlock()
		time.Sleep(20 * time.Millisecond)
		mu.Lock()
		running--
		mu.Unlock()
		return "ok", nil
	}

	g.AddNode("root", "", hypergraph.NodeConfig{})
	g.AddNode("b1", "", hypergraph.NodeConfig{Executor: slow})
	g.AddNode("b2", "", hypergraph.NodeConfig{Executor: slow})
	g.AddNode("b3", "", hypergraph.NodeConfig{Executor: slow})
	g.AddNode("sink", "", hypergraph.NodeConfig{})
	for _, b := range []string{"b1", "b2", "b3"} {
		g.AddEdge("root", b, hypergraph.EdgeConfig{})
		g.AddEdge(b, "sink", hypergraph.EdgeConfig{})
	}

	res, err := quietRunner().Pipeline(context.Background(), g, Options{Parallel: true, Input: "x"})
	if err != nil {
		t.Fatalf("Pipeline() error: %v", err)
	}
	if res.Status != StatusSuccess {
		t.Errorf("status = %s", res.Status)
	}
	if len(res.Completed) != 5 {
		t.Errorf("Completed = %v", res.Completed)
	}
	if maxRunning < 2 {
		t.Errorf("level phases should overlap, max concurrent = %d", maxRunning)
	}

	// The barrier ordering: every branch precedes the sink.
	pos := make(map[string]int, len(res.Completed))
	for i, id := range res.Completed {
		pos[id] = i
	}
	for _, b := range []string{"b1", "b2", "b3"} {
		if pos[b] > pos["sink"] {
			t.Errorf("%s completed after sink", b)
		}
	}
}

func TestPipelineCycle(t *testing.T) {
	g := hypergraph.New("cyclic")
	g.AddNode("a", "", hypergraph.NodeConfig{})
	g.AddNode("b", "", hypergraph.NodeConfig{})
	g.AddEdge("a", "b", hypergraph.EdgeConfig{})
	g.AddEdge("b", "a", hypergraph.EdgeConfig{})

	_, err := quietRunner().Execute(context.Background(), g, nil)
	if !errors.Is(err, schedule.ErrCycle) {
		t.Errorf("Execute() error = %v, want ErrCycle", err)
	}
}

func TestPipelineCancelledContext(t *testing.T) {
	g := hypergraph.New("cancelled")
	g.AddNode("a", "", hypergraph.NodeConfig{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := quietRunner().Execute(ctx, g, nil)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Execute() error = %v, want context.Canceled", err)
	}
}

func TestResultErr(t *testing.T) {
	r := &Result{Status: StatusSuccess, Completed: []string{"a"}}
	if r.Err() != nil {
		t.Errorf("Err() = %v on success", r.Err())
	}

	r = &Result{
		Status:    StatusPartialFailure,
		Completed: []string{"a", "b"},
		Failed:    []Failure{{Phase: "c"}},
	}
	err := r.Err()
	if err == nil {
		t.Fatal("Err() should be non-nil for a partial failure")
	}
	if !strings.Contains(err.Error(), "1 of 3") {
		t.Errorf("Err() = %v, want failed/total counts", err)
	}
}
