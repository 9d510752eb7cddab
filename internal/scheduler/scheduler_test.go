// SPDX-License-Identifier: AGPL-3.0-or-later

package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sitegraph/internal/graph"
	"sitegraph/internal/logging"
)

// fakeExecutor always succeeds after recording the node it ran, with
// an artificial delay so tests can observe pool-width limits.
type fakeExecutor struct {
	delay      time.Duration
	mu         sync.Mutex
	ran        []int
	concurrent int32
	maxSeen    int32
}

func (f *fakeExecutor) Execute(ctx context.Context, n *graph.Node) (graph.Status, error) {
	cur := atomic.AddInt32(&f.concurrent, 1)
	for {
		old := atomic.LoadInt32(&f.maxSeen)
		if cur <= old || atomic.CompareAndSwapInt32(&f.maxSeen, old, cur) {
			break
		}
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	atomic.AddInt32(&f.concurrent, -1)

	f.mu.Lock()
	f.ran = append(f.ran, n.URN)
	f.mu.Unlock()
	return graph.StatusProcessed, nil
}

type fakeDispatcher struct {
	io  Executor
	cpu Executor
}

func (d *fakeDispatcher) ExecutorFor(a graph.Action) (Executor, bool) {
	if graph.PoolOf(a) == graph.PoolIO {
		return d.io, true
	}
	return d.cpu, true
}

func buildLinearGraph(t *testing.T, n int) *graph.Graph {
	t.Helper()
	g := graph.New()
	var prev *graph.Node
	for i := 0; i < n; i++ {
		node := graph.NewNode(g.NextURN(), "n", graph.NodeTypeSource)
		node.Action = graph.ActionDownload
		if prev != nil {
			node.Children = []*graph.Node{prev}
		}
		require.NoError(t, g.AddNode(node))
		g.AddRoot(node)
		prev = node
	}
	return g
}

func TestSchedulerRunsAllNodesToCompletion(t *testing.T) {
	g := buildLinearGraph(t, 5)
	exec := &fakeExecutor{}
	sched := New(g, &fakeDispatcher{io: exec, cpu: exec}, logging.NewDefault(false), Options{WaitTimeout: 10 * time.Millisecond})

	err := sched.Run(context.Background())
	require.NoError(t, err)
	assert.Len(t, exec.ran, 5)
	for _, n := range g.Nodes() {
		assert.Equal(t, graph.StatusProcessed, n.Status)
	}
}

func TestSchedulerRespectsPoolWidth(t *testing.T) {
	g := graph.New()
	for i := 0; i < 10; i++ {
		node := graph.NewNode(g.NextURN(), "n", graph.NodeTypeSource)
		node.Action = graph.ActionDownload
		require.NoError(t, g.AddNode(node))
		g.AddRoot(node)
	}
	exec := &fakeExecutor{delay: 20 * time.Millisecond}
	sched := New(g, &fakeDispatcher{io: exec, cpu: exec}, logging.NewDefault(false), Options{IOWidth: 2, CPUWidth: 1, WaitTimeout: 5 * time.Millisecond})

	require.NoError(t, sched.Run(context.Background()))
	assert.LessOrEqual(t, int(exec.maxSeen), 2)
}

func TestSchedulerStallsOnUnreachableNode(t *testing.T) {
	g := graph.New()
	failing := graph.NewNode(g.NextURN(), "bad", graph.NodeTypeSource)
	failing.Action = graph.ActionDownload
	require.NoError(t, g.AddNode(failing))
	g.AddRoot(failing)

	blocked := graph.NewNode(g.NextURN(), "blocked", graph.NodeTypeProcess)
	blocked.Action = graph.ActionBuffer
	blocked.Children = []*graph.Node{failing}
	require.NoError(t, g.AddNode(blocked))
	g.AddRoot(blocked)

	failExec := failingExecutor{}
	okExec := &fakeExecutor{}
	sched := New(g, &fakeDispatcher{io: failExec, cpu: okExec}, logging.NewDefault(false), Options{WaitTimeout: 5 * time.Millisecond})

	err := sched.Run(context.Background())
	require.Error(t, err)
	var stallErr *StallError
	require.ErrorAs(t, err, &stallErr)
	require.Len(t, stallErr.Unreachable, 1)
	assert.Equal(t, "blocked", stallErr.Unreachable[0].Name)
}

type failingExecutor struct{}

func (failingExecutor) Execute(ctx context.Context, n *graph.Node) (graph.Status, error) {
	return graph.StatusFailed, assertError{}
}

type assertError struct{}

func (assertError) Error() string { return "simulated failure" }

func TestSchedulerDedupesGlobalURN(t *testing.T) {
	g := graph.New()
	a := graph.NewNode(g.NextURN(), "clone-a", graph.NodeTypeRun)
	a.Action = graph.ActionRun
	b := graph.NewNode(g.NextURN(), "clone-b", graph.NodeTypeRun)
	b.Action = graph.ActionRun
	b.SetGlobalURN(a.GlobalURN)
	require.NoError(t, g.AddNode(a))
	require.NoError(t, g.AddNode(b))
	g.AddRoot(a)
	g.AddRoot(b)

	exec := &fakeExecutor{}
	sched := New(g, &fakeDispatcher{io: exec, cpu: exec}, logging.NewDefault(false), Options{WaitTimeout: 5 * time.Millisecond})
	require.NoError(t, sched.Run(context.Background()))

	assert.Len(t, exec.ran, 1, "only one of the two clones should have executed")
	assert.Equal(t, graph.StatusProcessed, a.Status)
	assert.Equal(t, graph.StatusProcessed, b.Status)
}
