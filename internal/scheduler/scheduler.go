// SPDX-License-Identifier: AGPL-3.0-or-later

// Package scheduler drives a graph to completion with the two-pool
// heterogeneous scheduling model described in spec.md §4.3: a
// continuous ready-set sweep across a wide I/O pool and a narrow CPU
// pool, global_urn deduplication, and stall detection.
package scheduler

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"sitegraph/internal/graph"
	"sitegraph/internal/logging"
)

// Executor runs one node to completion and reports its terminal status.
// Implementations live in internal/executors, one per graph.Action,
// reached through a dispatch table keyed by Action (spec.md §9).
type Executor interface {
	Execute(ctx context.Context, n *graph.Node) (graph.Status, error)
}

// Dispatcher resolves the Executor for a node's action.
type Dispatcher interface {
	ExecutorFor(a graph.Action) (Executor, bool)
}

// Options configures pool widths and the wait loop.
type Options struct {
	// IOWidth and CPUWidth default to runtime.NumCPU()*4 and
	// runtime.NumCPU() respectively when zero (spec.md §4.3).
	IOWidth  int
	CPUWidth int

	// WaitTimeout bounds each sweep's "wait for any in-flight task"
	// step (spec.md §4.3 step 3). Defaults to 1s.
	WaitTimeout time.Duration

	// ProbeSizes enables the optional pre-submission HEAD size probe
	// for I/O-pool batches (spec.md §4.3 "Pre-submission size probe").
	ProbeSizes bool
	Prober     SizeProber

	// OnProgress, if set, is called with the graph after every node
	// completion, letting a caller write an incremental snapshot of
	// build progress (spec.md §6 "--preview"; recovered from
	// original_source's per-completion graph.generate_graph_preview()
	// call). Never called concurrently with itself.
	OnProgress func(*graph.Graph)
}

// SizeProber fetches a node's remote content length for the
// pre-submission sort. Returns ok=false when the size is unknown.
type SizeProber interface {
	ProbeSize(ctx context.Context, n *graph.Node) (bytes int64, ok bool)
}

func (o Options) withDefaults() Options {
	if o.IOWidth <= 0 {
		o.IOWidth = runtime.NumCPU() * 4
	}
	if o.CPUWidth <= 0 {
		o.CPUWidth = runtime.NumCPU()
	}
	if o.WaitTimeout <= 0 {
		o.WaitTimeout = time.Second
	}
	return o
}

// Result is the outcome of a finished task, for logging and the
// final stall report.
type Result struct {
	Node   *graph.Node
	Status graph.Status
	Err    error
}

// Scheduler runs the continuous sweep loop over a graph.
type Scheduler struct {
	g          *graph.Graph
	dispatcher Dispatcher
	log        logging.Logger
	opts       Options

	ioSem  *semaphore.Weighted
	cpuSem *semaphore.Weighted

	mu        sync.Mutex
	inFlight  map[int]bool // by global_urn
	resultsCh chan Result
}

// New constructs a Scheduler bound to g.
func New(g *graph.Graph, dispatcher Dispatcher, log logging.Logger, opts Options) *Scheduler {
	opts = opts.withDefaults()
	return &Scheduler{
		g:          g,
		dispatcher: dispatcher,
		log:        log,
		opts:       opts,
		ioSem:      semaphore.NewWeighted(int64(opts.IOWidth)),
		cpuSem:     semaphore.NewWeighted(int64(opts.CPUWidth)),
		inFlight:   make(map[int]bool),
		resultsCh:  make(chan Result, opts.IOWidth+opts.CPUWidth),
	}
}

// StallError reports that the queue stopped making progress with
// non-terminal nodes remaining (spec.md §4.3 step 5, §8 scenario 5).
type StallError struct {
	Unreachable []*graph.Node
}

func (e *StallError) Error() string {
	return fmt.Sprintf("scheduler stalled with %d unreachable node(s)", len(e.Unreachable))
}

// Run drives the graph to completion. It returns *StallError if the
// queue stalls with non-terminal nodes remaining and no in-flight
// tasks; ctx cancellation stops new submissions and waits out
// in-flight tasks before returning ctx.Err() (spec.md §4.3
// "Cancellation and timeouts").
func (s *Scheduler) Run(ctx context.Context) error {
	eg, egCtx := errgroup.WithContext(context.Background())
	inFlightCount := 0

	for {
		if ctx.Err() == nil {
			ready := s.readySet()
			if s.opts.ProbeSizes && s.opts.Prober != nil {
				s.sortByProbedSize(egCtx, ready)
			}
			for _, n := range ready {
				n := n
				s.markInFlight(n.GlobalURN)
				inFlightCount++
				eg.Go(func() error {
					s.runOne(egCtx, n)
					return nil
				})
			}
		}

		if inFlightCount == 0 {
			if ctx.Err() != nil {
				break
			}
			if remaining := s.g.NonTerminalSet(); len(remaining) > 0 {
				return &StallError{Unreachable: remaining}
			}
			break
		}

		select {
		case r := <-s.resultsCh:
			inFlightCount--
			s.clearInFlight(r.Node.GlobalURN)
			s.g.PropagateStatus(r.Node)
			if r.Err != nil {
				s.log.Error("node failed", r.Err, logging.F("node", r.Node.String()))
			} else {
				s.log.Info("node complete", logging.F("node", r.Node.String()), logging.F("status", string(r.Status)))
			}
			if s.opts.OnProgress != nil {
				s.opts.OnProgress(s.g)
			}
		case <-time.After(s.opts.WaitTimeout):
			// No task finished within the wait window; loop back and
			// re-scan the ready set in case ctx was cancelled.
		}

		if ctx.Err() != nil && inFlightCount == 0 {
			break
		}
	}

	_ = eg.Wait()
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return nil
}

func (s *Scheduler) runOne(ctx context.Context, n *graph.Node) {
	sem := s.ioSem
	if graph.PoolOf(n.Action) == graph.PoolCPU {
		sem = s.cpuSem
	}
	if err := sem.Acquire(ctx, 1); err != nil {
		s.resultsCh <- Result{Node: n, Status: graph.StatusFailed, Err: err}
		return
	}
	defer sem.Release(1)

	exec, ok := s.dispatcher.ExecutorFor(n.Action)
	if !ok {
		s.resultsCh <- Result{Node: n, Status: graph.StatusFailed, Err: fmt.Errorf("no executor registered for action %s", n.Action)}
		return
	}

	status, err := exec.Execute(ctx, n)
	if err != nil && status == "" {
		status = graph.StatusFailed
	}
	n.Status = status
	s.resultsCh <- Result{Node: n, Status: status, Err: err}
}

// readySet computes every ready node, deduplicated by global_urn
// against both the ready set itself and nodes already in flight
// (spec.md §4.1, §4.3 "the scheduler additionally enforces the
// global-resource rule").
func (s *Scheduler) readySet() []*graph.Node {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[int]bool)
	var out []*graph.Node
	for _, n := range s.g.Nodes() {
		if !n.IsReady() {
			continue
		}
		if s.inFlight[n.GlobalURN] || seen[n.GlobalURN] {
			continue
		}
		seen[n.GlobalURN] = true
		out = append(out, n)
	}
	return out
}

func (s *Scheduler) markInFlight(gurn int) {
	s.mu.Lock()
	s.inFlight[gurn] = true
	s.mu.Unlock()
}

func (s *Scheduler) clearInFlight(gurn int) {
	s.mu.Lock()
	delete(s.inFlight, gurn)
	s.mu.Unlock()
}

// sortByProbedSize orders the whole ready set (I/O and CPU nodes alike)
// by descending probed byte size, so large downloads start first and
// overlap with later CPU work; nodes without a probed size (including
// every CPU node) score 0 and keep their relative order
// (spec.md §4.3 "Pre-submission size probe"). It never changes which
// nodes run, only submission order within this sweep.
func (s *Scheduler) sortByProbedSize(ctx context.Context, nodes []*graph.Node) {
	type scored struct {
		n     *graph.Node
		bytes int64
	}
	scoredNodes := make([]scored, len(nodes))
	var wg sync.WaitGroup
	for i, n := range nodes {
		if graph.PoolOf(n.Action) != graph.PoolIO {
			scoredNodes[i] = scored{n: n}
			continue
		}
		wg.Add(1)
		go func(i int, n *graph.Node) {
			defer wg.Done()
			b, ok := s.opts.Prober.ProbeSize(ctx, n)
			if !ok {
				b = 0
			}
			scoredNodes[i] = scored{n: n, bytes: b}
		}(i, n)
	}
	wg.Wait()

	sort.SliceStable(scoredNodes, func(i, j int) bool {
		return scoredNodes[i].bytes > scoredNodes[j].bytes
	})
	for i, sn := range scoredNodes {
		nodes[i] = sn.n
	}
}
