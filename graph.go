package flow

import (
	"sync"
	"sync/atomic"
)

// Graph is a DAG of nodes plus run-state. It is used by pointer (*Graph):
// Go's GC already gives "destroyed when the last handle drops" for free,
// so no manual reference-counting is implemented (see DESIGN.md's Open
// Questions). The invariant that matters operationally is that the
// child/link structure is immutable while running is true, guarded here
// by mu for the structural mutators (Emplace, Clear, ClearLinks,
// preprocess) and by the running atomic for everything dispatch-path
// related.
type Graph struct {
	mu             sync.Mutex
	children       []*node
	joined         atomic.Uint32
	running        atomic.Bool
	preprocessed   bool
	scheduler      atomic.Pointer[Scheduler]
	repeatCallback func() bool
}

// NewGraph returns an empty Graph.
func NewGraph() *Graph {
	return &Graph{}
}

// Emplace allocates a new node, appends it to the Graph, and returns a
// Task handle to it. work is classified by its Go type: func() is
// Static, func(*Graph) is Dynamic, func() int or func() bool is Switch,
// *Graph is a nested Graph node.
func (g *Graph) Emplace(work any, opts ...TaskOption) Task {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.running.Load() {
		panic(newLogicError("Emplace", "", "cannot mutate a running graph"))
	}
	n := allocNode()
	n.kind, n.work = classify(work)
	n.root = g
	for _, opt := range opts {
		opt(n)
	}
	g.children = append(g.children, n)
	g.preprocessed = false
	return Task{n: n}
}

// ClearLinks clears every node's links in place; nodes stay alive.
func (g *Graph) ClearLinks() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.running.Load() {
		panic(newLogicError("ClearLinks", "", "cannot mutate a running graph"))
	}
	for _, n := range g.children {
		n.successors = n.successors[:0]
		n.predecessors = n.predecessors[:0]
		if sw, ok := n.work.(*switchWork); ok {
			sw.joinCounts = nil
		}
	}
	g.preprocessed = false
}

// Clear destroys all nodes. Only legal when the Graph is not running.
func (g *Graph) Clear() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.running.Load() {
		panic(newLogicError("Clear", "", "cannot clear a running graph"))
	}
	for _, n := range g.children {
		releaseNode(n)
	}
	g.children = g.children[:0]
	g.preprocessed = false
}

// Running reports whether the Graph is currently scheduled.
func (g *Graph) Running() bool {
	return g.running.Load()
}

// Size returns the number of owned nodes.
func (g *Graph) Size() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.children)
}

// Children returns a Task handle for every node currently owned by the
// Graph, in emplace order.
func (g *Graph) Children() []Task {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]Task, len(g.children))
	for i, n := range g.children {
		out[i] = Task{n: n}
	}
	return out
}

// SetRepeatCallback installs a predicate evaluated at Graph termination:
// if it returns true, the Graph is re-seeded for another run instead of
// settling.
func (g *Graph) SetRepeatCallback(fn func() bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.repeatCallback = fn
}

func (g *Graph) hasRepeatCallback() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.repeatCallback != nil
}

// Wait blocks (spin-yielding) until the Graph finishes its current run.
// Waiting on a Graph carrying a repeat callback is a contract violation:
// such a Graph never settles on its own.
func (g *Graph) Wait() {
	if g.hasRepeatCallback() {
		panic(newLogicError("Wait", "", "cannot wait on a graph with a repeat callback, it would never terminate"))
	}
	for g.running.Load() {
		yield()
	}
}

// preprocess computes joinCounts for every Switch node. Idempotent when
// no Emplace/ClearLinks intervened since the last call.
func (g *Graph) preprocess() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.preprocessed {
		return
	}
	cache := make(map[*node]bool)
	for _, n := range g.children {
		sw, ok := n.work.(*switchWork)
		if !ok {
			continue
		}
		counts := make([]uint32, len(n.successors))
		for i, link := range n.successors {
			clear(cache)
			counts[i] = 1 + uint32(countSubChildren(link, cache))
		}
		sw.joinCounts = counts
	}
	g.preprocessed = true
}

// countSubChildren counts the nodes transitively reachable from n,
// counting each node at most once via cache, which the caller resets
// between branches of the same switch.
func countSubChildren(n *node, cache map[*node]bool) int {
	count := 0
	for _, child := range n.successors {
		if !cache[child] {
			count++
			cache[child] = true
			count += countSubChildren(child, cache)
		}
	}
	return count
}

// seedRoots schedules every node with no predecessors: the Graph's entry
// points.
func (g *Graph) seedRoots(s *Scheduler) {
	for _, n := range g.children {
		if len(n.predecessors) == 0 {
			s.ScheduleTask(Task{n: n})
		}
	}
}

// childrenJoined applies a completed node's join count to the Graph's
// global counter. When every node has joined, the Graph either repeats
// (re-seeding its roots) or settles (running -> false).
func (g *Graph) childrenJoined(count uint32) {
	total := uint32(len(g.children))
	if g.joined.Add(count) != total {
		return
	}
	g.joined.Store(0)
	g.mu.Lock()
	repeat := g.repeatCallback
	g.mu.Unlock()
	if repeat != nil && repeat() {
		if s := g.scheduler.Load(); s != nil {
			s.scheduleRepeat(g)
		}
		return
	}
	g.running.Store(false)
	g.scheduler.Store(nil)
}
