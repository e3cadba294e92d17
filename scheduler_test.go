package flow

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

// Notify: a node's notify callback only runs once ProcessNotifications is
// pumped by the caller, not as a side effect of the work itself.
func TestNotifyTask(t *testing.T) {
	s := NewScheduler(WithWorkerCount(1))
	defer s.Close()

	g := NewGraph()
	var trigger atomic.Int32
	g.Emplace(EmptyWork, WithNotify(func() { trigger.Add(1) }))

	s.Schedule(g)
	g.Wait()

	require.EqualValues(t, 0, trigger.Load(), "notify must not fire before ProcessNotifications")
	s.ProcessNotifications()
	require.EqualValues(t, 1, trigger.Load())
}

// Condition: a 2-branch Switch (func() bool) only runs its taken branch,
// and the Graph still terminates correctly, accounting for the
// not-taken branch's join count. Mirrors spec.md §8 scenario 5 literally:
// A returns t%2 (boolean-as-index), B sets t=1 (false/index 0), C sets
// t=2 (true/index 1); starting t=0, three successive runs toggle
// t: 0 -> 1 -> 2 -> 1.
func TestConditionTask(t *testing.T) {
	s := NewScheduler(WithWorkerCount(2))
	defer s.Close()

	g := NewGraph()
	var trigger int
	cond := g.Emplace(func() bool { return trigger%2 == 1 })
	b := g.Emplace(func() { trigger = 1 })
	c := g.Emplace(func() { trigger = 2 })
	cond.Precede(b)
	cond.Precede(c)

	want := []int{1, 2, 1}
	for _, expect := range want {
		s.Schedule(g)
		g.Wait()
		require.Equal(t, expect, trigger)
	}
}

// Switch: a 4-way branch exercises joinCounts accounting across three
// not-taken leaf branches per run. Mirrors spec.md §8 scenario 6 literally: A returns
// t, successors b,c,d,e set t=1..4 respectively; looping i=1..4, each
// run's index selects the branch that sets t=i.
func TestSwitchFourWayTask(t *testing.T) {
	s := NewScheduler(WithWorkerCount(2))
	defer s.Close()

	g := NewGraph()
	var trigger int
	sw := g.Emplace(func() int { return trigger })
	for i := 1; i <= 4; i++ {
		value := i
		branch := g.Emplace(func() { trigger = value })
		sw.Precede(branch)
	}

	// trigger starts at 0, selecting branch 0 (sets trigger=1); each run
	// then selects the next branch in turn since the switch re-reads
	// trigger as its index.
	for i := 1; i <= 4; i++ {
		s.Schedule(g)
		g.Wait()
		require.Equal(t, i, trigger)
	}
}

// Nested graph: two Graph-kind nodes wrapping the same *Graph pointer run
// it sequentially, each run contributing its own inner nodes' side
// effects, mirroring shared sub-graph state across multiple Graph nodes.
func TestNestedGraphTask(t *testing.T) {
	s := NewScheduler(WithWorkerCount(2))
	defer s.Close()

	inner := NewGraph()
	var trigger atomic.Int32
	inner.Emplace(func() { trigger.Add(1) })
	b := inner.Emplace(func() { trigger.Add(2) })
	inner.Children()[0].Precede(b)

	outer := NewGraph()
	before := outer.Emplace(EmptyWork, WithNotify(func() { trigger.Add(1) }))
	sub := outer.Emplace(inner, WithName("A"))
	sub2 := outer.Emplace(inner, WithName("B"))
	after := outer.Emplace(EmptyWork, WithNotify(func() { trigger.Add(2) }))
	before.Precede(sub)
	sub.Precede(sub2)
	sub2.Precede(after)

	s.Schedule(outer)
	outer.Wait()
	require.EqualValues(t, 6, trigger.Load())

	s.ProcessNotifications()
	require.EqualValues(t, 9, trigger.Load())
}

// Work-stealing: 64 independent roots are dispatched round-robin across
// four workers; every one runs exactly once, whether popped locally or
// stolen by a peer.
func TestWorkStealing(t *testing.T) {
	s := NewScheduler(WithWorkerCount(4))
	defer s.Close()

	g := NewGraph()
	var count atomic.Int32
	for i := 0; i < 64; i++ {
		g.Emplace(func() { count.Add(1) })
	}

	s.Schedule(g)
	g.Wait()

	require.EqualValues(t, 64, count.Load())
}

// Bypassing a Switch node is a contract violation, surfaced at dispatch
// time rather than at SetBypass time. Exercised directly against a
// worker, in-goroutine, since an unrecovered *LogicError panic inside a
// pool goroutine is deliberately fatal to the process.
func TestBypassedSwitchPanics(t *testing.T) {
	s := NewScheduler(WithWorkerCount(1))
	defer s.Close()

	g := NewGraph()
	tk := g.Emplace(func() int { return 0 }, WithBypass(true))
	g.preprocess()

	w := s.workers[0]
	require.Panics(t, func() { w.dispatchSwitch(tk.n) })
}

// An out-of-range Switch index is likewise a contract violation.
func TestSwitchOutOfRangeIndexPanics(t *testing.T) {
	s := NewScheduler(WithWorkerCount(1))
	defer s.Close()

	g := NewGraph()
	tk := g.Emplace(func() int { return 5 })
	g.Emplace(func() {})
	tk.Precede(g.Children()[1])
	g.preprocess()

	w := s.workers[0]
	require.Panics(t, func() { w.dispatchSwitch(tk.n) })
}

// Scheduler.Notify/ProcessNotifications work directly, independent of a
// Graph run.
func TestDirectNotify(t *testing.T) {
	s := NewScheduler(WithWorkerCount(1))
	defer s.Close()

	g := NewGraph()
	tk := g.Emplace(func() {}, WithNotify(func() {}))

	require.True(t, s.Notify(tk))
	s.ProcessNotifications()
}

func TestWorkerCount(t *testing.T) {
	s := NewScheduler(WithWorkerCount(3))
	defer s.Close()
	require.Equal(t, 3, s.WorkerCount())
}
