package flow

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

// Basic: a single Static node. Mirrors tests_Scheduler.cpp's BasicTask.
func TestBasicTask(t *testing.T) {
	s := NewScheduler(WithWorkerCount(1))
	defer s.Close()

	g := NewGraph()
	trigger := false
	g.Emplace(func() { trigger = true })

	s.Schedule(g)
	g.Wait()

	require.True(t, trigger)
}

// Sequence: A precedes B precedes C, each increments trigger.
func TestSequenceTask(t *testing.T) {
	s := NewScheduler(WithWorkerCount(1))
	defer s.Close()

	g := NewGraph()
	var trigger int
	fn := func() { trigger++ }
	a := g.Emplace(fn)
	b := g.Emplace(fn)
	c := g.Emplace(fn)
	a.Precede(b)
	b.Precede(c)

	s.Schedule(g)
	g.Wait()

	require.Equal(t, 3, trigger)
}

// Merge: A and B both precede C; C must observe both predecessors joined.
func TestMergeTask(t *testing.T) {
	s := NewScheduler()
	defer s.Close()

	g := NewGraph()
	var trigger atomic.Int32
	a := g.Emplace(func() { trigger.Store(1) })
	b := g.Emplace(func() { trigger.Store(2) })
	c := g.Emplace(func() { trigger.Store(3) })
	a.Precede(c)
	b.Precede(c)

	s.Schedule(g)
	g.Wait()

	require.EqualValues(t, 3, trigger.Load())
}

// Dynamic: a single Dynamic node emplaces into its owned sub-graph on
// every invocation, without clearing, until told to.
func TestDynamicTask(t *testing.T) {
	s := NewScheduler()
	defer s.Close()

	g := NewGraph()
	var trigger int
	var clearFirst bool

	g.Emplace(func(sub *Graph) {
		if clearFirst {
			sub.Clear()
		}
		sub.Emplace(func() { trigger++ })
	})

	s.Schedule(g)
	g.Wait()
	require.Equal(t, 1, trigger)

	s.Schedule(g)
	g.Wait()
	require.Equal(t, 3, trigger)

	clearFirst = true
	s.Schedule(g)
	g.Wait()
	require.Equal(t, 4, trigger)
}

// P3: after termination on a non-repeating graph, joined == 0 and
// running == false.
func TestTerminationResetsJoinedAndRunning(t *testing.T) {
	s := NewScheduler(WithWorkerCount(2))
	defer s.Close()

	g := NewGraph()
	g.Emplace(func() {})
	s.Schedule(g)
	g.Wait()

	require.EqualValues(t, 0, g.joined.Load())
	require.False(t, g.Running())
}

// P5: preprocess is idempotent when no Emplace intervenes.
func TestPreprocessIdempotent(t *testing.T) {
	g := NewGraph()
	a := g.Emplace(func() int { return 0 })
	g.Emplace(func() {})
	a.Precede(g.Children()[1])

	g.preprocess()
	first := g.children[0].work.(*switchWork).joinCounts
	g.preprocess()
	second := g.children[0].work.(*switchWork).joinCounts

	require.Equal(t, first, second)
}

// Scheduling an already-running graph is a contract violation.
func TestScheduleAlreadyRunningPanics(t *testing.T) {
	s := NewScheduler(WithWorkerCount(1))
	defer s.Close()

	g := NewGraph()
	block := make(chan struct{})
	g.Emplace(func() { <-block })

	s.Schedule(g)
	defer close(block)

	require.Eventually(t, func() bool { return g.Running() }, secondsTimeout, pollInterval)
	require.Panics(t, func() { s.Schedule(g) })
}

// Waiting on a repeating graph is a contract violation.
func TestWaitOnRepeatingGraphPanics(t *testing.T) {
	g := NewGraph()
	g.Emplace(func() {})
	g.SetRepeatCallback(func() bool { return true })

	require.Panics(t, func() { g.Wait() })
}

// Emplace/Clear/ClearLinks are rejected while running.
func TestMutatingRunningGraphPanics(t *testing.T) {
	s := NewScheduler(WithWorkerCount(1))
	defer s.Close()

	g := NewGraph()
	block := make(chan struct{})
	g.Emplace(func() { <-block })
	s.Schedule(g)
	defer close(block)

	require.Eventually(t, func() bool { return g.Running() }, secondsTimeout, pollInterval)
	require.Panics(t, func() { g.Emplace(func() {}) })
	require.Panics(t, func() { g.Clear() })
	require.Panics(t, func() { g.ClearLinks() })
}
