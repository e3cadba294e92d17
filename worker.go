package flow

import (
	"runtime/debug"
	"sync/atomic"

	"github.com/MusicLab-Dev/Flow/internal/flowlog"
	"github.com/MusicLab-Dev/Flow/internal/queue"
)

// workerState is the worker's four-state lifecycle.
type workerState int32

const (
	stateStopped workerState = iota
	stateRunning
	stateIdle
	stateStopping
)

// worker is a single goroutine plus a bounded MPMC queue. Go has no
// portable atomic wait/notify primitive exposed to user code, so a
// buffered channel stands in as the park/wake signal: state is stored
// before the wake send, so a task pushed after the Idle CAS is observed
// by the wake path, and one pushed before is observed on the next loop
// iteration.
type worker struct {
	scheduler *Scheduler
	queue     *queue.MPMC[Task]
	state     atomic.Int32
	wakeCh    chan struct{}
	doneCh    chan struct{}
}

func newWorker(s *Scheduler, queueSize int) *worker {
	w := &worker{
		scheduler: s,
		queue:     queue.New[Task](queueSize),
		wakeCh:    make(chan struct{}, 1),
		doneCh:    make(chan struct{}),
	}
	w.state.Store(int32(stateStopped))
	return w
}

func (w *worker) push(t Task) bool {
	return w.queue.Push(t)
}

// nudge transitions the worker from Idle to Running and wakes it, a
// no-op if the worker was not parked (it will see the new task on its
// next loop iteration regardless).
func (w *worker) nudge() {
	if w.state.CompareAndSwap(int32(stateIdle), int32(stateRunning)) {
		select {
		case w.wakeCh <- struct{}{}:
		default:
		}
	}
}

func (w *worker) start() {
	w.state.Store(int32(stateRunning))
	go w.run()
}

// stop requests the worker to exit at the top of its loop (between
// tasks); it never interrupts in-flight work.
func (w *worker) stop() {
	for {
		switch workerState(w.state.Load()) {
		case stateRunning:
			if w.state.CompareAndSwap(int32(stateRunning), int32(stateStopping)) {
				return
			}
		case stateIdle:
			if w.state.CompareAndSwap(int32(stateIdle), int32(stateStopping)) {
				select {
				case w.wakeCh <- struct{}{}:
				default:
				}
				return
			}
		default:
			return
		}
	}
}

func (w *worker) join() {
	<-w.doneCh
}

// run is the worker's busy loop: pop local, else steal, else park.
func (w *worker) run() {
	for {
		switch workerState(w.state.Load()) {
		case stateStopping:
			w.state.Store(int32(stateStopped))
			close(w.doneCh)
			return
		case stateIdle:
			<-w.wakeCh
		default: // stateRunning
			if t, ok := w.queue.Pop(); ok {
				w.work(t)
				continue
			}
			if t, ok := w.scheduler.steal(); ok {
				w.work(t)
				continue
			}
			if !w.state.CompareAndSwap(int32(stateRunning), int32(stateIdle)) {
				continue
			}
			// A push's nudge() can land between the failed steal sweep above
			// and this CAS: its own CAS(Idle, Running) then compares against
			// the stale Running value and silently no-ops, so the task would
			// sit behind a parked worker with nobody left to wake it. Recheck
			// once, now that we're marked Idle, before blocking on wakeCh.
			if t, ok := w.queue.Pop(); ok {
				w.state.CompareAndSwap(int32(stateIdle), int32(stateRunning))
				w.work(t)
				continue
			}
			if t, ok := w.scheduler.steal(); ok {
				w.state.CompareAndSwap(int32(stateIdle), int32(stateRunning))
				w.work(t)
				continue
			}
		}
	}
}

func recoverTask(nodeName, kind string) {
	if r := recover(); r != nil {
		if le, ok := r.(*LogicError); ok {
			panic(le) // contract violations are not caught, they crash the process
		}
		flowlog.TaskPanic(nodeName, kind, r, debug.Stack())
	}
}

// work dispatches a task by node kind, applies its joinCount to the
// owning Graph, and — if the node carries a notify callback — routes it
// through the scheduler's notification queue first.
func (w *worker) work(t Task) {
	n := t.n
	var joinCount uint32
	switch n.kind {
	case KindStatic:
		joinCount = w.dispatchStatic(n)
	case KindDynamic:
		joinCount = w.dispatchDynamic(n)
	case KindSwitch:
		joinCount = w.dispatchSwitch(n)
	case KindGraph:
		joinCount = w.dispatchGraph(n)
	default:
		panic(newLogicError("work", n.identity(), "undefined node kind"))
	}

	if n.notify == nil {
		n.root.childrenJoined(joinCount)
		return
	}

	for !w.scheduler.Notify(t) && workerState(w.state.Load()) == stateRunning {
		if dt, ok := w.queue.Pop(); ok {
			w.work(dt)
			continue
		}
		if dt, ok := w.scheduler.steal(); ok {
			w.work(dt)
		}
	}
	n.root.childrenJoined(joinCount)
}

func (w *worker) dispatchStatic(n *node) (joinCount uint32) {
	joinCount = 1
	sw := n.work.(*staticWork)
	func() {
		defer recoverTask(n.identity(), "static")
		if !n.bypass.Load() {
			sw.fn()
		}
	}()
	// Successors are scheduled even if the work panicked, so the Graph
	// still terminates.
	for _, succ := range n.successors {
		w.scheduleNode(succ)
	}
	return
}

func (w *worker) dispatchDynamic(n *node) (joinCount uint32) {
	joinCount = 1
	dw := n.work.(*dynamicWork)
	func() {
		defer recoverTask(n.identity(), "dynamic")
		if !n.bypass.Load() {
			dw.fn(dw.sub)
		}
	}()
	// Dynamic nodes have no static successors: the sub-graph is their
	// body. Block on it whenever it has nodes, even if the body function
	// panicked; an empty sub-graph would never settle, so it is skipped and
	// the Graph still terminates.
	if dw.sub.Size() > 0 {
		w.blockingGraphSchedule(dw.sub)
	}
	return
}

func (w *worker) dispatchSwitch(n *node) (joinCount uint32) {
	joinCount = 1
	defer recoverTask(n.identity(), "switch")
	if n.bypass.Load() {
		panic(newLogicError("dispatchSwitch", n.identity(), "switch node must not be bypassed"))
	}
	sw := n.work.(*switchWork)
	// Until a branch is scheduled every branch counts as not taken, so a
	// panicking selector still lets the Graph terminate.
	for _, jc := range sw.joinCounts {
		joinCount += jc
	}
	idx := sw.fn()
	if idx < 0 || idx >= len(n.successors) {
		panic(newLogicError("dispatchSwitch", n.identity(), "switch returned an index out of range of its successors"))
	}
	if len(sw.joinCounts) != len(n.successors) {
		panic(newLogicError("dispatchSwitch", n.identity(), "joinCounts out of sync with successors, graph was mutated without preprocess"))
	}
	w.scheduleNode(n.successors[idx])
	joinCount -= sw.joinCounts[idx]
	return
}

func (w *worker) dispatchGraph(n *node) (joinCount uint32) {
	joinCount = 1
	defer recoverTask(n.identity(), "graph")
	gw := n.work.(*graphWork)
	if !n.bypass.Load() {
		w.blockingGraphSchedule(gw.nested)
	}
	for _, succ := range n.successors {
		w.scheduleNode(succ)
	}
	return
}

// scheduleNode atomically ticks n's join counter; once every predecessor
// has completed, it resets the counter and schedules n. Nodes with no
// predecessors are graph seeds and are never re-scheduled here.
func (w *worker) scheduleNode(n *node) {
	total := uint32(len(n.predecessors))
	if total == 0 {
		return
	}
	if n.joined.Add(1) == total {
		n.joined.Store(0)
		w.scheduler.ScheduleTask(Task{n: n})
	}
}

// blockingGraphSchedule schedules g, then cooperatively helps drain the
// pool (pop local, or steal, or yield) until g finishes — the worker
// never blocks idly while a nested or dynamic graph runs.
func (w *worker) blockingGraphSchedule(g *Graph) {
	w.scheduler.Schedule(g)
	for g.running.Load() && workerState(w.state.Load()) == stateRunning {
		if t, ok := w.queue.Pop(); ok {
			w.work(t)
			continue
		}
		if t, ok := w.scheduler.steal(); ok {
			w.work(t)
			continue
		}
		yield()
	}
}
