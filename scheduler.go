package flow

import (
	"runtime"
	"runtime/debug"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/MusicLab-Dev/Flow/internal/flowlog"
	"github.com/MusicLab-Dev/Flow/internal/queue"
)

func defaultLogger() zerolog.Logger { return flowlog.Default() }

func yield() { runtime.Gosched() }

// Scheduler owns a fixed-size pool of workers, a round-robin dispatch
// hint, and a separate notification queue. A Scheduler must outlive
// every Graph scheduled through it; Close stops and joins every worker.
type Scheduler struct {
	workers       []*worker
	lastWorkerID  atomic.Uint64
	notifications *queue.MPMC[Task]
	logger        zerolog.Logger
}

// NewScheduler constructs and starts a Scheduler. With no options, the
// worker count is detected from hardware concurrency (falling back to
// DefaultWorkerCount), and both queues default to 4096 entries.
func NewScheduler(opts ...Option) *Scheduler {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	count := cfg.workerCount
	if count == AutoWorkerCount {
		count = runtime.NumCPU()
		if count <= 0 {
			count = DefaultWorkerCount
		}
	}
	s := &Scheduler{
		workers:       make([]*worker, count),
		notifications: queue.New[Task](cfg.notificationQueueSize),
		logger:        cfg.logger,
	}
	s.lastWorkerID.Store(uint64(count - 1))
	for i := range s.workers {
		s.workers[i] = newWorker(s, cfg.taskQueueSize)
	}
	for _, w := range s.workers {
		w.start()
	}
	s.logger.Info().Int("workers", count).Msg("flow: scheduler started")
	return s
}

// Schedule runs g across the worker pool. Panics with a *LogicError if g
// is already running.
func (s *Scheduler) Schedule(g *Graph) {
	if g.running.Load() {
		panic(newLogicError("Schedule", "", "graph is already running"))
	}
	g.preprocess()
	g.running.Store(true)
	g.scheduler.Store(s)
	g.seedRoots(s)
}

// scheduleRepeat re-seeds g's root nodes without touching running or the
// scheduler back-pointer; only called from Graph.childrenJoined's repeat
// path, never directly by a caller.
func (s *Scheduler) scheduleRepeat(g *Graph) {
	g.seedRoots(s)
}

// ScheduleTask assigns t to a worker using round-robin with skip-on-full.
// The CAS on lastWorkerID is the only shared atomic touched on the fast
// path, so producers do not serialize against each other.
func (s *Scheduler) ScheduleTask(t Task) {
	count := uint64(len(s.workers))
	id := s.lastWorkerID.Load()
	for {
		target := (id + 1) % count
		if s.lastWorkerID.CompareAndSwap(id, target) {
			w := s.workers[target]
			if w.push(t) {
				w.nudge()
				return
			}
		}
		id = s.lastWorkerID.Load()
	}
}

// steal tries every worker in array order, returning the first task
// successfully popped from a peer's queue.
func (s *Scheduler) steal() (Task, bool) {
	for _, w := range s.workers {
		if t, ok := w.queue.Pop(); ok {
			return t, true
		}
	}
	return Task{}, false
}

// Notify enqueues t on the notification queue; returns whether it
// succeeded (the queue is bounded and non-blocking).
func (s *Scheduler) Notify(t Task) bool {
	return s.notifications.Push(t)
}

// ProcessNotifications drains every pending notification and invokes its
// notify callback on the calling goroutine. This is how a single
// consumer loop collects completion callbacks. Must be called from
// exactly one goroutine at a time.
func (s *Scheduler) ProcessNotifications() {
	for {
		t, ok := s.notifications.Pop()
		if !ok {
			return
		}
		s.invokeNotify(t)
	}
}

func (s *Scheduler) invokeNotify(t Task) {
	defer func() {
		if r := recover(); r != nil {
			if le, ok := r.(*LogicError); ok {
				panic(le)
			}
			flowlog.TaskPanic(t.n.identity(), "notify", r, debug.Stack())
		}
	}()
	if t.n.notify != nil {
		t.n.notify()
	}
}

// Wait spin-yields until every worker's queue is empty. This drains the
// pool; it is not per-graph termination detection, for which callers
// should use Graph.Wait.
func (s *Scheduler) Wait() {
	for {
		active := false
		for _, w := range s.workers {
			if w.queue.Len() > 0 {
				active = true
				break
			}
		}
		if !active {
			return
		}
		yield()
	}
}

// WorkerCount returns the number of workers in the pool.
func (s *Scheduler) WorkerCount() int {
	return len(s.workers)
}

// Close stops and joins every worker. It blocks until every in-flight
// task completes. Callers must ensure every Graph scheduled through s
// has already finished.
func (s *Scheduler) Close() {
	for _, w := range s.workers {
		w.stop()
	}
	for _, w := range s.workers {
		w.join()
	}
}
