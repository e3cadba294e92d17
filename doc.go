// Package flow implements a work-stealing task-graph scheduler: build a
// directed acyclic graph of Tasks (plain, dynamic-subgraph, branching
// switch, or nested-graph nodes), then hand the Graph to a Scheduler that
// dispatches it across a pool of worker goroutines, respecting
// dependencies, allowing optional repetition, and routing notify
// callbacks back to a caller-driven pump via ProcessNotifications.
//
// The three load-bearing pieces are the Graph (a polymorphic DAG with a
// join-count protocol that terminates correctly under arbitrary
// topologies), the Scheduler/worker pool (bounded MPMC queues,
// round-robin dispatch, work stealing, park-on-idle), and the dispatch
// loop that evaluates a node, schedules its successors, and propagates
// join counts back to the owning Graph, including for switch nodes whose
// not-taken branches must be accounted for without running.
package flow
