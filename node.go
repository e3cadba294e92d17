package flow

import (
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/MusicLab-Dev/Flow/internal/nodepool"
)

// NodeKind is the closed set of work variants a node can carry: Static,
// Dynamic, Switch or Graph. Implemented as a tagged union with exhaustive
// dispatch in worker.go rather than open/interface-based dispatch.
type NodeKind int

const (
	KindStatic NodeKind = iota
	KindDynamic
	KindSwitch
	KindGraph
)

func (k NodeKind) String() string {
	switch k {
	case KindStatic:
		return "static"
	case KindDynamic:
		return "dynamic"
	case KindSwitch:
		return "switch"
	case KindGraph:
		return "graph"
	default:
		return "unknown"
	}
}

// EmptyWork is a no-op Static work function, used to build nodes whose
// only purpose is to carry a notify callback or a successor link.
var EmptyWork = func() {}

// nodeWork is the payload behind a node's kind, one concrete type per
// NodeKind.
type nodeWork interface {
	isNodeWork()
}

type staticWork struct {
	fn func()
}

func (*staticWork) isNodeWork() {}

type dynamicWork struct {
	fn  func(*Graph)
	sub *Graph
}

func (*dynamicWork) isNodeWork() {}

type switchWork struct {
	fn         func() int
	joinCounts []uint32
}

func (*switchWork) isNodeWork() {}

type graphWork struct {
	nested *Graph
}

func (*graphWork) isNodeWork() {}

// classify inspects work's concrete Go type and produces the matching
// NodeKind and payload. Go has no implicit-conversion-based overload
// resolution, so this is an explicit type switch.
func classify(work any) (NodeKind, nodeWork) {
	switch w := work.(type) {
	case func():
		return KindStatic, &staticWork{fn: w}
	case func(*Graph):
		return KindDynamic, &dynamicWork{fn: w, sub: NewGraph()}
	case func() int:
		return KindSwitch, &switchWork{fn: w}
	case func() bool:
		// Boolean predicate is a valid 2-branch Switch: false -> 0, true -> 1.
		return KindSwitch, &switchWork{fn: func() int {
			if w() {
				return 1
			}
			return 0
		}}
	case *Graph:
		return KindGraph, &graphWork{nested: w}
	default:
		panic(newLogicError("Emplace", "", fmt.Sprintf("unsupported work type %T", work)))
	}
}

// node is a fixed-layout record describing one unit of work. It is
// allocated once from nodePool and referenced everywhere else by pointer:
// it must never move in memory, since predecessors and successors hold
// raw *node references to it.
type node struct {
	kind         NodeKind
	work         nodeWork
	successors   []*node
	predecessors []*node
	joined       atomic.Uint32
	bypass       atomic.Bool
	notify       func()
	name         string // user-visible, may be empty
	logID        string // stable identity for logs, always set
	root         *Graph
}

func (n *node) reset() {
	n.kind = KindStatic
	n.work = nil
	n.successors = n.successors[:0]
	n.predecessors = n.predecessors[:0]
	n.joined.Store(0)
	n.bypass.Store(false)
	n.notify = nil
	n.name = ""
	n.logID = "node-" + uuid.NewString()[:8]
	n.root = nil
}

func (n *node) identity() string {
	if n.name != "" {
		return n.name
	}
	return n.logID
}

// precede links n before v: v depends on n, n gains a forward link to v
// and v gains a back-link to n. Only safe to call while the owning Graph
// is not running: link structure is immutable while running.
func (n *node) precede(v *node) {
	n.successors = append(n.successors, v)
	v.predecessors = append(v.predecessors, n)
}

var nodePool = nodepool.New(func() *node { return &node{} })

func allocNode() *node {
	n := nodePool.Get()
	n.reset()
	return n
}

func releaseNode(n *node) {
	nodePool.Put(n)
}
