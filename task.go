package flow

// Task is a lightweight handle referring to one node; it carries no state
// of its own. Two Tasks compare equal (using plain ==, since Task is a
// one-pointer struct) iff they refer to the same node.
type Task struct {
	n *node
}

// IsValid reports whether the Task refers to a node; the zero Task does
// not.
func (t Task) IsValid() bool {
	return t.n != nil
}

// Type returns the node's work variant.
func (t Task) Type() NodeKind {
	return t.n.kind
}

// Name returns the node's user-assigned name, or "" if none was set.
func (t Task) Name() string {
	return t.n.name
}

// SetName assigns the node's name and returns the Task for chaining.
func (t Task) SetName(name string) Task {
	t.n.name = name
	return t
}

// Bypass reports whether the node's work will be skipped on dispatch.
func (t Task) Bypass() bool {
	return t.n.bypass.Load()
}

// SetBypass sets or clears the node's bypass flag. Bypassing a Switch
// node is a contract violation, detected at dispatch time.
func (t Task) SetBypass(bypass bool) Task {
	t.n.bypass.Store(bypass)
	return t
}

// SetNotify assigns the node's notify callback, delivered via the
// Scheduler's notification queue and invoked by ProcessNotifications.
func (t Task) SetNotify(fn func()) Task {
	t.n.notify = fn
	return t
}

// SetWork reclassifies the node's work, inferring its NodeKind from work's
// Go type exactly as Graph.Emplace does.
func (t Task) SetWork(work any) Task {
	t.n.kind, t.n.work = classify(work)
	return t
}

// Precede adds other as a forward link of t: other depends on t.
func (t Task) Precede(other Task) Task {
	t.n.precede(other.n)
	return t
}

// Succeed adds t as a forward link of other: t depends on other.
func (t Task) Succeed(other Task) Task {
	other.n.precede(t.n)
	return t
}

// Root returns the Graph that owns this Task's node.
func (t Task) Root() *Graph {
	return t.n.root
}

// TaskOption configures a node at Emplace time.
type TaskOption func(*node)

// WithName sets the node's name.
func WithName(name string) TaskOption {
	return func(n *node) { n.name = name }
}

// WithNotify sets the node's notify callback.
func WithNotify(fn func()) TaskOption {
	return func(n *node) { n.notify = fn }
}

// WithBypass sets the node's initial bypass flag.
func WithBypass(bypass bool) TaskOption {
	return func(n *node) { n.bypass.Store(bypass) }
}
