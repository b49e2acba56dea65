package ui

import (
	"sync"
)

// Node is an in-memory View. Observers run synchronously on the goroutine
// that made the change, after the node's lock is released.
type Node struct {
	mu         sync.RWMutex
	identifier string
	frame      Rect
	offset     Point
	scrollable bool
	superview  *Node
	subviews   []*Node

	nextObserver int
	observers    map[ChangeKind]map[int]func()
}

// NewNode creates a detached node.
func NewNode(identifier string, frame Rect) *Node {
	return &Node{
		identifier: identifier,
		frame:      frame,
		observers:  make(map[ChangeKind]map[int]func()),
	}
}

// NewScrollNode creates a detached scrollable node.
func NewScrollNode(identifier string, frame Rect) *Node {
	n := NewNode(identifier, frame)
	n.scrollable = true
	return n
}

// Identifier implements View.
func (n *Node) Identifier() string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.identifier
}

// SetIdentifier renames the node. Hosts report renames to interested
// parties themselves.
func (n *Node) SetIdentifier(id string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.identifier = id
}

// Frame implements View.
func (n *Node) Frame() Rect {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.frame
}

// SetFrame moves or resizes the node.
func (n *Node) SetFrame(r Rect) {
	n.mu.Lock()
	changed := n.frame != r
	n.frame = r
	n.mu.Unlock()

	if changed {
		n.notify(ChangeFrame)
	}
}

// Superview implements View.
func (n *Node) Superview() View {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.superview == nil {
		return nil
	}
	return n.superview
}

// Subviews returns the node's children.
func (n *Node) Subviews() []*Node {
	n.mu.RLock()
	defer n.mu.RUnlock()
	out := make([]*Node, len(n.subviews))
	copy(out, n.subviews)
	return out
}

// IsScrollable implements View.
func (n *Node) IsScrollable() bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.scrollable
}

// ContentOffset implements View.
func (n *Node) ContentOffset() Point {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.offset
}

// SetContentOffset scrolls the node. No-op for non-scrollable nodes.
func (n *Node) SetContentOffset(p Point) {
	n.mu.Lock()
	if !n.scrollable || n.offset == p {
		n.mu.Unlock()
		return
	}
	n.offset = p
	n.mu.Unlock()

	n.notify(ChangeContentOffset)
}

// AddSubview attaches child, detaching it from any previous parent.
func (n *Node) AddSubview(child *Node) {
	child.RemoveFromSuperview()

	n.mu.Lock()
	n.subviews = append(n.subviews, child)
	n.mu.Unlock()

	child.mu.Lock()
	child.superview = n
	child.mu.Unlock()
}

// RemoveFromSuperview detaches the node and notifies removal observers of
// the node and of every descendant.
func (n *Node) RemoveFromSuperview() {
	n.mu.Lock()
	parent := n.superview
	n.superview = nil
	n.mu.Unlock()

	if parent == nil {
		return
	}

	parent.mu.Lock()
	for i, c := range parent.subviews {
		if c == n {
			parent.subviews = append(parent.subviews[:i], parent.subviews[i+1:]...)
			break
		}
	}
	parent.mu.Unlock()

	n.notifyTree(ChangeRemoved)
}

// Observe implements View.
func (n *Node) Observe(kind ChangeKind, fn func()) (cancel func()) {
	n.mu.Lock()
	defer n.mu.Unlock()

	id := n.nextObserver
	n.nextObserver++
	if n.observers[kind] == nil {
		n.observers[kind] = make(map[int]func())
	}
	n.observers[kind][id] = fn

	return func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		delete(n.observers[kind], id)
	}
}

// ObserverCount returns the number of registered observers.
func (n *Node) ObserverCount() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	count := 0
	for _, fns := range n.observers {
		count += len(fns)
	}
	return count
}

func (n *Node) notify(kind ChangeKind) {
	n.mu.RLock()
	fns := make([]func(), 0, len(n.observers[kind]))
	for _, fn := range n.observers[kind] {
		fns = append(fns, fn)
	}
	n.mu.RUnlock()

	for _, fn := range fns {
		fn()
	}
}

func (n *Node) notifyTree(kind ChangeKind) {
	n.notify(kind)
	for _, c := range n.Subviews() {
		c.notifyTree(kind)
	}
}
