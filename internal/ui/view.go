package ui

// ChangeKind is the kind of view change an observer receives.
type ChangeKind int

const (
	// ChangeFrame fires after the view's frame changes.
	ChangeFrame ChangeKind = iota
	// ChangeContentOffset fires after a scrollable view scrolls.
	ChangeContentOffset
	// ChangeRemoved fires after the view leaves its superview.
	ChangeRemoved
)

// View is a node of a host view tree.
type View interface {
	// Identifier is the host-assigned accessibility identifier.
	Identifier() string
	// Frame is the view's rectangle in its superview's content space.
	Frame() Rect
	// Superview returns the parent view, or nil for the root window.
	Superview() View
	// IsScrollable reports whether the view scrolls its content.
	IsScrollable() bool
	// ContentOffset is the scroll position; zero for non-scrollable views.
	ContentOffset() Point
	// Observe calls fn after each change of the given kind until cancel is
	// called.
	Observe(kind ChangeKind, fn func()) (cancel func())
}

// Container is a View that can host subviews.
type Container interface {
	View
	AddSubview(child *Node)
}

// Root returns the top-most ancestor of v.
func Root(v View) View {
	for {
		parent := v.Superview()
		if parent == nil {
			return v
		}
		v = parent
	}
}

// ContentOrigin returns where point (0,0) of v's content space lies in
// window coordinates.
func ContentOrigin(v View) Point {
	origin := v.Frame().Origin.Sub(v.ContentOffset())
	if parent := v.Superview(); parent != nil {
		origin = origin.Add(ContentOrigin(parent))
	}
	return origin
}

// ConvertRect converts r from the content space of from to the content space
// of to.
func ConvertRect(r Rect, from, to View) Rect {
	return r.Offset(ContentOrigin(from).Sub(ContentOrigin(to)))
}

// WindowFrame returns v's frame in window coordinates.
func WindowFrame(v View) Rect {
	parent := v.Superview()
	if parent == nil {
		return v.Frame()
	}
	return v.Frame().Offset(ContentOrigin(parent))
}

// ScrollableAncestor returns the nearest scrollable ancestor of v, or the
// root when there is none.
func ScrollableAncestor(v View) View {
	for parent := v.Superview(); parent != nil; parent = parent.Superview() {
		if parent.IsScrollable() {
			return parent
		}
		if parent.Superview() == nil {
			return parent
		}
	}
	return v
}
