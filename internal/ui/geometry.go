// Package ui is a minimal view-tree abstraction: frames, scrolling and
// change observation, with coordinate conversion between views.
package ui

// Point is a position in some view's coordinate space.
type Point struct {
	X, Y float64
}

// Add returns p+q.
func (p Point) Add(q Point) Point {
	return Point{X: p.X + q.X, Y: p.Y + q.Y}
}

// Sub returns p-q.
func (p Point) Sub(q Point) Point {
	return Point{X: p.X - q.X, Y: p.Y - q.Y}
}

// Size is a width and height.
type Size struct {
	W, H float64
}

// Rect is an origin and size.
type Rect struct {
	Origin Point
	Size   Size
}

// R is shorthand for a Rect literal.
func R(x, y, w, h float64) Rect {
	return Rect{Origin: Point{X: x, Y: y}, Size: Size{W: w, H: h}}
}

func (r Rect) MinX() float64 { return r.Origin.X }
func (r Rect) MinY() float64 { return r.Origin.Y }
func (r Rect) MidX() float64 { return r.Origin.X + r.Size.W/2 }
func (r Rect) MidY() float64 { return r.Origin.Y + r.Size.H/2 }
func (r Rect) MaxX() float64 { return r.Origin.X + r.Size.W }
func (r Rect) MaxY() float64 { return r.Origin.Y + r.Size.H }

// IsEmpty reports whether r has no area.
func (r Rect) IsEmpty() bool {
	return r.Size.W <= 0 || r.Size.H <= 0
}

// Offset returns r moved by d.
func (r Rect) Offset(d Point) Rect {
	r.Origin = r.Origin.Add(d)
	return r
}

// Intersects reports whether r and s overlap with a non-empty area.
func (r Rect) Intersects(s Rect) bool {
	if r.IsEmpty() || s.IsEmpty() {
		return false
	}
	return r.MinX() < s.MaxX() && s.MinX() < r.MaxX() &&
		r.MinY() < s.MaxY() && s.MinY() < r.MaxY()
}
