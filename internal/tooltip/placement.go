package tooltip

import (
	"github.com/Esakkiraja-Pothikannan/ios-inappmessaging/internal/model"
	"github.com/Esakkiraja-Pothikannan/ios-inappmessaging/internal/ui"
)

// Frame computes a tooltip frame of the given size next to anchor. Both
// rectangles are in the same coordinate space. Corner placements touch the
// anchor diagonally; margin separates tooltip and anchor on the placement
// axis.
func Frame(anchor ui.Rect, size ui.Size, p model.Placement, margin float64) ui.Rect {
	var x, y float64

	switch p {
	case model.PlacementTopLeft, model.PlacementTopCenter, model.PlacementTopRight:
		y = anchor.MinY() - size.H - margin
	case model.PlacementBottomLeft, model.PlacementBottomCenter, model.PlacementBottomRight:
		y = anchor.MaxY() + margin
	default:
		y = anchor.MidY() - size.H/2
	}

	switch p {
	case model.PlacementTopLeft, model.PlacementBottomLeft:
		x = anchor.MinX() - size.W
	case model.PlacementTopRight, model.PlacementBottomRight:
		x = anchor.MaxX()
	case model.PlacementLeft:
		x = anchor.MinX() - size.W - margin
	case model.PlacementRight:
		x = anchor.MaxX() + margin
	default:
		x = anchor.MidX() - size.W/2
	}

	return ui.Rect{Origin: ui.Point{X: x, Y: y}, Size: size}
}
