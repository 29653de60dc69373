package raster

import "math"

// Placement maps pointer events in screen space down to buffer-local pixel
// coordinates, through the viewport zoom/pan and the target object's
// translate/rotate/scale/origin. Points that land outside the buffer are
// discarded by the caller via the ok flag; there is no clamping or
// wraparound.
type Placement struct {
	// Viewport (presentation-layer) transform.
	Zoom float64
	PanX float64
	PanY float64

	// Object transform: position of the origin point in canvas coordinates,
	// scale factors, rotation in degrees, and the origin as a fraction of the
	// natural size.
	X        float64
	Y        float64
	ScaleX   float64
	ScaleY   float64
	Rotation float64
	OriginX  float64
	OriginY  float64

	// Natural pixel dimensions of the buffer.
	Width  int
	Height int
}

// ToBuffer converts a screen-space point to buffer pixels. ok is false when
// the point maps outside the buffer bounds.
func (p Placement) ToBuffer(sx, sy float64) (bx, by float64, ok bool) {
	zoom := p.Zoom
	if zoom == 0 {
		zoom = 1
	}
	// Screen to canvas.
	cx := (sx - p.PanX) / zoom
	cy := (sy - p.PanY) / zoom

	// Canvas to object-local: undo translation, then rotation, then scale.
	dx := cx - p.X
	dy := cy - p.Y
	theta := -p.Rotation * math.Pi / 180
	rx := dx*math.Cos(theta) - dy*math.Sin(theta)
	ry := dx*math.Sin(theta) + dy*math.Cos(theta)

	scaleX := p.ScaleX
	if scaleX == 0 {
		scaleX = 1
	}
	scaleY := p.ScaleY
	if scaleY == 0 {
		scaleY = 1
	}
	bx = rx/scaleX + p.OriginX*float64(p.Width)
	by = ry/scaleY + p.OriginY*float64(p.Height)

	if bx < 0 || by < 0 || bx >= float64(p.Width) || by >= float64(p.Height) {
		return 0, 0, false
	}
	return bx, by, true
}
