package raster

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"math"

	"github.com/sirupsen/logrus"
)

// Mode selects the active pixel-edit tool. Modes are mutually exclusive.
type Mode int

const (
	ModeErase Mode = iota
	ModeRestore
	ModeMagic
)

const (
	// Brush radius bounds, in buffer pixels.
	MinBrushRadius = 4
	MaxBrushRadius = 120

	// Flood-fill tolerance bounds, per channel.
	MinTolerance = 0
	MaxTolerance = 255

	// strokeStep is the interpolation step along a stroke segment, so radius
	// coverage stays continuous under mouse-move sampling gaps.
	strokeStep = 2.0

	// editUndoLimit bounds the buffer's own undo stack. It is deliberately
	// shallower than the document history: rapid strokes should not spam it.
	editUndoLimit = 20
)

// Buffer is an ephemeral pixel working copy for erase/restore/magic editing
// of one image object. It keeps the unmodified original for restore strokes
// and a bounded undo stack of pixel snapshots, independent of the document
// history. The final result is committed back as a single history entry by
// the caller.
type Buffer struct {
	original *image.RGBA
	working  *image.RGBA
	width    int
	height   int

	mode      Mode
	radius    int
	tolerance int

	undo   [][]byte
	cursor int

	stroking bool
	lastX    float64
	lastY    float64
	touched  bool
}

// NewBuffer copies an image into a working pixel buffer sized to the image's
// natural dimensions. Entry zero of the undo stack is the unmodified buffer.
func NewBuffer(src image.Image) (*Buffer, error) {
	bounds := src.Bounds()
	if bounds.Dx() == 0 || bounds.Dy() == 0 {
		return nil, fmt.Errorf("image has no pixels")
	}
	norm := image.Rect(0, 0, bounds.Dx(), bounds.Dy())
	original := image.NewRGBA(norm)
	draw.Draw(original, norm, src, bounds.Min, draw.Src)
	working := image.NewRGBA(norm)
	copy(working.Pix, original.Pix)

	b := &Buffer{
		original:  original,
		working:   working,
		width:     norm.Dx(),
		height:    norm.Dy(),
		radius:    20,
		tolerance: 32,
	}
	b.undo = [][]byte{append([]byte(nil), original.Pix...)}
	return b, nil
}

func (b *Buffer) Width() int     { return b.width }
func (b *Buffer) Height() int    { return b.height }
func (b *Buffer) Mode() Mode     { return b.mode }
func (b *Buffer) Radius() int    { return b.radius }
func (b *Buffer) Tolerance() int { return b.tolerance }

// SetMode switches the active tool.
func (b *Buffer) SetMode(m Mode) { b.mode = m }

// SetRadius sets the brush radius, clamped to the allowed range.
func (b *Buffer) SetRadius(r int) {
	b.radius = clamp(r, MinBrushRadius, MaxBrushRadius)
}

// SetTolerance sets the magic-fill channel tolerance, clamped.
func (b *Buffer) SetTolerance(t int) {
	b.tolerance = clamp(t, MinTolerance, MaxTolerance)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Image returns the current working pixels.
func (b *Buffer) Image() *image.RGBA { return b.working }

// StrokeBegin paints a dot at a buffer-local point and starts a stroke.
// Magic mode ignores strokes; it fills on Click instead.
func (b *Buffer) StrokeBegin(x, y float64) {
	if b.mode == ModeMagic {
		return
	}
	b.stroking = true
	b.lastX, b.lastY = x, y
	b.applyBrush(x, y)
}

// StrokeMove extends the stroke to a new point, stamping the brush at fixed
// steps along the segment so coverage is continuous.
func (b *Buffer) StrokeMove(x, y float64) {
	if !b.stroking {
		return
	}
	dx := x - b.lastX
	dy := y - b.lastY
	dist := math.Hypot(dx, dy)
	steps := int(dist / strokeStep)
	for i := 1; i <= steps; i++ {
		t := float64(i) / float64(steps)
		b.applyBrush(b.lastX+dx*t, b.lastY+dy*t)
	}
	if steps == 0 {
		b.applyBrush(x, y)
	}
	b.lastX, b.lastY = x, y
}

// StrokeEnd finishes the stroke and commits one undo snapshot if any pixel
// changed.
func (b *Buffer) StrokeEnd() {
	if !b.stroking {
		return
	}
	b.stroking = false
	if b.touched {
		b.pushUndo()
		b.touched = false
	}
}

// Click performs a magic flood fill at a buffer-local point. In erase and
// restore mode a click is just a dot stroke.
func (b *Buffer) Click(x, y float64) {
	if b.mode != ModeMagic {
		b.StrokeBegin(x, y)
		b.StrokeEnd()
		return
	}
	if b.floodFill(int(x), int(y)) > 0 {
		b.pushUndo()
	}
}

// applyBrush stamps the active brush at one point. Points outside the buffer
// just have no effect there.
func (b *Buffer) applyBrush(cx, cy float64) {
	r := float64(b.radius)
	x0 := int(math.Floor(cx - r))
	x1 := int(math.Ceil(cx + r))
	y0 := int(math.Floor(cy - r))
	y1 := int(math.Ceil(cy + r))
	for y := y0; y <= y1; y++ {
		if y < 0 || y >= b.height {
			continue
		}
		for x := x0; x <= x1; x++ {
			if x < 0 || x >= b.width {
				continue
			}
			ddx := float64(x) - cx
			ddy := float64(y) - cy
			if ddx*ddx+ddy*ddy > r*r {
				continue
			}
			i := b.working.PixOffset(x, y)
			switch b.mode {
			case ModeErase:
				if b.working.Pix[i+3] != 0 {
					b.working.Pix[i+3] = 0
					b.touched = true
				}
			case ModeRestore:
				if !bytes.Equal(b.working.Pix[i:i+4], b.original.Pix[i:i+4]) {
					copy(b.working.Pix[i:i+4], b.original.Pix[i:i+4])
					b.touched = true
				}
			}
		}
	}
}

func (b *Buffer) pushUndo() {
	snap := append([]byte(nil), b.working.Pix...)
	b.undo = append(b.undo[:b.cursor+1], snap)
	if len(b.undo) > editUndoLimit {
		b.undo = b.undo[1:]
	}
	b.cursor = len(b.undo) - 1
}

// Undo reverts the last stroke or fill. No-op at the unmodified entry.
func (b *Buffer) Undo() {
	if b.cursor == 0 {
		return
	}
	b.cursor--
	copy(b.working.Pix, b.undo[b.cursor])
}

// Redo re-applies an undone stroke or fill.
func (b *Buffer) Redo() {
	if b.cursor >= len(b.undo)-1 {
		return
	}
	b.cursor++
	copy(b.working.Pix, b.undo[b.cursor])
}

// CanUndo reports whether an earlier pixel state exists.
func (b *Buffer) CanUndo() bool { return b.cursor > 0 }

// CanRedo reports whether a later pixel state exists.
func (b *Buffer) CanRedo() bool { return b.cursor < len(b.undo)-1 }

// Commit encodes the working buffer as PNG for writing back into the image
// object's pixel source. The buffer is not reusable after commit.
func (b *Buffer) Commit() ([]byte, error) {
	var out bytes.Buffer
	if err := png.Encode(&out, b.working); err != nil {
		logrus.WithError(err).Error("raster: commit encode failed")
		return nil, err
	}
	return out.Bytes(), nil
}
