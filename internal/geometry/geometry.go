// Package geometry implements the eraser math used to split and remove
// document elements. All functions are pure.
package geometry

import (
	"math"

	"github.com/npezzotti/go-whiteboard/internal/types"
)

const (
	// RectStepsPerEdge is the number of segments each rectangle edge is cut into.
	RectStepsPerEdge = 20
	// EllipseSteps is the number of segments approximating an ellipse perimeter.
	EllipseSteps = 60
)

type Point struct {
	X float64
	Y float64
}

// Style is the ink carried over to the pieces of a split stroke.
type Style struct {
	Color     string
	LineWidth float64
}

// DistancePointToSegment returns the distance from p to the closest point of
// the segment a-b.
func DistancePointToSegment(p, a, b Point) float64 {
	dx := b.X - a.X
	dy := b.Y - a.Y
	if dx == 0 && dy == 0 {
		return math.Hypot(p.X-a.X, p.Y-a.Y)
	}

	t := ((p.X-a.X)*dx + (p.Y-a.Y)*dy) / (dx*dx + dy*dy)
	t = math.Max(0, math.Min(1, t))

	return math.Hypot(p.X-(a.X+t*dx), p.Y-(a.Y+t*dy))
}

func segmentDistance(p Point, s types.Segment) float64 {
	return DistancePointToSegment(p, Point{s.X0, s.Y0}, Point{s.X1, s.Y1})
}

// SplitFreehand removes every segment touched by the eraser and cuts the run
// at each removed segment. The surviving runs are returned in order, each one
// restyled with style and starting with a round cap.
func SplitFreehand(segs []types.Segment, center Point, radius float64, style Style) [][]types.Segment {
	var (
		pieces  [][]types.Segment
		current []types.Segment
	)

	for _, seg := range segs {
		if segmentDistance(center, seg) < radius {
			if len(current) > 0 {
				pieces = append(pieces, current)
				current = nil
			}
			continue
		}
		current = append(current, seg)
	}
	if len(current) > 0 {
		pieces = append(pieces, current)
	}

	for _, piece := range pieces {
		for i := range piece {
			piece[i].Color = style.Color
			piece[i].LineWidth = style.LineWidth
		}
		piece[0].LineCap = types.LineCapRound
	}

	return pieces
}

// RectToSegments walks the rectangle outline clockwise from its origin corner.
func RectToSegments(r types.Rect) []types.Segment {
	segs := make([]types.Segment, 0, 4*RectStepsPerEdge)
	seg := func(x0, y0, x1, y1 float64) {
		segs = append(segs, types.Segment{X0: x0, Y0: y0, X1: x1, Y1: y1, Color: r.Color, LineWidth: r.LineWidth})
	}

	n := float64(RectStepsPerEdge)
	for i := 0; i < RectStepsPerEdge; i++ {
		f0, f1 := float64(i)/n, float64(i+1)/n
		seg(r.X+f0*r.Width, r.Y, r.X+f1*r.Width, r.Y)
	}
	for i := 0; i < RectStepsPerEdge; i++ {
		f0, f1 := float64(i)/n, float64(i+1)/n
		seg(r.X+r.Width, r.Y+f0*r.Height, r.X+r.Width, r.Y+f1*r.Height)
	}
	for i := 0; i < RectStepsPerEdge; i++ {
		f0, f1 := float64(i)/n, float64(i+1)/n
		seg(r.X+r.Width-f0*r.Width, r.Y+r.Height, r.X+r.Width-f1*r.Width, r.Y+r.Height)
	}
	for i := 0; i < RectStepsPerEdge; i++ {
		f0, f1 := float64(i)/n, float64(i+1)/n
		seg(r.X, r.Y+r.Height-f0*r.Height, r.X, r.Y+r.Height-f1*r.Height)
	}

	return segs
}

// EllipseToSegments approximates the ellipse perimeter with a fixed angular step.
func EllipseToSegments(c types.Circle) []types.Segment {
	segs := make([]types.Segment, 0, EllipseSteps)
	prev := Point{c.Cx + c.Rx, c.Cy}
	for i := 1; i <= EllipseSteps; i++ {
		theta := float64(i) / EllipseSteps * 2 * math.Pi
		p := Point{c.Cx + c.Rx*math.Cos(theta), c.Cy + c.Ry*math.Sin(theta)}
		segs = append(segs, types.Segment{
			X0: prev.X, Y0: prev.Y, X1: p.X, Y1: p.Y,
			Color: c.Color, LineWidth: c.LineWidth,
		})
		prev = p
	}

	return segs
}

// Erase applies one eraser contact to a whole document. Freehand strokes and
// shapes are split into freehand pieces where touched, lines are removed
// wholesale, and text is never affected. changed reports whether anything was
// erased; when false the returned document is the input.
func Erase(strokes []types.Drawable, center Point, radius float64) ([]types.Drawable, bool) {
	out := make([]types.Drawable, 0, len(strokes))
	changed := false

	for _, d := range strokes {
		var (
			segs  []types.Segment
			style Style
		)

		switch d.Kind {
		case types.KindFreehand:
			segs = d.Freehand
			if len(segs) > 0 {
				style = Style{segs[0].Color, segs[0].LineWidth}
			}
		case types.KindRect:
			segs = RectToSegments(*d.Rect)
			style = Style{d.Rect.Color, d.Rect.LineWidth}
		case types.KindCircle:
			segs = EllipseToSegments(*d.Circle)
			style = Style{d.Circle.Color, d.Circle.LineWidth}
		case types.KindLine:
			l := d.Line
			if DistancePointToSegment(center, Point{l.X0, l.Y0}, Point{l.X1, l.Y1}) < radius {
				changed = true
				continue
			}
			out = append(out, d)
			continue
		case types.KindText:
			out = append(out, d)
			continue
		default:
			out = append(out, d)
			continue
		}

		if !touches(segs, center, radius) {
			out = append(out, d)
			continue
		}

		changed = true
		for _, piece := range SplitFreehand(segs, center, radius, style) {
			out = append(out, types.NewFreehand(piece))
		}
	}

	if !changed {
		return strokes, false
	}

	return out, true
}

// EraseTrail replays a sequence of eraser contacts in order.
func EraseTrail(strokes []types.Drawable, trail []Contact) ([]types.Drawable, bool) {
	changed := false
	for _, c := range trail {
		var ok bool
		strokes, ok = Erase(strokes, Point{c.X, c.Y}, c.Radius)
		changed = changed || ok
	}

	return strokes, changed
}

// Contact is one sampled eraser position.
type Contact struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Radius float64 `json:"radius"`
}

func touches(segs []types.Segment, center Point, radius float64) bool {
	for _, s := range segs {
		if segmentDistance(center, s) < radius {
			return true
		}
	}

	return false
}
