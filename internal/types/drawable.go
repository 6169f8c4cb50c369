package types

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

type Kind string

const (
	KindFreehand Kind = "freehand"
	KindRect     Kind = "rect"
	KindCircle   Kind = "circle"
	KindLine     Kind = "line"
	KindText     Kind = "text"
)

const LineCapRound = "round"

var (
	ErrUnknownKind   = errors.New("unknown drawable kind")
	ErrEmptyDrawable = errors.New("empty drawable")
)

// Segment is one straight piece of ink. Freehand strokes are ordered runs of
// segments, and shapes are decomposed into segments for erasing.
type Segment struct {
	X0        float64 `json:"x0"`
	Y0        float64 `json:"y0"`
	X1        float64 `json:"x1"`
	Y1        float64 `json:"y1"`
	Color     string  `json:"color"`
	LineWidth float64 `json:"lineWidth"`
	LineCap   string  `json:"lineCap,omitempty"`
}

type Rect struct {
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Width     float64 `json:"width"`
	Height    float64 `json:"height"`
	Color     string  `json:"color"`
	LineWidth float64 `json:"lineWidth"`
}

// Circle is an axis aligned ellipse.
type Circle struct {
	Cx        float64 `json:"cx"`
	Cy        float64 `json:"cy"`
	Rx        float64 `json:"rx"`
	Ry        float64 `json:"ry"`
	Color     string  `json:"color"`
	LineWidth float64 `json:"lineWidth"`
}

type Line struct {
	Id        string  `json:"id,omitempty"`
	X0        float64 `json:"x0"`
	Y0        float64 `json:"y0"`
	X1        float64 `json:"x1"`
	Y1        float64 `json:"y1"`
	Color     string  `json:"color"`
	LineWidth float64 `json:"lineWidth"`
}

type Text struct {
	Id       string  `json:"id"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Value    string  `json:"value"`
	Color    string  `json:"color"`
	FontSize float64 `json:"fontSize"`
}

// Drawable is one element of a room document. Exactly one variant field is
// set, selected by Kind.
type Drawable struct {
	Kind     Kind
	Freehand []Segment
	Rect     *Rect
	Circle   *Circle
	Line     *Line
	Text     *Text
}

func NewFreehand(segs []Segment) Drawable { return Drawable{Kind: KindFreehand, Freehand: segs} }
func NewRect(r Rect) Drawable             { return Drawable{Kind: KindRect, Rect: &r} }
func NewCircle(c Circle) Drawable         { return Drawable{Kind: KindCircle, Circle: &c} }
func NewLine(l Line) Drawable             { return Drawable{Kind: KindLine, Line: &l} }
func NewText(t Text) Drawable             { return Drawable{Kind: KindText, Text: &t} }

// Id returns the element identifier for kinds that carry one.
func (d Drawable) Id() string {
	switch d.Kind {
	case KindLine:
		if d.Line != nil {
			return d.Line.Id
		}
	case KindText:
		if d.Text != nil {
			return d.Text.Id
		}
	case KindFreehand, KindRect, KindCircle:
	}
	return ""
}

// Validate reports whether the variant matching Kind is present.
func (d Drawable) Validate() error {
	switch d.Kind {
	case KindFreehand:
		if len(d.Freehand) == 0 {
			return fmt.Errorf("freehand: %w", ErrEmptyDrawable)
		}
	case KindRect:
		if d.Rect == nil {
			return fmt.Errorf("rect: %w", ErrEmptyDrawable)
		}
	case KindCircle:
		if d.Circle == nil {
			return fmt.Errorf("circle: %w", ErrEmptyDrawable)
		}
	case KindLine:
		if d.Line == nil {
			return fmt.Errorf("line: %w", ErrEmptyDrawable)
		}
	case KindText:
		if d.Text == nil {
			return fmt.Errorf("text: %w", ErrEmptyDrawable)
		}
		if d.Text.Id == "" {
			return errors.New("text: missing id")
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownKind, d.Kind)
	}
	return nil
}

func (d Drawable) Clone() Drawable {
	c := Drawable{Kind: d.Kind}
	switch d.Kind {
	case KindFreehand:
		if d.Freehand != nil {
			c.Freehand = make([]Segment, len(d.Freehand))
			copy(c.Freehand, d.Freehand)
		}
	case KindRect:
		if d.Rect != nil {
			r := *d.Rect
			c.Rect = &r
		}
	case KindCircle:
		if d.Circle != nil {
			e := *d.Circle
			c.Circle = &e
		}
	case KindLine:
		if d.Line != nil {
			l := *d.Line
			c.Line = &l
		}
	case KindText:
		if d.Text != nil {
			t := *d.Text
			c.Text = &t
		}
	}
	return c
}

// CloneStrokes deep copies a document. A nil input yields an empty, non-nil
// slice so snapshots always encode as [].
func CloneStrokes(strokes []Drawable) []Drawable {
	out := make([]Drawable, len(strokes))
	for i, s := range strokes {
		out[i] = s.Clone()
	}
	return out
}

func (d Drawable) MarshalJSON() ([]byte, error) {
	switch d.Kind {
	case KindFreehand:
		if d.Freehand == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(d.Freehand)
	case KindRect:
		if d.Rect == nil {
			break
		}
		return json.Marshal(struct {
			Type Kind `json:"type"`
			*Rect
		}{KindRect, d.Rect})
	case KindCircle:
		if d.Circle == nil {
			break
		}
		return json.Marshal(struct {
			Type Kind `json:"type"`
			*Circle
		}{KindCircle, d.Circle})
	case KindLine:
		if d.Line == nil {
			break
		}
		return json.Marshal(struct {
			Type Kind `json:"type"`
			*Line
		}{KindLine, d.Line})
	case KindText:
		if d.Text == nil {
			break
		}
		return json.Marshal(struct {
			Type Kind `json:"type"`
			*Text
		}{KindText, d.Text})
	default:
		return nil, fmt.Errorf("marshal drawable: %w: %q", ErrUnknownKind, d.Kind)
	}

	return nil, fmt.Errorf("marshal %s: %w", d.Kind, ErrEmptyDrawable)
}

// UnmarshalJSON accepts a bare array of segments as a freehand stroke, or an
// object discriminated by its "type" field.
func (d *Drawable) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return fmt.Errorf("unmarshal drawable: %w", ErrEmptyDrawable)
	}

	switch data[0] {
	case '[':
		var segs []Segment
		if err := json.Unmarshal(data, &segs); err != nil {
			return fmt.Errorf("unmarshal freehand: %w", err)
		}
		*d = NewFreehand(segs)
		return nil
	case '{':
	default:
		return fmt.Errorf("unmarshal drawable: unexpected %q", data[0])
	}

	var head struct {
		Type Kind `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return fmt.Errorf("unmarshal drawable: %w", err)
	}

	var err error
	switch head.Type {
	case KindRect:
		var r Rect
		err = json.Unmarshal(data, &r)
		*d = NewRect(r)
	case KindCircle:
		var c Circle
		err = json.Unmarshal(data, &c)
		*d = NewCircle(c)
	case KindLine:
		var l Line
		err = json.Unmarshal(data, &l)
		*d = NewLine(l)
	case KindText:
		var t Text
		err = json.Unmarshal(data, &t)
		*d = NewText(t)
	default:
		return fmt.Errorf("unmarshal drawable: %w: %q", ErrUnknownKind, head.Type)
	}
	if err != nil {
		return fmt.Errorf("unmarshal %s: %w", head.Type, err)
	}

	return nil
}
