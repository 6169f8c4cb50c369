package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDrawableUnmarshal(t *testing.T) {
	tcases := []struct {
		name string
		raw  string
		kind Kind
		err  bool
	}{
		{name: "freehand array", raw: `[{"x0":1,"y0":2,"x1":3,"y1":4,"color":"#000","lineWidth":5}]`, kind: KindFreehand},
		{name: "rect", raw: `{"type":"rect","x":1,"y":2,"width":3,"height":4,"color":"red","lineWidth":2}`, kind: KindRect},
		{name: "circle", raw: `{"type":"circle","cx":1,"cy":2,"rx":3,"ry":4,"color":"red","lineWidth":2}`, kind: KindCircle},
		{name: "line", raw: `{"type":"line","id":"l1","x0":0,"y0":0,"x1":10,"y1":10,"color":"red","lineWidth":2}`, kind: KindLine},
		{name: "text", raw: `{"type":"text","id":"t1","x":5,"y":5,"value":"hi","color":"#222","fontSize":20}`, kind: KindText},
		{name: "unknown type", raw: `{"type":"triangle"}`, err: true},
		{name: "missing type", raw: `{"x":1}`, err: true},
		{name: "null", raw: `null`, err: true},
		{name: "number", raw: `42`, err: true},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			var d Drawable
			err := json.Unmarshal([]byte(tc.raw), &d)
			if tc.err {
				assert.Error(t, err, "expected error for %s", tc.raw)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.kind, d.Kind, "expected kind to match")
			assert.NoError(t, d.Validate(), "expected decoded drawable to be valid")
		})
	}
}

func TestDrawableMarshal(t *testing.T) {
	t.Run("freehand encodes as bare array", func(t *testing.T) {
		d := NewFreehand([]Segment{{X0: 1, Y0: 1, X1: 2, Y1: 2, Color: "#000", LineWidth: 5, LineCap: LineCapRound}})
		b, err := json.Marshal(d)
		require.NoError(t, err)
		assert.JSONEq(t, `[{"x0":1,"y0":1,"x1":2,"y1":2,"color":"#000","lineWidth":5,"lineCap":"round"}]`, string(b))
	})

	t.Run("text carries type discriminator", func(t *testing.T) {
		d := NewText(Text{Id: "t1", X: 1, Y: 2, Value: "hello", Color: "#222", FontSize: 20})
		b, err := json.Marshal(d)
		require.NoError(t, err)
		assert.JSONEq(t, `{"type":"text","id":"t1","x":1,"y":2,"value":"hello","color":"#222","fontSize":20}`, string(b))
	})

	t.Run("mixed document keeps order and kinds", func(t *testing.T) {
		doc := []Drawable{
			NewRect(Rect{X: 1, Y: 1, Width: 10, Height: 10, Color: "red", LineWidth: 2}),
			NewFreehand([]Segment{{X1: 1, Y1: 1}}),
			NewLine(Line{Id: "l1", X1: 5, Y1: 5}),
		}
		b, err := json.Marshal(doc)
		require.NoError(t, err)

		var decoded []Drawable
		require.NoError(t, json.Unmarshal(b, &decoded))
		assert.Equal(t, doc, decoded, "expected document to survive encoding")
	})

	t.Run("unknown kind is an error", func(t *testing.T) {
		_, err := json.Marshal(Drawable{Kind: "blob"})
		assert.ErrorIs(t, err, ErrUnknownKind)
	})

	t.Run("missing variant is an error", func(t *testing.T) {
		_, err := json.Marshal(Drawable{Kind: KindRect})
		assert.ErrorIs(t, err, ErrEmptyDrawable)
	})
}

func TestDrawableValidate(t *testing.T) {
	assert.ErrorIs(t, NewFreehand(nil).Validate(), ErrEmptyDrawable)
	assert.Error(t, NewText(Text{Value: "no id"}).Validate())
	assert.ErrorIs(t, Drawable{Kind: "blob"}.Validate(), ErrUnknownKind)
	assert.NoError(t, NewCircle(Circle{Rx: 1, Ry: 1}).Validate())
}

func TestCloneStrokes(t *testing.T) {
	orig := []Drawable{
		NewFreehand([]Segment{{X0: 1}}),
		NewText(Text{Id: "t1", Value: "a"}),
	}

	c := CloneStrokes(orig)
	c[0].Freehand[0].X0 = 99
	c[1].Text.Value = "b"

	assert.Equal(t, float64(1), orig[0].Freehand[0].X0, "expected original segment to be untouched")
	assert.Equal(t, "a", orig[1].Text.Value, "expected original text to be untouched")
	assert.NotNil(t, CloneStrokes(nil), "expected clone of nil document to be empty, not nil")
}

func TestPermissionValid(t *testing.T) {
	assert.True(t, PermissionEdit.Valid())
	assert.True(t, PermissionView.Valid())
	assert.False(t, Permission("admin").Valid())
}
