package yolo

import (
	"image"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvr-ai/go-yolo/images"
	"github.com/nvr-ai/go-yolo/models/model"
	"github.com/nvr-ai/go-yolo/models/postprocess"
)

var (
	nan = float32(math.NaN())
	inf = float32(math.Inf(1))
)

// output builds a feature-major [1, F, N] tensor one candidate at a time.
type output struct {
	f, n int
	data []float32
}

func newOutput(f, n int) *output {
	return &output{f: f, n: n, data: make([]float32, f*n)}
}

// set writes features 0..len(values)-1 of candidate i.
func (o *output) set(i int, values ...float32) *output {
	for f, v := range values {
		o.data[f*o.n+i] = v
	}
	return o
}

func (o *output) at(i, f int, v float32) *output {
	o.data[f*o.n+i] = v
	return o
}

func (o *output) tensor() postprocess.Tensor {
	return postprocess.NewTensor(o.data, 1, o.f, o.n)
}

const numCOCO = 80

var hd = image.Pt(1280, 720)

func assertRect(t *testing.T, want, got images.Rect) {
	t.Helper()
	assert.InDelta(t, want.X1, got.X1, 1e-3, "X1")
	assert.InDelta(t, want.Y1, got.Y1, 1e-3, "Y1")
	assert.InDelta(t, want.X2, got.X2, 1e-3, "X2")
	assert.InDelta(t, want.Y2, got.Y2, 1e-3, "Y2")
}

func TestDecodeDetections_Scaling(t *testing.T) {
	tests := []struct {
		name      string
		xc, yc    float32
		w, h      float32
		class     int
		wantBox   images.Rect
		wantLabel string
	}{
		{
			name:      "center 320 size 100",
			xc:        320,
			yc:        320,
			w:         100,
			h:         100,
			class:     0,
			wantBox:   images.Rect{X1: 540, Y1: 303.75, X2: 740, Y2: 416.25},
			wantLabel: "person",
		},
		{
			name:      "model box 150-350",
			xc:        250,
			yc:        250,
			w:         200,
			h:         200,
			class:     2,
			wantBox:   images.Rect{X1: 300, Y1: 168.75, X2: 700, Y2: 393.75},
			wantLabel: "car",
		},
		{
			name:      "clamped at the right edge",
			xc:        620,
			yc:        320,
			w:         100,
			h:         100,
			class:     79,
			wantBox:   images.Rect{X1: 1140, Y1: 303.75, X2: 1280, Y2: 416.25},
			wantLabel: "toothbrush",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := newOutput(4+numCOCO, 3).set(0, tt.xc, tt.yc, tt.w, tt.h).at(0, 4+tt.class, 0.9)

			dets, err := DecodeDetections(out.tensor(), hd, DefaultConfig(model.TypeDetection))
			require.NoError(t, err)
			require.Len(t, dets, 1)

			assertRect(t, tt.wantBox, dets[0].Box)
			assert.Equal(t, tt.class, dets[0].Class)
			assert.Equal(t, tt.wantLabel, dets[0].Label)
			assert.InDelta(t, 0.9, dets[0].Score, 1e-6)
		})
	}
}

func TestDecodeDetections_Filtering(t *testing.T) {
	tests := []struct {
		name  string
		build func() *output
		want  int
	}{
		{
			name: "all scores below threshold",
			build: func() *output {
				return newOutput(4+numCOCO, 2).
					set(0, 320, 320, 100, 100).at(0, 4, 0.49).
					set(1, 100, 100, 50, 50).at(1, 10, 0.2)
			},
			want: 0,
		},
		{
			name: "score equal to threshold is kept",
			build: func() *output {
				return newOutput(4+numCOCO, 1).set(0, 320, 320, 100, 100).at(0, 4, 0.5)
			},
			want: 1,
		},
		{
			name: "zero width",
			build: func() *output {
				return newOutput(4+numCOCO, 1).set(0, 320, 320, 0, 100).at(0, 4, 0.9)
			},
			want: 0,
		},
		{
			name: "negative height",
			build: func() *output {
				return newOutput(4+numCOCO, 1).set(0, 320, 320, 100, -5).at(0, 4, 0.9)
			},
			want: 0,
		},
		{
			name: "scaled box below 20 pixels",
			build: func() *output {
				// 20x16 model pixels -> 40x18 frame pixels.
				return newOutput(4+numCOCO, 1).set(0, 320, 320, 20, 16).at(0, 4, 0.9)
			},
			want: 0,
		},
		{
			name: "IoU 0.6 same class keeps one",
			build: func() *output {
				return newOutput(4+numCOCO, 2).
					set(0, 320, 320, 100, 100).at(0, 4, 0.9).
					set(1, 345, 320, 100, 100).at(1, 4, 0.8)
			},
			want: 1,
		},
		{
			name: "IoU 0.6 different classes keeps both",
			build: func() *output {
				return newOutput(4+numCOCO, 2).
					set(0, 320, 320, 100, 100).at(0, 4, 0.9).
					set(1, 345, 320, 100, 100).at(1, 5, 0.8)
			},
			want: 2,
		},
		{
			name: "NaN class scores",
			build: func() *output {
				o := newOutput(4+numCOCO, 1).set(0, 320, 320, 100, 100)
				for k := 0; k < numCOCO; k++ {
					o.at(0, 4+k, nan)
				}
				return o
			},
			want: 0,
		},
		{
			name: "NaN first class falls through to the next",
			build: func() *output {
				return newOutput(4+numCOCO, 1).set(0, 320, 320, 100, 100).at(0, 4, nan).at(0, 6, 0.8)
			},
			want: 1,
		},
		{
			name: "NaN size",
			build: func() *output {
				return newOutput(4+numCOCO, 1).set(0, 320, 320, nan, 100).at(0, 4, 0.9)
			},
			want: 0,
		},
		{
			name: "NaN center",
			build: func() *output {
				return newOutput(4+numCOCO, 1).set(0, nan, 320, 100, 100).at(0, 4, 0.9)
			},
			want: 0,
		},
		{
			name: "infinite score",
			build: func() *output {
				return newOutput(4+numCOCO, 1).set(0, 320, 320, 100, 100).at(0, 4, inf)
			},
			want: 0,
		},
		{
			name: "infinite size",
			build: func() *output {
				return newOutput(4+numCOCO, 1).set(0, 320, 320, inf, 100).at(0, 4, 0.9)
			},
			want: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dets, err := DecodeDetections(tt.build().tensor(), hd, DefaultConfig(model.TypeDetection))
			require.NoError(t, err)
			assert.Len(t, dets, tt.want)
		})
	}
}

func TestDecodeDetections_IoUSuppressionKeepsHighest(t *testing.T) {
	out := newOutput(4+numCOCO, 2).
		set(0, 345, 320, 100, 100).at(0, 4, 0.8).
		set(1, 320, 320, 100, 100).at(1, 4, 0.9)

	dets, err := DecodeDetections(out.tensor(), hd, DefaultConfig(model.TypeDetection))
	require.NoError(t, err)
	require.Len(t, dets, 1)
	assert.InDelta(t, 0.9, dets[0].Score, 1e-6)
	assertRect(t, images.Rect{X1: 540, Y1: 303.75, X2: 740, Y2: 416.25}, dets[0].Box)
}

func TestDecodeDetections_UnknownLabel(t *testing.T) {
	cfg := DefaultConfig(model.TypeDetection)
	cfg.Classes = model.NewOutputClassSet(model.ModelFamilyYOLO, "cat", "dog")

	out := newOutput(4+3, 1).set(0, 320, 320, 100, 100).at(0, 6, 0.9)
	dets, err := DecodeDetections(out.tensor(), hd, cfg)
	require.NoError(t, err)
	require.Len(t, dets, 1)
	assert.Equal(t, 2, dets[0].Class)
	assert.Equal(t, model.UnknownClass, dets[0].Label)
}

func TestDecodeDetections_MinBoxSizeDisabled(t *testing.T) {
	cfg := DefaultConfig(model.TypeDetection)
	cfg.MinBoxSize = 0

	out := newOutput(4+numCOCO, 1).set(0, 320, 320, 4, 4).at(0, 4, 0.9)
	dets, err := DecodeDetections(out.tensor(), hd, cfg)
	require.NoError(t, err)
	assert.Len(t, dets, 1)
}

func TestDecodeDetections_Errors(t *testing.T) {
	cfg := DefaultConfig(model.TypeDetection)

	_, err := DecodeDetections(postprocess.NewTensor(make([]float32, 10), 1, 84, 8400), hd, cfg)
	assert.ErrorIs(t, err, postprocess.ErrShapeMismatch)

	_, err = DecodeDetections(postprocess.NewTensor(make([]float32, 84*2), 84, 2), hd, cfg)
	assert.ErrorIs(t, err, postprocess.ErrShapeMismatch)

	_, err = DecodeDetections(newOutput(84, 2).tensor(), image.Point{}, cfg)
	assert.ErrorIs(t, err, ErrInvalidSize)

	cfg.InputSize = image.Point{}
	_, err = DecodeDetections(newOutput(84, 2).tensor(), hd, cfg)
	assert.ErrorIs(t, err, ErrInvalidSize)
}

func TestDecodeDetections_Invariants(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	const n = 400
	out := newOutput(4+numCOCO, n)
	for i := 0; i < n; i++ {
		out.set(i, r.Float32()*700-30, r.Float32()*700-30, r.Float32()*300-10, r.Float32()*300-10)
		for c := 0; c < numCOCO; c++ {
			out.at(i, 4+c, r.Float32()*0.6)
		}
	}

	cfg := DefaultConfig(model.TypeDetection)
	dets, err := DecodeDetections(out.tensor(), hd, cfg)
	require.NoError(t, err)
	require.NotEmpty(t, dets)

	for i, d := range dets {
		assert.GreaterOrEqual(t, d.Score, cfg.ConfidenceThreshold)
		assert.GreaterOrEqual(t, d.Box.X2, d.Box.X1)
		assert.GreaterOrEqual(t, d.Box.Y2, d.Box.Y1)
		assert.GreaterOrEqual(t, d.Box.Width(), cfg.MinBoxSize)
		assert.GreaterOrEqual(t, d.Box.Height(), cfg.MinBoxSize)
		assert.True(t, d.Box.X1 >= 0 && d.Box.X2 <= 1280 && d.Box.Y1 >= 0 && d.Box.Y2 <= 720)
		for j := i + 1; j < len(dets); j++ {
			if d.Class == dets[j].Class {
				assert.LessOrEqual(t, images.CalculateIoU(d.Box, dets[j].Box), cfg.IoUThreshold)
			}
		}
	}
}

func TestDetector_Decode(t *testing.T) {
	d := &Detector{Config: DefaultConfig(model.TypeDetection)}
	assert.Equal(t, 1, d.NumOutputs())

	out := newOutput(4+numCOCO, 1).set(0, 320, 320, 100, 100).at(0, 4, 0.9)
	results, err := d.Decode([]postprocess.Tensor{out.tensor()}, hd)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, postprocess.KindDetection, results[0].Kind())

	_, err = d.Decode(nil, hd)
	assert.ErrorIs(t, err, postprocess.ErrShapeMismatch)
}

func BenchmarkDecodeDetections(b *testing.B) {
	r := rand.New(rand.NewSource(1))
	out := newOutput(4+numCOCO, 8400)
	for i := range out.data {
		out.data[i] = r.Float32() * 0.55
	}
	tensor := out.tensor()
	cfg := DefaultConfig(model.TypeDetection)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = DecodeDetections(tensor, hd, cfg)
	}
}
