package yolo

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvr-ai/go-yolo/images"
	"github.com/nvr-ai/go-yolo/models/model"
	"github.com/nvr-ai/go-yolo/models/postprocess"
)

const (
	segClasses = 2
	segCoeffs  = 2
	protoSide  = 4
)

// protoTensor builds a [1, M, 4, 4] prototype tensor from one function per channel.
func protoTensor(channels ...func(x, y int) float32) postprocess.Tensor {
	data := make([]float32, len(channels)*protoSide*protoSide)
	for c, fn := range channels {
		for y := 0; y < protoSide; y++ {
			for x := 0; x < protoSide; x++ {
				data[c*protoSide*protoSide+y*protoSide+x] = fn(x, y)
			}
		}
	}
	return postprocess.NewTensor(data, 1, len(channels), protoSide, protoSide)
}

func constant(v float32) func(int, int) float32 {
	return func(int, int) float32 { return v }
}

// leftHalf is strongly positive for the left two prototype columns and negative elsewhere.
func leftHalf(x, _ int) float32 {
	if x < protoSide/2 {
		return 10
	}
	return -10
}

func segOutput(n int) *output {
	return newOutput(4+segClasses+segCoeffs, n)
}

func coeff(o *output, i, k int, v float32) *output {
	return o.at(i, 4+segClasses+k, v)
}

var segFrame = image.Pt(160, 160)

func TestDecodeSegmentation_MaskInsideBox(t *testing.T) {
	// Model box (160,160)-(480,480) -> frame box (40,40)-(120,120).
	out := segOutput(1).set(0, 320, 320, 320, 320).at(0, 4, 0.9)
	coeff(out, 0, 0, 1)

	segs, err := DecodeSegmentation(out.tensor(), protoTensor(constant(10), constant(0)), segFrame,
		DefaultConfig(model.TypeSegmentation))
	require.NoError(t, err)
	require.Len(t, segs, 1)

	s := segs[0]
	assertRect(t, images.Rect{X1: 40, Y1: 40, X2: 120, Y2: 120}, s.Box)
	assert.Equal(t, "person", s.Label)
	require.NotNil(t, s.Mask)
	assert.Equal(t, image.Rect(0, 0, 160, 160), s.Mask.Bounds())

	// Every pixel with 40 <= x,y <= 120 is set; nothing else is.
	assert.Equal(t, 81*81, s.MaskArea())
	for y := 0; y < 160; y++ {
		for x := 0; x < 160; x++ {
			if s.Mask.AlphaAt(x, y).A != 0 {
				require.True(t, s.Box.Contains(float32(x), float32(y)), "pixel (%d,%d) outside box", x, y)
			}
		}
	}
}

func TestDecodeSegmentation_MaskFollowsPrototypes(t *testing.T) {
	out := segOutput(1).set(0, 320, 320, 320, 320).at(0, 5, 0.8)
	coeff(out, 0, 1, 1)

	segs, err := DecodeSegmentation(out.tensor(), protoTensor(constant(0), leftHalf), segFrame,
		DefaultConfig(model.TypeSegmentation))
	require.NoError(t, err)
	require.Len(t, segs, 1)

	m := segs[0].Mask
	assert.Equal(t, 1, segs[0].Class)
	assert.Equal(t, uint8(255), m.AlphaAt(60, 80).A)
	assert.Equal(t, uint8(0), m.AlphaAt(100, 80).A)
	assert.Equal(t, uint8(0), m.AlphaAt(20, 80).A, "left of the box")
}

func TestDecodeSegmentation_NegativeCoefficientsGiveEmptyMask(t *testing.T) {
	out := segOutput(1).set(0, 320, 320, 320, 320).at(0, 4, 0.9)
	coeff(out, 0, 0, -1)

	segs, err := DecodeSegmentation(out.tensor(), protoTensor(constant(10), constant(10)), segFrame,
		DefaultConfig(model.TypeSegmentation))
	require.NoError(t, err)
	require.Len(t, segs, 1)
	assert.Equal(t, 0, segs[0].MaskArea())
}

func TestDecodeSegmentation_Filtering(t *testing.T) {
	out := segOutput(4).
		// kept
		set(0, 320, 320, 320, 320).at(0, 4, 0.9).
		// overlaps candidate 0 with the same class
		set(1, 330, 320, 320, 320).at(1, 4, 0.7).
		// below threshold
		set(2, 100, 100, 160, 160).at(2, 4, 0.3).
		// 40 model pixels -> 10 frame pixels, below the size floor
		set(3, 500, 500, 40, 40).at(3, 5, 0.95)

	segs, err := DecodeSegmentation(out.tensor(), protoTensor(constant(10), constant(0)), segFrame,
		DefaultConfig(model.TypeSegmentation))
	require.NoError(t, err)
	require.Len(t, segs, 1)
	assert.InDelta(t, 0.9, segs[0].Score, 1e-6)
}

func TestDecodeSegmentation_NoSurvivors(t *testing.T) {
	out := segOutput(2)

	segs, err := DecodeSegmentation(out.tensor(), protoTensor(constant(1), constant(1)), segFrame,
		DefaultConfig(model.TypeSegmentation))
	require.NoError(t, err)
	assert.Empty(t, segs)
}

func TestDecodeSegmentation_Errors(t *testing.T) {
	cfg := DefaultConfig(model.TypeSegmentation)
	good := segOutput(1).tensor()
	proto := protoTensor(constant(0), constant(0))

	tests := []struct {
		name  string
		det   postprocess.Tensor
		proto postprocess.Tensor
	}{
		{"proto not 4D", good, postprocess.NewTensor(make([]float32, 32), 2, 4, 4)},
		{"proto length", good, postprocess.NewTensor(make([]float32, 3), 1, 2, 4, 4)},
		{"proto without channels", good, postprocess.NewTensor(nil, 1, 0, 4, 4)},
		{"too few features for coefficients", newOutput(4+segCoeffs, 1).tensor(), proto},
		{"detection not 3D", postprocess.NewTensor(make([]float32, 8), 8, 1), proto},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeSegmentation(tt.det, tt.proto, segFrame, cfg)
			assert.ErrorIs(t, err, postprocess.ErrShapeMismatch)
		})
	}
}

func TestSegmenter_Decode(t *testing.T) {
	s := &Segmenter{Config: DefaultConfig(model.TypeSegmentation)}
	assert.Equal(t, 2, s.NumOutputs())

	out := segOutput(1).set(0, 320, 320, 320, 320).at(0, 4, 0.9)
	coeff(out, 0, 0, 1)
	results, err := s.Decode([]postprocess.Tensor{out.tensor(), protoTensor(constant(10), constant(0))}, segFrame)
	require.NoError(t, err)
	require.Len(t, results, 1)

	seg, ok := results[0].(postprocess.Segmentation)
	require.True(t, ok)
	assert.Equal(t, postprocess.KindSegmentation, seg.Kind())
	assert.NotNil(t, seg.Mask)

	_, err = s.Decode([]postprocess.Tensor{out.tensor()}, segFrame)
	assert.ErrorIs(t, err, postprocess.ErrShapeMismatch)
}

func TestSigmoid(t *testing.T) {
	assert.InDelta(t, 0.5, sigmoid(0), 1e-6)
	assert.InDelta(t, 1, sigmoid(50), 1e-6)
	assert.InDelta(t, 0, sigmoid(-200), 1e-6)
}
