package overlay

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"

	"github.com/nvr-ai/go-yolo/images"
	"github.com/nvr-ai/go-yolo/models/postprocess"
)

func blank(t *testing.T) gocv.Mat {
	t.Helper()
	mat := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), 72, 128, gocv.MatTypeCV8UC3)
	t.Cleanup(func() { _ = mat.Close() })
	return mat
}

func TestClassColor(t *testing.T) {
	assert.Equal(t, ClassColor(0), ClassColor(len(palette)))
	assert.NotEqual(t, ClassColor(0), ClassColor(1))
	assert.Equal(t, ClassColor(3), ClassColor(-3))
}

func TestRGB(t *testing.T) {
	assert.Equal(t, color.RGBA{R: 0xFF, G: 0x6B, B: 0x6B, A: 255}, RGB(0xFF6B6B))
}

func TestDraw_Mask(t *testing.T) {
	mat := blank(t)

	mask := image.NewAlpha(image.Rect(0, 0, 128, 72))
	for y := 10; y < 20; y++ {
		for x := 10; x < 20; x++ {
			mask.SetAlpha(x, y, color.Alpha{A: 255})
		}
	}
	seg := postprocess.Segmentation{
		Detection: postprocess.Detection{Box: images.Rect{X1: 60, Y1: 40, X2: 100, Y2: 70}, Score: 0.9},
		Mask:      mask,
	}

	Draw(&mat, []postprocess.Result{seg}, Style{MaskOpacity: 1, Thickness: 1, FontScale: 0.4, KeypointRadius: 2})

	c := ClassColor(0)
	v := mat.GetVecbAt(15, 15)
	assert.Equal(t, []uint8{c.B, c.G, c.R}, []uint8{v[0], v[1], v[2]})
	assert.Equal(t, uint8(0), mat.GetVecbAt(30, 30)[0])
}

func TestDraw_AllKinds(t *testing.T) {
	mat := blank(t)

	pose := postprocess.Pose{Detection: postprocess.Detection{Box: images.Rect{X1: 5, Y1: 5, X2: 60, Y2: 70}, Label: "person"}}
	for i := range pose.Keypoints {
		pose.Keypoints[i] = postprocess.Keypoint{X: float32(10 + 2*i), Y: 30, Confidence: 0.9, Visible: true}
	}
	results := []postprocess.Result{
		postprocess.Detection{Box: images.Rect{X1: 70, Y1: 10, X2: 120, Y2: 60}, Label: "dog", Class: 16},
		pose,
		postprocess.Segmentation{Detection: postprocess.Detection{Box: images.Rect{X1: 1, Y1: 1, X2: 2, Y2: 2}}},
	}

	require.NotPanics(t, func() { Draw(&mat, results, Style{}) })
	gray := mat.Reshape(1, 0)
	defer gray.Close()
	assert.Greater(t, gocv.CountNonZero(gray), 0)
}

func TestDraw_Empty(t *testing.T) {
	mat := gocv.NewMat()
	defer mat.Close()
	assert.NotPanics(t, func() { Draw(&mat, []postprocess.Result{postprocess.Detection{}}, Style{}) })
	assert.NotPanics(t, func() { Draw(nil, nil, Style{}) })
}
