// Package overlay - Draws decoded results onto OpenCV frames for the live preview.
package overlay

import (
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"github.com/nvr-ai/go-yolo/models"
	"github.com/nvr-ai/go-yolo/models/postprocess"
)

// Style controls how results are drawn.
type Style struct {
	Thickness      int
	FontScale      float64
	MaskOpacity    float64
	KeypointRadius int
}

// DefaultStyle is used when Draw is given a zero Style.
var DefaultStyle = Style{
	Thickness:      2,
	FontScale:      0.5,
	MaskOpacity:    0.5,
	KeypointRadius: 4,
}

// palette cycles per class so neighbouring classes are easy to tell apart.
var palette = []color.RGBA{
	{R: 255, G: 56, B: 56, A: 255},
	{R: 255, G: 157, B: 151, A: 255},
	{R: 255, G: 112, B: 31, A: 255},
	{R: 255, G: 178, B: 29, A: 255},
	{R: 207, G: 210, B: 49, A: 255},
	{R: 72, G: 249, B: 10, A: 255},
	{R: 26, G: 147, B: 52, A: 255},
	{R: 0, G: 212, B: 187, A: 255},
	{R: 0, G: 194, B: 255, A: 255},
	{R: 52, G: 69, B: 147, A: 255},
	{R: 100, G: 115, B: 255, A: 255},
	{R: 203, G: 56, B: 255, A: 255},
}

// ClassColor returns the drawing color for a class index.
func ClassColor(class int) color.RGBA {
	if class < 0 {
		class = -class
	}
	return palette[class%len(palette)]
}

// RGB converts a packed 0xRRGGBB value.
func RGB(v uint32) color.RGBA {
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 255}
}

// Draw renders results onto mat, a BGR frame of the size the results were decoded for.
//
// Arguments:
//   - mat: The frame to draw on.
//   - results: The decoded results.
//   - style: Drawing parameters; the zero value selects DefaultStyle.
func Draw(mat *gocv.Mat, results []postprocess.Result, style Style) {
	if mat == nil || mat.Empty() {
		return
	}
	if style == (Style{}) {
		style = DefaultStyle
	}

	bounds := image.Rect(0, 0, mat.Cols(), mat.Rows())
	for _, r := range results {
		c := ClassColor(r.ClassID())

		switch v := r.(type) {
		case postprocess.Segmentation:
			blendMask(mat, v.Mask, c, style.MaskOpacity)
			drawBox(mat, v.Detection, c, bounds, style)
		case postprocess.Pose:
			drawBox(mat, v.Detection, c, bounds, style)
			drawSkeleton(mat, v, style)
		case postprocess.Detection:
			drawBox(mat, v, c, bounds, style)
		}
	}
}

func drawBox(mat *gocv.Mat, d postprocess.Detection, c color.RGBA, bounds image.Rectangle, style Style) {
	px := d.Box.Pixels(bounds)
	if px.Empty() {
		return
	}
	gocv.Rectangle(mat, px, c, style.Thickness)

	label := fmt.Sprintf("%s %.2f", d.Label, d.Score)
	size := gocv.GetTextSize(label, gocv.FontHersheySimplex, style.FontScale, 1)
	origin := image.Pt(px.Min.X, px.Min.Y-4)
	if origin.Y < size.Y {
		origin.Y = px.Min.Y + size.Y + 4
	}
	gocv.Rectangle(mat, image.Rect(origin.X, origin.Y-size.Y-2, origin.X+size.X, origin.Y+2), c, -1)
	gocv.PutText(mat, label, origin, gocv.FontHersheySimplex, style.FontScale, color.RGBA{A: 255}, 1)
}

func drawSkeleton(mat *gocv.Mat, p postprocess.Pose, style Style) {
	for _, bone := range models.PoseSkeleton {
		a, b := bone.Indices()
		ka, kb := p.Keypoints[a], p.Keypoints[b]
		if !ka.Visible || !kb.Visible {
			continue
		}
		gocv.Line(mat,
			image.Pt(int(ka.X), int(ka.Y)),
			image.Pt(int(kb.X), int(kb.Y)),
			RGB(models.KeypointColors[a]), style.Thickness)
	}
	for i, kp := range p.Keypoints {
		if !kp.Visible {
			continue
		}
		gocv.Circle(mat, image.Pt(int(kp.X), int(kp.Y)), style.KeypointRadius, RGB(models.KeypointColors[i]), -1)
	}
}

// blendMask tints the masked pixels of a continuous 8-bit BGR mat.
func blendMask(mat *gocv.Mat, mask *image.Alpha, c color.RGBA, opacity float64) {
	if mask == nil || mat.Type() != gocv.MatTypeCV8UC3 || !mat.IsContinuous() {
		return
	}
	data, err := mat.DataPtrUint8()
	if err != nil {
		return
	}

	cols := mat.Cols()
	area := mask.Bounds().Intersect(image.Rect(0, 0, cols, mat.Rows()))
	bgr := [3]float64{float64(c.B), float64(c.G), float64(c.R)}
	for y := area.Min.Y; y < area.Max.Y; y++ {
		for x := area.Min.X; x < area.Max.X; x++ {
			if mask.AlphaAt(x, y).A == 0 {
				continue
			}
			i := (y*cols + x) * 3
			for ch := 0; ch < 3; ch++ {
				data[i+ch] = uint8(float64(data[i+ch])*(1-opacity) + bgr[ch]*opacity)
			}
		}
	}
}
