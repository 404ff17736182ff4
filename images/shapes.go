// Package images - Image geometry and resampling utilities.
package images

import (
	"fmt"
	"image"

	"github.com/chewxy/math32"
)

// DefaultMinBoxSize is the smallest side, in original-frame pixels, that a scaled detection box
// may have before it is discarded. Near the image borders the network emits slivers that collapse
// to a few pixels once clamped.
const DefaultMinBoxSize float32 = 20

// Rect is a lightweight bounding box in corner form.
//
// Coordinates are float32 pixels. A well-formed Rect satisfies X2 >= X1 and Y2 >= Y1.
type Rect struct {
	X1, Y1, X2, Y2 float32
}

// RectFromCenter converts a center-form box (xc, yc, w, h) into corner form.
//
// Arguments:
//   - xc, yc: The center of the box.
//   - w, h: The width and height of the box.
//
// Returns:
//   - Rect: The corner-form box.
func RectFromCenter(xc, yc, w, h float32) Rect {
	return Rect{
		X1: xc - w/2,
		Y1: yc - h/2,
		X2: xc + w/2,
		Y2: yc + h/2,
	}
}

// Width returns the horizontal extent of the box.
func (r Rect) Width() float32 {
	return r.X2 - r.X1
}

// Height returns the vertical extent of the box.
func (r Rect) Height() float32 {
	return r.Y2 - r.Y1
}

// Area returns the area of the box, or 0 for an inverted box.
func (r Rect) Area() float32 {
	w, h := r.Width(), r.Height()
	if w <= 0 || h <= 0 {
		return 0
	}
	return w * h
}

// MinSide returns the shorter of the two sides.
func (r Rect) MinSide() float32 {
	return math32.Min(r.Width(), r.Height())
}

// Valid reports whether the box has strictly positive width and height.
func (r Rect) Valid() bool {
	return r.Width() > 0 && r.Height() > 0
}

// Contains reports whether the point (x, y) lies inside the box, edges included.
func (r Rect) Contains(x, y float32) bool {
	return x >= r.X1 && x <= r.X2 && y >= r.Y1 && y <= r.Y2
}

// Pixels returns the integer pixel rectangle covered by the box, clipped to bounds.
//
// A pixel (x, y) is covered when X1 <= x <= X2 and Y1 <= y <= Y2, so the result runs from the
// ceiling of the top-left corner to the floor of the bottom-right corner (exclusive max + 1).
//
// Arguments:
//   - bounds: The frame the pixel rectangle is clipped to.
//
// Returns:
//   - image.Rectangle: The covered pixels; empty when the box misses the frame.
func (r Rect) Pixels(bounds image.Rectangle) image.Rectangle {
	px := image.Rect(
		int(math32.Ceil(r.X1)),
		int(math32.Ceil(r.Y1)),
		int(math32.Floor(r.X2))+1,
		int(math32.Floor(r.Y2))+1,
	)
	return px.Intersect(bounds)
}

// String formats the box for logs.
func (r Rect) String() string {
	return fmt.Sprintf("(%.2f, %.2f)-(%.2f, %.2f)", r.X1, r.Y1, r.X2, r.Y2)
}

// CalculateIoU returns the Intersection over Union of two boxes that share a coordinate space.
//
// IoU = Area(A ∩ B) / Area(A ∪ B), with Area(A ∪ B) = Area(A) + Area(B) - Area(A ∩ B).
//
//   - 1.0 means the boxes are identical.
//   - 0.0 means they do not overlap at all (touching edges count as no overlap).
//
// The intersection corners are the max of the top-left corners and the min of the bottom-right
// corners. Negative intersection sides are clamped to zero before multiplying, so disjoint boxes
// produce zero rather than a positive product of two negatives. A zero union only happens for
// two zero-area boxes; that degenerate case returns 0 instead of NaN.
//
// Arguments:
//   - r: The first box.
//   - o: The other box.
//
// Returns:
//   - float32: A value in [0, 1].
//
// Example:
//
// ```go
//
//	a := Rect{X1: 0, Y1: 0, X2: 100, Y2: 100}
//	b := Rect{X1: 50, Y1: 50, X2: 150, Y2: 150}
//	iou := CalculateIoU(a, b) // 2500 / 17500 = 0.142857
//
// ```
func CalculateIoU(r, o Rect) float32 {
	interW := math32.Max(0, math32.Min(r.X2, o.X2)-math32.Max(r.X1, o.X1))
	interH := math32.Max(0, math32.Min(r.Y2, o.Y2)-math32.Max(r.Y1, o.Y1))
	interArea := interW * interH
	if interArea == 0 {
		return 0
	}

	unionArea := r.Area() + o.Area() - interArea
	if unionArea <= 0 {
		return 0
	}

	return interArea / unionArea
}

// ScaleRect maps a box from model-input space into original-frame space.
//
// X and Y are scaled independently (the preprocessor stretches frames without preserving aspect
// ratio), and every coordinate is then clamped to [0, width] / [0, height] of the original frame.
//
// Arguments:
//   - r: The box in model-input pixels.
//   - modelSize: The model input size (X = width, Y = height).
//   - originalSize: The original frame size (X = width, Y = height).
//
// Returns:
//   - Rect: The box in original-frame pixels.
func ScaleRect(r Rect, modelSize, originalSize image.Point) Rect {
	sx, sy := ScaleFactors(modelSize, originalSize)
	w, h := float32(originalSize.X), float32(originalSize.Y)

	return Rect{
		X1: Clamp32(r.X1*sx, 0, w),
		Y1: Clamp32(r.Y1*sy, 0, h),
		X2: Clamp32(r.X2*sx, 0, w),
		Y2: Clamp32(r.Y2*sy, 0, h),
	}
}

// ScaleFactors returns the per-axis factors that map model-input pixels to original-frame pixels.
//
// A zero model dimension yields a zero factor rather than +Inf.
func ScaleFactors(modelSize, originalSize image.Point) (float32, float32) {
	var sx, sy float32
	if modelSize.X > 0 {
		sx = float32(originalSize.X) / float32(modelSize.X)
	}
	if modelSize.Y > 0 {
		sy = float32(originalSize.Y) / float32(modelSize.Y)
	}
	return sx, sy
}

// Clamp32 limits v to [lo, hi].
func Clamp32(v, lo, hi float32) float32 {
	return math32.Max(lo, math32.Min(hi, v))
}
