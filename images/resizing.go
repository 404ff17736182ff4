package images

import (
	"fmt"
	"image"
	"strings"

	"github.com/nfnt/resize"
	"github.com/pkg/errors"
	"golang.org/x/image/draw"
)

// ResampleFilter defines the resampling algorithm used for image scaling.
type ResampleFilter int

const (
	// NearestNeighborFilter uses nearest-neighbor interpolation (fastest, lowest quality).
	NearestNeighborFilter ResampleFilter = iota
	// BilinearFilter uses bilinear interpolation (fast, good quality).
	BilinearFilter
	// CatmullRomFilter uses the Catmull-Rom cubic kernel (slower, sharper).
	CatmullRomFilter
	// LanczosFilter uses Lanczos resampling with a=3 (slowest, best quality).
	LanczosFilter
)

var filterNames = map[ResampleFilter]string{
	NearestNeighborFilter: "nearest",
	BilinearFilter:        "bilinear",
	CatmullRomFilter:      "catmullrom",
	LanczosFilter:         "lanczos",
}

// String returns the config name of the filter.
func (f ResampleFilter) String() string {
	if name, ok := filterNames[f]; ok {
		return name
	}
	return fmt.Sprintf("filter(%d)", int(f))
}

// ParseResampleFilter maps a config name onto a filter. The empty string selects bilinear.
//
// Arguments:
//   - name: One of "nearest", "bilinear", "catmullrom", "lanczos".
//
// Returns:
//   - ResampleFilter: The matching filter.
//   - error: An error if the name is unknown.
func ParseResampleFilter(name string) (ResampleFilter, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return BilinearFilter, nil
	}
	for f, n := range filterNames {
		if n == name {
			return f, nil
		}
	}
	return BilinearFilter, errors.Errorf("unknown resample filter: %q", name)
}

// Resample stretches src over the whole of dst, ignoring aspect ratio.
//
// The kernel filters write straight into dst so the caller can reuse one canvas across frames.
// Lanczos goes through nfnt/resize, which allocates an intermediate image that is then copied
// into dst.
//
// Arguments:
//   - dst: The destination canvas; its bounds define the target size.
//   - src: The source frame of arbitrary size.
//   - filter: The resampling filter.
func Resample(dst *image.RGBA, src image.Image, filter ResampleFilter) {
	bounds := dst.Bounds()

	if filter == LanczosFilter {
		resized := resize.Resize(uint(bounds.Dx()), uint(bounds.Dy()), src, resize.Lanczos3)
		draw.Draw(dst, bounds, resized, resized.Bounds().Min, draw.Src)
		return
	}

	var scaler draw.Scaler
	switch filter {
	case NearestNeighborFilter:
		scaler = draw.NearestNeighbor
	case CatmullRomFilter:
		scaler = draw.CatmullRom
	default:
		scaler = draw.BiLinear
	}
	scaler.Scale(dst, bounds, src, src.Bounds(), draw.Src, nil)
}

// ScaleMask upsamples a low-resolution mask so that it spans frame, writing only the pixels
// inside clip. Pixels of dst outside clip are left untouched.
//
// Nearest-neighbor keeps a binary mask binary.
//
// Arguments:
//   - dst: The frame-sized destination mask.
//   - frame: The rectangle the whole of src is stretched over (normally dst.Bounds()).
//   - clip: The region of dst to write.
//   - src: The low-resolution mask.
func ScaleMask(dst *image.Alpha, frame, clip image.Rectangle, src *image.Alpha) {
	sub, ok := dst.SubImage(clip).(*image.Alpha)
	if !ok || sub.Bounds().Empty() {
		return
	}
	draw.NearestNeighbor.Scale(sub, frame, src, src.Bounds(), draw.Src, nil)
}
