package inference

import (
	"image"

	"github.com/pkg/errors"

	"github.com/nvr-ai/go-yolo/images"
	"github.com/nvr-ai/go-yolo/models/postprocess"
)

// ErrNoFrame is returned when there is no frame or no scratch buffer to preprocess into.
var ErrNoFrame = errors.New("no frame to preprocess")

// Scratch owns the buffers reused across preprocessing calls: the resample canvas and the tensor
// backing array. A Scratch must only be used by one cycle at a time.
type Scratch struct {
	Filter images.ResampleFilter

	canvas *image.RGBA
	data   []float32
}

// NewScratch creates an empty scratch buffer using filter.
func NewScratch(filter images.ResampleFilter) *Scratch {
	return &Scratch{Filter: filter}
}

// Reset drops the buffers so that they can be garbage collected.
func (s *Scratch) Reset() {
	s.canvas = nil
	s.data = nil
}

// ensure sizes the buffers for size, reusing them when the size is unchanged.
func (s *Scratch) ensure(size image.Point) {
	if s.canvas == nil || s.canvas.Bounds().Size() != size {
		s.canvas = image.NewRGBA(image.Rectangle{Max: size})
	}
	if n := 3 * size.X * size.Y; len(s.data) != n {
		s.data = make([]float32, n)
	}
}

// Preprocess stretches frame to size and converts it into a planar [1, 3, H, W] tensor.
//
// The aspect ratio is not preserved. For pixel p = y*W+x the red value goes to Data[p], green to
// Data[p+W*H] and blue to Data[p+2*W*H], each divided by 255. Alpha is discarded.
//
// The returned tensor aliases the scratch buffer and is overwritten by the next call.
//
// Arguments:
//   - frame: The source frame of any size.
//   - size: The model input size (width, height).
//   - s: The scratch buffer to resample and write into.
//
// Returns:
//   - postprocess.Tensor: The input tensor.
//   - error: ErrNoFrame for a nil or empty frame or a nil scratch; an error for a non-positive size.
//
// Example:
//
// ```go
//
//	scratch := NewScratch(images.BilinearFilter)
//	input, err := Preprocess(frame, image.Pt(640, 640), scratch)
//	if err != nil {
//	    return err
//	}
//
// ```
func Preprocess(frame image.Image, size image.Point, s *Scratch) (postprocess.Tensor, error) {
	if frame == nil || s == nil || frame.Bounds().Empty() {
		return postprocess.Tensor{}, ErrNoFrame
	}
	if size.X <= 0 || size.Y <= 0 {
		return postprocess.Tensor{}, errors.Errorf("invalid target size %v", size)
	}

	s.ensure(size)
	images.Resample(s.canvas, frame, s.Filter)

	channelSize := size.X * size.Y
	red := s.data[0:channelSize]
	green := s.data[channelSize : channelSize*2]
	blue := s.data[channelSize*2 : channelSize*3]

	pix := s.canvas.Pix
	stride := s.canvas.Stride
	i := 0
	for y := 0; y < size.Y; y++ {
		row := pix[y*stride : y*stride+size.X*4]
		for x := 0; x < size.X; x++ {
			red[i] = float32(row[x*4]) / 255.0
			green[i] = float32(row[x*4+1]) / 255.0
			blue[i] = float32(row[x*4+2]) / 255.0
			i++
		}
	}

	return postprocess.NewTensor(s.data, 1, 3, size.Y, size.X), nil
}
