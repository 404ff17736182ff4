package yolo

import (
	"image"

	"github.com/chewxy/math32"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/nvr-ai/go-yolo/images"
	"github.com/nvr-ai/go-yolo/models/postprocess"
)

// DecodeSegmentation decodes a YOLO11-seg output pair.
//
// det has shape [1, 4+C+M, N]: box, C class scores and M mask coefficients per candidate.
// proto has shape [1, M, Hp, Wp]. Boxes are filtered and deduplicated exactly like
// DecodeDetections; masks are then rendered for the survivors only.
//
// Each mask is sigmoid(coefficients · prototypes) at prototype resolution, binarized at
// cfg.MaskThreshold, stretched nearest-neighbor over the whole frame and cleared outside the box.
//
// Arguments:
//   - det: The detection and coefficient tensor.
//   - proto: The prototype mask tensor.
//   - frame: The original frame size (width, height).
//   - cfg: Decode parameters.
//
// Returns:
//   - []postprocess.Segmentation: Kept instances, highest score first, each with a frame-sized mask.
//   - error: postprocess.ErrShapeMismatch or ErrInvalidSize (wrapped).
func DecodeSegmentation(det, proto postprocess.Tensor, frame image.Point, cfg Config) ([]postprocess.Segmentation, error) {
	if err := proto.Validate(); err != nil {
		return nil, errors.Wrap(err, "proto output")
	}
	if proto.Shape.Dims() != 4 || proto.Shape[0] != 1 {
		return nil, errors.Wrapf(postprocess.ErrShapeMismatch, "proto output: want [1, M, H, W], have %v", proto.Shape)
	}
	m, hp, wp := proto.Shape[1], proto.Shape[2], proto.Shape[3]
	if m < 1 || hp < 1 || wp < 1 {
		return nil, errors.Wrapf(postprocess.ErrShapeMismatch, "proto output: empty prototypes %v", proto.Shape)
	}

	f, n, err := det.Features3D(4 + 1 + m)
	if err != nil {
		return nil, errors.Wrap(err, "segmentation output")
	}
	if err := cfg.checkSizes(frame); err != nil {
		return nil, err
	}

	numClasses := f - 4 - m
	candidates := cfg.scanClasses(det.Data, n, numClasses, frame)
	kept := postprocess.ApplyNMS(candidates, cfg.nms(true))

	segs := make([]postprocess.Segmentation, len(kept))
	if len(kept) == 0 {
		return segs, nil
	}

	protos := newPrototypes(proto.Data, m, hp, wp)
	coeffs := make([]float64, m)
	for i, c := range kept {
		for k := 0; k < m; k++ {
			coeffs[k] = float64(det.Data[(4+numClasses+k)*n+c.index])
		}
		segs[i] = postprocess.Segmentation{
			Detection: c.Detection,
			Mask:      protos.render(coeffs, c.Box, frame, cfg.MaskThreshold),
		}
	}
	return segs, nil
}

// prototypes holds the [M, Hp*Wp] prototype matrix for one frame.
type prototypes struct {
	protos *mat.Dense
	sum    *mat.VecDense
	w, h   int
}

func newPrototypes(data []float32, m, h, w int) *prototypes {
	buf := make([]float64, len(data))
	for i, v := range data {
		buf[i] = float64(v)
	}
	return &prototypes{
		protos: mat.NewDense(m, h*w, buf),
		sum:    mat.NewVecDense(h*w, nil),
		w:      w,
		h:      h,
	}
}

// render builds the frame-sized binary mask for one set of coefficients.
func (p *prototypes) render(coeffs []float64, box images.Rect, frame image.Point, threshold float32) *image.Alpha {
	p.sum.MulVec(p.protos.T(), mat.NewVecDense(len(coeffs), coeffs))

	low := image.NewAlpha(image.Rect(0, 0, p.w, p.h))
	for i := range low.Pix {
		if sigmoid(float32(p.sum.AtVec(i))) > threshold {
			low.Pix[i] = 255
		}
	}

	mask := image.NewAlpha(image.Rect(0, 0, frame.X, frame.Y))
	images.ScaleMask(mask, mask.Bounds(), box.Pixels(mask.Bounds()), low)
	return mask
}

func sigmoid(x float32) float32 {
	return 1 / (1 + math32.Exp(-x))
}

// Segmenter decodes segmentation models.
type Segmenter struct {
	Config Config
}

// NumOutputs returns 2: detections first, prototypes second.
func (s *Segmenter) NumOutputs() int { return 2 }

// Decode implements models.Decoder.
func (s *Segmenter) Decode(outputs []postprocess.Tensor, frame image.Point) ([]postprocess.Result, error) {
	if len(outputs) < 2 {
		return nil, errors.Wrapf(postprocess.ErrShapeMismatch, "segmentation needs two outputs, have %d", len(outputs))
	}
	segs, err := DecodeSegmentation(outputs[0], outputs[1], frame, s.Config)
	if err != nil {
		return nil, err
	}
	return postprocess.AsResults(segs), nil
}
