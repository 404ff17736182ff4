package yolo

import (
	"image"

	"github.com/pkg/errors"

	"github.com/nvr-ai/go-yolo/models/postprocess"
)

// DecodeDetections turns a [1, 4+C, N] detection output into class-aware NMS-filtered detections
// in original-frame pixels.
//
// Arguments:
//   - out: The raw output tensor.
//   - frame: The original frame size (width, height).
//   - cfg: Decode parameters.
//
// Returns:
//   - []postprocess.Detection: Kept detections, highest score first.
//   - error: postprocess.ErrShapeMismatch or ErrInvalidSize (wrapped).
//
// Example:
//
// ```go
//
//	dets, err := yolo.DecodeDetections(outputs[0], image.Pt(1280, 720), yolo.DefaultConfig(model.TypeDetection))
//	if err != nil {
//	    return err
//	}
//
// ```
func DecodeDetections(out postprocess.Tensor, frame image.Point, cfg Config) ([]postprocess.Detection, error) {
	f, n, err := out.Features3D(5)
	if err != nil {
		return nil, errors.Wrap(err, "detection output")
	}
	if err := cfg.checkSizes(frame); err != nil {
		return nil, err
	}

	candidates := cfg.scanClasses(out.Data, n, f-4, frame)
	kept := postprocess.ApplyNMS(candidates, cfg.nms(true))

	dets := make([]postprocess.Detection, len(kept))
	for i, c := range kept {
		dets[i] = c.Detection
	}
	return dets, nil
}

// Detector decodes detection models.
type Detector struct {
	Config Config
}

// NumOutputs returns 1.
func (d *Detector) NumOutputs() int { return 1 }

// Decode implements models.Decoder.
func (d *Detector) Decode(outputs []postprocess.Tensor, frame image.Point) ([]postprocess.Result, error) {
	if len(outputs) < 1 {
		return nil, errors.Wrap(postprocess.ErrShapeMismatch, "detection needs one output")
	}
	dets, err := DecodeDetections(outputs[0], frame, d.Config)
	if err != nil {
		return nil, err
	}
	return postprocess.AsResults(dets), nil
}
