// Package yolo - Decoders for YOLO11 detection, segmentation and pose outputs.
//
// All three heads emit feature-major tensors: for an output of shape [1, F, N] the value of
// feature f for candidate i lives at Data[f*N+i]. The first four features are the box center
// and size (xc, yc, w, h) in model-input pixels.
package yolo

import (
	"image"

	"github.com/chewxy/math32"
	"github.com/pkg/errors"

	"github.com/nvr-ai/go-yolo/images"
	"github.com/nvr-ai/go-yolo/models/model"
	"github.com/nvr-ai/go-yolo/models/postprocess"
)

const (
	// DefaultConfidenceThreshold filters candidates scoring below it.
	DefaultConfidenceThreshold float32 = 0.5
	// DefaultMaskThreshold binarizes the sigmoid mask.
	DefaultMaskThreshold float32 = 0.5
	// DefaultKeypointVisibility is the keypoint confidence above which a keypoint is drawn.
	DefaultKeypointVisibility float32 = 0.5
)

// ErrInvalidSize is returned when the frame or model input size has a non-positive side.
var ErrInvalidSize = errors.New("invalid size")

// Config holds the decode parameters shared by the three decoders.
type Config struct {
	// InputSize is the model input size (width, height) boxes are expressed in.
	InputSize image.Point `json:"input_size" yaml:"input_size"`
	// ConfidenceThreshold filters detections below this confidence level.
	ConfidenceThreshold float32 `json:"confidence_threshold" yaml:"confidence_threshold"`
	// IoUThreshold controls Non-Maximum Suppression.
	IoUThreshold float32 `json:"iou_threshold" yaml:"iou_threshold"`
	// MinBoxSize drops boxes whose scaled width or height is below it. 0 disables the check.
	MinBoxSize float32 `json:"min_box_size" yaml:"min_box_size"`
	// MaskThreshold binarizes segmentation masks.
	MaskThreshold float32 `json:"mask_threshold" yaml:"mask_threshold"`
	// KeypointVisibility marks keypoints with a higher confidence as visible.
	KeypointVisibility float32 `json:"keypoint_visibility" yaml:"keypoint_visibility"`
	// MaxDetections caps the results per frame. 0 keeps all.
	MaxDetections int `json:"max_detections" yaml:"max_detections"`
	// Classes maps class indices to labels.
	Classes *model.OutputClassSet `json:"-" yaml:"-"`
}

// DefaultConfig returns the decode defaults for a model type.
//
// Detection and segmentation drop boxes smaller than images.DefaultMinBoxSize; pose keeps every
// box so that distant people still get keypoints.
//
// Arguments:
//   - t: The model type.
//
// Returns:
//   - Config: Defaults with a 640x640 input and the COCO classes.
func DefaultConfig(t model.Type) Config {
	cfg := Config{
		InputSize:           image.Pt(640, 640),
		ConfidenceThreshold: DefaultConfidenceThreshold,
		IoUThreshold:        postprocess.DefaultIoUThreshold,
		MinBoxSize:          images.DefaultMinBoxSize,
		MaskThreshold:       DefaultMaskThreshold,
		KeypointVisibility:  DefaultKeypointVisibility,
		Classes:             model.YOLOClasses,
	}
	if t == model.TypePose {
		cfg.MinBoxSize = 0
	}
	return cfg
}

func (c Config) nms(classAware bool) postprocess.NMSConfig {
	return postprocess.NMSConfig{
		IoUThreshold:  c.IoUThreshold,
		ClassAware:    classAware,
		MaxDetections: c.MaxDetections,
	}
}

func (c Config) checkSizes(frame image.Point) error {
	if c.InputSize.X <= 0 || c.InputSize.Y <= 0 {
		return errors.Wrapf(ErrInvalidSize, "model input %v", c.InputSize)
	}
	if frame.X <= 0 || frame.Y <= 0 {
		return errors.Wrapf(ErrInvalidSize, "frame %v", frame)
	}
	return nil
}

// box converts candidate i into a frame-space box. ok is false when the raw box is degenerate
// or the scaled box is below the size floor.
func (c Config) box(data []float32, n, i int, frame image.Point) (images.Rect, bool) {
	xc, yc := data[i], data[n+i]
	w, h := data[2*n+i], data[3*n+i]
	// NaN fails every check below.
	if !(w > 0 && h > 0) || !finite(xc) || !finite(yc) || !finite(w) || !finite(h) {
		return images.Rect{}, false
	}

	r := images.ScaleRect(images.RectFromCenter(xc, yc, w, h), c.InputSize, frame)
	if !(r.Width() >= c.MinBoxSize && r.Height() >= c.MinBoxSize) {
		return images.Rect{}, false
	}
	return r, true
}

// candidate is a detection that remembers its column in the output tensor.
type candidate struct {
	postprocess.Detection
	index int
}

// scanClasses emits one candidate per column whose best class clears the threshold.
func (c Config) scanClasses(data []float32, n, numClasses int, frame image.Point) []candidate {
	var out []candidate
	for i := 0; i < n; i++ {
		class := 0
		score := data[4*n+i]
		for k := 1; k < numClasses; k++ {
			if v := data[(4+k)*n+i]; v > score || math32.IsNaN(score) {
				score = v
				class = k
			}
		}
		if !(score >= c.ConfidenceThreshold) || !finite(score) {
			continue
		}

		box, ok := c.box(data, n, i, frame)
		if !ok {
			continue
		}

		out = append(out, candidate{
			Detection: postprocess.Detection{
				Box:   box,
				Score: score,
				Class: class,
				Label: c.Classes.Name(class),
			},
			index: i,
		})
	}
	return out
}

func finite(v float32) bool {
	return !math32.IsNaN(v) && !math32.IsInf(v, 0)
}
