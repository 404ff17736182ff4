// Package models - registry for model decoders.
package models

import (
	"image"

	"github.com/pkg/errors"

	"github.com/nvr-ai/go-yolo/models/model"
	"github.com/nvr-ai/go-yolo/models/postprocess"
	"github.com/nvr-ai/go-yolo/models/yolo"
)

// ErrUnsupportedType is returned for a model type without a decoder.
var ErrUnsupportedType = errors.New("unsupported model type")

// Decoder turns raw engine outputs into results for one model type.
type Decoder interface {
	// NumOutputs is the number of output tensors Decode consumes, in model output order.
	NumOutputs() int
	// Decode returns NMS-filtered results in original-frame pixels.
	Decode(outputs []postprocess.Tensor, frame image.Point) ([]postprocess.Result, error)
}

// NewDecoder creates the decoder for a model type.
//
// This factory is the single place that maps a model.Type onto a result variant, so adding a
// task means adding a case here and a decoder in models/yolo.
//
// Arguments:
//   - t: The model type.
//   - cfg: Decode parameters, usually yolo.DefaultConfig(t) with overrides applied.
//
// Returns:
//   - Decoder: The decoder for t.
//   - error: ErrUnsupportedType (wrapped) for an unknown type.
//
// Example:
//
// ```go
//
//	cfg := yolo.DefaultConfig(model.TypePose)
//	cfg.ConfidenceThreshold = 0.3
//
//	decoder, err := NewDecoder(model.TypePose, cfg)
//	if err != nil {
//	    log.Fatalf("Failed to create decoder: %v", err)
//	}
//
//	results, err := decoder.Decode(outputs, image.Pt(1280, 720))
//
// ```
func NewDecoder(t model.Type, cfg yolo.Config) (Decoder, error) {
	if cfg.Classes == nil {
		cfg.Classes = model.YOLOClasses
	}
	switch t {
	case model.TypeDetection:
		return &yolo.Detector{Config: cfg}, nil
	case model.TypeSegmentation:
		return &yolo.Segmenter{Config: cfg}, nil
	case model.TypePose:
		return &yolo.PoseEstimator{Config: cfg}, nil
	default:
		return nil, errors.Wrapf(ErrUnsupportedType, "%q", t)
	}
}
