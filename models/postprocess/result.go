// Package postprocess - Postprocessing utilities for models.
package postprocess

import (
	"image"

	"github.com/nvr-ai/go-yolo/images"
)

// Kind identifies which variant a Result holds.
type Kind string

const (
	// KindDetection is a plain bounding box with a class.
	KindDetection Kind = "detection"
	// KindSegmentation is a detection with a per-instance mask.
	KindSegmentation Kind = "segmentation"
	// KindPose is a person detection with 17 COCO keypoints.
	KindPose Kind = "pose"
)

// NumKeypoints is the number of COCO body keypoints emitted per pose.
const NumKeypoints = 17

// Boxed is anything NMS can rank and compare.
type Boxed interface {
	Bounds() images.Rect
	Confidence() float32
	ClassID() int
}

// Result is one decoded instance. It is implemented only by Detection, Segmentation and Pose;
// callers switch on Kind() or on the concrete type.
type Result interface {
	Boxed
	Kind() Kind
	isResult()
}

// Detection represents a single detection result.
type Detection struct {
	// The bounding box of the result, in original-frame pixels.
	Box images.Rect `json:"box"`
	// The confidence score of the result.
	Score float32 `json:"score"`
	// The predicted class index of the result.
	Class int `json:"class"`
	// The human readable class name.
	Label string `json:"label"`
}

// Bounds returns the bounding box.
func (d Detection) Bounds() images.Rect { return d.Box }

// Confidence returns the score.
func (d Detection) Confidence() float32 { return d.Score }

// ClassID returns the class index.
func (d Detection) ClassID() int { return d.Class }

// Kind returns KindDetection.
func (d Detection) Kind() Kind { return KindDetection }

func (Detection) isResult() {}

// Segmentation is a detection plus a binary mask.
//
// Mask spans the original frame (same bounds), holds 0 or 255 per pixel, and is 0 everywhere
// outside Box. A nil Mask means no mask was produced.
type Segmentation struct {
	Detection
	Mask *image.Alpha `json:"-"`
}

// Kind returns KindSegmentation.
func (s Segmentation) Kind() Kind { return KindSegmentation }

// MaskArea counts the set pixels of the mask.
func (s Segmentation) MaskArea() int {
	if s.Mask == nil {
		return 0
	}
	n := 0
	for _, v := range s.Mask.Pix {
		if v != 0 {
			n++
		}
	}
	return n
}

func (Segmentation) isResult() {}

// Keypoint is one body landmark in original-frame pixels.
type Keypoint struct {
	X          float32 `json:"x"`
	Y          float32 `json:"y"`
	Confidence float32 `json:"confidence"`
	Visible    bool    `json:"visible"`
}

// Pose is a person detection with keypoints in COCO order.
type Pose struct {
	Detection
	Keypoints [NumKeypoints]Keypoint `json:"keypoints"`
}

// Kind returns KindPose.
func (p Pose) Kind() Kind { return KindPose }

func (Pose) isResult() {}

// AsResults widens a typed slice into the Result variant.
func AsResults[T Result](items []T) []Result {
	out := make([]Result, len(items))
	for i, item := range items {
		out[i] = item
	}
	return out
}
