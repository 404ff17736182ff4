package yolo

import (
	"image"

	"github.com/pkg/errors"

	"github.com/nvr-ai/go-yolo/images"
	"github.com/nvr-ai/go-yolo/models/postprocess"
)

// PersonLabel is the only class a pose model predicts.
const PersonLabel = "person"

// poseFeatures is box (4) + person confidence (1) + x, y, confidence per keypoint.
const poseFeatures = 5 + postprocess.NumKeypoints*3

// DecodePose decodes a [1, 56, N] pose output.
//
// Feature 4 is the person confidence. Keypoint k sits at features 5+3k (x), 6+3k (y) and
// 7+3k (confidence). Keypoints are scaled by the same per-axis factors as the box but are not
// clamped to the frame. NMS is class-agnostic.
//
// Arguments:
//   - out: The raw output tensor.
//   - frame: The original frame size (width, height).
//   - cfg: Decode parameters.
//
// Returns:
//   - []postprocess.Pose: Kept poses, highest score first.
//   - error: postprocess.ErrShapeMismatch or ErrInvalidSize (wrapped).
func DecodePose(out postprocess.Tensor, frame image.Point, cfg Config) ([]postprocess.Pose, error) {
	_, n, err := out.Features3D(poseFeatures)
	if err != nil {
		return nil, errors.Wrap(err, "pose output")
	}
	if err := cfg.checkSizes(frame); err != nil {
		return nil, err
	}

	data := out.Data
	sx, sy := images.ScaleFactors(cfg.InputSize, frame)

	var poses []postprocess.Pose
	for i := 0; i < n; i++ {
		conf := data[4*n+i]
		if !(conf >= cfg.ConfidenceThreshold) || !finite(conf) {
			continue
		}
		box, ok := cfg.box(data, n, i, frame)
		if !ok {
			continue
		}

		p := postprocess.Pose{
			Detection: postprocess.Detection{
				Box:   box,
				Score: conf,
				Class: 0,
				Label: PersonLabel,
			},
		}
		for k := 0; k < postprocess.NumKeypoints; k++ {
			base := 5 + k*3
			x, y, kc := data[base*n+i], data[(base+1)*n+i], data[(base+2)*n+i]
			if !finite(x) || !finite(y) || !finite(kc) {
				continue
			}
			p.Keypoints[k] = postprocess.Keypoint{
				X:          x * sx,
				Y:          y * sy,
				Confidence: kc,
				Visible:    kc > cfg.KeypointVisibility,
			}
		}
		poses = append(poses, p)
	}

	return postprocess.ApplyNMS(poses, cfg.nms(false)), nil
}

// PoseEstimator decodes pose models.
type PoseEstimator struct {
	Config Config
}

// NumOutputs returns 1.
func (p *PoseEstimator) NumOutputs() int { return 1 }

// Decode implements models.Decoder.
func (p *PoseEstimator) Decode(outputs []postprocess.Tensor, frame image.Point) ([]postprocess.Result, error) {
	if len(outputs) < 1 {
		return nil, errors.Wrap(postprocess.ErrShapeMismatch, "pose needs one output")
	}
	poses, err := DecodePose(outputs[0], frame, p.Config)
	if err != nil {
		return nil, err
	}
	return postprocess.AsResults(poses), nil
}
