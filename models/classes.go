package models

import (
	"github.com/nvr-ai/go-yolo/models/model"
	"github.com/nvr-ai/go-yolo/models/postprocess"
)

// KeypointNames lists the COCO body keypoints in model output order.
var KeypointNames = [postprocess.NumKeypoints]string{
	"nose",
	"left_eye",
	"right_eye",
	"left_ear",
	"right_ear",
	"left_shoulder",
	"right_shoulder",
	"left_elbow",
	"right_elbow",
	"left_wrist",
	"right_wrist",
	"left_hip",
	"right_hip",
	"left_knee",
	"right_knee",
	"left_ankle",
	"right_ankle",
}

// Bone connects two keypoints. Indices are 1-based, as in the COCO annotation format.
type Bone [2]int

// Indices returns the 0-based keypoint indices of the bone.
func (b Bone) Indices() (int, int) {
	return b[0] - 1, b[1] - 1
}

// PoseSkeleton is the COCO limb list used to draw poses.
var PoseSkeleton = []Bone{
	// legs
	{16, 14}, {14, 12}, {17, 15}, {15, 13},
	// hips and shoulders
	{12, 13}, {6, 12}, {7, 13}, {6, 7},
	// arms
	{6, 8}, {7, 9}, {8, 10}, {9, 11},
	// face
	{2, 3}, {1, 2}, {1, 3}, {2, 4}, {3, 5}, {4, 6}, {5, 7},
}

// KeypointColors holds one RGB color per keypoint, grouped by body region.
var KeypointColors = [postprocess.NumKeypoints]uint32{
	0xFF6B6B, 0x4ECDC4, 0x45B7D1, 0x96CEB4, 0xFECA57, // face
	0xFF9FF3, 0x54A0FF, 0x5F27CD, 0x00D2D3, 0xFF9F43, // upper body
	0xFF6348, 0x2ED573, 0x3742FA, 0xF8B500, 0xA4B0BE, // lower body
	0x2F3542, 0x57606F, // ankles
}

// Catalogue is the built-in list of models the live pipeline can switch between.
var Catalogue = []model.Config{
	{
		Name:         model.ModelNameYOLO11n,
		Title:        "YOLOv11n Detection",
		Description:  "General object detection (80 classes)",
		Family:       model.ModelFamilyYOLO,
		Type:         model.TypeDetection,
		Path:         "models/yolo11n.onnx",
		InputShape:   [4]int64{1, 3, 640, 640},
		OutputFormat: "[1, 84, 8400]",
		Inputs:       []string{"images"},
		Outputs:      []string{"output0"},
		OutputShapes: [][]int64{{1, 84, 8400}},
	},
	{
		Name:         model.ModelNameYOLO11nSeg,
		Title:        "YOLOv11n Segmentation",
		Description:  "Instance segmentation with masks",
		Family:       model.ModelFamilyYOLO,
		Type:         model.TypeSegmentation,
		Path:         "models/yolo11n-seg.onnx",
		InputShape:   [4]int64{1, 3, 640, 640},
		OutputFormat: "[1, 116, 8400]",
		Inputs:       []string{"images"},
		Outputs:      []string{"output0", "output1"},
		OutputShapes: [][]int64{{1, 116, 8400}, {1, 32, 160, 160}},
	},
	{
		Name:         model.ModelNameYOLO11nPose,
		Title:        "YOLOv11n Pose",
		Description:  "Human pose estimation (17 keypoints)",
		Family:       model.ModelFamilyYOLO,
		Type:         model.TypePose,
		Path:         "models/yolo11n-pose.onnx",
		InputShape:   [4]int64{1, 3, 640, 640},
		OutputFormat: "[1, 56, 8400]",
		Inputs:       []string{"images"},
		Outputs:      []string{"output0"},
		OutputShapes: [][]int64{{1, 56, 8400}},
	},
}

// Lookup finds a model in list by name.
func Lookup(list []model.Config, name model.Name) (model.Config, bool) {
	for _, m := range list {
		if m.Name == name {
			return m, true
		}
	}
	return model.Config{}, false
}
