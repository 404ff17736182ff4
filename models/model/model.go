// Package model - Definitions for model selection and output class sets.
package model

import (
	"fmt"
	"image"

	"github.com/pkg/errors"
)

// Type is the task a model was exported for. It selects the decoder.
type Type string

const (
	// TypeDetection outputs [1, 4+C, N].
	TypeDetection Type = "detection"
	// TypeSegmentation outputs [1, 4+C+M, N] and prototype masks [1, M, Hp, Wp].
	TypeSegmentation Type = "segmentation"
	// TypePose outputs [1, 5+17*3, N].
	TypePose Type = "pose"
)

// Types lists every supported model type.
var Types = []Type{TypeDetection, TypeSegmentation, TypePose}

// Valid reports whether t is a supported type.
func (t Type) Valid() bool {
	for _, v := range Types {
		if v == t {
			return true
		}
	}
	return false
}

// Family is the family of models.
type Family string

const (
	// ModelFamilyYOLO is the YOLO model family.
	ModelFamilyYOLO Family = "yolo"
)

// Name is the unique identifier of a model.
type Name string

const (
	// ModelNameYOLO11n is the YOLO11 nano detector.
	ModelNameYOLO11n Name = "yolo11n"
	// ModelNameYOLO11nSeg is the YOLO11 nano instance segmenter.
	ModelNameYOLO11nSeg Name = "yolo11n-seg"
	// ModelNameYOLO11nPose is the YOLO11 nano pose estimator.
	ModelNameYOLO11nPose Name = "yolo11n-pose"
)

// Config is a model with a type and path for loading.
type Config struct {
	Name         Name     `json:"name" yaml:"name"`
	Title        string   `json:"title" yaml:"title"`
	Description  string   `json:"description" yaml:"description"`
	Family       Family   `json:"family" yaml:"family"`
	Type         Type     `json:"type" yaml:"type"`
	Path         string   `json:"path" yaml:"path"`
	InputShape   [4]int64 `json:"input_shape" yaml:"input_shape"` // [batch, channels, height, width]
	OutputFormat string   `json:"output_format" yaml:"output_format"`
	Inputs       []string `json:"inputs" yaml:"inputs"`
	Outputs      []string `json:"outputs" yaml:"outputs"`
	// OutputShapes holds one shape per entry of Outputs.
	OutputShapes [][]int64 `json:"output_shapes" yaml:"output_shapes"`
}

// TargetSize returns the model input size as (width, height).
func (c Config) TargetSize() image.Point {
	return image.Pt(int(c.InputShape[3]), int(c.InputShape[2]))
}

// Validate checks the fields the pipeline depends on.
func (c Config) Validate() error {
	if c.Name == "" {
		return errors.New("model name is required")
	}
	if !c.Type.Valid() {
		return errors.Errorf("model %s: unsupported type %q", c.Name, c.Type)
	}
	if c.Path == "" {
		return errors.Errorf("model %s: path is required", c.Name)
	}
	if c.InputShape[0] != 1 || c.InputShape[1] != 3 || c.InputShape[2] <= 0 || c.InputShape[3] <= 0 {
		return errors.Errorf("model %s: input shape must be [1, 3, H, W], have %v", c.Name, c.InputShape)
	}
	if len(c.Inputs) != 1 {
		return errors.Errorf("model %s: expected exactly one input, have %d", c.Name, len(c.Inputs))
	}
	want := 1
	if c.Type == TypeSegmentation {
		want = 2
	}
	if len(c.Outputs) < want {
		return errors.Errorf("model %s: %s models need %d outputs, have %d", c.Name, c.Type, want, len(c.Outputs))
	}
	if len(c.OutputShapes) != len(c.Outputs) {
		return errors.Errorf("model %s: %d outputs but %d output shapes", c.Name, len(c.Outputs), len(c.OutputShapes))
	}
	return nil
}

// String returns "name (type)".
func (c Config) String() string {
	return fmt.Sprintf("%s (%s)", c.Name, c.Type)
}
