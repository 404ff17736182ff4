// Package providers - Execution provider selection for ONNX Runtime sessions.
package providers

import (
	"strings"

	"github.com/pkg/errors"

	"github.com/nvr-ai/go-yolo/models/model"
)

// ProviderBackend names an ONNX Runtime execution provider.
type ProviderBackend string

const (
	// CPUProviderBackend uses the default CPU kernels.
	CPUProviderBackend ProviderBackend = "cpu"
	// CoreMLProviderBackend uses Apple CoreML for macOS/iOS acceleration.
	CoreMLProviderBackend ProviderBackend = "coreml"
	// CUDAProviderBackend uses NVIDIA CUDA for GPU acceleration.
	CUDAProviderBackend ProviderBackend = "cuda"
	// OpenVINOProviderBackend uses Intel OpenVINO for inference optimization.
	OpenVINOProviderBackend ProviderBackend = "openvino"
)

// ParseBackend maps a config string onto a backend. The empty string selects CPU.
func ParseBackend(s string) (ProviderBackend, error) {
	switch b := ProviderBackend(strings.ToLower(strings.TrimSpace(s))); b {
	case "":
		return CPUProviderBackend, nil
	case CPUProviderBackend, CoreMLProviderBackend, CUDAProviderBackend, OpenVINOProviderBackend:
		return b, nil
	default:
		return "", errors.Errorf("unknown execution provider: %q", s)
	}
}

// Config represents the runtime and execution provider configuration for a session.
type Config struct {
	// Backend specifies the execution provider to append.
	Backend ProviderBackend `json:"backend" yaml:"backend"`

	// SharedLibPath overrides the onnxruntime shared library location.
	SharedLibPath string `json:"shared_lib_path" yaml:"shared_lib_path"`

	// IntraOpNumThreads parallelizes work inside a node (0 lets the runtime decide).
	IntraOpNumThreads int `json:"intra_op_threads" yaml:"intra_op_threads"`

	// InterOpNumThreads parallelizes independent nodes (0 lets the runtime decide).
	InterOpNumThreads int `json:"inter_op_threads" yaml:"inter_op_threads"`

	// DeviceID selects the GPU for CUDA and OpenVINO.
	DeviceID int `json:"device_id" yaml:"device_id"`

	// DeviceType is the OpenVINO device type, e.g. "CPU" or "GPU".
	DeviceType string `json:"device_type" yaml:"device_type"`

	// Precision is the OpenVINO inference precision.
	Precision model.Precision `json:"precision" yaml:"precision"`

	// CoreMLFlags is passed verbatim to the CoreML provider.
	CoreMLFlags uint32 `json:"coreml_flags" yaml:"coreml_flags"`
}

// DefaultConfig returns a CPU configuration with runtime-chosen thread counts.
func DefaultConfig() Config {
	return Config{
		Backend:    CPUProviderBackend,
		DeviceType: "CPU",
		Precision:  model.PrecisionFP32,
	}
}

// Validate checks the backend and thread counts.
func (c Config) Validate() error {
	if _, err := ParseBackend(string(c.Backend)); err != nil {
		return err
	}
	if c.IntraOpNumThreads < 0 || c.InterOpNumThreads < 0 {
		return errors.New("thread counts must not be negative")
	}
	if !c.Precision.Valid() {
		return errors.Errorf("unknown precision: %q", c.Precision)
	}
	return nil
}
