package model

// Precision is the inference precision requested from an accelerator.
//
// See:
// https://onnxruntime.ai/docs/execution-providers/OpenVINO-ExecutionProvider.html#summary-of-options
type Precision string

const (
	// PrecisionAccuracy keeps the model's own input precision (OpenVINO's ACCURACY mode).
	PrecisionAccuracy Precision = "ACCURACY"
	// PrecisionFP32 is 32-bit floating point.
	PrecisionFP32 Precision = "FP32"
	// PrecisionFP16 is 16-bit floating point.
	PrecisionFP16 Precision = "FP16"
)

// Valid reports whether p is empty (provider default) or a known precision.
func (p Precision) Valid() bool {
	switch p {
	case "", PrecisionAccuracy, PrecisionFP32, PrecisionFP16:
		return true
	}
	return false
}
