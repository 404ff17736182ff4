// Package inference - Inference engine interface, ONNX Runtime adapter and input preprocessing.
package inference

import (
	"context"

	"github.com/pkg/errors"

	"github.com/nvr-ai/go-yolo/models/postprocess"
)

// ErrClosed is returned by Run after Close.
var ErrClosed = errors.New("engine closed")

// Engine runs a neural network on a preprocessed input.
type Engine interface {
	// InputNames lists the declared model inputs.
	InputNames() []string
	// OutputNames lists the declared model outputs in model order.
	OutputNames() []string
	// Run feeds one tensor per input name and returns one tensor per output name.
	Run(ctx context.Context, feed map[string]postprocess.Tensor) (map[string]postprocess.Tensor, error)
	// Close releases the engine's native resources.
	Close() error
}

// Ordered returns the outputs of an engine in OutputNames order.
//
// Arguments:
//   - names: The engine's output names.
//   - outputs: The map returned by Engine.Run.
//
// Returns:
//   - []postprocess.Tensor: The tensors in names order.
//   - error: An error naming the first missing output.
func Ordered(names []string, outputs map[string]postprocess.Tensor) ([]postprocess.Tensor, error) {
	ordered := make([]postprocess.Tensor, len(names))
	for i, name := range names {
		t, ok := outputs[name]
		if !ok {
			return nil, errors.Errorf("engine returned no output %q", name)
		}
		ordered[i] = t
	}
	return ordered, nil
}
