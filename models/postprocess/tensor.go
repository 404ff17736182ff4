package postprocess

import (
	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// ErrShapeMismatch is returned when a tensor does not have the layout a decoder expects.
var ErrShapeMismatch = errors.New("tensor shape mismatch")

// Tensor is a dense float32 buffer plus its shape, as handed out by an inference engine.
//
// Output tensors are feature-major: for shape [1, F, N] the value of feature f for candidate i
// is Data[f*N+i]. Decoders treat Data as read-only.
type Tensor struct {
	Data  []float32
	Shape tensor.Shape
}

// NewTensor builds a tensor from data and dims.
func NewTensor(data []float32, dims ...int) Tensor {
	return Tensor{Data: data, Shape: tensor.Shape(dims).Clone()}
}

// Validate checks that the shape is non-empty and matches the length of Data.
func (t Tensor) Validate() error {
	if len(t.Shape) == 0 {
		return errors.Wrap(ErrShapeMismatch, "empty shape")
	}
	if size := t.Shape.TotalSize(); size != len(t.Data) {
		return errors.Wrapf(ErrShapeMismatch, "shape %v wants %d values, have %d", t.Shape, size, len(t.Data))
	}
	return nil
}

// Features3D validates a [1, F, N] tensor and returns F and N.
//
// Arguments:
//   - minFeatures: The smallest acceptable F.
//
// Returns:
//   - int: The feature count F.
//   - int: The candidate count N.
//   - error: ErrShapeMismatch (wrapped) when the layout is wrong.
func (t Tensor) Features3D(minFeatures int) (int, int, error) {
	if err := t.Validate(); err != nil {
		return 0, 0, err
	}
	if t.Shape.Dims() != 3 || t.Shape[0] != 1 {
		return 0, 0, errors.Wrapf(ErrShapeMismatch, "want [1, F, N], have %v", t.Shape)
	}
	f, n := t.Shape[1], t.Shape[2]
	if f < minFeatures {
		return 0, 0, errors.Wrapf(ErrShapeMismatch, "want at least %d features, have %d", minFeatures, f)
	}
	return f, n, nil
}
