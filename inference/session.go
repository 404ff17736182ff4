package inference

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"

	"github.com/nvr-ai/go-yolo/inference/providers"
	"github.com/nvr-ai/go-yolo/logger"
	"github.com/nvr-ai/go-yolo/models/model"
	"github.com/nvr-ai/go-yolo/models/postprocess"
)

// ONNXEngine runs a model through ONNX Runtime with preallocated input and output tensors.
//
// Runs are serialized; timings are collected the same way for every run and exposed through
// GetPerformanceMetrics.
type ONNXEngine struct {
	mu          sync.Mutex
	session     *ort.AdvancedSession
	inputs      []*ort.Tensor[float32]
	outputs     []*ort.Tensor[float32]
	inputNames  []string
	outputNames []string
	log         *logger.Logger

	inferenceCount int64
	totalTime      float64
}

// NewONNXEngine creates an ONNX Runtime session for m.
//
// Order of operations:
//  1. Environment setup: loads the native library once per process.
//  2. Tensor allocation: one fixed-shape buffer per declared input and output.
//  3. Session options: threading, graph optimization, execution provider.
//  4. Session creation: loads the model and binds the tensors.
//
// Arguments:
//   - m: The model to load; Inputs, Outputs and OutputShapes must be set.
//   - cfg: The runtime and execution provider configuration.
//   - log: The logger.
//
// Returns:
//   - *ONNXEngine: The engine; Close it to release native memory.
//   - error: An error if any step fails. Partially created resources are released.
func NewONNXEngine(m model.Config, cfg providers.Config, log *logger.Logger) (*ONNXEngine, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	if err := providers.InitializeEnvironment(cfg); err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.NewNopLogger()
	}

	e := &ONNXEngine{
		inputNames:  append([]string(nil), m.Inputs...),
		outputNames: append([]string(nil), m.Outputs...),
		log:         log.Named("onnx").With("model", string(m.Name)),
	}

	input, err := ort.NewEmptyTensor[float32](ort.NewShape(m.InputShape[:]...))
	if err != nil {
		return nil, errors.Wrap(err, "error creating input tensor")
	}
	e.inputs = append(e.inputs, input)

	for i, dims := range m.OutputShapes {
		output, err := ort.NewEmptyTensor[float32](ort.NewShape(dims...))
		if err != nil {
			e.destroyTensors()
			return nil, errors.Wrapf(err, "error creating output tensor %s", m.Outputs[i])
		}
		e.outputs = append(e.outputs, output)
	}

	options, err := providers.NewSessionOptions(cfg)
	if err != nil {
		e.destroyTensors()
		return nil, err
	}
	defer options.Destroy()

	session, err := ort.NewAdvancedSession(
		m.Path,
		e.inputNames,
		e.outputNames,
		values(e.inputs),
		values(e.outputs),
		options,
	)
	if err != nil {
		e.destroyTensors()
		return nil, errors.Wrapf(err, "error creating ORT session for %s", m.Path)
	}
	e.session = session

	e.log.Info("session created", "path", m.Path, "backend", string(cfg.Backend), "outputs", m.Outputs)
	return e, nil
}

func values(tensors []*ort.Tensor[float32]) []ort.Value {
	out := make([]ort.Value, len(tensors))
	for i, t := range tensors {
		out[i] = t
	}
	return out
}

// InputNames implements Engine.
func (e *ONNXEngine) InputNames() []string { return e.inputNames }

// OutputNames implements Engine.
func (e *ONNXEngine) OutputNames() []string { return e.outputNames }

// Run copies the feed into the input tensors, runs the session and returns copies of the outputs.
//
// The native call cannot be interrupted; ctx is only checked before it starts.
func (e *ONNXEngine) Run(ctx context.Context, feed map[string]postprocess.Tensor) (map[string]postprocess.Tensor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.session == nil {
		return nil, ErrClosed
	}

	for i, name := range e.inputNames {
		in, ok := feed[name]
		if !ok {
			return nil, errors.Errorf("missing input %q", name)
		}
		dst := e.inputs[i].GetData()
		if len(in.Data) != len(dst) {
			return nil, errors.Wrapf(postprocess.ErrShapeMismatch,
				"input %q holds %d floats, model wants %d", name, len(in.Data), len(dst))
		}
		copy(dst, in.Data)
	}

	start := time.Now()
	err := e.session.Run()
	e.inferenceCount++
	e.totalTime += float64(time.Since(start).Nanoseconds()) / 1e6
	if err != nil {
		return nil, errors.Wrap(err, "error running ORT session")
	}

	out := make(map[string]postprocess.Tensor, len(e.outputNames))
	for i, name := range e.outputNames {
		t := e.outputs[i]
		data := append([]float32(nil), t.GetData()...)
		shape := t.GetShape()
		dims := make([]int, len(shape))
		for j, d := range shape {
			dims[j] = int(d)
		}
		out[name] = postprocess.NewTensor(data, dims...)
	}
	return out, nil
}

// GetPerformanceMetrics returns inference statistics.
//
// Returns:
//   - map[string]interface{}: inference_count, total_time_ms and, after the first run,
//     average_time_ms and throughput_fps.
func (e *ONNXEngine) GetPerformanceMetrics() map[string]interface{} {
	e.mu.Lock()
	defer e.mu.Unlock()

	metrics := map[string]interface{}{
		"inference_count": e.inferenceCount,
		"total_time_ms":   e.totalTime,
	}
	if e.inferenceCount > 0 {
		avg := e.totalTime / float64(e.inferenceCount)
		metrics["average_time_ms"] = avg
		if avg > 0 {
			metrics["throughput_fps"] = 1000.0 / avg
		}
	}
	return metrics
}

// Close releases the resources associated with the engine. It is safe to call more than once.
func (e *ONNXEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	var err error
	if e.session != nil {
		if derr := e.session.Destroy(); derr != nil {
			err = errors.Wrap(derr, "error destroying ORT session")
		}
		e.session = nil
		e.log.Info("session closed", "runs", e.inferenceCount)
	}
	e.destroyTensors()
	return err
}

func (e *ONNXEngine) destroyTensors() {
	for _, t := range e.inputs {
		t.Destroy()
	}
	for _, t := range e.outputs {
		t.Destroy()
	}
	e.inputs = nil
	e.outputs = nil
}
