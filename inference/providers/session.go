package providers

import (
	"fmt"
	"os"
	"sync"

	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
)

var envMu sync.Mutex

// InitializeEnvironment loads the onnxruntime shared library and prepares the runtime.
//
// The runtime is process-wide; calls after the first successful one are no-ops.
//
// Arguments:
//   - cfg: The provider configuration (only SharedLibPath is used).
//
// Returns:
//   - error: An error if the library is missing or fails to initialize.
func InitializeEnvironment(cfg Config) error {
	envMu.Lock()
	defer envMu.Unlock()

	if ort.IsInitialized() {
		return nil
	}

	// Check if the shared library exists before trying to use it.
	libPath := GetSharedLibPath(cfg.SharedLibPath)
	if libPath == "" {
		return errors.New("no onnxruntime library known for this platform; set engine.shared_lib_path")
	}
	if _, err := os.Stat(libPath); err != nil {
		return errors.Wrapf(err, "onnxruntime library not found at %s", libPath)
	}

	ort.SetSharedLibraryPath(libPath)
	if err := ort.InitializeEnvironment(); err != nil {
		return errors.Wrap(err, "error initializing ORT environment")
	}
	return nil
}

// NewSessionOptions builds session options for cfg.
//
// Order of operations:
//  1. Threading: intra-op and inter-op parallelism.
//  2. Graph optimization: extended rewrites (fusion, constant folding).
//  3. Execution provider: CoreML, CUDA or OpenVINO when selected; CPU needs nothing.
//
// **The caller must Destroy the returned options once the session has been created.**
//
// Arguments:
//   - cfg: The provider configuration.
//
// Returns:
//   - *ort.SessionOptions: Configured session options.
//   - error: An error if an option or provider cannot be applied.
func NewSessionOptions(cfg Config) (*ort.SessionOptions, error) {
	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, errors.Wrap(err, "error creating ORT session options")
	}

	fail := func(err error, msg string) (*ort.SessionOptions, error) {
		options.Destroy()
		return nil, errors.Wrap(err, msg)
	}

	if err := options.SetIntraOpNumThreads(cfg.IntraOpNumThreads); err != nil {
		return fail(err, "error setting intra-op threads")
	}
	if err := options.SetInterOpNumThreads(cfg.InterOpNumThreads); err != nil {
		return fail(err, "error setting inter-op threads")
	}
	if err := options.SetGraphOptimizationLevel(ort.GraphOptimizationLevelEnableExtended); err != nil {
		return fail(err, "error setting graph optimization level")
	}

	switch cfg.Backend {
	case CPUProviderBackend, "":
	case CoreMLProviderBackend:
		if err := options.AppendExecutionProviderCoreML(cfg.CoreMLFlags); err != nil {
			return fail(err, "error enabling CoreML")
		}
	case CUDAProviderBackend:
		cuda, err := ort.NewCUDAProviderOptions()
		if err != nil {
			return fail(err, "error creating CUDA options")
		}
		defer cuda.Destroy()
		if err := cuda.Update(map[string]string{"device_id": fmt.Sprintf("%d", cfg.DeviceID)}); err != nil {
			return fail(err, "error converting CUDA options")
		}
		if err := options.AppendExecutionProviderCUDA(cuda); err != nil {
			return fail(err, "error enabling CUDA")
		}
	case OpenVINOProviderBackend:
		// See:
		// https://onnxruntime.ai/docs/execution-providers/OpenVINO-ExecutionProvider.html#summary-of-options
		ov := map[string]string{
			"device_type": cfg.DeviceType,
			"device_id":   fmt.Sprintf("%d", cfg.DeviceID),
		}
		if cfg.Precision != "" {
			ov["precision"] = string(cfg.Precision)
		}
		if err := options.AppendExecutionProviderOpenVINO(ov); err != nil {
			return fail(err, "error enabling OpenVINO")
		}
	default:
		return fail(errors.Errorf("backend %q", cfg.Backend), "unsupported execution provider")
	}

	return options, nil
}
