// Package gtsrb wraps the GTSRB traffic sign classification model. The rest
// of the pipeline treats the model as an opaque scoring function behind the
// detection.Classifier interface, so other backends can be substituted
// without touching the loop.
package gtsrb

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	tflite "github.com/tphakala/go-tflite"

	"signwatch/internal/conf"
	"signwatch/internal/errors"
	"signwatch/internal/logging"
)

// SignNet represents the traffic sign model with its interpreter and configuration.
type SignNet struct {
	interpreter *tflite.Interpreter
	settings    *conf.Settings
	labels      []string
	log         *slog.Logger

	inputWidth  int
	inputHeight int

	mu sync.Mutex

	// Pre-allocated buffer for confidence values to reduce allocations
	confidenceBuffer []float32
}

// New initializes a new SignNet instance with the given settings. A missing
// or malformed model artifact is fatal for the session.
func New(settings *conf.Settings) (*SignNet, error) {
	sn := &SignNet{
		settings: settings,
		log:      logging.ForService("gtsrb"),
	}

	if err := sn.loadLabels(); err != nil {
		return nil, errors.Wrap(err).
			Component("gtsrb").
			Category(errors.CategoryLabelLoad).
			ModelContext(settings.Model.Path).
			Build()
	}

	if err := sn.initializeModel(); err != nil {
		return nil, err
	}

	if err := sn.validateModelAndLabels(); err != nil {
		sn.interpreter.Delete()
		sn.interpreter = nil
		return nil, err
	}

	return sn, nil
}

// initializeModel loads and initializes the TensorFlow Lite interpreter.
func (sn *SignNet) initializeModel() error {
	start := time.Now()

	modelData, err := sn.loadModel()
	if err != nil {
		return err
	}

	model := tflite.NewModel(modelData)
	if model == nil {
		return errors.Newf("cannot load TensorFlow Lite model").
			Component("gtsrb").
			Category(errors.CategoryModelLoad).
			ModelContext(sn.settings.Model.Path).
			Context("model_size_kb", len(modelData)/1024).
			Timing("model-init", time.Since(start)).
			Build()
	}

	threads := sn.determineThreadCount(sn.settings.Model.Threads)

	options := tflite.NewInterpreterOptions()
	options.SetNumThread(threads)
	options.SetErrorReporter(func(msg string, user_data any) {
		logging.ForService("gtsrb").Error("TFLite error", "message", msg)
	}, nil)

	sn.interpreter = tflite.NewInterpreter(model, options)
	if sn.interpreter == nil {
		return errors.Newf("cannot create interpreter").
			Component("gtsrb").
			Category(errors.CategoryModelInit).
			ModelContext(sn.settings.Model.Path).
			Build()
	}
	if status := sn.interpreter.AllocateTensors(); status != tflite.OK {
		return errors.Newf("tensor allocation failed: %v", status).
			Component("gtsrb").
			Category(errors.CategoryModelInit).
			ModelContext(sn.settings.Model.Path).
			Build()
	}

	// The model data is no longer needed, TFLite keeps its own internal copy
	runtime.GC()

	if err := sn.readInputShape(); err != nil {
		return err
	}

	sn.log.Info("GTSRB model initialized",
		"model", sn.settings.Model.Path,
		"input_width", sn.inputWidth,
		"input_height", sn.inputHeight,
		"classes", len(sn.labels),
		"threads", threads,
		"load_time_ms", time.Since(start).Milliseconds())

	return nil
}

// loadModel reads the model artifact from the configured path. Environment
// variables and a leading ~ are expanded first.
func (sn *SignNet) loadModel() ([]byte, error) {
	start := time.Now()

	modelPath := os.ExpandEnv(sn.settings.Model.Path)
	if strings.HasPrefix(modelPath, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, errors.New(err).
				Component("gtsrb").
				Category(errors.CategoryFileIO).
				Context("path", modelPath).
				Build()
		}
		modelPath = filepath.Join(homeDir, modelPath[2:])
	}

	data, err := os.ReadFile(modelPath) //nolint:gosec // G304: modelPath is from application settings
	if err != nil {
		return nil, errors.New(fmt.Errorf("failed to read model file: %w", err)).
			Component("gtsrb").
			Category(errors.CategoryModelLoad).
			ModelContext(modelPath).
			Context("operation", "read").
			Timing("model-file-read", time.Since(start)).
			Build()
	}

	sn.Debug("Loaded model file: %s (size: %d KB)", modelPath, len(data)/1024)
	return data, nil
}

// readInputShape reads the input tensor dimensions so the preprocessor can be
// sized from the model instead of a hard-coded shape. The model expects
// NHWC input: [1, height, width, 3].
func (sn *SignNet) readInputShape() error {
	inputTensor := sn.interpreter.GetInputTensor(0)
	if inputTensor == nil {
		return errors.Newf("cannot get input tensor from model").
			Component("gtsrb").
			Category(errors.CategoryModelInit).
			ModelContext(sn.settings.Model.Path).
			Build()
	}

	if inputTensor.NumDims() != 4 {
		return errors.Newf("unexpected input tensor rank %d, want 4 (NHWC)", inputTensor.NumDims()).
			Component("gtsrb").
			Category(errors.CategoryValidation).
			ModelContext(sn.settings.Model.Path).
			Build()
	}

	sn.inputHeight = inputTensor.Dim(1)
	sn.inputWidth = inputTensor.Dim(2)
	return nil
}

// validateModelAndLabels checks if the number of labels matches the model's
// output size and pre-allocates the confidence buffer.
func (sn *SignNet) validateModelAndLabels() error {
	outputTensor := sn.interpreter.GetOutputTensor(0)
	if outputTensor == nil {
		return errors.Newf("cannot get output tensor from model").
			Component("gtsrb").
			Category(errors.CategoryValidation).
			ModelContext(sn.settings.Model.Path).
			Build()
	}

	modelOutputSize := outputTensor.Dim(outputTensor.NumDims() - 1)
	labelCount := len(sn.labels)

	if labelCount != modelOutputSize {
		return errors.Newf("label count mismatch: model expects %d classes but label file has %d labels",
			modelOutputSize, labelCount).
			Component("gtsrb").
			Category(errors.CategoryValidation).
			ModelContext(sn.settings.Model.Path).
			Context("expected_labels", modelOutputSize).
			Context("actual_labels", labelCount).
			Build()
	}

	if sn.confidenceBuffer == nil || len(sn.confidenceBuffer) != modelOutputSize {
		sn.confidenceBuffer = make([]float32, modelOutputSize)
	}

	return nil
}

// determineThreadCount calculates the number of interpreter threads based on
// settings and system capabilities.
func (sn *SignNet) determineThreadCount(configuredThreads int) int {
	systemCpuCount := runtime.NumCPU()
	if configuredThreads <= 0 || configuredThreads > systemCpuCount {
		return systemCpuCount
	}
	return configuredThreads
}

// InputWidth returns the model's expected input width in pixels.
func (sn *SignNet) InputWidth() int {
	return sn.inputWidth
}

// InputHeight returns the model's expected input height in pixels.
func (sn *SignNet) InputHeight() int {
	return sn.inputHeight
}

// Delete releases resources used by the TensorFlow Lite interpreter.
func (sn *SignNet) Delete() {
	if sn.interpreter != nil {
		sn.interpreter.Delete()
		sn.interpreter = nil
	}
}

// Debug prints debug messages if debug mode is enabled.
func (sn *SignNet) Debug(format string, v ...any) {
	if sn.settings.Debug {
		sn.log.Debug(fmt.Sprintf(format, v...))
	}
}
