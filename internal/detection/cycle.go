package detection

import (
	"context"
	"image"
	"time"

	"signwatch/internal/errors"
)

// FrameSource produces raw frames on demand. The camera device is an
// exclusively held resource, at most one FrameSource holds it open at a time.
type FrameSource interface {
	// Capture grabs one frame and reports how long the grab took.
	Capture(ctx context.Context) (image.Image, time.Duration, error)
}

// Preprocessor turns a raw frame into the classifier's normalized input tensor.
type Preprocessor interface {
	Process(frame image.Image) ([]float32, error)
}

// Classifier is an opaque scoring function, input tensor to ranked candidates.
// Implementations guarantee a non-empty, descending-by-confidence result when
// the model loaded successfully.
type Classifier interface {
	Predict(input []float32) ([]Prediction, error)
}

// Cycle orchestrates one capture, preprocess, classify, filter pass.
type Cycle struct {
	Source    FrameSource
	Processor Preprocessor
	Model     Classifier
	Threshold float64
}

// Run executes a single detection cycle and returns its record. Recoverable
// failures (capture, preprocess, inference) short-circuit the remaining steps
// and are tagged into the record; Run itself never fails.
func (c *Cycle) Run(ctx context.Context, index int) CycleRecord {
	record := CycleRecord{
		Index:     index,
		Timestamp: time.Now(),
	}

	frame, captureTime, err := c.Source.Capture(ctx)
	record.CaptureTimeMs = durationMs(captureTime)
	if err != nil {
		return c.fail(record, err, errors.CategoryCapture)
	}

	preprocessStart := time.Now()
	input, err := c.Processor.Process(frame)
	record.PreprocessTimeMs = durationMs(time.Since(preprocessStart))
	if err != nil {
		return c.fail(record, err, errors.CategoryPreprocess)
	}

	inferenceStart := time.Now()
	ranked, err := c.Model.Predict(input)
	record.InferenceTimeMs = durationMs(time.Since(inferenceStart))
	if err != nil {
		return c.fail(record, err, errors.CategoryInference)
	}

	record.TopPredictions = ranked
	record.Primary = Promote(ranked, c.Threshold)
	record.Detected = record.Primary != nil
	record.TotalTimeMs = record.CaptureTimeMs + record.PreprocessTimeMs + record.InferenceTimeMs

	return record
}

// fail finalizes a record for a recoverable per-cycle error. The stage tag is
// taken from the error's own category when it carries one.
func (c *Cycle) fail(record CycleRecord, err error, fallback errors.ErrorCategory) CycleRecord {
	category := errors.CategoryOf(err)
	if category == errors.CategoryGeneric {
		category = fallback
	}
	record.Error = err.Error()
	record.ErrorStage = string(category)
	record.TotalTimeMs = record.CaptureTimeMs + record.PreprocessTimeMs + record.InferenceTimeMs
	return record
}

func durationMs(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000.0
}

// ClassifyFrame runs the preprocess and classify steps on an already
// captured frame. It backs the single-image and batch commands, which share
// the pipeline but not the camera or the scheduler.
func ClassifyFrame(p Preprocessor, c Classifier, threshold float64, frame image.Image) (primary *Prediction, ranked []Prediction, err error) {
	input, err := p.Process(frame)
	if err != nil {
		return nil, nil, err
	}
	ranked, err = c.Predict(input)
	if err != nil {
		return nil, nil, err
	}
	return Promote(ranked, threshold), ranked, nil
}
