package gtsrb

import (
	tflite "github.com/tphakala/go-tflite"

	"signwatch/internal/detection"
	"signwatch/internal/errors"
)

// Predict performs inference on a normalized input tensor and returns ranked
// candidates, descending by confidence, trimmed to the configured top-k.
// It implements detection.Classifier.
func (sn *SignNet) Predict(input []float32) ([]detection.Prediction, error) {
	// The interpreter holds a single inference context, serialize access to it.
	sn.mu.Lock()
	defer sn.mu.Unlock()

	inputTensor := sn.interpreter.GetInputTensor(0)
	if inputTensor == nil {
		return nil, errors.Newf("cannot get input tensor").
			Component("gtsrb").
			Category(errors.CategoryInference).
			Build()
	}

	if got, want := len(input), len(inputTensor.Float32s()); got != want {
		return nil, errors.Newf("input tensor size mismatch: got %d values, model expects %d", got, want).
			Component("gtsrb").
			Category(errors.CategoryInference).
			Context("got", got).
			Context("want", want).
			Build()
	}

	copy(inputTensor.Float32s(), input)

	if status := sn.interpreter.Invoke(); status != tflite.OK {
		return nil, errors.Newf("tensor invoke failed: %v", status).
			Component("gtsrb").
			Category(errors.CategoryInference).
			Build()
	}

	outputTensor := sn.interpreter.GetOutputTensor(0)
	copy(sn.confidenceBuffer, outputTensor.Float32s())

	results, err := pairLabelsAndConfidence(sn.labels, sn.confidenceBuffer)
	if err != nil {
		return nil, err
	}

	detection.SortPredictions(results)

	return detection.TrimPredictions(results, sn.settings.Detection.TopK), nil
}

// pairLabelsAndConfidence pairs labels with their corresponding confidence values.
func pairLabelsAndConfidence(labels []string, confidence []float32) ([]detection.Prediction, error) {
	if len(labels) != len(confidence) {
		return nil, errors.Newf("mismatched labels and predictions lengths: %d vs %d", len(labels), len(confidence)).
			Component("gtsrb").
			Category(errors.CategoryInference).
			Build()
	}

	results := make([]detection.Prediction, 0, len(labels))
	for i, label := range labels {
		results = append(results, detection.Prediction{
			ClassID:    i,
			Label:      label,
			Confidence: float64(confidence[i]),
		})
	}
	return results, nil
}
