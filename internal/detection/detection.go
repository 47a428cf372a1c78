// Package detection holds the result types for the camera-to-classification
// loop and the per-cycle orchestration.
package detection

import (
	"sort"
	"time"
)

// Prediction is a single (label, confidence) candidate from the classifier.
type Prediction struct {
	ClassID    int     `json:"class_id"`
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// CycleRecord is the outcome of one scheduler tick. It is created at cycle
// start, fully populated by cycle end and immutable thereafter.
type CycleRecord struct {
	Index     int       `json:"index"`
	Timestamp time.Time `json:"timestamp"`

	// Detected is true when the top candidate cleared the confidence threshold.
	Detected bool `json:"detected"`

	// Primary is the promoted detection, nil when no sign was detected.
	Primary *Prediction `json:"primary_detection"`

	// TopPredictions holds the full ranked candidate list, descending by
	// confidence, regardless of the threshold.
	TopPredictions []Prediction `json:"top_predictions"`

	CaptureTimeMs    float64 `json:"capture_time_ms"`
	PreprocessTimeMs float64 `json:"preprocess_time_ms"`
	InferenceTimeMs  float64 `json:"inference_time_ms"`
	TotalTimeMs      float64 `json:"total_time_ms"`

	// Error and ErrorStage are set for recoverable per-cycle failures.
	Error      string `json:"error,omitempty"`
	ErrorStage string `json:"error_stage,omitempty"`
}

// Failed reports whether the cycle ended in a recoverable error.
func (r *CycleRecord) Failed() bool {
	return r.Error != ""
}

// SortPredictions sorts predictions by confidence in descending order.
func SortPredictions(preds []Prediction) {
	sort.Slice(preds, func(i, j int) bool {
		return preds[i].Confidence > preds[j].Confidence
	})
}

// TrimPredictions trims the predictions to a maximum specified count.
func TrimPredictions(preds []Prediction, maxCount int) []Prediction {
	if len(preds) > maxCount {
		return preds[:maxCount]
	}
	return preds
}

// Promote applies the confidence threshold to a ranked candidate list. The
// head candidate is returned only when its confidence meets the threshold;
// the ranked list itself is never affected by the threshold.
func Promote(ranked []Prediction, threshold float64) *Prediction {
	if len(ranked) == 0 {
		return nil
	}
	top := ranked[0]
	if top.Confidence < threshold {
		return nil
	}
	return &top
}
