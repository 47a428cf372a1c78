// Package summary accumulates per-cycle outcomes into a session summary and
// persists it as a timestamped JSON file.
package summary

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/stat"

	"signwatch/internal/conf"
	"signwatch/internal/detection"
	"signwatch/internal/errors"
)

// Stats is the aggregate block of the persisted session summary.
type Stats struct {
	TotalDetections      int     `json:"total_detections"`
	SuccessfulDetections int     `json:"successful_detections"`
	FailedDetections     int     `json:"failed_detections"`
	SuccessRate          float64 `json:"success_rate"` // percent
	AverageCaptureTimeMs float64 `json:"average_capture_time_ms"`
	AverageInferenceMs   float64 `json:"average_inference_time_ms"`
	AverageTotalTimeMs   float64 `json:"average_total_time_ms"`
	CameraResolution     [2]int  `json:"camera_resolution"`
	DetectionIntervalS   float64 `json:"detection_interval_s"`
	SessionID            string  `json:"session_id"`
	SessionTimestamp     string  `json:"session_timestamp"`
}

// SessionSummary is the persisted output format, one file per session.
type SessionSummary struct {
	DetectionSummary Stats                   `json:"detection_summary"`
	Detections       []detection.CycleRecord `json:"detections"`
}

// Aggregator exclusively owns the session summary. Records are handed off by
// the scheduling goroutine; the mutex makes the record/finalize pair safe if
// a concurrent reader is ever introduced.
type Aggregator struct {
	mu sync.Mutex

	sessionID  string
	started    time.Time
	resolution conf.Resolution
	intervalS  float64

	records    []detection.CycleRecord
	successful int

	// Per-step timings collected for the session averages. Failed cycles
	// contribute no timing samples.
	captureTimesMs   []float64
	inferenceTimesMs []float64
	totalTimesMs     []float64
}

// NewAggregator creates an Aggregator for one detection session.
func NewAggregator(resolution conf.Resolution, intervalS float64) *Aggregator {
	return &Aggregator{
		sessionID:  uuid.New().String(),
		started:    time.Now(),
		resolution: resolution,
		intervalS:  intervalS,
	}
}

// SessionID returns the generated identifier for this session.
func (a *Aggregator) SessionID() string {
	return a.sessionID
}

// Record appends a completed cycle record and updates the running counters.
// Ownership of the record transfers to the aggregator.
func (a *Aggregator) Record(record detection.CycleRecord) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.records = append(a.records, record)
	if record.Detected {
		a.successful++
	}

	if !record.Failed() {
		a.captureTimesMs = append(a.captureTimesMs, record.CaptureTimeMs)
		a.inferenceTimesMs = append(a.inferenceTimesMs, record.InferenceTimeMs)
		a.totalTimesMs = append(a.totalTimesMs, record.TotalTimeMs)
	}
}

// Finalize computes the derived statistics and returns the session summary.
// With no recorded cycles all rates and averages report zero. Calling
// Finalize again without intervening records returns an identical summary.
func (a *Aggregator) Finalize() SessionSummary {
	a.mu.Lock()
	defer a.mu.Unlock()

	total := len(a.records)

	stats := Stats{
		TotalDetections:      total,
		SuccessfulDetections: a.successful,
		FailedDetections:     total - a.successful,
		SuccessRate:          0,
		AverageCaptureTimeMs: meanOrZero(a.captureTimesMs),
		AverageInferenceMs:   meanOrZero(a.inferenceTimesMs),
		AverageTotalTimeMs:   meanOrZero(a.totalTimesMs),
		CameraResolution:     [2]int{a.resolution.Width, a.resolution.Height},
		DetectionIntervalS:   a.intervalS,
		SessionID:            a.sessionID,
		SessionTimestamp:     a.started.Format(time.RFC3339),
	}
	if total > 0 {
		stats.SuccessRate = round2(float64(a.successful) / float64(total) * 100)
	}

	// Snapshot the records so the caller never aliases the live sequence.
	records := make([]detection.CycleRecord, len(a.records))
	copy(records, a.records)

	return SessionSummary{
		DetectionSummary: stats,
		Detections:       records,
	}
}

// Persist serializes the summary to path. A write failure is reported to the
// caller but leaves the in-memory summary intact.
func Persist(summary SessionSummary, path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.New(err).
				Component("summary").
				Category(errors.CategoryPersistence).
				Context("path", path).
				Context("operation", "mkdir").
				Build()
		}
	}

	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return errors.New(err).
			Component("summary").
			Category(errors.CategoryPersistence).
			Context("path", path).
			Context("operation", "marshal").
			Build()
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.New(err).
			Component("summary").
			Category(errors.CategoryPersistence).
			Context("path", path).
			Context("operation", "write").
			Build()
	}

	return nil
}

// DefaultOutputPath builds the timestamped summary file name under dir.
func DefaultOutputPath(dir string, t time.Time) string {
	return filepath.Join(dir, fmt.Sprintf("sign_detection_%s.json", t.Format("20060102_150405")))
}

// meanOrZero averages the samples, guarding the empty slice (stat.Mean
// returns NaN for no samples).
func meanOrZero(samples []float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	return round2(stat.Mean(samples, nil))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
