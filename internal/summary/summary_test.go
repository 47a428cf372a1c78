package summary

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"signwatch/internal/conf"
	"signwatch/internal/detection"
)

func testResolution() conf.Resolution {
	return conf.Resolution{Width: 1920, Height: 1080}
}

func TestAggregatorStats(t *testing.T) {
	t.Parallel()

	a := NewAggregator(testResolution(), 1.0)

	// Two detections, one below-threshold cycle, one failed cycle.
	a.Record(detection.CycleRecord{
		Index: 0, Detected: true,
		Primary:       &detection.Prediction{ClassID: 14, Label: "Stop", Confidence: 0.87},
		CaptureTimeMs: 100, InferenceTimeMs: 20, TotalTimeMs: 130,
	})
	a.Record(detection.CycleRecord{
		Index: 1, Detected: true,
		Primary:       &detection.Prediction{ClassID: 13, Label: "Yield", Confidence: 0.55},
		CaptureTimeMs: 120, InferenceTimeMs: 30, TotalTimeMs: 160,
	})
	a.Record(detection.CycleRecord{
		Index: 2, Detected: false,
		CaptureTimeMs: 110, InferenceTimeMs: 25, TotalTimeMs: 145,
	})
	a.Record(detection.CycleRecord{
		Index: 3, Error: "frame grab failed", ErrorStage: "frame-capture",
	})

	summary := a.Finalize()
	stats := summary.DetectionSummary

	assert.Equal(t, 4, stats.TotalDetections)
	assert.Equal(t, 2, stats.SuccessfulDetections)
	assert.Equal(t, 2, stats.FailedDetections)
	assert.InDelta(t, 50.0, stats.SuccessRate, 0.001)

	// Averages exclude the failed cycle but include the below-threshold one.
	assert.InDelta(t, 110.0, stats.AverageCaptureTimeMs, 0.001)
	assert.InDelta(t, 25.0, stats.AverageInferenceMs, 0.001)
	assert.InDelta(t, 145.0, stats.AverageTotalTimeMs, 0.001)

	assert.Equal(t, [2]int{1920, 1080}, stats.CameraResolution)
	assert.InDelta(t, 1.0, stats.DetectionIntervalS, 0.001)
	assert.NotEmpty(t, stats.SessionID)
	assert.NotEmpty(t, stats.SessionTimestamp)

	require.Len(t, summary.Detections, 4)
	assert.Equal(t, "Stop", summary.Detections[0].Primary.Label)
}

func TestAggregatorEmptySession(t *testing.T) {
	t.Parallel()

	a := NewAggregator(testResolution(), 2.0)
	summary := a.Finalize()
	stats := summary.DetectionSummary

	assert.Zero(t, stats.TotalDetections)
	assert.Zero(t, stats.SuccessfulDetections)
	assert.Zero(t, stats.FailedDetections)
	assert.Zero(t, stats.SuccessRate)
	assert.Zero(t, stats.AverageCaptureTimeMs)
	assert.Zero(t, stats.AverageInferenceMs)
	assert.Zero(t, stats.AverageTotalTimeMs)
	assert.Empty(t, summary.Detections)
}

func TestAggregatorFinalizeIdempotent(t *testing.T) {
	t.Parallel()

	a := NewAggregator(testResolution(), 1.0)
	a.Record(detection.CycleRecord{Index: 0, Detected: true,
		Primary:     &detection.Prediction{Label: "Stop", Confidence: 0.9},
		TotalTimeMs: 100})

	first := a.Finalize()
	second := a.Finalize()

	assert.Equal(t, first.DetectionSummary, second.DetectionSummary)
	assert.Equal(t, first.Detections, second.Detections)
}

func TestAggregatorSnapshotIsolation(t *testing.T) {
	t.Parallel()

	a := NewAggregator(testResolution(), 1.0)
	a.Record(detection.CycleRecord{Index: 0, Detected: true,
		Primary: &detection.Prediction{Label: "Stop", Confidence: 0.9}})

	first := a.Finalize()
	a.Record(detection.CycleRecord{Index: 1})

	assert.Len(t, first.Detections, 1, "a finalized snapshot must not grow with later records")
	assert.Len(t, a.Finalize().Detections, 2)
}

func TestPersistRoundTrip(t *testing.T) {
	t.Parallel()

	a := NewAggregator(testResolution(), 1.0)
	a.Record(detection.CycleRecord{
		Index: 0, Timestamp: time.Now(), Detected: true,
		Primary: &detection.Prediction{ClassID: 14, Label: "Stop", Confidence: 0.87},
		TopPredictions: []detection.Prediction{
			{ClassID: 14, Label: "Stop", Confidence: 0.87},
			{ClassID: 13, Label: "Yield", Confidence: 0.23},
		},
		CaptureTimeMs: 100, InferenceTimeMs: 20, TotalTimeMs: 130,
	})
	summary := a.Finalize()

	path := filepath.Join(t.TempDir(), "nested", "session.json")
	require.NoError(t, Persist(summary, path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var restored SessionSummary
	require.NoError(t, json.Unmarshal(data, &restored))

	assert.Equal(t, summary.DetectionSummary, restored.DetectionSummary)
	require.Len(t, restored.Detections, 1)
	assert.Equal(t, "Stop", restored.Detections[0].Primary.Label)
	assert.Len(t, restored.Detections[0].TopPredictions, 2)
}

func TestDefaultOutputPath(t *testing.T) {
	t.Parallel()

	at := time.Date(2026, 8, 26, 14, 30, 5, 0, time.UTC)
	got := DefaultOutputPath("output", at)
	assert.Equal(t, filepath.Join("output", "sign_detection_20260826_143005.json"), got)
}
