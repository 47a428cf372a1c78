// Package scheduler drives detection cycles at a fixed cadence for a bounded
// or unbounded session. The scheduler targets a fixed cadence of cycle
// starts: the idle wait between cycles is the configured interval minus the
// previous cycle's execution time, measured on the monotonic clock, so long
// sessions do not drift. A cycle that overruns the interval is followed
// immediately by the next one.
package scheduler

import (
	"context"
	"log/slog"
	"math"
	"time"

	"signwatch/internal/detection"
)

// State is the scheduler's lifecycle state.
type State int

const (
	StateIdle State = iota
	StateRunning
	StateCompleted
	StateInterrupted
)

// String returns a human readable state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateInterrupted:
		return "interrupted"
	default:
		return "unknown"
	}
}

// CycleRunner executes one detection cycle. Recoverable failures are carried
// inside the returned record, never as an error.
type CycleRunner interface {
	Run(ctx context.Context, index int) detection.CycleRecord
}

// Recorder accumulates completed cycle records. Record is called from the
// scheduling goroutine only; ownership of the record transfers to the
// recorder on hand-off.
type Recorder interface {
	Record(record detection.CycleRecord)
}

// Scheduler owns the session lifetime and runs cycles strictly in order,
// never pipelined: the target hardware has a single camera and a single
// inference context.
type Scheduler struct {
	runner   CycleRunner
	recorder Recorder
	log      *slog.Logger

	interval time.Duration
	duration time.Duration // 0 means run until interrupted

	// maxCycles bounds the cycle count when a duration is configured, so a
	// session never runs more starts than its cadence allows.
	maxCycles int

	state State
}

// New creates a Scheduler. A zero duration means the session runs until the
// context is cancelled.
func New(runner CycleRunner, recorder Recorder, interval, duration time.Duration, log *slog.Logger) *Scheduler {
	s := &Scheduler{
		runner:   runner,
		recorder: recorder,
		log:      log,
		interval: interval,
		duration: duration,
		state:    StateIdle,
	}
	if duration > 0 && interval > 0 {
		s.maxCycles = int(math.Ceil(duration.Seconds() / interval.Seconds()))
	}
	return s
}

// State returns the scheduler's current lifecycle state.
func (s *Scheduler) State() State {
	return s.state
}

// Run executes the session until its duration elapses, its cycle bound is
// reached, or ctx is cancelled. It returns the terminal state. Cancellation
// interrupts only the idle wait, never a cycle in flight, so the frame
// source and classifier always reach a safe stopping point.
func (s *Scheduler) Run(ctx context.Context) State {
	s.state = StateRunning
	start := time.Now()
	cycles := 0

	s.log.Info("Detection session started",
		"interval_s", s.interval.Seconds(),
		"duration_s", s.duration.Seconds(),
		"max_cycles", s.maxCycles)

	for {
		if ctx.Err() != nil {
			s.state = StateInterrupted
			break
		}
		if s.duration > 0 && time.Since(start) >= s.duration {
			s.state = StateCompleted
			break
		}
		if s.maxCycles > 0 && cycles >= s.maxCycles {
			s.state = StateCompleted
			break
		}

		cycleStart := time.Now()
		record := s.runner.Run(ctx, cycles)
		s.recorder.Record(record)
		cycles++

		s.reportProgress(&record)

		// Subtract the cycle's execution time from the wait so cycle starts
		// stay on cadence; an overrun cycle gets no idle wait at all.
		if !s.waitForNextCycle(ctx, s.interval-time.Since(cycleStart)) {
			s.state = StateInterrupted
			break
		}
	}

	s.log.Info("Detection session ended",
		"state", s.state.String(),
		"cycles", cycles,
		"elapsed_s", time.Since(start).Seconds())

	return s.state
}

// waitForNextCycle idles until the next cycle start. It returns false when
// the wait was cancelled.
func (s *Scheduler) waitForNextCycle(ctx context.Context, wait time.Duration) bool {
	if wait <= 0 {
		return ctx.Err() == nil
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// reportProgress logs the per-cycle outcome for the operator.
func (s *Scheduler) reportProgress(record *detection.CycleRecord) {
	switch {
	case record.Failed():
		s.log.Warn("Detection cycle failed",
			"cycle", record.Index,
			"stage", record.ErrorStage,
			"error", record.Error)
	case record.Detected:
		s.log.Info("Traffic sign detected",
			"cycle", record.Index,
			"label", record.Primary.Label,
			"confidence", record.Primary.Confidence,
			"total_time_ms", record.TotalTimeMs)
	default:
		s.log.Info("No sign detected",
			"cycle", record.Index,
			"total_time_ms", record.TotalTimeMs)
	}
}
