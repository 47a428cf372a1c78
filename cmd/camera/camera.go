// Package camera implements the continuous on-vehicle detection session.
package camera

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"signwatch/internal/camera"
	"signwatch/internal/conf"
	"signwatch/internal/detection"
	"signwatch/internal/gtsrb"
	"signwatch/internal/logging"
	"signwatch/internal/preprocess"
	"signwatch/internal/scheduler"
	"signwatch/internal/summary"
)

// Command creates the camera command for continuous detection.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "camera",
		Short: "Run continuous traffic sign detection from the camera",
		Long:  "Capture frames from the vehicle camera at a fixed cadence and classify traffic signs until the configured duration elapses or the process is interrupted.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSession(settings)
		},
	}

	if err := setupFlags(cmd, settings); err != nil {
		fmt.Printf("error setting up flags: %v\n", err)
		os.Exit(1)
	}

	return cmd
}

// setupFlags configures flags specific to the camera command.
func setupFlags(cmd *cobra.Command, settings *conf.Settings) error {
	cmd.Flags().StringVar(&settings.Camera.Device, "device", viper.GetString("camera.device"), "Camera device node or http/rtsp URL")
	cmd.Flags().StringVarP(&settings.Camera.Resolution, "resolution", "r", viper.GetString("camera.resolution"), "Camera resolution as WIDTHxHEIGHT")
	cmd.Flags().Float64VarP(&settings.Detection.Interval, "interval", "i", viper.GetFloat64("detection.interval"), "Minimum seconds between cycle starts")
	cmd.Flags().Float64Var(&settings.Detection.Duration, "duration", viper.GetFloat64("detection.duration"), "Session duration in seconds, 0 to run until interrupted")
	cmd.Flags().StringVarP(&settings.Output.Path, "output", "o", viper.GetString("output.path"), "Directory for session summary files")

	noSave := cmd.Flags().Bool("no-save", !viper.GetBool("output.enabled"), "Do not save the session summary to file")
	cmd.PreRun = func(cmd *cobra.Command, args []string) {
		settings.Output.Enabled = !*noSave
	}

	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("error binding flags: %v", err)
	}

	return nil
}

// runSession wires the pipeline together and drives one detection session.
// Model and device failures here are fatal: the error propagates up and the
// process exits non-zero before any summary is produced.
func runSession(settings *conf.Settings) error {
	log := logging.ForService("session")

	resolution, err := conf.ParseResolution(settings.Camera.Resolution)
	if err != nil {
		return err
	}

	// No classifier means no pipeline.
	model, err := gtsrb.New(settings)
	if err != nil {
		return err
	}
	defer model.Delete()

	device := camera.NewDevice(settings.Camera.Device, resolution)
	if err := device.Open(); err != nil {
		return err
	}
	// The device handle is released on every exit path, including fatal
	// errors below and interruption, so the hardware is never left locked.
	defer device.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cycle := &detection.Cycle{
		Source:    device,
		Processor: preprocess.New(model.InputWidth(), model.InputHeight()),
		Model:     model,
		Threshold: settings.Detection.Confidence,
	}

	aggregator := summary.NewAggregator(resolution, settings.Detection.Interval)

	interval := time.Duration(settings.Detection.Interval * float64(time.Second))
	duration := time.Duration(settings.Detection.Duration * float64(time.Second))
	sched := scheduler.New(cycle, aggregator, interval, duration, log)

	log.Info("Starting continuous traffic sign detection",
		"session_id", aggregator.SessionID(),
		"device", settings.Camera.Device,
		"resolution", resolution.String(),
		"confidence_threshold", settings.Detection.Confidence,
		"interval_s", settings.Detection.Interval)

	state := sched.Run(ctx)

	sessionSummary := aggregator.Finalize()
	reportSummary(log, &sessionSummary, state.String())

	if settings.Output.Enabled {
		path := summary.DefaultOutputPath(settings.Output.Path, time.Now())
		if err := summary.Persist(sessionSummary, path); err != nil {
			// A failed write does not invalidate the completed run.
			log.Error("Failed to save session summary", "path", path, "error", err)
		} else {
			log.Info("Session summary saved", "path", path)
		}
	}

	// Both completion and interruption exit 0 after persistence.
	return nil
}

// reportSummary logs the final session statistics regardless of how many
// cycles failed.
func reportSummary(log *slog.Logger, s *summary.SessionSummary, state string) {
	log.Info("Detection summary",
		"state", state,
		"total_detections", s.DetectionSummary.TotalDetections,
		"successful_detections", s.DetectionSummary.SuccessfulDetections,
		"failed_detections", s.DetectionSummary.FailedDetections,
		"success_rate_pct", s.DetectionSummary.SuccessRate,
		"average_capture_time_ms", s.DetectionSummary.AverageCaptureTimeMs,
		"average_inference_time_ms", s.DetectionSummary.AverageInferenceMs)
}
