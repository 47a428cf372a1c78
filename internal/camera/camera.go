// Package camera provides frame capture from a V4L2 camera device (or an
// http/rtsp source) through an ffmpeg subprocess. The device is an
// exclusively held resource: one Device instance holds it open at a time and
// the handle is released on every exit path via Close.
package camera

import (
	"bytes"
	"context"
	"image"
	"image/jpeg"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"signwatch/internal/conf"
	"signwatch/internal/errors"
	"signwatch/internal/logging"
)

// Device represents a single camera device.
type Device struct {
	path       string // device node or network URL
	resolution conf.Resolution
	log        *slog.Logger

	mu   sync.Mutex
	open bool
}

// held guards against two Device instances opening the same node in one process.
var (
	heldMu sync.Mutex
	held   = make(map[string]bool)
)

// NewDevice returns an unopened Device for the given node and resolution.
func NewDevice(path string, resolution conf.Resolution) *Device {
	return &Device{
		path:       path,
		resolution: resolution,
		log:        logging.ForService("camera"),
	}
}

// Open acquires the device. It fails when the device node is absent, not
// readable, or already held by another Device instance.
func (d *Device) Open() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.open {
		return errors.Newf("camera device %s is already open", d.path).
			Component("camera").
			Category(errors.CategoryCameraDevice).
			Context("device", d.path).
			Build()
	}

	if !isNetworkSource(d.path) {
		if err := d.checkAccessible(); err != nil {
			return err
		}
	}

	heldMu.Lock()
	if held[d.path] {
		heldMu.Unlock()
		return errors.Newf("camera device %s is busy", d.path).
			Component("camera").
			Category(errors.CategoryCameraDevice).
			Context("device", d.path).
			Build()
	}
	held[d.path] = true
	heldMu.Unlock()

	d.open = true
	d.log.Info("Camera device opened",
		"device", d.path,
		"resolution", d.resolution.String())
	return nil
}

// Close releases the device. It is safe to call multiple times.
func (d *Device) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.open {
		return
	}
	d.open = false

	heldMu.Lock()
	delete(held, d.path)
	heldMu.Unlock()

	d.log.Info("Camera device released", "device", d.path)
}

// Resolution returns the configured capture resolution.
func (d *Device) Resolution() conf.Resolution {
	return d.resolution
}

// Capture grabs a single frame and reports the capture latency. It implements
// detection.FrameSource. The ffmpeg subprocess is bound to ctx so an
// interrupted session never leaves a grab outstanding.
func (d *Device) Capture(ctx context.Context) (image.Image, time.Duration, error) {
	d.mu.Lock()
	if !d.open {
		d.mu.Unlock()
		return nil, 0, errors.Newf("camera device %s is not open", d.path).
			Component("camera").
			Category(errors.CategoryCapture).
			Context("device", d.path).
			Build()
	}
	d.mu.Unlock()

	start := time.Now()
	frameData, err := d.captureFrameWithFfmpeg(ctx)
	elapsed := time.Since(start)
	if err != nil {
		return nil, elapsed, err
	}

	frame, err := jpeg.Decode(bytes.NewReader(frameData))
	if err != nil {
		return nil, elapsed, errors.New(err).
			Component("camera").
			Category(errors.CategoryCapture).
			Context("device", d.path).
			Context("operation", "decode").
			Timing("frame-capture", elapsed).
			Build()
	}

	return frame, elapsed, nil
}

// captureFrameWithFfmpeg captures one frame as JPEG bytes using ffmpeg.
func (d *Device) captureFrameWithFfmpeg(ctx context.Context) ([]byte, error) {
	var args []string

	if isNetworkSource(d.path) {
		args = []string{
			"-y",
			"-i", d.path,
			"-vframes", "1",
			"-f", "mjpeg",
			"-q:v", "2",
			"-",
		}
	} else {
		args = []string{
			"-f", "v4l2",
			"-video_size", d.resolution.String(),
			"-i", d.path,
			"-vframes", "1",
			"-f", "mjpeg",
			"-q:v", "2",
			"-",
		}
	}

	cmd := exec.CommandContext(ctx, "ffmpeg", args...)
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, errors.Newf("ffmpeg frame grab failed: %v (stderr: %s)", err, lastLine(stderr.String())).
			Component("camera").
			Category(errors.CategoryCapture).
			Context("device", d.path).
			Build()
	}

	return stdout.Bytes(), nil
}

// checkAccessible verifies the device node exists and is readable.
func (d *Device) checkAccessible() error {
	if _, err := os.Stat(d.path); os.IsNotExist(err) {
		return errors.Newf("camera device %s does not exist", d.path).
			Component("camera").
			Category(errors.CategoryCameraDevice).
			Context("device", d.path).
			Build()
	}

	file, err := os.OpenFile(d.path, os.O_RDONLY, 0)
	if err != nil {
		return errors.New(err).
			Component("camera").
			Category(errors.CategoryCameraDevice).
			Context("device", d.path).
			Context("operation", "open").
			Build()
	}
	if err := file.Close(); err != nil {
		d.log.Warn("Failed to close device probe handle", "device", d.path, "error", err)
	}

	return nil
}

// isNetworkSource checks if the device path is an HTTP/RTSP URL.
func isNetworkSource(device string) bool {
	return strings.HasPrefix(device, "http://") ||
		strings.HasPrefix(device, "https://") ||
		strings.HasPrefix(device, "rtsp://")
}

// lastLine extracts the final line of ffmpeg's stderr, which carries the
// actual failure reason after the banner output.
func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[i+1:])
	}
	return s
}
