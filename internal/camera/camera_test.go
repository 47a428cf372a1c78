package camera

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"signwatch/internal/conf"
	"signwatch/internal/errors"
)

func testResolution() conf.Resolution {
	return conf.Resolution{Width: 1920, Height: 1080}
}

// fakeDeviceNode creates a readable file standing in for a V4L2 node.
func fakeDeviceNode(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "video0")
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDeviceOpenClose(t *testing.T) {
	t.Parallel()

	d := NewDevice(fakeDeviceNode(t), testResolution())

	if err := d.Open(); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if err := d.Open(); err == nil {
		t.Error("Expected an error opening an already open device")
	}

	d.Close()
	d.Close() // idempotent

	if err := d.Open(); err != nil {
		t.Errorf("Expected reopen after close to succeed, got %v", err)
	}
	d.Close()
}

func TestDeviceExclusiveHold(t *testing.T) {
	t.Parallel()

	path := fakeDeviceNode(t)
	first := NewDevice(path, testResolution())
	second := NewDevice(path, testResolution())

	if err := first.Open(); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	defer first.Close()

	err := second.Open()
	if err == nil {
		second.Close()
		t.Fatal("Expected the second open of the same node to fail")
	}
	if !errors.HasCategory(err, errors.CategoryCameraDevice) {
		t.Errorf("Expected camera-device category, got %q", errors.CategoryOf(err))
	}

	// Releasing the first handle frees the node for the second.
	first.Close()
	if err := second.Open(); err != nil {
		t.Errorf("Expected open after release to succeed, got %v", err)
	}
	second.Close()
}

func TestDeviceOpenMissingNode(t *testing.T) {
	t.Parallel()

	d := NewDevice(filepath.Join(t.TempDir(), "video9"), testResolution())

	err := d.Open()
	if err == nil {
		t.Fatal("Expected an error for a missing device node")
	}
	if !errors.HasCategory(err, errors.CategoryCameraDevice) {
		t.Errorf("Expected camera-device category, got %q", errors.CategoryOf(err))
	}
}

func TestCaptureOnClosedDevice(t *testing.T) {
	t.Parallel()

	d := NewDevice(fakeDeviceNode(t), testResolution())

	_, _, err := d.Capture(context.Background())
	if err == nil {
		t.Fatal("Expected an error capturing from a closed device")
	}
	if !errors.HasCategory(err, errors.CategoryCapture) {
		t.Errorf("Expected frame-capture category, got %q", errors.CategoryOf(err))
	}
}

func TestIsNetworkSource(t *testing.T) {
	t.Parallel()

	tests := []struct {
		device string
		want   bool
	}{
		{"/dev/video0", false},
		{"http://cam.local/stream", true},
		{"https://cam.local/stream", true},
		{"rtsp://cam.local:554/stream", true},
		{"ftp://cam.local/stream", false},
	}

	for _, tt := range tests {
		if got := isNetworkSource(tt.device); got != tt.want {
			t.Errorf("isNetworkSource(%q) = %v, want %v", tt.device, got, tt.want)
		}
	}
}

func TestLastLine(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "Multi line", input: "banner\nconfig\n/dev/video0: Device or resource busy\n", want: "/dev/video0: Device or resource busy"},
		{name: "Single line", input: "no such device", want: "no such device"},
		{name: "Empty", input: "", want: ""},
		{name: "Trailing whitespace", input: "first\n  last  \n\n", want: "last"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := lastLine(tt.input); got != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, got)
			}
		})
	}
}
