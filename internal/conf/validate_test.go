package conf

import (
	"testing"

	"signwatch/internal/errors"
)

func validSettings() *Settings {
	return &Settings{
		Model: ModelSettings{
			Path:    "models/gtsrb_model.lite",
			Threads: 0,
		},
		Camera: CameraSettings{
			Device:     "/dev/video0",
			Resolution: "1920x1080",
		},
		Detection: DetectionSettings{
			Confidence: 0.3,
			TopK:       3,
			Interval:   1.0,
			Duration:   0,
		},
		Output: OutputSettings{
			Enabled: true,
			Path:    "output",
		},
	}
}

func TestValidateSettings(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Settings)
		wantErr bool
	}{
		{name: "Defaults are valid", mutate: func(*Settings) {}},
		{name: "Confidence at lower bound", mutate: func(s *Settings) { s.Detection.Confidence = 0 }},
		{name: "Confidence at upper bound", mutate: func(s *Settings) { s.Detection.Confidence = 1 }},
		{name: "Confidence above one", mutate: func(s *Settings) { s.Detection.Confidence = 1.5 }, wantErr: true},
		{name: "Confidence negative", mutate: func(s *Settings) { s.Detection.Confidence = -0.1 }, wantErr: true},
		{name: "Zero interval", mutate: func(s *Settings) { s.Detection.Interval = 0 }, wantErr: true},
		{name: "Negative interval", mutate: func(s *Settings) { s.Detection.Interval = -1 }, wantErr: true},
		{name: "Zero duration runs unbounded", mutate: func(s *Settings) { s.Detection.Duration = 0 }},
		{name: "Negative duration", mutate: func(s *Settings) { s.Detection.Duration = -5 }, wantErr: true},
		{name: "Zero topk", mutate: func(s *Settings) { s.Detection.TopK = 0 }, wantErr: true},
		{name: "Bad resolution", mutate: func(s *Settings) { s.Camera.Resolution = "widescreen" }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			settings := validSettings()
			tt.mutate(settings)

			err := ValidateSettings(settings)
			if tt.wantErr {
				if err == nil {
					t.Fatal("Expected a validation error")
				}
				if !errors.HasCategory(err, errors.CategoryConfiguration) {
					t.Errorf("Expected configuration category, got %q", errors.CategoryOf(err))
				}
			} else if err != nil {
				t.Errorf("Unexpected error: %v", err)
			}
		})
	}
}

func TestParseResolution(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		want    Resolution
		wantErr bool
	}{
		{name: "Full HD", input: "1920x1080", want: Resolution{Width: 1920, Height: 1080}},
		{name: "Uppercase separator", input: "1280X720", want: Resolution{Width: 1280, Height: 720}},
		{name: "Surrounding whitespace", input: " 640x480 ", want: Resolution{Width: 640, Height: 480}},
		{name: "Missing separator", input: "1920", wantErr: true},
		{name: "Too many parts", input: "1920x1080x60", wantErr: true},
		{name: "Non-numeric width", input: "widex1080", wantErr: true},
		{name: "Non-numeric height", input: "1920xtall", wantErr: true},
		{name: "Zero width", input: "0x1080", wantErr: true},
		{name: "Negative height", input: "1920x-1080", wantErr: true},
		{name: "Empty string", input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := ParseResolution(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("Expected an error for %q", tt.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Expected %+v, got %+v", tt.want, got)
			}
		})
	}
}

func TestResolutionString(t *testing.T) {
	t.Parallel()

	r := Resolution{Width: 1920, Height: 1080}
	if r.String() != "1920x1080" {
		t.Errorf("Expected 1920x1080, got %q", r.String())
	}
}
