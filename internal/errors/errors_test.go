package errors

import (
	"fmt"
	"testing"
)

func TestErrorBuilder(t *testing.T) {
	t.Parallel()

	base := fmt.Errorf("model file not found")
	err := New(base).
		Component("gtsrb").
		Category(CategoryModelLoad).
		Context("model_path", "models/gtsrb_model.lite").
		Build()

	if err.Error() != "model file not found" {
		t.Errorf("Expected original message, got %q", err.Error())
	}
	if err.Component != "gtsrb" {
		t.Errorf("Expected component gtsrb, got %q", err.Component)
	}
	if err.Category != CategoryModelLoad {
		t.Errorf("Expected category %q, got %q", CategoryModelLoad, err.Category)
	}
	if !Is(err, base) {
		t.Error("Expected the enhanced error to unwrap to its base")
	}

	ctx := err.GetContext()
	if ctx["model_path"] != "models/gtsrb_model.lite" {
		t.Errorf("Expected model_path in context, got %v", ctx)
	}

	// The returned context is a copy.
	ctx["model_path"] = "changed"
	if err.Context["model_path"] != "models/gtsrb_model.lite" {
		t.Error("GetContext must not expose the internal map")
	}
}

func TestErrorBuilderDefaults(t *testing.T) {
	t.Parallel()

	err := Newf("something broke").Build()

	if err.Component != ComponentUnknown {
		t.Errorf("Expected default component %q, got %q", ComponentUnknown, err.Component)
	}
	if err.Category != CategoryGeneric {
		t.Errorf("Expected default category %q, got %q", CategoryGeneric, err.Category)
	}
	if err.Timestamp.IsZero() {
		t.Error("Expected a timestamp to be set")
	}
	if err.GetContext() != nil {
		t.Error("Expected nil context when none was added")
	}
}

// TestCategoryMatching verifies that errors.Is matches enhanced errors by
// category, so callers can classify failures without sentinel values.
func TestCategoryMatching(t *testing.T) {
	t.Parallel()

	captureErr := Newf("frame grab failed").
		Component("camera").
		Category(CategoryCapture).
		Build()

	probe := &EnhancedError{Category: CategoryCapture}
	if !Is(captureErr, probe) {
		t.Error("Expected category-based match for same category")
	}

	otherProbe := &EnhancedError{Category: CategoryInference}
	if Is(captureErr, otherProbe) {
		t.Error("Expected no match across categories")
	}
}

func TestCategoryOf(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want ErrorCategory
	}{
		{
			name: "Enhanced error",
			err:  Newf("no device").Category(CategoryCameraDevice).Build(),
			want: CategoryCameraDevice,
		},
		{
			name: "Wrapped enhanced error",
			err:  fmt.Errorf("opening camera: %w", Newf("no device").Category(CategoryCameraDevice).Build()),
			want: CategoryCameraDevice,
		},
		{
			name: "Plain error",
			err:  fmt.Errorf("plain"),
			want: CategoryGeneric,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := CategoryOf(tt.err); got != tt.want {
				t.Errorf("Expected category %q, got %q", tt.want, got)
			}
			if !HasCategory(tt.err, tt.want) {
				t.Errorf("Expected HasCategory(%q) to hold", tt.want)
			}
		})
	}
}

func TestTimingContext(t *testing.T) {
	t.Parallel()

	err := Newf("slow invoke").
		Category(CategoryInference).
		Timing("invoke", 1500000000).
		Build()

	ctx := err.GetContext()
	if ctx["operation"] != "invoke" {
		t.Errorf("Expected operation invoke, got %v", ctx["operation"])
	}
	if ctx["duration_ms"] != int64(1500) {
		t.Errorf("Expected duration 1500ms, got %v", ctx["duration_ms"])
	}
}
