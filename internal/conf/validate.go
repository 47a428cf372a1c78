// validate.go validation of user provided settings
package conf

import (
	"fmt"
	"strconv"
	"strings"

	"signwatch/internal/errors"
)

// ValidateSettings checks user provided settings for values the pipeline cannot run with.
func ValidateSettings(settings *Settings) error {
	if settings.Detection.Confidence < 0 || settings.Detection.Confidence > 1 {
		return errors.Newf("confidence threshold must be between 0.0 and 1.0, got %g", settings.Detection.Confidence).
			Component("conf").
			Category(errors.CategoryConfiguration).
			Context("confidence", settings.Detection.Confidence).
			Build()
	}

	if settings.Detection.Interval <= 0 {
		return errors.Newf("detection interval must be positive, got %g", settings.Detection.Interval).
			Component("conf").
			Category(errors.CategoryConfiguration).
			Context("interval", settings.Detection.Interval).
			Build()
	}

	if settings.Detection.Duration < 0 {
		return errors.Newf("detection duration must not be negative, got %g", settings.Detection.Duration).
			Component("conf").
			Category(errors.CategoryConfiguration).
			Context("duration", settings.Detection.Duration).
			Build()
	}

	if settings.Detection.TopK < 1 {
		return errors.Newf("topk must be at least 1, got %d", settings.Detection.TopK).
			Component("conf").
			Category(errors.CategoryConfiguration).
			Context("topk", settings.Detection.TopK).
			Build()
	}

	if _, err := ParseResolution(settings.Camera.Resolution); err != nil {
		return err
	}

	return nil
}

// ParseResolution parses a WIDTHxHEIGHT string such as "1920x1080".
func ParseResolution(s string) (Resolution, error) {
	parts := strings.Split(strings.ToLower(strings.TrimSpace(s)), "x")
	if len(parts) != 2 {
		return Resolution{}, invalidResolution(s, nil)
	}

	width, err := strconv.Atoi(parts[0])
	if err != nil {
		return Resolution{}, invalidResolution(s, err)
	}
	height, err := strconv.Atoi(parts[1])
	if err != nil {
		return Resolution{}, invalidResolution(s, err)
	}

	if width <= 0 || height <= 0 {
		return Resolution{}, invalidResolution(s, nil)
	}

	return Resolution{Width: width, Height: height}, nil
}

func invalidResolution(s string, cause error) error {
	err := fmt.Errorf("invalid resolution %q, expected WIDTHxHEIGHT (e.g. 1920x1080)", s)
	if cause != nil {
		err = fmt.Errorf("%w: %w", err, cause)
	}
	return errors.New(err).
		Component("conf").
		Category(errors.CategoryConfiguration).
		Context("resolution", s).
		Build()
}
