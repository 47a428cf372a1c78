// Package detect implements single-image traffic sign detection.
package detect

import (
	"encoding/json"
	"fmt"
	"image"
	_ "image/jpeg" // JPEG decoding for still images
	_ "image/png"  // PNG decoding for still images
	"os"
	"time"

	"github.com/spf13/cobra"

	"signwatch/internal/conf"
	"signwatch/internal/detection"
	"signwatch/internal/errors"
	"signwatch/internal/gtsrb"
	"signwatch/internal/logging"
	"signwatch/internal/preprocess"
)

// result is the JSON shape written for a single still image.
type result struct {
	Image          string                 `json:"image"`
	Timestamp      time.Time              `json:"timestamp"`
	Detected       bool                   `json:"detected"`
	Primary        *detection.Prediction  `json:"primary_detection"`
	TopPredictions []detection.Prediction `json:"top_predictions"`
	InferenceMs    float64                `json:"inference_time_ms"`
}

// Command creates the detect command for classifying one image file.
func Command(settings *conf.Settings) *cobra.Command {
	var outputPath string

	cmd := &cobra.Command{
		Use:   "detect [image]",
		Short: "Detect a traffic sign in a single image file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDetect(settings, args[0], outputPath)
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Write the result as JSON to this file")

	return cmd
}

func runDetect(settings *conf.Settings, imagePath, outputPath string) error {
	log := logging.ForService("detect")

	model, err := gtsrb.New(settings)
	if err != nil {
		return err
	}
	defer model.Delete()

	frame, err := LoadImage(imagePath)
	if err != nil {
		return err
	}

	processor := preprocess.New(model.InputWidth(), model.InputHeight())

	start := time.Now()
	primary, ranked, err := detection.ClassifyFrame(processor, model, settings.Detection.Confidence, frame)
	if err != nil {
		return err
	}

	res := result{
		Image:          imagePath,
		Timestamp:      time.Now(),
		Detected:       primary != nil,
		Primary:        primary,
		TopPredictions: ranked,
		InferenceMs:    float64(time.Since(start).Microseconds()) / 1000.0,
	}

	if res.Detected {
		log.Info("Traffic sign detected",
			"image", imagePath,
			"label", primary.Label,
			"confidence", primary.Confidence)
	} else {
		log.Info("No sign detected", "image", imagePath)
	}
	for i, candidate := range ranked {
		log.Info("Ranked candidate",
			"rank", i+1,
			"label", candidate.Label,
			"confidence", candidate.Confidence)
	}

	if outputPath != "" {
		data, err := json.MarshalIndent(res, "", "  ")
		if err != nil {
			return errors.New(err).
				Component("detect").
				Category(errors.CategoryPersistence).
				Build()
		}
		if err := os.WriteFile(outputPath, data, 0o644); err != nil {
			return errors.New(err).
				Component("detect").
				Category(errors.CategoryPersistence).
				Context("path", outputPath).
				Build()
		}
		log.Info("Result written", "path", outputPath)
	}

	return nil
}

// LoadImage decodes a JPEG or PNG image from disk.
func LoadImage(path string) (image.Image, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.New(fmt.Errorf("failed to open image: %w", err)).
			Component("detect").
			Category(errors.CategoryFileIO).
			Context("path", path).
			Build()
	}
	defer file.Close()

	img, _, err := image.Decode(file)
	if err != nil {
		return nil, errors.New(fmt.Errorf("failed to decode image: %w", err)).
			Component("detect").
			Category(errors.CategoryPreprocess).
			Context("path", path).
			Build()
	}
	return img, nil
}
