// Package batch implements directory-wide traffic sign detection.
package batch

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"signwatch/cmd/detect"
	"signwatch/internal/conf"
	"signwatch/internal/detection"
	"signwatch/internal/errors"
	"signwatch/internal/gtsrb"
	"signwatch/internal/logging"
	"signwatch/internal/preprocess"
)

// imageResult is one entry of the batch output file.
type imageResult struct {
	Image          string                 `json:"image"`
	Detected       bool                   `json:"detected"`
	Primary        *detection.Prediction  `json:"primary_detection"`
	TopPredictions []detection.Prediction `json:"top_predictions"`
	Error          string                 `json:"error,omitempty"`
}

// batchOutput is the JSON written for a whole directory run.
type batchOutput struct {
	Directory   string        `json:"directory"`
	Timestamp   time.Time     `json:"timestamp"`
	TotalImages int           `json:"total_images"`
	Detected    int           `json:"detected"`
	Results     []imageResult `json:"results"`
}

// Command creates the batch command for processing a directory of images.
func Command(settings *conf.Settings) *cobra.Command {
	var outputPath string

	cmd := &cobra.Command{
		Use:   "batch [directory]",
		Short: "Detect traffic signs in every image of a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBatch(settings, args[0], outputPath)
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", filepath.Join(conf.DefaultOutputPath, "batch_results.json"), "Output JSON file")

	return cmd
}

func runBatch(settings *conf.Settings, dir, outputPath string) error {
	log := logging.ForService("batch")

	model, err := gtsrb.New(settings)
	if err != nil {
		return err
	}
	defer model.Delete()

	paths, err := listImages(dir)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		log.Warn("No images found", "directory", dir)
	}

	processor := preprocess.New(model.InputWidth(), model.InputHeight())

	out := batchOutput{
		Directory: dir,
		Timestamp: time.Now(),
	}

	for _, path := range paths {
		res := classifyOne(settings, processor, model, path)
		out.Results = append(out.Results, res)
		out.TotalImages++
		if res.Detected {
			out.Detected++
			log.Info("Traffic sign detected",
				"image", path,
				"label", res.Primary.Label,
				"confidence", res.Primary.Confidence)
		} else if res.Error != "" {
			log.Warn("Image failed", "image", path, "error", res.Error)
		} else {
			log.Info("No sign detected", "image", path)
		}
	}

	if dir := filepath.Dir(outputPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.New(err).
				Component("batch").
				Category(errors.CategoryPersistence).
				Context("path", outputPath).
				Build()
		}
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return errors.New(err).
			Component("batch").
			Category(errors.CategoryPersistence).
			Build()
	}
	if err := os.WriteFile(outputPath, data, 0o644); err != nil {
		return errors.New(err).
			Component("batch").
			Category(errors.CategoryPersistence).
			Context("path", outputPath).
			Build()
	}

	log.Info("Batch results written",
		"path", outputPath,
		"total_images", out.TotalImages,
		"detected", out.Detected)
	return nil
}

// classifyOne classifies a single file. Per-image failures are recorded and
// the batch continues, mirroring the per-cycle error policy of the camera loop.
func classifyOne(settings *conf.Settings, processor *preprocess.Processor, model *gtsrb.SignNet, path string) imageResult {
	res := imageResult{Image: path}

	frame, err := detect.LoadImage(path)
	if err != nil {
		res.Error = err.Error()
		return res
	}

	primary, ranked, err := detection.ClassifyFrame(processor, model, settings.Detection.Confidence, frame)
	if err != nil {
		res.Error = err.Error()
		return res
	}

	res.Primary = primary
	res.TopPredictions = ranked
	res.Detected = primary != nil
	return res
}

// listImages returns the JPEG and PNG files directly inside dir, sorted by name.
func listImages(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.New(err).
			Component("batch").
			Category(errors.CategoryFileIO).
			Context("directory", dir).
			Build()
	}

	var paths []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".jpg", ".jpeg", ".png":
			paths = append(paths, filepath.Join(dir, entry.Name()))
		}
	}
	return paths, nil
}
