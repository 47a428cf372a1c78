package gtsrb

import (
	"bufio"
	"bytes"
	_ "embed" // Embedding the GTSRB label set directly into the binary.
	"os"
	"strings"

	"signwatch/internal/errors"
)

//go:embed labels_en.txt
var embeddedLabels []byte

// loadLabels loads the class labels, either the embedded GTSRB set or an
// external label file when one is configured.
func (sn *SignNet) loadLabels() error {
	sn.labels = nil

	if sn.settings.Model.LabelPath == "" {
		return sn.loadEmbeddedLabels()
	}
	return sn.loadExternalLabels()
}

// loadEmbeddedLabels reads the embedded label file line by line.
func (sn *SignNet) loadEmbeddedLabels() error {
	scanner := bufio.NewScanner(bytes.NewReader(embeddedLabels))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			sn.labels = append(sn.labels, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return errors.New(err).
			Component("gtsrb").
			Category(errors.CategoryLabelLoad).
			Context("operation", "scan_embedded_labels").
			Build()
	}
	return nil
}

// loadExternalLabels reads a user supplied label file, one label per line.
func (sn *SignNet) loadExternalLabels() error {
	file, err := os.Open(sn.settings.Model.LabelPath)
	if err != nil {
		return errors.New(err).
			Component("gtsrb").
			Category(errors.CategoryFileIO).
			Context("label_path", sn.settings.Model.LabelPath).
			Context("operation", "open").
			Build()
	}
	defer func() {
		if err := file.Close(); err != nil {
			sn.log.Warn("Failed to close label file",
				"error", err,
				"path", sn.settings.Model.LabelPath)
		}
	}()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			sn.labels = append(sn.labels, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return errors.New(err).
			Component("gtsrb").
			Category(errors.CategoryLabelLoad).
			Context("label_path", sn.settings.Model.LabelPath).
			Context("operation", "parse").
			Build()
	}
	return nil
}

// Labels returns the loaded class labels in model output order.
func (sn *SignNet) Labels() []string {
	return sn.labels
}
