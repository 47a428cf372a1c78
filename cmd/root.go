// Package cmd assembles the signwatch command line interface.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"signwatch/cmd/batch"
	"signwatch/cmd/camera"
	"signwatch/cmd/detect"
	"signwatch/internal/conf"
)

// RootCommand creates and returns the root command
func RootCommand(settings *conf.Settings) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "signwatch",
		Short: "signwatch CLI",
		Long:  "Real-time traffic sign recognition for wide-field-of-view vehicle cameras.",
	}

	// Set up the global flags for the root command.
	setupFlags(rootCmd, settings)

	subcommands := []*cobra.Command{
		camera.Command(settings),
		detect.Command(settings),
		batch.Command(settings),
	}

	rootCmd.AddCommand(subcommands...)

	return rootCmd
}

// setupFlags defines flags that are global to the command line interface
func setupFlags(rootCmd *cobra.Command, settings *conf.Settings) error {
	rootCmd.PersistentFlags().BoolVarP(&settings.Debug, "debug", "d", viper.GetBool("debug"), "Enable debug output")
	rootCmd.PersistentFlags().StringVar(&settings.Model.Path, "model", viper.GetString("model.path"), "Path to the TensorFlow Lite model file")
	rootCmd.PersistentFlags().StringVar(&settings.Model.LabelPath, "labels", viper.GetString("model.labelpath"), "Path to an external label file")
	rootCmd.PersistentFlags().Float64VarP(&settings.Detection.Confidence, "confidence", "c", viper.GetFloat64("detection.confidence"), "Confidence threshold for detections, value between 0.0 and 1.0")
	rootCmd.PersistentFlags().IntVar(&settings.Detection.TopK, "topk", viper.GetInt("detection.topk"), "Number of ranked candidates to retain per detection")

	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		return fmt.Errorf("error binding flags: %v", err)
	}

	return nil
}
