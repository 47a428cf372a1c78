// defaults.go default values for viper configuration
package conf

import (
	"github.com/spf13/viper"
)

// setDefaultConfig sets the default values for the configuration parameters.
func setDefaultConfig() {
	viper.SetDefault("debug", false)

	viper.SetDefault("model.path", DefaultModelPath)
	viper.SetDefault("model.labelpath", "")
	viper.SetDefault("model.threads", 0)

	viper.SetDefault("camera.device", DefaultCameraDevice)
	viper.SetDefault("camera.resolution", DefaultResolution)

	viper.SetDefault("detection.confidence", DefaultConfidenceThreshold)
	viper.SetDefault("detection.topk", DefaultTopK)
	viper.SetDefault("detection.interval", DefaultInterval)
	viper.SetDefault("detection.duration", 0.0)

	viper.SetDefault("output.enabled", true)
	viper.SetDefault("output.path", DefaultOutputPath)
}
