// consts.go application wide default values
package conf

const (
	// DefaultModelPath is the expected location of the GTSRB TensorFlow Lite model.
	DefaultModelPath = "models/gtsrb_model.lite"

	// DefaultCameraDevice is the V4L2 device node used when none is configured.
	DefaultCameraDevice = "/dev/video0"

	// DefaultResolution is the capture resolution used when none is configured.
	DefaultResolution = "1920x1080"

	// DefaultConfidenceThreshold is the minimum confidence for a reported detection.
	DefaultConfidenceThreshold = 0.3

	// DefaultTopK is the number of ranked candidates retained per cycle.
	DefaultTopK = 3

	// DefaultInterval is the minimum number of seconds between cycle starts.
	DefaultInterval = 1.0

	// DefaultOutputPath is the directory session summaries are written to.
	DefaultOutputPath = "output"
)
