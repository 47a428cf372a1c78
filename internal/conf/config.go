// config.go: settings struct for the signwatch application and functions to load and save the settings.
package conf

import (
	"embed"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/viper"
	"signwatch/internal/errors"
)

//go:embed config.yaml
var configFiles embed.FS

// ModelSettings contains settings for the traffic sign classifier model.
type ModelSettings struct {
	Path      string // path to the TensorFlow Lite model file
	LabelPath string // path to an external label file, empty to use embedded labels
	Threads   int    // number of interpreter threads, 0 to use all CPUs
}

// CameraSettings contains settings for the capture device.
type CameraSettings struct {
	Device     string // camera device node, e.g. /dev/video0, or an http/rtsp URL
	Resolution string // capture resolution as WIDTHxHEIGHT
}

// DetectionSettings contains settings for the detection loop.
type DetectionSettings struct {
	Confidence float64 // minimum confidence for a candidate to be promoted to a detection
	TopK       int     // number of ranked candidates to retain per cycle
	Interval   float64 // minimum seconds between cycle starts
	Duration   float64 // session duration in seconds, 0 to run until interrupted
}

// OutputSettings contains settings for session summary persistence.
type OutputSettings struct {
	Enabled bool   // false to skip writing the session summary
	Path    string // directory for session summary files
}

// Settings contains all application settings.
type Settings struct {
	Debug bool // true to enable debug output

	Model     ModelSettings     // classifier model settings
	Camera    CameraSettings    // capture device settings
	Detection DetectionSettings // detection loop settings
	Output    OutputSettings    // persistence settings
}

// Resolution is a parsed camera resolution.
type Resolution struct {
	Width  int
	Height int
}

// String returns the WIDTHxHEIGHT form.
func (r Resolution) String() string {
	return fmt.Sprintf("%dx%d", r.Width, r.Height)
}

// settingsInstance is the current settings instance
var (
	settingsInstance *Settings
	settingsMutex    sync.RWMutex
)

// Load reads the configuration file and environment variables into Settings.
func Load() (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	settings := &Settings{}

	// Initialize viper and read config
	if err := initViper(); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	// Unmarshal the config into settings
	if err := viper.Unmarshal(settings); err != nil {
		return nil, errors.New(fmt.Errorf("error unmarshaling config into struct: %w", err)).
			Component("conf").
			Category(errors.CategoryConfiguration).
			Build()
	}

	// Validate settings
	if err := ValidateSettings(settings); err != nil {
		return nil, err
	}

	settingsInstance = settings
	return settingsInstance, nil
}

// Setting returns the current settings instance, or nil before Load has run.
func Setting() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

// initViper initializes viper with default values and reads the configuration file.
func initViper() error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return fmt.Errorf("error getting default config paths: %w", err)
	}

	for _, path := range configPaths {
		viper.AddConfigPath(path)
	}

	// Set default values for each configuration parameter
	// function defined in defaults.go
	setDefaultConfig()

	// Read configuration file
	err = viper.ReadInConfig()
	if err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) {
			// Config file not found, create config with defaults
			return createDefaultConfig()
		}
		return fmt.Errorf("fatal error reading config file: %w", err)
	}

	return nil
}

// createDefaultConfig creates a default config file and writes it to the default config path
func createDefaultConfig() error {
	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return fmt.Errorf("error getting default config paths: %w", err)
	}
	configPath := filepath.Join(configPaths[0], "config.yaml")
	defaultConfig := getDefaultConfig()

	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return fmt.Errorf("error creating directories for config file: %w", err)
	}

	if err := os.WriteFile(configPath, []byte(defaultConfig), 0o644); err != nil {
		return fmt.Errorf("error writing default config file: %w", err)
	}

	fmt.Println("Created default config file at:", configPath)
	return viper.ReadInConfig()
}

// getDefaultConfig reads the default configuration from the embedded config.yaml file.
func getDefaultConfig() string {
	data, err := fs.ReadFile(configFiles, "config.yaml")
	if err != nil {
		log.Fatalf("Error reading embedded config file: %v", err)
	}
	return string(data)
}

// GetDefaultConfigPaths returns the config file search paths in priority order.
func GetDefaultConfigPaths() ([]string, error) {
	var paths []string

	// Current working directory first so a local config wins
	paths = append(paths, ".")

	if configDir, err := os.UserConfigDir(); err == nil {
		paths = append(paths, filepath.Join(configDir, "signwatch"))
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return paths, nil
	}
	paths = append(paths, filepath.Join(homeDir, ".config", "signwatch"))

	return paths, nil
}
