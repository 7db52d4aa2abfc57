// Package conf loads service settings from YAML, environment variables and defaults.
package conf

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/viper"
)

// Settings is the complete service configuration.
type Settings struct {
	Debug bool

	Server    ServerSettings
	Model     ModelSettings
	ONNX      ONNXSettings `mapstructure:"onnx"`
	Knowledge KnowledgeSettings
	Database  DatabaseSettings
	Logging   LoggingSettings
	Telemetry TelemetrySettings
}

// ServerSettings contains the HTTP listener options.
type ServerSettings struct {
	Host         string
	Port         int
	MaxUploadMB  int  `mapstructure:"max_upload_mb"`
	CORS         bool `mapstructure:"cors"`
	ReadTimeout  int  `mapstructure:"read_timeout"`  // seconds
	WriteTimeout int  `mapstructure:"write_timeout"` // seconds

	// RateLimit is the sustained /predict requests per second per client; 0 disables it.
	RateLimit float64 `mapstructure:"rate_limit"`
}

// Address returns host:port for the HTTP listener.
func (s ServerSettings) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// ModelSettings controls where artifacts are searched and how the fallback is built.
type ModelSettings struct {
	Dir          string
	ExtraWeights []string `mapstructure:"extra_weights"`
	Fallback     FallbackSettings
}

// FallbackSettings configures the throwaway model trained when nothing loads.
type FallbackSettings struct {
	Enabled   bool
	Seed      int64
	Samples   int
	Epochs    int
	BatchSize int `mapstructure:"batch_size"`
	// LearningRate for the Adam optimizer.
	LearningRate float64 `mapstructure:"learning_rate"`
}

// ONNXSettings points at the onnxruntime shared library used by directory-format models.
type ONNXSettings struct {
	LibraryPath string `mapstructure:"library_path"`
}

type KnowledgeSettings struct {
	OverridesPath string `mapstructure:"overrides_path"`
}

// DatabaseSettings configures detection history storage.
type DatabaseSettings struct {
	Enabled bool
	Type    string // sqlite or mysql
	Path    string // sqlite file
	DSN     string // mysql data source name
}

type LoggingSettings struct {
	Level      string
	FilePath   string `mapstructure:"file_path"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool
}

type TelemetrySettings struct {
	SentryDSN string `mapstructure:"sentry_dsn"`
}

var (
	settingsMutex    sync.RWMutex
	settingsInstance *Settings
)

// Load reads configuration and stores it as the process-wide settings.
// An empty configFile searches the default config paths; a missing file is
// not an error and defaults apply.
func Load(configFile string) (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	v, err := newViper(configFile)
	if err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	settings := &Settings{}
	if err := v.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}

	settingsInstance = settings
	return settingsInstance, nil
}

// newViper builds a viper instance with defaults, the config file and env bindings.
func newViper(configFile string) (*viper.Viper, error) {
	v := viper.New()
	setDefaultConfig(v)

	v.SetEnvPrefix("PESTNET")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := bindEnvVars(v); err != nil {
		return nil, err
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("fatal error reading config file %s: %w", configFile, err)
		}
		return v, nil
	}

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	for _, path := range defaultConfigPaths() {
		v.AddConfigPath(path)
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("fatal error reading config file: %w", err)
		}
	}
	return v, nil
}

// defaultConfigPaths lists config directories in search order.
func defaultConfigPaths() []string {
	paths := []string{"."}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "pestnet-go"))
	}
	return append(paths, "/etc/pestnet-go")
}

// GetSettings returns the settings stored by the last successful Load, or nil.
func GetSettings() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}
