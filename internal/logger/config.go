package logger

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	DefaultLevel string            `yaml:"default_level" json:"default_level"`
	Timezone     string            `yaml:"timezone" json:"timezone"` // "Local", "UTC" or an IANA name
	Console      *ConsoleOutput    `yaml:"console" json:"console"`
	FileOutput   *FileOutput       `yaml:"file_output" json:"file_output"`
	ModuleLevels map[string]string `yaml:"module_levels" json:"module_levels"`
}

// ConsoleOutput configures text output on stdout. Timestamps are omitted;
// journald and container runtimes add their own.
type ConsoleOutput struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Level   string `yaml:"level" json:"level"`
}

// FileOutput configures JSON output to a rotated file.
type FileOutput struct {
	Enabled    bool   `yaml:"enabled" json:"enabled"`
	Path       string `yaml:"path" json:"path"`
	Level      string `yaml:"level" json:"level"`
	MaxSize    int    `yaml:"max_size" json:"max_size"`       // MB before rotation
	MaxBackups int    `yaml:"max_backups" json:"max_backups"` // rotated files kept, 0 keeps all
	MaxAge     int    `yaml:"max_age" json:"max_age"`         // days, 0 keeps forever
	Compress   bool   `yaml:"compress" json:"compress"`
}

const (
	DefaultLogLevel   = "info"
	DefaultLogPath    = "logs/pestnet.log"
	DefaultMaxSize    = 100
	DefaultMaxBackups = 10
	DefaultMaxAge     = 30
)

// applyConfigDefaults fills nil sections so a zero config still logs to the console.
func applyConfigDefaults(cfg *LoggingConfig) {
	if cfg.DefaultLevel == "" {
		cfg.DefaultLevel = DefaultLogLevel
	}
	if cfg.Console == nil {
		cfg.Console = &ConsoleOutput{Enabled: true, Level: cfg.DefaultLevel}
	}
	if cfg.FileOutput != nil && cfg.FileOutput.Enabled {
		fo := cfg.FileOutput
		if fo.Path == "" {
			fo.Path = DefaultLogPath
		}
		if fo.Level == "" {
			fo.Level = cfg.DefaultLevel
		}
		if fo.MaxSize <= 0 {
			fo.MaxSize = DefaultMaxSize
		}
	}
}
