package conf

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

// envBinding maps an environment variable onto a config key with an optional validator.
type envBinding struct {
	ConfigKey string
	EnvVar    string
	Validate  func(string) error
}

// getEnvBindings lists the variables that don't follow the PESTNET_<KEY> rule
// or need validation before use.
func getEnvBindings() []envBinding {
	return []envBinding{
		{"server.port", "PORT", validateEnvPort},
		{"server.port", "PESTNET_SERVER_PORT", validateEnvPort},
		{"server.max_upload_mb", "PESTNET_SERVER_MAX_UPLOAD_MB", validateEnvPositiveInt},
		{"model.dir", "PESTNET_MODEL_DIR", nil},
		{"model.fallback.enabled", "PESTNET_MODEL_FALLBACK_ENABLED", validateEnvBool},
		{"model.fallback.seed", "PESTNET_MODEL_FALLBACK_SEED", validateEnvInt},
		{"onnx.library_path", "ONNXRUNTIME_LIB", nil},
		{"database.type", "PESTNET_DATABASE_TYPE", validateEnvDatabaseType},
		{"database.dsn", "PESTNET_DATABASE_DSN", nil},
		{"logging.level", "PESTNET_LOG_LEVEL", validateEnvLogLevel},
		{"telemetry.sentry_dsn", "SENTRY_DSN", nil},
		{"debug", "PESTNET_DEBUG", validateEnvBool},
	}
}

// bindEnvVars binds every env var and reports all invalid values at once.
func bindEnvVars(v *viper.Viper) error {
	var problems []string
	bound := map[string][]string{}
	for _, b := range getEnvBindings() {
		bound[b.ConfigKey] = append(bound[b.ConfigKey], b.EnvVar)
		if b.Validate == nil {
			continue
		}
		if value := os.Getenv(b.EnvVar); value != "" {
			if err := b.Validate(value); err != nil {
				problems = append(problems, fmt.Sprintf("invalid %s value %q: %v", b.EnvVar, value, err))
			}
		}
	}
	for key, vars := range bound {
		args := append([]string{key}, vars...)
		if err := v.BindEnv(args...); err != nil {
			problems = append(problems, fmt.Sprintf("failed to bind %s: %v", key, err))
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("environment variable issues:\n  - %s", strings.Join(problems, "\n  - "))
	}
	return nil
}

func validateEnvBool(value string) error {
	_, err := strconv.ParseBool(value)
	return err
}

func validateEnvInt(value string) error {
	_, err := strconv.ParseInt(value, 10, 64)
	return err
}

func validateEnvPositiveInt(value string) error {
	n, err := strconv.Atoi(value)
	if err != nil {
		return err
	}
	if n <= 0 {
		return fmt.Errorf("must be positive")
	}
	return nil
}

func validateEnvPort(value string) error {
	port, err := strconv.Atoi(value)
	if err != nil {
		return err
	}
	if port < 1 || port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535")
	}
	return nil
}

func validateEnvDatabaseType(value string) error {
	switch strings.ToLower(value) {
	case "sqlite", "mysql":
		return nil
	}
	return fmt.Errorf("must be sqlite or mysql")
}

func validateEnvLogLevel(value string) error {
	switch strings.ToLower(value) {
	case "trace", "debug", "info", "warn", "error":
		return nil
	}
	return fmt.Errorf("unknown log level")
}
