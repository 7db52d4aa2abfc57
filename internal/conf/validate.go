package conf

import (
	"fmt"
	"strings"

	"github.com/gardenlab/pestnet-go/internal/errors"
)

// ValidationError collects every problem found in a Settings value.
type ValidationError struct {
	Errors []string
}

func (ve ValidationError) Error() string {
	return fmt.Sprintf("validation errors: %v", ve.Errors)
}

// ValidateSettings checks the loaded settings and normalises case-insensitive values.
func ValidateSettings(s *Settings) error {
	ve := ValidationError{}

	if s.Server.Port < 1 || s.Server.Port > 65535 {
		ve.Errors = append(ve.Errors, fmt.Sprintf("server.port %d out of range", s.Server.Port))
	}
	if s.Server.MaxUploadMB <= 0 {
		ve.Errors = append(ve.Errors, "server.max_upload_mb must be positive")
	}
	if s.Server.RateLimit < 0 {
		ve.Errors = append(ve.Errors, "server.rate_limit must not be negative")
	}
	if strings.TrimSpace(s.Model.Dir) == "" {
		ve.Errors = append(ve.Errors, "model.dir must be set")
	}

	fb := &s.Model.Fallback
	if fb.Enabled {
		if fb.Samples <= 0 || fb.Epochs <= 0 || fb.BatchSize <= 0 {
			ve.Errors = append(ve.Errors, "model.fallback samples, epochs and batch_size must be positive")
		}
		if fb.LearningRate <= 0 {
			ve.Errors = append(ve.Errors, "model.fallback.learning_rate must be positive")
		}
	}

	if s.Database.Enabled {
		s.Database.Type = strings.ToLower(s.Database.Type)
		switch s.Database.Type {
		case "sqlite":
			if s.Database.Path == "" {
				ve.Errors = append(ve.Errors, "database.path is required for sqlite")
			}
		case "mysql":
			if s.Database.DSN == "" {
				ve.Errors = append(ve.Errors, "database.dsn is required for mysql")
			}
		default:
			ve.Errors = append(ve.Errors, fmt.Sprintf("unsupported database.type %q", s.Database.Type))
		}
	}

	s.Logging.Level = strings.ToLower(s.Logging.Level)
	if validateEnvLogLevel(s.Logging.Level) != nil {
		ve.Errors = append(ve.Errors, fmt.Sprintf("unknown logging.level %q", s.Logging.Level))
	}

	if len(ve.Errors) > 0 {
		return errors.New(ve).
			Component("conf").
			Category(errors.CategoryConfiguration).
			Context("error_count", len(ve.Errors)).
			Build()
	}
	return nil
}
