package conf

import "github.com/spf13/viper"

// setDefaultConfig registers the default value of every setting.
func setDefaultConfig(v *viper.Viper) {
	v.SetDefault("debug", false)

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 5000)
	v.SetDefault("server.max_upload_mb", 10)
	v.SetDefault("server.cors", true)
	v.SetDefault("server.read_timeout", 30)
	v.SetDefault("server.write_timeout", 60)
	v.SetDefault("server.rate_limit", 0)

	v.SetDefault("model.dir", "models")
	v.SetDefault("model.extra_weights", []string{})
	v.SetDefault("model.fallback.enabled", true)
	v.SetDefault("model.fallback.seed", 0)
	v.SetDefault("model.fallback.samples", 64)
	v.SetDefault("model.fallback.epochs", 3)
	v.SetDefault("model.fallback.batch_size", 16)
	v.SetDefault("model.fallback.learning_rate", 0.001)

	v.SetDefault("onnx.library_path", "")

	v.SetDefault("knowledge.overrides_path", "")

	v.SetDefault("database.enabled", true)
	v.SetDefault("database.type", "sqlite")
	v.SetDefault("database.path", "pestnet.db")
	v.SetDefault("database.dsn", "")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.file_path", "")
	v.SetDefault("logging.max_size", 100)
	v.SetDefault("logging.max_backups", 10)
	v.SetDefault("logging.max_age", 30)
	v.SetDefault("logging.compress", false)

	v.SetDefault("telemetry.sentry_dsn", "")
}
