package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gardenlab/pestnet-go/cmd/inspect"
	"github.com/gardenlab/pestnet-go/cmd/migrate"
	"github.com/gardenlab/pestnet-go/cmd/serve"
	"github.com/gardenlab/pestnet-go/cmd/synthesize"
	"github.com/gardenlab/pestnet-go/cmd/version"
	"github.com/gardenlab/pestnet-go/internal/buildinfo"
	"github.com/gardenlab/pestnet-go/internal/conf"
	"github.com/gardenlab/pestnet-go/internal/logger"
	"github.com/gardenlab/pestnet-go/internal/telemetry"
)

// Execute runs the CLI with ctx and releases logging and telemetry when the
// command returns.
func Execute(ctx context.Context, info *buildinfo.Context) error {
	var closers []func()
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}()
	return RootCommand(info, &closers).ExecuteContext(ctx)
}

// RootCommand creates the root command. Without a subcommand it serves.
func RootCommand(info *buildinfo.Context, closers *[]func()) *cobra.Command {
	settings := &conf.Settings{}
	var (
		configFile string
		debug      bool
	)

	rootCmd := &cobra.Command{
		Use:           "pestnet",
		Short:         "Pest image classification service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Path to config file")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "Enable debug output")

	serveCmd := serve.Command(settings)
	versionCmd := version.Command(info)
	rootCmd.AddCommand(
		serveCmd,
		inspect.Command(settings),
		synthesize.Command(settings),
		migrate.Command(settings),
		versionCmd,
	)
	rootCmd.RunE = serveCmd.RunE
	rootCmd.Flags().AddFlagSet(serveCmd.Flags())

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == versionCmd.Name() {
			return nil
		}
		return initialize(settings, info, configFile, debug, closers)
	}

	return rootCmd
}

// initialize loads settings into the shared struct and sets up logging and
// error reporting before any subcommand runs.
func initialize(settings *conf.Settings, info *buildinfo.Context, configFile string, debug bool, closers *[]func()) error {
	loaded, err := conf.Load(configFile)
	if err != nil {
		return err
	}
	*settings = *loaded
	if debug {
		settings.Debug = true
	}

	central, err := logger.NewCentralLogger(loggingConfig(settings))
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	logger.SetGlobal(central)
	*closers = append(*closers, func() { _ = central.Close() })

	flush, err := telemetry.InitSentry(settings.Telemetry.SentryDSN, info, settings.Debug)
	if err != nil {
		// Error reporting is optional; run without it.
		central.Module("main").Warn("error reporting disabled", logger.Error(err))
		return nil
	}
	*closers = append(*closers, flush)
	return nil
}

func loggingConfig(settings *conf.Settings) *logger.LoggingConfig {
	level := settings.Logging.Level
	if settings.Debug {
		level = "debug"
	}
	cfg := &logger.LoggingConfig{
		DefaultLevel: level,
		Console:      &logger.ConsoleOutput{Enabled: true, Level: level},
	}
	if settings.Logging.FilePath != "" {
		cfg.FileOutput = &logger.FileOutput{
			Enabled:    true,
			Path:       settings.Logging.FilePath,
			Level:      level,
			MaxSize:    settings.Logging.MaxSize,
			MaxBackups: settings.Logging.MaxBackups,
			MaxAge:     settings.Logging.MaxAge,
			Compress:   settings.Logging.Compress,
		}
	}
	return cfg
}
