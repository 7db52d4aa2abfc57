package serve

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/gardenlab/pestnet-go/internal/api"
	"github.com/gardenlab/pestnet-go/internal/conf"
	"github.com/gardenlab/pestnet-go/internal/datastore"
	"github.com/gardenlab/pestnet-go/internal/knowledge"
	"github.com/gardenlab/pestnet-go/internal/logger"
	"github.com/gardenlab/pestnet-go/internal/observability"
	"github.com/gardenlab/pestnet-go/internal/pestnet"
	"github.com/gardenlab/pestnet-go/internal/telemetry"
)

type flags struct {
	host     string
	port     int
	modelDir string
}

// Command creates the serve command.
func Command(settings *conf.Settings) *cobra.Command {
	var f flags
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Load a model and serve the classification API",
		Long: "Resolve the strongest available model artifact, training a fallback model " +
			"when none loads, then serve /health, /predict and the detection history API.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f.apply(cmd, settings)
			if err := conf.ValidateSettings(settings); err != nil {
				return err
			}
			return Run(cmd.Context(), settings)
		},
	}

	cmd.Flags().StringVar(&f.host, "host", "", "Listen address (overrides server.host)")
	cmd.Flags().IntVarP(&f.port, "port", "p", 0, "Listen port (overrides server.port)")
	cmd.Flags().StringVar(&f.modelDir, "model-dir", "", "Directory searched for model artifacts")
	return cmd
}

func (f *flags) apply(cmd *cobra.Command, settings *conf.Settings) {
	if cmd.Flags().Changed("host") {
		settings.Server.Host = f.host
	}
	if cmd.Flags().Changed("port") {
		settings.Server.Port = f.port
	}
	if cmd.Flags().Changed("model-dir") {
		settings.Model.Dir = f.modelDir
	}
}

// Run resolves the model, then serves until ctx is cancelled. The listener is
// not opened when no model can be loaded.
func Run(ctx context.Context, settings *conf.Settings) error {
	log := logger.Global().Module("serve")
	telemetry.LogSystemInfo(log)

	metrics, err := observability.NewMetrics()
	if err != nil {
		return fmt.Errorf("failed to create metrics: %w", err)
	}

	kb := knowledge.New()
	if path := settings.Knowledge.OverridesPath; path != "" {
		if kb, err = kb.LoadOverrides(path); err != nil {
			return err
		}
		log.Info("knowledge overrides loaded", logger.String("path", path))
	}

	handle := &pestnet.Handle{}
	defer func() {
		if err := handle.Close(); err != nil {
			log.Warn("failed to close classifier", logger.Error(err))
		}
		pestnet.ShutdownONNXRuntime()
	}()

	resolver := pestnet.NewResolver(pestnet.ResolverConfigFromSettings(settings),
		pestnet.WithMetrics(metrics.PestNet))
	classifier, err := resolver.Resolve(ctx)
	if err != nil {
		return fmt.Errorf("no usable model: %w", err)
	}
	if err := handle.Set(classifier); err != nil {
		_ = classifier.Close()
		return err
	}

	opts := []api.ServerOption{api.WithKnowledge(kb), api.WithMetrics(metrics)}
	if settings.Database.Enabled {
		store, err := datastore.New(settings, datastore.WithMetrics(metrics.Datastore))
		if err != nil {
			return err
		}
		if err := store.Open(); err != nil {
			return err
		}
		defer func() {
			if err := store.Close(); err != nil {
				log.Warn("failed to close datastore", logger.Error(err))
			}
		}()
		opts = append(opts, api.WithDataStore(store))
	}

	server, err := api.New(api.ConfigFromSettings(settings), handle, opts...)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Start(gctx)
	})
	g.Go(func() error {
		rotateLogsOnHangup(gctx, log)
		return nil
	})
	return g.Wait()
}

// rotateLogsOnHangup rotates the log file on SIGHUP until ctx is done.
func rotateLogsOnHangup(ctx context.Context, log logger.Logger) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			if err := logger.Global().Rotate(); err != nil {
				log.Warn("log rotation failed", logger.Error(err))
				continue
			}
			log.Info("log file rotated")
		}
	}
}
