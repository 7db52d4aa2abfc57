package synthesize

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/gardenlab/pestnet-go/internal/conf"
	"github.com/gardenlab/pestnet-go/internal/logger"
	"github.com/gardenlab/pestnet-go/internal/pestnet"
)

// Command trains the fallback model and writes it as a complete artifact,
// whether or not a real model is present.
func Command(settings *conf.Settings) *cobra.Command {
	var (
		output string
		seed   int64
	)
	cmd := &cobra.Command{
		Use:   "synthesize",
		Short: "Train and save the fallback model",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := pestnet.ResolverConfigFromSettings(settings)
			if cmd.Flags().Changed("seed") {
				cfg.Train.Seed = seed
			}
			if output == "" {
				output = filepath.Join(cfg.ModelDir, pestnet.FallbackArtifactName)
			}

			log := logger.Global().Module("synthesize")
			net, stats, err := pestnet.SynthesizeFallback(cmd.Context(), cfg.Train)
			if err != nil {
				return err
			}
			if err := pestnet.SaveArtifact(output, net, "fallback"); err != nil {
				return err
			}

			log.Info("fallback model written",
				logger.String("path", output),
				logger.Int64("seed", stats.Seed),
				logger.Float64("final_loss", stats.FinalLoss),
				logger.Float64("accuracy", stats.Accuracy))
			_, err = fmt.Fprintln(cmd.OutOrStdout(), output)
			return err
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Artifact path (default <model.dir>/"+pestnet.FallbackArtifactName+")")
	cmd.Flags().Int64Var(&seed, "seed", 0, "Training seed (overrides model.fallback.seed)")
	return cmd
}
