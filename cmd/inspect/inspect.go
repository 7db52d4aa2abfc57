package inspect

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gardenlab/pestnet-go/internal/conf"
	"github.com/gardenlab/pestnet-go/internal/pestnet"
)

// Command reports every model candidate in resolution order without
// serving or training anything.
func Command(settings *conf.Settings) *cobra.Command {
	var modelDir string
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Report which model artifacts exist and load",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("model-dir") {
				settings.Model.Dir = modelDir
			}
			defer pestnet.ShutdownONNXRuntime()

			resolver := pestnet.NewResolver(pestnet.ResolverConfigFromSettings(settings))
			report := Report{ModelDir: settings.Model.Dir, Candidates: resolver.Inspect()}
			for _, c := range report.Candidates {
				if c.Loadable && report.Selected == "" {
					report.Selected = c.Source
				}
			}

			out, err := json.MarshalIndent(report, "", "  ")
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return err
		},
	}
	cmd.Flags().StringVar(&modelDir, "model-dir", "", "Directory searched for model artifacts")
	return cmd
}

// Report is the inspect output. Selected is the source serve would load, or
// empty when serve would train a fallback.
type Report struct {
	ModelDir   string                    `json:"model_dir"`
	Selected   string                    `json:"selected,omitempty"`
	Candidates []pestnet.CandidateReport `json:"candidates"`
}
