package migrate

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gardenlab/pestnet-go/internal/conf"
	"github.com/gardenlab/pestnet-go/internal/datastore"
)

type flags struct {
	sqlitePath string
	mysqlDSN   string
	batchSize  int
}

// Command copies detection history from a SQLite file into MySQL.
func Command(settings *conf.Settings) *cobra.Command {
	var f flags
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Copy detection history from SQLite to MySQL",
		Long: "Copy every stored detection from a SQLite database into MySQL in batches. " +
			"Detections already present in the target are skipped, so the command can be rerun.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			src, dst := f.settings(settings)
			if dst.Database.DSN == "" {
				return fmt.Errorf("--mysql-dsn is required")
			}

			from, err := open(src)
			if err != nil {
				return fmt.Errorf("open source: %w", err)
			}
			defer from.Close()
			to, err := open(dst)
			if err != nil {
				return fmt.Errorf("open target: %w", err)
			}
			defer to.Close()

			stats, err := datastore.Transfer(cmd.Context(), from, to, f.batchSize)
			if err != nil {
				return err
			}
			out, err := json.MarshalIndent(stats, "", "  ")
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return err
		},
	}

	cmd.Flags().StringVar(&f.sqlitePath, "sqlite-path", "", "Source SQLite file (default database.path)")
	cmd.Flags().StringVar(&f.mysqlDSN, "mysql-dsn", "", "Target MySQL DSN (default database.dsn)")
	cmd.Flags().IntVar(&f.batchSize, "batch-size", datastore.DefaultTransferBatchSize, "Rows per batch")
	return cmd
}

// settings derives the source and target database settings from flags,
// falling back to the loaded configuration.
func (f *flags) settings(base *conf.Settings) (src, dst *conf.Settings) {
	src = &conf.Settings{Debug: base.Debug}
	src.Database.Type = "sqlite"
	src.Database.Path = base.Database.Path
	if f.sqlitePath != "" {
		src.Database.Path = f.sqlitePath
	}

	dst = &conf.Settings{Debug: base.Debug}
	dst.Database.Type = "mysql"
	dst.Database.DSN = f.mysqlDSN
	if dst.Database.DSN == "" && base.Database.Type == "mysql" {
		dst.Database.DSN = base.Database.DSN
	}
	return src, dst
}

func open(settings *conf.Settings) (datastore.Interface, error) {
	store, err := datastore.New(settings)
	if err != nil {
		return nil, err
	}
	if err := store.Open(); err != nil {
		return nil, err
	}
	return store, nil
}
