package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"postcode-api/internal/api"
	"postcode-api/internal/app"
	"postcode-api/internal/ingest"
	"postcode-api/internal/localdb/file"
	"postcode-api/internal/logger"
	"postcode-api/internal/migrate"
	"postcode-api/internal/utils"
	"postcode-api/internal/version"
)

// ErrNotFound is returned by lookup when the postcode is not in the data.
var ErrNotFound = errors.New("postcode not known")

func migrateHeadersCmd(opts *options) *cobra.Command {
	var workers int
	cmd := &cobra.Command{
		Use:   "migrate-headers",
		Short: `Rewrite legacy "pc","ca" partition headers to "incode","value"`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			res, err := migrate.MigrateHeaders(cmd.Context(), cfg.DataDir, workers)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "migrated %d, already migrated %d\n", res.Migrated, res.Skipped)
			return nil
		},
	}
	cmd.Flags().IntVar(&workers, "workers", 0, "parallel files (default number of CPUs)")
	return cmd
}

func importCmd(opts *options) *cobra.Command {
	var driver, dsn string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Load the partition tree into the SQL store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			if driver == "" {
				driver = cfg.DBDriver
			}
			if dsn == "" {
				dsn = cfg.DBDSN
			}
			db, err := utils.OpenDB(driver, dsn, 1, 1)
			if err != nil {
				return err
			}
			defer db.Close()
			if err := migrate.EnsureSchema(cmd.Context(), db); err != nil {
				return err
			}
			res, err := ingest.ImportTree(cmd.Context(), db, cfg.DataDir)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d rows in %d partitions across %d area types\n",
				res.Rows, res.Partitions, res.AreaTypes)
			return nil
		},
	}
	cmd.Flags().StringVar(&driver, "driver", "", "postgres or sqlite3 (default DB_DRIVER)")
	cmd.Flags().StringVar(&dsn, "dsn", "", "database DSN (default DB_DSN, then PG_* for postgres)")
	return cmd
}

func areaTypesCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "area-types",
		Short: "List the area types in the partition tree",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			names, err := file.DiscoverAreaTypes(cfg.DataDir)
			if err != nil {
				return err
			}
			for _, n := range names {
				fmt.Fprintln(cmd.OutOrStdout(), n)
			}
			return nil
		},
	}
}

func lookupCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "lookup <area-type> <postcode>",
		Short: "Resolve one postcode through the configured data source",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			outcode, incode, err := api.ParsePostcode(args[1])
			if err != nil {
				return fmt.Errorf("%q: %w", args[1], err)
			}
			a, err := app.Build(cmd.Context(), cfg, logger.L())
			if err != nil {
				return err
			}
			defer a.Close()

			value, found, err := a.Engine.Lookup(cmd.Context(), args[0], outcode, incode)
			if err != nil {
				return err
			}
			if !found || value == "" {
				return fmt.Errorf("%s %s: %w", outcode, incode, ErrNotFound)
			}
			fmt.Fprintln(cmd.OutOrStdout(), value)
			return nil
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the build commit",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.Commit)
		},
	}
}
