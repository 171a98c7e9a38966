package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/outreach-cli/internal/store"
)

var migrateFrom string

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Import a tracking workbook into Postgres",
	Long:  "Bulk-loads tracking records and customers from the shared spreadsheet into a Postgres deployment using COPY.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("migrate"); err != nil {
			return err
		}

		src, err := store.NewXLSX(migrateFrom)
		if err != nil {
			return eris.Wrap(err, "open source workbook")
		}
		defer src.Close()

		dst, err := store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
		if err != nil {
			return eris.Wrap(err, "connect postgres")
		}
		defer dst.Close()

		if err := dst.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate schema")
		}

		records, err := src.ListTracking(ctx, store.TrackingFilter{})
		if err != nil {
			return eris.Wrap(err, "read tracking sheet")
		}
		customers, err := src.ListCustomers(ctx)
		if err != nil {
			return eris.Wrap(err, "read customer sheet")
		}

		nCustomers, err := dst.ImportCustomers(ctx, customers)
		if err != nil {
			return eris.Wrap(err, "import customers")
		}
		nTracking, err := dst.ImportTracking(ctx, records)
		if err != nil {
			return eris.Wrap(err, "import tracking")
		}

		zap.L().Info("migration complete",
			zap.String("from", migrateFrom),
			zap.Int64("customers", nCustomers),
			zap.Int64("tracking", nTracking),
		)
		return nil
	},
}

func init() {
	migrateCmd.Flags().StringVar(&migrateFrom, "from", "", "source workbook path (required)")
	_ = migrateCmd.MarkFlagRequired("from")
	rootCmd.AddCommand(migrateCmd)
}
