package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Push every customer's pipeline position to Salesforce in bulk",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initApp(ctx, "sync")
		if err != nil {
			return err
		}
		defer env.Close()

		if env.Syncer == nil {
			return eris.New("salesforce sync is disabled; set salesforce.enabled")
		}

		customers, err := env.Store.ListCustomers(ctx)
		if err != nil {
			return eris.Wrap(err, "list customers")
		}

		synced, err := env.Syncer.SyncAll(ctx, customers)
		if err != nil {
			return eris.Wrap(err, "bulk salesforce sync")
		}

		zap.L().Info("bulk salesforce sync complete",
			zap.Int("customers", len(customers)),
			zap.Int("synced", synced),
		)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(syncCmd)
}
