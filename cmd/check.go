package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var checkJSON bool

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Run a single reply check against the mailbox",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initApp(ctx, "check")
		if err != nil {
			return err
		}
		defer env.Close()

		result, err := env.Reconciler.CheckReplies(ctx, env.Reader)
		if err != nil {
			return eris.Wrap(err, "check replies")
		}

		zap.L().Info("reply check complete",
			zap.Int("found", result.Found),
			zap.Int("updated", result.Updated),
			zap.Int("spam", result.Spam),
			zap.Int("unmatched", result.Unmatched),
			zap.Int("errors", result.Errors),
		)

		if checkJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		}
		return nil
	},
}

func init() {
	checkCmd.Flags().BoolVar(&checkJSON, "json", false, "print the full result as JSON")
	rootCmd.AddCommand(checkCmd)
}
