package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	staleMark   bool
	staleJSON   bool
	snoozeDays  int
	snoozeEmail string
	skipEmail   string
)

var staleCmd = &cobra.Command{
	Use:   "stale",
	Short: "List outreach emails overdue for follow-up",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initApp(ctx, "check")
		if err != nil {
			return err
		}
		defer env.Close()

		if snoozeEmail != "" {
			if err := env.Reconciler.Snooze(ctx, snoozeEmail, snoozeDays); err != nil {
				return eris.Wrap(err, "snooze")
			}
			zap.L().Info("follow-up snoozed",
				zap.String("email_id", snoozeEmail),
				zap.Int("days", snoozeDays),
			)
			return nil
		}

		if skipEmail != "" {
			if err := env.Reconciler.Skip(ctx, skipEmail); err != nil {
				return eris.Wrap(err, "skip")
			}
			zap.L().Info("follow-up skipped", zap.String("email_id", skipEmail))
			return nil
		}

		if staleMark {
			marked, err := env.Reconciler.MarkStale(ctx, time.Now())
			if err != nil {
				return eris.Wrap(err, "mark stale")
			}
			zap.L().Info("stale records marked", zap.Int("marked", marked))
			return nil
		}

		items, err := env.Reconciler.FollowupQueue(ctx, time.Now())
		if err != nil {
			return eris.Wrap(err, "followup queue")
		}

		if staleJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(items)
		}

		if len(items) == 0 {
			fmt.Println("no follow-ups due")
			return nil
		}
		for _, it := range items {
			fmt.Printf("%-24s %-30s stage %d -> %d (%s)  %dd overdue\n",
				it.EmailID, it.Company, it.CurrentStage, it.NextStage, it.StageName, it.DaysOverdue)
		}
		return nil
	},
}

func init() {
	staleCmd.Flags().BoolVar(&staleMark, "mark", false, "write follow-up advisories to the store")
	staleCmd.Flags().BoolVar(&staleJSON, "json", false, "print the queue as JSON")
	staleCmd.Flags().StringVar(&snoozeEmail, "snooze", "", "email ID to push forward")
	staleCmd.Flags().IntVar(&snoozeDays, "days", 7, "days to snooze by")
	staleCmd.Flags().StringVar(&skipEmail, "skip", "", "email ID to drop from follow-up")
	rootCmd.AddCommand(staleCmd)
}
