package main

import (
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/outreach-cli/internal/monitoring"
)

var (
	monitorInterval int
	monitorOnce     bool
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Continuously check replies and flag stale outreach",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initApp(ctx, "monitor")
		if err != nil {
			return err
		}
		defer env.Close()

		summary := monitoring.NewSummaryCollector()
		activity := monitoring.NewActivityLog(cfg.Monitor.ActivityLogPath)

		interval := time.Duration(cfg.Monitor.IntervalMins) * time.Minute
		if monitorInterval > 0 {
			interval = time.Duration(monitorInterval) * time.Minute
		}

		runCycle := func() {
			cycleStart := time.Now()

			result, err := env.Reconciler.CheckReplies(ctx, env.Reader)
			if err != nil {
				summary.RecordError()
				zap.L().Error("reply check failed", zap.Error(err))
			} else {
				summary.RecordCheck(result.Found, result.Updated, result.Errors)
				activity.Record("check_replies", map[string]any{
					"found":     result.Found,
					"updated":   result.Updated,
					"spam":      result.Spam,
					"unmatched": result.Unmatched,
				})
			}

			marked, err := env.Reconciler.MarkStale(ctx, time.Now())
			if err != nil {
				summary.RecordError()
				zap.L().Error("stale scan failed", zap.Error(err))
			} else {
				summary.RecordStale(marked)
				if marked > 0 {
					activity.Record("mark_stale", map[string]any{"marked": marked})
				}
			}

			s := summary.Summary()
			_, _, spend := env.Costs.Totals()
			zap.L().Info("monitor cycle complete",
				zap.Duration("took", time.Since(cycleStart)),
				zap.Int("checks", s.Checks),
				zap.Int("replies_found", s.RepliesFound),
				zap.Int("updated", s.Updated),
				zap.Int("stale_found", s.StaleFound),
				zap.Int("errors", s.Errors),
				zap.Int("dlq_pending", env.DLQ.Len()),
				zap.Float64("llm_spend_usd", spend.Cost),
			)
		}

		zap.L().Info("monitor started", zap.Duration("interval", interval))
		runCycle()
		if monitorOnce {
			return nil
		}

		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				zap.L().Info("monitor stopping")
				return nil
			case <-ticker.C:
				runCycle()
			}
		}
	},
}

func init() {
	monitorCmd.Flags().IntVar(&monitorInterval, "interval", 0, "minutes between cycles (default from config)")
	monitorCmd.Flags().BoolVar(&monitorOnce, "once", false, "run one cycle and exit")
	rootCmd.AddCommand(monitorCmd)
}
