package main

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/outreach-cli/internal/monitoring"
)

var stagesCounts bool

var stagesCmd = &cobra.Command{
	Use:   "stages",
	Short: "Show the pipeline stage table",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		stages, err := initStages()
		if err != nil {
			return err
		}

		var snapshot *monitoring.PipelineSnapshot
		if stagesCounts {
			env, err := initApp(ctx, "check")
			if err != nil {
				return err
			}
			defer env.Close()

			snapshot, err = monitoring.NewCollector(env.Store).Collect(ctx)
			if err != nil {
				return eris.Wrap(err, "collect pipeline snapshot")
			}
		}

		for _, num := range stages.Numbers() {
			s, _ := stages.Get(num)
			delay := "never"
			if d := stages.FollowupDelay(num, cfg.Monitor.FollowupDays); d > 0 {
				delay = fmt.Sprintf("%dd", d)
			}
			line := fmt.Sprintf("%2d  %-22s followup %-6s", num, s.Name, delay)
			if len(s.Attachments) > 0 {
				line += "  [" + strings.Join(s.Attachments, ", ") + "]"
			}
			if snapshot != nil {
				line += fmt.Sprintf("  customers: %d", snapshot.StageCounts[num])
			}
			fmt.Println(line)
		}

		if snapshot != nil {
			fmt.Printf("\ntotal customers: %d  tracked emails: %d  replied: %d (%.1f%%)\n",
				snapshot.TotalCustomers, snapshot.TotalTracked, snapshot.Replied,
				snapshot.ReplyRate*100)
		}
		return nil
	},
}

func init() {
	stagesCmd.Flags().BoolVar(&stagesCounts, "counts", false, "include per-stage customer counts")
	rootCmd.AddCommand(stagesCmd)
}
