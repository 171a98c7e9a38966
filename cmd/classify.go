package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/sells-group/outreach-cli/internal/classify"
	"github.com/sells-group/outreach-cli/internal/cost"
)

var (
	classifySubject string
	classifyBody    string
	classifyStage   int
	classifyNoAI    bool
)

var classifyCmd = &cobra.Command{
	Use:   "classify",
	Short: "Classify a single reply body from the command line",
	Long:  "Runs the two-tier classifier on ad-hoc text. Useful for tuning keyword rules and spot-checking the LLM escalation path.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		stages, err := initStages()
		if err != nil {
			return err
		}
		orch := initOrchestrator(stages, cost.NewTracker(cost.NewCalculator(initRates())))

		useAI := cfg.Classify.UseAI && cfg.Anthropic.Key != "" && !classifyNoAI
		result := orch.ClassifySmart(ctx, classify.AnalyzeRequest{
			Subject:      classifySubject,
			Body:         classifyBody,
			CurrentStage: classifyStage,
		}, useAI)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

func init() {
	classifyCmd.Flags().StringVar(&classifySubject, "subject", "", "reply subject line")
	classifyCmd.Flags().StringVar(&classifyBody, "body", "", "reply body (required)")
	classifyCmd.Flags().IntVar(&classifyStage, "stage", 1, "customer's current pipeline stage")
	classifyCmd.Flags().BoolVar(&classifyNoAI, "no-ai", false, "keyword tier only")
	_ = classifyCmd.MarkFlagRequired("body")
	rootCmd.AddCommand(classifyCmd)
}
