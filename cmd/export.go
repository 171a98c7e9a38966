package main

import (
	"encoding/csv"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/internal/store"
)

var (
	exportOut     string
	exportStatus  string
	exportReplied bool
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export tracking records to CSV",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initApp(ctx, "check")
		if err != nil {
			return err
		}
		defer env.Close()

		filter := store.TrackingFilter{Limit: 100000}
		if exportStatus != "" {
			filter.Status = model.EmailStatus(exportStatus)
		}
		if exportReplied {
			replied := true
			filter.Replied = &replied
		}

		records, err := env.Store.ListTracking(ctx, filter)
		if err != nil {
			return eris.Wrap(err, "list tracking")
		}

		out := os.Stdout
		if exportOut != "" {
			f, err := os.Create(exportOut)
			if err != nil {
				return eris.Wrap(err, "create export file")
			}
			defer f.Close()
			out = f
		}

		w := csv.NewWriter(out)
		header := []string{
			"email_id", "customer_id", "company_name", "contact_email",
			"subject", "sent_date", "pipeline_stage", "email_type",
			"attachments", "status", "replied", "reply_date",
			"reply_content_summary", "detected_stage", "next_action",
			"ai_confidence", "reviewed_by",
		}
		if err := w.Write(header); err != nil {
			return eris.Wrap(err, "write csv header")
		}

		for _, r := range records {
			row := []string{
				r.EmailID, r.CustomerID, r.CompanyName, r.ContactEmail,
				r.Subject, formatDate(r.SentDate), strconv.Itoa(r.PipelineStage),
				r.EmailType, strings.Join(r.Attachments, "; "), string(r.Status),
				strconv.FormatBool(r.Replied), formatDate(r.ReplyDate),
				r.ReplySummary, strconv.Itoa(r.DetectedStage), r.NextAction,
				strconv.FormatFloat(r.AIConfidence, 'f', 2, 64), r.ReviewedBy,
			}
			if err := w.Write(row); err != nil {
				return eris.Wrap(err, "write csv row")
			}
		}
		w.Flush()
		if err := w.Error(); err != nil {
			return eris.Wrap(err, "flush csv")
		}

		zap.L().Info("export complete",
			zap.Int("records", len(records)),
			zap.String("out", exportOut),
		)
		return nil
	},
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02 15:04:05")
}

func init() {
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "output file (default stdout)")
	exportCmd.Flags().StringVar(&exportStatus, "status", "", "filter by status (sent, replied, skipped)")
	exportCmd.Flags().BoolVar(&exportReplied, "replied", false, "only replied records")
	rootCmd.AddCommand(exportCmd)
}
