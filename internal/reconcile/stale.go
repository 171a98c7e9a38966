package reconcile

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/internal/store"
)

// FollowupItem is one overdue outreach email and the recommended next touch.
type FollowupItem struct {
	EmailID      string    `json:"email_id"`
	Company      string    `json:"company"`
	ContactEmail string    `json:"contact_email"`
	SentDate     time.Time `json:"sent_date"`
	CurrentStage int       `json:"current_stage"`
	NextStage    int       `json:"next_stage"`
	StageName    string    `json:"stage_name"`
	Attachments  []string  `json:"attachments,omitempty"`
	DelayDays    int       `json:"delay_days"`
	DaysOverdue  int       `json:"days_overdue"`
	NextAction   string    `json:"next_action"`
}

// FollowupQueue returns every sent-and-unanswered email whose per-stage
// follow-up delay has elapsed, most overdue first. Stages with a zero delay
// never stale; records without a sent date cannot be measured and are
// skipped.
func (r *Reconciler) FollowupQueue(ctx context.Context, now time.Time) ([]FollowupItem, error) {
	notReplied := false
	recs, err := r.store.ListTracking(ctx, store.TrackingFilter{
		Status:  model.StatusSent,
		Replied: &notReplied,
	})
	if err != nil {
		return nil, eris.Wrap(err, "reconcile: list tracking for followups")
	}

	var queue []FollowupItem
	for _, rec := range recs {
		if rec.SentDate.IsZero() {
			continue
		}
		delay := r.stages.FollowupDelay(rec.PipelineStage, r.cfg.FollowupDays)
		if delay == 0 {
			continue
		}
		elapsed := int(now.Sub(rec.SentDate).Hours() / 24)
		if elapsed < delay {
			continue
		}

		next := r.stages.Next(rec.PipelineStage)
		st, _ := r.stages.Get(next)
		queue = append(queue, FollowupItem{
			EmailID:      rec.EmailID,
			Company:      rec.CompanyName,
			ContactEmail: rec.ContactEmail,
			SentDate:     rec.SentDate,
			CurrentStage: rec.PipelineStage,
			NextStage:    next,
			StageName:    st.Name,
			Attachments:  st.Attachments,
			DelayDays:    delay,
			DaysOverdue:  elapsed - delay,
			NextAction: fmt.Sprintf("Follow-up needed: Stage %d (%s) - %dd delay exceeded",
				next, st.Name, delay),
		})
	}

	sort.Slice(queue, func(i, j int) bool {
		if queue[i].DaysOverdue != queue[j].DaysOverdue {
			return queue[i].DaysOverdue > queue[j].DaysOverdue
		}
		return queue[i].EmailID < queue[j].EmailID
	})
	return queue, nil
}

// MarkStale writes the follow-up advisory onto each overdue record. The
// next_action column is the only mutation; status stays sent so a late reply
// can still match.
func (r *Reconciler) MarkStale(ctx context.Context, now time.Time) (int, error) {
	queue, err := r.FollowupQueue(ctx, now)
	if err != nil {
		return 0, err
	}

	marked := 0
	for _, item := range queue {
		action := item.NextAction
		err := r.store.UpdateTracking(ctx, item.EmailID, model.TrackingUpdate{
			NextAction: &action,
		})
		if err != nil {
			zap.L().Error("reconcile: stale mark failed",
				zap.String("email_id", item.EmailID), zap.Error(err))
			continue
		}
		marked++
		zap.L().Info("reconcile: follow-up needed",
			zap.String("company", item.Company),
			zap.Int("current_stage", item.CurrentStage),
			zap.Int("next_stage", item.NextStage),
			zap.Int("days_overdue", item.DaysOverdue))
	}
	return marked, nil
}

// Snooze pushes a record's follow-up clock forward by the given number of
// days, measured from the later of its sent date and now.
func (r *Reconciler) Snooze(ctx context.Context, emailID string, days int) error {
	if days <= 0 {
		return eris.Errorf("reconcile: snooze days must be positive, got %d", days)
	}
	rec, err := r.store.GetTracking(ctx, emailID)
	if err != nil {
		return err
	}

	base := rec.SentDate
	if now := time.Now(); base.IsZero() || base.Before(now) {
		base = now
	}
	snoozed := base.AddDate(0, 0, days)
	return r.store.UpdateTracking(ctx, emailID, model.TrackingUpdate{
		SentDate: &snoozed,
	})
}

// Skip marks a record so the stale detector and reply matching both ignore
// it permanently.
func (r *Reconciler) Skip(ctx context.Context, emailID string) error {
	return r.store.UpdateTracking(ctx, emailID, model.TrackingUpdate{
		Status: model.StatusSkipped,
	})
}
