// Package reconcile matches inbound replies to open tracking records and
// advances customers through the sales pipeline.
package reconcile

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/outreach-cli/internal/cache"
	"github.com/sells-group/outreach-cli/internal/classify"
	"github.com/sells-group/outreach-cli/internal/mailbox"
	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/internal/resilience"
	"github.com/sells-group/outreach-cli/internal/stage"
	"github.com/sells-group/outreach-cli/internal/store"
)

// DefaultSpamFragments lists sender fragments that are never real customer
// replies. Matching is substring, so both full domains and local-part
// prefixes work.
var DefaultSpamFragments = []string{
	"@accounts.google.com", "@indeed.com", "@pinterest.com",
	"@discover.pinterest.com", "@inspire.pinterest.com",
	"@email.shopify.com", "@shutterstock.com", "@coursera.org",
	"@discord.com", "@malwarebytes.com", "@dropbox.com",
	"@englishgrammar.org", "@360alumni.com",
	"mailer-daemon@", "noreply@", "no-reply@",
}

const summaryBodyLimit = 150

// ReplySync carries the reply facts that ride along with a pipeline position
// write: the classified intent and reply date land on the Account, the
// subject and summary become a Task.
type ReplySync struct {
	Intent    model.Intent
	ReplyDate time.Time
	Subject   string
	Summary   string
}

// SalesforceSyncer pushes a customer's pipeline position and reply activity
// to the CRM after a successful local update. Sync failures are logged,
// never fatal.
type SalesforceSyncer interface {
	SyncReply(ctx context.Context, c model.Customer, rs ReplySync) error
}

// Config tunes a Reconciler.
type Config struct {
	SpamFragments []string `yaml:"spam_fragments" mapstructure:"spam_fragments"`
	// UseAI gates the LLM escalation path; keyword classification always runs.
	UseAI bool `yaml:"use_ai" mapstructure:"use_ai"`
	// FollowupDays is the fallback delay for stages without their own.
	FollowupDays int `yaml:"followup_days" mapstructure:"followup_days"`
	// Since bounds how far back reply fetches look. Zero means unbounded.
	Since time.Duration `yaml:"since" mapstructure:"since"`
}

func (c *Config) applyDefaults() {
	if c.SpamFragments == nil {
		c.SpamFragments = DefaultSpamFragments
	}
	if c.FollowupDays <= 0 {
		c.FollowupDays = 3
	}
}

// Reconciler drives the reply check: spam filter, tracking match,
// classification, tracking + customer writeback, optional CRM sync.
type Reconciler struct {
	store     store.Store
	orch      *classify.Orchestrator
	stages    *stage.Table
	customers *cache.CustomerCache
	sf        SalesforceSyncer
	dlq       *resilience.ReplyDLQ
	cfg       Config
}

// New creates a Reconciler. sf may be nil to skip CRM sync.
func New(st store.Store, orch *classify.Orchestrator, stages *stage.Table,
	customers *cache.CustomerCache, sf SalesforceSyncer, cfg Config) *Reconciler {
	cfg.applyDefaults()
	return &Reconciler{
		store:     st,
		orch:      orch,
		stages:    stages,
		customers: customers,
		sf:        sf,
		cfg:       cfg,
	}
}

// WithDLQ attaches a dead-letter queue: replies whose writeback fails are
// retried on later cycles instead of being lost.
func (r *Reconciler) WithDLQ(dlq *resilience.ReplyDLQ) *Reconciler {
	r.dlq = dlq
	return r
}

// ReplyOutcome records what happened to one inbound reply.
type ReplyOutcome struct {
	From          string       `json:"from"`
	EmailID       string       `json:"email_id,omitempty"`
	Company       string       `json:"company,omitempty"`
	Intent        model.Intent `json:"intent,omitempty"`
	CurrentStage  int          `json:"current_stage,omitempty"`
	DetectedStage int          `json:"detected_stage,omitempty"`
	NextAction    string       `json:"next_action,omitempty"`
	Updated       bool         `json:"updated"`
	SkipReason    string       `json:"skip_reason,omitempty"`
}

// Result aggregates one reply-check run.
type Result struct {
	Found     int            `json:"found"`
	Updated   int            `json:"updated"`
	Spam      int            `json:"spam"`
	Unmatched int            `json:"unmatched"`
	Errors    int            `json:"errors"`
	Outcomes  []ReplyOutcome `json:"outcomes"`
}

// CheckReplies fetches a batch from the mailbox, folds in any dead-lettered
// replies awaiting retry, and reconciles the lot.
func (r *Reconciler) CheckReplies(ctx context.Context, reader mailbox.Reader) (*Result, error) {
	replies, err := reader.Fetch(ctx, r.cfg.Since)
	if err != nil {
		return nil, eris.Wrap(err, "reconcile: fetch replies")
	}
	if r.dlq != nil {
		if pending := r.dlq.Pending(); len(pending) > 0 {
			zap.L().Info("reconcile: retrying dead-lettered replies", zap.Int("count", len(pending)))
			replies = append(replies, pending...)
		}
		for _, e := range r.dlq.PruneDead() {
			zap.L().Error("reconcile: giving up on reply after repeated failures",
				zap.String("from", e.Reply.From),
				zap.String("last_error", e.Error))
		}
	}
	return r.ProcessReplies(ctx, replies)
}

type workItem struct {
	reply    model.InboundReply
	addr     string
	tracking *model.TrackingRecord
	customer *model.Customer
	outcome  *ReplyOutcome
}

// ProcessReplies runs the reconciliation step over a reply batch. Individual
// store failures are counted and logged but never abort the batch: a flaky
// row must not cost the rest of the run.
func (r *Reconciler) ProcessReplies(ctx context.Context, replies []model.InboundReply) (*Result, error) {
	res := &Result{Found: len(replies)}
	if len(replies) == 0 {
		return res, nil
	}

	// Match pass: filter spam, find the open tracking record per sender.
	res.Outcomes = make([]ReplyOutcome, len(replies))
	var items []*workItem
	for i, reply := range replies {
		addr := mailbox.ParseAddress(reply.From)
		oc := &res.Outcomes[i]
		oc.From = addr

		if r.isSpam(addr) {
			res.Spam++
			oc.SkipReason = "spam"
			continue
		}

		rec, err := r.store.FindOpenTrackingByEmail(ctx, addr)
		if err != nil {
			res.Errors++
			oc.SkipReason = "store_error"
			if r.dlq != nil {
				r.dlq.Push(reply, err)
			}
			zap.L().Error("reconcile: tracking lookup failed",
				zap.String("from", addr), zap.Error(err))
			continue
		}
		if rec == nil {
			res.Unmatched++
			oc.SkipReason = "no_open_record"
			if r.dlq != nil {
				r.dlq.Resolve(reply)
			}
			zap.L().Debug("reconcile: no open tracking record", zap.String("from", addr))
			continue
		}

		oc.EmailID = rec.EmailID
		oc.Company = rec.CompanyName
		oc.CurrentStage = rec.PipelineStage
		items = append(items, &workItem{
			reply:    reply,
			addr:     addr,
			tracking: rec,
			customer: r.customerFor(ctx, rec.CustomerID, addr),
			outcome:  oc,
		})
	}
	if len(items) == 0 {
		return res, nil
	}

	// Classification pass: the orchestrator decides per reply whether the
	// keyword label suffices or the LLM weighs in, batching as needed.
	reqs := make([]classify.AnalyzeRequest, len(items))
	for i, item := range items {
		reqs[i] = classify.AnalyzeRequest{
			Body:         item.reply.Body,
			Subject:      item.reply.Subject,
			CurrentStage: item.tracking.PipelineStage,
		}
		if item.customer != nil {
			reqs[i].Customer = &model.CustomerContext{
				CompanyName: item.customer.CompanyName,
				Industry:    item.customer.Industry,
			}
		}
	}
	classifications := r.orch.ClassifyBatch(ctx, reqs, r.cfg.UseAI)

	// Writeback pass.
	for i, item := range items {
		if err := r.apply(ctx, item, classifications[i]); err != nil {
			res.Errors++
			item.outcome.SkipReason = "store_error"
			if r.dlq != nil {
				r.dlq.Push(item.reply, err)
			}
			zap.L().Error("reconcile: writeback failed",
				zap.String("email_id", item.tracking.EmailID), zap.Error(err))
			continue
		}
		if r.dlq != nil {
			r.dlq.Resolve(item.reply)
		}
		res.Updated++
	}
	return res, nil
}

// apply writes the tracking update and advances the customer for one matched
// reply.
func (r *Reconciler) apply(ctx context.Context, item *workItem, cls model.ReplyClassification) error {
	rec := item.tracking

	detected := cls.Stage
	if detected == 0 {
		detected = classify.DetectStage(r.stages, item.reply.Body, item.reply.Subject, rec.PipelineStage)
	}
	nextAction := r.nextAction(cls.Intent, detected)

	replyDate := item.reply.Date
	if replyDate.IsZero() {
		replyDate = time.Now()
	}
	replied := true
	summary := fmt.Sprintf("[%s] %s", cls.Intent, truncate(item.reply.Body, summaryBodyLimit))

	// Transient store hiccups get a short retry before the reply is
	// dead-lettered for the next cycle.
	err := resilience.Do(ctx, trackingWriteRetry(), func(ctx context.Context) error {
		return r.store.UpdateTracking(ctx, rec.EmailID, model.TrackingUpdate{
			Status:        model.StatusReplied,
			Replied:       &replied,
			ReplyDate:     &replyDate,
			ReplySummary:  &summary,
			DetectedStage: &detected,
			NextAction:    &nextAction,
			AIConfidence:  &cls.Confidence,
		})
	})
	if err != nil {
		return err
	}

	item.outcome.Updated = true
	item.outcome.Intent = cls.Intent
	item.outcome.DetectedStage = detected
	item.outcome.NextAction = nextAction

	zap.L().Info("reconcile: reply processed",
		zap.String("from", item.addr),
		zap.String("company", rec.CompanyName),
		zap.String("intent", string(cls.Intent)),
		zap.String("source", string(cls.Source)),
		zap.Int("current_stage", rec.PipelineStage),
		zap.Int("detected_stage", detected))

	r.advanceCustomer(ctx, item, cls.Intent, detected, ReplySync{
		Intent:    cls.Intent,
		ReplyDate: replyDate,
		Subject:   item.reply.Subject,
		Summary:   summary,
	})
	return nil
}

// advanceCustomer moves the customer's pipeline position and engagement
// level. Failures here are warnings: the tracking record already carries the
// reply.
func (r *Reconciler) advanceCustomer(ctx context.Context, item *workItem, intent model.Intent, stageNum int, rs ReplySync) {
	cust := item.customer
	if cust == nil {
		return
	}

	engagement := model.EngagementForIntent(intent)
	err := r.store.UpdateCustomer(ctx, cust.ID, model.CustomerUpdate{
		PipelineStage: &stageNum,
		Engagement:    engagement,
	})
	if err != nil {
		zap.L().Warn("reconcile: customer update failed",
			zap.String("customer_id", cust.ID), zap.Error(err))
		return
	}
	r.customers.Invalidate()

	zap.L().Info("reconcile: customer advanced",
		zap.String("customer_id", cust.ID),
		zap.String("engagement", string(engagement)),
		zap.Int("stage", stageNum))

	if r.sf == nil {
		return
	}
	synced := *cust
	synced.PipelineStage = stageNum
	synced.Engagement = engagement
	if err := r.sf.SyncReply(ctx, synced, rs); err != nil {
		zap.L().Warn("reconcile: salesforce sync failed",
			zap.String("customer_id", cust.ID), zap.Error(err))
	}
}

// nextAction renders the advisory the sales team acts on.
func (r *Reconciler) nextAction(intent model.Intent, stageNum int) string {
	if intent == model.IntentDeclined {
		return "Customer declined - move to Lost/Inactive"
	}
	st, ok := r.stages.Get(stageNum)
	if ok && len(st.Attachments) > 0 {
		return fmt.Sprintf("Send Stage %d (%s) with %s",
			stageNum, st.Name, strings.Join(st.Attachments, ", "))
	}
	return fmt.Sprintf("Follow up - Stage %d", stageNum)
}

// customerFor resolves the customer for a matched reply, by ID first and
// contact email second, loading the roster snapshot on demand.
func (r *Reconciler) customerFor(ctx context.Context, customerID, addr string) *model.Customer {
	if _, ok := r.customers.Get(); !ok {
		roster, err := r.store.ListCustomers(ctx)
		if err != nil {
			zap.L().Warn("reconcile: customer roster load failed", zap.Error(err))
			return nil
		}
		r.customers.Set(roster)
	}
	if customerID != "" {
		if c, ok := r.customers.ByID(customerID); ok {
			return c
		}
	}
	if c, ok := r.customers.ByEmail(addr); ok {
		return c
	}
	return nil
}

func trackingWriteRetry() resilience.RetryConfig {
	return resilience.RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: 200 * time.Millisecond,
		MaxBackoff:     2 * time.Second,
		OnRetry:        resilience.RetryLogger("store", "update_tracking"),
	}
}

func (r *Reconciler) isSpam(addr string) bool {
	for _, frag := range r.cfg.SpamFragments {
		if strings.Contains(addr, frag) {
			return true
		}
	}
	return false
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
