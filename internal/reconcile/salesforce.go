package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/internal/resilience"
	"github.com/sells-group/outreach-cli/internal/stage"
	"github.com/sells-group/outreach-cli/pkg/salesforce"
)

// AccountSyncer pushes a customer's pipeline position onto the matching
// Salesforce Account. Customers without a stored Salesforce ID are looked up
// by company name once; a customer with no Account at all is skipped, not
// treated as an error.
type AccountSyncer struct {
	client  salesforce.Client
	stages  *stage.Table
	breaker *resilience.CircuitBreaker
}

// NewAccountSyncer wraps a Salesforce client for pipeline position writes.
// A circuit breaker guards the CRM so a Salesforce outage cannot stall a
// monitor cycle.
func NewAccountSyncer(client salesforce.Client, stages *stage.Table) *AccountSyncer {
	cfg := resilience.DefaultCircuitBreakerConfig()
	cfg.ShouldTrip = resilience.IsTransient
	return &AccountSyncer{
		client:  client,
		stages:  stages,
		breaker: resilience.NewCircuitBreaker(cfg),
	}
}

// SyncReply writes the customer's stage, engagement, classified intent, and
// reply date to its Salesforce Account, then records the reply as a completed
// Task on the Account. A failed Task insert is logged but does not fail the
// sync; the Account update is the write that matters.
func (s *AccountSyncer) SyncReply(ctx context.Context, c model.Customer, rs ReplySync) error {
	accountID, err := s.resolveAccount(ctx, c)
	if err != nil || accountID == "" {
		return err
	}

	stageName := ""
	if st, ok := s.stages.Get(c.PipelineStage); ok {
		stageName = st.Name
	}
	fields := salesforce.StageFields(c.PipelineStage, stageName, string(c.Engagement), string(rs.Intent), rs.ReplyDate)

	err = s.breaker.Execute(ctx, func(ctx context.Context) error {
		if err := salesforce.UpdateAccount(ctx, s.client, accountID, fields); err != nil {
			return eris.Wrap(err, "reconcile: sync customer to salesforce")
		}
		return nil
	})
	if err != nil {
		return err
	}

	subject := fmt.Sprintf("Reply received: %s", rs.Subject)
	if _, err := salesforce.LogReplyTask(ctx, s.client, accountID, subject, rs.Summary); err != nil {
		zap.L().Warn("reconcile: salesforce task insert failed",
			zap.String("account_id", accountID), zap.Error(err))
	}
	return nil
}

// SyncAll flushes the pipeline positions of a whole customer roster through
// the Collections API. Customers without a resolvable Account are skipped.
// Per-record rejections are logged and counted, not fatal.
func (s *AccountSyncer) SyncAll(ctx context.Context, customers []model.Customer) (int, error) {
	var updates []salesforce.AccountUpdate
	for _, c := range customers {
		accountID, err := s.resolveAccount(ctx, c)
		if err != nil {
			return 0, err
		}
		if accountID == "" {
			continue
		}
		stageName := ""
		if st, ok := s.stages.Get(c.PipelineStage); ok {
			stageName = st.Name
		}
		updates = append(updates, salesforce.AccountUpdate{
			ID:     accountID,
			Fields: salesforce.StageFields(c.PipelineStage, stageName, string(c.Engagement), "", time.Time{}),
		})
	}
	if len(updates) == 0 {
		return 0, nil
	}

	var results []salesforce.CollectionResult
	err := s.breaker.Execute(ctx, func(ctx context.Context) error {
		var err error
		results, err = salesforce.BulkUpdateAccounts(ctx, s.client, updates)
		return err
	})
	if err != nil {
		return 0, eris.Wrap(err, "reconcile: bulk stage sync")
	}

	synced := 0
	for _, res := range results {
		if res.Success {
			synced++
			continue
		}
		zap.L().Warn("reconcile: account rejected in bulk sync",
			zap.String("account_id", res.ID),
			zap.Strings("errors", res.Errors))
	}
	return synced, nil
}

// resolveAccount returns the Salesforce Account ID for a customer, falling
// back to a company-name lookup when no ID is stored. An empty return with a
// nil error means the customer has no Account and should be skipped.
func (s *AccountSyncer) resolveAccount(ctx context.Context, c model.Customer) (string, error) {
	if c.SalesforceID != "" {
		return c.SalesforceID, nil
	}
	acct, err := salesforce.FindAccountByName(ctx, s.client, c.CompanyName)
	if err != nil {
		return "", eris.Wrap(err, "reconcile: resolve salesforce account")
	}
	if acct == nil {
		zap.L().Debug("no salesforce account for customer",
			zap.String("customer_id", c.ID),
			zap.String("company", c.CompanyName),
		)
		return "", nil
	}
	return acct.ID, nil
}
