package main

import (
	"context"
	"os"
	"time"

	gosf "github.com/k-capehart/go-salesforce/v3"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/outreach-cli/internal/cache"
	"github.com/sells-group/outreach-cli/internal/classify"
	"github.com/sells-group/outreach-cli/internal/config"
	"github.com/sells-group/outreach-cli/internal/cost"
	"github.com/sells-group/outreach-cli/internal/mailbox"
	"github.com/sells-group/outreach-cli/internal/reconcile"
	"github.com/sells-group/outreach-cli/internal/resilience"
	"github.com/sells-group/outreach-cli/internal/stage"
	"github.com/sells-group/outreach-cli/internal/store"
	anthropicpkg "github.com/sells-group/outreach-cli/pkg/anthropic"
	sfpkg "github.com/sells-group/outreach-cli/pkg/salesforce"
)

// appEnv bundles the collaborators every reply-processing command needs.
type appEnv struct {
	Store      store.Store
	Stages     *stage.Table
	Orch       *classify.Orchestrator
	Reconciler *reconcile.Reconciler
	Reader     mailbox.Reader
	DLQ        *resilience.ReplyDLQ
	Costs      *cost.Tracker
	// Syncer is nil when Salesforce sync is disabled.
	Syncer *reconcile.AccountSyncer
}

func (e *appEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "xlsx":
		return store.NewXLSX(cfg.Store.Path)
	case "sqlite":
		return store.NewSQLite(cfg.Store.Path)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

func initStages() (*stage.Table, error) {
	if cfg.Stages.Path == "" {
		return stage.Default(), nil
	}
	return stage.Load(cfg.Stages.Path)
}

// initRates builds the pricing table, preferring configured rates over the
// built-in defaults per model.
func initRates() cost.Rates {
	rates := cost.DefaultRates()
	for modelID, p := range cfg.Pricing.Anthropic {
		rates.Anthropic[modelID] = cost.ModelRate{
			Input:         p.Input,
			Output:        p.Output,
			BatchDiscount: p.BatchDiscount,
			CacheWriteMul: p.CacheWriteMul,
			CacheReadMul:  p.CacheReadMul,
		}
	}
	return rates
}

// initOrchestrator builds the two-tier classifier. Without an API key the
// orchestrator runs keyword-only.
func initOrchestrator(stages *stage.Table, costs *cost.Tracker) *classify.Orchestrator {
	var engine *classify.Engine
	if cfg.Classify.UseAI && cfg.Anthropic.Key != "" {
		breakerCfg := resilience.DefaultCircuitBreakerConfig()
		breakerCfg.ShouldTrip = resilience.IsTransient
		engine = classify.NewEngine(
			anthropicpkg.NewClient(cfg.Anthropic.Key),
			cfg.Anthropic.SonnetModel,
			resilience.NewCircuitBreaker(breakerCfg),
		).WithCostTracker(costs)
	}
	return classify.NewOrchestrator(engine, stages, classify.OrchestratorConfig{
		BlendThreshold:      cfg.Classify.BlendThreshold,
		ComplexWordLimit:    cfg.Classify.ComplexWordLimit,
		SmallBatchThreshold: cfg.Classify.SmallBatchThreshold,
		NoBatch:             cfg.Classify.NoBatch,
	})
}

// initSalesforceSyncer returns nil when Salesforce sync is disabled.
func initSalesforceSyncer(stages *stage.Table) (*reconcile.AccountSyncer, error) {
	if !cfg.Salesforce.Enabled {
		return nil, nil
	}

	pemData, err := os.ReadFile(cfg.Salesforce.KeyPath)
	if err != nil {
		return nil, eris.Wrap(err, "read salesforce JWT private key")
	}

	sf, err := gosf.Init(gosf.Creds{
		Domain:         cfg.Salesforce.LoginURL,
		Username:       cfg.Salesforce.Username,
		ConsumerKey:    cfg.Salesforce.ClientID,
		ConsumerRSAPem: string(pemData),
	})
	if err != nil {
		return nil, eris.Wrap(err, "init salesforce")
	}

	client := sfpkg.NewClient(sf, sfpkg.WithRateLimit(cfg.Salesforce.RPS))
	return reconcile.NewAccountSyncer(client, stages), nil
}

// initApp wires the full reply-processing environment for the given run mode.
func initApp(ctx context.Context, mode string) (*appEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	stages, err := initStages()
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	syncer, err := initSalesforceSyncer(stages)
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	// A nil *AccountSyncer must stay a nil interface inside the reconciler.
	var sfSync reconcile.SalesforceSyncer
	if syncer != nil {
		sfSync = syncer
		zap.L().Info("salesforce sync enabled", zap.String("login_url", cfg.Salesforce.LoginURL))
	}

	costs := cost.NewTracker(cost.NewCalculator(initRates()))
	orch := initOrchestrator(stages, costs)
	dlq := resilience.NewReplyDLQ(cfg.Monitor.DLQMaxRetries)

	rec := reconcile.New(st, orch, stages, cache.New(0), sfSync, reconcile.Config{
		SpamFragments: spamFragments(),
		UseAI:         cfg.Classify.UseAI && cfg.Anthropic.Key != "",
		FollowupDays:  cfg.Monitor.FollowupDays,
		Since:         time.Duration(cfg.Mailbox.SinceHours) * time.Hour,
	}).WithDLQ(dlq)

	return &appEnv{
		Store:      st,
		Stages:     stages,
		Orch:       orch,
		Reconciler: rec,
		Reader:     mailbox.NewJSONLReader(cfg.Mailbox.Path),
		DLQ:        dlq,
		Costs:      costs,
		Syncer:     syncer,
	}, nil
}

// spamFragments merges the built-in junk sender list with configured extras.
func spamFragments() []string {
	if len(cfg.Monitor.SpamDomains) == 0 {
		return nil // reconcile falls back to its defaults
	}
	merged := make([]string, 0, len(reconcile.DefaultSpamFragments)+len(cfg.Monitor.SpamDomains))
	merged = append(merged, reconcile.DefaultSpamFragments...)
	merged = append(merged, cfg.Monitor.SpamDomains...)
	return merged
}
