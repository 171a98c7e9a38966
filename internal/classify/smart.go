package classify

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/internal/stage"
	"github.com/sells-group/outreach-cli/pkg/anthropic"
)

// maxDirectConcurrency limits concurrent CreateMessage calls in no-batch mode.
const maxDirectConcurrency = 10

// Keyword-only confidences: a specific rule match is a strong lexical signal,
// the General Reply catch-all is barely a signal at all.
const (
	confidenceKeywordMatch    = 0.7
	confidenceKeywordCatchAll = 0.3
)

// OrchestratorConfig controls when the orchestrator escalates to the LLM and
// when it trusts the LLM's answer over the keyword classifier's.
type OrchestratorConfig struct {
	// BlendThreshold is the minimum LLM confidence required to override the
	// keyword result. Default: 0.75.
	BlendThreshold float64

	// ComplexWordLimit is the body word count above which a reply is
	// considered complex enough to need LLM analysis. Default: 100.
	ComplexWordLimit int

	// SmallBatchThreshold is the reply count at or below which batch runs
	// use direct messages instead of the batch API. Default: 8.
	SmallBatchThreshold int

	// NoBatch forces direct messages even for large runs.
	NoBatch bool
}

func (c *OrchestratorConfig) applyDefaults() {
	if c.BlendThreshold <= 0 {
		c.BlendThreshold = 0.75
	}
	if c.ComplexWordLimit <= 0 {
		c.ComplexWordLimit = 100
	}
	if c.SmallBatchThreshold <= 0 {
		c.SmallBatchThreshold = 8
	}
}

// Orchestrator is the two-tier smart classifier. The keyword classifier is
// free and handles the majority of formulaic replies; the LLM engine is
// reserved for ambiguous, unlabeled, or long replies, and a low-confidence
// LLM opinion never overrides a clear lexical match.
type Orchestrator struct {
	engine *Engine
	stages *stage.Table
	cfg    OrchestratorConfig
}

// NewOrchestrator creates an orchestrator. engine may be nil; classification
// then runs keyword-only.
func NewOrchestrator(engine *Engine, stages *stage.Table, cfg OrchestratorConfig) *Orchestrator {
	cfg.applyDefaults()
	return &Orchestrator{engine: engine, stages: stages, cfg: cfg}
}

// Engine returns the LLM engine, nil when running keyword-only.
func (o *Orchestrator) Engine() *Engine {
	return o.engine
}

// ClassifySmart classifies one reply. It always computes the keyword result
// first, escalates to the LLM only when the keyword signal is weak, and never
// fails: any LLM-path error degrades to the keyword result.
func (o *Orchestrator) ClassifySmart(ctx context.Context, req AnalyzeRequest, useAI bool) model.ReplyClassification {
	kw := o.keywordClassification(req.Body)

	if !o.needsAI(req.Body, kw) || !useAI || !o.engine.Available() {
		return kw
	}

	result, ok := o.engine.analyze(ctx, req)
	return o.blend(kw, result, ok)
}

// ClassifyBatch classifies many replies in one run. Replies the keyword tier
// fully resolves never reach the LLM; the rest go through direct concurrent
// messages for small runs or the batch API for large ones. The returned slice
// is index-aligned with reqs.
func (o *Orchestrator) ClassifyBatch(ctx context.Context, reqs []AnalyzeRequest, useAI bool) []model.ReplyClassification {
	out := make([]model.ReplyClassification, len(reqs))

	var needed []int
	for i, req := range reqs {
		out[i] = o.keywordClassification(req.Body)
		if useAI && o.engine.Available() && o.needsAI(req.Body, out[i]) {
			needed = append(needed, i)
		}
	}
	if len(needed) == 0 {
		return out
	}

	zap.L().Info("classify: escalating replies to intent engine",
		zap.Int("total", len(reqs)),
		zap.Int("escalated", len(needed)),
	)

	if o.cfg.NoBatch || len(needed) <= o.cfg.SmallBatchThreshold {
		o.classifyDirect(ctx, reqs, needed, out)
		return out
	}
	if err := o.classifyViaBatch(ctx, reqs, needed, out); err != nil {
		zap.L().Error("classify: batch run failed, keeping keyword results", zap.Error(err))
		for _, i := range needed {
			out[i].Source = model.SourceKeywordFallback
		}
	}
	return out
}

func (o *Orchestrator) classifyDirect(ctx context.Context, reqs []AnalyzeRequest, needed []int, out []model.ReplyClassification) {
	if len(needed) > 1 {
		o.engine.Prime(ctx)
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(maxDirectConcurrency)

	var mu sync.Mutex
	for _, i := range needed {
		g.Go(func() error {
			result, ok := o.engine.analyze(gCtx, reqs[i])
			blended := o.blend(out[i], result, ok)
			mu.Lock()
			out[i] = blended
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
}

func (o *Orchestrator) classifyViaBatch(ctx context.Context, reqs []AnalyzeRequest, needed []int, out []model.ReplyClassification) error {
	items := make([]anthropic.BatchRequestItem, 0, len(needed))
	for _, i := range needed {
		items = append(items, o.engine.BuildBatchItem(fmt.Sprintf("intent-%d", i), reqs[i]))
	}

	batch, err := o.engine.client.CreateBatch(ctx, anthropic.BatchRequest{Requests: items})
	if err != nil {
		return eris.Wrap(err, "classify: create batch")
	}
	batch, err = anthropic.PollBatch(ctx, o.engine.client, batch.ID)
	if err != nil {
		return eris.Wrap(err, "classify: poll batch")
	}
	iter, err := o.engine.client.GetBatchResults(ctx, batch.ID)
	if err != nil {
		return eris.Wrap(err, "classify: get batch results")
	}
	results, err := anthropic.CollectBatchResults(iter)
	if err != nil {
		return eris.Wrap(err, "classify: collect batch results")
	}

	for _, i := range needed {
		result, ok := o.engine.ParseBatchResult(results[fmt.Sprintf("intent-%d", i)])
		out[i] = o.blend(out[i], result, ok)
	}
	return nil
}

// needsAI reports whether the keyword tier's answer is weak enough to spend
// an LLM call: an ambiguous multi-rule match, the no-signal catch-all, or a
// long body likely to carry nuance a rule table misses.
func (o *Orchestrator) needsAI(body string, kw model.ReplyClassification) bool {
	if MatchCount(body) > 1 {
		return true
	}
	if kw.Intent == model.IntentGeneralReply {
		return true
	}
	return len(strings.Fields(body)) > o.cfg.ComplexWordLimit
}

func (o *Orchestrator) keywordClassification(body string) model.ReplyClassification {
	intent, stageNum := Keyword(body)
	confidence := confidenceKeywordMatch
	if intent == model.IntentGeneralReply {
		confidence = confidenceKeywordCatchAll
	}
	return model.ReplyClassification{
		Intent:     intent,
		Stage:      stageNum,
		Confidence: confidence,
		Urgency:    model.UrgencyMedium,
		Sentiment:  model.SentimentNeutral,
		Source:     model.SourceKeyword,
	}
}

// blend merges an LLM result into the keyword result. A confident engine
// answer wins outright; a low-confidence answer keeps the keyword label and
// stage but still surfaces the engine's urgency, sentiment, and signal
// metadata for human review. A failed engine call keeps the keyword result
// untouched except for the degraded source marker.
func (o *Orchestrator) blend(kw model.ReplyClassification, result model.IntentResult, ok bool) model.ReplyClassification {
	if !ok {
		kw.Source = model.SourceKeywordFallback
		return kw
	}

	merged := model.ReplyClassification{
		Urgency:          model.Urgency(result.UrgencyLevel),
		Sentiment:        model.Sentiment(result.Sentiment),
		SecondaryIntents: result.SecondaryIntents,
		BuyingSignals:    result.BuyingSignals,
		Objections:       result.Objections,
		Reasoning:        result.Reasoning,
	}

	if result.ConfidenceScore >= o.cfg.BlendThreshold {
		merged.Intent = model.IntentFromLabel(result.PrimaryIntent)
		merged.Stage = 0
		if result.RecommendedStage > 0 {
			merged.Stage = o.stages.Clamp(result.RecommendedStage)
		}
		merged.Confidence = result.ConfidenceScore
		merged.Source = model.SourceAI
		return merged
	}

	merged.Intent = kw.Intent
	merged.Stage = kw.Stage
	merged.Confidence = kw.Confidence
	merged.Source = model.SourceKeyword
	return merged
}
