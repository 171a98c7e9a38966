package classify

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/sells-group/outreach-cli/internal/cost"
	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/internal/resilience"
	"github.com/sells-group/outreach-cli/pkg/anthropic"
)

// intentTemperature keeps classification output consistent across runs.
const intentTemperature = 0.1

const intentMaxTokens = 2000

// AnalyzeRequest carries one reply into the intent engine.
type AnalyzeRequest struct {
	Body         string
	Subject      string
	CurrentStage int
	History      []string // prior subjects in the thread, oldest first
	Customer     *model.CustomerContext
}

// Engine runs LLM intent analysis over inbound replies. Analyze never returns
// an error: any failure (no client, open breaker, API error, unparsable
// output) degrades to FallbackIntentResult so callers always get a usable
// record.
type Engine struct {
	client  anthropic.Client
	model   string
	breaker *resilience.CircuitBreaker
	costs   *cost.Tracker

	mu    sync.Mutex
	usage model.TokenUsage
}

// NewEngine creates an intent engine. breaker may be nil to disable circuit
// breaking; client may be nil, in which case every Analyze call falls back.
func NewEngine(client anthropic.Client, modelName string, breaker *resilience.CircuitBreaker) *Engine {
	return &Engine{client: client, model: modelName, breaker: breaker}
}

// WithCostTracker attaches a spend tracker; every call's token counts are
// priced and accumulated there, split by direct vs batch.
func (e *Engine) WithCostTracker(t *cost.Tracker) *Engine {
	e.costs = t
	return e
}

// Available reports whether the engine has a client to call.
func (e *Engine) Available() bool {
	return e != nil && e.client != nil
}

// Model returns the model ID the engine classifies with.
func (e *Engine) Model() string {
	return e.model
}

// Usage returns accumulated token usage across all Analyze calls.
func (e *Engine) Usage() model.TokenUsage {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.usage
}

// Prime warms the prompt cache with the classification system blocks so a
// concurrent fan-out of Analyze calls reads the cache instead of writing it
// N times. Failures are logged and swallowed: priming is an optimization,
// never a gate.
func (e *Engine) Prime(ctx context.Context) {
	if !e.Available() {
		return
	}
	temp := intentTemperature
	resp, err := anthropic.PrimerRequest(ctx, e.client, anthropic.MessageRequest{
		Model:       e.model,
		MaxTokens:   1,
		System:      anthropic.BuildCachedSystemBlocks(intentSystemPrompt),
		Temperature: &temp,
		Messages: []anthropic.Message{
			{Role: "user", Content: "ok"},
		},
	})
	if err != nil {
		zap.L().Warn("classify: cache primer failed", zap.Error(err))
		return
	}
	e.recordUsage(resp.Usage, false)
}

// Analyze classifies one reply. On any failure it returns the fallback
// record, which carries no stage recommendation and zero confidence.
func (e *Engine) Analyze(ctx context.Context, req AnalyzeRequest) model.IntentResult {
	result, _ := e.analyze(ctx, req)
	return result
}

// analyze is Analyze plus an ok flag so the orchestrator can tell a failed
// call apart from a genuine low-confidence analysis.
func (e *Engine) analyze(ctx context.Context, req AnalyzeRequest) (model.IntentResult, bool) {
	if !e.Available() {
		zap.L().Warn("classify: intent engine has no client, using fallback")
		return FallbackIntentResult(), false
	}

	msgReq := e.buildRequest(req)

	var resp *anthropic.MessageResponse
	var err error
	if e.breaker != nil {
		resp, err = resilience.ExecuteVal(ctx, e.breaker, func(ctx context.Context) (*anthropic.MessageResponse, error) {
			return e.client.CreateMessage(ctx, msgReq)
		})
	} else {
		resp, err = e.client.CreateMessage(ctx, msgReq)
	}
	if err != nil {
		zap.L().Error("classify: intent analysis failed", zap.Error(err))
		return FallbackIntentResult(), false
	}

	e.recordUsage(resp.Usage, false)

	result, ok := parseIntentResult(extractText(resp))
	if !ok {
		zap.L().Warn("classify: unparsable intent response, using fallback")
		return FallbackIntentResult(), false
	}

	zap.L().Info("classify: intent analysis",
		zap.String("primary_intent", result.PrimaryIntent),
		zap.Float64("confidence", result.ConfidenceScore),
		zap.Int("recommended_stage", result.RecommendedStage),
	)
	return result, true
}

// BuildBatchItem builds a batch request entry for one reply, for use with the
// message batch API when many replies need analysis in one run.
func (e *Engine) BuildBatchItem(customID string, req AnalyzeRequest) anthropic.BatchRequestItem {
	return anthropic.BatchRequestItem{
		CustomID: customID,
		Params:   e.buildRequest(req),
	}
}

// ParseBatchResult converts one batch response back into an IntentResult,
// falling back on a nil or unparsable response. The ok flag is false when
// the fallback was used.
func (e *Engine) ParseBatchResult(resp *anthropic.MessageResponse) (model.IntentResult, bool) {
	if resp == nil {
		return FallbackIntentResult(), false
	}
	e.recordUsage(resp.Usage, true)
	result, ok := parseIntentResult(extractText(resp))
	if !ok {
		return FallbackIntentResult(), false
	}
	return result, true
}

func (e *Engine) buildRequest(req AnalyzeRequest) anthropic.MessageRequest {
	temp := intentTemperature
	return anthropic.MessageRequest{
		Model:       e.model,
		MaxTokens:   intentMaxTokens,
		System:      anthropic.BuildCachedSystemBlocks(intentSystemPrompt),
		Temperature: &temp,
		Messages: []anthropic.Message{
			{Role: "user", Content: buildIntentUserPrompt(req.Body, req.Subject, req.CurrentStage, req.History, req.Customer)},
		},
	}
}

func (e *Engine) recordUsage(u anthropic.TokenUsage, batch bool) {
	delta := model.TokenUsage{
		InputTokens:         int(u.InputTokens),
		OutputTokens:        int(u.OutputTokens),
		CacheCreationTokens: int(u.CacheCreationInputTokens),
		CacheReadTokens:     int(u.CacheReadInputTokens),
	}

	e.mu.Lock()
	e.usage.Add(delta)
	e.mu.Unlock()

	if e.costs != nil {
		e.costs.Record(e.model, batch, delta)
	}
}

// FallbackIntentResult is the documented safe result for a failed analysis.
// It carries no stage recommendation so failed calls never advance a customer.
func FallbackIntentResult() model.IntentResult {
	return model.IntentResult{
		PrimaryIntent:       "general_reply",
		SecondaryIntents:    []string{},
		UrgencyLevel:        string(model.UrgencyMedium),
		Sentiment:           string(model.SentimentNeutral),
		BuyingSignals:       []string{},
		Objections:          []string{},
		DecisionMakerStatus: "unknown",
		RecommendedStage:    0,
		ConfidenceScore:     0.0,
		DetectedKeywords:    map[string][]string{},
		Reasoning:           "AI analysis unavailable, manual review required",
		NextBestAction:      "manual_review",
	}
}

// parseIntentResult extracts and validates the JSON object in the model's
// response text. primary_intent, confidence_score and recommended_stage must
// be present; every other field is defaulted when missing.
func parseIntentResult(text string) (model.IntentResult, bool) {
	text = cleanJSON(text)

	var raw map[string]json.RawMessage
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return model.IntentResult{}, false
	}
	for _, field := range []string{"primary_intent", "confidence_score", "recommended_stage"} {
		if _, ok := raw[field]; !ok {
			zap.L().Warn("classify: intent response missing field", zap.String("field", field))
			return model.IntentResult{}, false
		}
	}

	var result model.IntentResult
	if err := json.Unmarshal([]byte(text), &result); err != nil {
		return model.IntentResult{}, false
	}

	if result.SecondaryIntents == nil {
		result.SecondaryIntents = []string{}
	}
	if result.UrgencyLevel == "" {
		result.UrgencyLevel = string(model.UrgencyMedium)
	}
	if result.Sentiment == "" {
		result.Sentiment = string(model.SentimentNeutral)
	}
	if result.BuyingSignals == nil {
		result.BuyingSignals = []string{}
	}
	if result.Objections == nil {
		result.Objections = []string{}
	}
	if result.DecisionMakerStatus == "" {
		result.DecisionMakerStatus = "unknown"
	}
	if result.DetectedKeywords == nil {
		result.DetectedKeywords = map[string][]string{}
	}
	if result.Reasoning == "" {
		result.Reasoning = "AI analysis completed"
	}
	if result.NextBestAction == "" {
		result.NextBestAction = "review_and_respond"
	}

	return result, true
}

// extractText concatenates all text content blocks from a message response.
func extractText(resp *anthropic.MessageResponse) string {
	if resp == nil {
		return ""
	}
	var parts []string
	for _, block := range resp.Content {
		if block.Text != "" {
			parts = append(parts, block.Text)
		}
	}
	return strings.Join(parts, "\n")
}

// cleanJSON attempts to extract a JSON object from text that may contain
// markdown code fences or other wrapping.
func cleanJSON(text string) string {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```json") {
		text = strings.TrimPrefix(text, "```json")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	} else if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		text = text[start : end+1]
	}

	return strings.TrimSpace(text)
}
