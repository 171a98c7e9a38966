package model

// Urgency grades how quickly a reply needs attention.
type Urgency string

const (
	UrgencyHigh   Urgency = "high"
	UrgencyMedium Urgency = "medium"
	UrgencyLow    Urgency = "low"
)

// Sentiment is the overall tone of a reply.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNeutral  Sentiment = "neutral"
	SentimentNegative Sentiment = "negative"
	SentimentMixed    Sentiment = "mixed"
)

// Source records which classifier produced the final result.
type Source string

const (
	SourceKeyword         Source = "keyword"
	SourceAI              Source = "ai"
	SourceKeywordFallback Source = "keyword_fallback"
)

// ReplyClassification is the normalized result of classifying one inbound
// reply. Computed fresh per reply and folded into a TrackingRecord; never
// persisted on its own.
type ReplyClassification struct {
	Intent           Intent    `json:"intent"`
	Stage            int       `json:"recommended_stage"` // 0 = no recommendation, needs review
	Confidence       float64   `json:"confidence"`
	Urgency          Urgency   `json:"urgency"`
	Sentiment        Sentiment `json:"sentiment"`
	SecondaryIntents []string  `json:"secondary_intents,omitempty"`
	BuyingSignals    []string  `json:"buying_signals,omitempty"`
	Objections       []string  `json:"objections,omitempty"`
	Source           Source    `json:"source"`
	Reasoning        string    `json:"reasoning,omitempty"`
}

// IntentResult is the structured output of the LLM intent engine. Field names
// follow the JSON contract in the analysis prompt. Everything beyond
// PrimaryIntent, ConfidenceScore and RecommendedStage is advisory; consumers
// must tolerate missing or extra fields.
type IntentResult struct {
	PrimaryIntent       string              `json:"primary_intent"`
	SecondaryIntents    []string            `json:"secondary_intents"`
	UrgencyLevel        string              `json:"urgency_level"`
	Sentiment           string              `json:"sentiment"`
	BuyingSignals       []string            `json:"buying_signals"`
	Objections          []string            `json:"objections"`
	TimelineMentioned   string              `json:"timeline_mentioned"`
	DecisionMakerStatus string              `json:"decision_maker_status"`
	RecommendedStage    int                 `json:"recommended_stage"` // 0 = none
	ConfidenceScore     float64             `json:"confidence_score"`
	DetectedKeywords    map[string][]string `json:"detected_keywords"`
	Reasoning           string              `json:"reasoning"`
	NextBestAction      string              `json:"next_best_action"`
}

// CustomerContext carries optional customer metadata into the LLM prompt.
type CustomerContext struct {
	CompanyName string
	Industry    string
}
