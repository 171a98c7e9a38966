package classify

import (
	"fmt"
	"strings"

	"github.com/sells-group/outreach-cli/internal/model"
)

// intentSystemPrompt is the static portion of the intent analysis prompt.
// It is sent as a cached system block so repeated classifications in one run
// reuse the prompt cache.
const intentSystemPrompt = `You are an expert B2B sales intelligence assistant for a high-purity quartz mining and export company.

Analyze the customer email you are given and extract ALL intents, sentiment, urgency, and buying signals.

Instructions:
1. Primary Intent: the main request/question (choose from: info_request, technical_info_request, sample_request, quotation_request, contract_request, shipping_inquiry, repeat_order, declined)
2. Secondary Intents: all other intents detected, even if subtle
3. Urgency Level: high (ASAP, urgent, deadline <7 days), medium (within 2 weeks), low (no urgency)
4. Sentiment: positive (enthusiastic, interested), neutral, negative (frustrated, declining), mixed
5. Buying Signals: explicit signs of purchase intent ("budget approved", "ready to order", "need quote by Friday")
6. Objections: any concerns raised ("price too high", "not ready", "using competitor", "need approval")
7. Timeline Mentioned: any specific dates/timeframes mentioned
8. Decision Maker: confirmed (they explicitly state authority), suspected (title/role suggests it), unknown
9. Recommended Stage: based on the strongest intent and buying signals, what pipeline stage (1-10) should this customer be in?
10. Confidence Score: your confidence in this analysis (0.0-1.0)
11. Reasoning: brief explanation of your analysis (1-2 sentences)

Respond with a single JSON object and no other text:
{
  "primary_intent": "sample_request",
  "secondary_intents": ["pricing_inquiry"],
  "urgency_level": "high",
  "sentiment": "positive",
  "buying_signals": ["budget approved"],
  "objections": ["delivery timeline concern"],
  "timeline_mentioned": "need by March 15",
  "decision_maker_status": "confirmed",
  "recommended_stage": 5,
  "confidence_score": 0.92,
  "detected_keywords": {"sample": ["sample", "trial"], "pricing": ["price", "quote"]},
  "reasoning": "Customer explicitly requests sample and pricing with urgent deadline.",
  "next_best_action": "send_priority_sample_with_volume_pricing"
}

Examples:

Email: "Hi, we're interested in learning more about your high-purity quartz. Can you send a brochure?"
Analysis: {"primary_intent": "info_request", "secondary_intents": [], "urgency_level": "low", "sentiment": "neutral", "buying_signals": [], "objections": [], "timeline_mentioned": null, "decision_maker_status": "unknown", "recommended_stage": 2, "confidence_score": 0.95, "detected_keywords": {"info": ["interested", "brochure"]}, "reasoning": "Basic information request with no urgency or buying signals.", "next_best_action": "send_company_overview_brochure"}

Email: "We need a 5kg sample ASAP for our new semiconductor fab. Also, what's your pricing for 10-ton monthly orders? Our purchasing manager wants quotes from 2-3 suppliers before Q3."
Analysis: {"primary_intent": "sample_request", "secondary_intents": ["quotation_request", "supplier_evaluation"], "urgency_level": "high", "sentiment": "positive", "buying_signals": ["new semiconductor fab", "10-ton monthly orders", "purchasing manager involved"], "objections": ["competitor evaluation"], "timeline_mentioned": "ASAP for sample, Q3 for decision", "decision_maker_status": "confirmed", "recommended_stage": 5, "confidence_score": 0.96, "detected_keywords": {"sample": ["5kg sample", "ASAP"], "pricing": ["pricing", "quotes"]}, "reasoning": "Multi-intent with strong buying signals and confirmed decision maker. Skip directly to quotation stage.", "next_best_action": "send_priority_sample_with_volume_pricing"}

Email: "Thanks but we've decided to go with another supplier. Please remove us from your mailing list."
Analysis: {"primary_intent": "declined", "secondary_intents": ["unsubscribe"], "urgency_level": "low", "sentiment": "negative", "buying_signals": [], "objections": ["chose competitor"], "timeline_mentioned": null, "decision_maker_status": "unknown", "recommended_stage": 10, "confidence_score": 0.98, "detected_keywords": {"decline": ["decided to go with another", "remove from mailing list"]}, "reasoning": "Clear rejection with competitor selection. Move to closed/lost stage.", "next_best_action": "mark_as_lost_and_unsubscribe"}

Email: "Can you provide the technical specs and ICP analysis report for your HPQ-99.99 grade? We need SiO2 purity data."
Analysis: {"primary_intent": "technical_info_request", "secondary_intents": [], "urgency_level": "medium", "sentiment": "neutral", "buying_signals": ["specific product grade interest"], "objections": [], "timeline_mentioned": null, "decision_maker_status": "suspected", "recommended_stage": 3, "confidence_score": 0.90, "detected_keywords": {"technical": ["technical specs", "ICP analysis", "SiO2 purity"]}, "reasoning": "Technical evaluation phase, likely technical buyer. Provide detailed specs.", "next_best_action": "send_technical_data_sheet_and_icp_report"}`

// buildIntentUserPrompt assembles the per-email portion: customer context,
// the tail of the thread history, subject, and body.
func buildIntentUserPrompt(body, subject string, currentStage int, history []string, cctx *model.CustomerContext) string {
	var b strings.Builder

	if cctx != nil {
		company := cctx.CompanyName
		if company == "" {
			company = "Unknown"
		}
		industry := cctx.Industry
		if industry == "" {
			industry = "Unknown"
		}
		fmt.Fprintf(&b, "Customer Context:\n- Company: %s\n- Industry: %s\n- Current Stage: %d (1=Lead, 4=Sample, 5=Quote, 10=Closed)\n\n",
			company, industry, currentStage)
	}

	if len(history) > 0 {
		b.WriteString("Previous Emails in Thread:\n")
		tail := history
		if len(tail) > 3 {
			tail = tail[len(tail)-3:]
		}
		for i, subj := range tail {
			if len(subj) > 100 {
				subj = subj[:100]
			}
			fmt.Fprintf(&b, "%d. %s\n", i+1, subj)
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "Email Subject: %s\n\nEmail Body:\n%s\n\nReturn ONLY the JSON object.", subject, body)
	return b.String()
}
