// Package classify turns inbound reply text into a ReplyClassification.
// It layers a free, deterministic keyword classifier under an optional
// LLM intent engine; the orchestrator in smart.go decides when the
// LLM is worth its cost.
package classify

import (
	"regexp"
	"strings"

	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/internal/stage"
)

// pattern is either a plain case-insensitive substring or a word-boundary
// regex. Short tokens ("cif", "test", "lab") use the regex form to avoid
// false positives inside longer words like "specifications" or "collaborate".
type pattern struct {
	substr string
	re     *regexp.Regexp
}

func (p pattern) matches(text string) bool {
	if p.re != nil {
		return p.re.MatchString(text)
	}
	return strings.Contains(text, p.substr)
}

func sub(s string) pattern { return pattern{substr: s} }

func word(s string) pattern {
	return pattern{re: regexp.MustCompile(`\b` + regexp.QuoteMeta(s) + `\b`)}
}

type rule struct {
	intent   model.Intent
	stage    int
	patterns []pattern
}

// replyRules is the ordered rule table. Order is the tie-break: the decline
// rule runs first so "not interested" beats "interested", then rules are
// ordered roughly by signal strength down to the broad Info Request catch-all.
// The first rule with any matching pattern wins; there is no cross-rule scoring.
var replyRules = []rule{
	{model.IntentDeclined, 10, []pattern{
		sub("not interested"), sub("unsubscribe"), sub("remove me"),
		sub("stop email"), sub("no thank"), sub("no thanks"),
		sub("pass on"), word("decline"),
	}},
	{model.IntentQuotationRequest, 5, []pattern{
		sub("price"), sub("quote"), sub("quotation"), word("cost"),
		word("fob"), word("cif"), sub("pricing"),
	}},
	{model.IntentSampleRequest, 4, []pattern{
		sub("sample"), sub("trial"), word("test"), word("lab"),
		sub("2-5kg"), sub("testing"),
	}},
	{model.IntentTechnicalRequest, 3, []pattern{
		sub("specification"), sub("technical"), sub("data sheet"),
		sub("purity"), word("sio2"), sub("boron"), sub("analysis"), word("icp"),
	}},
	{model.IntentContractRequest, 6, []pattern{
		sub("contract"), sub("agreement"), word("terms"), sub("payment"),
	}},
	{model.IntentRepeatOrder, 9, []pattern{
		sub("repeat"), sub("reorder"), sub("bulk order"), sub("container"),
	}},
	{model.IntentShippingInquiry, 7, []pattern{
		sub("delivery"), sub("shipping"), sub("invoice"), word("coa"),
	}},
	{model.IntentInfoRequest, 2, []pattern{
		sub("interested"), sub("more info"), sub("tell me more"), sub("brochure"),
	}},
}

// Keyword classifies reply text against the ordered rule table. The returned
// stage is 0 when no rule matches (the General Reply catch-all). Pure and
// deterministic: identical input always yields identical output.
func Keyword(text string) (model.Intent, int) {
	text = strings.ToLower(text)
	for _, r := range replyRules {
		for _, p := range r.patterns {
			if p.matches(text) {
				return r.intent, r.stage
			}
		}
	}
	return model.IntentGeneralReply, 0
}

// MatchCount reports how many distinct rules have at least one matching
// pattern. A count above one marks the text as ambiguous, which is one of
// the triggers for escalating to the LLM intent engine.
func MatchCount(text string) int {
	text = strings.ToLower(text)
	count := 0
	for _, r := range replyRules {
		for _, p := range r.patterns {
			if p.matches(text) {
				count++
				break
			}
		}
	}
	return count
}

// DetectStage scans every stage's trigger keywords against body and subject
// and picks the stage with the most matches. Stages are scanned in descending
// number order so a tie goes to the more advanced stage. With zero matches it
// assumes incremental progress and returns min(current+1, max): the monitor
// runs on an interval of hours, and a flat default would stall leads that are
// in fact moving.
//
// This deliberately differs from Keyword: Keyword is a fast first-match
// labeler for single replies, DetectStage ranks all stages for the scheduled
// monitor. The two can disagree on the same input.
func DetectStage(tbl *stage.Table, body, subject string, current int) int {
	text := strings.ToLower(body + " " + subject)

	best := 0
	bestCount := 0
	nums := tbl.Numbers()
	for i := len(nums) - 1; i >= 0; i-- {
		st, ok := tbl.Get(nums[i])
		if !ok {
			continue
		}
		count := 0
		for _, kw := range st.TriggerKeywords {
			if kw != "" && strings.Contains(text, strings.ToLower(kw)) {
				count++
			}
		}
		if count > bestCount {
			best = st.Number
			bestCount = count
		}
	}

	if bestCount == 0 {
		return tbl.Next(current)
	}
	return best
}
