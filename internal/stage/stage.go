// Package stage holds the pipeline stage table: the ten ordered sales-funnel
// phases, their document attachments, trigger keywords and follow-up delays.
// The table is loaded once at startup and read-only afterwards.
package stage

import (
	"sort"

	"github.com/rotisserie/eris"
)

// Stage is one immutable pipeline stage configuration record.
type Stage struct {
	Number          int      `json:"-" yaml:"-"`
	Name            string   `json:"name" yaml:"name"`
	Attachments     []string `json:"attachments" yaml:"attachments"`
	TriggerKeywords []string `json:"trigger_keywords" yaml:"trigger_keywords"`
	// FollowupDays of 0 means the stage never goes stale (terminal stages).
	// A negative value means "unset"; lookups fall back to the global default.
	FollowupDays int `json:"followup_days" yaml:"followup_days"`
}

// Table is the full pipeline stage configuration keyed by stage number.
type Table struct {
	stages map[int]Stage
	max    int
}

// NewTable builds a Table from a stage map and validates it.
func NewTable(stages map[int]Stage) (*Table, error) {
	if len(stages) == 0 {
		return nil, eris.New("stage: empty table")
	}
	max := 0
	for num, s := range stages {
		if num < 1 {
			return nil, eris.Errorf("stage: invalid stage number %d", num)
		}
		if s.Name == "" {
			return nil, eris.Errorf("stage: stage %d has no name", num)
		}
		if num > max {
			max = num
		}
	}
	// Copy with Number set so Get results are self-describing.
	out := make(map[int]Stage, len(stages))
	for num, s := range stages {
		s.Number = num
		out[num] = s
	}
	return &Table{stages: out, max: max}, nil
}

// Default returns the built-in ten-stage table used when no external
// configuration file is supplied.
func Default() *Table {
	t, err := NewTable(defaultStages())
	if err != nil {
		// The built-in table is static; a validation failure is a programming error.
		panic(err)
	}
	return t
}

func defaultStages() map[int]Stage {
	return map[int]Stage{
		1: {
			Name:            "Prospecting",
			Attachments:     []string{"01_Brochure.pdf"},
			TriggerKeywords: []string{"cold outreach", "introduction", "first contact"},
			FollowupDays:    5,
		},
		2: {
			Name:            "Initial Contact",
			Attachments:     []string{"01_Brochure.pdf", "02_Technical_Data_Sheet.pdf"},
			TriggerKeywords: []string{"interested", "more info", "specifications"},
			FollowupDays:    4,
		},
		3: {
			Name:            "Qualification",
			Attachments:     []string{"02_Technical_Data_Sheet.pdf", "04_Detailed_Brochure.pdf"},
			TriggerKeywords: []string{"purity", "SiO2", "boron", "specifications", "ICP-MS"},
			FollowupDays:    3,
		},
		4: {
			Name:            "Sample & Testing",
			Attachments:     []string{"02_Technical_Data_Sheet.pdf", "Sample_Request_Form.pdf"},
			TriggerKeywords: []string{"sample", "trial", "test", "2-5kg", "lab"},
			FollowupDays:    5,
		},
		5: {
			Name:            "Negotiation",
			Attachments:     []string{"03_Quotation.pdf"},
			TriggerKeywords: []string{"price", "quote", "quotation", "cost", "FOB", "CIF", "volume"},
			FollowupDays:    2,
		},
		6: {
			Name:            "Contract",
			Attachments:     []string{"Contract_Template.pdf", "03_Quotation.pdf"},
			TriggerKeywords: []string{"contract", "agreement", "terms", "payment"},
			FollowupDays:    3,
		},
		7: {
			Name:            "Fulfillment",
			Attachments:     []string{"COA.pdf", "Shipping_Docs.pdf"},
			TriggerKeywords: []string{"delivery", "shipping", "invoice", "COA"},
			FollowupDays:    3,
		},
		8: {
			Name:            "Follow-Up & Satisfaction",
			Attachments:     []string{"Customer_Satisfaction_Survey.pdf"},
			TriggerKeywords: []string{"feedback", "satisfied", "review", "quality", "reorder", "experience"},
			FollowupDays:    7,
		},
		9: {
			Name:            "Repeat Customer",
			Attachments:     []string{"VIP_Discount_Program.pdf", "Bulk_Order_Benefits.pdf"},
			TriggerKeywords: []string{"repeat", "again", "more", "container", "bulk", "regular order"},
			FollowupDays:    7,
		},
		10: {
			Name:            "Lost/Inactive",
			Attachments:     []string{},
			TriggerKeywords: []string{"not interested", "pass", "decline", "later", "no thanks", "unsubscribe"},
			FollowupDays:    0,
		},
	}
}

// Get returns the stage for a number. ok is false when the number is not in
// the table.
func (t *Table) Get(num int) (Stage, bool) {
	s, ok := t.stages[num]
	return s, ok
}

// Max returns the highest stage number in the table.
func (t *Table) Max() int {
	return t.max
}

// Clamp forces a stage number into the valid 1..Max range. Numbers below 1
// clamp to 1; numbers above Max clamp to Max. Guards against hallucinated
// stage numbers from the LLM collaborator.
func (t *Table) Clamp(num int) int {
	if num < 1 {
		return 1
	}
	if num > t.max {
		return t.max
	}
	return num
}

// Next returns the stage after current, capped at Max.
func (t *Table) Next(current int) int {
	next := current + 1
	if next > t.max {
		next = t.max
	}
	return next
}

// FollowupDelay returns the follow-up delay in days for a stage. A stage with
// an unset (negative) delay, or a number outside the table, falls back to
// defaultDays. Zero is a real value meaning "never stales".
func (t *Table) FollowupDelay(num, defaultDays int) int {
	s, ok := t.stages[num]
	if !ok || s.FollowupDays < 0 {
		return defaultDays
	}
	return s.FollowupDays
}

// Numbers returns all stage numbers in ascending order.
func (t *Table) Numbers() []int {
	nums := make([]int, 0, len(t.stages))
	for n := range t.stages {
		nums = append(nums, n)
	}
	sort.Ints(nums)
	return nums
}
