package model

// Intent is the classified category of a customer's inbound reply.
type Intent string

const (
	IntentInfoRequest      Intent = "Info Request"
	IntentTechnicalRequest Intent = "Technical Info Request"
	IntentSampleRequest    Intent = "Sample Request"
	IntentQuotationRequest Intent = "Quotation Request"
	IntentContractRequest  Intent = "Contract Request"
	IntentRepeatOrder      Intent = "Repeat Order"
	IntentShippingInquiry  Intent = "Shipping Inquiry"
	IntentDeclined         Intent = "Declined"
	IntentGeneralReply     Intent = "General Reply"
)

// aiIntentLabels maps the snake_case labels the model emits to Intent values.
var aiIntentLabels = map[string]Intent{
	"info_request":           IntentInfoRequest,
	"technical_info_request": IntentTechnicalRequest,
	"sample_request":         IntentSampleRequest,
	"quotation_request":      IntentQuotationRequest,
	"contract_request":       IntentContractRequest,
	"repeat_order":           IntentRepeatOrder,
	"shipping_inquiry":       IntentShippingInquiry,
	"declined":               IntentDeclined,
	"general_reply":          IntentGeneralReply,
}

// IntentFromLabel converts a model-emitted intent label to an Intent.
// Unknown labels map to IntentGeneralReply.
func IntentFromLabel(label string) Intent {
	if in, ok := aiIntentLabels[label]; ok {
		return in
	}
	return IntentGeneralReply
}

// IntentStage maps each intent to the pipeline stage it implies.
// IntentGeneralReply carries no stage signal and returns 0.
func IntentStage(in Intent) int {
	switch in {
	case IntentInfoRequest:
		return 2
	case IntentTechnicalRequest:
		return 3
	case IntentSampleRequest:
		return 4
	case IntentQuotationRequest:
		return 5
	case IntentContractRequest:
		return 6
	case IntentShippingInquiry:
		return 7
	case IntentRepeatOrder:
		return 9
	case IntentDeclined:
		return 10
	default:
		return 0
	}
}

// Engagement is a customer-level temperature label derived from reply intent.
type Engagement string

const (
	EngagementHot          Engagement = "HOT"
	EngagementWarm         Engagement = "WARM"
	EngagementInterested   Engagement = "INTERESTED"
	EngagementCold         Engagement = "COLD"
	EngagementUnresponsive Engagement = "UNRESPONSIVE"
)

// EngagementForIntent maps a reply intent to the engagement level it implies.
func EngagementForIntent(in Intent) Engagement {
	switch in {
	case IntentQuotationRequest, IntentSampleRequest, IntentContractRequest,
		IntentShippingInquiry, IntentRepeatOrder:
		return EngagementHot
	case IntentTechnicalRequest:
		return EngagementWarm
	case IntentDeclined:
		return EngagementCold
	default:
		return EngagementInterested
	}
}
