package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// EmailStatus represents the lifecycle state of an outreach email.
type EmailStatus string

const (
	StatusQueued     EmailStatus = "queued"
	StatusSent       EmailStatus = "sent"
	StatusReplied    EmailStatus = "replied"
	StatusFollowedUp EmailStatus = "followed_up"
	StatusSkipped    EmailStatus = "skipped"
)

// Open reports whether the status still accepts a reply match. Reconciliation
// only updates open records; replied/followed_up/skipped are terminal.
func (s EmailStatus) Open() bool {
	return s == StatusSent || s == StatusQueued
}

// NewEmailID generates a tracking record ID in the EMAIL<unix>_<hex6> form
// the sales workbook has always used.
func NewEmailID() string {
	suffix := strings.ReplaceAll(uuid.New().String(), "-", "")[:6]
	return fmt.Sprintf("EMAIL%d_%s", time.Now().Unix(), suffix)
}

// TrackingRecord is the persisted record of one outreach email and its reply
// lifecycle. One row per email sent or queued.
type TrackingRecord struct {
	EmailID       string      `json:"email_id"`
	CustomerID    string      `json:"customer_id"`
	CompanyName   string      `json:"company_name"`
	ContactEmail  string      `json:"contact_email"`
	Subject       string      `json:"subject"`
	SentDate      time.Time   `json:"sent_date"`      // zero if never sent or unparseable
	PipelineStage int         `json:"pipeline_stage"` // stage the email represented when sent
	EmailType     string      `json:"email_type"`     // outreach | follow_up | auto_followup
	Attachments   []string    `json:"attachments"`
	Status        EmailStatus `json:"status"`
	Replied       bool        `json:"replied"`
	ReplyDate     time.Time   `json:"reply_date"`
	ReplySummary  string      `json:"reply_content_summary"`
	DetectedStage int         `json:"detected_stage"` // 0 until a reply is classified
	NextAction    string      `json:"next_action"`
	AIConfidence  float64     `json:"ai_confidence"`
	ReviewedBy    string      `json:"reviewed_by"`
}

// TrackingUpdate is the set of fields reconciliation writes back to a
// tracking record. Only non-zero fields are applied by stores.
type TrackingUpdate struct {
	Status        EmailStatus
	Replied       *bool
	ReplyDate     *time.Time
	ReplySummary  *string
	DetectedStage *int
	NextAction    *string
	AIConfidence  *float64
	SentDate      *time.Time // snooze shifts the effective sent date
}

// Customer identifies a prospective buyer and its authoritative pipeline
// position. Distinct from a TrackingRecord's stage-at-send-time.
type Customer struct {
	ID            string     `json:"id"`
	CompanyName   string     `json:"company_name"`
	ContactName   string     `json:"contact_name"`
	ContactEmail  string     `json:"contact_email"`
	Industry      string     `json:"industry"`
	Country       string     `json:"country"`
	PipelineStage int        `json:"pipeline_stage"`
	Engagement    Engagement `json:"engagement_level"`
	SalesforceID  string     `json:"salesforce_id"`
	Notes         string     `json:"notes"`
}

// CustomerUpdate is the set of customer fields reconciliation writes back.
type CustomerUpdate struct {
	PipelineStage *int
	Engagement    Engagement
}

// InboundReply is one reply record supplied by the mailbox collaborator.
type InboundReply struct {
	From     string    `json:"from"` // may be "Name <addr>" form
	Subject  string    `json:"subject"`
	Body     string    `json:"body"`
	Date     time.Time `json:"date"`
	ThreadID string    `json:"thread_id"`
}
