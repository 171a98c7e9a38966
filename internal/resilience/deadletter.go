package resilience

import (
	"sync"
	"time"

	"github.com/sells-group/outreach-cli/internal/model"
)

// ReplyDLQEntry is a reply whose reconciliation writeback failed and is
// waiting for another cycle.
type ReplyDLQEntry struct {
	Reply      model.InboundReply `json:"reply"`
	Error      string             `json:"error"`
	ErrorType  string             `json:"error_type"` // transient | permanent
	RetryCount int                `json:"retry_count"`
	FirstSeen  time.Time          `json:"first_seen"`
	LastFailed time.Time          `json:"last_failed"`
}

// ReplyDLQ holds replies that could not be written back, so the next monitor
// cycle can retry them instead of losing the reply. Entries past MaxRetries
// are dropped with their error preserved in the activity log by the caller.
type ReplyDLQ struct {
	mu         sync.Mutex
	entries    []ReplyDLQEntry
	maxRetries int
}

// NewReplyDLQ creates a queue allowing maxRetries redelivery attempts
// (default 3 when non-positive).
func NewReplyDLQ(maxRetries int) *ReplyDLQ {
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &ReplyDLQ{maxRetries: maxRetries}
}

// Push records a failed reply. A reply already queued (same sender and
// subject) has its retry count bumped instead of being duplicated.
func (q *ReplyDLQ) Push(reply model.InboundReply, err error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := time.Now().UTC()
	for i := range q.entries {
		e := &q.entries[i]
		if e.Reply.From == reply.From && e.Reply.Subject == reply.Subject {
			e.RetryCount++
			e.Error = err.Error()
			e.ErrorType = ClassifyError(err)
			e.LastFailed = now
			return
		}
	}
	q.entries = append(q.entries, ReplyDLQEntry{
		Reply:      reply,
		Error:      err.Error(),
		ErrorType:  ClassifyError(err),
		FirstSeen:  now,
		LastFailed: now,
	})
}

// Pending returns the replies still eligible for retry. Entries stay queued
// until Resolve removes them, so retry counts survive across cycles.
func (q *ReplyDLQ) Pending() []model.InboundReply {
	q.mu.Lock()
	defer q.mu.Unlock()

	var retry []model.InboundReply
	for _, e := range q.entries {
		if e.RetryCount < q.maxRetries {
			retry = append(retry, e.Reply)
		}
	}
	return retry
}

// Resolve removes the entry for a reply that finally went through.
func (q *ReplyDLQ) Resolve(reply model.InboundReply) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i, e := range q.entries {
		if e.Reply.From == reply.From && e.Reply.Subject == reply.Subject {
			q.entries = append(q.entries[:i], q.entries[i+1:]...)
			return
		}
	}
}

// PruneDead removes and returns entries that exhausted their retries.
func (q *ReplyDLQ) PruneDead() []ReplyDLQEntry {
	q.mu.Lock()
	defer q.mu.Unlock()

	var dead []ReplyDLQEntry
	var live []ReplyDLQEntry
	for _, e := range q.entries {
		if e.RetryCount >= q.maxRetries {
			dead = append(dead, e)
		} else {
			live = append(live, e)
		}
	}
	q.entries = live
	return dead
}

// Len reports the queued entry count.
func (q *ReplyDLQ) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// Entries returns a snapshot for the status surface.
func (q *ReplyDLQ) Entries() []ReplyDLQEntry {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]ReplyDLQEntry, len(q.entries))
	copy(out, q.entries)
	return out
}

// ClassifyError labels err transient or permanent for DLQ bookkeeping.
func ClassifyError(err error) string {
	if IsTransient(err) {
		return "transient"
	}
	return "permanent"
}
