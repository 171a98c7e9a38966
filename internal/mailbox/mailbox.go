// Package mailbox supplies inbound replies to the reconciliation loop.
//
// The engine never speaks IMAP or Graph directly; an upstream collector drops
// reply batches where a Reader can pick them up. The JSONL reader covers the
// file-drop deployment, and the interface leaves room for a webhook or queue
// backed reader later.
package mailbox

import (
	"bufio"
	"context"
	"encoding/json"
	"net/mail"
	"os"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/outreach-cli/internal/model"
)

// Reader yields a batch of unprocessed inbound replies. A positive since
// restricts the batch to replies dated within that window; zero means no
// restriction.
type Reader interface {
	Fetch(ctx context.Context, since time.Duration) ([]model.InboundReply, error)
}

// ParseAddress extracts the bare address from a From header. It accepts both
// "Name <addr@host>" and bare "addr@host" forms; on anything unparseable the
// input is returned lowercased so matching can still be attempted.
func ParseAddress(from string) string {
	from = strings.TrimSpace(from)
	if addr, err := mail.ParseAddress(from); err == nil {
		return strings.ToLower(addr.Address)
	}
	if i := strings.LastIndex(from, "<"); i >= 0 {
		if j := strings.Index(from[i:], ">"); j > 0 {
			return strings.ToLower(strings.TrimSpace(from[i+1 : i+j]))
		}
	}
	return strings.ToLower(from)
}

// Domain returns the part after @, lowercased, or "" when there is none.
func Domain(address string) string {
	addr := ParseAddress(address)
	i := strings.LastIndex(addr, "@")
	if i < 0 || i == len(addr)-1 {
		return ""
	}
	return addr[i+1:]
}

// JSONLReader reads replies from a newline-delimited JSON file, one
// model.InboundReply per line.
type JSONLReader struct {
	path string
}

// NewJSONLReader creates a reader over the given drop file.
func NewJSONLReader(path string) *JSONLReader {
	return &JSONLReader{path: path}
}

// Fetch reads every reply in the drop file. A missing file yields an empty
// batch, not an error: the collector may not have produced anything yet.
// Malformed lines are logged and skipped so one bad record cannot stall the
// whole batch. Undated replies always pass the since window.
func (r *JSONLReader) Fetch(ctx context.Context, since time.Duration) ([]model.InboundReply, error) {
	f, err := os.Open(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "mailbox: open %s", r.path)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)

	var cutoff time.Time
	if since > 0 {
		cutoff = time.Now().Add(-since)
	}

	var replies []model.InboundReply
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var reply model.InboundReply
		if err := json.Unmarshal([]byte(line), &reply); err != nil {
			zap.L().Warn("mailbox: skipping malformed reply line",
				zap.String("path", r.path),
				zap.Int("line", lineNum),
				zap.Error(err))
			continue
		}
		if reply.From == "" {
			zap.L().Warn("mailbox: skipping reply without sender",
				zap.String("path", r.path),
				zap.Int("line", lineNum))
			continue
		}
		if !cutoff.IsZero() && !reply.Date.IsZero() && reply.Date.Before(cutoff) {
			continue
		}
		replies = append(replies, reply)
	}
	if err := scanner.Err(); err != nil {
		return nil, eris.Wrapf(err, "mailbox: read %s", r.path)
	}
	return replies, nil
}
