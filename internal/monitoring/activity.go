package monitoring

import (
	"encoding/json"
	"os"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

const activityLogMax = 200

// ActivityEntry is one logged monitor action.
type ActivityEntry struct {
	Timestamp time.Time      `json:"timestamp"`
	Action    string         `json:"action"`
	Details   map[string]any `json:"details,omitempty"`
}

// ActivityLog is a file-backed ring of the monitor's most recent actions.
// The dashboard process reads the file; this process only appends. The file
// holds at most the latest 200 entries.
type ActivityLog struct {
	path string

	mu      sync.Mutex
	entries []ActivityEntry
}

// NewActivityLog opens the log at path, loading any existing entries. A
// missing or corrupt file starts the log empty: history is advisory, never
// worth failing startup for.
func NewActivityLog(path string) *ActivityLog {
	al := &ActivityLog{path: path}

	data, err := os.ReadFile(path)
	if err != nil {
		return al
	}
	if err := json.Unmarshal(data, &al.entries); err != nil {
		zap.L().Warn("monitoring: discarding corrupt activity log",
			zap.String("path", path), zap.Error(err))
		al.entries = nil
	}
	if len(al.entries) > activityLogMax {
		al.entries = al.entries[len(al.entries)-activityLogMax:]
	}
	return al
}

// Record appends an entry and persists the log.
func (al *ActivityLog) Record(action string, details map[string]any) {
	al.mu.Lock()
	defer al.mu.Unlock()

	al.entries = append(al.entries, ActivityEntry{
		Timestamp: time.Now().UTC(),
		Action:    action,
		Details:   details,
	})
	if len(al.entries) > activityLogMax {
		al.entries = al.entries[len(al.entries)-activityLogMax:]
	}
	if err := al.persist(); err != nil {
		zap.L().Warn("monitoring: activity log write failed", zap.Error(err))
	}
}

// Entries returns a copy of the current log, oldest first.
func (al *ActivityLog) Entries() []ActivityEntry {
	al.mu.Lock()
	defer al.mu.Unlock()
	out := make([]ActivityEntry, len(al.entries))
	copy(out, al.entries)
	return out
}

func (al *ActivityLog) persist() error {
	if al.path == "" {
		return nil
	}
	data, err := json.MarshalIndent(al.entries, "", "  ")
	if err != nil {
		return eris.Wrap(err, "monitoring: marshal activity log")
	}
	return eris.Wrap(os.WriteFile(al.path, data, 0o644), "monitoring: write activity log")
}
