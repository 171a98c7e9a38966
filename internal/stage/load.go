package stage

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// rawStage mirrors Stage but keeps FollowupDays optional so a missing value
// can fall back to the global default instead of reading as zero (which means
// "never stales").
type rawStage struct {
	Name            string   `json:"name" yaml:"name"`
	Attachments     []string `json:"attachments" yaml:"attachments"`
	TriggerKeywords []string `json:"trigger_keywords" yaml:"trigger_keywords"`
	FollowupDays    *int     `json:"followup_days" yaml:"followup_days"`
}

// Load reads a stage table from a JSON or YAML file, chosen by extension.
// The file maps stage numbers to stage records:
//
//	{"1": {"name": "Prospecting", "attachments": [...], ...}, ...}
func Load(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "stage: read %s", path)
	}

	var raw map[string]rawStage
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, eris.Wrapf(err, "stage: parse yaml %s", path)
		}
	case ".json":
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, eris.Wrapf(err, "stage: parse json %s", path)
		}
	default:
		return nil, eris.Errorf("stage: unsupported config format %q", ext)
	}

	stages := make(map[int]Stage, len(raw))
	for key, rs := range raw {
		num, err := strconv.Atoi(strings.TrimSpace(key))
		if err != nil {
			return nil, eris.Wrapf(err, "stage: non-integer stage key %q", key)
		}
		s := Stage{
			Name:            rs.Name,
			Attachments:     rs.Attachments,
			TriggerKeywords: rs.TriggerKeywords,
			FollowupDays:    -1, // unset; FollowupDelay falls back to the default
		}
		if rs.FollowupDays != nil {
			s.FollowupDays = *rs.FollowupDays
		}
		stages[num] = s
	}

	return NewTable(stages)
}
