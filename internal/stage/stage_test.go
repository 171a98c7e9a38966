package stage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultTable(t *testing.T) {
	tbl := Default()

	assert.Equal(t, 10, tbl.Max())
	assert.Equal(t, []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, tbl.Numbers())

	s, ok := tbl.Get(5)
	require.True(t, ok)
	assert.Equal(t, "Negotiation", s.Name)
	assert.Equal(t, 5, s.Number)
	assert.Equal(t, []string{"03_Quotation.pdf"}, s.Attachments)
	assert.Equal(t, 2, s.FollowupDays)

	lost, ok := tbl.Get(10)
	require.True(t, ok)
	assert.Equal(t, "Lost/Inactive", lost.Name)
	assert.Empty(t, lost.Attachments)
	assert.Equal(t, 0, lost.FollowupDays)
}

func TestNewTable_Validation(t *testing.T) {
	_, err := NewTable(nil)
	assert.Error(t, err)

	_, err = NewTable(map[int]Stage{0: {Name: "Bad"}})
	assert.Error(t, err)

	_, err = NewTable(map[int]Stage{1: {}})
	assert.Error(t, err)
}

func TestClamp(t *testing.T) {
	tbl := Default()
	assert.Equal(t, 1, tbl.Clamp(0))
	assert.Equal(t, 1, tbl.Clamp(-3))
	assert.Equal(t, 7, tbl.Clamp(7))
	assert.Equal(t, 10, tbl.Clamp(10))
	assert.Equal(t, 10, tbl.Clamp(14))
}

func TestNext(t *testing.T) {
	tbl := Default()
	assert.Equal(t, 4, tbl.Next(3))
	assert.Equal(t, 10, tbl.Next(9))
	assert.Equal(t, 10, tbl.Next(10))
}

func TestFollowupDelay(t *testing.T) {
	tbl := Default()

	assert.Equal(t, 2, tbl.FollowupDelay(5, 3))
	// Stage 10's explicit zero is a real value, not "unset".
	assert.Equal(t, 0, tbl.FollowupDelay(10, 3))
	// Unknown stage falls back to the default.
	assert.Equal(t, 3, tbl.FollowupDelay(42, 3))
}

func TestLoad_JSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "stages.json")
	content := `{
		"1": {"name": "Prospecting", "attachments": ["a.pdf"], "trigger_keywords": ["intro"], "followup_days": 5},
		"2": {"name": "Contact", "trigger_keywords": ["interested"]}
	}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	tbl, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 2, tbl.Max())
	s, _ := tbl.Get(1)
	assert.Equal(t, 5, s.FollowupDays)

	// Missing followup_days falls back to the global default, not zero.
	assert.Equal(t, 7, tbl.FollowupDelay(2, 7))
}

func TestLoad_YAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "stages.yaml")
	content := `
"1":
  name: Prospecting
  trigger_keywords: [intro]
  followup_days: 4
"2":
  name: Qualification
  followup_days: 0
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	tbl, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 4, tbl.FollowupDelay(1, 9))
	assert.Equal(t, 0, tbl.FollowupDelay(2, 9))
}

func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := Load(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)

	bad := filepath.Join(dir, "stages.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"one": {"name": "X"}}`), 0o644))
	_, err = Load(bad)
	assert.Error(t, err)

	txt := filepath.Join(dir, "stages.txt")
	require.NoError(t, os.WriteFile(txt, []byte("nope"), 0o644))
	_, err = Load(txt)
	assert.Error(t, err)
}
