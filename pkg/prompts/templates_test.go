package prompts

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLGeneration_IncludesRowLimitAndSchema(t *testing.T) {
	prompt, system := SQLGeneration("who are the captains?", "Table: hr.crew_members", "", 100)

	assert.Contains(t, prompt, "LIMIT 100")
	assert.Contains(t, prompt, "Table: hr.crew_members")
	assert.Contains(t, prompt, "who are the captains?")
	assert.NotContains(t, prompt, "EXAMPLES:")
	assert.Contains(t, system, "SQL expert")
}

func TestSQLGeneration_IncludesFewShot(t *testing.T) {
	prompt, _ := SQLGeneration("q", "schema", "Q: sample\nSQL: SELECT 1", 50)
	assert.Contains(t, prompt, "EXAMPLES:")
	assert.Contains(t, prompt, "SELECT 1")
}

func TestSQLCorrection_IncludesFailure(t *testing.T) {
	prompt, _ := SQLCorrection("q", "SELECT * FROM hr.nope", "no such table: hr.nope", "schema text", 100)

	assert.Contains(t, prompt, "SELECT * FROM hr.nope")
	assert.Contains(t, prompt, "no such table: hr.nope")
	assert.Contains(t, prompt, "schema text")
}

func TestResultSummary_TruncationNote(t *testing.T) {
	prompt, _ := ResultSummary("q", "SELECT 1", "[]", 100, 20, true)
	assert.Contains(t, prompt, "showing first 20 of 100 rows")
	assert.Contains(t, prompt, "capped by the execution row limit")

	prompt, _ = ResultSummary("q", "SELECT 1", "[]", 5, 5, false)
	assert.NotContains(t, prompt, "capped")
	assert.NotContains(t, prompt, "showing first")
}

func TestParseSuggestions(t *testing.T) {
	response := "There are 12 captains based in Dallas.\n\nSUGGESTION: Break the captains down by aircraft type\nSUGGESTION: Which captains joined this year?\nSUGGESTION: Show first officers in Dallas\nSUGGESTION: a fourth one"

	summary, suggestions := ParseSuggestions(response, 3)

	assert.Equal(t, "There are 12 captains based in Dallas.", summary)
	require.Len(t, suggestions, 3)
	assert.Equal(t, "Break the captains down by aircraft type", suggestions[0])
}

func TestParseSuggestions_NoSuggestions(t *testing.T) {
	summary, suggestions := ParseSuggestions("Just a summary.", 3)
	assert.Equal(t, "Just a summary.", summary)
	assert.Empty(t, suggestions)
}

func TestLoadFewShot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "examples.yaml")
	content := `examples:
  - question: "How many crew members are there?"
    sql: "SELECT count(*) FROM hr.crew_members"
  - question: ""
    sql: "SELECT 1"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	examples, err := LoadFewShot(path)
	require.NoError(t, err)
	require.Len(t, examples, 1)
	assert.Equal(t, "How many crew members are there?", examples[0].Question)

	text := FormatFewShot(examples)
	assert.Contains(t, text, "Q: How many crew members are there?")
	assert.Contains(t, text, "SQL: SELECT count(*) FROM hr.crew_members")
}

func TestLoadFewShot_MissingFile(t *testing.T) {
	examples, err := LoadFewShot(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Nil(t, examples)
}
