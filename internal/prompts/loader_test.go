package prompts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGet(t *testing.T) {
	prompt, err := Get("scoring.json", "score-submission")
	require.NoError(t, err)
	assert.Contains(t, prompt, "{{.ScoreMin}}")
	assert.Contains(t, prompt, "{{.ScoreMax}}")
	assert.Contains(t, prompt, "UNTRUSTED INPUT")
}

func TestGet_UnknownKey(t *testing.T) {
	_, err := Get("scoring.json", "does-not-exist")
	assert.Error(t, err)
}

func TestGet_UnknownFile(t *testing.T) {
	_, err := Get("missing.json", "score-submission")
	assert.Error(t, err)
}

func TestFormat(t *testing.T) {
	out := Format("range {{.Min}} to {{.Max}}", map[string]string{
		"Min": "40",
		"Max": "100",
	})
	assert.Equal(t, "range 40 to 100", out)
}

func TestFormat_MissingPlaceholderLeftIntact(t *testing.T) {
	out := Format("hello {{.Name}}", map[string]string{"Other": "x"})
	assert.Equal(t, "hello {{.Name}}", out)
}
