package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanJSONBlock(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "JSON wrapped in ```json block",
			input:    "```json\n{\"score\": 85}\n```",
			expected: `{"score": 85}`,
		},
		{
			name:     "JSON wrapped in generic ``` block",
			input:    "```\n{\"score\": 85}\n```",
			expected: `{"score": 85}`,
		},
		{
			name:     "plain JSON untouched",
			input:    `{"score": 85}`,
			expected: `{"score": 85}`,
		},
		{
			name:     "surrounding whitespace trimmed",
			input:    "  \n{\"score\": 85}\n  ",
			expected: `{"score": 85}`,
		},
		{
			name:     "language identifier line skipped",
			input:    "```javascript\n{\"score\": 85}\n```",
			expected: `{"score": 85}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, CleanJSONBlock(tt.input))
		})
	}
}
