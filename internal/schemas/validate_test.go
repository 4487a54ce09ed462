package schemas

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateScoreResult(t *testing.T) {
	tests := []struct {
		name      string
		json      string
		wantError bool
	}{
		{
			name:      "valid full result",
			json:      `{"nim": "2101234", "student_name": "Budi", "score": 85, "evaluation": "Complete and correct."}`,
			wantError: false,
		},
		{
			name:      "evaluation omitted",
			json:      `{"nim": "2101234", "student_name": "Budi", "score": 85}`,
			wantError: false,
		},
		{
			name:      "fractional score allowed",
			json:      `{"nim": "2101234", "student_name": "Budi", "score": 85.5}`,
			wantError: false,
		},
		{
			name:      "missing score",
			json:      `{"nim": "2101234", "student_name": "Budi"}`,
			wantError: true,
		},
		{
			name:      "score as string",
			json:      `{"nim": "2101234", "student_name": "Budi", "score": "85"}`,
			wantError: true,
		},
		{
			name:      "extra fields rejected",
			json:      `{"nim": "2101234", "student_name": "Budi", "score": 85, "comment": "nope"}`,
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateScoreResult(tt.json)
			if tt.wantError {
				require.Error(t, err)
				var ve *ValidationError
				assert.ErrorAs(t, err, &ve)
				assert.NotEmpty(t, ve.Errors)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
