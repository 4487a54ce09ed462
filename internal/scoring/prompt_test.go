package scoring

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildPrompt_SectionOrder(t *testing.T) {
	prompt := BuildPrompt("the submission body", Reference{
		QuestionText: "the assignment",
		AnswerKey:    "the key",
	}, testConfig)

	// Fixed order: instructions, question, answer key, delimited submission.
	iInstr := strings.Index(prompt, "SECURITY RULES")
	iQuestion := strings.Index(prompt, questionOpen)
	iKey := strings.Index(prompt, answerKeyOpen)
	iSubmission := strings.Index(prompt, submissionOpen)

	require.True(t, iInstr >= 0)
	require.True(t, iQuestion >= 0)
	require.True(t, iKey >= 0)
	require.True(t, iSubmission >= 0)
	assert.Less(t, iInstr, iQuestion)
	assert.Less(t, iQuestion, iKey)
	assert.Less(t, iKey, iSubmission)

	// Submission is fully enclosed by its delimiter pair.
	iBody := strings.Index(prompt, "the submission body")
	iClose := strings.Index(prompt, submissionClose)
	assert.Less(t, iSubmission, iBody)
	assert.Less(t, iBody, iClose)
}

func TestBuildPrompt_ScoreBoundsInterpolated(t *testing.T) {
	prompt := BuildPrompt("text", Reference{}, Config{
		ScoreMin:           40,
		ScoreMax:           100,
		EnableEvaluation:   true,
		MaxEvaluationWords: 100,
	})

	assert.Contains(t, prompt, "range 40 to 100")
	assert.Contains(t, prompt, "at most 100 words")
	assert.NotContains(t, prompt, "{{.")
}

func TestBuildPrompt_OptionalSectionsOmitted(t *testing.T) {
	prompt := BuildPrompt("text", Reference{}, testConfig)

	assert.NotContains(t, prompt, questionOpen)
	assert.NotContains(t, prompt, answerKeyOpen)
	assert.NotContains(t, prompt, "ADDITIONAL NOTES FROM THE GRADER")
	assert.Contains(t, prompt, submissionOpen)
}

func TestBuildPrompt_GraderNotesIncluded(t *testing.T) {
	prompt := BuildPrompt("text", Reference{GraderNotes: "weight correctness double"}, testConfig)

	assert.Contains(t, prompt, "ADDITIONAL NOTES FROM THE GRADER")
	assert.Contains(t, prompt, "weight correctness double")
}

func TestBuildPrompt_EvaluationDisabledZeroesWordCap(t *testing.T) {
	prompt := BuildPrompt("text", Reference{}, Config{
		ScoreMin:           0,
		ScoreMax:           10,
		EnableEvaluation:   false,
		MaxEvaluationWords: 100,
	})

	assert.Contains(t, prompt, "at most 0 words")
}
