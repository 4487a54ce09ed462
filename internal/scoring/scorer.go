// Package scoring wraps a single LLM call: it builds a delimited,
// injection-resistant prompt for one student submission, sends it with an
// assigned credential, and parses the strict-JSON response.
package scoring

import (
	"context"
	"encoding/json"
	"log"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/jonathan/autoscore/internal/credentials"
	"github.com/jonathan/autoscore/internal/llm"
	"github.com/jonathan/autoscore/internal/schemas"
)

// NotFound is the sentinel the model is instructed to emit when the student
// ID or name cannot be located in the submission.
const NotFound = "NOT_FOUND"

// Config holds the per-job scoring parameters.
type Config struct {
	ScoreMin           float64
	ScoreMax           float64
	EnableEvaluation   bool
	MaxEvaluationWords int
}

// Result is the validated outcome of one scored submission.
type Result struct {
	StudentID   string  `json:"nim"`
	StudentName string  `json:"student_name"`
	Score       float64 `json:"score"`
	Evaluation  string  `json:"evaluation,omitempty"`

	// Adjusted is set when the score was clamped or the evaluation truncated.
	// Normalization is silent toward the end user; the flag only feeds logs.
	Adjusted bool `json:"-"`
}

// Scorer scores submissions against a Gemini model, caching one provider
// client per credential. Safe for concurrent use by the worker pool.
type Scorer struct {
	model string

	mu      sync.Mutex
	clients map[string]llm.Client

	// newClient is swappable in tests
	newClient func(ctx context.Context, apiKey string) (llm.Client, error)
}

// NewScorer creates a scorer that uses the given provider model.
func NewScorer(model string) *Scorer {
	return &Scorer{
		model:   model,
		clients: make(map[string]llm.Client),
		newClient: func(ctx context.Context, apiKey string) (llm.Client, error) {
			return llm.NewGeminiClient(ctx, apiKey)
		},
	}
}

// Score sends one submission to the LLM using the assigned credential and
// returns the validated result. Failures are always *Error, classified for
// the retry layer.
func (s *Scorer) Score(ctx context.Context, submissionText string, ref Reference, cfg Config, cred credentials.Credential) (*Result, error) {
	client, err := s.clientFor(ctx, cred)
	if err != nil {
		return nil, &Error{Kind: KindFatal, Message: "failed to create provider client", Cause: err}
	}

	prompt := BuildPrompt(submissionText, ref, cfg)

	raw, err := client.GenerateJSON(ctx, s.model, prompt)
	if err != nil {
		return nil, Classify(err)
	}

	return parseResponse(raw, cfg)
}

// Close releases all cached provider clients.
func (s *Scorer) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, client := range s.clients {
		if err := client.Close(); err != nil {
			log.Printf("[scorer] failed to close client for %s: %v", credentials.Mask(key), err)
		}
		delete(s.clients, key)
	}
}

// clientFor returns the cached provider client for a credential, creating it
// on first use.
func (s *Scorer) clientFor(ctx context.Context, cred credentials.Credential) (llm.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if client, ok := s.clients[cred.Key]; ok {
		return client, nil
	}

	client, err := s.newClient(ctx, cred.Key)
	if err != nil {
		return nil, err
	}
	s.clients[cred.Key] = client
	return client, nil
}

// parseResponse validates the model reply against the response contract and
// normalizes the result. Contract violations fall back to a regex salvage
// before being declared malformed.
func parseResponse(raw string, cfg Config) (*Result, error) {
	cleaned := llm.CleanJSONBlock(raw)

	if err := schemas.ValidateScoreResult(cleaned); err != nil {
		if result, ok := salvageResponse(cleaned, cfg); ok {
			return result, nil
		}
		return nil, &Error{Kind: KindMalformedOutput, Message: "response violates scoring contract", Cause: err}
	}

	var result Result
	if err := json.Unmarshal([]byte(cleaned), &result); err != nil {
		return nil, &Error{Kind: KindMalformedOutput, Message: "failed to decode response JSON", Cause: err}
	}

	normalize(&result, cfg)
	return &result, nil
}

var (
	scorePattern = regexp.MustCompile(`"score"\s*:\s*(-?\d+(?:\.\d+)?)`)
	nimPattern   = regexp.MustCompile(`"nim"\s*:\s*"([^"]+)"`)
	namePattern  = regexp.MustCompile(`"student_name"\s*:\s*"([^"]+)"`)
)

// salvageResponse attempts field-level extraction from a reply that failed
// strict validation. A salvage without a score is useless and reported as a
// failure so the retry layer gets another attempt.
func salvageResponse(text string, cfg Config) (*Result, bool) {
	m := scorePattern.FindStringSubmatch(text)
	if m == nil {
		return nil, false
	}

	score, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return nil, false
	}

	result := &Result{
		StudentID:   NotFound,
		StudentName: NotFound,
		Score:       score,
	}
	if m := nimPattern.FindStringSubmatch(text); m != nil {
		result.StudentID = m[1]
	}
	if m := namePattern.FindStringSubmatch(text); m != nil {
		result.StudentName = m[1]
	}

	normalize(result, cfg)
	return result, true
}

// normalize clamps the score to the configured range and truncates the
// evaluation at the word cap. Bounds are presentation constraints, not
// correctness signals, so neither adjustment fails the task.
func normalize(result *Result, cfg Config) {
	if strings.TrimSpace(result.StudentID) == "" {
		result.StudentID = NotFound
	}
	if strings.TrimSpace(result.StudentName) == "" {
		result.StudentName = NotFound
	}

	if result.Score < cfg.ScoreMin {
		result.Score = cfg.ScoreMin
		result.Adjusted = true
	} else if result.Score > cfg.ScoreMax {
		result.Score = cfg.ScoreMax
		result.Adjusted = true
	}

	if !cfg.EnableEvaluation {
		result.Evaluation = ""
		return
	}

	words := strings.Fields(result.Evaluation)
	if cfg.MaxEvaluationWords > 0 && len(words) > cfg.MaxEvaluationWords {
		result.Evaluation = strings.Join(words[:cfg.MaxEvaluationWords], " ") + "..."
		result.Adjusted = true
	}
}
