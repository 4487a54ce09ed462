// Package job implements the scoring orchestration core: one in-memory batch
// of per-submission tasks driven through a bounded worker pool, with live
// progress and an ordered terminal result set.
package job

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/jonathan/autoscore/internal/scoring"
)

// Status is the job-level state, distinct from per-task state.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// TaskState is the per-task state. Completed and error are terminal.
type TaskState string

const (
	TaskWaiting    TaskState = "waiting"
	TaskProcessing TaskState = "processing"
	TaskCompleted  TaskState = "completed"
	TaskError      TaskState = "error"
)

// CancelledReason is the error detail recorded on tasks abandoned by a
// cancellation request.
const CancelledReason = "cancelled"

// Config holds the per-job scoring parameters, validated at creation.
type Config struct {
	ScoreMin           float64 `json:"score_min"`
	ScoreMax           float64 `json:"score_max" validate:"gtfield=ScoreMin"`
	EnableEvaluation   bool    `json:"enable_evaluation"`
	MaxEvaluationWords int     `json:"max_evaluation_words" validate:"gte=0,lte=1000"`
	Workers            int     `json:"workers" validate:"gte=0,lte=64"`
	MaxAttempts        int     `json:"max_attempts" validate:"gte=0,lte=10"`
}

// Defaults mirror the product defaults: 4 workers, 3 attempts per task,
// 100-word evaluations.
const (
	DefaultWorkers            = 4
	DefaultMaxAttempts        = 3
	DefaultMaxEvaluationWords = 100
)

var validate = validator.New()

// nowFunc is swappable in retention tests.
var nowFunc = time.Now

// withDefaults fills zero-valued knobs.
func (c Config) withDefaults() Config {
	if c.Workers == 0 {
		c.Workers = DefaultWorkers
	}
	if c.MaxAttempts == 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	if c.MaxEvaluationWords == 0 {
		c.MaxEvaluationWords = DefaultMaxEvaluationWords
	}
	return c
}

// Validate checks the configuration, returning a *ConfigError on failure.
func (c Config) Validate() error {
	if c.ScoreMin >= c.ScoreMax {
		return &ConfigError{Field: "score_max", Message: fmt.Sprintf("score range [%g,%g] is invalid: min must be less than max", c.ScoreMin, c.ScoreMax)}
	}
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return &ConfigError{Field: strings.ToLower(verrs[0].Field()), Message: verrs[0].Tag()}
		}
		return &ConfigError{Message: err.Error()}
	}
	return nil
}

// scoringConfig projects the job config onto the scoring client's view.
func (c Config) scoringConfig() scoring.Config {
	return scoring.Config{
		ScoreMin:           c.ScoreMin,
		ScoreMax:           c.ScoreMax,
		EnableEvaluation:   c.EnableEvaluation,
		MaxEvaluationWords: c.MaxEvaluationWords,
	}
}

// TaskInput is one submission handed to CreateJob. A non-empty
// ExtractionError marks a document the extraction collaborator could not
// read; such tasks go straight to an error outcome without an LLM call.
type TaskInput struct {
	Filename        string `json:"filename"`
	ExtractedText   string `json:"extracted_text"`
	ExtractionError string `json:"extraction_error,omitempty"`
}

// Task is the unit of work for one student submission within a job.
type Task struct {
	Index         int
	Filename      string
	ExtractedText string
	State         TaskState
	Attempts      int
	Result        *scoring.Result
	ErrorDetail   string
}

// terminal reports whether the task reached a final state.
func (t *Task) terminal() bool {
	return t.State == TaskCompleted || t.State == TaskError
}

// Job is one batch-scoring request covering an ordered set of submissions
// sharing one configuration. All mutable state is guarded by mu; the task
// order defines the final row order.
type Job struct {
	ID        uuid.UUID
	Config    Config
	Reference scoring.Reference
	CreatedAt time.Time

	mu         sync.Mutex
	status     Status
	message    string
	tasks      []*Task
	retired    []*Task
	pending    []*Task
	completed  int
	finishedAt time.Time
}

// newJob builds a pending job with a waiting task per input.
func newJob(inputs []TaskInput, cfg Config, ref scoring.Reference) *Job {
	j := &Job{
		ID:        uuid.New(),
		Config:    cfg,
		Reference: ref,
		CreatedAt: time.Now(),
		status:    StatusPending,
	}

	j.tasks = make([]*Task, len(inputs))
	for i, input := range inputs {
		task := &Task{
			Index:         i,
			Filename:      input.Filename,
			ExtractedText: input.ExtractedText,
			State:         TaskWaiting,
		}
		if input.ExtractionError != "" {
			// Recorded here, applied as a terminal error when the run starts.
			task.ErrorDetail = input.ExtractionError
		}
		j.tasks[i] = task
		j.pending = append(j.pending, task)
	}
	return j
}

// dequeue atomically pops the next waiting task (FIFO by index) and marks it
// processing. Returns false when the queue is exhausted.
func (j *Job) dequeue() (*Task, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if len(j.pending) == 0 {
		return nil, false
	}
	task := j.pending[0]
	j.pending = j.pending[1:]
	task.State = TaskProcessing
	return task, true
}

// recordAttempt counts one LLM call against the task.
func (j *Job) recordAttempt(task *Task) int {
	j.mu.Lock()
	defer j.mu.Unlock()
	task.Attempts++
	return task.Attempts
}

// finishTask moves a task into a terminal state and advances the completed
// counter. The extracted text of a successful task is released immediately so
// peak memory stays bounded by in-flight work, not job size; failed tasks
// keep their text for a possible manual re-queue.
func (j *Job) finishTask(task *Task, result *scoring.Result, errDetail string) (completed, total int) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if task.terminal() {
		return j.completed, len(j.tasks)
	}

	if errDetail != "" {
		task.State = TaskError
		task.ErrorDetail = errDetail
	} else {
		task.State = TaskCompleted
		task.Result = result
		task.ExtractedText = ""
	}

	j.completed++
	return j.completed, len(j.tasks)
}

// Snapshot returns value copies of the job's tasks in index order.
func (j *Job) Snapshot() []Task {
	j.mu.Lock()
	defer j.mu.Unlock()

	out := make([]Task, len(j.tasks))
	for i, task := range j.tasks {
		out[i] = *task
	}
	return out
}

// Status returns the current job-level state.
func (j *Job) Status() Status {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.status
}

// SuccessCount returns the number of tasks that completed with a result.
func (j *Job) SuccessCount() int {
	j.mu.Lock()
	defer j.mu.Unlock()

	n := 0
	for _, task := range j.tasks {
		if task.State == TaskCompleted {
			n++
		}
	}
	return n
}
