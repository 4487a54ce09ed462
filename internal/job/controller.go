package job

import (
	"context"
	"fmt"
	"log"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/jonathan/autoscore/internal/credentials"
	"github.com/jonathan/autoscore/internal/progress"
	"github.com/jonathan/autoscore/internal/scoring"
)

// Scorer is the scoring client consumed by the worker pool.
type Scorer interface {
	Score(ctx context.Context, submissionText string, ref scoring.Reference, cfg scoring.Config, cred credentials.Credential) (*scoring.Result, error)
}

// Controller owns one job's lifecycle: it fans tasks out to a fixed pool of
// workers, aggregates terminal outcomes in input order, and exposes live
// progress through its broadcaster.
type Controller struct {
	job         *Job
	scorer      Scorer
	creds       *credentials.Pool
	broadcaster *progress.Broadcaster

	// mu guards the per-run channels; RetryTask replaces both for the
	// follow-up run so an earlier cancellation does not leak into it.
	mu       sync.Mutex
	cancelCh chan struct{}
	done     chan struct{}
}

// newController wires a controller around a validated job.
func newController(j *Job, scorer Scorer, creds *credentials.Pool) *Controller {
	return &Controller{
		job:         j,
		scorer:      scorer,
		creds:       creds,
		broadcaster: progress.NewBroadcaster(),
		cancelCh:    make(chan struct{}),
		done:        make(chan struct{}),
	}
}

// ID returns the job id.
func (c *Controller) ID() string {
	return c.job.ID.String()
}

// Job returns the underlying job.
func (c *Controller) Job() *Job {
	return c.job
}

// Start launches the run in the background. The context covers the provider
// calls; cancellation of the job itself goes through Cancel so that in-flight
// calls are never aborted mid-request.
func (c *Controller) Start(ctx context.Context) {
	go c.run(ctx)
}

func (c *Controller) run(ctx context.Context) {
	j := c.job

	j.mu.Lock()
	j.status = StatusRunning
	total := len(j.tasks)
	j.mu.Unlock()

	c.publish(StatusRunning, progress.MessageScoring)
	log.Printf("[job %s] scoring %d submissions with %d workers", c.ID(), total, j.Config.Workers)

	c.runWorkers(ctx)
	c.finalize()
}

// runWorkers drains the task queue with the configured number of workers and
// blocks until the queue is empty and all in-flight calls returned.
func (c *Controller) runWorkers(ctx context.Context) {
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < c.job.Config.Workers; i++ {
		workerID := i
		g.Go(func() error {
			c.workerLoop(gctx, workerID)
			return nil
		})
	}
	_ = g.Wait() // workers never return errors; task failure is data
}

// workerLoop pulls tasks until the queue is exhausted. After a cancellation
// request it keeps draining, but marks every remaining task as cancelled
// instead of dispatching it.
func (c *Controller) workerLoop(ctx context.Context, workerID int) {
	for {
		task, ok := c.job.dequeue()
		if !ok {
			return
		}

		if c.isCancelled() || ctx.Err() != nil {
			// Keep an extraction failure's own reason so a later re-queue
			// still treats the task as unreadable, not as cancelled.
			detail := CancelledReason
			if task.ErrorDetail != "" {
				detail = task.ErrorDetail
			}
			c.finishTask(task, nil, detail)
			continue
		}

		// Tasks whose document could not be extracted fail without an LLM call.
		if task.ErrorDetail != "" {
			c.finishTask(task, nil, task.ErrorDetail)
			continue
		}

		c.scoreTask(ctx, workerID, task)
	}
}

// scoreTask drives one task through the retry policy: transient failures
// rotate to a fresh credential and retry up to the attempt limit, fatal
// failures stop immediately.
func (c *Controller) scoreTask(ctx context.Context, workerID int, task *Task) {
	cfg := c.job.Config
	var lastErr error

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if c.isCancelled() {
			c.finishTask(task, nil, CancelledReason)
			return
		}

		cred := c.creds.Next()
		c.job.recordAttempt(task)

		result, err := c.scorer.Score(ctx, task.ExtractedText, c.job.Reference, cfg.scoringConfig(), cred)
		if err == nil {
			if result.Adjusted {
				log.Printf("[worker %d] task %d: result normalized to configured bounds", workerID, task.Index)
			}
			c.finishTask(task, result, "")
			return
		}

		lastErr = err
		serr, ok := err.(*scoring.Error)
		if ok && !serr.Retryable() {
			// Fatal errors often indicate systemic misconfiguration, worth a
			// louder log than a one-off retry.
			log.Printf("[worker %d] task %d: fatal scoring error with key %s: %v",
				workerID, task.Index, credentials.Mask(cred.Key), err)
			c.finishTask(task, nil, err.Error())
			return
		}

		log.Printf("[worker %d] task %d: attempt %d/%d failed: %v",
			workerID, task.Index, attempt, cfg.MaxAttempts, err)
	}

	c.finishTask(task, nil, fmt.Sprintf("failed after %d attempts: %v", cfg.MaxAttempts, lastErr))
}

// finishTask records a terminal outcome and publishes the progress tick.
func (c *Controller) finishTask(task *Task, result *scoring.Result, errDetail string) {
	completed, total := c.job.finishTask(task, result, errDetail)
	c.broadcaster.Publish(progress.Update{
		Status:    string(StatusRunning),
		Completed: completed,
		Total:     total,
		Message:   fmt.Sprintf("Scoring %d of %d...", completed, total),
	})
}

// finalize marks the job completed once every task is terminal. A job whose
// tasks all failed is still completed: task-level failure is data, not job
// failure.
func (c *Controller) finalize() {
	j := c.job

	c.publish(StatusRunning, progress.MessageFinalizing)

	j.mu.Lock()
	j.status = StatusCompleted
	success := 0
	for _, task := range j.tasks {
		if task.State == TaskCompleted {
			success++
		}
	}
	total := len(j.tasks)
	j.message = fmt.Sprintf("scored %d/%d submissions", success, total)
	j.finishedAt = nowFunc()
	j.mu.Unlock()

	c.publish(StatusCompleted, j.message)
	log.Printf("[job %s] completed: %s", c.ID(), j.message)

	c.mu.Lock()
	close(c.done)
	c.mu.Unlock()
}

// Cancel requests cancellation of the current run: no new task is dispatched,
// in-flight calls finish, and drained tasks end in an error state with a
// cancelled reason. Idempotent; a no-op once the job is terminal.
func (c *Controller) Cancel() {
	if c.job.Status() == StatusCompleted {
		return
	}

	c.mu.Lock()
	select {
	case <-c.cancelCh:
		c.mu.Unlock()
		return
	default:
	}
	close(c.cancelCh)
	c.mu.Unlock()

	c.publish(StatusRunning, progress.MessageCancelled)
	log.Printf("[job %s] cancellation requested", c.ID())
}

func (c *Controller) isCancelled() bool {
	c.mu.Lock()
	ch := c.cancelCh
	c.mu.Unlock()

	select {
	case <-ch:
		return true
	default:
		return false
	}
}

// Done returns a channel closed when the current run finishes.
func (c *Controller) Done() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.done
}

// Progress returns the live progress tuple for polling callers.
func (c *Controller) Progress() progress.Update {
	j := c.job
	j.mu.Lock()
	defer j.mu.Unlock()

	msg := j.message
	if msg == "" {
		msg = fmt.Sprintf("Scoring %d of %d...", j.completed, len(j.tasks))
	}
	return progress.Update{
		Status:    string(j.status),
		Completed: j.completed,
		Total:     len(j.tasks),
		Message:   msg,
	}
}

// Subscribe attaches a progress listener; see progress.Broadcaster.
func (c *Controller) Subscribe() (<-chan progress.Update, func()) {
	return c.broadcaster.Subscribe()
}

// publish emits a milestone update with the current counters.
func (c *Controller) publish(status Status, message string) {
	j := c.job
	j.mu.Lock()
	completed, total := j.completed, len(j.tasks)
	j.mu.Unlock()

	c.broadcaster.Publish(progress.Update{
		Status:    string(status),
		Completed: completed,
		Total:     total,
		Message:   message,
	})
}

// RetryTask re-queues a failed task on a completed job. The original task is
// retired, not mutated; a fresh waiting task takes its index and a small
// follow-up run rescores it.
func (c *Controller) RetryTask(ctx context.Context, index int) error {
	j := c.job

	j.mu.Lock()
	if j.status == StatusRunning || j.status == StatusPending {
		j.mu.Unlock()
		return ErrStillRunning
	}
	if index < 0 || index >= len(j.tasks) {
		j.mu.Unlock()
		return ErrNotFound
	}
	old := j.tasks[index]
	if old.State != TaskError {
		j.mu.Unlock()
		return ErrTaskNotRetryable
	}

	fresh := &Task{
		Index:         old.Index,
		Filename:      old.Filename,
		ExtractedText: old.ExtractedText,
		State:         TaskWaiting,
	}
	if old.Attempts == 0 && old.ErrorDetail != CancelledReason {
		// Never scored and not merely drained by a cancellation: the failure
		// came from extraction and will recur.
		fresh.ErrorDetail = old.ErrorDetail
	}
	j.retired = append(j.retired, old)
	j.tasks[index] = fresh
	j.pending = append(j.pending, fresh)
	j.status = StatusRunning
	j.message = ""
	// The counter restarts below the total for the follow-up run; it is
	// monotonic within any single run.
	j.completed = len(j.tasks) - 1
	j.mu.Unlock()

	// Fresh per-run channels: a cancellation of the original run must not
	// bleed into the follow-up run.
	c.mu.Lock()
	c.cancelCh = make(chan struct{})
	c.done = make(chan struct{})
	c.mu.Unlock()

	log.Printf("[job %s] re-queued task %d", c.ID(), index)

	go func() {
		c.workerLoop(ctx, 0)
		c.finalize()
	}()
	return nil
}
