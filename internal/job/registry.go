package job

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/autoscore/internal/credentials"
	"github.com/jonathan/autoscore/internal/scoring"
)

// DefaultRetention is how long a finished job stays retrievable before the
// registry evicts it from memory.
const DefaultRetention = time.Hour

// Registry owns all live jobs, keyed by id. Controllers never share state
// across jobs except the process-wide credential pool. Finished jobs are
// evicted after the retention window or on explicit delete.
type Registry struct {
	scorer    Scorer
	creds     *credentials.Pool
	retention time.Duration

	mu   sync.RWMutex
	jobs map[uuid.UUID]*Controller

	stop     chan struct{}
	stopOnce sync.Once
}

// NewRegistry creates a registry and starts its eviction sweeper.
func NewRegistry(scorer Scorer, creds *credentials.Pool, retention time.Duration) *Registry {
	if retention <= 0 {
		retention = DefaultRetention
	}

	r := &Registry{
		scorer:    scorer,
		creds:     creds,
		retention: retention,
		jobs:      make(map[uuid.UUID]*Controller),
		stop:      make(chan struct{}),
	}
	go r.sweep()
	return r
}

// CreateJob validates the request, registers a new job, and starts it.
// Invalid score bounds or an empty task list fail with *ConfigError before
// any task starts.
func (r *Registry) CreateJob(ctx context.Context, inputs []TaskInput, cfg Config, ref scoring.Reference) (*Controller, error) {
	if len(inputs) == 0 {
		return nil, &ConfigError{Field: "tasks", Message: "task list is empty"}
	}

	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	j := newJob(inputs, cfg, ref)
	ctrl := newController(j, r.scorer, r.creds)

	r.mu.Lock()
	r.jobs[j.ID] = ctrl
	r.mu.Unlock()

	log.Printf("[registry] created job %s (%d tasks)", j.ID, len(inputs))
	ctrl.Start(ctx)
	return ctrl, nil
}

// Get returns the controller for a job id, or ErrNotFound for unknown or
// already-evicted jobs.
func (r *Registry) Get(id uuid.UUID) (*Controller, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ctrl, ok := r.jobs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return ctrl, nil
}

// Delete evicts a job, typically after the caller downloaded the result.
func (r *Registry) Delete(id uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.jobs, id)
}

// Len returns the number of live jobs.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.jobs)
}

// Close stops the sweeper and cancels any running jobs.
func (r *Registry) Close() {
	r.stopOnce.Do(func() {
		close(r.stop)
	})

	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, ctrl := range r.jobs {
		ctrl.Cancel()
	}
}

// sweep periodically evicts jobs whose retention window expired.
func (r *Registry) sweep() {
	interval := r.retention / 4
	if interval > time.Minute {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.evictExpired()
		case <-r.stop:
			return
		}
	}
}

func (r *Registry) evictExpired() {
	cutoff := nowFunc().Add(-r.retention)

	r.mu.Lock()
	defer r.mu.Unlock()
	for id, ctrl := range r.jobs {
		ctrl.job.mu.Lock()
		expired := ctrl.job.status == StatusCompleted && !ctrl.job.finishedAt.IsZero() && ctrl.job.finishedAt.Before(cutoff)
		ctrl.job.mu.Unlock()

		if expired {
			delete(r.jobs, id)
			log.Printf("[registry] evicted job %s after retention", id)
		}
	}
}
