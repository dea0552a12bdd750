package server

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cwbudde/thinfilm/internal/film"
)

// JobState is the lifecycle state of a job.
type JobState string

const (
	StatePending   JobState = "pending"
	StateRunning   JobState = "running"
	StateCompleted JobState = "completed"
	StateFailed    JobState = "failed"
	StateCancelled JobState = "cancelled"
)

// Finished reports whether the state is terminal.
func (s JobState) Finished() bool {
	return s == StateCompleted || s == StateFailed || s == StateCancelled
}

// ErrJobNotFound is returned for unknown job IDs.
var ErrJobNotFound = errors.New("job not found")

// JobConfig selects the design a job optimises. Document holds inline
// YAML; otherwise Path names a design file on the server. Method
// overrides the method of the document.
type JobConfig struct {
	Document string `json:"document,omitempty"`
	Path     string `json:"path,omitempty"`
	BaseDir  string `json:"baseDir,omitempty"` // table paths of an inline document
	Method   string `json:"method,omitempty"`
}

// Job is one optimisation run.
type Job struct {
	ID          string     `json:"id"`
	State       JobState   `json:"state"`
	Config      JobConfig  `json:"config"`
	Design      string     `json:"design,omitempty"`
	Method      string     `json:"method,omitempty"`
	Status      string     `json:"status,omitempty"`
	Chi2        float64    `json:"chi2"`
	InitialChi2 float64    `json:"initialChi2"`
	Iterations  int        `json:"iterations"`
	Inserted    int        `json:"inserted,omitempty"`
	Progress    float64    `json:"progress"` // negative while indeterminate
	Layers      int        `json:"layers"`
	StartTime   time.Time  `json:"startTime"`
	EndTime     *time.Time `json:"endTime,omitempty"`
	Error       string     `json:"error,omitempty"`

	cancel context.CancelFunc
	filter *film.Filter
}

// JobManager keeps every job of the server. Jobs are handed out as
// copies.
type JobManager struct {
	mu          sync.RWMutex
	jobs        map[string]*Job
	broadcaster *EventBroadcaster
}

// NewJobManager returns an empty manager.
func NewJobManager() *JobManager {
	return &JobManager{
		jobs:        make(map[string]*Job),
		broadcaster: NewEventBroadcaster(),
	}
}

func (j *Job) copy() *Job {
	cp := *j
	cp.cancel = nil
	cp.filter = nil
	return &cp
}

// CreateJob registers a pending job.
func (jm *JobManager) CreateJob(config JobConfig) *Job {
	jm.mu.Lock()
	defer jm.mu.Unlock()
	job := &Job{
		ID:        uuid.New().String(),
		State:     StatePending,
		Config:    config,
		StartTime: time.Now(),
	}
	jm.jobs[job.ID] = job
	return job.copy()
}

// GetJob returns a copy of a job.
func (jm *JobManager) GetJob(id string) (*Job, bool) {
	jm.mu.RLock()
	defer jm.mu.RUnlock()
	job, ok := jm.jobs[id]
	if !ok {
		return nil, false
	}
	return job.copy(), true
}

// ListJobs returns copies of all jobs, oldest first.
func (jm *JobManager) ListJobs() []*Job {
	jm.mu.RLock()
	defer jm.mu.RUnlock()
	jobs := make([]*Job, 0, len(jm.jobs))
	for _, job := range jm.jobs {
		jobs = append(jobs, job.copy())
	}
	sortJobs(jobs)
	return jobs
}

// UpdateJob applies fn to a job under the manager lock.
func (jm *JobManager) UpdateJob(id string, fn func(*Job)) error {
	jm.mu.Lock()
	defer jm.mu.Unlock()
	job, ok := jm.jobs[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	fn(job)
	return nil
}

// GetRunningJobs returns copies of the running jobs.
func (jm *JobManager) GetRunningJobs() []*Job {
	jm.mu.RLock()
	defer jm.mu.RUnlock()
	running := make([]*Job, 0)
	for _, job := range jm.jobs {
		if job.State == StateRunning {
			running = append(running, job.copy())
		}
	}
	sortJobs(running)
	return running
}

// CancelJob stops a pending or running job. Cancelling a finished job is
// a no-op.
func (jm *JobManager) CancelJob(id string) error {
	jm.mu.Lock()
	job, ok := jm.jobs[id]
	if !ok {
		jm.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	cancel := job.cancel
	jm.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	return nil
}

// setCancel installs the cancel function of the job's run.
func (jm *JobManager) setCancel(id string, cancel context.CancelFunc) {
	jm.UpdateJob(id, func(j *Job) { j.cancel = cancel })
}

// filterOf returns the filter a job works on, nil before it is built.
func (jm *JobManager) filterOf(id string) (*film.Filter, bool) {
	jm.mu.RLock()
	defer jm.mu.RUnlock()
	job, ok := jm.jobs[id]
	if !ok {
		return nil, false
	}
	return job.filter, true
}
