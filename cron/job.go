package cron

import (
	"sync"
	"time"

	rcron "github.com/robfig/cron/v3"
)

// Status is the lifecycle state of a scheduled job.
type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusRunning   Status = "running"
	StatusIdle      Status = "idle"
	StatusCompleted Status = "completed"
	StatusCanceled  Status = "canceled"
	StatusFailed    Status = "failed"
	StatusStopped   Status = "stopped"
)

// Terminal reports whether a job in this state will never run again.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusCanceled, StatusFailed, StatusStopped:
		return true
	}
	return false
}

// Handle controls one scheduled job.
type Handle interface {
	ID() int64
	Name() string
	Status() Status
	Err() error
	Runs() int
	LastRun() time.Time
	Done() <-chan struct{}
	Cancel()
}

type job struct {
	scheduler *Scheduler
	id        int64
	name      string
	run       func() error
	done      chan struct{}
	cancel    sync.Once

	// guarded by scheduler.mu
	entry rcron.EntryID

	mu      sync.Mutex
	status  Status
	err     error
	runs    int
	lastRun time.Time
}

func (j *job) ID() int64    { return j.id }
func (j *job) Name() string { return j.name }

func (j *job) Status() Status {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.status
}

func (j *job) Err() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.err
}

// Runs counts finished executions, failed ones included.
func (j *job) Runs() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.runs
}

func (j *job) LastRun() time.Time {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.lastRun
}

func (j *job) Done() <-chan struct{} { return j.done }

// Cancel drops the job from its scheduler. A run already in progress
// finishes but its outcome is not recorded as the job status.
func (j *job) Cancel() {
	j.cancel.Do(func() {
		j.scheduler.forget(j)
		j.finish(StatusCanceled, nil)
	})
}

// execute runs the job unless it has ended. ran is false when it was skipped.
func (j *job) execute() (ran bool, err error) {
	j.mu.Lock()
	if j.status.Terminal() {
		j.mu.Unlock()
		return false, nil
	}
	j.status = StatusRunning
	j.mu.Unlock()

	err = j.run()

	j.mu.Lock()
	j.runs++
	j.lastRun = time.Now()
	j.mu.Unlock()
	return true, err
}

// settle returns a recurring job to idle after a successful run.
func (j *job) settle() {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.status == StatusRunning {
		j.status = StatusIdle
	}
}

// finish moves the job to a terminal state once; later calls are ignored.
func (j *job) finish(status Status, err error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.status.Terminal() {
		return
	}
	j.status = status
	j.err = err
	close(j.done)
}
