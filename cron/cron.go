// Package cron schedules recurring and one-off editor jobs, such as
// autosave, on top of robfig/cron.
package cron

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/goliatone/go-errors"
	designer "github.com/goliatone/go-flow-designer"
	"github.com/goliatone/go-flow-designer/runner"

	rcron "github.com/robfig/cron/v3"
)

// JobFunc is the unit of scheduled work.
type JobFunc func(ctx context.Context) error

// JobConfig names a job and bounds each of its runs. Expression is only
// read by ScheduleCron.
type JobConfig struct {
	Name       string
	Expression string
	Timeout    time.Duration
	MaxRetries int
}

// Scheduler owns a robfig cron instance and the handles of every job it
// started. A recurring job that fails is removed and reports StatusFailed.
type Scheduler struct {
	cron     *rcron.Cron
	logger   designer.Logger
	location *time.Location
	seconds  bool
	verbose  bool
	onError  func(error)

	mu     sync.Mutex
	lastID int64
	jobs   map[int64]*job
}

func NewScheduler(opts ...Option) *Scheduler {
	s := &Scheduler{
		location: time.Local,
		jobs:     map[int64]*job{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	s.logger = designer.NormalizeLogger(s.logger)
	if s.onError == nil {
		s.onError = func(err error) {
			s.logger.Error("scheduled job failed", "error", err)
		}
	}
	s.cron = rcron.New(s.cronOptions()...)
	return s
}

// Every runs job at a fixed interval once the scheduler is started.
func (s *Scheduler) Every(interval time.Duration, cfg JobConfig, fn JobFunc) (Handle, error) {
	if interval <= 0 {
		return nil, designer.NewError(fmt.Sprintf("interval must be positive, got %s", interval),
			errors.CategoryBadInput, designer.CodeInputInvalid)
	}
	cfg.Expression = "@every " + interval.String()
	return s.ScheduleCron(cfg, fn)
}

// ScheduleCron runs job on a cron expression once the scheduler is started.
func (s *Scheduler) ScheduleCron(cfg JobConfig, fn JobFunc) (Handle, error) {
	if cfg.Expression == "" {
		return nil, designer.NewError("cron expression cannot be empty", errors.CategoryBadInput, designer.CodeInputInvalid)
	}
	j, err := s.newJob(cfg, fn)
	if err != nil {
		return nil, err
	}
	entry, err := s.cron.AddFunc(cfg.Expression, func() { s.tick(j) })
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryBadInput, "invalid cron expression").
			WithTextCode(designer.CodeInputInvalid).
			WithMetadata(map[string]any{"expression": cfg.Expression, "job": cfg.Name})
	}
	s.track(j, entry)
	return j, nil
}

// ScheduleAfter runs job once after delay. It does not need Start.
func (s *Scheduler) ScheduleAfter(delay time.Duration, cfg JobConfig, fn JobFunc) (Handle, error) {
	return s.ScheduleAt(time.Now().Add(delay), cfg, fn)
}

// ScheduleAt runs job once at the given time, or right away when it has
// passed. It does not need Start.
func (s *Scheduler) ScheduleAt(at time.Time, cfg JobConfig, fn JobFunc) (Handle, error) {
	j, err := s.newJob(cfg, fn)
	if err != nil {
		return nil, err
	}
	s.track(j, 0)

	go func() {
		timer := time.NewTimer(time.Until(at))
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-j.done:
			return
		}

		ran, err := j.execute()
		s.forget(j)
		switch {
		case !ran:
		case err != nil:
			j.finish(StatusFailed, err)
		default:
			j.finish(StatusCompleted, nil)
		}
	}()
	return j, nil
}

func (s *Scheduler) tick(j *job) {
	ran, err := j.execute()
	if !ran {
		return
	}
	if err != nil {
		s.forget(j)
		j.finish(StatusFailed, err)
		return
	}
	j.settle()
}

// Handles returns the live jobs in scheduling order.
func (s *Scheduler) Handles() []Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]int64, 0, len(s.jobs))
	for id := range s.jobs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(a, b int) bool { return ids[a] < ids[b] })
	out := make([]Handle, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.jobs[id])
	}
	return out
}

func (s *Scheduler) Start(_ context.Context) error {
	s.cron.Start()
	return nil
}

// Stop halts the cron loop, marks every live job stopped and waits for
// running jobs until ctx ends.
func (s *Scheduler) Stop(ctx context.Context) error {
	stopped := s.cron.Stop()

	s.mu.Lock()
	jobs := s.jobs
	s.jobs = map[int64]*job{}
	s.mu.Unlock()

	for _, j := range jobs {
		if j.entry != 0 {
			s.cron.Remove(j.entry)
		}
		j.finish(StatusStopped, nil)
	}

	if ctx == nil {
		return nil
	}
	select {
	case <-stopped.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) newJob(cfg JobConfig, fn JobFunc) (*job, error) {
	if fn == nil {
		return nil, designer.NewError("job cannot be nil", errors.CategoryBadInput, designer.CodeInputInvalid)
	}
	name := cfg.Name
	if name == "" {
		name = "cron"
	}
	opts := []runner.Option{
		runner.WithName(name),
		runner.WithMaxRetries(cfg.MaxRetries),
		runner.WithErrorHandler(s.onError),
		runner.WithLogger(s.logger),
	}
	if cfg.Timeout > 0 {
		opts = append(opts, runner.WithTimeout(cfg.Timeout))
	}
	h := runner.NewHandler(opts...)

	s.mu.Lock()
	s.lastID++
	id := s.lastID
	s.mu.Unlock()

	return &job{
		scheduler: s,
		id:        id,
		name:      cfg.Name,
		status:    StatusScheduled,
		done:      make(chan struct{}),
		run: func() error {
			return h.Run(context.Background(), fn)
		},
	}, nil
}

func (s *Scheduler) track(j *job, entry rcron.EntryID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j.entry = entry
	s.jobs[j.id] = j
}

func (s *Scheduler) forget(j *job) {
	s.mu.Lock()
	delete(s.jobs, j.id)
	entry := j.entry
	s.mu.Unlock()
	if entry != 0 {
		s.cron.Remove(entry)
	}
}

func (s *Scheduler) cronOptions() []rcron.Option {
	opts := []rcron.Option{
		rcron.WithLocation(s.location),
		rcron.WithChain(rcron.Recover(panicReporter{report: s.onError})),
		rcron.WithLogger(cronLogger{logger: s.logger, verbose: s.verbose}),
	}
	if s.seconds {
		opts = append(opts, rcron.WithSeconds())
	}
	return opts
}

func (s *Scheduler) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fmt.Sprintf("cron.Scheduler{jobs: %d}", len(s.jobs))
}
