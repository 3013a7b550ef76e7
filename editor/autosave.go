package editor

import (
	"context"
	"sync"
	"time"

	"github.com/goliatone/go-errors"

	designer "github.com/goliatone/go-flow-designer"
	"github.com/goliatone/go-flow-designer/cron"
	"github.com/goliatone/go-flow-designer/runner"
	"github.com/goliatone/go-flow-designer/store"
)

// DefaultSaveInterval is how often tracked sessions are checked for changes.
const DefaultSaveInterval = 30 * time.Second

// Autosaver persists dirty sessions on a schedule. Each session saves its
// flow with the version that session last read or wrote; when another
// writer got there first the session is marked conflicted for that flow
// and skipped until SaveNow.
type Autosaver struct {
	store     store.Store
	scheduler *cron.Scheduler
	runner    *runner.Handler
	gate      *runner.Gate
	logger    designer.Logger
	interval  time.Duration
	retries   int

	mu         sync.Mutex
	tracked    map[string]cron.Handle
	versions   map[saveKey]int
	conflicted map[saveKey]bool
}

// saveKey scopes optimistic versions to one session editing one flow.
type saveKey struct {
	session string
	flow    string
}

type AutosaveOption func(*Autosaver)

func WithSaveInterval(d time.Duration) AutosaveOption {
	return func(a *Autosaver) {
		if d > 0 {
			a.interval = d
		}
	}
}

func WithSaveRetries(n int) AutosaveOption {
	return func(a *Autosaver) {
		if n >= 0 {
			a.retries = n
		}
	}
}

func WithSaveLogger(l designer.Logger) AutosaveOption {
	return func(a *Autosaver) {
		a.logger = designer.NormalizeLogger(l)
	}
}

func NewAutosaver(st store.Store, scheduler *cron.Scheduler, opts ...AutosaveOption) *Autosaver {
	a := &Autosaver{
		store:      st,
		scheduler:  scheduler,
		gate:       runner.NewGate(),
		logger:     designer.NormalizeLogger(nil),
		interval:   DefaultSaveInterval,
		retries:    2,
		tracked:    map[string]cron.Handle{},
		versions:   map[saveKey]int{},
		conflicted: map[saveKey]bool{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}
	a.runner = runner.NewHandler(
		runner.WithName("autosave"),
		runner.WithLogger(a.logger),
		runner.WithMaxRetries(a.retries),
		runner.WithGate(a.gate),
		runner.WithRetryStrategy(runner.PermanentStrategy{
			Strategy:  runner.ExponentialBackoffStrategy{Base: 100 * time.Millisecond, Factor: 2, Max: 2 * time.Second},
			Permanent: store.IsConflict,
		}),
	)
	return a
}

// Gate is paused by sessions while they lay out, holding saves back.
// Pass it to New with WithGate.
func (a *Autosaver) Gate() *runner.Gate {
	return a.gate
}

// Track schedules periodic saves of s.
func (a *Autosaver) Track(s *Session) error {
	if a.scheduler == nil {
		return designer.NewError("autosave has no scheduler", errors.CategoryBadInput, designer.CodeInputInvalid)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.tracked[s.ID()]; ok {
		return nil
	}
	handle, err := a.scheduler.Every(a.interval, cron.JobConfig{Name: "autosave:" + s.ID()}, func(ctx context.Context) error {
		if _, err := a.save(ctx, s, false); err != nil {
			a.logger.Warn("autosave failed", "session", s.ID(), "flow_id", s.FlowID(), "error", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	a.tracked[s.ID()] = handle
	return nil
}

// Untrack stops the periodic saves of s.
func (a *Autosaver) Untrack(s *Session) {
	a.mu.Lock()
	handle, ok := a.tracked[s.ID()]
	delete(a.tracked, s.ID())
	for key := range a.versions {
		if key.session == s.ID() {
			delete(a.versions, key)
		}
	}
	for key := range a.conflicted {
		if key.session == s.ID() {
			delete(a.conflicted, key)
		}
	}
	a.mu.Unlock()
	if ok {
		handle.Cancel()
	}
}

// Tracked returns the number of tracked sessions.
func (a *Autosaver) Tracked() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.tracked)
}

// SaveNow persists s regardless of its dirty flag and clears a previous
// conflict by saving over the stored version. It returns the new version.
func (a *Autosaver) SaveNow(ctx context.Context, s *Session) (int, error) {
	return a.save(ctx, s, true)
}

// SaveDirty saves s only when it has unsaved changes. A zero version and
// nil error mean nothing was written.
func (a *Autosaver) SaveDirty(ctx context.Context, s *Session) (int, error) {
	return a.save(ctx, s, false)
}

func (a *Autosaver) save(ctx context.Context, s *Session, force bool) (int, error) {
	if !s.Loaded() || (!force && !s.Dirty()) {
		return 0, nil
	}
	def, rev := s.Snapshot()
	key := saveKey{session: s.ID(), flow: def.FlowID}

	a.mu.Lock()
	if a.conflicted[key] && !force {
		a.mu.Unlock()
		return 0, nil
	}
	expected, known := a.versions[key]
	if force {
		known = false
	}
	a.mu.Unlock()

	var version int
	err := a.runner.Run(ctx, func(ctx context.Context) error {
		if !known {
			current, err := a.store.Load(ctx, def.FlowID)
			if err != nil {
				return err
			}
			expected = 0
			if current != nil {
				expected = current.Version
			}
			known = true
		}
		var err error
		version, err = a.store.SaveIfVersion(ctx, &store.Record{FlowID: def.FlowID, Definition: def}, expected)
		return err
	})

	a.mu.Lock()
	defer a.mu.Unlock()
	if err != nil {
		if store.IsConflict(err) {
			a.conflicted[key] = true
			delete(a.versions, key)
			a.logger.Warn("flow changed in store, autosave paused", "flow_id", def.FlowID, "expected_version", expected)
		}
		return 0, err
	}
	a.versions[key] = version
	delete(a.conflicted, key)
	s.MarkSaved(rev)
	a.logger.Debug("flow saved", "flow_id", def.FlowID, "version", version, "revision", rev.Seq)
	return version, nil
}

// Conflicted reports whether autosaving the flow loaded in s is paused
// after a conflict.
func (a *Autosaver) Conflicted(s *Session) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.conflicted[saveKey{session: s.ID(), flow: s.FlowID()}]
}
