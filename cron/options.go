package cron

import (
	"time"

	"github.com/goliatone/go-errors"
	designer "github.com/goliatone/go-flow-designer"
)

type Option func(*Scheduler)

// WithLocation sets the time zone cron expressions are evaluated in.
func WithLocation(loc *time.Location) Option {
	return func(s *Scheduler) {
		if loc != nil {
			s.location = loc
		}
	}
}

func WithLogger(logger designer.Logger) Option {
	return func(s *Scheduler) {
		s.logger = logger
	}
}

// WithSeconds accepts a leading seconds field in cron expressions.
func WithSeconds() Option {
	return func(s *Scheduler) {
		s.seconds = true
	}
}

// WithVerbose forwards robfig's scheduling messages at debug level.
func WithVerbose(verbose bool) Option {
	return func(s *Scheduler) {
		s.verbose = verbose
	}
}

// WithErrorHandler receives failed job runs and recovered panics.
func WithErrorHandler(handler func(error)) Option {
	return func(s *Scheduler) {
		if handler != nil {
			s.onError = handler
		}
	}
}

// cronLogger adapts designer.Logger to robfig's key/value logger.
type cronLogger struct {
	logger  designer.Logger
	verbose bool
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	if l.verbose {
		l.logger.Debug("cron "+msg, keysAndValues...)
	}
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron "+msg, append(keysAndValues, "error", err)...)
}

// panicReporter receives panics recovered by robfig's Recover wrapper.
type panicReporter struct {
	report func(error)
}

func (panicReporter) Info(string, ...any) {}

func (p panicReporter) Error(err error, msg string, _ ...any) {
	if err == nil {
		err = errors.New(msg, errors.CategoryHandler).WithTextCode(designer.CodePanic)
	}
	p.report(err)
}
