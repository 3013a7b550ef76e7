package designer

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-logger/glog"
)

// Logger is the logging contract shared by every package in the module.
// Arguments after msg are slog style key/value pairs.
type Logger interface {
	Trace(msg string, args ...any)
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
	Fatal(msg string, args ...any)
	WithContext(ctx context.Context) Logger
}

// FieldsLogger extends Logger with structured-field support.
type FieldsLogger interface {
	WithFields(map[string]any) Logger
}

type level int

const (
	levelTrace level = iota
	levelDebug
	levelInfo
	levelWarn
	levelError
	levelFatal
)

var levelNames = [...]string{"TRACE", "DEBUG", "INFO", "WARN", "ERROR", "FATAL"}

func parseLevel(name string) (level, bool) {
	for i, n := range levelNames {
		if strings.EqualFold(n, name) {
			return level(i), true
		}
	}
	return levelTrace, false
}

// FmtLogger writes plain text lines. It is the fallback when no go-logger
// instance is configured, and what tests use to capture output.
type FmtLogger struct {
	sink   *lineSink
	min    level
	fields map[string]any
}

// lineSink serializes writes of every logger derived from one FmtLogger.
type lineSink struct {
	mu  sync.Mutex
	out io.Writer
}

// NewFmtLogger logs every level to out, or to stdout when out is nil.
func NewFmtLogger(out io.Writer) *FmtLogger {
	if out == nil {
		out = os.Stdout
	}
	return &FmtLogger{sink: &lineSink{out: out}}
}

// WithLevel drops lines below the named level (trace, debug, info, warn,
// error). Unknown names keep the current threshold.
func (l *FmtLogger) WithLevel(name string) *FmtLogger {
	cp := *l
	if lv, ok := parseLevel(name); ok {
		cp.min = lv
	}
	return &cp
}

func (l *FmtLogger) Trace(msg string, args ...any) { l.write(levelTrace, msg, args) }
func (l *FmtLogger) Debug(msg string, args ...any) { l.write(levelDebug, msg, args) }
func (l *FmtLogger) Info(msg string, args ...any)  { l.write(levelInfo, msg, args) }
func (l *FmtLogger) Warn(msg string, args ...any)  { l.write(levelWarn, msg, args) }
func (l *FmtLogger) Error(msg string, args ...any) { l.write(levelError, msg, args) }
func (l *FmtLogger) Fatal(msg string, args ...any) { l.write(levelFatal, msg, args) }

// WithContext is a no-op; lines carry no request scoped values.
func (l *FmtLogger) WithContext(context.Context) Logger { return l }

// WithFields returns a logger appending fields, sorted by key, to each line.
func (l *FmtLogger) WithFields(fields map[string]any) Logger {
	cp := *l
	cp.fields = mergeFields(l.fields, fields)
	return &cp
}

func (l *FmtLogger) write(lv level, msg string, args []any) {
	if lv < l.min {
		return
	}
	switch {
	case len(args) == 0:
	case strings.Contains(msg, "%"):
		msg = fmt.Sprintf(msg, args...)
	default:
		msg += " " + formatArgs(args)
	}

	var sb strings.Builder
	sb.WriteString(time.Now().UTC().Format(time.RFC3339Nano))
	fmt.Fprintf(&sb, " %-5s %s", levelNames[lv], strings.TrimSpace(msg))
	if len(l.fields) > 0 {
		sb.WriteByte(' ')
		sb.WriteString(formatFields(l.fields))
	}
	sb.WriteByte('\n')

	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()
	io.WriteString(l.sink.out, sb.String())
}

// GlogLogger adapts a go-logger logger to Logger.
type GlogLogger struct {
	logger glog.Logger
}

// NewGlogLogger wraps base. A nil base falls back to FmtLogger.
func NewGlogLogger(base glog.Logger) Logger {
	if base == nil {
		return NewFmtLogger(nil)
	}
	return GlogLogger{logger: base}
}

func (l GlogLogger) Trace(msg string, args ...any) { l.logger.Trace(msg, args...) }
func (l GlogLogger) Debug(msg string, args ...any) { l.logger.Debug(msg, args...) }
func (l GlogLogger) Info(msg string, args ...any)  { l.logger.Info(msg, args...) }
func (l GlogLogger) Warn(msg string, args ...any)  { l.logger.Warn(msg, args...) }
func (l GlogLogger) Error(msg string, args ...any) { l.logger.Error(msg, args...) }
func (l GlogLogger) Fatal(msg string, args ...any) { l.logger.Fatal(msg, args...) }

func (l GlogLogger) WithContext(ctx context.Context) Logger {
	return GlogLogger{logger: l.logger.WithContext(ctx)}
}

func (l GlogLogger) WithFields(fields map[string]any) Logger {
	if fl, ok := l.logger.(glog.FieldsLogger); ok {
		return GlogLogger{logger: fl.WithFields(fields)}
	}
	return l
}

// NormalizeLogger returns logger or the stdout fallback when nil.
func NormalizeLogger(logger Logger) Logger {
	if logger == nil {
		return NewFmtLogger(nil)
	}
	return logger
}

// WithLoggerFields attaches fields when the logger supports them.
func WithLoggerFields(logger Logger, fields map[string]any) Logger {
	logger = NormalizeLogger(logger)
	if fl, ok := logger.(FieldsLogger); ok {
		return fl.WithFields(fields)
	}
	return logger
}

func mergeFields(a, b map[string]any) map[string]any {
	out := make(map[string]any, len(a)+len(b))
	for k, v := range a {
		out[k] = v
	}
	for k, v := range b {
		out[k] = v
	}
	return out
}

func formatArgs(args []any) string {
	parts := make([]string, 0, len(args)/2+1)
	for i := 0; i < len(args); i += 2 {
		if i+1 == len(args) {
			parts = append(parts, fmt.Sprint(args[i]))
			break
		}
		parts = append(parts, fmt.Sprintf("%v=%v", args[i], args[i+1]))
	}
	return strings.Join(parts, " ")
}

func formatFields(fields map[string]any) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, fields[k]))
	}
	return strings.Join(parts, " ")
}
