package designer

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/goliatone/go-errors"
)

// PanicLogger receives a recovered panic value with the stack of the
// panicking goroutine, runtime frames removed.
type PanicLogger func(funcName string, err any, stack []byte, fields ...map[string]any)

// LoggerPanicLogger reports recovered panics through logger at error level.
func LoggerPanicLogger(logger Logger) PanicLogger {
	logger = NormalizeLogger(logger)
	return func(funcName string, err any, stack []byte, fields ...map[string]any) {
		l := logger
		if len(fields) > 0 && fields[0] != nil {
			l = WithLoggerFields(l, fields[0])
		}
		l.Error("recovered from panic", "func", funcName, "error", err, "stack", string(stack))
	}
}

// MakePanicHandler returns a function to defer in goroutines that have no
// caller to report to. The panic is logged and swallowed.
//
//	defer designer.MakePanicHandler(logger)("editor.emit", fields)
func MakePanicHandler(logger PanicLogger) func(funcName string, fields ...map[string]any) {
	return func(funcName string, fields ...map[string]any) {
		if r := recover(); r != nil {
			logger(funcName, r, captureStack(), fields...)
		}
	}
}

// MakeRecoverer returns a function to defer in calls with an error result.
// The panic is logged and stored in errp as a PANIC error.
//
//	defer designer.MakeRecoverer(logger)("layout", &err)
func MakeRecoverer(logger PanicLogger) func(funcName string, errp *error) {
	return func(funcName string, errp *error) {
		r := recover()
		if r == nil {
			return
		}
		logger(funcName, r, captureStack())
		if errp != nil {
			*errp = NewError(fmt.Sprintf("panic in %s: %v", funcName, r), errors.CategoryHandler, CodePanic,
				map[string]any{"func": funcName})
		}
	}
}

func captureStack() []byte {
	buf := make([]byte, 8<<10)
	return cleanStackTrace(buf[:runtime.Stack(buf, false)])
}

// cleanStackTrace drops everything up to and including the runtime panic
// frame so the trace starts at the code that panicked.
func cleanStackTrace(stack []byte) []byte {
	lines := strings.Split(string(stack), "\n")
	for i, line := range lines {
		if strings.HasPrefix(line, "panic(") && i+2 < len(lines) {
			return []byte(strings.Join(lines[i+2:], "\n"))
		}
	}
	return stack
}
