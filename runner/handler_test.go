package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	designer "github.com/goliatone/go-flow-designer"
)

func TestHandler_NoError_NoRetries(t *testing.T) {
	h := NewHandler()

	cf := countingFunc{failUntil: 0}
	if err := h.Run(context.Background(), cf.fn); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cf.calls != 1 {
		t.Errorf("expected calls=1, got %d", cf.calls)
	}
	runs, success := h.Stats()
	if runs != 1 || success != 1 {
		t.Errorf("expected runs=1 success=1, got %d %d", runs, success)
	}
}

func TestHandler_SuccessOnSecondAttempt(t *testing.T) {
	h := NewHandler(WithMaxRetries(3), WithErrorHandler(nil))

	cf := countingFunc{failUntil: 1}
	h.Run(context.Background(), cf.fn)

	if cf.calls != 2 {
		t.Errorf("expected calls=2, got %d", cf.calls)
	}
	if runs, success := h.Stats(); runs != 1 || success != 1 {
		t.Errorf("expected runs=1 success=1, got %d %d", runs, success)
	}
}

func TestHandler_AllAttemptsFail(t *testing.T) {
	var reported []error
	h := NewHandler(
		WithMaxRetries(2),
		WithErrorHandler(func(err error) { reported = append(reported, err) }),
	)

	cf := countingFunc{failUntil: 5}
	err := h.Run(context.Background(), cf.fn)
	if err == nil {
		t.Fatal("expected last attempt error")
	}

	if cf.calls != 3 {
		t.Errorf("expected calls=3 (1 initial + 2 retries), got %d", cf.calls)
	}
	if _, success := h.Stats(); success != 0 {
		t.Errorf("expected no successful runs, got %d", success)
	}
	// two intermediate failures plus the final one
	if len(reported) != 3 {
		t.Errorf("expected 3 reported errors, got %d", len(reported))
	}
}

func TestHandler_Timeout(t *testing.T) {
	h := NewHandler(
		WithTimeout(50*time.Millisecond),
		WithMaxRetries(3),
		WithErrorHandler(nil),
	)

	calls := 0
	start := time.Now()
	err := h.Run(context.Background(), func(ctx context.Context) error {
		calls++
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(500 * time.Millisecond):
			return nil
		}
	})
	elapsed := time.Since(start)

	if elapsed >= 500*time.Millisecond {
		t.Error("expected function to time out quickly, but took too long")
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected no retries after the context ended, got %d calls", calls)
	}
}

func TestHandler_Concurrency(t *testing.T) {
	h := NewHandler(WithMaxRetries(1), WithErrorHandler(nil))
	wg := sync.WaitGroup{}
	const goroutines = 10

	var mu sync.Mutex
	calls := map[int]int{}

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			h.Run(context.Background(), func(context.Context) error {
				mu.Lock()
				defer mu.Unlock()
				calls[id]++
				if calls[id] == 1 {
					return fmt.Errorf("first attempt of %d", id)
				}
				return nil
			})
		}(i)
	}
	wg.Wait()

	runs, success := h.Stats()
	if runs != goroutines {
		t.Errorf("expected %d runs, got %d", goroutines, runs)
	}
	if success != goroutines {
		t.Errorf("expected %d successful runs, got %d", goroutines, success)
	}
}

func TestHandler_Logger(t *testing.T) {
	var buf bytes.Buffer
	h := NewHandler(
		WithLogger(designer.NewFmtLogger(&buf)),
		WithMaxRetries(1),
		WithName("autosave"),
	)

	cf := countingFunc{failUntil: 2}
	h.Run(context.Background(), cf.fn)

	out := buf.String()
	if !strings.Contains(out, "ERROR") {
		t.Errorf("expected error logs, got %q", out)
	}
	if !strings.Contains(out, "autosave") {
		t.Errorf("expected runner name in logs, got %q", out)
	}
}

func TestHandler_RecoversPanics(t *testing.T) {
	h := NewHandler(WithLogger(designer.NewFmtLogger(&bytes.Buffer{})))

	err := h.Run(context.Background(), func(context.Context) error {
		panic("layout exploded")
	})
	if err == nil {
		t.Fatal("expected panic to surface as error")
	}
	if !designer.HasCode(err, designer.CodePanic) {
		t.Errorf("expected PANIC code, got %v", err)
	}
}

func TestHandler_BackoffStopsWhenContextEnds(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 40*time.Millisecond)
	defer cancel()
	h := NewHandler(
		WithMaxRetries(10),
		WithErrorHandler(nil),
		WithRetryStrategy(ExponentialBackoffStrategy{Base: time.Second, Factor: 2}),
	)

	calls := 0
	start := time.Now()
	err := h.Run(ctx, func(context.Context) error {
		calls++
		return errors.New("store offline")
	})
	if err == nil || calls != 1 {
		t.Fatalf("expected one failed attempt, got %d calls and %v", calls, err)
	}
	if time.Since(start) >= time.Second {
		t.Error("expected the backoff wait to end with the context")
	}
}

func TestHandler_PermanentErrorStopsRetries(t *testing.T) {
	permanent := errors.New("bad document")
	h := NewHandler(
		WithMaxRetries(5),
		WithErrorHandler(nil),
		WithRetryStrategy(PermanentStrategy{
			Strategy:  NoDelayStrategy{},
			Permanent: func(err error) bool { return errors.Is(err, permanent) },
		}),
	)

	calls := 0
	h.Run(context.Background(), func(context.Context) error {
		calls++
		return permanent
	})
	if calls != 1 {
		t.Errorf("expected a single attempt, got %d", calls)
	}
}

func TestHandler_GateHoldsAttempts(t *testing.T) {
	gate := NewGate()
	gate.Pause()
	h := NewHandler(WithGate(gate))

	started := make(chan struct{})
	result := make(chan error, 1)
	go func() {
		close(started)
		result <- h.Run(context.Background(), noErrorFunc)
	}()
	<-started

	select {
	case <-result:
		t.Fatal("expected run to wait for the gate")
	case <-time.After(30 * time.Millisecond):
	}

	gate.Resume()
	select {
	case err := <-result:
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("run did not resume")
	}
}

func TestRunQuery(t *testing.T) {
	h := NewHandler(WithMaxRetries(2), WithErrorHandler(nil))

	calls := 0
	res, err := RunQuery(context.Background(), h, func(context.Context) (string, error) {
		calls++
		if calls == 1 {
			return "partial", errors.New("forced failure")
		}
		return "Hello, World!", nil
	})
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if res != "Hello, World!" {
		t.Errorf("expected result='Hello, World!', got '%s'", res)
	}
}

func noErrorFunc(_ context.Context) error {
	return nil
}

type countingFunc struct {
	calls     int
	failUntil int // fail this many times, then succeed
}

func (cf *countingFunc) fn(_ context.Context) error {
	cf.calls++
	if cf.calls <= cf.failUntil {
		return fmt.Errorf("forced error attempt %d", cf.calls)
	}
	return nil
}
