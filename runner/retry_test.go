package runner

import (
	"context"
	"fmt"
	"testing"
	"time"
)

func TestDecideRetryUsesDeciderWhenAvailable(t *testing.T) {
	strategy := fixedDecisionStrategy{
		decision: RetryDecision{
			ShouldRetry: false,
			Delay:       25 * time.Millisecond,
			Metadata: map[string]any{
				"source": "test",
			},
		},
	}

	decision := DecideRetry(strategy, 1, fmt.Errorf("boom"))
	if decision.ShouldRetry {
		t.Fatal("expected strategy decision to disable retry")
	}
	if decision.Delay != 25*time.Millisecond {
		t.Fatalf("unexpected delay: %s", decision.Delay)
	}
	if decision.Metadata["source"] != "test" {
		t.Fatal("expected metadata propagation")
	}
}

func TestDecideRetryFallsBackToSleepDuration(t *testing.T) {
	strategy := ExponentialBackoffStrategy{
		Base:   10 * time.Millisecond,
		Factor: 2,
		Max:    100 * time.Millisecond,
	}
	decision := DecideRetry(strategy, 2, nil)
	if !decision.ShouldRetry {
		t.Fatal("expected fallback strategy to retry")
	}
	if decision.Delay != 40*time.Millisecond {
		t.Fatalf("unexpected fallback delay: %s", decision.Delay)
	}
}

type fixedDecisionStrategy struct {
	decision RetryDecision
}

func (f fixedDecisionStrategy) SleepDuration(int, error) time.Duration {
	return time.Second
}

func (f fixedDecisionStrategy) Decide(int, error) RetryDecision {
	return f.decision
}

func TestGateCloseReleasesWaiters(t *testing.T) {
	g := NewGate()
	g.Pause()

	done := make(chan error, 1)
	go func() {
		done <- g.Wait(context.Background())
	}()
	g.Close()

	select {
	case err := <-done:
		if err != ErrGateClosed {
			t.Fatalf("expected ErrGateClosed, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("waiter not released")
	}
	g.Close()
}

func TestGateNestedPauses(t *testing.T) {
	g := NewGate()
	g.Pause()
	g.Pause()

	g.Resume()
	if !g.Paused() {
		t.Fatal("gate opened before every pause was resumed")
	}
	g.Resume()
	if g.Paused() {
		t.Fatal("gate still paused")
	}
	if err := g.Wait(context.Background()); err != nil {
		t.Fatalf("unexpected wait error: %v", err)
	}
}
