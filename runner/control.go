package runner

import (
	"context"
	"sync"
)

// Gate lets a caller hold back work without cancelling it. While paused,
// Wait blocks until Resume, Close or the context ends. Pauses nest: the
// gate opens once every Pause has been matched by a Resume.
type Gate struct {
	mu sync.Mutex

	holds  int
	paused bool
	resume chan struct{}
	closed chan struct{}
}

func NewGate() *Gate {
	return &Gate{
		resume: make(chan struct{}),
		closed: make(chan struct{}),
	}
}

// Wait returns nil once the gate is open, ErrGateClosed after Close.
func (g *Gate) Wait(ctx context.Context) error {
	if g == nil {
		return ctx.Err()
	}
	for {
		g.mu.Lock()
		paused := g.paused
		resume := g.resume
		closed := g.closed
		g.mu.Unlock()

		select {
		case <-closed:
			return ErrGateClosed
		default:
		}
		if !paused {
			return ctx.Err()
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-closed:
			return ErrGateClosed
		case <-resume:
		}
	}
}

func (g *Gate) Pause() {
	if g == nil {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.holds++
	if g.paused {
		return
	}
	g.paused = true
	g.resume = make(chan struct{})
}

func (g *Gate) Resume() {
	if g == nil {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.paused {
		return
	}
	g.holds--
	if g.holds > 0 {
		return
	}
	g.holds = 0
	g.paused = false
	close(g.resume)
}

func (g *Gate) Paused() bool {
	if g == nil {
		return false
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.paused
}

// Close releases every waiter with ErrGateClosed. It is safe to call twice.
func (g *Gate) Close() {
	if g == nil {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	select {
	case <-g.closed:
		return
	default:
	}
	close(g.closed)
	g.holds = 0
	if g.paused {
		g.paused = false
		close(g.resume)
	}
}
