package host

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	designer "github.com/goliatone/go-flow-designer"
	"github.com/goliatone/go-flow-designer/editor"
	"github.com/goliatone/go-flow-designer/flow"
	"github.com/goliatone/go-flow-designer/graph"
)

const (
	writeWait  = 10 * time.Second
	sendBuffer = 64

	// DefaultPongWait is how long a peer may stay silent before its
	// connection and session are dropped.
	DefaultPongWait = 60 * time.Second
)

// ReadyPayload is sent with iframe-ready once the session exists.
type ReadyPayload struct {
	SessionID string   `json:"sessionId"`
	FlowID    string   `json:"flowId,omitempty"`
	Types     []string `json:"types"`
}

// AckPayload answers a message that carried an id.
type AckPayload struct {
	Type   string `json:"type"`
	Result any    `json:"result,omitempty"`
}

// ErrorPayload reports a failed message.
type ErrorPayload struct {
	Type  string `json:"type"`
	Error *Error `json:"error"`
}

// Conn is one websocket peer bound to its own editing session.
type Conn struct {
	ws         *websocket.Conn
	hub        *Hub
	dispatcher *Dispatcher
	logger     designer.Logger

	pongWait   time.Duration
	pingPeriod time.Duration

	send chan Envelope
	done chan struct{}
	once sync.Once
}

type ConnOption func(*Conn)

// WithPongWait sets the read deadline renewed by every pong or frame.
func WithPongWait(d time.Duration) ConnOption {
	return func(c *Conn) {
		if d > 0 {
			c.pongWait = d
			c.pingPeriod = d * 9 / 10
		}
	}
}

func NewConn(ws *websocket.Conn, hub *Hub, dispatcher *Dispatcher, logger designer.Logger, opts ...ConnOption) *Conn {
	c := &Conn{
		ws:         ws,
		hub:        hub,
		dispatcher: dispatcher,
		logger:     designer.NormalizeLogger(logger),
		pongWait:   DefaultPongWait,
		pingPeriod: DefaultPongWait * 9 / 10,
		send:       make(chan Envelope, sendBuffer),
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// Serve opens a session, announces it with iframe-ready and handles
// frames until the peer goes away or ctx ends.
func (c *Conn) Serve(ctx context.Context) error {
	defer c.ws.Close()

	session, err := c.hub.Open(ctx,
		editor.OnChange(func(def flow.Definition) { c.push(TypeFlowChange, "", def) }),
		editor.OnGraph(func(g graph.Graph) { c.push(TypeGraphChange, "", g) }),
	)
	if err != nil {
		c.logger.Error("cannot open session", "error", err)
		_ = c.ws.WriteJSON(envelope(TypeEditorError, "", ErrorPayload{Error: ErrorFrom(err)}))
		return err
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		c.writeLoop()
	}()

	c.push(TypeIframeReady, "", ReadyPayload{
		SessionID: session.ID(),
		FlowID:    session.FlowID(),
		Types:     c.dispatcher.Types(),
	})

	stop := context.AfterFunc(ctx, func() { _ = c.ws.Close() })
	defer stop()

	err = c.readLoop(ctx, session)

	if cerr := c.hub.Close(context.WithoutCancel(ctx), session.ID()); cerr != nil {
		c.logger.Warn("session close failed", "session", session.ID(), "error", cerr)
	}
	c.stop()
	wg.Wait()
	return err
}

func (c *Conn) readLoop(ctx context.Context, session *editor.Session) error {
	_ = c.ws.SetReadDeadline(time.Now().Add(c.pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(c.pongWait))
	})
	for {
		var env Envelope
		if err := c.ws.ReadJSON(&env); err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) || ctx.Err() != nil {
				return nil
			}
			return err
		}
		_ = c.ws.SetReadDeadline(time.Now().Add(c.pongWait))
		res, err := c.dispatcher.Dispatch(ctx, session, env)
		if err != nil {
			c.push(TypeEditorError, env.ID, ErrorPayload{Type: env.Type, Error: ErrorFrom(err)})
			continue
		}
		if env.ID != "" {
			c.push(TypeAck, env.ID, AckPayload{Type: env.Type, Result: res})
		}
	}
}

func (c *Conn) writeLoop() {
	ticker := time.NewTicker(c.pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case env := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteJSON(env); err != nil {
				c.logger.Debug("write failed", "type", env.Type, "error", err)
				c.stop()
				return
			}
		case <-ticker.C:
			if err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				c.logger.Debug("ping failed", "error", err)
				c.stop()
				return
			}
		case <-c.done:
			return
		}
	}
}

// push queues a frame. Frames are dropped once the connection stopped.
func (c *Conn) push(typ, id string, payload any) {
	select {
	case c.send <- envelope(typ, id, payload):
	case <-c.done:
	}
}

func (c *Conn) stop() {
	c.once.Do(func() { close(c.done) })
}

func envelope(typ, id string, payload any) Envelope {
	env := Envelope{Type: typ, ID: id}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			raw, _ = json.Marshal(ErrorPayload{Type: typ, Error: ErrorFrom(err)})
			env.Type = TypeEditorError
		}
		env.Payload = raw
	}
	return env
}
