package host

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/goliatone/go-errors"

	designer "github.com/goliatone/go-flow-designer"
	"github.com/goliatone/go-flow-designer/editor"
	"github.com/goliatone/go-flow-designer/flow"
	"github.com/goliatone/go-flow-designer/router"
)

// Message types exchanged with the embedding host.
const (
	TypeIframeReady = "iframe-ready"
	TypeHostInit    = "host-init-flow"
	TypeFlowChange  = "iframe-flow-change"
	TypeGraphChange = "graph-change"
	TypeEditorError = "editor-error"
	TypeAck         = "editor-ack"
)

// Envelope is a single websocket frame. ID is optional and echoed back in
// the ack or error produced by the message.
type Envelope struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Request is what a Handler receives.
type Request struct {
	Type    string
	Session *editor.Session
	Payload json.RawMessage
}

// Handler processes one message for a session and returns the ack payload.
type Handler func(ctx context.Context, req Request) (any, error)

// Middleware wraps handler execution with cross-cutting behavior.
type Middleware func(next Handler) Handler

// Dispatcher routes envelopes to handlers by message type.
type Dispatcher struct {
	mux        *router.Mux[Handler]
	middleware []Middleware
}

func NewDispatcher(mw ...Middleware) *Dispatcher {
	d := &Dispatcher{mux: router.NewMux[Handler](), middleware: mw}
	d.Handle(TypeHostInit, handleHostInit)
	registerAction[editor.AddNode](d, editor.TypeAddNode)
	registerAction[editor.RemoveNode](d, editor.TypeRemoveNode)
	registerAction[editor.MoveNode](d, editor.TypeMoveNode)
	registerAction[editor.Connect](d, editor.TypeConnect)
	registerAction[editor.RemoveEdge](d, editor.TypeRemoveEdge)
	registerAction[editor.UpdateProperty](d, editor.TypeUpdateProperty)
	registerAction[editor.InputProperty](d, editor.TypeInputProperty)
	registerAction[editor.UnsetProperty](d, editor.TypeUnsetProperty)
	registerAction[editor.ReplaceProperties](d, editor.TypeReplaceProperties)
	registerAction[editor.AppendListItem](d, editor.TypeAppendListItem)
	registerAction[editor.RemoveListItem](d, editor.TypeRemoveListItem)
	registerAction[editor.MoveListItem](d, editor.TypeMoveListItem)
	registerAction[editor.AddEntry](d, editor.TypeAddEntry)
	registerAction[editor.RenameKey](d, editor.TypeRenameKey)
	registerAction[editor.DeleteKey](d, editor.TypeDeleteKey)
	registerAction[editor.AddTreeOption](d, editor.TypeAddTreeOption)
	registerAction[editor.RemoveTreeOption](d, editor.TypeRemoveTreeOption)
	registerAction[editor.AddChildQuestion](d, editor.TypeAddChildQuestion)
	registerAction[editor.RemoveChildQuestion](d, editor.TypeRemoveChildQuestion)
	registerAction[editor.UpdateMeta](d, editor.TypeUpdateMeta)
	registerAction[editor.SetVariable](d, editor.TypeSetVariable)
	registerAction[editor.RenameVariable](d, editor.TypeRenameVariable)
	registerAction[editor.RemoveVariable](d, editor.TypeRemoveVariable)
	registerAction[editor.RunLayout](d, editor.TypeRunLayout)
	return d
}

// Handle registers h for pattern. Patterns may use router wildcards.
func (d *Dispatcher) Handle(pattern string, h Handler) router.Subscription {
	return d.mux.Add(pattern, h)
}

// Types lists the registered message patterns.
func (d *Dispatcher) Types() []string {
	return d.mux.Patterns()
}

// Dispatch runs every handler registered for env.Type and returns the
// result of the last one.
func (d *Dispatcher) Dispatch(ctx context.Context, s *editor.Session, env Envelope) (any, error) {
	entries := d.mux.Get(env.Type)
	if len(entries) == 0 {
		return nil, designer.NewError(fmt.Sprintf("unknown message type %q", env.Type), errors.CategoryBadInput,
			designer.CodeUnknownMessage, map[string]any{"type": env.Type})
	}
	req := Request{Type: env.Type, Session: s, Payload: env.Payload}
	var out any
	for _, e := range entries {
		h := e.Handler
		for i := len(d.middleware) - 1; i >= 0; i-- {
			if d.middleware[i] != nil {
				h = d.middleware[i](h)
			}
		}
		res, err := h(ctx, req)
		if err != nil {
			return nil, err
		}
		out = res
	}
	return out, nil
}

func registerAction[A editor.Action](d *Dispatcher, typ string) {
	d.Handle(typ, func(ctx context.Context, req Request) (any, error) {
		var action A
		if len(req.Payload) > 0 {
			if err := json.Unmarshal(req.Payload, &action); err != nil {
				return nil, errors.Wrap(err, errors.CategoryBadInput, "invalid action payload").
					WithTextCode(designer.CodeInvalidMessage).
					WithMetadata(map[string]any{"type": typ})
			}
		}
		if err := req.Session.Apply(ctx, action); err != nil {
			return nil, err
		}
		return nil, nil
	})
}

func handleHostInit(ctx context.Context, req Request) (any, error) {
	def, err := flow.ParseUnchecked(req.Payload)
	if err != nil {
		return nil, err
	}
	if def.FlowID == "" {
		return nil, designer.NewError("flow id is required", errors.CategoryBadInput, designer.CodeFlowInvalid)
	}
	loaded, err := req.Session.LoadIfChanged(ctx, def)
	if err != nil {
		return nil, err
	}
	return map[string]any{"loaded": loaded, "flowId": def.FlowID}, nil
}

// LoggingMiddleware logs each handled message with its duration.
func LoggingMiddleware(logger designer.Logger) Middleware {
	logger = designer.NormalizeLogger(logger)
	return func(next Handler) Handler {
		return func(ctx context.Context, req Request) (any, error) {
			start := time.Now()
			res, err := next(ctx, req)
			if err != nil {
				logger.Warn("message failed", "type", req.Type, "session", req.Session.ID(),
					"duration", time.Since(start), "error", err)
				return res, err
			}
			logger.Debug("message handled", "type", req.Type, "session", req.Session.ID(), "duration", time.Since(start))
			return res, nil
		}
	}
}

// RecoverMiddleware turns handler panics into PANIC errors.
func RecoverMiddleware(logger designer.Logger) Middleware {
	recoverer := designer.MakeRecoverer(designer.LoggerPanicLogger(logger))
	return func(next Handler) Handler {
		return func(ctx context.Context, req Request) (res any, err error) {
			defer recoverer(req.Type, &err)
			return next(ctx, req)
		}
	}
}
