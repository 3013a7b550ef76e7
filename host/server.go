package host

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	goerrors "github.com/goliatone/go-errors"
	"github.com/gorilla/websocket"

	designer "github.com/goliatone/go-flow-designer"
	"github.com/goliatone/go-flow-designer/data"
	"github.com/goliatone/go-flow-designer/flow"
	"github.com/goliatone/go-flow-designer/graph"
	"github.com/goliatone/go-flow-designer/layout"
	"github.com/goliatone/go-flow-designer/store"
	"github.com/goliatone/go-flow-designer/variables"
)

// APIResponse is the body of every API reply.
type APIResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   *Error `json:"error,omitempty"`
}

// DocumentRequest is the body of POST /api/document.
type DocumentRequest struct {
	Meta  graph.Meta   `json:"meta"`
	Nodes []graph.Node `json:"nodes"`
	Edges []graph.Edge `json:"edges"`
}

// VariablesRequest is the body of POST /api/variables.
type VariablesRequest struct {
	Text      string                   `json:"text"`
	Variables map[string]flow.Variable `json:"variables"`
}

type Server struct {
	hub         *Hub
	dispatcher  *Dispatcher
	store       store.Store
	transformer *graph.Transformer
	layout      *layout.Adapter
	logger      designer.Logger
	mode        string
	pongWait    time.Duration
	upgrader    websocket.Upgrader
	engine      *gin.Engine
}

type ServerOption func(*Server)

func WithHub(h *Hub) ServerOption {
	return func(s *Server) {
		if h != nil {
			s.hub = h
		}
	}
}

func WithDispatcher(d *Dispatcher) ServerOption {
	return func(s *Server) {
		if d != nil {
			s.dispatcher = d
		}
	}
}

// WithStore enables the /api/flows endpoints.
func WithStore(st store.Store) ServerOption {
	return func(s *Server) {
		s.store = st
	}
}

func WithTransformer(t *graph.Transformer) ServerOption {
	return func(s *Server) {
		if t != nil {
			s.transformer = t
		}
	}
}

func WithLayout(a *layout.Adapter) ServerOption {
	return func(s *Server) {
		if a != nil {
			s.layout = a
		}
	}
}

func WithLogger(l designer.Logger) ServerOption {
	return func(s *Server) {
		s.logger = designer.NormalizeLogger(l)
	}
}

// WithMode sets the gin mode: debug, release or test.
func WithMode(mode string) ServerOption {
	return func(s *Server) {
		s.mode = mode
	}
}

// WithKeepalive sets how long a websocket peer may stay silent before it
// is dropped. Pings are sent at nine tenths of that interval.
func WithKeepalive(pongWait time.Duration) ServerOption {
	return func(s *Server) {
		if pongWait > 0 {
			s.pongWait = pongWait
		}
	}
}

func NewServer(opts ...ServerOption) *Server {
	s := &Server{
		logger:   designer.NormalizeLogger(nil),
		mode:     gin.ReleaseMode,
		pongWait: DefaultPongWait,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	if s.hub == nil {
		s.hub = NewHub(WithHubLogger(s.logger))
	}
	if s.dispatcher == nil {
		s.dispatcher = NewDispatcher(RecoverMiddleware(s.logger), LoggingMiddleware(s.logger))
	}
	if s.transformer == nil {
		s.transformer = graph.NewTransformer(graph.WithLogger(s.logger))
	}
	if s.layout == nil {
		s.layout = layout.NewAdapter(layout.WithLogger(s.logger))
	}
	gin.SetMode(s.mode)
	s.engine = s.routes()
	return s
}

// Handler returns the HTTP handler with every route mounted.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) Hub() *Hub {
	return s.hub
}

// Run serves on addr until ctx ends, then shuts down the HTTP server and
// closes every session.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.engine, ReadHeaderTimeout: 10 * time.Second}
	errc := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", "addr", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn("http shutdown failed", "error", err)
	}
	return s.hub.Shutdown(shutdownCtx)
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(s.requestLogger())
	r.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	})

	r.GET("/health", s.handleHealth)
	r.GET("/ws", s.handleWS)

	api := r.Group("/api")
	api.GET("/schemas", s.handleSchemas)
	api.GET("/schemas/:type", s.handleSchema)
	api.GET("/sample", s.handleSample)
	api.GET("/jsonschema", s.handleJSONSchema)
	api.POST("/graph", s.handleGraph)
	api.POST("/document", s.handleDocument)
	api.POST("/layout", s.handleLayout)
	api.POST("/validate", s.handleValidate)
	api.POST("/variables", s.handleVariables)

	flows := api.Group("/flows")
	flows.GET("", s.handleListFlows)
	flows.GET("/:id", s.handleGetFlow)
	flows.PUT("/:id", s.handlePutFlow)
	flows.DELETE("/:id", s.handleDeleteFlow)
	return r
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("request", "method", c.Request.Method, "path", c.FullPath(),
			"status", c.Writer.Status(), "duration", time.Since(start))
	}
}

func sendSuccess(c *gin.Context, data any) {
	c.JSON(http.StatusOK, APIResponse{Success: true, Data: data})
}

func sendError(c *gin.Context, err error) {
	c.JSON(HTTPStatus(err), APIResponse{Success: false, Error: ErrorFrom(err)})
}

func (s *Server) handleHealth(c *gin.Context) {
	sendSuccess(c, gin.H{"status": "healthy", "timestamp": time.Now().Unix(), "sessions": s.hub.Len()})
}

func (s *Server) handleWS(c *gin.Context) {
	ws, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	conn := NewConn(ws, s.hub, s.dispatcher, s.logger, WithPongWait(s.pongWait))
	if err := conn.Serve(c.Request.Context()); err != nil {
		s.logger.Debug("websocket closed", "error", err)
	}
}

func (s *Server) handleSchemas(c *gin.Context) {
	sendSuccess(c, s.transformer.Registry().Describe())
}

func (s *Server) handleSchema(c *gin.Context) {
	sch, err := s.transformer.Registry().Get(flow.NodeType(c.Param("type")))
	if err != nil {
		sendError(c, err)
		return
	}
	sendSuccess(c, sch.Describe())
}

func (s *Server) handleSample(c *gin.Context) {
	def, err := data.SampleFlow()
	if err != nil {
		sendError(c, err)
		return
	}
	sendSuccess(c, def)
}

func (s *Server) handleJSONSchema(c *gin.Context) {
	c.JSON(http.StatusOK, flow.JSONSchema())
}

// readFlow decodes a JSON or YAML flow body without validating it.
func readFlow(c *gin.Context) (flow.Definition, error) {
	raw, err := c.GetRawData()
	if err != nil {
		return flow.Definition{}, goerrors.Wrap(err, goerrors.CategoryBadInput, "cannot read body").
			WithTextCode(designer.CodeInputInvalid)
	}
	return flow.ParseUnchecked(raw)
}

func (s *Server) handleGraph(c *gin.Context) {
	def, err := readFlow(c)
	if err != nil {
		sendError(c, err)
		return
	}
	g, err := s.transformer.ToGraph(def)
	if err != nil {
		sendError(c, err)
		return
	}
	sendSuccess(c, gin.H{"meta": graph.MetaOf(def), "nodes": g.Nodes, "edges": g.Edges})
}

func (s *Server) handleDocument(c *gin.Context) {
	var req DocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		sendError(c, goerrors.Wrap(err, goerrors.CategoryBadInput, "invalid document request").
			WithTextCode(designer.CodeJSONInvalid))
		return
	}
	sendSuccess(c, s.transformer.ToDocument(req.Meta, req.Nodes, req.Edges))
}

func (s *Server) handleLayout(c *gin.Context) {
	def, err := readFlow(c)
	if err != nil {
		sendError(c, err)
		return
	}
	g, err := s.transformer.ToGraph(def)
	if err != nil {
		sendError(c, err)
		return
	}
	nodes, err := s.layout.Apply(c.Request.Context(), g.Nodes, g.Edges)
	if err != nil {
		sendError(c, err)
		return
	}
	sendSuccess(c, s.transformer.ToDocument(graph.MetaOf(def), nodes, g.Edges))
}

func (s *Server) handleValidate(c *gin.Context) {
	def, err := readFlow(c)
	if err != nil {
		sendError(c, err)
		return
	}
	diags := graph.Diagnose(def, s.transformer.Registry())
	sendSuccess(c, gin.H{"valid": !flow.HasErrors(diags), "diagnostics": diags})
}

func (s *Server) handleVariables(c *gin.Context) {
	var req VariablesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		sendError(c, goerrors.Wrap(err, goerrors.CategoryBadInput, "invalid variables request").
			WithTextCode(designer.CodeJSONInvalid))
		return
	}
	sendSuccess(c, gin.H{
		"references": variables.Extract(req.Text),
		"undefined":  variables.FindUndefined(req.Text, req.Variables),
		"spans":      variables.Highlight(req.Text, req.Variables),
	})
}

func (s *Server) requireStore(c *gin.Context) bool {
	if s.store != nil {
		return true
	}
	c.JSON(http.StatusNotImplemented, APIResponse{Error: &Error{Code: "STORE_DISABLED", Message: "no flow store configured"}})
	return false
}

func (s *Server) handleListFlows(c *gin.Context) {
	if !s.requireStore(c) {
		return
	}
	records, err := s.store.List(c.Request.Context())
	if err != nil {
		sendError(c, err)
		return
	}
	sendSuccess(c, records)
}

func (s *Server) handleGetFlow(c *gin.Context) {
	if !s.requireStore(c) {
		return
	}
	id := c.Param("id")
	rec, err := s.store.Load(c.Request.Context(), id)
	if err != nil {
		sendError(c, err)
		return
	}
	if rec == nil {
		sendError(c, designer.NewError("flow not found", goerrors.CategoryBadInput, designer.CodeFlowNotFound,
			map[string]any{"flow_id": id}))
		return
	}
	sendSuccess(c, rec)
}

// handlePutFlow stores the body under :id. With ?version=N the write only
// succeeds when the stored version is N.
func (s *Server) handlePutFlow(c *gin.Context) {
	if !s.requireStore(c) {
		return
	}
	def, err := readFlow(c)
	if err != nil {
		sendError(c, err)
		return
	}
	def.FlowID = c.Param("id")
	if err := flow.Validate(def); err != nil {
		sendError(c, err)
		return
	}

	var version int
	if raw := c.Query("version"); raw != "" {
		expected, perr := strconv.Atoi(raw)
		if perr != nil {
			sendError(c, designer.NewError("version must be a number", goerrors.CategoryBadInput,
				designer.CodeInputInvalid, map[string]any{"version": raw}))
			return
		}
		version, err = s.store.SaveIfVersion(c.Request.Context(), &store.Record{FlowID: def.FlowID, Definition: def}, expected)
	} else {
		version, err = store.Save(c.Request.Context(), s.store, def)
	}
	if err != nil {
		sendError(c, err)
		return
	}
	sendSuccess(c, gin.H{"flowId": def.FlowID, "version": version})
}

func (s *Server) handleDeleteFlow(c *gin.Context) {
	if !s.requireStore(c) {
		return
	}
	if err := s.store.Delete(c.Request.Context(), c.Param("id")); err != nil {
		sendError(c, err)
		return
	}
	sendSuccess(c, gin.H{"flowId": c.Param("id")})
}
