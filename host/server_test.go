package host

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	designer "github.com/goliatone/go-flow-designer"
	"github.com/goliatone/go-flow-designer/flow"
	"github.com/goliatone/go-flow-designer/graph"
	"github.com/goliatone/go-flow-designer/store"
)

const chainFlow = `{
  "flowId": "chain",
  "name": "Chain",
  "version": "1.0.0",
  "variables": {"user_name": {"name": "user_name", "type": "string"}},
  "nodes": [
    {"id": "start", "type": "start", "position": {"x": 0, "y": 0}, "properties": {"title": "Start"}},
    {"id": "hello", "type": "message", "position": {"x": 0, "y": 0}, "properties": {"message": "Hi {{user_name}}"}},
    {"id": "end", "type": "end", "position": {"x": 0, "y": 0}, "properties": {}}
  ],
  "edges": [
    {"id": "e1", "type": "default", "source": "start", "target": "hello"},
    {"id": "e2", "type": "default", "source": "hello", "target": "end"}
  ]
}`

type apiReply struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *Error          `json:"error"`
}

func newTestServer(t *testing.T, opts ...ServerOption) *Server {
	t.Helper()
	logger := designer.NewFmtLogger(nil)
	opts = append([]ServerOption{WithLogger(logger), WithMode("test")}, opts...)
	return NewServer(opts...)
}

func do(t *testing.T, s *Server, method, path, body string) (int, apiReply) {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	var reply apiReply
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &reply), rec.Body.String())
	}
	return rec.Code, reply
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	code, reply := do(t, s, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, code)
	assert.True(t, reply.Success)
	assert.Contains(t, string(reply.Data), `"healthy"`)
}

func TestCORSPreflight(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodOptions, "/api/graph", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestSchemasEndpoints(t *testing.T) {
	s := newTestServer(t)

	code, reply := do(t, s, http.MethodGet, "/api/schemas", "")
	require.Equal(t, http.StatusOK, code)
	var all []map[string]any
	require.NoError(t, json.Unmarshal(reply.Data, &all))
	assert.Len(t, all, len(flow.NodeTypes()))

	code, reply = do(t, s, http.MethodGet, "/api/schemas/message", "")
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(reply.Data), `"message"`)

	code, reply = do(t, s, http.MethodGet, "/api/schemas/teleport", "")
	assert.Equal(t, http.StatusNotFound, code)
	require.NotNil(t, reply.Error)
	assert.Equal(t, designer.CodeSchemaNotFound, reply.Error.Code)
}

func TestGraphEndpoint(t *testing.T) {
	s := newTestServer(t)
	code, reply := do(t, s, http.MethodPost, "/api/graph", chainFlow)
	require.Equal(t, http.StatusOK, code, reply.Error)

	var out struct {
		Meta  graph.Meta   `json:"meta"`
		Nodes []graph.Node `json:"nodes"`
		Edges []graph.Edge `json:"edges"`
	}
	require.NoError(t, json.Unmarshal(reply.Data, &out))
	assert.Equal(t, "chain", out.Meta.FlowID)
	assert.Len(t, out.Nodes, 3)
	assert.Len(t, out.Edges, 2)
}

func TestGraphEndpointRejectsBadJSON(t *testing.T) {
	s := newTestServer(t)
	code, reply := do(t, s, http.MethodPost, "/api/graph", `{"nodes": [`)
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	require.NotNil(t, reply.Error)
	assert.Equal(t, designer.CodeFlowInvalid, reply.Error.Code)
	assert.False(t, reply.Success)
}

func TestDocumentEndpointRoundTrip(t *testing.T) {
	s := newTestServer(t)
	_, reply := do(t, s, http.MethodPost, "/api/graph", chainFlow)

	code, reply := do(t, s, http.MethodPost, "/api/document", string(reply.Data))
	require.Equal(t, http.StatusOK, code, reply.Error)

	var def flow.Definition
	require.NoError(t, json.Unmarshal(reply.Data, &def))
	assert.Equal(t, "chain", def.FlowID)
	require.Len(t, def.Edges, 2)
	assert.Equal(t, "hello", def.Edges[0].Target.First())
}

func TestLayoutEndpoint(t *testing.T) {
	s := newTestServer(t)
	code, reply := do(t, s, http.MethodPost, "/api/layout", chainFlow)
	require.Equal(t, http.StatusOK, code, reply.Error)

	var def flow.Definition
	require.NoError(t, json.Unmarshal(reply.Data, &def))
	got := map[string]flow.Position{}
	for _, n := range def.Nodes {
		got[n.ID] = n.Position
	}
	assert.Equal(t, flow.Position{X: 0, Y: 0}, got["start"])
	assert.Equal(t, flow.Position{X: 380, Y: 0}, got["hello"])
	assert.Equal(t, flow.Position{X: 760, Y: 0}, got["end"])
}

func TestValidateEndpoint(t *testing.T) {
	s := newTestServer(t)

	code, reply := do(t, s, http.MethodPost, "/api/validate", chainFlow)
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(reply.Data), `"valid":true`)

	broken := `{"flowId": "b", "name": "B", "version": "1",
	  "nodes": [{"id": "start", "type": "start", "properties": {}}],
	  "edges": [{"id": "e1", "type": "default", "source": "start", "target": "ghost"}]}`
	code, reply = do(t, s, http.MethodPost, "/api/validate", broken)
	require.Equal(t, http.StatusOK, code)

	var out struct {
		Valid       bool              `json:"valid"`
		Diagnostics []flow.Diagnostic `json:"diagnostics"`
	}
	require.NoError(t, json.Unmarshal(reply.Data, &out))
	assert.False(t, out.Valid)

	codes := make([]string, 0, len(out.Diagnostics))
	for _, d := range out.Diagnostics {
		codes = append(codes, d.Code)
	}
	assert.Contains(t, codes, flow.DiagCodeUnknownNodeRef)
}

func TestVariablesEndpoint(t *testing.T) {
	s := newTestServer(t)
	body := `{"text": "Hi {{user_name}}, total {{amount}}", "variables": {"user_name": {"name": "user_name", "type": "string"}}}`
	code, reply := do(t, s, http.MethodPost, "/api/variables", body)
	require.Equal(t, http.StatusOK, code, reply.Error)

	var out struct {
		References []string `json:"references"`
		Undefined  []string `json:"undefined"`
		Spans      []struct {
			Name    string `json:"name"`
			Defined bool   `json:"defined"`
		} `json:"spans"`
	}
	require.NoError(t, json.Unmarshal(reply.Data, &out))
	assert.Equal(t, []string{"user_name", "amount"}, out.References)
	assert.Equal(t, []string{"amount"}, out.Undefined)
	require.Len(t, out.Spans, 2)
	assert.True(t, out.Spans[0].Defined)
	assert.False(t, out.Spans[1].Defined)
}

func TestSampleEndpoint(t *testing.T) {
	s := newTestServer(t)
	code, reply := do(t, s, http.MethodGet, "/api/sample", "")
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(reply.Data), `"credit_application_flow"`)
}

func TestJSONSchemaEndpoint(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/jsonschema", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"flowId"`)
}

func TestFlowsCRUD(t *testing.T) {
	s := newTestServer(t, WithStore(store.NewMemoryStore()))

	code, reply := do(t, s, http.MethodPut, "/api/flows/chain", chainFlow)
	require.Equal(t, http.StatusOK, code, reply.Error)
	assert.Contains(t, string(reply.Data), `"version":1`)

	code, reply = do(t, s, http.MethodPut, "/api/flows/chain?version=1", chainFlow)
	require.Equal(t, http.StatusOK, code, reply.Error)
	assert.Contains(t, string(reply.Data), `"version":2`)

	code, reply = do(t, s, http.MethodPut, "/api/flows/chain?version=1", chainFlow)
	assert.Equal(t, http.StatusConflict, code)
	require.NotNil(t, reply.Error)
	assert.Equal(t, designer.CodeVersionConflict, reply.Error.Code)
	assert.EqualValues(t, 2, reply.Error.Details["actual_version"])

	code, reply = do(t, s, http.MethodPut, "/api/flows/chain?version=abc", chainFlow)
	assert.Equal(t, http.StatusBadRequest, code)

	code, reply = do(t, s, http.MethodGet, "/api/flows", "")
	require.Equal(t, http.StatusOK, code)
	var records []store.Record
	require.NoError(t, json.Unmarshal(reply.Data, &records))
	require.Len(t, records, 1)
	assert.Equal(t, 2, records[0].Version)

	code, reply = do(t, s, http.MethodGet, "/api/flows/chain", "")
	require.Equal(t, http.StatusOK, code)
	var rec store.Record
	require.NoError(t, json.Unmarshal(reply.Data, &rec))
	assert.Equal(t, "chain", rec.Definition.FlowID)

	code, _ = do(t, s, http.MethodDelete, "/api/flows/chain", "")
	require.Equal(t, http.StatusOK, code)

	code, reply = do(t, s, http.MethodGet, "/api/flows/chain", "")
	assert.Equal(t, http.StatusNotFound, code)
	require.NotNil(t, reply.Error)
	assert.Equal(t, designer.CodeFlowNotFound, reply.Error.Code)
}

func TestFlowsPutUsesPathID(t *testing.T) {
	st := store.NewMemoryStore()
	s := newTestServer(t, WithStore(st))

	code, reply := do(t, s, http.MethodPut, "/api/flows/renamed", chainFlow)
	require.Equal(t, http.StatusOK, code, reply.Error)

	rec, err := st.Load(context.Background(), "renamed")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "renamed", rec.Definition.FlowID)
}

func TestFlowsDisabledWithoutStore(t *testing.T) {
	s := newTestServer(t)
	code, reply := do(t, s, http.MethodGet, "/api/flows", "")
	assert.Equal(t, http.StatusNotImplemented, code)
	require.NotNil(t, reply.Error)
	assert.Equal(t, "STORE_DISABLED", reply.Error.Code)
}
