package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/tablestore/internal/sqlite"
	"github.com/mesh-intelligence/tablestore/pkg/types"
)

// client issues JSON requests against a test server.
type client struct {
	t     *testing.T
	base  string
	token string
}

func newTestServer(t *testing.T, opts Options) *client {
	t.Helper()
	b := sqlite.NewBackend(nil)
	require.NoError(t, b.Attach(types.Config{Backend: types.BackendSQLite, DataDir: t.TempDir()}))
	t.Cleanup(func() { b.Detach() })

	ts := httptest.NewServer(New(b, nil, opts).Handler())
	t.Cleanup(ts.Close)
	return &client{t: t, base: ts.URL}
}

// do sends a request and decodes the JSON response into a generic value.
func (c *client) do(method, path string, body any) (int, any) {
	c.t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(c.t, err)
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, c.base+path, reader)
	require.NoError(c.t, err)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(c.t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(c.t, err)
	if len(bytes.TrimSpace(raw)) == 0 {
		return resp.StatusCode, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var out any
	require.NoError(c.t, dec.Decode(&out), "body: %s", raw)
	return resp.StatusCode, out
}

// create posts body and returns the id of the created entity.
func (c *client) create(path string, body any) string {
	c.t.Helper()
	status, out := c.do(http.MethodPost, path, body)
	require.Equal(c.t, http.StatusCreated, status, "POST %s: %v", path, out)
	return out.(map[string]any)["id"].(string)
}

func obj(v any) map[string]any { return v.(map[string]any) }
func list(v any) []any         { return v.([]any) }

func TestHealth(t *testing.T) {
	c := newTestServer(t, Options{})
	status, out := c.do(http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", obj(out)["status"])
}

func TestTableWorkflow(t *testing.T) {
	c := newTestServer(t, Options{})

	dbID := c.create("/databases", map[string]any{"name": "crm"})
	tableID := c.create("/databases/"+dbID+"/tables", map[string]any{"name": "users"})
	ageID := c.create("/tables/"+tableID+"/columns", map[string]any{
		"name": "age", "info": map[string]any{"type": "int"},
	})
	roleID := c.create("/tables/"+tableID+"/columns", map[string]any{
		"name": "role",
		"info": map[string]any{"type": "enum", "column_type": "string", "available_values": []any{"user", "admin"}},
	})

	status, out := c.do(http.MethodGet, "/columns/"+ageID, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, map[string]any{"type": "int", "default": json.Number("0")}, obj(out)["info"])

	status, out = c.do(http.MethodGet, "/columns/"+roleID, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "user", obj(obj(out)["info"])["default"], "enum default is the first member")

	rowID := c.create("/tables/"+tableID+"/rows", map[string]any{
		"values": []any{
			map[string]any{"column": ageID, "info": map[string]any{"value": 30}},
			map[string]any{"column": roleID, "info": map[string]any{"value": "admin"}},
		},
	})

	// Columns are locked once the table has a row.
	status, out = c.do(http.MethodPost, "/tables/"+tableID+"/columns", map[string]any{
		"name": "email", "info": map[string]any{"type": "email"},
	})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "columns_locked", obj(out)["error"])

	status, out = c.do(http.MethodPut, "/rows/"+rowID, map[string]any{
		"table": tableID,
		"values": []any{
			map[string]any{"column": ageID, "info": map[string]any{"value": 31}},
			map[string]any{"column": roleID, "info": map[string]any{"value": "user"}},
		},
	})
	require.Equal(t, http.StatusOK, status, "%v", out)
	values := list(obj(out)["values"])
	require.Len(t, values, 2)
	assert.Equal(t, json.Number("31"), obj(obj(values[0])["info"])["value"])

	status, out = c.do(http.MethodGet, "/tables/"+tableID+"/rows?search_string=user", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, list(out), 1)

	status, out = c.do(http.MethodGet, "/tables/"+tableID+"/rows?search_string=use", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Empty(t, list(out))

	status, out = c.do(http.MethodGet, "/databases/"+dbID, nil)
	require.Equal(t, http.StatusOK, status)
	tables := list(obj(out)["tables"])
	require.Len(t, tables, 1)
	assert.Len(t, list(obj(tables[0])["rows"]), 1)

	status, _ = c.do(http.MethodDelete, "/databases/"+dbID, nil)
	assert.Equal(t, http.StatusNoContent, status)
	status, _ = c.do(http.MethodGet, "/rows/"+rowID, nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestErrorResponses(t *testing.T) {
	c := newTestServer(t, Options{})

	dbID := c.create("/databases", map[string]any{"name": "crm"})
	tableID := c.create("/databases/"+dbID+"/tables", map[string]any{"name": "users"})
	ageID := c.create("/tables/"+tableID+"/columns", map[string]any{
		"name": "age", "info": map[string]any{"type": "int"},
	})

	tests := []struct {
		name       string
		method     string
		path       string
		body       any
		wantStatus int
		wantKind   string
		wantField  string
	}{
		{"duplicate database", http.MethodPost, "/databases", map[string]any{"name": "crm"}, http.StatusBadRequest, "unique_constraint_violation", "name"},
		{"unknown database", http.MethodGet, "/databases/nope", nil, http.StatusNotFound, "not_found", ""},
		{"table in unknown database", http.MethodPost, "/databases/nope/tables", map[string]any{"name": "x"}, http.StatusNotFound, "not_found", "database"},
		{"unsupported type", http.MethodPost, "/tables/" + tableID + "/columns", map[string]any{"name": "x", "info": map[string]any{"type": "date"}}, http.StatusBadRequest, "unsupported_type", "info.type"},
		{"bad default", http.MethodPost, "/tables/" + tableID + "/columns", map[string]any{"name": "x", "info": map[string]any{"type": "email", "default": "nope"}}, http.StatusBadRequest, "type_mismatch", "info.default"},
		{"enum without members", http.MethodPost, "/tables/" + tableID + "/columns", map[string]any{"name": "x", "info": map[string]any{"type": "enum"}}, http.StatusBadRequest, "missing_enum_fields", "info"},
		{"column without info", http.MethodPost, "/tables/" + tableID + "/columns", map[string]any{"name": "x"}, http.StatusBadRequest, "invalid_data", "info"},
		{"wrong value type", http.MethodPost, "/tables/" + tableID + "/rows", map[string]any{"values": []any{map[string]any{"column": ageID, "info": map[string]any{"value": "old"}}}}, http.StatusBadRequest, "type_mismatch", "values[0].info.value"},
		{"real for int", http.MethodPost, "/tables/" + tableID + "/rows", map[string]any{"values": []any{map[string]any{"column": ageID, "info": map[string]any{"value": 1.5}}}}, http.StatusBadRequest, "type_mismatch", "values[0].info.value"},
		{"empty values", http.MethodPost, "/tables/" + tableID + "/rows", map[string]any{"values": []any{}}, http.StatusBadRequest, "invalid_data", "values"},
		{"too many values", http.MethodPost, "/tables/" + tableID + "/rows", map[string]any{"values": []any{map[string]any{"column": ageID, "info": map[string]any{"value": 1}}, map[string]any{"column": ageID, "info": map[string]any{"value": 2}}}}, http.StatusBadRequest, "column_count_mismatch", "values"},
		{"bad limit", http.MethodGet, "/databases?limit=-1", nil, http.StatusBadRequest, "invalid_data", "limit"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, out := c.do(tt.method, tt.path, tt.body)
			assert.Equal(t, tt.wantStatus, status)
			body := obj(out)
			assert.Equal(t, tt.wantKind, body["error"])
			if tt.wantField == "" {
				assert.NotContains(t, body, "field")
			} else {
				assert.Equal(t, tt.wantField, body["field"])
			}
			assert.NotEmpty(t, body["message"])
		})
	}
}

func TestMalformedBody(t *testing.T) {
	c := newTestServer(t, Options{})
	resp, err := http.Post(c.base+"/databases", "application/json", bytes.NewReader([]byte("{")))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestUpdateRowCannotMoveTable(t *testing.T) {
	c := newTestServer(t, Options{})

	dbID := c.create("/databases", map[string]any{"name": "crm"})
	tableID := c.create("/databases/"+dbID+"/tables", map[string]any{"name": "a"})
	otherID := c.create("/databases/"+dbID+"/tables", map[string]any{"name": "b"})
	colID := c.create("/tables/"+tableID+"/columns", map[string]any{
		"name": "n", "info": map[string]any{"type": "char"},
	})
	rowID := c.create("/tables/"+tableID+"/rows", map[string]any{
		"values": []any{map[string]any{"column": colID, "info": map[string]any{"value": "x"}}},
	})

	status, out := c.do(http.MethodPut, "/rows/"+rowID, map[string]any{
		"table":  otherID,
		"values": []any{map[string]any{"column": colID, "info": map[string]any{"value": "y"}}},
	})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "table_immutable", obj(out)["error"])
	assert.Equal(t, "table", obj(out)["field"])
}

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func TestAuth(t *testing.T) {
	const secret = "test-secret"
	c := newTestServer(t, Options{Auth: AuthConfig{Secret: secret, Issuer: "tablestore-test"}})
	exp := time.Now().Add(time.Hour).Unix()

	status, _ := c.do(http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, status, "health is not protected")

	status, out := c.do(http.MethodGet, "/databases", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "unauthorized", obj(out)["error"])

	tests := []struct {
		name       string
		token      string
		wantStatus int
	}{
		{"valid", signToken(t, secret, jwt.MapClaims{"sub": "ann", "iss": "tablestore-test", "exp": exp}), http.StatusOK},
		{"wrong secret", signToken(t, "other", jwt.MapClaims{"sub": "ann", "iss": "tablestore-test", "exp": exp}), http.StatusUnauthorized},
		{"wrong issuer", signToken(t, secret, jwt.MapClaims{"sub": "ann", "iss": "elsewhere", "exp": exp}), http.StatusUnauthorized},
		{"expired", signToken(t, secret, jwt.MapClaims{"sub": "ann", "iss": "tablestore-test", "exp": time.Now().Add(-time.Hour).Unix()}), http.StatusUnauthorized},
		{"no expiry", signToken(t, secret, jwt.MapClaims{"sub": "ann", "iss": "tablestore-test"}), http.StatusUnauthorized},
		{"garbage", "not-a-token", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c.token = tt.token
			status, _ := c.do(http.MethodGet, "/databases", nil)
			assert.Equal(t, tt.wantStatus, status)
		})
	}
}

func TestServeShutsDownOnCancel(t *testing.T) {
	b := sqlite.NewBackend(nil)
	require.NoError(t, b.Attach(types.Config{Backend: types.BackendSQLite, DataDir: t.TempDir()}))
	defer b.Detach()

	s := New(b, nil, Options{ShutdownTimeout: time.Second})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, "127.0.0.1:0") }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}

func TestClassifyError(t *testing.T) {
	kind, status := classifyError(types.WithField("values[0].info.value", &types.NotInEnumError{Candidate: "x"}))
	assert.Equal(t, "not_in_enum", kind)
	assert.Equal(t, http.StatusBadRequest, status)

	kind, status = classifyError(io.EOF)
	assert.Equal(t, "internal", kind)
	assert.Equal(t, http.StatusInternalServerError, status)
}
