package mcp

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorded struct {
	method string
	path   string
	body   map[string]any
}

func fakeMemoryAPI(t *testing.T) (*httptest.Server, *[]recorded) {
	t.Helper()
	var (
		mu    sync.Mutex
		calls []recorded
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := recorded{method: r.Method, path: r.URL.RequestURI()}
		if r.Body != nil {
			raw, _ := io.ReadAll(r.Body)
			if len(raw) > 0 {
				require.NoError(t, json.Unmarshal(raw, &rec.body))
			}
		}
		mu.Lock()
		calls = append(calls, rec)
		mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		if r.URL.Path == "/api/memory/forget" {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"status":"error","message":"content is required"}`))
			return
		}
		w.Write([]byte(`{"status":"success"}`))
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func serve(t *testing.T, s *Server, lines ...string) []Response {
	t.Helper()
	var out bytes.Buffer
	require.NoError(t, s.Serve(strings.NewReader(strings.Join(lines, "\n")), &out))

	var resps []Response
	sc := bufio.NewScanner(&out)
	for sc.Scan() {
		var r Response
		require.NoError(t, json.Unmarshal(sc.Bytes(), &r))
		resps = append(resps, r)
	}
	return resps
}

func toolResult(t *testing.T, r Response) CallToolResult {
	t.Helper()
	raw, err := json.Marshal(r.Result)
	require.NoError(t, err)
	var res CallToolResult
	require.NoError(t, json.Unmarshal(raw, &res))
	return res
}

func TestProtocol(t *testing.T) {
	srv, _ := fakeMemoryAPI(t)
	s := NewServer(srv.URL, "u1")

	resps := serve(t, s,
		`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{}}`,
		`{"jsonrpc":"2.0","method":"notifications/initialized"}`,
		`{"jsonrpc":"2.0","id":2,"method":"tools/list"}`,
		`{"jsonrpc":"2.0","id":"three","method":"ping"}`,
		`{"jsonrpc":"2.0","id":4,"method":"resources/list"}`,
		`not json`,
	)
	require.Len(t, resps, 5)

	assert.JSONEq(t, `1`, string(resps[0].ID))
	assert.NotNil(t, resps[0].Result)

	raw, _ := json.Marshal(resps[1].Result)
	var list ToolsListResult
	require.NoError(t, json.Unmarshal(raw, &list))
	var names []string
	for _, tool := range list.Tools {
		names = append(names, tool.Name)
	}
	assert.Equal(t, []string{"memory_retrieve", "memory_save", "memory_forget", "memory_list"}, names)

	assert.JSONEq(t, `"three"`, string(resps[2].ID))

	require.NotNil(t, resps[3].Error)
	assert.Equal(t, codeMethodNotFound, resps[3].Error.Code)

	require.NotNil(t, resps[4].Error)
	assert.Equal(t, codeParseError, resps[4].Error.Code)
	assert.JSONEq(t, `null`, string(resps[4].ID))
}

func TestTools(t *testing.T) {
	srv, calls := fakeMemoryAPI(t)
	s := NewServer(srv.URL+"/", "default-user")

	resps := serve(t, s,
		`{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"memory_retrieve","arguments":{"query":"my name","limit":3,"threshold":0.2}}}`,
		`{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"memory_save","arguments":{"user_id":"alice","content":"Likes tea","category":"preference"}}}`,
		`{"jsonrpc":"2.0","id":3,"method":"tools/call","params":{"name":"memory_list","arguments":{"user_id":"bob smith"}}}`,
		`{"jsonrpc":"2.0","id":4,"method":"tools/call","params":{"name":"memory_forget","arguments":{}}}`,
		`{"jsonrpc":"2.0","id":5,"method":"tools/call","params":{"name":"memory_explode","arguments":{}}}`,
		`{"jsonrpc":"2.0","id":6,"method":"tools/call","params":"bad"}`,
	)
	require.Len(t, resps, 6)
	require.Len(t, *calls, 4)

	retrieve := (*calls)[0]
	assert.Equal(t, "/api/memory/retrieve", retrieve.path)
	assert.Equal(t, "default-user", retrieve.body["user_id"])
	assert.Equal(t, "my name", retrieve.body["query"])
	assert.Equal(t, float64(3), retrieve.body["limit"])
	assert.Equal(t, 0.2, retrieve.body["threshold"])
	assert.False(t, toolResult(t, resps[0]).IsError)

	save := (*calls)[1]
	assert.Equal(t, "/api/memory/save", save.path)
	assert.Equal(t, "alice", save.body["user_id"])
	assert.Equal(t, "preference", save.body["category"])
	assert.Equal(t, map[string]any{"source": "mcp"}, save.body["metadata"])

	list := (*calls)[2]
	assert.Equal(t, http.MethodGet, list.method)
	assert.Equal(t, "/api/memory/list/bob%20smith?limit=20", list.path)

	forget := toolResult(t, resps[3])
	assert.True(t, forget.IsError)
	assert.Contains(t, forget.Content[0].Text, "content is required")

	unknown := toolResult(t, resps[4])
	assert.True(t, unknown.IsError)
	assert.Equal(t, "unknown tool: memory_explode", unknown.Content[0].Text)

	require.NotNil(t, resps[5].Error)
	assert.Equal(t, codeInvalidParams, resps[5].Error.Code)
}

func TestToolsRequireUser(t *testing.T) {
	srv, calls := fakeMemoryAPI(t)
	s := NewServer(srv.URL, "")

	resps := serve(t, s, `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"memory_list","arguments":{}}}`)
	require.Len(t, resps, 1)
	res := toolResult(t, resps[0])
	assert.True(t, res.IsError)
	assert.Equal(t, "user_id is required", res.Content[0].Text)
	assert.Empty(t, *calls)
}
