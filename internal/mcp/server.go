package mcp

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Server implements an MCP stdio server that delegates to the HTTP memory server.
type Server struct {
	serverURL string
	userID    string
	client    *http.Client
	out       io.Writer
}

// NewServer creates a new MCP server. userID is used by tool calls that do
// not name a user.
func NewServer(serverURL, userID string) *Server {
	return &Server{
		serverURL: strings.TrimRight(serverURL, "/"),
		userID:    userID,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		out: os.Stdout,
	}
}

// Run starts the stdio event loop. Blocks until stdin is closed.
func (s *Server) Run() error {
	return s.Serve(os.Stdin, os.Stdout)
}

// Serve reads newline-delimited JSON-RPC requests from in and writes
// responses to out until in is exhausted.
func (s *Server) Serve(in io.Reader, out io.Writer) error {
	s.out = out
	scanner := bufio.NewScanner(in)
	// Increase buffer for large messages
	buf := make([]byte, 0, 1024*1024)
	scanner.Buffer(buf, 1024*1024)

	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var req Request
		if err := json.Unmarshal(line, &req); err != nil {
			s.writeResponse(s.errorResponse(nil, codeParseError, "parse error: "+err.Error()))
			continue
		}

		resp := s.handleRequest(&req)
		if resp != nil && !req.isNotification() {
			s.writeResponse(resp)
		}
	}

	return scanner.Err()
}

func (s *Server) handleRequest(req *Request) *Response {
	switch req.Method {
	case "initialize":
		return s.handleInitialize(req)
	case "initialized", "notifications/initialized":
		return nil
	case "tools/list":
		return &Response{JSONRPC: "2.0", ID: req.ID, Result: ToolsListResult{Tools: ToolDefinitions()}}
	case "tools/call":
		return s.handleToolsCall(req)
	case "ping":
		return &Response{JSONRPC: "2.0", ID: req.ID, Result: map[string]string{}}
	default:
		return s.errorResponse(req.ID, codeMethodNotFound, "method not found: "+req.Method)
	}
}

func (s *Server) handleInitialize(req *Request) *Response {
	return &Response{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: InitializeResult{
			ProtocolVersion: protocolVersion,
			Capabilities: ServerCapabilities{
				Tools: &ToolCapabilities{},
			},
			ServerInfo: ServerInfo{
				Name:    "memoryd",
				Version: "1.0.0",
			},
		},
	}
}

func (s *Server) handleToolsCall(req *Request) *Response {
	var params CallToolParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(req.ID, codeInvalidParams, "invalid params: "+err.Error())
	}

	result, isError := s.dispatchTool(params.Name, params.Arguments)

	return &Response{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: CallToolResult{
			Content: []ContentBlock{{Type: "text", Text: result}},
			IsError: isError,
		},
	}
}

func (s *Server) dispatchTool(name string, args map[string]any) (string, bool) {
	userID := getString(args, "user_id", s.userID)
	if userID == "" {
		return "user_id is required", true
	}

	switch name {
	case "memory_retrieve":
		return s.toolRetrieve(userID, args)
	case "memory_save":
		return s.toolSave(userID, args)
	case "memory_forget":
		return s.toolForget(userID, args)
	case "memory_list":
		return s.toolList(userID, args)
	default:
		return fmt.Sprintf("unknown tool: %s", name), true
	}
}

// --- Tool implementations (HTTP delegation) ---

func (s *Server) toolRetrieve(userID string, args map[string]any) (string, bool) {
	body := map[string]any{
		"user_id": userID,
		"query":   args["query"],
		"limit":   int(getFloat(args, "limit", 5)),
	}
	if v, ok := args["threshold"]; ok {
		body["threshold"] = v
	}
	return s.httpPost("/api/memory/retrieve", body)
}

func (s *Server) toolSave(userID string, args map[string]any) (string, bool) {
	body := map[string]any{
		"user_id":  userID,
		"content":  args["content"],
		"category": getString(args, "category", ""),
		"metadata": map[string]any{"source": "mcp"},
	}
	return s.httpPost("/api/memory/save", body)
}

func (s *Server) toolForget(userID string, args map[string]any) (string, bool) {
	body := map[string]any{
		"user_id": userID,
		"content": args["content"],
	}
	return s.httpPost("/api/memory/forget", body)
}

func (s *Server) toolList(userID string, args map[string]any) (string, bool) {
	limit := int(getFloat(args, "limit", 20))
	return s.httpGet("/api/memory/list/" + url.PathEscape(userID) + "?limit=" + strconv.Itoa(limit))
}

// --- HTTP helpers ---

func (s *Server) httpPost(path string, body any) (string, bool) {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return fmt.Sprintf("marshal error: %s", err), true
	}

	req, err := http.NewRequest(http.MethodPost, s.serverURL+path, bytes.NewReader(jsonBody))
	if err != nil {
		return fmt.Sprintf("request error: %s", err), true
	}
	req.Header.Set("Content-Type", "application/json")
	return s.do(req)
}

func (s *Server) httpGet(path string) (string, bool) {
	req, err := http.NewRequest(http.MethodGet, s.serverURL+path, nil)
	if err != nil {
		return fmt.Sprintf("request error: %s", err), true
	}
	return s.do(req)
}

func (s *Server) do(req *http.Request) (string, bool) {
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Sprintf("HTTP error: %s", err), true
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Sprintf("read error: %s", err), true
	}

	return string(respBody), resp.StatusCode >= 400
}

// --- Response helpers ---

func (s *Server) writeResponse(resp *Response) {
	data, _ := json.Marshal(resp)
	fmt.Fprintf(s.out, "%s\n", data)
}

func (s *Server) errorResponse(id json.RawMessage, code int, message string) *Response {
	if id == nil {
		id = json.RawMessage("null")
	}
	return &Response{
		JSONRPC: "2.0",
		ID:      id,
		Error:   &RPCError{Code: code, Message: message},
	}
}

// --- Argument helpers ---

func getFloat(args map[string]any, key string, fallback float64) float64 {
	if v, ok := args[key]; ok {
		switch val := v.(type) {
		case float64:
			return val
		case int:
			return float64(val)
		}
	}
	return fallback
}

func getString(args map[string]any, key, fallback string) string {
	if v, ok := args[key].(string); ok && v != "" {
		return v
	}
	return fallback
}
