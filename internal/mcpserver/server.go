// Package mcpserver implements the MCP (Model Context Protocol) stdio
// front end: a JSON-RPC 2.0 loop over stdin/stdout that exposes the
// search_logs tool and the configured hosts as server:// resources.
//
// Stdout carries only JSON-RPC responses; all logging goes to stderr.
package mcpserver

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/JaysonAlbert/log-search-mcp/internal/config"
	"github.com/JaysonAlbert/log-search-mcp/internal/search"
)

const (
	serverName      = "log-search-server"
	serverVersion   = "0.1.0"
	protocolVersion = "2024-11-05"
)

// JSON-RPC types

type JSONRPCRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type JSONRPCResponse struct {
	JSONRPC string         `json:"jsonrpc"`
	ID      any            `json:"id"`
	Result  any            `json:"result,omitempty"`
	Error   *ResponseError `json:"error,omitempty"`
}

type ResponseError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Tool and resource types

type Tool struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	InputSchema any    `json:"inputSchema"`
}

type CallToolRequest struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

type TextContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type CallToolResult struct {
	Content []TextContent `json:"content"`
	IsError bool          `json:"isError,omitempty"`
}

type Resource struct {
	URI         string `json:"uri"`
	Name        string `json:"name"`
	Description string `json:"description"`
	MimeType    string `json:"mimeType"`
}

type ReadResourceRequest struct {
	URI string `json:"uri"`
}

type ResourceContents struct {
	URI      string `json:"uri"`
	MimeType string `json:"mimeType"`
	Text     string `json:"text"`
}

// resourceScheme prefixes host resource URIs: server://<name>.
const resourceScheme = "server://"

// Server is the MCP stdio server. It delegates searches to the Searcher
// and host listings to the config Manager.
type Server struct {
	cfg      *config.Manager
	searcher *search.Searcher
}

// New creates an MCP server over the given configuration and searcher.
func New(cfg *config.Manager, searcher *search.Searcher) *Server {
	return &Server{cfg: cfg, searcher: searcher}
}

// HandleRequest dispatches one JSON-RPC request. Notifications return a
// zero response which the caller must not send.
func (s *Server) HandleRequest(ctx context.Context, req JSONRPCRequest) JSONRPCResponse {
	resp := JSONRPCResponse{JSONRPC: "2.0", ID: req.ID}

	switch req.Method {
	case "initialize":
		resp.Result = map[string]any{
			"protocolVersion": protocolVersion,
			"capabilities": map[string]any{
				"tools":     map[string]any{},
				"resources": map[string]any{},
			},
			"serverInfo": map[string]any{
				"name":    serverName,
				"version": serverVersion,
			},
		}

	case "notifications/initialized":
		return JSONRPCResponse{}

	case "tools/list":
		resp.Result = map[string]any{"tools": []Tool{searchLogsTool()}}

	case "tools/call":
		var callReq CallToolRequest
		if err := json.Unmarshal(req.Params, &callReq); err != nil {
			resp.Error = &ResponseError{Code: -32700, Message: "Parse error"}
			return resp
		}
		resp.Result = s.handleToolCall(ctx, callReq)

	case "resources/list":
		resp.Result = map[string]any{"resources": s.listResources()}

	case "resources/read":
		var readReq ReadResourceRequest
		if err := json.Unmarshal(req.Params, &readReq); err != nil {
			resp.Error = &ResponseError{Code: -32700, Message: "Parse error"}
			return resp
		}
		contents, err := s.readResource(readReq.URI)
		if err != nil {
			resp.Error = &ResponseError{Code: -32602, Message: err.Error()}
			return resp
		}
		resp.Result = map[string]any{"contents": []ResourceContents{contents}}

	default:
		log.Printf("[mcp] unknown method: %s", req.Method)
		resp.Error = &ResponseError{Code: -32601, Message: "Method not found"}
	}

	return resp
}

func searchLogsTool() Tool {
	return Tool{
		Name:        "search_logs",
		Description: "Search application logs on remote servers using grep patterns",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"server_name": map[string]any{
					"type":        "string",
					"description": "Name of the server to search (use 'all' for all servers)",
				},
				"pattern": map[string]any{
					"type":        "string",
					"description": "Grep pattern to search for in logs",
				},
				"time_range": map[string]any{
					"type":        "string",
					"description": "Time range filter (e.g., '1h', '30m', '2d', '2024-01-01 to 2024-01-02')",
				},
				"max_results": map[string]any{
					"type":        "integer",
					"description": "Maximum number of results to return per server",
				},
			},
			"required": []string{"server_name", "pattern"},
		},
	}
}

func (s *Server) handleToolCall(ctx context.Context, req CallToolRequest) CallToolResult {
	log.Printf("[mcp] tool call: %s", req.Name)

	if req.Name != "search_logs" {
		return errorResult(fmt.Sprintf("Unknown tool: %s", req.Name))
	}

	var args struct {
		ServerName string `json:"server_name"`
		Pattern    string `json:"pattern"`
		TimeRange  string `json:"time_range"`
		MaxResults int    `json:"max_results"`
	}
	if err := json.Unmarshal(req.Arguments, &args); err != nil {
		return errorResult(fmt.Sprintf("Invalid arguments: %v", err))
	}
	if args.ServerName == "" || args.Pattern == "" {
		return errorResult("server_name and pattern are required")
	}

	var outcomes []search.Outcome
	var err error
	if strings.EqualFold(args.ServerName, "all") {
		outcomes, err = s.searcher.SearchAll(ctx, args.Pattern, args.TimeRange, args.MaxResults)
	} else {
		var outcome search.Outcome
		outcome, err = s.searcher.SearchOne(ctx, args.ServerName, args.Pattern, args.TimeRange, args.MaxResults)
		outcomes = []search.Outcome{outcome}
	}
	if err != nil {
		return errorResult(fmt.Sprintf("Invalid query: %v", err))
	}

	var lines []string
	for _, o := range outcomes {
		lines = append(lines, o.Render()...)
	}
	if len(lines) == 0 {
		return textResult("No results found")
	}
	return textResult(strings.Join(lines, "\n"))
}

func (s *Server) listResources() []Resource {
	names := s.cfg.ListNames()
	resources := make([]Resource, 0, len(names))
	for _, name := range names {
		resources = append(resources, Resource{
			URI:         resourceScheme + name,
			Name:        name,
			Description: fmt.Sprintf("Server configuration for %s", name),
			MimeType:    "application/json",
		})
	}
	return resources
}

// readResource serves server://<name> as the host's profile without
// credentials. HostProfile's JSON encoding omits the password; the key
// path is a filename, not a secret.
func (s *Server) readResource(uri string) (ResourceContents, error) {
	name, ok := strings.CutPrefix(uri, resourceScheme)
	if !ok {
		return ResourceContents{}, fmt.Errorf("unknown resource: %s", uri)
	}

	profile, err := s.cfg.Get(name)
	if err != nil {
		return ResourceContents{}, fmt.Errorf("server not found: %s", name)
	}

	data, err := json.MarshalIndent(profile, "", "  ")
	if err != nil {
		return ResourceContents{}, fmt.Errorf("encode profile: %w", err)
	}
	return ResourceContents{URI: uri, MimeType: "application/json", Text: string(data)}, nil
}

func textResult(text string) CallToolResult {
	return CallToolResult{Content: []TextContent{{Type: "text", Text: text}}}
}

func errorResult(text string) CallToolResult {
	return CallToolResult{Content: []TextContent{{Type: "text", Text: text}}, IsError: true}
}

// Run reads newline-delimited JSON-RPC requests from r and writes
// responses to w until EOF or context cancellation.
func (s *Server) Run(ctx context.Context, r io.Reader, w io.Writer) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	for scanner.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		line := scanner.Text()
		if line == "" {
			continue
		}

		var req JSONRPCRequest
		if err := json.Unmarshal([]byte(line), &req); err != nil {
			log.Printf("[mcp] failed to parse request: %v", err)
			continue
		}

		resp := s.HandleRequest(ctx, req)

		// Notifications get no response.
		if req.ID == nil && strings.HasPrefix(req.Method, "notifications/") {
			continue
		}

		data, err := json.Marshal(resp)
		if err != nil {
			log.Printf("[mcp] failed to marshal response: %v", err)
			continue
		}
		fmt.Fprintln(w, string(data))
	}

	return scanner.Err()
}
