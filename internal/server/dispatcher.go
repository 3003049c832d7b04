package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/teemow/workspace-mcp/internal/instrumentation"
	"github.com/teemow/workspace-mcp/internal/logging"
	"github.com/teemow/workspace-mcp/internal/tools"
)

const (
	// protocolVersion is the MCP revision this server speaks.
	protocolVersion = "2024-11-05"

	serverName    = "google-workspace-mcp"
	serverVersion = "1.0.0"
)

// rpcRequest is one incoming JSON-RPC call.
type rpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
	ID      json.RawMessage `json:"id,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  any             `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
	ID      json.RawMessage `json:"id"`
}

type callToolParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

type serverInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type toolsCapability struct {
	ListChanged bool `json:"listChanged"`
}

type serverCapabilities struct {
	Tools toolsCapability `json:"tools"`
}

type initializeResult struct {
	ProtocolVersion string             `json:"protocolVersion"`
	Capabilities    serverCapabilities `json:"capabilities"`
	ServerInfo      serverInfo         `json:"serverInfo"`
}

type listToolsResult struct {
	Tools []mcp.Tool `json:"tools"`
}

// Dispatcher routes JSON-RPC requests at /mcp/{userId} to the tool
// registry. initialize and tools/list answer without authentication;
// tools/call requires a connected session and rejects with HTTP 401
// before any JSON-RPC processing.
type Dispatcher struct {
	sc       *ServerContext
	registry *tools.Registry
	logger   *slog.Logger
}

// NewDispatcher creates a dispatcher over the shared tool registry.
func NewDispatcher(sc *ServerContext, registry *tools.Registry) *Dispatcher {
	return &Dispatcher{
		sc:       sc,
		registry: registry,
		logger:   sc.logger,
	}
}

// ServeMCP handles one JSON-RPC request for the given session.
func (d *Dispatcher) ServeMCP(w http.ResponseWriter, r *http.Request, userID string) {
	var req rpcRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeRPCError(w, json.RawMessage("null"), mcp.PARSE_ERROR, "Parse error")
		return
	}
	if len(req.ID) == 0 {
		req.ID = json.RawMessage("null")
	}

	switch req.Method {
	case "initialize":
		writeRPCResult(w, req.ID, initializeResult{
			ProtocolVersion: protocolVersion,
			Capabilities: serverCapabilities{
				Tools: toolsCapability{ListChanged: true},
			},
			ServerInfo: serverInfo{
				Name:    serverName,
				Version: serverVersion,
			},
		})

	case "tools/list":
		writeRPCResult(w, req.ID, listToolsResult{
			Tools: d.registry.Catalog(),
		})

	case "tools/call":
		d.callTool(w, r, userID, &req)

	default:
		writeRPCError(w, req.ID, mcp.METHOD_NOT_FOUND,
			fmt.Sprintf("Method '%s' not supported", req.Method))
	}
}

func (d *Dispatcher) callTool(w http.ResponseWriter, r *http.Request, userID string, req *rpcRequest) {
	// The auth gate comes before any parameter validation.
	caps, err := d.sc.Capabilities(r.Context(), userID)
	if err != nil {
		if errors.Is(err, ErrNotAuthenticated) {
			writeJSON(w, http.StatusUnauthorized, map[string]string{
				"error": "User not authenticated",
			})
			return
		}
		writeRPCError(w, req.ID, mcp.INTERNAL_ERROR, err.Error())
		return
	}

	var params callToolParams
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &params); err != nil {
			writeRPCError(w, req.ID, mcp.INVALID_PARAMS, "Invalid tool call parameters")
			return
		}
	}

	ctx, span := instrumentation.StartToolSpan(r.Context(), params.Name,
		instrumentation.SessionSpanAttr(userID))
	defer span.End()

	start := time.Now()
	result, err := d.registry.Call(ctx, caps, params.Name, params.Arguments)
	duration := time.Since(start)

	if err != nil {
		instrumentation.SetSpanError(span, err)
	} else {
		instrumentation.SetSpanSuccess(span)
	}

	d.record(ctx, userID, params.Name, duration, err)

	if err != nil {
		if errors.Is(err, tools.ErrUnknownTool) {
			writeRPCError(w, req.ID, mcp.METHOD_NOT_FOUND,
				fmt.Sprintf("Tool '%s' not found", params.Name))
			return
		}
		writeRPCError(w, req.ID, mcp.INTERNAL_ERROR, err.Error())
		return
	}

	text, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		writeRPCError(w, req.ID, mcp.INTERNAL_ERROR, "Failed to serialize tool result")
		return
	}

	writeRPCResult(w, req.ID, mcp.NewToolResultText(string(text)))
}

// record emits metrics and audit logging for one tool call.
func (d *Dispatcher) record(ctx context.Context, userID, toolName string, duration time.Duration, err error) {
	// Unknown names are caller-controlled and would blow up metric
	// label cardinality.
	if errors.Is(err, tools.ErrUnknownTool) {
		toolName = "unknown"
	}

	status := instrumentation.StatusSuccess
	if err != nil {
		status = instrumentation.StatusError
	}
	service, operation := instrumentation.ToolTarget(toolName)

	if metrics := d.sc.Metrics(); metrics != nil {
		metrics.RecordToolInvocationForSession(ctx, toolName, status, userID, duration)
		metrics.RecordGoogleAPIOperation(ctx, service, operation, status, duration)
	}

	if audit := d.sc.AuditLogger(); audit != nil {
		invocation := instrumentation.NewToolInvocation(toolName).
			WithSession(userID).
			WithService(service, operation).
			WithSpanContext(ctx)
		if err != nil {
			invocation.CompleteWithError(err)
		} else {
			invocation.CompleteSuccess()
		}
		audit.LogToolInvocation(invocation)
	}

	d.logger.Debug("tool call",
		logging.Tool(toolName),
		logging.UserHash(userID),
		logging.Status(status),
		slog.Duration(logging.KeyDuration, duration),
	)
}

func writeRPCResult(w http.ResponseWriter, id json.RawMessage, result any) {
	writeJSON(w, http.StatusOK, rpcResponse{
		JSONRPC: "2.0",
		Result:  result,
		ID:      id,
	})
}

// writeRPCError writes a JSON-RPC error envelope. Protocol errors ride
// on HTTP 200; only the transport-level auth gate uses HTTP status
// codes.
func writeRPCError(w http.ResponseWriter, id json.RawMessage, code int, message string) {
	writeJSON(w, http.StatusOK, rpcResponse{
		JSONRPC: "2.0",
		Error:   &rpcError{Code: code, Message: message},
		ID:      id,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
