package server

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitializeWithoutAuth(t *testing.T) {
	h := newHarness(t)

	rec := h.rpc(t, "any-session", `{"jsonrpc":"2.0","method":"initialize","id":1}`)
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeRPC(t, rec)
	require.Nil(t, resp.Error)

	var result struct {
		ProtocolVersion string `json:"protocolVersion"`
		Capabilities    struct {
			Tools struct {
				ListChanged bool `json:"listChanged"`
			} `json:"tools"`
		} `json:"capabilities"`
		ServerInfo struct {
			Name string `json:"name"`
		} `json:"serverInfo"`
	}
	require.NoError(t, json.Unmarshal(resp.Result, &result))

	assert.Equal(t, "2024-11-05", result.ProtocolVersion)
	assert.True(t, result.Capabilities.Tools.ListChanged)
	assert.Equal(t, "google-workspace-mcp", result.ServerInfo.Name)
}

func TestToolsListWithoutAuth(t *testing.T) {
	h := newHarness(t)

	rec := h.rpc(t, "any-session", `{"jsonrpc":"2.0","method":"tools/list","id":2}`)
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeRPC(t, rec)
	require.Nil(t, resp.Error)

	var result struct {
		Tools []struct {
			Name string `json:"name"`
		} `json:"tools"`
	}
	require.NoError(t, json.Unmarshal(resp.Result, &result))

	names := make([]string, 0, len(result.Tools))
	for _, tool := range result.Tools {
		names = append(names, tool.Name)
	}

	assert.Equal(t, []string{
		"gmail_search", "gmail_send", "gmail_read",
		"drive_search", "drive_read", "drive_list",
		"calendar_list_events", "calendar_create_event", "calendar_get_event",
	}, names)
}

func TestToolsListSameForEverySession(t *testing.T) {
	h := newHarness(t)
	connected := h.newSession(t)
	h.connect(t, connected)

	recA := h.rpc(t, connected, `{"jsonrpc":"2.0","method":"tools/list","id":1}`)
	recB := h.rpc(t, "never-seen", `{"jsonrpc":"2.0","method":"tools/list","id":1}`)

	assert.JSONEq(t, recA.Body.String(), recB.Body.String())
}

func TestToolsCallUnauthenticated(t *testing.T) {
	h := newHarness(t)
	userID := h.newSession(t)

	rec := h.rpc(t, userID, `{"jsonrpc":"2.0","method":"tools/call","params":{"name":"gmail_search","arguments":{"query":"is:unread"}},"id":3}`)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	var resp map[string]string
	decodeBody(t, rec, &resp)
	assert.Equal(t, "User not authenticated", resp["error"])
}

func TestToolsCallUnknownTool(t *testing.T) {
	h := newHarness(t)
	userID := h.newSession(t)
	h.connect(t, userID)

	rec := h.rpc(t, userID, `{"jsonrpc":"2.0","method":"tools/call","params":{"name":"gmail_destroy"},"id":4}`)
	require.Equal(t, http.StatusOK, rec.Code, "protocol errors ride on HTTP 200")

	resp := decodeRPC(t, rec)
	require.NotNil(t, resp.Error)
	assert.Equal(t, mcp.METHOD_NOT_FOUND, resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "gmail_destroy")
}

func TestUnknownMethod(t *testing.T) {
	h := newHarness(t)

	rec := h.rpc(t, "any", `{"jsonrpc":"2.0","method":"resources/list","id":5}`)
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeRPC(t, rec)
	require.NotNil(t, resp.Error)
	assert.Equal(t, mcp.METHOD_NOT_FOUND, resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "resources/list")
}

func TestMalformedRequest(t *testing.T) {
	h := newHarness(t)

	rec := h.rpc(t, "any", `{not json`)
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeRPC(t, rec)
	require.NotNil(t, resp.Error)
	assert.Equal(t, mcp.PARSE_ERROR, resp.Error.Code)
	assert.Equal(t, "null", string(resp.ID))
}

func TestToolsCallSuccess(t *testing.T) {
	h := newHarness(t)
	h.serveGmailSearch(t)
	userID := h.newSession(t)
	h.connect(t, userID)

	rec := h.rpc(t, userID, `{"jsonrpc":"2.0","method":"tools/call","params":{"name":"gmail_search","arguments":{"query":"from:alice"}},"id":6}`)
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeRPC(t, rec)
	require.Nil(t, resp.Error)

	var result struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	}
	require.NoError(t, json.Unmarshal(resp.Result, &result))
	require.Len(t, result.Content, 1)

	assert.Equal(t, "text", result.Content[0].Type)
	assert.Contains(t, result.Content[0].Text, "Quarterly numbers")
	assert.Contains(t, result.Content[0].Text, `"threadId": "t1"`)
}

func TestToolsCallUpstreamFailure(t *testing.T) {
	h := newHarness(t)
	h.apiMux.HandleFunc("/gmail/v1/users/me/messages", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"code":500,"message":"backend"}}`, http.StatusInternalServerError)
	})
	userID := h.newSession(t)
	h.connect(t, userID)

	rec := h.rpc(t, userID, `{"jsonrpc":"2.0","method":"tools/call","params":{"name":"gmail_search","arguments":{"query":"x"}},"id":7}`)
	require.Equal(t, http.StatusOK, rec.Code, "upstream failures are JSON-RPC errors, not HTTP errors")

	resp := decodeRPC(t, rec)
	require.NotNil(t, resp.Error)
	assert.Equal(t, mcp.INTERNAL_ERROR, resp.Error.Code)
}

func TestToolsCallMissingArgument(t *testing.T) {
	h := newHarness(t)
	userID := h.newSession(t)
	h.connect(t, userID)

	rec := h.rpc(t, userID, `{"jsonrpc":"2.0","method":"tools/call","params":{"name":"gmail_search"},"id":8}`)
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeRPC(t, rec)
	require.NotNil(t, resp.Error)
	assert.Equal(t, mcp.INTERNAL_ERROR, resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "query")
}

func TestDisconnectEvictsCapabilities(t *testing.T) {
	h := newHarness(t)
	h.serveGmailSearch(t)
	userID := h.newSession(t)
	h.connect(t, userID)

	// Prime the capability cache.
	rec := h.rpc(t, userID, `{"jsonrpc":"2.0","method":"tools/call","params":{"name":"gmail_search","arguments":{"query":"x"}},"id":9}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 1, h.sc.CachedCapabilities())

	h.do(t, http.MethodPost, "/disconnect/"+userID, "")
	assert.Zero(t, h.sc.CachedCapabilities())

	// The session is still known but calls are rejected again.
	rec = h.rpc(t, userID, `{"jsonrpc":"2.0","method":"tools/call","params":{"name":"gmail_search","arguments":{"query":"x"}},"id":10}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestToolsCallAfterRecordsExpire(t *testing.T) {
	h := newHarness(t)
	h.serveGmailSearch(t)
	userID := h.newSession(t)
	h.connect(t, userID)

	// Prime the capability cache with a successful call.
	rec := h.rpc(t, userID, `{"jsonrpc":"2.0","method":"tools/call","params":{"name":"gmail_search","arguments":{"query":"x"}},"id":11}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 1, h.sc.CachedCapabilities())

	// Simulate the store records lapsing out from under the cache.
	require.NoError(t, h.backend.Delete(context.Background(), "session:"+userID))
	require.NoError(t, h.backend.Delete(context.Background(), "tokens:"+userID))
	require.False(t, h.sc.Authenticated(context.Background(), userID))

	// The cached handle must not keep the session alive.
	rec = h.rpc(t, userID, `{"jsonrpc":"2.0","method":"tools/call","params":{"name":"gmail_search","arguments":{"query":"x"}},"id":12}`)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	var resp map[string]string
	decodeBody(t, rec, &resp)
	assert.Equal(t, "User not authenticated", resp["error"])
	assert.Zero(t, h.sc.CachedCapabilities())
}
