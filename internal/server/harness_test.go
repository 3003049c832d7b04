package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
	gmail_v1 "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/teemow/workspace-mcp/internal/google"
	"github.com/teemow/workspace-mcp/internal/session"
	"github.com/teemow/workspace-mcp/internal/tools"
	"github.com/teemow/workspace-mcp/internal/tools/calendar_tools"
	"github.com/teemow/workspace-mcp/internal/tools/drive_tools"
	"github.com/teemow/workspace-mcp/internal/tools/gmail_tools"
)

// harness wires a full bridge against in-memory stores and fake
// Google endpoints.
type harness struct {
	sc       *ServerContext
	sessions *session.Registry
	creds    *session.Credentials
	backend  *session.MemoryBackend
	router   http.Handler
	baseURL  string

	// apiMux serves as the fake Google API backend.
	apiMux *http.ServeMux
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	backend := session.NewMemoryBackend(time.Minute)
	t.Cleanup(func() { _ = backend.Close() })

	sessions := session.NewRegistry(backend, time.Hour, logger)
	creds := session.NewCredentials(sessions, logger)

	// Fake OAuth provider. The token endpoint accepts any code except
	// "bad-code".
	oauthSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		if r.FormValue("code") == "bad-code" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error":"invalid_grant"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"at-1","refresh_token":"rt-1","token_type":"Bearer","expires_in":3600}`))
	}))
	t.Cleanup(oauthSrv.Close)

	apiMux := http.NewServeMux()
	apiSrv := httptest.NewServer(apiMux)
	t.Cleanup(apiSrv.Close)

	baseURL := "https://bridge.example.com"
	oauthCfg := &google.OAuthConfig{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		RedirectURL:  baseURL + "/auth/callback",
		Endpoint: oauth2.Endpoint{
			AuthURL:  oauthSrv.URL + "/auth",
			TokenURL: oauthSrv.URL + "/token",
		},
	}

	sc, err := NewServerContext(context.Background(), Config{
		Sessions:    sessions,
		Credentials: creds,
		OAuth:       oauthCfg,
		Logger:      logger,
		APIOptions:  []option.ClientOption{option.WithEndpoint(apiSrv.URL)},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = sc.Shutdown() })

	registry := tools.NewRegistry()
	gmail_tools.Register(registry)
	drive_tools.Register(registry)
	calendar_tools.Register(registry)

	dispatcher := NewDispatcher(sc, registry)
	router := NewHTTPHandler(sc, dispatcher, NewHealthChecker(sc), baseURL).Router()

	return &harness{
		sc:       sc,
		sessions: sessions,
		creds:    creds,
		backend:  backend,
		router:   router,
		baseURL:  baseURL,
		apiMux:   apiMux,
	}
}

// newSession creates a disconnected session and returns its id.
func (h *harness) newSession(t *testing.T) string {
	t.Helper()
	s, err := h.sessions.Create(context.Background())
	require.NoError(t, err)
	return s.ID
}

// connect stores a credential for the session, marking it connected.
func (h *harness) connect(t *testing.T, userID string) {
	t.Helper()
	err := h.creds.Save(context.Background(), userID, &session.Credential{
		AccessToken:  "at-1",
		RefreshToken: "rt-1",
		Expiry:       time.Now().Add(time.Hour),
	})
	require.NoError(t, err)
}

func (h *harness) do(t *testing.T, method, path string, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v))
}

// rpc posts one JSON-RPC request to /mcp/{userID}.
func (h *harness) rpc(t *testing.T, userID, body string) *httptest.ResponseRecorder {
	t.Helper()
	return h.do(t, http.MethodPost, "/mcp/"+userID, body)
}

type rpcTestResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result"`
	Error   *rpcError       `json:"error"`
	ID      json.RawMessage `json:"id"`
}

func decodeRPC(t *testing.T, rec *httptest.ResponseRecorder) rpcTestResponse {
	t.Helper()
	var resp rpcTestResponse
	decodeBody(t, rec, &resp)
	return resp
}

// serveGmailSearch installs fake Gmail list/get handlers returning one
// message.
func (h *harness) serveGmailSearch(t *testing.T) {
	t.Helper()
	h.apiMux.HandleFunc("/gmail/v1/users/me/messages", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(&gmail_v1.ListMessagesResponse{
			Messages: []*gmail_v1.Message{{Id: "m1", ThreadId: "t1"}},
		})
	})
	h.apiMux.HandleFunc("/gmail/v1/users/me/messages/m1", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(&gmail_v1.Message{
			Id:       "m1",
			ThreadId: "t1",
			Payload: &gmail_v1.MessagePart{
				Headers: []*gmail_v1.MessagePartHeader{
					{Name: "Subject", Value: "Quarterly numbers"},
					{Name: "From", Value: "alice@example.com"},
				},
			},
		})
	})
}
