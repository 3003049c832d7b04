package server

import (
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"github.com/teemow/workspace-mcp/internal/instrumentation"
	"github.com/teemow/workspace-mcp/internal/logging"
	"github.com/teemow/workspace-mcp/internal/session"
)

// callbackPage closes the OAuth popup and notifies the opener that the
// session is connected. The page is the only HTML this server serves.
var callbackPage = template.Must(template.New("callback").Parse(`<!DOCTYPE html>
<html>
  <head>
    <meta charset="UTF-8">
    <title>Connected</title>
    <style>
      body { font-family: -apple-system, sans-serif; background: #1a1a1a; color: #fff;
             display: flex; align-items: center; justify-content: center; min-height: 100vh; }
      .card { text-align: center; background: #2a2a2a; border-radius: 16px; padding: 48px 32px; }
      .session { font-family: monospace; font-size: 13px; color: #d1d5db; margin-top: 16px; }
    </style>
    <script>
      window.onload = function() {
        if (window.opener) {
          window.opener.postMessage({ type: 'connected', userId: '{{.UserID}}' }, '*');
        }
        setTimeout(function() { window.close(); }, 2000);
      };
    </script>
  </head>
  <body>
    <div class="card">
      <h1>Connection successful</h1>
      <p>Your Google Workspace account has been connected.</p>
      <div class="session">{{.UserID}}</div>
      <p>This window will close automatically.</p>
    </div>
  </body>
</html>
`))

// HTTPHandler wires every route of the bridge onto one mux.
type HTTPHandler struct {
	sc         *ServerContext
	dispatcher *Dispatcher
	health     *HealthChecker
	baseURL    string
	logger     *slog.Logger
}

// NewHTTPHandler creates the route handler. baseURL is the public URL
// clients use to reach this server, without a trailing slash.
func NewHTTPHandler(sc *ServerContext, dispatcher *Dispatcher, health *HealthChecker, baseURL string) *HTTPHandler {
	return &HTTPHandler{
		sc:         sc,
		dispatcher: dispatcher,
		health:     health,
		baseURL:    baseURL,
		logger:     sc.logger,
	}
}

// Router builds the full route table.
func (h *HTTPHandler) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /session/new", h.handleSessionNew)
	mux.HandleFunc("GET /auth/start/{userId}", h.handleAuthStart)
	mux.HandleFunc("GET /auth/callback", h.handleAuthCallback)
	mux.HandleFunc("GET /status/{userId}", h.handleStatus)
	mux.HandleFunc("POST /disconnect/{userId}", h.handleDisconnect)
	mux.HandleFunc("/mcp/{userId}", h.handleMCP)

	if h.health != nil {
		h.health.RegisterHealthEndpoints(mux)
	}

	return h.accessLog(mux)
}

// accessLog logs every request and records HTTP metrics.
func (h *HTTPHandler) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(recorder, r)

		duration := time.Since(start)
		if metrics := h.sc.Metrics(); metrics != nil {
			metrics.RecordHTTPRequest(r.Context(), r.Method, r.URL.Path, recorder.status, duration)
		}
		h.logger.Debug("http request",
			slog.String(logging.KeyMethod, r.Method),
			slog.String(logging.KeyPath, r.URL.Path),
			slog.Int(logging.KeyStatus, recorder.status),
			slog.Duration(logging.KeyDuration, duration),
		)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(status int) {
	sr.status = status
	sr.ResponseWriter.WriteHeader(status)
}

// handleSessionNew creates a session and returns the per-session URLs.
func (h *HTTPHandler) handleSessionNew(w http.ResponseWriter, r *http.Request) {
	s, err := h.sc.Sessions().Create(r.Context())
	if err != nil {
		h.logger.Error("session creation failed", logging.Err(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "Failed to create session",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"userId":  s.ID,
		"authUrl": fmt.Sprintf("%s/auth/start/%s", h.baseURL, s.ID),
		"mcpUrl":  fmt.Sprintf("%s/mcp/%s", h.baseURL, s.ID),
		"status":  "created",
	})
}

// handleAuthStart redirects a known session into the Google consent
// flow. The session id travels as the OAuth state parameter.
func (h *HTTPHandler) handleAuthStart(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("userId")

	if _, ok := h.sc.Sessions().Get(r.Context(), userID); !ok {
		http.Error(w, "Session not found", http.StatusNotFound)
		return
	}

	http.Redirect(w, r, h.sc.OAuth().AuthCodeURL(userID), http.StatusFound)
}

// handleAuthCallback finishes the OAuth flow: exchanges the code,
// stores the credential, marks the session connected, and renders the
// popup-closing page.
func (h *HTTPHandler) handleAuthCallback(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("state")
	code := r.URL.Query().Get("code")

	if userID == "" {
		http.Error(w, "Invalid userId in state parameter", http.StatusBadRequest)
		return
	}
	if _, ok := h.sc.Sessions().Get(r.Context(), userID); !ok {
		http.Error(w, "Invalid userId in state parameter", http.StatusBadRequest)
		return
	}

	token, err := h.sc.OAuth().Exchange(r.Context(), code)
	if err != nil {
		h.logger.Error("code exchange failed", logging.UserHash(userID), logging.Err(err))
		if metrics := h.sc.Metrics(); metrics != nil {
			metrics.RecordOAuthAuth(r.Context(), instrumentation.OAuthResultFailure)
		}
		http.Error(w, "Authorization failed", http.StatusInternalServerError)
		return
	}

	if err := h.sc.Credentials().Save(r.Context(), userID, session.FromToken(token)); err != nil {
		h.logger.Error("credential save failed", logging.UserHash(userID), logging.Err(err))
		http.Error(w, "Authorization failed", http.StatusInternalServerError)
		return
	}

	// A reconnect replaces the credential; drop clients built on the
	// old one.
	h.sc.Invalidate(userID)

	if metrics := h.sc.Metrics(); metrics != nil {
		metrics.RecordOAuthAuth(r.Context(), instrumentation.OAuthResultSuccess)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_ = callbackPage.Execute(w, struct{ UserID string }{UserID: userID})
}

// handleStatus reports connection state. Unknown sessions are not an
// error; they report as disconnected with no session block.
func (h *HTTPHandler) handleStatus(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("userId")

	s, sessionFound := h.sc.Sessions().Get(r.Context(), userID)
	connected := sessionFound && h.sc.Authenticated(r.Context(), userID)

	resp := map[string]any{
		"userId":    userID,
		"connected": connected,
		"mcpUrl":    nil,
		"session":   nil,
	}
	if connected {
		resp["mcpUrl"] = fmt.Sprintf("%s/mcp/%s", h.baseURL, userID)
	}
	if sessionFound {
		resp["session"] = map[string]any{
			"createdAt": s.CreatedAt,
			"expiresAt": s.ExpiresAt,
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleDisconnect revokes a session's credential. The session record
// survives, so the same id can authorize again.
func (h *HTTPHandler) handleDisconnect(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("userId")

	if !h.sc.Authenticated(r.Context(), userID) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{
			"error": "User not authenticated",
		})
		return
	}

	if err := h.sc.Credentials().Delete(r.Context(), userID); err != nil {
		h.logger.Error("credential delete failed", logging.UserHash(userID), logging.Err(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "Failed to disconnect",
		})
		return
	}

	h.sc.Invalidate(userID)

	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// handleMCP forwards JSON-RPC traffic to the dispatcher.
func (h *HTTPHandler) handleMCP(w http.ResponseWriter, r *http.Request) {
	h.dispatcher.ServeMCP(w, r, r.PathValue("userId"))
}
