package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"google.golang.org/api/option"

	"github.com/teemow/workspace-mcp/internal/calendar"
	"github.com/teemow/workspace-mcp/internal/drive"
	"github.com/teemow/workspace-mcp/internal/gmail"
	"github.com/teemow/workspace-mcp/internal/google"
	"github.com/teemow/workspace-mcp/internal/instrumentation"
	"github.com/teemow/workspace-mcp/internal/logging"
	"github.com/teemow/workspace-mcp/internal/session"
	"github.com/teemow/workspace-mcp/internal/tools"
)

// ErrNotAuthenticated is returned when a session has no stored
// credential. A missing session and a disconnected session look the
// same to callers.
var ErrNotAuthenticated = errors.New("user not authenticated")

// DefaultSweepInterval is how often stale capability cache entries are
// evicted.
const DefaultSweepInterval = time.Hour

// Config holds the dependencies for a ServerContext.
type Config struct {
	Sessions    *session.Registry
	Credentials *session.Credentials
	OAuth       *google.OAuthConfig
	Logger      *slog.Logger

	// SweepInterval overrides DefaultSweepInterval; zero keeps the
	// default.
	SweepInterval time.Duration

	// APIOptions are appended to every Google client construction.
	// Tests use this to point clients at fake endpoints.
	APIOptions []option.ClientOption
}

// ServerContext holds the shared state of the bridge: session and
// credential stores, the OAuth flow controller, and the per-session
// capability cache.
type ServerContext struct {
	ctx    context.Context
	cancel context.CancelFunc

	sessions    *session.Registry
	credentials *session.Credentials
	oauth       *google.OAuthConfig
	logger      *slog.Logger
	apiOpts     []option.ClientOption

	metrics     *instrumentation.Metrics
	auditLogger *instrumentation.AuditLogger

	mu       sync.RWMutex
	caps     map[string]*tools.Capabilities
	building map[string]*sync.Mutex
	shutdown bool

	sweepStop chan struct{}
	sweepOnce sync.Once
}

// NewServerContext creates the server context and starts the
// background cache sweep.
func NewServerContext(ctx context.Context, cfg Config) (*ServerContext, error) {
	if cfg.Sessions == nil || cfg.Credentials == nil {
		return nil, fmt.Errorf("session and credential stores are required")
	}
	if cfg.OAuth == nil {
		return nil, fmt.Errorf("oauth configuration is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = DefaultSweepInterval
	}

	shutdownCtx, cancel := context.WithCancel(ctx)

	sc := &ServerContext{
		ctx:         shutdownCtx,
		cancel:      cancel,
		sessions:    cfg.Sessions,
		credentials: cfg.Credentials,
		oauth:       cfg.OAuth,
		logger:      cfg.Logger,
		apiOpts:     cfg.APIOptions,
		caps:        make(map[string]*tools.Capabilities),
		building:    make(map[string]*sync.Mutex),
		sweepStop:   make(chan struct{}),
	}

	go sc.sweepLoop(cfg.SweepInterval)

	return sc, nil
}

// Context returns the server-lifetime context.
func (sc *ServerContext) Context() context.Context {
	return sc.ctx
}

// Sessions returns the session registry.
func (sc *ServerContext) Sessions() *session.Registry {
	return sc.sessions
}

// Credentials returns the credential store.
func (sc *ServerContext) Credentials() *session.Credentials {
	return sc.credentials
}

// OAuth returns the OAuth flow controller.
func (sc *ServerContext) OAuth() *google.OAuthConfig {
	return sc.oauth
}

// SetInstrumentation attaches metrics and audit logging. Both stay nil
// when instrumentation is disabled.
func (sc *ServerContext) SetInstrumentation(provider *instrumentation.Provider, audit *instrumentation.AuditLogger) {
	if provider != nil {
		sc.metrics = provider.Metrics()
	}
	sc.auditLogger = audit
}

// Metrics returns the metrics recorder, or nil.
func (sc *ServerContext) Metrics() *instrumentation.Metrics {
	return sc.metrics
}

// AuditLogger returns the audit logger, or nil.
func (sc *ServerContext) AuditLogger() *instrumentation.AuditLogger {
	return sc.auditLogger
}

// Authenticated reports whether a session exists and carries a usable
// credential. Store failures degrade to false.
func (sc *ServerContext) Authenticated(ctx context.Context, userID string) bool {
	if _, ok := sc.sessions.Get(ctx, userID); !ok {
		return false
	}
	cred, ok := sc.credentials.Get(ctx, userID)
	return ok && cred.AccessToken != ""
}

// Capabilities returns the Google clients bound to a session's
// credential, building and caching them on first use. The stores stay
// authoritative on every call; the cache only avoids rebuilding
// clients. Concurrent calls for the same session build at most once.
func (sc *ServerContext) Capabilities(ctx context.Context, userID string) (*tools.Capabilities, error) {
	if !sc.Authenticated(ctx, userID) {
		// Drop any handle cached before the records vanished.
		sc.Invalidate(userID)
		return nil, ErrNotAuthenticated
	}

	sc.mu.RLock()
	caps, ok := sc.caps[userID]
	sc.mu.RUnlock()
	if ok {
		return caps, nil
	}

	buildMu := sc.buildLock(userID)
	buildMu.Lock()
	defer buildMu.Unlock()

	// Another caller may have won the build while we waited.
	sc.mu.RLock()
	caps, ok = sc.caps[userID]
	sc.mu.RUnlock()
	if ok {
		return caps, nil
	}

	caps, err := sc.buildCapabilities(ctx, userID)
	if err != nil {
		sc.mu.Lock()
		delete(sc.building, userID)
		sc.mu.Unlock()
		return nil, err
	}

	sc.mu.Lock()
	sc.caps[userID] = caps
	sc.mu.Unlock()

	if sc.metrics != nil {
		sc.metrics.IncrementActiveSessions(sc.ctx)
	}
	sc.logger.Debug("capabilities cached",
		logging.UserHash(userID),
	)
	return caps, nil
}

func (sc *ServerContext) buildCapabilities(ctx context.Context, userID string) (*tools.Capabilities, error) {
	if _, ok := sc.sessions.Get(ctx, userID); !ok {
		return nil, ErrNotAuthenticated
	}
	cred, ok := sc.credentials.Get(ctx, userID)
	if !ok || cred.AccessToken == "" {
		return nil, ErrNotAuthenticated
	}

	// Clients outlive the request; bind the token source to the server
	// context so refreshes keep working between calls. The reuse layer
	// only reaches the metered source when the cached token expired, so
	// every metered call is a real refresh attempt.
	token := cred.Token()
	ts := oauth2.ReuseTokenSource(token, &refreshMeter{
		ctx:     sc.ctx,
		src:     sc.oauth.OAuth2().TokenSource(sc.ctx, token),
		metrics: sc.metrics,
	})

	gmailClient, err := gmail.NewClient(sc.ctx, ts, sc.apiOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to build Gmail capability: %w", err)
	}
	driveClient, err := drive.NewClient(sc.ctx, ts, sc.apiOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to build Drive capability: %w", err)
	}
	calendarClient, err := calendar.NewClient(sc.ctx, ts, sc.apiOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to build Calendar capability: %w", err)
	}

	return &tools.Capabilities{
		Gmail:    gmailClient,
		Drive:    driveClient,
		Calendar: calendarClient,
	}, nil
}

func (sc *ServerContext) buildLock(userID string) *sync.Mutex {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if m, ok := sc.building[userID]; ok {
		return m
	}
	m := &sync.Mutex{}
	sc.building[userID] = m
	return m
}

// refreshMeter counts OAuth token refresh attempts.
type refreshMeter struct {
	ctx     context.Context
	src     oauth2.TokenSource
	metrics *instrumentation.Metrics
}

func (r *refreshMeter) Token() (*oauth2.Token, error) {
	token, err := r.src.Token()
	if r.metrics != nil {
		result := instrumentation.OAuthResultSuccess
		if err != nil {
			result = instrumentation.OAuthResultFailure
		}
		r.metrics.RecordOAuthTokenRefresh(r.ctx, result)
	}
	return token, err
}

// Invalidate evicts a session's cached capabilities. Called on
// disconnect so stale clients can never serve a reconnected session's
// old credential.
func (sc *ServerContext) Invalidate(userID string) {
	sc.mu.Lock()
	_, hadCaps := sc.caps[userID]
	delete(sc.caps, userID)
	delete(sc.building, userID)
	sc.mu.Unlock()

	if hadCaps && sc.metrics != nil {
		sc.metrics.DecrementActiveSessions(sc.ctx)
	}
}

// CachedCapabilities returns the number of sessions with built
// capabilities.
func (sc *ServerContext) CachedCapabilities() int {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return len(sc.caps)
}

// sweepLoop evicts cache entries whose session expired or disconnected.
func (sc *ServerContext) sweepLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			sc.sweep()
		case <-sc.sweepStop:
			return
		case <-sc.ctx.Done():
			return
		}
	}
}

func (sc *ServerContext) sweep() {
	sc.mu.RLock()
	cached := make([]string, 0, len(sc.caps))
	for userID := range sc.caps {
		cached = append(cached, userID)
	}
	sc.mu.RUnlock()

	evicted := 0
	for _, userID := range cached {
		if !sc.Authenticated(sc.ctx, userID) {
			sc.Invalidate(userID)
			evicted++
		}
	}

	if evicted > 0 {
		sc.logger.Info("capability cache sweep",
			slog.Int("evicted", evicted),
		)
	}
}

// StoreHealthy reports whether the session backend answers reads.
func (sc *ServerContext) StoreHealthy(ctx context.Context) bool {
	return sc.sessions.Ping(ctx) == nil
}

// IsShutdown returns whether the server has been shut down.
func (sc *ServerContext) IsShutdown() bool {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.shutdown
}

// Shutdown stops the sweep and cancels the server context.
func (sc *ServerContext) Shutdown() error {
	sc.mu.Lock()
	if sc.shutdown {
		sc.mu.Unlock()
		return nil
	}
	sc.shutdown = true
	sc.mu.Unlock()

	sc.sweepOnce.Do(func() { close(sc.sweepStop) })
	sc.cancel()
	return nil
}
