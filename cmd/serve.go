package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/teemow/workspace-mcp/internal/google"
	"github.com/teemow/workspace-mcp/internal/instrumentation"
	"github.com/teemow/workspace-mcp/internal/logging"
	"github.com/teemow/workspace-mcp/internal/server"
	"github.com/teemow/workspace-mcp/internal/session"
	"github.com/teemow/workspace-mcp/internal/tools"
	"github.com/teemow/workspace-mcp/internal/tools/calendar_tools"
	"github.com/teemow/workspace-mcp/internal/tools/drive_tools"
	"github.com/teemow/workspace-mcp/internal/tools/gmail_tools"
)

// Session storage backend types.
const (
	StorageTypeMemory = "memory"
	StorageTypeValkey = "valkey"
)

// ServeConfig holds the resolved configuration for the serve command.
type ServeConfig struct {
	// HTTPAddr is the listen address for the bridge (e.g., ":8080").
	HTTPAddr string

	// BaseURL is the public base URL used in OAuth redirects and the
	// MCP endpoint URLs handed to clients.
	BaseURL string

	// Google OAuth client credentials.
	GoogleClientID     string
	GoogleClientSecret string

	// SessionTTL is the lifetime of sessions and stored credentials.
	SessionTTL time.Duration

	// Debug enables debug logging.
	Debug bool

	Storage SessionStorageConfig
	Metrics MetricsConfig
}

// SessionStorageConfig holds session storage backend configuration.
type SessionStorageConfig struct {
	// Type is the storage backend type: "memory" or "valkey" (default: "memory")
	Type string

	// Valkey configuration (used when Type is "valkey")
	Valkey ValkeyStorageConfig
}

// ValkeyStorageConfig holds configuration for the Valkey storage backend.
type ValkeyStorageConfig struct {
	// URL is the Valkey server address (e.g., "valkey.namespace.svc:6379")
	URL string

	// Password is the optional password for Valkey authentication
	Password string

	// TLSEnabled enables TLS for Valkey connections
	TLSEnabled bool

	// DB is the Valkey database number (default: 0)
	DB int
}

// MetricsConfig holds configuration for the metrics server.
type MetricsConfig struct {
	// Enabled determines whether to start the metrics server (default: true)
	Enabled bool

	// Addr is the address for the metrics server (e.g., ":9090")
	Addr string
}

func newServeCmd() *cobra.Command {
	var config ServeConfig

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the Google Workspace MCP bridge",
		Long: `Start the multi-tenant bridge that exposes Gmail, Drive, and Calendar
tools to MCP clients over per-user HTTP endpoints.

Endpoints:
  GET  /session/new           create a session, returns userId and auth URL
  GET  /auth/start/{userId}   redirect to Google consent
  GET  /auth/callback         OAuth redirect target
  GET  /status/{userId}       connection status
  POST /disconnect/{userId}   revoke stored tokens
  *    /mcp/{userId}          per-user JSON-RPC endpoint

OAuth Configuration:
  --google-client-id and --google-client-secret flags
  OR GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET env vars.

  The base URL must match an authorized redirect URI of the OAuth client
  ({base-url}/auth/callback). Set --base-url or PUBLIC_URL for deployed
  instances; localhost is auto-detected for development.

Session Storage:
  Sessions live in memory by default and are lost on restart. Use
  --session-storage-type valkey with --valkey-url for multi-replica
  deployments or restart persistence.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			loadServeEnvVars(cmd, &config)
			return runServe(config)
		},
	}

	cmd.Flags().BoolVar(&config.Debug, "debug", false, "Enable debug logging")
	cmd.Flags().StringVar(&config.HTTPAddr, "http-addr", ":8080", "HTTP server address. Can also use PORT env var.")
	cmd.Flags().StringVar(&config.BaseURL, "base-url", "", "Public base URL for OAuth redirects and MCP endpoint URLs. Required for deployed instances. Can also use PUBLIC_URL env var. Example: https://bridge.example.com")
	cmd.Flags().StringVar(&config.GoogleClientID, "google-client-id", "", "Google OAuth Client ID. Can also use GOOGLE_CLIENT_ID env var.")
	cmd.Flags().StringVar(&config.GoogleClientSecret, "google-client-secret", "", "Google OAuth Client Secret. Can also use GOOGLE_CLIENT_SECRET env var.")
	cmd.Flags().DurationVar(&config.SessionTTL, "session-ttl", session.DefaultTTL, "Session and credential lifetime. Can also use SESSION_TTL env var.")

	// Session storage flags
	cmd.Flags().StringVar(&config.Storage.Type, "session-storage-type", StorageTypeMemory, "Session storage type: memory or valkey. Can also use SESSION_STORAGE_TYPE env var.")
	cmd.Flags().StringVar(&config.Storage.Valkey.URL, "valkey-url", "", "Valkey server address (e.g., valkey.namespace.svc:6379). Can also use VALKEY_URL env var.")
	cmd.Flags().StringVar(&config.Storage.Valkey.Password, "valkey-password", "", "Valkey authentication password. Can also use VALKEY_PASSWORD env var.")
	cmd.Flags().BoolVar(&config.Storage.Valkey.TLSEnabled, "valkey-tls", false, "Enable TLS for Valkey connections. Can also use VALKEY_TLS_ENABLED env var.")
	cmd.Flags().IntVar(&config.Storage.Valkey.DB, "valkey-db", 0, "Valkey database number. Can also use VALKEY_DB env var.")

	// Metrics server flags
	cmd.Flags().BoolVar(&config.Metrics.Enabled, "metrics-enabled", true, "Enable the metrics server on a dedicated port. Can also use METRICS_ENABLED env var.")
	cmd.Flags().StringVar(&config.Metrics.Addr, "metrics-addr", server.DefaultMetricsAddr, "Metrics server address. Can also use METRICS_ADDR env var.")

	return cmd
}

// loadServeEnvVars fills config fields from environment variables.
// Environment variables only apply when the corresponding flag was not
// explicitly set by the user.
func loadServeEnvVars(cmd *cobra.Command, config *ServeConfig) {
	if !cmd.Flags().Changed("http-addr") {
		if port := os.Getenv("PORT"); port != "" {
			config.HTTPAddr = ":" + port
		}
	}

	if !cmd.Flags().Changed("base-url") {
		if url := os.Getenv("PUBLIC_URL"); url != "" {
			config.BaseURL = url
		}
	}

	if config.GoogleClientID == "" {
		config.GoogleClientID = os.Getenv("GOOGLE_CLIENT_ID")
	}
	if config.GoogleClientSecret == "" {
		config.GoogleClientSecret = os.Getenv("GOOGLE_CLIENT_SECRET")
	}

	if !cmd.Flags().Changed("session-ttl") {
		if ttlStr := os.Getenv("SESSION_TTL"); ttlStr != "" {
			if ttl, err := time.ParseDuration(ttlStr); err == nil && ttl > 0 {
				config.SessionTTL = ttl
			} else {
				slog.Warn("invalid SESSION_TTL value, keeping default",
					"value", ttlStr, "default", config.SessionTTL)
			}
		}
	}

	if !cmd.Flags().Changed("session-storage-type") {
		if storageType := os.Getenv("SESSION_STORAGE_TYPE"); storageType != "" {
			config.Storage.Type = storageType
		}
	}
	if !cmd.Flags().Changed("valkey-url") {
		if url := os.Getenv("VALKEY_URL"); url != "" {
			config.Storage.Valkey.URL = url
		}
	}
	if !cmd.Flags().Changed("valkey-password") {
		if password := os.Getenv("VALKEY_PASSWORD"); password != "" {
			config.Storage.Valkey.Password = password
		}
	}
	if !cmd.Flags().Changed("valkey-tls") {
		if os.Getenv("VALKEY_TLS_ENABLED") == "true" {
			config.Storage.Valkey.TLSEnabled = true
		}
	}
	if !cmd.Flags().Changed("valkey-db") {
		if dbStr := os.Getenv("VALKEY_DB"); dbStr != "" {
			if db, err := strconv.Atoi(dbStr); err == nil {
				config.Storage.Valkey.DB = db
			}
		}
	}

	if !cmd.Flags().Changed("metrics-enabled") {
		if os.Getenv("METRICS_ENABLED") == "false" {
			config.Metrics.Enabled = false
		}
	}
	if !cmd.Flags().Changed("metrics-addr") {
		if addr := os.Getenv("METRICS_ADDR"); addr != "" {
			config.Metrics.Addr = addr
		}
	}
}

// resolveBaseURL returns the public base URL, falling back to a localhost
// URL derived from the listen address for local development.
func resolveBaseURL(baseURL, httpAddr string) string {
	if baseURL != "" {
		return baseURL
	}
	if len(httpAddr) > 0 && httpAddr[0] == ':' {
		return "http://localhost" + httpAddr
	}
	return "http://" + httpAddr
}

// newSessionBackend creates the session storage backend from config.
func newSessionBackend(config SessionStorageConfig) (session.Backend, error) {
	switch config.Type {
	case StorageTypeMemory, "":
		return session.NewMemoryBackend(time.Minute), nil
	case StorageTypeValkey:
		return session.NewValkeyBackend(session.ValkeyConfig{
			Address:    config.Valkey.URL,
			Password:   config.Valkey.Password,
			DB:         config.Valkey.DB,
			TLSEnabled: config.Valkey.TLSEnabled,
		})
	default:
		return nil, fmt.Errorf("unsupported session storage type: %s (supported: memory, valkey)", config.Type)
	}
}

func runServe(config ServeConfig) error {
	shutdownCtx, cancel := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logging.Setup(config.Debug)
	logger := slog.Default()

	if config.GoogleClientID == "" || config.GoogleClientSecret == "" {
		return fmt.Errorf("google OAuth credentials are required: set --google-client-id and --google-client-secret or GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET")
	}

	baseURL := resolveBaseURL(config.BaseURL, config.HTTPAddr)
	if config.BaseURL == "" {
		logger.Info("no base URL configured, using auto-detected value",
			"base_url", baseURL)
		logger.Info("for deployed instances, set --base-url or PUBLIC_URL")
	} else {
		logger.Info("using configured base URL", "base_url", baseURL)
	}

	// Instrumentation
	instrConfig := instrumentation.DefaultConfig()
	instrConfig.ServiceVersion = version

	provider, err := instrumentation.NewProvider(shutdownCtx, instrConfig)
	if err != nil {
		return fmt.Errorf("failed to create instrumentation provider: %w", err)
	}
	defer func() {
		if err := provider.Shutdown(context.Background()); err != nil {
			logger.Error("instrumentation shutdown failed", logging.Err(err))
		}
	}()

	var metricsServer *server.MetricsServer
	if config.Metrics.Enabled && provider.Enabled() {
		metricsServer, err = server.NewMetricsServer(config.Metrics.Addr, provider, logger)
		if err != nil {
			return fmt.Errorf("failed to create metrics server: %w", err)
		}

		go func() {
			if err := metricsServer.Start(); err != nil && err != http.ErrServerClosed {
				logger.Error("metrics server failed", logging.Err(err))
			}
		}()
		logger.Info("metrics server started", "addr", metricsServer.Addr())

		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := metricsServer.Shutdown(shutdownCtx); err != nil {
				logger.Error("metrics server shutdown failed", logging.Err(err))
			}
		}()
	}

	// Session and credential stores
	backend, err := newSessionBackend(config.Storage)
	if err != nil {
		return fmt.Errorf("failed to create session backend: %w", err)
	}
	defer func() {
		if err := backend.Close(); err != nil {
			logger.Error("session backend close failed", logging.Err(err))
		}
	}()

	sessions := session.NewRegistry(backend, config.SessionTTL, logger)
	credentials := session.NewCredentials(sessions, logger)

	oauthConfig := &google.OAuthConfig{
		ClientID:     config.GoogleClientID,
		ClientSecret: config.GoogleClientSecret,
		RedirectURL:  baseURL + "/auth/callback",
	}

	serverContext, err := server.NewServerContext(shutdownCtx, server.Config{
		Sessions:    sessions,
		Credentials: credentials,
		OAuth:       oauthConfig,
		Logger:      logger,
	})
	if err != nil {
		return fmt.Errorf("failed to create server context: %w", err)
	}
	defer func() {
		if err := serverContext.Shutdown(); err != nil {
			logger.Error("server context shutdown failed", logging.Err(err))
		}
	}()

	if provider.Enabled() {
		auditLogger := instrumentation.NewAuditLoggerWithConfig(logger, instrConfig.AuditLogging)
		serverContext.SetInstrumentation(provider, auditLogger)
	}

	// Tool registry
	registry := tools.NewRegistry()
	gmail_tools.Register(registry)
	drive_tools.Register(registry)
	calendar_tools.Register(registry)

	dispatcher := server.NewDispatcher(serverContext, registry)
	health := server.NewHealthChecker(serverContext)
	handler := server.NewHTTPHandler(serverContext, dispatcher, health, baseURL)

	httpServer := &http.Server{
		Addr:              config.HTTPAddr,
		Handler:           handler.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("workspace bridge starting",
		"addr", config.HTTPAddr,
		"base_url", baseURL,
		"session_ttl", config.SessionTTL,
		"storage", config.Storage.Type,
		"tools", registry.Len(),
	)

	serverDone := make(chan error, 1)
	go func() {
		defer close(serverDone)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverDone <- err
		}
	}()

	select {
	case <-shutdownCtx.Done():
		logger.Info("shutdown signal received, stopping HTTP server")
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer stopCancel()
		if err := httpServer.Shutdown(stopCtx); err != nil {
			return fmt.Errorf("error shutting down HTTP server: %w", err)
		}
	case err := <-serverDone:
		if err != nil {
			return fmt.Errorf("HTTP server stopped with error: %w", err)
		}
	}

	logger.Info("HTTP server gracefully stopped")
	return nil
}
