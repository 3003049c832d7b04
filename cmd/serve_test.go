package cmd

import (
	"testing"
	"time"
)

func TestResolveBaseURL(t *testing.T) {
	tests := []struct {
		name     string
		baseURL  string
		httpAddr string
		expected string
	}{
		{
			name:     "configured base URL wins",
			baseURL:  "https://bridge.example.com",
			httpAddr: ":8080",
			expected: "https://bridge.example.com",
		},
		{
			name:     "port-only address maps to localhost",
			baseURL:  "",
			httpAddr: ":8080",
			expected: "http://localhost:8080",
		},
		{
			name:     "host and port address",
			baseURL:  "",
			httpAddr: "10.0.0.5:8080",
			expected: "http://10.0.0.5:8080",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := resolveBaseURL(tt.baseURL, tt.httpAddr); got != tt.expected {
				t.Errorf("resolveBaseURL(%q, %q) = %q, want %q", tt.baseURL, tt.httpAddr, got, tt.expected)
			}
		})
	}
}

func TestLoadServeEnvVars(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("PUBLIC_URL", "https://bridge.example.com")
	t.Setenv("GOOGLE_CLIENT_ID", "env-client-id")
	t.Setenv("GOOGLE_CLIENT_SECRET", "env-client-secret")
	t.Setenv("SESSION_TTL", "12h")
	t.Setenv("SESSION_STORAGE_TYPE", "valkey")
	t.Setenv("VALKEY_URL", "valkey.svc:6379")
	t.Setenv("VALKEY_PASSWORD", "secret")
	t.Setenv("VALKEY_TLS_ENABLED", "true")
	t.Setenv("VALKEY_DB", "3")
	t.Setenv("METRICS_ENABLED", "false")
	t.Setenv("METRICS_ADDR", ":9191")

	cmd := newServeCmd()
	var config ServeConfig
	loadServeEnvVars(cmd, &config)

	if config.HTTPAddr != ":9000" {
		t.Errorf("HTTPAddr = %q, want %q", config.HTTPAddr, ":9000")
	}
	if config.BaseURL != "https://bridge.example.com" {
		t.Errorf("BaseURL = %q, want %q", config.BaseURL, "https://bridge.example.com")
	}
	if config.GoogleClientID != "env-client-id" {
		t.Errorf("GoogleClientID = %q, want %q", config.GoogleClientID, "env-client-id")
	}
	if config.GoogleClientSecret != "env-client-secret" {
		t.Errorf("GoogleClientSecret = %q, want %q", config.GoogleClientSecret, "env-client-secret")
	}
	if config.SessionTTL != 12*time.Hour {
		t.Errorf("SessionTTL = %v, want %v", config.SessionTTL, 12*time.Hour)
	}
	if config.Storage.Type != StorageTypeValkey {
		t.Errorf("Storage.Type = %q, want %q", config.Storage.Type, StorageTypeValkey)
	}
	if config.Storage.Valkey.URL != "valkey.svc:6379" {
		t.Errorf("Valkey.URL = %q, want %q", config.Storage.Valkey.URL, "valkey.svc:6379")
	}
	if config.Storage.Valkey.Password != "secret" {
		t.Errorf("Valkey.Password = %q, want %q", config.Storage.Valkey.Password, "secret")
	}
	if !config.Storage.Valkey.TLSEnabled {
		t.Error("Valkey.TLSEnabled should be true from env")
	}
	if config.Storage.Valkey.DB != 3 {
		t.Errorf("Valkey.DB = %d, want 3", config.Storage.Valkey.DB)
	}
	if config.Metrics.Enabled {
		t.Error("Metrics.Enabled should be false from env")
	}
	if config.Metrics.Addr != ":9191" {
		t.Errorf("Metrics.Addr = %q, want %q", config.Metrics.Addr, ":9191")
	}
}

func TestLoadServeEnvVarsFlagsWin(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("SESSION_STORAGE_TYPE", "valkey")

	cmd := newServeCmd()
	if err := cmd.ParseFlags([]string{"--http-addr", ":7070", "--session-storage-type", "memory"}); err != nil {
		t.Fatalf("failed to parse flags: %v", err)
	}

	config := ServeConfig{
		HTTPAddr: ":7070",
		Storage:  SessionStorageConfig{Type: StorageTypeMemory},
	}
	loadServeEnvVars(cmd, &config)

	if config.HTTPAddr != ":7070" {
		t.Errorf("HTTPAddr = %q, explicit flag should win over env", config.HTTPAddr)
	}
	if config.Storage.Type != StorageTypeMemory {
		t.Errorf("Storage.Type = %q, explicit flag should win over env", config.Storage.Type)
	}
}

func TestLoadServeEnvVarsInvalidTTL(t *testing.T) {
	t.Setenv("SESSION_TTL", "not-a-duration")

	cmd := newServeCmd()
	config := ServeConfig{SessionTTL: 24 * time.Hour}
	loadServeEnvVars(cmd, &config)

	if config.SessionTTL != 24*time.Hour {
		t.Errorf("SessionTTL = %v, invalid env value should keep default", config.SessionTTL)
	}
}

func TestNewSessionBackend(t *testing.T) {
	t.Run("memory", func(t *testing.T) {
		backend, err := newSessionBackend(SessionStorageConfig{Type: StorageTypeMemory})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		defer func() { _ = backend.Close() }()
	})

	t.Run("empty defaults to memory", func(t *testing.T) {
		backend, err := newSessionBackend(SessionStorageConfig{})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		defer func() { _ = backend.Close() }()
	})

	t.Run("valkey without url", func(t *testing.T) {
		if _, err := newSessionBackend(SessionStorageConfig{Type: StorageTypeValkey}); err == nil {
			t.Error("expected error for valkey backend without address")
		}
	})

	t.Run("unsupported type", func(t *testing.T) {
		if _, err := newSessionBackend(SessionStorageConfig{Type: "redis"}); err == nil {
			t.Error("expected error for unsupported storage type")
		}
	})
}

func TestRunServeRequiresCredentials(t *testing.T) {
	err := runServe(ServeConfig{HTTPAddr: ":0"})
	if err == nil {
		t.Fatal("expected error without Google OAuth credentials")
	}
}
