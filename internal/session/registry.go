package session

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/teemow/workspace-mcp/internal/logging"
)

// Key prefixes in the shared backend.
const (
	sessionKeyPrefix    = "session:"
	credentialKeyPrefix = "tokens:"
)

// ErrSessionNotFound is returned when a credential write targets a
// session id with no live session record.
var ErrSessionNotFound = errors.New("session not found")

// Registry creates, reads and updates session records. All failures of the
// underlying backend degrade to "not found": callers only ever observe
// absence, never store errors.
type Registry struct {
	backend Backend
	ttl     time.Duration
	logger  *slog.Logger
}

// NewRegistry creates a registry over the given backend. A zero ttl selects
// DefaultTTL.
func NewRegistry(backend Backend, ttl time.Duration, logger *slog.Logger) *Registry {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{backend: backend, ttl: ttl, logger: logger}
}

// TTL returns the configured session lifetime.
func (r *Registry) TTL() time.Duration {
	return r.ttl
}

// Ping checks that the backend answers reads. Used by readiness
// probes; the probed key does not need to exist.
func (r *Registry) Ping(ctx context.Context) error {
	_, _, err := r.backend.Get(ctx, sessionKeyPrefix+"ping")
	return err
}

// Create generates a fresh session id and writes a disconnected session
// record with the registry TTL. Ids are random UUIDs; no sequence is
// involved, so concurrent calls cannot collide.
func (r *Registry) Create(ctx context.Context) (*Session, error) {
	now := time.Now().UTC()
	s := &Session{
		ID:        uuid.NewString(),
		CreatedAt: now,
		ExpiresAt: now.Add(r.ttl),
		Connected: false,
	}

	data, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	if err := r.backend.Set(ctx, sessionKeyPrefix+s.ID, data, r.ttl); err != nil {
		return nil, err
	}

	r.logger.Info("created session", logging.UserHash(s.ID))
	return s, nil
}

// Get returns the session record, or false if the id is unknown, expired,
// or the backend is unreachable.
func (r *Registry) Get(ctx context.Context, id string) (*Session, bool) {
	data, found, err := r.backend.Get(ctx, sessionKeyPrefix+id)
	if err != nil {
		r.logger.Error("session lookup failed", logging.UserHash(id), logging.Err(err))
		return nil, false
	}
	if !found {
		return nil, false
	}

	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		r.logger.Error("corrupt session record", logging.UserHash(id), logging.Err(err))
		return nil, false
	}
	return &s, true
}

// SetConnected updates the connected flag of an existing session, keeping
// every other field and the remaining TTL intact. Missing sessions are a
// no-op: the flag has nothing to attach to once the session expired.
func (r *Registry) SetConnected(ctx context.Context, id string, connected bool) {
	s, ok := r.Get(ctx, id)
	if !ok {
		return
	}

	s.Connected = connected
	data, err := json.Marshal(s)
	if err != nil {
		r.logger.Error("marshal session record", logging.UserHash(id), logging.Err(err))
		return
	}
	if err := r.backend.SetKeepTTL(ctx, sessionKeyPrefix+id, data); err != nil {
		r.logger.Error("session update failed", logging.UserHash(id), logging.Err(err))
	}
}

// Credentials persists OAuth token material keyed by session id. Save and
// Delete keep the owning session's connected flag in lockstep.
type Credentials struct {
	backend  Backend
	registry *Registry
	logger   *slog.Logger
}

// NewCredentials creates a credential store sharing the registry's backend
// and TTL.
func NewCredentials(registry *Registry, logger *slog.Logger) *Credentials {
	if logger == nil {
		logger = slog.Default()
	}
	return &Credentials{backend: registry.backend, registry: registry, logger: logger}
}

// Save upserts the credential for a session and marks the session
// connected. The record is capped at the session's remaining lifetime; a
// credential must never outlive its session.
func (c *Credentials) Save(ctx context.Context, sessionID string, cred *Credential) error {
	sess, found := c.registry.Get(ctx, sessionID)
	if !found {
		return ErrSessionNotFound
	}
	ttl := time.Until(sess.ExpiresAt)
	if ttl <= 0 {
		return ErrSessionNotFound
	}

	data, err := json.Marshal(cred)
	if err != nil {
		return err
	}
	if err := c.backend.Set(ctx, credentialKeyPrefix+sessionID, data, ttl); err != nil {
		return err
	}

	c.registry.SetConnected(ctx, sessionID, true)
	c.logger.Info("saved credential", logging.UserHash(sessionID))
	return nil
}

// Get returns the credential for a session, or false if absent, expired, or
// the backend is unreachable.
func (c *Credentials) Get(ctx context.Context, sessionID string) (*Credential, bool) {
	data, found, err := c.backend.Get(ctx, credentialKeyPrefix+sessionID)
	if err != nil {
		c.logger.Error("credential lookup failed", logging.UserHash(sessionID), logging.Err(err))
		return nil, false
	}
	if !found {
		return nil, false
	}

	var cred Credential
	if err := json.Unmarshal(data, &cred); err != nil {
		c.logger.Error("corrupt credential record", logging.UserHash(sessionID), logging.Err(err))
		return nil, false
	}
	return &cred, true
}

// Delete removes the credential and marks the session disconnected. The
// session record itself survives until its TTL lapses, so the id stays
// valid for a fresh authorization attempt.
func (c *Credentials) Delete(ctx context.Context, sessionID string) error {
	if err := c.backend.Delete(ctx, credentialKeyPrefix+sessionID); err != nil {
		return err
	}

	c.registry.SetConnected(ctx, sessionID, false)
	c.logger.Info("deleted credential", logging.UserHash(sessionID))
	return nil
}
