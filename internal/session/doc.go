// Package session implements the per-user session registry and credential
// store that back the multi-tenant MCP endpoint.
//
// A Session identifies one user's interaction lifecycle independent of
// whether they have authorized Google access. A Credential holds the OAuth
// token material for a session. Both record types share one TTL and live in
// a pluggable Backend (in-memory for development, Valkey for deployments),
// keyed as "session:<id>" and "tokens:<id>".
//
// # Invariant
//
// A session is connected iff a credential record with a non-empty access
// token exists for it. Save and Delete on the credential store flip the
// session's connected flag in lockstep to preserve this.
//
// # Failure semantics
//
// Backend unavailability degrades every lookup to "not found" rather than
// surfacing an error: an unreachable store must never be interpreted as an
// authenticated session.
package session
