// Package server carries the HTTP surface of the bridge: the session
// lifecycle endpoints, the OAuth redirect pair, and the per-session
// JSON-RPC dispatcher at /mcp/{userId}.
//
// ServerContext owns the capability cache. Capabilities for a session
// are built once from its stored credential and reused until the
// session disconnects or expires; a background sweep evicts entries
// whose session is gone from the store.
package server
