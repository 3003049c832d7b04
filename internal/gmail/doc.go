// Package gmail wraps the Gmail Users API for the three mail tools:
// searching messages, sending plain-text mail, and reading a single
// message in full.
//
// A Client is bound to the credential of one session and must not be
// shared across sessions. Construction is cheap; no network traffic
// happens until the first call.
package gmail
