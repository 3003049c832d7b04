// Package google implements the OAuth authorization flow that connects a
// session to a Google account.
//
// The flow controller is stateless: every call derives what it needs from
// the immutable OAuthConfig and the arguments, so any number of server
// instances can run the flow as long as they share a session store. The
// session id rides along as the opaque OAuth state parameter, which is how
// the callback recovers the originating session without cookies.
package google
