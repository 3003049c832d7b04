package google

// OAuthScopes are the Google OAuth scopes requested for every session.
//
// The scopes provide access to:
//   - Gmail: read, modify, send (gmail.modify covers all three)
//   - Google Drive: full access
//   - Google Calendar: full access
var OAuthScopes = []string{
	"https://www.googleapis.com/auth/gmail.modify",
	"https://www.googleapis.com/auth/drive",
	"https://www.googleapis.com/auth/calendar",
}
