// Package session holds the active authenticated context for a device:
// the access token plus the tenant and user it is scoped to. One session
// is active per device at a time; establishing a new one overwrites the
// old, and every surface on the device observes the same session through
// the shared kvstore.
package session

// Session is an authenticated context as issued by the backend.
// Token presence is the authentication gate: components treat a
// non-empty AccessToken as "authenticated" and leave expiry checks to
// the backend, whose 401 on any call is the actual expiry signal.
type Session struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	TenantID    int    `json:"tenant_id"`
	TenantName  string `json:"tenant_name,omitempty"`
	UserID      int    `json:"user_id"`
	Email       string `json:"email"`
	ExpiresIn   int    `json:"expires_in,omitempty"`
}
