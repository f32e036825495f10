package types

import "time"

// Session is one refresh/access token pair bound to an account and the
// device it was issued to. At most one session exists per
// (account, user agent) pair; re-authentication from the same device
// rotates the tokens in place.
type Session struct {
	ID           string    `json:"id" db:"id"`
	AccountID    string    `json:"sessionClientId" db:"account_id"`
	AccessToken  string    `json:"-" db:"access_token"`
	RefreshToken string    `json:"-" db:"refresh_token"`
	IP           string    `json:"ip" db:"ip"`
	UserAgent    string    `json:"userAgent" db:"user_agent"`
	LastAccessed time.Time `json:"lastAccessed" db:"last_accessed"`
}
