package domain

import "time"

// AdminCredential is the cached service-level access token used for admin API calls.
// Instances are immutable; the cache swaps whole values.
type AdminCredential struct {
	Token     string
	ExpiresAt time.Time
}

// ValidAt reports whether the credential may still be served at now, keeping
// margin in reserve for clock skew against the provider.
func (c *AdminCredential) ValidAt(now time.Time, margin time.Duration) bool {
	if c == nil || c.Token == "" {
		return false
	}
	return now.Before(c.ExpiresAt.Add(-margin))
}

// AuthTokens is the result of a successful grant against the provider.
type AuthTokens struct {
	AccessToken  string `json:"access_token"`
	ExpiresIn    int64  `json:"expires_in"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
}
