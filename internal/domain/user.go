package domain

import "time"

// UserRecord mirrors the provider's user representation.
type UserRecord struct {
	ID               string
	Username         string
	Email            string
	Enabled          bool
	CreatedTimestamp int64 // epoch milliseconds
}

// CreatedAt converts the provider timestamp into a time.Time.
func (u *UserRecord) CreatedAt() time.Time {
	if u.CreatedTimestamp == 0 {
		return time.Time{}
	}
	return time.UnixMilli(u.CreatedTimestamp).UTC()
}

// UserIdentity is the current-user view assembled from a user lookup and a
// realm role lookup.
type UserIdentity struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Roles     []string  `json:"roles"`
	CreatedAt time.Time `json:"created_at"`
}
