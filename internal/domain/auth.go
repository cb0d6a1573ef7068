package domain

import "time"

// AccessToken is a signed bearer token issued to a user.
type AccessToken struct {
	Token     string
	UserID    int64
	IssuedAt  time.Time
	ExpiresAt time.Time
}
