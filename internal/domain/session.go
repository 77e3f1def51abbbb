package domain

import "time"

// SessionTTL is how long an app session stays valid after creation.
const SessionTTL = 24 * time.Hour

// AppSession binds a short-lived session id to a user and wallet address.
// Only transactions reported under a live session are considered
// app-originated. Sessions are process-ephemeral: losing them on restart is
// part of the contract, the surrounding app re-authenticates.
type AppSession struct {
	ID          string    `json:"sessionId"`
	UserID      string    `json:"userId"`
	UserAddress string    `json:"userAddress"`
	CreatedAt   time.Time `json:"createdAt"`
	ExpiresAt   time.Time `json:"expiresAt"`
	Active      bool      `json:"isActive"`
}

// Valid reports whether the session can still authorize transactions.
func (s AppSession) Valid(now time.Time) bool {
	return s.Active && now.Before(s.ExpiresAt)
}
