package session

import "time"

// Session is the stored view of one token.
type Session struct {
	UserID    string
	CreatedAt time.Time
	ExpiresAt time.Time
	Active    bool
}

// Config controls session lifetime.
type Config struct {
	// Timeout is the absolute lifetime of a session.
	Timeout time.Duration
	// RetainInactive is how long deactivated records stay in Redis.
	RetainInactive time.Duration
}

// DefaultConfig returns a 30 minute session timeout and a day of retention.
func DefaultConfig() Config {
	return Config{
		Timeout:        30 * time.Minute,
		RetainInactive: 24 * time.Hour,
	}
}
