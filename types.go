package goAccess

import (
	"time"

	"github.com/MrEthical07/goAccess/jit"
	"github.com/MrEthical07/goAccess/permission"
)

// Result is the outcome of an Engine operation. Success is false for every
// expected failure, and the accompanying error says which kind it was.
// Message is safe to show to the caller.
type Result[T any] struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Payload T      `json:"payload,omitempty"`
}

func succeed[T any](message string, payload T) *Result[T] {
	return &Result[T]{Success: true, Message: message, Payload: payload}
}

func fail[T any](message string) *Result[T] {
	return &Result[T]{Message: message}
}

// Empty is the payload of operations that return nothing.
type Empty struct{}

// RegisterPayload is returned by [Engine.Register].
type RegisterPayload struct {
	UserID                    string `json:"userId"`
	RequiresEmailVerification bool   `json:"requiresEmailVerification"`
}

// LoginPayload is returned by the password step of [Engine.Login].
type LoginPayload struct {
	Requires2FA bool `json:"requires2FA"`
}

// UserInfo is the public view of an account.
type UserInfo struct {
	ID       string   `json:"id"`
	Username string   `json:"username"`
	Email    string   `json:"email"`
	Roles    []string `json:"roles"`
	Blocked  bool     `json:"blocked,omitempty"`
}

// RoleInfo is the public view of a catalog role.
type RoleInfo struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description"`
}

func roleInfos(roles []permission.Role) []RoleInfo {
	out := make([]RoleInfo, len(roles))
	for i, r := range roles {
		out[i] = RoleInfo{Name: r.Name, Type: r.Type.String(), Description: r.Description}
	}
	return out
}

// SessionPayload is returned by [Engine.Verify2FA].
type SessionPayload struct {
	SessionToken string   `json:"sessionToken"`
	User         UserInfo `json:"user"`
}

// AccessPayload carries the grant an access operation acted on. For a
// request refused because access is already active it holds the active
// grant, whose ExpiresAt says when a new request becomes possible.
type AccessPayload struct {
	Grant *jit.Grant `json:"grant,omitempty"`
}

// AccessStatus is returned by [Engine.CheckAccessStatus].
type AccessStatus struct {
	HasAccess bool       `json:"hasAccess"`
	IsExpired bool       `json:"isExpired"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
	Grant     *jit.Grant `json:"grant,omitempty"`
}

// Stats summarizes stored entities.
type Stats struct {
	TotalUsers          int `json:"totalUsers"`
	TotalAccessRequests int `json:"totalAccessRequests"`
}

// SeedAccount describes one account created by [Engine.Seed].
type SeedAccount struct {
	Username string
	Email    string
	Role     string
}
