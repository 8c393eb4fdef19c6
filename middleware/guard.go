package middleware

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"

	goAccess "github.com/MrEthical07/goAccess"
	"github.com/MrEthical07/goAccess/authz"
	"github.com/MrEthical07/goAccess/permission"
)

// SessionCookie is the cookie [Session] falls back to when no bearer token
// is present.
const SessionCookie = "SESSION_TOKEN"

// SessionValidator resolves a session token to a user id. *goAccess.Engine
// implements it.
type SessionValidator interface {
	ValidateSession(ctx context.Context, token string) (string, bool, error)
}

// Authorizer answers the checks the Require* guards make. *goAccess.Engine
// implements it.
type Authorizer interface {
	RequireRole(ctx context.Context, userID, role string) error
	RequireLevel(ctx context.Context, userID string, required permission.OrgLevel) error
	Decide(ctx context.Context, userID, resource, action, resourceID string) (authz.Decision, error)
}

var (
	_ SessionValidator = (*goAccess.Engine)(nil)
	_ Authorizer       = (*goAccess.Engine)(nil)
)

type userIDContextKey struct{}
type tokenContextKey struct{}
type decisionContextKey struct{}

// UserIDFromContext returns the user id stored by [Session].
func UserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDContextKey{}).(string)
	return id, ok && id != ""
}

// TokenFromContext returns the session token stored by [Session].
func TokenFromContext(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(tokenContextKey{}).(string)
	return token, ok && token != ""
}

// DecisionFromContext returns the decision that admitted the request
// through [RequireAccess].
func DecisionFromContext(ctx context.Context) (authz.Decision, bool) {
	d, ok := ctx.Value(decisionContextKey{}).(authz.Decision)
	return d, ok
}

// Session rejects requests without a valid session with 401 and stores the
// user id and token in the request context. The client address is recorded
// for audit events.
func Session(v SessionValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if v == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			token, ok := RequestToken(r)
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := WithRequestIP(r)
			userID, ok, err := v.ValidateSession(ctx, token)
			if err != nil {
				http.Error(w, "service unavailable", http.StatusServiceUnavailable)
				return
			}
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			ctx = context.WithValue(ctx, userIDContextKey{}, userID)
			ctx = context.WithValue(ctx, tokenContextKey{}, token)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole admits session holders with role. Mount it behind [Session].
func RequireRole(a Authorizer, role string) func(http.Handler) http.Handler {
	return guard(func(ctx context.Context, _ *http.Request, userID string) (context.Context, error) {
		return ctx, a.RequireRole(ctx, userID, role)
	})
}

// RequireLevel admits session holders at or above required in the
// organizational hierarchy. Mount it behind [Session].
func RequireLevel(a Authorizer, required permission.OrgLevel) func(http.Handler) http.Handler {
	return guard(func(ctx context.Context, _ *http.Request, userID string) (context.Context, error) {
		return ctx, a.RequireLevel(ctx, userID, required)
	})
}

// RequireAccess admits session holders allowed to perform action on
// resource. resourceID extracts the resource instance from the request so
// temporary grants are honored; it may be nil. The admitting decision is
// available to the handler through [DecisionFromContext]. Mount it behind
// [Session].
func RequireAccess(a Authorizer, resource, action string, resourceID func(*http.Request) string) func(http.Handler) http.Handler {
	return guard(func(ctx context.Context, r *http.Request, userID string) (context.Context, error) {
		id := ""
		if resourceID != nil {
			id = resourceID(r)
		}
		d, err := a.Decide(ctx, userID, resource, action, id)
		if err != nil {
			return ctx, err
		}
		if !d.Allowed {
			return ctx, goAccess.ErrPermissionDenied
		}
		return context.WithValue(ctx, decisionContextKey{}, d), nil
	})
}

// guard runs check for the session holder. check returns the context the
// next handler sees.
func guard(check func(ctx context.Context, r *http.Request, userID string) (context.Context, error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, ok := UserIDFromContext(r.Context())
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			ctx, err := check(r.Context(), r, userID)
			switch {
			case err == nil:
				next.ServeHTTP(w, r.WithContext(ctx))
			case errors.Is(err, goAccess.ErrAuthorization), errors.Is(err, permission.ErrDenied):
				http.Error(w, "forbidden", http.StatusForbidden)
			default:
				http.Error(w, "service unavailable", http.StatusServiceUnavailable)
			}
		})
	}
}

// RequestToken returns the bearer token, or the session cookie when there
// is no Authorization header.
func RequestToken(r *http.Request) (string, bool) {
	if h := r.Header.Get("Authorization"); h != "" {
		return bearerToken(h)
	}
	c, err := r.Cookie(SessionCookie)
	if err != nil || c.Value == "" {
		return "", false
	}
	return c.Value, true
}

// WithRequestIP returns the request context carrying the client address.
func WithRequestIP(r *http.Request) context.Context {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	if host == "" {
		return r.Context()
	}
	return goAccess.WithClientIP(r.Context(), host)
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	token := value[len(bearer):]
	if token == "" {
		return "", false
	}

	return token, true
}
