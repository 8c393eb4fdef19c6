package goAccess

import (
	"context"

	"github.com/MrEthical07/goAccess/store"
)

// Logout deactivates the session behind token. Unknown and already closed
// tokens succeed as well.
func (e *Engine) Logout(ctx context.Context, token string) (*Result[Empty], error) {
	if e == nil || e.sessions == nil {
		return nil, ErrEngineNotReady
	}

	sess, _, err := e.sessions.Lookup(ctx, token)
	if err != nil {
		return nil, storageErr(err)
	}
	closed, err := e.sessions.Invalidate(ctx, token)
	if err != nil {
		return nil, storageErr(err)
	}

	e.metricInc(MetricLogout)
	if closed {
		e.metricInc(MetricSessionInvalidated)
	}
	e.emitAudit(ctx, auditEventLogout, true, sess.UserID, sessionRef(token), nil, nil)

	return succeed("Logged out successfully", Empty{}), nil
}

// ValidateSession returns the user behind an active, unexpired token.
// Expired sessions are deactivated on the way.
func (e *Engine) ValidateSession(ctx context.Context, token string) (string, bool, error) {
	if e == nil || e.sessions == nil {
		return "", false, ErrEngineNotReady
	}
	userID, ok, err := e.sessions.Validate(ctx, token)
	if err != nil {
		return "", false, storageErr(err)
	}
	return userID, ok, nil
}

// CurrentUser returns the account behind token with its role names.
func (e *Engine) CurrentUser(ctx context.Context, token string) (*Result[UserInfo], error) {
	userID, ok, err := e.ValidateSession(ctx, token)
	if err != nil {
		return nil, err
	}
	if !ok {
		return fail[UserInfo]("Invalid or expired session"), ErrInvalidSession
	}

	user, err := e.users.UserByID(ctx, userID)
	if err != nil {
		if store.IsNotFound(err) {
			return fail[UserInfo]("User not found"), ErrUserNotFound
		}
		return nil, storageErr(err)
	}

	info, err := e.userInfo(ctx, user)
	if err != nil {
		return nil, err
	}
	return succeed("", info), nil
}
