package goAccess

import (
	"context"
	"errors"

	"github.com/MrEthical07/goAccess/internal"
	"github.com/MrEthical07/goAccess/internal/rate"
	"github.com/MrEthical07/goAccess/otp"
	"github.com/MrEthical07/goAccess/store"
)

const msgInvalidCredentials = "Invalid username or password"

// Login is the password step of the two-step login. On success it sends a
// TWO_FACTOR code to the account's e-mail; no session exists until
// [Engine.Verify2FA] succeeds.
//
// Unknown usernames and wrong passwords share one message and both pay for
// a password verification. Failed attempts are counted per username, and
// per client IP when enabled.
func (e *Engine) Login(ctx context.Context, username, pwd string) (*Result[LoginPayload], error) {
	if e == nil || e.users == nil || e.hasher == nil {
		return nil, ErrEngineNotReady
	}

	ip := clientIPFromContext(ctx)

	if err := e.limiter.CheckLogin(ctx, username, ip); err != nil {
		if errors.Is(err, rate.ErrRateLimited) {
			e.metricInc(MetricLoginRateLimited)
			e.emitAudit(ctx, auditEventLoginRateLimited, false, "", "", ErrLoginRateLimited, func() map[string]string {
				return map[string]string{"identifier": username}
			})
			return fail[LoginPayload]("Too many failed login attempts. Please try again later."), ErrLoginRateLimited
		}
		return nil, storageErr(err)
	}

	user, err := e.users.UserByUsername(ctx, username)
	if err != nil {
		if !store.IsNotFound(err) {
			return nil, storageErr(err)
		}
		if e.absentHash != "" {
			_, _ = e.hasher.Verify(pwd, e.absentHash)
		}
		return e.loginFailed(ctx, "", username, ip)
	}

	ok, err := e.hasher.Verify(pwd, user.PasswordHash)
	if err != nil || !ok {
		return e.loginFailed(ctx, user.ID, username, ip)
	}

	if user.Blocked {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, user.ID, "", ErrAccountBlocked, nil)
		return fail[LoginPayload]("Account is blocked"), ErrAccountBlocked
	}
	if !user.EmailVerified {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, user.ID, "", ErrEmailNotVerified, nil)
		return fail[LoginPayload]("Please verify your email before logging in"), ErrEmailNotVerified
	}

	if e.config.Password.UpgradeOnLogin {
		e.upgradePasswordHash(ctx, user, pwd)
	}

	if err := e.limiter.ResetLogin(ctx, username, ip); err != nil {
		logger.Warningf("resetting login attempts for %s failed: %v", user.ID, err)
	}

	if err := e.deliverCode(ctx, user, otp.TwoFactor); err != nil {
		return nil, err
	}

	e.metricInc(MetricLoginPasswordSuccess)
	e.emitAudit(ctx, auditEventLoginPasswordVerified, true, user.ID, "", nil, nil)

	return succeed("Password verified. Please enter the 2FA code sent to your email.", LoginPayload{Requires2FA: true}), nil
}

// upgradePasswordHash rehashes pwd when the stored hash is weaker than the
// hasher's current parameters. Failures are logged; the login proceeds.
func (e *Engine) upgradePasswordHash(ctx context.Context, user store.User, pwd string) {
	needsUpgrade, err := e.hasher.NeedsUpgrade(user.PasswordHash)
	if err != nil || !needsUpgrade {
		return
	}
	upgraded, err := e.hasher.Hash(pwd)
	if err != nil {
		logger.Warningf("password hash upgrade for %s failed: %v", user.ID, err)
		return
	}
	if err := e.users.SetPasswordHash(ctx, user.ID, upgraded); err != nil {
		logger.Warningf("storing upgraded password hash for %s failed: %v", user.ID, err)
		return
	}
	logger.Debugf("upgraded password hash for %s", user.ID)
}

func (e *Engine) loginFailed(ctx context.Context, userID, username, ip string) (*Result[LoginPayload], error) {
	if err := e.limiter.IncrementLogin(ctx, username, ip); err != nil && !errors.Is(err, rate.ErrRateLimited) {
		return nil, storageErr(err)
	}
	e.metricInc(MetricLoginFailure)
	e.emitAudit(ctx, auditEventLoginFailure, false, userID, "", ErrInvalidCredentials, func() map[string]string {
		return map[string]string{"identifier": username}
	})
	return fail[LoginPayload](msgInvalidCredentials), ErrInvalidCredentials
}

// Verify2FA is the second login step. A valid TWO_FACTOR code creates a
// session and closes every earlier session of the user.
func (e *Engine) Verify2FA(ctx context.Context, username, code string) (*Result[SessionPayload], error) {
	if e == nil || e.users == nil {
		return nil, ErrEngineNotReady
	}

	user, err := e.users.UserByUsername(ctx, username)
	if err != nil {
		if store.IsNotFound(err) {
			e.metricInc(MetricTwoFactorFailure)
			e.emitAudit(ctx, auditEventTwoFactorFailure, false, "", "", ErrUserNotFound, nil)
			return fail[SessionPayload]("User not found"), ErrUserNotFound
		}
		return nil, storageErr(err)
	}
	if user.Blocked {
		e.metricInc(MetricTwoFactorFailure)
		e.emitAudit(ctx, auditEventTwoFactorFailure, false, user.ID, "", ErrAccountBlocked, nil)
		return fail[SessionPayload]("Account is blocked"), ErrAccountBlocked
	}

	if err := e.consumeCode(ctx, user.ID, code, otp.TwoFactor); err != nil {
		if Kind(err) == ErrStorage {
			return nil, err
		}
		e.metricInc(MetricTwoFactorFailure)
		e.emitAudit(ctx, auditEventTwoFactorFailure, false, user.ID, "", err, nil)
		if errors.Is(err, ErrCodeAttempts) {
			return fail[SessionPayload](msgCodeAttempts), err
		}
		return fail[SessionPayload]("Invalid or expired 2FA code"), err
	}

	token, closed, err := e.sessions.Create(ctx, user.ID)
	if err != nil {
		return nil, storageErr(err)
	}
	e.metricInc(MetricSessionCreated)
	if closed > 0 && e.metrics != nil {
		e.metrics.Add(MetricSessionInvalidated, uint64(closed))
	}

	info, err := e.userInfo(ctx, user)
	if err != nil {
		return nil, err
	}

	e.metricInc(MetricTwoFactorSuccess)
	e.emitAudit(ctx, auditEventTwoFactorSuccess, true, user.ID, sessionRef(token), nil, nil)

	return succeed("Login successful", SessionPayload{
		SessionToken: token,
		User:         info,
	}), nil
}

func (e *Engine) userInfo(ctx context.Context, user store.User) (UserInfo, error) {
	roles, err := e.authz.RoleNames(ctx, user.ID)
	if err != nil {
		return UserInfo{}, storageErr(err)
	}
	if roles == nil {
		roles = []string{}
	}
	return UserInfo{
		ID:       user.ID,
		Username: user.Username,
		Email:    user.Email,
		Roles:    roles,
		Blocked:  user.Blocked,
	}, nil
}

// sessionRef is the non-secret session identifier recorded on audit events.
func sessionRef(token string) string {
	if token == "" {
		return ""
	}
	return internal.HashToken(token)[:16]
}
