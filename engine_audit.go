package goAccess

import (
	"context"
	"errors"
)

const (
	auditEventRegisterSuccess          = "register_success"
	auditEventRegisterFailure          = "register_failure"
	auditEventEmailVerificationRequest = "email_verification_request"
	auditEventEmailVerificationSuccess = "email_verification_success"
	auditEventEmailVerificationFailure = "email_verification_failure"
	auditEventLoginPasswordVerified    = "login_password_verified"
	auditEventLoginFailure             = "login_failure"
	auditEventLoginRateLimited         = "login_rate_limited"
	auditEventTwoFactorSuccess         = "two_factor_success"
	auditEventTwoFactorFailure         = "two_factor_failure"
	auditEventLogout                   = "logout"
	auditEventUserBlocked              = "user_blocked"
	auditEventUserUnblocked            = "user_unblocked"
	auditEventRoleAssigned             = "role_assigned"
	auditEventRoleRevoked              = "role_revoked"
	auditEventAccessRequested          = "access_requested"
	auditEventAccessApproved           = "access_approved"
	auditEventAccessRejected           = "access_rejected"
	auditEventAccessRevoked            = "access_revoked"
	auditEventGrantsSwept              = "grants_swept"
	auditEventAccessDenied             = "access_denied"
)

// AuditErrorCode is the stable error label recorded on failed audit events.
type AuditErrorCode string

const (
	auditErrInvalidInput       AuditErrorCode = "invalid_input"
	auditErrDuplicate          AuditErrorCode = "duplicate"
	auditErrAlreadyVerified    AuditErrorCode = "already_verified"
	auditErrInvalidCredentials AuditErrorCode = "invalid_credentials"
	auditErrAccountUnverified  AuditErrorCode = "account_unverified"
	auditErrAccountBlocked     AuditErrorCode = "account_blocked"
	auditErrRateLimited        AuditErrorCode = "rate_limited"
	auditErrInvalidCode        AuditErrorCode = "invalid_code"
	auditErrCodeAttempts       AuditErrorCode = "code_attempts_exceeded"
	auditErrInvalidSession     AuditErrorCode = "invalid_session"
	auditErrPermissionDenied   AuditErrorCode = "permission_denied"
	auditErrPolicyDenied       AuditErrorCode = "policy_denied"
	auditErrAccessActive       AuditErrorCode = "access_active"
	auditErrAccessPending      AuditErrorCode = "access_pending"
	auditErrNotPending         AuditErrorCode = "not_pending"
	auditErrUserNotFound       AuditErrorCode = "user_not_found"
	auditErrRoleNotFound       AuditErrorCode = "role_not_found"
	auditErrGrantNotFound      AuditErrorCode = "grant_not_found"
	auditErrUnavailable        AuditErrorCode = "backend_unavailable"
	auditErrInternal           AuditErrorCode = "internal_error"
)

// emitAudit queues one event. meta is only called when a dispatcher is
// configured, so callers can build metadata lazily.
func (e *Engine) emitAudit(ctx context.Context, eventType string, success bool, userID, sessionID string, err error, meta func() map[string]string) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if meta != nil {
		metadata = meta()
	}

	event := AuditEvent{
		Timestamp: e.clock.Now().UTC(),
		EventType: eventType,
		UserID:    userID,
		SessionID: sessionID,
		IP:        clientIPFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

// auditErrorCodes maps sentinel errors to audit labels. Order matters where
// one error wraps another: policy denials also match ErrAuthorization.
var auditErrorCodes = []struct {
	err  error
	code AuditErrorCode
}{
	{ErrInvalidInput, auditErrInvalidInput},
	{ErrCannotBlockSelf, auditErrInvalidInput},
	{ErrUsernameTaken, auditErrDuplicate},
	{ErrEmailTaken, auditErrDuplicate},
	{ErrRoleAlreadyHeld, auditErrDuplicate},
	{ErrEmailAlreadyVerified, auditErrAlreadyVerified},
	{ErrInvalidCredentials, auditErrInvalidCredentials},
	{ErrEmailNotVerified, auditErrAccountUnverified},
	{ErrAccountBlocked, auditErrAccountBlocked},
	{ErrLoginRateLimited, auditErrRateLimited},
	{ErrInvalidCode, auditErrInvalidCode},
	{ErrCodeAttempts, auditErrCodeAttempts},
	{ErrInvalidSession, auditErrInvalidSession},
	{ErrPolicyDenied, auditErrPolicyDenied},
	{ErrAuthorization, auditErrPermissionDenied},
	{ErrAccessAlreadyActive, auditErrAccessActive},
	{ErrAccessPending, auditErrAccessPending},
	{ErrGrantNotPending, auditErrNotPending},
	{ErrUserNotFound, auditErrUserNotFound},
	{ErrRoleNotFound, auditErrRoleNotFound},
	{ErrGrantNotFound, auditErrGrantNotFound},
	{ErrStorage, auditErrUnavailable},
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}
	for _, m := range auditErrorCodes {
		if errors.Is(err, m.err) {
			return m.code
		}
	}
	return auditErrInternal
}
