package goAccess

import (
	"context"
	"errors"
	"strings"

	"github.com/MrEthical07/goAccess/otp"
	"github.com/MrEthical07/goAccess/password"
	"github.com/MrEthical07/goAccess/store"
	"github.com/google/uuid"
)

// Register creates an unverified account holding the configured default
// role and sends an e-mail verification code to it.
//
//	Flow: validate input -> uniqueness -> hash -> create -> assign role -> issue + deliver code.
//
// A failure after the user row is written deletes it again, so the caller
// can retry with the same username and e-mail.
func (e *Engine) Register(ctx context.Context, username, email, pwd string) (*Result[RegisterPayload], error) {
	if e == nil || e.users == nil {
		return nil, ErrEngineNotReady
	}

	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)

	failed := func(message string, err error) (*Result[RegisterPayload], error) {
		e.metricInc(MetricRegisterFailure)
		e.emitAudit(ctx, auditEventRegisterFailure, false, "", "", err, func() map[string]string {
			return map[string]string{"username": username}
		})
		return fail[RegisterPayload](message), err
	}

	if username == "" || !strings.Contains(email, "@") || len(pwd) < e.config.Password.MinLength {
		return failed("Invalid registration data", ErrInvalidInput)
	}

	if _, err := e.users.UserByUsername(ctx, username); err == nil {
		return failed("Username already exists", ErrUsernameTaken)
	} else if !store.IsNotFound(err) {
		return nil, storageErr(err)
	}
	if _, err := e.users.UserByEmail(ctx, email); err == nil {
		return failed("Email already exists", ErrEmailTaken)
	} else if !store.IsNotFound(err) {
		return nil, storageErr(err)
	}

	hash, err := e.hasher.Hash(pwd)
	if err != nil {
		if errors.Is(err, password.ErrPasswordTooLong) || errors.Is(err, password.ErrPasswordTooShort) {
			return failed("Invalid registration data", ErrInvalidInput)
		}
		return nil, err
	}

	verify := e.config.Registration.RequireEmailVerification
	user := store.User{
		ID:            uuid.NewString(),
		Username:      username,
		Email:         email,
		PasswordHash:  hash,
		EmailVerified: !verify,
		CreatedAt:     e.clock.Now().UTC(),
	}
	if err := e.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrConflict) {
			// lost a race with a concurrent registration
			if _, lookupErr := e.users.UserByUsername(ctx, username); lookupErr == nil {
				return failed("Username already exists", ErrUsernameTaken)
			}
			return failed("Email already exists", ErrEmailTaken)
		}
		return nil, storageErr(err)
	}

	if role := e.config.Registration.DefaultRole; role != "" {
		if _, err := e.assignments.AssignRole(ctx, store.Assignment{
			UserID:     user.ID,
			Role:       role,
			AssignedAt: user.CreatedAt,
		}); err != nil {
			e.discardUser(ctx, user.ID)
			return nil, storageErr(err)
		}
	}

	message := "Registration successful. You can now log in."
	if verify {
		if err := e.deliverCode(ctx, user, otp.EmailVerification); err != nil {
			e.discardUser(ctx, user.ID)
			return nil, err
		}
		message = "Registration successful. Please check your email for verification code."
	}

	e.metricInc(MetricRegisterSuccess)
	e.emitAudit(ctx, auditEventRegisterSuccess, true, user.ID, "", nil, nil)

	return succeed(message, RegisterPayload{
		UserID:                    user.ID,
		RequiresEmailVerification: verify,
	}), nil
}

// VerifyEmail consumes an e-mail verification code and marks the address
// verified.
func (e *Engine) VerifyEmail(ctx context.Context, email, code string) (*Result[Empty], error) {
	if e == nil || e.users == nil {
		return nil, ErrEngineNotReady
	}

	user, err := e.users.UserByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if store.IsNotFound(err) {
			e.metricInc(MetricEmailVerificationFailure)
			e.emitAudit(ctx, auditEventEmailVerificationFailure, false, "", "", ErrUserNotFound, nil)
			return fail[Empty]("User not found"), ErrUserNotFound
		}
		return nil, storageErr(err)
	}

	if err := e.consumeCode(ctx, user.ID, code, otp.EmailVerification); err != nil {
		if Kind(err) == ErrStorage {
			return nil, err
		}
		e.metricInc(MetricEmailVerificationFailure)
		e.emitAudit(ctx, auditEventEmailVerificationFailure, false, user.ID, "", err, nil)
		if errors.Is(err, ErrCodeAttempts) {
			return fail[Empty](msgCodeAttempts), err
		}
		return fail[Empty]("Invalid or expired verification code"), err
	}

	if err := e.users.SetEmailVerified(ctx, user.ID, true); err != nil {
		return nil, storageErr(err)
	}

	e.metricInc(MetricEmailVerificationSuccess)
	e.emitAudit(ctx, auditEventEmailVerificationSuccess, true, user.ID, "", nil, nil)

	return succeed("Email verified successfully. You can now log in.", Empty{}), nil
}

// ResendVerificationCode issues a new verification code, superseding the
// previous one.
func (e *Engine) ResendVerificationCode(ctx context.Context, email string) (*Result[Empty], error) {
	if e == nil || e.users == nil {
		return nil, ErrEngineNotReady
	}

	user, err := e.users.UserByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if store.IsNotFound(err) {
			e.emitAudit(ctx, auditEventEmailVerificationRequest, false, "", "", ErrUserNotFound, nil)
			return fail[Empty]("User not found"), ErrUserNotFound
		}
		return nil, storageErr(err)
	}
	if user.EmailVerified {
		e.emitAudit(ctx, auditEventEmailVerificationRequest, false, user.ID, "", ErrEmailAlreadyVerified, nil)
		return fail[Empty]("Email is already verified"), ErrEmailAlreadyVerified
	}

	if err := e.deliverCode(ctx, user, otp.EmailVerification); err != nil {
		return nil, err
	}

	e.emitAudit(ctx, auditEventEmailVerificationRequest, true, user.ID, "", nil, nil)
	return succeed("Verification code sent to your email", Empty{}), nil
}

const msgCodeAttempts = "Too many invalid codes. Please request a new code."

// consumeCode maps a code outcome to nil, ErrInvalidCode, ErrCodeAttempts or
// a storage error.
func (e *Engine) consumeCode(ctx context.Context, userID, code string, purpose otp.Purpose) error {
	outcome, err := e.codes.Consume(ctx, userID, code, purpose)
	if err != nil {
		return storageErr(err)
	}
	switch outcome {
	case otp.OutcomeAccepted:
		return nil
	case otp.OutcomeAttemptsExceeded:
		logger.Infof("%s code for user %s burned after too many wrong guesses", purpose, userID)
		return ErrCodeAttempts
	default:
		return ErrInvalidCode
	}
}

// deliverCode issues a code and hands it to the notifier. A delivery failure
// is logged and counted but leaves the code valid.
func (e *Engine) deliverCode(ctx context.Context, user store.User, purpose otp.Purpose) error {
	code, err := e.codes.Issue(ctx, user.ID, purpose)
	if err != nil {
		return storageErr(err)
	}
	if err := e.notifier.Deliver(ctx, user.Email, code, string(purpose)); err != nil {
		e.metricInc(MetricNotifyFailure)
		logger.Warningf("delivering %s code to user %s failed: %v", purpose, user.ID, err)
	}
	return nil
}

// discardUser backs out a partially completed registration.
func (e *Engine) discardUser(ctx context.Context, id string) {
	if err := e.users.DeleteUser(context.WithoutCancel(ctx), id); err != nil && !store.IsNotFound(err) {
		logger.Errorf("rolling back registration of %s failed: %v", id, err)
	}
}
