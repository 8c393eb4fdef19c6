// Package goAccess is an access-control core for multi-user applications.
//
// It combines a two-step login (password, then a one-time code delivered by
// e-mail), opaque Redis-backed sessions with a single active session per
// user, role and permission authorization over the fixed hierarchy
// ADMIN > MANAGER > USER, and admin-approved just-in-time grants on single
// resources that expire on their own.
//
// # Architecture boundaries
//
// goAccess is the public surface. It exposes [Engine], [Builder], [Config]
// and the result types. The one-time code manager (otp), session store
// (session), authorization engine (authz) and grant workflow (jit) are
// usable on their own; the Engine orchestrates them and owns audit and
// metrics.
//
// # Errors
//
// Every Engine operation that can fail in an expected way returns a
// [Result] with Success false together with an error matching one of
// [ErrValidation], [ErrAuthentication], [ErrAuthorization], [ErrNotFound] or
// [ErrStorage]. [StatusCode] maps those kinds to HTTP statuses.
//
// Engine methods are safe to call from multiple goroutines after
// [Builder.Build].
package goAccess
