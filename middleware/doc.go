// Package middleware adapts goAccess sessions and authorization to
// net/http.
//
// # Guards
//
//   - [Session] resolves the session token (Authorization: Bearer, or the
//     SESSION_TOKEN cookie) and stores the user id in the request context.
//   - [RequireRole] and [RequireLevel] gate routes on role membership and on
//     the organizational hierarchy.
//   - [RequireAccess] gates routes on a resource/action pair, honoring
//     temporary grants on the resource instance. Handlers read the admitting
//     decision with [DecisionFromContext].
//
// Missing or invalid sessions yield 401, failed checks 403, and backend
// failures 503. Decisions are delegated to the Engine; this package only
// translates HTTP.
package middleware
