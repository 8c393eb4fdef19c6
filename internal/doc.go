// Package internal contains helpers private to goAccess: secure random
// session tokens, one-time code digits and secret hashing.
//
// # Sub-packages
//
//   - audit: async event dispatch (Dispatcher + Sink implementations)
//   - rate: Redis-backed fixed-window login throttling
package internal
