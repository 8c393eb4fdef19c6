// Package password implements password hashing and verification.
//
// [Argon2] is the default [Hasher]. Its output is a PHC string:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// [Bcrypt] is available for stores that already hold bcrypt hashes. Both
// hashers enforce a minimum of 8 bytes and expose NeedsUpgrade so callers can
// re-hash after a successful login.
//
// This package owns hashing only. Username and e-mail policy live in the
// Engine.
package password
