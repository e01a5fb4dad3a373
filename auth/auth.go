// Package auth defines the pluggable credential-check boundary the
// stream handshake (package handshake) calls into during USRAUTH_DATA.
// spec.md's non-goals explicitly exclude "the user account database,
// password/PAM/LDAP check, credential storage" from this module's core
// scope; this package supplies only the thin seam a real account
// backend plugs into, plus two illustrative adapters grounded in the
// wider example pack (CSV and LDAP).
package auth

import "context"

// Identity is what a successful check hands back to the handshake,
// matching USER_AUTH_SUCCESS's fields (spec.md §4.7).
type Identity struct {
	UserID   uint32
	AvatarID uint32
}

// Checker verifies a username/secret pair. Implementations must be safe
// for concurrent use; the server's RESPOND_USRAUTH state calls it once
// per USER_AUTH_REQUEST(method=PASSWORD).
type Checker interface {
	Check(ctx context.Context, username, secret string) (Identity, error)
}

// CheckerFunc adapts a function to a Checker.
type CheckerFunc func(ctx context.Context, username, secret string) (Identity, error)

func (f CheckerFunc) Check(ctx context.Context, username, secret string) (Identity, error) {
	return f(ctx, username, secret)
}
