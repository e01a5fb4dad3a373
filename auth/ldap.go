package auth

import (
	"context"
	"crypto/tls"
	"fmt"

	"github.com/go-ldap/ldap/v3"
)

// LDAP is a Checker backed by an LDAP bind, grounded on the bind-then-
// search pattern of nabbar-golib's ldap helper: dial, bind as the
// service account, search for the user's DN, then re-bind as that DN
// with the offered secret to verify it.
type LDAP struct {
	URL        string // e.g. "ldaps://dir.example.com:636"
	BindDN     string
	BindPass   string
	BaseDN     string
	UserFilter string // e.g. "(uid=%s)"
	TLSConfig  *tls.Config

	// Resolve maps a verified DN's entry to the identity USER_AUTH_SUCCESS
	// carries. The directory rarely stores Verse-specific numeric ids, so
	// callers supply the mapping.
	Resolve func(entry *ldap.Entry) (Identity, error)
}

func (a *LDAP) Check(ctx context.Context, username, secret string) (Identity, error) {
	conn, err := ldap.DialURL(a.URL, ldap.DialWithTLSConfig(a.TLSConfig))
	if err != nil {
		return Identity{}, err
	}
	defer conn.Close()

	if err := conn.Bind(a.BindDN, a.BindPass); err != nil {
		return Identity{}, err
	}

	filter := fmt.Sprintf(a.UserFilter, ldap.EscapeFilter(username))
	req := ldap.NewSearchRequest(a.BaseDN, ldap.ScopeWholeSubtree, ldap.NeverDerefAliases,
		1, 0, false, filter, nil, nil)

	res, err := conn.Search(req)
	if err != nil {
		return Identity{}, err
	}
	if len(res.Entries) != 1 {
		return Identity{}, ErrNoMatch
	}
	entry := res.Entries[0]

	if err := conn.Bind(entry.DN, secret); err != nil {
		return Identity{}, ErrNoMatch
	}

	if a.Resolve != nil {
		return a.Resolve(entry)
	}
	return Identity{}, nil
}
