package syscmd

import "github.com/pascaldekloe/verse/wire"

// AuthMethod identifies a user authentication method, per spec.md §4.7.
type AuthMethod uint8

const (
	AuthNone     AuthMethod = 0
	AuthPassword AuthMethod = 1
)

// UserAuthRequest is the client's credential offer.
type UserAuthRequest struct {
	Username string
	Method   AuthMethod
	Data     string // secret; empty for AuthNone
}

// PutUserAuthRequest frames a USER_AUTH_REQUEST command.
func PutUserAuthRequest(b []byte, r UserAuthRequest) []byte {
	p := wire.PutString(nil, r.Username)
	p = wire.PutU8(p, uint8(r.Method))
	p = wire.PutString(p, r.Data)
	return Put(b, UserAuthRequest, p)
}

// ParseUserAuthRequest decodes a USER_AUTH_REQUEST payload.
func ParseUserAuthRequest(payload []byte) (r UserAuthRequest, ok bool) {
	user, rest, ok := wire.String(payload)
	if !ok {
		return r, false
	}
	method, rest, ok := wire.U8(rest)
	if !ok {
		return r, false
	}
	data, _, ok := wire.String(rest)
	if !ok {
		return r, false
	}
	return UserAuthRequest{Username: user, Method: AuthMethod(method), Data: data}, true
}

// UserAuthFailure lists the methods the server still accepts, or an
// empty list with Count 0 to mean "give up" (attempts exceeded).
type UserAuthFailure struct {
	Methods []AuthMethod
}

// PutUserAuthFailure frames a USER_AUTH_FAILURE command.
func PutUserAuthFailure(b []byte, f UserAuthFailure) []byte {
	p := wire.PutU8(nil, uint8(len(f.Methods)))
	for _, m := range f.Methods {
		p = wire.PutU8(p, uint8(m))
	}
	return Put(b, UserAuthFailure, p)
}

// ParseUserAuthFailure decodes a USER_AUTH_FAILURE payload.
func ParseUserAuthFailure(payload []byte) (f UserAuthFailure, ok bool) {
	n, rest, ok := wire.U8(payload)
	if !ok {
		return f, false
	}
	methods := make([]AuthMethod, 0, n)
	for i := 0; i < int(n); i++ {
		var m uint8
		m, rest, ok = wire.U8(rest)
		if !ok {
			return f, false
		}
		methods = append(methods, AuthMethod(m))
	}
	return UserAuthFailure{Methods: methods}, true
}

// UserAuthSuccess carries the identities the server assigned.
type UserAuthSuccess struct {
	UserID   uint32
	AvatarID uint32
}

// PutUserAuthSuccess frames a USER_AUTH_SUCCESS command.
func PutUserAuthSuccess(b []byte, s UserAuthSuccess) []byte {
	p := wire.PutU32(nil, s.UserID)
	p = wire.PutU32(p, s.AvatarID)
	return Put(b, UserAuthSuccess, p)
}

// ParseUserAuthSuccess decodes a USER_AUTH_SUCCESS payload.
func ParseUserAuthSuccess(payload []byte) (s UserAuthSuccess, ok bool) {
	userID, rest, ok := wire.U32(payload)
	if !ok {
		return s, false
	}
	avatarID, _, ok := wire.U32(rest)
	if !ok {
		return s, false
	}
	return UserAuthSuccess{UserID: userID, AvatarID: avatarID}, true
}
