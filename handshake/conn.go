package handshake

import (
	"context"
	"errors"

	"github.com/pascaldekloe/verse/auth"
	"github.com/pascaldekloe/verse/negotiate"
	"github.com/pascaldekloe/verse/syscmd"
	"github.com/pascaldekloe/verse/wire"
)

var (
	ErrWrongState    = errors.New("handshake: command not valid for current state")
	ErrAuthExhausted = errors.New("handshake: user auth attempts exhausted")
	ErrTCPPlain      = errors.New("handshake: verse-tcp-none is rejected, TCP must be TLS")
)

// Conn is one stream handshake's state, client or server side. The
// server side additionally carries the accepted identity and the
// negotiated scheme once NEGOTIATE_COOKIE_DED completes.
type Conn struct {
	isServer bool
	state    State

	Negotiate *negotiate.Set

	Username string
	authTry  int
	maxTry   int
	checker  auth.Checker

	HostCookie string // this side's cookie, proposed via CHANGE_R/CONFIRM_R
	PeerCookie string // the peer's cookie, confirmed via CONFIRM_L

	DED     string
	Scheme  Scheme
	Host    string
	Port    string // literal, or "*" meaning "server picks"

	Identity auth.Identity

	// SupportedMethods is the server's advertised USER_AUTH_FAILURE list
	// on the first round (spec.md §4.7 step 1: "PASSWORD in reference").
	SupportedMethods []syscmd.AuthMethod
}

// NewClient returns a client-side Conn beginning at USRAUTH_NONE.
func NewClient(username string) *Conn {
	return &Conn{
		state:     UsrAuthNone,
		Negotiate: negotiate.NewSet(),
		Username:  username,
	}
}

// NewServer returns a server-side Conn beginning at LISTEN. checker
// verifies USER_AUTH_REQUEST(method=PASSWORD) offers; maxAttempts bounds
// retries before the stream is closed (spec.md §4.7's
// MAX_USER_AUTH_ATTEMPTS).
func NewServer(checker auth.Checker, maxAttempts int) *Conn {
	return &Conn{
		isServer:         true,
		state:            Listen,
		Negotiate:        negotiate.NewSet(),
		checker:          checker,
		maxTry:           maxAttempts,
		SupportedMethods: []syscmd.AuthMethod{syscmd.AuthPassword},
		HostCookie:       printableCookie(16),
	}
}

// State returns the current state.
func (c *Conn) State() State { return c.state }

// ClientHello builds the step-1 USER_AUTH_REQUEST(method=NONE),
// optionally followed by CLIENT_NAME/CLIENT_VERSION proposals (spec.md
// §4.7 step 1).
func (c *Conn) ClientHello(clientName, clientVersion string) []syscmd.Command {
	if c.state != UsrAuthNone {
		return nil
	}
	cmds := []syscmd.Command{{
		ID:      syscmd.UserAuthRequest,
		Payload: syscmd.PutUserAuthRequest(nil, syscmd.UserAuthRequest{Username: c.Username, Method: syscmd.AuthNone}),
	}}
	if clientName != "" {
		cmds = append(cmds, featureCmd(syscmd.ChangeL, wire.FeatureClientName, syscmd.FeatureCmd{StrValues: []string{clientName}}))
	}
	if clientVersion != "" {
		cmds = append(cmds, featureCmd(syscmd.ChangeL, wire.FeatureClientVersion, syscmd.FeatureCmd{StrValues: []string{clientVersion}}))
	}
	return cmds
}

// ClientAuthenticate builds step 2's USER_AUTH_REQUEST(method=PASSWORD).
func (c *Conn) ClientAuthenticate(secret string) []syscmd.Command {
	if c.state != UsrAuthData {
		return nil
	}
	return []syscmd.Command{{
		ID: syscmd.UserAuthRequest,
		Payload: syscmd.PutUserAuthRequest(nil, syscmd.UserAuthRequest{
			Username: c.Username, Method: syscmd.AuthPassword, Data: secret,
		}),
	}}
}

// HandleServer processes one batch of incoming system commands on the
// server side and returns the reply batch, per spec.md §4.7.
func (c *Conn) HandleServer(ctx context.Context, in []syscmd.Command) ([]syscmd.Command, error) {
	if !c.isServer {
		return nil, ErrWrongState
	}

	switch c.state {
	case Listen, RespondMethods:
		for _, cmd := range in {
			if cmd.ID != syscmd.UserAuthRequest {
				continue
			}
			req, ok := syscmd.ParseUserAuthRequest(cmd.Payload)
			if !ok || req.Method != syscmd.AuthNone {
				continue
			}
			c.Username = req.Username
			c.state = RespondUsrAuth
			return []syscmd.Command{{
				ID:      syscmd.UserAuthFailure,
				Payload: syscmd.PutUserAuthFailure(nil, syscmd.UserAuthFailure{Methods: c.SupportedMethods}),
			}}, nil
		}
		return nil, nil

	case RespondUsrAuth:
		for _, cmd := range in {
			if cmd.ID != syscmd.UserAuthRequest {
				continue
			}
			req, ok := syscmd.ParseUserAuthRequest(cmd.Payload)
			if !ok || req.Method != syscmd.AuthPassword {
				continue
			}
			c.authTry++
			id, err := c.checker.Check(ctx, req.Username, req.Data)
			if err != nil {
				if c.authTry >= c.maxTry {
					return []syscmd.Command{{ID: syscmd.UserAuthFailure, Payload: syscmd.PutUserAuthFailure(nil, syscmd.UserAuthFailure{})}}, ErrAuthExhausted
				}
				return []syscmd.Command{{
					ID:      syscmd.UserAuthFailure,
					Payload: syscmd.PutUserAuthFailure(nil, syscmd.UserAuthFailure{Methods: c.SupportedMethods}),
				}}, nil
			}

			c.Identity = id
			c.PeerCookie = printableCookie(16)
			// the client's step-3 CONFIRM_L(cookie) is checked against this value
			c.Negotiate.ChangeL(wire.FeatureCookie, syscmd.FeatureCmd{StrValues: []string{c.PeerCookie}})
			c.DED = printableCookie(16)
			c.state = NegotiateCookieDed

			out := []syscmd.Command{{
				ID:      syscmd.UserAuthSuccess,
				Payload: syscmd.PutUserAuthSuccess(nil, syscmd.UserAuthSuccess{UserID: id.UserID, AvatarID: id.AvatarID}),
			}}
			out = append(out, featureCmd(syscmd.ChangeR, wire.FeatureCookie, syscmd.FeatureCmd{StrValues: []string{c.PeerCookie}}))
			out = append(out, featureCmd(syscmd.ChangeL, wire.FeatureDED, syscmd.FeatureCmd{StrValues: []string{c.DED}}))
			return out, nil
		}
		return nil, nil

	case NegotiateCookieDed:
		return c.serverNegotiateCookieDed(in)

	case NegotiateNewHost:
		for _, cmd := range in {
			if cmd.ID != syscmd.ConfirmL {
				continue
			}
			fc, ok := syscmd.ParseFeatureCmd(cmd.Payload)
			if ok && fc.Feature == wire.FeatureHostURL {
				c.Negotiate.ConfirmL(wire.FeatureHostURL, fc)
				if c.Scheme.IsUDP() {
					c.state = Closing // stream closes once the datagram OPEN takes over
				} else {
					c.state = StreamOpen
				}
			}
		}
		return nil, nil

	default:
		return nil, ErrWrongState
	}
}

// serverNegotiateCookieDed implements the server's half of spec.md §4.7
// step 3. It expects the client's CONFIRM_L(cookie)/CHANGE_R(host_url)/
// CONFIRM_R(host_cookie)/CHANGE_R(peer_cookie)/CONFIRM_L(DED) batch and
// replies with an empty CONFIRM_R(host_url), the concrete host_url and
// CONFIRM_R(host_cookie). The client name and version are not confirmed.
func (c *Conn) serverNegotiateCookieDed(in []syscmd.Command) ([]syscmd.Command, error) {
	var scheme Scheme
	for _, cmd := range in {
		fc, ok := syscmd.ParseFeatureCmd(cmd.Payload)
		if !ok {
			continue
		}
		switch cmd.ID {
		case syscmd.ConfirmL:
			if fc.Feature == wire.FeatureCookie {
				if !c.Negotiate.ConfirmL(wire.FeatureCookie, fc) {
					return nil, errors.New("handshake: cookie echo mismatch, dropping")
				}
			}
		case syscmd.ChangeR:
			if fc.Feature == wire.FeatureHostURL && len(fc.StrValues) == 1 {
				scheme = Scheme(fc.StrValues[0])
			}
		}
	}
	if scheme == SchemeTCPNone {
		return nil, ErrTCPPlain
	}
	if scheme != "" {
		c.Scheme = scheme
	}

	out := []syscmd.Command{
		featureCmd(syscmd.ConfirmR, wire.FeatureHostURL, syscmd.FeatureCmd{StrValues: []string{""}}), // not yet confirmed
		featureCmd(syscmd.ChangeL, wire.FeatureHostURL, syscmd.FeatureCmd{StrValues: []string{string(c.Scheme) + "://" + c.Host + ":" + c.Port}}),
		featureCmd(syscmd.ConfirmR, wire.FeatureCookie, syscmd.FeatureCmd{StrValues: []string{c.HostCookie}}),
	}
	c.state = NegotiateNewHost
	return out, nil
}

// HandleClient processes one batch of incoming server commands on the
// client side and returns the reply batch.
func (c *Conn) HandleClient(in []syscmd.Command) ([]syscmd.Command, error) {
	if c.isServer {
		return nil, ErrWrongState
	}

	switch c.state {
	case UsrAuthNone:
		for _, cmd := range in {
			if cmd.ID == syscmd.UserAuthFailure {
				c.state = UsrAuthData
				return nil, nil
			}
		}
		return nil, nil

	case UsrAuthData:
		for _, cmd := range in {
			switch cmd.ID {
			case syscmd.UserAuthSuccess:
				res, ok := syscmd.ParseUserAuthSuccess(cmd.Payload)
				if !ok {
					continue
				}
				c.Identity = auth.Identity{UserID: res.UserID, AvatarID: res.AvatarID}
			case syscmd.ChangeR:
				fc, ok := syscmd.ParseFeatureCmd(cmd.Payload)
				if ok && fc.Feature == wire.FeatureCookie && len(fc.StrValues) == 1 {
					c.PeerCookie = fc.StrValues[0]
				}
			case syscmd.ChangeL:
				fc, ok := syscmd.ParseFeatureCmd(cmd.Payload)
				if ok && fc.Feature == wire.FeatureDED && len(fc.StrValues) == 1 {
					c.DED = fc.StrValues[0]
				}
			case syscmd.UserAuthFailure:
				return nil, ErrAuthExhausted
			}
		}
		if c.PeerCookie == "" {
			return nil, nil // still waiting on a complete reply
		}

		c.HostCookie = printableCookie(16)
		c.state = NegotiateCookieDed
		out := []syscmd.Command{
			featureCmd(syscmd.ConfirmL, wire.FeatureCookie, syscmd.FeatureCmd{StrValues: []string{c.PeerCookie}}),
			featureCmd(syscmd.ChangeR, wire.FeatureHostURL, syscmd.FeatureCmd{StrValues: []string{string(c.Scheme)}}),
			featureCmd(syscmd.ConfirmR, wire.FeatureCookie, syscmd.FeatureCmd{StrValues: []string{c.PeerCookie}}),
			featureCmd(syscmd.ChangeR, wire.FeatureCookie, syscmd.FeatureCmd{StrValues: []string{c.HostCookie}}),
			featureCmd(syscmd.ConfirmL, wire.FeatureDED, syscmd.FeatureCmd{StrValues: []string{c.DED}}),
		}
		return out, nil

	case NegotiateCookieDed:
		for _, cmd := range in {
			if cmd.ID != syscmd.ChangeL {
				continue
			}
			fc, ok := syscmd.ParseFeatureCmd(cmd.Payload)
			if ok && fc.Feature == wire.FeatureHostURL && len(fc.StrValues) == 1 {
				c.state = NegotiateNewHost
				return []syscmd.Command{
					featureCmd(syscmd.ConfirmL, wire.FeatureHostURL, syscmd.FeatureCmd{StrValues: fc.StrValues}),
				}, nil
			}
		}
		return nil, nil

	case NegotiateNewHost:
		if c.Scheme.IsUDP() {
			c.state = Closing
		} else {
			c.state = StreamOpen
		}
		return nil, nil

	default:
		return nil, ErrWrongState
	}
}

func featureCmd(id syscmd.ID, feature wire.FeatureID, fc syscmd.FeatureCmd) syscmd.Command {
	fc.Feature = feature
	return syscmd.Command{ID: id, Payload: syscmd.FeatureCmdPayload(fc)}
}
