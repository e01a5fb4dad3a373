// Package certs loads the TLS material for the "tls" secured-transport
// method named by a verse-*-tls scheme. There is no DTLS implementation
// anywhere in the dependency pack this module draws from, so the
// "dtls" method has no code path here; negotiate and handshake still
// carry it as a named method, they just never reach a working Conn for
// it (see DESIGN.md).
package certs

import (
	"crypto/tls"
	"fmt"
)

// Load builds a server-side tls.Config from a certificate and key pair
// on disk, requiring TLS 1.2 at minimum.
func Load(certPath, keyPath string) (*tls.Config, error) {
	cert, err := tls.LoadX509KeyPair(certPath, keyPath)
	if err != nil {
		return nil, fmt.Errorf("certs: %w", err)
	}
	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}, nil
}

// ClientConfig builds a tls.Config for dialing a verse-*-tls peer.
// serverName drives certificate hostname verification; an empty
// serverName leaves verification to the dialed address.
func ClientConfig(serverName string) *tls.Config {
	return &tls.Config{
		ServerName: serverName,
		MinVersion: tls.VersionTLS12,
	}
}
