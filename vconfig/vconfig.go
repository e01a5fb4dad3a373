// Package vconfig loads the versed server configuration from TOML with
// viper, applying the same "zero value means default" convention the
// original TCPConfig.check used for IEC timing parameters.
package vconfig

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config is the full versed server configuration.
type Config struct {
	Listen       string // stream listen address, e.g. ":2400"
	SessionSlots int    // number of pre-allocated session slots
	PortLow      uint16 // first ephemeral UDP data-plane port, inclusive
	PortHigh     uint16 // last ephemeral UDP data-plane port, exclusive

	InitTimeout time.Duration // datagram backoff base, spec.md §4.6
	MaxBackoff  time.Duration
	MaxAttempts int

	ResendTimeout time.Duration // scheduler keep-alive cadence, spec.md §4.3

	AuthMethod string // "csv" or "ldap"
	AuthCSVPath string

	LDAPURL        string
	LDAPBindDN     string
	LDAPBindPass   string
	LDAPBaseDN     string
	LDAPUserFilter string

	TLSCertPath string
	TLSKeyPath  string

	MetricsListen string // prometheus /metrics listen address, empty disables
}

// Check applies defaults for each unset value and validates ranges,
// following the TCPConfig.check pattern of the stream transport.
func (c *Config) Check() error {
	if c.Listen == "" {
		c.Listen = ":2400"
	}
	if c.SessionSlots == 0 {
		c.SessionSlots = 64
	} else if c.SessionSlots < 1 {
		return fmt.Errorf("vconfig: SessionSlots must be positive")
	}
	if c.PortLow == 0 && c.PortHigh == 0 {
		c.PortLow, c.PortHigh = 40000, 41024
	}
	if c.PortHigh <= c.PortLow {
		return fmt.Errorf("vconfig: PortHigh %d must exceed PortLow %d", c.PortHigh, c.PortLow)
	}
	if c.InitTimeout == 0 {
		c.InitTimeout = 200 * time.Millisecond
	}
	if c.MaxBackoff == 0 {
		c.MaxBackoff = 8 * time.Second
	}
	if c.MaxAttempts == 0 {
		c.MaxAttempts = 8
	}
	if c.ResendTimeout == 0 {
		c.ResendTimeout = 500 * time.Millisecond
	}
	if c.AuthMethod == "" {
		c.AuthMethod = "csv"
	}
	return nil
}

// Load reads a TOML configuration file at path and applies Check.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("vconfig: %w", err)
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("vconfig: %w", err)
	}
	if err := c.Check(); err != nil {
		return nil, err
	}
	return &c, nil
}
