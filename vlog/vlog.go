// Package vlog configures structured logging for the server and its
// workers with logrus, in place of the plain log.Printf the original
// IEC transport used behind its session.Trace toggle.
package vlog

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// Trace activates wire-level logging: while it is set, each Wire call
// emits a debug-level entry. No package in this module calls Wire, so
// sent and received frames are not logged. Mirrors the Trace package
// variable the stream transport used to gate its log.Printf calls.
var Trace = false

// New returns a *logrus.Entry on a new logrus.Logger writing JSON lines
// to w at level, with
// "component" pre-set so callers don't repeat it on every entry.
func New(w io.Writer, level logrus.Level, component string) *logrus.Entry {
	if w == nil {
		w = os.Stderr
	}
	l := logrus.New()
	l.SetOutput(w)
	l.SetLevel(level)
	l.SetFormatter(&logrus.JSONFormatter{})
	return l.WithField("component", component)
}

// Wire logs a single sent or received frame when Trace is enabled.
func Wire(log *logrus.Entry, direction, peer string, byteCount int) {
	if !Trace {
		return
	}
	log.WithFields(logrus.Fields{
		"direction": direction,
		"peer":      peer,
		"bytes":     byteCount,
	}).Debug("wire")
}
