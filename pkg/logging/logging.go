package logging

import (
	"github.com/go-logr/logr"
)

// Verbosity levels passed to logr.Logger.V(). logr treats V as additive cost, so
// higher numbers are noisier: INFO is always emitted (V(0)), DEBUG and TRACE are
// progressively more verbose.
const (
	INFO  = 0
	DEBUG = 1
	TRACE = 2
)

// Discard returns a logr.Logger that drops everything written to it. Packages that
// accept a logr.Logger but are constructed without one should fall back to this
// rather than risk a nil logger.
func Discard() logr.Logger {
	return logr.Discard()
}
