package world

import "sync/atomic"

// debugLoggingEnabled controls per-object debug logging in the tick path.
// Checked before building debug attributes to keep the hot path cheap.
var debugLoggingEnabled atomic.Bool

// EnableDebugLogging enables or disables debug logging for the world subsystem.
// Called from main after parsing config.LogLevel.
func EnableDebugLogging(enabled bool) {
	debugLoggingEnabled.Store(enabled)
}

// IsDebugEnabled returns true if debug logging is enabled.
func IsDebugEnabled() bool {
	return debugLoggingEnabled.Load()
}
