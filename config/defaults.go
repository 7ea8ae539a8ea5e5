package config

import "time"

// ── Default values ───────────────────────────────────────────────────
//
// All tuneable defaults live here so they are easy to audit and reuse
// across CLI flags, wire file parsing, and environment variable
// loading.

const (
	// DefaultHost is the wire server host when nothing else is given.
	DefaultHost = "localhost"

	// DefaultPort is the wire server port when nothing else is given.
	DefaultPort = 3902

	// DefaultCallTimeout bounds each send and each receive of a call.
	DefaultCallTimeout = 5 * time.Second

	// DefaultSSHPort is the standard SSH port.
	DefaultSSHPort = 22

	// DefaultConnTimeout is the TCP/SSH connection timeout.
	DefaultConnTimeout = 30 * time.Second

	// DefaultKeepAlive is the TCP keepalive period for the wire socket.
	DefaultKeepAlive = 30 * time.Second

	// DefaultDuplicatePolicy decides what a repeated definition id does.
	DefaultDuplicatePolicy = "warn"

	// DefaultLoadAttempts is how many times `run` tries the initial
	// load, each on a fresh connection.
	DefaultLoadAttempts = 3

	// DefaultLoadBackoff is the delay before the first load retry.
	DefaultLoadBackoff = 500 * time.Millisecond

	// DefaultBreakerFailures is how many consecutive infrastructure
	// failures open the circuit during `run`.
	DefaultBreakerFailures = 3

	// DefaultBreakerReset is how long an open circuit waits before
	// letting a probe through.
	DefaultBreakerReset = 30 * time.Second

	// DefaultLogFormat is the console encoder.
	DefaultLogFormat = "console"

	// EnvPrefix prefixes every environment variable the loader reads.
	EnvPrefix = "WIRE_"
)
