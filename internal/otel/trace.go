package otel

import (
	"os"
	"sync/atomic"
)

// debugEnabled is set once at package init. Atomic for safe concurrent access.
var debugEnabled atomic.Bool

func init() {
	debugEnabled.Store(os.Getenv("PULSE_DEBUG") != "")
}

// DebugEnabled reports whether PULSE_DEBUG is set. Debug-level events are
// dropped before serialization when it is not.
func DebugEnabled() bool {
	return debugEnabled.Load()
}

// SetDebugEnabled overrides the debug flag (config file or tests).
func SetDebugEnabled(v bool) {
	debugEnabled.Store(v)
}
