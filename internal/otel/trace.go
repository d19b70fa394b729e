package otel

import (
	"os"
	"sync/atomic"
)

// traceEnabled gates high-volume events such as individual key presses.
var traceEnabled atomic.Bool

func init() {
	traceEnabled.Store(os.Getenv("FEEDVIEW_TRACE") != "")
}

// TraceEnabled reports whether FEEDVIEW_TRACE is set.
func TraceEnabled() bool {
	return traceEnabled.Load()
}

// SetTraceEnabled overrides the FEEDVIEW_TRACE setting.
func SetTraceEnabled(v bool) {
	traceEnabled.Store(v)
}
