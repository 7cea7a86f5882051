//go:build debug

// Only compiled in when the debug build tag is set, mirroring
// kcp_trace_on.go's split between a logging and a no-op implementation.
package siamese

import "log"

func traceDebugf(format string, args ...interface{}) {
	log.Printf("siamese: "+format, args...)
}
