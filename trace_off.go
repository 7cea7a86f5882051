//go:build !debug

package siamese

func traceDebugf(format string, args ...interface{}) {}
