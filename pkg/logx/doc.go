// Package logx wraps zerolog behind a small structured-logging API.
//
// The Service owns the sinks (console and optional file) and can swap
// levels/outputs at runtime via Apply(); Loggers created from it stay live
// across those swaps. The zero Logger is a safe no-op.
package logx
