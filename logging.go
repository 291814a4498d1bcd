package geobed

import "go.uber.org/zap"

// defaultLogger returns the zap logger used for construction-time
// diagnostics when the caller doesn't supply one via WithLogger. Falls
// back to a no-op logger rather than panicking if zap's production config
// fails to build (e.g. no writable stderr in a sandboxed environment).
func defaultLogger() *zap.Logger {
	l, err := zap.NewProduction()
	if err != nil {
		return zap.NewNop()
	}
	return l
}
