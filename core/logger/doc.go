// Package logger builds the zap loggers used across entity-persister.
//
// New reads a Config with a level (debug, info, warn, error) and a format (json or
// console). Debug level switches to zap's development preset. Unknown levels are
// rejected instead of silently falling back.
//
// HTTP handlers call WithRayID to tag their entries with the request id that the
// rayid middleware stored in the fiber locals:
//
//	l := logger.WithRayID(log, c)
//	l.Error("Persist failed", zap.Error(err))
package logger
