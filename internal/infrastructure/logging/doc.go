// Package logging provides structured logging for the LG TV bridge.
//
// It wraps log/slog so every component logs the same way: JSON in
// production, text on a terminal, with service and version attached to
// every entry.
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// # Usage
//
//	logger := logging.New(cfg.Logging, version)
//	tvLog := logger.Component("lgtv")
//	tvLog.Info("entry loaded", "entry_id", id, "port", port)
//
// Components that accept a logger take a small interface
// (Debug/Info/Warn/Error) so *Logger, *slog.Logger or a test double can be
// passed in.
package logging
