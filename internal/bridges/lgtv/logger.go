package lgtv

import "sync"

// Logger interface for optional logging support.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// logSink holds an optional Logger. The zero value discards everything.
type logSink struct {
	logger   Logger
	loggerMu sync.RWMutex
}

// SetLogger sets the logger.
func (s *logSink) SetLogger(logger Logger) {
	s.loggerMu.Lock()
	s.logger = logger
	s.loggerMu.Unlock()
}

func (s *logSink) get() Logger {
	s.loggerMu.RLock()
	defer s.loggerMu.RUnlock()
	return s.logger
}

// logInfo logs an info message if logger is set.
func (s *logSink) logInfo(msg string, keysAndValues ...any) {
	if logger := s.get(); logger != nil {
		logger.Info(msg, keysAndValues...)
	}
}

// logWarn logs a warning if logger is set.
func (s *logSink) logWarn(msg string, keysAndValues ...any) {
	if logger := s.get(); logger != nil {
		logger.Warn(msg, keysAndValues...)
	}
}

// logError logs an error if logger is set.
func (s *logSink) logError(msg string, err error, keysAndValues ...any) {
	if logger := s.get(); logger != nil {
		logger.Error(msg, append([]any{"error", err}, keysAndValues...)...)
	}
}

// logDebug logs a debug message if logger is set.
func (s *logSink) logDebug(msg string, keysAndValues ...any) {
	if logger := s.get(); logger != nil {
		logger.Debug(msg, keysAndValues...)
	}
}
