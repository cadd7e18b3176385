package logger

var defLogger Logger = NewSlog(nil, InfoLevel)

// GetLogger returns the process-wide default logger.
func GetLogger() Logger { return defLogger }

// SetLogger replaces the default logger. It is meant for main packages and is
// not safe to call while other goroutines are logging.
func SetLogger(l Logger) {
	if l != nil {
		defLogger = l
	}
}

func Debug(msg string, keysAndValues ...any) { defLogger.Debug(msg, keysAndValues...) }
func Info(msg string, keysAndValues ...any)  { defLogger.Info(msg, keysAndValues...) }
func Warn(msg string, keysAndValues ...any)  { defLogger.Warn(msg, keysAndValues...) }
func Error(msg string, keysAndValues ...any) { defLogger.Error(msg, keysAndValues...) }

func With(keyValues ...any) Logger { return defLogger.With(keyValues...) }
