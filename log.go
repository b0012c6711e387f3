// (c) Copyright IBM Corp. 2024

package dbwrap

import (
	"github.com/mxProject/AdoNetHelper-sub000/logger"
)

// LeveledLogger is an interface of a generic logger that support different message levels.
// By default dbwrap uses logger.Logger with log.Logger as an output, however this
// interface is also compatible with such popular loggers as github.com/sirupsen/logrus.Logger
// and go.uber.org/zap.SugaredLogger
type LeveledLogger interface {
	Debug(v ...interface{})
	Info(v ...interface{})
	Warn(v ...interface{})
	Error(v ...interface{})
}

var defaultLogger LeveledLogger = logger.New(nil)

// SetLogger configures the default logger used by factories created without WithLogger
// and by the built-in interceptors.
func SetLogger(l LeveledLogger) {
	if l == nil {
		return
	}

	defaultLogger = l
}

// DefaultLogger returns the logger configured with SetLogger
func DefaultLogger() LeveledLogger {
	return defaultLogger
}
