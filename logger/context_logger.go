package logger

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

// contextLogger is a named logger managed by the global factory. The zerolog
// instance is (re)built whenever the global configuration changes.
type contextLogger struct {
	mu   sync.RWMutex
	name string
	zl   zerolog.Logger
}

func newContextLogger(name string, base zerolog.Logger, level LogLevel) *contextLogger {
	c := &contextLogger{name: name}
	c.rebuild(base, level)
	return c
}

func (c *contextLogger) rebuild(base zerolog.Logger, level LogLevel) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.zl = base.Level(toZeroLevel(level)).With().Str("module", c.name).Logger()
}

func (c *contextLogger) logger() *zerolog.Logger {
	c.mu.RLock()
	defer c.mu.RUnlock()
	l := c.zl
	return &l
}

func (c *contextLogger) Trace(format string, args ...interface{}) {
	logMessage(c.logger().Trace(), format, args)
}

func (c *contextLogger) Debug(format string, args ...interface{}) {
	logMessage(c.logger().Debug(), format, args)
}

func (c *contextLogger) Info(format string, args ...interface{}) {
	logMessage(c.logger().Info(), format, args)
}

func (c *contextLogger) Warning(format string, args ...interface{}) {
	logMessage(c.logger().Warn(), format, args)
}

func (c *contextLogger) Error(format string, args ...interface{}) {
	logMessage(c.logger().Error(), format, args)
}

func (c *contextLogger) ChangeLevel(newLevel LogLevel) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.zl = c.zl.Level(toZeroLevel(newLevel))
}

func logMessage(event *zerolog.Event, format string, args []interface{}) {
	if event == nil {
		// level disabled
		return
	}
	if len(args) == 0 {
		event.Msg(format)
	} else {
		event.Msgf(format, args...)
	}
}

func toZeroLevel(lvl LogLevel) zerolog.Level {
	switch lvl {
	case NONE:
		return zerolog.Disabled
	case TRACE:
		return zerolog.TraceLevel
	case DEBUG:
		return zerolog.DebugLevel
	case INFO:
		return zerolog.InfoLevel
	case WARNING:
		return zerolog.WarnLevel
	case ERROR:
		return zerolog.ErrorLevel
	default:
		panic(fmt.Sprintf("unknown level: %d", lvl))
	}
}

// nopLogger discards everything.
type nopLogger struct{}

// Nop returns logger which discards all messages.
func Nop() Logger { return nopLogger{} }

func (nopLogger) Trace(string, ...interface{})   {}
func (nopLogger) Debug(string, ...interface{})   {}
func (nopLogger) Info(string, ...interface{})    {}
func (nopLogger) Warning(string, ...interface{}) {}
func (nopLogger) Error(string, ...interface{})   {}
func (nopLogger) ChangeLevel(LogLevel)           {}
