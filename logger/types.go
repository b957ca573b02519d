package logger

import (
	"fmt"
	"strings"
)

type Logger interface {
	Trace(format string, args ...interface{})
	Debug(format string, args ...interface{})
	Info(format string, args ...interface{})
	Warning(format string, args ...interface{})
	Error(format string, args ...interface{})
	// Changes logger level to the newLevel
	ChangeLevel(newLevel LogLevel)
}

type LogLevel uint

const (
	NONE LogLevel = iota
	ERROR
	WARNING
	INFO
	DEBUG
	TRACE
)

var levelNames = map[LogLevel]string{
	NONE:    "NONE",
	ERROR:   "ERROR",
	WARNING: "WARNING",
	INFO:    "INFO",
	DEBUG:   "DEBUG",
	TRACE:   "TRACE",
}

func (l LogLevel) String() string {
	if s, ok := levelNames[l]; ok {
		return s
	}
	return fmt.Sprintf("LogLevel(%d)", uint(l))
}

// LevelFromString parses level name (case insensitive), unknown names map to DEBUG.
func LevelFromString(s string) LogLevel {
	lvl, err := ParseLevel(s)
	if err != nil {
		return DEBUG
	}
	return lvl
}

// ParseLevel is like LevelFromString but returns error for unknown level names.
func ParseLevel(s string) (LogLevel, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "WARN" {
		return WARNING, nil
	}
	for lvl, name := range levelNames {
		if name == s {
			return lvl, nil
		}
	}
	return DEBUG, fmt.Errorf("unknown log level %q", s)
}
