package logger

import (
	"fmt"
	"os"
	"regexp"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const basePackage = "marfl/fbas-analyzer"

type globalFactory struct {
	sync.Mutex
	config  GlobalConfig
	base    zerolog.Logger
	loggers map[string]*contextLogger
}

// Singleton for managing application wide logging.
var globalFactoryImpl = newGlobalFactory()

var nonAlphaNumeric = regexp.MustCompile(`[^a-zA-Z0-9]`)

func newGlobalFactory() *globalFactory {
	gf := &globalFactory{loggers: make(map[string]*contextLogger)}
	gf.updateFromConfig(defaultConfiguration())
	return gf
}

// CreateForPackage creates logger named after the caller package.
func CreateForPackage() Logger {
	return Create(callerPackage(2))
}

// Create creates custom named logger. Loggers are cached by (normalized) name.
func Create(name string) Logger {
	return globalFactoryImpl.create(name)
}

// UpdateGlobalConfig replaces the global config and updates all loggers accordingly.
func UpdateGlobalConfig(config GlobalConfig) {
	globalFactoryImpl.Lock()
	defer globalFactoryImpl.Unlock()
	globalFactoryImpl.updateFromConfig(config)
}

// UpdateGlobalConfigFromFile reads the file and parses it as YAML. Global logger
// configuration is updated accordingly. In case of an error, logger won't be updated.
func UpdateGlobalConfigFromFile(fileName string) error {
	conf, err := loadGlobalConfigFromFile(fileName)
	if err != nil {
		return err
	}
	UpdateGlobalConfig(conf)
	return nil
}

// SetLevel changes the default level of all loggers which do not have package
// specific level configured.
func SetLevel(level LogLevel) {
	globalFactoryImpl.Lock()
	defer globalFactoryImpl.Unlock()
	cfg := globalFactoryImpl.config
	cfg.DefaultLevel = level
	globalFactoryImpl.updateFromConfig(cfg)
}

func (gf *globalFactory) updateFromConfig(config GlobalConfig) {
	if config.Writer == nil {
		config.Writer = os.Stderr
	}
	if config.PackageLevels == nil {
		config.PackageLevels = map[string]LogLevel{}
	}
	gf.config = config

	if config.TimeLocation != "" {
		loc, err := time.LoadLocation(config.TimeLocation)
		if err != nil {
			loc, _ = time.LoadLocation(defaultTimeLocation)
		}
		zerolog.TimestampFunc = func() time.Time { return time.Now().In(loc) }
	}
	zerolog.TimeFieldFormat = time.RFC3339Nano
	// per logger levels do the filtering
	zerolog.SetGlobalLevel(zerolog.TraceLevel)

	var base zerolog.Logger
	if config.ConsoleFormat {
		base = zerolog.New(zerolog.ConsoleWriter{
			Out:          config.Writer,
			TimeFormat:   "15:04:05.000000",
			FormatCaller: consoleFormatCallerLastTwoDirs,
		}).With().Timestamp().Logger()
	} else {
		base = zerolog.New(config.Writer).With().Timestamp().Logger()
	}
	if config.ShowCaller {
		// frames: zerolog, logMessage, contextLogger method
		base = base.With().CallerWithSkipFrameCount(4).Logger()
	}
	gf.base = base

	for name, l := range gf.loggers {
		l.rebuild(gf.base, gf.loggerLevel(name))
	}
}

func (gf *globalFactory) create(name string) Logger {
	gf.Lock()
	defer gf.Unlock()

	normName := nonAlphaNumeric.ReplaceAllString(name, "_")
	if l, ok := gf.loggers[normName]; ok {
		return l
	}
	l := newContextLogger(normName, gf.base, gf.loggerLevel(normName))
	gf.loggers[normName] = l
	return l
}

func (gf *globalFactory) loggerLevel(loggerName string) LogLevel {
	if level, ok := gf.config.PackageLevels[loggerName]; ok {
		return level
	}
	return gf.config.DefaultLevel
}

// callerPackage returns package of the caller relative to the module root, ie
// "search" for github.com/marfl/fbas-analyzer/search.Foo.
func callerPackage(depth int) string {
	pc, _, _, _ := runtime.Caller(depth)
	fn := runtime.FuncForPC(pc)
	if fn == nil {
		return "unknown"
	}
	name := fn.Name()
	if i := strings.Index(name, basePackage); i >= 0 {
		name = name[i+len(basePackage):]
	}
	// strip function (and receiver) part which starts after the last slash
	if slash := strings.LastIndex(name, "/"); slash >= 0 {
		if dot := strings.Index(name[slash:], "."); dot >= 0 {
			name = name[:slash+dot]
		}
	} else if dot := strings.Index(name, "."); dot >= 0 {
		name = name[:dot]
	}
	return strings.Trim(name, "/")
}

// Returns caller with last two directories.
func consoleFormatCallerLastTwoDirs(i interface{}) string {
	c, _ := i.(string)
	if c == "" {
		return c
	}
	split := strings.Split(c, string(os.PathSeparator))
	l := len(split)
	if l > 2 {
		return fmt.Sprintf("%s/%s/%s", split[l-3], split[l-2], split[l-1])
	} else if l > 1 {
		return fmt.Sprintf("%s/%s", split[l-2], split[l-1])
	}
	return c
}
