package common

import (
	"fmt"
	"github.com/lni/dragonboat/v4/logger"
	"io"
	"log"
	"os"
	"strings"
	"sync"
)

// LoggerNames lists every logger used inside this module
var LoggerNames = []string{"pool", "conn", "transport"}

// --------------------------------------------------------------------------
// Custom Logger (implements dragonboats logger.ILogger)
// --------------------------------------------------------------------------

// dTubeLogger writes "LEVEL | logger | message" lines to the shared log output
type dTubeLogger struct {
	name  string
	level logger.LogLevel
}

func (l *dTubeLogger) SetLevel(level logger.LogLevel) {
	l.level = level
}

func (l *dTubeLogger) Debugf(format string, args ...interface{}) {
	l.logAt(logger.DEBUG, "DEBUG", format, args...)
}

func (l *dTubeLogger) Infof(format string, args ...interface{}) {
	l.logAt(logger.INFO, "INFO", format, args...)
}

func (l *dTubeLogger) Warningf(format string, args ...interface{}) {
	l.logAt(logger.WARNING, "WARN", format, args...)
}

func (l *dTubeLogger) Errorf(format string, args ...interface{}) {
	l.logAt(logger.ERROR, "ERROR", format, args...)
}

func (l *dTubeLogger) Panicf(format string, args ...interface{}) {
	message := fmt.Sprintf(format, args...)
	output.write("PANIC", l.name, message)
	panic(message)
}

func (l *dTubeLogger) logAt(level logger.LogLevel, levelStr string, format string, args ...interface{}) {
	if l.level < level {
		return
	}
	output.write(levelStr, l.name, fmt.Sprintf(format, args...))
}

// logOutput is shared by all loggers so the destination can be swapped at runtime
type logOutput struct {
	mu     sync.Mutex
	logger *log.Logger
}

var output = &logOutput{logger: log.New(os.Stderr, "", log.Ldate|log.Ltime)}

func (o *logOutput) write(levelStr, name, message string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.logger.Printf("%-5s | %-9s | %s", levelStr, name, message)
}

// SetLogOutput redirects all module loggers, e.g. into a buffer. Flags are the log package flags.
func SetLogOutput(w io.Writer, flags int) {
	output.mu.Lock()
	defer output.mu.Unlock()
	output.logger = log.New(w, "", flags)
}

// --------------------------------------------------------------------------
// Logger Factory
// --------------------------------------------------------------------------

// CreateLogger implements the dragonboat logger.Factory signature.
// Logs go to stderr by default so command output on stdout stays machine readable.
func CreateLogger(pkgName string) logger.ILogger {
	return &dTubeLogger{
		name:  pkgName,
		level: logger.WARNING,
	}
}

// --------------------------------------------------------------------------
// Levels
// --------------------------------------------------------------------------

// ParseLogLevel converts a string level to logger.LogLevel
func ParseLogLevel(level string) (logger.LogLevel, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return logger.DEBUG, nil
	case "info":
		return logger.INFO, nil
	case "warning", "warn":
		return logger.WARNING, nil
	case "error":
		return logger.ERROR, nil
	default:
		return 0, fmt.Errorf("invalid log level: %s. must be one of debug, info, warn, error", level)
	}
}

// ParseLogLevels parses a level spec like "warn" or "warn,conn=debug,pool=info".
// The plain entry is the level of every logger, name=level entries override it.
func ParseLogLevels(spec string) (map[string]logger.LogLevel, error) {
	levels := make(map[string]logger.LogLevel, len(LoggerNames))
	overrides := map[string]logger.LogLevel{}

	def := logger.WARNING
	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		name, level, found := strings.Cut(part, "=")
		if !found {
			lvl, err := ParseLogLevel(part)
			if err != nil {
				return nil, err
			}
			def = lvl
			continue
		}

		name = strings.TrimSpace(name)
		if !isLoggerName(name) {
			return nil, fmt.Errorf("unknown logger %q. must be one of %s", name, strings.Join(LoggerNames, ", "))
		}
		lvl, err := ParseLogLevel(level)
		if err != nil {
			return nil, err
		}
		overrides[name] = lvl
	}

	for _, name := range LoggerNames {
		levels[name] = def
		if lvl, ok := overrides[name]; ok {
			levels[name] = lvl
		}
	}
	return levels, nil
}

func isLoggerName(name string) bool {
	for _, n := range LoggerNames {
		if n == name {
			return true
		}
	}
	return false
}

// --------------------------------------------------------------------------
// Logger initialization
// --------------------------------------------------------------------------

// InitLoggers installs the custom logger factory and applies a level spec (see ParseLogLevels)
func InitLoggers(spec string) error {
	levels, err := ParseLogLevels(spec)
	if err != nil {
		return err
	}

	logger.SetLoggerFactory(CreateLogger)

	for name, lvl := range levels {
		logger.GetLogger(name).SetLevel(lvl)
	}
	return nil
}
