package core

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

type LogLevel int

const (
	DebugLevel LogLevel = iota
	InfoLevel
	WarnLevel
	ErrorLevel
	FatalLevel
)

var once sync.Once

type logger struct {
	*log.Logger
}

var singleton *logger

// fatalHandler is swapped by tests so that fatal assertions can be recovered.
var fatalHandler = func(msg string) {
	getLogger().Fatal(msg)
}

func getLogger() *logger {
	if singleton == nil {
		once.Do(
			func() {
				l := log.NewWithOptions(os.Stderr, log.Options{
					ReportCaller:    true,
					ReportTimestamp: true,
					TimeFormat:      time.RFC3339,
					Prefix:          "HAL 🎨 ",
					CallerOffset:    2,
				})
				l.SetLevel(log.DebugLevel)
				singleton = &logger{l}
			})
	}
	return singleton
}

// SetLogLevel changes the minimum level written by the engine logger.
func SetLogLevel(level LogLevel) {
	switch level {
	case DebugLevel:
		getLogger().SetLevel(log.DebugLevel)
	case InfoLevel:
		getLogger().SetLevel(log.InfoLevel)
	case WarnLevel:
		getLogger().SetLevel(log.WarnLevel)
	case ErrorLevel:
		getLogger().SetLevel(log.ErrorLevel)
	default:
		getLogger().SetLevel(log.FatalLevel)
	}
}

// ParseLogLevel maps the config spelling of a level, falling back to info.
func ParseLogLevel(s string) LogLevel {
	lvl, err := log.ParseLevel(s)
	if err != nil {
		return InfoLevel
	}
	switch lvl {
	case log.DebugLevel:
		return DebugLevel
	case log.WarnLevel:
		return WarnLevel
	case log.ErrorLevel:
		return ErrorLevel
	case log.FatalLevel:
		return FatalLevel
	}
	return InfoLevel
}

// SetLogOutput redirects the engine logger, os.Stderr by default.
func SetLogOutput(w io.Writer) {
	getLogger().SetOutput(w)
}

// SetFatalHandler replaces what LogFatal does after formatting. It returns the
// previous handler so callers can restore it.
func SetFatalHandler(fn func(msg string)) func(msg string) {
	prev := fatalHandler
	fatalHandler = fn
	return prev
}

func LogDebug(msg string, args ...interface{}) {
	getLogger().Debugf(msg, args...)
}

func LogInfo(msg string, args ...interface{}) {
	getLogger().Infof(msg, args...)
}

func LogWarn(msg string, args ...interface{}) {
	getLogger().Warnf(msg, args...)
}

func LogError(msg string, args ...interface{}) {
	getLogger().Errorf(msg, args...)
}

func LogFatal(msg string, args ...interface{}) {
	fatalHandler(fmt.Sprintf(msg, args...))
}
