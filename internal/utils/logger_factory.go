package utils

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	logLevelDebugStringConstant          = "debug"
	logLevelInfoStringConstant           = "info"
	logLevelWarnStringConstant           = "warn"
	logLevelErrorStringConstant          = "error"
	logFormatStructuredStringConstant    = "structured"
	logFormatConsoleStringConstant       = "console"
	consoleTimeKeyConstant               = "time"
	componentFieldNameConstant           = "component"
	samplingTickConstant                 = time.Second
	samplingFirstConstant                = 100
	samplingThereafterConstant           = 100
	unsupportedLogLevelTemplateConstant  = "unsupported log level: %s"
	unsupportedLogFormatTemplateConstant = "unsupported log format: %s"
)

// LogLevel enumerates supported logging granularities.
type LogLevel string

// Exported log level constants for reuse across packages.
const (
	LogLevelDebug LogLevel = LogLevel(logLevelDebugStringConstant)
	LogLevelInfo  LogLevel = LogLevel(logLevelInfoStringConstant)
	LogLevelWarn  LogLevel = LogLevel(logLevelWarnStringConstant)
	LogLevelError LogLevel = LogLevel(logLevelErrorStringConstant)
)

// LogFormat enumerates supported logger output encodings.
type LogFormat string

// Exported log format constants for reuse across packages.
const (
	LogFormatStructured LogFormat = LogFormat(logFormatStructuredStringConstant)
	LogFormatConsole    LogFormat = LogFormat(logFormatConsoleStringConstant)
)

// LoggerOptions describes the logger a command or the HTTP server needs.
type LoggerOptions struct {
	Level LogLevel
	// Format selects JSON lines for structured output or colored text for console output.
	Format LogFormat
	// Output defaults to standard error.
	Output io.Writer
	// Component, when set, is attached to every entry.
	Component string
}

// LoggerFactory builds zap.Logger instances with consistent configuration.
type LoggerFactory struct{}

var logLevelMapping = map[LogLevel]zapcore.Level{
	LogLevelDebug: zapcore.DebugLevel,
	LogLevelInfo:  zapcore.InfoLevel,
	LogLevelWarn:  zapcore.WarnLevel,
	LogLevelError: zapcore.ErrorLevel,
}

// NewLoggerFactory constructs a new logger factory.
func NewLoggerFactory() *LoggerFactory {
	return &LoggerFactory{}
}

// ParseLogLevel normalizes a configured level name.
func ParseLogLevel(requestedLogLevel string) (LogLevel, error) {
	normalizedLogLevel := LogLevel(strings.ToLower(strings.TrimSpace(requestedLogLevel)))
	if _, levelExists := logLevelMapping[normalizedLogLevel]; !levelExists {
		return "", fmt.Errorf(unsupportedLogLevelTemplateConstant, requestedLogLevel)
	}
	return normalizedLogLevel, nil
}

// ParseLogFormat normalizes a configured format name.
func ParseLogFormat(requestedLogFormat string) (LogFormat, error) {
	normalizedLogFormat := LogFormat(strings.ToLower(strings.TrimSpace(requestedLogFormat)))
	switch normalizedLogFormat {
	case LogFormatStructured, LogFormatConsole:
		return normalizedLogFormat, nil
	default:
		return "", fmt.Errorf(unsupportedLogFormatTemplateConstant, requestedLogFormat)
	}
}

// CreateLogger produces a zap.Logger honoring the requested options.
func (factory *LoggerFactory) CreateLogger(options LoggerOptions) (*zap.Logger, error) {
	logLevel, levelError := ParseLogLevel(string(options.Level))
	if levelError != nil {
		return nil, levelError
	}
	logFormat, formatError := ParseLogFormat(string(options.Format))
	if formatError != nil {
		return nil, formatError
	}

	var writeSyncer zapcore.WriteSyncer
	if options.Output == nil {
		writeSyncer = zapcore.Lock(os.Stderr)
	} else {
		writeSyncer = zapcore.AddSync(options.Output)
	}

	var core zapcore.Core
	levelEnabler := zap.NewAtomicLevelAt(logLevelMapping[logLevel])
	if logFormat == LogFormatConsole {
		encoderConfiguration := zap.NewDevelopmentEncoderConfig()
		encoderConfiguration.TimeKey = consoleTimeKeyConstant
		encoderConfiguration.EncodeLevel = zapcore.CapitalColorLevelEncoder
		core = zapcore.NewCore(zapcore.NewConsoleEncoder(encoderConfiguration), writeSyncer, levelEnabler)
	} else {
		encoderConfiguration := zap.NewProductionEncoderConfig()
		encoderConfiguration.EncodeTime = zapcore.ISO8601TimeEncoder
		core = zapcore.NewSamplerWithOptions(
			zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfiguration), writeSyncer, levelEnabler),
			samplingTickConstant,
			samplingFirstConstant,
			samplingThereafterConstant,
		)
	}

	logger := zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
	if component := strings.TrimSpace(options.Component); len(component) > 0 {
		logger = logger.With(zap.String(componentFieldNameConstant, component))
	}
	return logger, nil
}
