// Package log provides structured logging with build context.
//
// Two logger variants are available:
//   - Logger: Non-sugared zap.Logger for the engine (high performance, structured fields)
//   - SugaredLogger: Printf-style logging for CLI surfaces (convenience over performance)
//
// Use Logger.Sugar() to obtain a SugaredLogger when needed.
package log

import (
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// BuildContext carries the identity fields attached to every log entry.
type BuildContext struct {
	// Entry is the entry asset path of the build.
	Entry string
	// OutDir is the output directory.
	OutDir string
	// Production marks a production build.
	Production bool
}

// Logger provides structured logging with build context.
//
// Use this for engine paths where performance matters. For CLI surfaces,
// use Sugar() to get a SugaredLogger.
type Logger struct {
	zap *zap.Logger
}

// SugaredLogger provides printf-style logging for CLI surfaces.
type SugaredLogger struct {
	sugar *zap.SugaredLogger
}

// NewLogger creates a new logger with build context. Output defaults to
// os.Stderr. level is the numeric log level: 0=silent, 1=errors, 2=info,
// 3=verbose.
func NewLogger(buildCtx *BuildContext, level int) *Logger {
	return newLoggerWithWriter(buildCtx, level, os.Stderr)
}

// NewNop returns a logger that discards everything. Used in tests.
func NewNop() *Logger {
	return &Logger{zap: zap.NewNop()}
}

// WithOutput returns a new logger with a different output writer.
func (l *Logger) WithOutput(w io.Writer) *Logger {
	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderConfig()),
		zapcore.AddSync(w),
		zapcore.DebugLevel,
	)
	return &Logger{zap: l.zap.WithOptions(zap.WrapCore(func(zapcore.Core) zapcore.Core { return core }))}
}

func encoderConfig() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		TimeKey:     "timestamp",
		LevelKey:    "level",
		MessageKey:  "message",
		EncodeTime:  zapcore.RFC3339NanoTimeEncoder,
		EncodeLevel: zapcore.LowercaseLevelEncoder,
	}
}

// zapLevel maps the numeric log level to a zap level threshold.
func zapLevel(level int) zapcore.LevelEnabler {
	switch {
	case level <= 0:
		// Silent: nothing passes, including errors.
		return zapcore.Level(127)
	case level == 1:
		return zapcore.ErrorLevel
	case level == 2:
		return zapcore.InfoLevel
	default:
		return zapcore.DebugLevel
	}
}

func newLoggerWithWriter(buildCtx *BuildContext, level int, w io.Writer) *Logger {
	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderConfig()),
		zapcore.AddSync(w),
		zapLevel(level),
	)

	contextFields := []zap.Field{
		zap.String("entry", buildCtx.Entry),
		zap.String("out_dir", buildCtx.OutDir),
	}
	if buildCtx.Production {
		contextFields = append(contextFields, zap.Bool("production", true))
	}

	return &Logger{zap: zap.New(core).With(contextFields...)}
}

// Debug logs a debug message.
func (l *Logger) Debug(message string, fields map[string]any) {
	l.zap.Debug(message, zap.Any("fields", fields))
}

// Info logs an info message.
func (l *Logger) Info(message string, fields map[string]any) {
	l.zap.Info(message, zap.Any("fields", fields))
}

// Warn logs a warning message.
func (l *Logger) Warn(message string, fields map[string]any) {
	l.zap.Warn(message, zap.Any("fields", fields))
}

// Error logs an error message.
func (l *Logger) Error(message string, fields map[string]any) {
	l.zap.Error(message, zap.Any("fields", fields))
}

// Sugar returns a SugaredLogger for printf-style logging.
func (l *Logger) Sugar() *SugaredLogger {
	return &SugaredLogger{sugar: l.zap.Sugar()}
}

// Debugf logs a debug message with printf-style formatting.
func (s *SugaredLogger) Debugf(template string, args ...any) {
	s.sugar.Debugf(template, args...)
}

// Infof logs an info message with printf-style formatting.
func (s *SugaredLogger) Infof(template string, args ...any) {
	s.sugar.Infof(template, args...)
}

// Warnf logs a warning message with printf-style formatting.
func (s *SugaredLogger) Warnf(template string, args ...any) {
	s.sugar.Warnf(template, args...)
}

// Errorf logs an error message with printf-style formatting.
func (s *SugaredLogger) Errorf(template string, args ...any) {
	s.sugar.Errorf(template, args...)
}

// With returns a SugaredLogger with additional context fields.
func (s *SugaredLogger) With(args ...any) *SugaredLogger {
	return &SugaredLogger{sugar: s.sugar.With(args...)}
}
