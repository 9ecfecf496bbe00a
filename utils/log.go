package utils

/*
A leveled, tagged logger. The formatting and sink are provided by zap;
callers keep the printf style API used across the code base.
*/

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	LogErrorLevel int = 0
	LogWarnLevel  int = 1
	LogInfoLevel  int = 2
	LogDebugLevel int = 3
)

var (
	atomLevel = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	logLevel  = LogDebugLevel
	base      = newBase()
	stdoutLog = NewLogger("")
)

func newBase() *zap.Logger {
	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.EncodeTime = zapcore.TimeEncoderOfLayout(timeFormat)
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encCfg),
		zapcore.Lock(os.Stdout),
		atomLevel,
	)
	return zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1))
}

// SetLogLevel accepts one of the Log*Level constants
func SetLogLevel(level int) {
	logLevel = level
	atomLevel.SetLevel(toZapLevel(level))
}

func GetLogLevel() int {
	return logLevel
}

func GetStdoutLog() *Logger {
	return stdoutLog
}

// Sync flushes buffered log entries, call it before the process exits
func Sync() {
	base.Sync()
}

type Logger struct {
	s *zap.SugaredLogger
}

func NewLogger(tag string) *Logger {
	l := base
	if len(tag) != 0 {
		l = l.Named(tag)
	}
	return &Logger{s: l.Sugar()}
}

func (l *Logger) Fatal(format string, v ...interface{}) {
	l.s.Fatalf(format, v...)
}

func (l *Logger) Fatalln(v ...interface{}) {
	l.s.Fatalln(v...)
}

func (l *Logger) Error(format string, v ...interface{}) {
	l.s.Errorf(format, v...)
}

func (l *Logger) Errorln(v ...interface{}) {
	l.s.Errorln(v...)
}

func (l *Logger) Warn(format string, v ...interface{}) {
	l.s.Warnf(format, v...)
}

func (l *Logger) Warnln(v ...interface{}) {
	l.s.Warnln(v...)
}

func (l *Logger) Info(format string, v ...interface{}) {
	l.s.Infof(format, v...)
}

func (l *Logger) Infoln(v ...interface{}) {
	l.s.Infoln(v...)
}

func (l *Logger) Debug(format string, v ...interface{}) {
	l.s.Debugf(format, v...)
}

func (l *Logger) Debugln(v ...interface{}) {
	l.s.Debugln(v...)
}

func toZapLevel(level int) zapcore.Level {
	switch level {
	case LogErrorLevel:
		return zapcore.ErrorLevel
	case LogWarnLevel:
		return zapcore.WarnLevel
	case LogInfoLevel:
		return zapcore.InfoLevel
	default:
		return zapcore.DebugLevel
	}
}
