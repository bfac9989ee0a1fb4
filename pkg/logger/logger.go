package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"transcode-orchestrator/pkg/config"
)

// Logger wraps a logrus logger with the output it owns.
type Logger struct {
	entry *logrus.Logger
	out   io.Closer
}

var (
	globalMu     sync.RWMutex
	globalLogger = newDefault()
)

func newDefault() *Logger {
	l := logrus.New()
	l.SetOutput(os.Stdout)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	l.SetLevel(logrus.InfoLevel)
	return &Logger{entry: l}
}

// NewLogger 根据配置创建日志器
func NewLogger(cfg *config.Config) *Logger {
	l := logrus.New()
	res := &Logger{entry: l}
	if cfg == nil {
		return newDefault()
	}

	level, err := logrus.ParseLevel(strings.ToLower(cfg.Log.Level))
	if err != nil {
		level = logrus.InfoLevel
	}
	l.SetLevel(level)

	if strings.EqualFold(cfg.Log.Format, "json") {
		l.SetFormatter(&logrus.JSONFormatter{TimestampFormat: "2006-01-02 15:04:05.000"})
	} else {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: "2006-01-02 15:04:05.000"})
	}

	switch strings.ToLower(cfg.Log.Output) {
	case "file":
		if f, err := openLogFile(cfg.Log.Filename); err == nil {
			l.SetOutput(f)
			res.out = f
		} else {
			l.SetOutput(os.Stdout)
			l.Warnf("open log file failed, fallback to stdout filename=%s error=%v", cfg.Log.Filename, err)
		}
	case "both":
		if f, err := openLogFile(cfg.Log.Filename); err == nil {
			l.SetOutput(io.MultiWriter(os.Stdout, f))
			res.out = f
		} else {
			l.SetOutput(os.Stdout)
		}
	default:
		l.SetOutput(os.Stdout)
	}
	return res
}

func openLogFile(name string) (*os.File, error) {
	if name == "" {
		name = "logs/transcode-orchestrator.log"
	}
	if err := os.MkdirAll(filepath.Dir(name), 0o755); err != nil {
		return nil, err
	}
	return os.OpenFile(name, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
}

// SetGlobalLogger 设置全局日志器
func SetGlobalLogger(l *Logger) {
	if l == nil {
		return
	}
	globalMu.Lock()
	globalLogger = l
	globalMu.Unlock()
}

func current() *Logger {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalLogger
}

// Raw exposes the logrus logger, e.g. for gin writers.
func (l *Logger) Raw() *logrus.Logger { return l.entry }

// Close releases the log file if one was opened.
func (l *Logger) Close() {
	if l.out != nil {
		_ = l.out.Close()
	}
}

func (l *Logger) Debugf(format string, args ...interface{}) { l.entry.Debugf(format, args...) }
func (l *Logger) Infof(format string, args ...interface{})  { l.entry.Infof(format, args...) }
func (l *Logger) Warnf(format string, args ...interface{})  { l.entry.Warnf(format, args...) }
func (l *Logger) Errorf(format string, args ...interface{}) { l.entry.Errorf(format, args...) }

// Debug 带字段的调试日志
func (l *Logger) Debug(msg string, fields ...map[string]interface{}) {
	l.entry.WithFields(merge(fields)).Debug(msg)
}

func (l *Logger) Info(msg string, fields ...map[string]interface{}) {
	l.entry.WithFields(merge(fields)).Info(msg)
}

func (l *Logger) Warn(msg string, fields ...map[string]interface{}) {
	l.entry.WithFields(merge(fields)).Warn(msg)
}

func (l *Logger) Error(msg string, fields ...map[string]interface{}) {
	l.entry.WithFields(merge(fields)).Error(msg)
}

func merge(fields []map[string]interface{}) logrus.Fields {
	out := logrus.Fields{}
	for _, f := range fields {
		for k, v := range f {
			out[k] = v
		}
	}
	return out
}

func Debugf(format string, args ...interface{}) { current().Debugf(format, args...) }
func Infof(format string, args ...interface{})  { current().Infof(format, args...) }
func Warnf(format string, args ...interface{})  { current().Warnf(format, args...) }
func Errorf(format string, args ...interface{}) { current().Errorf(format, args...) }

func Debug(msg string, fields ...map[string]interface{}) { current().Debug(msg, fields...) }
func Info(msg string, fields ...map[string]interface{})  { current().Info(msg, fields...) }
func Warn(msg string, fields ...map[string]interface{})  { current().Warn(msg, fields...) }
func Error(msg string, fields ...map[string]interface{}) { current().Error(msg, fields...) }

// Fatal 记录日志后退出进程
func Fatal(msg string) {
	current().entry.Fatal(msg)
}

// Fatalf 格式化版本的 Fatal
func Fatalf(format string, args ...interface{}) {
	Fatal(fmt.Sprintf(format, args...))
}
