package logger

import (
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	globalLogger *zap.SugaredLogger
	once         sync.Once
	mu           sync.RWMutex
)

// Config defines logging configuration.
type Config struct {
	Level  string `yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `yaml:"format"` // "json" or "console"
}

// DefaultConfig returns default logger config.
func DefaultConfig() *Config {
	return &Config{Level: "info", Format: "console"}
}

// InitLogger initializes Zap with the given config. The minimum level is a
// runtime gate: debug call sites stay in release builds and pay one cheap
// branch when the level filters them out.
func InitLogger(cfg *Config) {
	once.Do(func() {
		initLoggerInternal(cfg)
	})
}

func initLoggerInternal(cfg *Config) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	var zapLevel zapcore.Level
	switch cfg.Level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "timestamp"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderCfg.LevelKey = "level"
	encoderCfg.CallerKey = "caller"
	encoderCfg.MessageKey = "msg"
	encoderCfg.EncodeLevel = zapcore.CapitalLevelEncoder

	var encoder zapcore.Encoder
	if cfg.Format == "json" {
		encoder = zapcore.NewJSONEncoder(encoderCfg)
	} else {
		encoder = zapcore.NewConsoleEncoder(encoderCfg)
	}

	core := zapcore.NewCore(encoder, zapcore.AddSync(os.Stdout), zapLevel)
	logger := zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1))

	mu.Lock()
	globalLogger = logger.Sugar()
	mu.Unlock()
}

// GetLogger returns the global logger instance.
func GetLogger() *zap.SugaredLogger {
	ensureInitialized()
	mu.RLock()
	defer mu.RUnlock()
	return globalLogger
}

// Sync flushes any buffered log entries.
func Sync() {
	mu.RLock()
	defer mu.RUnlock()
	if globalLogger != nil {
		_ = globalLogger.Sync()
	}
}

func ensureInitialized() {
	if globalLogger == nil {
		InitLogger(DefaultConfig())
	}
}

// Debug logs debug level messages.
func Debug(msg string, args ...interface{}) {
	ensureInitialized()
	globalLogger.Debugf(msg, args...)
}

// Info logs info level messages.
func Info(msg string, args ...interface{}) {
	ensureInitialized()
	globalLogger.Infof(msg, args...)
}

// Warn logs warning level messages.
func Warn(msg string, args ...interface{}) {
	ensureInitialized()
	globalLogger.Warnf(msg, args...)
}

// Error logs error level messages.
func Error(msg string, args ...interface{}) {
	ensureInitialized()
	globalLogger.Errorf(msg, args...)
}

// Fatal logs fatal level messages and exits.
func Fatal(msg string, args ...interface{}) {
	ensureInitialized()
	globalLogger.Fatalf(msg, args...)
}
