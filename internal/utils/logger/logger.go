package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config selects the verbosity and an optional file that receives a copy of
// every log line.
type Config struct {
	Level    string
	FilePath string
	NoColor  bool
}

// swapWriter lets tests and the TUI redirect console output without
// rebuilding the zap core.
type swapWriter struct {
	mu     sync.RWMutex
	writer io.Writer
}

func (s *swapWriter) Write(p []byte) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.writer == nil {
		return len(p), nil
	}
	return s.writer.Write(p)
}

func (s *swapWriter) Sync() error {
	return nil
}

var (
	sugarLogger   *zap.SugaredLogger
	baseLogger    *zap.Logger
	atomicLevel   zap.AtomicLevel
	once          sync.Once
	mu            sync.RWMutex
	logFile       *os.File
	currentConfig Config
	console       = &swapWriter{writer: os.Stderr}
)

func initDefault() {
	if err := apply(Config{Level: "info"}); err != nil {
		panic(fmt.Sprintf("logger initialization failed: %v", err))
	}
}

func apply(cfg Config) error {
	mu.Lock()
	defer mu.Unlock()

	level := ParseLevel(cfg.Level)
	if atomicLevel == (zap.AtomicLevel{}) {
		atomicLevel = zap.NewAtomicLevelAt(level)
	} else {
		atomicLevel.SetLevel(level)
	}

	encoderCfg := zap.NewDevelopmentConfig().EncoderConfig
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderCfg.EncodeCaller = zapcore.ShortCallerEncoder
	encoderCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	if cfg.NoColor {
		encoderCfg.EncodeLevel = zapcore.CapitalLevelEncoder
	}

	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(encoderCfg), zapcore.AddSync(console), atomicLevel),
	}

	filePath := strings.TrimSpace(cfg.FilePath)
	switch {
	case filePath != "":
		fileCore, handle, err := fileCore(encoderCfg, filePath)
		if err != nil {
			return err
		}
		if logFile != nil && logFile != handle {
			_ = logFile.Close()
		}
		logFile = handle
		cores = append(cores, fileCore)
	case logFile != nil:
		_ = logFile.Close()
		logFile = nil
	}

	baseLogger = zap.New(zapcore.NewTee(cores...),
		zap.AddCaller(),
		zap.AddStacktrace(zapcore.ErrorLevel),
	)
	sugarLogger = baseLogger.Sugar()
	zap.ReplaceGlobals(baseLogger)

	currentConfig = Config{Level: level.String(), FilePath: filePath, NoColor: cfg.NoColor}
	return nil
}

func fileCore(encoderCfg zapcore.EncoderConfig, path string) (zapcore.Core, *os.File, error) {
	cleaned := filepath.Clean(path)
	if dir := filepath.Dir(cleaned); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, nil, fmt.Errorf("creating log directory %q: %w", dir, err)
		}
	}

	file, err := os.OpenFile(cleaned, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o640)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file %q: %w", cleaned, err)
	}

	plain := encoderCfg
	plain.EncodeLevel = zapcore.CapitalLevelEncoder
	return zapcore.NewCore(zapcore.NewConsoleEncoder(plain), zapcore.AddSync(file), atomicLevel), file, nil
}

// InitWithConfig installs the global logger. Calling it again with a
// different configuration reconfigures the existing logger in place.
func InitWithConfig(cfg Config) (*zap.SugaredLogger, func(), error) {
	var initErr error
	initializedHere := false
	requested := Config{
		Level:    ParseLevel(cfg.Level).String(),
		FilePath: strings.TrimSpace(cfg.FilePath),
		NoColor:  cfg.NoColor,
	}

	once.Do(func() {
		initErr = apply(cfg)
		initializedHere = true
	})
	if initErr != nil {
		return nil, nil, fmt.Errorf("logger initialization failed: %w", initErr)
	}

	if !initializedHere {
		mu.RLock()
		same := currentConfig == requested
		mu.RUnlock()
		if !same {
			if err := apply(cfg); err != nil {
				return nil, nil, fmt.Errorf("logger reconfiguration failed: %w", err)
			}
		}
	}

	mu.RLock()
	defer mu.RUnlock()
	if sugarLogger == nil {
		return nil, nil, fmt.Errorf("logger initialization failed: no logger installed")
	}
	return sugarLogger, cleanupFunc(), nil
}

// Logger returns the process-wide sugared logger, creating an info-level
// console logger on first use.
func Logger() *zap.SugaredLogger {
	once.Do(initDefault)

	mu.RLock()
	defer mu.RUnlock()
	if sugarLogger == nil {
		panic("logger initialization failed: no logger installed")
	}
	return sugarLogger
}

func With(args ...interface{}) *zap.SugaredLogger {
	return Logger().With(args...)
}

func cleanupFunc() func() {
	current := logFile

	return func() {
		mu.Lock()
		defer mu.Unlock()

		if baseLogger != nil {
			// stderr sync returns EINVAL on some terminals; nothing to do about it
			_ = baseLogger.Sync()
		}
		if current != nil {
			if err := current.Close(); err != nil {
				fmt.Fprintf(os.Stderr, "error closing log file: %v\n", err)
			}
			if logFile == current {
				logFile = nil
			}
		}
	}
}

// ParseLevel maps a configuration string onto a zap level, defaulting to info.
func ParseLevel(level string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// SetLogLevel changes verbosity without rebuilding the logger.
func SetLogLevel(level string) {
	mu.Lock()
	defer mu.Unlock()

	if atomicLevel == (zap.AtomicLevel{}) {
		return
	}
	parsed := ParseLevel(level)
	atomicLevel.SetLevel(parsed)
	currentConfig.Level = parsed.String()
}

// ReplaceStderrWriter swaps the console writer and returns the previous one
// (never nil).
func ReplaceStderrWriter(w io.Writer) io.Writer {
	if w == nil {
		w = os.Stderr
	}

	console.mu.Lock()
	defer console.mu.Unlock()

	old := console.writer
	if old == nil {
		old = os.Stderr
	}
	console.writer = w
	return old
}
