package zaplogging

import (
	"os"
	"strings"

	"github.com/core-tools/hsu-tunnelman-go/pkg/errors"
	"github.com/core-tools/hsu-tunnelman-go/pkg/logging"

	"github.com/juju/lumberjack/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options controls the zap backend
type Options struct {
	Level string

	// File enables an additional JSON sink rotated by lumberjack
	File       string
	MaxSizeMB  int
	MaxBackups int
	Compress   bool
}

// ZapLogger exposes logging.LogFuncs backed by a zap SugaredLogger
type ZapLogger struct {
	sugar *zap.SugaredLogger
	level zap.AtomicLevel
}

func New(opts Options) (*ZapLogger, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, err
	}
	atomicLevel := zap.NewAtomicLevelAt(level)

	consoleConfig := zap.NewDevelopmentEncoderConfig()
	consoleConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(consoleConfig), zapcore.Lock(os.Stderr), atomicLevel),
	}

	if opts.File != "" {
		maxSize := opts.MaxSizeMB
		if maxSize <= 0 {
			maxSize = 100
		}
		rotator := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    maxSize,
			MaxBackups: opts.MaxBackups,
			Compress:   opts.Compress,
		}
		fileConfig := zap.NewProductionEncoderConfig()
		fileConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(fileConfig), zapcore.AddSync(rotator), atomicLevel))
	}

	logger := zap.New(zapcore.NewTee(cores...))
	return &ZapLogger{sugar: logger.Sugar(), level: atomicLevel}, nil
}

// ParseLevel accepts debug, info, warn/warning and error; empty means info
func ParseLevel(level string) (zapcore.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "", "info":
		return zapcore.InfoLevel, nil
	case "debug":
		return zapcore.DebugLevel, nil
	case "warn", "warning":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	default:
		return zapcore.InfoLevel, errors.NewValidationError("unknown log level", nil).WithContext("level", level)
	}
}

func (z *ZapLogger) SetLevel(level zapcore.Level) {
	z.level.SetLevel(level)
}

func (z *ZapLogger) LogLevelf(level int, format string, args ...interface{}) {
	switch level {
	case logging.DebugLevel:
		z.sugar.Debugf(format, args...)
	case logging.WarnLevel:
		z.sugar.Warnf(format, args...)
	case logging.ErrorLevel:
		z.sugar.Errorf(format, args...)
	default:
		z.sugar.Infof(format, args...)
	}
}

func (z *ZapLogger) Funcs() logging.LogFuncs {
	return logging.LogFuncs{
		LogLevelf: z.LogLevelf,
		Debugf:    z.sugar.Debugf,
		Infof:     z.sugar.Infof,
		Warnf:     z.sugar.Warnf,
		Errorf:    z.sugar.Errorf,
	}
}

func (z *ZapLogger) Sync() error {
	return z.sugar.Sync()
}
