// Package logging builds the slog loggers used by tooltailor binaries.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/exp/zapslog"
	"go.uber.org/zap/zapcore"
)

// EnvLogLevel is consulted when no level flag is given.
const EnvLogLevel = "TOOLTAILOR_LOG_LEVEL"

// ParseLevel maps a level name to a zap level. Empty means info.
func ParseLevel(level string) (zapcore.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "", "info":
		return zapcore.InfoLevel, nil
	case "debug", "trace":
		return zapcore.DebugLevel, nil
	case "warn", "warning":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf("unknown log level %q", level)
	}
}

// NewZapLogger writes JSON records at or above level to w.
func NewZapLogger(level string, w io.Writer) (*zap.Logger, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderCfg),
		zapcore.AddSync(w),
		zap.NewAtomicLevelAt(lvl),
	)
	return zap.New(core), nil
}

// SlogFromZap returns an *slog.Logger that writes straight to the zap core.
func SlogFromZap(z *zap.Logger) *slog.Logger {
	return slog.New(zapslog.NewHandler(z.Core(), zapslog.WithCaller(true)))
}

// NewLogger builds a zap-backed slog logger. The returned sync function
// flushes buffered records and is never nil.
func NewLogger(level string, w io.Writer) (*slog.Logger, func(), error) {
	z, err := NewZapLogger(level, w)
	if err != nil {
		return nil, func() {}, err
	}
	return SlogFromZap(z), func() { _ = z.Sync() }, nil
}
