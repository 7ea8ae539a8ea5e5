// Package util provides low-level helpers shared by all other packages.
package util

import (
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LogLevel controls output verbosity, counted from repeated -v flags.
type LogLevel int

const (
	LogQuiet   LogLevel = 0
	LogNormal  LogLevel = 1
	LogVerbose LogLevel = 2
	LogDebug   LogLevel = 3
)

// ZapLevel maps a verbosity count onto a zap level.  Quiet still
// reports errors.
func (l LogLevel) ZapLevel() zapcore.Level {
	switch {
	case l >= LogDebug:
		return zapcore.DebugLevel
	case l >= LogVerbose:
		return zapcore.InfoLevel
	case l >= LogNormal:
		return zapcore.WarnLevel
	default:
		return zapcore.ErrorLevel
	}
}

// LogOptions configures [NewLogger].
type LogOptions struct {
	Verbosity int
	Format    string    // "console" (default) or "json"
	File      string    // optional rotating log file, always at debug level
	Output    io.Writer // default os.Stderr
}

// NewLogger builds the process logger.  Console output honours the
// verbosity count; the optional file sink records everything.
func NewLogger(opts LogOptions) (*zap.Logger, error) {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05.000")

	var enc zapcore.Encoder
	switch strings.ToLower(opts.Format) {
	case "", "console":
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		enc = zapcore.NewConsoleEncoder(encCfg)
	case "json":
		enc = zapcore.NewJSONEncoder(encCfg)
	default:
		return nil, fmt.Errorf("unknown log format %q (want console or json)", opts.Format)
	}

	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	cores := []zapcore.Core{
		zapcore.NewCore(enc, zapcore.AddSync(out), LogLevel(opts.Verbosity).ZapLevel()),
	}

	if opts.File != "" {
		fileEnc := zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
		sink := zapcore.AddSync(&lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    10,
			MaxBackups: 3,
			MaxAge:     7,
		})
		cores = append(cores, zapcore.NewCore(fileEnc, sink, zapcore.DebugLevel))
	}

	return zap.New(zapcore.NewTee(cores...)), nil
}
