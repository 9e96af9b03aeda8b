package logging

import (
	"log/slog"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/exp/zapslog"
	"go.uber.org/zap/zapcore"
)

type Options struct {
	Level   string // debug|info|warn|error
	Format  string // json|console
	Service string
}

// New builds the process logger: a slog front-end on top of a zap core.
// The returned sync func flushes buffered entries and should be deferred by main.
func New(opts Options) (*slog.Logger, func() error) {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "time"
	encCfg.MessageKey = "msg"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var enc zapcore.Encoder
	if strings.EqualFold(opts.Format, "console") {
		encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		enc = zapcore.NewConsoleEncoder(encCfg)
	} else {
		enc = zapcore.NewJSONEncoder(encCfg)
	}

	core := zapcore.NewCore(enc, zapcore.Lock(zapcore.AddSync(stdout)), zap.NewAtomicLevelAt(parseLevel(opts.Level)))

	l := slog.New(zapslog.NewHandler(core, zapslog.WithCaller(false)))
	if opts.Service != "" {
		l = l.With(slog.String("service", opts.Service))
	}
	return l, core.Sync
}

func parseLevel(s string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
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
