package logger

import (
	"context"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

var Log = zap.NewNop()

type requestIDKey struct{}

type Options struct {
	Level       string
	Development bool
	// Format "json" ou "console"; vazio segue Development.
	Format string
	// File, quando informado, duplica a saída num arquivo com rotação.
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

func InitWithOptions(opts Options) error {
	var config zap.Config

	if opts.Development {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		config = zap.NewProductionConfig()
		config.OutputPaths = []string{"stdout"}
		config.ErrorOutputPaths = []string{"stderr"}
	}

	config.Encoding = encoding(opts)
	if config.Encoding == "json" {
		config.EncoderConfig.EncodeLevel = zapcore.LowercaseLevelEncoder
	}
	config.Level = zap.NewAtomicLevelAt(parseLevel(opts.Level))

	var buildOpts []zap.Option
	if opts.File != "" {
		buildOpts = append(buildOpts, zap.WrapCore(func(core zapcore.Core) zapcore.Core {
			return zapcore.NewTee(core, fileCore(opts, config.Level))
		}))
	}

	l, err := config.Build(buildOpts...)
	if err != nil {
		return err
	}

	Log = l

	return nil
}

func encoding(opts Options) string {
	switch opts.Format {
	case "json", "console":
		return opts.Format
	}
	if opts.Development {
		return "console"
	}
	return "json"
}

func fileCore(opts Options, level zap.AtomicLevel) zapcore.Core {
	rotator := &lumberjack.Logger{
		Filename:   opts.File,
		MaxSize:    withDefault(opts.MaxSizeMB, 100),
		MaxBackups: withDefault(opts.MaxBackups, 5),
		MaxAge:     withDefault(opts.MaxAgeDays, 30),
		Compress:   true,
		LocalTime:  true,
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig), zapcore.AddSync(rotator), level)
}

func parseLevel(level string) zapcore.Level {
	switch level {
	case "debug":
		return zap.DebugLevel
	case "info":
		return zap.InfoLevel
	case "warn":
		return zap.WarnLevel
	case "error":
		return zap.ErrorLevel
	default:
		return zap.InfoLevel
	}
}

func withDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// ContextWithRequestID guarda o id da requisição para WithContext.
func ContextWithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

func RequestID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// WithContext devolve o logger global com request_id, quando houver.
func WithContext(ctx context.Context) *zap.Logger {
	if requestID := RequestID(ctx); requestID != "" {
		return Log.With(zap.String("request_id", requestID))
	}
	return Log
}

func Close() {
	if Log != nil {
		_ = Log.Sync()
	}
}

func Fatal(msg string, fields ...zap.Field) {
	Log.Fatal(msg, fields...)
	os.Exit(1)
}

func Error(msg string, fields ...zap.Field) {
	Log.Error(msg, fields...)
}

func Warn(msg string, fields ...zap.Field) {
	Log.Warn(msg, fields...)
}

func Info(msg string, fields ...zap.Field) {
	Log.Info(msg, fields...)
}

func Debug(msg string, fields ...zap.Field) {
	Log.Debug(msg, fields...)
}
