// Package logging wraps zap for the file service and the console.
//
// File service responses are always HTTP 200 and carry their outcome in the
// envelope code, so Middleware logs that code (set by the handler through
// SetCode) instead of the HTTP status.
package logging

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// RequestIDHeader carries the request ID in both directions.
const RequestIDHeader = "X-Request-ID"

type loggerKey struct{}

var global atomic.Pointer[zap.Logger]

func init() {
	global.Store(zap.NewNop())
}

// Config holds logging configuration.
type Config struct {
	Level      string // debug, info, warn, error
	Format     string // json, console
	OutputPath string // stdout, stderr, or file path
}

// Init replaces the global logger. An unknown level falls back to info.
func Init(cfg Config) error {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}

	zc := zap.NewProductionConfig()
	if cfg.Format == "console" {
		zc = zap.NewDevelopmentConfig()
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	if cfg.OutputPath != "" {
		zc.OutputPaths = []string{cfg.OutputPath}
		zc.ErrorOutputPaths = []string{cfg.OutputPath}
	}

	logger, err := zc.Build(
		zap.AddCallerSkip(1),
		zap.AddStacktrace(zapcore.ErrorLevel),
	)
	if err != nil {
		return err
	}
	global.Store(logger)
	return nil
}

// InitNop silences logging.
func InitNop() {
	global.Store(zap.NewNop())
}

// Sync flushes any buffered log entries.
func Sync() error {
	return L().Sync()
}

// L returns the global logger. It discards everything until Init runs.
func L() *zap.Logger {
	return global.Load()
}

// Named returns a child of the global logger for one component.
func Named(name string) *zap.Logger {
	return L().Named(name)
}

// WithContext returns the request logger set by Middleware, or the global
// logger.
func WithContext(ctx context.Context) *zap.Logger {
	if logger, ok := ctx.Value(loggerKey{}).(*zap.Logger); ok {
		return logger
	}
	return L()
}

func Debug(msg string, fields ...zap.Field) { L().Debug(msg, fields...) }
func Info(msg string, fields ...zap.Field)  { L().Info(msg, fields...) }
func Warn(msg string, fields ...zap.Field)  { L().Warn(msg, fields...) }
func Error(msg string, fields ...zap.Field) { L().Error(msg, fields...) }

// Fatal logs and exits.
func Fatal(msg string, fields ...zap.Field) { L().Fatal(msg, fields...) }

// responseWriter captures the envelope code and the body size.
type responseWriter struct {
	http.ResponseWriter
	code int
	size int64
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.size += int64(n)
	return n, err
}

// SetCode records the envelope code of the response being written to w.
// It does nothing when w does not come from Middleware.
func SetCode(w http.ResponseWriter, code int) {
	if rw, ok := w.(*responseWriter); ok {
		rw.code = code
	}
}

// Middleware tags each request with an ID, echoed in the response header,
// and logs its outcome once the handler returns.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}

		logger := L().With(
			zap.String("request_id", id),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
		)
		r = r.WithContext(context.WithValue(r.Context(), loggerKey{}, logger))
		w.Header().Set(RequestIDHeader, id)

		rw := &responseWriter{ResponseWriter: w}
		next.ServeHTTP(rw, r)

		fields := []zap.Field{
			zap.Int64("size", rw.size),
			zap.Duration("duration", time.Since(start)),
		}
		if rw.code != 0 {
			fields = append(fields, zap.Int("code", rw.code))
		}
		switch {
		case rw.code >= 500:
			logger.Error("request failed", fields...)
		case rw.code >= 400:
			logger.Warn("request rejected", fields...)
		default:
			logger.Info("request completed", fields...)
		}
	})
}
