package logger

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/google/uuid"
)

type LogLevel string

const (
	LevelDebug LogLevel = "debug"
	LevelInfo  LogLevel = "info"
	LevelWarn  LogLevel = "warn"
	LevelError LogLevel = "error"
)

type Config struct {
	Level        LogLevel
	Format       string // "json" or "text"
	Output       io.Writer
	EnableCaller bool
	Component    string
}

// Logger wraps slog.Logger with component scoping and error caller info.
type Logger struct {
	*slog.Logger
	config Config
}

// DefaultConfig is info-level JSON to stdout with caller info on errors.
func DefaultConfig() Config {
	return Config{
		Level:        LevelInfo,
		Format:       "json",
		Output:       os.Stdout,
		EnableCaller: true,
	}
}

// ParseLevel maps a level name to LogLevel, defaulting to info.
func ParseLevel(s string) LogLevel {
	switch LogLevel(strings.ToLower(strings.TrimSpace(s))) {
	case LevelDebug:
		return LevelDebug
	case LevelWarn:
		return LevelWarn
	case LevelError:
		return LevelError
	}
	return LevelInfo
}

func New(config Config) *Logger {
	var level slog.Level
	switch config.Level {
	case LevelDebug:
		level = slog.LevelDebug
	case LevelWarn:
		level = slog.LevelWarn
	case LevelError:
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	output := config.Output
	if output == nil {
		output = os.Stdout
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if config.Format == "text" {
		handler = slog.NewTextHandler(output, opts)
	} else {
		handler = slog.NewJSONHandler(output, opts)
	}

	l := slog.New(handler)
	if config.Component != "" {
		l = l.With("component", config.Component)
	}

	return &Logger{Logger: l, config: config}
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return New(Config{Output: io.Discard, Level: LevelError})
}

func (l *Logger) WithContext(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...), config: l.config}
}

func (l *Logger) WithComponent(component string) *Logger {
	return l.WithContext("component", component)
}

// Error logs at error level, adding the caller's file:line when enabled.
func (l *Logger) Error(msg string, args ...any) {
	if l.config.EnableCaller {
		if _, file, line, ok := runtime.Caller(1); ok {
			args = append(args, "caller", fmt.Sprintf("%s:%d", filepath.Base(file), line))
		}
	}
	l.Logger.Error(msg, args...)
}

// HTTPMiddleware logs one line per request with status and latency.
func (l *Logger) HTTPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", requestID)

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)

		args := []any{
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"status_code", rw.statusCode,
			"duration_ms", time.Since(start).Milliseconds(),
		}
		switch {
		case rw.statusCode >= 500:
			l.Logger.Error("HTTP request completed", args...)
		case rw.statusCode >= 400:
			l.Warn("HTTP request completed", args...)
		default:
			l.Info("HTTP request completed", args...)
		}
	})
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(statusCode int) {
	rw.statusCode = statusCode
	rw.ResponseWriter.WriteHeader(statusCode)
}
