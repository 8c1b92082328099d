// Package twincore provides the base HTTP server, configuration, middleware
// chain and response helpers the PayPal twin is built on.
package twincore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

// Twin is the base server for a twin. It wraps a chi router with common
// middleware and provides lifecycle management.
type Twin struct {
	Config *Config
	Router *chi.Mux
	Logger *slog.Logger
	mw     *Middleware
}

// NewLogger returns the JSON logger twins write to stdout.
func NewLogger(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
}

// New creates a new Twin with the given config.
func New(cfg *Config) *Twin {
	return NewWithLogger(cfg, NewLogger(cfg.Verbose))
}

// NewWithLogger creates a new Twin that logs to logger.
func NewWithLogger(cfg *Config, logger *slog.Logger) *Twin {
	r := chi.NewRouter()
	mw := NewMiddleware(cfg, logger)

	// Latency and failure middleware are always mounted so runtime config
	// updates take effect immediately; both check the config before acting.
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(mw.CORS)
	r.Use(mw.RequestLog)
	r.Use(mw.LatencyInjection)
	r.Use(mw.RandomFailure)

	return &Twin{
		Config: cfg,
		Router: r,
		Logger: logger,
		mw:     mw,
	}
}

// Middleware returns the middleware instance for external access (e.g., fault injection).
func (t *Twin) Middleware() *Middleware {
	return t.mw
}

// GetConfig returns the current runtime configuration as a map.
// This implements the admin.ConfigProvider interface.
func (t *Twin) GetConfig() map[string]any {
	cfg := t.mw.config()
	return map[string]any{
		"name":        cfg.Name,
		"port":        cfg.Port,
		"latency":     cfg.Latency.String(),
		"fail_rate":   cfg.FailRate,
		"webhook_url": cfg.WebhookURL,
		"verbose":     cfg.Verbose,
	}
}

// WebhookURL returns the current webhook target.
func (t *Twin) WebhookURL() string {
	return t.mw.config().WebhookURL
}

// UpdateConfig updates runtime configuration fields from a map.
// This implements the admin.ConfigProvider interface.
// Only latency, fail_rate, verbose, and webhook_url can be updated at runtime.
// All fields are validated before any are applied.
func (t *Twin) UpdateConfig(updates map[string]any) error {
	type configUpdate struct {
		latency    *time.Duration
		failRate   *float64
		verbose    *bool
		webhookURL *string
	}
	var cu configUpdate

	for k, v := range updates {
		switch k {
		case "latency":
			s, ok := v.(string)
			if !ok {
				return &ConfigError{Field: k, Err: errors.New("must be a duration string")}
			}
			d, err := time.ParseDuration(s)
			if err != nil {
				return &ConfigError{Field: k, Err: fmt.Errorf("invalid duration: %w", err)}
			}
			if d < 0 {
				return &ConfigError{Field: k, Err: errors.New("must not be negative")}
			}
			cu.latency = &d
		case "fail_rate":
			f, ok := v.(float64)
			if !ok {
				return &ConfigError{Field: k, Err: errors.New("must be a number")}
			}
			if f < 0 || f > 1 {
				return &ConfigError{Field: k, Err: errors.New("must be between 0.0 and 1.0")}
			}
			cu.failRate = &f
		case "verbose":
			b, ok := v.(bool)
			if !ok {
				return &ConfigError{Field: k, Err: errors.New("must be a boolean")}
			}
			cu.verbose = &b
		case "webhook_url":
			s, ok := v.(string)
			if !ok {
				return &ConfigError{Field: k, Err: errors.New("must be a string")}
			}
			if err := configValidator.Var(s, "omitempty,url"); err != nil {
				return &ConfigError{Field: k, Err: errors.New("must be an absolute URL")}
			}
			cu.webhookURL = &s
		case "name", "port":
			return &ConfigError{Field: k, Err: errors.New("cannot be changed at runtime")}
		default:
			return &ConfigError{Field: k, Err: errors.New("unknown config key")}
		}
	}

	t.mw.mu.Lock()
	defer t.mw.mu.Unlock()
	if cu.latency != nil {
		t.Config.Latency = *cu.latency
	}
	if cu.failRate != nil {
		t.Config.FailRate = *cu.failRate
	}
	if cu.verbose != nil {
		t.Config.Verbose = *cu.verbose
	}
	if cu.webhookURL != nil {
		t.Config.WebhookURL = *cu.webhookURL
	}
	return nil
}

// Serve starts the HTTP server and blocks until ctx is cancelled, then shuts
// down gracefully.
func (t *Twin) Serve(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", t.Config.Port)

	srv := &http.Server{
		Addr:         addr,
		Handler:      t.Router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		t.Logger.Info("starting twin", "name", t.Config.Name, "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen on %s: %w", addr, err)
		}
		return nil
	case <-ctx.Done():
	}

	t.Logger.Info("shutting down twin", "name", t.Config.Name)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// ServeHTTP implements http.Handler so Twin can be used directly in tests.
func (t *Twin) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	t.Router.ServeHTTP(w, r)
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		json.NewEncoder(w).Encode(v)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]any{
		"error": map[string]any{
			"message": message,
			"type":    http.StatusText(status),
			"code":    status,
		},
	})
}

// PayPalError writes an error response in PayPal's REST error format. The
// request ID assigned by the router doubles as the debug_id.
func PayPalError(w http.ResponseWriter, r *http.Request, status int, message string) {
	JSON(w, status, map[string]any{
		"name":     errorName(status),
		"message":  message,
		"debug_id": chimw.GetReqID(r.Context()),
	})
}

// errorName turns a status code into a PayPal style error name,
// e.g. 503 -> SERVICE_UNAVAILABLE.
func errorName(status int) string {
	text := http.StatusText(status)
	if text == "" {
		return "UNKNOWN_ERROR"
	}
	return strings.ToUpper(strings.ReplaceAll(text, " ", "_"))
}
