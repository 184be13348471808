// Package api exposes dispatch commands over HTTP.
package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/kilianp07/cad/core/broadcast"
	"github.com/kilianp07/cad/core/dispatch"
	"github.com/kilianp07/cad/core/logger"
)

// Config for the HTTP listener.
type Config struct {
	Addr     string `json:"addr"`
	BasePath string `json:"base_path"`
	// ShutdownTimeoutSeconds bounds graceful shutdown.
	ShutdownTimeoutSeconds int `json:"shutdown_timeout_seconds"`
}

// SetDefaults fills unset fields.
func (c *Config) SetDefaults() {
	if c.Addr == "" {
		c.Addr = ":8080"
	}
	if c.BasePath == "" {
		c.BasePath = "/v1"
	}
	if !strings.HasPrefix(c.BasePath, "/") {
		c.BasePath = "/" + c.BasePath
	}
	if c.ShutdownTimeoutSeconds <= 0 {
		c.ShutdownTimeoutSeconds = 10
	}
}

// Options carries the handler dependencies. Gateway and Metrics are mounted
// on /ws and /metrics when set.
type Options struct {
	Manager  *dispatch.Manager
	Presence *broadcast.Presence
	Gateway  http.Handler
	Metrics  http.Handler
	Logger   logger.Logger
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"not_found"`
	Message string         `json:"message" example:"unit not found"`
	Details map[string]any `json:"details,omitempty"`
}

// apiError is the error envelope of every failed request.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

// New returns the HTTP handler.
func New(cfg Config, opts Options) (http.Handler, error) {
	if opts.Manager == nil {
		return nil, errors.New("api: nil manager")
	}
	cfg.SetDefaults()
	log := logger.OrNop(opts.Logger)

	huma.DefaultArrayNullable = false
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		var details map[string]any
		if len(errs) > 0 {
			details = map[string]any{"errors": errs}
		}
		return newAPIError(status, "", msg, details)
	}

	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	if opts.Gateway != nil {
		router.Handle("/ws", opts.Gateway)
	}
	if opts.Metrics != nil {
		router.Handle("/metrics", opts.Metrics)
	}

	hcfg := huma.DefaultConfig("CAD Dispatch API", "1.0.0")
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, cfg.BasePath)

	h := &handlers{mgr: opts.Manager, presence: opts.Presence, log: log}
	registerHealth(group, h)
	registerCalls(group, h)
	registerUnits(group, h)
	registerJournal(group, h)
	return router, nil
}

type handlers struct {
	mgr      *dispatch.Manager
	presence *broadcast.Presence
	log      logger.Logger
}

func newAPIError(status int, code, message string, details map[string]any) huma.StatusError {
	if code == "" {
		code = defaultCodeForStatus(status)
	}
	return &apiError{status: status, Body: apiErrorBody{Code: code, Message: message, Details: details}}
}

// handleError maps classified dispatch errors to HTTP statuses.
func (h *handlers) handleError(err error) huma.StatusError {
	switch {
	case err == nil:
		return nil
	case dispatch.IsInvalidTransition(err):
		return newAPIError(http.StatusConflict, "invalid_transition", err.Error(), nil)
	case dispatch.IsNotFound(err):
		return newAPIError(http.StatusNotFound, "not_found", err.Error(), nil)
	default:
		h.log.Errorf("request failed: %v", err)
		return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", nil)
	}
}

// errorCode classifies a per-unit failure the same way handleError does.
func errorCode(err error) string {
	switch {
	case dispatch.IsInvalidTransition(err):
		return "invalid_transition"
	case dispatch.IsNotFound(err):
		return "not_found"
	default:
		return "internal_error"
	}
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusUnprocessableEntity:
		return "validation_failed"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

type healthBody struct {
	Status      string `json:"status" example:"ok"`
	Dispatchers int    `json:"dispatchers"`
}

func registerHealth(api huma.API, h *handlers) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body healthBody `json:"body"`
	}, error) {
		out := &struct {
			Body healthBody `json:"body"`
		}{Body: healthBody{Status: "ok"}}
		if h.presence != nil {
			out.Body.Dispatchers = h.presence.Count()
		}
		return out, nil
	})
}
