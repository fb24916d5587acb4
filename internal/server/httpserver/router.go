package httpserver

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/yndnr/tokgate/internal/core/domain"
	"github.com/yndnr/tokgate/internal/infra/buildinfo"
	"github.com/yndnr/tokgate/internal/telemetry/logger"
	"github.com/yndnr/tokgate/internal/telemetry/metric"
)

// StatusSource reports connection counters for /status.
type StatusSource interface {
	ConnCount() int
	Accepted() uint64
}

// RouterConfig holds dependencies for the router.
type RouterConfig struct {
	// Gatherer backs /metrics. Nil disables the route.
	Gatherer prometheus.Gatherer
	// Status backs /status. Nil disables the route.
	Status StatusSource
	// Ready reports readiness. Nil means always ready.
	Ready func() error
	// AllowList restricts clients to these networks. Empty allows all.
	AllowList []string
	Logger    logger.Logger
}

// NewRouter creates the HTTP handler with all routes registered.
func NewRouter(cfg RouterConfig) http.Handler {
	log := cfg.Logger
	if log == nil {
		log = logger.Discard()
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.HandleFunc("GET /ready", func(w http.ResponseWriter, _ *http.Request) {
		if cfg.Ready != nil {
			if err := cfg.Ready(); err != nil {
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{
					"status": "not ready",
					"error":  err.Error(),
				})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	})
	if cfg.Gatherer != nil {
		mux.Handle("GET /metrics", metric.Handler(cfg.Gatherer))
	}
	if cfg.Status != nil {
		mux.HandleFunc("GET /status", statusHandler(cfg.Status))
	}
	mux.HandleFunc("GET /loglevel", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, levelBody{Level: logger.GetLevel()})
	})
	mux.HandleFunc("PUT /loglevel", setLevelHandler(log))

	return Chain(mux,
		Recover(log),
		RequestID(),
		AccessLog(log),
		NetworkACL(cfg.AllowList, log),
	)
}

// Status is the /status response body.
type Status struct {
	Connections int    `json:"connections"`
	Accepted    uint64 `json:"accepted"`
	Version     string `json:"version"`
	Commit      string `json:"commit"`
	LogLevel    string `json:"log_level"`
}

func statusHandler(src StatusSource) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		info := buildinfo.Get()
		writeJSON(w, http.StatusOK, Status{
			Connections: src.ConnCount(),
			Accepted:    src.Accepted(),
			Version:     info.Version,
			Commit:      info.Commit,
			LogLevel:    logger.GetLevel(),
		})
	}
}

type levelBody struct {
	Level string `json:"level"`
}

var errBadLevel = domain.NewDomainError("TM-HTTP-4000", "invalid log level")

// setLevelHandler accepts either {"level":"debug"} or a bare level name.
func setLevelHandler(log logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw, err := io.ReadAll(io.LimitReader(r.Body, 256))
		if err != nil {
			writeError(w, http.StatusBadRequest, errBadLevel.WithCause(err))
			return
		}

		var body levelBody
		if err := json.Unmarshal(raw, &body); err != nil {
			body.Level = strings.TrimSpace(string(raw))
		}
		if !logger.SetLevel(body.Level) {
			writeError(w, http.StatusBadRequest, errBadLevel.WithDetails(body.Level))
			return
		}

		log.Info("log level changed", "level", logger.GetLevel(),
			"request_id", GetRequestIDFromContext(r.Context()))
		writeJSON(w, http.StatusOK, levelBody{Level: logger.GetLevel()})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
