package metrics

import (
	"evcp/internal/config"
	"fmt"
	"io"
	"net/http"

	"github.com/julienschmidt/httprouter"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HealthFunc reports whether the node is connected and registered
type HealthFunc func() (healthy bool, status string)

// StatusFunc writes a human readable state dump
type StatusFunc func(w io.Writer)

// NewRouter serves /metrics, /health and, with a status writer, /status
func NewRouter(health HealthFunc, status StatusFunc) *httprouter.Router {
	router := httprouter.New()
	router.Handler(http.MethodGet, "/metrics", promhttp.Handler())
	router.GET("/health", func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		healthy, status := true, "ok"
		if health != nil {
			healthy, status = health()
		}
		if !healthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_, _ = fmt.Fprintln(w, status)
	})
	if status != nil {
		router.GET("/status", func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			status(w)
		})
	}
	return router
}

// NewServer returns the metrics listener, nil when metrics are disabled
func NewServer(conf *config.Config, health HealthFunc, status StatusFunc) *http.Server {
	if !conf.Metrics.Enabled {
		return nil
	}
	return &http.Server{
		Addr:    conf.Metrics.BindIP + ":" + conf.Metrics.Port,
		Handler: NewRouter(health, status),
	}
}
