package metrics

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/Adithya-Monish-Kumar-K/scripture-index/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/scripture-index/pkg/middleware"
)

// StartServer serves /metrics, and the health endpoints when checker is set,
// until the returned shutdown function is called. Requests are counted in
// m.HTTPRequests when m is non-nil.
func StartServer(port int, m *Metrics, checker *health.Checker) (shutdown func(context.Context) error) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	if checker != nil {
		mux.HandleFunc("/health/live", checker.LiveHandler())
		mux.Handle("/health/ready", middleware.Timeout(8*time.Second)(checker.ReadyHandler()))
	}
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprintf(w, `<html><body><h1>Scripture Indexer Metrics</h1><p><a href="/metrics">/metrics</a></p></body></html>`)
	})

	var handler http.Handler = mux
	if m != nil {
		handler = middleware.Chain(mux, middleware.Count(m.HTTPRequests))
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      handler,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("metrics server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("metrics server error", "error", err)
		}
	}()

	return server.Shutdown
}
