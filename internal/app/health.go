package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/m3rciful/cxbot/core/logger"
)

// healthServer answers container liveness probes. It exposes nothing about
// the bot beyond "the process is up".
type healthServer struct {
	srv *http.Server
}

func startHealth(listen string) *healthServer {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	srv := &http.Server{
		Addr:              listen,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.L.With("component", "app").Error("health listener failed",
				slog.String("event", "health.listen.failed"),
				slog.String("err", err.Error()),
			)
		}
	}()
	logger.L.With("component", "app").Info("health listener started",
		slog.String("event", "health.listen"),
		slog.String("addr", listen),
	)
	return &healthServer{srv: srv}
}

func (h *healthServer) Close(ctx context.Context) {
	shutdownCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	_ = h.srv.Shutdown(shutdownCtx)
}
