package catalog

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dive-atlas/viewport/internal/catalog/geostore"
	"github.com/dive-atlas/viewport/internal/core/config"
	"github.com/dive-atlas/viewport/internal/core/model"
)

var entityRoutes = []model.EntityType{
	model.EntityDiveSites,
	model.EntityDivingCenters,
	model.EntityDives,
	model.EntityDiveTrips,
}

// NewRouter assembles the catalog HTTP surface.
func NewRouter(cfg config.Config, logger *slog.Logger, store *geostore.Store) http.Handler {
	api := NewAPI(logger, store, cfg.PageLimit)

	r := chi.NewRouter()
	r.Use(recoverMiddleware())
	r.Use(loggingMiddleware(logger))
	r.Use(corsMiddleware())

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	r.Group(func(r chi.Router) {
		r.Use(rateLimiter(cfg))
		for _, e := range entityRoutes {
			r.Get("/api/v1/"+string(e), api.HandleList(e))
		}
	})

	return r
}

// rateLimiter answers over-limit clients with 429 and an explicit
// Retry-After hint, which the engine's fetch coordinator honors.
func rateLimiter(cfg config.Config) func(http.Handler) http.Handler {
	retryAfter := strconv.Itoa(int(math.Ceil(cfg.RateLimitWindow.Seconds())))
	return httprate.Limit(
		cfg.RateLimitReqs,
		cfg.RateLimitWindow,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Retry-After", retryAfter)
			writeJSON(w, http.StatusTooManyRequests, errorResponse{Error: "rate limited"})
		}),
	)
}

// Run serves until the context is canceled.
func Run(ctx context.Context, cfg config.Config, logger *slog.Logger, handler http.Handler) error {
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http listen", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return nil
	case err := <-errCh:
		return err
	}
}
