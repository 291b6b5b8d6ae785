package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os/signal"
	"syscall"
	"time"

	"admission-gateway/middleware/admission"
	"admission-gateway/middleware/requestid"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the admission-control reverse proxy",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()
			return a.serve(ctx)
		},
	}
}

func (a *app) serve(ctx context.Context) error {
	cfg := a.cfg
	if err := cfg.ValidateServe(); err != nil {
		return err
	}

	logger, err := newLogger(cfg.Logging)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	target, _ := url.Parse(cfg.Upstream.URL)

	rdb, err := newRedis(cfg.Store)
	if err != nil {
		return err
	}
	defer func() { _ = rdb.Close() }()

	// o gateway sobe mesmo com o store fora; a política de falha decide
	pingCtx, pingCancel := context.WithTimeout(ctx, 2*time.Second)
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		logger.Warn("admission store unreachable at startup",
			zap.String("failure_policy", cfg.Admission.FailurePolicy),
			zap.Error(err),
		)
	}
	pingCancel()

	handler := a.newHandler(ctx, target, rdb, logger)

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           handler,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("gateway listening",
		zap.String("addr", cfg.Server.Addr),
		zap.String("upstream", target.String()),
		zap.Bool("admission", cfg.Admission.Enabled),
		zap.String("failure_policy", cfg.Admission.FailurePolicy),
		zap.String("arm_policy", cfg.Admission.ArmPolicy),
		zap.Duration("penalty", cfg.Cooldown.Penalty),
		zap.Int("routes", len(cfg.Routes)),
		zap.Int("concurrency_max", cfg.Concurrency.Max),
	)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	logger.Info("gateway stopped")
	return nil
}

// newHandler monta: request-id -> recover -> admissão -> concorrência -> /healthz | proxy.
// Nenhuma rota fica fora da admissão, nem o /healthz do próprio gateway.
func (a *app) newHandler(ctx context.Context, target *url.URL, rdb redis.UniversalClient, logger *zap.Logger) http.Handler {
	cfg := a.cfg

	proxy := httputil.NewSingleHostReverseProxy(target)
	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		logger.Warn("proxy error",
			zap.String("path", r.URL.Path),
			zap.String("request_id", requestid.FromContext(r.Context())),
			zap.Error(err),
		)
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "bad gateway"})
	}

	r := chi.NewRouter()
	r.Use(requestid.Middleware)
	r.Use(chimw.Recoverer)

	r.Group(func(g chi.Router) {
		if cfg.Admission.Enabled {
			opts, local := admissionOptions(cfg, rdb, logger)
			if local != nil {
				local.StartJanitor(ctx)
			}
			g.Use(admission.Middleware(opts))
		}
		g.Use(admission.ConcurrencyMiddleware(admission.ConcurrencyOptions{
			Max:            cfg.Concurrency.Max,
			AcquireTimeout: cfg.Concurrency.AcquireTimeout,
			AllowOrigin:    cfg.Admission.AllowOrigin,
			Logger:         logger.Named("concurrency"),
		}))
		g.Get("/healthz", healthHandler(rdb, cfg.Store.Timeout))
		g.Handle("/*", proxy)
	})
	return r
}

func healthHandler(rdb redis.UniversalClient, timeout time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()
		if err := rdb.Ping(ctx).Err(); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded", "store": "unavailable"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "store": "ok"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
