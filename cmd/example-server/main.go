package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"admission-gateway/middleware/admission"
	"admission-gateway/middleware/admission/application"
	"admission-gateway/middleware/admission/domain"
	"admission-gateway/middleware/admission/infra"
	"admission-gateway/middleware/requestid"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

const writeTimeout = 60 * time.Second

func main() {
	logger, _ := zap.NewDevelopment()
	defer func() { _ = logger.Sync() }()

	if err := run(logger); err != nil {
		logger.Fatal("example server failed", zap.Error(err))
	}
}

// Exemplo: o middleware injetado diretamente no webserver (sem proxy),
// com as rotas do backend de chat.
func run(logger *zap.Logger) error {
	redisURL := getenvDefault("REDIS_URL", "redis://localhost:6379/0")
	rdb, err := infra.NewRedisClient(infra.RedisOptions{URL: redisURL, PoolSize: 10})
	if err != nil {
		return err
	}
	defer func() { _ = rdb.Close() }()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	throttle := application.DefaultThrottlePolicy()
	throttle.MaxDelay = 30 * time.Second

	r := chi.NewRouter()
	r.Use(requestid.Middleware)
	r.Use(chimw.Recoverer)
	r.Use(admission.Middleware(admission.Options{
		Cooldown:           infra.NewRedisCooldownStore(rdb, "admission"),
		Counters:           infra.NewRedisCounterStore(rdb, "admission"),
		Window:             infra.NewRedisWindowLimiter(rdb, "admission"),
		Quotas:             domain.DefaultQuotaTable(),
		Stats:              infra.NewRedisStatsStore(rdb),
		// Identidade por IP (RemoteAddr). CLIENT_HEADER e TRUST_XFF só devem ser
		// ligados atrás de uma camada de auth ou proxy confiável: sem isso o
		// cliente troca o header e ganha uma chave nova a cada requisição.
		ClientHeader:       os.Getenv("CLIENT_HEADER"),
		TrustXForwardedFor: os.Getenv("TRUST_XFF") == "true",
		RouteFn:            admission.ChiRouteResolver(r),
		Throttle:           throttle,
		WriteBudget:        writeTimeout,
		Logger:             logger.Named("admission"),
	}))
	r.Use(admission.ConcurrencyMiddleware(admission.ConcurrencyOptions{Max: 50, Logger: logger}))

	r.Post("/api/v1/chat", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Message string `json:"message"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Message == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "message is required"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"reply": "echo: " + req.Message})
	})
	r.Post("/api/v1/generate", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
	})
	r.Get("/api/v1/resource", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"message": "This is a rate-limited resource"})
	})
	r.Get("/api/v1/users/me/items/protected", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"items": []string{"a", "b"}})
	})
	r.Get("/api/v1/users/{id}", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"id": chi.URLParam(r, "id")})
	})

	addr := getenvDefault("LISTEN_ADDR", ":8081")
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       90 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("example server listening", zap.String("addr", addr), zap.String("redis", redisURL))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func getenvDefault(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
