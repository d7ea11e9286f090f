package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"sentinelzap/internal/config"
	"sentinelzap/internal/usecase"
)

// RateLimiter is the slice of the redis limiter the server needs.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// Server exposes the rotation, chip and warm-up operations over REST.
type Server struct {
	cfg     config.APIConfig
	rot     usecase.RotationUseCase
	warmup  usecase.WarmupUseCase
	session usecase.SessionUseCase
	limiter RateLimiter
	logger  *zerolog.Logger
}

func NewServer(
	cfg config.APIConfig,
	rot usecase.RotationUseCase,
	warmup usecase.WarmupUseCase,
	session usecase.SessionUseCase,
	limiter RateLimiter,
	logger *zerolog.Logger,
) *Server {
	return &Server{cfg: cfg, rot: rot, warmup: warmup, session: session, limiter: limiter, logger: logger}
}

// Router builds the full route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(APIKey(s.cfg.Key))

		r.Post("/messages/send", s.handleSendMessage)
		r.Get("/status", s.handleStatus)

		r.Route("/chips", func(r chi.Router) {
			r.Get("/", s.handleListChips)
			r.Post("/", s.handleCreateChip)
			r.Delete("/{chipID}", s.handleRemoveChip)
			r.Post("/{chipID}/connect", s.handleConnectChip)
			r.Post("/{chipID}/disconnect", s.handleDisconnectChip)
			r.Get("/{chipID}/qr", s.handleGetQR)
		})

		r.Route("/warmup", func(r chi.Router) {
			r.Get("/status", s.handleWarmupStatus)
			r.Get("/settings", s.handleGetWarmupSettings)
			r.Put("/settings", s.handleUpdateWarmupSettings)
			r.Post("/send-now", s.handleWarmupSendNow)
			r.Post("/{chipID}/start", s.handleWarmupStart)
			r.Post("/{chipID}/stop", s.handleWarmupStop)
			r.Get("/{chipID}/progress", s.handleWarmupProgress)
			r.Get("/{chipID}/history", s.handleWarmupHistory)
		})
	})

	return Chain(r, TraceID(s.logger), RequestLog(s.logger), Recover(s.logger), Timeout(30*time.Second))
}
