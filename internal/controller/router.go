package controller

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/unclebandit/squdy-backend/internal/auth"
	"github.com/unclebandit/squdy-backend/internal/handler"
	"github.com/unclebandit/squdy-backend/internal/metrics"
)

type RouterConfig struct {
	Campaigns *CampaignController
	Admin     *AdminController
	Auth      *auth.Verifier
	Health    http.Handler
	Metrics   *metrics.Metrics
	// MetricsPath mounts the metrics handler on the API router when set
	MetricsPath string
	Logger      *zap.Logger
}

func NewRouter(cfg RouterConfig) http.Handler {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(handler.RequestLogger(cfg.Logger))
	r.Use(middleware.Recoverer)
	r.Use(cfg.Metrics.HTTPMiddleware)

	if cfg.Health != nil {
		r.Method(http.MethodGet, "/health", cfg.Health)
	}
	if cfg.MetricsPath != "" && cfg.Metrics != nil {
		r.Method(http.MethodGet, cfg.MetricsPath, cfg.Metrics.Handler())
	}

	r.Route("/api/campaigns", func(r chi.Router) {
		r.Get("/", cfg.Campaigns.ListCampaigns)
		r.Get("/{id}", cfg.Campaigns.GetCampaignDetails)
		r.Get("/{id}/draw", cfg.Campaigns.GetDrawReceipt)

		r.Group(func(r chi.Router) {
			r.Use(cfg.Auth.RequireWallet)
			r.Post("/{id}/participate", cfg.Campaigns.Participate)
			r.Post("/{id}/verify-social", cfg.Campaigns.VerifySocial)
			r.Get("/{id}/my-status", cfg.Campaigns.MyStatus)
			r.Post("/{id}/leave", cfg.Campaigns.Leave)
		})
	})

	r.Route("/api/admin/campaigns", func(r chi.Router) {
		r.Use(cfg.Auth.RequireWallet)
		r.Use(cfg.Auth.RequireAdmin)

		r.Post("/", cfg.Admin.CreateCampaign)
		r.Get("/{id}/participants", cfg.Admin.ListParticipants)
		r.Post("/{id}/activate", cfg.Admin.Activate)
		r.Post("/{id}/pause", cfg.Admin.Pause)
		r.Post("/{id}/resume", cfg.Admin.Resume)
		r.Post("/{id}/close", cfg.Admin.Close)
		r.Post("/{id}/select-winners", cfg.Admin.SelectWinners)
		r.Post("/{id}/burn-tokens", cfg.Admin.BurnTokens)
	})

	return r
}
