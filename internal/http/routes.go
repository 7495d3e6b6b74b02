package http

import (
	"context"
	"time"

	"github.com/Lyamouni-et-Khaled/Rrsellbooster/internal/config"
	"github.com/Lyamouni-et-Khaled/Rrsellbooster/internal/http/handlers"
	"github.com/Lyamouni-et-Khaled/Rrsellbooster/internal/http/middleware"
	"github.com/Lyamouni-et-Khaled/Rrsellbooster/internal/service"
	"github.com/Lyamouni-et-Khaled/Rrsellbooster/internal/store"
	"github.com/Lyamouni-et-Khaled/Rrsellbooster/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	redis "github.com/redis/go-redis/v9"
)

// staffRateLimit is per staff member on the admin group.
const staffRateLimit = 30

type Deps struct {
	Config   *config.Config
	Rules    *config.Rules
	Services *service.Services
	Store    store.Store
	// Redis is optional; rate limits fall back to process memory without it.
	Redis *redis.Client
	// Tokens is nil when the admin API is disabled.
	Tokens *service.StaffTokens
	Feed   *ws.Hub
}

func RegisterRoutes(r *gin.Engine, d Deps) {
	r.Use(middleware.Metrics())

	checks := []handlers.Check{{Name: "database", Ping: d.Store.Ping}}
	if d.Redis != nil {
		checks = append(checks, handlers.Check{
			Name:     "redis",
			Ping:     func(ctx context.Context) error { return d.Redis.Ping(ctx).Err() },
			Optional: true,
		})
	}
	healthHandler := handlers.NewHealthHandler(d.Config.Version, checks...)

	// Health checks (no rate limiting)
	r.GET("/health", healthHandler.Health)
	r.GET("/healthz", healthHandler.Liveness)
	r.GET("/readyz", healthHandler.Readiness)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	if d.Feed != nil {
		r.GET("/ws/feed", ws.Handler(d.Feed, d.Config.AllowedOrigin))
	}

	h := handlers.NewHandler(d.Services, d.Rules, d.Store)

	v1 := r.Group("/api/v1")
	v1.Use(middleware.RateLimit(d.Redis, "api", d.Config.APIRateLimit, d.Config.APIRateWindow, middleware.ByIP))
	{
		v1.GET("/leaderboard", h.Leaderboard)
		v1.GET("/leaderboard/guilds", h.GuildLeaderboard)
		v1.GET("/profile/:id", h.Profile)
		v1.GET("/guilds/:id", h.Guild)
		v1.GET("/events", h.Events)
		v1.GET("/lottery", h.Lottery)
	}

	if d.Tokens == nil {
		return
	}
	admin := v1.Group("/admin")
	admin.Use(
		middleware.StaffAuth(d.Tokens, d.Rules.IsAdmin),
		middleware.RateLimit(d.Redis, "staff", staffRateLimit, time.Minute, middleware.ByStaff),
	)
	{
		admin.GET("/audit", h.AuditLog)
		admin.POST("/xp", h.GrantXP)
		admin.POST("/xp-gate", h.SetXPGate)
		admin.POST("/events", h.StartEvent)
		admin.DELETE("/events/:id", h.StopEvent)
		admin.POST("/purchases", h.RecordPurchase)
		admin.POST("/cashouts/:id/approve", h.ApproveCashout)
		admin.POST("/cashouts/:id/deny", h.DenyCashout)
	}
}
