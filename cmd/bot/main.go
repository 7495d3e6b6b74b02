package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/Lyamouni-et-Khaled/Rrsellbooster/internal/ai"
	"github.com/Lyamouni-et-Khaled/Rrsellbooster/internal/bot"
	"github.com/Lyamouni-et-Khaled/Rrsellbooster/internal/cache"
	"github.com/Lyamouni-et-Khaled/Rrsellbooster/internal/config"
	"github.com/Lyamouni-et-Khaled/Rrsellbooster/internal/db"
	httpServer "github.com/Lyamouni-et-Khaled/Rrsellbooster/internal/http"
	"github.com/Lyamouni-et-Khaled/Rrsellbooster/internal/ledger"
	"github.com/Lyamouni-et-Khaled/Rrsellbooster/internal/logger"
	"github.com/Lyamouni-et-Khaled/Rrsellbooster/internal/repository"
	"github.com/Lyamouni-et-Khaled/Rrsellbooster/internal/scheduler"
	"github.com/Lyamouni-et-Khaled/Rrsellbooster/internal/service"
	"github.com/Lyamouni-et-Khaled/Rrsellbooster/internal/store"
	"github.com/Lyamouni-et-Khaled/Rrsellbooster/internal/ws"

	"github.com/gin-gonic/gin"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg := config.Load()
	logger.Init(cfg.LogLevel, cfg.IsProduction())

	rules, err := config.LoadRules(cfg.RulesPath)
	if err != nil {
		logger.Fatal("invalid rules", "path", cfg.RulesPath, "error", err)
	}
	catalog, err := config.LoadCatalog(cfg.DataDir)
	if err != nil {
		logger.Fatal("invalid catalog", "dir", cfg.DataDir, "error", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var st store.Store
	switch cfg.StoreDriver {
	case config.StoreDriverMemory:
		logger.Warn("using in-memory store, data is lost on exit")
		st = store.NewMemory()
	default:
		st = repository.NewPostgres(db.Connect(cfg.DatabaseURL))
	}
	defer st.Close()

	rdb := cache.Connect(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if rdb != nil {
		defer rdb.Close()
	}

	l, err := ledger.New(st, ledger.Options{
		MaxLogSize:    rules.TransactionLog.MaxUserLogSize,
		MissionsOptIn: rules.Missions.OptInDefault,
		NodeID:        cfg.NodeID,
	})
	if err != nil {
		logger.Fatal("ledger init failed", "error", err)
	}

	session, err := bot.NewSession(cfg.DiscordToken)
	if err != nil {
		logger.Fatal("discord session", "error", err)
	}
	platform := bot.NewPlatform(session, cfg.DiscordGuildID)
	feed := ws.NewHub()

	deps := service.Deps{
		Store:    st,
		Ledger:   l,
		Rules:    rules,
		Catalog:  catalog,
		Platform: platform,
		Feed:     feed,
		Cooldown: cache.NewCooldown(rdb, "xp_cd:"),
		Lock:     cache.NewLock(rdb, "lock:"),
	}
	if cfg.GeminiAPIKey != "" {
		gen, err := ai.NewGemini(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			logger.Error("gemini unavailable, AI features disabled", "error", err)
		} else {
			deps.AI = gen
		}
	}
	svc := service.New(deps)

	var tokens *service.StaffTokens
	if cfg.APIEnabled {
		tokens, err = service.NewStaffTokens(cfg.JWTSecret, 0)
		if err != nil {
			logger.Fatal("staff tokens", "error", err)
		}
	}

	sched := scheduler.New()
	if err := scheduler.Register(sched, svc, rules.Schedule); err != nil {
		logger.Fatal("scheduler setup", "error", err)
	}

	b := bot.New(session, platform, svc, bot.Options{
		GuildID: cfg.DiscordGuildID,
		Rules:   rules,
		Tokens:  tokens,
		OnReady: sched.Start,
	})
	if err := b.Start(ctx); err != nil {
		logger.Fatal("bot start failed", "error", err)
	}

	var srv *http.Server
	if cfg.APIEnabled {
		if cfg.IsProduction() {
			gin.SetMode(gin.ReleaseMode)
		}
		r := gin.New()
		r.Use(gin.Recovery())
		httpServer.RegisterRoutes(r, httpServer.Deps{
			Config:   cfg,
			Rules:    rules,
			Services: svc,
			Store:    st,
			Redis:    rdb,
			Tokens:   tokens,
			Feed:     feed,
		})
		srv = &http.Server{
			Addr:              cfg.HTTPAddr,
			Handler:           r,
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			logger.Info("http server started", "addr", cfg.HTTPAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("http server failed", "error", err)
				stop()
			}
		}()
	}

	<-ctx.Done()
	logger.Info("shutting down...")

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("http server forced to shutdown", "error", err)
		}
		cancel()
	}
	feed.Close()
	if stuck := sched.Stop(shutdownTimeout); len(stuck) > 0 {
		logger.Warn("jobs still running at shutdown", "jobs", stuck)
	}
	b.Stop()

	logger.Info("exited")
}
