package main // Entry point package

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload" // load .env before config
	"github.com/labstack/echo/v4"

	"github.com/KangDroid/CLMasterServer/internal/config"
	"github.com/KangDroid/CLMasterServer/internal/database"
	"github.com/KangDroid/CLMasterServer/internal/handler"
	"github.com/KangDroid/CLMasterServer/internal/middleware"
	"github.com/KangDroid/CLMasterServer/internal/nodeclient"
	"github.com/KangDroid/CLMasterServer/internal/queue"
	"github.com/KangDroid/CLMasterServer/internal/repository"
	"github.com/KangDroid/CLMasterServer/internal/router"
	"github.com/KangDroid/CLMasterServer/internal/service"
)

func main() {
	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := database.EnsureSchema(ctx, db); err != nil {
		log.Fatalf("ensure schema: %v", err)
	}

	users := repository.NewUserRepo(db)
	nodes := repository.NewNodeRepo(db)
	containers := repository.NewContainerRepo(db)

	tokens := service.NewTokenService(users, time.Duration(cfg.TokenTTLSec)*time.Second)
	client := nodeclient.New(time.Duration(cfg.NodeTimeoutSec) * time.Second)
	orchestrator, err := service.NewOrchestrator(ctx, nodes, containers, tokens, client, queue.NewPublisher())
	if err != nil {
		log.Fatalf("init orchestrator: %v", err)
	}
	auth := service.NewAuthService(users, tokens, cfg.BcryptCost)

	// Background workers: expired-token sweeps and the audit consumer.
	go tokens.RunReaper(ctx, time.Duration(cfg.ReaperSec)*time.Second)
	go func() {
		if err := queue.StartAuditConsumer(); err != nil {
			log.Printf("audit consumer stopped: %v", err)
		}
	}()

	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Printf("redis unavailable, rate limiting disabled")
	}
	limiter := middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb)

	e := echo.New()
	e.HideBanner = true
	router.RegisterRoutes(e,
		handler.NewAuthHandler(auth),
		handler.NewNodeHandler(orchestrator),
		handler.NewContainerHandler(orchestrator),
		limiter)

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)

	go func() {
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			log.Fatal(err)
		}
	}()

	// Block until a shutdown signal arrives, then stop the HTTP server
	// and let the context cancellation wind down the token reaper.
	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
}
