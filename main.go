package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"lg/fitplan-api/internal/ack"
	"lg/fitplan-api/internal/config"
	"lg/fitplan-api/internal/lock"
	"lg/fitplan-api/internal/logger"
	"lg/fitplan-api/internal/plan"
	"lg/fitplan-api/internal/store"
)

func main() {
	mode := os.Getenv("LOG_MODE")
	log, err := logger.New(mode)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	config.LoadDotEnv(log)
	cfg, err := config.Load(log)
	if err != nil {
		log.Fatal("Invalid configuration", "error", err)
	}
	if cfg.DBURL == "" {
		log.Fatal("DB_URL is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := store.NewPool(ctx, cfg.DBURL)
	if err != nil {
		log.Fatal("Unable to connect to database", "error", err)
	}
	defer pool.Close()
	log.Info("DB pool ready")

	locker, closeLocker, err := lock.New(cfg.RedisAddr, log)
	if err != nil {
		log.Fatal("Unable to connect to redis", "error", err)
	}
	defer closeLocker()

	db := store.NewPostgres(pool, log)
	gen := plan.NewGenerator(db, locker, log, plan.Config{
		Location:     cfg.PlanTimezone,
		CalorieFloor: cfg.CalorieFloor,
		LockTTL:      cfg.LockTTL,
	})
	acks := ack.NewService(db, log, nil)

	if strings.HasPrefix(strings.ToLower(mode), "prod") {
		gin.SetMode(gin.ReleaseMode)
	}
	router := newRouter(newHandler(db, gen, acks, log), cfg.CORSOrigins)

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: router, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		log.Info("Starting gin app", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Server failed", "error", err)
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Graceful shutdown failed", "error", err)
	}
}
