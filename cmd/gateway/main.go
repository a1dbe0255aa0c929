package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/mybeatfi/securegate/internal/config"
	"github.com/mybeatfi/securegate/internal/logger"
	"github.com/mybeatfi/securegate/internal/ratelimit"
	"github.com/mybeatfi/securegate/internal/server"
	"github.com/mybeatfi/securegate/internal/storage"
	"go.uber.org/zap"
)

func main() {
	// Load env if it exists
	godotenv.Load()

	cfg, err := config.Load("config.json")
	if err != nil {
		zap.NewExample().Fatal("Failed to load config", zap.Error(err))
	}

	log := logger.New(cfg.Log.Level, cfg.Log.File)
	defer log.Sync()

	postgres, err := storage.NewPostgres(cfg.Database.DSN, cfg.Database.LogQueries)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer postgres.Close()

	if err := postgres.AutoMigrate(); err != nil {
		log.Fatal("Failed to migrate database", zap.Error(err))
	}

	var redis *storage.RedisClient
	if cfg.RateLimit.Backend == ratelimit.BackendRedis {
		redis, err = storage.NewRedis(cfg.Redis.GetRedisAddr(), cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			log.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		defer redis.Close()

		log.Info("Connected to redis successfully", zap.String("addr", cfg.Redis.GetRedisAddr()))
	}

	srv, err := server.New(cfg, log, redis, postgres)
	if err != nil {
		log.Fatal("Failed to create server", zap.Error(err))
	}

	go func() {
		addr := ":" + cfg.Server.Port
		if err := srv.Run(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited")
}
