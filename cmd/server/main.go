package main

import (
	"log"
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"wishwall/internal/app"
	"wishwall/internal/config"
	"wishwall/internal/ratelimit"
	"wishwall/internal/server"
	"wishwall/internal/util"
	"wishwall/pkg/storage"
	"wishwall/pkg/store"
)

func main() {
	cfg, err := config.Load(config.ConfigPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := util.InitLogger(cfg.LogLevel)

	wishStore, err := store.NewGormStore(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to init store: %v", err)
	}

	objects, err := storage.NewMinioStore(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL, cfg.PublicBaseURL)
	if err != nil {
		log.Fatalf("failed to init object store: %v", err)
	}

	trusted, err := util.NewTrustedProxies(cfg.TrustedProxyCIDRs)
	if err != nil {
		log.Fatalf("failed to parse trusted proxies: %v", err)
	}

	appCore, err := app.New(app.Config{
		Store:    wishStore,
		Objects:  objects,
		Guard:    ratelimit.NewGuard(wishStore, cfg.RateLimitPerMin, cfg.RateLimitPerDay),
		HashSalt: cfg.HashSalt,
	})
	if err != nil {
		log.Fatalf("failed to init app: %v", err)
	}

	var burst *ratelimit.FixedWindowLimiter
	if cfg.BurstPerMinute > 0 {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		burst, err = ratelimit.NewFixedWindowLimiter(client, "", cfg.BurstPerMinute, time.Minute)
		if err != nil {
			log.Fatalf("failed to init rate limiter: %v", err)
		}
	}

	httpServer := server.New(server.Config{
		App:            appCore,
		TrustedProxies: trusted,
		MaxUploadBytes: cfg.MaxUploadBytes,
		BurstLimiter:   burst,
	})

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      httpServer.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	slog.Info("server listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server error", "err", err)
	}
}
