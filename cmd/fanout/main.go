package main

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/modelibr/modelibr/common/bootstrap"
	"github.com/modelibr/modelibr/common/server"
	"github.com/redis/go-redis/v9"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Fanout needs neither Postgres nor the storage volume
	components, err := bootstrap.Setup(ctx, "fanout",
		bootstrap.WithoutDB(),
		bootstrap.WithoutStorage(),
		bootstrap.WithoutCache(),
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to setup service: %v\n", err)
		os.Exit(1)
	}
	defer components.Shutdown(ctx)

	cfg := components.Config
	log := components.Logger

	// Connect to Redis
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Error("failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	log.Info("connected to Redis", "addr", cfg.RedisAddr())

	// Create Hub (connection manager)
	hub := NewHub(log)
	go hub.Run()

	// Create Redis subscriber
	subscriber := NewRedisSubscriber(redisClient, hub, log)
	go func() {
		if err := subscriber.Start(ctx); err != nil {
			log.Error("redis subscriber failed", "error", err)
			os.Exit(1)
		}
	}()

	// Setup HTTP routes
	wsServer := NewServer(hub, log)
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", wsServer.HandleWebSocket)
	mux.HandleFunc("/stats", wsServer.HandleStats)
	mux.HandleFunc("/health", server.HealthHandler())

	// Start with graceful shutdown. WebSocket connections are long-lived, so
	// the server carries no read/write timeouts.
	srv := server.NewLongLived("fanout", cfg.Service.Port, mux, log)
	if err := srv.Start(); err != nil {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
}
