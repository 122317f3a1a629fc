/**
 * @description
 * This is the main entry point for the payout-service. It loads configuration, connects
 * to PostgreSQL, RabbitMQ, and Redis, builds the Bridge client and the payout
 * application service, starts the provider status consumer, and serves the internal
 * HTTP API until a shutdown signal arrives.
 *
 * @dependencies
 * - github.com/joho/godotenv: loads a local .env file for development.
 * - github.com/jackc/pgx/v5: PostgreSQL driver for the recipient store.
 * - github.com/redis/go-redis/v9: execute dispatch throttling.
 * - pkg/bridgeclient, pkg/rabbitmq: provider transport and event broker.
 */

package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Deed3Labs/Protocol-Contracts-sub005/internal/api"
	"github.com/Deed3Labs/Protocol-Contracts-sub005/internal/app"
	"github.com/Deed3Labs/Protocol-Contracts-sub005/internal/config"
	"github.com/Deed3Labs/Protocol-Contracts-sub005/internal/metrics"
	"github.com/Deed3Labs/Protocol-Contracts-sub005/internal/store"
	"github.com/Deed3Labs/Protocol-Contracts-sub005/pkg/bridgeclient"
	"github.com/Deed3Labs/Protocol-Contracts-sub005/pkg/rabbitmq"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
)

// providerStatusBindings are the relayed provider webhook routing keys.
var providerStatusBindings = []string{"bridge.transfer.*"}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("level=info component=bootstrap msg=\"no .env file found; using environment\"")
	}

	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"config load failed\" err=%v", err)
	}
	settings := cfg.BridgeSettings()
	if settings.APIKey == "" {
		log.Println("level=warn component=bootstrap msg=\"bridge api key missing; eligibility and execute will fail\" env=BRIDGE_API_KEY")
	}
	if cfg.InternalAPIKey == "" {
		log.Println("level=warn component=bootstrap msg=\"internal api key missing; payout routes are unauthenticated\" env=INTERNAL_API_KEY")
	}
	log.Printf("level=info component=bootstrap msg=\"starting payout-service\" port=%s regions=%v require_onboarding=%t",
		cfg.ServerPort, settings.EnabledRegions(), settings.RequireOnboarding)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"database url parse failed\" err=%v", err)
	}
	poolConfig.MaxConns = 20
	poolConfig.MinConns = 2
	poolConfig.MaxConnLifetime = 30 * time.Minute
	poolConfig.MaxConnIdleTime = 5 * time.Minute
	poolConfig.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol

	dbpool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"database connection failed\" err=%v", err)
	}
	defer dbpool.Close()
	log.Println("level=info component=bootstrap msg=\"database connected\"")

	var publisher rabbitmq.Publisher = &rabbitmq.EventProducerFallback{}
	if cfg.RabbitMQURL != "" {
		producer, err := rabbitmq.NewEventProducer(cfg.RabbitMQURL)
		if err != nil {
			log.Printf("level=warn component=bootstrap msg=\"rabbitmq producer unavailable; using fallback\" err=%v", err)
		} else {
			publisher = producer
			defer producer.Close()
			log.Println("level=info component=bootstrap msg=\"rabbitmq producer connected\"")
		}
	} else {
		log.Println("level=warn component=bootstrap msg=\"rabbitmq url missing; outcome events disabled\" env=RABBITMQ_URL")
	}

	var limiter api.DispatchRateLimiter
	if cfg.RedisURL == "" {
		log.Println("level=warn component=bootstrap msg=\"redis url missing; execute throttling disabled\" env=REDIS_URL")
	} else if redisOptions, parseErr := redis.ParseURL(cfg.RedisURL); parseErr != nil {
		log.Printf("level=warn component=bootstrap msg=\"redis url parse failed; execute throttling disabled\" err=%v", parseErr)
	} else {
		redisClient := redis.NewClient(redisOptions)
		pingCtx, pingCancel := context.WithTimeout(ctx, 3*time.Second)
		pingErr := redisClient.Ping(pingCtx).Err()
		pingCancel()
		if pingErr != nil {
			log.Printf("level=warn component=bootstrap msg=\"redis ping failed; execute throttling disabled\" err=%v", pingErr)
			redisClient.Close()
		} else {
			defer redisClient.Close()
			limiter = app.NewRedisDispatchRateLimiter(redisClient, cfg.RedisRateLimitPrefix)
			log.Println("level=info component=bootstrap msg=\"redis connected\"")
		}
	}

	bridgeClient := bridgeclient.NewClient(settings.BaseURL, settings.APIKey, settings.APIKeyHeader, settings.RequestTimeout)
	bridgeClient.SetObserver(metrics.ObserveProviderRequest)

	recipients := store.NewPostgresRecipientStore(dbpool)
	payoutService := app.NewService(settings, bridgeClient, recipients, publisher, cfg.PayoutEventExchange)

	if cfg.RabbitMQURL != "" {
		consumer, err := rabbitmq.NewConsumer(cfg.RabbitMQURL)
		if err != nil {
			log.Fatalf("level=fatal component=bootstrap msg=\"rabbitmq consumer init failed\" err=%v", err)
		}
		defer consumer.Close()

		statusConsumer := payoutService.ProviderStatusConsumer()
		handler := func(routingKey string, body []byte) bool {
			return statusConsumer.HandleMessage(body)
		}
		if err := consumer.ConsumeWithBindings(cfg.PayoutEventExchange, cfg.ProviderStatusQueue, providerStatusBindings, handler); err != nil {
			log.Fatalf("level=fatal component=bootstrap msg=\"provider status consumer start failed\" err=%v", err)
		}
		log.Printf("level=info component=bootstrap msg=\"provider status consumer started\" queue=%s", cfg.ProviderStatusQueue)
	}

	handler := api.NewHandler(payoutService, limiter, cfg.DispatchRateLimitPerMinute)
	router := api.NewRouter(handler, cfg.InternalAPIKey)

	serverAddr := fmt.Sprintf(":%s", cfg.ServerPort)
	server := &http.Server{
		Addr:              serverAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("level=info component=http msg=\"server listening\" addr=%s", serverAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("level=fatal component=http msg=\"server stopped unexpectedly\" err=%v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Println("level=info component=http msg=\"shutdown started\"")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("level=error component=http msg=\"shutdown failed\" err=%v", err)
	}

	log.Println("level=info component=http msg=\"shutdown complete\"")
}
