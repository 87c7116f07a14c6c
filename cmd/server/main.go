package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	"nameclaim/internal/operation"
	"nameclaim/internal/order"
	"nameclaim/internal/order/events"
	"nameclaim/internal/order/metrics"
	"nameclaim/internal/payment"
	"nameclaim/internal/platform/config"
	"nameclaim/internal/platform/httpserver"
	"nameclaim/internal/platform/logger"
	platformredis "nameclaim/internal/platform/redis"
	"nameclaim/internal/registrar"
	httptransport "nameclaim/internal/transport/http"
	"nameclaim/internal/webhook"
)

// main wires dependencies and owns the server lifecycle. Business logic
// lives in the internal service packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	// Operation store: postgres when configured, in-memory otherwise.
	var opStore operation.Store
	if cfg.PostgresURL != "" {
		db, err := sql.Open("postgres", cfg.PostgresURL)
		if err != nil {
			log.Error("failed to open postgres", "error", err)
			os.Exit(1)
		}
		defer db.Close()

		pg := operation.NewPostgres(db)
		if err := pg.Migrate(context.Background()); err != nil {
			log.Error("operation store migration failed", "error", err)
			os.Exit(1)
		}
		opStore = pg
		log.Info("using postgres operation store")
	} else {
		opStore = operation.NewInMemoryStore()
		log.Warn("using in-memory operation store; records are lost on restart")
	}

	// Webhook dedupe: shared via Redis when configured.
	var deduper webhook.Deduper = webhook.NewMemoryDeduper(webhook.DefaultRetention)
	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		log.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
		deduper = webhook.NewRedisDeduper(redisClient.Client, webhook.DefaultRetention)
		log.Info("using redis webhook dedupe")
	}

	// Order event stream is optional.
	var publisher events.Publisher = events.NoopPublisher{}
	if len(cfg.KafkaBrokers) > 0 {
		kp, err := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, log)
		if err != nil {
			log.Error("failed to connect to kafka", "error", err)
			os.Exit(1)
		}
		defer kp.Close()
		publisher = kp
		log.Info("publishing order events", "topic", cfg.KafkaTopic)
	}

	registrarClient := registrar.NewHTTPClient(cfg.Registrar.BaseURL, cfg.Registrar.APIKey, cfg.Registrar.OwnerAddress)
	orders := order.NewService(registrarClient, opStore,
		order.WithLogger(log),
		order.WithMetrics(metrics.New()),
		order.WithEvents(publisher),
	)

	payments := payment.NewService(
		payment.NewHTTPClient(cfg.Payment.BaseURL, cfg.Payment.SecretKey),
		payment.NewInMemoryIntentStore(),
		cfg.CheckoutWindow,
		cfg.Payment.WebhookSecret,
		payment.WithLogger(log),
	)

	handler := httptransport.NewHandler(orders, payments, deduper, cfg.Registrar.APIKey, log)
	router := httptransport.NewRouter(handler, httptransport.RouterConfig{AdminToken: cfg.AdminToken}, log)
	srv := httpserver.New(cfg.Addr, router)

	go func() {
		log.Info("starting nameclaim", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}
