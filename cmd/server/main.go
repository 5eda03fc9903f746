// Entry point: wires configuration, storage, the gateway client, the mail
// queue and the HTTP layer together and starts the server.
package main

import (
	"os"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/adiprasetio/marketplace-payments/internal/cache"
	"github.com/adiprasetio/marketplace-payments/internal/config"
	"github.com/adiprasetio/marketplace-payments/internal/database"
	"github.com/adiprasetio/marketplace-payments/internal/handler"
	"github.com/adiprasetio/marketplace-payments/internal/middleware"
	"github.com/adiprasetio/marketplace-payments/internal/provider"
	"github.com/adiprasetio/marketplace-payments/internal/queue"
	"github.com/adiprasetio/marketplace-payments/internal/repository"
	"github.com/adiprasetio/marketplace-payments/internal/router"
	"github.com/adiprasetio/marketplace-payments/internal/service"
)

func main() {
	cfg := config.Load()

	zerolog.TimeFieldFormat = time.RFC3339
	log := zerolog.New(os.Stdout).With().Timestamp().Str("service", "marketplace-payments").Logger()
	if cfg.Env == "dev" {
		log = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	cluster, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName, cfg.DBReplicaHosts, log)
	if err != nil {
		log.Fatal().Err(err).Msg("database cluster init failed")
	}
	defer cluster.Close()

	rdb, err := config.NewRedisClient(cfg.RedisAddr)
	if err != nil {
		log.Fatal().Err(err).Msg("redis init failed")
	}
	defer rdb.Close()

	pub, err := queue.NewPublisher(cfg.AMQPURL)
	if err != nil {
		log.Fatal().Err(err).Msg("queue publisher init failed")
	}
	defer pub.Close()

	// The mail worker runs in-process; it reconnects on broker failures.
	go func() {
		if err := queue.StartMailConsumer(cfg.AMQPURL); err != nil {
			log.Error().Err(err).Msg("mail consumer stopped")
		}
	}()

	engine := &service.NotificationService{
		DB:          cluster,
		Verifier:    provider.NewClient(cfg.ProviderBaseURL, cfg.ProviderServerKey, cfg.ProviderTimeout),
		Statuses:    cache.NewStatusStore(rdb),
		Charges:     cache.NewInitChargeStore(rdb),
		Orders:      repository.NewOrderRepo(cluster.Primary()),
		Payments:    repository.NewPaymentRepo(cluster.Primary()),
		Quota:       repository.NewQuotaRepo(cluster.Primary()),
		Mail:        pub,
		TerminalTTL: cfg.TerminalStatusTTL,
		Log:         log,
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.RequestLogger(log))
	router.Register(e,
		handler.NewNotificationHandler(engine, log),
		&handler.HealthHandler{DB: cluster, Redis: rdb},
	)

	addr := ":" + cfg.Port
	log.Info().Str("addr", addr).Str("env", cfg.Env).Msg("listening")
	if err := e.Start(addr); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}
