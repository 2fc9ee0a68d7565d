package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"perfume-store/internal/accounts"
	"perfume-store/internal/auth"
	"perfume-store/internal/bootstrap"
	"perfume-store/internal/catalog"
	"perfume-store/internal/config"
	"perfume-store/internal/events"
	"perfume-store/internal/handlers"
	"perfume-store/internal/idempotency"
	"perfume-store/internal/inventory"
	"perfume-store/internal/logger"
	"perfume-store/internal/media"
	"perfume-store/internal/metrics"
	"perfume-store/internal/orders"
	"perfume-store/internal/reports"
	"perfume-store/internal/server"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.New(logger.Options{ServiceName: "perfume-store"}).Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	log := bootstrap.NewLogger(cfg, "perfume-store")
	ctx := log.WithField(context.Background(), "env", cfg.AppEnv)
	if cfg.EnvFileErr != nil {
		log.Debug(ctx, ".env file not loaded, relying on environment")
	}
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	st, err := bootstrap.OpenStore(ctx, cfg, log)
	if err != nil {
		log.Error(ctx, "failed to open store", err)
		os.Exit(1)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	var publisher events.Publisher = events.Noop{}
	if cfg.RabbitMQ.URL != "" {
		amqpPublisher, err := events.NewAMQPPublisher(cfg.RabbitMQ.URL, cfg.RabbitMQ.OrderExchange)
		if err != nil {
			log.Error(ctx, "rabbitmq unavailable, order events disabled", err)
		} else {
			publisher = amqpPublisher
			log.Event(ctx).Str("exchange", cfg.RabbitMQ.OrderExchange).Msg("order events enabled")
		}
	}

	var idem idempotency.Store
	var redisStore *idempotency.RedisStore
	if cfg.Redis.URL != "" {
		redisStore, err = idempotency.NewRedisStore(ctx, cfg.Redis.URL)
		if err != nil {
			log.Error(ctx, "redis unavailable, idempotency keys ignored", err)
		} else {
			idem = redisStore
		}
	}

	issuer := auth.NewIssuer(cfg.JWTSecret, cfg.AccessTTL)
	blobs := media.NewDiskStore(cfg.UploadDir)
	env := &handlers.Env{
		Ledger: orders.NewLedger(orders.Deps{
			Store:      st,
			Reconciler: inventory.NewReconciler(st.Products(), log, m),
			Publisher:  publisher,
			Logger:     log,
			Metrics:    m,
		}),
		Catalog:       catalog.NewService(st.Products(), blobs, log),
		Accounts:      accounts.NewService(st, issuer, cfg.RefreshTTL, log),
		Reports:       reports.NewService(st),
		Health:        st,
		Log:           log,
		PublicBaseURL: cfg.PublicBaseURL,
		SecureCookies: cfg.IsProduction(),
	}

	srv := &http.Server{
		Addr: cfg.Addr(),
		Handler: server.NewRouter(server.Options{
			Env:            env,
			Issuer:         issuer,
			Metrics:        m,
			Gatherer:       reg,
			Idempotency:    idem,
			IdempotencyTTL: cfg.Redis.IdempotencyTTL,
			RequestTimeout: cfg.RequestTTL,
			UploadDir:      blobs.Root(),
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Event(ctx).Str("addr", srv.Addr).Str("store", cfg.StoreDriver).Msg("starting api server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error(ctx, "api server stopped unexpectedly", err)
			stop()
		}
	}()

	<-runCtx.Done()
	log.Info(ctx, "shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "http shutdown", err)
	}
	if err := publisher.Close(); err != nil {
		log.Error(ctx, "closing event publisher", err)
	}
	if redisStore != nil {
		if err := redisStore.Close(); err != nil {
			log.Error(ctx, "closing redis", err)
		}
	}
	if err := st.Close(shutdownCtx); err != nil {
		log.Error(ctx, "closing store", err)
	}
}
