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

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"leadpipe/internal/audit"
	jwttoken "leadpipe/internal/jwt_token"
	"leadpipe/internal/lead"
	"leadpipe/internal/platform/config"
	"leadpipe/internal/platform/httpserver"
	"leadpipe/internal/platform/logger"
	"leadpipe/internal/platform/metrics"
	"leadpipe/internal/platform/redis"
	"leadpipe/internal/roles"
	httptransport "leadpipe/internal/transport/http"
)

func main() {
	_ = godotenv.Load()

	cfg := config.FromEnv()
	log := logger.New()
	m := metrics.New()

	// Audit sink: kafka when brokers are configured, in-memory otherwise.
	var sink audit.Sink
	if len(cfg.KafkaBrokers) > 0 {
		kafkaSink, err := audit.NewKafkaSink(cfg.KafkaBrokers, cfg.AuditTopic)
		if err != nil {
			log.Error("failed to connect to kafka", "error", err)
			os.Exit(1)
		}
		defer kafkaSink.Close()
		sink = kafkaSink
		log.Info("audit events go to kafka", "topic", cfg.AuditTopic)
	} else {
		sink = audit.NewInMemoryStore()
		log.Warn("no KAFKA_BROKERS configured, audit events stay in memory")
	}
	publisher := audit.NewPublisher(sink, audit.WithAsyncBuffer(256))
	defer publisher.Close()

	// Stores: postgres when DATABASE_URL is set, in-memory otherwise.
	var (
		roleStore roles.Store
		leadStore lead.Store
	)
	if cfg.DatabaseURL != "" {
		db, err := sql.Open("pgx", cfg.DatabaseURL)
		if err != nil {
			log.Error("failed to open database", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err = db.PingContext(pingCtx)
		cancel()
		if err != nil {
			log.Error("failed to ping database", "error", err)
			os.Exit(1)
		}
		roleStore = roles.NewPostgres(db)
		leadStore = lead.NewPostgres(db, cfg.DatabaseURL, log)
		log.Info("connected to postgres")
	} else {
		roleStore = roles.NewInMemoryStore()
		leadStore = lead.NewInMemoryStore()
		log.Warn("no DATABASE_URL configured, state stays in memory")
	}

	// Optional read-through cache for capability sets.
	redisClient, err := redis.New(cfg.RedisURL)
	if err != nil {
		log.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		roleStore = roles.NewCachedStore(roleStore, redisClient.Client, log)
		log.Info("capability sets cached in redis")
	}

	roleService := roles.NewService(roleStore, publisher, m, log)
	leadService := lead.NewService(leadStore, roleService, publisher, log,
		lead.WithMetrics(m),
		lead.WithRetentionMonths(cfg.RetentionMonths),
	)

	jwtService := jwttoken.NewJWTService(cfg.JWTSigningKey, "leadpipe", "leadpipe-api")
	validator := jwttoken.NewJWTServiceAdapter(jwtService)

	handler := httptransport.New(leadService, roleService, leadStore, log, cfg.SnapshotLimit)
	router := httptransport.NewRouter(handler, validator, log)
	server := httpserver.New(cfg.Addr, router)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("server listening", "addr", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}
