package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/ariefcatur/little-lemon/internal/catalog"
	"github.com/ariefcatur/little-lemon/internal/config"
	"github.com/ariefcatur/little-lemon/internal/httpx"
	kafkax "github.com/ariefcatur/little-lemon/internal/kafka"
	"github.com/ariefcatur/little-lemon/internal/orders"
	"github.com/ariefcatur/little-lemon/internal/postgres"
	"github.com/ariefcatur/little-lemon/internal/redisx"
	"github.com/ariefcatur/little-lemon/internal/telemetry"
	"github.com/ariefcatur/little-lemon/internal/users"
)

const usage = `usage: api [serve | migrate | createsuperuser -username NAME -password PASS [-email EMAIL]]`

func main() {
	cmd := "serve"
	if len(os.Args) > 1 {
		cmd = os.Args[1]
	}
	cfg := config.Load()

	var err error
	switch cmd {
	case "serve":
		err = serve(cfg)
	case "migrate":
		err = migrate(cfg)
	case "createsuperuser":
		err = createSuperuser(cfg, os.Args[2:])
	default:
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", cmd, err)
		os.Exit(1)
	}
}

func connect(ctx context.Context, cfg config.Config) (*pgxpool.Pool, error) {
	return postgres.Connect(ctx, cfg.PostgresDSN, postgres.PoolConfig{MaxConns: cfg.PGMaxConns})
}

func migrate(cfg config.Config) error {
	ctx := context.Background()
	db, err := connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	applied, err := postgres.Migrate(ctx, db)
	if err != nil {
		return err
	}
	for _, name := range applied {
		fmt.Println("applied", name)
	}
	if len(applied) == 0 {
		fmt.Println("nothing to apply")
	}
	return nil
}

func createSuperuser(cfg config.Config, args []string) error {
	fs := flag.NewFlagSet("createsuperuser", flag.ContinueOnError)
	username := fs.String("username", "", "login name")
	email := fs.String("email", "", "email address")
	password := fs.String("password", "", "password, at least 8 characters")
	if err := fs.Parse(args); err != nil {
		return err
	}

	n := users.NewUser{Username: *username, Email: *email, Password: *password, IsStaff: true, IsSuperuser: true}
	n.Normalize()
	if err := n.Validate(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	db, err := connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	u, err := (&users.Repo{DB: db}).CreateUser(ctx, n)
	if err != nil {
		return err
	}
	fmt.Printf("superuser %q created with id %d\n", u.Username, u.ID)
	return nil
}

func serve(cfg config.Config) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log, tracer, meter, shutdownTelemetry, err := telemetry.Setup(ctx, telemetry.Options{
		ServiceName: cfg.ServiceName,
		Enabled:     cfg.OTelEnabled,
		Endpoint:    cfg.OTelEndpoint,
		Level:       cfg.LogLevel,
	})
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer shutdownTelemetry(context.Background())

	metrics, err := telemetry.NewMetrics(meter)
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	// DB
	db, err := connect(ctx, cfg)
	if err != nil {
		return fmt.Errorf("db connect: %w", err)
	}
	defer db.Close()

	if cfg.AutoMigrate {
		applied, err := postgres.Migrate(ctx, db)
		if err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		log.Info("migrations applied", zap.Strings("files", applied))
	}

	// Redis, optional
	rdb := redisx.New(cfg.RedisAddr)
	if rdb != nil {
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Warn("redis unreachable, cache and throttle will fail open", zap.Error(err))
		}
	}

	// Kafka producers, one per topic, only when brokers are configured
	sinks := map[string]orders.Sink{}
	var producers []*kafkax.Producer
	if len(cfg.KafkaBrokers) > 0 {
		if err := kafkax.EnsureTopics(ctx, cfg.KafkaBrokers[0], 3, 1, orders.Topics...); err != nil {
			log.Warn("failed to ensure topics (may already exist)", zap.Error(err))
		}
		for _, topic := range orders.Topics {
			p := kafkax.NewProducer(cfg.KafkaBrokers, topic, 1024, log)
			p.OnSent(func(topic string, err error) {
				result := "ok"
				if err != nil {
					result = "error"
				}
				metrics.EventsPublished.Add(context.Background(), 1, metric.WithAttributes(
					attribute.String("topic", topic),
					attribute.String("result", result),
				))
			})
			p.Start(ctx)
			sinks[topic] = p
			producers = append(producers, p)
		}
	}

	userRepo := &users.Repo{DB: db}
	roles := &redisx.CachedRoles{Source: userRepo, RDB: rdb, Log: log}
	router := httpx.NewAPI(httpx.Deps{
		Catalog:     &catalog.Repo{DB: db},
		Cart:        &orders.CartRepo{DB: db},
		Orders:      &orders.Repo{DB: db},
		Users:       userRepo,
		Roles:       roles,
		Invalidator: roles,
		Events:      &orders.EventPublisher{Sinks: sinks, Service: cfg.ServiceName},
		Limiter:     &redisx.Throttle{RDB: rdb},
		UserPerMin:  cfg.ThrottleUserPerMin,
		AnonPerMin:  cfg.ThrottleAnonPerMin,
		Log:         log,
		Metrics:     metrics,
		Tracer:      tracer,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("HTTP listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
	case err := <-errCh:
		log.Error("listen failed", zap.Error(err))
	}
	log.Info("shutting down...")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	for _, p := range producers {
		p.Close() // flush the inbox, then close the writer
	}
	for _, p := range producers {
		p.WaitClosed()
	}
	return nil
}
