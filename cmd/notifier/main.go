package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/ariefcatur/little-lemon/internal/config"
	kafkax "github.com/ariefcatur/little-lemon/internal/kafka"
	"github.com/ariefcatur/little-lemon/internal/notifier"
	"github.com/ariefcatur/little-lemon/internal/orders"
	"github.com/ariefcatur/little-lemon/internal/redisx"
	"github.com/ariefcatur/little-lemon/internal/telemetry"
)

func main() {
	cfg := config.Load()
	if err := run(cfg); err != nil {
		fmt.Fprintln(os.Stderr, "notifier:", err)
		os.Exit(1)
	}
}

func run(cfg config.Config) error {
	if len(cfg.KafkaBrokers) == 0 {
		return fmt.Errorf("KAFKA_BROKERS not set")
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	name := cfg.ServiceName + "-notifier"
	log, _, meter, shutdown, err := telemetry.Setup(ctx, telemetry.Options{
		ServiceName: name,
		Enabled:     cfg.OTelEnabled,
		Endpoint:    cfg.OTelEndpoint,
		Level:       cfg.LogLevel,
	})
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer shutdown(context.Background())

	metrics, err := telemetry.NewMetrics(meter)
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	rdb := redisx.New(cfg.RedisAddr)
	if rdb != nil {
		defer rdb.Close()
	} else {
		log.Warn("REDIS_ADDR not set, events will not be de-duplicated")
	}

	svc := &notifier.Service{Redis: rdb, Log: log, Metrics: metrics, Name: name}
	cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.NotifierGroup, orders.Topics, cfg.NotifierWorkers, log)

	done := make(chan error, 1)
	go func() {
		log.Info("notifier consumer started",
			zap.String("group", cfg.NotifierGroup),
			zap.Strings("topics", orders.Topics),
			zap.Int("workers", cfg.NotifierWorkers))
		done <- cons.Start(ctx, svc.HandleOrderEvent)
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
		log.Info("shutting down consumer...")
		cancel()
		return <-done
	case err := <-done:
		return err
	}
}
