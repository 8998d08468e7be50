package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-commerce-orders.git/internal/config"
	kafkax "github.com/ariefcatur/go-commerce-orders.git/internal/kafka"
	"github.com/ariefcatur/go-commerce-orders.git/internal/orders"
	"github.com/ariefcatur/go-commerce-orders.git/internal/postgres"
	"github.com/ariefcatur/go-commerce-orders.git/internal/reconcile"
	"github.com/ariefcatur/go-commerce-orders.git/internal/redisx"
)

func mustAtoi(s, def string) int {
	if s == "" {
		s = def
	}
	i, err := strconv.Atoi(s)
	if err != nil {
		return 1
	}
	return i
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	logger, err := config.NewLogger(cfg)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		logger.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Producers: adjusted & rejected
	pOK := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicStockAdjusted, 1024, logger)
	pOK.Start(ctx)
	pRJ := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicStockRejected, 1024, logger)
	pRJ.Start(ctx)

	svc := &reconcile.Service{
		Catalog:        &postgres.ProductRepo{DB: db},
		Orders:         &postgres.OrderRepo{DB: db},
		Dedup:          redisx.NewDedup(rdb, "reconciler"),
		Redis:          rdb,
		ProducerOK:     pOK,
		ProducerReject: pRJ,
		ServiceName:    cfg.ServiceName + "-reconciler",
		Log:            logger,
	}

	group := getenv("RECONCILER_GROUP", "stock-reconciler")
	workers := mustAtoi(os.Getenv("RECONCILER_WORKERS"), "4")
	cons := kafkax.NewConsumer(cfg.KafkaBrokers, group, orders.TopicStockReconcile, workers, logger)

	go func() {
		logger.Info("reconciler consumer started",
			zap.String("group", group),
			zap.String("topic", orders.TopicStockReconcile),
			zap.Int("workers", workers))
		if err := cons.Start(ctx, svc.HandleReconcileNeeded); err != nil {
			logger.Error("consumer exit", zap.Error(err))
			cancel()
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info("shutting down reconciler")
	cancel()
	time.Sleep(500 * time.Millisecond)
	pOK.Close()
	pRJ.Close()
	pOK.WaitClosed()
	pRJ.WaitClosed()
}
