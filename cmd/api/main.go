package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-commerce-orders.git/internal/config"
	"github.com/ariefcatur/go-commerce-orders.git/internal/httpx"
	kafkax "github.com/ariefcatur/go-commerce-orders.git/internal/kafka"
	"github.com/ariefcatur/go-commerce-orders.git/internal/orders"
	"github.com/ariefcatur/go-commerce-orders.git/internal/postgres"
	"github.com/ariefcatur/go-commerce-orders.git/internal/redisx"
)

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

	// Kafka producers
	prodCreated := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderCreated, 1024, logger)
	prodCreated.Start(ctx)
	prodReconcile := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicStockReconcile, 256, logger)
	prodReconcile.Start(ctx)

	// Collaborators + core service
	customerRepo := &postgres.CustomerRepo{DB: db}
	productRepo := &postgres.ProductRepo{DB: db}
	orderRepo := &postgres.OrderRepo{DB: db}
	svc := orders.NewService(customerRepo, productRepo, orderRepo, logger)

	router := httpx.NewRouter()
	oh := &httpx.OrdersHandler{
		Creator:   svc,
		Orders:    orderRepo,
		Products:  productRepo,
		Producer:  prodCreated,
		Reconcile: prodReconcile,
		Redis:     rdb,
		Service:   cfg.ServiceName,
		Log:       logger,
	}
	oh.Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	// graceful shutdown
	go func() {
		logger.Info("http listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("listen", zap.Error(err))
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info("shutting down")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	prodCreated.Close() // close inbox -> flush & close writer
	prodReconcile.Close()
	cancel() // stop producer loops
	prodCreated.WaitClosed()
	prodReconcile.WaitClosed()
}
