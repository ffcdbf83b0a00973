package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsevents "github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	ginadapter "github.com/awslabs/aws-lambda-go-api-proxy/gin"
	"github.com/gin-gonic/gin"

	"storefront/cache"
	"storefront/config"
	"storefront/controllers"
	"storefront/database"
	"storefront/events"
	"storefront/routes"
	"storefront/services"
)

func main() {
	if err := run(); err != nil {
		slog.Error("storefront stopped", "err", err)
		os.Exit(1)
	}
}

func run() error {
	config.LoadEnv()
	cfg := config.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	if cfg.JWTSecret == "" {
		return errors.New("JWT_SECRET is not set")
	}

	ctx := context.Background()
	db, err := database.Connect(ctx, cfg.MongoURI, cfg.DBName)
	if err != nil {
		return fmt.Errorf("database connection: %w", err)
	}
	defer db.Close(context.Background())

	store := newCache(ctx, cfg)
	publisher := newPublisher(cfg)
	defer publisher.Close()

	products := database.NewProductStore(db.Products)
	orders := database.NewOrderStore(db.Orders)

	catalog := services.NewCatalogService(products, store, services.CatalogConfig{
		PageSize:   cfg.PageSize,
		TopLimit:   cfg.TopLimit,
		Categories: cfg.Categories,
		CacheTTL:   cfg.CacheTTL,
	})
	orderService := services.NewOrderService(orders, products, publisher, cfg.RecentLimit)
	orderService.OnStockChange(catalog.InvalidateTop)

	if err := controllers.RegisterValidators(catalog.ValidCategory); err != nil {
		return fmt.Errorf("register validators: %w", err)
	}

	gin.SetMode(gin.ReleaseMode)
	r := routes.NewRouter(routes.Handlers{
		Products:  controllers.NewProductController(catalog, cfg.RequestTimeout),
		Orders:    controllers.NewOrderController(orderService, cfg.RequestTimeout),
		JWTSecret: []byte(cfg.JWTSecret),
	}, logger)

	if os.Getenv("AWS_LAMBDA_FUNCTION_NAME") != "" {
		adapter := ginadapter.New(r)
		lambda.Start(func(ctx context.Context, req awsevents.APIGatewayProxyRequest) (awsevents.APIGatewayProxyResponse, error) {
			return adapter.ProxyWithContext(ctx, req)
		})
		return nil
	}

	return serve(r, cfg.Port)
}

func newCache(ctx context.Context, cfg config.Config) cache.Store {
	if cfg.RedisAddr == "" {
		return cache.Noop{}
	}
	r := cache.NewRedis(cfg.RedisAddr)
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := r.Ping(pingCtx); err != nil {
		slog.Warn("redis unavailable, caching disabled", "addr", cfg.RedisAddr, "err", err)
		_ = r.Close()
		return cache.Noop{}
	}
	slog.Info("connected to redis", "addr", cfg.RedisAddr)
	return r
}

func newPublisher(cfg config.Config) events.Publisher {
	if len(cfg.KafkaBrokers) == 0 {
		return events.NewLog(slog.Default())
	}
	slog.Info("publishing order events to kafka", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	return events.NewKafka(cfg.KafkaBrokers, cfg.KafkaTopic)
}

func serve(handler http.Handler, port string) error {
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	failed := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			failed <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-failed:
		return fmt.Errorf("listen: %w", err)
	case <-quit:
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	slog.Info("server stopped")
	return nil
}
