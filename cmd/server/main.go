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

	"storefront-service/config"
	"storefront-service/internal/api"
	"storefront-service/internal/broker"
	"storefront-service/internal/mailer"
	"storefront-service/internal/payments"
	"storefront-service/internal/redisclient"
	"storefront-service/internal/service"
	"storefront-service/internal/shipping"
	"storefront-service/internal/store"
	"storefront-service/internal/util"
	"storefront-service/internal/worker"

	"github.com/gin-gonic/gin"
)

func main() {

	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting storefront service")

	tp, err := util.InitTracer("storefront-service", cfg.Observ.JaegerEndpoint)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			log.Printf("Error shutting down tracer: %v", err)
		}
	}()

	db, err := store.NewStore(cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	log.Println("Database connected")

	redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()
	log.Println("Redis connected")

	producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicOrder)
	defer producer.Close()
	log.Println("Kafka producer initialized")

	eventPublisher := broker.NewEventPublisher(producer)

	stripeClient := payments.NewClient(cfg.Stripe.SecretKey)
	easypostClient := shipping.NewClient(cfg.EasyPost.APIKey, cfg.EasyPost.BaseURL)
	mailClient := mailer.NewClient(cfg.Email.NotifyEndpoint, cfg.Email.FromAddress)

	auditLogger := service.NewAuditLogger(db)
	orderService := service.NewOrderService(db, stripeClient, redisClient, eventPublisher, auditLogger,
		time.Duration(cfg.Business.RefundLockTTLSeconds)*time.Second)
	discountService := service.NewDiscountService(db, auditLogger)
	referralService := service.NewReferralService(db, redisClient, eventPublisher, mailClient,
		int64(cfg.Business.ReferralCreditCents), cfg.Server.AppURL)
	shippingService := service.NewShippingService(easypostClient, db, orderService)
	subscriptionService := service.NewSubscriptionService(db, stripeClient, auditLogger, cfg.Server.AppURL)

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	emailConsumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicOrder, cfg.Kafka.ConsumerGroup)
	emailWorker := worker.NewEmailWorker(emailConsumer, mailClient)
	go func() {
		if err := emailWorker.Start(workerCtx); err != nil {
			log.Printf("Email worker error: %v", err)
		}
	}()

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.Default()
	handler := api.NewHandler(
		orderService,
		discountService,
		referralService,
		shippingService,
		subscriptionService,
		auditLogger,
		cfg.Auth.JWTSecret,
		redisClient,
		cfg.Business.RateLimitPerMinute,
	)
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		log.Printf("Starting HTTP server on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	workerCancel()
	emailWorker.Stop()

	log.Println("Server exited")
}
