// File: buildbook/main.go
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stripe/stripe-go/v76"

	"buildbook/config"
	"buildbook/cron"
	"buildbook/database"
	bookingRepo "buildbook/database/repository/booking"
	"buildbook/handlers"
	"buildbook/middleware"
	"buildbook/routes"
	"buildbook/services/booking"
	"buildbook/services/notification"
	"buildbook/utils"
)

func main() {
	config.LoadConfig()
	logger := utils.GetLogger()

	database.InitDB()
	utils.InitCache()
	utils.InitLockCache()

	// State machine security layer: both constructors fail fast on a
	// missing or unusable secret.
	codec, err := booking.NewStateDataCodec(config.AppConfig.BookingEncryptionKey)
	if err != nil {
		logger.Sugar().Fatalf("main: failed to initialize state data codec: %v", err)
	}
	tokens, err := booking.NewStateTokenManager(config.AppConfig.StateTokenSecret)
	if err != nil {
		logger.Sugar().Fatalf("main: failed to initialize state token manager: %v", err)
	}

	// Create the Gin router.
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(utils.ErrorHandler())
	router.Use(gin.Logger())
	router.Use(middleware.RateLimitMiddleware())
	stripe.Key = config.AppConfig.StripeKey

	// repositories.
	stateRepo := bookingRepo.NewMongoBookingStateRepo()
	if err := stateRepo.EnsureIndexes(); err != nil {
		logger.Sugar().Warnf("main: failed to ensure booking indexes: %v", err)
	}

	// services.
	notificationService := notification.NewLogNotificationService(logger)
	expiryScheduler := cron.NewExpiryScheduler()

	flowService := &booking.DefaultBookingFlowService{
		Repo:            stateRepo,
		Executor:        booking.NewTransitionExecutor(codec),
		Codec:           codec,
		Tokens:          tokens,
		Locker:          utils.NewBookingLocker(utils.GetLockClient()),
		NotificationSvc: notificationService,
		Expiry:          expiryScheduler,
		PaymentTimeout:  time.Duration(config.AppConfig.PaymentTimeoutMin) * time.Minute,
		Logger:          logger,
	}

	cron.InitExpiryWorker(flowService, logger)

	bookingHandler := handlers.NewBookingHandler(flowService, codec, logger)
	webhookHandler := handlers.NewWebhookHandler(flowService, utils.GetCacheClient(), logger)

	// Register routes.
	routes.RegisterRoutes(router, bookingHandler, webhookHandler)

	utils.StartHealthMonitor(utils.GetCacheClient(), utils.GetLockClient(), database.MongoClient)

	// Start the HTTP server.
	port := config.AppConfig.AppPort
	if port == "" {
		port = "8080"
	}
	srv := &http.Server{
		Addr:    "0.0.0.0:" + port,
		Handler: router,
	}

	logger.Sugar().Infof("Starting server on %s...", srv.Addr)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Sugar().Fatalf("main: server failed to start: %v", err)
		}
	}()

	// Wait for an OS signal to gracefully shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Sugar().Info("main: server is shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Sugar().Fatalf("main: server forced to shutdown: %v", err)
	}
	if err := expiryScheduler.Close(); err != nil {
		logger.Sugar().Warnf("main: failed to close expiry scheduler: %v", err)
	}

	logger.Sugar().Info("main: server stopped gracefully")
}
