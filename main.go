package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"escrow-backend/config"
	"escrow-backend/controllers"
	"escrow-backend/processor"
	"escrow-backend/routes"
	"escrow-backend/services"
	"escrow-backend/utils"
)

func main() {
	logrus.SetFormatter(&logrus.JSONFormatter{})

	// Load .env (optional)
	if err := godotenv.Load(); err != nil {
		logrus.Warn(".env not found or couldn't load it; continuing with environment variables")
	}

	// Processor credentials are required: without them no money can move.
	processorClient, err := processor.NewHTTPClientFromEnv()
	if err != nil {
		logrus.Fatalf("❌ Cannot initialize payment processor client: %v", err)
	}
	logrus.Info("✅ Payment processor client configured")

	// Connect database (config.ConnectDatabase sets config.DB)
	if err := config.ConnectDatabase(); err != nil {
		logrus.Fatalf("❌ Database connect failed: %v", err)
	}
	db := config.DB
	if db == nil {
		logrus.Fatal("❌ config.DB is nil after ConnectDatabase()")
	}
	logrus.Info("✅ Database connection established and migrations applied")

	// Initialize services
	transferService := services.NewTransferService(processorClient)
	escrowService := services.NewEscrowService(db, transferService)
	disputeService := services.NewDisputeService(db)
	payoutService := services.NewPayoutService(db, transferService,
		int64(utils.EnvIntOrDefault("PAYOUT_CONCURRENCY", 4)))

	// Initialize controllers
	escrowController := controllers.NewEscrowController(escrowService)
	disputeController := controllers.NewDisputeController(disputeService)
	payoutController := controllers.NewPayoutController(payoutService)

	// Build router
	router := routes.SetupRouter(escrowController, disputeController, payoutController)

	// Background payout batch
	schedulerCtx, stopScheduler := context.WithCancel(context.Background())
	defer stopScheduler()
	scheduler := services.NewPayoutScheduler(payoutService,
		time.Duration(utils.EnvIntOrDefault("PAYOUT_INTERVAL_MINUTES", 10))*time.Minute)
	go scheduler.Run(schedulerCtx)

	// Port from env (prefer), fallback to 8080
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	addr := ":" + port

	srv := &http.Server{
		Addr:    addr,
		Handler: router,
		// useful timeouts
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logrus.Infof("🚀 Server starting on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("❌ ListenAndServe(): %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server with timeout
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	logrus.Warn("Shutdown signal received, shutting down server...")

	stopScheduler()
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logrus.Fatalf("❌ Server forced to shutdown: %v", err)
	}

	logrus.Info("✅ Server stopped gracefully")
}
