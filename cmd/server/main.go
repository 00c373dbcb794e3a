package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"

	"github.com/rl1809/goods-issue/internal/adapter/handler"
	"github.com/rl1809/goods-issue/internal/app"
	"github.com/rl1809/goods-issue/internal/config"
)

const moduleName = "server"

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("failed to load config: %v", err)
	}
	logger, err := config.NewLogger(cfg.LogLevel)
	if err != nil {
		logrus.Fatalf("failed to build logger: %v", err)
	}

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		config.LogError(logger, moduleName, "main", "wire application", nil, err)
		os.Exit(1)
	}

	// Initialize gRPC server
	grpcServer := grpc.NewServer()
	handler.RegisterReconcilerServer(grpcServer, handler.NewGRPCHandler(a.Reconciler, a.Coordinator, logger))

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		config.LogError(logger, moduleName, "main", "listen grpc", cfg.GRPCAddr, err)
		os.Exit(1)
	}

	go func() {
		logger.Infof("gRPC server listening on %s", cfg.GRPCAddr)
		if err := grpcServer.Serve(lis); err != nil {
			logger.WithError(err).Error("gRPC server error")
		}
	}()

	// Initialize HTTP server
	httpHandler := handler.NewHTTPHandler(a.Reconciler, a.Coordinator, a.Stock, a.Store, logger)
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler.NewRouter(httpHandler, a.MetricsHandler()),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Infof("HTTP server listening on %s", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Error("HTTP server error")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("HTTP shutdown")
	}
	logger.Info("HTTP server stopped")

	grpcServer.GracefulStop()
	logger.Info("gRPC server stopped")

	// Drains queued reconciliations, then closes connections
	a.Close()
	logger.Info("connections closed")
}
