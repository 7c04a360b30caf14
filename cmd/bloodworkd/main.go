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

	"github.com/joseph-ayodele/bloodwork-tracker/internal/app"
	"github.com/joseph-ayodele/bloodwork-tracker/internal/common"
	"github.com/joseph-ayodele/bloodwork-tracker/internal/server"
)

func main() {
	cfg := common.LoadConfig()
	logger := common.NewLogger(os.Stdout, cfg.Log)

	// Context with signal
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(ctx, cfg, logger)
	if err != nil {
		logger.Error("startup failed", "code", common.ErrorCode(err), "error", err)
		os.Exit(1)
	}
	defer a.Close()

	if err := a.DB.HealthCheck(ctx, cfg.Database.DialTimeout, logger); err != nil {
		logger.Error("DB health failed", "error", err)
		os.Exit(1)
	}
	logger.Info("DB health OK")

	// gRPC health for orchestrators
	hs := server.NewHealthServer(a.DB, 15*time.Second, logger)
	go hs.Watch(ctx)
	lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
	if err != nil {
		logger.Error("grpc listen failed", "addr", cfg.Server.GRPCAddr, "error", err)
		os.Exit(1)
	}
	go func() {
		logger.Info("gRPC health serving", "addr", cfg.Server.GRPCAddr)
		if err := hs.GRPC.Serve(lis); err != nil {
			logger.Error("grpc serve", "error", err)
		}
	}()

	httpSrv := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           a.API().Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		// uploads wait on extraction and the model; leave room for a multi-page vision pass
		WriteTimeout: cfg.LLM.Timeout*time.Duration(cfg.LLM.MaxRetries+1) + cfg.Extract.VisionTimeout + time.Minute,
		IdleTimeout:  2 * time.Minute,
	}
	go func() {
		logger.Info("HTTP serving", "addr", cfg.Server.HTTPAddr, "upload_dir", cfg.Server.UploadDir)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http serve", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", "error", err)
	}
	hs.GRPC.GracefulStop()
	logger.Info("stopped")
}
