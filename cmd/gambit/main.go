package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	appcfg "github.com/gambitlabs/gambit/internal/config"
	"github.com/gambitlabs/gambit/internal/gamebuilder"
	"github.com/gambitlabs/gambit/internal/obslog"
)

func main() {
	if err := obslog.InitFromEnv(); err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	logger := obslog.L()

	cfg, err := appcfg.Load()
	if err != nil {
		logger.Fatal("config error", zap.Error(err))
	}

	deps, err := gamebuilder.New(cfg, logger)
	if err != nil {
		logger.Fatal("init error", zap.Error(err))
	}
	defer deps.Close()

	server := &fasthttp.Server{
		Handler:            deps.Handler.Handle,
		Name:               "gambit",
		ReadTimeout:        15 * time.Second,
		WriteTimeout:       30 * time.Second,
		MaxRequestBodySize: 1 << 20,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", cfg.ListenAddr))
		errCh <- server.ListenAndServe(cfg.ListenAddr)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("shutting down", zap.String("signal", sig.String()))
		if err := server.Shutdown(); err != nil {
			logger.Warn("shutdown error", zap.Error(err))
		}
	case err := <-errCh:
		if err != nil {
			logger.Fatal("server error", zap.Error(err))
		}
	}
}
