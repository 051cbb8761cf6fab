// Package main is the entry point for the ezworkspace server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/CageChen/ezworkspace/internal/config"
	"github.com/CageChen/ezworkspace/internal/fs"
	"github.com/CageChen/ezworkspace/internal/handler"
	"github.com/CageChen/ezworkspace/internal/logging"
	"github.com/CageChen/ezworkspace/internal/session"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(logging.Config{Level: cfg.Log.Level, Development: cfg.Log.Development})
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("ezworkspace server",
		zap.String("config", cfg.GetConfigFilePath()),
		zap.String("backend", cfg.Backend),
		zap.Bool("serve_host", cfg.ServeHost),
	)

	opts := handler.RouterOptions{Logger: logger}
	if cfg.ServeHost {
		opts.Host = fs.Instrument(fs.NewLocalFS(fs.Root), logger.Named("host"))
	}

	// A pure host server skips its own workspace when nothing else is asked for
	if !cfg.ServeHost || cfg.Backend == config.BackendSandbox {
		sess, err := session.Open(ctx, cfg, logger.Named("session"))
		if err != nil {
			logger.Fatal("Failed to open workspace", zap.Error(err))
		}
		defer func() { _ = sess.Close() }()
		opts.Session = sess
	}

	gin.SetMode(gin.ReleaseMode)
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           handler.NewRouter(opts),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Open browser if requested
	if cfg.Open {
		go openBrowser(fmt.Sprintf("http://localhost:%d/api/tree", cfg.Port))
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Server starting", zap.String("addr", srv.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	case <-ctx.Done():
		logger.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Shutdown failed", zap.Error(err))
		}
	}
}

func openBrowser(url string) {
	var cmd string
	var args []string

	switch runtime.GOOS {
	case "windows":
		cmd = "rundll32"
		args = []string{"url.dll,FileProtocolHandler", url}
	case "darwin":
		cmd = "open"
		args = []string{url}
	default: // linux, etc.
		cmd = "xdg-open"
		args = []string{url}
	}

	_ = exec.Command(cmd, args...).Start()
}
