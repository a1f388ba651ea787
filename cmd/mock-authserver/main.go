// Command mock-authserver runs the in-process authorization server on a
// local port, for developing against the device flow without a real
// identity provider. Codes are auto-approved after a configurable number
// of polls.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/wrale/oauth2-device-client/internal/mockauth"
)

// Config holds server configuration loaded from environment variables.
type Config struct {
	Port             int           `envconfig:"PORT" default:"8080"`
	BaseURL          string        `envconfig:"BASE_URL" default:""`
	ExpiresIn        int           `envconfig:"EXPIRES_IN" default:"900"`
	Interval         int           `envconfig:"INTERVAL" default:"5"`
	AutoApproveAfter int           `envconfig:"AUTO_APPROVE_AFTER" default:"3"`
	ShutdownTimeout  time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
}

func main() {
	var cfg Config
	if err := envconfig.Process("mock_authserver", &cfg); err != nil {
		fmt.Fprintf(os.Stderr, "error loading configuration: %v\n", err)
		os.Exit(1)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = fmt.Sprintf("http://localhost:%d", cfg.Port)
	}

	auth := mockauth.New(baseURL,
		mockauth.WithExpiresIn(cfg.ExpiresIn),
		mockauth.WithInterval(cfg.Interval),
		mockauth.WithAutoApproveAfter(cfg.AutoApproveAfter),
	)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           auth.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("mock authorization server listening",
			"port", cfg.Port, "base_url", baseURL)
		serverErrors <- httpServer.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		logger.Error("server error", "error", err)
		os.Exit(1)
	case <-shutdown:
		logger.Info("starting shutdown")
		ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(ctx); err != nil {
			logger.Error("shutdown error", "error", err)
			if err := httpServer.Close(); err != nil {
				logger.Error("close error", "error", err)
			}
		}
	}
}
