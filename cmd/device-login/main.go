// Command device-login acquires a token through the OAuth 2.0 device
// authorization grant and caches it for later runs.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/kelseyhightower/envconfig"
	"github.com/redis/go-redis/v9"

	"github.com/wrale/oauth2-device-client/internal/authority"
	"github.com/wrale/oauth2-device-client/internal/deviceflow"
	"github.com/wrale/oauth2-device-client/internal/persistence"
)

// Version is set by the build process
var Version = "dev"

func main() {
	var cfg Config
	if err := envconfig.Process("device_login", &cfg); err != nil {
		fmt.Fprintf(os.Stderr, "error loading configuration: %v\n", err)
		os.Exit(1)
	}

	level := slog.LevelInfo
	if cfg.Debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("device login failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg Config, logger *slog.Logger) error {
	store, err := selectPersistence(ctx, cfg, logger)
	if err != nil {
		return err
	}

	client, err := deviceflow.NewClient(cfg.ClientID, cfg.AuthorityURL,
		deviceflow.WithHTTPClient(&http.Client{Timeout: cfg.HTTPTimeout}),
		deviceflow.WithResolver(authority.NewCached(authority.Metadata{}, 0)),
		deviceflow.WithLogger(logger),
		deviceflow.WithPersistence(store),
		deviceflow.WithSaveErrorObserver(func(err error) {
			fmt.Fprintf(os.Stderr, "warning: token cache was not saved: %v\n", err)
		}),
	)
	if err != nil {
		return fmt.Errorf("creating client: %w", err)
	}

	token, err := client.AcquireToken(ctx, deviceflow.AcquireRequest{
		Scopes: cfg.Scopes,
		Callback: func(code *deviceflow.DeviceCodeResponse) error {
			if code.Message != "" {
				fmt.Println(code.Message)
				return nil
			}
			fmt.Printf("To sign in, visit %s and enter the code %s.\n",
				code.VerificationURI, code.UserCode)
			return nil
		},
	})
	if err != nil {
		return err
	}

	fmt.Printf("Signed in. Access token expires at %s.\n", token.ExpiresAt.Format("15:04:05 MST"))
	return nil
}

// selectPersistence picks a cache backend by capability: Redis when
// configured, otherwise a plaintext file under the user config directory.
func selectPersistence(ctx context.Context, cfg Config, logger *slog.Logger) (persistence.Persistence, error) {
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("parsing Redis URL: %w", err)
		}
		store, err := persistence.NewRedisStore(ctx, redis.NewClient(opts), cfg.RedisKey)
		if err != nil {
			return nil, err
		}
		logger.Debug("using redis token cache", "key", cfg.RedisKey)
		return store, nil
	}

	path := cfg.CachePath
	if path == "" {
		dir, err := os.UserConfigDir()
		if err != nil {
			return nil, fmt.Errorf("resolving config dir: %w", err)
		}
		path = filepath.Join(dir, "device-login", "cache.json")
	}
	logger.Warn("no secure store configured, caching tokens in a plaintext file",
		"path", path)
	return persistence.NewFileStore(path)
}
