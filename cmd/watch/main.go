package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SolanaSergio/apexbets-live/internal/config"
	"github.com/SolanaSergio/apexbets-live/internal/platform/logging"
	"github.com/SolanaSergio/apexbets-live/internal/stream"
)

// watch follows one sport topic on a running server and logs what a browser
// client would render. Useful for smoke-testing the stream path end to end.
func main() {
	baseURL := flag.String("base-url", "http://localhost:8080", "server base URL")
	sport := flag.String("sport", stream.TopicAll, "sport topic to follow")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := logging.NewJSON(cfg.LogLevel)
	logging.SetDefault(logger)
	defer func() { _ = logger.Sync() }()

	// The client must outlive individual requests, so no global timeout.
	transport := stream.NewHTTPTransport(&http.Client{}, *baseURL)
	client := stream.NewClient(transport, stream.ClientConfig{
		Topic: *sport,
		Backoff: stream.BackoffConfig{
			BaseDelay:  cfg.ClientBackoffBase,
			MaxDelay:   cfg.ClientBackoffMax,
			MaxRetries: cfg.ClientBackoffRetries,
		},
		Logger: logger,
		OnStreamError: func(message string) {
			logger.Warn("stream reported an error", "message", message)
		},
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go reportLoop(ctx, client, logger, cfg.PollInterval)

	logger.Info("stream watch starting", "base_url", *baseURL, "sport", *sport)
	if err := client.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("stream watch terminated", "error", err)
		os.Exit(1)
	}
	logger.Info("stream watch stopped")
}

func reportLoop(ctx context.Context, client *stream.Client, logger *logging.Logger, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			logger.Info("stream watch status",
				"state", client.State().String(),
				"games", len(client.Games()),
				"last_heartbeat", client.LastHeartbeat(),
				"last_error", client.LastError(),
			)
		}
	}
}
